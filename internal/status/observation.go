package status

// Observation is what one Status Inferencer pass read off the page.
type Observation struct {
	Status       Status
	StartVisible bool
	StopVisible  bool
	Location     string

	// AuthRequired is set when the page redirected to a login screen.
	// No page content was read and no action may follow in the same cycle.
	AuthRequired bool

	// Text is the status-container text the rules matched against.
	Text string
}
