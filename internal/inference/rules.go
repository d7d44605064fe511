// Package inference turns a rendered dashboard page into one Status.
package inference

import (
	"strings"

	"github.com/tamzrod/panel-keeper/internal/status"
)

// Signals is everything one pass read off the page.
type Signals struct {
	AuthRedirect bool
	// Text is the lower-cased status container text, possibly empty.
	Text         string
	StartVisible bool
	StopVisible  bool
}

// Rule maps a condition on Signals to a Status.
type Rule struct {
	Name   string
	Match  func(Signals) bool
	Result status.Status
}

func textContains(word string) func(Signals) bool {
	return func(s Signals) bool { return strings.Contains(s.Text, word) }
}

// Rules is evaluated top to bottom; the first match wins.
var Rules = []Rule{
	{
		Name:   "auth-redirect",
		Match:  func(s Signals) bool { return s.AuthRedirect },
		Result: status.Unknown,
	},
	{Name: "text-running", Match: textContains("running"), Result: status.Running},
	{Name: "text-offline", Match: textContains("offline"), Result: status.Offline},
	{Name: "text-starting", Match: textContains("starting"), Result: status.Starting},
	{
		Name:   "start-only",
		Match:  func(s Signals) bool { return s.StartVisible && !s.StopVisible },
		Result: status.Offline,
	},
	{
		Name:   "stop-only",
		Match:  func(s Signals) bool { return s.StopVisible && !s.StartVisible },
		Result: status.Running,
	},
}

// Evaluate returns the status of the first matching rule and its name.
// No match (both or neither control visible, no text) is unknown.
func Evaluate(s Signals) (status.Status, string) {
	s.Text = strings.ToLower(s.Text)
	for _, r := range Rules {
		if r.Match(s) {
			return r.Result, r.Name
		}
	}
	return status.Unknown, "no-signal"
}
