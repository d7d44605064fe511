package status

import (
	"encoding/json"
	"fmt"
	"strings"
)

// Status is the inferred state of the remote resource.
// It is always derived from an observation, never set by a caller.
type Status string

const (
	Unknown  Status = "unknown"
	Offline  Status = "offline"
	Starting Status = "starting"
	Running  Status = "running"
)

// All lists every status in register-code order.
var All = []Status{Unknown, Offline, Starting, Running}

// Parse maps a string onto a Status. Anything unrecognised is Unknown.
func Parse(s string) Status {
	switch Status(strings.ToLower(strings.TrimSpace(s))) {
	case Offline:
		return Offline
	case Starting:
		return Starting
	case Running:
		return Running
	default:
		return Unknown
	}
}

func (s Status) String() string {
	if s == "" {
		return string(Unknown)
	}
	return string(s)
}

// Code is the register value used by the status block.
func (s Status) Code() uint16 {
	switch s {
	case Offline:
		return CodeOffline
	case Starting:
		return CodeStarting
	case Running:
		return CodeRunning
	default:
		return CodeUnknown
	}
}

func (s Status) MarshalJSON() ([]byte, error) {
	return json.Marshal(s.String())
}

func (s *Status) UnmarshalJSON(b []byte) error {
	var raw string
	if err := json.Unmarshal(b, &raw); err != nil {
		return fmt.Errorf("status: %w", err)
	}
	*s = Parse(raw)
	return nil
}

// ActionType names a control on the remote dashboard.
type ActionType string

const (
	ActionStart ActionType = "start"
	ActionStop  ActionType = "stop"
)

// ActionSource says who asked for an action.
type ActionSource string

const (
	SourceAuto   ActionSource = "auto"
	SourceManual ActionSource = "manual"
)
