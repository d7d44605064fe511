// Package notify publishes status-change and action events.
package notify

import (
	"encoding/json"
	"time"

	"github.com/tamzrod/panel-keeper/internal/status"
)

// Subject suffixes appended to the configured base subject.
const (
	TypeStatusChanged = "status_changed"
	TypeAction        = "action"
)

// StatusChanged is published when the inferred status changes value.
type StatusChanged struct {
	From     status.Status `json:"from"`
	To       status.Status `json:"to"`
	At       time.Time     `json:"at"`
	Location string        `json:"location,omitempty"`
}

// Action is published for every dispatch attempt.
type Action struct {
	AttemptID string              `json:"attempt_id"`
	Action    status.ActionType   `json:"action"`
	Source    status.ActionSource `json:"source"`
	Success   bool                `json:"success"`
	Strategy  string              `json:"strategy,omitempty"`
	Error     string              `json:"error,omitempty"`
	At        time.Time           `json:"at"`
}

func encode(v any) []byte {
	data, err := json.Marshal(v)
	if err != nil {
		return []byte("{}")
	}
	return data
}
