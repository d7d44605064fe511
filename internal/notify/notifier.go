package notify

import (
	"log/slog"

	"github.com/tamzrod/panel-keeper/internal/clock"
	"github.com/tamzrod/panel-keeper/internal/dispatch"
	"github.com/tamzrod/panel-keeper/internal/status"
	"github.com/tamzrod/panel-keeper/internal/store"
)

// Publisher sends one message. Publish must not block on the network.
type Publisher interface {
	Publish(subject string, data []byte) error
	Close() error
}

// Notifier turns store changes and dispatch attempts into events.
// Publish failures are logged and dropped.
type Notifier struct {
	pub     Publisher
	subject string
	clk     clock.Clock
	log     *slog.Logger
}

// New wraps pub. subject is the base subject, e.g. "keeper".
func New(pub Publisher, subject string, clk clock.Clock, log *slog.Logger) *Notifier {
	if clk == nil {
		clk = clock.Real()
	}
	if log == nil {
		log = slog.Default()
	}
	return &Notifier{pub: pub, subject: subject, clk: clk, log: log}
}

// HandleSnapshot implements store.Observer.
func (n *Notifier) HandleSnapshot(c store.Change) {
	if !c.StatusChanged() {
		return
	}
	at := n.clk.Now()
	if c.After.LastStatusChange != nil {
		at = *c.After.LastStatusChange
	}
	n.publish(TypeStatusChanged, StatusChanged{
		From:     c.Before.Status,
		To:       c.After.Status,
		At:       at,
		Location: c.After.CurrentLocation,
	})
}

// Attempt publishes one dispatch outcome.
func (n *Notifier) Attempt(a dispatch.Attempt, src status.ActionSource) {
	ev := Action{
		AttemptID: a.ID,
		Action:    a.Action,
		Source:    src,
		Success:   a.Succeeded,
		Strategy:  a.Strategy,
		At:        n.clk.Now(),
	}
	if a.Err != nil {
		ev.Error = a.Err.Error()
	}
	n.publish(TypeAction, ev)
}

// Close closes the publisher.
func (n *Notifier) Close() error { return n.pub.Close() }

func (n *Notifier) publish(kind string, v any) {
	subject := n.subject + "." + kind
	if err := n.pub.Publish(subject, encode(v)); err != nil {
		n.log.Warn("event publish failed", "subject", subject, "error", err)
	}
}
