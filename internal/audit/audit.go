// internal/audit/audit.go
//
// Audit and notification sink for draft lifecycle events.
//
// Context
// -------
// The orchestrator and the attachment service call Sink.Record after
// every committed state change.  Recording is a side effect: a sink that
// fails logs the failure and returns, it never turns a successful
// transition into an error.  That is why Record has no error return.
//
// Workflow
// --------
//   - LogSink writes one structured zap line per event.
//   - SQLSink appends a row to `draft_event`.
//   - Notify encodes the event as JSON and hands it to a
//     message.Publisher (Redis or Kafka).
//   - Multi fans out to several sinks in order.
//
// Notes
// -----
//   - Events carry statuses and ids only.  Provider bodies and user
//     input never reach the audit trail.
//   - Oxford commas, two spaces after periods.
package audit

import (
	"context"
	"time"

	"github.com/yanizio/launchpad/internal/draft"
)

// Kind names what happened.
type Kind string

const (
	KindCreated       Kind = "created"
	KindTransition    Kind = "transition"
	KindFailed        Kind = "failed"
	KindAttemptFailed Kind = "attempt_failed"
	KindRetried       Kind = "retried"
	KindClaimed       Kind = "claimed"
	KindDesignUpdated Kind = "design_updated"
	KindDesignError   Kind = "design_error"
	KindLoginIssued   Kind = "login_issued"
)

// Event is one audit record.
type Event struct {
	Kind       Kind         `json:"kind"`
	DraftID    string       `json:"draft_id"`
	From       draft.Status `json:"from,omitempty"`
	To         draft.Status `json:"to,omitempty"`
	UserID     string       `json:"user_id,omitempty"`
	Detail     string       `json:"detail,omitempty"`
	OccurredAt time.Time    `json:"occurred_at"`
}

// Sink receives events.  Implementations must be safe for concurrent use.
type Sink interface {
	Record(ctx context.Context, ev Event)
}

// Multi fans out to each sink in order.
type Multi []Sink

func (m Multi) Record(ctx context.Context, ev Event) {
	for _, s := range m {
		if s != nil {
			s.Record(ctx, ev)
		}
	}
}

// Discard drops every event.
type Discard struct{}

func (Discard) Record(context.Context, Event) {}
