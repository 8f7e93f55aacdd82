// internal/audit/sql.go
package audit

import (
	"context"
	"time"

	"github.com/jmoiron/sqlx"
	"go.uber.org/zap"
)

// SQLSink appends events to the `draft_event` table.  Writes use their
// own short timeout and ignore the caller's cancellation, so an audit row
// is still written when the HTTP client has gone away.
type SQLSink struct {
	DB      *sqlx.DB
	Timeout time.Duration
}

func NewSQLSink(db *sqlx.DB) *SQLSink {
	return &SQLSink{DB: db, Timeout: 3 * time.Second}
}

func (s *SQLSink) Record(ctx context.Context, ev Event) {
	const q = `INSERT INTO draft_event (draft_id, kind, from_status, to_status, user_id, detail, occurred_at)
               VALUES (?, ?, ?, ?, ?, ?, ?)`

	ctx, cancel := context.WithTimeout(context.WithoutCancel(ctx), s.Timeout)
	defer cancel()

	_, err := s.DB.ExecContext(ctx, q,
		ev.DraftID, string(ev.Kind), string(ev.From), string(ev.To), ev.UserID, ev.Detail, ev.OccurredAt)
	if err != nil {
		zap.L().Warn("audit insert failed",
			zap.String("draft_id", ev.DraftID),
			zap.String("kind", string(ev.Kind)),
			zap.Error(err))
	}
}
