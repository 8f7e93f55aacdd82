// internal/audit/log.go
package audit

import (
	"context"

	"go.uber.org/zap"
)

// LogSink writes each event as one structured log line.
type LogSink struct {
	Log *zap.Logger
}

func NewLogSink(l *zap.Logger) *LogSink {
	if l == nil {
		l = zap.L()
	}
	return &LogSink{Log: l.Named("audit")}
}

func (s *LogSink) Record(_ context.Context, ev Event) {
	fields := []zap.Field{
		zap.String("kind", string(ev.Kind)),
		zap.String("draft_id", ev.DraftID),
		zap.Time("at", ev.OccurredAt),
	}
	if ev.From != "" {
		fields = append(fields, zap.String("from", string(ev.From)))
	}
	if ev.To != "" {
		fields = append(fields, zap.String("to", string(ev.To)))
	}
	if ev.UserID != "" {
		fields = append(fields, zap.String("user_id", ev.UserID))
	}
	if ev.Detail != "" {
		fields = append(fields, zap.String("detail", ev.Detail))
	}
	s.Log.Info("draft event", fields...)
}
