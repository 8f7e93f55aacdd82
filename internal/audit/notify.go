// internal/audit/notify.go
package audit

import (
	"context"
	"encoding/json"
	"time"

	"go.uber.org/zap"

	"github.com/yanizio/launchpad/internal/message"
)

// Topic events are published on; transports prepend their own prefix.
const Topic = "draft.events"

// Notify publishes events through a message.Publisher.
type Notify struct {
	Pub     message.Publisher
	Timeout time.Duration
}

func NewNotify(pub message.Publisher) *Notify {
	return &Notify{Pub: pub, Timeout: 5 * time.Second}
}

func (n *Notify) Record(ctx context.Context, ev Event) {
	raw, err := json.Marshal(ev)
	if err != nil {
		zap.L().Error("audit encode failed", zap.Error(err))
		return
	}

	ctx, cancel := context.WithTimeout(context.WithoutCancel(ctx), n.Timeout)
	defer cancel()

	if err := n.Pub.Publish(ctx, Topic, ev.DraftID, raw); err != nil {
		zap.L().Warn("event publish failed",
			zap.String("draft_id", ev.DraftID),
			zap.String("kind", string(ev.Kind)),
			zap.Error(err))
	}
}
