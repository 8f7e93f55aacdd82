// internal/message/message.go
//
// Outbound event transports.
//
// Context
//   Draft lifecycle events leave the process through a Publisher so the
//   dashboard, the email service, and analytics can react without polling.
//   Two transports are provided: Redis pub/sub for low-latency fan-out to
//   live dashboards, and Kafka for durable downstream consumers.  `Nop`
//   is used when notify.driver is "none".
//
// Style
//   Two-space sentence spacing, Oxford comma, concise inline notes.
//
//------------------------------------------------------------------------------

package message

import "context"

// Publisher ships one encoded event.  key groups related events (the
// draft id) so ordering is preserved per draft where the transport
// supports it.
type Publisher interface {
	Publish(ctx context.Context, topic, key string, payload []byte) error
	Close() error
}

// Nop discards every message.
type Nop struct{}

func (Nop) Publish(context.Context, string, string, []byte) error { return nil }
func (Nop) Close() error                                          { return nil }
