// internal/message/redis.go
//
// Redis pub/sub Publisher.  The topic is appended to a configured channel
// prefix, so `launchpad.draft.transition` lands on
// `<prefix>draft.transition`.  Pub/sub is fire-and-forget: subscribers
// that are offline miss the event, which is acceptable for dashboards.
//
//------------------------------------------------------------------------------

package message

import (
	"context"
	"fmt"
	"time"

	goredis "github.com/redis/go-redis/v9"
)

type RedisPublisher struct {
	rdb    goredis.UniversalClient
	prefix string
}

// NewRedisPublisher dials addr and pings it once so misconfiguration
// surfaces at boot.
func NewRedisPublisher(ctx context.Context, addr, password, prefix string) (*RedisPublisher, error) {
	if addr == "" {
		return nil, fmt.Errorf("message: redis address required")
	}
	rdb := goredis.NewClient(&goredis.Options{
		Addr:        addr,
		Password:    password,
		DialTimeout: 5 * time.Second,
	})

	pctx, cancel := context.WithTimeout(ctx, 5*time.Second)
	defer cancel()
	if err := rdb.Ping(pctx).Err(); err != nil {
		_ = rdb.Close()
		return nil, fmt.Errorf("redis ping: %w", err)
	}
	return &RedisPublisher{rdb: rdb, prefix: prefix}, nil
}

// NewRedisPublisherFromClient wraps an existing client.  Used by tests.
func NewRedisPublisherFromClient(rdb goredis.UniversalClient, prefix string) *RedisPublisher {
	return &RedisPublisher{rdb: rdb, prefix: prefix}
}

func (p *RedisPublisher) Publish(ctx context.Context, topic, _ string, payload []byte) error {
	return p.rdb.Publish(ctx, p.prefix+topic, payload).Err()
}

func (p *RedisPublisher) Close() error { return p.rdb.Close() }
