// internal/provision/retry.go
//
// Stage retry policy.  Transient provider failures (unavailable and
// timeout) are retried with capped exponential backoff; rejections are
// returned on the first attempt.  No jitter: one draft never has more
// than one stage caller at a time thanks to the lease.
package provision

import (
	"context"
	"time"

	"go.uber.org/zap"

	"github.com/yanizio/launchpad/internal/audit"
	"github.com/yanizio/launchpad/internal/metrics"
	"github.com/yanizio/launchpad/internal/provider"
)

// RetryPolicy bounds one stage's provider calls.
type RetryPolicy struct {
	Attempts int           // total calls, including the first
	Base     time.Duration // delay after the first failure
	Factor   float64
	Max      time.Duration
}

// DefaultRetryPolicy is 3 attempts, 1s doubling, capped at 10s.
func DefaultRetryPolicy() RetryPolicy {
	return RetryPolicy{Attempts: 3, Base: time.Second, Factor: 2, Max: 10 * time.Second}
}

// Delay is the wait after failed attempt n (1-based).
func (p RetryPolicy) Delay(n int) time.Duration {
	d := float64(p.Base)
	for i := 1; i < n; i++ {
		d *= p.Factor
		if p.Max > 0 && d >= float64(p.Max) {
			return p.Max
		}
	}
	if p.Max > 0 && time.Duration(d) > p.Max {
		return p.Max
	}
	return time.Duration(d)
}

// call runs fn under the retry policy and reports how many attempts were
// made.  ctx is expected to be detached from the HTTP caller already.
func (o *Orchestrator) call(ctx context.Context, draftID, op string, fn func(context.Context) error) (int, error) {
	attempts := o.retry.Attempts
	if attempts < 1 {
		attempts = 1
	}

	var err error
	for n := 1; n <= attempts; n++ {
		if err = fn(ctx); err == nil {
			return n, nil
		}
		if !provider.IsRetryable(err) || n == attempts {
			return n, err
		}

		wait := o.retry.Delay(n)
		metrics.ProviderRetriesTotal.WithLabelValues(op).Inc()
		o.record(ctx, audit.Event{Kind: audit.KindAttemptFailed, DraftID: draftID, Detail: op + ": " + errorKind(err)})
		o.log.Warn("provider call failed; backing off",
			zap.String("draft_id", draftID),
			zap.String("op", op),
			zap.Int("attempt", n),
			zap.Duration("backoff", wait),
			zap.Error(err))

		if sErr := o.sleep(ctx, wait); sErr != nil {
			return n, sErr
		}
	}
	return attempts, err
}

// sleepCtx waits d or until ctx is done.
func sleepCtx(ctx context.Context, d time.Duration) error {
	t := time.NewTimer(d)
	defer t.Stop()
	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-t.C:
		return nil
	}
}
