// internal/worker/resumer.go
//
// Background resumer.
//
// Context
// -------
// Advance is driven by the dashboard while the customer watches.  When
// they close the tab, or the process restarts mid-stage, nothing would
// move the draft forward again.  The resumer closes that gap: every tick
// it asks the store for drafts with work available (unstarted stages,
// expired leases, builds to poll, owned drafts waiting for attachment)
// and advances each one.
//
// Workflow
// --------
//  1. Run ticks every Interval until ctx is cancelled.
//  2. Each tick lists up to Batch resumable ids.
//  3. Ids are advanced through an errgroup capped at Concurrency.  The
//     next tick starts only after every Advance of this one returned, so
//     one resumer never advances an id twice at once.
//
// Notes
// -----
//   - Advance is idempotent, so a resumer racing a page load is safe; the
//     loser observes a conflict and returns.
//   - Errors are logged and counted, never fatal to the loop.
package worker

import (
	"context"
	"time"

	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"

	"github.com/yanizio/launchpad/internal/metrics"
	"github.com/yanizio/launchpad/internal/provision"
)

// Lister is the store capability the resumer needs.
type Lister interface {
	ListResumable(ctx context.Context, now time.Time, limit int) ([]string, error)
}

// Advancer is the orchestrator capability the resumer needs.
type Advancer interface {
	Advance(ctx context.Context, id string) (*provision.Result, error)
}

type Options struct {
	Interval    time.Duration // 10s
	Batch       int           // 50
	Concurrency int           // 4
	Now         func() time.Time
	Logger      *zap.Logger
}

type Resumer struct {
	list    Lister
	advance Advancer
	opts    Options
	log     *zap.Logger
}

func NewResumer(list Lister, adv Advancer, opts Options) *Resumer {
	if opts.Interval <= 0 {
		opts.Interval = 10 * time.Second
	}
	if opts.Batch <= 0 {
		opts.Batch = 50
	}
	if opts.Concurrency <= 0 {
		opts.Concurrency = 4
	}
	if opts.Now == nil {
		opts.Now = time.Now
	}
	log := opts.Logger
	if log == nil {
		log = zap.L()
	}
	return &Resumer{list: list, advance: adv, opts: opts, log: log.Named("resumer")}
}

// Run blocks until ctx is cancelled.
func (r *Resumer) Run(ctx context.Context) {
	r.log.Info("resumer started",
		zap.Duration("interval", r.opts.Interval),
		zap.Int("concurrency", r.opts.Concurrency))

	t := time.NewTicker(r.opts.Interval)
	defer t.Stop()

	for {
		r.Tick(ctx)
		select {
		case <-ctx.Done():
			r.log.Info("resumer stopped")
			return
		case <-t.C:
		}
	}
}

// Tick performs one list-and-advance pass and returns how many drafts
// were advanced without error.
func (r *Resumer) Tick(ctx context.Context) int {
	ids, err := r.list.ListResumable(ctx, r.opts.Now(), r.opts.Batch)
	if err != nil {
		if ctx.Err() == nil {
			r.log.Warn("list resumable failed", zap.Error(err))
		}
		return 0
	}
	if len(ids) == 0 {
		return 0
	}

	var (
		g  errgroup.Group
		ok = make(chan struct{}, len(ids))
	)
	g.SetLimit(r.opts.Concurrency)
	for _, id := range ids {
		if ctx.Err() != nil {
			break
		}
		id := id
		g.Go(func() error {
			_, err := r.advance.Advance(ctx, id)
			switch {
			case err != nil:
				metrics.ResumerAdvancesTotal.WithLabelValues("error").Inc()
				r.log.Warn("advance failed", zap.String("draft_id", id), zap.Error(err))
			default:
				metrics.ResumerAdvancesTotal.WithLabelValues("ok").Inc()
				ok <- struct{}{}
			}
			return nil
		})
	}
	_ = g.Wait()
	close(ok)
	return len(ok)
}
