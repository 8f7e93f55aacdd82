// internal/provision/orchestrator.go
//
// Provisioning orchestrator.
//
// Context
// -------
// The orchestrator drives one Draft through
//
//	created → sitemap_pending → sitemap_ready → site_pending →
//	site_ready → design_applied → attached
//
// one stage per Advance call.  It owns the retry policy, the stage
// leases, and the translation of provider failures into user-facing
// reasons.  Every write goes through the store's compare-and-swap, so any
// number of callers (page loads, the background resumer, an operator)
// may call Advance on the same draft concurrently.
//
// Workflow
// --------
//  1. main builds one Orchestrator with an injected provider client,
//     store, and audit sink.  Nothing here is package-global.
//  2. CreateDraft validates the brief, picks a free subdomain, and
//     persists the draft in `created`.
//  3. Advance performs exactly the next stage, or returns immediately
//     when the draft has nothing to do or another caller holds the lease.
//  4. Retry moves a failed draft back to the pending state it failed in.
//
// Notes
// -----
//   - Provider calls run on a context detached from the caller, so a
//     dropped HTTP request never orphans provider-side work.  The client
//     bounds each call with its own timeout.
//   - Build-status polls for one draft are collapsed with singleflight;
//     every other stage is serialised by its lease instead.
//   - Times are truncated to milliseconds to match DATETIME(3); lease
//     identity is compared by value after a re-read.
//   - Oxford commas, two spaces after periods.
package provision

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"
	"golang.org/x/sync/singleflight"

	"github.com/yanizio/launchpad/internal/audit"
	"github.com/yanizio/launchpad/internal/draft"
	"github.com/yanizio/launchpad/internal/draft/store"
	"github.com/yanizio/launchpad/internal/metrics"
	"github.com/yanizio/launchpad/internal/provider"
)

// SiteProvider is the subset of *provider.Client the orchestrator uses.
type SiteProvider interface {
	GenerateSitemap(ctx context.Context, in provider.SitemapInput) (*provider.SitemapResult, error)
	CreateSiteFromSitemap(ctx context.Context, sitemapID string, hints provider.DesignHints) (*provider.SiteResult, error)
	GetSiteStatus(ctx context.Context, siteID string) (*provider.SiteStatus, error)
	ApplyDesign(ctx context.Context, websiteID string, d draft.Design) error
	IssueLoginToken(ctx context.Context, siteID string) (*provider.LoginToken, error)
}

// Options wires an Orchestrator.  Zero values take the defaults noted.
type Options struct {
	Store    store.Store
	Provider SiteProvider
	Sink     audit.Sink  // audit.Discard{}
	Logger   *zap.Logger // zap.L()

	Retry            RetryPolicy   // DefaultRetryPolicy()
	Lease            time.Duration // 2m
	BuildTimeout     time.Duration // 15m
	MaxManualRetries int           // 5
	DefaultRegion    string        // "us"

	Now   func() time.Time                            // time.Now
	Sleep func(ctx context.Context, d time.Duration) error // sleepCtx
	NewID func() string                               // uuid.NewString
}

// Orchestrator is safe for concurrent use.
type Orchestrator struct {
	store    store.Store
	provider SiteProvider
	sink     audit.Sink
	log      *zap.Logger

	retry            RetryPolicy
	lease            time.Duration
	buildTimeout     time.Duration
	maxManualRetries int
	defaultRegion    string

	now   func() time.Time
	sleep func(ctx context.Context, d time.Duration) error
	newID func() string

	polls singleflight.Group // build-status polls, keyed by draft id
}

// New validates opts and fills defaults.
func New(opts Options) (*Orchestrator, error) {
	if opts.Store == nil || opts.Provider == nil {
		return nil, errors.New("provision: store and provider are required")
	}
	o := &Orchestrator{
		store:            opts.Store,
		provider:         opts.Provider,
		sink:             opts.Sink,
		log:              opts.Logger,
		retry:            opts.Retry,
		lease:            opts.Lease,
		buildTimeout:     opts.BuildTimeout,
		maxManualRetries: opts.MaxManualRetries,
		defaultRegion:    opts.DefaultRegion,
		now:              opts.Now,
		sleep:            opts.Sleep,
		newID:            opts.NewID,
	}
	if o.sink == nil {
		o.sink = audit.Discard{}
	}
	if o.log == nil {
		o.log = zap.L()
	}
	o.log = o.log.Named("provision")
	if o.retry.Attempts == 0 {
		o.retry = DefaultRetryPolicy()
	}
	if o.lease <= 0 {
		o.lease = 2 * time.Minute
	}
	if o.buildTimeout <= 0 {
		o.buildTimeout = 15 * time.Minute
	}
	if o.maxManualRetries <= 0 {
		o.maxManualRetries = 5
	}
	if o.defaultRegion == "" {
		o.defaultRegion = "us"
	}
	if o.now == nil {
		o.now = time.Now
	}
	if o.sleep == nil {
		o.sleep = sleepCtx
	}
	if o.newID == nil {
		o.newID = uuid.NewString
	}
	return o, nil
}

// Result is what Advance and the other stage entry points report.
type Result struct {
	Draft *draft.Draft
	// Error is the human-readable failure or design-error text, empty
	// when the last stage succeeded.
	Error string
	// Conflict is set when another caller moved the draft first.  Draft
	// then holds the fresh snapshot.
	Conflict bool
}

func (o *Orchestrator) result(d *draft.Draft) *Result {
	r := &Result{Draft: d}
	switch {
	case d.Status == draft.StatusFailed:
		r.Error = d.FailureReason
	case d.DesignError != "":
		r.Error = d.DesignError
	}
	return r
}

/*──────────────────────────── reads ───────────────────────────────────────*/

// Get returns the current snapshot.
func (o *Orchestrator) Get(ctx context.Context, id string) (*draft.Draft, error) {
	return o.store.Get(ctx, id)
}

/*──────────────────────────── create ──────────────────────────────────────*/

// CreateInput is everything CreateDraft accepts.
type CreateInput struct {
	Brief          draft.Brief
	Design         draft.Design // optional initial look and feel
	Region         string       // empty → configured default
	IdempotencyKey string
	ClientIP       string
	Country        string
}

// maxCounterCandidates bounds the name-2 … name-N attempts before the
// timestamp suffix is used.
const maxCounterCandidates = 5

// CreateDraft validates in, derives a free subdomain, and persists a new
// draft in `created`.  A repeated IdempotencyKey returns the original
// draft unchanged.
func (o *Orchestrator) CreateDraft(ctx context.Context, in CreateInput) (*draft.Draft, error) {
	if in.IdempotencyKey != "" {
		if d, err := o.store.GetByIdempotencyKey(ctx, in.IdempotencyKey); err == nil {
			return d, nil
		} else if !errors.Is(err, store.ErrNotFound) {
			return nil, err
		}
	}

	brief, err := draft.NormalizeBrief(in.Brief)
	if err != nil {
		return nil, err
	}
	if err := draft.ValidateDesign(in.Design); err != nil {
		return nil, err
	}

	region := in.Region
	if region == "" {
		region = o.defaultRegion
	}
	base, explicit := draft.MakeSubdomain(brief)
	now := o.clock()

	d := &draft.Draft{
		ID:             o.newID(),
		Brief:          brief,
		Status:         draft.StatusCreated,
		Region:         region,
		Design:         in.Design,
		IdempotencyKey: in.IdempotencyKey,
		ClientIP:       in.ClientIP,
		Country:        in.Country,
		CreatedAt:      now,
		UpdatedAt:      now,
	}

	// Counter candidates first, then two timestamp candidates.
	for n := 1; n <= maxCounterCandidates+2; n++ {
		d.Subdomain = base
		if n > 1 {
			d.Subdomain = draft.Disambiguate(base, n, maxCounterCandidates, o.now().Add(time.Duration(n)*time.Millisecond))
		}

		err = o.store.Create(ctx, d)
		switch {
		case err == nil:
			metrics.DraftsCreatedTotal.Inc()
			o.record(ctx, audit.Event{Kind: audit.KindCreated, DraftID: d.ID, To: d.Status, Detail: d.Subdomain})
			o.log.Info("draft created",
				zap.String("draft_id", d.ID),
				zap.String("subdomain", d.Subdomain),
				zap.String("region", d.Region))
			return d, nil

		case errors.Is(err, store.ErrDuplicateRequest) && in.IdempotencyKey != "":
			// Lost a race with an identical submission.
			return o.store.GetByIdempotencyKey(ctx, in.IdempotencyKey)

		case errors.Is(err, store.ErrDuplicateSubdomain):
			if explicit {
				return nil, fmt.Errorf("subdomain %q: %w", base, err)
			}
			continue

		default:
			return nil, err
		}
	}
	return nil, fmt.Errorf("no free subdomain for %q: %w", base, store.ErrDuplicateSubdomain)
}

/*──────────────────────────── retry ───────────────────────────────────────*/

// Retry moves a failed draft back to the pending state it failed from.
// The stage itself runs on the next Advance.
func (o *Orchestrator) Retry(ctx context.Context, id string) (*draft.Draft, error) {
	d, err := o.store.Get(ctx, id)
	if err != nil {
		return nil, err
	}
	if d.Status != draft.StatusFailed {
		return nil, fmt.Errorf("%w: status is %s", ErrNotFailed, d.Status)
	}
	if d.RetryCount >= o.maxManualRetries {
		return nil, ErrRetriesExhausted
	}

	origin := d.FailedFrom
	next := d.Clone()
	next.Status = origin
	next.FailedFrom = ""
	next.FailureReason = ""
	next.LastErrorKind = ""
	next.StageAttempts = 0
	next.LeaseUntil = nil
	next.RetryCount++
	next.UpdatedAt = o.clock()
	if origin == draft.StatusSitePending {
		// A build that ended in error is started over, not polled again.
		// The old ids stay until create-site replaces them.
		next.ProviderBuildStatus = ""
	}

	out, err := o.store.Update(ctx, d, next)
	if err != nil {
		return nil, err
	}
	o.transitioned(ctx, d.Status, out, "")
	o.record(ctx, audit.Event{Kind: audit.KindRetried, DraftID: id, From: d.Status, To: out.Status,
		Detail: fmt.Sprintf("manual retry %d", out.RetryCount)})
	return out, nil
}

/*──────────────────────────── shared helpers ──────────────────────────────*/

// clock returns now truncated to the store's precision.
func (o *Orchestrator) clock() time.Time {
	return o.now().UTC().Truncate(time.Millisecond)
}

func (o *Orchestrator) record(ctx context.Context, ev audit.Event) {
	if ev.OccurredAt.IsZero() {
		ev.OccurredAt = o.clock()
	}
	o.sink.Record(ctx, ev)
}

// transitioned counts, logs, and audits a committed status change.
// Same-status writes are skipped.
func (o *Orchestrator) transitioned(ctx context.Context, from draft.Status, d *draft.Draft, detail string) {
	if from == d.Status {
		return
	}
	metrics.DraftTransitionsTotal.WithLabelValues(string(from), string(d.Status)).Inc()

	kind := audit.KindTransition
	if d.Status == draft.StatusFailed {
		kind = audit.KindFailed
	}
	o.record(ctx, audit.Event{Kind: kind, DraftID: d.ID, From: from, To: d.Status, Detail: detail})
	o.log.Info("draft transition",
		zap.String("draft_id", d.ID),
		zap.String("from", string(from)),
		zap.String("to", string(d.Status)))
}

// maxCommitLoops bounds re-read/re-apply cycles in commit.
const maxCommitLoops = 5

// commit writes mutate(prev) through the store CAS.  On ErrStaleWrite it
// re-reads and, while keep(fresh) holds, re-applies mutate to the fresh
// snapshot.  keep decides whether the caller's work is still valid
// against a row someone else touched.
func (o *Orchestrator) commit(ctx context.Context, prev *draft.Draft, mutate func(*draft.Draft), keep func(*draft.Draft) bool) (*draft.Draft, error) {
	cur := prev
	for i := 0; ; i++ {
		next := cur.Clone()
		mutate(next)
		next.UpdatedAt = o.clock()

		out, err := o.store.Update(ctx, cur, next)
		if err == nil {
			return out, nil
		}
		if !errors.Is(err, store.ErrStaleWrite) || i+1 >= maxCommitLoops {
			return nil, err
		}
		fresh, gErr := o.store.Get(ctx, prev.ID)
		if gErr != nil {
			return nil, gErr
		}
		if !keep(fresh) {
			return fresh, store.ErrStaleWrite
		}
		cur = fresh
	}
}

// sameLease reports whether fresh still carries the lease held in mine.
func sameLease(mine, fresh *draft.Draft) bool {
	return mine.Status == fresh.Status &&
		mine.LeaseUntil != nil && fresh.LeaseUntil != nil &&
		mine.LeaseUntil.Equal(*fresh.LeaseUntil)
}
