// internal/provision/advance.go
//
// Stage engine.
//
// Every stage follows the same shape:
//
//  1. Read the draft.  If it is already past the stage, return it.
//  2. CAS into the stage's working status with a fresh lease.  Losing
//     that CAS means another caller got there first; return without
//     acting.
//  3. Call the provider under the retry policy on a detached context.
//  4. CAS the outcome in.  The lease proves the write is still ours even
//     if unrelated fields changed meanwhile.
//
// The site stage has one extra branch: the provider may answer
// "building", in which case ids are stored, the lease is dropped, and
// later Advance calls poll the build.
package provision

import (
	"context"
	"errors"
	"fmt"

	"go.uber.org/zap"

	"github.com/yanizio/launchpad/internal/audit"
	"github.com/yanizio/launchpad/internal/draft"
	"github.com/yanizio/launchpad/internal/draft/store"
	"github.com/yanizio/launchpad/internal/provider"
)

// Stage names one provider-backed step.
type Stage string

const (
	StageSitemap Stage = "sitemap"
	StageSite    Stage = "site"
	StageDesign  Stage = "design"
)

// Advance performs exactly the next piece of work for the draft, or
// returns its current snapshot when there is none.
func (o *Orchestrator) Advance(ctx context.Context, id string) (*Result, error) {
	d, err := o.store.Get(ctx, id)
	if err != nil {
		return nil, err
	}

	switch d.Status {
	case draft.StatusCreated, draft.StatusSitemapPending:
		return o.runStage(ctx, d, StageSitemap)
	case draft.StatusSitemapReady, draft.StatusSitePending:
		return o.runStage(ctx, d, StageSite)
	case draft.StatusSiteReady:
		return o.runStage(ctx, d, StageDesign)
	case draft.StatusDesignApplied:
		if d.OwnerUserID != nil {
			return o.finishAttach(ctx, d)
		}
	}
	return o.result(d), nil
}

// RunStage runs one named stage.  Asking for a stage whose prerequisite
// has not been reached fails with draft.ErrInvalidTransition; asking for
// one already completed returns the snapshot unchanged.
func (o *Orchestrator) RunStage(ctx context.Context, id string, stage Stage) (*Result, error) {
	d, err := o.store.Get(ctx, id)
	if err != nil {
		return nil, err
	}
	pre, ok := stagePre[stage]
	if !ok {
		return nil, fmt.Errorf("provision: unknown stage %q", stage)
	}
	if d.Status == draft.StatusFailed || !d.Status.AtOrBeyond(pre) {
		return nil, fmt.Errorf("%w: %s stage needs %s, draft is %s",
			draft.ErrInvalidTransition, stage, pre, d.Status)
	}
	return o.runStage(ctx, d, stage)
}

var stagePre = map[Stage]draft.Status{
	StageSitemap: draft.StatusCreated,
	StageSite:    draft.StatusSitemapReady,
	StageDesign:  draft.StatusSiteReady,
}

// stageWork maps a stage to the status it runs in.  The design stage has
// no pending status of its own; it leases site_ready.
var stageWork = map[Stage]draft.Status{
	StageSitemap: draft.StatusSitemapPending,
	StageSite:    draft.StatusSitePending,
	StageDesign:  draft.StatusSiteReady,
}

func (o *Orchestrator) runStage(ctx context.Context, d *draft.Draft, stage Stage) (*Result, error) {
	work := stageWork[stage]
	pre := stagePre[stage]

	switch {
	case d.Status != pre && d.Status != work:
		// Already past this stage.
		return o.result(d), nil
	case d.Status == work && d.LeaseActive(o.now()):
		return o.result(d), nil
	case stage == StageSite && d.Status == work && building(d):
		return o.pollBuild(ctx, d)
	case stage == StageDesign && (d.Design.IsZero() || d.Design.Hash() == d.DesignAppliedHash):
		return o.designDone(ctx, d, d.DesignAppliedHash, "", 0)
	}

	held, err := o.acquire(ctx, d, work)
	if err != nil {
		return o.conflict(ctx, d.ID, err)
	}

	// Detach so a vanished HTTP caller cannot abandon provider work.
	pctx := context.WithoutCancel(ctx)

	switch stage {
	case StageSitemap:
		return o.doSitemap(pctx, held)
	case StageSite:
		return o.doSite(pctx, held)
	default:
		return o.doDesign(pctx, held)
	}
}

// building reports whether d carries an asynchronous build to poll.
func building(d *draft.Draft) bool {
	return d.ProviderSiteID != "" && d.ProviderBuildStatus == string(provider.BuildBuilding)
}

// acquire CASes d into work with a new lease.
func (o *Orchestrator) acquire(ctx context.Context, d *draft.Draft, work draft.Status) (*draft.Draft, error) {
	lease := o.clock().Add(o.lease)
	next := d.Clone()
	next.Status = work
	next.LeaseUntil = &lease
	next.UpdatedAt = o.clock()
	if d.Status != work {
		next.StageAttempts = 0
	}
	out, err := o.store.Update(ctx, d, next)
	if err != nil {
		return nil, err
	}
	o.transitioned(ctx, d.Status, out, "")
	return out, nil
}

// conflict turns a lost CAS into a no-op result.
func (o *Orchestrator) conflict(ctx context.Context, id string, err error) (*Result, error) {
	if !errors.Is(err, store.ErrStaleWrite) {
		return nil, err
	}
	fresh, gErr := o.store.Get(ctx, id)
	if gErr != nil {
		return nil, gErr
	}
	r := o.result(fresh)
	r.Conflict = true
	return r, nil
}

/*──────────────────────────── sitemap ─────────────────────────────────────*/

func (o *Orchestrator) doSitemap(ctx context.Context, held *draft.Draft) (*Result, error) {
	var res *provider.SitemapResult
	attempts, err := o.call(ctx, held.ID, "generate_sitemap", func(ctx context.Context) error {
		var cErr error
		res, cErr = o.provider.GenerateSitemap(ctx, provider.SitemapInput{
			BusinessType:        held.Brief.BusinessType,
			BusinessName:        held.Brief.BusinessName,
			BusinessDescription: held.Brief.BusinessDescription,
			Keyphrase:           held.Design.SEO.Keyphrase,
		})
		return cErr
	})
	if err != nil {
		return o.fail(ctx, held, "sitemap generation", attempts, err)
	}

	return o.complete(ctx, held, func(n *draft.Draft) {
		n.Status = draft.StatusSitemapReady
		n.Sitemap = &draft.Sitemap{ID: res.SitemapID, Pages: res.Pages}
		n.StageAttempts = attempts
	})
}

/*──────────────────────────── site ────────────────────────────────────────*/

func (o *Orchestrator) doSite(ctx context.Context, held *draft.Draft) (*Result, error) {
	if held.Sitemap == nil || held.Sitemap.ID == "" {
		// Cannot happen through the state machine; fail loudly if it does.
		return o.fail(ctx, held, "site creation", 0, errors.New("sitemap missing"))
	}

	var res *provider.SiteResult
	attempts, err := o.call(ctx, held.ID, "create_site", func(ctx context.Context) error {
		var cErr error
		res, cErr = o.provider.CreateSiteFromSitemap(ctx, held.Sitemap.ID, provider.DesignHints{
			PrimaryColor:   held.Design.Colors.Primary,
			SecondaryColor: held.Design.Colors.Secondary,
			HeadingFont:    held.Design.Fonts.Heading,
			BodyFont:       held.Design.Fonts.Body,
		})
		return cErr
	})
	if err != nil {
		return o.fail(ctx, held, "site creation", attempts, err)
	}
	if res.Status == provider.BuildError {
		return o.fail(ctx, held, "site creation", attempts,
			&provider.Error{Kind: provider.KindRejected, Op: "create_site", Message: "site build failed"})
	}

	return o.complete(ctx, held, func(n *draft.Draft) {
		n.ProviderSiteID = res.SiteID
		n.ProviderWebsiteID = res.WebsiteID
		n.ProviderBuildStatus = string(res.Status)
		n.SiteURL = res.SiteURL
		n.AdminURL = res.AdminURL
		n.StageAttempts = attempts
		if res.Status == provider.BuildActive {
			n.Status = draft.StatusSiteReady
		}
		// Building: stay in site_pending without a lease so the next
		// Advance polls.
	})
}

// pollBuild checks an asynchronous build.  It takes no lease; status
// polls are idempotent and the outcome write is a CAS.  A build that has
// not settled within buildTimeout fails, whether the provider still says
// "building" or keeps answering status polls with transient errors.
//
// Concurrent polls of one draft (a watching dashboard plus the resumer)
// share a single provider call.
func (o *Orchestrator) pollBuild(ctx context.Context, d *draft.Draft) (*Result, error) {
	v, err, shared := o.polls.Do(d.ID, func() (any, error) {
		return o.pollOnce(context.WithoutCancel(ctx), d)
	})
	if err != nil {
		return nil, err
	}
	r := v.(*Result)
	if shared {
		cp := *r
		cp.Draft = r.Draft.Clone()
		r = &cp
	}
	return r, nil
}

func (o *Orchestrator) pollOnce(ctx context.Context, d *draft.Draft) (*Result, error) {
	overdue := o.now().Sub(d.UpdatedAt) > o.buildTimeout

	st, err := o.provider.GetSiteStatus(ctx, d.ProviderSiteID)
	if err != nil {
		if !provider.IsRetryable(err) || overdue {
			return o.failFrom(ctx, d, "site creation", d.StageAttempts, err)
		}
		o.log.Warn("site status poll failed",
			zap.String("draft_id", d.ID),
			zap.Error(err))
		return o.result(d), nil
	}

	switch st.Status {
	case provider.BuildActive:
		out, cErr := o.commit(ctx, d, func(n *draft.Draft) {
			n.Status = draft.StatusSiteReady
			n.ProviderBuildStatus = string(st.Status)
			n.LeaseUntil = nil
		}, func(fresh *draft.Draft) bool { return fresh.Status == draft.StatusSitePending && fresh.LeaseUntil == nil })
		if cErr != nil {
			return o.conflict(ctx, d.ID, cErr)
		}
		o.transitioned(ctx, d.Status, out, "")
		return o.result(out), nil

	case provider.BuildError:
		return o.failFrom(ctx, d, "site creation", d.StageAttempts,
			&provider.Error{Kind: provider.KindRejected, Op: "site_status", Message: "site build failed"})

	default:
		if overdue {
			return o.failFrom(ctx, d, "site creation", d.StageAttempts,
				&provider.Error{Kind: provider.KindTimeout, Op: "site_status", Message: "site build did not finish"})
		}
		return o.result(d), nil
	}
}

/*──────────────────────────── design ──────────────────────────────────────*/

func (o *Orchestrator) doDesign(ctx context.Context, held *draft.Draft) (*Result, error) {
	design := held.Design
	attempts, err := o.call(ctx, held.ID, "update_design", func(ctx context.Context) error {
		return o.provider.ApplyDesign(ctx, held.ProviderWebsiteID, design)
	})
	if err != nil {
		o.log.Warn("design apply failed; site stays usable",
			zap.String("draft_id", held.ID),
			zap.Int("attempts", attempts),
			zap.Error(err))
		return o.designDone(ctx, held, "", reason("design update", err), attempts)
	}
	return o.designDone(ctx, held, design.Hash(), "", attempts)
}

const designOutdated = "The design changed while it was being applied. Retry the design update to publish the latest version."

// designDone moves site_ready → design_applied.  A failed design never
// blocks provisioning; it is recorded in DesignError for a manual retry.
func (o *Orchestrator) designDone(ctx context.Context, held *draft.Draft, hash, designErr string, attempts int) (*Result, error) {
	keep := func(fresh *draft.Draft) bool { return sameLease(held, fresh) }
	if held.LeaseUntil == nil {
		keep = func(*draft.Draft) bool { return false }
	}
	out, err := o.commit(ctx, held, func(n *draft.Draft) {
		n.Status = draft.StatusDesignApplied
		n.DesignAppliedHash = hash
		n.DesignError = designErr
		n.LeaseUntil = nil
		n.StageAttempts = attempts
		if hash != "" && n.Design.Hash() != hash {
			// The stored design moved on while the old one was applied.
			n.DesignError = designOutdated
		}
	}, keep)
	if err != nil {
		return o.conflict(ctx, held.ID, err)
	}
	designErr = out.DesignError
	o.transitioned(ctx, held.Status, out, designErr)
	if designErr != "" {
		o.record(ctx, audit.Event{Kind: audit.KindDesignError, DraftID: out.ID, Detail: designErr})
	}
	return o.result(out), nil
}

/*──────────────────────────── outcomes ────────────────────────────────────*/

// complete commits a successful stage result while the lease is ours.
func (o *Orchestrator) complete(ctx context.Context, held *draft.Draft, mutate func(*draft.Draft)) (*Result, error) {
	out, err := o.commit(ctx, held, func(n *draft.Draft) {
		mutate(n)
		n.LeaseUntil = nil
		n.FailureReason = ""
		n.LastErrorKind = ""
	}, func(fresh *draft.Draft) bool { return sameLease(held, fresh) })
	if err != nil {
		return o.conflict(ctx, held.ID, err)
	}
	o.transitioned(ctx, held.Status, out, "")
	return o.result(out), nil
}

// fail commits pending → failed while the lease is ours.
func (o *Orchestrator) fail(ctx context.Context, held *draft.Draft, stage string, attempts int, cause error) (*Result, error) {
	return o.failWith(ctx, held, stage, attempts, cause, func(fresh *draft.Draft) bool { return sameLease(held, fresh) })
}

// failFrom commits pending → failed for a lease-less poll.
func (o *Orchestrator) failFrom(ctx context.Context, d *draft.Draft, stage string, attempts int, cause error) (*Result, error) {
	return o.failWith(ctx, d, stage, attempts, cause, func(*draft.Draft) bool { return false })
}

func (o *Orchestrator) failWith(ctx context.Context, d *draft.Draft, stage string, attempts int, cause error, keep func(*draft.Draft) bool) (*Result, error) {
	why := reason(stage, cause)
	o.log.Warn("stage failed",
		zap.String("draft_id", d.ID),
		zap.String("stage", stage),
		zap.Int("attempts", attempts),
		zap.Error(cause))

	out, err := o.commit(ctx, d, func(n *draft.Draft) {
		n.Status = draft.StatusFailed
		n.FailedFrom = d.Status
		n.FailureReason = why
		n.LastErrorKind = errorKind(cause)
		n.StageAttempts = attempts
		n.LeaseUntil = nil
	}, keep)
	if err != nil {
		return o.conflict(ctx, d.ID, err)
	}
	o.transitioned(ctx, d.Status, out, errorKind(cause))
	return o.result(out), nil
}
