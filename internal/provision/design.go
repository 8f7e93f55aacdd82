// internal/provision/design.go
//
// Design edits outside the stage flow.
//
//   - UpdateDesign replaces the stored design while the design stage has
//     not run yet.  The next stages pick it up (site creation sends the
//     colors and fonts as hints; the design stage applies all of it).
//     While the design stage holds its lease the design is locked.
//   - RetryDesign re-applies the design after design_applied, either
//     because the first attempt failed or because the customer changed
//     it.  The design hash makes an identical re-apply a no-op.
package provision

import (
	"context"
	"errors"
	"fmt"

	"github.com/yanizio/launchpad/internal/audit"
	"github.com/yanizio/launchpad/internal/draft"
	"github.com/yanizio/launchpad/internal/draft/store"
)

// UpdateDesign stores d on a draft that has not reached design_applied.
func (o *Orchestrator) UpdateDesign(ctx context.Context, id string, d draft.Design) (*draft.Draft, error) {
	if err := draft.ValidateDesign(d); err != nil {
		return nil, err
	}
	cur, err := o.store.Get(ctx, id)
	if err != nil {
		return nil, err
	}
	if o.designLocked(cur) {
		return nil, ErrDesignLocked
	}

	out, err := o.commit(ctx, cur, func(n *draft.Draft) {
		n.Design = d
	}, func(fresh *draft.Draft) bool {
		return !o.designLocked(fresh)
	})
	if err != nil {
		if errors.Is(err, store.ErrStaleWrite) {
			return nil, ErrDesignLocked
		}
		return nil, err
	}
	o.record(ctx, audit.Event{Kind: audit.KindDesignUpdated, DraftID: id})
	return out, nil
}

// designLocked reports whether d's design can no longer be edited in
// place: the design stage is running or done.
func (o *Orchestrator) designLocked(d *draft.Draft) bool {
	if d.Status.AtOrBeyond(draft.StatusDesignApplied) {
		return true
	}
	return d.Status == draft.StatusSiteReady && d.LeaseActive(o.now())
}

// RetryDesign re-applies the stored design, or replace when non-nil, to
// a live site.
func (o *Orchestrator) RetryDesign(ctx context.Context, id string, replace *draft.Design) (*Result, error) {
	if replace != nil {
		if err := draft.ValidateDesign(*replace); err != nil {
			return nil, err
		}
	}
	cur, err := o.store.Get(ctx, id)
	if err != nil {
		return nil, err
	}
	if cur.Status != draft.StatusDesignApplied && cur.Status != draft.StatusAttached {
		return nil, fmt.Errorf("%w: design retry needs design_applied, draft is %s",
			draft.ErrInvalidTransition, cur.Status)
	}

	design := cur.Design
	if replace != nil {
		design = *replace
	}
	hash := design.Hash()
	if hash == cur.DesignAppliedHash && cur.DesignError == "" {
		return o.result(cur), nil
	}

	var (
		applyErr error
		attempts int
	)
	if !design.IsZero() {
		attempts, applyErr = o.call(context.WithoutCancel(ctx), id, "update_design", func(ctx context.Context) error {
			return o.provider.ApplyDesign(ctx, cur.ProviderWebsiteID, design)
		})
	}

	out, err := o.commit(ctx, cur, func(n *draft.Draft) {
		n.Design = design
		n.StageAttempts = attempts
		if applyErr != nil {
			n.DesignError = reason("design update", applyErr)
			return
		}
		n.DesignError = ""
		n.DesignAppliedHash = hash
	}, func(fresh *draft.Draft) bool {
		return fresh.Status == draft.StatusDesignApplied || fresh.Status == draft.StatusAttached
	})
	if err != nil {
		return nil, err
	}
	if out.DesignError != "" {
		o.record(ctx, audit.Event{Kind: audit.KindDesignError, DraftID: id, Detail: out.DesignError})
	} else {
		o.record(ctx, audit.Event{Kind: audit.KindDesignUpdated, DraftID: id, Detail: "applied"})
	}
	return o.result(out), nil
}
