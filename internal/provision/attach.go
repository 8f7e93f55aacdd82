// internal/provision/attach.go
//
// Attachment: binding an anonymous draft to the user who signs in.
//
// Context
// -------
// Drafts are created before authentication.  Once the identity provider
// vouches for a user, the dashboard calls Attach.  Ownership is decided
// before anything is written: a draft already owned by someone else is
// refused with store.ErrAlreadyClaimed and left untouched, which stops a
// leaked draft id from being used to hijack a site.
//
// Workflow
// --------
//   - Same user again: success, no write.
//   - Draft at design_applied: claim, then design_applied → attached.
//   - Draft still provisioning: claim only.  The orchestrator finishes
//     design_applied → attached on the Advance after the design stage,
//     so no stage is ever skipped.
package provision

import (
	"context"
	"errors"
	"strings"

	"github.com/yanizio/launchpad/internal/audit"
	"github.com/yanizio/launchpad/internal/draft"
	"github.com/yanizio/launchpad/internal/draft/store"
	"github.com/yanizio/launchpad/internal/provider"
)

// Attach binds draft id to userID.
func (o *Orchestrator) Attach(ctx context.Context, id, userID string) (*draft.Draft, error) {
	userID = strings.TrimSpace(userID)
	if userID == "" {
		return nil, &draft.ValidationError{Fields: []draft.ErrorField{{Name: "user_id", Message: "is required"}}}
	}

	d, err := o.store.Get(ctx, id)
	if err != nil {
		return nil, err
	}
	switch d.Owner() {
	case userID:
	case "":
		if d, err = o.store.Claim(ctx, id, userID); err != nil {
			return nil, err
		}
		o.record(ctx, audit.Event{Kind: audit.KindClaimed, DraftID: id, UserID: userID, From: d.Status, To: d.Status})
	default:
		return nil, store.ErrAlreadyClaimed
	}

	if d.Status != draft.StatusDesignApplied {
		return d, nil
	}
	res, err := o.finishAttach(ctx, d)
	if err != nil {
		return nil, err
	}
	return res.Draft, nil
}

// finishAttach performs design_applied → attached for an owned draft.
func (o *Orchestrator) finishAttach(ctx context.Context, d *draft.Draft) (*Result, error) {
	out, err := o.commit(ctx, d, func(n *draft.Draft) {
		n.Status = draft.StatusAttached
	}, func(fresh *draft.Draft) bool {
		return fresh.Status == draft.StatusDesignApplied
	})
	if err != nil {
		if errors.Is(err, store.ErrStaleWrite) {
			// Someone else attached it.
			return o.conflict(ctx, d.ID, err)
		}
		return nil, err
	}
	o.transitioned(ctx, d.Status, out, "")
	return o.result(out), nil
}

// LoginLink issues an admin deep link for the draft's owner.
func (o *Orchestrator) LoginLink(ctx context.Context, id, userID string) (*provider.LoginToken, error) {
	d, err := o.store.Get(ctx, id)
	if err != nil {
		return nil, err
	}
	if userID == "" || d.Owner() != userID {
		return nil, ErrNotOwner
	}
	if d.ProviderSiteID == "" || !d.Status.AtOrBeyond(draft.StatusSiteReady) {
		return nil, ErrSiteNotReady
	}

	var tok *provider.LoginToken
	_, err = o.call(context.WithoutCancel(ctx), id, "login_token", func(ctx context.Context) error {
		var cErr error
		tok, cErr = o.provider.IssueLoginToken(ctx, d.ProviderSiteID)
		return cErr
	})
	if err != nil {
		return nil, err
	}
	if tok.AdminURL == "" {
		tok.AdminURL = d.AdminURL
	}
	o.record(ctx, audit.Event{Kind: audit.KindLoginIssued, DraftID: id, UserID: userID})
	return tok, nil
}
