// internal/draft/store/store.go
//
// Persistence contract for drafts.
//
// Context
// -------
// Every status change is a compare-and-swap keyed on the (status, version)
// pair the writer last read.  Two writers racing on one draft therefore
// resolve to exactly one winner; the loser receives ErrStaleWrite and is
// expected to re-read.
//
// Ownership is written only through Claim, which never bumps the version.
// A stage that is in flight while the user attaches must still be able to
// commit its provider result, so Update leaves owner_user_id untouched.
//
// Notes
// -----
//   - Subdomains are unique among drafts that are not failed.  A failed
//     draft frees its subdomain; retrying it re-occupies the name and can
//     therefore fail with ErrDuplicateSubdomain.
//   - Callers stamp CreatedAt and UpdatedAt.  Stores persist what they get.
//   - Oxford commas, two spaces after periods.
package store

import (
	"context"
	"errors"
	"time"

	"github.com/yanizio/launchpad/internal/draft"
)

var (
	ErrNotFound           = errors.New("draft not found")
	ErrStaleWrite         = errors.New("draft changed since it was read")
	ErrDuplicateSubdomain = errors.New("subdomain already in use")
	ErrAlreadyClaimed     = errors.New("draft already claimed by another user")
	ErrDuplicateRequest   = errors.New("idempotency key already used")
)

// Store is implemented by SQL (production) and Memory (tests, local dev).
type Store interface {
	// Create inserts d with Version 1.
	Create(ctx context.Context, d *draft.Draft) error

	Get(ctx context.Context, id string) (*draft.Draft, error)

	// GetByIdempotencyKey returns ErrNotFound when no draft carries key.
	GetByIdempotencyKey(ctx context.Context, key string) (*draft.Draft, error)

	// Update writes next iff the stored row still matches prev.Status and
	// prev.Version, and the status move is legal.  The returned draft has
	// the bumped version.
	Update(ctx context.Context, prev, next *draft.Draft) (*draft.Draft, error)

	// Claim sets the owner when unset.  Claiming again as the same user
	// succeeds; any other user receives ErrAlreadyClaimed.
	Claim(ctx context.Context, id, userID string) (*draft.Draft, error)

	// ListResumable returns ids of drafts that an Advance could move
	// forward at now, oldest update first.
	ListResumable(ctx context.Context, now time.Time, limit int) ([]string, error)
}

// checkUpdate applies the rules both implementations share.
func checkUpdate(prev, next *draft.Draft) error {
	if prev == nil || next == nil || prev.ID == "" || prev.ID != next.ID {
		return errors.New("store: update requires matching draft ids")
	}
	return draft.CanTransition(prev.Status, next.Status, prev.FailedFrom)
}

// resumable reports whether an Advance could make progress on d.
func resumable(d *draft.Draft, now time.Time) bool {
	switch d.Status {
	case draft.StatusCreated, draft.StatusSitemapReady, draft.StatusSiteReady:
		return true
	case draft.StatusSitemapPending, draft.StatusSitePending:
		return !d.LeaseActive(now)
	case draft.StatusDesignApplied:
		return d.OwnerUserID != nil
	}
	return false
}
