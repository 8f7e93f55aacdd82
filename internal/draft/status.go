// internal/draft/status.go
//
// Provisioning status enum and the transition table.
//
// Context
// -------
// The forward path is strictly linear:
//
//	created → sitemap_pending → sitemap_ready → site_pending →
//	site_ready → design_applied → attached
//
// Any `_pending` state may drop to `failed`.  A failed draft returns to
// the pending state it failed from on an explicit retry, and nowhere
// else.  CanTransition is the single source of truth; the store and the
// orchestrator both consult it.
package draft

import (
	"errors"
	"fmt"
)

// Status is the provisioning stage a Draft currently holds.
type Status string

const (
	StatusCreated        Status = "created"
	StatusSitemapPending Status = "sitemap_pending"
	StatusSitemapReady   Status = "sitemap_ready"
	StatusSitePending    Status = "site_pending"
	StatusSiteReady      Status = "site_ready"
	StatusDesignApplied  Status = "design_applied"
	StatusAttached       Status = "attached"
	StatusFailed         Status = "failed"
)

// ErrInvalidTransition is returned when a status change would skip a
// stage or leave a terminal state.
var ErrInvalidTransition = errors.New("invalid status transition")

// forward lists the linear path; index order is stage order.
var forward = []Status{
	StatusCreated,
	StatusSitemapPending,
	StatusSitemapReady,
	StatusSitePending,
	StatusSiteReady,
	StatusDesignApplied,
	StatusAttached,
}

func (s Status) rank() int {
	for i, f := range forward {
		if f == s {
			return i
		}
	}
	return -1
}

// Valid reports whether s is a known status.
func (s Status) Valid() bool { return s == StatusFailed || s.rank() >= 0 }

// IsPending reports whether s is one of the in-flight `_pending` states.
func (s Status) IsPending() bool {
	return s == StatusSitemapPending || s == StatusSitePending
}

// IsTerminal reports whether no automatic progress is possible from s.
func (s Status) IsTerminal() bool { return s == StatusAttached || s == StatusFailed }

// AtOrBeyond reports whether s sits at or after other on the forward
// path.  Failed is never at or beyond anything.
func (s Status) AtOrBeyond(other Status) bool {
	a, b := s.rank(), other.rank()
	return a >= 0 && b >= 0 && a >= b
}

// CanTransition validates from → to.  failedFrom is only consulted when
// leaving StatusFailed.  Same-status writes are allowed for pending
// states (lease re-claim) and for field-only updates.
func CanTransition(from, to, failedFrom Status) error {
	switch {
	case from == to:
		return nil
	case to == StatusFailed:
		if from.IsPending() {
			return nil
		}
	case from == StatusFailed:
		if failedFrom.IsPending() && to == failedFrom {
			return nil
		}
	default:
		if a, b := from.rank(), to.rank(); a >= 0 && b == a+1 {
			return nil
		}
	}
	return fmt.Errorf("%w: %s → %s", ErrInvalidTransition, from, to)
}
