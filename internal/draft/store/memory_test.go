// internal/draft/store/memory_test.go
//
// Behavioural tests for the in-memory Store.  The SQL store shares the
// same contract; its query shapes are covered in sql_test.go.
//
// Run: go test ./internal/draft/store -v
package store

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/yanizio/launchpad/internal/draft"
)

var t0 = time.Date(2026, 3, 1, 12, 0, 0, 0, time.UTC)

func newDraft(id, sub string) *draft.Draft {
	return &draft.Draft{
		ID:        id,
		Brief:     draft.Brief{BusinessName: "Luigi's", BusinessDescription: "Pasta"},
		Status:    draft.StatusCreated,
		Subdomain: sub,
		CreatedAt: t0,
		UpdatedAt: t0,
	}
}

func TestMemory_CreateAndGet(t *testing.T) {
	m := NewMemory()
	ctx := context.Background()

	d := newDraft("d1", "luigis")
	if err := m.Create(ctx, d); err != nil {
		t.Fatalf("Create: %v", err)
	}
	got, err := m.Get(ctx, "d1")
	if err != nil || got.Version != 1 || got.Subdomain != "luigis" {
		t.Fatalf("Get = %#v, %v", got, err)
	}
	if _, err := m.Get(ctx, "nope"); !errors.Is(err, ErrNotFound) {
		t.Fatalf("err = %v, want ErrNotFound", err)
	}
}

func TestMemory_SubdomainUniqueness(t *testing.T) {
	m := NewMemory()
	ctx := context.Background()

	if err := m.Create(ctx, newDraft("d1", "luigis")); err != nil {
		t.Fatal(err)
	}
	if err := m.Create(ctx, newDraft("d2", "luigis")); !errors.Is(err, ErrDuplicateSubdomain) {
		t.Fatalf("err = %v, want ErrDuplicateSubdomain", err)
	}

	// Failing d1 frees the name.
	d1, _ := m.Get(ctx, "d1")
	pending := d1.Clone()
	pending.Status = draft.StatusSitemapPending
	pending, err := m.Update(ctx, d1, pending)
	if err != nil {
		t.Fatal(err)
	}
	failed := pending.Clone()
	failed.Status = draft.StatusFailed
	failed.FailedFrom = draft.StatusSitemapPending
	failed, err = m.Update(ctx, pending, failed)
	if err != nil {
		t.Fatal(err)
	}
	if err := m.Create(ctx, newDraft("d2", "luigis")); err != nil {
		t.Fatalf("create after failure: %v", err)
	}

	// Retrying d1 would now collide with d2.
	retry := failed.Clone()
	retry.Status = draft.StatusSitemapPending
	if _, err := m.Update(ctx, failed, retry); !errors.Is(err, ErrDuplicateSubdomain) {
		t.Fatalf("err = %v, want ErrDuplicateSubdomain", err)
	}
}

func TestMemory_IdempotencyKey(t *testing.T) {
	m := NewMemory()
	ctx := context.Background()

	a := newDraft("d1", "a")
	a.IdempotencyKey = "k1"
	if err := m.Create(ctx, a); err != nil {
		t.Fatal(err)
	}
	b := newDraft("d2", "b")
	b.IdempotencyKey = "k1"
	if err := m.Create(ctx, b); !errors.Is(err, ErrDuplicateRequest) {
		t.Fatalf("err = %v, want ErrDuplicateRequest", err)
	}
	got, err := m.GetByIdempotencyKey(ctx, "k1")
	if err != nil || got.ID != "d1" {
		t.Fatalf("got %#v, %v", got, err)
	}
}

func TestMemory_UpdateIsCAS(t *testing.T) {
	m := NewMemory()
	ctx := context.Background()
	_ = m.Create(ctx, newDraft("d1", "luigis"))
	base, _ := m.Get(ctx, "d1")

	var (
		wg   sync.WaitGroup
		mu   sync.Mutex
		wins int
		lost int
	)
	for i := 0; i < 8; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			next := base.Clone()
			next.Status = draft.StatusSitemapPending
			_, err := m.Update(ctx, base, next)
			mu.Lock()
			defer mu.Unlock()
			switch {
			case err == nil:
				wins++
			case errors.Is(err, ErrStaleWrite):
				lost++
			default:
				t.Errorf("unexpected error: %v", err)
			}
		}()
	}
	wg.Wait()
	if wins != 1 || lost != 7 {
		t.Fatalf("wins=%d lost=%d", wins, lost)
	}

	got, _ := m.Get(ctx, "d1")
	if got.Version != 2 || got.Status != draft.StatusSitemapPending {
		t.Fatalf("stored = %#v", got)
	}
}

func TestMemory_UpdateRejectsSkips(t *testing.T) {
	m := NewMemory()
	ctx := context.Background()
	_ = m.Create(ctx, newDraft("d1", "luigis"))
	base, _ := m.Get(ctx, "d1")

	next := base.Clone()
	next.Status = draft.StatusSiteReady
	if _, err := m.Update(ctx, base, next); !errors.Is(err, draft.ErrInvalidTransition) {
		t.Fatalf("err = %v, want ErrInvalidTransition", err)
	}
}

func TestMemory_Claim(t *testing.T) {
	m := NewMemory()
	ctx := context.Background()
	_ = m.Create(ctx, newDraft("d1", "luigis"))

	d, err := m.Claim(ctx, "d1", "u1")
	if err != nil || d.Owner() != "u1" {
		t.Fatalf("Claim = %#v, %v", d, err)
	}
	if _, err := m.Claim(ctx, "d1", "u1"); err != nil {
		t.Fatalf("repeat claim: %v", err)
	}
	if _, err := m.Claim(ctx, "d1", "u2"); !errors.Is(err, ErrAlreadyClaimed) {
		t.Fatalf("err = %v, want ErrAlreadyClaimed", err)
	}
	if d.Version != 1 {
		t.Fatalf("claim bumped version to %d", d.Version)
	}

	// Update never clears the owner, even from a stale snapshot.
	base := newDraft("d1", "luigis")
	base.Version = 1
	next := base.Clone()
	next.Status = draft.StatusSitemapPending
	out, err := m.Update(ctx, base, next)
	if err != nil || out.Owner() != "u1" {
		t.Fatalf("Update = %#v, %v", out, err)
	}
}

func TestMemory_ListResumable(t *testing.T) {
	m := NewMemory()
	ctx := context.Background()
	now := t0.Add(time.Hour)
	future := now.Add(time.Minute)
	past := now.Add(-time.Minute)

	put := func(id string, st draft.Status, lease *time.Time, owner string, age time.Duration) {
		d := newDraft(id, id)
		d.Status = st
		d.LeaseUntil = lease
		d.UpdatedAt = t0.Add(age)
		if owner != "" {
			d.OwnerUserID = &owner
		}
		if err := m.Create(ctx, d); err != nil {
			t.Fatal(err)
		}
	}
	put("created", draft.StatusCreated, nil, "", 5*time.Minute)
	put("leased", draft.StatusSitePending, &future, "", 0)
	put("expired", draft.StatusSitePending, &past, "", 1*time.Minute)
	put("applied-owned", draft.StatusDesignApplied, nil, "u1", 2*time.Minute)
	put("applied-free", draft.StatusDesignApplied, nil, "", 0)
	put("attached", draft.StatusAttached, nil, "u1", 0)

	ids, err := m.ListResumable(ctx, now, 0)
	if err != nil {
		t.Fatal(err)
	}
	want := []string{"expired", "applied-owned", "created"}
	if len(ids) != len(want) {
		t.Fatalf("ids = %v, want %v", ids, want)
	}
	for i := range want {
		if ids[i] != want[i] {
			t.Fatalf("ids = %v, want %v", ids, want)
		}
	}

	ids, _ = m.ListResumable(ctx, now, 1)
	if len(ids) != 1 {
		t.Fatalf("limit ignored: %v", ids)
	}
}
