// internal/draft/store/memory.go
//
// In-process Store used by tests and by `store.driver: memory` for local
// development without MySQL.  A single mutex serialises every operation,
// which is what makes the CAS and uniqueness checks atomic.
package store

import (
	"context"
	"fmt"
	"sort"
	"sync"
	"time"

	"github.com/yanizio/launchpad/internal/draft"
)

type Memory struct {
	mu     sync.Mutex
	drafts map[string]*draft.Draft
}

func NewMemory() *Memory {
	return &Memory{drafts: make(map[string]*draft.Draft)}
}

func (m *Memory) Create(_ context.Context, d *draft.Draft) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	if _, ok := m.drafts[d.ID]; ok {
		return fmt.Errorf("store: draft %s already exists", d.ID)
	}
	for _, cur := range m.drafts {
		if d.IdempotencyKey != "" && cur.IdempotencyKey == d.IdempotencyKey {
			return ErrDuplicateRequest
		}
	}
	if d.Status != draft.StatusFailed && m.subdomainTaken(d.Subdomain, d.ID) {
		return ErrDuplicateSubdomain
	}

	cp := d.Clone()
	cp.Version = 1
	m.drafts[cp.ID] = cp
	d.Version = 1
	return nil
}

func (m *Memory) Get(_ context.Context, id string) (*draft.Draft, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	d, ok := m.drafts[id]
	if !ok {
		return nil, ErrNotFound
	}
	return d.Clone(), nil
}

func (m *Memory) GetByIdempotencyKey(_ context.Context, key string) (*draft.Draft, error) {
	if key == "" {
		return nil, ErrNotFound
	}
	m.mu.Lock()
	defer m.mu.Unlock()

	for _, d := range m.drafts {
		if d.IdempotencyKey == key {
			return d.Clone(), nil
		}
	}
	return nil, ErrNotFound
}

func (m *Memory) Update(_ context.Context, prev, next *draft.Draft) (*draft.Draft, error) {
	if err := checkUpdate(prev, next); err != nil {
		return nil, err
	}

	m.mu.Lock()
	defer m.mu.Unlock()

	cur, ok := m.drafts[prev.ID]
	if !ok {
		return nil, ErrNotFound
	}
	if cur.Status != prev.Status || cur.Version != prev.Version {
		return nil, ErrStaleWrite
	}
	if cur.Status == draft.StatusFailed && next.Status != draft.StatusFailed &&
		m.subdomainTaken(cur.Subdomain, cur.ID) {
		return nil, ErrDuplicateSubdomain
	}

	cp := next.Clone()
	cp.Subdomain = cur.Subdomain
	cp.Brief = cur.Brief
	cp.IdempotencyKey = cur.IdempotencyKey
	cp.CreatedAt = cur.CreatedAt
	cp.OwnerUserID = cur.Clone().OwnerUserID // owner is Claim's alone
	cp.Version = cur.Version + 1
	m.drafts[cp.ID] = cp
	return cp.Clone(), nil
}

func (m *Memory) Claim(_ context.Context, id, userID string) (*draft.Draft, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	cur, ok := m.drafts[id]
	if !ok {
		return nil, ErrNotFound
	}
	switch cur.Owner() {
	case "":
		owner := userID
		cur.OwnerUserID = &owner
	case userID:
	default:
		return nil, ErrAlreadyClaimed
	}
	return cur.Clone(), nil
}

func (m *Memory) ListResumable(_ context.Context, now time.Time, limit int) ([]string, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	var hits []*draft.Draft
	for _, d := range m.drafts {
		if resumable(d, now) {
			hits = append(hits, d)
		}
	}
	sort.Slice(hits, func(i, j int) bool {
		if hits[i].UpdatedAt.Equal(hits[j].UpdatedAt) {
			return hits[i].ID < hits[j].ID
		}
		return hits[i].UpdatedAt.Before(hits[j].UpdatedAt)
	})
	if limit > 0 && len(hits) > limit {
		hits = hits[:limit]
	}
	ids := make([]string, len(hits))
	for i, d := range hits {
		ids[i] = d.ID
	}
	return ids, nil
}

// subdomainTaken must be called with mu held.
func (m *Memory) subdomainTaken(sub, selfID string) bool {
	for id, d := range m.drafts {
		if id != selfID && d.Status != draft.StatusFailed && d.Subdomain == sub {
			return true
		}
	}
	return false
}
