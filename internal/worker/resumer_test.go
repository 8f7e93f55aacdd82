// internal/worker/resumer_test.go
//
// Run: go test ./internal/worker -v
package worker

import (
	"context"
	"errors"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/yanizio/launchpad/internal/provision"
)

type staticLister struct {
	ids   []string
	err   error
	limit int
}

func (l *staticLister) ListResumable(_ context.Context, _ time.Time, limit int) ([]string, error) {
	l.limit = limit
	return l.ids, l.err
}

type countingAdvancer struct {
	mu       sync.Mutex
	seen     map[string]int
	fail     map[string]bool
	inFlight atomic.Int32
	peak     atomic.Int32
}

func (a *countingAdvancer) Advance(_ context.Context, id string) (*provision.Result, error) {
	n := a.inFlight.Add(1)
	defer a.inFlight.Add(-1)
	for {
		p := a.peak.Load()
		if n <= p || a.peak.CompareAndSwap(p, n) {
			break
		}
	}
	time.Sleep(5 * time.Millisecond)

	a.mu.Lock()
	defer a.mu.Unlock()
	a.seen[id]++
	if a.fail[id] {
		return nil, errors.New("boom")
	}
	return &provision.Result{}, nil
}

func TestTick(t *testing.T) {
	l := &staticLister{ids: []string{"a", "b", "c", "d", "e"}}
	a := &countingAdvancer{seen: map[string]int{}, fail: map[string]bool{"c": true}}
	r := NewResumer(l, a, Options{Concurrency: 2, Batch: 7})

	got := r.Tick(context.Background())
	if got != 4 {
		t.Fatalf("advanced = %d, want 4", got)
	}
	if l.limit != 7 {
		t.Fatalf("batch = %d", l.limit)
	}
	for _, id := range l.ids {
		if a.seen[id] != 1 {
			t.Fatalf("%s advanced %d times", id, a.seen[id])
		}
	}
	if a.peak.Load() > 2 {
		t.Fatalf("concurrency peak %d exceeds limit", a.peak.Load())
	}
}

func TestTick_ListError(t *testing.T) {
	l := &staticLister{err: errors.New("db down")}
	a := &countingAdvancer{seen: map[string]int{}}
	if got := NewResumer(l, a, Options{}).Tick(context.Background()); got != 0 {
		t.Fatalf("advanced = %d", got)
	}
}

func TestRun_StopsOnCancel(t *testing.T) {
	l := &staticLister{}
	a := &countingAdvancer{seen: map[string]int{}}
	r := NewResumer(l, a, Options{Interval: time.Millisecond})

	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan struct{})
	go func() {
		r.Run(ctx)
		close(done)
	}()
	time.Sleep(10 * time.Millisecond)
	cancel()

	select {
	case <-done:
	case <-time.After(time.Second):
		t.Fatal("Run did not return after cancel")
	}
}
