// internal/provision/fake_test.go
//
// Scriptable SiteProvider and fixtures shared by the orchestrator tests.
package provision

import (
	"context"
	"sync"
	"testing"
	"time"

	"github.com/yanizio/launchpad/internal/audit"
	"github.com/yanizio/launchpad/internal/draft"
	"github.com/yanizio/launchpad/internal/draft/store"
	"github.com/yanizio/launchpad/internal/provider"
)

type fakeProvider struct {
	mu    sync.Mutex
	calls map[string]int

	// Per-op queued errors; a nil entry (or an empty queue) means success.
	errs map[string][]error

	siteStatus  provider.BuildStatus // returned by create_site
	pollStatus  provider.BuildStatus // returned by site_status
	designs     []draft.Design
	block       chan struct{} // when set, sitemap calls wait on it
	sitemapSeen chan struct{}
	statusBlock chan struct{} // when set, status polls wait on it
	statusSeen  chan struct{}
	onDesign    func() // runs inside ApplyDesign before it answers
}

func newFakeProvider() *fakeProvider {
	return &fakeProvider{
		calls:      map[string]int{},
		errs:       map[string][]error{},
		siteStatus: provider.BuildActive,
		pollStatus: provider.BuildActive,
	}
}

func (f *fakeProvider) next(op string) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.calls[op]++
	q := f.errs[op]
	if len(q) == 0 {
		return nil
	}
	f.errs[op] = q[1:]
	return q[0]
}

func (f *fakeProvider) count(op string) int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.calls[op]
}

func (f *fakeProvider) failWith(op string, errs ...error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.errs[op] = append(f.errs[op], errs...)
}

func (f *fakeProvider) GenerateSitemap(ctx context.Context, in provider.SitemapInput) (*provider.SitemapResult, error) {
	if f.sitemapSeen != nil {
		f.sitemapSeen <- struct{}{}
	}
	if f.block != nil {
		<-f.block
	}
	if err := f.next("generate_sitemap"); err != nil {
		return nil, err
	}
	return &provider.SitemapResult{
		SitemapID: "sm-1",
		Pages: []draft.Page{
			{ID: "home", Title: "Home"},
			{ID: "menu", Title: "Menu"},
		},
	}, nil
}

func (f *fakeProvider) CreateSiteFromSitemap(ctx context.Context, sitemapID string, hints provider.DesignHints) (*provider.SiteResult, error) {
	if err := f.next("create_site"); err != nil {
		return nil, err
	}
	f.mu.Lock()
	st := f.siteStatus
	f.mu.Unlock()
	return &provider.SiteResult{
		SiteID:    "site-1",
		WebsiteID: "web-1",
		SiteURL:   "https://luigis.example.com",
		AdminURL:  "https://luigis.example.com/wp-admin",
		Status:    st,
	}, nil
}

func (f *fakeProvider) GetSiteStatus(ctx context.Context, siteID string) (*provider.SiteStatus, error) {
	if f.statusSeen != nil {
		f.statusSeen <- struct{}{}
	}
	if f.statusBlock != nil {
		<-f.statusBlock
	}
	if err := f.next("site_status"); err != nil {
		return nil, err
	}
	f.mu.Lock()
	defer f.mu.Unlock()
	return &provider.SiteStatus{Status: f.pollStatus}, nil
}

func (f *fakeProvider) ApplyDesign(ctx context.Context, websiteID string, d draft.Design) error {
	if f.onDesign != nil {
		f.onDesign()
	}
	if err := f.next("update_design"); err != nil {
		return err
	}
	f.mu.Lock()
	f.designs = append(f.designs, d)
	f.mu.Unlock()
	return nil
}

func (f *fakeProvider) IssueLoginToken(ctx context.Context, siteID string) (*provider.LoginToken, error) {
	if err := f.next("login_token"); err != nil {
		return nil, err
	}
	return &provider.LoginToken{Token: "tok-" + siteID}, nil
}

// recordingSink keeps every event.
type recordingSink struct {
	mu     sync.Mutex
	events []audit.Event
}

func (s *recordingSink) Record(_ context.Context, ev audit.Event) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.events = append(s.events, ev)
}

func (s *recordingSink) kinds(k audit.Kind) int {
	s.mu.Lock()
	defer s.mu.Unlock()
	n := 0
	for _, ev := range s.events {
		if ev.Kind == k {
			n++
		}
	}
	return n
}

// fixture bundles an orchestrator with its fakes and a controllable clock.
type fixture struct {
	o     *Orchestrator
	store *store.Memory
	prov  *fakeProvider
	sink  *recordingSink

	mu     sync.Mutex
	now    time.Time
	sleeps []time.Duration
	ids    int
}

func newFixture(t *testing.T) *fixture {
	t.Helper()
	f := &fixture{
		store: store.NewMemory(),
		prov:  newFakeProvider(),
		sink:  &recordingSink{},
		now:   time.Date(2026, 3, 1, 12, 0, 0, 0, time.UTC),
	}
	o, err := New(Options{
		Store:    f.store,
		Provider: f.prov,
		Sink:     f.sink,
		Now: func() time.Time {
			f.mu.Lock()
			defer f.mu.Unlock()
			return f.now
		},
		Sleep: func(_ context.Context, d time.Duration) error {
			f.mu.Lock()
			defer f.mu.Unlock()
			f.sleeps = append(f.sleeps, d)
			return nil
		},
		NewID: func() string {
			f.mu.Lock()
			defer f.mu.Unlock()
			f.ids++
			return "draft-" + string(rune('a'+f.ids-1))
		},
	})
	if err != nil {
		t.Fatalf("New: %v", err)
	}
	f.o = o
	return f
}

func (f *fixture) advanceClock(d time.Duration) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.now = f.now.Add(d)
}

var luigis = draft.Brief{
	BusinessType:        "restaurant",
	BusinessName:        "Luigi's",
	BusinessDescription: "Family Italian restaurant",
}

func (f *fixture) create(t *testing.T) *draft.Draft {
	t.Helper()
	d, err := f.o.CreateDraft(context.Background(), CreateInput{Brief: luigis})
	if err != nil {
		t.Fatalf("CreateDraft: %v", err)
	}
	return d
}

func (f *fixture) advance(t *testing.T, id string) *Result {
	t.Helper()
	r, err := f.o.Advance(context.Background(), id)
	if err != nil {
		t.Fatalf("Advance: %v", err)
	}
	return r
}

func unavailable(op string) error {
	return &provider.Error{Kind: provider.KindUnavailable, Op: op, Status: 503, Message: "down"}
}

func rejected(op, msg string) error {
	return &provider.Error{Kind: provider.KindRejected, Op: op, Status: 422, Message: msg}
}
