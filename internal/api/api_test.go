// internal/api/api_test.go
//
// Handler tests against a real orchestrator, the in-memory store, and a
// stub provider.
//
// Run: go test ./internal/api -v
package api

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/golang-jwt/jwt/v5"
	"go.uber.org/zap"

	"github.com/yanizio/launchpad/internal/auth"
	"github.com/yanizio/launchpad/internal/draft"
	"github.com/yanizio/launchpad/internal/draft/store"
	"github.com/yanizio/launchpad/internal/provider"
	"github.com/yanizio/launchpad/internal/provision"
)

const secret = "test-secret-test-secret-test-secret!"

type stubProvider struct {
	loginErr error
}

func (stubProvider) GenerateSitemap(context.Context, provider.SitemapInput) (*provider.SitemapResult, error) {
	return &provider.SitemapResult{SitemapID: "sm-1", Pages: []draft.Page{{ID: "home", Title: "Home"}}}, nil
}

func (stubProvider) CreateSiteFromSitemap(context.Context, string, provider.DesignHints) (*provider.SiteResult, error) {
	return &provider.SiteResult{SiteID: "site-1", WebsiteID: "web-1", SiteURL: "https://x.example.com",
		AdminURL: "https://x.example.com/wp-admin", Status: provider.BuildActive}, nil
}

func (stubProvider) GetSiteStatus(context.Context, string) (*provider.SiteStatus, error) {
	return &provider.SiteStatus{Status: provider.BuildActive}, nil
}

func (stubProvider) ApplyDesign(context.Context, string, draft.Design) error { return nil }

func (p stubProvider) IssueLoginToken(context.Context, string) (*provider.LoginToken, error) {
	if p.loginErr != nil {
		return nil, p.loginErr
	}
	return &provider.LoginToken{Token: "tok"}, nil
}

type pingErr struct{ err error }

func (p pingErr) PingContext(context.Context) error { return p.err }

type server struct {
	h    http.Handler
	orch *provision.Orchestrator
}

func newServer(t *testing.T, prov stubProvider, rateLimit float64, health Pinger) *server {
	t.Helper()
	orch, err := provision.New(provision.Options{
		Store:    store.NewMemory(),
		Provider: prov,
		Logger:   zap.NewNop(),
		Sleep:    func(context.Context, time.Duration) error { return nil },
	})
	if err != nil {
		t.Fatalf("provision.New: %v", err)
	}
	v, err := auth.NewVerifier(secret, "", "")
	if err != nil {
		t.Fatalf("NewVerifier: %v", err)
	}
	h := NewRouter(Config{
		Service:   orch,
		Verifier:  v,
		Health:    health,
		Logger:    zap.NewNop(),
		RateLimit: rateLimit,
		RateBurst: 1,
	})
	return &server{h: h, orch: orch}
}

func token(t *testing.T, sub string) string {
	t.Helper()
	raw, err := jwt.NewWithClaims(jwt.SigningMethodHS256, jwt.RegisteredClaims{
		Subject:   sub,
		ExpiresAt: jwt.NewNumericDate(time.Now().Add(time.Hour)),
	}).SignedString([]byte(secret))
	if err != nil {
		t.Fatal(err)
	}
	return raw
}

func (s *server) do(t *testing.T, method, path, body string, hdr map[string]string) *httptest.ResponseRecorder {
	t.Helper()
	var req *http.Request
	if body == "" {
		req = httptest.NewRequest(method, path, nil)
	} else {
		req = httptest.NewRequest(method, path, strings.NewReader(body))
		req.Header.Set("Content-Type", "application/json")
	}
	req.RemoteAddr = "198.51.100.20:1234"
	req.Header.Set("User-Agent", "Mozilla/5.0 (Macintosh; Intel Mac OS X 10_15_7) AppleWebKit/605.1.15 (KHTML, like Gecko) Version/17.0 Safari/605.1.15")
	for k, v := range hdr {
		req.Header.Set(k, v)
	}
	rr := httptest.NewRecorder()
	s.h.ServeHTTP(rr, req)
	return rr
}

const luigis = `{"business_type":"restaurant","business_name":"Luigi's","business_description":"Family Italian restaurant"}`

func (s *server) create(t *testing.T) string {
	t.Helper()
	rr := s.do(t, http.MethodPost, "/api/drafts", luigis, nil)
	if rr.Code != http.StatusCreated {
		t.Fatalf("create: %d %s", rr.Code, rr.Body)
	}
	var out createResponse
	if err := json.NewDecoder(rr.Body).Decode(&out); err != nil {
		t.Fatal(err)
	}
	if out.Subdomain != "luigis" || out.Status != draft.StatusCreated {
		t.Fatalf("create response = %#v", out)
	}
	return out.DraftID
}

func decodeStage(t *testing.T, rr *httptest.ResponseRecorder) stageResponse {
	t.Helper()
	var out stageResponse
	if err := json.NewDecoder(rr.Body).Decode(&out); err != nil {
		t.Fatalf("decode: %v (%s)", err, rr.Body)
	}
	return out
}

func TestFullFlow(t *testing.T) {
	s := newServer(t, stubProvider{}, 0, nil)
	id := s.create(t)

	want := []draft.Status{draft.StatusSitemapReady, draft.StatusSiteReady, draft.StatusDesignApplied}
	for _, st := range want {
		rr := s.do(t, http.MethodPost, "/api/drafts/"+id+"/advance", "", nil)
		if rr.Code != http.StatusOK {
			t.Fatalf("advance: %d %s", rr.Code, rr.Body)
		}
		if got := decodeStage(t, rr).Status; got != st {
			t.Fatalf("advance → %s, want %s", got, st)
		}
	}

	bearer := map[string]string{"Authorization": "Bearer " + token(t, "user-42")}
	rr := s.do(t, http.MethodPost, "/api/drafts/"+id+"/attach", "", bearer)
	if rr.Code != http.StatusOK || decodeStage(t, rr).Status != draft.StatusAttached {
		t.Fatalf("attach: %d", rr.Code)
	}

	rr = s.do(t, http.MethodPost, "/api/drafts/"+id+"/login", "", bearer)
	if rr.Code != http.StatusOK {
		t.Fatalf("login: %d %s", rr.Code, rr.Body)
	}
	var tok loginResponse
	_ = json.NewDecoder(rr.Body).Decode(&tok)
	if tok.Token != "tok" || tok.AdminURL != "https://x.example.com/wp-admin" {
		t.Fatalf("login = %#v", tok)
	}

	rr = s.do(t, http.MethodGet, "/api/drafts/"+id, "", nil)
	if rr.Code != http.StatusOK {
		t.Fatalf("get: %d", rr.Code)
	}
	var d draft.Draft
	_ = json.NewDecoder(rr.Body).Decode(&d)
	if d.Owner() != "user-42" || d.Status != draft.StatusAttached {
		t.Fatalf("snapshot = %#v", d)
	}
}

func TestCreate_Validation(t *testing.T) {
	s := newServer(t, stubProvider{}, 0, nil)
	rr := s.do(t, http.MethodPost, "/api/drafts", `{"business_name":""}`, nil)
	if rr.Code != http.StatusUnprocessableEntity {
		t.Fatalf("code = %d", rr.Code)
	}
	var body errorBody
	_ = json.NewDecoder(rr.Body).Decode(&body)
	if len(body.Fields) == 0 {
		t.Fatalf("no field errors: %s", rr.Body)
	}
}

func TestCreate_BadJSON(t *testing.T) {
	s := newServer(t, stubProvider{}, 0, nil)
	if rr := s.do(t, http.MethodPost, "/api/drafts", `{"business_name":`, nil); rr.Code != http.StatusBadRequest {
		t.Fatalf("code = %d", rr.Code)
	}
}

func TestCreate_BotForbidden(t *testing.T) {
	s := newServer(t, stubProvider{}, 0, nil)
	rr := s.do(t, http.MethodPost, "/api/drafts", luigis, map[string]string{
		"User-Agent": "Mozilla/5.0 (compatible; Googlebot/2.1; +http://www.google.com/bot.html)",
	})
	if rr.Code != http.StatusForbidden {
		t.Fatalf("code = %d", rr.Code)
	}
}

func TestCreate_IdempotencyKey(t *testing.T) {
	s := newServer(t, stubProvider{}, 0, nil)
	hdr := map[string]string{"Idempotency-Key": "abc-123"}

	var ids []string
	for i := 0; i < 2; i++ {
		rr := s.do(t, http.MethodPost, "/api/drafts", luigis, hdr)
		var out createResponse
		_ = json.NewDecoder(rr.Body).Decode(&out)
		ids = append(ids, out.DraftID)
	}
	if ids[0] == "" || ids[0] != ids[1] {
		t.Fatalf("ids = %v", ids)
	}
}

func TestCreate_RateLimited(t *testing.T) {
	s := newServer(t, stubProvider{}, 0.001, nil)
	if rr := s.do(t, http.MethodPost, "/api/drafts", luigis, nil); rr.Code != http.StatusCreated {
		t.Fatalf("first: %d", rr.Code)
	}
	if rr := s.do(t, http.MethodPost, "/api/drafts", luigis, nil); rr.Code != http.StatusTooManyRequests {
		t.Fatalf("second: %d", rr.Code)
	}
}

func TestErrors(t *testing.T) {
	s := newServer(t, stubProvider{}, 0, nil)
	id := s.create(t)

	if rr := s.do(t, http.MethodGet, "/api/drafts/nope", "", nil); rr.Code != http.StatusNotFound {
		t.Fatalf("missing draft: %d", rr.Code)
	}
	if rr := s.do(t, http.MethodPost, "/api/drafts/"+id+"/retry", "", nil); rr.Code != http.StatusConflict {
		t.Fatalf("retry of healthy draft: %d", rr.Code)
	}
	if rr := s.do(t, http.MethodPost, "/api/drafts/"+id+"/attach", "", nil); rr.Code != http.StatusUnauthorized {
		t.Fatalf("attach without token: %d", rr.Code)
	}

	owner := map[string]string{"Authorization": "Bearer " + token(t, "user-1")}
	other := map[string]string{"Authorization": "Bearer " + token(t, "user-2")}
	if rr := s.do(t, http.MethodPost, "/api/drafts/"+id+"/attach", "", owner); rr.Code != http.StatusOK {
		t.Fatalf("attach: %d", rr.Code)
	}
	if rr := s.do(t, http.MethodPost, "/api/drafts/"+id+"/attach", "", other); rr.Code != http.StatusForbidden {
		t.Fatalf("attach by other user: %d", rr.Code)
	}
	if rr := s.do(t, http.MethodPost, "/api/drafts/"+id+"/login", "", owner); rr.Code != http.StatusConflict {
		t.Fatalf("login before site exists: %d", rr.Code)
	}
}

func TestDesignRoutes(t *testing.T) {
	s := newServer(t, stubProvider{}, 0, nil)
	id := s.create(t)

	design := `{"colors":{"primary":"#aa3300"},"fonts":{"heading":"Lora"}}`
	if rr := s.do(t, http.MethodPut, "/api/drafts/"+id+"/design", design, nil); rr.Code != http.StatusOK {
		t.Fatalf("update design: %d %s", rr.Code, rr.Body)
	}
	if rr := s.do(t, http.MethodPut, "/api/drafts/"+id+"/design", `{"colors":{"primary":"red"}}`, nil); rr.Code != http.StatusUnprocessableEntity {
		t.Fatalf("invalid color: %d", rr.Code)
	}
	if rr := s.do(t, http.MethodPost, "/api/drafts/"+id+"/design/retry", "", nil); rr.Code != http.StatusConflict {
		t.Fatalf("design retry before design stage: %d", rr.Code)
	}

	for i := 0; i < 3; i++ {
		s.do(t, http.MethodPost, "/api/drafts/"+id+"/advance", "", nil)
	}
	if rr := s.do(t, http.MethodPut, "/api/drafts/"+id+"/design", design, nil); rr.Code != http.StatusConflict {
		t.Fatalf("update after apply: %d", rr.Code)
	}
	rr := s.do(t, http.MethodPost, "/api/drafts/"+id+"/design/retry", `{"colors":{"primary":"#003366"}}`, nil)
	if rr.Code != http.StatusOK || decodeStage(t, rr).Status != draft.StatusDesignApplied {
		t.Fatalf("design retry: %d %s", rr.Code, rr.Body)
	}
}

func TestProviderErrorIsGeneric(t *testing.T) {
	s := newServer(t, stubProvider{loginErr: &provider.Error{
		Kind: provider.KindRejected, Op: "login_token", Status: 400, Message: "internal provider detail",
	}}, 0, nil)
	id := s.create(t)
	for i := 0; i < 2; i++ {
		s.do(t, http.MethodPost, "/api/drafts/"+id+"/advance", "", nil)
	}
	owner := map[string]string{"Authorization": "Bearer " + token(t, "user-1")}
	s.do(t, http.MethodPost, "/api/drafts/"+id+"/attach", "", owner)

	rr := s.do(t, http.MethodPost, "/api/drafts/"+id+"/login", "", owner)
	if rr.Code != http.StatusBadGateway {
		t.Fatalf("code = %d", rr.Code)
	}
	if strings.Contains(rr.Body.String(), "internal provider detail") {
		t.Fatal("provider message leaked")
	}
}

func TestHealth(t *testing.T) {
	s := newServer(t, stubProvider{}, 0, nil)
	if rr := s.do(t, http.MethodGet, "/healthz", "", nil); rr.Code != http.StatusOK {
		t.Fatalf("healthy: %d", rr.Code)
	}
	s = newServer(t, stubProvider{}, 0, pingErr{errors.New("db down")})
	if rr := s.do(t, http.MethodGet, "/healthz", "", nil); rr.Code != http.StatusServiceUnavailable {
		t.Fatalf("unhealthy: %d", rr.Code)
	}
}

func TestSecurityHeadersApplied(t *testing.T) {
	s := newServer(t, stubProvider{}, 0, nil)
	rr := s.do(t, http.MethodGet, "/healthz", "", nil)
	if rr.Header().Get("X-Content-Type-Options") != "nosniff" {
		t.Fatalf("headers = %v", rr.Header())
	}
}
