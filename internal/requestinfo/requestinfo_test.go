// internal/requestinfo/requestinfo_test.go
//
// Run: go test ./internal/requestinfo -v

package requestinfo

import (
	"net/http"
	"net/http/httptest"
	"testing"
)

func TestClientIP(t *testing.T) {
	r := httptest.NewRequest(http.MethodGet, "/", nil)
	r.RemoteAddr = "10.0.0.1:5555"
	r.Header.Set("X-Forwarded-For", "203.0.113.9, 10.0.0.1")

	if got := clientIP(r, false).String(); got != "10.0.0.1" {
		t.Fatalf("untrusted proxy: got %s", got)
	}
	if got := clientIP(r, true).String(); got != "203.0.113.9" {
		t.Fatalf("trusted proxy: got %s", got)
	}
}

func TestRegion(t *testing.T) {
	res, err := NewResolver(Options{DefaultRegion: "us", Regions: map[string]string{"za": "eu"}})
	if err != nil {
		t.Fatalf("NewResolver: %v", err)
	}
	cases := map[string]string{"DE": "eu", "jp": "ap", "ZA": "eu", "": "us", "AR": "us"}
	for in, want := range cases {
		if got := res.Region(in); got != want {
			t.Errorf("Region(%q) = %q, want %q", in, got, want)
		}
	}
}

func TestEnrich(t *testing.T) {
	res, _ := NewResolver(Options{})
	var info *Info
	h := res.Enrich(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		info = FromContext(r.Context())
	}))

	r := httptest.NewRequest(http.MethodGet, "/", nil)
	r.Header.Set("User-Agent", "Mozilla/5.0 (compatible; Googlebot/2.1; +http://www.google.com/bot.html)")
	h.ServeHTTP(httptest.NewRecorder(), r)

	if info == nil {
		t.Fatal("info not attached")
	}
	if !info.UA.IsBot {
		t.Fatal("Googlebot not flagged")
	}
	if info.Region != "us" || info.Country != "" {
		t.Fatalf("geo without database: %#v", info)
	}
}

func TestNewResolver_BadPath(t *testing.T) {
	if _, err := NewResolver(Options{GeoIPPath: "/nonexistent/GeoLite2-Country.mmdb"}); err == nil {
		t.Fatal("expected error")
	}
}

func TestUACache(t *testing.T) {
	res, _ := NewResolver(Options{})
	const bot = "Mozilla/5.0 (compatible; Googlebot/2.1; +http://www.google.com/bot.html)"
	a := res.ua(bot)
	b := res.ua(bot)
	if !a.IsBot || a != b || res.uas.Len() != 1 {
		t.Fatalf("a=%+v b=%+v len=%d", a, b, res.uas.Len())
	}
}
