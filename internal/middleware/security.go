// internal/middleware/security.go
//
// Security-header middleware.
//
// Injects industry-standard headers on every response:
//
//   • Strict-Transport-Security  –  forces HTTPS (2 years + preload)
//   • Content-Security-Policy   –  deny-all policy for a JSON API
//   • X-Frame-Options           –  click-jacking defence
//   • X-Content-Type-Options    –  MIME-sniffing defence
//   • Referrer-Policy           –  drops path/query from Referer
//   • Permissions-Policy        –  disables powerful features by default
//   • Cache-Control             –  no-store, drafts change per request
//
// Notes
// -----
// • Headers are set *before* next.ServeHTTP; once a handler writes, the
//   header map is frozen.  Handlers may still override any value.
// • The API only serves JSON, so the CSP forbids everything.
// • Behind a TLS-terminating proxy HSTS still applies, because browsers
//   see the public hostname as HTTPS.
// • Oxford commas, two spaces after periods.

package middleware

import "net/http"

// Security sets security headers for every response.
func Security(next http.Handler) http.Handler {
	const (
		hsts  = "max-age=63072000; includeSubDomains; preload"
		csp   = "default-src 'none'; frame-ancestors 'none'"
		xfo   = "DENY"
		nosn  = "nosniff"
		refer = "strict-origin-when-cross-origin"
		perm  = "geolocation=(), microphone=(), camera=()"
	)

	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		set := w.Header().Set // shorthand

		set("Strict-Transport-Security", hsts)
		set("Content-Security-Policy", csp)
		set("X-Frame-Options", xfo)
		set("X-Content-Type-Options", nosn)
		set("Referrer-Policy", refer)
		set("Permissions-Policy", perm)
		set("Cache-Control", "no-store")

		next.ServeHTTP(w, r)
	})
}
