// internal/server/timeouts.go
//
// HTTP server helper with robust timeouts.
//
// Production hardening recommends:
//
//   • ReadTimeout   – abort slow-loris headers (10 s)
//   • WriteTimeout  – cap total response time
//   • IdleTimeout   – close keep-alives on idle clients (60 s)
//
// WriteTimeout is the one knob callers tune: an advance request can sit
// through every retry of a provider call, so it must exceed
// attempts × provider timeout plus backoff.  This helper centralises the
// defaults so cmd/web doesn’t repeat boilerplate.
//

package server

import (
	"net/http"
	"time"
)

// DefaultWriteTimeout covers three 20 s provider calls plus backoff.
const DefaultWriteTimeout = 90 * time.Second

// New constructs an *http.Server with sensible defaults.  A zero
// writeTimeout selects DefaultWriteTimeout.
func New(addr string, handler http.Handler, writeTimeout time.Duration) *http.Server {
	if writeTimeout <= 0 {
		writeTimeout = DefaultWriteTimeout
	}
	return &http.Server{
		Addr:              addr,
		Handler:           handler,
		ReadTimeout:       10 * time.Second,
		ReadHeaderTimeout: 5 * time.Second,
		WriteTimeout:      writeTimeout,
		IdleTimeout:       60 * time.Second,
	}
}
