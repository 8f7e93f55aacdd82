// internal/api/router.go
//
// HTTP surface of the provisioning workflow.
//
// Context
// -------
// The onboarding front-end drives a draft from brief to attached site
// through these routes.  Anonymous visitors create and advance drafts;
// attaching and admin login need a bearer token from the identity
// provider.
//
// Workflow
// --------
//  1. Global pipeline: request id, recoverer, structured request log,
//     security headers, optional HTTPS redirect, body cap, CORS.
//  2. /api routes get requestinfo enrichment (IP, UA, region).
//  3. Draft creation is rate limited per client IP.
//  4. /healthz pings the store; /metrics serves Prometheus.
//
// Notes
// -----
// • Handlers never return provider text verbatim; see respond.go.
// • Oxford commas, two spaces after periods.
package api

import (
	"context"
	"net/http"

	"github.com/go-chi/chi/v5"
	chimw "github.com/go-chi/chi/v5/middleware"
	"github.com/go-chi/cors"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"go.uber.org/zap"

	"github.com/yanizio/launchpad/internal/auth"
	"github.com/yanizio/launchpad/internal/middleware"
	"github.com/yanizio/launchpad/internal/requestinfo"
)

// maxBody bounds JSON request bodies.
const maxBody = 1 << 20

// Pinger reports store health.  *sqlx.DB satisfies it.
type Pinger interface {
	PingContext(ctx context.Context) error
}

// Config is everything NewRouter wires together.
type Config struct {
	Service  Service
	Verifier *auth.Verifier // required
	Resolver *requestinfo.Resolver
	Health   Pinger // nil means always healthy
	Logger   *zap.Logger

	ForceHTTPS     bool
	AllowedOrigins []string
	RateLimit      float64 // creations per second per IP, 0 disables
	RateBurst      int
}

// NewRouter constructs the chi multiplexer.
func NewRouter(cfg Config) http.Handler {
	log := cfg.Logger
	if log == nil {
		log = zap.L()
	}
	h := &Handler{svc: cfg.Service, log: log.Named("api")}

	r := chi.NewRouter()
	r.Use(chimw.RequestID)
	r.Use(chimw.Recoverer)
	r.Use(middleware.RequestLog(log))
	r.Use(middleware.Security)
	if cfg.ForceHTTPS {
		r.Use(middleware.ForceHTTPS)
	}
	r.Use(middleware.MaxBytes(maxBody))
	if len(cfg.AllowedOrigins) > 0 {
		r.Use(cors.Handler(cors.Options{
			AllowedOrigins:   cfg.AllowedOrigins,
			AllowedMethods:   []string{"GET", "POST", "PUT", "OPTIONS"},
			AllowedHeaders:   []string{"Accept", "Authorization", "Content-Type", "Idempotency-Key"},
			AllowCredentials: true,
			MaxAge:           300,
		}))
	}

	r.Get("/healthz", health(cfg.Health))
	r.Handle("/metrics", promhttp.Handler())

	resolver := cfg.Resolver
	if resolver == nil {
		resolver, _ = requestinfo.NewResolver(requestinfo.Options{}) // no GeoIP path, cannot fail
	}
	create := http.Handler(http.HandlerFunc(h.CreateDraft))
	if cfg.RateLimit > 0 {
		limiter := middleware.NewRateLimiter(cfg.RateLimit, cfg.RateBurst, clientKey)
		create = limiter.Handler(create)
	}

	r.Route("/api/drafts", func(r chi.Router) {
		r.Use(resolver.Enrich)

		r.Method(http.MethodPost, "/", create)
		r.Route("/{id}", func(r chi.Router) {
			r.Get("/", h.GetDraft)
			r.Post("/advance", h.Advance)
			r.Post("/retry", h.Retry)
			r.Put("/design", h.UpdateDesign)
			r.Post("/design/retry", h.RetryDesign)

			r.Group(func(r chi.Router) {
				r.Use(cfg.Verifier.Require)
				r.Post("/attach", h.Attach)
				r.Post("/login", h.LoginLink)
			})
		})
	})
	return r
}

// clientKey keys the rate limiter on the address requestinfo resolved.
func clientKey(r *http.Request) string {
	if info := requestinfo.FromContext(r.Context()); info != nil && info.IP != nil {
		return info.IP.String()
	}
	return r.RemoteAddr
}

func health(p Pinger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		if p != nil {
			if err := p.PingContext(r.Context()); err != nil {
				zap.L().Warn("health check failed", zap.Error(err))
				writeJSON(w, http.StatusServiceUnavailable, map[string]string{"status": "unavailable"})
				return
			}
		}
		writeJSON(w, http.StatusOK, map[string]string{"status": "ok"})
	}
}
