// cmd/web/main.go
//
// Launchpad – HTTP entry point.
//
// Boot sequence
// -------------
//
//  1. Load env vars (jail-wide file → .env fallback), then config through
//     koanf with `vault:` references resolved lazily.
//
//  2. Start daily rotating logger (tees to console when running in a TTY).
//
//  3. Install the OpenTelemetry tracer provider when tracing is enabled.
//
//  4. Open the draft store: MySQL (with embedded migrations) or the
//     in-memory store for local runs.
//
//  5. Build the audit fan-out: zap log, draft_event table, and the
//     optional Redis or Kafka notification publisher.
//
//  6. Build the provider client and the orchestrator.
//
//  7. Start the background resumer and the HTTP server; on SIGINT or
//     SIGTERM stop accepting requests, drain, and flush spans.
//
// Large comment blocks are framed by blank “//” lines; inline comments use
// a single “//”.
package main

import (
	"context"
	"errors"
	"log"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/jmoiron/sqlx"
	"github.com/joho/godotenv"
	"go.uber.org/zap"

	"github.com/yanizio/launchpad/internal/api"
	"github.com/yanizio/launchpad/internal/audit"
	"github.com/yanizio/launchpad/internal/auth"
	"github.com/yanizio/launchpad/internal/config"
	"github.com/yanizio/launchpad/internal/database"
	"github.com/yanizio/launchpad/internal/draft/store"
	"github.com/yanizio/launchpad/internal/logger"
	"github.com/yanizio/launchpad/internal/message"
	"github.com/yanizio/launchpad/internal/provider"
	"github.com/yanizio/launchpad/internal/provision"
	"github.com/yanizio/launchpad/internal/requestinfo"
	"github.com/yanizio/launchpad/internal/server"
	"github.com/yanizio/launchpad/internal/tracing"
	"github.com/yanizio/launchpad/internal/vault"
	"github.com/yanizio/launchpad/internal/worker"
)

const serverEnvPath = "/usr/local/etc/launchpad/global.env"

// version is stamped by the release build with -ldflags.
var version = "dev"

// loadEnv prefers the jail-wide env file; on dev it falls back to .env.
func loadEnv() {
	if _, err := os.Stat(serverEnvPath); err == nil {
		_ = godotenv.Load(serverEnvPath)
		return
	}
	_ = godotenv.Load()
}

// runningInTTY returns true when stdout is a character device.
func runningInTTY() bool {
	fi, err := os.Stdout.Stat()
	if err != nil {
		return false
	}
	return fi.Mode()&os.ModeCharDevice != 0
}

func init() { loadEnv() }

func main() {
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	if err := run(ctx); err != nil {
		zap.S().Errorw("launchpad exited", "err", err)
		_ = zap.L().Sync()
		log.Fatalf("launchpad: %v", err)
	}
}

func run(ctx context.Context) error {
	// Console logger until the file logger is configured.
	boot, _ := zap.NewDevelopment()
	zap.ReplaceGlobals(boot)

	//
	// ── 1.  Config ──────────────────────────────────────────────────────
	//
	cfg, err := config.Load(ctx, vault.NewLazy(ctx, zap.S().Infof))
	if err != nil {
		return err
	}

	//
	// ── 2.  Logger ──────────────────────────────────────────────────────
	//
	logOut, err := logger.New(cfg.Log.Dir, cfg.Log.Level, runningInTTY())
	if err != nil {
		return err
	}
	defer func() { _ = logOut.Sync() }()
	zl := logOut.Desugar()

	//
	// ── 3.  Tracing ─────────────────────────────────────────────────────
	//
	shutdownTracing, err := tracing.Setup(ctx, tracing.Options{
		Enabled:     cfg.Tracing.Enabled,
		Endpoint:    cfg.Tracing.Endpoint,
		Insecure:    cfg.Tracing.Insecure,
		ServiceName: cfg.Tracing.ServiceName,
		Version:     version,
		SampleRatio: cfg.Tracing.SampleRatio,
	}, zl)
	if err != nil {
		return err
	}
	defer flush(shutdownTracing)

	//
	// ── 4.  Draft store ─────────────────────────────────────────────────
	//
	var (
		drafts store.Store
		db     *sqlx.DB
	)
	switch cfg.Database.Driver {
	case "memory":
		logOut.Warnw("using in-memory draft store; drafts are lost on restart")
		drafts = store.NewMemory()
	default:
		opts := database.DefaultOptions()
		opts.MaxOpenConns = cfg.Database.MaxOpenConns
		opts.MaxIdleConns = cfg.Database.MaxIdleConns
		opts.ConnMaxLifetime = cfg.Database.ConnMaxLifetime
		logOut.Infow("connecting to draft DB")
		db, err = database.OpenWithOptions(ctx, cfg.Database.ResolvedDSN(), opts)
		if err != nil {
			return err
		}
		defer db.Close()
		if cfg.Database.Migrate {
			if err := store.Migrate(ctx, db); err != nil {
				return err
			}
		}
		drafts = store.NewSQL(db)
		logOut.Infow("draft DB online")
	}

	//
	// ── 5.  Audit fan-out ───────────────────────────────────────────────
	//
	sinks := audit.Multi{audit.NewLogSink(zl)}
	if db != nil {
		sinks = append(sinks, audit.NewSQLSink(db))
	}
	pub, err := publisher(ctx, cfg.Notify)
	if err != nil {
		return err
	}
	defer pub.Close()
	if cfg.Notify.Driver != "none" {
		sinks = append(sinks, audit.NewNotify(pub))
	}

	//
	// ── 6.  Provider client + orchestrator ──────────────────────────────
	//
	client, err := provider.New(provider.Options{
		BaseURL: cfg.Provider.BaseURL,
		APIKey:  cfg.Provider.APIKey,
		Timeout: cfg.Provider.Timeout,
		Logger:  zl,
	})
	if err != nil {
		return err
	}
	orch, err := provision.New(provision.Options{
		Store:    drafts,
		Provider: client,
		Sink:     sinks,
		Logger:   zl,
		Retry: provision.RetryPolicy{
			Attempts: cfg.Provision.RetryAttempts,
			Base:     cfg.Provision.RetryBase,
			Factor:   cfg.Provision.RetryFactor,
			Max:      cfg.Provision.RetryMax,
		},
		Lease:            cfg.Provision.Lease,
		BuildTimeout:     cfg.Provision.BuildTimeout,
		MaxManualRetries: cfg.Provision.MaxManualRetries,
		DefaultRegion:    cfg.Geo.DefaultRegion,
	})
	if err != nil {
		return err
	}

	//
	// ── 7.  HTTP + resumer ──────────────────────────────────────────────
	//
	verifier, err := auth.NewVerifier(cfg.Auth.JWTSecret, cfg.Auth.Issuer, cfg.Auth.Audience)
	if err != nil {
		return err
	}
	resolver, err := requestinfo.NewResolver(requestinfo.Options{
		GeoIPPath:     cfg.Geo.GeoIPPath,
		Regions:       cfg.Geo.Regions,
		DefaultRegion: cfg.Geo.DefaultRegion,
		TrustProxy:    cfg.HTTP.TrustProxy,
	})
	if err != nil {
		return err
	}
	defer resolver.Close()

	var health api.Pinger
	if db != nil {
		health = db
	}
	handler := api.NewRouter(api.Config{
		Service:        orch,
		Verifier:       verifier,
		Resolver:       resolver,
		Health:         health,
		Logger:         zl,
		ForceHTTPS:     cfg.HTTP.ForceHTTPS,
		AllowedOrigins: cfg.HTTP.CORSOrigins,
		RateLimit:      cfg.HTTP.RateLimit,
		RateBurst:      cfg.HTTP.RateBurst,
	})

	workerDone := make(chan struct{})
	if cfg.Worker.Enabled {
		res := worker.NewResumer(drafts, orch, worker.Options{
			Interval:    cfg.Worker.Interval,
			Batch:       cfg.Worker.Batch,
			Concurrency: cfg.Worker.Concurrency,
			Logger:      zl,
		})
		go func() {
			defer close(workerDone)
			res.Run(ctx)
		}()
	} else {
		close(workerDone)
	}

	srv := server.New(cfg.HTTP.ListenAddr, handler, cfg.HTTP.WriteTimeout)
	errCh := make(chan error, 1)
	go func() {
		logOut.Infow("listening", "addr", cfg.HTTP.ListenAddr, "version", version)
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			errCh <- err
		}
		close(errCh)
	}()

	select {
	case err := <-errCh:
		return err
	case <-ctx.Done():
	}

	logOut.Infow("shutting down")
	shutdownCtx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()
	if err := srv.Shutdown(shutdownCtx); err != nil {
		logOut.Warnw("http shutdown", "err", err)
	}
	<-workerDone
	return nil
}

// publisher builds the notification transport named by cfg.Driver.
func publisher(ctx context.Context, cfg config.Notify) (message.Publisher, error) {
	switch cfg.Driver {
	case "redis":
		return message.NewRedisPublisher(ctx, cfg.RedisAddr, cfg.RedisPassword, cfg.TopicPrefix)
	case "kafka":
		return message.NewKafkaPublisher(cfg.KafkaBrokers, cfg.TopicPrefix)
	default:
		return message.Nop{}, nil
	}
}

func flush(shutdown tracing.Shutdown) {
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	_ = shutdown(ctx)
}
