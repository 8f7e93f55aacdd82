// Package database centralises sqlx connection helpers.  The driver is
// go-sql-driver/mysql, which also works with MariaDB.
//
// Public entry points:
//
//	Open(ctx, dsn)                  – conservative pool sizes, three ping attempts.
//	OpenWithOptions(ctx, dsn, opts) – fine-grained control.
//
// Both helpers Ping the database before returning so callers can fail fast
// during bootstrap.  The ping is retried with doubling backoff because the
// database container frequently starts after the service in local stacks.
// Callers should Close() the returned *sqlx.DB when no longer needed.
package database

import (
	"context"
	"fmt"
	"time"

	_ "github.com/go-sql-driver/mysql"
	"github.com/jmoiron/sqlx"
	"go.uber.org/zap"
)

// Options tunes the pool and the bootstrap ping.
type Options struct {
	MaxOpenConns    int
	MaxIdleConns    int
	ConnMaxLifetime time.Duration
	Retries         int           // ping attempts, minimum 1
	RetryBackoff    time.Duration // first delay; doubles each attempt
}

// DefaultOptions returns 15 max open, 5 idle, a 30-minute connection
// lifetime, and three ping attempts starting at 500 ms.
func DefaultOptions() Options {
	return Options{
		MaxOpenConns:    15,
		MaxIdleConns:    5,
		ConnMaxLifetime: 30 * time.Minute,
		Retries:         3,
		RetryBackoff:    500 * time.Millisecond,
	}
}

// Open is OpenWithOptions with DefaultOptions.
func Open(ctx context.Context, dsn string) (*sqlx.DB, error) {
	return OpenWithOptions(ctx, dsn, DefaultOptions())
}

// OpenWithOptions opens a pool and pings it until it answers, the retry
// budget is spent, or ctx ends.
func OpenWithOptions(ctx context.Context, dsn string, opts Options) (*sqlx.DB, error) {
	db, err := sqlx.Open("mysql", dsn)
	if err != nil {
		return nil, err
	}

	db.SetMaxOpenConns(opts.MaxOpenConns)
	db.SetMaxIdleConns(opts.MaxIdleConns)
	if opts.ConnMaxLifetime > 0 {
		db.SetConnMaxLifetime(opts.ConnMaxLifetime)
	}

	attempts := opts.Retries
	if attempts < 1 {
		attempts = 1
	}
	delay := opts.RetryBackoff

	for i := 1; ; i++ {
		err = db.PingContext(ctx)
		if err == nil {
			return db, nil
		}
		if i >= attempts {
			break
		}
		zap.L().Warn("database ping failed; retrying",
			zap.Int("attempt", i),
			zap.Duration("backoff", delay),
			zap.Error(err))
		select {
		case <-ctx.Done():
			_ = db.Close()
			return nil, ctx.Err()
		case <-time.After(delay):
		}
		delay *= 2
	}
	_ = db.Close()
	return nil, fmt.Errorf("database: ping after %d attempts: %w", attempts, err)
}
