// internal/draft/store/migrate.go
//
// Boot-time schema application.  schema.sql only holds idempotent
// statements, so Migrate is safe on every start.
package store

import (
	"context"
	_ "embed"
	"fmt"
	"strings"

	"github.com/jmoiron/sqlx"
	"go.uber.org/zap"
)

//go:embed schema.sql
var schemaSQL string

// Migrate executes every statement in schema.sql in order.
func Migrate(ctx context.Context, db *sqlx.DB) error {
	stmts := statements(schemaSQL)
	for i, stmt := range stmts {
		if _, err := db.ExecContext(ctx, stmt); err != nil {
			return fmt.Errorf("migrate: statement %d: %w", i+1, err)
		}
	}
	zap.L().Info("schema applied", zap.Int("statements", len(stmts)))
	return nil
}

// statements drops `--` comment lines and splits on semicolons.  The
// schema holds no string literals containing semicolons.
func statements(src string) []string {
	var b strings.Builder
	for _, line := range strings.Split(src, "\n") {
		if strings.HasPrefix(strings.TrimSpace(line), "--") {
			continue
		}
		b.WriteString(line)
		b.WriteByte('\n')
	}
	var out []string
	for _, s := range strings.Split(b.String(), ";") {
		if s = strings.TrimSpace(s); s != "" {
			out = append(out, s)
		}
	}
	return out
}
