// internal/draft/store/sql.go
//
// MySQL-backed Store.
//
// Context
// -------
// One row per draft in the `draft` table (see schema.sql).  Nested values
// (brief, sitemap, design) are JSON columns; everything the resumer
// filters on is a plain column.
//
// Workflow
// --------
//   - Update is a single `UPDATE … WHERE id = ? AND status = ? AND
//     version = ?`.  Zero affected rows means the row moved or vanished;
//     a follow-up read decides which.
//   - Subdomain uniqueness is enforced by a unique index on a generated
//     column that is NULL for failed drafts, so the database resolves
//     concurrent creates without an application lock.
//
// Notes
// -----
//   - The DSN must carry parseTime=true.
//   - JSON is bound as string; MySQL refuses JSON built from binary
//     strings.
package store

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/go-sql-driver/mysql"
	"github.com/jmoiron/sqlx"

	"github.com/yanizio/launchpad/internal/draft"
)

const mysqlDuplicateEntry = 1062

const draftCols = `id, status, version, brief, subdomain, region,
       provider_site_id, provider_website_id, provider_build_status,
       site_url, admin_url, sitemap, design, design_error, design_applied_hash,
       owner_user_id, failed_from, failure_reason, last_error_kind,
       stage_attempts, retry_count, lease_until, idempotency_key,
       client_ip, country, created_at, updated_at`

// SQL implements Store on a *sqlx.DB.
type SQL struct {
	db *sqlx.DB
}

func NewSQL(db *sqlx.DB) *SQL { return &SQL{db: db} }

type row struct {
	ID                  string         `db:"id"`
	Status              string         `db:"status"`
	Version             uint64         `db:"version"`
	Brief               []byte         `db:"brief"`
	Subdomain           string         `db:"subdomain"`
	Region              string         `db:"region"`
	ProviderSiteID      string         `db:"provider_site_id"`
	ProviderWebsiteID   string         `db:"provider_website_id"`
	ProviderBuildStatus string         `db:"provider_build_status"`
	SiteURL             string         `db:"site_url"`
	AdminURL            string         `db:"admin_url"`
	Sitemap             []byte         `db:"sitemap"`
	Design              []byte         `db:"design"`
	DesignError         string         `db:"design_error"`
	DesignAppliedHash   string         `db:"design_applied_hash"`
	OwnerUserID         sql.NullString `db:"owner_user_id"`
	FailedFrom          string         `db:"failed_from"`
	FailureReason       string         `db:"failure_reason"`
	LastErrorKind       string         `db:"last_error_kind"`
	StageAttempts       int            `db:"stage_attempts"`
	RetryCount          int            `db:"retry_count"`
	LeaseUntil          sql.NullTime   `db:"lease_until"`
	IdempotencyKey      sql.NullString `db:"idempotency_key"`
	ClientIP            string         `db:"client_ip"`
	Country             string         `db:"country"`
	CreatedAt           time.Time      `db:"created_at"`
	UpdatedAt           time.Time      `db:"updated_at"`
}

func (r *row) toDraft() (*draft.Draft, error) {
	d := &draft.Draft{
		ID:                  r.ID,
		Status:              draft.Status(r.Status),
		Version:             r.Version,
		Subdomain:           r.Subdomain,
		Region:              r.Region,
		ProviderSiteID:      r.ProviderSiteID,
		ProviderWebsiteID:   r.ProviderWebsiteID,
		ProviderBuildStatus: r.ProviderBuildStatus,
		SiteURL:             r.SiteURL,
		AdminURL:            r.AdminURL,
		DesignError:         r.DesignError,
		DesignAppliedHash:   r.DesignAppliedHash,
		FailedFrom:          draft.Status(r.FailedFrom),
		FailureReason:       r.FailureReason,
		LastErrorKind:       r.LastErrorKind,
		StageAttempts:       r.StageAttempts,
		RetryCount:          r.RetryCount,
		IdempotencyKey:      r.IdempotencyKey.String,
		ClientIP:            r.ClientIP,
		Country:             r.Country,
		CreatedAt:           r.CreatedAt,
		UpdatedAt:           r.UpdatedAt,
	}
	if err := json.Unmarshal(r.Brief, &d.Brief); err != nil {
		return nil, fmt.Errorf("store: decode brief for %s: %w", r.ID, err)
	}
	if len(r.Design) > 0 {
		if err := json.Unmarshal(r.Design, &d.Design); err != nil {
			return nil, fmt.Errorf("store: decode design for %s: %w", r.ID, err)
		}
	}
	if len(r.Sitemap) > 0 && string(r.Sitemap) != "null" {
		d.Sitemap = &draft.Sitemap{}
		if err := json.Unmarshal(r.Sitemap, d.Sitemap); err != nil {
			return nil, fmt.Errorf("store: decode sitemap for %s: %w", r.ID, err)
		}
	}
	if r.OwnerUserID.Valid {
		owner := r.OwnerUserID.String
		d.OwnerUserID = &owner
	}
	if r.LeaseUntil.Valid {
		lease := r.LeaseUntil.Time
		d.LeaseUntil = &lease
	}
	return d, nil
}

/*──────────────────────────── reads ───────────────────────────────────────*/

func (s *SQL) Get(ctx context.Context, id string) (*draft.Draft, error) {
	return s.getOne(ctx, `SELECT `+draftCols+` FROM draft WHERE id = ?`, id)
}

func (s *SQL) GetByIdempotencyKey(ctx context.Context, key string) (*draft.Draft, error) {
	if key == "" {
		return nil, ErrNotFound
	}
	return s.getOne(ctx, `SELECT `+draftCols+` FROM draft WHERE idempotency_key = ?`, key)
}

func (s *SQL) getOne(ctx context.Context, q string, arg any) (*draft.Draft, error) {
	var r row
	if err := s.db.GetContext(ctx, &r, q, arg); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, ErrNotFound
		}
		return nil, err
	}
	return r.toDraft()
}

func (s *SQL) ListResumable(ctx context.Context, now time.Time, limit int) ([]string, error) {
	const q = `SELECT id FROM draft
                WHERE status IN ('created', 'sitemap_ready', 'site_ready')
                   OR (status IN ('sitemap_pending', 'site_pending')
                       AND (lease_until IS NULL OR lease_until <= ?))
                   OR (status = 'design_applied' AND owner_user_id IS NOT NULL)
                ORDER BY updated_at, id
                LIMIT ?`
	if limit <= 0 {
		limit = 100
	}
	ids := make([]string, 0, limit)
	if err := s.db.SelectContext(ctx, &ids, q, now, limit); err != nil {
		return nil, err
	}
	return ids, nil
}

/*──────────────────────────── writes ──────────────────────────────────────*/

func (s *SQL) Create(ctx context.Context, d *draft.Draft) error {
	brief, err := json.Marshal(d.Brief)
	if err != nil {
		return err
	}
	design, err := json.Marshal(d.Design)
	if err != nil {
		return err
	}
	sitemap, err := sitemapArg(d.Sitemap)
	if err != nil {
		return err
	}

	q := `INSERT INTO draft (` + draftCols + `) VALUES (` + placeholders(27) + `)`
	_, err = s.db.ExecContext(ctx, q,
		d.ID, string(d.Status), 1, string(brief), d.Subdomain, d.Region,
		d.ProviderSiteID, d.ProviderWebsiteID, d.ProviderBuildStatus,
		d.SiteURL, d.AdminURL, sitemap, string(design), d.DesignError, d.DesignAppliedHash,
		nullString(d.Owner()), string(d.FailedFrom), d.FailureReason, d.LastErrorKind,
		d.StageAttempts, d.RetryCount, nullTime(d.LeaseUntil), nullString(d.IdempotencyKey),
		d.ClientIP, d.Country, d.CreatedAt, d.UpdatedAt,
	)
	if err != nil {
		return mapDuplicate(err)
	}
	d.Version = 1
	return nil
}

func (s *SQL) Update(ctx context.Context, prev, next *draft.Draft) (*draft.Draft, error) {
	if err := checkUpdate(prev, next); err != nil {
		return nil, err
	}
	design, err := json.Marshal(next.Design)
	if err != nil {
		return nil, err
	}
	sitemap, err := sitemapArg(next.Sitemap)
	if err != nil {
		return nil, err
	}

	const q = `UPDATE draft
                  SET status = ?, version = version + 1, region = ?,
                      provider_site_id = ?, provider_website_id = ?, provider_build_status = ?,
                      site_url = ?, admin_url = ?, sitemap = ?, design = ?,
                      design_error = ?, design_applied_hash = ?,
                      failed_from = ?, failure_reason = ?, last_error_kind = ?,
                      stage_attempts = ?, retry_count = ?, lease_until = ?,
                      client_ip = ?, country = ?, updated_at = ?
                WHERE id = ? AND status = ? AND version = ?`

	res, err := s.db.ExecContext(ctx, q,
		string(next.Status), next.Region,
		next.ProviderSiteID, next.ProviderWebsiteID, next.ProviderBuildStatus,
		next.SiteURL, next.AdminURL, sitemap, string(design),
		next.DesignError, next.DesignAppliedHash,
		string(next.FailedFrom), next.FailureReason, next.LastErrorKind,
		next.StageAttempts, next.RetryCount, nullTime(next.LeaseUntil),
		next.ClientIP, next.Country, next.UpdatedAt,
		prev.ID, string(prev.Status), prev.Version,
	)
	if err != nil {
		return nil, mapDuplicate(err)
	}
	n, err := res.RowsAffected()
	if err != nil {
		return nil, err
	}
	if n == 0 {
		if _, gErr := s.Get(ctx, prev.ID); gErr != nil {
			return nil, gErr
		}
		return nil, ErrStaleWrite
	}

	// Owner is Claim's alone and may have moved since prev was read.
	var owner sql.NullString
	if err := s.db.GetContext(ctx, &owner, `SELECT owner_user_id FROM draft WHERE id = ?`, prev.ID); err != nil {
		return nil, err
	}
	out := next.Clone()
	out.Version = prev.Version + 1
	out.OwnerUserID = nil
	if owner.Valid {
		o := owner.String
		out.OwnerUserID = &o
	}
	return out, nil
}

func (s *SQL) Claim(ctx context.Context, id, userID string) (*draft.Draft, error) {
	const q = `UPDATE draft SET owner_user_id = ? WHERE id = ? AND owner_user_id IS NULL`
	if _, err := s.db.ExecContext(ctx, q, userID, id); err != nil {
		return nil, err
	}
	d, err := s.Get(ctx, id)
	if err != nil {
		return nil, err
	}
	if d.Owner() != userID {
		return nil, ErrAlreadyClaimed
	}
	return d, nil
}

/*──────────────────────────── helpers ─────────────────────────────────────*/

func mapDuplicate(err error) error {
	var me *mysql.MySQLError
	if !errors.As(err, &me) || me.Number != mysqlDuplicateEntry {
		return err
	}
	switch {
	case strings.Contains(me.Message, "uq_draft_active_subdomain"):
		return ErrDuplicateSubdomain
	case strings.Contains(me.Message, "uq_draft_idempotency_key"):
		return ErrDuplicateRequest
	}
	return err
}

func sitemapArg(sm *draft.Sitemap) (any, error) {
	if sm == nil {
		return nil, nil
	}
	raw, err := json.Marshal(sm)
	if err != nil {
		return nil, err
	}
	return string(raw), nil
}

func nullString(s string) sql.NullString {
	return sql.NullString{String: s, Valid: s != ""}
}

func nullTime(t *time.Time) sql.NullTime {
	if t == nil {
		return sql.NullTime{}
	}
	return sql.NullTime{Time: *t, Valid: true}
}

func placeholders(n int) string {
	return strings.TrimSuffix(strings.Repeat("?, ", n), ", ")
}
