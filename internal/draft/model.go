// internal/draft/model.go
//
// Draft aggregate and its value objects.
//
// Context
// -------
// A Draft is the persisted record of one provisioning attempt, from the
// moment a business owner submits the onboarding brief until the
// generated site is attached to their account.  The orchestrator and the
// attachment service are the only writers; everything else reads
// snapshots.
//
// Notes
// -----
//   - JSON tags double as the API snapshot shape, so renaming a field is
//     a wire change for the dashboard.
//   - Nullable columns are pointers; callers nil-check before use.
//   - Oxford commas, two spaces after periods.
package draft

import (
	"crypto/sha256"
	"encoding/hex"
	"encoding/json"
	"time"
)

// Brief is the business description captured by the onboarding wizard.
// Immutable once submitted.
type Brief struct {
	BusinessType        string `json:"business_type"                 validate:"max=64"`
	BusinessName        string `json:"business_name"                 validate:"required,max=120"`
	BusinessDescription string `json:"business_description"          validate:"required,max=2000"`
	PreferredSubdomain  string `json:"preferred_subdomain,omitempty" validate:"omitempty,max=63"`
}

// Page is one entry of a generated sitemap.
type Page struct {
	ID          string   `json:"id"`
	Title       string   `json:"title"`
	Type        string   `json:"type,omitempty"`
	Description string   `json:"description,omitempty"`
	URL         string   `json:"url,omitempty"`
	Sections    []string `json:"sections,omitempty"`
}

// Sitemap is the ordered page list returned by the Site Provider.
type Sitemap struct {
	ID    string `json:"sitemap_id"`
	Pages []Page `json:"pages"`
}

// Colors holds the palette applied to a generated site.
type Colors struct {
	Primary   string `json:"primary,omitempty"   validate:"omitempty,hexcolor"`
	Secondary string `json:"secondary,omitempty" validate:"omitempty,hexcolor"`
}

// Fonts holds the typography choices applied to a generated site.
type Fonts struct {
	Heading string `json:"heading,omitempty" validate:"max=64"`
	Body    string `json:"body,omitempty"    validate:"max=64"`
}

// SEO carries the metadata pushed to the provider with the design.
type SEO struct {
	Title       string `json:"title,omitempty"       validate:"max=120"`
	Description string `json:"description,omitempty" validate:"max=320"`
	Keyphrase   string `json:"keyphrase,omitempty"   validate:"max=80"`
}

// Design is the customer's look-and-feel selection.
type Design struct {
	Colors Colors `json:"colors"`
	Fonts  Fonts  `json:"fonts"`
	SEO    SEO    `json:"seo"`
}

// IsZero reports whether no design choice has been made.
func (d Design) IsZero() bool { return d == Design{} }

// Hash fingerprints the design so an identical re-apply can be skipped.
func (d Design) Hash() string {
	raw, _ := json.Marshal(d) // plain strings only; cannot fail
	sum := sha256.Sum256(raw)
	return hex.EncodeToString(sum[:])
}

// Draft mirrors one row in the `draft` table.
type Draft struct {
	ID     string `json:"draft_id"`
	Brief  Brief  `json:"brief"`
	Status Status `json:"status"`

	Subdomain string `json:"subdomain"`
	Region    string `json:"region"`

	ProviderSiteID      string `json:"provider_site_id,omitempty"`
	ProviderWebsiteID   string `json:"provider_website_id,omitempty"`
	ProviderBuildStatus string `json:"provider_build_status,omitempty"`
	SiteURL             string `json:"site_url,omitempty"`
	AdminURL            string `json:"admin_url,omitempty"`

	Sitemap *Sitemap `json:"sitemap,omitempty"`
	Design  Design   `json:"design"`

	DesignError       string `json:"design_error,omitempty"`
	DesignAppliedHash string `json:"-"`

	OwnerUserID *string `json:"owner_user_id"`

	FailedFrom    Status `json:"failed_from,omitempty"`
	FailureReason string `json:"failure_reason,omitempty"`
	LastErrorKind string `json:"last_error_kind,omitempty"`
	StageAttempts int    `json:"stage_attempts"`
	RetryCount    int    `json:"retry_count"`

	LeaseUntil     *time.Time `json:"-"`
	IdempotencyKey string     `json:"-"`
	ClientIP       string     `json:"-"`
	Country        string     `json:"-"`

	Version   uint64    `json:"version"`
	CreatedAt time.Time `json:"created_at"`
	UpdatedAt time.Time `json:"updated_at"`
}

// Clone returns a deep copy so callers can mutate without aliasing the
// stored value.
func (d *Draft) Clone() *Draft {
	if d == nil {
		return nil
	}
	cp := *d
	if d.Sitemap != nil {
		sm := *d.Sitemap
		sm.Pages = make([]Page, len(d.Sitemap.Pages))
		for i, p := range d.Sitemap.Pages {
			p.Sections = append([]string(nil), p.Sections...)
			sm.Pages[i] = p
		}
		cp.Sitemap = &sm
	}
	if d.OwnerUserID != nil {
		owner := *d.OwnerUserID
		cp.OwnerUserID = &owner
	}
	if d.LeaseUntil != nil {
		lease := *d.LeaseUntil
		cp.LeaseUntil = &lease
	}
	return &cp
}

// Owner returns the owning user id or "" when unclaimed.
func (d *Draft) Owner() string {
	if d.OwnerUserID == nil {
		return ""
	}
	return *d.OwnerUserID
}

// LeaseActive reports whether another caller currently holds the
// in-flight claim on the draft's pending stage.
func (d *Draft) LeaseActive(now time.Time) bool {
	return d.LeaseUntil != nil && now.Before(*d.LeaseUntil)
}
