// internal/provider/types.go
//
// Request and response shapes for the Site Provider REST API.  Wire
// structs are unexported; callers only see the typed results below, so
// no untyped JSON escapes this package.
package provider

import "github.com/yanizio/launchpad/internal/draft"

// BuildStatus is the provider's own view of a site build.
type BuildStatus string

const (
	BuildBuilding BuildStatus = "building"
	BuildActive   BuildStatus = "active"
	BuildError    BuildStatus = "error"
)

// SitemapInput is what GenerateSitemap needs from a brief.
type SitemapInput struct {
	BusinessType        string
	BusinessName        string
	BusinessDescription string
	Keyphrase           string
}

// SitemapResult is a generated sitemap.
type SitemapResult struct {
	SitemapID string
	Pages     []draft.Page
}

// DesignHints are the optional look-and-feel values sent with site
// creation.
type DesignHints struct {
	PrimaryColor   string
	SecondaryColor string
	HeadingFont    string
	BodyFont       string
}

// SiteResult is returned by CreateSiteFromSitemap.
type SiteResult struct {
	SiteID    string
	WebsiteID string
	SiteURL   string
	AdminURL  string
	Subdomain string
	Status    BuildStatus
}

// SiteStatus is returned by GetSiteStatus.
type SiteStatus struct {
	Status   BuildStatus
	Progress int // 0–100, 0 when the provider omits it
}

// LoginToken is a short-lived admin deep link.
type LoginToken struct {
	Token    string
	AdminURL string
}

/*──────────────────────────── wire shapes ─────────────────────────────────*/

type sitemapRequest struct {
	BusinessDescription string `json:"business_description"`
	BusinessType        string `json:"business_type"`
	WebsiteTitle        string `json:"website_title"`
	WebsiteDescription  string `json:"website_description"`
	WebsiteKeyphrase    string `json:"website_keyphrase"`
}

type sitemapPage struct {
	ID          string   `json:"id"`
	Title       string   `json:"title"`
	Type        string   `json:"type"`
	Description string   `json:"description"`
	URL         string   `json:"url"`
	Sections    []string `json:"sections"`
}

type sitemapResponse struct {
	SitemapID string        `json:"sitemap_id"`
	Pages     []sitemapPage `json:"pages"`
}

type createSiteRequest struct {
	SitemapID      string `json:"sitemap_id"`
	PrimaryColor   string `json:"primary_color,omitempty"`
	SecondaryColor string `json:"secondary_color,omitempty"`
	HeadingFont    string `json:"heading_font,omitempty"`
	BodyFont       string `json:"body_font,omitempty"`
}

type createSiteResponse struct {
	SiteID    string `json:"site_id"`
	WebsiteID string `json:"website_id"`
	SiteURL   string `json:"site_url"`
	AdminURL  string `json:"admin_url"`
	Subdomain string `json:"subdomain"`
	Status    string `json:"status"`
}

type siteStatusResponse struct {
	Status   string `json:"status"`
	Progress *int   `json:"progress"`
}

type updateDesignRequest struct {
	WebsiteID string            `json:"website_id"`
	Colors    map[string]string `json:"colors"`
	Fonts     map[string]string `json:"fonts"`
	SEOTitle  string            `json:"seo_title,omitempty"`
	SEODesc   string            `json:"seo_description,omitempty"`
	SEOKey    string            `json:"seo_keyphrase,omitempty"`
}

type updateDesignResponse struct {
	Success bool   `json:"success"`
	Message string `json:"message"`
}

type loginTokenResponse struct {
	Token      string `json:"token"`
	WPAdminURL string `json:"wp_admin_url"`
}

type errorBody struct {
	Error   string `json:"error"`
	Message string `json:"message"`
}
