// internal/provider/client.go
//
// Typed HTTP client for the Site Provider.
//
// Context
// -------
// The Site Provider generates sitemaps, builds WordPress sites from them,
// applies design updates, and issues admin login tokens.  This client is
// pure request/response mapping: it owns no state beyond its transport,
// it never retries (the orchestrator owns the retry policy), and every
// failure is normalised into *Error before it leaves the package.
//
// Workflow
// --------
//  1. main builds one Client from config and injects it into the
//     orchestrator.  There is no package-level instance.
//  2. Each call derives a child context bounded by Options.Timeout.
//  3. The call is wrapped in an OpenTelemetry span and observed in the
//     provider_* Prometheus collectors.
//  4. 2xx bodies are decoded into private wire structs, shape-checked,
//     and converted into the exported result types.
//
// Notes
// -----
//   - 408 and deadline errors map to Timeout; 429 and 5xx map to
//     Unavailable; every other 4xx maps to Rejected.
//   - Provider error bodies are truncated to 256 bytes before they are
//     kept as Message, so logs stay bounded.
//   - Oxford commas, two spaces after periods.
package provider

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net"
	"net/http"
	"net/url"
	"strings"
	"time"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"
	"go.uber.org/zap"

	"github.com/yanizio/launchpad/internal/draft"
	"github.com/yanizio/launchpad/internal/metrics"
)

const (
	DefaultTimeout = 20 * time.Second
	maxErrorBody   = 256
	maxBody        = 4 << 20
)

// Options configures a Client.
type Options struct {
	BaseURL    string
	APIKey     string
	Timeout    time.Duration
	HTTPClient *http.Client // optional; a dedicated client is built otherwise
	Logger     *zap.Logger  // optional; zap.L() otherwise
}

// Client talks to the Site Provider.  Safe for concurrent use.
type Client struct {
	base    *url.URL
	apiKey  string
	timeout time.Duration
	hc      *http.Client
	log     *zap.Logger
	tracer  trace.Tracer
}

// New validates opts and returns a ready Client.
func New(opts Options) (*Client, error) {
	u, err := url.Parse(strings.TrimRight(opts.BaseURL, "/"))
	if err != nil || u.Scheme == "" || u.Host == "" {
		return nil, fmt.Errorf("provider: invalid base url %q", opts.BaseURL)
	}
	timeout := opts.Timeout
	if timeout <= 0 {
		timeout = DefaultTimeout
	}
	hc := opts.HTTPClient
	if hc == nil {
		hc = &http.Client{Transport: http.DefaultTransport.(*http.Transport).Clone()}
	}
	log := opts.Logger
	if log == nil {
		log = zap.L()
	}
	return &Client{
		base:    u,
		apiKey:  opts.APIKey,
		timeout: timeout,
		hc:      hc,
		log:     log.Named("provider"),
		tracer:  otel.Tracer("github.com/yanizio/launchpad/internal/provider"),
	}, nil
}

/*──────────────────────────── operations ──────────────────────────────────*/

// GenerateSitemap asks the provider for a page plan.  Name and
// description must be non-empty after trimming.
func (c *Client) GenerateSitemap(ctx context.Context, in SitemapInput) (*SitemapResult, error) {
	const op = "generate_sitemap"
	name := strings.TrimSpace(in.BusinessName)
	desc := strings.TrimSpace(in.BusinessDescription)
	if name == "" || desc == "" {
		return nil, &Error{Kind: KindRejected, Op: op, Message: "business name and description are required"}
	}

	keyphrase := strings.TrimSpace(in.Keyphrase)
	if keyphrase == "" {
		keyphrase = strings.TrimSpace(in.BusinessType + " " + name)
	}

	var out sitemapResponse
	err := c.do(ctx, op, http.MethodPost, "/generate-sitemap", sitemapRequest{
		BusinessDescription: desc,
		BusinessType:        strings.TrimSpace(in.BusinessType),
		WebsiteTitle:        name,
		WebsiteDescription:  desc,
		WebsiteKeyphrase:    keyphrase,
	}, &out)
	if err != nil {
		return nil, err
	}
	if out.SitemapID == "" || len(out.Pages) == 0 {
		return nil, invalidResponse(op, "sitemap_id or pages missing")
	}

	pages := make([]draft.Page, 0, len(out.Pages))
	for i, p := range out.Pages {
		id := p.ID
		if id == "" {
			id = fmt.Sprintf("page-%d", i+1)
		}
		pages = append(pages, draft.Page{
			ID:          id,
			Title:       p.Title,
			Type:        p.Type,
			Description: p.Description,
			URL:         p.URL,
			Sections:    p.Sections,
		})
	}
	return &SitemapResult{SitemapID: out.SitemapID, Pages: pages}, nil
}

// CreateSiteFromSitemap starts a site build.  The returned Status may be
// BuildBuilding, in which case GetSiteStatus is polled later.
func (c *Client) CreateSiteFromSitemap(ctx context.Context, sitemapID string, hints DesignHints) (*SiteResult, error) {
	const op = "create_site"
	if sitemapID == "" {
		return nil, &Error{Kind: KindRejected, Op: op, Message: "sitemap id is required"}
	}

	var out createSiteResponse
	err := c.do(ctx, op, http.MethodPost, "/create-site", createSiteRequest{
		SitemapID:      sitemapID,
		PrimaryColor:   hints.PrimaryColor,
		SecondaryColor: hints.SecondaryColor,
		HeadingFont:    hints.HeadingFont,
		BodyFont:       hints.BodyFont,
	}, &out)
	if err != nil {
		return nil, err
	}
	if out.WebsiteID == "" {
		return nil, invalidResponse(op, "website_id missing")
	}
	status, ok := parseBuildStatus(out.Status)
	if !ok {
		return nil, invalidResponse(op, "unknown build status "+out.Status)
	}

	siteID := out.SiteID
	if siteID == "" {
		siteID = out.WebsiteID
	}
	return &SiteResult{
		SiteID:    siteID,
		WebsiteID: out.WebsiteID,
		SiteURL:   out.SiteURL,
		AdminURL:  out.AdminURL,
		Subdomain: out.Subdomain,
		Status:    status,
	}, nil
}

// GetSiteStatus is an idempotent build-status poll.
func (c *Client) GetSiteStatus(ctx context.Context, siteID string) (*SiteStatus, error) {
	const op = "site_status"
	var out siteStatusResponse
	if err := c.do(ctx, op, http.MethodGet, "/site-status/"+url.PathEscape(siteID), nil, &out); err != nil {
		return nil, err
	}
	status, ok := parseBuildStatus(out.Status)
	if !ok {
		return nil, invalidResponse(op, "unknown build status "+out.Status)
	}
	st := &SiteStatus{Status: status}
	if out.Progress != nil {
		st.Progress = *out.Progress
	}
	return st, nil
}

// ApplyDesign pushes the full design (not a delta), so re-applying the
// same design is a no-op on the provider side.
func (c *Client) ApplyDesign(ctx context.Context, websiteID string, d draft.Design) error {
	const op = "update_design"
	var out updateDesignResponse
	err := c.do(ctx, op, http.MethodPost, "/update-design", updateDesignRequest{
		WebsiteID: websiteID,
		Colors:    compact(map[string]string{"primary": d.Colors.Primary, "secondary": d.Colors.Secondary}),
		Fonts:     compact(map[string]string{"heading": d.Fonts.Heading, "body": d.Fonts.Body}),
		SEOTitle:  d.SEO.Title,
		SEODesc:   d.SEO.Description,
		SEOKey:    d.SEO.Keyphrase,
	}, &out)
	if err != nil {
		return err
	}
	if !out.Success {
		msg := out.Message
		if msg == "" {
			msg = "design update declined"
		}
		return &Error{Kind: KindRejected, Op: op, Message: msg}
	}
	return nil
}

// IssueLoginToken mints a short-lived admin credential.
func (c *Client) IssueLoginToken(ctx context.Context, siteID string) (*LoginToken, error) {
	const op = "login_token"
	var out loginTokenResponse
	if err := c.do(ctx, op, http.MethodPost, "/login-token/"+url.PathEscape(siteID), nil, &out); err != nil {
		return nil, err
	}
	if out.Token == "" {
		return nil, invalidResponse(op, "token missing")
	}
	return &LoginToken{Token: out.Token, AdminURL: out.WPAdminURL}, nil
}

/*──────────────────────────── transport ───────────────────────────────────*/

func (c *Client) do(ctx context.Context, op, method, path string, body, out any) (err error) {
	ctx, cancel := context.WithTimeout(ctx, c.timeout)
	defer cancel()

	ctx, span := c.tracer.Start(ctx, "provider."+op,
		trace.WithSpanKind(trace.SpanKindClient),
		trace.WithAttributes(attribute.String("http.method", method), attribute.String("provider.path", path)))
	start := time.Now()
	defer func() {
		outcome := "ok"
		if err != nil {
			k, _ := KindOf(err)
			outcome = string(k)
			span.RecordError(err)
			span.SetStatus(codes.Error, outcome)
		}
		metrics.ProviderRequestsTotal.WithLabelValues(op, outcome).Inc()
		metrics.ProviderRequestDuration.WithLabelValues(op).Observe(time.Since(start).Seconds())
		span.End()
	}()

	var rdr io.Reader
	if body != nil {
		raw, mErr := json.Marshal(body)
		if mErr != nil {
			return &Error{Kind: KindRejected, Op: op, Message: "encode request", Err: mErr}
		}
		rdr = bytes.NewReader(raw)
	}

	req, rErr := http.NewRequestWithContext(ctx, method, c.base.String()+path, rdr)
	if rErr != nil {
		return &Error{Kind: KindRejected, Op: op, Message: "build request", Err: rErr}
	}
	req.Header.Set("Accept", "application/json")
	if body != nil {
		req.Header.Set("Content-Type", "application/json")
	}
	if c.apiKey != "" {
		req.Header.Set("X-API-Key", c.apiKey)
	}

	resp, dErr := c.hc.Do(req)
	if dErr != nil {
		return classifyTransport(ctx, op, dErr)
	}
	defer resp.Body.Close()
	span.SetAttributes(attribute.Int("http.status_code", resp.StatusCode))

	raw, readErr := io.ReadAll(io.LimitReader(resp.Body, maxBody))
	if readErr != nil {
		return classifyTransport(ctx, op, readErr)
	}

	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		pe := &Error{Kind: classifyStatus(resp.StatusCode), Op: op, Status: resp.StatusCode, Message: errorMessage(raw)}
		c.log.Debug("provider call failed",
			zap.String("op", op),
			zap.Int("status", resp.StatusCode),
			zap.String("kind", string(pe.Kind)))
		return pe
	}

	if out != nil {
		if uErr := json.Unmarshal(raw, out); uErr != nil {
			return &Error{Kind: KindUnavailable, Op: op, Status: resp.StatusCode, Message: "undecodable response", Err: uErr}
		}
	}
	return nil
}

func classifyStatus(code int) Kind {
	switch {
	case code == http.StatusRequestTimeout || code == http.StatusGatewayTimeout:
		return KindTimeout
	case code == http.StatusTooManyRequests || code >= 500:
		return KindUnavailable
	default:
		return KindRejected
	}
}

func classifyTransport(ctx context.Context, op string, err error) *Error {
	if errors.Is(err, context.DeadlineExceeded) || errors.Is(ctx.Err(), context.DeadlineExceeded) {
		return &Error{Kind: KindTimeout, Op: op, Message: "request timed out", Err: err}
	}
	var ne net.Error
	if errors.As(err, &ne) && ne.Timeout() {
		return &Error{Kind: KindTimeout, Op: op, Message: "request timed out", Err: err}
	}
	return &Error{Kind: KindUnavailable, Op: op, Message: "transport failure", Err: err}
}

func invalidResponse(op, detail string) *Error {
	return &Error{Kind: KindUnavailable, Op: op, Message: "invalid response: " + detail}
}

// errorMessage prefers the provider's JSON error text and falls back to
// the raw body, truncated.
func errorMessage(raw []byte) string {
	var eb errorBody
	if json.Unmarshal(raw, &eb) == nil {
		if eb.Message != "" {
			return truncate(eb.Message)
		}
		if eb.Error != "" {
			return truncate(eb.Error)
		}
	}
	return truncate(strings.TrimSpace(string(raw)))
}

func truncate(s string) string {
	if len(s) <= maxErrorBody {
		return s
	}
	return s[:maxErrorBody]
}

func parseBuildStatus(s string) (BuildStatus, bool) {
	switch BuildStatus(strings.ToLower(strings.TrimSpace(s))) {
	case BuildBuilding, "pending", "queued":
		return BuildBuilding, true
	case BuildActive, "ready", "live":
		return BuildActive, true
	case BuildError, "failed":
		return BuildError, true
	}
	return "", false
}

func compact(m map[string]string) map[string]string {
	for k, v := range m {
		if v == "" {
			delete(m, k)
		}
	}
	return m
}
