//
//  internal/requestinfo/requestinfo.go
//
//  Per-request metadata used by the draft API: client IP, a user-agent
//  fingerprint (mainly the bot flag), and a GeoIP country that is mapped
//  to the provisioning region hint.  These structs are inert and safe to
//  log.
//
//  Dependencies
//  • github.com/avct/uasurfer          (UA parsing)
//  • github.com/oschwald/geoip2-golang (MaxMind lookup)
//

package requestinfo

import (
	"context"
	"fmt"
	"net"
	"strings"
	"time"

	"github.com/avct/uasurfer"
	"github.com/oschwald/geoip2-golang"

	"github.com/yanizio/launchpad/internal/cache"
)

// uaCacheSize bounds the parsed User-Agent cache.
const uaCacheSize = 4096

//
//  -----------------------------
//  Struct definitions
//  -----------------------------
//

// UA holds the parsed user-agent properties we act on.
type UA struct {
	Raw     string // Entire User-Agent header
	Browser string // "Chrome", "Firefox", "Safari", etc.
	OS      string // "macOS", "Windows", "Android", "iOS", etc.
	Device  string // "Desktop", "Phone", "Tablet", ...
	IsBot   bool   // True if UA matches a known crawler signature
}

// Info is attached to the request context by Enrich.
type Info struct {
	IP        net.IP
	UA        UA
	Country   string // ISO code, "" when unknown
	Region    string // provisioning region hint
	Timestamp time.Time
}

//
//  -----------------------------
//  Resolver
//  -----------------------------
//

// Resolver turns a request into Info.  It owns the optional GeoIP handle,
// which is safe for concurrent reads.
type Resolver struct {
	geo           *geoip2.Reader
	regions       map[string]string // ISO country → region
	defaultRegion string
	trustProxy    bool
	uas           *cache.LRU[string, UA]
}

// Options configures NewResolver.
type Options struct {
	GeoIPPath     string            // empty disables lookups
	Regions       map[string]string // merged over DefaultRegions
	DefaultRegion string            // "us" when empty
	TrustProxy    bool              // honour X-Forwarded-For / X-Real-IP
}

// DefaultRegions maps a handful of countries onto provider regions.
// Anything absent falls back to the default region.
var DefaultRegions = map[string]string{
	"US": "us", "CA": "us", "MX": "us", "BR": "us",
	"GB": "eu", "IE": "eu", "FR": "eu", "DE": "eu", "ES": "eu", "IT": "eu",
	"NL": "eu", "BE": "eu", "PT": "eu", "SE": "eu", "NO": "eu", "DK": "eu",
	"FI": "eu", "PL": "eu", "AT": "eu", "CH": "eu",
	"AU": "ap", "NZ": "ap", "JP": "ap", "SG": "ap", "IN": "ap", "KR": "ap",
}

// NewResolver opens the GeoLite2 database when a path is given.
func NewResolver(opts Options) (*Resolver, error) {
	r := &Resolver{
		regions:       make(map[string]string, len(DefaultRegions)+len(opts.Regions)),
		defaultRegion: opts.DefaultRegion,
		trustProxy:    opts.TrustProxy,
		uas:           cache.New[string, UA](uaCacheSize),
	}
	if r.defaultRegion == "" {
		r.defaultRegion = "us"
	}
	for k, v := range DefaultRegions {
		r.regions[k] = v
	}
	for k, v := range opts.Regions {
		r.regions[strings.ToUpper(k)] = v
	}
	if opts.GeoIPPath != "" {
		db, err := geoip2.Open(opts.GeoIPPath)
		if err != nil {
			return nil, fmt.Errorf("requestinfo: open GeoLite2 DB: %w", err)
		}
		r.geo = db
	}
	return r, nil
}

// Close releases the GeoIP handle.
func (r *Resolver) Close() error {
	if r.geo == nil {
		return nil
	}
	return r.geo.Close()
}

// Region maps an ISO country code to a region hint.
func (r *Resolver) Region(country string) string {
	if reg, ok := r.regions[strings.ToUpper(country)]; ok {
		return reg
	}
	return r.defaultRegion
}

// country returns the ISO code for ip, "" when unknown.
func (r *Resolver) country(ip net.IP) string {
	if r.geo == nil || ip == nil {
		return ""
	}
	rec, err := r.geo.Country(ip)
	if err != nil {
		return ""
	}
	return rec.Country.IsoCode
}

//
//  -----------------------------
//  Public helper: FromContext
//  -----------------------------
//

type ctxKey struct{} // unexported, collision-proof

// FromContext returns the pointer stored by Enrich, or nil if the
// middleware has not run.
func FromContext(ctx context.Context) *Info {
	v, _ := ctx.Value(ctxKey{}).(*Info)
	return v
}

// WithInfo stores info in ctx.  Exposed for handler tests.
func WithInfo(ctx context.Context, info *Info) context.Context {
	return context.WithValue(ctx, ctxKey{}, info)
}

//
//  -----------------------------
//  Internal helpers
//  -----------------------------
//

// ua returns the parsed header, consulting the LRU first.
func (r *Resolver) ua(raw string) UA {
	if u, ok := r.uas.Get(raw); ok {
		return u
	}
	u := parseUA(raw)
	r.uas.Add(raw, u)
	return u
}

// parseUA converts a raw header into our UA struct using uasurfer.
func parseUA(raw string) UA {
	u := uasurfer.Parse(raw)

	osName := strings.TrimPrefix(u.OS.Name.String(), "OS")
	if osName == "MacOSX" {
		osName = "macOS"
	}
	return UA{
		Raw:     raw,
		Browser: strings.TrimPrefix(u.Browser.Name.String(), "Browser"),
		OS:      osName,
		Device:  deviceTypeToString(u.DeviceType),
		IsBot:   u.IsBot(),
	}
}

// deviceTypeToString maps uasurfer.DeviceType to a user-friendly string.
func deviceTypeToString(dt uasurfer.DeviceType) string {
	switch dt {
	case uasurfer.DeviceComputer:
		return "Desktop"
	case uasurfer.DevicePhone:
		return "Phone"
	case uasurfer.DeviceTablet:
		return "Tablet"
	case uasurfer.DeviceConsole:
		return "Console"
	case uasurfer.DeviceWearable:
		return "Wearable"
	case uasurfer.DeviceTV:
		return "TV"
	default:
		return "Unknown"
	}
}
