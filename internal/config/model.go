// internal/config/model.go
//
// Typed configuration model for Launchpad.
//
// Context
// -------
// These structs define the shape of the configuration tree that
// `internal/config/loader.go` builds from three overlay layers:
//
//   • optional `.env`                             – dotenv values,
//   • `conf/global.yaml`                          – primary static file,
//   • `LAUNCHPAD_`-prefixed environment overrides – highest precedence.
//
// Any value whose string begins with the prefix `vault:` is resolved
// through a SecretResolver *before* unmarshalling, so the model never
// stores Vault URIs, only plain strings.
//
// Validation happens immediately after unmarshal; the app fails fast if
// required fields are missing.
//
// Notes
// -----
//   • Struct tags use `koanf:"…"`, not `yaml:"…"`.  Koanf ignores `yaml`
//     tags unless configured otherwise.
//   • The `Paths` block is filled at runtime; YAML must not try to set it.
//   • Oxford commas, two spaces after periods.  No em-dash.

package config

import (
	"fmt"
	"strings"
	"time"
)

//
// HTTP section
//

// HTTP holds web-server tunables.
type HTTP struct {
	ListenAddr   string        `koanf:"listen_addr"   validate:"required,hostname_port"`
	ForceHTTPS   bool          `koanf:"force_https"`
	TrustProxy   bool          `koanf:"trust_proxy"`
	WriteTimeout time.Duration `koanf:"write_timeout" validate:"gte=0"`
	CORSOrigins  []string      `koanf:"cors_origins"`
	RateLimit    float64       `koanf:"rate_limit"    validate:"gte=0"` // draft creations per second per IP
	RateBurst    int           `koanf:"rate_burst"    validate:"gte=0"`
}

//
// Database section
//

// Database selects the draft store.
//
// The *template* (`DSN`) is kept in YAML so operators can tweak host,
// port, or flags without touching Vault.  The *secret* portion
// (`Password`) usually comes from Vault and replaces the single `%s` verb
// in the template at runtime, keeping credentials out of flat files.
type Database struct {
	Driver          string        `koanf:"driver"            validate:"oneof=mysql memory"`
	DSN             string        `koanf:"dsn"               validate:"required_if=Driver mysql"`
	Password        string        `koanf:"password"`
	Migrate         bool          `koanf:"migrate"`
	MaxOpenConns    int           `koanf:"max_open_conns"    validate:"gte=0"`
	MaxIdleConns    int           `koanf:"max_idle_conns"    validate:"gte=0"`
	ConnMaxLifetime time.Duration `koanf:"conn_max_lifetime" validate:"gte=0"`
}

// ResolvedDSN returns the DSN with the password substituted.
func (d Database) ResolvedDSN() string {
	if d.Password != "" && strings.Count(d.DSN, "%s") == 1 {
		return fmt.Sprintf(d.DSN, d.Password)
	}
	return d.DSN
}

//
// Provider section
//

// Provider configures the Site Provider REST client.
type Provider struct {
	BaseURL string        `koanf:"base_url" validate:"required,url"`
	APIKey  string        `koanf:"api_key"  validate:"required"`
	Timeout time.Duration `koanf:"timeout"  validate:"gte=1s,lte=60s"`
}

//
// Provision section
//

// Provision tunes the orchestrator.
type Provision struct {
	Lease            time.Duration `koanf:"lease"              validate:"gte=1s"`
	BuildTimeout     time.Duration `koanf:"build_timeout"      validate:"gte=1m"`
	MaxManualRetries int           `koanf:"max_manual_retries" validate:"gte=1"`
	RetryAttempts    int           `koanf:"retry_attempts"     validate:"gte=1,lte=10"`
	RetryBase        time.Duration `koanf:"retry_base"         validate:"gte=0"`
	RetryFactor      float64       `koanf:"retry_factor"       validate:"gte=1"`
	RetryMax         time.Duration `koanf:"retry_max"          validate:"gtefield=RetryBase"`
}

//
// Worker section
//

// Worker configures the background resumer.
type Worker struct {
	Enabled     bool          `koanf:"enabled"`
	Interval    time.Duration `koanf:"interval"    validate:"gte=1s"`
	Batch       int           `koanf:"batch"       validate:"gte=1"`
	Concurrency int           `koanf:"concurrency" validate:"gte=1"`
}

//
// Notify section
//

// Notify selects where draft events are published.
type Notify struct {
	Driver        string   `koanf:"driver"         validate:"oneof=none redis kafka"`
	TopicPrefix   string   `koanf:"topic_prefix"`
	RedisAddr     string   `koanf:"redis_addr"     validate:"required_if=Driver redis"`
	RedisPassword string   `koanf:"redis_password"`
	KafkaBrokers  []string `koanf:"kafka_brokers"  validate:"required_if=Driver kafka"`
}

//
// Auth section
//

// Auth verifies the bearer tokens sent to attach and login routes.
type Auth struct {
	JWTSecret string `koanf:"jwt_secret" validate:"required,min=32"`
	Issuer    string `koanf:"issuer"`
	Audience  string `koanf:"audience"`
}

//
// Geo section
//

// Geo drives the region hint stamped on new drafts.
type Geo struct {
	GeoIPPath     string            `koanf:"geoip_path"`
	DefaultRegion string            `koanf:"default_region" validate:"required"`
	Regions       map[string]string `koanf:"regions"`
}

//
// Tracing section
//

// Tracing configures the OTLP/HTTP span exporter.
type Tracing struct {
	Enabled     bool    `koanf:"enabled"`
	Endpoint    string  `koanf:"endpoint"     validate:"required_if=Enabled true"`
	Insecure    bool    `koanf:"insecure"`
	ServiceName string  `koanf:"service_name" validate:"required"`
	SampleRatio float64 `koanf:"sample_ratio" validate:"gte=0,lte=1"`
}

//
// Log section
//

// Log controls the file logger.
type Log struct {
	Dir   string `koanf:"dir"` // relative to Paths.Root unless absolute
	Level string `koanf:"level" validate:"oneof=debug info warn error"`
}

//
// Paths section (runtime only)
//

// Paths is resolved at runtime, never set in YAML or env.  The loader
// discovers `Root` (repo root or LAUNCHPAD_ROOT override) so later code
// can build absolute file paths.
type Paths struct {
	Root string // LAUNCHPAD_ROOT or discovered parent
}

//
// Root aggregate
//

// Config is the immutable aggregate returned by Load() and cached in an
// atomic.Pointer for lock-free reads throughout the app lifetime.
type Config struct {
	HTTP      HTTP      `koanf:"http"`
	Database  Database  `koanf:"database"`
	Provider  Provider  `koanf:"provider"`
	Provision Provision `koanf:"provision"`
	Worker    Worker    `koanf:"worker"`
	Notify    Notify    `koanf:"notify"`
	Auth      Auth      `koanf:"auth"`
	Geo       Geo       `koanf:"geo"`
	Tracing   Tracing   `koanf:"tracing"`
	Log       Log       `koanf:"log"`
	Paths     Paths     `koanf:"-"` // not loaded from config files
}

// Default returns the values used for any key the layers leave unset.
func Default() Config {
	return Config{
		HTTP: HTTP{
			ListenAddr:   ":8080",
			WriteTimeout: 90 * time.Second,
			RateLimit:    1,
			RateBurst:    5,
		},
		Database: Database{
			Driver:          "mysql",
			Migrate:         true,
			MaxOpenConns:    20,
			MaxIdleConns:    10,
			ConnMaxLifetime: 30 * time.Minute,
		},
		Provider: Provider{Timeout: 20 * time.Second},
		Provision: Provision{
			Lease:            2 * time.Minute,
			BuildTimeout:     15 * time.Minute,
			MaxManualRetries: 5,
			RetryAttempts:    3,
			RetryBase:        time.Second,
			RetryFactor:      2,
			RetryMax:         10 * time.Second,
		},
		Worker: Worker{
			Enabled:     true,
			Interval:    10 * time.Second,
			Batch:       50,
			Concurrency: 4,
		},
		Notify:  Notify{Driver: "none", TopicPrefix: "launchpad."},
		Geo:     Geo{DefaultRegion: "us"},
		Tracing: Tracing{ServiceName: "launchpad", SampleRatio: 1},
		Log:     Log{Dir: "logs", Level: "info"},
	}
}
