// internal/config/model.go
//
// Typed configuration model for Canopy.
//
// Context
// -------
// These structs define the shape of the configuration tree that
// `internal/config/loader.go` builds from three overlay layers:
//
//   • optional `.env`                          – dotenv values,
//   • `conf/global.yaml`                       – primary static file,
//   • `CANOPY_`-prefixed environment overrides – highest precedence.
//
// Any value whose string begins with the prefix `vault:` is resolved
// through the Vault client *before* unmarshalling, so the model never
// stores Vault URIs—only plain strings.  That covers the service-role
// DSN and the preview shared secret, keeping both out of flat files and
// git history.
//
// Validation happens immediately after unmarshal; the app fails fast if
// required fields are missing.
//
// Notes
// -----
//   • Struct tags use `koanf:"…"`, not `yaml:"…"`—Koanf ignores `yaml`
//     tags unless configured otherwise.
//   • The `Paths` block is filled at runtime; YAML must not try to set it.
//   • Oxford commas, two spaces after periods.  No em-dash.

package config

import "time"

//
// HTTP section
//

// HTTP holds web-server tunables.
type HTTP struct {
	ListenAddr string `koanf:"listen_addr" validate:"required,hostname_port"`
	ForceHTTPS bool   `koanf:"force_https"`
}

//
// Platform section
//

// Platform identifies the apex domain tenants hang off and the shared
// secret that unlocks per-request preview (cache and published-filter
// bypass).  An empty secret disables preview entirely.
type Platform struct {
	BaseDomain    string `koanf:"base_domain" validate:"required,hostname"`
	PreviewSecret string `koanf:"preview_secret"`
}

//
// Database section
//

// Database holds the two pool DSNs.  DSN is the normal pool, subject to
// the store's row-visibility policies; ServiceDSN connects as the
// service role that bypasses them and is used only by the site loader's
// last-resort pass.  ServiceDSN is optional; empty disables that pass.
type Database struct {
	DSN        string `koanf:"dsn" validate:"required"`
	ServiceDSN string `koanf:"service_dsn"`
}

//
// Cache section
//

// Cache tunes the host-resolution cache.  Staleness is bounded by
// ResolutionTTL only; there is no active invalidation on publish.
type Cache struct {
	ResolutionTTL time.Duration `koanf:"resolution_ttl"`
	SweepInterval time.Duration `koanf:"sweep_interval"`
}

//
// Diagnostics section
//

// Diag tunes 404 diagnostics.  GeoIPPath is optional; empty disables
// country enrichment.
type Diag struct {
	DedupWindow time.Duration `koanf:"dedup_window"`
	GeoIPPath   string        `koanf:"geoip_path"`
}

//
// Resolver section
//

// Resolver points at the internal state-retrieval endpoint used as the
// identifier resolver's last fallback.  Optional.
type Resolver struct {
	StateEndpoint string `koanf:"state_endpoint" validate:"omitempty,url"`
}

//
// Paths section (runtime only)
//

// Paths is resolved at runtime—never set in YAML or env.  The loader
// discovers `Root` (repo root or CANOPY_ROOT override) so later code can
// build absolute file paths.
type Paths struct {
	Root string // CANOPY_ROOT or discovered parent
}

//
// Root aggregate
//

// Config is the immutable aggregate returned by Load() and cached in an
// atomic.Pointer for lock-free reads throughout the app lifetime.
type Config struct {
	HTTP     HTTP     `koanf:"http"`
	Platform Platform `koanf:"platform"`
	Database Database `koanf:"database"`
	Cache    Cache    `koanf:"cache"`
	Diag     Diag     `koanf:"diag"`
	Resolver Resolver `koanf:"resolver"`
	Paths    Paths    `koanf:"-"` // not loaded from config files
}
