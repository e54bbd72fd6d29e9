// internal/config/loader.go
//
// Configuration loader.
//
/*
Context
--------
`Load()` builds one immutable `Config` struct from three layers (highest
precedence last):

  1. Optional `.env` file at `<root>/conf/.env`.
  2. `conf/global.yaml`.
  3. Environment variables prefixed `CANOPY_`, where `__` maps to “.”
     (e.g., `CANOPY_HTTP__LISTEN_ADDR → http.listen_addr`).

After merging, any string value of the form `vault:<path>#<key>` is
resolved through the Vault client, the tree is unmarshalled into
strongly-typed structs, validated, enriched with the runtime root path,
and cached in an `atomic.Pointer` for lock-free reads.  `Reload()` calls
`Load()` again and swaps the pointer.

Instrumentation
---------------
  • DEBUG spans — root discovery, YAML read, env overlay, Vault hits.
  • ERROR spans — YAML parse, env overlay, unmarshal, validation failures.
  • INFO  span  — final “config loaded” with key highlights.
  • Logs use the global *sugared* logger (`zap.S()`) so early boot issues
    surface even before the file logger is installed (bootstrap console).

Notes
-----
  • `rootDir()` climbs the cwd tree until it finds `conf/global.yaml`;
    this lets `go run ./cmd/web` work from any sub-directory.
  • Oxford commas, two spaces after periods.
*/
package config

import (
	"context"
	"os"
	"path/filepath"
	"strings"
	"sync/atomic"
	"time"

	"github.com/joho/godotenv"
	"github.com/knadh/koanf/parsers/yaml"
	"github.com/knadh/koanf/providers/env"
	"github.com/knadh/koanf/providers/file"
	koanf "github.com/knadh/koanf/v2"
	"go.uber.org/zap"

	"github.com/canopyhq/canopy/internal/vault"
)

var current atomic.Pointer[Config]

const vaultPrefix = "vault:"

/*──────────────────────────── root discovery ───────────────────────────────*/

// rootDir resolves CANOPY_ROOT or climbs directories until
// conf/global.yaml is found.  Falls back to executable heuristic for
// production layout.
func rootDir() string {
	if r := os.Getenv("CANOPY_ROOT"); r != "" {
		return r
	}

	wd, _ := os.Getwd()
	dir := wd
	for {
		if _, err := os.Stat(filepath.Join(dir, "conf", "global.yaml")); err == nil {
			return dir
		}
		parent := filepath.Dir(dir)
		if parent == dir { // reached filesystem root
			break
		}
		dir = parent
	}

	exe, _ := os.Executable()
	if filepath.Base(filepath.Dir(exe)) == "bin" {
		return filepath.Dir(filepath.Dir(exe))
	}
	return wd
}

/*─────────────────────────────── loader ───────────────────────────────────*/

// Load reads .env, YAML, env overrides, resolves Vault references,
// validates, and caches Config.
func Load(ctx context.Context) (*Config, error) {
	root := rootDir()
	zap.S().Debugw("config root resolved", "root", root)

	// .env (optional, no error if missing)
	_ = godotenv.Load(filepath.Join(root, "conf", ".env"))

	k := koanf.New(".")

	yamlPath := filepath.Join(root, "conf", "global.yaml")
	if err := k.Load(file.Provider(yamlPath), yaml.Parser()); err != nil {
		zap.S().Errorw("config yaml load failed", "file", yamlPath, "err", err)
		return nil, err
	}
	zap.S().Debugw("config yaml loaded", "file", yamlPath)

	// Env overrides: CANOPY_HTTP__LISTEN_ADDR → http.listen_addr
	if err := k.Load(env.Provider("CANOPY_", ".", func(s string) string {
		return strings.ToLower(strings.ReplaceAll(
			strings.TrimPrefix(s, "CANOPY_"), "__", "."))
	}), nil); err != nil {
		zap.S().Errorw("config env overlay failed", "err", err)
		return nil, err
	}

	if err := resolveVaultRefs(ctx, k); err != nil {
		return nil, err
	}

	var cfg Config
	if err := k.Unmarshal("", &cfg); err != nil {
		zap.S().Errorw("config unmarshal failed", "err", err)
		return nil, err
	}

	cfg.Paths.Root = root
	if err := validateStruct(&cfg); err != nil {
		zap.S().Errorw("config validation failed", "err", err)
		return nil, err
	}

	current.Store(&cfg)
	zap.S().Infow("config loaded",
		"listen_addr", cfg.HTTP.ListenAddr,
		"base_domain", cfg.Platform.BaseDomain,
		"force_https", cfg.HTTP.ForceHTTPS,
		"root", cfg.Paths.Root,
	)
	return &cfg, nil
}

/*──────────────────────────── vault indirection ────────────────────────────*/

// resolveVaultRefs replaces every `vault:<path>#<key>` string in the
// merged tree with the secret it names.  The client is constructed only
// when at least one reference exists, so installs without Vault never
// touch it.
func resolveVaultRefs(ctx context.Context, k *koanf.Koanf) error {
	var cli *vault.Client
	for _, key := range k.Keys() {
		val, ok := k.Get(key).(string)
		if !ok || !strings.HasPrefix(val, vaultPrefix) {
			continue
		}
		if cli == nil {
			var err error
			cli, err = vault.New(ctx)
			if err != nil {
				zap.S().Errorw("vault client init failed", "err", err)
				return err
			}
		}

		ref := strings.TrimPrefix(val, vaultPrefix)
		secretPath, secretKey, found := strings.Cut(ref, "#")
		if !found {
			secretKey = "value"
		}
		secret, err := cli.GetKV(ctx, secretPath, secretKey, 5*time.Minute)
		if err != nil {
			zap.S().Errorw("vault secret resolve failed", "key", key, "err", err)
			return err
		}
		if err := k.Set(key, secret); err != nil {
			return err
		}
		zap.S().Debugw("vault secret resolved", "key", key, "path", secretPath)
	}
	return nil
}

/*──────────────────────────── helpers ─────────────────────────────────────*/

func Get() *Config { return current.Load() }

func Reload(ctx context.Context) error { _, err := Load(ctx); return err }
