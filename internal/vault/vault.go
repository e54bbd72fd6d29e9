// internal/vault/vault.go
//
// Vault client wrapper for Canopy.
//
// Context
// -------
// The config loader resolves `vault:<path>#<key>` references through this
// client before unmarshalling, keeping the store DSNs and the preview
// secret out of flat files.  Config loads happen at boot and on explicit
// Reload, so the surface is deliberately small: one KV-v2 read helper
// with per-key caching, plus periodic self-renewal of the token so a
// long-lived process can Reload without re-authenticating.
//
// Public workflow
// ---------------
//  1. cli, err := vault.New(ctx)                   // during boot.
//  2. pw,  err := cli.GetKV(ctx, path, key, ttl)   // config loader only.
//
// Build tags: none.
package vault

import (
	"context"
	"errors"
	"fmt"
	"os"
	"strings"
	"sync"
	"time"

	vault "github.com/hashicorp/vault/api"
	"go.uber.org/zap"
)

// renewEvery paces the token self-renewal loop.  Renewal failures are
// logged and retried on the same cadence; a revoked token surfaces as a
// GetKV error on the next Reload.
const renewEvery = 15 * time.Minute

// Client reads KV-v2 secrets with per-key caching.  Safe for concurrent
// use.  Zero value is invalid; construct with New.
type Client struct {
	api *vault.Client

	cacheMu sync.RWMutex
	cache   map[string]cached // canonical path#key → value + expiry.
}

type cached struct {
	val string
	exp time.Time
}

// New constructs a Vault client and starts the token-renewal ticker.
//
// Environment expectations
// ------------------------
// • VAULT_ADDR   – scheme and host of the Vault server.
// • VAULT_TOKEN  – initial token (falls back to ~/.vault-token).
func New(ctx context.Context) (*Client, error) {
	cfg := vault.DefaultConfig()
	if err := cfg.ReadEnvironment(); err != nil {
		return nil, fmt.Errorf("vault env cfg: %w", err)
	}

	apiCli, err := vault.NewClient(cfg)
	if err != nil {
		return nil, fmt.Errorf("vault api: %w", err)
	}
	if tok := os.Getenv("VAULT_TOKEN"); tok != "" {
		apiCli.SetToken(tok)
	}

	c := &Client{
		api:   apiCli,
		cache: make(map[string]cached),
	}
	go c.renewLoop(ctx)
	return c, nil
}

// GetKV fetches a single key from a KV-v2 secret.  If ttl > 0 the result
// is cached for that duration, so a Reload inside the TTL does not hit
// Vault again.
func (c *Client) GetKV(ctx context.Context, secretPath, key string, ttl time.Duration) (string, error) {
	if secretPath == "" || key == "" {
		return "", errors.New("secret path and key must be non-empty")
	}

	canonical := secretPath + "#" + key

	if ttl > 0 {
		c.cacheMu.RLock()
		if cv, ok := c.cache[canonical]; ok && time.Now().Before(cv.exp) {
			c.cacheMu.RUnlock()
			return cv.val, nil
		}
		c.cacheMu.RUnlock()
	}

	mount, rel := splitMount(secretPath)
	sec, err := c.api.KVv2(mount).Get(ctx, rel)
	if err != nil {
		return "", fmt.Errorf("vault get %s: %w", secretPath, err)
	}

	raw, ok := sec.Data[key]
	if !ok {
		return "", fmt.Errorf("key %q not found in secret %q", key, secretPath)
	}
	sval, ok := raw.(string)
	if !ok {
		return "", fmt.Errorf("value at %s#%s is not a string", secretPath, key)
	}

	if ttl > 0 {
		c.cacheMu.Lock()
		c.cache[canonical] = cached{val: sval, exp: time.Now().Add(ttl)}
		c.cacheMu.Unlock()
	}
	return sval, nil
}

// renewLoop self-renews the token on a fixed cadence until ctx ends.
func (c *Client) renewLoop(ctx context.Context) {
	t := time.NewTicker(renewEvery)
	defer t.Stop()
	for {
		select {
		case <-ctx.Done():
			return
		case <-t.C:
		}

		sec, err := c.api.Auth().Token().RenewSelfWithContext(ctx, 0)
		if err != nil {
			zap.S().Warnw("vault token renew failed", "err", err)
			continue
		}
		if sec != nil && sec.Auth != nil {
			zap.S().Debugw("vault token renewed",
				"ttl_seconds", sec.Auth.LeaseDuration,
				"renewable", sec.Auth.Renewable)
		}
	}
}

// splitMount separates the KV mount from the path below it, e.g.
// "secret/canopy/db" → ("secret", "canopy/db").
func splitMount(p string) (mount, rel string) {
	parts := strings.SplitN(p, "/", 2)
	mount = parts[0]
	if len(parts) == 2 {
		rel = parts[1]
	}
	return
}
