// internal/routing/middleware.go
//
// Host-classifying rewrite middleware.
//
// Context
// -------
// Every inbound request is rewritten onto the tenant-scoped rendering
// route before the router sees it.  The platform base domain falls
// through unmodified to the default application; subdomain and custom
// domain hosts are resolved to a {slug, first page} pair through the
// short-TTL cache and rewritten to /tenant/{slug}/....  Static assets,
// the auth callback, and the fixed webhook paths are excluded up front.
//
// Workflow
// --------
//  1. Classify the host (hostinfo), honouring X-Forwarded-Host.
//  2. Root path: cache get-or-compute via the site loader, then rewrite
//     to /tenant/{slug}/{firstPage}.  A valid preview token bypasses the
//     cache and the published-only filter for that single request.
//  3. Non-root paths rewrite to /tenant/{slug}{path} without an
//     existence check; the downstream renderer owns its 404.
//  4. Any root-path resolution failure logs one deduplicated diagnostic
//     row and rewrites to the not-found route.
package routing

import (
	"context"
	"errors"
	"net/http"
	"strings"

	"go.uber.org/zap"

	"github.com/canopyhq/canopy/internal/diaglog"
	"github.com/canopyhq/canopy/internal/hostinfo"
	"github.com/canopyhq/canopy/internal/rescache"
	"github.com/canopyhq/canopy/internal/siteloader"
)

// NotFoundPath is the internal route rendered on resolution failure.
const NotFoundPath = "/not-found"

// skipPrefixes are never rewritten: platform surfaces, assets, the auth
// callback, and the two fixed webhook paths.
var skipPrefixes = []string{
	"/assets/",
	"/favicon.ico",
	"/healthz",
	"/metrics",
	"/not-found",
	"/tenant/",
	"/auth/callback",
	"/webhooks/billing",
	"/webhooks/domains",
}

// Config carries the middleware's collaborators and flags.  All toggles
// are explicit here; the middleware reads no ambient process state.
type Config struct {
	BaseDomain    string
	PreviewSecret string
	Cache         *rescache.Cache
	Loader        *siteloader.Loader
	Diag          *diaglog.Logger
}

// Middleware returns the host-rewrite handler wrapper.
func Middleware(cfg Config) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			if skipPath(r.URL.Path) {
				next.ServeHTTP(w, r)
				return
			}

			info := hostinfo.Classify(requestHost(r), cfg.BaseDomain)

			switch info.Kind {
			case hostinfo.KindBaseRoot, hostinfo.KindLocalBare:
				// Default application (marketing site, editor, admin).
				next.ServeHTTP(w, r)
				return
			}

			preview := cfg.PreviewSecret != "" &&
				r.URL.Query().Get("preview") == cfg.PreviewSecret

			res, err := cfg.resolve(r.Context(), info, preview)
			if err != nil {
				if r.URL.Path != "/" && !info.IsCustomDomain && info.Subdomain != "" {
					// Non-root subdomain path: rewrite on the bare
					// label, no existence check.
					res = rescache.Resolution{Slug: info.Subdomain}
				} else {
					cfg.miss(r, info, err)
					rewrite(r, NotFoundPath)
					next.ServeHTTP(w, r)
					return
				}
			}

			if r.URL.Path == "/" {
				rewrite(r, BuildPath("/tenant/"+res.Slug, res.FirstPage))
			} else {
				rewrite(r, "/tenant/"+res.Slug+r.URL.Path)
			}
			next.ServeHTTP(w, r)
		})
	}
}

// resolve runs the cached lookup for one classified host.  Preview
// requests skip the cache entirely and may see unpublished rows.
func (cfg Config) resolve(ctx context.Context, info hostinfo.Info, preview bool) (rescache.Resolution, error) {
	space, key := keyFor(info)

	lookup := func(ctx context.Context, _ string) (rescache.Resolution, error) {
		row, err := cfg.Loader.Load(ctx, info.Host,
			siteloader.Options{AllowUnpublished: preview})
		if err != nil {
			return rescache.Resolution{}, err
		}
		return rescache.Resolution{
			Slug:      row.BaseSlug,
			FirstPage: row.Data.FirstPageSlug(),
		}, nil
	}

	if preview {
		return lookup(ctx, key)
	}
	return cfg.Cache.Get(ctx, space, key, lookup)
}

// miss records one deduplicated diagnostic row for a failed root-path
// resolution.
func (cfg Config) miss(r *http.Request, info hostinfo.Info, err error) {
	reason := "resolution-failed"
	if errors.Is(err, siteloader.ErrNotFound) {
		reason = "no-canonical-row"
	}
	if cfg.Diag != nil {
		cfg.Diag.Record(r.Context(), r, info.Host, r.URL.Path, reason)
	}
	zap.S().Debugw("host resolution miss",
		"host", info.Host, "kind", info.Kind.String(), "err", err)
}

// keyFor picks the cache keyspace and key for one host shape.
func keyFor(info hostinfo.Info) (rescache.Keyspace, string) {
	if info.IsCustomDomain {
		return rescache.KeyCustomDomain, info.BaseHost
	}
	return rescache.KeySubdomain, info.Subdomain
}

// rewrite mutates the request path in place for the router that runs
// next.
func rewrite(r *http.Request, target string) {
	original := r.URL.Path
	r.URL.Path = target
	r.RequestURI = target
	zap.S().Debugw("route rewrite", "from", original, "to", target)
}

// requestHost prefers X-Forwarded-Host when the platform sits behind a
// proxy tier.
func requestHost(r *http.Request) string {
	if xfh := r.Header.Get("X-Forwarded-Host"); xfh != "" {
		return xfh
	}
	return r.Host
}

func skipPath(path string) bool {
	for _, p := range skipPrefixes {
		if strings.HasPrefix(path, p) {
			return true
		}
	}
	return false
}
