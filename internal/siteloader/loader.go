// internal/siteloader/loader.go
//
// Request-time published-site lookup.
//
// Context
// -------
// A tenant can be addressed three independent ways: a custom domain
// (domain_lc, stored with or without "www."), a platform subdomain
// (default_subdomain, fully qualified), or a bare slug.  The routing keys
// are denormalised onto the canonical row for read performance, so the
// load is an ordered cascade of single-key probes rather than a join.
// Each step runs only when the previous produced nothing, always filtered
// to published, non-archived rows.
//
// The full cascade repeats once on the service-role pool, which bypasses
// the store's row-visibility policies.  That second pass is a safety net
// for policy gaps, not the normal path; a hit there is logged so the gap
// can be found.
package siteloader

import (
	"context"
	"errors"
	"strings"

	"github.com/jmoiron/sqlx"
	"go.uber.org/zap"

	"github.com/canopyhq/canopy/internal/hostinfo"
	"github.com/canopyhq/canopy/internal/metrics"
	"github.com/canopyhq/canopy/internal/template"
)

// ErrNotFound is returned when no cascade step matches the host.
var ErrNotFound = errors.New("siteloader: no site for host")

// Loader runs the match-key cascade.  The service pool may be nil, in
// which case the elevated pass is skipped.
type Loader struct {
	db         *sqlx.DB
	service    *sqlx.DB
	baseDomain string
}

// New constructs a Loader.
func New(db, service *sqlx.DB, baseDomain string) *Loader {
	return &Loader{db: db, service: service, baseDomain: strings.ToLower(baseDomain)}
}

// Options tune one lookup.  AllowUnpublished is set when a valid preview
// token accompanied the request.
type Options struct {
	AllowUnpublished bool
}

// Load resolves host to its canonical template row.  Returns ErrNotFound
// after every cascade step, on both pools, came up empty.
func (l *Loader) Load(ctx context.Context, host string, opts Options) (*template.Row, error) {
	info := hostinfo.Classify(host, l.baseDomain)
	publishedOnly := !opts.AllowUnpublished

	row, outcome, err := l.cascade(ctx, l.db, info, publishedOnly)
	if err != nil && !errors.Is(err, ErrNotFound) {
		return nil, err
	}
	if row == nil && l.service != nil {
		row, outcome, err = l.cascade(ctx, l.service, info, publishedOnly)
		if err != nil && !errors.Is(err, ErrNotFound) {
			return nil, err
		}
		if row != nil {
			outcome = "service_" + outcome
			zap.S().Warnw("site visible only to service role",
				"host", info.Host, "base_slug", row.BaseSlug, "outcome", outcome)
		}
	}
	if row == nil {
		metrics.SiteLoadTotal.WithLabelValues("miss").Inc()
		return nil, ErrNotFound
	}
	metrics.SiteLoadTotal.WithLabelValues(outcome).Inc()
	return row, nil
}

// cascade runs the three match keys against one pool.  ErrNotFound from a
// step is a fall-through; any other error aborts.
func (l *Loader) cascade(ctx context.Context, db *sqlx.DB, info hostinfo.Info, publishedOnly bool) (*template.Row, string, error) {
	// 1. Exact domain match, both www variants.
	row, err := template.CanonicalByDomain(ctx, db,
		info.Host, hostinfo.ToggleWWW(info.Host), publishedOnly)
	if err == nil {
		return row, "domain", nil
	}
	if !errors.Is(err, template.ErrNotFound) {
		return nil, "", err
	}

	label := info.Subdomain
	if label == "" {
		return nil, "", ErrNotFound
	}

	// 2. Fully qualified platform subdomain.
	row, err = template.CanonicalByDefaultSubdomain(ctx, db,
		label+"."+l.baseDomain, publishedOnly)
	if err == nil {
		return row, "default_subdomain", nil
	}
	if !errors.Is(err, template.ErrNotFound) {
		return nil, "", err
	}

	// 3. Bare label as slug.
	row, err = template.CanonicalBySlug(ctx, db, label, publishedOnly)
	if err == nil {
		return row, "slug", nil
	}
	if !errors.Is(err, template.ErrNotFound) {
		return nil, "", err
	}
	return nil, "", ErrNotFound
}
