// internal/diaglog/diaglog.go
//
// Deduplicated 404 diagnostics.
//
// Context
// -------
// When the routing middleware cannot resolve a host it renders a standard
// not-found page, but operators still need to see which hosts and paths
// are missing routing keys (dangling DNS, typo'd custom domains, expired
// tenants).  Logging every request would flood the table under crawler
// traffic, so entries are deduplicated in memory per
// (hostname, pathname, reason) within a rolling window before being
// appended to route_miss_log.  The dedup map is process-local; across
// instances the guarantee is per-instance, which is sufficient for a
// diagnostic stream.
//
// Each row is enriched with the client IP, a user-agent summary, and a
// best-effort GeoLite2 country code.  The geo reader is optional; a nil
// reader degrades to an empty country.
package diaglog

import (
	"context"
	"net"
	"net/http"
	"strings"
	"sync"
	"time"

	"github.com/avct/uasurfer"
	"github.com/jmoiron/sqlx"
	"github.com/oschwald/geoip2-golang"
	"go.uber.org/zap"

	"github.com/canopyhq/canopy/internal/metrics"
)

// DefaultDedupWindow bounds repeat rows for one (host, path, reason).
const DefaultDedupWindow = 5 * time.Minute

// Logger appends deduplicated diagnostic rows.  Safe for concurrent use.
type Logger struct {
	db     *sqlx.DB
	window time.Duration
	geo    *geoip2.Reader

	mu   sync.Mutex
	seen map[string]time.Time
}

// New constructs a Logger.  geo may be nil.
func New(db *sqlx.DB, window time.Duration, geo *geoip2.Reader) *Logger {
	if window <= 0 {
		window = DefaultDedupWindow
	}
	return &Logger{
		db:     db,
		window: window,
		geo:    geo,
		seen:   make(map[string]time.Time),
	}
}

// Record writes one diagnostic row unless the same
// (hostname, pathname, reason) was already written inside the window.
// Failures are logged, never surfaced: diagnostics must not affect the
// request path.
func (l *Logger) Record(ctx context.Context, r *http.Request, hostname, pathname, reason string) {
	if !l.shouldWrite(hostname, pathname, reason) {
		return
	}

	ip := clientIP(r)
	ua := uasurfer.Parse(r.UserAgent())
	browser := strings.TrimPrefix(ua.Browser.Name.String(), "Browser")

	const q = `INSERT INTO route_miss_log
	           (hostname, pathname, reason, ip_address, browser, is_bot,
	            country_iso, created_at)
	           VALUES (?, ?, ?, ?, ?, ?, ?, ?)`
	_, err := l.db.ExecContext(ctx, q, hostname, pathname, reason,
		ipString(ip), browser, ua.IsBot, l.country(ip), time.Now().UTC())
	if err != nil {
		// Release the dedup key so the next occurrence retries the
		// insert instead of going dark for a full window.
		l.forget(hostname, pathname, reason)
		zap.S().Errorw("route miss log write failed",
			"hostname", hostname, "pathname", pathname, "err", err)
		return
	}
	metrics.RouteMissLogTotal.Inc()
	zap.S().Infow("route miss",
		"hostname", hostname, "pathname", pathname, "reason", reason,
		"bot", ua.IsBot)
}

// shouldWrite checks and updates the dedup map.  Stale keys are pruned
// opportunistically so the map stays proportional to recent distinct
// misses.
func (l *Logger) shouldWrite(hostname, pathname, reason string) bool {
	key := hostname + "|" + pathname + "|" + reason
	now := time.Now()

	l.mu.Lock()
	defer l.mu.Unlock()

	if at, ok := l.seen[key]; ok && now.Sub(at) < l.window {
		return false
	}
	for k, at := range l.seen {
		if now.Sub(at) >= l.window {
			delete(l.seen, k)
		}
	}
	l.seen[key] = now
	return true
}

// forget drops a dedup key after a failed write.
func (l *Logger) forget(hostname, pathname, reason string) {
	l.mu.Lock()
	delete(l.seen, hostname+"|"+pathname+"|"+reason)
	l.mu.Unlock()
}

// country returns the ISO code for ip, or "" without a geo reader.
func (l *Logger) country(ip net.IP) string {
	if l.geo == nil || ip == nil {
		return ""
	}
	rec, err := l.geo.Country(ip)
	if err != nil {
		return ""
	}
	return rec.Country.IsoCode
}

// clientIP extracts the left-most address from X-Forwarded-For or
// X-Real-IP, falling back to r.RemoteAddr ("ip:port").
func clientIP(r *http.Request) net.IP {
	if xff := r.Header.Get("X-Forwarded-For"); xff != "" {
		first := strings.TrimSpace(strings.Split(xff, ",")[0])
		if ip := net.ParseIP(first); ip != nil {
			return ip
		}
	}
	if xr := r.Header.Get("X-Real-IP"); xr != "" {
		if ip := net.ParseIP(strings.TrimSpace(xr)); ip != nil {
			return ip
		}
	}
	host, _, err := net.SplitHostPort(r.RemoteAddr)
	if err != nil {
		return net.ParseIP(r.RemoteAddr)
	}
	return net.ParseIP(host)
}

func ipString(ip net.IP) string {
	if ip == nil {
		return ""
	}
	return ip.String()
}
