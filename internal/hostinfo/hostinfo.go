// internal/hostinfo/hostinfo.go
//
// Host-header classification.
//
// Context
// -------
// Every inbound request carries a Host header that falls into exactly one
// of five shapes: a bare development host, a development host with a
// subdomain label, the platform base domain itself, a first-party
// subdomain of the base domain, or a third-party custom domain.  The
// routing middleware and the site loader both branch on this shape, so the
// classification lives here as a pure function with no ambient state; the
// base domain is an explicit argument, never read from env.
//
// Notes
// -----
//   - Ports, trailing dots, and a leading "www." are normalised away
//     before classification, so "www.acme.example.com:8443" and
//     "acme.example.com" classify identically.
//   - Oxford commas, two spaces after periods.
package hostinfo

import "strings"

// Kind enumerates the five host shapes.  Classify assigns exactly one.
type Kind int

const (
	KindLocalBare Kind = iota
	KindLocalSubdomain
	KindBaseRoot
	KindSubdomain
	KindCustomDomain
)

// String returns a short label for logs and traces.
func (k Kind) String() string {
	switch k {
	case KindLocalBare:
		return "local-bare"
	case KindLocalSubdomain:
		return "local-subdomain"
	case KindBaseRoot:
		return "base-root"
	case KindSubdomain:
		return "subdomain"
	case KindCustomDomain:
		return "custom-domain"
	default:
		return "unknown"
	}
}

// Info is the structured descriptor for one Host header.  It is inert:
// plain strings and booleans, safe to log or store in a request context.
type Info struct {
	Host           string // normalised host, port and trailing dot stripped
	BaseHost       string // Host with a leading "www." removed
	Subdomain      string // extracted label, empty unless (local-)subdomain
	IsLocal        bool
	IsCustomDomain bool
	Kind           Kind
}

// bare development hosts that never carry a tenant label
var localBareHosts = map[string]struct{}{
	"localhost": {},
	"127.0.0.1": {},
	"0.0.0.0":   {},
	"::1":       {},
}

// Classify turns a raw Host header into an Info.  baseDomain is the
// platform's apex ("canopy.site"); comparison is case-insensitive.
func Classify(rawHost, baseDomain string) Info {
	host := Normalize(rawHost)
	baseDomain = strings.ToLower(strings.TrimSuffix(baseDomain, "."))

	baseHost := strings.TrimPrefix(host, "www.")
	info := Info{Host: host, BaseHost: baseHost}

	if isLocalHost(host) {
		info.IsLocal = true
		info.Kind = KindLocalBare
		if label := localLabel(host); label != "" && label != "www" {
			info.Subdomain = label
			info.Kind = KindLocalSubdomain
		}
		return info
	}

	switch {
	case baseHost == baseDomain:
		info.Kind = KindBaseRoot
	case strings.HasSuffix(baseHost, "."+baseDomain):
		label := strings.TrimSuffix(baseHost, "."+baseDomain)
		// Only single-label subdomains route to tenants; deeper labels
		// keep their left-most segment, matching the loader's cascade.
		if i := strings.LastIndexByte(label, '.'); i != -1 {
			label = label[:i]
		}
		info.Subdomain = label
		info.Kind = KindSubdomain
	default:
		info.IsCustomDomain = true
		info.Kind = KindCustomDomain
	}
	return info
}

// Normalize lower-cases the host and strips the port and trailing dot.
// X-Forwarded-Host values pass through the same path as Host.
func Normalize(rawHost string) string {
	h := strings.TrimSpace(strings.ToLower(rawHost))
	h = stripPort(h)
	return strings.TrimSuffix(h, ".")
}

// ToggleWWW returns the host with a leading "www." added or removed.
// The loader probes both variants against domain_lc.
func ToggleWWW(host string) string {
	if strings.HasPrefix(host, "www.") {
		return strings.TrimPrefix(host, "www.")
	}
	return "www." + host
}

// isLocalHost reports whether host is a development host: a bare loopback
// name, anything under .localhost, or lvh.me (a public DNS wildcard that
// resolves to 127.0.0.1).
func isLocalHost(host string) bool {
	if _, ok := localBareHosts[host]; ok {
		return true
	}
	if host == "lvh.me" || strings.HasSuffix(host, ".lvh.me") {
		return true
	}
	return strings.HasSuffix(host, ".localhost")
}

// localLabel extracts the tenant label from "foo.localhost" or
// "foo.lvh.me".  Empty when the host is bare.
func localLabel(host string) string {
	for _, suffix := range []string{".localhost", ".lvh.me"} {
		if strings.HasSuffix(host, suffix) {
			label := strings.TrimSuffix(host, suffix)
			if i := strings.LastIndexByte(label, '.'); i != -1 {
				label = label[:i]
			}
			return label
		}
	}
	return ""
}

// stripPort removes any ":port" suffix from the Host header.  IPv6
// literals keep their brackets until the port is gone.
func stripPort(h string) string {
	if strings.HasPrefix(h, "[") {
		if i := strings.IndexByte(h, ']'); i != -1 {
			return strings.Trim(h[:i+1], "[]")
		}
		return h
	}
	if i := strings.LastIndexByte(h, ':'); i != -1 && strings.Count(h, ":") == 1 {
		return h[:i]
	}
	return h
}
