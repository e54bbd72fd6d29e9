// Package middleware holds small, composable HTTP wrappers.
package middleware

import (
	"net/http"

	"github.com/canopyhq/canopy/internal/hostinfo"
)

// ForceHTTPS wraps h.  If the request arrived over plain HTTP and the
// host is not a development host, the wrapper issues a 308 Permanent
// Redirect to the HTTPS version of the same URL.  Behind the proxy tier
// the original scheme travels in X-Forwarded-Proto.
func ForceHTTPS(baseDomain string, h http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.TLS != nil || r.Header.Get("X-Forwarded-Proto") == "https" {
			h.ServeHTTP(w, r)
			return
		}

		info := hostinfo.Classify(r.Host, baseDomain)
		if info.IsLocal {
			h.ServeHTTP(w, r)
			return
		}

		target := "https://" + r.Host + r.URL.RequestURI()
		http.Redirect(w, r, target, http.StatusPermanentRedirect)
	})
}
