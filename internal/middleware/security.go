// internal/middleware/security.go
//
// Security-header middleware.
//
// Injects industry-standard headers on every response:
//
//   • Strict-Transport-Security  –  forces HTTPS (2 years + preload)
//   • X-Frame-Options            –  SAMEORIGIN, so the editor's preview
//     iframe keeps working on the platform domain
//   • X-Content-Type-Options     –  MIME-sniffing defence
//   • Referrer-Policy            –  drops path/query from Referer
//   • Permissions-Policy         –  disables powerful features by default
//
// Notes
// -----
// • Headers are set before next.ServeHTTP and never overwrite a value a
//   handler already chose.
// • Tenant pages are served from arbitrary custom domains behind a
//   TLS-terminating proxy; HSTS still applies because browsers see each
//   tenant domain as HTTPS.
// • No Content-Security-Policy here: tenant content blocks embed
//   third-party media, so CSP belongs to the renderer, per site.

package middleware

import "net/http"

// Security sets security headers for every response.
func Security(next http.Handler) http.Handler {
	const (
		hsts  = "max-age=63072000; includeSubDomains; preload"
		xfo   = "SAMEORIGIN"
		nosn  = "nosniff"
		refer = "strict-origin-when-cross-origin"
		perm  = "geolocation=(), microphone=(), camera=()"
	)

	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		h := w.Header()
		if h.Get("Strict-Transport-Security") == "" {
			h.Set("Strict-Transport-Security", hsts)
		}
		if h.Get("X-Frame-Options") == "" {
			h.Set("X-Frame-Options", xfo)
		}
		if h.Get("X-Content-Type-Options") == "" {
			h.Set("X-Content-Type-Options", nosn)
		}
		if h.Get("Referrer-Policy") == "" {
			h.Set("Referrer-Policy", refer)
		}
		if h.Get("Permissions-Policy") == "" {
			h.Set("Permissions-Policy", perm)
		}

		next.ServeHTTP(w, r)
	})
}
