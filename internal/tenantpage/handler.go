// internal/tenantpage/handler.go
//
// Tenant page endpoint.
//
// The routing middleware rewrites every tenant host onto
// /tenant/{slug}/{page}; this handler serves that route.  The visual
// renderer is a separate service, so the response here is the published
// page document as JSON — the internal contract the renderer consumes.
// A request that carries a valid preview token sees the working document
// of unpublished sites instead.
package tenantpage

import (
	"errors"
	"net/http"

	"github.com/go-chi/chi/v5"
	json "github.com/goccy/go-json"
	"go.uber.org/zap"

	"github.com/canopyhq/canopy/internal/template"
	"github.com/jmoiron/sqlx"
)

// Handler serves tenant page documents.
type Handler struct {
	db            *sqlx.DB
	previewSecret string
}

// NewHandler constructs a Handler.
func NewHandler(db *sqlx.DB, previewSecret string) *Handler {
	return &Handler{db: db, previewSecret: previewSecret}
}

// Routes returns the tenant router, ready to Mount under /tenant.
func (h *Handler) Routes() chi.Router {
	r := chi.NewRouter()
	r.Get("/{slug}", h.page)
	r.Get("/{slug}/{page}", h.page)
	return r
}

type pageResponse struct {
	Site  string         `json:"site"`
	Page  *template.Page `json:"page"`
	Pages []string       `json:"pages"`
}

func (h *Handler) page(w http.ResponseWriter, r *http.Request) {
	slug := chi.URLParam(r, "slug")

	row, err := template.CanonicalByBaseSlug(r.Context(), h.db, slug)
	if err != nil {
		if !errors.Is(err, template.ErrNotFound) {
			zap.S().Errorw("tenant page lookup failed", "slug", slug, "err", err)
		}
		http.NotFound(w, r)
		return
	}

	preview := h.previewSecret != "" &&
		r.URL.Query().Get("preview") == h.previewSecret
	if !row.Servable() && !preview {
		http.NotFound(w, r)
		return
	}

	// The public sees the published snapshot; the working copy may hold
	// restored or edited content that is not live yet.  Preview sees the
	// working copy.
	doc := row.Data
	if !preview && row.PublishedVersionID.Valid {
		if ver, err := template.ByID(r.Context(), h.db, row.PublishedVersionID.String); err == nil {
			doc = ver.Data
		} else {
			zap.S().Warnw("published version fetch failed, serving working copy",
				"slug", slug, "version_id", row.PublishedVersionID.String, "err", err)
		}
	}

	pageSlug := chi.URLParam(r, "page")
	if pageSlug == "" {
		pageSlug = doc.FirstPageSlug()
	}
	page := doc.PageBySlug(pageSlug)
	if page == nil {
		http.NotFound(w, r)
		return
	}

	names := make([]string, 0, len(doc.Pages))
	for _, p := range doc.Pages {
		names = append(names, p.Slug)
	}

	w.Header().Set("Content-Type", "application/json; charset=utf-8")
	if err := json.NewEncoder(w).Encode(pageResponse{
		Site:  row.BaseSlug,
		Page:  page,
		Pages: names,
	}); err != nil {
		zap.S().Errorw("tenant page encode failed", "slug", slug, "err", err)
	}
}

// NotFound renders the standard not-found response the middleware
// rewrites unresolved hosts to.
func NotFound(w http.ResponseWriter, r *http.Request) {
	http.Error(w, "site not found", http.StatusNotFound)
}
