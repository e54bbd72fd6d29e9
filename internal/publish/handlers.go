// internal/publish/handlers.go
//
// Editor-facing HTTP surface for the version/publish controller.
//
// Routes (mounted on the platform base domain):
//
//	GET  /templates/{id}/versions?debug=0|1
//	POST /templates/{id}/snapshot   {"commit": "..."}          → {version_id}
//	POST /templates/{id}/publish    {"version_id": "..."}      → {published_version_id}
//	POST /templates/{id}/restore    {"version_id": "..."}      → 204
//
// The versions response distinguishes "pending" (no canonical row yet,
// not an error) from a hard failure (400 with {error}).  Idempotence of
// repeated clicks is owned by the editor UI; handlers stay stateless.
package publish

import (
	"errors"
	"net/http"

	"github.com/go-chi/chi/v5"
	json "github.com/goccy/go-json"
	"go.uber.org/zap"

	"github.com/canopyhq/canopy/internal/template"
)

// Handler exposes the Service over chi.
type Handler struct {
	svc *Service
}

// NewHandler constructs a Handler.
func NewHandler(svc *Service) *Handler {
	return &Handler{svc: svc}
}

// Routes returns the editor router, ready to Mount under /templates.
func (h *Handler) Routes() chi.Router {
	r := chi.NewRouter()
	r.Get("/{id}/versions", h.versions)
	r.Post("/{id}/snapshot", h.snapshot)
	r.Post("/{id}/publish", h.publish)
	r.Post("/{id}/restore", h.restore)
	return r
}

type errorResponse struct {
	Error string `json:"error"`
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json; charset=utf-8")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(v); err != nil {
		zap.S().Errorw("response encode failed", "err", err)
	}
}

func writeError(w http.ResponseWriter, status int, err error) {
	writeJSON(w, status, errorResponse{Error: err.Error()})
}

func (h *Handler) versions(w http.ResponseWriter, r *http.Request) {
	id := chi.URLParam(r, "id")
	debug := r.URL.Query().Get("debug") == "1"

	payload, err := h.svc.Versions(r.Context(), id, debug)
	if err != nil {
		writeError(w, http.StatusBadRequest, err)
		return
	}
	writeJSON(w, http.StatusOK, payload)
}

type mutationRequest struct {
	Commit    string `json:"commit"`
	VersionID string `json:"version_id"`
}

// decodeBody tolerates an empty body; every field is optional somewhere.
func decodeBody(r *http.Request) mutationRequest {
	var req mutationRequest
	if r.Body != nil {
		_ = json.NewDecoder(r.Body).Decode(&req)
	}
	return req
}

func (h *Handler) snapshot(w http.ResponseWriter, r *http.Request) {
	req := decodeBody(r)
	id, err := h.svc.CreateSnapshot(r.Context(), chi.URLParam(r, "id"), req.Commit)
	if err != nil {
		writeError(w, mutationStatus(err), err)
		return
	}
	writeJSON(w, http.StatusCreated, map[string]string{"version_id": id})
}

func (h *Handler) publish(w http.ResponseWriter, r *http.Request) {
	req := decodeBody(r)
	id, err := h.svc.Publish(r.Context(), chi.URLParam(r, "id"), req.VersionID)
	if err != nil {
		writeError(w, mutationStatus(err), err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]string{"published_version_id": id})
}

func (h *Handler) restore(w http.ResponseWriter, r *http.Request) {
	req := decodeBody(r)
	if req.VersionID == "" {
		writeError(w, http.StatusBadRequest, errors.New("version_id is required"))
		return
	}
	if err := h.svc.Restore(r.Context(), chi.URLParam(r, "id"), req.VersionID); err != nil {
		writeError(w, mutationStatus(err), err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

// mutationStatus keeps the pending and not-found cases out of the 5xx
// band; only unexpected store failures are server errors.
func mutationStatus(err error) int {
	switch {
	case errors.Is(err, ErrPending):
		return http.StatusConflict
	case errors.Is(err, template.ErrNotFound):
		return http.StatusNotFound
	default:
		return http.StatusInternalServerError
	}
}
