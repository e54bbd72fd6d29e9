// internal/publish/service.go
//
// Snapshot, publish, and restore operations.
//
// Context
// -------
// The editor invokes these against any identifier it happens to hold: a
// canonical id, a version id, a draft id, or a slug.  Every operation
// therefore starts at the resolver and works on the canonical row it
// yields.  Version rows are append-only; publish moves only the canonical
// row's published_version_id pointer, and restore copies a snapshot's
// document back into the working copy without touching published state.
//
// The publish sequence is intentionally not transactional: a crash
// between "create snapshot" and "point canonical at it" leaves an extra,
// orphaned, harmless version row and an unchanged pointer.  No wrong
// content is ever served; the gap is accepted rather than repaired.
package publish

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/jmoiron/sqlx"
	"go.uber.org/zap"

	"github.com/canopyhq/canopy/internal/metrics"
	"github.com/canopyhq/canopy/internal/resolver"
	"github.com/canopyhq/canopy/internal/routing"
	"github.com/canopyhq/canopy/internal/template"
)

// ErrPending is returned when the identifier has no canonical row yet.
// Editor UIs offer "create" instead of showing an error.
var ErrPending = errors.New("publish: no canonical row yet")

// Service executes editor-facing mutations over the template graph.
type Service struct {
	db  *sqlx.DB
	res *resolver.Resolver
}

// NewService constructs a Service.
func NewService(db *sqlx.DB, res *resolver.Resolver) *Service {
	return &Service{db: db, res: res}
}

// canonical resolves identifier and loads its canonical row.
func (s *Service) canonical(ctx context.Context, identifier string) (*template.Row, error) {
	r, err := s.res.Resolve(ctx, identifier, false)
	if err != nil {
		return nil, err
	}
	if !r.Resolved() {
		return nil, ErrPending
	}
	return template.ByID(ctx, s.db, r.CanonicalID)
}

// CreateSnapshot appends an immutable version capturing the canonical
// row's current document.  commit is a free-text label; the version slug
// is derived from it.
func (s *Service) CreateSnapshot(ctx context.Context, identifier, commit string) (string, error) {
	canonical, err := s.canonical(ctx, identifier)
	if err != nil {
		return "", err
	}
	if commit == "" {
		commit = "snapshot " + time.Now().UTC().Format("2006-01-02 15:04")
	}
	id, err := template.InsertVersion(ctx, s.db, canonical, routing.MakeSlug(commit), commit)
	if err != nil {
		return "", err
	}
	metrics.PublishTotal.WithLabelValues("snapshot").Inc()
	zap.S().Infow("snapshot created",
		"base_slug", canonical.BaseSlug, "version_id", id, "commit", commit)
	return id, nil
}

// Publish points the canonical row at versionID.  An empty versionID
// snapshots the current working content first and publishes that.
// Publishing the same version twice is a no-op, not an error.
func (s *Service) Publish(ctx context.Context, identifier, versionID string) (string, error) {
	canonical, err := s.canonical(ctx, identifier)
	if err != nil {
		return "", err
	}

	if versionID == "" {
		versionID, err = template.InsertVersion(ctx, s.db, canonical,
			routing.MakeSlug("publish "+time.Now().UTC().Format("2006-01-02 15:04")),
			"implicit publish snapshot")
		if err != nil {
			return "", fmt.Errorf("publish: implicit snapshot: %w", err)
		}
	}

	if err := template.SetPublishedVersion(ctx, s.db, canonical.ID, versionID); err != nil {
		return "", err
	}
	metrics.PublishTotal.WithLabelValues("publish").Inc()
	zap.S().Infow("version published",
		"base_slug", canonical.BaseSlug, "version_id", versionID)
	return versionID, nil
}

// Restore copies a snapshot's document into the canonical working copy.
// Published state is untouched until a subsequent publish.
func (s *Service) Restore(ctx context.Context, identifier, versionID string) error {
	canonical, err := s.canonical(ctx, identifier)
	if err != nil {
		return err
	}

	version, err := template.ByID(ctx, s.db, versionID)
	if err != nil {
		return err
	}
	if version.Canonical() || version.BaseSlug != canonical.BaseSlug {
		return fmt.Errorf("publish: %s is not a version of %s", versionID, canonical.BaseSlug)
	}

	if err := template.UpdateWorkingData(ctx, s.db, canonical.ID, version.Data); err != nil {
		return err
	}
	metrics.PublishTotal.WithLabelValues("restore").Inc()
	zap.S().Infow("version restored",
		"base_slug", canonical.BaseSlug, "version_id", versionID)
	return nil
}

// VersionEntry is one row of the versions listing.
type VersionEntry struct {
	ID        string    `json:"id"`
	Slug      string    `json:"slug,omitempty"`
	Commit    string    `json:"commit,omitempty"`
	CreatedAt time.Time `json:"created_at"`
	UpdatedAt time.Time `json:"updated_at"`
}

// VersionsPayload is the resolver endpoint response shape.
type VersionsPayload struct {
	CanonicalID        *string        `json:"canonical_id"`
	BaseSlug           string         `json:"base_slug,omitempty"`
	Versions           []VersionEntry `json:"versions"`
	PublishedVersionID *string        `json:"published_version_id"`
	Pending            bool           `json:"pending,omitempty"`
	Trace              []string       `json:"trace,omitempty"`
}

// Versions resolves identifier and lists its snapshots.  A Pending
// resolution is a valid payload, not an error.
func (s *Service) Versions(ctx context.Context, identifier string, debug bool) (VersionsPayload, error) {
	r, err := s.res.Resolve(ctx, identifier, debug)
	if err != nil {
		return VersionsPayload{}, err
	}

	payload := VersionsPayload{
		BaseSlug: r.BaseSlug,
		Versions: []VersionEntry{},
		Trace:    r.Trace,
	}
	if !r.Resolved() {
		payload.Pending = true
		return payload, nil
	}
	payload.CanonicalID = &r.CanonicalID

	canonical, err := template.ByID(ctx, s.db, r.CanonicalID)
	if err != nil {
		return VersionsPayload{}, err
	}
	if canonical.PublishedVersionID.Valid {
		v := canonical.PublishedVersionID.String
		payload.PublishedVersionID = &v
	}

	infos, err := template.VersionsByBaseSlug(ctx, s.db, r.BaseSlug)
	if err != nil {
		return VersionsPayload{}, err
	}
	for _, v := range infos {
		payload.Versions = append(payload.Versions, VersionEntry{
			ID:        v.ID,
			Slug:      v.Slug.String,
			Commit:    v.Commit.String,
			CreatedAt: v.CreatedAt,
			UpdatedAt: v.UpdatedAt,
		})
	}
	return payload, nil
}
