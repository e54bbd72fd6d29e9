// internal/template/store.go
//
// Query helpers over the `site_template` table.
//
// Context
// -------
// These helpers are thin, parameterised reads and writes used by the
// resolver, the site loader, and the publish controller.  They accept a
// *sqlx.DB so callers choose the pool: the normal pool for request-time
// reads, or the service-role pool for the loader's privilege-escalation
// fallback.  Every read takes a context so lookups respect request
// deadlines.
//
// Mutations are append-only for version rows.  Publishing and restoring
// touch only the canonical row; no helper here ever deletes.
package template

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/jmoiron/sqlx"
)

// ErrNotFound is returned when no row satisfies the query.  Callers treat
// it as a cascade signal, not a failure.
var ErrNotFound = errors.New("template: not found")

const cols = `id, base_slug, is_version, slug, commit_label,
       published_version_id, data, owner_id, domain_lc, default_subdomain,
       custom_domain, published, archived, created_at, updated_at`

// canonicalFilter selects the single working row of a family.  is_version
// is tri-state; NULL and FALSE both mean canonical.
const canonicalFilter = `(is_version IS NULL OR is_version = FALSE) AND archived = FALSE`

func one(ctx context.Context, db *sqlx.DB, q string, args ...any) (*Row, error) {
	var r Row
	if err := db.GetContext(ctx, &r, q, args...); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, ErrNotFound
		}
		return nil, err
	}
	return &r, nil
}

// ByID fetches any row, canonical or version, by its id.
func ByID(ctx context.Context, db *sqlx.DB, id string) (*Row, error) {
	q := `SELECT ` + cols + ` FROM site_template WHERE id = ? LIMIT 1`
	return one(ctx, db, q, id)
}

// CanonicalByBaseSlug fetches the working row of a family.
func CanonicalByBaseSlug(ctx context.Context, db *sqlx.DB, baseSlug string) (*Row, error) {
	q := `SELECT ` + cols + ` FROM site_template
	      WHERE base_slug = ? AND ` + canonicalFilter + ` LIMIT 1`
	return one(ctx, db, q, baseSlug)
}

// publishedClause appends the public-visibility gate unless the caller
// holds a valid preview token.
func publishedClause(publishedOnly bool) string {
	if publishedOnly {
		return ` AND published = TRUE`
	}
	return ``
}

// CanonicalByDomain matches domain_lc against both the host and its
// www-toggled variant in one query.  Rows may store either form.
func CanonicalByDomain(ctx context.Context, db *sqlx.DB, host, altHost string, publishedOnly bool) (*Row, error) {
	q := `SELECT ` + cols + ` FROM site_template
	      WHERE domain_lc IN (?, ?) AND ` + canonicalFilter +
		publishedClause(publishedOnly) + ` LIMIT 1`
	return one(ctx, db, q, host, altHost)
}

// CanonicalByDefaultSubdomain matches the fully qualified platform
// subdomain, e.g. "acme.canopy.site".
func CanonicalByDefaultSubdomain(ctx context.Context, db *sqlx.DB, fqdn string, publishedOnly bool) (*Row, error) {
	q := `SELECT ` + cols + ` FROM site_template
	      WHERE default_subdomain = ? AND ` + canonicalFilter +
		publishedClause(publishedOnly) + ` LIMIT 1`
	return one(ctx, db, q, fqdn)
}

// CanonicalBySlug matches the bare subdomain label used as a slug.
func CanonicalBySlug(ctx context.Context, db *sqlx.DB, label string, publishedOnly bool) (*Row, error) {
	q := `SELECT ` + cols + ` FROM site_template
	      WHERE slug = ? AND ` + canonicalFilter +
		publishedClause(publishedOnly) + ` LIMIT 1`
	return one(ctx, db, q, label)
}

// VersionsByBaseSlug lists every snapshot of a family, newest first.
func VersionsByBaseSlug(ctx context.Context, db *sqlx.DB, baseSlug string) ([]VersionInfo, error) {
	const q = `SELECT id, slug, commit_label, created_at, updated_at
	           FROM site_template
	           WHERE base_slug = ? AND is_version = TRUE
	           ORDER BY created_at DESC`
	var out []VersionInfo
	if err := db.SelectContext(ctx, &out, q, baseSlug); err != nil {
		return nil, err
	}
	return out, nil
}

// InsertVersion appends an immutable snapshot of the canonical row's
// current document.  Returns the new version id.  Existing versions are
// never touched.
func InsertVersion(ctx context.Context, db *sqlx.DB, canonical *Row, versionSlug, commit string) (string, error) {
	if !canonical.Canonical() {
		return "", fmt.Errorf("template: %s is not a canonical row", canonical.ID)
	}
	id := uuid.NewString()
	now := time.Now().UTC()
	const q = `INSERT INTO site_template
	           (id, base_slug, is_version, slug, commit_label, data, owner_id,
	            published, archived, created_at, updated_at)
	           VALUES (?, ?, TRUE, ?, ?, ?, ?, FALSE, FALSE, ?, ?)`
	if _, err := db.ExecContext(ctx, q, id, canonical.BaseSlug, versionSlug,
		commit, canonical.Data, canonical.OwnerID, now, now); err != nil {
		return "", fmt.Errorf("template: insert version: %w", err)
	}
	return id, nil
}

// SetPublishedVersion points the canonical row at a version.  The guard
// enforces that the target is a version row of the same family, so a
// canonical row can never be published as its own snapshot; the
// conditional form makes repeat publishes of the same version no-ops.
func SetPublishedVersion(ctx context.Context, db *sqlx.DB, canonicalID, versionID string) error {
	const q = `UPDATE site_template
	           SET published_version_id = ?, published = TRUE, updated_at = ?
	           WHERE id = ? AND (is_version IS NULL OR is_version = FALSE)
	             AND EXISTS (
	               SELECT 1 FROM (SELECT base_slug FROM site_template
	                              WHERE id = ? AND is_version = TRUE) v
	               WHERE v.base_slug = site_template.base_slug)`
	res, err := db.ExecContext(ctx, q, versionID, time.Now().UTC(), canonicalID, versionID)
	if err != nil {
		return fmt.Errorf("template: set published version: %w", err)
	}
	if n, _ := res.RowsAffected(); n == 0 {
		return fmt.Errorf("template: version %s does not belong to canonical %s: %w",
			versionID, canonicalID, ErrNotFound)
	}
	return nil
}

// UpdateWorkingData replaces the canonical row's working document.  Used
// by restore; published state is untouched until a subsequent publish.
func UpdateWorkingData(ctx context.Context, db *sqlx.DB, canonicalID string, data Document) error {
	const q = `UPDATE site_template SET data = ?, updated_at = ?
	           WHERE id = ? AND (is_version IS NULL OR is_version = FALSE)`
	res, err := db.ExecContext(ctx, q, data, time.Now().UTC(), canonicalID)
	if err != nil {
		return fmt.Errorf("template: update working data: %w", err)
	}
	if n, _ := res.RowsAffected(); n == 0 {
		return ErrNotFound
	}
	return nil
}

// CountServable returns how many canonical rows are publicly servable.
// Logged once at boot as an early sanity check.
func CountServable(ctx context.Context, db *sqlx.DB) (int, error) {
	const q = `SELECT COUNT(*) FROM site_template
	           WHERE ` + canonicalFilter + ` AND published = TRUE`
	var n int
	if err := db.GetContext(ctx, &n, q); err != nil {
		return 0, err
	}
	return n, nil
}
