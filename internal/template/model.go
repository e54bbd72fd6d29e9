// internal/template/model.go
//
// Canonical/version template rows.
//
// Context
// -------
// One logical site is a family of rows in `site_template` sharing a
// base_slug.  Exactly one row per family is canonical (is_version NULL or
// FALSE): it carries the working content document plus the routing keys
// that make the tenant addressable.  Every other row in the family is a
// version: an immutable snapshot of the canonical document, created on
// demand by the editor.  The canonical row's published_version_id points
// at the version currently served to the public.
//
// Rows are never physically deleted by this subsystem; `archived` is the
// only removal signal, mirroring the nullable-timestamp gates used
// elsewhere in the store.
//
// Notes
// -----
//   - The `commit` attribute is stored in column commit_label because
//     COMMIT is reserved in MySQL.
//   - Oxford commas, two spaces after periods.
package template

import (
	"database/sql"
	"time"
)

// Row mirrors one row in the persistent `site_template` table.
type Row struct {
	ID                 string         `db:"id"`
	BaseSlug           string         `db:"base_slug"`
	IsVersion          sql.NullBool   `db:"is_version"`
	Slug               sql.NullString `db:"slug"`
	Commit             sql.NullString `db:"commit_label"`
	PublishedVersionID sql.NullString `db:"published_version_id"`
	Data               Document       `db:"data"`
	OwnerID            sql.NullString `db:"owner_id"`
	DomainLC           sql.NullString `db:"domain_lc"`
	DefaultSubdomain   sql.NullString `db:"default_subdomain"`
	CustomDomain       sql.NullString `db:"custom_domain"`
	Published          bool           `db:"published"`
	Archived           bool           `db:"archived"`
	CreatedAt          time.Time      `db:"created_at"`
	UpdatedAt          time.Time      `db:"updated_at"`
}

// Canonical reports whether this row is the working row of its family.
// is_version is tri-state in the schema; NULL and FALSE both mean
// canonical.
func (r *Row) Canonical() bool {
	return !r.IsVersion.Valid || !r.IsVersion.Bool
}

// Servable reports whether the canonical row may be rendered publicly:
// published, not archived, and addressable by at least one routing key.
func (r *Row) Servable() bool {
	if !r.Canonical() || !r.Published || r.Archived {
		return false
	}
	return r.DomainLC.Valid || r.DefaultSubdomain.Valid || r.Slug.Valid
}

// VersionInfo is the listing shape returned by the versions endpoint.
type VersionInfo struct {
	ID        string         `db:"id" json:"id"`
	Slug      sql.NullString `db:"slug" json:"-"`
	Commit    sql.NullString `db:"commit_label" json:"-"`
	CreatedAt time.Time      `db:"created_at" json:"created_at"`
	UpdatedAt time.Time      `db:"updated_at" json:"updated_at"`
}
