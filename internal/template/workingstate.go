// internal/template/workingstate.go
//
// Editor working-state reads.
//
// The editor persists in-progress drafts in `editor_state`, a table owned
// by the editor service and created asynchronously from template rows.  A
// draft may know its family directly (base_slug) or only through the
// canonical row it was branched from (canonical_id); either column may be
// NULL for a brand-new, never-saved draft.  The resolver consults this
// table as its second fallback, so reads here tolerate schema drift.
package template

import (
	"context"
	"database/sql"
	"errors"

	"github.com/jmoiron/sqlx"
)

// WorkingState mirrors one row in `editor_state`.
type WorkingState struct {
	ID          string         `db:"id"`
	CanonicalID sql.NullString `db:"canonical_id"`
	BaseSlug    sql.NullString `db:"base_slug"`
}

// WorkingStateByID fetches one editor draft.  ErrNotFound when absent.
func WorkingStateByID(ctx context.Context, db *sqlx.DB, id string) (*WorkingState, error) {
	const q = `SELECT id, canonical_id, base_slug FROM editor_state
	           WHERE id = ? LIMIT 1`
	var ws WorkingState
	if err := db.GetContext(ctx, &ws, q, id); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, ErrNotFound
		}
		return nil, err
	}
	return &ws, nil
}
