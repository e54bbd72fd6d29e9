// internal/resolver/resolver.go
//
// Identifier-resolution fallback chain.
//
// Context
// -------
// Identifiers arrive from at least three independently evolving
// representations: editor drafts (editor_state), persisted versions, and
// persisted canonical rows, plus raw human slugs.  Those representations
// are created asynchronously and may be briefly inconsistent, so no single
// lookup is authoritative.  Resolve encapsulates the full fallback order
// in one place instead of letting every caller re-implement the cascade:
//
//  1. Well-formed UUID → template row by id; a version row redirects to
//     the canonical row sharing its base_slug.
//  2. Editor working-state row, recovering base_slug through the
//     canonical row when the draft only knows canonical_id.
//  3. Non-UUID input is a base_slug candidate directly, with no template
//     id round trip.
//  4. The internal state-retrieval endpoint, which may know the mapping
//     through a different code path; its response is probed under several
//     field-naming variants (schema drift tolerance).
//  5. Nothing found → Pending.  Pending is not an error: the canonical
//     row simply does not exist yet (brand-new, never-saved template).
//
// Schema drift on any direct lookup (renamed or dropped table/column) is
// swallowed and the chain falls through to the next step.
package resolver

import (
	"context"
	"errors"
	"fmt"

	"github.com/google/uuid"
	"github.com/jmoiron/sqlx"
	"go.uber.org/zap"

	"github.com/canopyhq/canopy/internal/database"
	"github.com/canopyhq/canopy/internal/template"
)

// Status tags a Result.  Callers must distinguish Pending from not-found;
// only a hard store failure surfaces as an error.
type Status int

const (
	StatusResolved Status = iota
	StatusPending
)

// Result is the outcome of one Resolve call.  Trace is populated only
// when debug was requested.
type Result struct {
	Status      Status
	CanonicalID string
	BaseSlug    string
	Trace       []string
}

// Resolved reports whether a canonical row was found.
func (r Result) Resolved() bool { return r.Status == StatusResolved }

// Resolver walks the fallback chain.  state may be nil, disabling step 4.
type Resolver struct {
	db    *sqlx.DB
	state *StateClient
}

// New constructs a Resolver over the normal pool.
func New(db *sqlx.DB, state *StateClient) *Resolver {
	return &Resolver{db: db, state: state}
}

// Resolve maps an opaque identifier to {canonical_id, base_slug}.
func (r *Resolver) Resolve(ctx context.Context, identifier string, debug bool) (Result, error) {
	res := Result{Status: StatusPending}
	trace := func(format string, args ...any) {
		if debug {
			res.Trace = append(res.Trace, fmt.Sprintf(format, args...))
		}
	}

	isUUID := uuid.Validate(identifier) == nil

	// 1. Direct template-row lookup, UUIDs only.
	if isUUID {
		row, err := template.ByID(ctx, r.db, identifier)
		switch {
		case err == nil && row.Canonical():
			trace("template id: canonical hit")
			res.Status = StatusResolved
			res.CanonicalID = row.ID
			res.BaseSlug = row.BaseSlug
			return res, nil
		case err == nil:
			trace("template id: version hit, base_slug %q", row.BaseSlug)
			res.BaseSlug = row.BaseSlug
			canonical, err := template.CanonicalByBaseSlug(ctx, r.db, row.BaseSlug)
			if err == nil {
				trace("canonical by base_slug: hit")
				res.Status = StatusResolved
				res.CanonicalID = canonical.ID
				return res, nil
			}
			if !skippable(err) {
				return res, err
			}
			trace("canonical by base_slug: %v", err)
		case skippable(err):
			trace("template id: %v", err)
		default:
			return res, err
		}
	}

	// 2. Editor working state.
	if isUUID {
		ws, err := template.WorkingStateByID(ctx, r.db, identifier)
		switch {
		case err == nil:
			if got, err := r.fromWorkingState(ctx, ws, trace); err != nil {
				return res, err
			} else if got != nil {
				got.Trace = res.Trace
				return *got, nil
			}
		case skippable(err):
			trace("working state: %v", err)
		default:
			return res, err
		}
	}

	// 3. Raw slug input skips the database id probes entirely.
	if !isUUID && identifier != "" {
		row, err := template.CanonicalByBaseSlug(ctx, r.db, identifier)
		switch {
		case err == nil:
			trace("base_slug candidate: hit")
			res.Status = StatusResolved
			res.CanonicalID = row.ID
			res.BaseSlug = row.BaseSlug
			return res, nil
		case skippable(err):
			trace("base_slug candidate: %v", err)
			res.BaseSlug = identifier
		default:
			return res, err
		}
	}

	// 4. Internal state-retrieval endpoint.
	if r.state != nil {
		canonicalID, baseSlug, err := r.state.Fetch(ctx, identifier)
		if err != nil {
			trace("state endpoint: %v", err)
			zap.S().Debugw("state endpoint probe failed",
				"identifier", identifier, "err", err)
		} else {
			trace("state endpoint: canonical_id=%q base_slug=%q", canonicalID, baseSlug)
			if baseSlug == "" && canonicalID != "" {
				if row, err := template.ByID(ctx, r.db, canonicalID); err == nil {
					baseSlug = row.BaseSlug
					trace("canonical by id: recovered base_slug %q", baseSlug)
				} else if !skippable(err) {
					return res, err
				}
			}
			if baseSlug != "" {
				res.BaseSlug = baseSlug
				if canonicalID != "" {
					res.Status = StatusResolved
					res.CanonicalID = canonicalID
					return res, nil
				}
			}
		}
	}

	// 5. Pending: nothing canonical exists yet for this identifier.
	trace("pending: no canonical row")
	return res, nil
}

// fromWorkingState turns a draft row into a Result.  Returns nil when the
// draft knows neither its family nor its canonical row.
func (r *Resolver) fromWorkingState(ctx context.Context, ws *template.WorkingState, trace func(string, ...any)) (*Result, error) {
	switch {
	case ws.BaseSlug.Valid && ws.CanonicalID.Valid:
		trace("working state: direct pair")
		return &Result{Status: StatusResolved,
			CanonicalID: ws.CanonicalID.String, BaseSlug: ws.BaseSlug.String}, nil

	case ws.BaseSlug.Valid:
		trace("working state: base_slug only")
		row, err := template.CanonicalByBaseSlug(ctx, r.db, ws.BaseSlug.String)
		if err == nil {
			return &Result{Status: StatusResolved,
				CanonicalID: row.ID, BaseSlug: row.BaseSlug}, nil
		}
		if !skippable(err) {
			return nil, err
		}
		trace("working state canonical lookup: %v", err)
		return &Result{Status: StatusPending, BaseSlug: ws.BaseSlug.String}, nil

	case ws.CanonicalID.Valid:
		trace("working state: canonical_id only")
		row, err := template.ByID(ctx, r.db, ws.CanonicalID.String)
		if err == nil {
			return &Result{Status: StatusResolved,
				CanonicalID: row.ID, BaseSlug: row.BaseSlug}, nil
		}
		if !skippable(err) {
			return nil, err
		}
		trace("working state canonical fetch: %v", err)
		return nil, nil

	default:
		trace("working state: empty draft")
		return nil, nil
	}
}

// skippable reports whether an error is a cascade fall-through: a clean
// miss or schema drift.  Anything else aborts resolution.
func skippable(err error) bool {
	return errors.Is(err, template.ErrNotFound) || database.IsSchemaDrift(err)
}
