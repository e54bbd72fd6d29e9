// internal/resolver/resolver_test.go
//
// Unit-tests for the identifier fallback chain using sqlmock and a stub
// state endpoint.
//
// Run: go test ./internal/resolver -v

package resolver

import (
	"context"
	"database/sql"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/DATA-DOG/go-sqlmock"
	"github.com/jmoiron/sqlx"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

const (
	canonicalID = "11111111-1111-1111-1111-111111111111"
	versionID   = "22222222-2222-2222-2222-222222222222"
	draftID     = "33333333-3333-3333-3333-333333333333"
	ghostID     = "44444444-4444-4444-4444-444444444444"
)

var sampleTime = time.Date(2026, 8, 1, 12, 0, 0, 0, time.UTC)

func newMock(t *testing.T) (*sqlx.DB, sqlmock.Sqlmock) {
	t.Helper()
	db, mock, err := sqlmock.New(sqlmock.QueryMatcherOption(sqlmock.QueryMatcherRegexp))
	require.NoError(t, err)
	t.Cleanup(func() { db.Close() })
	return sqlx.NewDb(db, "sqlmock"), mock
}

func templateRow(id, baseSlug string, isVersion any) *sqlmock.Rows {
	return sqlmock.NewRows([]string{"id", "base_slug", "is_version", "slug",
		"commit_label", "published_version_id", "data", "owner_id",
		"domain_lc", "default_subdomain", "custom_domain", "published",
		"archived", "created_at", "updated_at"}).
		AddRow(id, baseSlug, isVersion, baseSlug, nil, nil,
			`{"pages":[]}`, nil, nil, nil, nil, true, false,
			sampleTime, sampleTime)
}

func TestResolve_CanonicalID(t *testing.T) {
	db, mock := newMock(t)

	mock.ExpectQuery(`FROM site_template WHERE id = \?`).
		WithArgs(canonicalID).
		WillReturnRows(templateRow(canonicalID, "acme", nil))

	res, err := New(db, nil).Resolve(context.Background(), canonicalID, false)
	require.NoError(t, err)
	assert.True(t, res.Resolved())
	assert.Equal(t, canonicalID, res.CanonicalID)
	assert.Equal(t, "acme", res.BaseSlug)
	assert.Empty(t, res.Trace)
}

func TestResolve_VersionIDRedirectsToCanonical(t *testing.T) {
	db, mock := newMock(t)

	mock.ExpectQuery(`FROM site_template WHERE id = \?`).
		WithArgs(versionID).
		WillReturnRows(templateRow(versionID, "acme", true))
	mock.ExpectQuery(`WHERE base_slug = \?`).
		WithArgs("acme").
		WillReturnRows(templateRow(canonicalID, "acme", nil))

	res, err := New(db, nil).Resolve(context.Background(), versionID, true)
	require.NoError(t, err)
	assert.True(t, res.Resolved())
	assert.Equal(t, canonicalID, res.CanonicalID, "must never return the version id")
	assert.NotEmpty(t, res.Trace)
}

func TestResolve_BareSlugSkipsIDProbes(t *testing.T) {
	db, mock := newMock(t)

	// Only the base_slug query may run; an id probe would be an unmet
	// expectation mismatch.
	mock.ExpectQuery(`WHERE base_slug = \?`).
		WithArgs("acme").
		WillReturnRows(templateRow(canonicalID, "acme", nil))

	res, err := New(db, nil).Resolve(context.Background(), "acme", false)
	require.NoError(t, err)
	assert.True(t, res.Resolved())
	assert.Equal(t, canonicalID, res.CanonicalID)
	require.NoError(t, mock.ExpectationsWereMet())
}

func TestResolve_UnknownUUIDIsPending(t *testing.T) {
	db, mock := newMock(t)

	mock.ExpectQuery(`FROM site_template WHERE id = \?`).WillReturnError(sql.ErrNoRows)
	mock.ExpectQuery(`FROM editor_state`).WillReturnError(sql.ErrNoRows)

	res, err := New(db, nil).Resolve(context.Background(), ghostID, false)
	require.NoError(t, err)
	assert.Equal(t, StatusPending, res.Status)
	assert.Empty(t, res.CanonicalID)
}

func TestResolve_UnknownSlugIsPending(t *testing.T) {
	db, mock := newMock(t)

	mock.ExpectQuery(`WHERE base_slug = \?`).WillReturnError(sql.ErrNoRows)

	res, err := New(db, nil).Resolve(context.Background(), "brand-new", false)
	require.NoError(t, err)
	assert.Equal(t, StatusPending, res.Status)
	assert.Equal(t, "brand-new", res.BaseSlug)
}

func TestResolve_WorkingStateCanonicalIDOnly(t *testing.T) {
	db, mock := newMock(t)

	mock.ExpectQuery(`FROM site_template WHERE id = \?`).WillReturnError(sql.ErrNoRows)
	mock.ExpectQuery(`FROM editor_state`).
		WithArgs(draftID).
		WillReturnRows(sqlmock.NewRows([]string{"id", "canonical_id", "base_slug"}).
			AddRow(draftID, canonicalID, nil))
	mock.ExpectQuery(`FROM site_template WHERE id = \?`).
		WithArgs(canonicalID).
		WillReturnRows(templateRow(canonicalID, "acme", nil))

	res, err := New(db, nil).Resolve(context.Background(), draftID, false)
	require.NoError(t, err)
	assert.True(t, res.Resolved())
	assert.Equal(t, "acme", res.BaseSlug)
}

func TestResolve_SchemaDriftFallsThrough(t *testing.T) {
	db, mock := newMock(t)

	// Table renamed out from under us: error 1146 must not abort.
	mock.ExpectQuery(`FROM site_template WHERE id = \?`).
		WillReturnError(sqlDriftErr{})
	mock.ExpectQuery(`FROM editor_state`).
		WithArgs(draftID).
		WillReturnRows(sqlmock.NewRows([]string{"id", "canonical_id", "base_slug"}).
			AddRow(draftID, canonicalID, "acme"))

	res, err := New(db, nil).Resolve(context.Background(), draftID, false)
	require.NoError(t, err)
	assert.True(t, res.Resolved())
	assert.Equal(t, canonicalID, res.CanonicalID)
}

type sqlDriftErr struct{}

func (sqlDriftErr) Error() string { return "Error 1146: Table 'canopy.site_template' doesn't exist" }

func TestResolve_StateEndpointVariants(t *testing.T) {
	for _, body := range []string{
		`{"canonical_id":"` + canonicalID + `","base_slug":"acme"}`,
		`{"canonicalId":"` + canonicalID + `","baseSlug":"acme"}`,
		`{"data":{"templateId":"` + canonicalID + `","slug":"acme"}}`,
	} {
		srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			w.Write([]byte(body))
		}))

		db, mock := newMock(t)
		mock.ExpectQuery(`FROM site_template WHERE id = \?`).WillReturnError(sql.ErrNoRows)
		mock.ExpectQuery(`FROM editor_state`).WillReturnError(sql.ErrNoRows)

		res, err := New(db, NewStateClient(srv.URL)).
			Resolve(context.Background(), ghostID, false)
		require.NoError(t, err, body)
		assert.True(t, res.Resolved(), body)
		assert.Equal(t, "acme", res.BaseSlug, body)
		srv.Close()
	}
}

func TestStateClient_NoMapping(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Write([]byte(`{"unrelated":"value"}`))
	}))
	defer srv.Close()

	_, _, err := NewStateClient(srv.URL).Fetch(context.Background(), ghostID)
	assert.ErrorIs(t, err, ErrNoMapping)
}
