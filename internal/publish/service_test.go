// internal/publish/service_test.go
//
// Unit-tests for snapshot/publish/restore semantics using sqlmock.
//
// Run: go test ./internal/publish -v

package publish

import (
	"context"
	"database/sql"
	"testing"
	"time"

	"github.com/DATA-DOG/go-sqlmock"
	"github.com/jmoiron/sqlx"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/canopyhq/canopy/internal/resolver"
)

const (
	canonicalID = "11111111-1111-1111-1111-111111111111"
	versionID   = "22222222-2222-2222-2222-222222222222"
)

var sampleTime = time.Date(2026, 8, 1, 12, 0, 0, 0, time.UTC)

func newMock(t *testing.T) (*sqlx.DB, sqlmock.Sqlmock) {
	t.Helper()
	db, mock, err := sqlmock.New(sqlmock.QueryMatcherOption(sqlmock.QueryMatcherRegexp))
	require.NoError(t, err)
	t.Cleanup(func() { db.Close() })
	return sqlx.NewDb(db, "sqlmock"), mock
}

func templateRow(id, baseSlug string, isVersion any, publishedVersion any) *sqlmock.Rows {
	return sqlmock.NewRows([]string{"id", "base_slug", "is_version", "slug",
		"commit_label", "published_version_id", "data", "owner_id",
		"domain_lc", "default_subdomain", "custom_domain", "published",
		"archived", "created_at", "updated_at"}).
		AddRow(id, baseSlug, isVersion, baseSlug, nil, publishedVersion,
			`{"pages":[{"slug":"home"}]}`, nil, nil, nil, nil,
			true, false, sampleTime, sampleTime)
}

func newService(db *sqlx.DB) *Service {
	return NewService(db, resolver.New(db, nil))
}

// expectResolveCanonical sets up the two reads every operation performs:
// the resolver's id probe and the service's canonical fetch.
func expectResolveCanonical(mock sqlmock.Sqlmock) {
	mock.ExpectQuery(`FROM site_template WHERE id = \?`).
		WithArgs(canonicalID).
		WillReturnRows(templateRow(canonicalID, "acme", nil, nil))
	mock.ExpectQuery(`FROM site_template WHERE id = \?`).
		WithArgs(canonicalID).
		WillReturnRows(templateRow(canonicalID, "acme", nil, nil))
}

func TestCreateSnapshot(t *testing.T) {
	db, mock := newMock(t)
	expectResolveCanonical(mock)
	mock.ExpectExec(`INSERT INTO site_template`).
		WillReturnResult(sqlmock.NewResult(0, 1))

	id, err := newService(db).CreateSnapshot(context.Background(), canonicalID, "first cut")
	require.NoError(t, err)
	assert.NotEmpty(t, id)
	require.NoError(t, mock.ExpectationsWereMet())
}

func TestPublish_ExplicitVersionNoImplicitSnapshot(t *testing.T) {
	db, mock := newMock(t)
	expectResolveCanonical(mock)
	// No INSERT expected: an explicit version id must not snapshot.
	mock.ExpectExec(`UPDATE site_template`).
		WillReturnResult(sqlmock.NewResult(0, 1))

	got, err := newService(db).Publish(context.Background(), canonicalID, versionID)
	require.NoError(t, err)
	assert.Equal(t, versionID, got)
	require.NoError(t, mock.ExpectationsWereMet())
}

func TestPublish_EmptyVersionSnapshotsFirst(t *testing.T) {
	db, mock := newMock(t)
	expectResolveCanonical(mock)
	mock.ExpectExec(`INSERT INTO site_template`).
		WillReturnResult(sqlmock.NewResult(0, 1))
	mock.ExpectExec(`UPDATE site_template`).
		WillReturnResult(sqlmock.NewResult(0, 1))

	got, err := newService(db).Publish(context.Background(), canonicalID, "")
	require.NoError(t, err)
	assert.NotEmpty(t, got)
	require.NoError(t, mock.ExpectationsWereMet())
}

func TestPublish_PendingIdentifier(t *testing.T) {
	db, mock := newMock(t)
	mock.ExpectQuery(`WHERE base_slug = \?`).WillReturnError(sql.ErrNoRows)

	_, err := newService(db).Publish(context.Background(), "brand-new", versionID)
	assert.ErrorIs(t, err, ErrPending)
}

func TestRestore_RejectsForeignVersion(t *testing.T) {
	db, mock := newMock(t)
	expectResolveCanonical(mock)
	mock.ExpectQuery(`FROM site_template WHERE id = \?`).
		WithArgs(versionID).
		WillReturnRows(templateRow(versionID, "other-family", true, nil))

	err := newService(db).Restore(context.Background(), canonicalID, versionID)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "not a version of")
}

func TestRestore_CopiesSnapshotData(t *testing.T) {
	db, mock := newMock(t)
	expectResolveCanonical(mock)
	mock.ExpectQuery(`FROM site_template WHERE id = \?`).
		WithArgs(versionID).
		WillReturnRows(templateRow(versionID, "acme", true, nil))
	mock.ExpectExec(`UPDATE site_template SET data = \?`).
		WillReturnResult(sqlmock.NewResult(0, 1))

	err := newService(db).Restore(context.Background(), canonicalID, versionID)
	require.NoError(t, err)
	require.NoError(t, mock.ExpectationsWereMet())
}

func TestVersions_PendingPayload(t *testing.T) {
	db, mock := newMock(t)
	mock.ExpectQuery(`WHERE base_slug = \?`).WillReturnError(sql.ErrNoRows)

	payload, err := newService(db).Versions(context.Background(), "brand-new", false)
	require.NoError(t, err)
	assert.True(t, payload.Pending)
	assert.Nil(t, payload.CanonicalID)
	assert.Equal(t, "brand-new", payload.BaseSlug)
}

func TestVersions_ListsSnapshots(t *testing.T) {
	db, mock := newMock(t)
	mock.ExpectQuery(`FROM site_template WHERE id = \?`).
		WithArgs(canonicalID).
		WillReturnRows(templateRow(canonicalID, "acme", nil, versionID))
	mock.ExpectQuery(`FROM site_template WHERE id = \?`).
		WithArgs(canonicalID).
		WillReturnRows(templateRow(canonicalID, "acme", nil, versionID))
	mock.ExpectQuery(`WHERE base_slug = \? AND is_version = TRUE`).
		WithArgs("acme").
		WillReturnRows(sqlmock.NewRows([]string{"id", "slug", "commit_label",
			"created_at", "updated_at"}).
			AddRow(versionID, "first-cut", "first cut", sampleTime, sampleTime))

	payload, err := newService(db).Versions(context.Background(), canonicalID, false)
	require.NoError(t, err)
	require.NotNil(t, payload.CanonicalID)
	assert.Equal(t, canonicalID, *payload.CanonicalID)
	require.NotNil(t, payload.PublishedVersionID)
	assert.Equal(t, versionID, *payload.PublishedVersionID)
	require.Len(t, payload.Versions, 1)
	assert.Equal(t, "first cut", payload.Versions[0].Commit)
}
