// internal/publish/handlers_test.go
//
// HTTP contract tests for the editor surface.
//
// Run: go test ./internal/publish -v

package publish

import (
	"database/sql"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/DATA-DOG/go-sqlmock"
	json "github.com/goccy/go-json"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestVersionsEndpoint_Pending(t *testing.T) {
	db, mock := newMock(t)
	mock.ExpectQuery(`WHERE base_slug = \?`).WillReturnError(sql.ErrNoRows)

	h := NewHandler(newService(db))
	req := httptest.NewRequest(http.MethodGet, "/brand-new/versions", nil)
	rr := httptest.NewRecorder()
	h.Routes().ServeHTTP(rr, req)

	require.Equal(t, http.StatusOK, rr.Code)
	var payload VersionsPayload
	require.NoError(t, json.Unmarshal(rr.Body.Bytes(), &payload))
	assert.True(t, payload.Pending)
	assert.Nil(t, payload.CanonicalID)
}

func TestVersionsEndpoint_DebugTrace(t *testing.T) {
	db, mock := newMock(t)
	mock.ExpectQuery(`WHERE base_slug = \?`).WillReturnError(sql.ErrNoRows)

	h := NewHandler(newService(db))
	req := httptest.NewRequest(http.MethodGet, "/brand-new/versions?debug=1", nil)
	rr := httptest.NewRecorder()
	h.Routes().ServeHTTP(rr, req)

	require.Equal(t, http.StatusOK, rr.Code)
	var payload VersionsPayload
	require.NoError(t, json.Unmarshal(rr.Body.Bytes(), &payload))
	assert.NotEmpty(t, payload.Trace)
}

func TestPublishEndpoint_PendingIsConflict(t *testing.T) {
	db, mock := newMock(t)
	mock.ExpectQuery(`WHERE base_slug = \?`).WillReturnError(sql.ErrNoRows)

	h := NewHandler(newService(db))
	req := httptest.NewRequest(http.MethodPost, "/brand-new/publish",
		strings.NewReader(`{"version_id":"`+versionID+`"}`))
	rr := httptest.NewRecorder()
	h.Routes().ServeHTTP(rr, req)

	assert.Equal(t, http.StatusConflict, rr.Code)
	assert.Contains(t, rr.Body.String(), "error")
}

func TestRestoreEndpoint_RequiresVersionID(t *testing.T) {
	db, _ := newMock(t)

	h := NewHandler(newService(db))
	req := httptest.NewRequest(http.MethodPost, "/"+canonicalID+"/restore",
		strings.NewReader(`{}`))
	rr := httptest.NewRecorder()
	h.Routes().ServeHTTP(rr, req)

	assert.Equal(t, http.StatusBadRequest, rr.Code)
}

func TestSnapshotEndpoint_Created(t *testing.T) {
	db, mock := newMock(t)
	expectResolveCanonical(mock)
	mock.ExpectExec(`INSERT INTO site_template`).
		WillReturnResult(sqlmock.NewResult(0, 1))

	h := NewHandler(newService(db))
	req := httptest.NewRequest(http.MethodPost, "/"+canonicalID+"/snapshot",
		strings.NewReader(`{"commit":"first cut"}`))
	rr := httptest.NewRecorder()
	h.Routes().ServeHTTP(rr, req)

	require.Equal(t, http.StatusCreated, rr.Code)
	var resp map[string]string
	require.NoError(t, json.Unmarshal(rr.Body.Bytes(), &resp))
	assert.NotEmpty(t, resp["version_id"])
}
