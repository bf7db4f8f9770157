package db

import (
	"compress/gzip"
	"encoding/json"
	"io"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newAdminServer(t *testing.T, db *DB) *httptest.Server {
	t.Helper()
	mux := http.NewServeMux()
	require.NoError(t, db.AttachAdminRoutes(mux))
	srv := httptest.NewServer(mux)
	t.Cleanup(srv.Close)
	return srv
}

func TestAdminRoutes_Captures(t *testing.T) {
	db := newTestDB(t)
	_, err := db.InsertCapture("sim", testCapture(1, time.Now()))
	require.NoError(t, err)
	srv := newAdminServer(t, db)

	resp, err := http.Get(srv.URL + "/debug/captures?limit=5")
	require.NoError(t, err)
	defer resp.Body.Close()
	require.Equal(t, http.StatusOK, resp.StatusCode)

	var list []CaptureRecord
	require.NoError(t, json.NewDecoder(resp.Body).Decode(&list))
	require.Len(t, list, 1)
	assert.Equal(t, "sim", list[0].Instrument)
}

func TestAdminRoutes_CapturesBadLimit(t *testing.T) {
	srv := newAdminServer(t, newTestDB(t))

	resp, err := http.Get(srv.URL + "/debug/captures?limit=lots")
	require.NoError(t, err)
	resp.Body.Close()
	assert.Equal(t, http.StatusBadRequest, resp.StatusCode)
}

func TestAdminRoutes_Backup(t *testing.T) {
	srv := newAdminServer(t, newTestDB(t))

	resp, err := http.Get(srv.URL + "/debug/backup")
	require.NoError(t, err)
	defer resp.Body.Close()
	require.Equal(t, http.StatusOK, resp.StatusCode)

	gz, err := gzip.NewReader(resp.Body)
	require.NoError(t, err)
	data, err := io.ReadAll(gz)
	require.NoError(t, err)
	assert.True(t, len(data) > 16 && string(data[:15]) == "SQLite format 3", "backup is a SQLite file")
}
