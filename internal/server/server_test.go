package server

import (
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/joeblew999/plat-walkmap/internal/choropleth"
	"github.com/joeblew999/plat-walkmap/internal/config"
)

const payload = `{
  "type": "FeatureCollection",
  "features": [
    {"type": "Feature", "geometry": {"type": "Point", "coordinates": [-122.34, 47.60]},
     "properties": {"GEOID": "A", "population": 1000, "supermarkets": 4, "parks": 12}},
    {"type": "Feature", "geometry": {"type": "Point", "coordinates": [-122.32, 47.61]},
     "properties": {"GEOID": "B", "population": 3000, "supermarkets": 18}}
  ]
}`

func newTestServer(t *testing.T, withPayload bool) *Server {
	t.Helper()
	dir := t.TempDir()
	if withPayload {
		require.NoError(t, os.MkdirAll(filepath.Join(dir, "sources"), 0755))
		require.NoError(t, os.WriteFile(filepath.Join(dir, "sources", "travel_times.geojson"), []byte(payload), 0644))
	}

	app, err := config.Load("")
	require.NoError(t, err)

	srv, err := New(Config{
		Host:       "localhost",
		Port:       "8086",
		DataDir:    dir,
		WebDir:     filepath.Join("..", "..", "web"),
		App:        app,
		InMemoryDB: true,
	})
	require.NoError(t, err)
	t.Cleanup(func() { srv.Close() })
	return srv
}

func get(t *testing.T, h http.Handler, path string) *httptest.ResponseRecorder {
	t.Helper()
	rr := httptest.NewRecorder()
	h.ServeHTTP(rr, httptest.NewRequest(http.MethodGet, path, nil))
	return rr
}

func TestMapPage(t *testing.T) {
	srv := newTestServer(t, true)

	rr := get(t, srv, "/")
	require.Equal(t, http.StatusOK, rr.Code)
	assert.Contains(t, rr.Body.String(), "Walking access map")

	rr = get(t, srv, "/static/walkmap.js")
	assert.Equal(t, http.StatusOK, rr.Code)

	rr = get(t, srv, "/nope")
	assert.Equal(t, http.StatusNotFound, rr.Code)
}

func TestInfo(t *testing.T) {
	srv := newTestServer(t, true)

	rr := get(t, srv, "/api/v1/info")
	require.Equal(t, http.StatusOK, rr.Code)

	var body struct {
		Name         string   `json:"name"`
		DB           bool     `json:"db"`
		Payload      string   `json:"payload"`
		Features     int      `json:"features"`
		Destinations []string `json:"destinations"`
		Schemes      []string `json:"schemes"`
	}
	require.NoError(t, json.Unmarshal(rr.Body.Bytes(), &body))
	assert.Equal(t, "plat-walkmap", body.Name)
	assert.True(t, body.DB)
	assert.Equal(t, "travel_times.geojson", body.Payload)
	assert.Equal(t, 2, body.Features)
	assert.Equal(t, []string{"parks", "supermarkets"}, body.Destinations)
	assert.Equal(t, []string{"travel_time"}, body.Schemes)
}

func TestRecordsSyncedToDuckDB(t *testing.T) {
	srv := newTestServer(t, true)

	rr := get(t, srv, "/api/v1/tables")
	require.Equal(t, http.StatusOK, rr.Code)
	assert.Contains(t, rr.Body.String(), "travel_times")

	req := httptest.NewRequest(http.MethodPost, "/api/v1/query",
		strings.NewReader(`{"query": "SELECT destination, minutes FROM travel_times WHERE minutes IS NULL"}`))
	req.Header.Set("Content-Type", "application/json")
	qr := httptest.NewRecorder()
	srv.ServeHTTP(qr, req)
	require.Equal(t, http.StatusOK, qr.Code, qr.Body.String())

	var body struct {
		Count int `json:"count"`
	}
	require.NoError(t, json.Unmarshal(qr.Body.Bytes(), &body))
	assert.Equal(t, 1, body.Count) // B has no parks time
}

func TestViewerRoutesRegistered(t *testing.T) {
	srv := newTestServer(t, true)

	rr := get(t, srv, "/api/v1/viewer/legend")
	require.Equal(t, http.StatusOK, rr.Code)
	assert.Contains(t, rr.Body.String(), "Over 30 min")
}

func TestStartsWithoutPayload(t *testing.T) {
	srv := newTestServer(t, false)

	rr := get(t, srv, "/health")
	require.Equal(t, http.StatusOK, rr.Code)
	assert.Contains(t, rr.Body.String(), `"loaded":false`)

	rr = get(t, srv, "/api/v1/destinations")
	require.Equal(t, http.StatusOK, rr.Code)
	assert.Contains(t, rr.Body.String(), `"destinations":[]`)
}

func TestOpenAPI(t *testing.T) {
	srv := newTestServer(t, true)

	spec := srv.OpenAPI()
	for _, path := range []string{
		"/health", "/api/v1/schemes", "/api/v1/recolor", "/api/v1/viewer/recolor", "/api/v1/query",
	} {
		assert.Contains(t, spec.Paths, path)
	}
}

func TestSchemeFromConfig(t *testing.T) {
	app, err := config.Load("")
	require.NoError(t, err)

	cfg := SchemeFromConfig(app.Scheme)
	assert.Equal(t, choropleth.KindNumeric, cfg.Kind)
	assert.Equal(t, "travel_time", cfg.ID)

	scheme, err := cfg.Build()
	require.NoError(t, err)
	assert.Equal(t, "#999999", scheme.ClassifyFloat(999))
}

func TestDevModeRendersFragments(t *testing.T) {
	app, err := config.Load("")
	require.NoError(t, err)
	srv, err := New(Config{
		DataDir:    t.TempDir(),
		WebDir:     filepath.Join("..", "..", "web"),
		App:        app,
		InMemoryDB: true,
		Dev:        true,
	})
	require.NoError(t, err)
	t.Cleanup(func() { srv.Close() })

	rr := get(t, srv, "/api/v1/viewer/legend")
	require.Equal(t, http.StatusOK, rr.Code)
	assert.Contains(t, rr.Body.String(), "Over 30 min")
	assert.NotContains(t, rr.Body.String(), "template error")
}
