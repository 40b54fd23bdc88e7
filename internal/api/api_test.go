package api

import (
	"encoding/json"
	"net/http"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/danielgtaylor/huma/v2"
	"github.com/danielgtaylor/huma/v2/humatest"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/joeblew999/plat-walkmap/internal/choropleth"
	"github.com/joeblew999/plat-walkmap/internal/config"
	"github.com/joeblew999/plat-walkmap/internal/service"
	"github.com/joeblew999/plat-walkmap/internal/walk"
)

const payload = `{
  "type": "FeatureCollection",
  "features": [
    {"type": "Feature",
     "geometry": {"type": "Point", "coordinates": [-122.34, 47.60]},
     "properties": {"GEOID": "A", "population": 1000, "supermarkets": 4, "parks": 12}},
    {"type": "Feature",
     "geometry": {"type": "Point", "coordinates": [-122.32, 47.61]},
     "properties": {"GEOID": "B", "population": 3000, "supermarkets": 18, "parks": 2}},
    {"type": "Feature",
     "geometry": {"type": "Point", "coordinates": [-122.31, 47.62]},
     "properties": {"GEOID": "C", "population": 0, "parks": 40}}
  ]
}`

func travelTime() service.SchemeConfig {
	return service.SchemeConfig{
		ID:     "travel_time",
		Name:   "Travel time",
		Title:  "Walking time",
		Kind:   choropleth.KindNumeric,
		Limits: []float64{0, 5, 10, 15, 20, 25, 30},
		Colors: []string{"#0868ac", "#5aabac", "#abedab", "#fda668", "#dd643c", "#b8432e", "#999999"},
		Labels: []string{
			"Under 5 min", "5 - 10 min", "10 - 15 min", "15 - 20 min", "20 - 25 min",
			"25 - 30 min", "Over 30 min",
		},
	}
}

func newTestServices(t *testing.T) *Services {
	t.Helper()
	dir := t.TempDir()
	sources := filepath.Join(dir, "sources")
	require.NoError(t, os.MkdirAll(sources, 0755))
	require.NoError(t, os.WriteFile(filepath.Join(sources, "tt.geojson"), []byte(payload), 0644))

	bus := service.NewEventBus()
	schemes, err := service.NewSchemeService(dir, bus, travelTime())
	require.NoError(t, err)
	tt, err := service.NewTravelTimeService(dir, walk.DefaultFields, 8, bus)
	require.NoError(t, err)
	require.NoError(t, tt.Load("tt.geojson"))

	return &Services{
		Scheme:             schemes,
		TravelTime:         tt,
		Source:             service.NewSourceService(dir),
		DefaultScheme:      "travel_time",
		DefaultDestination: "supermarkets",
		Map:                config.MapConfig{MinZoom: 11, MaxZoom: 16},
	}
}

func newTestAPI(t *testing.T) (humatest.TestAPI, *Services) {
	t.Helper()
	cfg := huma.DefaultConfig("test", "1.0.0")
	cfg.Transformers = append(cfg.Transformers, LinkTransformer())
	_, api := humatest.New(t, cfg)
	svc := newTestServices(t)
	RegisterRoutes(api, svc)
	return api, svc
}

func decode[T any](t *testing.T, body []byte) T {
	t.Helper()
	var v T
	require.NoError(t, json.Unmarshal(body, &v))
	return v
}

func TestHealth(t *testing.T) {
	api, _ := newTestAPI(t)

	resp := api.Get("/health")
	require.Equal(t, http.StatusOK, resp.Code)

	body := decode[HealthBody](t, resp.Body.Bytes())
	assert.Equal(t, "ok", body.Status)
	assert.True(t, body.Loaded)
	assert.Contains(t, resp.Header().Values("Link"), `</api/v1/schemes>; rel="schemes"`)
}

func TestSchemeCRUD(t *testing.T) {
	api, _ := newTestAPI(t)

	resp := api.Get("/api/v1/schemes")
	require.Equal(t, http.StatusOK, resp.Code)
	assert.Contains(t, decode[map[string]service.SchemeConfig](t, resp.Body.Bytes()), "travel_time")

	create := map[string]any{
		"name":   "Coarse",
		"kind":   "numeric",
		"limits": []float64{0, 15},
		"colors": []string{"#00ff00", "#ff0000"},
		"labels": []string{"Near", "Far"},
	}
	resp = api.Post("/api/v1/schemes", create)
	require.Equal(t, http.StatusOK, resp.Code, resp.Body.String())
	created := decode[service.SchemeConfig](t, resp.Body.Bytes())
	assert.Equal(t, "coarse", created.ID)

	links := strings.Join(resp.Header().Values("Link"), "\n")
	assert.Contains(t, links, `</api/v1/schemes/coarse>; rel="delete"; method="DELETE"`)
	assert.Contains(t, links, `</api/v1/schemes/coarse/legend>; rel="legend"`)

	resp = api.Post("/api/v1/schemes", create)
	assert.Equal(t, http.StatusConflict, resp.Code)

	create["colors"] = []string{"#00ff00", "#0000ff"}
	resp = api.Put("/api/v1/schemes/coarse", create)
	require.Equal(t, http.StatusOK, resp.Code, resp.Body.String())
	assert.Equal(t, "#0000ff", decode[service.SchemeConfig](t, resp.Body.Bytes()).Colors[1])

	resp = api.Get("/api/v1/schemes/coarse")
	require.Equal(t, http.StatusOK, resp.Code)
	assert.Contains(t, strings.Join(resp.Header().Values("Link"), "\n"), `</api/v1/schemes/coarse>; rel="self"`)

	resp = api.Delete("/api/v1/schemes/coarse")
	assert.Equal(t, http.StatusOK, resp.Code)

	resp = api.Get("/api/v1/schemes/coarse")
	assert.Equal(t, http.StatusNotFound, resp.Code)
}

func TestCreateInvalidScheme(t *testing.T) {
	api, _ := newTestAPI(t)

	resp := api.Post("/api/v1/schemes", map[string]any{
		"name":   "Broken",
		"kind":   "numeric",
		"limits": []float64{10, 5},
		"colors": []string{"#000000", "#111111"},
		"labels": []string{"a", "b"},
	})
	assert.Equal(t, http.StatusBadRequest, resp.Code)
	assert.Contains(t, resp.Body.String(), "strictly increase")
}

func TestDeleteDefaultScheme(t *testing.T) {
	api, _ := newTestAPI(t)
	resp := api.Delete("/api/v1/schemes/travel_time")
	assert.Equal(t, http.StatusConflict, resp.Code)
}

func TestLegend(t *testing.T) {
	api, _ := newTestAPI(t)

	resp := api.Get("/api/v1/schemes/travel_time/legend")
	require.Equal(t, http.StatusOK, resp.Code)

	body := decode[LegendBody](t, resp.Body.Bytes())
	assert.Equal(t, "Walking time", body.Title)
	require.Len(t, body.Entries, 7)
	assert.Equal(t, "Under 5 min", body.Entries[0].Label)
	assert.Equal(t, choropleth.DefaultFallbackColor, body.Fallback.Color)
	assert.True(t, strings.HasPrefix(body.HTML, `<b style="background:#0868ac"></b> Under 5 min<br/>`))
	assert.False(t, strings.HasSuffix(body.HTML, "<br/>"))
}

func TestClassify(t *testing.T) {
	api, _ := newTestAPI(t)

	resp := api.Post("/api/v1/schemes/travel_time/classify", map[string]any{
		"values": []any{4, 5, 999, nil, "x"},
	})
	require.Equal(t, http.StatusOK, resp.Code, resp.Body.String())

	out := decode[[]Classification](t, resp.Body.Bytes())
	require.Len(t, out, 5)
	assert.Equal(t, "#0868ac", out[0].Color)
	assert.Equal(t, "#5aabac", out[1].Color)
	assert.Equal(t, "Over 30 min", out[2].Label)
	assert.Equal(t, choropleth.DefaultFallbackColor, out[3].Color)
	assert.Equal(t, choropleth.DefaultFallbackColor, out[4].Color)

	resp = api.Post("/api/v1/schemes/missing/classify", map[string]any{"values": []any{1}})
	assert.Equal(t, http.StatusNotFound, resp.Code)
}

func TestDestinations(t *testing.T) {
	api, _ := newTestAPI(t)

	resp := api.Get("/api/v1/destinations")
	require.Equal(t, http.StatusOK, resp.Code)

	body := decode[DestinationsBody](t, resp.Body.Bytes())
	assert.Equal(t, []service.Destination{
		{Name: "parks", Label: "Parks"},
		{Name: "supermarkets", Label: "Supermarkets"},
	}, body.Destinations)
	assert.Equal(t, walk.Selection{"supermarkets"}, body.Default)
}

func TestFeaturesPaged(t *testing.T) {
	api, _ := newTestAPI(t)

	resp := api.Get("/api/v1/features?offset=1&limit=1")
	require.Equal(t, http.StatusOK, resp.Code)

	var page struct {
		Total int                      `json:"total"`
		Data  []service.FeatureSummary `json:"data"`
	}
	require.NoError(t, json.Unmarshal(resp.Body.Bytes(), &page))
	assert.Equal(t, 3, page.Total)
	require.Len(t, page.Data, 1)
	assert.Equal(t, "B", page.Data[0].ID)

	links := strings.Join(resp.Header().Values("Link"), "\n")
	assert.Contains(t, links, `rel="next"`)
	assert.Contains(t, links, `rel="prev"`)
}

func TestFeature(t *testing.T) {
	api, _ := newTestAPI(t)

	resp := api.Get("/api/v1/features/A?select=supermarkets,parks")
	require.Equal(t, http.StatusOK, resp.Code, resp.Body.String())

	body := decode[FeatureBody](t, resp.Body.Bytes())
	assert.Equal(t, 12.0, body.TT)
	assert.Equal(t, "#abedab", body.Color)
	require.Len(t, body.Info, 2)
	assert.Equal(t, "Parks: 12 min.", body.Info[0].String())
	assert.Equal(t, "Supermarkets: <5 min.", body.Info[1].String())

	resp = api.Get("/api/v1/features/Z")
	assert.Equal(t, http.StatusNotFound, resp.Code)
}

func TestAggregate(t *testing.T) {
	api, _ := newTestAPI(t)

	tests := []struct {
		name   string
		times  map[string]float64
		sel    []string
		want   float64
		notApp bool
	}{
		{"max of selected", map[string]float64{"a": 3, "b": 8}, []string{"a", "b"}, 8, false},
		{"empty selection", map[string]float64{"a": 3}, []string{}, walk.NotApplicable, true},
		{"missing skipped", map[string]float64{"a": 3}, []string{"a", "b"}, 3, false},
		{"all missing", map[string]float64{"a": 3}, []string{"b"}, walk.NotApplicable, true},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			resp := api.Post("/api/v1/aggregate", map[string]any{"times": tt.times, "select": tt.sel})
			require.Equal(t, http.StatusOK, resp.Code, resp.Body.String())
			body := decode[AggregateBody](t, resp.Body.Bytes())
			assert.Equal(t, tt.want, body.TT)
			assert.Equal(t, tt.notApp, body.NotApplicable)
		})
	}
}

func TestRecolor(t *testing.T) {
	api, _ := newTestAPI(t)

	resp := api.Post("/api/v1/recolor", map[string]any{"select": []string{"parks", "unknown"}})
	require.Equal(t, http.StatusOK, resp.Code, resp.Body.String())

	body := decode[RecolorBody](t, resp.Body.Bytes())
	assert.Equal(t, "travel_time", body.Scheme)
	assert.Equal(t, walk.Selection{"parks"}, body.Selection)
	require.Len(t, body.Features, 3)
	assert.Equal(t, service.FeatureColor{ID: "A", TT: 12, Color: "#abedab"}, body.Features[0])
	assert.Equal(t, service.FeatureColor{ID: "C", TT: 40, Color: "#999999"}, body.Features[2])

	// No select list means the default selection.
	resp = api.Post("/api/v1/recolor", map[string]any{})
	require.Equal(t, http.StatusOK, resp.Code)
	body = decode[RecolorBody](t, resp.Body.Bytes())
	assert.Equal(t, walk.Selection{"supermarkets"}, body.Selection)
	assert.Equal(t, walk.NotApplicable, body.Features[2].TT)

	// An explicitly empty selection colors everything as not applicable.
	resp = api.Post("/api/v1/recolor", map[string]any{"select": []string{}})
	require.Equal(t, http.StatusOK, resp.Code)
	body = decode[RecolorBody](t, resp.Body.Bytes())
	for _, f := range body.Features {
		assert.Equal(t, "#999999", f.Color)
	}

	resp = api.Post("/api/v1/recolor", map[string]any{"scheme": "nope"})
	assert.Equal(t, http.StatusNotFound, resp.Code)
}

func TestSummary(t *testing.T) {
	api, _ := newTestAPI(t)

	resp := api.Post("/api/v1/summary", map[string]any{"select": []string{"supermarkets"}})
	require.Equal(t, http.StatusOK, resp.Code, resp.Body.String())

	body := decode[SummaryBody](t, resp.Body.Bytes())
	require.Len(t, body.Buckets, 7)
	assert.Equal(t, 1000.0, body.Buckets[0].Population)
	assert.Equal(t, 3000.0, body.Buckets[3].Population)
	assert.InDelta(t, 0.75, body.Buckets[3].Share, 1e-9)
}

func TestView(t *testing.T) {
	api, _ := newTestAPI(t)

	resp := api.Get("/api/v1/view")
	require.Equal(t, http.StatusOK, resp.Code)

	body := decode[ViewBody](t, resp.Body.Bytes())
	assert.Equal(t, 11, body.MinZoom)
	assert.Equal(t, 16, body.MaxZoom)
	assert.InDelta(t, 47.61, body.Center[0], 1e-9)
	assert.InDelta(t, -122.325, body.Center[1], 1e-9)
}

func TestGeoJSON(t *testing.T) {
	api, _ := newTestAPI(t)

	resp := api.Get("/api/v1/geojson?select=parks")
	require.Equal(t, http.StatusOK, resp.Code)
	assert.Equal(t, "application/geo+json", resp.Header().Get("Content-Type"))
	assert.Contains(t, resp.Body.String(), `"fill":"#0868ac"`)
	assert.Contains(t, resp.Body.String(), `"FeatureCollection"`)
}

func TestSources(t *testing.T) {
	api, svc := newTestAPI(t)

	resp := api.Get("/api/v1/sources")
	require.Equal(t, http.StatusOK, resp.Code)
	files := decode[[]service.SourceFile](t, resp.Body.Bytes())
	require.Len(t, files, 1)
	assert.Equal(t, "tt.geojson", files[0].Name)

	resp = api.Post("/api/v1/sources/tt.geojson/load")
	require.Equal(t, http.StatusOK, resp.Code, resp.Body.String())
	body := decode[LoadSourceBody](t, resp.Body.Bytes())
	assert.Equal(t, 3, body.Features)
	assert.Equal(t, "tt.geojson", svc.TravelTime.Current())

	resp = api.Post("/api/v1/sources/missing.geojson/load")
	assert.Equal(t, http.StatusNotFound, resp.Code)
}

func TestParseSelection(t *testing.T) {
	assert.Empty(t, ParseSelection(""))
	assert.Equal(t, walk.Selection{"a", "b"}, ParseSelection(" a, b ,a,"))
}
