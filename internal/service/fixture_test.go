package service

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/joeblew999/plat-walkmap/internal/choropleth"
	"github.com/joeblew999/plat-walkmap/internal/walk"
)

const payloadJSON = `{
  "type": "FeatureCollection",
  "features": [
    {"type": "Feature",
     "geometry": {"type": "Polygon", "coordinates": [[[-122.34, 47.60], [-122.33, 47.60], [-122.33, 47.61], [-122.34, 47.61], [-122.34, 47.60]]]},
     "properties": {"GEOID": "A", "population": 1000, "supermarkets": 4, "parks": 12, "fire_stations": 31}},
    {"type": "Feature",
     "geometry": {"type": "Polygon", "coordinates": [[[-122.33, 47.60], [-122.32, 47.60], [-122.32, 47.61], [-122.33, 47.61], [-122.33, 47.60]]]},
     "properties": {"GEOID": "B", "population": 3000, "supermarkets": 18, "parks": 2, "fire_stations": null}},
    {"type": "Feature",
     "geometry": {"type": "Polygon", "coordinates": [[[-122.32, 47.60], [-122.31, 47.60], [-122.31, 47.61], [-122.32, 47.61], [-122.32, 47.60]]]},
     "properties": {"GEOID": "C", "population": 0, "parks": 40}}
  ]
}`

func travelTimeConfig() SchemeConfig {
	return SchemeConfig{
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

func writePayload(t *testing.T, dataDir, name, body string) {
	t.Helper()
	dir := filepath.Join(dataDir, "sources")
	require.NoError(t, os.MkdirAll(dir, 0755))
	require.NoError(t, os.WriteFile(filepath.Join(dir, name), []byte(body), 0644))
}

func loadedService(t *testing.T) *TravelTimeService {
	t.Helper()
	dir := t.TempDir()
	writePayload(t, dir, "tt.geojson", payloadJSON)
	svc, err := NewTravelTimeService(dir, walk.DefaultFields, 8, nil)
	require.NoError(t, err)
	require.NoError(t, svc.Load("tt.geojson"))
	return svc
}

func travelTimeScheme(t *testing.T) *choropleth.Scheme {
	t.Helper()
	s, err := travelTimeConfig().Build()
	require.NoError(t, err)
	return s
}
