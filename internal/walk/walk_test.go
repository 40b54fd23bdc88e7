package walk

import (
	"encoding/json"
	"math"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestAggregate(t *testing.T) {
	times := Times{"supermarkets": 7.5, "parks": 3, "libraries": 22}

	tests := []struct {
		name     string
		selected Selection
		want     float64
	}{
		{"empty selection is sentinel", nil, NotApplicable},
		{"single", NewSelection("parks"), 3},
		{"max of two", NewSelection("parks", "supermarkets"), 7.5},
		{"max of all", NewSelection("parks", "supermarkets", "libraries"), 22},
		{"missing field skipped", NewSelection("parks", "hospitals"), 3},
		{"all missing is sentinel", NewSelection("hospitals", "schools"), NotApplicable},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, Aggregate(times, tt.selected))
		})
	}
}

func TestAggregateIgnoresRecordForEmptySelection(t *testing.T) {
	assert.Equal(t, NotApplicable, Aggregate(Times{}, Selection{}))
	assert.Equal(t, NotApplicable, Aggregate(Times{"a": 1, "b": 2}, Selection{}))
}

func TestAggregateNeverNaN(t *testing.T) {
	times := Times{"a": math.NaN(), "b": 4}
	assert.Equal(t, 4.0, Aggregate(times, NewSelection("a", "b")))
	assert.Equal(t, NotApplicable, Aggregate(times, NewSelection("a")))
}

func TestAggregateZeroMinutes(t *testing.T) {
	assert.Equal(t, 0.0, Aggregate(Times{"a": 0}, NewSelection("a")))
}

func TestSelection(t *testing.T) {
	s := NewSelection("parks", " ", "supermarkets", "parks")
	assert.Equal(t, Selection{"parks", "supermarkets"}, s)
	assert.Equal(t, "parks,supermarkets", s.Key())
	assert.Equal(t, NewSelection("supermarkets", "parks").Key(), s.Key())
	assert.Equal(t, Selection{"supermarkets", "parks"}, s.Within([]string{"supermarkets", "libraries", "parks"}))
	assert.True(t, NewSelection().Empty())
}

func TestFormatLabel(t *testing.T) {
	assert.Equal(t, "Supermarkets", FormatLabel("supermarkets"))
	assert.Equal(t, "Fire stations", FormatLabel("fire_stations"))
	assert.Equal(t, "Rest Unchanged", FormatLabel("rest_Unchanged"))
	assert.Equal(t, "", FormatLabel(""))
	assert.Equal(t, "Écoles", FormatLabel("écoles"))
}

func TestFormatMinutes(t *testing.T) {
	tests := []struct {
		in    float64
		known bool
		want  string
	}{
		{0, true, "<5 min."},
		{4.99, true, "<5 min."},
		{5, true, "5 min."},
		{12.4, true, "12 min."},
		{12.5, true, "13 min."},
		{30, true, "30 min."},
		{30.2, true, ">30 min."},
		{0, false, "No data"},
	}
	for _, tt := range tests {
		assert.Equal(t, tt.want, FormatMinutes(tt.in, tt.known), "in=%v", tt.in)
	}
}

func TestInfo(t *testing.T) {
	lines := Info(Times{"supermarkets": 12.4, "fire_stations": 40}, NewSelection("supermarkets", "fire_stations", "parks"))
	require.Len(t, lines, 3)
	assert.Equal(t, "Supermarkets: 12 min.", lines[0].String())
	assert.Equal(t, "Fire stations: >30 min.", lines[1].String())
	assert.Equal(t, "Parks: No data", lines[2].String())
}

func TestRecordFromProperties(t *testing.T) {
	props := map[string]any{
		"GEOID":        "53033000100",
		"population":   4211.0,
		"supermarkets": 6.25,
		"parks":        json.Number("2"),
		"libraries":    nil,
		"schools":      "n/a",
		"tt":           999.0,
	}
	rec := RecordFromProperties(props, DefaultFields)

	assert.Equal(t, "53033000100", rec.ID)
	assert.Equal(t, 4211.0, rec.Population)
	assert.Equal(t, Times{"supermarkets": 6.25, "parks": 2}, rec.Times)

	_, known := rec.Times.Minutes("libraries")
	assert.False(t, known)
}

func TestRecordNumericID(t *testing.T) {
	rec := RecordFromProperties(map[string]any{"GEOID": 17.0}, DefaultFields)
	assert.Equal(t, "17", rec.ID)

	rec = RecordFromProperties(map[string]any{"GEOID": 53033000100.0}, DefaultFields)
	assert.Equal(t, "53033000100", rec.ID)

	rec = RecordFromProperties(map[string]any{"GEOID": json.Number("53033000100")}, DefaultFields)
	assert.Equal(t, "53033000100", rec.ID)
}

func TestIsDestination(t *testing.T) {
	f := Fields{ID: "id", Population: "pop", Skip: []string{"name"}}
	for _, name := range []string{"id", "pop", "name", "tt", "fill"} {
		assert.False(t, f.IsDestination(name), name)
	}
	assert.True(t, f.IsDestination("parks"))
}
