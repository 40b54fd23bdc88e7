// Package service contains business logic for the walking access map.
package service

import (
	"github.com/joeblew999/plat-walkmap/internal/choropleth"
	"github.com/joeblew999/plat-walkmap/internal/walk"
)

// SchemeConfig is a stored color scheme definition.
// Huma reads the tags for OpenAPI docs and request validation.
type SchemeConfig struct {
	ID         string          `json:"id,omitempty" doc:"Unique scheme identifier" example:"travel_time"`
	Name       string          `json:"name" required:"true" minLength:"1" maxLength:"100" doc:"Display name" example:"Travel time"`
	Title      string          `json:"title,omitempty" doc:"Legend heading" example:"Walking time"`
	Kind       choropleth.Kind `json:"kind" required:"true" enum:"numeric,categorical" doc:"Scheme variant" example:"numeric"`
	Limits     []float64       `json:"limits,omitempty" doc:"Ascending breakpoints (numeric schemes)"`
	Categories []string        `json:"categories,omitempty" doc:"Category keys (categorical schemes)"`
	Colors     []string        `json:"colors" required:"true" doc:"Hex color per bucket"`
	Labels     []string        `json:"labels" required:"true" doc:"Legend label per bucket"`
	NAColor    string          `json:"naColor,omitempty" doc:"Fallback color for unmatched values" example:"#888"`
	NALabel    string          `json:"naLabel,omitempty" doc:"Fallback legend label" example:"No data"`
}

// Build validates the definition and returns a ready scheme.
func (c SchemeConfig) Build() (*choropleth.Scheme, error) {
	fallback := choropleth.WithFallback(c.NAColor, c.NALabel)
	switch c.Kind {
	case choropleth.KindCategorical:
		return choropleth.NewCategorical(c.Categories, c.Colors, c.Labels, fallback)
	default:
		return choropleth.NewNumeric(c.Limits, c.Colors, c.Labels, fallback)
	}
}

// Destination is a selectable destination category.
type Destination struct {
	Name  string `json:"name" doc:"Property name in the payload" example:"fire_stations"`
	Label string `json:"label" doc:"Display label" example:"Fire stations"`
}

// FeatureColor is the recolor result for one feature.
type FeatureColor struct {
	ID    string  `json:"id" doc:"Feature identifier" example:"53033000100"`
	TT    float64 `json:"tt" doc:"Aggregated travel time in minutes (999 when not applicable)" example:"12.5"`
	Color string  `json:"color" doc:"Fill color" example:"#abedab"`
}

// FeatureSummary is a listing row for one feature.
type FeatureSummary struct {
	ID         string     `json:"id" doc:"Feature identifier"`
	Population float64    `json:"population" doc:"Population count"`
	Times      walk.Times `json:"times" doc:"Walking minutes per destination (missing means unknown)"`
}

// BucketSummary is population per legend bucket for a selection.
type BucketSummary struct {
	Label      string  `json:"label" doc:"Legend label"`
	Color      string  `json:"color" doc:"Bucket color"`
	Features   int     `json:"features" doc:"Number of features in the bucket"`
	Population float64 `json:"population" doc:"Total population in the bucket"`
	Share      float64 `json:"share" doc:"Share of total population (0-1)"`
}

// View holds the initial map viewport derived from the payload.
type View struct {
	Center    [2]float64    `json:"center" doc:"Map center as [lat, lon]"`
	Bounds    [2][2]float64 `json:"bounds" doc:"Max bounds as [[south, west], [north, east]]"`
	MinZoom   int           `json:"minZoom" doc:"Minimum zoom"`
	MaxZoom   int           `json:"maxZoom" doc:"Maximum zoom"`
	StartZoom int           `json:"startZoom" doc:"Initial zoom"`
}

// SourceFile represents a travel-time payload file.
type SourceFile struct {
	Name     string `json:"name" doc:"File name" example:"travel_times.geojson"`
	Size     string `json:"size" doc:"Human-readable file size" example:"1.2 MB"`
	FileType string `json:"fileType" doc:"File type" example:"GeoJSON"`
}
