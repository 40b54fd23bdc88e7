// Package api defines the Huma API routes and handlers.
package api

import (
	"context"
	"errors"
	"strings"

	"github.com/danielgtaylor/huma/v2"

	"github.com/joeblew999/plat-walkmap/internal/choropleth"
	"github.com/joeblew999/plat-walkmap/internal/config"
	"github.com/joeblew999/plat-walkmap/internal/humastar"
	"github.com/joeblew999/plat-walkmap/internal/service"
	"github.com/joeblew999/plat-walkmap/internal/walk"
)

// Services holds the service dependencies for API handlers.
type Services struct {
	Scheme     *service.SchemeService
	TravelTime *service.TravelTimeService
	Source     *service.SourceService
	Store      *service.RecordStore // nil when DuckDB is unavailable

	DefaultScheme      string
	DefaultDestination string
	Map                config.MapConfig
}

// RegisterRoutes registers every REST handler on api.
func RegisterRoutes(api huma.API, svc *Services) {
	huma.AutoRegister(api, NewAPIHandler(svc))
}

// Types

type IDInput struct {
	ID string `path:"id" doc:"Scheme ID" example:"travel_time"`
}

var schemeActions = []humastar.ActionDef{
	{Rel: "edit", Pattern: "/api/v1/schemes/%s", Method: "PUT", Title: "Replace scheme"},
	{Rel: "delete", Pattern: "/api/v1/schemes/%s", Method: "DELETE", Title: "Delete scheme"},
	{Rel: "legend", Pattern: "/api/v1/schemes/%s/legend", Method: "GET", Title: "Scheme legend"},
	{Rel: "classify", Pattern: "/api/v1/schemes/%s/classify", Method: "POST", Title: "Classify values"},
}

// SchemeBody is a scheme with its hypermedia actions.
type SchemeBody struct {
	service.SchemeConfig
}

// Actions implements humastar.Actor.
func (b SchemeBody) Actions() []humastar.Action {
	return humastar.ActionsFor(b.ID, schemeActions)
}

type SchemeOutput struct {
	Body SchemeBody
}

type SchemesOutput struct {
	Body map[string]service.SchemeConfig
}

type MessageBody struct {
	Message string `json:"message" doc:"Result message"`
}

type HealthBody struct {
	Status  string `json:"status" doc:"Health status" example:"ok"`
	Version string `json:"version" doc:"API version" example:"1.0.0"`
	Loaded  bool   `json:"loaded" doc:"Whether a travel-time payload is loaded"`
}

type LegendBody struct {
	Title    string                   `json:"title" doc:"Legend heading" example:"Walking time"`
	Entries  []choropleth.LegendEntry `json:"entries" doc:"Legend entries in scheme order"`
	Fallback choropleth.LegendEntry   `json:"fallback" doc:"Color and label for unmatched values"`
	HTML     string                   `json:"html" doc:"Rendered legend HTML"`
}

type ClassifyInput struct {
	IDInput
	Body struct {
		Values []any `json:"values" required:"true" doc:"Values to classify (numbers or category keys)"`
	}
}

type Classification struct {
	Value any    `json:"value" doc:"Input value"`
	Color string `json:"color" doc:"Assigned color"`
	Label string `json:"label" doc:"Legend label of the assigned bucket"`
}

type DestinationsBody struct {
	Destinations []service.Destination `json:"destinations" doc:"Selectable destinations in payload order"`
	Default      walk.Selection        `json:"default" doc:"Initially selected destinations"`
}

type FeaturesInput struct {
	Offset int `query:"offset" minimum:"0" default:"0" doc:"Items to skip"`
	Limit  int `query:"limit" minimum:"1" maximum:"500" default:"50" doc:"Page size"`
}

type FeatureInput struct {
	ID     string `path:"id" doc:"Feature identifier" example:"53033000100"`
	Select string `query:"select" doc:"Comma-separated destinations" example:"supermarkets,parks"`
	Scheme string `query:"scheme" doc:"Scheme ID (default scheme when empty)"`
}

type FeatureBody struct {
	service.FeatureSummary
	TT    float64         `json:"tt" doc:"Aggregated travel time for the selection"`
	Color string          `json:"color" doc:"Fill color for the selection"`
	Info  []walk.InfoLine `json:"info" doc:"Info panel lines"`
}

type AggregateInput struct {
	Body struct {
		Times  walk.Times `json:"times" required:"true" doc:"Walking minutes per destination"`
		Select []string   `json:"select" required:"true" doc:"Selected destinations"`
	}
}

type AggregateBody struct {
	TT            float64 `json:"tt" doc:"Maximum travel time over the known selected destinations"`
	NotApplicable bool    `json:"notApplicable" doc:"True when nothing selected has a value (tt is the 999 sentinel)"`
}

// SelectionRequest picks a scheme and destinations. A missing select list
// means the default selection.
type SelectionRequest struct {
	Scheme string   `json:"scheme,omitempty" doc:"Scheme ID (default scheme when empty)" example:"travel_time"`
	Select []string `json:"select,omitempty" doc:"Selected destinations; omit for the default selection"`
}

type RecolorBody struct {
	Scheme    string                 `json:"scheme" doc:"Scheme used"`
	Selection walk.Selection         `json:"selection" doc:"Effective selection"`
	Features  []service.FeatureColor `json:"features" doc:"Per-feature travel time and color"`
}

type SummaryBody struct {
	Scheme    string                  `json:"scheme" doc:"Scheme used"`
	Selection walk.Selection          `json:"selection" doc:"Effective selection"`
	Buckets   []service.BucketSummary `json:"buckets" doc:"Population per legend bucket"`
}

type ViewBody struct {
	service.View
	TileLayers []config.TileLayer `json:"tileLayers" doc:"Basemap tile layers"`
}

type GeoJSONInput struct {
	Select string `query:"select" doc:"Comma-separated destinations"`
	Scheme string `query:"scheme" doc:"Scheme ID (default scheme when empty)"`
}

type GeoJSONOutput struct {
	ContentType string `header:"Content-Type"`
	Body        []byte
}

// APIHandler holds all REST API handlers. Methods named Register* are
// auto-discovered by huma.AutoRegister.
type APIHandler struct {
	svc *Services
}

func NewAPIHandler(svc *Services) *APIHandler {
	return &APIHandler{svc: svc}
}

// RegisterHealth registers health check routes.
func (h *APIHandler) RegisterHealth(api huma.API) {
	huma.Get(api, "/health", h.GetHealth, huma.OperationTags("health"))
}

// RegisterSchemes registers scheme CRUD and classification routes.
func (h *APIHandler) RegisterSchemes(api huma.API) {
	huma.Get(api, "/api/v1/schemes", h.GetSchemes, huma.OperationTags("schemes"))
	huma.Post(api, "/api/v1/schemes", h.CreateScheme, huma.OperationTags("schemes"))
	huma.Get(api, "/api/v1/schemes/{id}", h.GetScheme, huma.OperationTags("schemes"))
	huma.Put(api, "/api/v1/schemes/{id}", h.PutScheme, huma.OperationTags("schemes"))
	huma.Delete(api, "/api/v1/schemes/{id}", h.DeleteScheme, huma.OperationTags("schemes"))
	huma.Get(api, "/api/v1/schemes/{id}/legend", h.GetLegend, huma.OperationTags("schemes"))
	huma.Post(api, "/api/v1/schemes/{id}/classify", h.Classify, huma.OperationTags("schemes"))
}

// RegisterTravelTimes registers destination, feature and recolor routes.
func (h *APIHandler) RegisterTravelTimes(api huma.API) {
	huma.Get(api, "/api/v1/destinations", h.GetDestinations, huma.OperationTags("travel-times"))
	huma.Get(api, "/api/v1/features", h.GetFeatures, huma.OperationTags("travel-times"))
	huma.Get(api, "/api/v1/features/{id}", h.GetFeature, huma.OperationTags("travel-times"))
	huma.Post(api, "/api/v1/aggregate", h.Aggregate, huma.OperationTags("travel-times"))
	huma.Post(api, "/api/v1/recolor", h.Recolor, huma.OperationTags("travel-times"))
	huma.Post(api, "/api/v1/summary", h.Summary, huma.OperationTags("travel-times"))
	huma.Get(api, "/api/v1/view", h.GetView, huma.OperationTags("travel-times"))
	huma.Get(api, "/api/v1/geojson", h.GetGeoJSON, huma.OperationTags("travel-times"))
}

// RegisterSources registers source listing routes.
func (h *APIHandler) RegisterSources(api huma.API) {
	huma.Get(api, "/api/v1/sources", h.GetSources, huma.OperationTags("sources"))
	huma.Post(api, "/api/v1/sources/{name}/load", h.LoadSource, huma.OperationTags("sources"))
}

// Handlers

func (h *APIHandler) GetHealth(ctx context.Context, input *struct{}) (*struct{ Body HealthBody }, error) {
	loaded := h.svc != nil && h.svc.TravelTime != nil && h.svc.TravelTime.Loaded()
	return &struct{ Body HealthBody }{Body: HealthBody{Status: "ok", Version: "1.0.0", Loaded: loaded}}, nil
}

func (h *APIHandler) GetSchemes(ctx context.Context, input *struct{}) (*SchemesOutput, error) {
	return &SchemesOutput{Body: h.svc.Scheme.List()}, nil
}

func (h *APIHandler) CreateScheme(ctx context.Context, input *struct{ Body service.SchemeConfig }) (*SchemeOutput, error) {
	created, err := h.svc.Scheme.Create(input.Body)
	if err != nil {
		return nil, toHumaError(err)
	}
	return &SchemeOutput{Body: SchemeBody{created}}, nil
}

func (h *APIHandler) GetScheme(ctx context.Context, input *IDInput) (*SchemeOutput, error) {
	cfg, ok := h.svc.Scheme.Get(input.ID)
	if !ok {
		return nil, huma.Error404NotFound("scheme not found")
	}
	return &SchemeOutput{Body: SchemeBody{cfg}}, nil
}

func (h *APIHandler) PutScheme(ctx context.Context, input *struct {
	IDInput
	Body service.SchemeConfig
}) (*SchemeOutput, error) {
	updated, err := h.svc.Scheme.Update(input.ID, input.Body)
	if err != nil {
		return nil, toHumaError(err)
	}
	return &SchemeOutput{Body: SchemeBody{updated}}, nil
}

func (h *APIHandler) DeleteScheme(ctx context.Context, input *IDInput) (*struct{ Body MessageBody }, error) {
	if input.ID == h.svc.DefaultScheme {
		return nil, huma.Error409Conflict("the default scheme cannot be deleted")
	}
	if err := h.svc.Scheme.Delete(input.ID); err != nil {
		return nil, toHumaError(err)
	}
	return &struct{ Body MessageBody }{Body: MessageBody{Message: "Scheme deleted"}}, nil
}

func (h *APIHandler) GetLegend(ctx context.Context, input *IDInput) (*struct{ Body LegendBody }, error) {
	cfg, ok := h.svc.Scheme.Get(input.ID)
	if !ok {
		return nil, huma.Error404NotFound("scheme not found")
	}
	scheme, err := h.svc.Scheme.Scheme(input.ID)
	if err != nil {
		return nil, toHumaError(err)
	}
	return &struct{ Body LegendBody }{Body: LegendBody{
		Title:    cfg.Title,
		Entries:  scheme.Legend(),
		Fallback: scheme.Fallback(),
		HTML:     scheme.LegendHTML(),
	}}, nil
}

func (h *APIHandler) Classify(ctx context.Context, input *ClassifyInput) (*struct{ Body []Classification }, error) {
	scheme, err := h.svc.Scheme.Scheme(input.ID)
	if err != nil {
		return nil, toHumaError(err)
	}
	out := make([]Classification, len(input.Body.Values))
	for i, v := range input.Body.Values {
		out[i] = Classification{Value: v, Color: scheme.Classify(v), Label: scheme.LabelFor(v)}
	}
	return &struct{ Body []Classification }{Body: out}, nil
}

func (h *APIHandler) GetDestinations(ctx context.Context, input *struct{}) (*struct{ Body DestinationsBody }, error) {
	tt := h.svc.TravelTime
	return &struct{ Body DestinationsBody }{Body: DestinationsBody{
		Destinations: tt.Destinations(),
		Default:      tt.DefaultSelection(h.svc.DefaultDestination),
	}}, nil
}

func (h *APIHandler) GetFeatures(ctx context.Context, input *FeaturesInput) (*struct {
	Body humastar.PageBody[service.FeatureSummary]
}, error) {
	data, total := h.svc.TravelTime.Page(input.Offset, input.Limit)
	return &struct {
		Body humastar.PageBody[service.FeatureSummary]
	}{Body: humastar.PageBody[service.FeatureSummary]{
		Total: total, Offset: input.Offset, Limit: input.Limit, Data: data,
	}}, nil
}

func (h *APIHandler) GetFeature(ctx context.Context, input *FeatureInput) (*struct{ Body FeatureBody }, error) {
	scheme, _, err := h.scheme(input.Scheme)
	if err != nil {
		return nil, err
	}

	rec, err := h.svc.TravelTime.Record(input.ID)
	if err != nil {
		return nil, toHumaError(err)
	}
	sel := h.svc.TravelTime.Normalize(ParseSelection(input.Select))
	tt := walk.Aggregate(rec.Times, sel)

	return &struct{ Body FeatureBody }{Body: FeatureBody{
		FeatureSummary: service.FeatureSummary{ID: rec.ID, Population: rec.Population, Times: rec.Times},
		TT:             tt,
		Color:          scheme.ClassifyFloat(tt),
		Info:           walk.Info(rec.Times, sel),
	}}, nil
}

func (h *APIHandler) Aggregate(ctx context.Context, input *AggregateInput) (*struct{ Body AggregateBody }, error) {
	sel := walk.NewSelection(input.Body.Select...)
	tt := walk.Aggregate(input.Body.Times, sel)

	known := false
	for _, d := range sel {
		if _, ok := input.Body.Times.Minutes(d); ok {
			known = true
			break
		}
	}
	return &struct{ Body AggregateBody }{Body: AggregateBody{TT: tt, NotApplicable: !known}}, nil
}

func (h *APIHandler) Recolor(ctx context.Context, input *struct{ Body SelectionRequest }) (*struct{ Body RecolorBody }, error) {
	scheme, schemeID, err := h.scheme(input.Body.Scheme)
	if err != nil {
		return nil, err
	}
	sel := h.selection(input.Body.Select)
	return &struct{ Body RecolorBody }{Body: RecolorBody{
		Scheme:    schemeID,
		Selection: sel,
		Features:  h.svc.TravelTime.Recolor(scheme, sel),
	}}, nil
}

func (h *APIHandler) Summary(ctx context.Context, input *struct{ Body SelectionRequest }) (*struct{ Body SummaryBody }, error) {
	scheme, schemeID, err := h.scheme(input.Body.Scheme)
	if err != nil {
		return nil, err
	}
	sel := h.selection(input.Body.Select)
	return &struct{ Body SummaryBody }{Body: SummaryBody{
		Scheme:    schemeID,
		Selection: sel,
		Buckets:   h.svc.TravelTime.Summary(scheme, sel),
	}}, nil
}

func (h *APIHandler) GetView(ctx context.Context, input *struct{}) (*struct{ Body ViewBody }, error) {
	view := h.svc.TravelTime.View(h.svc.Map.MinZoom, h.svc.Map.MaxZoom)
	return &struct{ Body ViewBody }{Body: ViewBody{View: view, TileLayers: h.svc.Map.TileLayers}}, nil
}

func (h *APIHandler) GetGeoJSON(ctx context.Context, input *GeoJSONInput) (*GeoJSONOutput, error) {
	scheme, _, err := h.scheme(input.Scheme)
	if err != nil {
		return nil, err
	}
	sel := h.svc.TravelTime.Normalize(ParseSelection(input.Select))
	data, err := h.svc.TravelTime.Collection(scheme, sel).MarshalJSON()
	if err != nil {
		return nil, huma.Error500InternalServerError("failed to encode payload", err)
	}
	return &GeoJSONOutput{ContentType: "application/geo+json", Body: data}, nil
}

func (h *APIHandler) GetSources(ctx context.Context, input *struct{}) (*struct{ Body []service.SourceFile }, error) {
	sources, err := h.svc.Source.List()
	if err != nil {
		return nil, huma.Error500InternalServerError("failed to list sources", err)
	}
	return &struct{ Body []service.SourceFile }{Body: sources}, nil
}

type LoadSourceInput struct {
	Name string `path:"name" doc:"Payload file name under sources/" example:"travel_times.geojson"`
}

type LoadSourceBody struct {
	Name         string `json:"name" doc:"Installed payload"`
	Features     int    `json:"features" doc:"Number of features"`
	Destinations int    `json:"destinations" doc:"Number of destination categories"`
}

// LoadSource installs another payload from the sources directory and mirrors
// it into DuckDB.
func (h *APIHandler) LoadSource(ctx context.Context, input *LoadSourceInput) (*struct{ Body LoadSourceBody }, error) {
	if !h.svc.Source.Has(input.Name) {
		return nil, huma.Error404NotFound("source not found: " + input.Name)
	}
	tt := h.svc.TravelTime
	if err := tt.Load(input.Name); err != nil {
		return nil, huma.Error400BadRequest("failed to load payload", err)
	}
	if h.svc.Store != nil {
		if err := h.svc.Store.Sync(ctx, tt.Records(), tt.DestinationNames()); err != nil {
			return nil, huma.Error500InternalServerError("failed to sync records", err)
		}
	}
	return &struct{ Body LoadSourceBody }{Body: LoadSourceBody{
		Name:         tt.Current(),
		Features:     len(tt.Records()),
		Destinations: len(tt.DestinationNames()),
	}}, nil
}

// scheme resolves a scheme ID, falling back to the default scheme.
func (h *APIHandler) scheme(id string) (*choropleth.Scheme, string, error) {
	if id == "" {
		id = h.svc.DefaultScheme
	}
	s, err := h.svc.Scheme.Scheme(id)
	if err != nil {
		return nil, id, toHumaError(err)
	}
	return s, id, nil
}

// selection normalises a requested selection; nil means the default.
func (h *APIHandler) selection(names []string) walk.Selection {
	if names == nil {
		return h.svc.TravelTime.DefaultSelection(h.svc.DefaultDestination)
	}
	return h.svc.TravelTime.Normalize(walk.NewSelection(names...))
}

// ParseSelection splits a comma-separated destination list.
func ParseSelection(raw string) walk.Selection {
	if strings.TrimSpace(raw) == "" {
		return walk.NewSelection()
	}
	return walk.NewSelection(strings.Split(raw, ",")...)
}

// toHumaError maps service errors to HTTP errors.
func toHumaError(err error) error {
	switch {
	case errors.Is(err, service.ErrNotFound):
		return huma.Error404NotFound(err.Error())
	case errors.Is(err, service.ErrExists):
		return huma.Error409Conflict(err.Error())
	case errors.Is(err, choropleth.ErrInvalidScheme):
		return huma.Error400BadRequest(err.Error())
	default:
		return huma.Error500InternalServerError("internal error", err)
	}
}
