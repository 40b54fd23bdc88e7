// Package viewer contains the Datastar SSE handlers behind the map page.
package viewer

import (
	"context"
	"html/template"

	"github.com/danielgtaylor/huma/v2"
	"go.uber.org/zap"

	"github.com/joeblew999/plat-walkmap/internal/choropleth"
	"github.com/joeblew999/plat-walkmap/internal/humastar"
	"github.com/joeblew999/plat-walkmap/internal/service"
	"github.com/joeblew999/plat-walkmap/internal/templates"
	"github.com/joeblew999/plat-walkmap/internal/walk"
)

// RecolorEvent is the browser event carrying per-feature fill colors.
const RecolorEvent = "walkmap-recolor"

// Handler serves the map page fragments and recolor stream.
type Handler struct {
	humastar.Handler
	schemes     *service.SchemeService
	travelTimes *service.TravelTimeService
	bus         *service.EventBus

	defaultScheme      string
	defaultDestination string
	log                *zap.Logger
}

// Options configures the viewer defaults.
type Options struct {
	DefaultScheme      string
	DefaultDestination string
	ReloadTemplates    bool
}

func NewHandler(schemes *service.SchemeService, travelTimes *service.TravelTimeService,
	bus *service.EventBus, renderer *templates.Renderer, opts Options) *Handler {
	return &Handler{
		Handler:            humastar.Handler{Renderer: renderer, Reload: opts.ReloadTemplates},
		schemes:            schemes,
		travelTimes:        travelTimes,
		bus:                bus,
		defaultScheme:      opts.DefaultScheme,
		defaultDestination: opts.DefaultDestination,
		log:                zap.L().With(zap.String("component", "viewer")),
	}
}

func (h *Handler) RegisterRoutes(api huma.API) {
	huma.Get(api, "/api/v1/viewer/destinations", h.Destinations, huma.OperationTags("viewer"))
	huma.Post(api, "/api/v1/viewer/recolor", h.Recolor, huma.OperationTags("viewer"))
	huma.Post(api, "/api/v1/viewer/info", h.Info, huma.OperationTags("viewer"))
	huma.Get(api, "/api/v1/viewer/legend", h.Legend, huma.OperationTags("viewer"))
	huma.Get(api, "/api/v1/viewer/events", h.Events, huma.OperationTags("viewer"))
}

// Destinations renders the destination checkboxes and seeds the dest signals
// with the default selection.
func (h *Handler) Destinations(ctx context.Context, input *humastar.EmptyInput) (*huma.StreamResponse, error) {
	return h.Stream(func(sse humastar.SSE) {
		h.patchDestinations(sse)
	}), nil
}

func (h *Handler) patchDestinations(sse humastar.SSE) {
	sel := h.travelTimes.DefaultSelection(h.defaultDestination)
	sse.Patch(h.renderDestinations(sel), "#destinations")
	sse.Signals(map[string]any{"dest": destSignals(h.travelTimes.DestinationNames(), sel)})
	if scheme, err := h.schemes.Scheme(h.defaultScheme); err == nil {
		sse.Patch(h.Render("summary", h.travelTimes.Summary(scheme, sel)), "#summary")
	}
}

// Recolor recomputes every feature color for the checked destinations. The
// colors go to the map script as a custom event; the summary, legend and
// info panel are patched in place.
func (h *Handler) Recolor(ctx context.Context, input *humastar.SignalsInput) (*huma.StreamResponse, error) {
	signals, err := input.MustParse()
	if err != nil {
		return nil, err
	}
	state := parseState(signals)

	return h.Stream(func(sse humastar.SSE) {
		scheme, id, ok := h.scheme(sse, state.Scheme)
		if !ok {
			return
		}
		sel := h.travelTimes.Normalize(state.Selection)

		sse.DispatchCustomEvent(RecolorEvent, map[string]any{
			"scheme":    id,
			"selection": sel,
			"features":  h.travelTimes.Recolor(scheme, sel),
		})
		sse.Patch(h.renderLegend(id, scheme), "#legend")
		sse.Patch(h.Render("summary", h.travelTimes.Summary(scheme, sel)), "#summary")
		if state.Feature != "" {
			sse.Patch(h.renderInfo(state.Feature, sel), "#info")
		}
	}), nil
}

// Info renders the hover panel for the feature under the pointer.
func (h *Handler) Info(ctx context.Context, input *humastar.SignalsInput) (*huma.StreamResponse, error) {
	signals, err := input.MustParse()
	if err != nil {
		return nil, err
	}
	state := parseState(signals)

	return h.Stream(func(sse humastar.SSE) {
		sel := h.travelTimes.Normalize(state.Selection)
		sse.Patch(h.renderInfo(state.Feature, sel), "#info")
	}), nil
}

// LegendInput selects the scheme to draw.
type LegendInput struct {
	Scheme string `query:"scheme" doc:"Scheme ID (default scheme when empty)"`
}

func (h *Handler) Legend(ctx context.Context, input *LegendInput) (*huma.StreamResponse, error) {
	return h.Stream(func(sse humastar.SSE) {
		scheme, id, ok := h.scheme(sse, input.Scheme)
		if !ok {
			return
		}
		sse.Patch(h.renderLegend(id, scheme), "#legend")
	}), nil
}

// scheme resolves a scheme, reporting failures to the page.
func (h *Handler) scheme(sse humastar.SSE, id string) (*choropleth.Scheme, string, bool) {
	if id == "" {
		id = h.defaultScheme
	}
	scheme, err := h.schemes.Scheme(id)
	if err != nil {
		h.log.Warn("scheme lookup failed", zap.String("scheme", id), zap.Error(err))
		sse.Error("Unknown color scheme: " + id)
		return nil, id, false
	}
	return scheme, id, true
}

// Fragment data

type DestinationItem struct {
	Name    string
	Label   string
	Checked bool
}

// LegendData carries the scheme's own legend markup so the panel matches
// the REST legend exactly.
type LegendData struct {
	Title    string
	Swatches template.HTML
	Fallback choropleth.LegendEntry
}

type InfoData struct {
	ID       string
	Lines    []walk.InfoLine
	Selected bool
}

func (h *Handler) renderDestinations(sel walk.Selection) string {
	dests := h.travelTimes.Destinations()
	if len(dests) == 0 {
		return h.Render("empty-state", map[string]string{
			"Title": "No travel times loaded", "Message": "Add a payload under sources/ and restart",
		})
	}
	items := make([]DestinationItem, len(dests))
	for i, d := range dests {
		items[i] = DestinationItem{Name: d.Name, Label: d.Label, Checked: contains(sel, d.Name)}
	}
	return h.Render("destinations", items)
}

func (h *Handler) renderLegend(id string, scheme *choropleth.Scheme) string {
	title := id
	if cfg, ok := h.schemes.Get(id); ok && cfg.Title != "" {
		title = cfg.Title
	}
	return h.Render("legend", LegendData{
		Title:    title,
		Swatches: template.HTML(scheme.LegendHTML()),
		Fallback: scheme.Fallback(),
	})
}

func (h *Handler) renderInfo(id string, sel walk.Selection) string {
	data := InfoData{ID: id, Selected: !sel.Empty()}
	if id != "" {
		if lines, err := h.travelTimes.Info(id, sel); err == nil {
			data.Lines = lines
		}
	}
	return h.Render("info", data)
}

func contains(sel walk.Selection, name string) bool {
	for _, s := range sel {
		if s == name {
			return true
		}
	}
	return false
}
