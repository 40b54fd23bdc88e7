package viewer

import (
	"context"

	"github.com/danielgtaylor/huma/v2"

	"github.com/joeblew999/plat-walkmap/internal/humastar"
	"github.com/joeblew999/plat-walkmap/internal/service"
)

// Events streams resource change events to the map page. Scheme edits
// redraw the legend; a payload reload redraws the destination list and asks
// the page to fetch geometry again.
func (h *Handler) Events(ctx context.Context, input *humastar.EmptyInput) (*huma.StreamResponse, error) {
	return h.Stream(func(sse humastar.SSE) {
		ch := h.bus.Subscribe()
		defer h.bus.Unsubscribe(ch)

		for {
			select {
			case <-ctx.Done():
				return
			case ev := <-ch:
				switch ev.Resource {
				case service.ResourceSchemes:
					if ev.ID == h.defaultScheme && ev.Action != service.ActionDeleted {
						if scheme, err := h.schemes.Scheme(ev.ID); err == nil {
							sse.Patch(h.renderLegend(ev.ID, scheme), "#legend")
						}
					}
				case service.ResourcePayload:
					h.patchDestinations(sse)
				}
				sse.DispatchCustomEvent("resource-changed", map[string]any{
					"resource": ev.Resource,
					"action":   ev.Action,
					"id":       ev.ID,
				})
			}
		}
	}), nil
}
