package api

import (
	"fmt"
	"strings"

	"github.com/danielgtaylor/huma/v2"

	"github.com/joeblew999/plat-walkmap/internal/humastar"
)

// links maps operation paths to their RFC 8288 Link header values.
// Enables restish hypermedia navigation via `restish links <url>`.
var links = map[string][]string{
	"/health": {
		`</api/v1/info>; rel="info"`,
		`</api/v1/schemes>; rel="schemes"`,
		`</api/v1/destinations>; rel="destinations"`,
		`</api/v1/sources>; rel="sources"`,
	},
	"/api/v1/info": {
		`</health>; rel="health"`,
		`</api/v1/schemes>; rel="schemes"`,
	},
	"/api/v1/schemes": {
		`</api/v1/destinations>; rel="destinations"`,
	},
	"/api/v1/schemes/{id}": {
		`</api/v1/schemes>; rel="collection"`,
	},
	"/api/v1/destinations": {
		`</api/v1/features>; rel="features"`,
		`</api/v1/recolor>; rel="recolor"`,
		`</api/v1/summary>; rel="summary"`,
	},
	"/api/v1/features/{id}": {
		`</api/v1/features>; rel="collection"`,
	},
	"/api/v1/sources": {
		`</api/v1/destinations>; rel="destinations"`,
		`</api/v1/tables>; rel="tables"`,
	},
	"/api/v1/tables": {
		`</api/v1/query>; rel="query"`,
	},
}

// LinkTransformer returns a Huma Transformer that injects RFC 8288 Link
// headers: static navigation links, a self link for item endpoints, the
// actions of [humastar.Actor] bodies and the pagination links of
// [humastar.Pager] bodies.
func LinkTransformer() huma.Transformer {
	return func(ctx huma.Context, status string, v any) (any, error) {
		op := ctx.Operation()
		if op == nil {
			return v, nil
		}

		for _, link := range links[op.Path] {
			ctx.AppendHeader("Link", link)
		}

		// Item endpoints get a self link
		if strings.Contains(op.Path, "{") {
			ctx.AppendHeader("Link", fmt.Sprintf(`<%s>; rel="self"`, ctx.URL().Path))
		}

		if actor, ok := v.(humastar.Actor); ok {
			for _, a := range actor.Actions() {
				ctx.AppendHeader("Link", a.LinkHeader())
			}
		}
		if pager, ok := v.(humastar.Pager); ok {
			for _, link := range pager.PaginationLinks(op.Path) {
				ctx.AppendHeader("Link", link)
			}
		}

		return v, nil
	}
}
