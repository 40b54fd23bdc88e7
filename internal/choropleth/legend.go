package choropleth

import (
	"html"
	"strings"
)

// LegendEntry is a color swatch and its label.
type LegendEntry struct {
	Color string `json:"color" doc:"Swatch color (CSS)" example:"#0868ac"`
	Label string `json:"label" doc:"Legend label" example:"Under 5 min"`
}

// Legend returns one entry per bucket in input order.
func (s *Scheme) Legend() []LegendEntry {
	entries := make([]LegendEntry, len(s.buckets))
	for i, b := range s.buckets {
		entries[i] = LegendEntry{Color: b.Color, Label: b.Label}
	}
	return entries
}

// LegendHTML renders the legend as swatch + label lines separated by <br/>.
// There is no separator after the last entry.
func (s *Scheme) LegendHTML() string {
	var b strings.Builder
	for i, e := range s.Legend() {
		if i > 0 {
			b.WriteString("<br/>")
		}
		b.WriteString(`<b style="background:`)
		b.WriteString(html.EscapeString(e.Color))
		b.WriteString(`"></b> `)
		b.WriteString(html.EscapeString(e.Label))
	}
	return b.String()
}
