package walk

import (
	"fmt"
	"math"
	"strings"
	"unicode"
	"unicode/utf8"
)

// FormatLabel turns a destination field name into a display label:
// underscores become spaces and the first character is uppercased.
func FormatLabel(raw string) string {
	s := strings.ReplaceAll(raw, "_", " ")
	r, size := utf8.DecodeRuneInString(s)
	if r == utf8.RuneError {
		return s
	}
	return string(unicode.ToUpper(r)) + s[size:]
}

// FormatMinutes renders a travel time for the info panel.
func FormatMinutes(minutes float64, known bool) string {
	switch {
	case !known || math.IsNaN(minutes):
		return "No data"
	case minutes < 5:
		return "<5 min."
	case minutes > 30:
		return ">30 min."
	default:
		return fmt.Sprintf("%d min.", int(math.Round(minutes)))
	}
}

// InfoLine is one destination row in the hover info panel.
type InfoLine struct {
	Destination string `json:"destination" doc:"Destination field name" example:"supermarkets"`
	Label       string `json:"label" doc:"Display label" example:"Supermarkets"`
	Minutes     string `json:"minutes" doc:"Formatted travel time" example:"12 min."`
}

// String renders the line as "Label: N min.".
func (l InfoLine) String() string {
	return l.Label + ": " + l.Minutes
}

// Info builds the info panel lines for a record, one per selected destination.
func Info(times Times, selected Selection) []InfoLine {
	lines := make([]InfoLine, 0, len(selected))
	for _, d := range selected {
		v, ok := times.Minutes(d)
		lines = append(lines, InfoLine{
			Destination: d,
			Label:       FormatLabel(d),
			Minutes:     FormatMinutes(v, ok),
		})
	}
	return lines
}
