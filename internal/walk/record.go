package walk

import (
	"encoding/json"
	"fmt"
	"math"
	"slices"
	"strconv"
)

// Record is one map feature's travel-time data.
type Record struct {
	ID         string
	Population float64
	Times      Times
}

// Fields names the identifier and non-destination properties of a payload.
type Fields struct {
	ID         string
	Population string
	Skip       []string
}

// DefaultFields matches the census-tract payload: GEOID and population are
// attributes, every other property is a destination.
var DefaultFields = Fields{
	ID:         "GEOID",
	Population: "population",
	Skip:       []string{"GEOID", "population"},
}

// IsDestination reports whether a property name holds a travel time. The
// derived "tt" and "fill" properties written by rendering never are.
func (f Fields) IsDestination(name string) bool {
	return name != "tt" && name != "fill" && name != f.ID && name != f.Population && !slices.Contains(f.Skip, name)
}

// RecordFromProperties extracts a Record from feature properties. Destination
// values that are null or not numeric are left out of Times.
func RecordFromProperties(props map[string]any, f Fields) Record {
	rec := Record{Times: make(Times)}
	if id, ok := props[f.ID]; ok && id != nil {
		rec.ID = FormatID(id)
	}
	if pop, ok := number(props[f.Population]); ok {
		rec.Population = pop
	}
	for k, v := range props {
		if !f.IsDestination(k) {
			continue
		}
		if n, ok := number(v); ok {
			rec.Times[k] = n
		}
	}
	return rec
}

// FormatID renders a feature identifier as text. Numeric identifiers keep
// every digit, so an 11-digit GEOID decoded as float64 is not written in
// exponent form.
func FormatID(id any) string {
	switch v := id.(type) {
	case string:
		return v
	case json.Number:
		return v.String()
	case float64:
		return strconv.FormatFloat(v, 'f', -1, 64)
	case float32:
		return strconv.FormatFloat(float64(v), 'f', -1, 32)
	}
	return fmt.Sprint(id)
}

func number(v any) (float64, bool) {
	var f float64
	switch n := v.(type) {
	case float64:
		f = n
	case int:
		f = float64(n)
	case int64:
		f = float64(n)
	case json.Number:
		var err error
		if f, err = n.Float64(); err != nil {
			return 0, false
		}
	case string:
		var err error
		if f, err = strconv.ParseFloat(n, 64); err != nil {
			return 0, false
		}
	default:
		return 0, false
	}
	if math.IsNaN(f) {
		return 0, false
	}
	return f, true
}
