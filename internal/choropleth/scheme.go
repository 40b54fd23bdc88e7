// Package choropleth maps data values to display colors and legend entries.
//
// A Scheme is either numeric (ascending breakpoints) or categorical (exact
// key match). Both variants share one Classify operation that dispatches on
// the scheme kind.
package choropleth

import (
	"encoding/json"
	"math"
	"reflect"
	"strconv"

	"github.com/lucasb-eyer/go-colorful"
	"github.com/rotisserie/eris"
)

// Kind tags the scheme variant.
type Kind string

const (
	KindNumeric     Kind = "numeric"
	KindCategorical Kind = "categorical"
)

// Default fallback used for values that match no bucket.
const (
	DefaultFallbackColor = "#888"
	DefaultFallbackLabel = "No data"
)

// ErrInvalidScheme is returned when a scheme definition is malformed.
var ErrInvalidScheme = eris.New("invalid color scheme")

// Bucket is one breakpoint or category with its color and legend label.
type Bucket struct {
	Threshold float64
	Category  string
	Color     string
	Label     string
}

// Scheme classifies values into colors. It is immutable after construction
// and safe for concurrent use.
type Scheme struct {
	kind     Kind
	buckets  []Bucket
	fallback LegendEntry
}

// Option customises a scheme at construction time.
type Option func(*Scheme)

// WithFallback sets the color and label used for unmatched values.
// Empty arguments keep the defaults.
func WithFallback(color, label string) Option {
	return func(s *Scheme) {
		if color != "" {
			s.fallback.Color = color
		}
		if label != "" {
			s.fallback.Label = label
		}
	}
}

// NewNumeric builds a breakpoint scheme. limits must be strictly ascending and
// limits, colors and labels must all have the same length.
func NewNumeric(limits []float64, colors, labels []string, opts ...Option) (*Scheme, error) {
	if len(limits) == 0 {
		return nil, eris.Wrap(ErrInvalidScheme, "numeric scheme has no limits")
	}
	if len(limits) != len(colors) || len(limits) != len(labels) {
		return nil, eris.Wrapf(ErrInvalidScheme,
			"numeric scheme: %d limits, %d colors, %d labels", len(limits), len(colors), len(labels))
	}

	s := newScheme(KindNumeric, opts)
	for i, limit := range limits {
		if math.IsNaN(limit) {
			return nil, eris.Wrapf(ErrInvalidScheme, "numeric scheme: limit %d is NaN", i)
		}
		if i > 0 && limit <= limits[i-1] {
			return nil, eris.Wrapf(ErrInvalidScheme,
				"numeric scheme: limits must strictly increase (%v after %v)", limit, limits[i-1])
		}
		s.buckets = append(s.buckets, Bucket{Threshold: limit, Color: colors[i], Label: labels[i]})
	}
	if err := s.validateColors(); err != nil {
		return nil, err
	}
	return s, nil
}

// NewCategorical builds an exact-match scheme. Category keys must be unique.
func NewCategorical(categories, colors, labels []string, opts ...Option) (*Scheme, error) {
	if len(categories) == 0 {
		return nil, eris.Wrap(ErrInvalidScheme, "categorical scheme has no categories")
	}
	if len(categories) != len(colors) || len(categories) != len(labels) {
		return nil, eris.Wrapf(ErrInvalidScheme,
			"categorical scheme: %d categories, %d colors, %d labels", len(categories), len(colors), len(labels))
	}

	s := newScheme(KindCategorical, opts)
	seen := make(map[string]struct{}, len(categories))
	for i, cat := range categories {
		if _, dup := seen[cat]; dup {
			return nil, eris.Wrapf(ErrInvalidScheme, "categorical scheme: duplicate category %q", cat)
		}
		seen[cat] = struct{}{}
		s.buckets = append(s.buckets, Bucket{Category: cat, Color: colors[i], Label: labels[i]})
	}
	if err := s.validateColors(); err != nil {
		return nil, err
	}
	return s, nil
}

func newScheme(kind Kind, opts []Option) *Scheme {
	s := &Scheme{
		kind:     kind,
		fallback: LegendEntry{Color: DefaultFallbackColor, Label: DefaultFallbackLabel},
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

func (s *Scheme) validateColors() error {
	for _, b := range s.buckets {
		if _, err := colorful.Hex(b.Color); err != nil {
			return eris.Wrapf(ErrInvalidScheme, "bucket %q: color %q is not a hex color", b.Label, b.Color)
		}
	}
	if _, err := colorful.Hex(s.fallback.Color); err != nil {
		return eris.Wrapf(ErrInvalidScheme, "fallback color %q is not a hex color", s.fallback.Color)
	}
	return nil
}

// Kind returns the scheme variant.
func (s *Scheme) Kind() Kind { return s.kind }

// Buckets returns a copy of the scheme's buckets in input order.
func (s *Scheme) Buckets() []Bucket {
	out := make([]Bucket, len(s.buckets))
	copy(out, s.buckets)
	return out
}

// Fallback returns the color and label for unmatched values.
func (s *Scheme) Fallback() LegendEntry { return s.fallback }

// Classify returns the color for value. Values that match no bucket, including
// nil and non-numeric input to a numeric scheme, get the fallback color.
func (s *Scheme) Classify(value any) string {
	if i := s.Index(value); i >= 0 {
		return s.buckets[i].Color
	}
	return s.fallback.Color
}

// ClassifyFloat is Classify for numeric values.
func (s *Scheme) ClassifyFloat(v float64) string {
	if s.kind != KindNumeric {
		return s.Classify(v)
	}
	if i := s.numericIndex(v); i >= 0 {
		return s.buckets[i].Color
	}
	return s.fallback.Color
}

// Index returns the bucket index for value, or -1 for the fallback.
func (s *Scheme) Index(value any) int {
	switch s.kind {
	case KindNumeric:
		v, ok := toFloat(value)
		if !ok {
			return -1
		}
		return s.numericIndex(v)
	case KindCategorical:
		key, ok := toKey(value)
		if !ok {
			return -1
		}
		for i, b := range s.buckets {
			if b.Category == key {
				return i
			}
		}
	}
	return -1
}

// numericIndex finds the last bucket whose threshold is <= v.
func (s *Scheme) numericIndex(v float64) int {
	if math.IsNaN(v) {
		return -1
	}
	idx := -1
	for i, b := range s.buckets {
		if v >= b.Threshold {
			idx = i
		}
	}
	return idx
}

// LabelFor returns the legend label of the bucket value falls into.
func (s *Scheme) LabelFor(value any) string {
	if i := s.Index(value); i >= 0 {
		return s.buckets[i].Label
	}
	return s.fallback.Label
}

func toFloat(value any) (float64, bool) {
	switch v := value.(type) {
	case float64:
		return v, true
	case float32:
		return float64(v), true
	case int:
		return float64(v), true
	case int32:
		return float64(v), true
	case int64:
		return float64(v), true
	case uint:
		return float64(v), true
	case uint32:
		return float64(v), true
	case uint64:
		return float64(v), true
	case json.Number:
		f, err := v.Float64()
		return f, err == nil
	case *float64:
		if v == nil {
			return 0, false
		}
		return *v, true
	case nil, string, bool:
		return 0, false
	}
	rv := reflect.ValueOf(value)
	switch {
	case rv.CanInt():
		return float64(rv.Int()), true
	case rv.CanUint():
		return float64(rv.Uint()), true
	case rv.CanFloat():
		return rv.Float(), true
	}
	return 0, false
}

func toKey(value any) (string, bool) {
	switch v := value.(type) {
	case nil:
		return "", false
	case string:
		return v, true
	case bool:
		return strconv.FormatBool(v), true
	}
	if f, ok := toFloat(value); ok {
		return strconv.FormatFloat(f, 'f', -1, 64), true
	}
	return "", false
}
