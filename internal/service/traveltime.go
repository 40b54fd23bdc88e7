package service

import (
	"bytes"
	"os"
	"path/filepath"
	"sort"
	"strconv"
	"sync"

	lru "github.com/hashicorp/golang-lru/v2"
	"github.com/paulmach/orb"
	"github.com/paulmach/orb/geojson"
	"github.com/paulmach/orb/maptile"
	"github.com/rotisserie/eris"
	"go.uber.org/zap"

	"github.com/joeblew999/plat-walkmap/internal/choropleth"
	"github.com/joeblew999/plat-walkmap/internal/walk"
)

// TravelTimeService serves the precomputed travel-time payload: destination
// lists, recoloring for a selection, info panel text and summaries.
type TravelTimeService struct {
	sourcesDir string
	fields     walk.Fields
	bus        *EventBus

	mu           sync.RWMutex
	path         string
	fc           *geojson.FeatureCollection
	records      []walk.Record
	index        map[string]int
	destinations []string
	generation   uint64

	cache *lru.Cache[recolorKey, []FeatureColor]
}

// recolorKey identifies a cached recolor. Schemes are immutable and replaced
// on update, so the pointer identifies a scheme version; generation
// identifies the installed payload.
type recolorKey struct {
	generation uint64
	scheme     *choropleth.Scheme
	selection  string
}

// NewTravelTimeService creates a service reading payloads from
// <dataDir>/sources. cacheSize bounds the number of memoised recolors.
func NewTravelTimeService(dataDir string, fields walk.Fields, cacheSize int, bus *EventBus) (*TravelTimeService, error) {
	if cacheSize <= 0 {
		cacheSize = 64
	}
	cache, err := lru.New[recolorKey, []FeatureColor](cacheSize)
	if err != nil {
		return nil, eris.Wrap(err, "traveltime: create cache")
	}
	return &TravelTimeService{
		sourcesDir: filepath.Join(dataDir, "sources"),
		fields:     fields,
		bus:        bus,
		index:      map[string]int{},
		cache:      cache,
	}, nil
}

// Load reads a GeoJSON payload. name is resolved against the sources
// directory unless it is absolute. A payload wrapped in a script assignment
// ("var travel_time = {...};") is accepted.
func (s *TravelTimeService) Load(name string) error {
	path := name
	if !filepath.IsAbs(path) {
		path = filepath.Join(s.sourcesDir, name)
	}

	data, err := os.ReadFile(path)
	if err != nil {
		return eris.Wrapf(err, "traveltime: read payload %s", name)
	}
	return s.load(path, data)
}

// LoadCollection installs an in-memory payload.
func (s *TravelTimeService) LoadCollection(fc *geojson.FeatureCollection) {
	s.install("", fc)
}

func (s *TravelTimeService) load(path string, data []byte) error {
	fc, err := geojson.UnmarshalFeatureCollection(trimScriptAssignment(data))
	if err != nil {
		return eris.Wrapf(err, "traveltime: parse payload %s", filepath.Base(path))
	}
	s.install(path, fc)
	return nil
}

func (s *TravelTimeService) install(path string, fc *geojson.FeatureCollection) {
	records := make([]walk.Record, 0, len(fc.Features))
	index := make(map[string]int, len(fc.Features))
	var destinations []string
	seen := map[string]bool{}

	for i, f := range fc.Features {
		rec := walk.RecordFromProperties(f.Properties, s.fields)
		if rec.ID == "" {
			rec.ID = featureID(f, i)
		}
		index[rec.ID] = i
		records = append(records, rec)

		// Destinations keep payload order; properties decode into a map, so
		// sort the newcomers of each feature for a stable order.
		var fresh []string
		for k := range f.Properties {
			if s.fields.IsDestination(k) && !seen[k] {
				seen[k] = true
				fresh = append(fresh, k)
			}
		}
		sort.Strings(fresh)
		destinations = append(destinations, fresh...)
	}

	s.mu.Lock()
	s.path = path
	s.fc = fc
	s.records = records
	s.index = index
	s.destinations = destinations
	s.generation++
	s.mu.Unlock()

	s.cache.Purge()

	zap.L().Info("travel-time payload loaded",
		zap.String("component", "service.traveltime"),
		zap.String("path", path),
		zap.Int("features", len(records)),
		zap.Strings("destinations", destinations),
	)
	if s.bus != nil {
		s.bus.Publish(Event{Resource: ResourcePayload, Action: ActionReloaded, ID: filepath.Base(path)})
	}
}

// Loaded reports whether a payload is installed.
func (s *TravelTimeService) Loaded() bool {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.fc != nil
}

// Current returns the file name of the installed payload, empty for
// in-memory payloads.
func (s *TravelTimeService) Current() string {
	s.mu.RLock()
	defer s.mu.RUnlock()
	if s.path == "" {
		return ""
	}
	return filepath.Base(s.path)
}

// Destinations returns the selectable destinations with display labels.
func (s *TravelTimeService) Destinations() []Destination {
	s.mu.RLock()
	defer s.mu.RUnlock()

	out := make([]Destination, len(s.destinations))
	for i, d := range s.destinations {
		out[i] = Destination{Name: d, Label: walk.FormatLabel(d)}
	}
	return out
}

// DestinationNames returns the destination property names in payload order.
func (s *TravelTimeService) DestinationNames() []string {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return append([]string(nil), s.destinations...)
}

// DefaultSelection selects preferred when the payload has it, otherwise the
// first destination.
func (s *TravelTimeService) DefaultSelection(preferred string) walk.Selection {
	s.mu.RLock()
	defer s.mu.RUnlock()

	for _, d := range s.destinations {
		if d == preferred {
			return walk.NewSelection(d)
		}
	}
	if len(s.destinations) > 0 {
		return walk.NewSelection(s.destinations[0])
	}
	return walk.NewSelection()
}

// Normalize restricts a selection to known destinations in payload order.
func (s *TravelTimeService) Normalize(sel walk.Selection) walk.Selection {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return sel.Within(s.destinations)
}

// Recolor computes the aggregated travel time and fill color of every feature.
func (s *TravelTimeService) Recolor(scheme *choropleth.Scheme, sel walk.Selection) []FeatureColor {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.recolorLocked(scheme, sel)
}

// recolorLocked requires s.mu held for reading.
func (s *TravelTimeService) recolorLocked(scheme *choropleth.Scheme, sel walk.Selection) []FeatureColor {
	key := recolorKey{generation: s.generation, scheme: scheme, selection: sel.Key()}
	if cached, ok := s.cache.Get(key); ok {
		return cached
	}

	out := make([]FeatureColor, len(s.records))
	for i, rec := range s.records {
		tt := walk.Aggregate(rec.Times, sel)
		out[i] = FeatureColor{ID: rec.ID, TT: tt, Color: scheme.ClassifyFloat(tt)}
	}
	s.cache.Add(key, out)
	return out
}

// Record returns the record for a feature ID.
func (s *TravelTimeService) Record(id string) (walk.Record, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	i, ok := s.index[id]
	if !ok {
		return walk.Record{}, eris.Wrapf(ErrNotFound, "feature %q", id)
	}
	return s.records[i], nil
}

// Info returns the info panel lines of one feature for a selection.
func (s *TravelTimeService) Info(id string, sel walk.Selection) ([]walk.InfoLine, error) {
	rec, err := s.Record(id)
	if err != nil {
		return nil, err
	}
	return walk.Info(rec.Times, sel), nil
}

// Page returns features in payload order.
func (s *TravelTimeService) Page(offset, limit int) ([]FeatureSummary, int) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	total := len(s.records)
	if offset < 0 {
		offset = 0
	}
	if offset > total {
		offset = total
	}
	end := offset + limit
	if limit <= 0 || end > total {
		end = total
	}

	out := make([]FeatureSummary, 0, end-offset)
	for _, rec := range s.records[offset:end] {
		out = append(out, FeatureSummary{ID: rec.ID, Population: rec.Population, Times: rec.Times})
	}
	return out, total
}

// Records returns a snapshot of all records.
func (s *TravelTimeService) Records() []walk.Record {
	s.mu.RLock()
	defer s.mu.RUnlock()

	out := make([]walk.Record, len(s.records))
	copy(out, s.records)
	return out
}

// Summary totals features and population per legend bucket, followed by the
// fallback bucket when any feature lands there.
func (s *TravelTimeService) Summary(scheme *choropleth.Scheme, sel walk.Selection) []BucketSummary {
	legend := scheme.Legend()
	buckets := make([]BucketSummary, len(legend)+1)
	for i, e := range legend {
		buckets[i] = BucketSummary{Label: e.Label, Color: e.Color}
	}
	fb := scheme.Fallback()
	buckets[len(legend)] = BucketSummary{Label: fb.Label, Color: fb.Color}

	s.mu.RLock()
	var total float64
	for _, rec := range s.records {
		i := scheme.Index(walk.Aggregate(rec.Times, sel))
		if i < 0 {
			i = len(legend)
		}
		buckets[i].Features++
		buckets[i].Population += rec.Population
		total += rec.Population
	}
	s.mu.RUnlock()

	if total > 0 {
		for i := range buckets {
			buckets[i].Share = buckets[i].Population / total
		}
	}
	if buckets[len(legend)].Features == 0 {
		buckets = buckets[:len(legend)]
	}
	return buckets
}

// View derives the initial viewport from the payload bounds: the deepest zoom
// in [minZoom, maxZoom] at which the bounds fit in a 4x3 tile window.
func (s *TravelTimeService) View(minZoom, maxZoom int) View {
	s.mu.RLock()
	defer s.mu.RUnlock()

	v := View{MinZoom: minZoom, MaxZoom: maxZoom, StartZoom: minZoom}
	if s.fc == nil || len(s.fc.Features) == 0 {
		return v
	}

	var bound orb.Bound
	first := true
	for _, f := range s.fc.Features {
		if f.Geometry == nil {
			continue
		}
		if first {
			bound = f.Geometry.Bound()
			first = false
			continue
		}
		bound = bound.Union(f.Geometry.Bound())
	}
	if first {
		return v
	}

	center := bound.Center()
	v.Center = [2]float64{center.Lat(), center.Lon()}
	v.Bounds = [2][2]float64{
		{bound.Min.Lat(), bound.Min.Lon()},
		{bound.Max.Lat(), bound.Max.Lon()},
	}
	v.StartZoom = fitZoom(bound, minZoom, maxZoom)
	return v
}

func fitZoom(b orb.Bound, minZoom, maxZoom int) int {
	for z := maxZoom; z > minZoom; z-- {
		nw := maptile.At(orb.Point{b.Min.Lon(), b.Max.Lat()}, maptile.Zoom(z))
		se := maptile.At(orb.Point{b.Max.Lon(), b.Min.Lat()}, maptile.Zoom(z))
		if se.X-nw.X < 4 && se.Y-nw.Y < 3 {
			return z
		}
	}
	return minZoom
}

// Collection returns a copy of the payload with the aggregated travel time
// ("tt") and fill color ("fill") written onto every feature. Feature IDs are
// set to the record IDs used by Recolor.
func (s *TravelTimeService) Collection(scheme *choropleth.Scheme, sel walk.Selection) *geojson.FeatureCollection {
	s.mu.RLock()
	defer s.mu.RUnlock()

	out := geojson.NewFeatureCollection()
	if s.fc == nil {
		return out
	}
	colors := s.recolorLocked(scheme, sel)
	for i, f := range s.fc.Features {
		clone := geojson.NewFeature(f.Geometry)
		for k, v := range f.Properties {
			clone.Properties[k] = v
		}
		clone.ID = colors[i].ID
		clone.Properties["tt"] = colors[i].TT
		clone.Properties["fill"] = colors[i].Color
		out.Append(clone)
	}
	return out
}

func featureID(f *geojson.Feature, i int) string {
	if f.ID != nil {
		if id, ok := f.ID.(string); ok && id != "" {
			return id
		}
		return walk.FormatID(f.ID)
	}
	return strconv.Itoa(i)
}

// trimScriptAssignment strips a leading "var name =" and a trailing ";" so
// payloads exported for script tags can be read directly.
func trimScriptAssignment(data []byte) []byte {
	data = bytes.TrimSpace(data)
	if len(data) == 0 || data[0] == '{' {
		return data
	}
	if i := bytes.IndexByte(data, '='); i >= 0 {
		data = bytes.TrimSpace(data[i+1:])
	}
	return bytes.TrimSuffix(data, []byte(";"))
}
