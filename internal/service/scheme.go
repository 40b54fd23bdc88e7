package service

import (
	"encoding/json"
	"os"
	"path/filepath"
	"sort"
	"strings"
	"sync"

	"github.com/rotisserie/eris"
	"go.uber.org/zap"

	"github.com/joeblew999/plat-walkmap/internal/choropleth"
)

// ErrNotFound is returned when a scheme or feature does not exist.
var ErrNotFound = eris.New("not found")

// ErrExists is returned when creating a scheme whose ID is taken.
var ErrExists = eris.New("already exists")

type storedScheme struct {
	config SchemeConfig
	scheme *choropleth.Scheme
}

// SchemeService manages color scheme definitions.
type SchemeService struct {
	dataDir string
	schemes map[string]storedScheme
	bus     *EventBus
	mu      sync.RWMutex
}

// NewSchemeService loads stored schemes from dataDir and seeds the given
// defaults for any ID that is not stored yet.
func NewSchemeService(dataDir string, bus *EventBus, defaults ...SchemeConfig) (*SchemeService, error) {
	s := &SchemeService{
		dataDir: dataDir,
		schemes: make(map[string]storedScheme),
		bus:     bus,
	}
	s.loadFromDisk()

	for _, d := range defaults {
		if d.ID == "" {
			d.ID = generateID(d.Name)
		}
		if _, ok := s.schemes[d.ID]; ok {
			continue
		}
		built, err := d.Build()
		if err != nil {
			return nil, eris.Wrapf(err, "scheme: default %q", d.ID)
		}
		s.schemes[d.ID] = storedScheme{config: d, scheme: built}
	}
	return s, nil
}

// List returns all scheme configurations.
func (s *SchemeService) List() map[string]SchemeConfig {
	s.mu.RLock()
	defer s.mu.RUnlock()

	result := make(map[string]SchemeConfig, len(s.schemes))
	for k, v := range s.schemes {
		result[k] = v.config
	}
	return result
}

// IDs returns the scheme IDs in sorted order.
func (s *SchemeService) IDs() []string {
	s.mu.RLock()
	defer s.mu.RUnlock()

	ids := make([]string, 0, len(s.schemes))
	for id := range s.schemes {
		ids = append(ids, id)
	}
	sort.Strings(ids)
	return ids
}

// Get returns a scheme configuration by ID.
func (s *SchemeService) Get(id string) (SchemeConfig, bool) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	st, ok := s.schemes[id]
	return st.config, ok
}

// Scheme returns the built scheme for an ID.
func (s *SchemeService) Scheme(id string) (*choropleth.Scheme, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	st, ok := s.schemes[id]
	if !ok {
		return nil, eris.Wrapf(ErrNotFound, "scheme %q", id)
	}
	return st.scheme, nil
}

// Create validates and stores a new scheme.
func (s *SchemeService) Create(cfg SchemeConfig) (SchemeConfig, error) {
	built, err := cfg.Build()
	if err != nil {
		return SchemeConfig{}, err
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	if cfg.ID == "" {
		cfg.ID = generateID(cfg.Name)
	}
	if cfg.ID == "" {
		return SchemeConfig{}, eris.Wrapf(choropleth.ErrInvalidScheme, "scheme name %q yields an empty ID", cfg.Name)
	}
	if _, exists := s.schemes[cfg.ID]; exists {
		return SchemeConfig{}, eris.Wrapf(ErrExists, "scheme %q", cfg.ID)
	}

	s.schemes[cfg.ID] = storedScheme{config: cfg, scheme: built}
	if err := s.saveToDisk(); err != nil {
		delete(s.schemes, cfg.ID)
		return SchemeConfig{}, err
	}

	s.publish(ActionCreated, cfg.ID)
	return cfg, nil
}

// Update replaces a scheme by ID.
func (s *SchemeService) Update(id string, cfg SchemeConfig) (SchemeConfig, error) {
	built, err := cfg.Build()
	if err != nil {
		return SchemeConfig{}, err
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	prev, exists := s.schemes[id]
	if !exists {
		return SchemeConfig{}, eris.Wrapf(ErrNotFound, "scheme %q", id)
	}

	cfg.ID = id
	s.schemes[id] = storedScheme{config: cfg, scheme: built}
	if err := s.saveToDisk(); err != nil {
		s.schemes[id] = prev
		return SchemeConfig{}, err
	}

	s.publish(ActionUpdated, id)
	return cfg, nil
}

// Delete removes a scheme by ID.
func (s *SchemeService) Delete(id string) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	prev, exists := s.schemes[id]
	if !exists {
		return eris.Wrapf(ErrNotFound, "scheme %q", id)
	}

	delete(s.schemes, id)
	if err := s.saveToDisk(); err != nil {
		s.schemes[id] = prev
		return err
	}

	s.publish(ActionDeleted, id)
	return nil
}

func (s *SchemeService) publish(action, id string) {
	if s.bus != nil {
		s.bus.Publish(Event{Resource: ResourceSchemes, Action: action, ID: id})
	}
}

// configFile returns the path to the schemes file.
func (s *SchemeService) configFile() string {
	return filepath.Join(s.dataDir, "schemes.json")
}

// loadFromDisk loads scheme definitions from disk. Invalid entries are
// logged and skipped.
func (s *SchemeService) loadFromDisk() {
	log := zap.L().With(zap.String("component", "service.scheme"))

	data, err := os.ReadFile(s.configFile())
	if err != nil {
		return // File doesn't exist yet, start empty
	}

	var configs map[string]SchemeConfig
	if err := json.Unmarshal(data, &configs); err != nil {
		log.Warn("ignoring unreadable schemes file", zap.String("path", s.configFile()), zap.Error(err))
		return
	}

	for id, cfg := range configs {
		cfg.ID = id
		built, err := cfg.Build()
		if err != nil {
			log.Warn("skipping invalid stored scheme", zap.String("id", id), zap.Error(err))
			continue
		}
		s.schemes[id] = storedScheme{config: cfg, scheme: built}
	}
}

// saveToDisk persists scheme definitions to disk.
func (s *SchemeService) saveToDisk() error {
	if err := os.MkdirAll(s.dataDir, 0755); err != nil {
		return eris.Wrap(err, "scheme: create data dir")
	}

	configs := make(map[string]SchemeConfig, len(s.schemes))
	for id, st := range s.schemes {
		configs[id] = st.config
	}

	data, err := json.MarshalIndent(configs, "", "  ")
	if err != nil {
		return eris.Wrap(err, "scheme: encode")
	}

	if err := os.WriteFile(s.configFile(), data, 0644); err != nil {
		return eris.Wrap(err, "scheme: write file")
	}
	return nil
}

// generateID creates a URL-safe ID from a name.
func generateID(name string) string {
	id := strings.ToLower(name)
	id = strings.ReplaceAll(id, " ", "_")
	var result strings.Builder
	for _, r := range id {
		if (r >= 'a' && r <= 'z') || (r >= '0' && r <= '9') || r == '_' {
			result.WriteRune(r)
		}
	}
	return result.String()
}
