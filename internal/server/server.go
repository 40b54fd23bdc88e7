// Package server wires the walking map services, REST API and viewer into
// one HTTP handler.
package server

import (
	"context"
	"database/sql"
	"fmt"
	"net/http"
	"os"
	"path/filepath"

	"github.com/danielgtaylor/huma/v2"
	"github.com/danielgtaylor/huma/v2/adapters/humago"
	"github.com/rotisserie/eris"
	"go.uber.org/zap"

	"github.com/joeblew999/plat-walkmap/internal/api"
	"github.com/joeblew999/plat-walkmap/internal/api/viewer"
	"github.com/joeblew999/plat-walkmap/internal/choropleth"
	"github.com/joeblew999/plat-walkmap/internal/config"
	"github.com/joeblew999/plat-walkmap/internal/db"
	"github.com/joeblew999/plat-walkmap/internal/service"
	"github.com/joeblew999/plat-walkmap/internal/templates"
)

// Config holds the server configuration.
type Config struct {
	Host    string
	Port    string
	DataDir string
	WebDir  string // Path to web/ directory for static files and templates

	// App is the map configuration; nil means built-in defaults.
	App *config.Config

	// InMemoryDB opens a private in-memory DuckDB instead of the shared
	// on-disk database.
	InMemoryDB bool

	// Dev re-parses the HTML fragments before every render.
	Dev bool
}

// Server is the walking map HTTP server.
type Server struct {
	config   Config
	mux      *http.ServeMux
	humaAPI  huma.API
	db       *sql.DB
	services *api.Services
	bus      *service.EventBus
	renderer *templates.Renderer
	log      *zap.Logger
}

// New creates a server and loads the configured payload. A missing payload
// is logged and leaves the map empty.
func New(cfg Config) (*Server, error) {
	if cfg.App == nil {
		app, err := config.Load("")
		if err != nil {
			return nil, err
		}
		cfg.App = app
	}
	app := cfg.App
	log := zap.L().With(zap.String("component", "server"))

	mux := http.NewServeMux()

	humaConfig := huma.DefaultConfig("plat-walkmap API", "1.0.0")
	humaConfig.Info.Description = "Walking access map API: travel-time payloads, color schemes and recoloring."
	humaConfig.Servers = []*huma.Server{
		{URL: fmt.Sprintf("http://%s:%s", cfg.Host, cfg.Port), Description: "Local server"},
	}
	// Disable $schema property in responses (cleaner JSON)
	humaConfig.CreateHooks = []func(huma.Config) huma.Config{}
	humaConfig.Transformers = append(humaConfig.Transformers, api.LinkTransformer())

	humaAPI := humago.New(mux, humaConfig)

	bus := service.NewEventBus()

	schemes, err := service.NewSchemeService(cfg.DataDir, bus, SchemeFromConfig(app.Scheme))
	if err != nil {
		return nil, eris.Wrap(err, "server: schemes")
	}
	travelTimes, err := service.NewTravelTimeService(cfg.DataDir, app.Data.Fields(), app.Cache.Size, bus)
	if err != nil {
		return nil, eris.Wrap(err, "server: travel times")
	}
	if err := travelTimes.Load(app.Data.Payload); err != nil {
		log.Warn("no travel-time payload loaded", zap.String("payload", app.Data.Payload), zap.Error(err))
	}

	services := &api.Services{
		Scheme:             schemes,
		TravelTime:         travelTimes,
		Source:             service.NewSourceService(cfg.DataDir),
		DefaultScheme:      app.Scheme.ID,
		DefaultDestination: app.Data.DefaultDestination,
		Map:                app.Map,
	}

	s := &Server{
		config:   cfg,
		mux:      mux,
		humaAPI:  humaAPI,
		services: services,
		bus:      bus,
		log:      log,
	}

	// Initialize template renderer for viewer SSE handlers
	if cfg.WebDir != "" {
		fragmentsDir := filepath.Join(cfg.WebDir, "templates", "fragments")
		if r, err := templates.New(fragmentsDir); err == nil {
			s.renderer = r
			log.Info("loaded fragment templates", zap.String("dir", fragmentsDir))
		} else {
			log.Warn("viewer disabled", zap.Error(err))
		}
	}

	s.openDB()
	s.routes()
	return s, nil
}

// openDB connects DuckDB and mirrors the loaded records into it. The API
// works without a database; only /api/v1/tables and /api/v1/query need it.
func (s *Server) openDB() {
	var (
		conn *sql.DB
		err  error
	)
	if s.config.InMemoryDB {
		conn, err = db.Open(db.Config{})
	} else {
		conn, err = db.Get(db.Config{DataDir: s.config.DataDir, DBName: "walkmap"})
	}
	if err != nil {
		s.log.Warn("duckdb unavailable", zap.Error(err))
		return
	}
	s.db = conn
	s.services.Store = service.NewRecordStore(conn)

	tt := s.services.TravelTime
	if !tt.Loaded() {
		return
	}
	if err := s.services.Store.Sync(context.Background(), tt.Records(), tt.DestinationNames()); err != nil {
		s.log.Warn("duckdb sync failed", zap.Error(err))
	}
}

// SchemeFromConfig converts the configured default scheme.
func SchemeFromConfig(c config.SchemeConfig) service.SchemeConfig {
	return service.SchemeConfig{
		ID:      c.ID,
		Name:    c.Title,
		Title:   c.Title,
		Kind:    choropleth.KindNumeric,
		Limits:  c.Limits,
		Colors:  c.Colors,
		Labels:  c.Labels,
		NAColor: c.NAColor,
		NALabel: c.NALabel,
	}
}

// ServeHTTP implements http.Handler.
func (s *Server) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	s.mux.ServeHTTP(w, r)
}

// OpenAPI returns the generated OpenAPI document.
func (s *Server) OpenAPI() *huma.OpenAPI {
	return s.humaAPI.OpenAPI()
}

// Services exposes the wired services to commands that run without HTTP.
func (s *Server) Services() *api.Services {
	return s.services
}

// Close closes server resources.
func (s *Server) Close() error {
	if s.config.InMemoryDB && s.db != nil {
		return s.db.Close()
	}
	return db.Close()
}

func (s *Server) routes() {
	// Register Huma REST API routes (OpenAPI-documented JSON endpoints)
	api.RegisterRoutes(s.humaAPI, s.services)
	api.NewInfoHandler(s.config.DataDir, s.db != nil, s.services.TravelTime, s.services.Scheme).RegisterRoutes(s.humaAPI)
	api.NewDBHandler(s.db).RegisterRoutes(s.humaAPI)

	// Register viewer SSE routes using Huma + Datastar SDK
	if s.renderer != nil {
		viewer.NewHandler(s.services.Scheme, s.services.TravelTime, s.bus, s.renderer, viewer.Options{
			DefaultScheme:      s.services.DefaultScheme,
			DefaultDestination: s.services.DefaultDestination,
			ReloadTemplates:    s.config.Dev,
		}).RegisterRoutes(s.humaAPI)
	}

	// Static files
	if s.config.WebDir != "" {
		staticDir := filepath.Join(s.config.WebDir, "static")
		s.mux.Handle("/static/", http.StripPrefix("/static/", http.FileServer(http.Dir(staticDir))))
	}

	// Page routes
	s.mux.HandleFunc("/", s.handleRoot)
}

func (s *Server) handleRoot(w http.ResponseWriter, r *http.Request) {
	if r.URL.Path != "/" {
		http.NotFound(w, r)
		return
	}
	page := filepath.Join(s.config.WebDir, "templates", "map.html")
	if s.config.WebDir == "" {
		http.Error(w, "map page not configured", http.StatusNotFound)
		return
	}
	if _, err := os.Stat(page); err != nil {
		http.Error(w, "map page not found", http.StatusNotFound)
		return
	}
	http.ServeFile(w, r, page)
}
