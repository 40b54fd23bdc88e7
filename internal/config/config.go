// Package config loads the walking map configuration from walkmap.yaml and
// WALKMAP_* environment variables.
package config

import (
	"strings"

	"github.com/rotisserie/eris"
	"github.com/spf13/viper"
	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"

	"github.com/joeblew999/plat-walkmap/internal/choropleth"
	"github.com/joeblew999/plat-walkmap/internal/walk"
)

// Config holds the map configuration.
type Config struct {
	Scheme SchemeConfig `yaml:"scheme" mapstructure:"scheme"`
	Data   DataConfig   `yaml:"data" mapstructure:"data"`
	Map    MapConfig    `yaml:"map" mapstructure:"map"`
	Log    LogConfig    `yaml:"log" mapstructure:"log"`
	Cache  CacheConfig  `yaml:"cache" mapstructure:"cache"`
}

// SchemeConfig is the default travel-time color scheme.
type SchemeConfig struct {
	ID      string    `yaml:"id" mapstructure:"id"`
	Title   string    `yaml:"title" mapstructure:"title"`
	Limits  []float64 `yaml:"limits" mapstructure:"limits"`
	Colors  []string  `yaml:"colors" mapstructure:"colors"`
	Labels  []string  `yaml:"labels" mapstructure:"labels"`
	NAColor string    `yaml:"na_color" mapstructure:"na_color"`
	NALabel string    `yaml:"na_label" mapstructure:"na_label"`
}

// DataConfig describes the travel-time payload.
type DataConfig struct {
	Payload            string   `yaml:"payload" mapstructure:"payload"`
	IDField            string   `yaml:"id_field" mapstructure:"id_field"`
	PopulationField    string   `yaml:"population_field" mapstructure:"population_field"`
	SkipFields         []string `yaml:"skip_fields" mapstructure:"skip_fields"`
	DefaultDestination string   `yaml:"default_destination" mapstructure:"default_destination"`
}

// MapConfig holds viewer settings passed to the browser.
type MapConfig struct {
	MinZoom    int         `yaml:"min_zoom" mapstructure:"min_zoom"`
	MaxZoom    int         `yaml:"max_zoom" mapstructure:"max_zoom"`
	TileLayers []TileLayer `yaml:"tile_layers" mapstructure:"tile_layers"`
}

// TileLayer is a basemap tile layer drawn by the browser map.
type TileLayer struct {
	URL         string  `yaml:"url" mapstructure:"url" json:"url"`
	Subdomains  string  `yaml:"subdomains" mapstructure:"subdomains" json:"subdomains,omitempty"`
	MaxZoom     int     `yaml:"max_zoom" mapstructure:"max_zoom" json:"maxZoom,omitempty"`
	Opacity     float64 `yaml:"opacity" mapstructure:"opacity" json:"opacity,omitempty"`
	Pane        string  `yaml:"pane" mapstructure:"pane" json:"pane,omitempty"`
	ZIndex      int     `yaml:"z_index" mapstructure:"z_index" json:"zIndex,omitempty"`
	Attribution string  `yaml:"attribution" mapstructure:"attribution" json:"attribution,omitempty"`
}

// LogConfig configures the zap logger.
type LogConfig struct {
	Level  string `yaml:"level" mapstructure:"level"`
	Format string `yaml:"format" mapstructure:"format"`
}

// CacheConfig sizes the recolor cache.
type CacheConfig struct {
	Size int `yaml:"size" mapstructure:"size"`
}

const attribution = `&copy; <a href="https://www.openstreetmap.org/copyright">OSM</a> contributors` +
	` | Basemap &copy; <a href="https://carto.com/attributions">CARTO</a>` +
	` | Roads &copy; <a href="http://stamen.com">Stamen</a>` +
	` (<a href="http://creativecommons.org/licenses/by/3.0">CC BY 3.0</a>)`

// Load reads configuration from path (or ./walkmap.yaml when empty), layering
// WALKMAP_* environment variables on top of built-in defaults.
func Load(path string) (*Config, error) {
	v := viper.New()

	if path != "" {
		v.SetConfigFile(path)
	} else {
		v.SetConfigName("walkmap")
		v.SetConfigType("yaml")
		v.AddConfigPath(".")
	}

	v.SetEnvPrefix("WALKMAP")
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	setDefaults(v)

	if err := v.ReadInConfig(); err != nil {
		if _, ok := err.(viper.ConfigFileNotFoundError); !ok {
			return nil, eris.Wrap(err, "config: read file")
		}
	}

	var cfg Config
	if err := v.Unmarshal(&cfg); err != nil {
		return nil, eris.Wrap(err, "config: unmarshal")
	}

	if cfg.Map.MinZoom > cfg.Map.MaxZoom {
		return nil, eris.Errorf("config: map.min_zoom %d is above map.max_zoom %d", cfg.Map.MinZoom, cfg.Map.MaxZoom)
	}

	return &cfg, nil
}

func setDefaults(v *viper.Viper) {
	v.SetDefault("scheme.id", "travel_time")
	v.SetDefault("scheme.title", "Walking time")
	v.SetDefault("scheme.limits", []float64{0, 5, 10, 15, 20, 25, 30})
	v.SetDefault("scheme.colors", []string{
		"#0868ac", "#5aabac", "#abedab", "#fda668", "#dd643c", "#b8432e", "#999999",
	})
	v.SetDefault("scheme.labels", []string{
		"Under 5 min", "5 - 10 min", "10 - 15 min", "15 - 20 min", "20 - 25 min",
		"25 - 30 min", "Over 30 min",
	})
	v.SetDefault("scheme.na_color", choropleth.DefaultFallbackColor)
	v.SetDefault("scheme.na_label", choropleth.DefaultFallbackLabel)

	v.SetDefault("data.payload", "travel_times.geojson")
	v.SetDefault("data.id_field", walk.DefaultFields.ID)
	v.SetDefault("data.population_field", walk.DefaultFields.Population)
	v.SetDefault("data.skip_fields", walk.DefaultFields.Skip)
	v.SetDefault("data.default_destination", "supermarkets")

	v.SetDefault("map.min_zoom", 11)
	v.SetDefault("map.max_zoom", 16)
	v.SetDefault("map.tile_layers", []map[string]any{
		{
			"url":        "https://{s}.basemaps.cartocdn.com/light_nolabels/{z}/{x}/{y}{r}.png",
			"subdomains": "abcd", "max_zoom": 20, "pane": "tilePane",
		},
		{
			"url":        "https://stamen-tiles-{s}.a.ssl.fastly.net/toner-lines/{z}/{x}/{y}{r}.png",
			"subdomains": "abcd", "max_zoom": 15, "opacity": 0.3, "pane": "markerPane", "z_index": 1,
		},
		{
			"url":        "https://{s}.basemaps.cartocdn.com/light_only_labels/{z}/{x}/{y}{r}.png",
			"subdomains": "abcd", "max_zoom": 20, "pane": "markerPane", "z_index": 2,
			"attribution": attribution,
		},
	})

	v.SetDefault("log.level", "info")
	v.SetDefault("log.format", "json")
	v.SetDefault("cache.size", 64)
}

// Fields returns the payload field layout.
func (d DataConfig) Fields() walk.Fields {
	return walk.Fields{ID: d.IDField, Population: d.PopulationField, Skip: d.SkipFields}
}

// InitLogger initializes the global zap logger.
func InitLogger(cfg LogConfig) error {
	var zapCfg zap.Config
	if cfg.Format == "console" {
		zapCfg = zap.NewDevelopmentConfig()
	} else {
		zapCfg = zap.NewProductionConfig()
	}

	level, err := zapcore.ParseLevel(cfg.Level)
	if err != nil {
		return eris.Wrap(err, "config: parse log level")
	}
	zapCfg.Level.SetLevel(level)

	logger, err := zapCfg.Build()
	if err != nil {
		return eris.Wrap(err, "config: build logger")
	}
	zap.ReplaceGlobals(logger)

	return nil
}
