// Package config loads application configuration from file and environment.
package config

import (
	"strings"

	"github.com/rotisserie/eris"
	"github.com/spf13/viper"
	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
)

// Config holds the full application configuration.
type Config struct {
	Catalog CatalogConfig `yaml:"catalog" mapstructure:"catalog"`
	Geocode GeocodeConfig `yaml:"geocode" mapstructure:"geocode"`
	Rank    RankConfig    `yaml:"rank" mapstructure:"rank"`
	Store   StoreConfig   `yaml:"store" mapstructure:"store"`
	Server  ServerConfig  `yaml:"server" mapstructure:"server"`
	Log     LogConfig     `yaml:"log" mapstructure:"log"`
}

// CatalogConfig configures catalogue ingestion.
type CatalogConfig struct {
	SheetURL    string `yaml:"sheet_url" mapstructure:"sheet_url"`
	UserAgent   string `yaml:"user_agent" mapstructure:"user_agent"`
	TimeoutSecs int    `yaml:"timeout_secs" mapstructure:"timeout_secs"`
}

// GeocodeConfig configures the resolution pipeline.
type GeocodeConfig struct {
	Endpoint        string `yaml:"endpoint" mapstructure:"endpoint"`
	UserAgent       string `yaml:"user_agent" mapstructure:"user_agent"`
	Country         string `yaml:"country" mapstructure:"country"`
	IntervalMS      int    `yaml:"interval_ms" mapstructure:"interval_ms"`
	TimeoutSecs     int    `yaml:"timeout_secs" mapstructure:"timeout_secs"`
	PersistEvery    int    `yaml:"persist_every" mapstructure:"persist_every"`
	LinkTimeoutSecs int    `yaml:"link_timeout_secs" mapstructure:"link_timeout_secs"`
	LinkConcurrency int    `yaml:"link_concurrency" mapstructure:"link_concurrency"`
}

// RankConfig holds the scoring policy. The defaults encode the original
// trade-off of one rating point per 5 km of travel; they are tunable
// configuration, not hidden constants.
type RankConfig struct {
	RatingWeight    float64 `yaml:"rating_weight" mapstructure:"rating_weight"`
	DistancePenalty float64 `yaml:"distance_penalty" mapstructure:"distance_penalty"`
	RadiusKm        float64 `yaml:"radius_km" mapstructure:"radius_km"`
	TopN            int     `yaml:"top_n" mapstructure:"top_n"`
	SparseThreshold int     `yaml:"sparse_threshold" mapstructure:"sparse_threshold"`
	SparseLimit     int     `yaml:"sparse_limit" mapstructure:"sparse_limit"`
}

// StoreConfig configures the geocode cache backend.
type StoreConfig struct {
	Driver      string `yaml:"driver" mapstructure:"driver"` // file, sqlite, postgres
	Path        string `yaml:"path" mapstructure:"path"`
	DatabaseURL string `yaml:"database_url" mapstructure:"database_url"`
}

// ServerConfig configures the JSON API server.
type ServerConfig struct {
	Port int `yaml:"port" mapstructure:"port"`
}

// LogConfig configures logging.
type LogConfig struct {
	Level  string `yaml:"level" mapstructure:"level"`
	Format string `yaml:"format" mapstructure:"format"`
}

// Load reads configuration from file and environment.
func Load() (*Config, error) {
	v := viper.New()

	// Config file
	v.SetConfigName("config")
	v.SetConfigType("yaml")
	v.AddConfigPath(".")

	// Environment
	v.SetEnvPrefix("KEBAB")
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	// Defaults
	v.SetDefault("catalog.sheet_url", "")
	v.SetDefault("catalog.user_agent", "kebabctl/1.0")
	v.SetDefault("catalog.timeout_secs", 30)
	v.SetDefault("geocode.endpoint", "https://nominatim.openstreetmap.org/search")
	v.SetDefault("geocode.user_agent", "kebabctl/1.0 (kebab shop directory)")
	v.SetDefault("geocode.country", "Australia")
	v.SetDefault("geocode.interval_ms", 1000)
	v.SetDefault("geocode.timeout_secs", 10)
	v.SetDefault("geocode.persist_every", 5)
	v.SetDefault("geocode.link_timeout_secs", 10)
	v.SetDefault("geocode.link_concurrency", 4)
	v.SetDefault("rank.rating_weight", 10.0)
	v.SetDefault("rank.distance_penalty", 2.0)
	v.SetDefault("rank.radius_km", 100.0)
	v.SetDefault("rank.top_n", 10)
	v.SetDefault("rank.sparse_threshold", 5)
	v.SetDefault("rank.sparse_limit", 5)
	v.SetDefault("store.driver", "file")
	v.SetDefault("store.path", "geocoded_shops.json")
	v.SetDefault("server.port", 8080)
	v.SetDefault("log.level", "info")
	v.SetDefault("log.format", "json")

	// Read config file (optional)
	if err := v.ReadInConfig(); err != nil {
		if _, ok := err.(viper.ConfigFileNotFoundError); !ok {
			return nil, eris.Wrap(err, "config: read file")
		}
	}

	var cfg Config
	if err := v.Unmarshal(&cfg); err != nil {
		return nil, eris.Wrap(err, "config: unmarshal")
	}

	return &cfg, nil
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
