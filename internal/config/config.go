package config

import (
	"fmt"
	"strings"

	"github.com/rotisserie/eris"
	"github.com/spf13/viper"
	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"

	"github.com/sells-group/hazard-cli/internal/filters"
)

// Config holds the full application configuration.
type Config struct {
	Calculation CalculationConfig `yaml:"calculation" mapstructure:"calculation"`
	Store       StoreConfig       `yaml:"store" mapstructure:"store"`
	Log         LogConfig         `yaml:"log" mapstructure:"log"`
	Metrics     MetricsConfig     `yaml:"metrics" mapstructure:"metrics"`
}

// CalculationConfig tunes source filtering and block processing.
type CalculationConfig struct {
	Prefilter      string `yaml:"prefilter" mapstructure:"prefilter"`
	DistanceMetric string `yaml:"distance_metric" mapstructure:"distance_metric"`
	Workers        int    `yaml:"workers" mapstructure:"workers"`
	BlockSize      int    `yaml:"block_size" mapstructure:"block_size"`
}

// StoreConfig configures the result database.
type StoreConfig struct {
	Driver      string `yaml:"driver" mapstructure:"driver"`
	DatabaseURL string `yaml:"database_url" mapstructure:"database_url"`
	MaxConns    int32  `yaml:"max_conns" mapstructure:"max_conns"`
	MinConns    int32  `yaml:"min_conns" mapstructure:"min_conns"`
}

// LogConfig configures logging.
type LogConfig struct {
	Level  string `yaml:"level" mapstructure:"level"`
	Format string `yaml:"format" mapstructure:"format"`
}

// MetricsConfig toggles the prometheus stage metrics.
type MetricsConfig struct {
	Enabled bool `yaml:"enabled" mapstructure:"enabled"`
}

// Load reads configuration from file and environment.
func Load() (*Config, error) {
	v := viper.New()

	// Config file
	v.SetConfigName("config")
	v.SetConfigType("yaml")
	v.AddConfigPath(".")

	// Environment
	v.SetEnvPrefix("HAZARD")
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	// Defaults
	v.SetDefault("calculation.prefilter", "index")
	v.SetDefault("calculation.distance_metric", "rjb")
	v.SetDefault("calculation.workers", 4)
	v.SetDefault("calculation.block_size", 100)
	v.SetDefault("store.driver", "sqlite")
	v.SetDefault("store.database_url", "hazard.db")
	v.SetDefault("log.level", "info")
	v.SetDefault("log.format", "json")
	v.SetDefault("metrics.enabled", true)

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

// Validate checks the settings a command needs. Known modes are filter,
// curves and check; curves with saving enabled is "save".
func (c *Config) Validate(mode string) error {
	var errs []string

	switch mode {
	case "filter", "curves", "check":
	case "save":
		switch c.Store.Driver {
		case "sqlite", "postgres":
		default:
			errs = append(errs, fmt.Sprintf("store.driver must be sqlite or postgres, got %q", c.Store.Driver))
		}
		if c.Store.DatabaseURL == "" {
			errs = append(errs, "store.database_url is required")
		}
	default:
		return eris.Errorf("config: unknown mode %q", mode)
	}

	if _, err := filters.ParsePrefilter(c.Calculation.Prefilter); err != nil {
		errs = append(errs, fmt.Sprintf("calculation.prefilter: %v", err))
	}
	if _, err := filters.ParseDistanceMetric(c.Calculation.DistanceMetric); err != nil {
		errs = append(errs, fmt.Sprintf("calculation.distance_metric: %v", err))
	}
	if c.Calculation.Workers < 1 || c.Calculation.Workers > 64 {
		errs = append(errs, "calculation.workers must be between 1 and 64")
	}
	if c.Calculation.BlockSize < 1 {
		errs = append(errs, "calculation.block_size must be > 0")
	}

	if len(errs) > 0 {
		return eris.Errorf("config: %s", strings.Join(errs, "; "))
	}
	return nil
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
