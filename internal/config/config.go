package config

import (
	"strings"

	"github.com/joho/godotenv"
	"github.com/rotisserie/eris"
	"github.com/spf13/viper"
	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
)

// Config holds the full application configuration.
type Config struct {
	Store  StoreConfig  `yaml:"store" mapstructure:"store"`
	Server ServerConfig `yaml:"server" mapstructure:"server"`
	Log    LogConfig    `yaml:"log" mapstructure:"log"`
	Import ImportConfig `yaml:"import" mapstructure:"import"`
	Retry  RetryConfig  `yaml:"retry" mapstructure:"retry"`
}

// StoreConfig configures the catalog backend.
type StoreConfig struct {
	Driver      string `yaml:"driver" mapstructure:"driver"`
	DatabaseURL string `yaml:"database_url" mapstructure:"database_url"`
	MaxConns    int32  `yaml:"max_conns" mapstructure:"max_conns"`
	MinConns    int32  `yaml:"min_conns" mapstructure:"min_conns"`
}

// ServerConfig configures the HTTP API.
type ServerConfig struct {
	Port             int      `yaml:"port" mapstructure:"port"`
	Debug            bool     `yaml:"debug" mapstructure:"debug"`
	ImportsPerSecond float64  `yaml:"imports_per_second" mapstructure:"imports_per_second"`
	Burst            int      `yaml:"burst" mapstructure:"burst"`
	CORSOrigins      []string `yaml:"cors_origins" mapstructure:"cors_origins"`
	MaxUploadMB      int      `yaml:"max_upload_mb" mapstructure:"max_upload_mb"`
}

// LogConfig configures logging.
type LogConfig struct {
	Level  string `yaml:"level" mapstructure:"level"`
	Format string `yaml:"format" mapstructure:"format"`
}

// ImportConfig holds the limits and defaults of the import pipeline.
type ImportConfig struct {
	MaxRows                  int     `yaml:"max_rows" mapstructure:"max_rows"`
	ProgressCeilingUpload    float64 `yaml:"progress_ceiling_upload" mapstructure:"progress_ceiling_upload"`
	ProgressCeilingPreParsed float64 `yaml:"progress_ceiling_preparsed" mapstructure:"progress_ceiling_preparsed"`
	HistoryThreshold         float64 `yaml:"history_threshold" mapstructure:"history_threshold"`
	HeaderScanRows           int     `yaml:"header_scan_rows" mapstructure:"header_scan_rows"`
	DefaultTenant            string  `yaml:"default_tenant" mapstructure:"default_tenant"`
	DictionaryPath           string  `yaml:"dictionary_path" mapstructure:"dictionary_path"`
	DateFallback             string  `yaml:"date_fallback" mapstructure:"date_fallback"`
}

// RetryConfig configures retries of transient store failures.
type RetryConfig struct {
	MaxAttempts      int `yaml:"max_attempts" mapstructure:"max_attempts"`
	InitialBackoffMs int `yaml:"initial_backoff_ms" mapstructure:"initial_backoff_ms"`
}

// Load reads configuration from .env, config.yaml and the environment,
// in increasing order of precedence.
func Load() (*Config, error) {
	// A missing .env is fine; variables already set are never overwritten.
	_ = godotenv.Load()

	v := viper.New()

	// Config file
	v.SetConfigName("config")
	v.SetConfigType("yaml")
	v.AddConfigPath(".")

	// Environment
	v.SetEnvPrefix("IMPORT")
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	// Defaults
	v.SetDefault("store.driver", "sqlite")
	v.SetDefault("store.database_url", "initiatives.db")
	v.SetDefault("log.level", "info")
	v.SetDefault("log.format", "json")
	v.SetDefault("server.port", 8080)
	v.SetDefault("server.debug", false)
	v.SetDefault("server.imports_per_second", 2.0)
	v.SetDefault("server.burst", 4)
	v.SetDefault("server.cors_origins", []string{"*"})
	v.SetDefault("server.max_upload_mb", 20)
	v.SetDefault("import.max_rows", 10000)
	v.SetDefault("import.progress_ceiling_upload", 100.0)
	v.SetDefault("import.progress_ceiling_preparsed", 150.0)
	v.SetDefault("import.history_threshold", 5.0)
	v.SetDefault("import.header_scan_rows", 5)
	v.SetDefault("import.default_tenant", "default")
	v.SetDefault("import.date_fallback", "null")
	v.SetDefault("retry.max_attempts", 3)
	v.SetDefault("retry.initial_backoff_ms", 50)

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

	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return &cfg, nil
}

// Validate rejects settings the pipeline cannot run with.
func (c *Config) Validate() error {
	switch c.Store.Driver {
	case "sqlite", "postgres":
	default:
		return eris.Errorf("config: unknown store driver %q", c.Store.Driver)
	}
	if c.Import.MaxRows <= 0 {
		return eris.New("config: import.max_rows must be positive")
	}
	if c.Import.ProgressCeilingUpload <= 0 || c.Import.ProgressCeilingPreParsed <= 0 {
		return eris.New("config: progress ceilings must be positive")
	}
	switch c.Import.DateFallback {
	case "null", "end_of_year":
	default:
		return eris.Errorf("config: unknown import.date_fallback %q", c.Import.DateFallback)
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
