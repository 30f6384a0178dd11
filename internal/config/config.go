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
	Store    StoreConfig    `yaml:"store" mapstructure:"store"`
	Server   ServerConfig   `yaml:"server" mapstructure:"server"`
	Log      LogConfig      `yaml:"log" mapstructure:"log"`
	History  HistoryConfig  `yaml:"history" mapstructure:"history"`
	CMS      CMSConfig      `yaml:"cms" mapstructure:"cms"`
	Taxonomy TaxonomyConfig `yaml:"taxonomy" mapstructure:"taxonomy"`
}

// StoreConfig configures the Postgres connection pool.
type StoreConfig struct {
	DatabaseURL string `yaml:"database_url" mapstructure:"database_url"`
	MaxConns    int32  `yaml:"max_conns" mapstructure:"max_conns"`
	MinConns    int32  `yaml:"min_conns" mapstructure:"min_conns"`
}

// ServerConfig configures the HTTP API.
type ServerConfig struct {
	Port           int      `yaml:"port" mapstructure:"port"`
	RateLimitRPS   float64  `yaml:"rate_limit_rps" mapstructure:"rate_limit_rps"`
	RateLimitBurst int      `yaml:"rate_limit_burst" mapstructure:"rate_limit_burst"`
	CORSOrigins    []string `yaml:"cors_origins" mapstructure:"cors_origins"`
}

// LogConfig configures logging.
type LogConfig struct {
	Level  string `yaml:"level" mapstructure:"level"`
	Format string `yaml:"format" mapstructure:"format"`
}

// HistoryConfig configures the circuit breaker in front of extraction-history writes.
type HistoryConfig struct {
	BreakerThreshold int `yaml:"breaker_threshold" mapstructure:"breaker_threshold"`
	BreakerResetSecs int `yaml:"breaker_reset_secs" mapstructure:"breaker_reset_secs"`
}

// CMSConfig configures the nursing-home quality-measure ingest.
type CMSConfig struct {
	DataDir string `yaml:"data_dir" mapstructure:"data_dir"`
	TempDir string `yaml:"temp_dir" mapstructure:"temp_dir"`
	Workers int    `yaml:"workers" mapstructure:"workers"`
}

// TaxonomyConfig locates the contract taxonomy workbooks and the SQLite target.
type TaxonomyConfig struct {
	SQLitePath   string `yaml:"sqlite_path" mapstructure:"sqlite_path"`
	TaxonomyFile string `yaml:"taxonomy_file" mapstructure:"taxonomy_file"`
	NamingFile   string `yaml:"naming_file" mapstructure:"naming_file"`
}

// Load reads configuration from ./config.yaml (if present) and environment.
func Load() (*Config, error) {
	return LoadFile("")
}

// LoadFile is Load with an explicit config file. An empty path falls back to
// ./config.yaml; a named file that does not exist is an error.
func LoadFile(path string) (*Config, error) {
	v := viper.New()

	if path != "" {
		v.SetConfigFile(path)
	} else {
		v.SetConfigName("config")
		v.SetConfigType("yaml")
		v.AddConfigPath(".")
	}

	// Environment
	v.SetEnvPrefix("SNFDEALS")
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	// Defaults
	v.SetDefault("store.database_url", "")
	v.SetDefault("store.max_conns", 10)
	v.SetDefault("store.min_conns", 1)
	v.SetDefault("log.level", "info")
	v.SetDefault("log.format", "json")
	v.SetDefault("server.port", 8080)
	v.SetDefault("server.rate_limit_rps", 20.0)
	v.SetDefault("server.rate_limit_burst", 40)
	v.SetDefault("server.cors_origins", []string{"*"})
	v.SetDefault("history.breaker_threshold", 5)
	v.SetDefault("history.breaker_reset_secs", 30)
	v.SetDefault("cms.data_dir", "data/cms")
	v.SetDefault("cms.temp_dir", "/tmp/snf-deals/cms")
	v.SetDefault("cms.workers", 4)
	v.SetDefault("taxonomy.sqlite_path", "contracts.db")
	v.SetDefault("taxonomy.taxonomy_file", "Contract_Taxonomy.xlsx")
	v.SetDefault("taxonomy.naming_file", "Naming_Convention.xlsx")

	// Read config file (optional)
	if err := v.ReadInConfig(); err != nil {
		if _, ok := err.(viper.ConfigFileNotFoundError); !ok || path != "" {
			return nil, eris.Wrap(err, "config: read file")
		}
	}

	var cfg Config
	if err := v.Unmarshal(&cfg); err != nil {
		return nil, eris.Wrap(err, "config: unmarshal")
	}

	return &cfg, nil
}

// Validate checks the settings a command mode relies on. Modes are
// "serve", "sync", "ingest", and "taxonomy". All problems are reported at once.
func (c *Config) Validate(mode string) error {
	var errs []string
	requireDB := func() {
		if c.Store.DatabaseURL == "" {
			errs = append(errs, "store.database_url is required")
		}
		if c.Store.MaxConns > 0 && c.Store.MinConns > c.Store.MaxConns {
			errs = append(errs, "store.min_conns must not exceed store.max_conns")
		}
	}

	switch mode {
	case "serve":
		requireDB()
		if c.Server.Port <= 0 {
			errs = append(errs, "server.port must be > 0")
		}
		if c.Server.RateLimitRPS < 0 || c.Server.RateLimitBurst < 0 {
			errs = append(errs, "server rate limits must not be negative")
		}
		if c.History.BreakerThreshold < 1 {
			errs = append(errs, "history.breaker_threshold must be >= 1")
		}
	case "sync":
		requireDB()
		if c.History.BreakerThreshold < 1 {
			errs = append(errs, "history.breaker_threshold must be >= 1")
		}
	case "ingest":
		requireDB()
		if c.CMS.Workers < 1 || c.CMS.Workers > 32 {
			errs = append(errs, "cms.workers must be between 1 and 32")
		}
	case "taxonomy":
		if c.Taxonomy.SQLitePath == "" {
			errs = append(errs, "taxonomy.sqlite_path is required")
		}
	default:
		return eris.Errorf("config: unknown mode %q", mode)
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
