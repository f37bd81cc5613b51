package config

import (
	"strings"
	"time"

	"github.com/rotisserie/eris"
	"github.com/spf13/viper"
	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
)

// Config holds the full application configuration.
type Config struct {
	Registry   RegistryConfig   `yaml:"registry" mapstructure:"registry"`
	Decisions  DecisionsConfig  `yaml:"decisions" mapstructure:"decisions"`
	Dictionary DictionaryConfig `yaml:"dictionary" mapstructure:"dictionary"`
	Source     SourceConfig     `yaml:"source" mapstructure:"source"`
	Pipeline   PipelineConfig   `yaml:"pipeline" mapstructure:"pipeline"`
	Lookup     LookupConfig     `yaml:"lookup" mapstructure:"lookup"`
	Log        LogConfig        `yaml:"log" mapstructure:"log"`
}

// RegistryConfig locates the employer registry workbook.
type RegistryConfig struct {
	Path string `yaml:"path" mapstructure:"path"`
	// SearchParents walks up from the working directory looking for the
	// largest existing copy of the registry file name.
	SearchParents bool `yaml:"search_parents" mapstructure:"search_parents"`
}

// DecisionsConfig selects the resolution decision store.
type DecisionsConfig struct {
	Driver string `yaml:"driver" mapstructure:"driver"` // json or sqlite
	Path   string `yaml:"path" mapstructure:"path"`
}

// DictionaryConfig locates the procedure dictionary (.csv, .xlsx or .yaml).
type DictionaryConfig struct {
	Path string `yaml:"path" mapstructure:"path"`
}

// SourceConfig tunes the input readers.
type SourceConfig struct {
	Encoding       string `yaml:"encoding" mapstructure:"encoding"`
	MaxSheets      int    `yaml:"max_sheets" mapstructure:"max_sheets"`
	HeaderScanRows int    `yaml:"header_scan_rows" mapstructure:"header_scan_rows"`
}

// PipelineConfig controls the batch phases.
type PipelineConfig struct {
	ProgressEvery int `yaml:"progress_every" mapstructure:"progress_every"`
}

// LookupConfig configures the contract to CUIT lookup service. An empty
// URLTemplate disables the lookup.
type LookupConfig struct {
	URLTemplate string  `yaml:"url_template" mapstructure:"url_template"`
	TimeoutSecs int     `yaml:"timeout_secs" mapstructure:"timeout_secs"`
	RatePerSec  float64 `yaml:"rate_per_sec" mapstructure:"rate_per_sec"`
	MaxAttempts int     `yaml:"max_attempts" mapstructure:"max_attempts"`
}

// Timeout returns the per-request timeout as a duration.
func (c LookupConfig) Timeout() time.Duration {
	return time.Duration(c.TimeoutSecs) * time.Second
}

// LogConfig configures logging.
type LogConfig struct {
	Level  string `yaml:"level" mapstructure:"level"`
	Format string `yaml:"format" mapstructure:"format"`
}

// Load reads configuration from config.yaml and ORDERS_* environment
// variables.
func Load() (*Config, error) {
	v := viper.New()

	// Config file
	v.SetConfigName("config")
	v.SetConfigType("yaml")
	v.AddConfigPath(".")

	// Environment
	v.SetEnvPrefix("ORDERS")
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	// Defaults
	v.SetDefault("registry.path", "DB/Empresas.xlsx")
	v.SetDefault("registry.search_parents", true)
	v.SetDefault("decisions.driver", "json")
	v.SetDefault("decisions.path", "DB/company_resolution_decisions.json")
	v.SetDefault("dictionary.path", "PrestacionesMap.csv")
	v.SetDefault("source.encoding", "iso-8859-1")
	v.SetDefault("source.max_sheets", 50)
	v.SetDefault("source.header_scan_rows", 20)
	v.SetDefault("pipeline.progress_every", 250)
	v.SetDefault("lookup.url_template", "")
	v.SetDefault("lookup.timeout_secs", 30)
	v.SetDefault("lookup.rate_per_sec", 1.0)
	v.SetDefault("lookup.max_attempts", 3)
	v.SetDefault("log.level", "info")
	v.SetDefault("log.format", "console")

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

// Validate rejects settings the rest of the program cannot work with.
func (c *Config) Validate() error {
	switch c.Decisions.Driver {
	case "json", "sqlite":
	default:
		return eris.Errorf("config: unsupported decisions.driver %q (want json or sqlite)", c.Decisions.Driver)
	}
	if c.Registry.Path == "" {
		return eris.New("config: registry.path is required")
	}
	if c.Source.MaxSheets <= 0 {
		return eris.New("config: source.max_sheets must be positive")
	}
	if c.Pipeline.ProgressEvery <= 0 {
		return eris.New("config: pipeline.progress_every must be positive")
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
