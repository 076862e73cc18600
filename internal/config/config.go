// Package config loads runtime configuration for the strutils binaries.
//
// Sources are applied in order, later ones winning: built-in defaults, an
// optional YAML file, .env files, then STRUTILS_* environment variables.
// Command-line flags are applied by the caller on top of the result.
package config

import (
	"bytes"
	"errors"
	"fmt"
	"io"
	"os"
	"time"

	"github.com/caarlos0/env/v11"
	"github.com/joho/godotenv"
	"gopkg.in/yaml.v3"

	apperrors "github.com/FocuswithJustin/strutils/core/errors"
	"github.com/FocuswithJustin/strutils/internal/logging"
	"github.com/FocuswithJustin/strutils/internal/validation"
)

// EnvPrefix prefixes every environment variable the loader reads.
const EnvPrefix = "STRUTILS_"

// MinAPIKeyLength is the shortest API key the HTTP adapter accepts.
const MinAPIKeyLength = 16

// ErrParsingConfig wraps every failure to read a configuration source.
var ErrParsingConfig = errors.New("failed to parse config")

// Config is the complete runtime configuration.
type Config struct {
	Log     LogConfig    `yaml:"log" envPrefix:"LOG_"`
	Table   TableConfig  `yaml:"table" envPrefix:"TABLE_"`
	Plugins PluginConfig `yaml:"plugins" envPrefix:"PLUGINS_"`
	HTTP    HTTPConfig   `yaml:"http" envPrefix:"HTTP_"`
}

// LogConfig selects the log level and output format.
type LogConfig struct {
	Level  string `yaml:"level" env:"LEVEL"`
	Format string `yaml:"format" env:"FORMAT"`
}

// TableConfig controls how the transliteration table is built.
type TableConfig struct {
	// Overlays are table (.tbl) or CLDR transform (.xml) files, optionally
	// xz compressed, applied over the built-in tables, later files winning.
	Overlays    []string `yaml:"overlays" env:"OVERLAYS" envSeparator:","`
	Placeholder string   `yaml:"placeholder" env:"PLACEHOLDER"`
}

// PluginConfig controls plugin discovery and execution.
type PluginConfig struct {
	Dir         string        `yaml:"dir" env:"DIR"`
	External    bool          `yaml:"external" env:"EXTERNAL"`
	Timeout     time.Duration `yaml:"timeout" env:"TIMEOUT"`
	AllowedDirs []string      `yaml:"allowed_dirs" env:"ALLOWED_DIRS" envSeparator:","`
}

// HTTPConfig configures the HTTP adapter.
type HTTPConfig struct {
	Addr              string   `yaml:"addr" env:"ADDR"`
	Metrics           bool     `yaml:"metrics" env:"METRICS"`
	APIKey            string   `yaml:"api_key" env:"API_KEY"`
	RateLimitRequests int      `yaml:"rate_limit_requests" env:"RATE_LIMIT_REQUESTS"`
	RateLimitBurst    int      `yaml:"rate_limit_burst" env:"RATE_LIMIT_BURST"`
	MaxBodyBytes      int64    `yaml:"max_body_bytes" env:"MAX_BODY_BYTES"`
	AllowedOrigins    []string `yaml:"allowed_origins" env:"ALLOWED_ORIGINS" envSeparator:","`
}

// Default returns the configuration used when no source sets a field.
func Default() *Config {
	return &Config{
		Log: LogConfig{Level: "info", Format: "text"},
		Plugins: PluginConfig{
			Dir:     "plugins",
			Timeout: 30 * time.Second,
		},
		HTTP: HTTPConfig{
			Addr:              "127.0.0.1:8080",
			Metrics:           true,
			RateLimitRequests: 120,
			RateLimitBurst:    20,
			MaxBodyBytes:      1 << 20,
		},
	}
}

// Load builds the configuration from defaults, the YAML file at path (if
// path is not empty), the given .env files and the environment. With no
// dotenv files, ".env" in the working directory is read when present.
func Load(path string, dotenv ...string) (*Config, error) {
	cfg := Default()

	if path != "" {
		f, err := os.Open(path)
		if err != nil {
			return nil, errors.Join(ErrParsingConfig, apperrors.NewIO("open", path, err))
		}
		defer f.Close()
		if err := cfg.decodeYAML(f, path); err != nil {
			return nil, err
		}
	}

	if len(dotenv) == 0 {
		// a missing default .env is fine
		_ = godotenv.Load()
	} else if err := godotenv.Load(dotenv...); err != nil {
		return nil, errors.Join(ErrParsingConfig, err)
	}

	if err := cfg.ApplyEnv(); err != nil {
		return nil, err
	}
	logging.Debug("configuration loaded", "file", path, "overlays", len(cfg.Table.Overlays))
	return cfg, nil
}

// LoadYAML decodes a YAML document over the defaults. Unknown keys are an
// error.
func LoadYAML(data []byte) (*Config, error) {
	cfg := Default()
	if err := cfg.decodeYAML(bytes.NewReader(data), "config"); err != nil {
		return nil, err
	}
	return cfg, nil
}

func (c *Config) decodeYAML(r io.Reader, name string) error {
	dec := yaml.NewDecoder(r)
	dec.KnownFields(true)
	if err := dec.Decode(c); err != nil && !errors.Is(err, io.EOF) {
		return errors.Join(ErrParsingConfig, &apperrors.ParseError{Format: "YAML", Path: name, Message: err.Error(), Err: err})
	}
	return nil
}

// ApplyEnv overrides fields from STRUTILS_* environment variables. Unset
// variables leave the field alone.
func (c *Config) ApplyEnv() error {
	if err := env.ParseWithOptions(c, env.Options{Prefix: EnvPrefix}); err != nil {
		return errors.Join(ErrParsingConfig, err)
	}
	return nil
}

// Validate checks the configuration and reports every problem found.
func (c *Config) Validate() error {
	var errs []error
	if _, err := logging.ParseLevel(c.Log.Level); err != nil {
		errs = append(errs, apperrors.NewValidation("log.level", err.Error()))
	}
	if _, err := logging.ParseFormat(c.Log.Format); err != nil {
		errs = append(errs, apperrors.NewValidation("log.format", err.Error()))
	}
	for _, r := range c.Table.Placeholder {
		if r > 0x7f {
			errs = append(errs, apperrors.NewValidation("table.placeholder", "placeholder must be ASCII"))
			break
		}
	}
	for _, path := range c.Table.Overlays {
		if err := validation.ValidateOverlay(path); err != nil {
			errs = append(errs, apperrors.NewValidation("table.overlays", err.Error()))
		}
	}
	if c.Plugins.Dir != "" {
		if err := validation.ValidatePath(c.Plugins.Dir); err != nil {
			errs = append(errs, apperrors.NewValidation("plugins.dir", err.Error()))
		}
	}
	if c.Plugins.Timeout <= 0 {
		errs = append(errs, apperrors.NewValidation("plugins.timeout", "timeout must be positive"))
	}
	if c.HTTP.Addr == "" {
		errs = append(errs, apperrors.NewValidation("http.addr", "address is required"))
	}
	if c.HTTP.APIKey != "" && len(c.HTTP.APIKey) < MinAPIKeyLength {
		errs = append(errs, apperrors.NewValidation("http.api_key",
			fmt.Sprintf("API key must be at least %d characters", MinAPIKeyLength)))
	}
	if c.HTTP.RateLimitRequests < 0 || c.HTTP.RateLimitBurst < 0 {
		errs = append(errs, apperrors.NewValidation("http.rate_limit", "rate limits cannot be negative"))
	}
	if c.HTTP.MaxBodyBytes <= 0 {
		errs = append(errs, apperrors.NewValidation("http.max_body_bytes", "body limit must be positive"))
	}
	return errors.Join(errs...)
}

// LogLevel returns the parsed log level, falling back to info.
func (c *Config) LogLevel() logging.Level {
	l, _ := logging.ParseLevel(c.Log.Level)
	return l
}

// LogFormat returns the parsed log format, falling back to text.
func (c *Config) LogFormat() logging.Format {
	f, _ := logging.ParseFormat(c.Log.Format)
	return f
}
