package config

import (
	"fmt"
	"io"
	"log/slog"
	"slices"
	"strings"

	"github.com/joho/godotenv"
	"github.com/spf13/viper"

	"github.com/adamwoolhether/asynchttp/client"
)

// EnvPrefix prefixes every environment variable the loader reads.
const EnvPrefix = "ASYNCHTTP"

// Config is the complete loadable configuration.
type Config struct {
	Client  client.Defaults `yaml:"client" mapstructure:"client"`
	Logging Logging         `yaml:"logging" mapstructure:"logging"`
}

// Logging selects the slog handler built by NewLogger.
type Logging struct {
	Level  string `yaml:"level" mapstructure:"level"`
	Format string `yaml:"format" mapstructure:"format"`
}

// ApplyDefaults applies default values to logging configuration.
func (l *Logging) ApplyDefaults() {
	if l.Level == "" {
		l.Level = "info"
	}
	if l.Format == "" {
		l.Format = "text"
	}
}

// Validate validates logging configuration.
func (l Logging) Validate() error {
	validLevels := []string{"debug", "info", "warn", "error"}
	if !slices.Contains(validLevels, strings.ToLower(l.Level)) {
		return fmt.Errorf("logging.level must be one of %v (got: %s)", validLevels, l.Level)
	}
	validFormats := []string{"text", "json"}
	if !slices.Contains(validFormats, l.Format) {
		return fmt.Errorf("logging.format must be one of %v (got: %s)", validFormats, l.Format)
	}
	return nil
}

// ApplyDefaults applies defaults to every section.
func (c *Config) ApplyDefaults() {
	c.Client.ApplyDefaults()
	c.Logging.ApplyDefaults()
}

// Validate validates every section.
func (c Config) Validate() error {
	if err := c.Client.Validate(); err != nil {
		return fmt.Errorf("client: %w", err)
	}
	if err := c.Logging.Validate(); err != nil {
		return err
	}
	return nil
}

// ClientOptions converts c into options for client.Build, logging to w.
func (c Config) ClientOptions(w io.Writer) []client.Option {
	return []client.Option{
		client.WithLogger(NewLogger(c.Logging, w)),
		client.WithDefaults(c.Client),
	}
}

// NewLogger builds a slog logger writing to w.
func NewLogger(l Logging, w io.Writer) *slog.Logger {
	l.ApplyDefaults()

	var level slog.Level
	if err := level.UnmarshalText([]byte(l.Level)); err != nil {
		level = slog.LevelInfo
	}
	opts := &slog.HandlerOptions{Level: level}

	if l.Format == "json" {
		return slog.New(slog.NewJSONHandler(w, opts))
	}
	return slog.New(slog.NewTextHandler(w, opts))
}

// Option is a functional option for Load.
type Option func(*loader)

type loader struct {
	configFile string
	envFile    string
}

// WithConfigFile reads path as the base YAML configuration.
func WithConfigFile(path string) Option {
	return func(l *loader) { l.configFile = path }
}

// WithEnvFile loads path into the environment before variables are read.
// Variables already set take precedence over the file.
func WithEnvFile(path string) Option {
	return func(l *loader) { l.envFile = path }
}

// keys lists every setting so AutomaticEnv can see variables for keys the
// YAML file does not mention.
var keys = []string{
	"client.request_timeout",
	"client.response_timeout",
	"client.connection_timeout",
	"client.redirections",
	"client.verification",
	"client.ca_path",
	"client.ca_bundle",
	"client.user_agent",
	"client.wait_activity",
	"client.max_concurrent",
	"client.throttle.rps",
	"client.throttle.burst",
	"logging.level",
	"logging.format",
}

// Load resolves the configuration, applies defaults and validates it.
func Load(opts ...Option) (Config, error) {
	var l loader
	for _, opt := range opts {
		opt(&l)
	}

	v := viper.New()

	if l.configFile != "" {
		v.SetConfigFile(l.configFile)
		if err := v.ReadInConfig(); err != nil {
			return Config{}, fmt.Errorf("reading config file %s: %w", l.configFile, err)
		}
	}

	if l.envFile != "" {
		if err := godotenv.Load(l.envFile); err != nil {
			return Config{}, fmt.Errorf("loading env file %s: %w", l.envFile, err)
		}
	}

	v.SetEnvPrefix(EnvPrefix)
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()
	for _, key := range keys {
		if err := v.BindEnv(key); err != nil {
			return Config{}, fmt.Errorf("binding %s: %w", key, err)
		}
	}

	var cfg Config
	if err := v.Unmarshal(&cfg); err != nil {
		return Config{}, fmt.Errorf("unmarshaling config: %w", err)
	}

	cfg.ApplyDefaults()
	if err := cfg.Validate(); err != nil {
		return Config{}, fmt.Errorf("validating config: %w", err)
	}

	return cfg, nil
}
