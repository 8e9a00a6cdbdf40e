// Package config loads the connection and logging settings used by the
// mongomoron command line and by applications that embed it.
package config

import (
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/go-playground/validator/v10"
	"github.com/joho/godotenv"
	"github.com/pkg/errors"
	"github.com/spf13/viper"
)

// EnvPrefix prefixes every environment variable read by Load.
const EnvPrefix = "MONGOMORON"

// Config holds the settings needed to reach a MongoDB deployment.
type Config struct {
	// URI is the MongoDB connection string.
	URI string `mapstructure:"uri" validate:"required,startswith=mongodb"`
	// Database is the database every collection belongs to.
	Database string `mapstructure:"database" validate:"required,excludesall=/.$"`

	ConnectTimeout         time.Duration `mapstructure:"connect_timeout" validate:"gt=0"`
	ServerSelectionTimeout time.Duration `mapstructure:"server_selection_timeout" validate:"gt=0"`

	// LogLevel is one of debug, info, warn or error.
	LogLevel string `mapstructure:"log_level" validate:"oneof=debug info warn error"`
	// LogFormat is console or json.
	LogFormat string `mapstructure:"log_format" validate:"oneof=console json"`

	AppName string `mapstructure:"app_name"`
}

// Options control where Load looks for settings.
type Options struct {
	// ConfigFile is an explicit config file path. When empty Load searches
	// for "mongomoron.{yaml,yml,json,toml}" in the working directory and in
	// ./config, and a missing file is not an error.
	ConfigFile string
	// EnvDir is the directory holding .env and .env.local. Defaults to the
	// working directory.
	EnvDir string
	// Overrides take precedence over every other source. Keys are the
	// mapstructure names, such as "uri" or "log_level".
	Overrides map[string]any
}

// Load reads settings from, in increasing priority: defaults, the config file,
// .env, .env.local, MONGOMORON_* environment variables and Options.Overrides.
// The result is validated before it is returned.
func Load(opts Options) (*Config, error) {
	if err := loadDotEnv(opts.EnvDir); err != nil {
		return nil, err
	}

	vi := newViperWithDefaults()
	if opts.ConfigFile != "" {
		vi.SetConfigFile(opts.ConfigFile)
		if err := vi.ReadInConfig(); err != nil {
			return nil, errors.Wrapf(err, "failed to read config file %s", opts.ConfigFile)
		}
	} else {
		vi.SetConfigName("mongomoron")
		vi.AddConfigPath(".")
		vi.AddConfigPath("./config")
		if err := vi.ReadInConfig(); err != nil {
			var notFound viper.ConfigFileNotFoundError
			if !errors.As(err, &notFound) {
				return nil, errors.Wrap(err, "failed to read config file")
			}
		}
	}

	for key, value := range opts.Overrides {
		vi.Set(key, value)
	}

	c := &Config{}
	if err := vi.Unmarshal(c); err != nil {
		return nil, errors.Wrap(err, "failed to decode config")
	}
	if err := c.Validate(); err != nil {
		return nil, err
	}
	return c, nil
}

// Validate checks every field against its constraints.
func (c *Config) Validate() error {
	if err := validator.New().Struct(c); err != nil {
		var fieldErrs validator.ValidationErrors
		if errors.As(err, &fieldErrs) {
			msgList := make([]string, 0, len(fieldErrs))
			for _, fe := range fieldErrs {
				msgList = append(msgList, fe.Namespace()+": failed on "+fe.Tag())
			}
			return errors.Errorf("invalid config: %s", strings.Join(msgList, "; "))
		}
		return errors.Wrap(err, "invalid config")
	}
	return nil
}

// newViperWithDefaults returns a viper instance with the default settings and
// environment bindings.
func newViperWithDefaults() *viper.Viper {
	vi := viper.New()

	vi.SetDefault("uri", "mongodb://localhost:27017")
	vi.SetDefault("database", "")
	vi.SetDefault("connect_timeout", 10*time.Second)
	vi.SetDefault("server_selection_timeout", 10*time.Second)
	vi.SetDefault("log_level", "info")
	vi.SetDefault("log_format", "console")
	vi.SetDefault("app_name", "mongomoron")

	vi.SetEnvPrefix(EnvPrefix)
	vi.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	vi.AutomaticEnv()

	return vi
}

// loadDotEnv loads .env and then .env.local, which overrides it. Missing files
// are skipped. Variables already set in the process environment win over .env
// but not over .env.local.
func loadDotEnv(dir string) error {
	envFile := filepath.Join(dir, ".env")
	if _, err := os.Stat(envFile); err == nil {
		if err := godotenv.Load(envFile); err != nil {
			return errors.Wrapf(err, "failed to load %s", envFile)
		}
	}
	localFile := filepath.Join(dir, ".env.local")
	if _, err := os.Stat(localFile); err == nil {
		if err := godotenv.Overload(localFile); err != nil {
			return errors.Wrapf(err, "failed to load %s", localFile)
		}
	}
	return nil
}
