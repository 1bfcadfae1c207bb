package config

import (
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/spf13/viper"
)

type DispatchConfig struct {
	Workers        int           `mapstructure:"workers"`
	SectionWorkers int           `mapstructure:"section_workers"`
	Timeout        time.Duration `mapstructure:"timeout"`
}

type Config struct {
	DatabaseDriver string         `mapstructure:"database_driver"`
	DatabaseURL    string         `mapstructure:"database_url"`
	ServerPort     string         `mapstructure:"server_port"`
	JWTSecret      string         `mapstructure:"jwt_secret"`
	LogLevel       string         `mapstructure:"log_level"`
	AllowedOrigins []string       `mapstructure:"allowed_origins"`
	Dispatch       DispatchConfig `mapstructure:"dispatch"`
}

// Defaults returns the configuration used when no file or environment value
// overrides a setting.
func Defaults() *Config {
	return &Config{
		DatabaseDriver: "postgres",
		ServerPort:     "8080",
		LogLevel:       "info",
		AllowedOrigins: []string{"http://localhost:3000"},
		Dispatch: DispatchConfig{
			Workers:        8,
			SectionWorkers: 4,
			Timeout:        30 * time.Second,
		},
	}
}

// Load reads config.yaml from the given path (or from . and ./config when path
// is empty), applies CAMPUS_* environment overrides and fills defaults.
// A missing config file is not an error; a malformed one is.
func Load(path string) (*Config, error) {
	v := viper.New()

	if path != "" {
		v.SetConfigFile(path)
	} else {
		v.AddConfigPath(".")
		v.AddConfigPath("./config")
		v.SetConfigName("config")
		v.SetConfigType("yaml")
	}

	v.SetEnvPrefix("campus")
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	def := Defaults()
	v.SetDefault("database_driver", def.DatabaseDriver)
	v.SetDefault("database_url", "")
	v.SetDefault("server_port", def.ServerPort)
	v.SetDefault("jwt_secret", "")
	v.SetDefault("log_level", def.LogLevel)
	v.SetDefault("allowed_origins", def.AllowedOrigins)
	v.SetDefault("dispatch.workers", def.Dispatch.Workers)
	v.SetDefault("dispatch.section_workers", def.Dispatch.SectionWorkers)
	v.SetDefault("dispatch.timeout", def.Dispatch.Timeout)

	if err := v.ReadInConfig(); err != nil {
		var notFound viper.ConfigFileNotFoundError
		if !errors.As(err, &notFound) {
			return nil, fmt.Errorf("reading config file: %w", err)
		}
	}

	var cfg Config
	if err := v.Unmarshal(&cfg); err != nil {
		return nil, fmt.Errorf("unmarshalling config: %w", err)
	}

	// Fallback defaults for values explicitly zeroed in the file.
	if cfg.ServerPort == "" {
		cfg.ServerPort = def.ServerPort
	}
	if cfg.Dispatch.Workers <= 0 {
		cfg.Dispatch.Workers = def.Dispatch.Workers
	}
	if cfg.Dispatch.SectionWorkers <= 0 {
		cfg.Dispatch.SectionWorkers = def.Dispatch.SectionWorkers
	}
	if cfg.Dispatch.Timeout <= 0 {
		cfg.Dispatch.Timeout = def.Dispatch.Timeout
	}
	cfg.DatabaseDriver = strings.ToLower(strings.TrimSpace(cfg.DatabaseDriver))

	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return &cfg, nil
}

func (c *Config) Validate() error {
	switch c.DatabaseDriver {
	case "postgres", "sqlite":
	default:
		return fmt.Errorf("unsupported database_driver %q", c.DatabaseDriver)
	}
	if strings.TrimSpace(c.DatabaseURL) == "" {
		return errors.New("database_url must be set")
	}
	return nil
}

// RequireJWTSecret is checked by commands that serve HTTP traffic.
func (c *Config) RequireJWTSecret() error {
	if strings.TrimSpace(c.JWTSecret) == "" {
		return errors.New("jwt_secret must be set in the config file")
	}
	return nil
}
