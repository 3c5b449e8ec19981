package main

import (
	"errors"
	"fmt"
	"net/url"
	"strings"
	"time"

	"github.com/orian/querybuilder/models"
	"github.com/spf13/viper"
)

// Config holds all runtime settings of querybuilder.
type Config struct {
	Server  ServerConfig
	Search  SearchConfig
	History HistoryConfig
	Log     LogConfig
	Metrics MetricsConfig
}

// ServerConfig configures the HTTP listener.
type ServerConfig struct {
	Port      string
	StaticDir string
}

// SearchConfig configures the outgoing search requests.
type SearchConfig struct {
	// DefaultURL is the endpoint new sessions start with.
	DefaultURL string
	// Timeout bounds one request submission.
	Timeout time.Duration
}

// HistoryConfig configures the request log.
type HistoryConfig struct {
	// Path is the DuckDB database file. Empty keeps the log in memory.
	Path string
	// Limit is the default number of entries listed.
	Limit int
}

// LogConfig configures the zap logger.
type LogConfig struct {
	Level  string // debug, info, warn, error
	Format string // console, json
}

// MetricsConfig toggles the Prometheus endpoint.
type MetricsConfig struct {
	Enabled bool
}

// LoadConfig reads the configuration.
//
// Priority (highest to lowest):
// 1. Environment variables with QB_ prefix (e.g., QB_SERVER_PORT)
// 2. querybuilder.yaml in the working directory or /etc/querybuilder,
// or the file given by configFile
// 3. Built-in defaults
func LoadConfig(configFile string) (*Config, error) {
	v := viper.New()

	if configFile != "" {
		v.SetConfigFile(configFile)
	} else {
		v.SetConfigName("querybuilder")
		v.SetConfigType("yaml")
		v.AddConfigPath(".")
		v.AddConfigPath("/etc/querybuilder")
	}

	if err := v.ReadInConfig(); err != nil {
		var notFound viper.ConfigFileNotFoundError
		if configFile != "" || !errors.As(err, &notFound) {
			return nil, fmt.Errorf("error reading config file: %w", err)
		}
	}

	v.SetEnvPrefix("QB")
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()
	setDefaults(v)

	cfg := &Config{
		Server: ServerConfig{
			Port:      v.GetString("server.port"),
			StaticDir: v.GetString("server.static_dir"),
		},
		Search: SearchConfig{
			DefaultURL: v.GetString("search.default_url"),
			Timeout:    v.GetDuration("search.timeout"),
		},
		History: HistoryConfig{
			Path:  v.GetString("history.path"),
			Limit: v.GetInt("history.limit"),
		},
		Log: LogConfig{
			Level:  v.GetString("log.level"),
			Format: v.GetString("log.format"),
		},
		Metrics: MetricsConfig{
			Enabled: v.GetBool("metrics.enabled"),
		},
	}

	if err := cfg.validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

func setDefaults(v *viper.Viper) {
	v.SetDefault("server.port", "8080")
	v.SetDefault("server.static_dir", "./static")
	v.SetDefault("search.default_url", models.DefaultSearchURL)
	v.SetDefault("search.timeout", 30*time.Second)
	v.SetDefault("history.path", "")
	v.SetDefault("history.limit", 100)
	v.SetDefault("log.level", "info")
	v.SetDefault("log.format", "console")
	v.SetDefault("metrics.enabled", true)
}

func (c *Config) validate() error {
	if c.Server.Port == "" {
		return fmt.Errorf("server.port is required")
	}
	if _, err := url.Parse(c.Search.DefaultURL); err != nil {
		return fmt.Errorf("search.default_url is invalid: %w", err)
	}
	if c.Search.Timeout <= 0 {
		return fmt.Errorf("search.timeout must be positive, got %s", c.Search.Timeout)
	}
	if c.History.Limit <= 0 {
		return fmt.Errorf("history.limit must be positive, got %d", c.History.Limit)
	}
	switch c.Log.Format {
	case "console", "json":
	default:
		return fmt.Errorf("log.format must be console or json, got %q", c.Log.Format)
	}
	return nil
}
