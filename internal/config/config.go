package config

import (
	"errors"
	"fmt"
	"log/slog"
	"net"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/joho/godotenv"
	"github.com/spf13/viper"

	"github.com/chadmayfield/weathercache/internal/weather"
)

// Default database files, one per mode so synthetic rows never mix with real ones.
const (
	DefaultAPIDBPath  = "data/weather_api.db"
	DefaultMockDBPath = "data/weather_mocked.db"
)

// Config is the top-level configuration for weathercache.
type Config struct {
	Mode       string         `mapstructure:"mode"`
	Source     string         `mapstructure:"source"`
	ListenAddr string         `mapstructure:"listen_addr"`
	LogFormat  string         `mapstructure:"log_format"`
	LogFile    string         `mapstructure:"log_file"`
	Location   LocationConfig `mapstructure:"location"`
	Storage    StorageConfig  `mapstructure:"storage"`
	Fetch      FetchConfig    `mapstructure:"fetch"`
}

// LocationConfig is the default location queried by the fetch command.
type LocationConfig struct {
	Longitude float64 `mapstructure:"longitude"`
	Latitude  float64 `mapstructure:"latitude"`
}

// StorageConfig defines the database backend.
type StorageConfig struct {
	Driver   string         `mapstructure:"driver"` // "sqlite" or "postgres"
	SQLite   SQLiteConfig   `mapstructure:"sqlite"`
	Postgres PostgresConfig `mapstructure:"postgres"`
}

// SQLiteConfig holds SQLite-specific configuration.
// An empty Path selects the per-mode default.
type SQLiteConfig struct {
	Path string `mapstructure:"path"`
}

// PostgresConfig holds PostgreSQL-specific configuration.
type PostgresConfig struct {
	DSN string `mapstructure:"dsn"`
}

// FetchConfig controls the live fetcher.
type FetchConfig struct {
	Timeout time.Duration `mapstructure:"timeout"`
}

// Load reads configuration from flag path, env vars, then default file paths.
// Precedence: flag → $WEATHERCACHE_CONFIG env → ~/.config/weathercache/config.yaml → /etc/weathercache/config.yaml
// A .env file in the working directory is loaded into the environment first.
// Read and parse failures are ConfigFileErrors.
func Load(configPath string) (*Config, error) {
	if err := godotenv.Load(); err != nil && !errors.Is(err, os.ErrNotExist) {
		slog.Warn("ignoring unreadable .env file", "error", err)
	}

	v := viper.New()
	v.SetConfigType("yaml")

	// Defaults
	v.SetDefault("mode", "API")
	v.SetDefault("source", "config/config.json")
	v.SetDefault("listen_addr", ":8080")
	v.SetDefault("log_format", "json")
	v.SetDefault("location.longitude", 13.41)
	v.SetDefault("location.latitude", 52.52)
	v.SetDefault("storage.driver", "sqlite")
	v.SetDefault("fetch.timeout", "30s")

	// Env var support
	v.SetEnvPrefix("WEATHERCACHE")
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	if configPath != "" {
		v.SetConfigFile(configPath)
	} else if envPath := os.Getenv("WEATHERCACHE_CONFIG"); envPath != "" {
		v.SetConfigFile(envPath)
	} else {
		// Try ~/.config/weathercache/config.yaml first
		if home, err := os.UserHomeDir(); err == nil {
			v.AddConfigPath(filepath.Join(home, ".config", "weathercache"))
		}
		// Fall back to /etc/weathercache/config.yaml
		v.AddConfigPath("/etc/weathercache")
		v.SetConfigName("config")
	}

	if err := v.ReadInConfig(); err != nil {
		if _, ok := err.(viper.ConfigFileNotFoundError); !ok {
			return nil, weather.E(weather.KindConfigFile, "reading config", err)
		}
	} else {
		// Warn if config file is world-readable.
		if cfgPath := v.ConfigFileUsed(); cfgPath != "" {
			if info, err := os.Stat(cfgPath); err == nil {
				perm := info.Mode().Perm()
				if perm&0004 != 0 {
					slog.Warn("config file is world-readable", "path", cfgPath, "permissions", fmt.Sprintf("%04o", perm))
				}
			}
		}
	}

	var cfg Config
	if err := v.Unmarshal(&cfg); err != nil {
		return nil, weather.E(weather.KindConfigFile, "unmarshaling config", err)
	}

	if err := cfg.Validate(); err != nil {
		return nil, weather.E(weather.KindConfigFile, "validating config", err)
	}

	return &cfg, nil
}

// Validate checks that the configuration is complete and correct.
// The mode is not checked here; the fetcher factory rejects unknown modes.
func (c *Config) Validate() error {
	if c.Location.Longitude < -180 || c.Location.Longitude > 180 {
		return fmt.Errorf("location.longitude %v is out of range", c.Location.Longitude)
	}
	if c.Location.Latitude < -90 || c.Location.Latitude > 90 {
		return fmt.Errorf("location.latitude %v is out of range", c.Location.Latitude)
	}

	switch c.Storage.Driver {
	case "sqlite":
	case "postgres":
		if c.Storage.Postgres.DSN == "" {
			return fmt.Errorf("storage.postgres.dsn is required for postgres driver")
		}
	default:
		return fmt.Errorf("storage.driver must be 'sqlite' or 'postgres', got %q", c.Storage.Driver)
	}

	switch c.LogFormat {
	case "", "json", "text":
	default:
		return fmt.Errorf("log_format must be 'json' or 'text', got %q", c.LogFormat)
	}

	if c.Fetch.Timeout < 0 {
		return fmt.Errorf("fetch.timeout must not be negative")
	}

	// Validate listen_addr.
	if _, _, err := net.SplitHostPort(c.ListenAddr); err != nil {
		return fmt.Errorf("listen_addr %q is not a valid address: %w", c.ListenAddr, err)
	}

	return nil
}

// DSN returns the appropriate DSN for the configured storage driver. For
// sqlite without an explicit path the file is chosen by mode.
func (c *Config) DSN() string {
	switch c.Storage.Driver {
	case "sqlite":
		if c.Storage.SQLite.Path != "" {
			return c.Storage.SQLite.Path
		}
		if strings.EqualFold(c.Mode, "MOCK") {
			return DefaultMockDBPath
		}
		return DefaultAPIDBPath
	case "postgres":
		return c.Storage.Postgres.DSN
	default:
		return ""
	}
}

// DefaultLocation returns the configured default location.
func (c *Config) DefaultLocation() weather.Location {
	return weather.Location{Longitude: c.Location.Longitude, Latitude: c.Location.Latitude}
}
