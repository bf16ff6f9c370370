// Package config loads fieldbook settings from an optional fieldbook.yaml,
// a .env file and FIELDBOOK_* environment variables, in increasing priority.
package config

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"slices"
	"strings"
	"time"

	"github.com/joho/godotenv"
	"github.com/spf13/viper"

	"github.com/aretw0/fieldbook/internal/platform"
)

// EnvPrefix prefixes every environment override, e.g. FIELDBOOK_USER_NAME.
const EnvPrefix = "FIELDBOOK"

// Adapters lists the supported store backends.
var Adapters = []string{"sqlite", "fs", "memory"}

// Config holds application configuration.
type Config struct {
	User   UserConfig   `mapstructure:"user"`
	Store  StoreConfig  `mapstructure:"store"`
	Remote RemoteConfig `mapstructure:"remote"`
	Sync   SyncConfig   `mapstructure:"sync"`
	Log    LogConfig    `mapstructure:"log"`

	// File is the config file that was read, if any.
	File string `mapstructure:"-"`
}

type UserConfig struct {
	Name         string `mapstructure:"name"`
	Verified     bool   `mapstructure:"verified"`
	Organisation string `mapstructure:"organisation"`
}

type StoreConfig struct {
	Adapter string `mapstructure:"adapter"`
	Path    string `mapstructure:"path"`
	Format  string `mapstructure:"format"`
}

type RemoteConfig struct {
	URL     string        `mapstructure:"url"`
	Token   string        `mapstructure:"token"`
	Timeout time.Duration `mapstructure:"timeout"`
	Rate    float64       `mapstructure:"rate"`
	Burst   int           `mapstructure:"burst"`
}

type SyncConfig struct {
	Interval time.Duration `mapstructure:"interval"`
	Kinds    []string      `mapstructure:"kinds"`
}

type LogConfig struct {
	Level      string `mapstructure:"level"`
	File       string `mapstructure:"file"`
	MaxSizeMB  int    `mapstructure:"max_size_mb"`
	MaxBackups int    `mapstructure:"max_backups"`
	MaxAgeDays int    `mapstructure:"max_age_days"`
	Compress   bool   `mapstructure:"compress"`
}

func setDefaults(v *viper.Viper) {
	v.SetDefault("user.name", "")
	v.SetDefault("user.verified", false)
	v.SetDefault("user.organisation", "")

	v.SetDefault("store.adapter", "sqlite")
	v.SetDefault("store.path", "fieldbook.db")
	v.SetDefault("store.format", "json")

	v.SetDefault("remote.url", "")
	v.SetDefault("remote.token", "")
	v.SetDefault("remote.timeout", 30*time.Second)
	v.SetDefault("remote.rate", 5.0)
	v.SetDefault("remote.burst", 5)

	v.SetDefault("sync.interval", time.Duration(0))
	v.SetDefault("sync.kinds", []string{"child", "enquiry"})

	v.SetDefault("log.level", "info")
	v.SetDefault("log.file", "")
	v.SetDefault("log.max_size_mb", 10)
	v.SetDefault("log.max_backups", 3)
	v.SetDefault("log.max_age_days", 28)
	v.SetDefault("log.compress", false)
}

// Load reads configuration. With an empty path it looks for fieldbook.yaml
// in the working directory, then in the enclosing project root, then in
// $HOME/.config/fieldbook; a missing file is not an error. An explicit path
// must exist.
func Load(path string) (*Config, error) {
	if err := godotenv.Load(); err != nil && !errors.Is(err, os.ErrNotExist) {
		return nil, fmt.Errorf("failed to load .env: %w", err)
	}

	v := viper.New()
	setDefaults(v)
	v.SetEnvPrefix(EnvPrefix)
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	if path != "" {
		v.SetConfigFile(path)
	} else {
		v.SetConfigName("fieldbook")
		v.SetConfigType("yaml")
		v.AddConfigPath(".")
		if root, err := platform.FindRoot("."); err == nil {
			v.AddConfigPath(root)
		}
		if home, err := os.UserHomeDir(); err == nil {
			v.AddConfigPath(filepath.Join(home, ".config", "fieldbook"))
		}
	}

	if err := v.ReadInConfig(); err != nil {
		var notFound viper.ConfigFileNotFoundError
		if path != "" || !errors.As(err, &notFound) {
			return nil, fmt.Errorf("failed to read config: %w", err)
		}
	}

	cfg := &Config{}
	if err := v.Unmarshal(cfg); err != nil {
		return nil, fmt.Errorf("failed to decode config: %w", err)
	}
	cfg.File = v.ConfigFileUsed()
	return cfg, nil
}

// Validate rejects settings no command can run with.
func (c *Config) Validate() error {
	var errs []error
	if !slices.Contains(Adapters, c.Store.Adapter) {
		errs = append(errs, fmt.Errorf("unknown store adapter %q (want one of %s)", c.Store.Adapter, strings.Join(Adapters, ", ")))
	}
	if c.Store.Adapter == "fs" && c.Store.Format != "json" && c.Store.Format != "yaml" {
		errs = append(errs, fmt.Errorf("unknown fs format %q", c.Store.Format))
	}
	if c.Sync.Interval < 0 {
		errs = append(errs, fmt.Errorf("sync.interval must not be negative, got %s", c.Sync.Interval))
	}
	if c.Remote.Rate <= 0 {
		errs = append(errs, fmt.Errorf("remote.rate must be positive, got %g", c.Remote.Rate))
	}
	if c.Remote.Burst < 1 {
		errs = append(errs, fmt.Errorf("remote.burst must be at least 1, got %d", c.Remote.Burst))
	}
	return errors.Join(errs...)
}

// RequireUser fails when no user is configured.
func (c *Config) RequireUser() error {
	if strings.TrimSpace(c.User.Name) == "" {
		return fmt.Errorf("no user configured: set user.name or %s_USER_NAME", EnvPrefix)
	}
	return nil
}
