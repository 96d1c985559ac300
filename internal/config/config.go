package config

import (
	"os"
	"path/filepath"

	"github.com/gookit/validate"
	"github.com/spf13/pflag"
	"github.com/spf13/viper"

	"codeberg.org/kaibil/xark/internal/errors"
)

const (
	defaultDatabase     = "/var/lib/xark/xark.db"
	defaultIdentityFile = "/home/.devkey.html"
	defaultSyncInterval = 10
	defaultHTTPTimeout  = 30
	defaultWindowStart  = "06:00"
	defaultWindowEnd    = "18:00"
)

// Config holds all runtime settings for a single agent invocation.
type Config struct {
	ServerURL       string   `mapstructure:"server_url" validate:"required"`
	User            string   `mapstructure:"user" validate:"required"`
	Interface       string   `mapstructure:"interface" validate:"required"`
	WorkingDir      string   `mapstructure:"working_dir" validate:"required"`
	JournalDir      string   `mapstructure:"journal_dir"`
	IdentityFile    string   `mapstructure:"identity_file" validate:"required"`
	Database        string   `mapstructure:"database" validate:"required"`
	SyncInterval    int      `mapstructure:"sync_interval" validate:"min:1"`
	SyncMaxAttempts int      `mapstructure:"sync_max_attempts" validate:"min:0"`
	HTTPTimeout     int      `mapstructure:"http_timeout" validate:"min:1"`
	WindowStart     string   `mapstructure:"window_start" validate:"required"`
	WindowEnd       string   `mapstructure:"window_end" validate:"required"`
	WindowDays      []string `mapstructure:"window_days"`
	Debug           bool     `mapstructure:"debug"`
	Verbose         bool     `mapstructure:"verbose"`
}

// Load reads configuration from flags, environment and the config file.
// Precedence: flags > environment > file > defaults.
func Load(args []string) (*Config, error) {
	errFactory := errors.New()

	fs := pflag.NewFlagSet("xark", pflag.ContinueOnError)
	configPath := fs.String("config", "", "Path to config file")
	fs.Bool("debug", false, "Enable debugging mode")
	fs.Bool("verbose", false, "Enable verbose logging")
	fs.String("server-url", "", "Remote collector base URL")
	fs.String("database", "", "Path to the local database")
	fs.Int("sync-interval", 0, "Seconds between synchronization attempts")
	if err := fs.Parse(args); err != nil {
		return nil, errFactory.Wrap(errors.ErrBindFlags, err)
	}

	v := viper.New()
	v.SetDefault("identity_file", defaultIdentityFile)
	v.SetDefault("database", defaultDatabase)
	v.SetDefault("sync_interval", defaultSyncInterval)
	v.SetDefault("sync_max_attempts", 0)
	v.SetDefault("http_timeout", defaultHTTPTimeout)
	v.SetDefault("window_start", defaultWindowStart)
	v.SetDefault("window_end", defaultWindowEnd)
	v.SetDefault("window_days", []string{"mon", "tue", "wed", "thu", "fri"})

	if *configPath == "" {
		*configPath = os.Getenv("XARK_CONFIG")
	}
	if *configPath != "" {
		v.SetConfigFile(*configPath)
	} else {
		v.SetConfigName("xark")
		v.SetConfigType("toml")
		v.AddConfigPath("/etc/xark")
		v.AddConfigPath(".")
	}

	v.SetEnvPrefix("XARK")
	v.AutomaticEnv()

	if err := v.ReadInConfig(); err != nil {
		// A missing implicit config file is fine; everything else is not.
		if _, notFound := err.(viper.ConfigFileNotFoundError); !notFound || *configPath != "" {
			return nil, errFactory.Wrap(errors.ErrReadConfig, err)
		}
	}

	bindings := map[string]string{
		"debug":         "debug",
		"verbose":       "verbose",
		"server_url":    "server-url",
		"database":      "database",
		"sync_interval": "sync-interval",
	}
	for key, name := range bindings {
		if err := v.BindPFlag(key, fs.Lookup(name)); err != nil {
			return nil, errFactory.Wrap(errors.ErrBindFlags, err)
		}
	}

	cfg := &Config{}
	if err := v.Unmarshal(cfg); err != nil {
		return nil, errFactory.Wrap(errors.ErrReadConfig, err)
	}

	if cfg.JournalDir == "" && cfg.WorkingDir != "" {
		cfg.JournalDir = filepath.Join(cfg.WorkingDir, ".sugar", "default", "datastore")
	}

	if err := cfg.Validate(); err != nil {
		return nil, err
	}

	return cfg, nil
}

// Validate checks the loaded configuration for completeness.
func (c *Config) Validate() error {
	vd := validate.Struct(c)
	if !vd.Validate() {
		return errors.New().Wrap(errors.ErrInvalidConfig, vd.Errors)
	}
	return nil
}
