package config

import (
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/spf13/viper"

	"github.com/axondata/go-supervise"
	"github.com/axondata/go-supervise/internal/logger"
)

// EnvPrefix prefixes every environment override except ServiceDirEnv
const EnvPrefix = "SUPERVISE"

// ServiceDirEnv overrides the base service directory, as the runit tools do
const ServiceDirEnv = "SERVICE_DIR"

// Config is the resolved configuration of svctl and its HTTP server.
type Config struct {
	ServiceDir string        `mapstructure:"service_dir"`
	Services   []string      `mapstructure:"services"`
	Log        LogConfig     `mapstructure:"log"`
	HTTP       HTTPConfig    `mapstructure:"http"`
	Manager    ManagerConfig `mapstructure:"manager"`
}

type LogConfig struct {
	Level      string `mapstructure:"level"`
	Pretty     bool   `mapstructure:"pretty"`
	File       string `mapstructure:"file"`
	MaxSizeMB  int    `mapstructure:"max_size_mb"`
	MaxBackups int    `mapstructure:"max_backups"`
	MaxAgeDays int    `mapstructure:"max_age_days"`
	Compress   bool   `mapstructure:"compress"`
}

type HTTPConfig struct {
	Listen          string        `mapstructure:"listen"`
	ShutdownTimeout time.Duration `mapstructure:"shutdown_timeout"`
	RequestTimeout  time.Duration `mapstructure:"request_timeout"`
}

type ManagerConfig struct {
	Concurrency int           `mapstructure:"concurrency"`
	Timeout     time.Duration `mapstructure:"timeout"`
}

// SetDefaults registers the default value of every key on v
func SetDefaults(v *viper.Viper) {
	v.SetDefault("service_dir", supervise.DefaultServiceDir)
	v.SetDefault("services", []string{})

	v.SetDefault("log.level", "info")
	v.SetDefault("log.pretty", false)
	v.SetDefault("log.file", "")
	v.SetDefault("log.max_size_mb", logger.DefaultMaxSizeMB)
	v.SetDefault("log.max_backups", logger.DefaultMaxBackups)
	v.SetDefault("log.max_age_days", logger.DefaultMaxAgeDays)
	v.SetDefault("log.compress", false)

	v.SetDefault("http.listen", ":8080")
	v.SetDefault("http.shutdown_timeout", 5*time.Second)
	v.SetDefault("http.request_timeout", 10*time.Second)

	v.SetDefault("manager.concurrency", 10)
	v.SetDefault("manager.timeout", 5*time.Second)
}

// NewViper returns a viper instance with defaults and environment
// bindings in place. SUPERVISE_LOG_LEVEL maps to log.level and so on;
// SERVICE_DIR takes precedence over SUPERVISE_SERVICE_DIR.
func NewViper() *viper.Viper {
	v := viper.New()
	SetDefaults(v)

	v.SetEnvPrefix(EnvPrefix)
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()
	_ = v.BindEnv("service_dir", ServiceDirEnv, EnvPrefix+"_SERVICE_DIR")

	return v
}

// Load reads the optional config file at path (YAML, TOML or JSON by
// extension) over the defaults and applies environment overrides.
func Load(path string) (*Config, error) {
	v := NewViper()
	if path != "" {
		v.SetConfigFile(path)
		if err := v.ReadInConfig(); err != nil {
			return nil, fmt.Errorf("read config %s: %w", path, err)
		}
	}
	return FromViper(v)
}

// FromViper decodes and validates the configuration held by v
func FromViper(v *viper.Viper) (*Config, error) {
	var cfg Config
	if err := v.Unmarshal(&cfg); err != nil {
		return nil, fmt.Errorf("decode config: %w", err)
	}
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return &cfg, nil
}

// Validate reports the first invalid setting
func (c *Config) Validate() error {
	if c.ServiceDir == "" {
		return errors.New("service_dir must not be empty")
	}
	seen := make(map[string]int, len(c.Services))
	for i, name := range c.Services {
		if strings.TrimSpace(name) == "" {
			return fmt.Errorf("services[%d] is empty", i)
		}
		if j, dup := seen[name]; dup {
			return fmt.Errorf("services[%d] %q duplicates services[%d]", i, name, j)
		}
		seen[name] = i
	}
	switch c.Log.Level {
	case "debug", "info", "warn", "error":
	default:
		return fmt.Errorf("log.level %q is not one of debug, info, warn, error", c.Log.Level)
	}
	if c.Manager.Concurrency < 1 {
		return fmt.Errorf("manager.concurrency must be at least 1, got %d", c.Manager.Concurrency)
	}
	if c.Manager.Timeout < 0 {
		return errors.New("manager.timeout must not be negative")
	}
	if c.HTTP.RequestTimeout < 0 || c.HTTP.ShutdownTimeout < 0 {
		return errors.New("http timeouts must not be negative")
	}
	return nil
}

// Supervise returns the library configuration
func (c *Config) Supervise() supervise.Config {
	return supervise.Config{BaseDir: c.ServiceDir}
}

// NewManager builds a bulk-operation manager from the manager settings
func (c *Config) NewManager() *supervise.Manager {
	return supervise.NewManager(
		supervise.WithConcurrency(c.Manager.Concurrency),
		supervise.WithTimeout(c.Manager.Timeout),
		supervise.WithManagerConfig(c.Supervise()),
	)
}

// LogFile returns the rotation settings of the optional log file
func (c *Config) LogFile() logger.FileConfig {
	return logger.FileConfig{
		Path:       c.Log.File,
		MaxSizeMB:  c.Log.MaxSizeMB,
		MaxBackups: c.Log.MaxBackups,
		MaxAgeDays: c.Log.MaxAgeDays,
		Compress:   c.Log.Compress,
	}
}

// NewLogger builds the logger described by the log settings
func (c *Config) NewLogger() logger.Logger {
	return logger.NewWithFile(c.Log.Level, c.Log.Pretty, c.LogFile())
}
