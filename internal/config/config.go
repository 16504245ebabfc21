package config

import (
	"errors"
	"fmt"
	"time"

	"github.com/spf13/viper"
)

// Progress rendering modes
const (
	ProgressAuto   = "auto"
	ProgressAlways = "always"
	ProgressNever  = "never"
)

// Config holds the tunables of a transfer. Every key is optional; the defaults
// reproduce a plain single-attempt dump with interactive progress on terminals.
type Config struct {
	Read     ReadConfig     `mapstructure:"read"`
	Progress ProgressConfig `mapstructure:"progress"`
	Log      LogConfig      `mapstructure:"log"`
	Output   OutputConfig   `mapstructure:"output"`
}

// ReadConfig controls how transient sector read failures are retried
type ReadConfig struct {
	Retries    uint          `mapstructure:"retries"`
	RetryDelay time.Duration `mapstructure:"retry_delay"`
}

// ProgressConfig controls the range display on the diagnostic stream
type ProgressConfig struct {
	Interactive string `mapstructure:"interactive"`
}

// LogConfig controls the structured log and its optional rotating file
type LogConfig struct {
	Level      string `mapstructure:"level"`
	File       string `mapstructure:"file"`
	MaxSizeMB  int    `mapstructure:"max_size_mb"`
	MaxBackups int    `mapstructure:"max_backups"`
	Compress   bool   `mapstructure:"compress"`
}

// OutputConfig controls the output sink. Sectors are written unbuffered so a
// failing sink stops the transfer at the sector that could not be written.
type OutputConfig struct {
	Digest bool `mapstructure:"digest"`
}

// SetDefaults registers the default value of every key
func SetDefaults(v *viper.Viper) {
	v.SetDefault("read.retries", 1)
	v.SetDefault("read.retry_delay", 50*time.Millisecond)
	v.SetDefault("progress.interactive", ProgressAuto)
	v.SetDefault("log.level", "info")
	v.SetDefault("log.file", "")
	v.SetDefault("log.max_size_mb", 10)
	v.SetDefault("log.max_backups", 3)
	v.SetDefault("log.compress", false)
	v.SetDefault("output.digest", false)
}

// Load reads the configuration. An explicit configFile must exist; otherwise
// dvdread-config.yaml is looked up in the usual places and its absence is not an error.
func Load(configFile string) (*Config, error) {
	v := viper.New()
	SetDefaults(v)

	if configFile != "" {
		v.SetConfigFile(configFile)
	} else {
		v.SetConfigName("dvdread-config")
		v.SetConfigType("yaml")
		v.AddConfigPath(".")
		v.AddConfigPath("./config")
		v.AddConfigPath("$HOME/.dvdread")
		v.AddConfigPath("/etc/dvdread")
	}

	v.SetEnvPrefix("DVDREAD")
	v.AutomaticEnv()

	if err := v.ReadInConfig(); err != nil {
		var notFound viper.ConfigFileNotFoundError
		if configFile != "" || !errors.As(err, &notFound) {
			return nil, fmt.Errorf("error reading config file: %w", err)
		}
	}

	return Unmarshal(v)
}

// Unmarshal decodes and validates the configuration held by v
func Unmarshal(v *viper.Viper) (*Config, error) {
	var cfg Config
	if err := v.Unmarshal(&cfg); err != nil {
		return nil, fmt.Errorf("error unmarshaling config: %w", err)
	}
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return &cfg, nil
}

// Default returns the configuration used when nothing is configured
func Default() *Config {
	v := viper.New()
	SetDefaults(v)
	cfg, err := Unmarshal(v)
	if err != nil {
		panic(err)
	}
	return cfg
}

// Validate checks value ranges
func (c *Config) Validate() error {
	if c.Read.Retries < 1 {
		return fmt.Errorf("read.retries must be at least 1, got %d", c.Read.Retries)
	}
	if c.Read.RetryDelay < 0 {
		return fmt.Errorf("read.retry_delay must not be negative")
	}
	switch c.Progress.Interactive {
	case ProgressAuto, ProgressAlways, ProgressNever:
	default:
		return fmt.Errorf("progress.interactive must be one of auto, always, never; got %q", c.Progress.Interactive)
	}
	switch c.Log.Level {
	case "debug", "info", "warn", "error":
	default:
		return fmt.Errorf("log.level must be one of debug, info, warn, error; got %q", c.Log.Level)
	}
	return nil
}
