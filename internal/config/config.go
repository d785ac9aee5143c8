// Package config loads larch configuration.
//
// Configuration is loaded from:
// 1. .larch.yaml file (optional)
// 2. Environment variables (LARCH_ prefix, e.g. LARCH_CHECK_WORKERS)
// 3. Default values
package config

import (
	"fmt"
	"strings"

	"github.com/spf13/viper"

	"github.com/jward/larch/internal/classify"
)

// Config is the root configuration structure.
type Config struct {
	Check    CheckConfig    `mapstructure:"check"`
	Classify ClassifyConfig `mapstructure:"classify"`
	Baseline BaselineConfig `mapstructure:"baseline"`
	Log      LogConfig      `mapstructure:"log"`
}

// CheckConfig contains analysis run settings.
type CheckConfig struct {
	// Rules points at a YAML rule registry replacing the embedded one.
	Rules string `mapstructure:"rules"`
	// RulesDir holds optional Risor rule scripts (*.risor).
	RulesDir string `mapstructure:"rules_dir"`
	// Workers sets the parallel file analysis width. 0 means GOMAXPROCS.
	Workers int `mapstructure:"workers"`
	// FailOnParseError turns unparseable files into a failing exit code.
	FailOnParseError bool `mapstructure:"fail_on_parse_error"`
}

// ClassifyConfig mirrors the scope classifier's tunables. Empty slices
// fall back to the classifier defaults.
type ClassifyConfig struct {
	ToolPaths      []string `mapstructure:"tool_paths"`
	TestGlobs      []string `mapstructure:"test_globs"`
	LifecycleHooks []string `mapstructure:"lifecycle_hooks"`
	TestPrefixes   []string `mapstructure:"test_prefixes"`
	SuiteBases     []string `mapstructure:"suite_bases"`
}

// BaselineConfig contains suppression database settings.
type BaselineConfig struct {
	Path string `mapstructure:"path"`
}

// LogConfig contains logging settings.
type LogConfig struct {
	Level  string `mapstructure:"level"`
	Format string `mapstructure:"format"` // json or console
}

// ClassifierConfig converts the loaded classify section into the
// classifier's config, filling unset fields with defaults.
func (c *Config) ClassifierConfig() classify.Config {
	cfg := classify.DefaultConfig()
	if len(c.Classify.ToolPaths) > 0 {
		cfg.ToolPaths = c.Classify.ToolPaths
	}
	if len(c.Classify.TestGlobs) > 0 {
		cfg.TestGlobs = c.Classify.TestGlobs
	}
	if len(c.Classify.LifecycleHooks) > 0 {
		cfg.LifecycleHooks = c.Classify.LifecycleHooks
	}
	if len(c.Classify.TestPrefixes) > 0 {
		cfg.TestPrefixes = c.Classify.TestPrefixes
	}
	if len(c.Classify.SuiteBases) > 0 {
		cfg.SuiteBases = c.Classify.SuiteBases
	}
	return cfg
}

// Load reads configuration from file and environment variables. An explicit
// path skips file discovery; an empty path searches the working directory
// for .larch.yaml, which is optional.
func Load(path string) (*Config, error) {
	v := viper.New()

	if path != "" {
		v.SetConfigFile(path)
	} else {
		v.SetConfigName(".larch")
		v.SetConfigType("yaml")
		v.AddConfigPath(".")
	}

	v.SetEnvPrefix("LARCH")
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	setDefaults(v)

	if err := v.ReadInConfig(); err != nil {
		if _, ok := err.(viper.ConfigFileNotFoundError); !ok {
			return nil, fmt.Errorf("read config: %w", err)
		}
		// Config file is optional, use defaults and env vars
	}

	var cfg Config
	if err := v.Unmarshal(&cfg); err != nil {
		return nil, fmt.Errorf("unmarshal config: %w", err)
	}

	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return &cfg, nil
}

// Validate checks for configuration errors that would only surface late.
func (c *Config) Validate() error {
	if c.Check.Workers < 0 {
		return fmt.Errorf("check.workers must not be negative")
	}
	switch c.Log.Format {
	case "json", "console":
	default:
		return fmt.Errorf("log.format must be json or console, got %q", c.Log.Format)
	}
	return nil
}

func setDefaults(v *viper.Viper) {
	v.SetDefault("check.rules", "")
	v.SetDefault("check.rules_dir", "")
	v.SetDefault("check.workers", 0)
	v.SetDefault("check.fail_on_parse_error", false)

	v.SetDefault("baseline.path", ".larch-baseline.db")

	v.SetDefault("log.level", "warn")
	v.SetDefault("log.format", "console")
}
