package main

import (
	"fmt"
	"log/slog"
	"os"
	"strings"

	"gopkg.in/yaml.v3"

	"github.com/sandrolain/gojmespath"
	"github.com/sandrolain/gojmespath/pkg/functions"
	"github.com/sandrolain/gojmespath/pkg/parser"
	"github.com/sandrolain/gojmespath/pkg/transform"
)

// Config is the jpparse configuration file.
//
//	max_depth: 128
//	cache_size: 512
//	filter_projections: true
//	flatten_projections: true
//	log_level: debug
//	functions:
//	  - name: upper
//	    min: 1
//	  - name: concat
//	    min: 1
//	    variadic: true
type Config struct {
	MaxDepth           int              `yaml:"max_depth"`
	CacheSize          int              `yaml:"cache_size"`
	FilterProjections  bool             `yaml:"filter_projections"`
	FlattenProjections bool             `yaml:"flatten_projections"`
	LogLevel           string           `yaml:"log_level"`
	Functions          []FunctionConfig `yaml:"functions"`
}

// FunctionConfig declares a custom function signature.
type FunctionConfig struct {
	Name     string `yaml:"name"`
	Min      int    `yaml:"min"`
	Variadic bool   `yaml:"variadic"`
}

// DefaultConfig returns the configuration used when no file is given.
func DefaultConfig() *Config {
	return &Config{
		MaxDepth:           parser.DefaultMaxDepth,
		CacheSize:          256,
		FilterProjections:  true,
		FlattenProjections: true,
		LogLevel:           "warn",
	}
}

// LoadConfig reads a YAML configuration file on top of the defaults.
// An empty path returns the defaults.
func LoadConfig(path string) (*Config, error) {
	cfg := DefaultConfig()
	if path == "" {
		return cfg, nil
	}

	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("failed to read config: %w", err)
	}
	if err := yaml.Unmarshal(data, cfg); err != nil {
		return nil, fmt.Errorf("failed to parse config: %w", err)
	}
	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("invalid config %s: %w", path, err)
	}
	return cfg, nil
}

// Validate checks the values that cannot be corrected silently.
func (c *Config) Validate() error {
	if c.MaxDepth < 0 {
		return fmt.Errorf("max_depth must not be negative, got %d", c.MaxDepth)
	}
	if c.CacheSize < 0 {
		return fmt.Errorf("cache_size must not be negative, got %d", c.CacheSize)
	}
	if _, err := c.Level(); err != nil {
		return err
	}
	for i, fn := range c.Functions {
		if strings.TrimSpace(fn.Name) == "" {
			return fmt.Errorf("functions[%d]: missing name", i)
		}
		if fn.Min < 0 {
			return fmt.Errorf("function %s: min must not be negative", fn.Name)
		}
	}
	return nil
}

// Level parses LogLevel ("debug", "info", "warn", "error").
func (c *Config) Level() (slog.Level, error) {
	var level slog.Level
	if c.LogLevel == "" {
		return slog.LevelWarn, nil
	}
	if err := level.UnmarshalText([]byte(c.LogLevel)); err != nil {
		return 0, fmt.Errorf("log_level: %w", err)
	}
	return level, nil
}

// Registry returns the built-in signatures extended with the configured
// custom functions.
func (c *Config) Registry() (*functions.Registry, error) {
	reg := functions.Builtins()
	for _, fn := range c.Functions {
		arity := functions.Fixed(fn.Min)
		if fn.Variadic {
			arity = functions.AtLeast(fn.Min)
		}
		if err := reg.Register(functions.Signature{Name: fn.Name, Arity: arity}); err != nil {
			return nil, err
		}
	}
	return reg, nil
}

// CompilerOptions translates the configuration into facade options.
func (c *Config) CompilerOptions(reg functions.Table, logger *slog.Logger) []gojmespath.Option {
	return []gojmespath.Option{
		gojmespath.WithMaxDepth(c.MaxDepth),
		gojmespath.WithCacheSize(c.CacheSize),
		gojmespath.WithFunctions(reg),
		gojmespath.WithLogger(logger),
		gojmespath.WithTransformOptions(
			transform.WithFilterProjections(c.FilterProjections),
			transform.WithFlattenProjections(c.FlattenProjections),
		),
	}
}
