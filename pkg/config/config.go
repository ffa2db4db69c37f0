// Package config handles configuration for guilocator.
package config

import (
	"fmt"
	"os"
	"path/filepath"
	"time"

	"github.com/caarlos0/env/v11"
	"gopkg.in/yaml.v3"

	"github.com/devicelab-dev/guilocator/pkg/cache"
	"github.com/devicelab-dev/guilocator/pkg/core"
	"github.com/devicelab-dev/guilocator/pkg/locator"
)

// File names searched by LoadFromDir, in order.
var FileNames = []string{"guilocator.yaml", "guilocator.yml"}

// Config represents the workspace configuration (guilocator.yaml).
// Every field can be overridden from the environment.
type Config struct {
	Toolkit   string `yaml:"toolkit" env:"LOCATOR_TOOLKIT"`     // swing, swt or rcp
	ClassMap  string `yaml:"classMap" env:"LOCATOR_CLASS_MAP"`  // YAML class-name table
	Hierarchy string `yaml:"hierarchy" env:"LOCATOR_HIERARCHY"` // JSON component tree for offline finds

	LogFile  string `yaml:"logFile" env:"LOCATOR_LOG_FILE"`
	LogLevel string `yaml:"logLevel" env:"LOCATOR_LOG_LEVEL"`

	Cache Cache `yaml:"cache" envPrefix:"LOCATOR_CACHE_"`
	Agent Agent `yaml:"agent" envPrefix:"LOCATOR_AGENT_"`
}

// Agent locates a running agent for live finds.
type Agent struct {
	Addr    string        `yaml:"addr" env:"ADDR"`       // host:port
	Timeout time.Duration `yaml:"timeout" env:"TIMEOUT"` // per call; zero means the client default
}

// Cache sizes the cache layers. Zero values mean "use the default".
type Cache struct {
	Parse     Layer `yaml:"parse" envPrefix:"PARSE_"`
	Normalize Layer `yaml:"normalize" envPrefix:"NORMALIZE_"`
	Element   Layer `yaml:"element" envPrefix:"ELEMENT_"`
	Finder    Layer `yaml:"finder" envPrefix:"FINDER_"`
}

// Layer sizes one cache layer. A negative TTL disables expiry.
type Layer struct {
	Capacity int           `yaml:"capacity" env:"CAPACITY"`
	TTL      time.Duration `yaml:"ttl" env:"TTL"`
}

// Load loads configuration from a file and applies environment overrides.
func Load(path string) (*Config, error) {
	data, err := os.ReadFile(path) //#nosec G304 -- user-provided config file
	if err != nil {
		return nil, err
	}

	var cfg Config
	if err := yaml.Unmarshal(data, &cfg); err != nil {
		return nil, fmt.Errorf("parse %s: %w", path, err)
	}
	if cfg.ClassMap != "" && !filepath.IsAbs(cfg.ClassMap) {
		cfg.ClassMap = filepath.Join(filepath.Dir(path), cfg.ClassMap)
	}
	if cfg.Hierarchy != "" && !filepath.IsAbs(cfg.Hierarchy) {
		cfg.Hierarchy = filepath.Join(filepath.Dir(path), cfg.Hierarchy)
	}

	if err := ApplyEnv(&cfg); err != nil {
		return nil, err
	}
	return &cfg, cfg.Validate()
}

// LoadFromDir looks for guilocator.yaml or guilocator.yml in the directory.
// Without a file, only environment overrides apply.
func LoadFromDir(dir string) (*Config, error) {
	for _, name := range FileNames {
		path := filepath.Join(dir, name)
		if _, err := os.Stat(path); err == nil {
			return Load(path)
		}
	}

	cfg := &Config{}
	if err := ApplyEnv(cfg); err != nil {
		return nil, err
	}
	return cfg, cfg.Validate()
}

// ApplyEnv overrides cfg with LOCATOR_* environment variables. Unset
// variables leave the current value alone.
func ApplyEnv(cfg *Config) error {
	if err := env.Parse(cfg); err != nil {
		return fmt.Errorf("environment: %w", err)
	}
	return nil
}

// Validate checks values that cannot be defaulted.
func (c *Config) Validate() error {
	if c.Toolkit != "" {
		if _, err := core.ParseToolkit(c.Toolkit); err != nil {
			return fmt.Errorf("config toolkit: %w", err)
		}
	}
	for name, l := range map[string]Layer{
		"parse":     c.Cache.Parse,
		"normalize": c.Cache.Normalize,
		"element":   c.Cache.Element,
		"finder":    c.Cache.Finder,
	} {
		if l.Capacity < 0 {
			return fmt.Errorf("config cache.%s.capacity: must not be negative, got %d", name, l.Capacity)
		}
	}
	if c.Agent.Timeout < 0 {
		return fmt.Errorf("config agent.timeout: must not be negative, got %v", c.Agent.Timeout)
	}
	return nil
}

// ToolkitOrDefault returns the configured toolkit, or def when unset.
func (c *Config) ToolkitOrDefault(def core.Toolkit) core.Toolkit {
	if c.Toolkit == "" {
		return def
	}
	tk, err := core.ParseToolkit(c.Toolkit)
	if err != nil {
		return def
	}
	return tk
}

// CacheConfig converts the cache section, loading the class map if one is
// configured.
func (c *Config) CacheConfig() (cache.Config, error) {
	cc := cache.Config{
		Parse:     cache.Limits(c.Cache.Parse),
		Normalize: cache.Limits(c.Cache.Normalize),
		Element:   cache.Limits(c.Cache.Element),
		Finder:    cache.Limits(c.Cache.Finder),
	}
	if c.ClassMap != "" {
		m, err := locator.LoadClassMap(c.ClassMap)
		if err != nil {
			return cache.Config{}, err
		}
		cc.ClassMap = m
	}
	return cc, nil
}
