// Package config loads the service configuration from a YAML or JSON file
// with environment overrides.
package config

import (
	"fmt"
	"path/filepath"
	"strings"

	"github.com/knadh/koanf/parsers/json"
	"github.com/knadh/koanf/parsers/yaml"
	"github.com/knadh/koanf/providers/env"
	"github.com/knadh/koanf/providers/file"
	"github.com/knadh/koanf/v2"

	"github.com/WubeDegife/Microgrid-Optimization/core/dispatch"
	"github.com/WubeDegife/Microgrid-Optimization/core/factory"
	"github.com/WubeDegife/Microgrid-Optimization/core/metrics"
	"github.com/WubeDegife/Microgrid-Optimization/infra/mqtt"
)

// EnvPrefix marks environment overrides. MG_SOLVER__MAX_BLOCK_ROWS=900 sets
// solver.max_block_rows.
const EnvPrefix = "MG_"

type Config struct {
	Assets  AssetsConfig         `json:"assets"`
	Solver  dispatch.Config      `json:"solver"`
	Data    DataConfig           `json:"data"`
	Metrics metrics.Config       `json:"metrics"`
	Ratings factory.ModuleConfig `json:"ratings"`
	// MQTT publishing is enabled when a broker is set.
	MQTT    mqtt.Config   `json:"mqtt"`
	API     APIConfig     `json:"api"`
	Logging LoggingConfig `json:"logging"`
}

// Default returns a configuration with every default applied and no data
// sources.
func Default() *Config {
	var c Config
	c.SetDefaults()
	return &c
}

func (c *Config) SetDefaults() {
	c.Assets.SetDefaults()
	c.Solver.SetDefaults()
	c.Data.SetDefaults()
	c.API.SetDefaults()
	c.Logging.SetDefaults()
	if c.MQTT.Broker != "" {
		c.MQTT.SetDefaults()
	}
}

// Validate checks every section. Errors carry the offending key.
func (c *Config) Validate() error {
	if err := c.Assets.Validate(); err != nil {
		return err
	}
	if err := c.Solver.Validate(); err != nil {
		return err
	}
	if err := c.Data.Validate(); err != nil {
		return err
	}
	if err := c.Metrics.Validate(); err != nil {
		return err
	}
	if c.MQTT.Broker != "" {
		if err := c.MQTT.Validate(); err != nil {
			return err
		}
	}
	if err := c.API.Validate(); err != nil {
		return err
	}
	return c.Logging.Validate()
}

// Load reads path, applies MG_ environment overrides, fills defaults and
// validates the result.
func Load(path string) (*Config, error) {
	k := koanf.New(".")
	ext := strings.ToLower(filepath.Ext(path))
	var parser koanf.Parser
	switch ext {
	case ".yaml", ".yml":
		parser = yaml.Parser()
	case ".json":
		parser = json.Parser()
	default:
		return nil, fmt.Errorf("unsupported config format: %s", ext)
	}
	if err := k.Load(file.Provider(path), parser); err != nil {
		return nil, fmt.Errorf("load %s: %w", path, err)
	}
	if err := k.Load(env.Provider(EnvPrefix, ".", envKey), nil); err != nil {
		return nil, err
	}
	var cfg Config
	if err := k.UnmarshalWithConf("", &cfg, koanf.UnmarshalConf{Tag: "json"}); err != nil {
		return nil, err
	}
	cfg.SetDefaults()
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return &cfg, nil
}

func envKey(s string) string {
	s = strings.TrimPrefix(strings.ToLower(s), strings.ToLower(EnvPrefix))
	return strings.ReplaceAll(s, "__", ".")
}
