package commands

import (
	"fmt"
	"os"

	"github.com/wolfeidau/foundation/internal/store/postgres"
	"gopkg.in/yaml.v3"
)

type Globals struct {
	Debug   bool
	Version string
}

// Config is the operator CLI configuration file.
type Config struct {
	Postgres postgres.PoolConfig `yaml:"postgres"`
}

func loadConfig(path string) (*Config, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("failed to read config %s: %w", path, err)
	}

	cfg := &Config{}
	if err := yaml.Unmarshal(data, cfg); err != nil {
		return nil, fmt.Errorf("failed to parse config %s: %w", path, err)
	}

	if err := cfg.Postgres.Validate(); err != nil {
		return nil, err
	}
	cfg.Postgres.ApplyDefaults()

	return cfg, nil
}
