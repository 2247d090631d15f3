// Package config loads runtime configuration from the environment.
package config

import (
	"fmt"

	"github.com/kelseyhightower/envconfig"
)

type Config struct {
	App struct {
		Port     int    `envconfig:"PORT" default:"8080"`
		LogLevel string `envconfig:"LOG_LEVEL" default:"info"`
	}

	DB struct {
		Path string `envconfig:"DB_PATH" default:"absence.db"`
	}

	Absence struct {
		// YearlyAllowance is the fixed vacation credit granted once per
		// employee per year.
		YearlyAllowance int  `envconfig:"YEARLY_ALLOWANCE" default:"25"`
		SeedDemoData    bool `envconfig:"SEED_DEMO_DATA" default:"true"`
	}
}

func Load() (*Config, error) {
	var cfg Config
	if err := envconfig.Process("", &cfg); err != nil {
		return nil, fmt.Errorf("failed to process config: %w", err)
	}
	return &cfg, nil
}
