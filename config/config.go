// Package config loads server and allocation configuration from an optional
// YAML file with sensible defaults, so the number and split of units is
// configuration rather than a constant baked into the engine.
package config

import (
	"fmt"
	"os"

	"github.com/shopspring/decimal"
	"gopkg.in/yaml.v3"

	"github.com/hausnet/splitmeter/billing"
)

// Config is the full server configuration.
type Config struct {
	Port   int    `yaml:"port"`
	DBPath string `yaml:"db_path"`

	// Units maps unit identifiers to their fixed-fee shares. Shares should
	// sum to 1.
	Units map[string]string `yaml:"units"`

	// DayRatio/NightRatio form the default day/night split for fallback
	// pricing and for usage without a recorded split.
	DayRatio   string `yaml:"day_ratio"`
	NightRatio string `yaml:"night_ratio"`

	// AutoBilling enables the monthly scheduler.
	AutoBilling bool `yaml:"auto_billing"`
}

// Default returns the historical configuration: three units with equal
// shares, 0.7/0.3 day/night.
func Default() Config {
	return Config{
		Port:   8080,
		DBPath: "splitmeter.db",
		Units: map[string]string{
			string(billing.UnitUpper):         "0.3333",
			string(billing.UnitLowerResidual): "0.3333",
			string(billing.UnitNested):        "0.3333",
		},
		DayRatio:   "0.7",
		NightRatio: "0.3",
	}
}

// Load reads the YAML file at path over the defaults. An empty path returns
// the defaults unchanged.
func Load(path string) (Config, error) {
	cfg := Default()
	if path == "" {
		return cfg, nil
	}
	data, err := os.ReadFile(path)
	if err != nil {
		return cfg, fmt.Errorf("read config: %w", err)
	}
	if err := yaml.Unmarshal(data, &cfg); err != nil {
		return cfg, fmt.Errorf("parse config: %w", err)
	}
	return cfg, nil
}

// Allocation converts the configured ratios into the engine's injected
// allocation configuration.
func (c Config) Allocation() (billing.AllocationConfig, error) {
	shares := make(map[billing.UnitID]decimal.Decimal, len(c.Units))
	for unit, share := range c.Units {
		d, err := decimal.NewFromString(share)
		if err != nil {
			return billing.AllocationConfig{}, fmt.Errorf("unit %s share %q: %w", unit, share, err)
		}
		shares[billing.UnitID(unit)] = d
	}
	day, err := decimal.NewFromString(c.DayRatio)
	if err != nil {
		return billing.AllocationConfig{}, fmt.Errorf("day ratio %q: %w", c.DayRatio, err)
	}
	night, err := decimal.NewFromString(c.NightRatio)
	if err != nil {
		return billing.AllocationConfig{}, fmt.Errorf("night ratio %q: %w", c.NightRatio, err)
	}
	return billing.AllocationConfig{Shares: shares, DayRatio: day, NightRatio: night}, nil
}
