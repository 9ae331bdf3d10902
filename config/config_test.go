package config_test

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/hausnet/splitmeter/billing"
	"github.com/hausnet/splitmeter/config"
)

func TestLoad_EmptyPath_Defaults(t *testing.T) {
	cfg, err := config.Load("")
	require.NoError(t, err)

	assert.Equal(t, 8080, cfg.Port)
	assert.Equal(t, "splitmeter.db", cfg.DBPath)
	assert.Len(t, cfg.Units, 3)
}

func TestLoad_YAMLOverridesDefaults(t *testing.T) {
	path := filepath.Join(t.TempDir(), "splitmeter.yaml")
	yaml := []byte(`
port: 9090
db_path: /tmp/test.db
day_ratio: "0.6"
night_ratio: "0.4"
auto_billing: true
`)
	require.NoError(t, os.WriteFile(path, yaml, 0o644))

	cfg, err := config.Load(path)
	require.NoError(t, err)

	assert.Equal(t, 9090, cfg.Port)
	assert.Equal(t, "/tmp/test.db", cfg.DBPath)
	assert.True(t, cfg.AutoBilling)
	// Units untouched by the overlay keep their defaults.
	assert.Len(t, cfg.Units, 3)
}

func TestLoad_MissingFile_Errors(t *testing.T) {
	_, err := config.Load("/nonexistent/splitmeter.yaml")
	assert.Error(t, err)
}

func TestAllocation_ConvertsRatios(t *testing.T) {
	cfg, err := config.Load("")
	require.NoError(t, err)

	alloc, err := cfg.Allocation()
	require.NoError(t, err)

	assert.True(t, alloc.DayRatio.Equal(billing.MustDecimal("0.7")))
	assert.True(t, alloc.NightRatio.Equal(billing.MustDecimal("0.3")))
	assert.True(t, alloc.Share(billing.UnitUpper).Equal(billing.MustDecimal("0.3333")))
}

func TestAllocation_BadShare_Errors(t *testing.T) {
	cfg := config.Default()
	cfg.Units[string(billing.UnitUpper)] = "a-third"

	_, err := cfg.Allocation()
	assert.Error(t, err)
}
