package config

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
)

func chdirTemp(t *testing.T) string {
	t.Helper()
	dir := t.TempDir()
	origDir, _ := os.Getwd()
	require.NoError(t, os.Chdir(dir))
	t.Cleanup(func() { _ = os.Chdir(origDir) })
	return dir
}

func TestLoadDefaults(t *testing.T) {
	// Change to temp dir so no config.yaml is found
	chdirTemp(t)

	cfg, err := Load()
	require.NoError(t, err)

	assert.Equal(t, "DB/Empresas.xlsx", cfg.Registry.Path)
	assert.True(t, cfg.Registry.SearchParents)
	assert.Equal(t, "json", cfg.Decisions.Driver)
	assert.Equal(t, "DB/company_resolution_decisions.json", cfg.Decisions.Path)
	assert.Equal(t, "PrestacionesMap.csv", cfg.Dictionary.Path)
	assert.Equal(t, "iso-8859-1", cfg.Source.Encoding)
	assert.Equal(t, 50, cfg.Source.MaxSheets)
	assert.Equal(t, 20, cfg.Source.HeaderScanRows)
	assert.Equal(t, 250, cfg.Pipeline.ProgressEvery)
	assert.Empty(t, cfg.Lookup.URLTemplate)
	assert.Equal(t, 30*time.Second, cfg.Lookup.Timeout())
	assert.InDelta(t, 1.0, cfg.Lookup.RatePerSec, 0.001)
	assert.Equal(t, 3, cfg.Lookup.MaxAttempts)
	assert.Equal(t, "info", cfg.Log.Level)
	assert.Equal(t, "console", cfg.Log.Format)
}

func TestLoadFromYAML(t *testing.T) {
	dir := chdirTemp(t)

	yaml := `
registry:
  path: data/companies.xlsx
  search_parents: false
decisions:
  driver: sqlite
  path: data/decisions.db
log:
  level: debug
  format: json
`
	require.NoError(t, os.WriteFile(filepath.Join(dir, "config.yaml"), []byte(yaml), 0o644))

	cfg, err := Load()
	require.NoError(t, err)

	assert.Equal(t, "data/companies.xlsx", cfg.Registry.Path)
	assert.False(t, cfg.Registry.SearchParents)
	assert.Equal(t, "sqlite", cfg.Decisions.Driver)
	assert.Equal(t, "data/decisions.db", cfg.Decisions.Path)
	assert.Equal(t, "debug", cfg.Log.Level)
	// Defaults still apply for unset values
	assert.Equal(t, 50, cfg.Source.MaxSheets)
}

func TestLoadEnvOverridesFile(t *testing.T) {
	dir := chdirTemp(t)

	yaml := `
log:
  level: debug
`
	require.NoError(t, os.WriteFile(filepath.Join(dir, "config.yaml"), []byte(yaml), 0o644))
	t.Setenv("ORDERS_LOG_LEVEL", "warn")
	t.Setenv("ORDERS_DICTIONARY_PATH", "/srv/map.yaml")

	cfg, err := Load()
	require.NoError(t, err)
	assert.Equal(t, "warn", cfg.Log.Level)
	assert.Equal(t, "/srv/map.yaml", cfg.Dictionary.Path)
}

func TestLoadRejectsUnknownDriver(t *testing.T) {
	chdirTemp(t)
	t.Setenv("ORDERS_DECISIONS_DRIVER", "postgres")

	_, err := Load()
	require.Error(t, err)
	assert.Contains(t, err.Error(), "decisions.driver")
}

func TestLoadMalformedYAML(t *testing.T) {
	dir := chdirTemp(t)
	require.NoError(t, os.WriteFile(filepath.Join(dir, "config.yaml"), []byte("log: [unclosed"), 0o644))

	_, err := Load()
	assert.Error(t, err)
}

func TestValidate(t *testing.T) {
	valid := Config{
		Registry:  RegistryConfig{Path: "x.xlsx"},
		Decisions: DecisionsConfig{Driver: "json"},
		Source:    SourceConfig{MaxSheets: 1},
		Pipeline:  PipelineConfig{ProgressEvery: 1},
	}
	assert.NoError(t, valid.Validate())

	noPath := valid
	noPath.Registry.Path = ""
	assert.Error(t, noPath.Validate())

	noSheets := valid
	noSheets.Source.MaxSheets = 0
	assert.Error(t, noSheets.Validate())

	noProgress := valid
	noProgress.Pipeline.ProgressEvery = 0
	assert.Error(t, noProgress.Validate())
}

func TestInitLoggerConsole(t *testing.T) {
	err := InitLogger(LogConfig{Level: "debug", Format: "console"})
	require.NoError(t, err)
	assert.NotNil(t, zap.L())
}

func TestInitLoggerJSON(t *testing.T) {
	err := InitLogger(LogConfig{Level: "info", Format: "json"})
	require.NoError(t, err)
	assert.NotNil(t, zap.L())
}

func TestInitLoggerInvalidLevel(t *testing.T) {
	err := InitLogger(LogConfig{Level: "invalid", Format: "json"})
	assert.Error(t, err)
}
