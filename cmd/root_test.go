package main

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/sells-group/order-convert/internal/config"
)

// testConfig points every file the commands touch into a temp dir.
func testConfig(t *testing.T) *config.Config {
	t.Helper()
	dir := t.TempDir()
	c := &config.Config{
		Registry:   config.RegistryConfig{Path: filepath.Join(dir, "DB", "Empresas.xlsx")},
		Decisions:  config.DecisionsConfig{Driver: "json", Path: filepath.Join(dir, "DB", "decisions.json")},
		Dictionary: config.DictionaryConfig{Path: filepath.Join(dir, "PrestacionesMap.csv")},
		Source:     config.SourceConfig{Encoding: "utf-8", MaxSheets: 50, HeaderScanRows: 20},
		Pipeline:   config.PipelineConfig{ProgressEvery: 250},
		Log:        config.LogConfig{Level: "info", Format: "console"},
	}
	old := cfg
	cfg = c
	t.Cleanup(func() { cfg = old })
	return c
}

func TestRootCommand_HasSubcommands(t *testing.T) {
	names := make(map[string]bool)
	for _, c := range rootCmd.Commands() {
		names[c.Name()] = true
	}

	for _, name := range []string{"convert", "companies", "duplicates", "lookup"} {
		assert.True(t, names[name], "expected subcommand %q not found", name)
	}
}

func TestRootCommand_Metadata(t *testing.T) {
	assert.Equal(t, "order-convert", rootCmd.Use)
	assert.NotEmpty(t, rootCmd.Short)
	assert.NotEmpty(t, rootCmd.Long)
}

func TestCompaniesCommand_HasSubcommands(t *testing.T) {
	names := make(map[string]bool)
	for _, c := range companiesCmd.Commands() {
		names[c.Name()] = true
	}

	for _, name := range []string{"list", "search", "save", "delete"} {
		assert.True(t, names[name], "expected subcommand %q not found", name)
	}
}

func TestRootCmd_PersistentPreRunE_WithValidConfig(t *testing.T) {
	tmpDir := t.TempDir()
	configContent := `
decisions:
  driver: sqlite
  path: decisions.db
log:
  level: debug
  format: json
`
	require.NoError(t, os.WriteFile(filepath.Join(tmpDir, "config.yaml"), []byte(configContent), 0o644))
	t.Chdir(tmpDir)

	oldCfg := cfg
	cfg = nil
	defer func() { cfg = oldCfg }()

	require.NoError(t, rootCmd.PersistentPreRunE(rootCmd, nil))
	require.NotNil(t, cfg)
	assert.Equal(t, "sqlite", cfg.Decisions.Driver)
	assert.Equal(t, "DB/Empresas.xlsx", cfg.Registry.Path)
}

func TestRootCmd_PersistentPreRunE_NoConfigFile(t *testing.T) {
	t.Chdir(t.TempDir())

	oldCfg := cfg
	cfg = nil
	defer func() { cfg = oldCfg }()

	require.NoError(t, rootCmd.PersistentPreRunE(rootCmd, nil))
	require.NotNil(t, cfg)
	assert.Equal(t, "json", cfg.Decisions.Driver)
	assert.Equal(t, "info", cfg.Log.Level)
}

func TestRootCmd_PersistentPreRunE_BadLogLevel(t *testing.T) {
	tmpDir := t.TempDir()
	require.NoError(t, os.WriteFile(filepath.Join(tmpDir, "config.yaml"), []byte("log:\n  level: loud\n"), 0o644))
	t.Chdir(tmpDir)

	oldCfg := cfg
	defer func() { cfg = oldCfg }()

	err := rootCmd.PersistentPreRunE(rootCmd, nil)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "init logger")
}

func TestRegistryPath_SearchesParents(t *testing.T) {
	c := testConfig(t)
	root := t.TempDir()
	nested := filepath.Join(root, "a", "b")
	require.NoError(t, os.MkdirAll(filepath.Join(root, "DB"), 0o755))
	require.NoError(t, os.MkdirAll(nested, 0o755))
	require.NoError(t, os.WriteFile(filepath.Join(root, "DB", "Empresas.xlsx"), []byte("registry"), 0o644))
	t.Chdir(nested)

	c.Registry = config.RegistryConfig{Path: filepath.Join("DB", "Empresas.xlsx"), SearchParents: true}
	assert.Equal(t, filepath.Join(root, "DB", "Empresas.xlsx"), registryPath())

	c.Registry.SearchParents = false
	assert.Equal(t, filepath.Join("DB", "Empresas.xlsx"), registryPath())
}
