package main

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestLoadConfigAppliesFileThenEnv(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "config.yaml")
	require.NoError(t, os.WriteFile(path, []byte(`
data_dir: /from/file
jurisdiction: CA
cascade_strategy: rate_limit
`), 0o644))

	t.Setenv("LEGALPIPE_DATA_DIR", "")
	t.Setenv("LEGALPIPE_JURISDICTION", "NY")

	cfg, err := LoadConfig(path)
	require.NoError(t, err)

	assert.Equal(t, "/from/file", cfg.DataDir, "env var left empty should not override the file")
	assert.Equal(t, "NY", cfg.Jurisdiction, "a set env var overrides the file")
}

func TestLoadConfigFallsBackToDefaultsWithNoFile(t *testing.T) {
	cfg, err := LoadConfig("")
	require.NoError(t, err)
	assert.Equal(t, DefaultConfig().DataDir, cfg.DataDir)
	assert.NotEmpty(t, cfg.Models)
}

func TestResolveConfigFromOptsFlagsWinOverFileAndEnv(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "config.yaml")
	require.NoError(t, os.WriteFile(path, []byte(`
data_dir: /from/file
jurisdiction: CA
workers: 2
`), 0o644))

	t.Setenv("LEGALPIPE_JURISDICTION", "NY")

	opts := &RootOptions{ConfigPath: path, Jurisdiction: "TX", Workers: 8}
	cfg, err := resolveConfigFromOpts(opts)
	require.NoError(t, err)

	assert.Equal(t, "TX", cfg.Jurisdiction, "an explicit flag wins over both env and file")
	assert.Equal(t, 8, cfg.Workers)
	assert.Equal(t, "/from/file", cfg.DataDir, "a flag left unset keeps the file's value")
}

func TestApiKeyFromEnvPrefersExistingValue(t *testing.T) {
	t.Setenv("OPENAI_API_KEY", "from-env")
	assert.Equal(t, "already-set", apiKeyFromEnv("openai", "already-set"))
	assert.Equal(t, "from-env", apiKeyFromEnv("openai", ""))
	assert.Equal(t, "", apiKeyFromEnv("unknown-provider", ""))
}
