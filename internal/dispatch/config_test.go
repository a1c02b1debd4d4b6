package dispatch

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap/zaptest"
)

func writeFile(t *testing.T, dir, name, content string) string {
	t.Helper()
	path := filepath.Join(dir, name)
	require.NoError(t, os.WriteFile(path, []byte(content), 0o644))
	return path
}

func TestValidateUnknownPhase(t *testing.T) {
	dir := t.TempDir()
	cfg := Config{
		Phase:       "deploy",
		RequestFile: writeFile(t, dir, "request.md", "do things"),
	}

	err := cfg.Validate()
	require.Error(t, err)
	assert.ErrorIs(t, err, ErrConfig)
	assert.Contains(t, err.Error(), "deploy")
}

func TestValidateMissingRequestFile(t *testing.T) {
	missing := filepath.Join(t.TempDir(), "nope.md")
	cfg := Config{
		Phase:       PhasePlan,
		RequestFile: missing,
	}

	err := cfg.Validate()
	require.Error(t, err)
	assert.ErrorIs(t, err, ErrConfig)
	assert.Contains(t, err.Error(), missing)
}

func TestValidateMissingProxyCommand(t *testing.T) {
	dir := t.TempDir()
	cfg := Config{
		Phase:        PhasePlan,
		RequestFile:  writeFile(t, dir, "request.md", "do things"),
		ProxyCommand: filepath.Join(dir, "no-such-proxy"),
	}

	err := cfg.Validate()
	require.Error(t, err)
	assert.ErrorIs(t, err, ErrConfig)
}

func TestNewRejectsBadConfigBeforeWritingOutputs(t *testing.T) {
	outDir := filepath.Join(t.TempDir(), "out")
	cfg := Config{
		Phase:       "bogus",
		RequestFile: "also-missing.md",
		OutputDir:   outDir,
	}

	_, err := New(cfg, zaptest.NewLogger(t))
	require.Error(t, err)
	assert.ErrorIs(t, err, ErrConfig)

	_, statErr := os.Stat(outDir)
	assert.True(t, os.IsNotExist(statErr), "no output files should be created on config errors")
}

func TestWithDefaults(t *testing.T) {
	cfg := (&Config{}).WithDefaults()

	assert.Equal(t, DefaultModel, cfg.Model)
	assert.Equal(t, DefaultTimeout, cfg.Timeout)
	assert.Equal(t, DefaultCLI, cfg.CLI)
	assert.Equal(t, 8080, cfg.ProxyPort)
}

func TestLoadTunables(t *testing.T) {
	dir := t.TempDir()
	path := writeFile(t, dir, "dispatch.yaml", `
timeout_seconds: 90
quota_patterns:
  - OVER_LIMIT
`)

	tunables, err := LoadTunables(path)
	require.NoError(t, err)

	cfg := tunables.Apply(Config{Timeout: DefaultTimeout})
	assert.Equal(t, 90*time.Second, cfg.Timeout)
	assert.Equal(t, []string{"OVER_LIMIT"}, cfg.QuotaPatterns)
	assert.Empty(t, cfg.FatalPatterns)
}

func TestLoadTunablesEmptyPath(t *testing.T) {
	tunables, err := LoadTunables("")
	require.NoError(t, err)
	assert.Zero(t, tunables)
}
