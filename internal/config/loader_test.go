package config

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

const validConfigYAML = `
analysis:
  dist_tol: 0.8
  cutoff_factor: 1.5
chempot:
  floor_value: -1000
  round_digits: 4
band_edge:
  localized_ratio: 0.35
log:
  level: debug
  format: json
metrics:
  namespace: cpdtest
store:
  path: /tmp/energies.db
  busy_timeout: 2s
`

func createTempConfigFile(t *testing.T, content string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "config.yaml")
	require.NoError(t, os.WriteFile(path, []byte(content), 0o600))
	return path
}

func TestLoad_FromFile_ValidConfig(t *testing.T) {
	cfg, err := Load(createTempConfigFile(t, validConfigYAML))
	require.NoError(t, err)

	assert.Equal(t, 0.8, cfg.Analysis.DistTol)
	assert.Equal(t, 1.5, cfg.Analysis.CutoffFactor)
	assert.Equal(t, -1000.0, cfg.ChemPot.FloorValue)
	assert.Equal(t, 4, cfg.ChemPot.RoundDigits)
	assert.Equal(t, 1.1, cfg.ChemPot.FloorScale)
	assert.Equal(t, 0.35, cfg.BandEdge.LocalizedRatio)
	assert.Equal(t, "debug", cfg.Log.Level)
	assert.Equal(t, "json", cfg.Log.Format)
	assert.Equal(t, "stderr", cfg.Log.Output)
	assert.Equal(t, "cpdtest", cfg.Metrics.Namespace)
	assert.Equal(t, "/tmp/energies.db", cfg.Store.Path)
	assert.Equal(t, 2*time.Second, cfg.Store.BusyTimeout)
}

func TestLoad_FromFile_FileNotFound(t *testing.T) {
	_, err := Load(filepath.Join(t.TempDir(), "missing.yaml"))
	require.Error(t, err)
	assert.Contains(t, err.Error(), "failed to read config file")
}

func TestLoad_FromFile_InvalidYAML(t *testing.T) {
	_, err := Load(createTempConfigFile(t, "analysis: [unclosed"))
	assert.Error(t, err)
}

func TestLoad_FromFile_ValidationFailure(t *testing.T) {
	_, err := Load(createTempConfigFile(t, "log:\n  format: text\n"))
	require.Error(t, err)
	assert.Contains(t, err.Error(), "log.format")
}

func TestLoad_EnvOverride(t *testing.T) {
	t.Setenv("DEFECTKIT_ANALYSIS_DIST_TOL", "0.25")
	t.Setenv("DEFECTKIT_STORE_PATH", "/var/lib/defectkit.db")

	cfg, err := Load(createTempConfigFile(t, validConfigYAML))
	require.NoError(t, err)
	assert.Equal(t, 0.25, cfg.Analysis.DistTol)
	assert.Equal(t, "/var/lib/defectkit.db", cfg.Store.Path)
}

func TestLoadFromEnv_NoFile(t *testing.T) {
	t.Setenv("DEFECTKIT_CHEMPOT_ROUND_DIGITS", "3")
	t.Setenv("DEFECTKIT_LOG_LEVEL", "warn")

	cfg, err := LoadFromEnv()
	require.NoError(t, err)
	assert.Equal(t, 3, cfg.ChemPot.RoundDigits)
	assert.Equal(t, "warn", cfg.Log.Level)
	assert.Equal(t, DefaultStorePath, cfg.Store.Path)
}

func TestLoad_EmptyPathUsesEnv(t *testing.T) {
	cfg, err := Load("")
	require.NoError(t, err)
	assert.Equal(t, NewDefaultConfig(), cfg)
}

func TestMustLoad_Success(t *testing.T) {
	assert.NotPanics(t, func() {
		cfg := MustLoad(createTempConfigFile(t, validConfigYAML))
		assert.NotNil(t, cfg)
	})
}

func TestMustLoad_Panic(t *testing.T) {
	assert.Panics(t, func() { MustLoad(filepath.Join(t.TempDir(), "nope.yaml")) })
}
