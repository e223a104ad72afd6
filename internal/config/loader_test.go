package config

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/spf13/viper"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestLoadWithNoConfigFile(t *testing.T) {
	t.Chdir(t.TempDir())
	t.Setenv("HOME", t.TempDir())
	t.Setenv("XDG_CONFIG_HOME", t.TempDir())

	cfg, err := NewLoaderWithViper(viper.New()).Load()
	require.NoError(t, err)
	assert.Equal(t, DefaultConfig(), *cfg)
}

func TestLoadWithFile(t *testing.T) {
	configFile := filepath.Join(t.TempDir(), "spreadmap.yaml")
	yamlContent := `
log_level: debug
detector:
  engine: native
  canny_low: 30
  canny_high: 90
  render_scale: 1.5
extraction:
  max_plu_slots: 4
  brands_file: brands.yaml
  pdf:
    user_password: secret
storage:
  state_db: /var/lib/spreadmap/state.db
server:
  port: 9090
`
	require.NoError(t, os.WriteFile(configFile, []byte(yamlContent), 0o600))

	l := NewLoaderWithViper(viper.New())
	cfg, err := l.LoadWithFile(configFile)
	require.NoError(t, err)

	assert.Equal(t, configFile, l.GetConfigFileUsed())
	assert.Equal(t, "debug", cfg.LogLevel)
	assert.InDelta(t, 30, cfg.Detector.CannyLow, 1e-9)
	assert.InDelta(t, 90, cfg.Detector.CannyHigh, 1e-9)
	assert.InDelta(t, 1.5, cfg.Detector.RenderScale, 1e-9)
	assert.Equal(t, 2, cfg.Detector.DilateIterations, "unset keys keep defaults")
	assert.Equal(t, 4, cfg.Extraction.MaxPLUSlots)
	assert.Equal(t, "brands.yaml", cfg.Extraction.BrandsFile)
	assert.Equal(t, "secret", cfg.Credentials().UserPassword)
	assert.Equal(t, "/var/lib/spreadmap/state.db", cfg.Storage.StateDB)
	assert.Equal(t, 9090, cfg.Server.Port)
}

func TestLoadEnvOverridesFile(t *testing.T) {
	configFile := filepath.Join(t.TempDir(), "spreadmap.yaml")
	require.NoError(t, os.WriteFile(configFile, []byte("server:\n  port: 9090\n"), 0o600))
	t.Setenv("SPREADMAP_SERVER_PORT", "7070")
	t.Setenv("SPREADMAP_DETECTOR_MIN_AREA_PERCENT", "2.5")
	t.Setenv("SPREADMAP_LOG_LEVEL", "warn")

	cfg, err := NewLoaderWithViper(viper.New()).LoadWithFile(configFile)
	require.NoError(t, err)
	assert.Equal(t, 7070, cfg.Server.Port)
	assert.InDelta(t, 2.5, cfg.Detector.MinAreaPercent, 1e-9)
	assert.Equal(t, "warn", cfg.LogLevel)
}

func TestLoadErrors(t *testing.T) {
	dir := t.TempDir()

	_, err := NewLoaderWithViper(viper.New()).LoadWithFile(filepath.Join(dir, "missing.yaml"))
	require.Error(t, err)
	assert.Contains(t, err.Error(), "does not exist")

	broken := filepath.Join(dir, "broken.yaml")
	require.NoError(t, os.WriteFile(broken, []byte("server: [port"), 0o600))
	_, err = NewLoaderWithViper(viper.New()).LoadWithFile(broken)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "error reading config file")

	invalid := filepath.Join(dir, "invalid.yaml")
	require.NoError(t, os.WriteFile(invalid, []byte("log_level: loud\n"), 0o600))
	_, err = NewLoaderWithViper(viper.New()).LoadWithFile(invalid)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "configuration validation failed")

	cfg, err := NewLoaderWithViper(viper.New()).LoadWithoutValidation()
	require.NoError(t, err)
	assert.NotNil(t, cfg)
}

func TestGenerateDefaultConfigFile(t *testing.T) {
	out := filepath.Join(t.TempDir(), "spreadmap.yaml")
	require.NoError(t, GenerateDefaultConfigFile(out))

	cfg, err := NewLoaderWithViper(viper.New()).LoadWithFile(out)
	require.NoError(t, err)
	assert.Equal(t, DefaultConfig(), *cfg)
}

func TestGetConfigSearchPaths(t *testing.T) {
	t.Setenv("XDG_CONFIG_HOME", "/xdg")
	paths := GetConfigSearchPaths()
	assert.Equal(t, ".", paths[0])
	assert.Contains(t, paths, filepath.Join("/xdg", "spreadmap"))
	assert.Equal(t, "/etc/spreadmap", paths[len(paths)-1])
}
