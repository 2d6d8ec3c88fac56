package config

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/ayusman/lizard/internal/focus"
)

func TestDefaultIsValid(t *testing.T) {
	cfg := Default()
	require.NoError(t, cfg.Validate())
	assert.Equal(t, focus.DefaultThreshold, cfg.Threshold)
	assert.Equal(t, 10*time.Minute, cfg.TargetDuration())
	assert.Equal(t, RatioAverage, cfg.RatioStrategy)
}

func TestLoadWithoutFile(t *testing.T) {
	dir := t.TempDir()
	t.Setenv("LIZARD_DATA_DIR", dir)

	cfg, err := Load("")
	require.NoError(t, err)
	assert.Equal(t, dir, cfg.DataDir)
	assert.Equal(t, filepath.Join(dir, "lizard.db"), cfg.DBPath())
}

func TestLoadYAML(t *testing.T) {
	dir := t.TempDir()
	t.Setenv("LIZARD_DATA_DIR", dir)

	path := filepath.Join(dir, "lizard.yaml")
	yamlDoc := `
addr: 127.0.0.1:9000
threshold: 0.25
target_minutes: 25
ratio_strategy: merged
camera:
  device_id: 2
  fps: 15
log:
  level: debug
  format: json
`
	require.NoError(t, os.WriteFile(path, []byte(yamlDoc), 0o644))

	cfg, err := Load(path)
	require.NoError(t, err)

	assert.Equal(t, "127.0.0.1:9000", cfg.Addr)
	assert.InDelta(t, 0.25, cfg.Threshold, 1e-9)
	assert.Equal(t, 25*time.Minute, cfg.TargetDuration())
	assert.Equal(t, 2, cfg.Camera.DeviceID)
	assert.Equal(t, 15, cfg.Camera.FPS)
	assert.Equal(t, "debug", cfg.Log.Level)
	assert.Equal(t, "json", cfg.Log.Format)
	// Fields missing from the file keep their defaults.
	assert.Equal(t, Default().Camera.Width, cfg.Camera.Width)

	ratio, ok := cfg.RatioFunc()(nil, nil)
	assert.False(t, ok)
	assert.Zero(t, ratio)
}

func TestLoadDefaultFileInDataDir(t *testing.T) {
	dir := t.TempDir()
	t.Setenv("LIZARD_DATA_DIR", dir)
	require.NoError(t, os.WriteFile(filepath.Join(dir, "config.yaml"), []byte("target_minutes: 45\n"), 0o644))

	cfg, err := Load("")
	require.NoError(t, err)
	assert.Equal(t, 45, cfg.TargetMinutes)
}

func TestLoadMissingExplicitFile(t *testing.T) {
	t.Setenv("LIZARD_DATA_DIR", t.TempDir())

	_, err := Load(filepath.Join(t.TempDir(), "nope.yaml"))
	assert.Error(t, err)
}

func TestEnvOverridesFile(t *testing.T) {
	dir := t.TempDir()
	t.Setenv("LIZARD_DATA_DIR", dir)
	require.NoError(t, os.WriteFile(filepath.Join(dir, "config.yaml"), []byte("threshold: 0.25\naddr: :7000\n"), 0o644))

	t.Setenv("LIZARD_THRESHOLD", "0.3")
	t.Setenv("LIZARD_TARGET_MINUTES", "5")
	t.Setenv("LIZARD_FPS", "20")
	t.Setenv("LIZARD_LOG_LEVEL", "warn")

	cfg, err := Load("")
	require.NoError(t, err)
	assert.InDelta(t, 0.3, cfg.Threshold, 1e-9)
	assert.Equal(t, ":7000", cfg.Addr)
	assert.Equal(t, 5, cfg.TargetMinutes)
	assert.Equal(t, 20, cfg.Camera.FPS)
	assert.Equal(t, "warn", cfg.Log.Level)
}

func TestEnvBadNumber(t *testing.T) {
	t.Setenv("LIZARD_DATA_DIR", t.TempDir())
	t.Setenv("LIZARD_TARGET_MINUTES", "ten")

	_, err := Load("")
	assert.ErrorContains(t, err, "LIZARD_TARGET_MINUTES")
}

func TestHooks(t *testing.T) {
	dir := t.TempDir()
	t.Setenv("LIZARD_DATA_DIR", dir)

	cfg, err := Load("")
	require.NoError(t, err)
	assert.Equal(t, filepath.Join(dir, "hooks"), cfg.HookDir())
	assert.Equal(t, 5*time.Second, cfg.Hooks.Timeout)

	require.NoError(t, os.WriteFile(filepath.Join(dir, "config.yaml"), []byte("hooks:\n  timeout: 2s\n"), 0o644))
	t.Setenv("LIZARD_HOOK_DIR", "/opt/lizard/hooks")

	cfg, err = Load("")
	require.NoError(t, err)
	assert.Equal(t, "/opt/lizard/hooks", cfg.HookDir())
	assert.Equal(t, 2*time.Second, cfg.Hooks.Timeout)

	t.Setenv("LIZARD_HOOK_TIMEOUT", "soon")
	_, err = Load("")
	assert.ErrorContains(t, err, "LIZARD_HOOK_TIMEOUT")
}

func TestValidate(t *testing.T) {
	tests := []struct {
		name   string
		mutate func(*Config)
	}{
		{"zero threshold", func(c *Config) { c.Threshold = 0 }},
		{"threshold of one", func(c *Config) { c.Threshold = 1 }},
		{"target too long", func(c *Config) { c.TargetMinutes = 61 }},
		{"target zero", func(c *Config) { c.TargetMinutes = 0 }},
		{"unknown strategy", func(c *Config) { c.RatioStrategy = "max" }},
		{"empty addr", func(c *Config) { c.Addr = "" }},
		{"fps too high", func(c *Config) { c.Camera.FPS = 120 }},
		{"negative hook timeout", func(c *Config) { c.Hooks.Timeout = -time.Second }},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			cfg := Default()
			tt.mutate(&cfg)
			assert.Error(t, cfg.Validate())
		})
	}
}
