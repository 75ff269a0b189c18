package config

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func clearEnv(t *testing.T) {
	t.Setenv(EnvModelPath, "")
	t.Setenv(EnvImagePath, "")
	t.Setenv(EnvOrtLib, "")
}

func TestDefaultConfig(t *testing.T) {
	cfg := DefaultConfig()

	assert.Equal(t, filepath.Join("models", "Selfimageclassifier.onnx"), cfg.Model.Path)
	assert.Equal(t, filepath.Join("test_set", "i - 4.png"), cfg.Image.Path)
	assert.Equal(t, 256, cfg.Image.Size)
	assert.Equal(t, "nearest", cfg.Image.Interpolation)
	assert.Equal(t, []string{"digital_art", "painting", "sculpture"}, cfg.Labels)
	assert.True(t, cfg.Display.Enabled)
	require.NoError(t, cfg.Validate())
}

func TestLoad_MissingFileReturnsDefaults(t *testing.T) {
	clearEnv(t)

	cfg, err := Load(filepath.Join(t.TempDir(), "nope.yaml"))
	require.NoError(t, err)
	assert.Equal(t, DefaultConfig(), cfg)
}

func TestConfig_SaveLoad(t *testing.T) {
	clearEnv(t)
	path := filepath.Join(t.TempDir(), "nested", "config.yaml")

	cfg := DefaultConfig()
	cfg.Model.Path = "other.onnx"
	cfg.Image.Interpolation = "bilinear"
	cfg.Display.Enabled = false
	require.NoError(t, cfg.Save(path))

	loaded, err := Load(path)
	require.NoError(t, err)
	assert.Equal(t, cfg, loaded)
}

func TestLoad_PartialFileKeepsDefaults(t *testing.T) {
	clearEnv(t)
	path := filepath.Join(t.TempDir(), "config.yaml")
	require.NoError(t, os.WriteFile(path, []byte("image:\n  path: art.jpg\n"), 0644))

	cfg, err := Load(path)
	require.NoError(t, err)
	assert.Equal(t, "art.jpg", cfg.Image.Path)
	assert.Equal(t, 256, cfg.Image.Size)
	assert.Equal(t, DefaultConfig().Model.Path, cfg.Model.Path)
}

func TestLoad_Malformed(t *testing.T) {
	path := filepath.Join(t.TempDir(), "config.yaml")
	require.NoError(t, os.WriteFile(path, []byte("image: [unterminated"), 0644))

	_, err := Load(path)
	assert.Error(t, err)
}

func TestLoad_EnvOverrides(t *testing.T) {
	t.Setenv(EnvModelPath, "env.onnx")
	t.Setenv(EnvImagePath, "env.png")
	t.Setenv(EnvOrtLib, "/opt/libonnxruntime.so")

	cfg, err := Load("")
	require.NoError(t, err)
	assert.Equal(t, "env.onnx", cfg.Model.Path)
	assert.Equal(t, "env.png", cfg.Image.Path)
	assert.Equal(t, "/opt/libonnxruntime.so", cfg.Model.SharedLib)
}

func TestValidate(t *testing.T) {
	tests := []struct {
		name   string
		mutate func(*Config)
	}{
		{"empty model path", func(c *Config) { c.Model.Path = " " }},
		{"empty image path", func(c *Config) { c.Image.Path = "" }},
		{"zero size", func(c *Config) { c.Image.Size = 0 }},
		{"bad interpolation", func(c *Config) { c.Image.Interpolation = "cubic-ish" }},
		{"bad log level", func(c *Config) { c.Logging.Level = "loud" }},
		{"no labels", func(c *Config) { c.Labels = nil }},
		{"empty label", func(c *Config) { c.Labels = []string{"a", ""} }},
		{"duplicate label", func(c *Config) { c.Labels = []string{"a", "b", "a"} }},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			cfg := DefaultConfig()
			tt.mutate(cfg)
			assert.Error(t, cfg.Validate())
		})
	}
}
