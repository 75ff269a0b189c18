package main

import (
	"bytes"
	"os"
	"path/filepath"
	"testing"

	"github.com/Brownie44l1/art-classifier/internal/config"
	"github.com/spf13/cobra"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newTestCmd(t *testing.T) *cobra.Command {
	t.Helper()
	t.Setenv(config.EnvModelPath, "")
	t.Setenv(config.EnvImagePath, "")
	t.Setenv(config.EnvOrtLib, "")

	cmd := &cobra.Command{Use: "test"}
	f := cmd.Flags()
	f.StringVar(&configPath, "config", filepath.Join(t.TempDir(), "none.yaml"), "")
	f.StringVar(&modelPath, "model", "", "")
	f.StringVar(&metadataPath, "metadata", "", "")
	f.StringVar(&ortLib, "ort-lib", "", "")
	f.IntVar(&imageSize, "size", 0, "")
	f.StringVar(&interpolation, "interpolation", "", "")
	f.BoolVar(&noDisplay, "no-display", false, "")
	f.StringVar(&outputPath, "output", "", "")
	return cmd
}

func TestResolvePath(t *testing.T) {
	abs, err := filepath.Abs("x.onnx")
	require.NoError(t, err)

	assert.Equal(t, abs, resolvePath("/elsewhere", abs))
	assert.Equal(t, filepath.Join("/root", "models", "m.onnx"), resolvePath("/root", filepath.Join("models", "m.onnx")))
}

func TestProjectRoot(t *testing.T) {
	root, err := projectRoot()
	require.NoError(t, err)

	wd, err := os.Getwd()
	require.NoError(t, err)
	assert.Equal(t, filepath.Clean(filepath.Join(wd, "..", "..")), filepath.Clean(root))
}

func TestLoadConfig_Defaults(t *testing.T) {
	cmd := newTestCmd(t)
	require.NoError(t, cmd.ParseFlags(nil))

	cfg, err := loadConfig(cmd, nil)
	require.NoError(t, err)

	root, err := projectRoot()
	require.NoError(t, err)
	assert.Equal(t, filepath.Join(root, "models", "Selfimageclassifier.onnx"), cfg.Model.Path)
	assert.Equal(t, filepath.Join(root, "test_set", "i - 4.png"), cfg.Image.Path)
	assert.True(t, cfg.Display.Enabled)
	assert.Equal(t, 256, cfg.Image.Size)
}

func TestLoadConfig_FlagsOverride(t *testing.T) {
	cmd := newTestCmd(t)
	require.NoError(t, cmd.ParseFlags([]string{
		"--model", "/models/art.onnx",
		"--size", "128",
		"--interpolation", "bilinear",
		"--no-display",
		"--output", "/tmp/out.png",
	}))

	cfg, err := loadConfig(cmd, []string{"/images/statue.jpg"})
	require.NoError(t, err)
	assert.Equal(t, "/models/art.onnx", cfg.Model.Path)
	assert.Equal(t, "/images/statue.jpg", cfg.Image.Path)
	assert.Equal(t, 128, cfg.Image.Size)
	assert.Equal(t, "bilinear", cfg.Image.Interpolation)
	assert.False(t, cfg.Display.Enabled)
	assert.Equal(t, "/tmp/out.png", cfg.Display.OutputPath)
}

func TestConfigFile(t *testing.T) {
	old := configPath
	t.Cleanup(func() { configPath = old })
	configPath = "art-classifier.yaml"

	assert.Equal(t, filepath.Join("/repo", "art-classifier.yaml"), configFile(false, "/repo"))
	assert.Equal(t, "art-classifier.yaml", configFile(true, "/repo"))
}

func TestLoadConfig_DefaultConfigFromProjectRoot(t *testing.T) {
	root, err := projectRoot()
	require.NoError(t, err)
	path := filepath.Join(root, "art-classifier.yaml")
	if _, err := os.Stat(path); err == nil {
		t.Skip("project root already has a config file")
	}
	require.NoError(t, os.WriteFile(path, []byte("image:\n  size: 64\n"), 0644))
	t.Cleanup(func() { os.Remove(path) })

	cmd := newTestCmd(t)
	configPath = "art-classifier.yaml"

	cfg, err := loadConfig(cmd, nil)
	require.NoError(t, err)
	assert.Equal(t, 64, cfg.Image.Size)
}

func TestLoadConfig_Invalid(t *testing.T) {
	cmd := newTestCmd(t)
	require.NoError(t, cmd.ParseFlags([]string{"--interpolation", "sinc"}))

	_, err := loadConfig(cmd, nil)
	assert.Error(t, err)
}

func TestInitConfigCmd(t *testing.T) {
	path := filepath.Join(t.TempDir(), "art-classifier.yaml")
	var out bytes.Buffer
	initConfigCmd.SetOut(&out)

	require.NoError(t, initConfigCmd.RunE(initConfigCmd, []string{path}))
	assert.Contains(t, out.String(), path)

	t.Setenv(config.EnvModelPath, "")
	t.Setenv(config.EnvImagePath, "")
	t.Setenv(config.EnvOrtLib, "")
	cfg, err := config.Load(path)
	require.NoError(t, err)
	assert.Equal(t, config.DefaultConfig(), cfg)
}
