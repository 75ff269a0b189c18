package config

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"gopkg.in/yaml.v3"
)

// Environment variables that override file values.
const (
	EnvModelPath = "ART_CLASSIFIER_MODEL"
	EnvImagePath = "ART_CLASSIFIER_IMAGE"
	EnvOrtLib    = "ONNXRUNTIME_LIB"
)

// Interpolations accepted by image.interpolation.
var Interpolations = []string{"nearest", "bilinear", "bicubic", "mitchell", "lanczos2", "lanczos3"}

// Config holds everything a single classification run needs.
type Config struct {
	Model   ModelConfig   `yaml:"model"`
	Image   ImageConfig   `yaml:"image"`
	Labels  []string      `yaml:"labels"`
	Display DisplayConfig `yaml:"display"`
	Logging LoggingConfig `yaml:"logging"`
}

// ModelConfig locates the ONNX model and the runtime.
type ModelConfig struct {
	Path         string `yaml:"path"`
	MetadataPath string `yaml:"metadata_path"` // optional JSON sidecar
	InputName    string `yaml:"input_name"`    // empty: first model input
	OutputName   string `yaml:"output_name"`   // empty: first model output
	SharedLib    string `yaml:"shared_lib"`    // onnxruntime shared library
}

// ImageConfig configures preprocessing.
type ImageConfig struct {
	Path          string `yaml:"path"`
	Size          int    `yaml:"size"`
	Interpolation string `yaml:"interpolation"`
}

// DisplayConfig controls how the titled image is presented.
type DisplayConfig struct {
	Enabled    bool   `yaml:"enabled"`
	OutputPath string `yaml:"output_path"`
}

// LoggingConfig configures zap.
type LoggingConfig struct {
	Level string `yaml:"level"` // debug, info, warn, error
}

// DefaultConfig returns the configuration of a plain run with no file.
func DefaultConfig() *Config {
	return &Config{
		Model: ModelConfig{
			Path: filepath.Join("models", "Selfimageclassifier.onnx"),
		},
		Image: ImageConfig{
			Path:          filepath.Join("test_set", "i - 4.png"),
			Size:          256,
			Interpolation: "nearest",
		},
		Labels: []string{"digital_art", "painting", "sculpture"},
		Display: DisplayConfig{
			Enabled: true,
		},
		Logging: LoggingConfig{
			Level: "info",
		},
	}
}

// Load reads a YAML configuration on top of the defaults. A missing file
// is not an error.
func Load(path string) (*Config, error) {
	cfg := DefaultConfig()

	if path != "" {
		data, err := os.ReadFile(path)
		switch {
		case errors.Is(err, os.ErrNotExist):
		case err != nil:
			return nil, fmt.Errorf("failed to read config: %w", err)
		default:
			if err := yaml.Unmarshal(data, cfg); err != nil {
				return nil, fmt.Errorf("failed to parse config: %w", err)
			}
		}
	}

	cfg.applyEnvOverrides()
	return cfg, nil
}

func (c *Config) applyEnvOverrides() {
	if v := os.Getenv(EnvModelPath); v != "" {
		c.Model.Path = v
	}
	if v := os.Getenv(EnvImagePath); v != "" {
		c.Image.Path = v
	}
	if v := os.Getenv(EnvOrtLib); v != "" {
		c.Model.SharedLib = v
	}
}

// Validate reports the first problem found in the configuration.
func (c *Config) Validate() error {
	if strings.TrimSpace(c.Model.Path) == "" {
		return errors.New("model.path is required")
	}
	if strings.TrimSpace(c.Image.Path) == "" {
		return errors.New("image.path is required")
	}
	if c.Image.Size <= 0 {
		return fmt.Errorf("image.size must be positive, got %d", c.Image.Size)
	}
	if !validInterpolation(c.Image.Interpolation) {
		return fmt.Errorf("unknown image.interpolation %q (want one of %s)",
			c.Image.Interpolation, strings.Join(Interpolations, ", "))
	}
	switch c.Logging.Level {
	case "debug", "info", "warn", "error":
	default:
		return fmt.Errorf("unknown logging.level %q", c.Logging.Level)
	}
	if len(c.Labels) == 0 {
		return errors.New("labels must not be empty")
	}
	seen := make(map[string]struct{}, len(c.Labels))
	for _, l := range c.Labels {
		if l == "" {
			return errors.New("labels must not contain empty names")
		}
		if _, ok := seen[l]; ok {
			return fmt.Errorf("duplicate label %q", l)
		}
		seen[l] = struct{}{}
	}
	return nil
}

func validInterpolation(name string) bool {
	for _, n := range Interpolations {
		if n == name {
			return true
		}
	}
	return false
}

// Save writes the configuration as YAML, creating parent directories.
func (c *Config) Save(path string) error {
	if dir := filepath.Dir(path); dir != "." {
		if err := os.MkdirAll(dir, 0755); err != nil {
			return fmt.Errorf("failed to create config directory: %w", err)
		}
	}

	data, err := yaml.Marshal(c)
	if err != nil {
		return fmt.Errorf("failed to marshal config: %w", err)
	}

	if err := os.WriteFile(path, data, 0644); err != nil {
		return fmt.Errorf("failed to write config: %w", err)
	}
	return nil
}
