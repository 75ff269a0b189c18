package model

import (
	"encoding/json"
	"fmt"
	"os"
	"strings"

	"github.com/Brownie44l1/art-classifier/internal/preprocess"
)

// Metadata is the optional JSON sidecar exported next to the model.
type Metadata struct {
	InputShape  []int64  `json:"input_shape"`
	OutputShape []int64  `json:"output_shape"`
	Classes     []string `json:"classes"`
	ImageSize   int      `json:"image_size"`
}

// LoadMetadata reads a metadata sidecar.
func LoadMetadata(path string) (*Metadata, error) {
	raw, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("failed to read metadata: %w", err)
	}

	var metadata Metadata
	if err := json.Unmarshal(raw, &metadata); err != nil {
		return nil, fmt.Errorf("failed to parse metadata: %w", err)
	}
	return &metadata, nil
}

// Check compares the sidecar against the shapes read from the model.
// Empty fields and non-positive dimensions are not checked.
func (m *Metadata) Check(input, output []int64) error {
	if err := matchShape("input", m.InputShape, input); err != nil {
		return err
	}
	if err := matchShape("output", m.OutputShape, output); err != nil {
		return err
	}
	if m.ImageSize > 0 && len(input) == 4 {
		// NHWC
		for _, d := range input[1:3] {
			if d > 0 && d != int64(m.ImageSize) {
				return fmt.Errorf("%w: metadata image_size %d, model input %s",
					ErrShapeMismatch, m.ImageSize, preprocess.FormatShape(input))
			}
		}
	}
	return nil
}

// CheckImageSize reports whether size agrees with the sidecar's image_size.
func (m *Metadata) CheckImageSize(size int) error {
	if m == nil || m.ImageSize <= 0 || m.ImageSize == size {
		return nil
	}
	return fmt.Errorf("%w: image size %d, metadata image_size %d",
		ErrShapeMismatch, size, m.ImageSize)
}

func matchShape(kind string, declared, actual []int64) error {
	if len(declared) == 0 {
		return nil
	}
	mismatch := len(declared) != len(actual)
	for i := 0; !mismatch && i < len(declared); i++ {
		if declared[i] > 0 && actual[i] > 0 && declared[i] != actual[i] {
			mismatch = true
		}
	}
	if mismatch {
		return fmt.Errorf("%w: metadata %s_shape %s, model %s", ErrShapeMismatch,
			kind, preprocess.FormatShape(declared), preprocess.FormatShape(actual))
	}
	return nil
}

// IOInfo describes one model input or output.
type IOInfo struct {
	Name     string
	Shape    []int64 // as declared; -1 marks a dynamic dimension
	DataType string
}

// Summary is a printable overview of a loaded model.
type Summary struct {
	Path        string
	Producer    string
	Description string
	Graph       string
	Version     int64
	Inputs      []IOInfo
	Outputs     []IOInfo
}

func (s Summary) String() string {
	var b strings.Builder
	fmt.Fprintf(&b, "Model: %s\n", s.Path)
	if s.Graph != "" {
		fmt.Fprintf(&b, "Graph: %s\n", s.Graph)
	}
	if s.Producer != "" {
		fmt.Fprintf(&b, "Producer: %s\n", s.Producer)
	}
	if s.Description != "" {
		fmt.Fprintf(&b, "Description: %s\n", s.Description)
	}
	fmt.Fprintf(&b, "Version: %d\n", s.Version)
	writeIO(&b, "Inputs", s.Inputs)
	writeIO(&b, "Outputs", s.Outputs)
	return b.String()
}

func writeIO(b *strings.Builder, title string, infos []IOInfo) {
	fmt.Fprintf(b, "%s:\n", title)
	for _, info := range infos {
		fmt.Fprintf(b, "  %-24s %-10s %s\n", info.Name, info.DataType, preprocess.FormatShape(info.Shape))
	}
}
