// Package labels maps model score vectors to class names.
package labels

import (
	"errors"
	"fmt"
	"math"
)

var (
	ErrEmptyScores   = errors.New("empty score vector")
	ErrLabelMismatch = errors.New("label table does not match model")
)

// Table maps a class index to its name. Its order must equal the class
// index order used when the model was trained.
type Table []string

// DefaultTable is the alphabetical class order the art classifier was
// trained with. Nothing in the model file records this order; it is only
// checked when a metadata sidecar lists class names.
var DefaultTable = Table{"digital_art", "painting", "sculpture"}

// Prediction is the resolved class of a single score row.
type Prediction struct {
	Index int
	Label string
	Score float32
}

// ArgMax returns the index of the largest score. Ties go to the first
// occurrence and NaN scores are never selected unless every score is NaN.
func ArgMax(scores []float32) (int, error) {
	if len(scores) == 0 {
		return 0, ErrEmptyScores
	}

	maxIdx := 0
	maxVal := scores[0]
	for i, v := range scores[1:] {
		if math.IsNaN(float64(v)) {
			continue
		}
		if v > maxVal || math.IsNaN(float64(maxVal)) {
			maxVal = v
			maxIdx = i + 1
		}
	}
	return maxIdx, nil
}

// Resolve selects the highest scoring class of one prediction row.
func (t Table) Resolve(scores []float32) (Prediction, error) {
	idx, err := ArgMax(scores)
	if err != nil {
		return Prediction{}, err
	}
	if idx >= len(t) {
		return Prediction{}, fmt.Errorf("%w: class index %d outside table of %d labels",
			ErrLabelMismatch, idx, len(t))
	}
	return Prediction{Index: idx, Label: t[idx], Score: scores[idx]}, nil
}

// Validate checks the table against the model: its length must equal the
// number of classes the model outputs, and when the model declares class
// names they must match the table position by position.
func (t Table) Validate(numClasses int, classes []string) error {
	if numClasses > 0 && len(t) != numClasses {
		return fmt.Errorf("%w: model outputs %d classes, table has %d labels",
			ErrLabelMismatch, numClasses, len(t))
	}
	if len(classes) == 0 {
		return nil
	}
	if len(classes) != len(t) {
		return fmt.Errorf("%w: model declares %d classes, table has %d labels",
			ErrLabelMismatch, len(classes), len(t))
	}
	for i, name := range classes {
		if t[i] != name {
			return fmt.Errorf("%w: index %d is %q in the model but %q in the table",
				ErrLabelMismatch, i, name, t[i])
		}
	}
	return nil
}
