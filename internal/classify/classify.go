// Package classify runs the single-image classification pipeline:
// preprocess, predict, resolve the label.
package classify

import (
	"context"
	"fmt"
	"io"
	"time"

	"github.com/Brownie44l1/art-classifier/internal/labels"
	"github.com/Brownie44l1/art-classifier/internal/preprocess"
	"go.uber.org/zap"
)

// Predictor is the part of a loaded model the pipeline needs.
type Predictor interface {
	DeclaredInputShape() []int64
	NumClasses() int
	Predict(preprocess.Tensor) ([][]float32, error)
}

// Result is the outcome of one run.
type Result struct {
	Prediction labels.Prediction
	Shape      []int64
	Scores     []float32
}

// Pipeline wires a model to its preprocessing and label table.
type Pipeline struct {
	Predictor    Predictor
	Preprocessor *preprocess.Preprocessor
	Labels       labels.Table
	// Classes are the class names declared by the model, if known.
	Classes []string
	Out     io.Writer
	Logger  *zap.Logger
}

// Run classifies the image at imagePath and prints the progress lines.
// Nothing is predicted if the label table does not fit the model or the
// image cannot be loaded.
func (p *Pipeline) Run(ctx context.Context, imagePath string) (Result, error) {
	logger := p.Logger
	if logger == nil {
		logger = zap.NewNop()
	}

	if err := p.Labels.Validate(p.Predictor.NumClasses(), p.Classes); err != nil {
		return Result{}, err
	}

	fmt.Fprintf(p.Out, "Model expected input shape: %s\n",
		preprocess.FormatShape(p.Predictor.DeclaredInputShape()))

	start := time.Now()
	tensor, err := p.Preprocessor.File(imagePath)
	if err != nil {
		return Result{}, err
	}
	logger.Debug("Image preprocessed",
		zap.String("path", imagePath),
		zap.Duration("elapsed", time.Since(start)))

	fmt.Fprintf(p.Out, "Image shape after preprocessing: %s\n", tensor.ShapeString())

	if err := ctx.Err(); err != nil {
		return Result{}, err
	}

	start = time.Now()
	rows, err := p.Predictor.Predict(tensor)
	if err != nil {
		return Result{}, err
	}
	if len(rows) == 0 {
		return Result{}, labels.ErrEmptyScores
	}
	logger.Debug("Inference finished",
		zap.Float32s("scores", rows[0]),
		zap.Duration("elapsed", time.Since(start)))

	prediction, err := p.Labels.Resolve(rows[0])
	if err != nil {
		return Result{}, err
	}

	fmt.Fprintf(p.Out, "The predicted class for the image is: %s\n", prediction.Label)

	return Result{
		Prediction: prediction,
		Shape:      tensor.Shape,
		Scores:     rows[0],
	}, nil
}
