package model

import (
	"errors"
	"fmt"

	"github.com/Brownie44l1/art-classifier/internal/preprocess"
	ort "github.com/yalue/onnxruntime_go"
	"go.uber.org/zap"
)

// ErrShapeMismatch is returned when an input tensor does not fit the model.
var ErrShapeMismatch = errors.New("tensor shape does not match model input")

// Options configures Open.
type Options struct {
	Path         string
	MetadataPath string
	InputName    string
	OutputName   string
	SharedLib    string
	Logger       *zap.Logger
}

// Classifier runs a single-input, single-output ONNX model with tensors
// allocated once at load time.
type Classifier struct {
	session      *ort.AdvancedSession
	inputTensor  *ort.Tensor[float32]
	outputTensor *ort.Tensor[float32]
	input        IOInfo
	output       IOInfo
	summary      Summary
	Metadata     *Metadata
	ownsEnv      bool
	logger       *zap.Logger
}

// Open loads the model and prepares its session.
func Open(opts Options) (*Classifier, error) {
	logger := opts.Logger
	if logger == nil {
		logger = zap.NewNop()
	}

	var metadata *Metadata
	if opts.MetadataPath != "" {
		m, err := LoadMetadata(opts.MetadataPath)
		if err != nil {
			return nil, err
		}
		metadata = m
	}

	ownsEnv := false
	if !ort.IsInitialized() {
		if opts.SharedLib != "" {
			ort.SetSharedLibraryPath(opts.SharedLib)
		}
		if err := ort.InitializeEnvironment(); err != nil {
			return nil, fmt.Errorf("failed to initialize ONNX environment: %w", err)
		}
		ownsEnv = true
	}

	c, err := open(opts, metadata, logger)
	if err != nil {
		if ownsEnv {
			ort.DestroyEnvironment()
		}
		return nil, err
	}
	c.ownsEnv = ownsEnv
	return c, nil
}

func open(opts Options, metadata *Metadata, logger *zap.Logger) (*Classifier, error) {
	inputs, outputs, err := ort.GetInputOutputInfo(opts.Path)
	if err != nil {
		return nil, fmt.Errorf("failed to inspect model %s: %w", opts.Path, err)
	}

	inInfos := convertInfos(inputs)
	outInfos := convertInfos(outputs)

	input, err := pickIO(inInfos, opts.InputName, "input")
	if err != nil {
		return nil, err
	}
	output, err := pickIO(outInfos, opts.OutputName, "output")
	if err != nil {
		return nil, err
	}

	if metadata != nil {
		if err := metadata.Check(input.Shape, output.Shape); err != nil {
			return nil, err
		}
	}

	inputTensor, err := ort.NewEmptyTensor[float32](ort.NewShape(concreteShape(input.Shape)...))
	if err != nil {
		return nil, fmt.Errorf("failed to create input tensor: %w", err)
	}

	outputTensor, err := ort.NewEmptyTensor[float32](ort.NewShape(concreteShape(output.Shape)...))
	if err != nil {
		inputTensor.Destroy()
		return nil, fmt.Errorf("failed to create output tensor: %w", err)
	}

	session, err := ort.NewAdvancedSession(opts.Path,
		[]string{input.Name}, []string{output.Name},
		[]ort.Value{inputTensor}, []ort.Value{outputTensor},
		nil)
	if err != nil {
		inputTensor.Destroy()
		outputTensor.Destroy()
		return nil, fmt.Errorf("failed to create ONNX session: %w", err)
	}

	summary := Summary{Path: opts.Path, Inputs: inInfos, Outputs: outInfos}
	if md, err := session.GetModelMetadata(); err != nil {
		logger.Debug("Model metadata unavailable", zap.Error(err))
	} else {
		summary.Producer, _ = md.GetProducerName()
		summary.Description, _ = md.GetDescription()
		summary.Graph, _ = md.GetGraphName()
		summary.Version, _ = md.GetVersion()
		md.Destroy()
	}

	logger.Debug("Model loaded",
		zap.String("path", opts.Path),
		zap.String("input", input.Name),
		zap.Int64s("input_shape", input.Shape),
		zap.String("output", output.Name),
		zap.Int64s("output_shape", output.Shape))

	return &Classifier{
		session:      session,
		inputTensor:  inputTensor,
		outputTensor: outputTensor,
		input:        input,
		output:       output,
		summary:      summary,
		Metadata:     metadata,
		logger:       logger,
	}, nil
}

func convertInfos(infos []ort.InputOutputInfo) []IOInfo {
	out := make([]IOInfo, len(infos))
	for i, info := range infos {
		out[i] = IOInfo{
			Name:     info.Name,
			Shape:    append([]int64(nil), info.Dimensions...),
			DataType: fmt.Sprint(info.DataType),
		}
	}
	return out
}

// pickIO returns the named entry, or the first one when name is empty.
func pickIO(infos []IOInfo, name, kind string) (IOInfo, error) {
	if len(infos) == 0 {
		return IOInfo{}, fmt.Errorf("model has no %s", kind)
	}
	if name == "" {
		return infos[0], nil
	}
	for _, info := range infos {
		if info.Name == name {
			return info, nil
		}
	}
	return IOInfo{}, fmt.Errorf("model has no %s named %q", kind, name)
}

// concreteShape replaces dynamic dimensions with 1 (a single image batch).
func concreteShape(shape []int64) []int64 {
	out := make([]int64, len(shape))
	for i, d := range shape {
		if d < 1 {
			d = 1
		}
		out[i] = d
	}
	return out
}

// DeclaredInputShape is the input shape as stored in the model, with -1
// for dynamic dimensions.
func (c *Classifier) DeclaredInputShape() []int64 { return c.input.Shape }

// InputShape is the concrete shape Predict accepts.
func (c *Classifier) InputShape() []int64 { return concreteShape(c.input.Shape) }

// OutputShape is the concrete shape of the score tensor.
func (c *Classifier) OutputShape() []int64 { return concreteShape(c.output.Shape) }

// NumClasses is the width of the score tensor.
func (c *Classifier) NumClasses() int {
	return numClasses(c.output.Shape)
}

func numClasses(shape []int64) int {
	if len(shape) == 0 {
		return 0
	}
	n := shape[len(shape)-1]
	if n < 1 {
		return 0
	}
	return int(n)
}

// Classes returns the class names declared by the metadata sidecar, if any.
func (c *Classifier) Classes() []string {
	if c.Metadata == nil {
		return nil
	}
	return c.Metadata.Classes
}

// Summary describes the loaded model.
func (c *Classifier) Summary() Summary { return c.summary }

// Predict runs the model on t and returns one score row per batch entry.
func (c *Classifier) Predict(t preprocess.Tensor) ([][]float32, error) {
	if err := checkShape(t, c.InputShape()); err != nil {
		return nil, err
	}

	copy(c.inputTensor.GetData(), t.Data)

	if err := c.session.Run(); err != nil {
		return nil, fmt.Errorf("inference failed: %w", err)
	}

	return splitRows(c.outputTensor.GetData(), c.OutputShape()), nil
}

func checkShape(t preprocess.Tensor, want []int64) error {
	if len(t.Shape) != len(want) {
		return fmt.Errorf("%w: got %s, want %s", ErrShapeMismatch,
			preprocess.FormatShape(t.Shape), preprocess.FormatShape(want))
	}
	size := int64(1)
	for i := range want {
		if t.Shape[i] != want[i] {
			return fmt.Errorf("%w: got %s, want %s", ErrShapeMismatch,
				preprocess.FormatShape(t.Shape), preprocess.FormatShape(want))
		}
		size *= want[i]
	}
	if int64(len(t.Data)) != size {
		return fmt.Errorf("%w: %d values for shape %s", ErrShapeMismatch,
			len(t.Data), preprocess.FormatShape(want))
	}
	return nil
}

// splitRows copies flat output data into rows of the last dimension.
func splitRows(data []float32, shape []int64) [][]float32 {
	width := numClasses(shape)
	if width == 0 || len(data) == 0 {
		return nil
	}
	rows := make([][]float32, 0, len(data)/width)
	for off := 0; off+width <= len(data); off += width {
		rows = append(rows, append([]float32(nil), data[off:off+width]...))
	}
	return rows
}

// Close releases the session, its tensors and, if Open created it, the
// runtime environment.
func (c *Classifier) Close() {
	if c.inputTensor != nil {
		c.inputTensor.Destroy()
	}
	if c.outputTensor != nil {
		c.outputTensor.Destroy()
	}
	if c.session != nil {
		c.session.Destroy()
	}
	if c.ownsEnv {
		ort.DestroyEnvironment()
	}
}
