// Package preprocess turns image files into the NHWC float32 tensors the
// classifier expects.
package preprocess

import (
	"fmt"
	"image"
	"image/color"
	_ "image/gif"
	_ "image/jpeg"
	_ "image/png"
	"os"
	"strings"

	"github.com/nfnt/resize"
	_ "golang.org/x/image/bmp"
	_ "golang.org/x/image/tiff"
	_ "golang.org/x/image/webp"
)

// Channels is the number of colour channels fed to the model (RGB).
const Channels = 3

// Tensor is a dense float32 tensor in row-major order.
type Tensor struct {
	Shape []int64
	Data  []float32
}

// ShapeString formats the shape as a tuple, e.g. "(1, 256, 256, 3)".
func (t Tensor) ShapeString() string {
	return FormatShape(t.Shape)
}

// FormatShape formats a shape as a tuple; negative (dynamic) dimensions are
// printed as None.
func FormatShape(shape []int64) string {
	parts := make([]string, len(shape))
	for i, d := range shape {
		if d < 0 {
			parts[i] = "None"
		} else {
			parts[i] = fmt.Sprint(d)
		}
	}
	return "(" + strings.Join(parts, ", ") + ")"
}

// Preprocessor resizes and normalises images.
type Preprocessor struct {
	Size          int
	Interpolation resize.InterpolationFunction
}

// New returns a Preprocessor for size×size inputs using the named
// interpolation.
func New(size int, interpolation string) (*Preprocessor, error) {
	if size <= 0 {
		return nil, fmt.Errorf("invalid target size %d", size)
	}
	interp, err := ParseInterpolation(interpolation)
	if err != nil {
		return nil, err
	}
	return &Preprocessor{Size: size, Interpolation: interp}, nil
}

// ParseInterpolation maps a config name to a resize filter.
func ParseInterpolation(name string) (resize.InterpolationFunction, error) {
	switch strings.ToLower(name) {
	case "", "nearest":
		return resize.NearestNeighbor, nil
	case "bilinear":
		return resize.Bilinear, nil
	case "bicubic":
		return resize.Bicubic, nil
	case "mitchell":
		return resize.MitchellNetravali, nil
	case "lanczos2":
		return resize.Lanczos2, nil
	case "lanczos3":
		return resize.Lanczos3, nil
	}
	return 0, fmt.Errorf("unknown interpolation %q", name)
}

// LoadImage decodes the image at path.
func LoadImage(path string) (image.Image, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("failed to open image: %w", err)
	}
	defer f.Close()

	img, _, err := image.Decode(f)
	if err != nil {
		return nil, fmt.Errorf("failed to decode image %s: %w", path, err)
	}
	return img, nil
}

// File loads the image at path and converts it with FromImage.
func (p *Preprocessor) File(path string) (Tensor, error) {
	img, err := LoadImage(path)
	if err != nil {
		return Tensor{}, err
	}
	return p.FromImage(img), nil
}

// Opaque copies img into an NRGBA image keeping the stored RGB values and
// forcing alpha to 255. Transparent pixels keep their colour.
func Opaque(img image.Image) *image.NRGBA {
	b := img.Bounds()
	out := image.NewNRGBA(image.Rect(0, 0, b.Dx(), b.Dy()))
	for y := 0; y < b.Dy(); y++ {
		for x := 0; x < b.Dx(); x++ {
			c := color.NRGBAModel.Convert(img.At(b.Min.X+x, b.Min.Y+y)).(color.NRGBA)
			c.A = 255
			out.SetNRGBA(x, y, c)
		}
	}
	return out
}

// FromImage drops alpha, resizes img to Size×Size and scales every channel
// from [0, 255] to [0, 1]. The result has shape (1, Size, Size, 3).
func (p *Preprocessor) FromImage(img image.Image) Tensor {
	size := p.Size
	var src image.Image = Opaque(img)
	if b := src.Bounds(); b.Dx() != size || b.Dy() != size {
		src = resize.Resize(uint(size), uint(size), src, p.Interpolation)
	}
	b := src.Bounds()

	data := make([]float32, size*size*Channels)
	for y := 0; y < size; y++ {
		for x := 0; x < size; x++ {
			c := color.NRGBAModel.Convert(src.At(b.Min.X+x, b.Min.Y+y)).(color.NRGBA)
			i := (y*size + x) * Channels
			data[i] = float32(c.R) / 255.0
			data[i+1] = float32(c.G) / 255.0
			data[i+2] = float32(c.B) / 255.0
		}
	}

	return Tensor{
		Shape: []int64{1, int64(size), int64(size), Channels},
		Data:  data,
	}
}
