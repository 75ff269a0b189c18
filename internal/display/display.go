// Package display renders a classified image with its label as a title and
// hands it to the platform image viewer.
package display

import (
	"fmt"
	"image"
	"image/color"
	"image/png"
	"os"
	"os/exec"
	"path/filepath"
	"runtime"

	"github.com/Brownie44l1/art-classifier/internal/preprocess"
	"golang.org/x/image/draw"
	"golang.org/x/image/font"
	"golang.org/x/image/font/basicfont"
	"golang.org/x/image/math/fixed"
)

const titlePadding = 8

// Annotate returns a copy of img under a white band holding title. The
// picture is drawn with alpha dropped and without axes or borders.
func Annotate(img image.Image, title string) *image.RGBA {
	face := basicfont.Face7x13
	metrics := face.Metrics()
	lineHeight := (metrics.Ascent + metrics.Descent).Ceil()
	band := lineHeight + 2*titlePadding

	opaque := preprocess.Opaque(img)
	src := opaque.Bounds()
	textWidth := font.MeasureString(face, title).Ceil()
	width := src.Dx()
	if w := textWidth + 2*titlePadding; w > width {
		width = w
	}

	out := image.NewRGBA(image.Rect(0, 0, width, band+src.Dy()))
	draw.Draw(out, out.Bounds(), image.White, image.Point{}, draw.Src)

	offset := (width - src.Dx()) / 2
	draw.Draw(out, image.Rect(offset, band, offset+src.Dx(), band+src.Dy()), opaque, src.Min, draw.Src)

	d := &font.Drawer{
		Dst:  out,
		Src:  image.NewUniform(color.Black),
		Face: face,
		Dot:  fixed.P((width-textWidth)/2, titlePadding+metrics.Ascent.Ceil()),
	}
	d.DrawString(title)
	return out
}

// Title formats the caption shown above a classified image.
func Title(label string) string {
	return "Predicted: " + label
}

// Viewer writes annotated images and opens them.
type Viewer struct {
	// Open presents a written file. Nil only writes the file.
	Open func(path string) error
}

// NewViewer returns a Viewer using the platform's default image viewer.
func NewViewer() *Viewer {
	return &Viewer{Open: OpenWithSystem}
}

// Show annotates img with title, writes it as PNG to path (a temporary file
// when path is empty) and opens it. It returns the written path.
func (v *Viewer) Show(img image.Image, title, path string) (string, error) {
	annotated := Annotate(img, title)

	var f *os.File
	var err error
	if path == "" {
		f, err = os.CreateTemp("", "art-classifier-*.png")
	} else {
		if dir := filepath.Dir(path); dir != "." {
			if err := os.MkdirAll(dir, 0755); err != nil {
				return "", fmt.Errorf("failed to create output directory: %w", err)
			}
		}
		f, err = os.Create(path)
	}
	if err != nil {
		return "", fmt.Errorf("failed to create output image: %w", err)
	}

	if err := png.Encode(f, annotated); err != nil {
		f.Close()
		return "", fmt.Errorf("failed to encode output image: %w", err)
	}
	if err := f.Close(); err != nil {
		return "", fmt.Errorf("failed to write output image: %w", err)
	}

	if v.Open != nil {
		if err := v.Open(f.Name()); err != nil {
			return f.Name(), fmt.Errorf("failed to open viewer: %w", err)
		}
	}
	return f.Name(), nil
}

// OpenWithSystem opens path with the desktop's default handler.
func OpenWithSystem(path string) error {
	var cmd *exec.Cmd

	switch runtime.GOOS {
	case "windows":
		cmd = exec.Command("rundll32", "url.dll,FileProtocolHandler", path)
	case "darwin":
		cmd = exec.Command("open", path)
	default:
		cmd = exec.Command("xdg-open", path)
	}

	return cmd.Start()
}
