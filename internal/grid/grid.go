// Package grid holds the 28×28 input snapshot and converts other input
// formats into it.
package grid

import (
	"encoding/json"
	"image"
	"image/color"
	"io"
	"math"

	"github.com/disintegration/imaging"
	"github.com/pkg/errors"
)

// Size is the edge length of the input grid.
const Size = 28

// Grid is a 28×28 brightness map, row-major, values in [0,255].
type Grid [Size][Size]uint8

// Flatten returns the grid as a row-major vector of length Size*Size.
// Values are not rescaled.
func (g *Grid) Flatten() []float32 {
	out := make([]float32, 0, Size*Size)
	for _, row := range g {
		for _, v := range row {
			out = append(out, float32(v))
		}
	}
	return out
}

// Ink returns the number of non-zero cells.
func (g *Grid) Ink() int {
	n := 0
	for _, row := range g {
		for _, v := range row {
			if v != 0 {
				n++
			}
		}
	}
	return n
}

// ParseJSON reads a number[][] snapshot. It must be exactly 28×28; values
// are rounded and clamped to [0,255].
func ParseJSON(r io.Reader) (*Grid, error) {
	var rows [][]float64
	if err := json.NewDecoder(r).Decode(&rows); err != nil {
		return nil, errors.Wrap(err, "decoding grid JSON")
	}
	if len(rows) != Size {
		return nil, errors.Errorf("grid has %d rows, want %d", len(rows), Size)
	}

	g := new(Grid)
	for y, row := range rows {
		if len(row) != Size {
			return nil, errors.Errorf("grid row %d has %d columns, want %d", y, len(row), Size)
		}
		for x, v := range row {
			g[y][x] = clamp(v)
		}
	}
	return g, nil
}

func clamp(v float64) uint8 {
	switch {
	case math.IsNaN(v) || v <= 0:
		return 0
	case v >= 255:
		return 255
	default:
		return uint8(math.Round(v))
	}
}

// FromImage converts img to a grid: grayscale, fitted into 28×28 keeping the
// aspect ratio, centered on a black background. Light-background images are
// inverted so the digit is bright.
func FromImage(img image.Image) *Grid {
	gray := imaging.Grayscale(img)
	if meanBorder(gray) > 127 {
		gray = imaging.Invert(gray)
	}

	canvas := imaging.PasteCenter(imaging.New(Size, Size, color.Black), resizeToFit(gray, Size))

	g := new(Grid)
	for y := 0; y < Size; y++ {
		for x := 0; x < Size; x++ {
			g[y][x] = canvas.NRGBAAt(x, y).R
		}
	}
	return g
}

// resizeToFit scales img up or down so its longer side is size.
func resizeToFit(img image.Image, size int) *image.NRGBA {
	dims := img.Bounds().Size()
	width, height := size, size
	if dims.X > dims.Y {
		height = max(1, int(math.Round(float64(size)*float64(dims.Y)/float64(dims.X))))
	} else if dims.Y > dims.X {
		width = max(1, int(math.Round(float64(size)*float64(dims.X)/float64(dims.Y))))
	}
	return imaging.Resize(img, width, height, imaging.Lanczos)
}

// meanBorder averages the red channel along the image edge, which for a
// drawn digit is the background.
func meanBorder(img *image.NRGBA) float64 {
	b := img.Bounds()
	var sum, n float64
	add := func(x, y int) {
		sum += float64(img.NRGBAAt(x, y).R)
		n++
	}
	for x := b.Min.X; x < b.Max.X; x++ {
		add(x, b.Min.Y)
		add(x, b.Max.Y-1)
	}
	for y := b.Min.Y + 1; y < b.Max.Y-1; y++ {
		add(b.Min.X, y)
		add(b.Max.X-1, y)
	}
	if n == 0 {
		return 0
	}
	return sum / n
}

// Decode reads an image file (PNG, JPEG, GIF, BMP, TIFF) into a grid.
func Decode(r io.Reader) (*Grid, error) {
	img, err := imaging.Decode(r)
	if err != nil {
		return nil, errors.Wrap(err, "decoding image")
	}
	return FromImage(img), nil
}

// Open reads an image file from disk into a grid.
func Open(path string) (*Grid, error) {
	img, err := imaging.Open(path)
	if err != nil {
		return nil, errors.Wrapf(err, "opening image %q", path)
	}
	return FromImage(img), nil
}
