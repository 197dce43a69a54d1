package grid

import (
	"bytes"
	"encoding/json"
	"image"
	"image/color"
	"image/png"
	"path/filepath"
	"strings"
	"testing"

	"github.com/disintegration/imaging"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestFlatten(t *testing.T) {
	var g Grid
	g[0][1] = 10
	g[1][0] = 20
	g[Size-1][Size-1] = 255

	flat := g.Flatten()
	require.Len(t, flat, Size*Size)
	assert.Equal(t, float32(10), flat[1])
	assert.Equal(t, float32(20), flat[Size])
	assert.Equal(t, float32(255), flat[Size*Size-1])
	assert.Equal(t, 3, g.Ink())
}

func snapshot(fill func(y, x int) float64) string {
	rows := make([][]float64, Size)
	for y := range rows {
		rows[y] = make([]float64, Size)
		for x := range rows[y] {
			rows[y][x] = fill(y, x)
		}
	}
	out, _ := json.Marshal(rows)
	return string(out)
}

func TestParseJSON(t *testing.T) {
	doc := snapshot(func(y, x int) float64 {
		switch {
		case y == 0 && x == 0:
			return -5
		case y == 0 && x == 1:
			return 300
		case y == 0 && x == 2:
			return 127.6
		default:
			return float64(y)
		}
	})

	g, err := ParseJSON(strings.NewReader(doc))
	require.NoError(t, err)
	assert.Equal(t, uint8(0), g[0][0])
	assert.Equal(t, uint8(255), g[0][1])
	assert.Equal(t, uint8(128), g[0][2])
	assert.Equal(t, uint8(27), g[27][5])
}

func TestParseJSONErrors(t *testing.T) {
	tests := map[string]string{
		"NotJSON":   "hello",
		"TooFew":    `[[1,2,3]]`,
		"Ragged":    strings.Replace(snapshot(func(_, _ int) float64 { return 1 }), "[1,", "[", 1),
		"NotArrays": `{"a": 1}`,
	}
	for name, doc := range tests {
		t.Run(name, func(t *testing.T) {
			_, err := ParseJSON(strings.NewReader(doc))
			assert.Error(t, err)
		})
	}
}

func TestFromImageDarkBackground(t *testing.T) {
	img := image.NewGray(image.Rect(0, 0, Size, Size))
	for y := 4; y < 24; y++ {
		img.SetGray(14, y, color.Gray{Y: 255})
	}

	g := FromImage(img)
	assert.Equal(t, uint8(255), g[10][14])
	assert.Equal(t, uint8(0), g[0][0])
	assert.Equal(t, 20, g.Ink())
}

func TestFromImageInvertsLightBackground(t *testing.T) {
	img := image.NewGray(image.Rect(0, 0, Size, Size))
	for y := range Size {
		for x := range Size {
			img.SetGray(x, y, color.Gray{Y: 255})
		}
	}
	img.SetGray(14, 14, color.Gray{Y: 0})

	g := FromImage(img)
	assert.Equal(t, uint8(255), g[14][14])
	assert.Equal(t, uint8(0), g[0][0])
	assert.Equal(t, 1, g.Ink())
}

func TestFromImageResizes(t *testing.T) {
	// A wide image keeps its aspect ratio and is centered vertically.
	img := imaging.New(112, 56, color.Black)
	g := FromImage(img)
	assert.Equal(t, 0, g.Ink())

	white := imaging.New(56, 112, color.White)
	g = FromImage(white)
	// All-white inverts to all-black.
	assert.Equal(t, 0, g.Ink())
}

func TestDecodeAndOpen(t *testing.T) {
	img := image.NewGray(image.Rect(0, 0, Size, Size))
	img.SetGray(3, 5, color.Gray{Y: 200})

	var buf bytes.Buffer
	require.NoError(t, png.Encode(&buf, img))
	g, err := Decode(bytes.NewReader(buf.Bytes()))
	require.NoError(t, err)
	assert.Equal(t, uint8(200), g[5][3])

	path := filepath.Join(t.TempDir(), "digit.png")
	require.NoError(t, imaging.Save(img, path))
	g, err = Open(path)
	require.NoError(t, err)
	assert.Equal(t, uint8(200), g[5][3])

	_, err = Decode(strings.NewReader("not an image"))
	assert.Error(t, err)
	_, err = Open(filepath.Join(t.TempDir(), "missing.png"))
	assert.Error(t, err)
}
