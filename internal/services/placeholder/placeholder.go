// Package placeholder renders deterministic PNG illustrations used when neither
// an AI nor a stock image is available.
package placeholder

import (
	"bytes"
	"hash/fnv"
	"image"
	"image/color"
	"image/png"
)

const (
	width  = 700
	height = 500
)

// Renderer implements services.PlaceholderProvider.
type Renderer struct{}

// New returns a placeholder renderer.
func New() Renderer { return Renderer{} }

// Name identifies the provider in logs and metrics.
func (Renderer) Name() string { return "placeholder" }

// Placeholder returns a PNG whose palette and band layout derive from seed, so the
// same seed always yields identical bytes.
func (Renderer) Placeholder(seed string) []byte {
	h := fnv.New64a()
	_, _ = h.Write([]byte(seed))
	sum := h.Sum64()

	top := paletteColor(sum)
	bottom := paletteColor(sum >> 24)
	accent := paletteColor(sum >> 40)
	bands := int(sum%5) + 3

	img := image.NewRGBA(image.Rect(0, 0, width, height))
	for y := 0; y < height; y++ {
		row := blend(top, bottom, float64(y)/float64(height-1))
		for x := 0; x < width; x++ {
			c := row
			if (x*bands/width)%2 == 0 && y > height/3 && y < 2*height/3 {
				c = blend(row, accent, 0.35)
			}
			img.SetRGBA(x, y, c)
		}
	}

	var buf bytes.Buffer
	// Encoding an in-memory RGBA image cannot fail.
	_ = png.Encode(&buf, img)
	return buf.Bytes()
}

func paletteColor(v uint64) color.RGBA {
	return color.RGBA{
		R: uint8(64 + v%160),
		G: uint8(64 + (v>>8)%160),
		B: uint8(64 + (v>>16)%160),
		A: 255,
	}
}

func blend(a, b color.RGBA, t float64) color.RGBA {
	mix := func(x, y uint8) uint8 { return uint8(float64(x)*(1-t) + float64(y)*t) }
	return color.RGBA{R: mix(a.R, b.R), G: mix(a.G, b.G), B: mix(a.B, b.B), A: 255}
}
