package document

import (
	"fmt"
	"image"

	colorful "github.com/lucasb-eyer/go-colorful"
)

// ColorMode selects how rendered pixels are recolored.
type ColorMode int

const (
	ColorNormal ColorMode = iota
	ColorInverted
	// ColorCustom maps paper to BG and ink to FG.
	ColorCustom
)

// RGB is an opaque 8-bit color.
type RGB struct {
	R, G, B uint8
}

// ParseHex parses "#rrggbb" into an RGB.
func ParseHex(s string) (RGB, error) {
	c, err := colorful.Hex(s)
	if err != nil {
		return RGB{}, fmt.Errorf("parse color %q: %w", s, err)
	}
	r, g, b := c.Clamped().RGB255()
	return RGB{R: r, G: g, B: b}, nil
}

// ColorTransform is part of the render key, so it must stay comparable.
type ColorTransform struct {
	Mode ColorMode
	FG   RGB
	BG   RGB
}

// Normal is the identity transform.
var Normal = ColorTransform{}

// Inverted is the inverted-colors transform.
var Inverted = ColorTransform{Mode: ColorInverted}

// Custom builds a transform that paints ink with fg and paper with bg.
func Custom(fg, bg RGB) ColorTransform {
	return ColorTransform{Mode: ColorCustom, FG: fg, BG: bg}
}

func (c ColorTransform) String() string {
	switch c.Mode {
	case ColorInverted:
		return "inverted"
	case ColorCustom:
		return fmt.Sprintf("custom(#%02x%02x%02x/#%02x%02x%02x)", c.FG.R, c.FG.G, c.FG.B, c.BG.R, c.BG.G, c.BG.B)
	default:
		return "normal"
	}
}

// Apply recolors img in place.
func (c ColorTransform) Apply(img *image.RGBA) {
	switch c.Mode {
	case ColorInverted:
		forEachPixel(img, func(p []uint8) {
			p[0], p[1], p[2] = 255-p[0], 255-p[1], 255-p[2]
		})
	case ColorCustom:
		fg := colorful.Color{R: float64(c.FG.R) / 255, G: float64(c.FG.G) / 255, B: float64(c.FG.B) / 255}
		bg := colorful.Color{R: float64(c.BG.R) / 255, G: float64(c.BG.G) / 255, B: float64(c.BG.B) / 255}
		var lut [256][3]uint8
		for i := range lut {
			// i is paper brightness: 255 is paper, 0 is ink.
			r, g, b := fg.BlendRgb(bg, float64(i)/255).Clamped().RGB255()
			lut[i] = [3]uint8{r, g, b}
		}
		forEachPixel(img, func(p []uint8) {
			lum := (299*int(p[0]) + 587*int(p[1]) + 114*int(p[2])) / 1000
			m := lut[lum]
			p[0], p[1], p[2] = m[0], m[1], m[2]
		})
	}
}

func forEachPixel(img *image.RGBA, fn func(p []uint8)) {
	b := img.Bounds()
	for y := b.Min.Y; y < b.Max.Y; y++ {
		off := img.PixOffset(b.Min.X, y)
		row := img.Pix[off : off+b.Dx()*4]
		for x := 0; x+3 < len(row); x += 4 {
			fn(row[x : x+4])
		}
	}
}
