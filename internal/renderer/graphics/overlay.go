package graphics

import (
	"image"
	"image/color"

	xdraw "golang.org/x/image/draw"
)

// HighlightColor tints search matches.
var HighlightColor = color.NRGBA{R: 255, G: 210, B: 0, A: 110}

// Highlight returns a copy of img with boxes tinted by c. img is left
// untouched so cached bitmaps stay clean.
func Highlight(img *image.RGBA, boxes []image.Rectangle, c color.Color) *image.RGBA {
	if len(boxes) == 0 {
		return img
	}
	out := image.NewRGBA(img.Bounds())
	xdraw.Draw(out, out.Bounds(), img, img.Bounds().Min, xdraw.Src)

	tint := image.NewUniform(c)
	for _, b := range boxes {
		r := b.Intersect(out.Bounds())
		if r.Empty() {
			continue
		}
		xdraw.Draw(out, r, tint, image.Point{}, xdraw.Over)
	}
	return out
}
