// CLAUDE:SUMMARY Renders the highlight composite: frame copy with red region outlines and index labels.
package imagediff

import (
	"image"
	"image/color"
	"image/draw"
	"strconv"

	"golang.org/x/image/font"
	"golang.org/x/image/font/basicfont"
	"golang.org/x/image/math/fixed"
)

var outlineColor = color.RGBA{R: 0xE0, G: 0x20, B: 0x20, A: 0xFF}

// composite returns a copy of src with every region outlined and numbered.
// With no regions it still returns a copy so callers may release the source
// bitmap independently.
func (e *Engine) composite(src image.Image, regions []Region) image.Image {
	b := src.Bounds()
	out := image.NewRGBA(image.Rect(0, 0, b.Dx(), b.Dy()))
	draw.Draw(out, out.Bounds(), src, b.Min, draw.Src)

	for i, r := range regions {
		drawOutline(out, r, e.opts.OutlineWidth)
		drawLabel(out, r, strconv.Itoa(i+1))
	}
	return out
}

func drawOutline(img *image.RGBA, r Region, width int) {
	x1, y1 := r.X+r.Width-1, r.Y+r.Height-1
	for w := 0; w < width; w++ {
		hline(img, r.X-w, x1+w, r.Y-w)
		hline(img, r.X-w, x1+w, y1+w)
		vline(img, r.X-w, r.Y-w, y1+w)
		vline(img, x1+w, r.Y-w, y1+w)
	}
}

func hline(img *image.RGBA, x0, x1, y int) {
	b := img.Bounds()
	if y < b.Min.Y || y >= b.Max.Y {
		return
	}
	for x := max(x0, b.Min.X); x <= min(x1, b.Max.X-1); x++ {
		img.SetRGBA(x, y, outlineColor)
	}
}

func vline(img *image.RGBA, x, y0, y1 int) {
	b := img.Bounds()
	if x < b.Min.X || x >= b.Max.X {
		return
	}
	for y := max(y0, b.Min.Y); y <= min(y1, b.Max.Y-1); y++ {
		img.SetRGBA(x, y, outlineColor)
	}
}

// drawLabel places the region index just above the top-left corner of the
// outline, or inside it when there is no headroom.
func drawLabel(img *image.RGBA, r Region, text string) {
	face := basicfont.Face7x13
	x := r.X
	y := r.Y - 4
	if y-face.Ascent < img.Bounds().Min.Y {
		y = r.Y + face.Ascent + 2
	}

	d := font.Drawer{
		Dst:  img,
		Src:  image.NewUniform(outlineColor),
		Face: face,
		Dot:  fixed.P(x, y),
	}
	d.DrawString(text)
}
