package imageproc

import (
	"image"
	"image/color"

	"github.com/fogleman/gg"
	"golang.org/x/image/font"
)

// Rasterizer draws a single line of text with its top-left corner at the
// given point, outlined with a stroke of strokeWidth pixels.
type Rasterizer interface {
	DrawLine(text string, at image.Point, face font.Face, fill, stroke color.Color, strokeWidth int)
}

// CanvasDrawer rasterizes onto an RGBA copy of an image.
type CanvasDrawer struct {
	dc *gg.Context
}

func NewCanvasDrawer(img image.Image) *CanvasDrawer {
	return &CanvasDrawer{dc: gg.NewContextForImage(img)}
}

func (d *CanvasDrawer) Image() image.Image {
	return d.dc.Image()
}

func (d *CanvasDrawer) DrawLine(text string, at image.Point, face font.Face, fill, stroke color.Color, strokeWidth int) {
	d.dc.SetFontFace(face)
	x := float64(at.X)
	y := float64(at.Y + face.Metrics().Ascent.Round())

	if stroke != nil {
		d.dc.SetColor(stroke)
		for _, off := range strokeOffsets(strokeWidth) {
			d.dc.DrawString(text, x+float64(off.X), y+float64(off.Y))
		}
	}
	d.dc.SetColor(fill)
	d.dc.DrawString(text, x, y)
}

// strokeOffsets lists the positions a line is repeated at to outline it.
func strokeOffsets(width int) []image.Point {
	var offsets []image.Point
	for dy := -width; dy <= width; dy++ {
		for dx := -width; dx <= width; dx++ {
			if dx == 0 && dy == 0 {
				continue
			}
			// keep the corners of the square for thin strokes, round them off for thick ones
			if width > 1 && dx*dx+dy*dy > width*width {
				continue
			}
			offsets = append(offsets, image.Pt(dx, dy))
		}
	}
	return offsets
}
