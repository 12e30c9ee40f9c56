package imageproc

import (
	"image"
	"image/color"

	"golang.org/x/image/font"
	"golang.org/x/image/math/fixed"
)

// GifDrawer writes glyphs straight into a paletted frame using the palette
// entry closest to Src. Pixels are either set or left alone, there is no
// blending.
type GifDrawer struct {
	// image to draw on in place
	Dst  *image.Paletted
	Src  *image.Uniform
	Face font.Face
	// baseline origin of the next glyph
	Dot fixed.Point26_6
}

func (d *GifDrawer) DrawString(s string) {
	colorIdx := uint8(d.Dst.Palette.Index(d.Src.C))
	prevC := rune(-1)
	for _, c := range s {
		if prevC >= 0 {
			d.Dot.X += d.Face.Kern(prevC, c)
		}
		dr, mask, maskp, advance, ok := d.Face.Glyph(d.Dot, c)
		if !ok {
			continue
		}

		for y := 0; y < dr.Dy(); y++ {
			for x := 0; x < dr.Dx(); x++ {
				_, _, _, a := mask.At(maskp.X+x, maskp.Y+y).RGBA()
				if a > 0x8000 {
					d.Dst.SetColorIndex(dr.Min.X+x, dr.Min.Y+y, colorIdx)
				}
			}
		}

		d.Dot.X += advance
		prevC = c
	}
}

func (d *GifDrawer) DrawLine(text string, at image.Point, face font.Face, fill, stroke color.Color, strokeWidth int) {
	d.Face = face
	baseline := at.Y + face.Metrics().Ascent.Round()

	if stroke != nil {
		d.Src = image.NewUniform(stroke)
		for _, off := range strokeOffsets(strokeWidth) {
			d.Dot = fixed.P(at.X+off.X, baseline+off.Y)
			d.DrawString(text)
		}
	}
	d.Src = image.NewUniform(fill)
	d.Dot = fixed.P(at.X, baseline)
	d.DrawString(text)
}
