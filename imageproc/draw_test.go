package imageproc

import (
	"image"
	"image/color"
	"image/draw"
	"testing"

	"github.com/malcolmseyd/quotememe/caption"
)

func TestStrokeOffsets(t *testing.T) {
	tests := []struct {
		width int
		want  int
	}{
		{0, 0},
		{1, 8},
		{2, 12},
	}
	for _, tt := range tests {
		if got := strokeOffsets(tt.width); len(got) != tt.want {
			t.Errorf("strokeOffsets(%d) has %d points, want %d", tt.width, len(got), tt.want)
		}
	}
}

type pixelCount struct {
	fill, stroke int
	minY         int
}

func isRed(r, g, b uint32) bool   { return r > 0xc000 && g < 0x4000 && b < 0x4000 }
func isWhite(r, g, b uint32) bool { return r > 0xc000 && g > 0xc000 && b > 0xc000 }

func countPixels(img image.Image, fill, stroke func(r, g, b uint32) bool) pixelCount {
	bounds := img.Bounds()
	c := pixelCount{minY: bounds.Max.Y}
	for y := bounds.Min.Y; y < bounds.Max.Y; y++ {
		for x := bounds.Min.X; x < bounds.Max.X; x++ {
			r, g, b, _ := img.At(x, y).RGBA()
			if r == 0 && g == 0 && b == 0 {
				continue
			}
			switch {
			case fill(r, g, b):
				c.fill++
			case stroke(r, g, b):
				c.stroke++
			}
			c.minY = min(c.minY, y)
		}
	}
	return c
}

func TestCanvasDrawerDrawLine(t *testing.T) {
	src := image.NewRGBA(image.Rect(0, 0, 200, 80))
	draw.Draw(src, src.Bounds(), image.NewUniform(color.Black), image.Point{}, draw.Src)

	face, err := NewFontBook().Face(caption.FontSpec{Family: MonoBold, Size: 20})
	if err != nil {
		t.Fatal(err)
	}
	red := color.RGBA{R: 255, A: 255}
	d := NewCanvasDrawer(src)
	d.DrawLine("WOOF", image.Pt(10, 20), face, red, color.White, 1)

	got := countPixels(d.Image(), isRed, isWhite)
	if got.fill == 0 {
		t.Error("no fill pixels drawn")
	}
	if got.stroke == 0 {
		t.Error("no stroke pixels drawn")
	}
	if got.minY < 19 {
		t.Errorf("text reaches row %d, above the line's top 20 minus the stroke", got.minY)
	}
	// the source is copied, not drawn on
	if r, _, _, _ := src.At(20, 30).RGBA(); r != 0 {
		t.Error("source image was modified")
	}
}

func TestCanvasDrawerNoStroke(t *testing.T) {
	src := image.NewRGBA(image.Rect(0, 0, 120, 40))
	face, err := NewFontBook().Face(caption.FontSpec{Family: Mono, Size: 16})
	if err != nil {
		t.Fatal(err)
	}
	d := NewCanvasDrawer(src)
	d.DrawLine("bark", image.Pt(0, 0), face, color.White, nil, 1)
	if got := countPixels(d.Image(), isWhite, isRed); got.fill == 0 {
		t.Error("no fill pixels drawn")
	}
}
