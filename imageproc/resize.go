package imageproc

import (
	"image"
	"image/draw"
	"image/gif"
	"math"

	"github.com/disintegration/imaging"
)

// ScaledHeight keeps the aspect ratio of size at the given width.
func ScaledHeight(size image.Point, width int) int {
	h := int(math.Round(float64(size.Y) * float64(width) / float64(size.X)))
	return max(h, 1)
}

// Resize scales img to width pixels wide, up or down, keeping its aspect ratio.
func Resize(img image.Image, width int) *image.NRGBA {
	height := ScaledHeight(img.Bounds().Size(), width)
	return imaging.Resize(img, width, height, imaging.Lanczos)
}

// ResizeGIF scales every frame of g in place. Frames are resampled with
// nearest neighbour so their palettes and transparency survive.
func ResizeGIF(g *gif.GIF, width int) {
	screen := gifScreen(g)
	if screen.Dx() == width {
		g.Config.Width, g.Config.Height = screen.Dx(), screen.Dy()
		return
	}
	at := func(v int) int {
		return int(math.Round(float64(v) * float64(width) / float64(screen.Dx())))
	}
	bounds := image.Rect(0, 0, width, ScaledHeight(screen.Size(), width))

	for i, frame := range g.Image {
		b := frame.Bounds()
		nb := image.Rect(at(b.Min.X), at(b.Min.Y), at(b.Max.X), at(b.Max.Y))
		if nb.Dx() < 1 {
			nb.Max.X = nb.Min.X + 1
		}
		if nb.Dy() < 1 {
			nb.Max.Y = nb.Min.Y + 1
		}
		if nb = nb.Intersect(bounds); nb.Empty() {
			nb = image.Rect(0, 0, 1, 1)
		}
		scaled := imaging.Resize(frame, nb.Dx(), nb.Dy(), imaging.NearestNeighbor)
		dst := image.NewPaletted(nb, frame.Palette)
		draw.Draw(dst, nb, scaled, image.Point{}, draw.Src)
		g.Image[i] = dst
	}
	g.Config.Width, g.Config.Height = bounds.Dx(), bounds.Dy()
}

// gifScreen is the logical screen of g, falling back to the union of its
// frames when the header leaves it empty.
func gifScreen(g *gif.GIF) image.Rectangle {
	if g.Config.Width > 0 && g.Config.Height > 0 {
		return image.Rect(0, 0, g.Config.Width, g.Config.Height)
	}
	var r image.Rectangle
	for _, frame := range g.Image {
		r = r.Union(frame.Bounds())
	}
	return image.Rect(0, 0, r.Max.X, r.Max.Y)
}
