package caption

import (
	"errors"
	"fmt"
	"image"
	"image/color"
	"math/rand"
)

// shrinkRatio narrows the wrap budget when unwrapped text is wider than the image.
const shrinkRatio = 1.5

// DefaultMinFontSize is the smallest size ShrinkToFit goes down to when
// Options.MinFontSize is unset.
const DefaultMinFontSize = 8

var ErrLayoutOverflow = errors.New("caption does not fit in image")

type Role int

const (
	Body Role = iota
	Author
)

func (r Role) String() string {
	if r == Author {
		return "author"
	}
	return "body"
}

// Line is one line of text to draw with its top-left corner at At.
type Line struct {
	Role  Role
	Text  string
	At    image.Point
	Font  FontSpec
	Color color.Color
}

// Text is the input for one block of a caption.
type Text struct {
	Content string
	Font    FontSpec
	Color   color.Color
}

type Options struct {
	// Shift offsets the author block from its place under the body.
	Shift image.Point
	Wrap  WrapMode
	// ShrinkToFit retries an overflowing layout with both fonts one pixel
	// smaller until it fits or MinFontSize is reached.
	ShrinkToFit bool
	MinFontSize int
}

// Layout stacks a body block above an author block inside an image.
type Layout struct {
	Body   *Block
	Author *Block
	Size   image.Point
	Shift  image.Point
	Wrap   WrapMode

	// Box is the bounding box size, valid after Fit.
	Box image.Point
}

func New(body, author *Block, size image.Point, opts Options) *Layout {
	return &Layout{
		Body:   body,
		Author: author,
		Size:   size,
		Shift:  opts.Shift,
		Wrap:   opts.Wrap,
	}
}

// Budget returns the pixel width both blocks are wrapped to.
func (l *Layout) Budget() int {
	w := l.Size.X
	if max(l.Body.SingleLineWidth(), l.Author.SingleLineWidth()) >= w {
		return int(float64(w) / shrinkRatio)
	}
	return w
}

// Fit wraps both blocks and returns the size of their bounding box.
func (l *Layout) Fit() image.Point {
	budget := l.Budget()
	l.Body.WrapWith(budget, l.Wrap)
	l.Author.WrapWith(budget, l.Wrap)
	l.Box = image.Pt(
		max(l.Body.Width, l.Author.Width+l.Shift.X),
		l.Body.Height+l.Author.Height+l.Shift.Y,
	)
	return l.Box
}

// Place draws a top-left point for the box uniformly from every position
// that keeps it inside the image.
func (l *Layout) Place(rng *rand.Rand) (image.Point, error) {
	free := l.Size.Sub(l.Box)
	if free.X < 0 || free.Y < 0 {
		return image.Point{}, fmt.Errorf("%w: box %dx%d, image %dx%d",
			ErrLayoutOverflow, l.Box.X, l.Box.Y, l.Size.X, l.Size.Y)
	}
	return image.Pt(rng.Intn(free.X+1), rng.Intn(free.Y+1)), nil
}

// Lines returns the draw instructions for a box anchored at origin.
func (l *Layout) Lines(origin image.Point) []Line {
	lines := blockLines(Body, l.Body, origin)
	authorAt := origin.Add(image.Pt(0, l.Body.Height)).Add(l.Shift)
	return append(lines, blockLines(Author, l.Author, authorAt)...)
}

// Arrange fits, places and emits the caption.
func (l *Layout) Arrange(rng *rand.Rand) ([]Line, error) {
	l.Fit()
	at, err := l.Place(rng)
	if err != nil {
		return nil, err
	}
	return l.Lines(at), nil
}

func blockLines(role Role, b *Block, at image.Point) []Line {
	lines := make([]Line, 0, len(b.Lines))
	for i, text := range b.Lines {
		lines = append(lines, Line{
			Role:  role,
			Text:  text,
			At:    at.Add(image.Pt(0, i*b.Font.Size)),
			Font:  b.Font,
			Color: b.Color,
		})
	}
	return lines
}

// Arrange builds both blocks and lays them out in an image of the given size.
// With ShrinkToFit set, an overflowing caption is retried at smaller sizes;
// otherwise, or once both fonts reach the minimum, ErrLayoutOverflow is returned.
func Arrange(m Measurer, body, author Text, size image.Point, rng *rand.Rand, opts Options) (*Layout, []Line, error) {
	if size.X <= 0 || size.Y <= 0 {
		return nil, nil, fmt.Errorf("invalid image size %dx%d", size.X, size.Y)
	}
	if body.Font.Size <= 0 || author.Font.Size <= 0 {
		return nil, nil, fmt.Errorf("invalid font size: body %d, author %d", body.Font.Size, author.Font.Size)
	}
	minSize := opts.MinFontSize
	if minSize <= 0 {
		minSize = DefaultMinFontSize
	}

	for {
		l := New(
			NewBlock(m, body.Content, body.Font, body.Color),
			NewBlock(m, author.Content, author.Font, author.Color),
			size, opts,
		)
		lines, err := l.Arrange(rng)
		if err == nil {
			return l, lines, nil
		}
		if !opts.ShrinkToFit || (body.Font.Size <= minSize && author.Font.Size <= minSize) {
			return nil, nil, err
		}
		body.Font.Size = shrink(body.Font.Size, minSize)
		author.Font.Size = shrink(author.Font.Size, minSize)
	}
}

func shrink(size, floor int) int {
	if size > floor {
		return size - 1
	}
	return size
}
