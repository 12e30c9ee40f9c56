// Package caption computes where a quote caption goes on an image.
//
// A caption is two stacked text blocks, the quote body above its author.
// The package wraps both blocks, sizes their bounding box and picks a random
// top-left point that keeps the box inside the image. It never touches pixels:
// text measurement comes from a Measurer and the result is a list of Line
// instructions for a rasterizer.
package caption

import (
	"fmt"
	"image/color"
	"strings"

	"github.com/mitchellh/go-wordwrap"
)

// glyphRatio is the assumed ratio between font size and average glyph width.
const glyphRatio = 1.5

// FontSpec names a font family at a pixel size.
type FontSpec struct {
	Family string
	Size   int
}

// Measurer reports the rendered pixel width of text in a font.
type Measurer interface {
	Measure(text string, font FontSpec) int
}

type WrapMode int

const (
	// WrapHeuristic breaks lines on a character budget derived from the font
	// size and reports the first line's width as the block width.
	WrapHeuristic WrapMode = iota
	// WrapMeasured breaks lines on measured pixel width and reports the widest
	// line as the block width.
	WrapMeasured
)

func (m WrapMode) String() string {
	switch m {
	case WrapHeuristic:
		return "heuristic"
	case WrapMeasured:
		return "measured"
	}
	return "unknown"
}

// ParseWrapMode is the inverse of WrapMode.String. The empty string is the
// default mode.
func ParseWrapMode(s string) (WrapMode, error) {
	if s == "" {
		return WrapHeuristic, nil
	}
	for _, m := range []WrapMode{WrapHeuristic, WrapMeasured} {
		if s == m.String() {
			return m, nil
		}
	}
	return 0, fmt.Errorf("unknown wrap mode %q", s)
}

// Block is a single run of caption text in one font and color.
//
// It is built in two steps: NewBlock measures the text on a single line, and
// Wrap breaks it into lines for a width budget and fills in the metrics.
type Block struct {
	Text  string
	Font  FontSpec
	Color color.Color

	Lines   []string
	Width   int
	Height  int
	Spacing int

	m         Measurer
	lineWidth int
}

func NewBlock(m Measurer, text string, font FontSpec, c color.Color) *Block {
	return &Block{
		Text:      text,
		Font:      font,
		Color:     c,
		m:         m,
		lineWidth: m.Measure(text, font),
	}
}

// SingleLineWidth is the width of the whole text rendered on one line.
func (b *Block) SingleLineWidth() int {
	return b.lineWidth
}

// Wrap breaks the text with the character budget heuristic.
func (b *Block) Wrap(maxWidth int) {
	b.WrapWith(maxWidth, WrapHeuristic)
}

func (b *Block) WrapWith(maxWidth int, mode WrapMode) {
	switch mode {
	case WrapMeasured:
		b.Lines = wrapPixels(b.m, b.Text, b.Font, maxWidth)
		b.Width = 0
		for _, line := range b.Lines {
			b.Width = max(b.Width, b.m.Measure(line, b.Font))
		}
	default:
		b.Lines = wrapChars(b.Text, MaxChars(maxWidth, b.Font.Size))
		// only the first line is measured, longer lines below it may overhang
		b.Width = b.m.Measure(b.Lines[0], b.Font)
	}
	b.Height = b.Font.Size * len(b.Lines)
	b.Spacing = b.Font.Size / 5
}

// MaxChars converts a pixel budget into a line length in characters.
func MaxChars(maxWidth, fontSize int) int {
	if fontSize <= 0 {
		return 0
	}
	return int(float64(maxWidth) / float64(fontSize) * glyphRatio)
}

func wrapChars(text string, limit int) []string {
	// below 2 the wrapper never breaks, and 2 already puts every word on its own line
	if limit < 2 {
		limit = 2
	}
	normalized := strings.Join(strings.Fields(text), " ")
	return strings.Split(wordwrap.WrapString(normalized, uint(limit)), "\n")
}

func wrapPixels(m Measurer, text string, font FontSpec, maxWidth int) []string {
	words := strings.Fields(text)
	if len(words) == 0 {
		return []string{""}
	}
	var lines []string
	line := words[0]
	for _, word := range words[1:] {
		candidate := line + " " + word
		if m.Measure(candidate, font) <= maxWidth {
			line = candidate
			continue
		}
		lines = append(lines, line)
		line = word
	}
	return append(lines, line)
}
