package imageproc

import (
	"bytes"
	"errors"
	"fmt"
	"image"
	"image/color"
	"image/gif"
	"math/rand"
	"os"
	"path/filepath"
	"runtime"
	"sync"
	"time"

	"github.com/disintegration/imaging"
	"github.com/malcolmseyd/quotememe/caption"
	"github.com/malcolmseyd/quotememe/quote"
	"golang.org/x/image/font"
	_ "golang.org/x/image/webp"
	"golang.org/x/sync/errgroup"
)

// MaxImageWidth is the default width memes are resized to.
const MaxImageWidth = 500

const outputName = "output.jpg"

// ErrDecode is returned for image data no registered decoder understands.
var ErrDecode = errors.New("can't decode image")

// Style is how one caption block is painted.
type Style struct {
	Font        caption.FontSpec
	Fill        color.Color
	Stroke      color.Color
	StrokeWidth int
}

var (
	DefaultBodyStyle = Style{
		Font:        caption.FontSpec{Family: MonoBold, Size: 20},
		Fill:        color.RGBA{G: 80, A: 255},
		Stroke:      color.White,
		StrokeWidth: 1,
	}
	DefaultAuthorStyle = Style{
		Font:        caption.FontSpec{Family: Mono, Size: 16},
		Fill:        color.Black,
		Stroke:      color.White,
		StrokeWidth: 1,
	}
)

// Engine captions images with quotes.
//
// MakeMeme always writes to the same file in the output directory, so
// concurrent calls overwrite each other's result; the last one to finish
// wins. Callers that need a result per request use MakeMemeBytes or Compose.
type Engine struct {
	fonts  *FontBook
	body   Style
	author Style
	layout caption.Options
	output string

	rngMu sync.Mutex
	rng   *rand.Rand

	outMu sync.Mutex
}

type Option func(*Engine)

// WithSeed makes caption placement repeatable.
func WithSeed(seed int64) Option {
	return func(e *Engine) {
		e.rng = rand.New(rand.NewSource(seed))
	}
}

// WithFonts makes the engine resolve families in fonts instead of a
// fresh FontBook.
func WithFonts(fonts *FontBook) Option {
	return func(e *Engine) {
		e.fonts = fonts
	}
}

func WithStyles(body, author Style) Option {
	return func(e *Engine) {
		e.body = body
		e.author = author
	}
}

func WithLayout(opts caption.Options) Option {
	return func(e *Engine) {
		e.layout = opts
	}
}

// LoadStyles returns the default styles with the font families swapped for
// bodyFont and authorFont where those are set. Both families must load
// from fonts.
func LoadStyles(fonts *FontBook, bodyFont, authorFont string) (body, author Style, err error) {
	body, author = DefaultBodyStyle, DefaultAuthorStyle
	if bodyFont != "" {
		body.Font.Family = bodyFont
	}
	if authorFont != "" {
		author.Font.Family = authorFont
	}
	for _, family := range []string{body.Font.Family, author.Font.Family} {
		if _, err := fonts.Lookup(family); err != nil {
			return Style{}, Style{}, err
		}
	}
	return body, author, nil
}

// NewEngine creates outputDir if needed and returns an engine writing its
// memes there.
func NewEngine(outputDir string, opts ...Option) (*Engine, error) {
	if err := os.MkdirAll(outputDir, 0o755); err != nil {
		return nil, fmt.Errorf("can't create output dir: %w", err)
	}
	e := &Engine{
		fonts:  NewFontBook(),
		body:   DefaultBodyStyle,
		author: DefaultAuthorStyle,
		output: filepath.Join(outputDir, outputName),
		rng:    rand.New(rand.NewSource(time.Now().UnixNano())),
	}
	for _, opt := range opts {
		opt(e)
	}
	return e, nil
}

func (e *Engine) OutputPath() string {
	return e.output
}

// MakeMeme captions the image at imagePath and writes it to the output path,
// which it returns. The output file is only replaced once the new meme is
// fully encoded.
func (e *Engine) MakeMeme(imagePath string, q quote.Quote, width int) (string, error) {
	src, err := imaging.Open(imagePath, imaging.AutoOrientation(true))
	if err != nil {
		return "", fmt.Errorf("can't open image: %w", err)
	}
	dst, err := e.Compose(src, q, width)
	if err != nil {
		return "", err
	}

	e.outMu.Lock()
	defer e.outMu.Unlock()
	if err := writeImage(e.output, dst); err != nil {
		return "", err
	}
	return e.output, nil
}

// MakeMemeBytes captions an encoded image. Animated GIFs stay GIFs with every
// frame captioned, anything else comes back as JPEG.
func (e *Engine) MakeMemeBytes(rawImage []byte, q quote.Quote, width int) ([]byte, error) {
	_, format, err := image.DecodeConfig(bytes.NewReader(rawImage))
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrDecode, err)
	}

	outBuf := bytes.NewBuffer(nil)
	if format == "gif" {
		img, err := gif.DecodeAll(bytes.NewReader(rawImage))
		if err != nil {
			return nil, fmt.Errorf("%w: %v", ErrDecode, err)
		}
		if err := e.ComposeGIF(img, q, width); err != nil {
			return nil, err
		}
		if err := gif.EncodeAll(outBuf, img); err != nil {
			return nil, fmt.Errorf("can't encode gif: %w", err)
		}
		return outBuf.Bytes(), nil
	}

	src, err := imaging.Decode(bytes.NewReader(rawImage), imaging.AutoOrientation(true))
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrDecode, err)
	}
	dst, err := e.Compose(src, q, width)
	if err != nil {
		return nil, err
	}
	if err := imaging.Encode(outBuf, dst, imaging.JPEG); err != nil {
		return nil, fmt.Errorf("can't encode jpeg: %w", err)
	}
	return outBuf.Bytes(), nil
}

// Compose resizes src to width and draws the caption on it.
func (e *Engine) Compose(src image.Image, q quote.Quote, width int) (image.Image, error) {
	if width <= 0 {
		return nil, fmt.Errorf("invalid width %d", width)
	}
	resized := Resize(src, width)
	lines, err := e.arrange(resized.Bounds().Size(), q)
	if err != nil {
		return nil, err
	}

	canvas := NewCanvasDrawer(resized)
	if err := e.drawCaption(canvas, lines); err != nil {
		return nil, err
	}
	return canvas.Image(), nil
}

// ComposeGIF resizes every frame of g and draws the same caption on each.
func (e *Engine) ComposeGIF(g *gif.GIF, q quote.Quote, width int) error {
	if width <= 0 {
		return fmt.Errorf("invalid width %d", width)
	}
	if len(g.Image) == 0 {
		return fmt.Errorf("can't caption a gif without frames")
	}
	ResizeGIF(g, width)
	lines, err := e.arrange(image.Pt(g.Config.Width, g.Config.Height), q)
	if err != nil {
		return err
	}

	var group errgroup.Group
	group.SetLimit(runtime.NumCPU())
	for _, frame := range g.Image {
		frame := frame
		group.Go(func() error {
			return e.drawCaption(&GifDrawer{Dst: frame}, lines)
		})
	}
	return group.Wait()
}

func (e *Engine) arrange(size image.Point, q quote.Quote) ([]caption.Line, error) {
	for _, spec := range []caption.FontSpec{e.body.Font, e.author.Font} {
		if _, err := e.fonts.Lookup(spec.Family); err != nil {
			return nil, err
		}
	}
	body := caption.Text{Content: `"` + q.Body + `"`, Font: e.body.Font, Color: e.body.Fill}
	author := caption.Text{Content: "- " + q.Author, Font: e.author.Font, Color: e.author.Fill}

	e.rngMu.Lock()
	defer e.rngMu.Unlock()
	_, lines, err := caption.Arrange(e.fonts, body, author, size, e.rng, e.layout)
	if err != nil {
		return nil, fmt.Errorf("can't lay out caption: %w", err)
	}
	return lines, nil
}

func (e *Engine) drawCaption(r Rasterizer, lines []caption.Line) error {
	faces := make(map[caption.FontSpec]font.Face)
	for _, line := range lines {
		face, ok := faces[line.Font]
		if !ok {
			var err error
			face, err = e.fonts.Face(line.Font)
			if err != nil {
				return err
			}
			faces[line.Font] = face
		}
		style := e.body
		if line.Role == caption.Author {
			style = e.author
		}
		r.DrawLine(line.Text, line.At, face, line.Color, style.Stroke, style.StrokeWidth)
	}
	return nil
}

func writeImage(path string, img image.Image) error {
	format, err := imaging.FormatFromFilename(path)
	if err != nil {
		return fmt.Errorf("can't pick output format: %w", err)
	}
	tmp, err := os.CreateTemp(filepath.Dir(path), ".meme-*"+filepath.Ext(path))
	if err != nil {
		return fmt.Errorf("can't create output file: %w", err)
	}
	defer os.Remove(tmp.Name())

	if err := imaging.Encode(tmp, img, format); err != nil {
		tmp.Close()
		return fmt.Errorf("can't encode %s: %w", format, err)
	}
	if err := tmp.Close(); err != nil {
		return fmt.Errorf("can't write output file: %w", err)
	}
	if err := os.Rename(tmp.Name(), path); err != nil {
		return fmt.Errorf("can't write output file: %w", err)
	}
	return nil
}
