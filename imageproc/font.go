package imageproc

import (
	"fmt"
	"log"
	"os"
	"path/filepath"
	"strings"
	"sync"

	"github.com/malcolmseyd/quotememe/caption"
	"golang.org/x/image/font"
	"golang.org/x/image/font/gofont/gobold"
	"golang.org/x/image/font/gofont/gomono"
	"golang.org/x/image/font/gofont/gomonobold"
	"golang.org/x/image/font/gofont/goregular"
	"golang.org/x/image/font/opentype"
	"golang.org/x/image/font/sfnt"
	"golang.org/x/image/math/fixed"
)

// Built-in font families.
const (
	MonoBold = "gomono-bold"
	Mono     = "gomono"
	Regular  = "goregular"
	Bold     = "gobold"
)

var builtinFonts = map[string][]byte{
	MonoBold: gomonobold.TTF,
	Mono:     gomono.TTF,
	Regular:  goregular.TTF,
	Bold:     gobold.TTF,
}

// FontBook resolves font families and measures text. A family is a built-in
// name, a name added with Register, or a path to a .ttf/.otf file.
type FontBook struct {
	mu    sync.Mutex
	fonts map[string]*sfnt.Font
	faces map[caption.FontSpec]font.Face
}

func NewFontBook() *FontBook {
	return &FontBook{
		fonts: make(map[string]*sfnt.Font),
		faces: make(map[caption.FontSpec]font.Face),
	}
}

func (b *FontBook) Register(family string, data []byte) error {
	f, err := opentype.Parse(data)
	if err != nil {
		return fmt.Errorf("can't parse font %s: %w", family, err)
	}
	b.mu.Lock()
	defer b.mu.Unlock()
	b.fonts[family] = f
	for spec := range b.faces {
		if spec.Family == family {
			delete(b.faces, spec)
		}
	}
	return nil
}

// Lookup returns the parsed font for a family, loading it on first use.
func (b *FontBook) Lookup(family string) (*sfnt.Font, error) {
	b.mu.Lock()
	defer b.mu.Unlock()
	return b.lookup(family)
}

func (b *FontBook) lookup(family string) (*sfnt.Font, error) {
	if f, ok := b.fonts[family]; ok {
		return f, nil
	}
	data, ok := builtinFonts[family]
	if !ok {
		ext := strings.ToLower(filepath.Ext(family))
		if ext != ".ttf" && ext != ".otf" {
			return nil, fmt.Errorf("unknown font family %q", family)
		}
		var err error
		data, err = os.ReadFile(family)
		if err != nil {
			return nil, fmt.Errorf("can't read font: %w", err)
		}
	}
	f, err := opentype.Parse(data)
	if err != nil {
		return nil, fmt.Errorf("can't parse font %s: %w", family, err)
	}
	b.fonts[family] = f
	return f, nil
}

// Face returns a new face for spec. Faces are not safe for concurrent use,
// so every drawing goroutine asks for its own.
func (b *FontBook) Face(spec caption.FontSpec) (font.Face, error) {
	b.mu.Lock()
	defer b.mu.Unlock()
	return b.newFace(spec)
}

func (b *FontBook) newFace(spec caption.FontSpec) (font.Face, error) {
	f, err := b.lookup(spec.Family)
	if err != nil {
		return nil, err
	}
	face, err := opentype.NewFace(f, &opentype.FaceOptions{
		Size: float64(spec.Size), DPI: 72, Hinting: font.HintingFull,
	})
	if err != nil {
		return nil, fmt.Errorf("can't make font face: %w", err)
	}
	return noKern{face}, nil
}

// Measure returns the advance width of text in whole pixels. Text in a family
// that can't be loaded measures zero.
func (b *FontBook) Measure(text string, spec caption.FontSpec) int {
	b.mu.Lock()
	defer b.mu.Unlock()

	face, ok := b.faces[spec]
	if !ok {
		var err error
		face, err = b.newFace(spec)
		if err != nil {
			log.Println("can't measure text:", err)
			return 0
		}
		b.faces[spec] = face
	}
	return font.MeasureString(face, text).Floor()
}

// noKern drops pair kerning so drawn text matches its measured width.
type noKern struct {
	font.Face
}

func (noKern) Kern(r0, r1 rune) fixed.Int26_6 { return 0 }
