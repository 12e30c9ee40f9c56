package imageproc

import (
	"bytes"
	"errors"
	"image"
	"image/color"
	"image/gif"
	"os"
	"path/filepath"
	"testing"

	"github.com/disintegration/imaging"
	"github.com/malcolmseyd/quotememe/caption"
	"github.com/malcolmseyd/quotememe/quote"
	"golang.org/x/image/font/gofont/gomono"
)

var woof = quote.Quote{Body: "Bark at the moon", Author: "Rex"}

func writePNG(t *testing.T, w, h int) string {
	t.Helper()
	img := imaging.New(w, h, color.NRGBA{R: 30, G: 90, B: 160, A: 255})
	path := filepath.Join(t.TempDir(), "dog.png")
	if err := imaging.Save(img, path); err != nil {
		t.Fatal(err)
	}
	return path
}

func encodePNG(t *testing.T, w, h int) []byte {
	t.Helper()
	var buf bytes.Buffer
	img := imaging.New(w, h, color.NRGBA{R: 200, G: 180, B: 40, A: 255})
	if err := imaging.Encode(&buf, img, imaging.PNG); err != nil {
		t.Fatal(err)
	}
	return buf.Bytes()
}

func TestNewEngineCreatesOutputDir(t *testing.T) {
	dir := filepath.Join(t.TempDir(), "a", "b")
	e, err := NewEngine(dir)
	if err != nil {
		t.Fatal(err)
	}
	if info, err := os.Stat(dir); err != nil || !info.IsDir() {
		t.Fatalf("output dir not created: %v", err)
	}
	if got, want := e.OutputPath(), filepath.Join(dir, "output.jpg"); got != want {
		t.Errorf("OutputPath() = %q, want %q", got, want)
	}
}

func TestMakeMeme(t *testing.T) {
	e, err := NewEngine(t.TempDir(), WithSeed(1))
	if err != nil {
		t.Fatal(err)
	}
	out, err := e.MakeMeme(writePNG(t, 250, 100), woof, MaxImageWidth)
	if err != nil {
		t.Fatal(err)
	}
	if out != e.OutputPath() {
		t.Errorf("MakeMeme returned %q, want %q", out, e.OutputPath())
	}
	img, err := imaging.Open(out)
	if err != nil {
		t.Fatal(err)
	}
	if got := img.Bounds().Size(); got != image.Pt(500, 200) {
		t.Errorf("meme size = %v, want 500x200", got)
	}

	// a second meme replaces the first one
	if _, err := e.MakeMeme(writePNG(t, 1000, 1000), woof, 300); err != nil {
		t.Fatal(err)
	}
	img, err = imaging.Open(out)
	if err != nil {
		t.Fatal(err)
	}
	if got := img.Bounds().Size(); got != image.Pt(300, 300) {
		t.Errorf("second meme size = %v, want 300x300", got)
	}
	entries, err := os.ReadDir(filepath.Dir(out))
	if err != nil {
		t.Fatal(err)
	}
	if len(entries) != 1 {
		t.Errorf("output dir has %d entries, want only the meme", len(entries))
	}
}

func TestMakeMemeMissingImage(t *testing.T) {
	e, err := NewEngine(t.TempDir())
	if err != nil {
		t.Fatal(err)
	}
	if _, err := e.MakeMeme(filepath.Join(t.TempDir(), "nope.jpg"), woof, 500); !errors.Is(err, os.ErrNotExist) {
		t.Errorf("MakeMeme(missing) error = %v, want ErrNotExist", err)
	}
}

func TestMakeMemeSeeded(t *testing.T) {
	raw := encodePNG(t, 400, 300)
	var results [][]byte
	for i := 0; i < 2; i++ {
		e, err := NewEngine(t.TempDir(), WithSeed(42))
		if err != nil {
			t.Fatal(err)
		}
		out, err := e.MakeMemeBytes(raw, woof, 400)
		if err != nil {
			t.Fatal(err)
		}
		results = append(results, out)
	}
	if !bytes.Equal(results[0], results[1]) {
		t.Error("engines with the same seed produced different memes")
	}
}

func TestMakeMemeOverflow(t *testing.T) {
	e, err := NewEngine(t.TempDir(), WithSeed(1))
	if err != nil {
		t.Fatal(err)
	}
	long := quote.Quote{
		Body:   "A dog is the only thing on earth that loves you more than you love yourself",
		Author: "Josh Billings",
	}
	_, err = e.MakeMeme(writePNG(t, 400, 40), long, 100)
	if !errors.Is(err, caption.ErrLayoutOverflow) {
		t.Fatalf("MakeMeme error = %v, want ErrLayoutOverflow", err)
	}
	if _, err := os.Stat(e.OutputPath()); !errors.Is(err, os.ErrNotExist) {
		t.Error("output written for a caption that does not fit")
	}
}

func TestMakeMemeShrinkToFit(t *testing.T) {
	e, err := NewEngine(t.TempDir(), WithSeed(1), WithLayout(caption.Options{ShrinkToFit: true}))
	if err != nil {
		t.Fatal(err)
	}
	// fits at the default sizes only after shrinking
	if _, err := e.MakeMeme(writePNG(t, 500, 30), woof, 500); err != nil {
		t.Fatal(err)
	}
}

func TestMakeMemeBytesJPEG(t *testing.T) {
	e, err := NewEngine(t.TempDir(), WithSeed(3))
	if err != nil {
		t.Fatal(err)
	}
	out, err := e.MakeMemeBytes(encodePNG(t, 640, 480), woof, 500)
	if err != nil {
		t.Fatal(err)
	}
	cfg, format, err := image.DecodeConfig(bytes.NewReader(out))
	if err != nil {
		t.Fatal(err)
	}
	if format != "jpeg" || cfg.Width != 500 || cfg.Height != 375 {
		t.Errorf("got %s %dx%d, want jpeg 500x375", format, cfg.Width, cfg.Height)
	}
}

func TestMakeMemeBytesGIF(t *testing.T) {
	var buf bytes.Buffer
	if err := gif.EncodeAll(&buf, testGIF(200, 100, 2)); err != nil {
		t.Fatal(err)
	}
	e, err := NewEngine(t.TempDir(), WithSeed(3))
	if err != nil {
		t.Fatal(err)
	}
	out, err := e.MakeMemeBytes(buf.Bytes(), woof, 300)
	if err != nil {
		t.Fatal(err)
	}
	g, err := gif.DecodeAll(bytes.NewReader(out))
	if err != nil {
		t.Fatal(err)
	}
	if len(g.Image) != 2 {
		t.Errorf("got %d frames, want 2", len(g.Image))
	}
	if g.Config.Width != 300 || g.Config.Height != 150 {
		t.Errorf("gif size = %dx%d, want 300x150", g.Config.Width, g.Config.Height)
	}
	// every frame carries the caption
	for i, frame := range g.Image {
		first := frame.ColorIndexAt(0, 0)
		drawn := false
		b := frame.Bounds()
		for y := b.Min.Y; y < b.Max.Y && !drawn; y++ {
			for x := b.Min.X; x < b.Max.X; x++ {
				if frame.ColorIndexAt(x, y) != first {
					drawn = true
					break
				}
			}
		}
		if !drawn {
			t.Errorf("frame %d has no caption", i)
		}
	}
}

func TestMakeMemeBytesGarbage(t *testing.T) {
	e, err := NewEngine(t.TempDir())
	if err != nil {
		t.Fatal(err)
	}
	if _, err := e.MakeMemeBytes([]byte("definitely not an image"), woof, 500); !errors.Is(err, ErrDecode) {
		t.Errorf("MakeMemeBytes(garbage) error = %v, want ErrDecode", err)
	}
}

func TestComposeInvalid(t *testing.T) {
	e, err := NewEngine(t.TempDir())
	if err != nil {
		t.Fatal(err)
	}
	src := image.NewRGBA(image.Rect(0, 0, 100, 100))
	if _, err := e.Compose(src, woof, 0); err == nil {
		t.Error("Compose accepted width 0")
	}
	if err := e.ComposeGIF(&gif.GIF{}, woof, 100); err == nil {
		t.Error("ComposeGIF accepted a gif without frames")
	}

	bad := DefaultBodyStyle
	bad.Font.Family = "comic-sans"
	e, err = NewEngine(t.TempDir(), WithStyles(bad, DefaultAuthorStyle))
	if err != nil {
		t.Fatal(err)
	}
	if _, err := e.Compose(src, woof, 100); err == nil {
		t.Error("Compose succeeded with an unknown font")
	}
}

func TestLoadStyles(t *testing.T) {
	fonts := NewFontBook()
	body, author, err := LoadStyles(fonts, "", "")
	if err != nil {
		t.Fatal(err)
	}
	if body.Font != DefaultBodyStyle.Font || author.Font != DefaultAuthorStyle.Font {
		t.Errorf("LoadStyles without families = %v, %v, want the defaults", body.Font, author.Font)
	}

	body, author, err = LoadStyles(fonts, Regular, Bold)
	if err != nil {
		t.Fatal(err)
	}
	if body.Font.Family != Regular || body.Font.Size != DefaultBodyStyle.Font.Size || author.Font.Family != Bold {
		t.Errorf("LoadStyles(Regular, Bold) = %v, %v", body.Font, author.Font)
	}

	if _, _, err := LoadStyles(fonts, "comic-sans", ""); err == nil {
		t.Error("LoadStyles accepted an unknown family")
	}
}

func TestEngineUsesGivenFonts(t *testing.T) {
	fonts := NewFontBook()
	if err := fonts.Register("house", gomono.TTF); err != nil {
		t.Fatal(err)
	}
	body, author, err := LoadStyles(fonts, "house", "house")
	if err != nil {
		t.Fatal(err)
	}
	e, err := NewEngine(t.TempDir(), WithSeed(1), WithFonts(fonts), WithStyles(body, author))
	if err != nil {
		t.Fatal(err)
	}
	if _, err := e.Compose(image.NewRGBA(image.Rect(0, 0, 400, 300)), woof, 400); err != nil {
		t.Fatalf("Compose with a registered family: %v", err)
	}

	// a fresh book knows nothing about the registered family
	e, err = NewEngine(t.TempDir(), WithStyles(body, author))
	if err != nil {
		t.Fatal(err)
	}
	if _, err := e.Compose(image.NewRGBA(image.Rect(0, 0, 400, 300)), woof, 400); err == nil {
		t.Error("Compose resolved a family registered in another FontBook")
	}
}
