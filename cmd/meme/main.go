package main

import (
	"context"
	"errors"
	"fmt"
	"io/fs"
	"log"
	"math/rand"
	"os"
	"path/filepath"
	"time"

	"github.com/jessevdk/go-flags"
	"github.com/malcolmseyd/quotememe/caption"
	"github.com/malcolmseyd/quotememe/imageproc"
	"github.com/malcolmseyd/quotememe/quote"
)

type CLIOptions struct {
	Path        string   `long:"path" description:"image to caption, a random photo when empty"`
	Body        string   `long:"body" description:"quote body, a random quote when empty"`
	Author      string   `long:"author" description:"quote author, required with --body"`
	OutDir      string   `long:"outdir" default:"./tmp"`
	Width       int      `long:"width" default:"500"`
	Seed        int64    `long:"seed" description:"random when zero"`
	ShrinkToFit bool     `long:"shrink" description:"shrink fonts until long captions fit"`
	Wrap        string   `long:"wrap" default:"heuristic" choice:"heuristic" choice:"measured" description:"how captions are broken into lines"`
	BodyFont    string   `long:"body-font" description:"font family or .ttf/.otf file for the quote body"`
	AuthorFont  string   `long:"author-font" description:"font family or .ttf/.otf file for the author"`
	Photos      string   `long:"photos" default:"./_data/photos/dog"`
	Quotes      []string `long:"quotes" default:"./_data/DogQuotes/DogQuotesTXT.txt" default:"./_data/DogQuotes/DogQuotesDOCX.docx" default:"./_data/DogQuotes/DogQuotesPDF.pdf" default:"./_data/DogQuotes/DogQuotesCSV.csv"`
}

func main() {
	var opts CLIOptions
	if _, err := flags.Parse(&opts); err != nil {
		os.Exit(1)
	}
	if opts.Seed == 0 {
		opts.Seed = time.Now().UnixNano()
	}
	path, err := generateMeme(context.Background(), &opts)
	if err != nil {
		log.Fatalln("failed to generate meme:", err)
	}
	fmt.Println("Generated meme image locates at:", path)
}

func generateMeme(ctx context.Context, opts *CLIOptions) (string, error) {
	if opts.Body != "" && opts.Author == "" {
		return "", quote.ErrMissingAuthor
	}
	wrap, err := caption.ParseWrapMode(opts.Wrap)
	if err != nil {
		return "", err
	}
	fonts := imageproc.NewFontBook()
	body, author, err := imageproc.LoadStyles(fonts, opts.BodyFont, opts.AuthorFont)
	if err != nil {
		return "", err
	}

	// placement gets its own stream so picking a photo or quote doesn't
	// shift where the caption lands
	rng := rand.New(rand.NewSource(opts.Seed))
	placementSeed := rng.Int63()

	img := opts.Path
	if img == "" {
		photos, err := listPhotos(opts.Photos)
		if err != nil {
			return "", err
		}
		img = photos[rng.Intn(len(photos))]
	}

	var q quote.Quote
	if opts.Body == "" {
		quotes, err := quote.Load(ctx, opts.Quotes...)
		if err != nil {
			return "", err
		}
		if len(quotes) == 0 {
			return "", errors.New("no quotes to choose from")
		}
		q = quotes[rng.Intn(len(quotes))]
	} else {
		if q, err = quote.New(opts.Body, opts.Author); err != nil {
			return "", err
		}
	}

	engine, err := imageproc.NewEngine(opts.OutDir,
		imageproc.WithSeed(placementSeed),
		imageproc.WithFonts(fonts),
		imageproc.WithStyles(body, author),
		imageproc.WithLayout(caption.Options{ShrinkToFit: opts.ShrinkToFit, Wrap: wrap}),
	)
	if err != nil {
		return "", err
	}
	return engine.MakeMeme(img, q, opts.Width)
}

func listPhotos(dir string) ([]string, error) {
	var photos []string
	err := filepath.WalkDir(dir, func(path string, d fs.DirEntry, err error) error {
		if err != nil {
			return err
		}
		if d.Type().IsRegular() {
			photos = append(photos, path)
		}
		return nil
	})
	if err != nil {
		return nil, fmt.Errorf("can't list photos: %w", err)
	}
	if len(photos) == 0 {
		return nil, fmt.Errorf("no photos in %s", dir)
	}
	return photos, nil
}
