package main

import (
	"context"
	"errors"
	"fmt"
	"html/template"
	"log"
	"math/rand"
	"net"
	"net/http"
	"os"
	"path"
	"path/filepath"
	"sync"
	"time"

	"github.com/gabriel-vasile/mimetype"
	"github.com/gin-gonic/gin"
	"github.com/jessevdk/go-flags"
	"github.com/malcolmseyd/quotememe/caption"
	"github.com/malcolmseyd/quotememe/fetch"
	"github.com/malcolmseyd/quotememe/imageproc"
	"github.com/malcolmseyd/quotememe/quote"
)

const (
	defaultImageURL = "https://static.bimago.pl/mediacache/catalog/product/cache/1/2/146221/image/1500x2240/c0d39395fd4eb0df2112dbf1bd103f89/146221_2.jpg"
	defaultBody     = "Don't wish for a meme, create a meme!"
	defaultAuthor   = "Meme Generator"
)

type ServerOptions struct {
	Host         string        `long:"host" env:"LISTEN_HOST" description:"address to listen on"`
	Port         string        `long:"port" env:"LISTEN_PORT" default:"8080"`
	Photos       string        `long:"photos" env:"MEME_PHOTOS" default:"_data/photos/dog" description:"directory of photos for random memes"`
	Quotes       []string      `long:"quotes" env:"MEME_QUOTES" env-delim:"," default:"_data/DogQuotes/DogQuotesTXT.txt" default:"_data/DogQuotes/DogQuotesDOCX.docx" default:"_data/DogQuotes/DogQuotesPDF.pdf" default:"_data/DogQuotes/DogQuotesCSV.csv"`
	OutDir       string        `long:"outdir" env:"MEME_OUTDIR" default:"./static"`
	Width        int           `long:"width" default:"500"`
	Seed         int64         `long:"seed" description:"seed for photo, quote and caption placement, random when zero"`
	ShrinkToFit  bool          `long:"shrink" description:"shrink fonts until long captions fit"`
	Wrap         string        `long:"wrap" env:"MEME_WRAP" default:"heuristic" choice:"heuristic" choice:"measured" description:"how captions are broken into lines"`
	BodyFont     string        `long:"body-font" env:"MEME_BODY_FONT" description:"font family or .ttf/.otf file for the quote body"`
	AuthorFont   string        `long:"author-font" env:"MEME_AUTHOR_FONT" description:"font family or .ttf/.otf file for the author"`
	FetchTimeout time.Duration `long:"fetch-timeout" default:"15s"`
	FetchLimit   int64         `long:"fetch-limit" default:"20971520" description:"largest image to download, in bytes"`
}

func must[T any](value T, err error) T {
	if err != nil {
		log.Fatalln("fatal error:", err)
	}
	return value
}

type server struct {
	engine     *imageproc.Engine
	photoDir   string
	photos     []string
	quotes     []quote.Quote
	width      int
	client     *http.Client
	fetchLimit int64

	rngMu sync.Mutex
	rng   *rand.Rand
}

func main() {
	var opts ServerOptions
	if _, err := flags.Parse(&opts); err != nil {
		os.Exit(1)
	}
	seed := opts.Seed
	if seed == 0 {
		seed = time.Now().UnixNano()
	}

	rng := rand.New(rand.NewSource(seed))
	s := &server{
		engine:     must(newEngine(&opts, rng.Int63())),
		photoDir:   opts.Photos,
		photos:     must(loadPhotos(opts.Photos)),
		quotes:     loadQuotes(context.Background(), opts.Quotes),
		width:      opts.Width,
		client:     &http.Client{Timeout: opts.FetchTimeout},
		fetchLimit: opts.FetchLimit,
		rng:        rng,
	}
	log.Printf("loaded %d photos and %d quotes", len(s.photos), len(s.quotes))

	router := newRouter(s)
	router.Run(net.JoinHostPort(opts.Host, opts.Port))
}

// newEngine builds the meme engine the options describe. Caption placement
// is seeded separately from photo and quote selection.
func newEngine(opts *ServerOptions, placementSeed int64) (*imageproc.Engine, error) {
	wrap, err := caption.ParseWrapMode(opts.Wrap)
	if err != nil {
		return nil, err
	}
	fonts := imageproc.NewFontBook()
	body, author, err := imageproc.LoadStyles(fonts, opts.BodyFont, opts.AuthorFont)
	if err != nil {
		return nil, err
	}
	return imageproc.NewEngine(opts.OutDir,
		imageproc.WithSeed(placementSeed),
		imageproc.WithFonts(fonts),
		imageproc.WithStyles(body, author),
		imageproc.WithLayout(caption.Options{ShrinkToFit: opts.ShrinkToFit, Wrap: wrap}),
	)
}

func loadPhotos(dir string) ([]string, error) {
	entries, err := os.ReadDir(dir)
	if err != nil {
		return nil, fmt.Errorf("can't list photos: %w", err)
	}
	ids := make([]string, 0, len(entries))
	for _, entry := range entries {
		if entry.Type().IsRegular() {
			ids = append(ids, entry.Name())
		}
	}
	return ids, nil
}

// loadQuotes reads every file it can. Files that fail are logged and skipped.
func loadQuotes(ctx context.Context, files []string) []quote.Quote {
	var quotes []quote.Quote
	for _, file := range files {
		q, err := quote.Parse(ctx, file)
		if err != nil {
			log.Println("skipping quotes:", err)
			continue
		}
		quotes = append(quotes, q...)
	}
	return quotes
}

var formTemplate = template.Must(template.New("form").Parse(`<!DOCTYPE html>
<html>
<head><title>Meme Generator</title></head>
<body>
<form action="/create" method="POST">
  <label>Image URL <input type="url" name="image_url" placeholder="{{.ImageURL}}"></label><br>
  <label>Quote <input type="text" name="body" placeholder="{{.Body}}"></label><br>
  <label>Author <input type="text" name="author" placeholder="{{.Author}}"></label><br>
  <button type="submit">Create Meme!</button>
</form>
</body>
</html>
`))

func newRouter(s *server) *gin.Engine {
	router := gin.Default()
	router.SetHTMLTemplate(formTemplate)
	router.GET("/", s.randomMeme)
	router.GET("/create", s.memeForm)
	router.POST("/create", s.createMeme)
	return router
}

func (s *server) randomMeme(c *gin.Context) {
	if len(s.photos) == 0 || len(s.quotes) == 0 {
		c.AbortWithError(http.StatusServiceUnavailable, errors.New("no photos or quotes loaded"))
		return
	}
	s.rngMu.Lock()
	id := c.Query("id")
	if id == "" {
		id = s.photos[s.rng.Intn(len(s.photos))]
	}
	q := s.quotes[s.rng.Intn(len(s.quotes))]
	s.rngMu.Unlock()

	log.Println("using image with id", id)
	img, err := s.readPhoto(id)
	if err != nil {
		s.fail(c, err)
		return
	}
	s.respond(c, img, q)
}

func (s *server) memeForm(c *gin.Context) {
	c.HTML(http.StatusOK, "form", gin.H{
		"ImageURL": defaultImageURL,
		"Body":     defaultBody,
		"Author":   defaultAuthor,
	})
}

func (s *server) createMeme(c *gin.Context) {
	imageURL := c.PostForm("image_url")
	if imageURL == "" {
		imageURL = defaultImageURL
	}
	body := c.PostForm("body")
	if body == "" {
		body = defaultBody
	}
	author := c.PostForm("author")
	if author == "" {
		author = defaultAuthor
	}
	q, err := quote.New(body, author)
	if err != nil {
		c.AbortWithError(http.StatusBadRequest, err)
		return
	}

	img, err := fetch.Image(c.Request.Context(), s.client, imageURL, s.fetchLimit)
	if err != nil {
		log.Println("download failed:", err)
		s.fail(c, err)
		return
	}
	s.respond(c, img, q)
}

func (s *server) respond(c *gin.Context, img []byte, q quote.Quote) {
	meme, err := s.engine.MakeMemeBytes(img, q, s.width)
	if err != nil {
		s.fail(c, err)
		return
	}
	c.Data(http.StatusOK, mimetype.Detect(meme).String(), meme)
}

func (s *server) fail(c *gin.Context, err error) {
	status := statusOf(err)
	if status == http.StatusNotFound {
		log.Println("meme image 404:", err)
	}
	c.AbortWithError(status, err)
}

func statusOf(err error) int {
	switch {
	case errors.Is(err, os.ErrNotExist):
		return http.StatusNotFound
	case errors.Is(err, caption.ErrLayoutOverflow):
		return http.StatusUnprocessableEntity
	case errors.Is(err, fetch.ErrNotImage), errors.Is(err, imageproc.ErrDecode):
		return http.StatusUnsupportedMediaType
	case errors.Is(err, fetch.ErrStatus), errors.Is(err, fetch.ErrTooLarge):
		return http.StatusBadGateway
	}
	var netErr net.Error
	if errors.As(err, &netErr) {
		return http.StatusBadGateway
	}
	return http.StatusInternalServerError
}

func (s *server) readPhoto(id string) ([]byte, error) {
	sanitizedID := path.Join("/", id)
	return os.ReadFile(filepath.Join(s.photoDir, filepath.FromSlash(sanitizedID)))
}
