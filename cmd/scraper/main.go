package main

import (
	"bufio"
	"context"
	"errors"
	"fmt"
	"io"
	"log"
	"net/http"
	"net/url"
	"os"
	"path"
	"path/filepath"
	"strings"
	"sync"
	"time"

	"github.com/gabriel-vasile/mimetype"
	"github.com/jessevdk/go-flags"
	"github.com/malcolmseyd/quotememe/fetch"
)

type CLIOptions struct {
	URLs       string        `long:"urls" required:"true" description:"file with one image url per line, - for stdin"`
	OutDir     string        `long:"outdir" required:"true"`
	MaxWorkers int           `long:"maxworkers" default:"10"`
	Retries    int           `long:"retries" default:"5"`
	Timeout    time.Duration `long:"timeout" default:"15s"`
	Limit      int64         `long:"limit" default:"20971520" description:"largest image to download, in bytes"`
}

func (o *CLIOptions) validate() error {
	if o.MaxWorkers < 1 {
		return fmt.Errorf("--maxworkers must be at least 1, got %d", o.MaxWorkers)
	}
	if o.Retries < 1 {
		return fmt.Errorf("--retries must be at least 1, got %d", o.Retries)
	}
	return nil
}

type scraper struct {
	opts    *CLIOptions
	client  *http.Client
	backoff time.Duration
}

func main() {
	var opts CLIOptions
	if _, err := flags.Parse(&opts); err != nil {
		os.Exit(1)
	}
	if err := opts.validate(); err != nil {
		log.Fatalln("invalid options:", err)
	}
	in := os.Stdin
	if opts.URLs != "-" {
		f, err := os.Open(opts.URLs)
		if err != nil {
			log.Fatalln("failed to open url list:", err)
		}
		defer f.Close()
		in = f
	}
	urls, err := readURLs(in)
	if err != nil {
		log.Fatalln("failed to read url list:", err)
	}
	log.Printf("read %v urls", len(urls))
	if err := os.MkdirAll(opts.OutDir, 0o755); err != nil {
		log.Fatalln("failed to create output dir:", err)
	}

	s := &scraper{
		opts:    &opts,
		client:  &http.Client{Timeout: opts.Timeout},
		backoff: time.Second,
	}
	written := s.run(context.Background(), urls)
	log.Printf("wrote %v of %v images", written, len(urls))
}

func readURLs(r io.Reader) ([]string, error) {
	var urls []string
	scanner := bufio.NewScanner(r)
	for scanner.Scan() {
		line := strings.TrimSpace(scanner.Text())
		if line == "" || strings.HasPrefix(line, "#") {
			continue
		}
		urls = append(urls, line)
	}
	return urls, scanner.Err()
}

// run downloads urls with opts.MaxWorkers workers and returns how many
// images were written.
func (s *scraper) run(ctx context.Context, urls []string) int {
	urlChan := make(chan string, s.opts.MaxWorkers)
	results := make(chan bool, len(urls))
	wg := sync.WaitGroup{}
	wg.Add(s.opts.MaxWorkers)
	for i := 0; i < s.opts.MaxWorkers; i++ {
		go s.worker(ctx, urlChan, results, &wg)
	}

	for _, v := range urls {
		urlChan <- v
	}
	close(urlChan)
	wg.Wait()
	close(results)

	written := 0
	for ok := range results {
		if ok {
			written++
		}
	}
	return written
}

func (s *scraper) worker(ctx context.Context, urlChan chan string, results chan<- bool, wg *sync.WaitGroup) {
	defer wg.Done()
	for imageURL := range urlChan {
		succeeded := false
		for tries := 0; !succeeded && tries < s.opts.Retries; tries++ {
			if tries > 0 {
				log.Printf("retrying %s\n", imageURL)
			}
			img, err := fetch.Image(ctx, s.client, imageURL, s.opts.Limit)
			var statusErr *fetch.StatusError
			switch {
			case errors.As(err, &statusErr):
				log.Printf("returned status %s for %v\n", statusErr.Status, imageURL)
				if statusErr.Code == http.StatusTooManyRequests {
					log.Println("we're being rate limited! lets slow down")
					time.Sleep(s.backoff)
				}
				continue
			case errors.Is(err, fetch.ErrNotImage), errors.Is(err, fetch.ErrTooLarge):
				log.Printf("skipping %s: %v\n", imageURL, err)
				tries = s.opts.Retries
				continue
			case err != nil:
				log.Printf("error getting %s: %v\n", imageURL, err)
				continue
			}

			outPathName := filepath.Join(s.opts.OutDir, fileName(imageURL, img))
			if err := os.WriteFile(outPathName, img, 0o644); err != nil {
				log.Printf("error writing image file %s: %v\n", outPathName, err)
				continue
			}
			succeeded = true
			log.Printf("wrote %s to disk\n", outPathName)
		}
		results <- succeeded
	}
}

// fileName names a download after the last element of the url path, with
// the extension replaced by the one matching the content.
func fileName(imageURL string, img []byte) string {
	base := "image"
	if u, err := url.Parse(imageURL); err == nil {
		if b := path.Base(u.Path); b != "/" && b != "." {
			base = strings.TrimSuffix(b, path.Ext(b))
		}
	}
	if base == "" {
		base = "image"
	}
	return fmt.Sprintf("%s%s", base, mimetype.Detect(img).Extension())
}
