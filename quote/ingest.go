package quote

import (
	"context"
	"encoding/csv"
	"errors"
	"fmt"
	"io"
	"os"
	"os/exec"
	"path/filepath"
	"strings"
)

type Format int

const (
	Text Format = iota
	Docx
	PDF
	CSV
)

var formatExtensions = map[Format][]string{
	Text: {".txt"},
	Docx: {".docx"},
	PDF:  {".pdf"},
	CSV:  {".csv"},
}

var formatNames = map[Format]string{
	Text: "text",
	Docx: "docx",
	PDF:  "pdf",
	CSV:  "csv",
}

func (f Format) String() string {
	if name, ok := formatNames[f]; ok {
		return name
	}
	return fmt.Sprintf("Format(%d)", int(f))
}

// Extensions lists the file extensions of the format, dot included.
func (f Format) Extensions() []string {
	return formatExtensions[f]
}

// Ingestor reads the quotes stored in one kind of file.
type Ingestor interface {
	CanHandle(path string) bool
	Parse(ctx context.Context, path string) ([]Quote, error)
}

// FormatOf picks the format from the file extension.
func FormatOf(path string) (Format, error) {
	ext := strings.ToLower(filepath.Ext(path))
	var known []string
	for _, f := range []Format{Text, Docx, PDF, CSV} {
		for _, e := range f.Extensions() {
			if e == ext {
				return f, nil
			}
		}
		known = append(known, f.Extensions()...)
	}
	return 0, fmt.Errorf("%w: %q, want one of %s", ErrUnsupportedFormat, path, strings.Join(known, " "))
}

// Ingestor returns the reader for the format.
func (f Format) Ingestor() Ingestor {
	switch f {
	case Docx:
		return DocxIngestor{}
	case PDF:
		return PDFIngestor{}
	case CSV:
		return CSVIngestor{}
	default:
		return TextIngestor{}
	}
}

// Parse reads the quotes in path with the ingestor matching its extension.
func Parse(ctx context.Context, path string) ([]Quote, error) {
	f, err := FormatOf(path)
	if err != nil {
		return nil, err
	}
	return f.Ingestor().Parse(ctx, path)
}

// Load parses every path in order and concatenates the quotes. It stops at
// the first file that can't be read.
func Load(ctx context.Context, paths ...string) ([]Quote, error) {
	var quotes []Quote
	for _, path := range paths {
		q, err := Parse(ctx, path)
		if err != nil {
			return nil, err
		}
		quotes = append(quotes, q...)
	}
	return quotes, nil
}

func canHandle(f Format, path string) bool {
	got, err := FormatOf(path)
	return err == nil && got == f
}

type TextIngestor struct{}

func (TextIngestor) CanHandle(path string) bool { return canHandle(Text, path) }

func (i TextIngestor) Parse(_ context.Context, path string) ([]Quote, error) {
	if !i.CanHandle(path) {
		return nil, fmt.Errorf("%w: %q is not a text file", ErrUnsupportedFormat, path)
	}
	return parseTextFile(path)
}

func parseTextFile(path string) ([]Quote, error) {
	file, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("can't open quotes: %w", err)
	}
	defer file.Close()

	lines, err := readLines(file)
	if err != nil {
		return nil, fmt.Errorf("can't read %s: %w", path, err)
	}
	quotes, err := ParseLines(lines)
	if err != nil {
		return nil, fmt.Errorf("%s: %w", path, err)
	}
	return quotes, nil
}

type DocxIngestor struct{}

func (DocxIngestor) CanHandle(path string) bool { return canHandle(Docx, path) }

func (i DocxIngestor) Parse(_ context.Context, path string) ([]Quote, error) {
	if !i.CanHandle(path) {
		return nil, fmt.Errorf("%w: %q is not a docx file", ErrUnsupportedFormat, path)
	}
	paragraphs, err := readParagraphs(path)
	if err != nil {
		return nil, fmt.Errorf("can't read %s: %w", path, err)
	}
	quotes, err := ParseLines(paragraphs)
	if err != nil {
		return nil, fmt.Errorf("%s: %w", path, err)
	}
	return quotes, nil
}

// PDFIngestor converts the document with the pdftotext tool and parses the
// text it produces.
type PDFIngestor struct {
	// Tool overrides the converter binary, pdftotext by default.
	Tool string
}

func (PDFIngestor) CanHandle(path string) bool { return canHandle(PDF, path) }

func (i PDFIngestor) Parse(ctx context.Context, path string) ([]Quote, error) {
	if !i.CanHandle(path) {
		return nil, fmt.Errorf("%w: %q is not a pdf file", ErrUnsupportedFormat, path)
	}
	tool := i.Tool
	if tool == "" {
		tool = "pdftotext"
	}

	tmp, err := os.CreateTemp("", "quotes-*.txt")
	if err != nil {
		return nil, fmt.Errorf("can't create temp file: %w", err)
	}
	tmp.Close()
	defer os.Remove(tmp.Name())

	out, err := exec.CommandContext(ctx, tool, path, tmp.Name()).CombinedOutput()
	if err != nil {
		msg := strings.TrimSpace(string(out))
		return nil, fmt.Errorf("%w: %s %s: %v %s", ErrExternalTool, tool, path, err, msg)
	}
	return parseTextFile(tmp.Name())
}

// CSVIngestor reads a csv file with a header row followed by body, author
// columns. Values are taken as they are.
type CSVIngestor struct{}

func (CSVIngestor) CanHandle(path string) bool { return canHandle(CSV, path) }

func (i CSVIngestor) Parse(_ context.Context, path string) ([]Quote, error) {
	if !i.CanHandle(path) {
		return nil, fmt.Errorf("%w: %q is not a csv file", ErrUnsupportedFormat, path)
	}
	file, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("can't open quotes: %w", err)
	}
	defer file.Close()
	return parseCSV(file)
}

func parseCSV(r io.Reader) ([]Quote, error) {
	reader := csv.NewReader(r)
	reader.FieldsPerRecord = -1

	if _, err := reader.Read(); err != nil {
		if errors.Is(err, io.EOF) {
			return nil, nil
		}
		return nil, fmt.Errorf("can't read csv header: %w", err)
	}

	var quotes []Quote
	for {
		record, err := reader.Read()
		if errors.Is(err, io.EOF) {
			break
		}
		if err != nil {
			return nil, fmt.Errorf("can't read csv: %w", err)
		}
		if len(record) < 2 {
			line, _ := reader.FieldPos(0)
			return nil, fmt.Errorf("%w: csv line %d has %d columns", ErrMalformedLine, line, len(record))
		}
		quotes = append(quotes, Quote{Body: record[0], Author: record[1]})
	}
	return quotes, nil
}
