package quote

import (
	"bufio"
	"errors"
	"fmt"
	"io"
	"strings"
)

const separator = " - "

var (
	ErrMalformedLine     = errors.New("malformed quote line")
	ErrUnsupportedFormat = errors.New("unsupported format")
	ErrExternalTool      = errors.New("external tool failed")
	ErrMissingAuthor     = errors.New("author required when body is given")
)

type Quote struct {
	Body   string
	Author string
}

// New builds a quote from user input. A body without an author is rejected.
func New(body, author string) (Quote, error) {
	if body != "" && author == "" {
		return Quote{}, ErrMissingAuthor
	}
	return Quote{Body: body, Author: author}, nil
}

func (q Quote) String() string {
	return fmt.Sprintf("%q - %s", q.Body, q.Author)
}

// ParseLine reads a `"body" - author` line. Double quotes are dropped
// wherever they appear.
func ParseLine(line string) (Quote, error) {
	clean := strings.ReplaceAll(trim(line), `"`, "")
	parts := strings.Split(clean, separator)
	if len(parts) != 2 {
		return Quote{}, fmt.Errorf("%w: %q", ErrMalformedLine, line)
	}
	return Quote{Body: parts[0], Author: parts[1]}, nil
}

// ParseLines parses every non-blank line. The first malformed line stops
// parsing.
func ParseLines(lines []string) ([]Quote, error) {
	quotes := make([]Quote, 0, len(lines))
	for i, line := range lines {
		if trim(line) == "" {
			continue
		}
		q, err := ParseLine(line)
		if err != nil {
			return nil, fmt.Errorf("line %d: %w", i+1, err)
		}
		quotes = append(quotes, q)
	}
	return quotes, nil
}

func trim(line string) string {
	return strings.TrimSpace(strings.TrimPrefix(line, "\ufeff"))
}

func readLines(r io.Reader) ([]string, error) {
	var lines []string
	scanner := bufio.NewScanner(r)
	for scanner.Scan() {
		lines = append(lines, scanner.Text())
	}
	if err := scanner.Err(); err != nil {
		return nil, err
	}
	return lines, nil
}
