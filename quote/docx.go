package quote

import (
	"fmt"
	"os"
	"strings"

	"github.com/fumiama/go-docx"
)

// readParagraphs returns the plain text of every top-level body paragraph
// of a docx file. Paragraphs inside tables, text boxes and other drawings
// are left out.
func readParagraphs(path string) ([]string, error) {
	file, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("can't open docx: %w", err)
	}
	defer file.Close()
	info, err := file.Stat()
	if err != nil {
		return nil, fmt.Errorf("can't open docx: %w", err)
	}

	doc, err := docx.Parse(file, info.Size())
	if err != nil {
		return nil, fmt.Errorf("can't parse docx: %w", err)
	}
	var out []string
	for _, item := range doc.Document.Body.Items {
		if p, ok := item.(*docx.Paragraph); ok {
			out = append(out, paragraphText(p))
		}
	}
	return out, nil
}

func paragraphText(p *docx.Paragraph) string {
	var sb strings.Builder
	for _, child := range p.Children {
		switch c := child.(type) {
		case *docx.Run:
			writeRun(&sb, c)
		case *docx.Hyperlink:
			writeRun(&sb, &c.Run)
		}
	}
	return sb.String()
}

// writeRun keeps text, tabs and breaks. Drawings are skipped.
func writeRun(sb *strings.Builder, r *docx.Run) {
	for _, child := range r.Children {
		switch c := child.(type) {
		case *docx.Text:
			sb.WriteString(c.Text)
		case *docx.Tab:
			sb.WriteByte('\t')
		case *docx.BarterRabbet:
			sb.WriteByte(' ')
		}
	}
}
