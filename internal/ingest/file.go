package ingest

import (
	"bytes"
	"context"
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"github.com/ledongthuc/pdf"
)

// FileIngester reads a local file. A PDF is reduced to its page text, one
// paragraph per page; anything else is kept verbatim so transcripts keep
// their line structure.
type FileIngester struct{}

func (FileIngester) Ingest(ctx context.Context, source string) (*Content, error) {
	if err := validateFile(source); err != nil {
		return nil, err
	}
	data, err := os.ReadFile(source)
	if err != nil {
		return nil, fmt.Errorf("could not read %s: %w", source, err)
	}
	name := filepath.Base(source)
	if len(data) == 0 {
		return nil, fmt.Errorf("%s is empty", name)
	}

	if DetectSource(source) != SourcePDF {
		return newContent(string(data), "", name, SourceText)
	}
	text, err := pdfText(ctx, data)
	if err != nil {
		return nil, fmt.Errorf("could not read PDF %s: %w", name, err)
	}
	if text == "" {
		return nil, fmt.Errorf("no text in PDF %s (it may be scanned or image-based)", name)
	}
	return newContent(text, "", name, SourcePDF)
}

func pdfText(ctx context.Context, data []byte) (string, error) {
	r, err := pdf.NewReader(bytes.NewReader(data), int64(len(data)))
	if err != nil {
		return "", err
	}
	var pages []string
	for i := 1; i <= r.NumPage(); i++ {
		if err := ctx.Err(); err != nil {
			return "", err
		}
		page := r.Page(i)
		if page.V.IsNull() {
			continue
		}
		text, err := page.GetPlainText(nil)
		if err != nil {
			continue
		}
		// Layout whitespace means nothing when read aloud.
		if text = strings.Join(strings.Fields(text), " "); text != "" {
			pages = append(pages, text)
		}
	}
	return strings.Join(pages, "\n\n"), nil
}
