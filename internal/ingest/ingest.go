// Package ingest loads synthesis text from a file, a PDF, a web page or stdin.
package ingest

import (
	"context"
	"fmt"
	"io"
	"os"
	"strings"
)

type SourceType string

const (
	SourceURL   SourceType = "url"
	SourcePDF   SourceType = "pdf"
	SourceText  SourceType = "text"
	SourceStdin SourceType = "stdin"

	// maxInputSize is the maximum allowed size for input content (25 MB).
	maxInputSize = 25 * 1024 * 1024
)

func (s SourceType) String() string {
	return string(s)
}

// Content is text ready to be synthesized.
type Content struct {
	Text      string
	Title     string
	Source    string
	Type      SourceType
	WordCount int
}

type Ingester interface {
	Ingest(ctx context.Context, source string) (*Content, error)
}

// DetectSource classifies an --input value. "-" reads stdin.
func DetectSource(input string) SourceType {
	if input == "-" {
		return SourceStdin
	}
	if strings.HasPrefix(input, "http://") || strings.HasPrefix(input, "https://") {
		return SourceURL
	}
	if strings.HasSuffix(strings.ToLower(input), ".pdf") {
		return SourcePDF
	}
	return SourceText
}

func NewIngester(input string) Ingester {
	switch DetectSource(input) {
	case SourceURL:
		return &URLIngester{}
	case SourceStdin:
		return &ReaderIngester{Reader: os.Stdin}
	default:
		return FileIngester{}
	}
}

// Load picks an ingester for source and runs it.
func Load(ctx context.Context, source string) (*Content, error) {
	return NewIngester(source).Ingest(ctx, source)
}

// ReaderIngester reads text verbatim from an io.Reader.
type ReaderIngester struct {
	Reader io.Reader
}

func (ri *ReaderIngester) Ingest(_ context.Context, source string) (*Content, error) {
	data, err := io.ReadAll(io.LimitReader(ri.Reader, maxInputSize+1))
	if err != nil {
		return nil, fmt.Errorf("could not read %s: %w", source, err)
	}
	if len(data) > maxInputSize {
		return nil, fmt.Errorf("%s is too large (max %d MB)", source, maxInputSize/(1024*1024))
	}
	return newContent(string(data), "", source, SourceStdin)
}

func newContent(text, title, source string, typ SourceType) (*Content, error) {
	if strings.TrimSpace(text) == "" {
		return nil, fmt.Errorf("%s contains no text", source)
	}
	if title == "" {
		title = titleFromText(text, 80)
	}
	return &Content{
		Text:      text,
		Title:     title,
		Source:    source,
		Type:      typ,
		WordCount: wordCount(text),
	}, nil
}

func wordCount(text string) int {
	count := 0
	inWord := false
	for _, r := range text {
		if r == ' ' || r == '\t' || r == '\n' || r == '\r' {
			inWord = false
		} else if !inWord {
			inWord = true
			count++
		}
	}
	return count
}

func titleFromText(text string, maxLen int) string {
	line := strings.TrimSpace(text)
	if idx := strings.IndexByte(line, '\n'); idx > 0 {
		line = strings.TrimSpace(line[:idx])
	}
	if len(line) > maxLen {
		line = line[:maxLen] + "..."
	}
	if line == "" {
		return "Untitled"
	}
	return line
}

func validateFile(path string) error {
	info, err := os.Stat(path)
	if err != nil {
		return fmt.Errorf("cannot access %s: %w", path, err)
	}
	if info.IsDir() {
		return fmt.Errorf("%s is a directory, not a file", path)
	}
	if info.Size() > maxInputSize {
		return fmt.Errorf("%s is too large (%d MB, max %d MB)", path, info.Size()/(1024*1024), maxInputSize/(1024*1024))
	}
	return nil
}
