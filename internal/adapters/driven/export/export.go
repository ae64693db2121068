// Package export renders synthesized chapters to files.
package export

import (
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"unicode"

	"github.com/custodia-labs/sercha-synth/internal/core/domain"
	"github.com/custodia-labs/sercha-synth/internal/core/ports/driven"
)

// defaultSlug is used when a title has no letters or digits.
const defaultSlug = "synthesis"

// New returns the exporter for format.
func New(format domain.OutputFormat) (driven.Exporter, error) {
	switch format {
	case domain.OutputFormatMarkdown:
		return &MarkdownExporter{}, nil
	case domain.OutputFormatJSON:
		return &JSONExporter{}, nil
	case domain.OutputFormatYAML:
		return &YAMLExporter{}, nil
	default:
		return nil, fmt.Errorf("%w: %s", domain.ErrUnsupportedFormat, format)
	}
}

// All returns one exporter per supported format.
func All() []driven.Exporter {
	return []driven.Exporter{&MarkdownExporter{}, &JSONExporter{}, &YAMLExporter{}}
}

// Slug lowercases title and joins its letter and digit runs with hyphens.
func Slug(title string) string {
	var b strings.Builder
	pendingHyphen := false
	for _, r := range strings.ToLower(title) {
		if unicode.IsLetter(r) || unicode.IsDigit(r) {
			if pendingHyphen && b.Len() > 0 {
				b.WriteByte('-')
			}
			b.WriteRune(r)
			pendingHyphen = false
			continue
		}
		pendingHyphen = true
	}
	if b.Len() == 0 {
		return defaultSlug
	}
	return b.String()
}

// OutputPath returns <outDir>/<slug(title)>.<ext>.
func OutputPath(outDir, title string, format domain.OutputFormat) string {
	return filepath.Join(outDir, Slug(title)+"."+format.Extension())
}

func write(req driven.ExportRequest, format domain.OutputFormat, data []byte) (string, error) {
	outDir := req.OutDir
	if outDir == "" {
		outDir = "."
	}
	if err := os.MkdirAll(outDir, 0755); err != nil {
		return "", fmt.Errorf("creating output directory: %w", err)
	}
	path := OutputPath(outDir, req.Title, format)
	if err := os.WriteFile(path, data, 0644); err != nil {
		return "", fmt.Errorf("writing %s: %w", path, err)
	}
	return path, nil
}

// Book is the structured document written by the JSON and YAML exporters.
type Book struct {
	Title          string        `json:"title" yaml:"title"`
	Author         string        `json:"author,omitempty" yaml:"author,omitempty"`
	Level          string        `json:"level" yaml:"level"`
	GeneratedAt    string        `json:"generated_at" yaml:"generated_at"`
	TotalWords     int           `json:"total_words" yaml:"total_words"`
	TotalCitations int           `json:"total_citations" yaml:"total_citations"`
	Chapters       []BookChapter `json:"chapters" yaml:"chapters"`
}

// BookChapter is one chapter inside a Book.
type BookChapter struct {
	Number    int            `json:"number" yaml:"number"`
	Title     string         `json:"title" yaml:"title"`
	ThemeID   string         `json:"theme_id" yaml:"theme_id"`
	WordCount int            `json:"word_count" yaml:"word_count"`
	Generated bool           `json:"generated" yaml:"generated"`
	Content   string         `json:"content" yaml:"content"`
	Citations []BookCitation `json:"citations" yaml:"citations"`
}

// BookCitation is one resolved source reference.
type BookCitation struct {
	Marker     int    `json:"marker" yaml:"marker"`
	ChunkID    string `json:"chunk_id" yaml:"chunk_id"`
	DocumentID string `json:"document_id" yaml:"document_id"`
	Page       int    `json:"page" yaml:"page"`
}

// NewBook builds the structured form of an export request.
func NewBook(req driven.ExportRequest) Book {
	book := Book{
		Title:          req.Title,
		Author:         req.Author,
		Level:          req.Level.String(),
		TotalWords:     domain.TotalWords(req.Chapters),
		TotalCitations: domain.TotalCitations(req.Chapters),
		Chapters:       make([]BookChapter, 0, len(req.Chapters)),
	}
	if !req.GeneratedAt.IsZero() {
		book.GeneratedAt = req.GeneratedAt.UTC().Format("2006-01-02T15:04:05Z07:00")
	}
	for _, ch := range req.Chapters {
		citations := make([]BookCitation, 0, len(ch.Citations))
		for _, c := range ch.Citations {
			citations = append(citations, BookCitation(c))
		}
		book.Chapters = append(book.Chapters, BookChapter{
			Number:    ch.Number,
			Title:     ch.Title,
			ThemeID:   ch.ThemeID,
			WordCount: domain.CountWords(ch.Content),
			Generated: ch.Generated,
			Content:   ch.Content,
			Citations: citations,
		})
	}
	return book
}
