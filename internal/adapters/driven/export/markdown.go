package export

import (
	"context"
	"fmt"
	"strings"

	"github.com/custodia-labs/sercha-synth/internal/core/domain"
	"github.com/custodia-labs/sercha-synth/internal/core/ports/driven"
)

// Ensure MarkdownExporter implements the interface.
var _ driven.Exporter = (*MarkdownExporter)(nil)

// MarkdownExporter writes a single Markdown book.
type MarkdownExporter struct{}

// Format returns markdown.
func (e *MarkdownExporter) Format() domain.OutputFormat {
	return domain.OutputFormatMarkdown
}

// Export renders req as Markdown and writes it to the output directory.
func (e *MarkdownExporter) Export(_ context.Context, req driven.ExportRequest) (string, error) {
	return write(req, domain.OutputFormatMarkdown, []byte(RenderMarkdown(req)))
}

// RenderMarkdown returns the Markdown text of the book.
func RenderMarkdown(req driven.ExportRequest) string {
	var b strings.Builder

	fmt.Fprintf(&b, "# %s\n\n", req.Title)
	if req.Author != "" {
		fmt.Fprintf(&b, "_by %s_\n\n", req.Author)
	}

	if len(req.Chapters) > 0 {
		b.WriteString("## Contents\n\n")
		for _, ch := range req.Chapters {
			fmt.Fprintf(&b, "%d. %s\n", ch.Number, ch.Title)
		}
		b.WriteString("\n")
	}

	for _, ch := range req.Chapters {
		b.WriteString(RenderChapter(ch))
	}
	return b.String()
}

// RenderChapter returns one chapter with its source list.
func RenderChapter(ch domain.Chapter) string {
	var b strings.Builder
	fmt.Fprintf(&b, "## Chapter %d: %s\n\n", ch.Number, ch.Title)
	if content := strings.TrimSpace(ch.Content); content != "" {
		b.WriteString(content)
		b.WriteString("\n\n")
	}
	if len(ch.Citations) > 0 {
		b.WriteString("### Sources\n\n")
		for _, c := range ch.Citations {
			fmt.Fprintf(&b, "- Document %s, page %d\n", domain.ShortID(c.DocumentID), c.Page)
		}
		b.WriteString("\n")
	}
	return b.String()
}
