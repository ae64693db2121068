package export

import (
	"context"
	"encoding/json"
	"fmt"

	"github.com/custodia-labs/sercha-synth/internal/core/domain"
	"github.com/custodia-labs/sercha-synth/internal/core/ports/driven"
)

// Ensure JSONExporter implements the interface.
var _ driven.Exporter = (*JSONExporter)(nil)

// JSONExporter writes the book as indented JSON.
type JSONExporter struct{}

// Format returns json.
func (e *JSONExporter) Format() domain.OutputFormat {
	return domain.OutputFormatJSON
}

// Export encodes req and writes it to the output directory.
func (e *JSONExporter) Export(_ context.Context, req driven.ExportRequest) (string, error) {
	data, err := json.MarshalIndent(NewBook(req), "", "  ")
	if err != nil {
		return "", fmt.Errorf("encoding json: %w", err)
	}
	return write(req, domain.OutputFormatJSON, append(data, '\n'))
}
