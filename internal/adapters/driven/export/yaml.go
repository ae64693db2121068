package export

import (
	"context"
	"fmt"

	"gopkg.in/yaml.v3"

	"github.com/custodia-labs/sercha-synth/internal/core/domain"
	"github.com/custodia-labs/sercha-synth/internal/core/ports/driven"
)

// Ensure YAMLExporter implements the interface.
var _ driven.Exporter = (*YAMLExporter)(nil)

// YAMLExporter writes the book as YAML.
type YAMLExporter struct{}

// Format returns yaml.
func (e *YAMLExporter) Format() domain.OutputFormat {
	return domain.OutputFormatYAML
}

// Export encodes req and writes it to the output directory.
func (e *YAMLExporter) Export(_ context.Context, req driven.ExportRequest) (string, error) {
	data, err := yaml.Marshal(NewBook(req))
	if err != nil {
		return "", fmt.Errorf("encoding yaml: %w", err)
	}
	return write(req, domain.OutputFormatYAML, data)
}
