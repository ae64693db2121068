package cli

import (
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"os"

	"github.com/spf13/cobra"

	"github.com/custodia-labs/sercha-synth/internal/adapters/driving/cli/progress"
	"github.com/custodia-labs/sercha-synth/internal/core/domain"
)

var chunksCmd = &cobra.Command{
	Use:   "chunks",
	Short: "Manage the chunk collection",
	Long: `Import externally produced chunks and inspect the collection.

Chunks are produced by an upstream ingestion pipeline. Each chunk carries
its document, page and character offsets, and optionally its embedding.`,
}

var chunksImportCmd = &cobra.Command{
	Use:   "import [file.jsonl]",
	Short: "Import chunks from a JSON Lines file",
	Long: `Import chunks from a JSON Lines file, one chunk object per line:

  {"id":"c1","document_id":"d1","content":"...","page":1,"index":0,
   "start_char":0,"end_char":812,"token_count":190,"embedding":[0.1, ...]}

Chunks without an "embedding" are embedded with the configured provider.
Use "-" to read from standard input.`,
	Args: cobra.ExactArgs(1),
	RunE: runChunksImport,
}

var chunksStatsCmd = &cobra.Command{
	Use:   "stats",
	Short: "Show collection statistics",
	RunE:  runChunksStats,
}

func init() {
	chunksCmd.AddCommand(chunksImportCmd)
	chunksCmd.AddCommand(chunksStatsCmd)
	rootCmd.AddCommand(chunksCmd)
}

func runChunksImport(cmd *cobra.Command, args []string) error {
	if chunkService == nil {
		return notConfigured("chunk")
	}

	var in io.Reader = cmd.InOrStdin()
	if args[0] != "-" {
		f, err := os.Open(args[0])
		if err != nil {
			return fmt.Errorf("open chunks file: %w", err)
		}
		defer f.Close()
		in = f
	}

	chunks, err := decodeChunks(in)
	if err != nil {
		return err
	}

	reporter := progress.Start(cmd.ErrOrStderr(), "Importing chunks")
	result, err := chunkService.Import(cmd.Context(), chunks, reporter.Func())
	reporter.Stop()
	if err != nil {
		return fmt.Errorf("import failed: %w", err)
	}

	fmt.Fprintln(cmd.OutOrStdout(), ui.Success.Render(
		fmt.Sprintf("Imported %d chunks (%d embedded)", result.Added, result.Embedded)))
	return nil
}

// decodeChunks reads a stream of JSON chunk objects.
func decodeChunks(r io.Reader) ([]domain.Chunk, error) {
	dec := json.NewDecoder(r)
	var chunks []domain.Chunk
	for {
		var c domain.Chunk
		err := dec.Decode(&c)
		if errors.Is(err, io.EOF) {
			return chunks, nil
		}
		if err != nil {
			return nil, fmt.Errorf("decode chunk %d: %w", len(chunks)+1, err)
		}
		chunks = append(chunks, c)
	}
}

func runChunksStats(cmd *cobra.Command, _ []string) error {
	if chunkService == nil {
		return notConfigured("chunk")
	}

	stats, err := chunkService.Stats(cmd.Context())
	if err != nil {
		return fmt.Errorf("stats failed: %w", err)
	}

	out := cmd.OutOrStdout()
	fmt.Fprintln(out, ui.Heading("Collection"))
	fmt.Fprintln(out, ui.KeyValue("Chunks", stats.Chunks))
	fmt.Fprintln(out, ui.KeyValue("Documents", stats.Documents))
	fmt.Fprintln(out, ui.KeyValue("Embedded", stats.Embedded))
	fmt.Fprintln(out, ui.KeyValue("Dimensions", stats.Dimensions))
	fmt.Fprintln(out, ui.KeyValue("Assigned to themes", stats.Themed))
	return nil
}
