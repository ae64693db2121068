package cli

import (
	"encoding/json"
	"fmt"

	"github.com/spf13/cobra"

	"github.com/custodia-labs/sercha-synth/internal/core/domain"
	"github.com/custodia-labs/sercha-synth/internal/core/ports/driving"
)

var (
	queryK           int
	queryStream      bool
	querySources     bool
	queryDocuments   []string
	queryTheme       string
	queryTemperature float64
	queryJSON        bool
)

var queryCmd = &cobra.Command{
	Use:   "query [question]",
	Short: "Answer a question from the collection",
	Long: `Retrieves the chunks nearest to the question and asks the LLM to
answer using only those chunks.`,
	Args: cobra.ExactArgs(1),
	RunE: runQuery,
}

func init() {
	queryCmd.Flags().IntVarP(&queryK, "k", "k", 5, "number of chunks to retrieve")
	queryCmd.Flags().BoolVar(&queryStream, "stream", false, "print the answer as it is generated")
	queryCmd.Flags().BoolVar(&querySources, "sources", false, "list the chunks the answer was built from")
	queryCmd.Flags().StringSliceVar(&queryDocuments, "document", nil, "restrict retrieval to these document IDs")
	queryCmd.Flags().StringVar(&queryTheme, "theme", "", "restrict retrieval to chunks of this theme")
	queryCmd.Flags().Float64Var(&queryTemperature, "temperature", 0, "sampling temperature (0 uses the default)")
	queryCmd.Flags().BoolVar(&queryJSON, "json", false, "output the result as JSON")
	rootCmd.AddCommand(queryCmd)
}

func runQuery(cmd *cobra.Command, args []string) error {
	if retrievalService == nil {
		return notConfigured("retrieval")
	}
	out := cmd.OutOrStdout()

	opts := driving.QueryOptions{
		K:              queryK,
		Filters:        domain.SearchFilters{DocumentIDs: queryDocuments, ThemeID: queryTheme},
		IncludeSources: querySources || queryJSON,
		Temperature:    queryTemperature,
	}
	streamed := false
	if queryStream && !queryJSON {
		opts.OnFragment = func(fragment string) error {
			streamed = true
			_, err := fmt.Fprint(out, fragment)
			return err
		}
	}

	result, err := retrievalService.Query(cmd.Context(), args[0], opts)
	if err != nil {
		return fmt.Errorf("query failed: %w", err)
	}

	if queryJSON {
		data, err := json.MarshalIndent(result, "", "  ")
		if err != nil {
			return fmt.Errorf("failed to marshal result: %w", err)
		}
		fmt.Fprintln(out, string(data))
		return nil
	}

	if streamed {
		fmt.Fprintln(out)
	} else {
		fmt.Fprintln(out, result.Answer)
	}

	if querySources && len(result.Sources) > 0 {
		fmt.Fprintln(out)
		fmt.Fprintln(out, ui.Subtitle.Render("Sources"))
		for i, src := range result.Sources {
			fmt.Fprintf(out, "  [%d] Document %s, page %d (%.2f)\n",
				i+1, domain.ShortID(src.DocumentID), src.Page, src.Similarity)
			if src.Preview != "" {
				fmt.Fprintf(out, "      %s\n", ui.Muted.Render(src.Preview))
			}
		}
	}
	return nil
}
