package cli

import (
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"strings"

	"github.com/spf13/cobra"

	"github.com/custodia-labs/sercha-synth/internal/adapters/driving/cli/progress"
	"github.com/custodia-labs/sercha-synth/internal/core/domain"
	"github.com/custodia-labs/sercha-synth/internal/core/ports/driving"
)

var (
	discoverN       int
	discoverMax     int
	discoverMinSize int
	discoverSeed    uint64
	themesJSON      bool
	refineLabel     string
	refineDesc      string
	mergeLabel      string
)

var themesCmd = &cobra.Command{
	Use:   "themes",
	Short: "Discover and curate themes",
	Long: `Themes are labelled clusters of chunks. Discovery replaces the stored
theme set; refine and merge edit it. Any change drops the cached synthesis,
except a refine, which only relabels.`,
}

var themesDiscoverCmd = &cobra.Command{
	Use:   "discover",
	Short: "Cluster the collection into themes",
	Long: `Clusters the embedded chunks with k-means, picking the number of themes
by silhouette score unless --n is given, then labels each theme with the LLM.`,
	Args: cobra.NoArgs,
	RunE: runThemesDiscover,
}

var themesListCmd = &cobra.Command{
	Use:   "list",
	Short: "List stored themes",
	Args:  cobra.NoArgs,
	RunE:  runThemesList,
}

var themesRefineCmd = &cobra.Command{
	Use:   "refine [theme-id]",
	Short: "Relabel a theme",
	Args:  cobra.ExactArgs(1),
	RunE:  runThemesRefine,
}

var themesMergeCmd = &cobra.Command{
	Use:   "merge [theme-id] [theme-id]...",
	Short: "Merge themes into one",
	Args:  cobra.MinimumNArgs(2),
	RunE:  runThemesMerge,
}

var themesPublishCmd = &cobra.Command{
	Use:   "publish",
	Short: "Publish themes to the Neo4j theme graph",
	Args:  cobra.NoArgs,
	RunE:  runThemesPublish,
}

func init() {
	themesDiscoverCmd.Flags().IntVarP(&discoverN, "n", "n", 0, "number of themes (0 picks automatically)")
	themesDiscoverCmd.Flags().IntVar(&discoverMax, "max", 0, "upper bound for automatic selection (0 uses settings)")
	themesDiscoverCmd.Flags().IntVar(&discoverMinSize, "min-size", 0, "discard themes with fewer chunks (0 uses settings)")
	themesDiscoverCmd.Flags().Uint64Var(&discoverSeed, "seed", 0, "clustering seed (0 uses settings)")
	themesDiscoverCmd.Flags().BoolVar(&themesJSON, "json", false, "output themes as JSON")

	themesListCmd.Flags().BoolVar(&themesJSON, "json", false, "output themes as JSON")

	themesRefineCmd.Flags().StringVar(&refineLabel, "label", "", "new label")
	themesRefineCmd.Flags().StringVar(&refineDesc, "description", "", "new description")

	themesMergeCmd.Flags().StringVar(&mergeLabel, "label", "", "label of the merged theme")
	_ = themesMergeCmd.MarkFlagRequired("label") //nolint:errcheck // flag is defined above

	themesCmd.AddCommand(themesDiscoverCmd)
	themesCmd.AddCommand(themesListCmd)
	themesCmd.AddCommand(themesRefineCmd)
	themesCmd.AddCommand(themesMergeCmd)
	themesCmd.AddCommand(themesPublishCmd)
	rootCmd.AddCommand(themesCmd)
}

func runThemesDiscover(cmd *cobra.Command, _ []string) error {
	if collectionService == nil {
		return notConfigured("collection")
	}

	opts := driving.DiscoverOptions{
		NThemes:        discoverN,
		MaxThemes:      discoverMax,
		MinClusterSize: discoverMinSize,
		Seed:           discoverSeed,
	}
	if settingsService != nil {
		if settings, err := settingsService.Get(); err == nil {
			opts.MaxThemes = firstPositive(opts.MaxThemes, settings.Discovery.MaxThemes)
			opts.MinClusterSize = firstPositive(opts.MinClusterSize, settings.Discovery.MinClusterSize)
			if opts.Seed == 0 {
				opts.Seed = settings.Discovery.Seed
			}
		}
	}

	reporter := progress.Start(cmd.ErrOrStderr(), "Discovering themes")
	opts.Progress = reporter.Func()
	themes, err := collectionService.Discover(cmd.Context(), opts)
	reporter.Stop()
	if err != nil {
		return fmt.Errorf("discovery failed: %w", err)
	}

	if len(themes) == 0 && !themesJSON {
		cmd.Println("No themes found. Discovery needs at least three embedded chunks.")
		return nil
	}
	return printThemes(cmd.OutOrStdout(), themes)
}

func runThemesList(cmd *cobra.Command, _ []string) error {
	if collectionService == nil {
		return notConfigured("collection")
	}

	themes, err := collectionService.Themes(cmd.Context())
	if err != nil {
		return fmt.Errorf("failed to list themes: %w", err)
	}
	if len(themes) == 0 && !themesJSON {
		cmd.Println("No themes stored. Run 'sercha-synth themes discover' first.")
		return nil
	}
	return printThemes(cmd.OutOrStdout(), themes)
}

func runThemesRefine(cmd *cobra.Command, args []string) error {
	if collectionService == nil {
		return notConfigured("collection")
	}

	var label, desc *string
	if cmd.Flags().Changed("label") {
		label = &refineLabel
	}
	if cmd.Flags().Changed("description") {
		desc = &refineDesc
	}
	if label == nil && desc == nil {
		return errors.New("nothing to change: pass --label and/or --description")
	}

	theme, err := collectionService.Refine(cmd.Context(), args[0], label, desc)
	if err != nil {
		return fmt.Errorf("refine failed: %w", err)
	}
	cmd.Printf("Theme %s is now %q\n", domain.ShortID(theme.ID), theme.Label)
	return nil
}

func runThemesMerge(cmd *cobra.Command, args []string) error {
	if collectionService == nil {
		return notConfigured("collection")
	}

	theme, err := collectionService.Merge(cmd.Context(), args, mergeLabel)
	if err != nil {
		return fmt.Errorf("merge failed: %w", err)
	}
	cmd.Printf("Merged %d themes into %s %q (%d chunks)\n",
		len(args), domain.ShortID(theme.ID), theme.Label, theme.Size())
	return nil
}

func runThemesPublish(cmd *cobra.Command, _ []string) error {
	if collectionService == nil {
		return notConfigured("collection")
	}

	if err := collectionService.Publish(cmd.Context()); err != nil {
		return fmt.Errorf("publish failed: %w", err)
	}
	cmd.Println("Themes published to the theme graph.")
	return nil
}

func printThemes(out io.Writer, themes []domain.Theme) error {
	if themesJSON {
		data, err := json.MarshalIndent(themes, "", "  ")
		if err != nil {
			return fmt.Errorf("failed to marshal themes: %w", err)
		}
		fmt.Fprintln(out, string(data))
		return nil
	}

	rows := make([][]string, len(themes))
	for i := range themes {
		rows[i] = []string{
			themes[i].ID,
			themes[i].Label,
			fmt.Sprintf("%d", themes[i].Size()),
			fmt.Sprintf("%.0f%%", themes[i].Importance*100),
			strings.Join(firstN(themes[i].Keywords, 5), ", "),
		}
	}
	fmt.Fprintln(out, ui.Table([]string{"ID", "Label", "Chunks", "Share", "Keywords"}, rows))
	return nil
}

func firstPositive(values ...int) int {
	for _, v := range values {
		if v > 0 {
			return v
		}
	}
	return 0
}

func firstN(items []string, n int) []string {
	if len(items) <= n {
		return items
	}
	return items[:n]
}
