package cli

import (
	"context"
	"errors"
	"fmt"
	"io"
	"os"
	"os/signal"

	"github.com/spf13/cobra"

	"github.com/custodia-labs/sercha-synth/internal/adapters/driving/cli/progress"
	"github.com/custodia-labs/sercha-synth/internal/core/domain"
	"github.com/custodia-labs/sercha-synth/internal/core/ports/driving"
)

var (
	synthTitle     string
	synthAuthor    string
	synthObjective string
	synthLevel     string
	synthChunks    int
	synthFormats   []string
	synthOut       string
	synthForce     bool
)

var synthesizeCmd = &cobra.Command{
	Use:   "synthesize",
	Short: "Write a chaptered document from the stored themes",
	Long: `Plans a chapter order for the stored themes, writes each chapter from
its chunks with numbered citations, and exports the result.

A previous synthesis is reused when the themes, level and chunks per
chapter are unchanged; a different output format is served by re-exporting.
Press Ctrl-C to stop early: finished chapters are exported but not cached.

Levels:
  short          about 800 words per chapter
  normal         about 1500 words per chapter
  comprehensive  about 3000 words per chapter`,
	Args: cobra.NoArgs,
	RunE: runSynthesize,
}

func init() {
	synthesizeCmd.Flags().StringVarP(&synthTitle, "title", "t", "", "document title")
	synthesizeCmd.Flags().StringVar(&synthAuthor, "author", "", "author shown in exports (default from settings)")
	synthesizeCmd.Flags().StringVar(&synthObjective, "objective", "", "what the document should achieve")
	synthesizeCmd.Flags().StringVar(&synthLevel, "level", "", "short, normal or comprehensive (default from settings)")
	synthesizeCmd.Flags().IntVar(&synthChunks, "chunks", 0, "chunks per chapter (default from settings)")
	synthesizeCmd.Flags().StringSliceVarP(&synthFormats, "format", "f", nil,
		"output formats: markdown, json, yaml (default from settings)")
	synthesizeCmd.Flags().StringVarP(&synthOut, "out", "o", ".", "output directory")
	synthesizeCmd.Flags().BoolVar(&synthForce, "force", false, "regenerate even when the cache is valid")
	_ = synthesizeCmd.MarkFlagRequired("title") //nolint:errcheck // flag is defined above
	rootCmd.AddCommand(synthesizeCmd)
}

func runSynthesize(cmd *cobra.Command, _ []string) error {
	if cacheService == nil {
		return notConfigured("synthesis")
	}

	cfg, err := synthesisConfigFromFlags()
	if err != nil {
		return err
	}

	ctx, stop := signal.NotifyContext(cmd.Context(), os.Interrupt)
	defer stop()

	reporter := progress.Start(cmd.ErrOrStderr(), "Synthesizing "+cfg.Title)
	result, err := cacheService.Synthesize(ctx, driving.SynthesizeRequest{
		Config:   cfg,
		OutDir:   synthOut,
		Force:    synthForce,
		Progress: reporter.Func(),
	})
	reporter.Stop()

	if err != nil && result != nil && errors.Is(err, context.Canceled) {
		out := cmd.OutOrStdout()
		fmt.Fprintln(out, ui.Warning.Render(fmt.Sprintf(
			"Cancelled: exported %d finished chapters. The partial result was not cached.",
			len(result.Cache.Chapters))))
		printArtifacts(out, result.Artifacts)
		return errors.New("synthesis cancelled")
	}
	if err != nil {
		return fmt.Errorf("synthesis failed: %w", err)
	}

	printSynthesisSummary(cmd.OutOrStdout(), cfg.Title, result)
	return nil
}

// synthesisConfigFromFlags layers flags over stored synthesis defaults.
func synthesisConfigFromFlags() (domain.SynthesisConfig, error) {
	cfg := domain.DefaultSynthesisConfig()
	if settingsService != nil {
		if settings, err := settingsService.Get(); err == nil {
			cfg = settings.Synthesis
		}
	}

	cfg.Title = synthTitle
	cfg.Objective = synthObjective
	if synthAuthor != "" {
		cfg.Author = synthAuthor
	}
	if synthLevel != "" {
		cfg.Level = domain.SynthesisLevel(synthLevel)
		if !cfg.Level.IsValid() {
			return cfg, fmt.Errorf("invalid level %q: use short, normal or comprehensive", synthLevel)
		}
	}
	if synthChunks > 0 {
		cfg.ChunksPerChapter = synthChunks
	}
	if len(synthFormats) > 0 {
		cfg.OutputFormats = make([]domain.OutputFormat, len(synthFormats))
		for i, f := range synthFormats {
			cfg.OutputFormats[i] = domain.OutputFormat(f)
			if !cfg.OutputFormats[i].IsValid() {
				return cfg, fmt.Errorf("invalid format %q: use markdown, json or yaml", f)
			}
		}
	}
	return cfg, nil
}

// printSynthesisSummary describes a finished run under the requested title,
// which a cache hit exports with even when the cached title differs.
func printSynthesisSummary(out io.Writer, title string, result *driving.SynthesizeResult) {
	if result.FromCache {
		fmt.Fprintln(out, ui.Muted.Render("Themes unchanged since the last run: exported from cache."))
	}
	fmt.Fprintln(out, ui.Heading(title))
	fmt.Fprintln(out, ui.KeyValue("Chapters", len(result.Cache.Chapters)))
	fmt.Fprintln(out, ui.KeyValue("Words", result.Cache.TotalWords))
	fmt.Fprintln(out, ui.KeyValue("Citations", result.Cache.TotalCitations))
	fmt.Fprintln(out, ui.KeyValue("Level", result.Cache.Level.Description()))
	printArtifacts(out, result.Artifacts)
}

func printArtifacts(out io.Writer, paths []string) {
	if len(paths) == 0 {
		return
	}
	fmt.Fprintln(out)
	fmt.Fprintln(out, ui.Subtitle.Render("Written"))
	for _, p := range paths {
		fmt.Fprintf(out, "  %s\n", ui.Success.Render(p))
	}
}
