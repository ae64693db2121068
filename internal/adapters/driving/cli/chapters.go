package cli

import (
	"errors"
	"fmt"
	"os"
	"strconv"

	"github.com/charmbracelet/glamour"
	"github.com/spf13/cobra"
	"golang.org/x/term"

	"github.com/custodia-labs/sercha-synth/internal/adapters/driven/export"
	"github.com/custodia-labs/sercha-synth/internal/adapters/driving/cli/progress"
	"github.com/custodia-labs/sercha-synth/internal/core/domain"
)

// defaultWrapWidth is used when the terminal width cannot be read.
const defaultWrapWidth = 100

var chaptersRaw bool

var chaptersCmd = &cobra.Command{
	Use:   "chapters",
	Short: "Read the cached synthesis",
}

var chaptersListCmd = &cobra.Command{
	Use:   "list",
	Short: "List cached chapters",
	Args:  cobra.NoArgs,
	RunE:  runChaptersList,
}

var chaptersShowCmd = &cobra.Command{
	Use:   "show [number]",
	Short: "Render a cached chapter",
	Args:  cobra.ExactArgs(1),
	RunE:  runChaptersShow,
}

func init() {
	chaptersShowCmd.Flags().BoolVar(&chaptersRaw, "raw", false, "print Markdown without rendering")
	chaptersCmd.AddCommand(chaptersListCmd)
	chaptersCmd.AddCommand(chaptersShowCmd)
	rootCmd.AddCommand(chaptersCmd)
}

func loadCache(cmd *cobra.Command) (*domain.SynthesisCache, error) {
	if cacheService == nil {
		return nil, notConfigured("synthesis")
	}
	cache, err := cacheService.Status(cmd.Context())
	if err != nil {
		return nil, fmt.Errorf("failed to load synthesis: %w", err)
	}
	if cache == nil {
		return nil, errors.New("no cached synthesis: run 'sercha-synth synthesize' first")
	}
	return cache, nil
}

func runChaptersList(cmd *cobra.Command, _ []string) error {
	cache, err := loadCache(cmd)
	if err != nil {
		return err
	}

	rows := make([][]string, len(cache.Chapters))
	for i, ch := range cache.Chapters {
		rows[i] = []string{
			strconv.Itoa(ch.Number),
			ch.Title,
			strconv.Itoa(ch.WordCount),
			strconv.Itoa(len(ch.Citations)),
		}
	}
	out := cmd.OutOrStdout()
	fmt.Fprintln(out, ui.Heading(cache.Config.Title))
	fmt.Fprintln(out, ui.Table([]string{"#", "Title", "Words", "Citations"}, rows))
	return nil
}

func runChaptersShow(cmd *cobra.Command, args []string) error {
	number, err := strconv.Atoi(args[0])
	if err != nil || number < 1 {
		return fmt.Errorf("invalid chapter number %q", args[0])
	}

	cache, err := loadCache(cmd)
	if err != nil {
		return err
	}

	for _, ch := range cache.Chapters {
		if ch.Number != number {
			continue
		}
		markdown := export.RenderChapter(ch)
		out := cmd.OutOrStdout()
		if chaptersRaw || !progress.IsTerminal(out) {
			fmt.Fprint(out, markdown)
			return nil
		}
		rendered, err := renderMarkdown(markdown)
		if err != nil {
			return err
		}
		fmt.Fprint(out, rendered)
		return nil
	}
	return fmt.Errorf("chapter %d not found: the synthesis has %d chapters", number, len(cache.Chapters))
}

// renderMarkdown styles Markdown for the terminal.
func renderMarkdown(markdown string) (string, error) {
	width := defaultWrapWidth
	if w, _, err := term.GetSize(int(os.Stdout.Fd())); err == nil && w > 0 { //nolint:gosec // fd fits in int
		width = w
	}

	renderer, err := glamour.NewTermRenderer(
		glamour.WithAutoStyle(),
		glamour.WithWordWrap(width),
	)
	if err != nil {
		return "", fmt.Errorf("create renderer: %w", err)
	}
	rendered, err := renderer.Render(markdown)
	if err != nil {
		return "", fmt.Errorf("render chapter: %w", err)
	}
	return rendered, nil
}
