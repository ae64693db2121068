// Package cli provides the cobra command tree for sercha-synth.
package cli

import (
	"context"
	"errors"
	"fmt"
	"io/fs"

	"github.com/joho/godotenv"
	"github.com/spf13/cobra"

	"github.com/custodia-labs/sercha-synth/internal/adapters/driving/cli/styles"
	"github.com/custodia-labs/sercha-synth/internal/core/ports/driving"
	"github.com/custodia-labs/sercha-synth/internal/logger"
)

// annotationNoServices marks commands that run without bootstrapping services.
const annotationNoServices = "no-services"

// Services holds the driving ports the commands use. Any field may be nil;
// commands that need a missing service report it as not configured.
type Services struct {
	Chunks     driving.ChunkService
	Retrieval  driving.RetrievalService
	Collection driving.CollectionService
	Cache      driving.CacheService
	Settings   driving.SettingsService

	// WatchPrompts reloads prompt templates on change until ctx is done. Optional.
	WatchPrompts func(ctx context.Context) error

	// Warnings are shown once after bootstrap, e.g. an unreachable provider.
	Warnings []string

	// Close releases stores and clients. Optional.
	Close func() error
}

// Bootstrap builds the services. It runs after .env is loaded.
type Bootstrap func(ctx context.Context) (*Services, error)

var (
	version   = "dev"
	verbose   bool
	envFile   string
	bootstrap Bootstrap
	services  *Services
	ui        = styles.DefaultStyles()
)

// Service handles used by the commands.
var (
	chunkService      driving.ChunkService
	retrievalService  driving.RetrievalService
	collectionService driving.CollectionService
	cacheService      driving.CacheService
	settingsService   driving.SettingsService
)

var rootCmd = &cobra.Command{
	Use:   "sercha-synth",
	Short: "Discover themes in a document collection and synthesize them into a book",
	Long: `sercha-synth works on a collection of embedded document chunks.

It answers questions with retrieval-augmented generation, clusters the
collection into labelled themes, and writes a chaptered document from
those themes with citations back to the source pages.

Typical flow:
  sercha-synth chunks import chunks.jsonl
  sercha-synth themes discover
  sercha-synth synthesize --title "Field Guide"`,
	SilenceUsage:      true,
	PersistentPreRunE: persistentPreRun,
}

func init() {
	rootCmd.PersistentFlags().BoolVarP(&verbose, "verbose", "v", false, "show debug output")
	rootCmd.PersistentFlags().StringVar(&envFile, "env-file", ".env", "environment file to load before reading settings")
}

// SetVersion sets the version reported by the version command.
func SetVersion(v string) {
	version = v
}

// SetBootstrap registers the function that builds services on first use.
func SetBootstrap(b Bootstrap) {
	bootstrap = b
}

// SetServices installs services directly, bypassing bootstrap.
func SetServices(s *Services) {
	services = s
	if s == nil {
		s = &Services{}
	}
	chunkService = s.Chunks
	retrievalService = s.Retrieval
	collectionService = s.Collection
	cacheService = s.Cache
	settingsService = s.Settings
}

// Execute runs the root command and releases services afterwards.
func Execute(ctx context.Context) error {
	defer closeServices()
	return rootCmd.ExecuteContext(ctx)
}

func persistentPreRun(cmd *cobra.Command, _ []string) error {
	logger.SetVerbose(verbose)

	if envFile != "" {
		if err := godotenv.Load(envFile); err != nil && !errors.Is(err, fs.ErrNotExist) {
			return fmt.Errorf("load %s: %w", envFile, err)
		}
	}

	if cmd.Annotations[annotationNoServices] == "true" || services != nil || bootstrap == nil {
		return nil
	}

	s, err := bootstrap(cmd.Context())
	if err != nil {
		return err
	}
	SetServices(s)
	for _, w := range s.Warnings {
		logger.Warn("%s", w)
	}
	return nil
}

func closeServices() {
	if services == nil || services.Close == nil {
		return
	}
	if err := services.Close(); err != nil {
		logger.Warn("closing services: %v", err)
	}
}

// notConfigured is the error for a command whose service is missing.
func notConfigured(name string) error {
	return fmt.Errorf("%s service not configured", name)
}
