package cli

import (
	"bufio"
	"errors"
	"fmt"
	"os"
	"strconv"
	"strings"

	"github.com/spf13/cobra"
	"golang.org/x/term"

	"github.com/custodia-labs/sercha-synth/internal/core/domain"
)

var settingsCmd = &cobra.Command{
	Use:   "settings",
	Short: "Manage application settings",
	Long: `View and configure AI providers, storage, discovery and synthesis defaults.

Use subcommands to configure specific settings or run the interactive wizard.`,
	RunE: runSettingsShow,
}

var settingsShowCmd = &cobra.Command{
	Use:   "show",
	Short: "Show current settings",
	RunE:  runSettingsShow,
}

var settingsSetCmd = &cobra.Command{
	Use:   "set [key] [value]",
	Short: "Set a single setting",
	Long: `Set a single setting by key. Lists take comma-separated values.

Examples:
  sercha-synth settings set llm.model gpt-4o
  sercha-synth settings set llm.requests_per_second 2
  sercha-synth settings set synthesis.formats markdown,json`,
	Args: cobra.ExactArgs(2),
	RunE: runSettingsSet,
}

var settingsWizardCmd = &cobra.Command{
	Use:   "wizard",
	Short: "Interactive setup wizard",
	Long:  `Run an interactive wizard to configure AI providers and storage step by step.`,
	RunE:  runSettingsWizard,
}

var settingsValidateCmd = &cobra.Command{
	Use:   "validate",
	Short: "Check settings and ping the configured providers",
	RunE:  runSettingsValidate,
}

func init() {
	settingsCmd.AddCommand(settingsShowCmd)
	settingsCmd.AddCommand(settingsSetCmd)
	settingsCmd.AddCommand(settingsWizardCmd)
	settingsCmd.AddCommand(settingsValidateCmd)
	rootCmd.AddCommand(settingsCmd)
}

func runSettingsShow(cmd *cobra.Command, _ []string) error {
	if settingsService == nil {
		return notConfigured("settings")
	}

	settings, err := settingsService.Get()
	if err != nil {
		return fmt.Errorf("failed to get settings: %w", err)
	}

	cmd.Println(ui.Heading("Current Settings"))
	cmd.Println()

	cmd.Println(ui.Subtitle.Render("[Embedding]"))
	cmd.Println(ui.KeyValue("Provider", settings.Embedding.Provider.Description()))
	cmd.Println(ui.KeyValue("Model", settings.Embedding.Model))
	if settings.Embedding.Provider.IsLocal() {
		cmd.Println(ui.KeyValue("Base URL", settings.Embedding.BaseURL))
	}
	if settings.Embedding.Provider.RequiresAPIKey() {
		cmd.Println(ui.KeyValue("API Key", displayKey(settings.Embedding.APIKey)))
	}
	cmd.Println(ui.KeyValue("Status", configuredStatus(settings.Embedding.IsConfigured())))
	cmd.Println()

	cmd.Println(ui.Subtitle.Render("[LLM]"))
	cmd.Println(ui.KeyValue("Provider", settings.LLM.Provider.Description()))
	cmd.Println(ui.KeyValue("Model", settings.LLM.Model))
	if settings.LLM.Provider.IsLocal() {
		cmd.Println(ui.KeyValue("Base URL", settings.LLM.BaseURL))
	}
	if settings.LLM.Provider.RequiresAPIKey() {
		cmd.Println(ui.KeyValue("API Key", displayKey(settings.LLM.APIKey)))
	}
	if settings.LLM.RequestsPerSecond > 0 {
		cmd.Println(ui.KeyValue("Rate limit", fmt.Sprintf("%g req/s", settings.LLM.RequestsPerSecond)))
	}
	cmd.Println(ui.KeyValue("Status", configuredStatus(settings.LLM.IsConfigured())))
	cmd.Println()

	cmd.Println(ui.Subtitle.Render("[Storage]"))
	cmd.Println(ui.KeyValue("Backend", settings.Storage.Backend))
	if settings.Storage.Backend == domain.StoragePGVector {
		cmd.Println(ui.KeyValue("Postgres", displayKey(settings.Storage.PostgresURL)))
	}
	if settings.Graph.IsConfigured() {
		cmd.Println(ui.KeyValue("Theme graph", settings.Graph.URI))
	}
	cmd.Println()

	cmd.Println(ui.Subtitle.Render("[Discovery]"))
	cmd.Println(ui.KeyValue("Max themes", settings.Discovery.MaxThemes))
	cmd.Println(ui.KeyValue("Min cluster size", settings.Discovery.MinClusterSize))
	cmd.Println(ui.KeyValue("Seed", settings.Discovery.Seed))
	cmd.Println()

	cmd.Println(ui.Subtitle.Render("[Synthesis]"))
	cmd.Println(ui.KeyValue("Level", settings.Synthesis.Level.Description()))
	cmd.Println(ui.KeyValue("Chunks per chapter", settings.Synthesis.ChunksPerChapter))
	cmd.Println(ui.KeyValue("Formats", joinFormats(settings.Synthesis.OutputFormats)))
	if settings.Synthesis.Author != "" {
		cmd.Println(ui.KeyValue("Author", settings.Synthesis.Author))
	}
	cmd.Println()

	if err := settingsService.Validate(); err != nil {
		cmd.Println(ui.Warning.Render(fmt.Sprintf("Warning: %v", err)))
		cmd.Println("Run 'sercha-synth settings wizard' to fix configuration issues.")
	} else {
		cmd.Println(ui.Success.Render("Configuration is valid."))
	}

	return nil
}

func runSettingsSet(cmd *cobra.Command, args []string) error {
	if settingsService == nil {
		return notConfigured("settings")
	}

	if err := settingsService.SetValue(args[0], args[1]); err != nil {
		if errors.Is(err, domain.ErrInvalidInput) && !isKnownKey(args[0]) {
			return fmt.Errorf("%w\nKnown keys: %s", err, strings.Join(settingsService.Keys(), ", "))
		}
		return err
	}
	cmd.Printf("Set %s\n", args[0])
	return nil
}

func isKnownKey(key string) bool {
	for _, k := range settingsService.Keys() {
		if k == key {
			return true
		}
	}
	return false
}

func runSettingsValidate(cmd *cobra.Command, _ []string) error {
	if settingsService == nil {
		return notConfigured("settings")
	}

	if err := settingsService.Validate(); err != nil {
		return err
	}

	failed := false
	check := func(name string, fn func() error) {
		cmd.Printf("%s... ", name)
		if err := fn(); err != nil {
			failed = true
			cmd.Println(ui.Error.Render("FAILED: " + err.Error()))
			return
		}
		cmd.Println(ui.Success.Render("OK"))
	}
	check("Embedding provider", settingsService.ValidateEmbeddingConfig)
	check("LLM provider", settingsService.ValidateLLMConfig)

	if failed {
		return errors.New("provider validation failed")
	}
	return nil
}

func runSettingsWizard(cmd *cobra.Command, _ []string) error {
	if settingsService == nil {
		return notConfigured("settings")
	}

	cmd.Println(ui.Heading("sercha-synth Settings Wizard"))
	cmd.Println()

	reader := bufio.NewReader(cmd.InOrStdin())

	// Step 1: Embedding Provider
	cmd.Println(ui.Subtitle.Render("Step 1: Configure Embedding Provider"))
	cmd.Println("Embeddings are used for retrieval and for chunks imported without vectors.")
	cmd.Println()
	if err := configureEmbeddingProvider(cmd, reader); err != nil {
		return err
	}

	// Step 2: LLM Provider
	cmd.Println(ui.Subtitle.Render("Step 2: Configure LLM Provider"))
	cmd.Println("The LLM labels themes, plans chapters and writes them.")
	cmd.Println()
	if err := configureLLMProvider(cmd, reader); err != nil {
		return err
	}

	// Step 3: Storage
	cmd.Println(ui.Subtitle.Render("Step 3: Select Storage Backend"))
	if err := configureStorage(cmd, reader); err != nil {
		return err
	}

	// Final validation
	cmd.Println(ui.Heading("Configuration Complete!"))
	if err := settingsService.Validate(); err != nil {
		cmd.Println(ui.Warning.Render(fmt.Sprintf("Warning: %v", err)))
	} else {
		cmd.Println(ui.Success.Render("All settings are valid and saved."))
	}

	return nil
}

//nolint:dupl // Similar to configureLLMProvider but for embeddings - intentional for CLI flow clarity
func configureEmbeddingProvider(cmd *cobra.Command, reader *bufio.Reader) error {
	cmd.Println("Select Embedding Provider")
	providers := domain.AllEmbeddingProviders()
	for i, p := range providers {
		cmd.Printf("  %d. %s\n", i+1, p.Description())
	}
	cmd.Print("\nEnter choice [1]: ")
	input := readLine(reader)
	idx := parseChoice(input, len(providers), 1)
	selectedProvider := providers[idx-1]

	// Get model
	defaultModel := domain.DefaultEmbeddingModels()[selectedProvider]
	cmd.Printf("Enter model name [%s]: ", defaultModel)
	model := readLine(reader)
	if model == "" {
		model = defaultModel
	}

	// Get API key if needed
	var apiKey string
	if selectedProvider.RequiresAPIKey() {
		cmd.Print("Enter API key: ")
		apiKey = readPassword(reader)
		cmd.Println()
		if apiKey == "" {
			return errors.New("API key is required for this provider")
		}
	}

	if err := settingsService.SetEmbeddingProvider(selectedProvider, model, apiKey); err != nil {
		return fmt.Errorf("failed to configure embedding provider: %w", err)
	}

	// Validate the configuration by pinging the service
	cmd.Print("Validating configuration... ")
	if err := settingsService.ValidateEmbeddingConfig(); err != nil {
		cmd.Printf("FAILED: %v\n", err)
		return fmt.Errorf("embedding configuration validation failed: %w", err)
	}
	cmd.Println("OK")

	cmd.Printf("Embedding provider configured: %s (%s)\n\n", selectedProvider.Description(), model)
	return nil
}

//nolint:dupl // Similar to configureEmbeddingProvider but for LLM - intentional for CLI flow clarity
func configureLLMProvider(cmd *cobra.Command, reader *bufio.Reader) error {
	cmd.Println("Select LLM Provider")
	providers := domain.AllLLMProviders()
	for i, p := range providers {
		cmd.Printf("  %d. %s\n", i+1, p.Description())
	}
	cmd.Print("\nEnter choice [1]: ")
	input := readLine(reader)
	idx := parseChoice(input, len(providers), 1)
	selectedProvider := providers[idx-1]

	// Get model
	defaultModel := domain.DefaultLLMModels()[selectedProvider]
	cmd.Printf("Enter model name [%s]: ", defaultModel)
	model := readLine(reader)
	if model == "" {
		model = defaultModel
	}

	// Get API key if needed
	var apiKey string
	if selectedProvider.RequiresAPIKey() {
		cmd.Print("Enter API key: ")
		apiKey = readPassword(reader)
		cmd.Println()
		if apiKey == "" {
			return errors.New("API key is required for this provider")
		}
	}

	if err := settingsService.SetLLMProvider(selectedProvider, model, apiKey); err != nil {
		return fmt.Errorf("failed to configure LLM provider: %w", err)
	}

	// Validate the configuration by pinging the service
	cmd.Print("Validating configuration... ")
	if err := settingsService.ValidateLLMConfig(); err != nil {
		cmd.Printf("FAILED: %v\n", err)
		return fmt.Errorf("LLM configuration validation failed: %w", err)
	}
	cmd.Println("OK")

	cmd.Printf("LLM provider configured: %s (%s)\n\n", selectedProvider.Description(), model)
	return nil
}

func configureStorage(cmd *cobra.Command, reader *bufio.Reader) error {
	backends := []domain.StorageBackend{domain.StorageSQLite, domain.StoragePGVector, domain.StorageMemory}
	descriptions := map[domain.StorageBackend]string{
		domain.StorageSQLite:   "SQLite file in ~/.sercha-synth/data",
		domain.StoragePGVector: "PostgreSQL with pgvector for chunks",
		domain.StorageMemory:   "In memory (nothing persists between runs)",
	}
	for i, b := range backends {
		cmd.Printf("  %d. %s - %s\n", i+1, b, descriptions[b])
	}
	cmd.Print("\nEnter choice [1]: ")
	idx := parseChoice(readLine(reader), len(backends), 1)
	backend := backends[idx-1]

	var url string
	if backend == domain.StoragePGVector {
		cmd.Print("Enter PostgreSQL URL: ")
		url = readPassword(reader)
		cmd.Println()
	}
	if err := settingsService.SetStorageBackend(backend, url); err != nil {
		return fmt.Errorf("failed to configure storage: %w", err)
	}
	cmd.Printf("Storage backend set to: %s\n\n", backend)
	return nil
}

// Helper functions.

//nolint:errcheck // CLI helper, error ignored for UX
func readLine(reader *bufio.Reader) string {
	input, _ := reader.ReadString('\n')
	return strings.TrimSpace(input)
}

func parseChoice(input string, maxVal, defaultVal int) int {
	if input == "" {
		return defaultVal
	}
	val, err := strconv.Atoi(input)
	if err != nil || val < 1 || val > maxVal {
		return defaultVal
	}
	return val
}

// readPassword reads a secret without echo when stdin is a terminal.
func readPassword(reader *bufio.Reader) string {
	if term.IsTerminal(int(os.Stdin.Fd())) { //nolint:gosec // fd fits in int
		password, err := term.ReadPassword(int(os.Stdin.Fd())) //nolint:gosec // fd fits in int
		if err == nil {
			return strings.TrimSpace(string(password))
		}
	}
	return readLine(reader)
}

func maskAPIKey(key string) string {
	if len(key) <= 8 {
		return "****"
	}
	return key[:4] + "..." + key[len(key)-4:]
}

func displayKey(key string) string {
	if key == "" {
		return "(not set)"
	}
	return maskAPIKey(key)
}

func configuredStatus(ok bool) string {
	if ok {
		return "configured"
	}
	return "not configured"
}

func joinFormats(formats []domain.OutputFormat) string {
	parts := make([]string, len(formats))
	for i, f := range formats {
		parts[i] = string(f)
	}
	return strings.Join(parts, ", ")
}
