package cli

import (
	"bytes"
	"context"
	"errors"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/spf13/cobra"
	"github.com/spf13/pflag"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// runCommand executes the root command with args and returns its output.
func runCommand(t *testing.T, args ...string) (string, error) {
	t.Helper()
	return runCommandWithInput(t, "", args...)
}

func runCommandWithInput(t *testing.T, input string, args ...string) (string, error) {
	t.Helper()
	resetFlags(rootCmd)
	buf := new(bytes.Buffer)
	rootCmd.SetOut(buf)
	rootCmd.SetErr(buf)
	rootCmd.SetIn(strings.NewReader(input))
	rootCmd.SetArgs(append([]string{"--env-file", ""}, args...))
	t.Cleanup(func() {
		rootCmd.SetArgs(nil)
		rootCmd.SetOut(nil)
		rootCmd.SetErr(nil)
		rootCmd.SetIn(nil)
	})

	err := rootCmd.ExecuteContext(context.Background())
	return buf.String(), err
}

// withServices installs s for the duration of the test.
func withServices(t *testing.T, s *Services) {
	t.Helper()
	SetServices(s)
	t.Cleanup(func() {
		SetServices(nil)
		services = nil
	})
}

// resetFlags restores every flag of cmd and its children to its default.
func resetFlags(cmd *cobra.Command) {
	reset := func(f *pflag.Flag) {
		if sv, ok := f.Value.(pflag.SliceValue); ok {
			_ = sv.Replace(nil) //nolint:errcheck // replacing with nil cannot fail
		} else {
			_ = f.Value.Set(f.DefValue) //nolint:errcheck // default values always parse
		}
		f.Changed = false
	}
	cmd.Flags().VisitAll(reset)
	cmd.PersistentFlags().VisitAll(reset)
	for _, c := range cmd.Commands() {
		resetFlags(c)
	}
}

func TestRootCmd_HasSubcommands(t *testing.T) {
	names := make([]string, 0)
	for _, c := range rootCmd.Commands() {
		names = append(names, c.Name())
	}

	for _, want := range []string{"chunks", "query", "themes", "synthesize", "chapters", "settings", "mcp", "version"} {
		assert.Contains(t, names, want)
	}
}

func TestRootCmd_BootstrapRunsOnce(t *testing.T) {
	calls := 0
	SetBootstrap(func(_ context.Context) (*Services, error) {
		calls++
		return &Services{
			Settings: newMockSettings(),
			Warnings: []string{"LLM unreachable"},
		}, nil
	})
	t.Cleanup(func() {
		SetBootstrap(nil)
		SetServices(nil)
		services = nil
	})

	_, err := runCommand(t, "settings", "show")
	require.NoError(t, err)
	_, err = runCommand(t, "settings", "show")
	require.NoError(t, err)

	assert.Equal(t, 1, calls)
	assert.NotNil(t, settingsService)
}

func TestRootCmd_BootstrapError(t *testing.T) {
	SetBootstrap(func(_ context.Context) (*Services, error) {
		return nil, errors.New("no database")
	})
	t.Cleanup(func() { SetBootstrap(nil) })

	_, err := runCommand(t, "themes", "list")

	require.Error(t, err)
	assert.Contains(t, err.Error(), "no database")
}

func TestRootCmd_LoadsEnvFile(t *testing.T) {
	path := filepath.Join(t.TempDir(), "test.env")
	require.NoError(t, os.WriteFile(path, []byte("SERCHA_SYNTH_CLI_TEST=loaded\n"), 0600))
	t.Setenv("SERCHA_SYNTH_CLI_TEST", "")
	require.NoError(t, os.Unsetenv("SERCHA_SYNTH_CLI_TEST"))

	_, err := runCommand(t, "--env-file", path, "version")

	require.NoError(t, err)
	assert.Equal(t, "loaded", os.Getenv("SERCHA_SYNTH_CLI_TEST"))
}

func TestRootCmd_MissingEnvFileIsIgnored(t *testing.T) {
	_, err := runCommand(t, "--env-file", filepath.Join(t.TempDir(), "absent.env"), "version")

	assert.NoError(t, err)
}

func TestCommands_ServiceNotConfigured(t *testing.T) {
	withServices(t, &Services{})

	tests := [][]string{
		{"chunks", "stats"},
		{"query", "q"},
		{"themes", "list"},
		{"synthesize", "--title", "T"},
		{"chapters", "list"},
		{"settings", "show"},
	}
	for _, args := range tests {
		t.Run(strings.Join(args, " "), func(t *testing.T) {
			_, err := runCommand(t, args...)
			require.Error(t, err)
			assert.Contains(t, err.Error(), "not configured")
		})
	}
}

func TestServices_CloseOnExecute(t *testing.T) {
	closed := false
	withServices(t, &Services{Close: func() error {
		closed = true
		return nil
	}})
	rootCmd.SetArgs([]string{"--env-file", "", "version"})
	rootCmd.SetOut(new(bytes.Buffer))
	t.Cleanup(func() {
		rootCmd.SetArgs(nil)
		rootCmd.SetOut(nil)
	})

	require.NoError(t, Execute(context.Background()))

	assert.True(t, closed)
}
