package cli

import (
	"bytes"
	"io"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/jonboulle/clockwork"
	"github.com/spf13/cobra"
	"github.com/spf13/pflag"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/seuros/amiri/internal/config"
)

var fixedNow = time.Date(2024, time.January, 10, 9, 0, 0, 0, time.UTC)

// setupCLI isolates a test from the host: no config file, no database, a
// fixed clock and piped output.
func setupCLI(t *testing.T) string {
	t.Helper()
	dir := t.TempDir()
	t.Chdir(dir)
	t.Setenv("HOME", dir)
	t.Setenv("XDG_CONFIG_HOME", dir)
	t.Setenv("DATABASE_URL", "")
	t.Setenv("AMIRI_DATABASE_URL", "")
	t.Setenv("AMIRI_DATA_SOURCE", "")

	origClock, origTerminal := newClock, isTerminal
	newClock = func() clockwork.Clock { return clockwork.NewFakeClockAt(fixedNow) }
	isTerminal = func(io.Writer) bool { return false }
	t.Cleanup(func() {
		newClock, isTerminal = origClock, origTerminal
	})
	return dir
}

// execute runs the root command with args. Flag state is reset first since
// cobra keeps parsed values between runs.
func execute(t *testing.T, args ...string) (string, string, error) {
	t.Helper()
	resetFlags(RootCmd)

	var stdout, stderr bytes.Buffer
	RootCmd.SetOut(&stdout)
	RootCmd.SetErr(&stderr)
	RootCmd.SetArgs(args)
	t.Cleanup(func() {
		RootCmd.SetOut(nil)
		RootCmd.SetErr(nil)
		RootCmd.SetArgs(nil)
	})

	err := RootCmd.Execute()
	return stdout.String(), stderr.String(), err
}

func resetFlags(cmd *cobra.Command) {
	reset := func(f *pflag.Flag) {
		_ = f.Value.Set(f.DefValue)
		f.Changed = false
	}
	cmd.Flags().VisitAll(reset)
	cmd.PersistentFlags().VisitAll(reset)
	for _, sub := range cmd.Commands() {
		resetFlags(sub)
	}
}

func TestLoadDotEnvFillsUnsetVariables(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, ".env")
	require.NoError(t, os.WriteFile(path, []byte("AMIRI_DOTENV_TEST=from-file\nAMIRI_DOTENV_KEEP=from-file\n"), 0o600))

	t.Setenv("AMIRI_DOTENV_KEEP", "from-env")
	t.Cleanup(func() { _ = os.Unsetenv("AMIRI_DOTENV_TEST") })

	loadDotEnv(path)

	assert.Equal(t, "from-file", os.Getenv("AMIRI_DOTENV_TEST"))
	assert.Equal(t, "from-env", os.Getenv("AMIRI_DOTENV_KEEP"))
}

func TestLoadDotEnvMissingFile(t *testing.T) {
	assert.NotPanics(t, func() {
		loadDotEnv(filepath.Join(t.TempDir(), "missing.env"))
	})
}

func TestLoadConfigAppliesFlags(t *testing.T) {
	setupCLI(t)
	_, _, err := execute(t, "version", "--data-source", "demo", "--port", "8181")
	require.NoError(t, err)

	cfg, err := loadConfig(14)
	require.NoError(t, err)
	assert.Equal(t, config.SourceDemo, cfg.DataSource)
	assert.Equal(t, "8181", cfg.Port)
	assert.Equal(t, 14, cfg.DefaultHorizon)
}

func TestConnectDatabaseSkipsWhenNotNeeded(t *testing.T) {
	assert.False(t, connectDatabase(&config.Config{DataSource: config.SourceAuto}))
	assert.False(t, connectDatabase(&config.Config{DataSource: config.SourceDemo, DatabaseURL: "postgres://x"}))
	assert.False(t, connectDatabase(&config.Config{DataSource: config.SourceSpreadsheet, DatabaseURL: "postgres://x"}))
}

func TestNewServiceUsesConfiguredSource(t *testing.T) {
	cfg := &config.Config{DataSource: config.SourceDemo, DefaultHorizon: 21, CacheSize: 8, Timezone: "UTC"}
	svc, err := newService(cfg, clockwork.NewFakeClockAt(fixedNow), nil)
	require.NoError(t, err)

	assert.Equal(t, "demo", svc.Source())
	assert.Equal(t, 21, svc.DefaultHorizon())
	assert.Equal(t, "2024-01-10", svc.Today().Format(time.DateOnly))
}

func TestNewServiceRejectsUnknownSource(t *testing.T) {
	_, err := newService(&config.Config{DataSource: "ftp"}, clockwork.NewFakeClockAt(fixedNow), nil)
	assert.Error(t, err)
}

func TestRootHelpListsCommands(t *testing.T) {
	setupCLI(t)
	out, _, err := execute(t, "--help")
	require.NoError(t, err)

	for _, name := range []string{"serve", "series", "metrics", "export", "seed", "migrate", "doctor", "healthcheck", "version"} {
		assert.Contains(t, out, name)
	}
}

func TestVersionCommand(t *testing.T) {
	setupCLI(t)
	orig := Version
	Version = "1.2.3"
	t.Cleanup(func() { Version = orig })

	out, _, err := execute(t, "version")
	require.NoError(t, err)
	assert.Contains(t, out, "amiri 1.2.3")

	out, _, err = execute(t, "version", "--json")
	require.NoError(t, err)
	assert.Contains(t, out, `"version":"1.2.3"`)
}
