package main

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"gopkg.in/yaml.v3"

	"github.com/acuworks/finops-cli/internal/config"
)

func TestRootCommand_HasSubcommands(t *testing.T) {
	cmds := rootCmd.Commands()

	names := make(map[string]bool)
	for _, c := range cmds {
		names[c.Name()] = true
	}

	expected := []string{"ingest", "collect", "report", "kpi", "serve", "init"}
	for _, name := range expected {
		assert.True(t, names[name], "expected subcommand %q not found", name)
	}
}

func TestRootCommand_Metadata(t *testing.T) {
	assert.Equal(t, "finops-cli", rootCmd.Use)
	assert.NotEmpty(t, rootCmd.Short)
	assert.NotEmpty(t, rootCmd.Long)
}

func TestReportCommand_Flags(t *testing.T) {
	for _, name := range []string{"start", "end", "out"} {
		require.NotNil(t, reportCmd.Flags().Lookup(name), "report command should have --%s flag", name)
	}
}

func TestKPICommand_Flags(t *testing.T) {
	for _, name := range []string{"start", "end", "github-org", "out"} {
		require.NotNil(t, kpiCmd.Flags().Lookup(name), "kpi command should have --%s flag", name)
	}
}

func TestServeCommand_Flags(t *testing.T) {
	flag := serveCmd.Flags().Lookup("port")
	require.NotNil(t, flag, "serve command should have --port flag")
	assert.Equal(t, "0", flag.DefValue)

	seed := serveCmd.Flags().Lookup("seed")
	require.NotNil(t, seed)
	assert.Equal(t, "42", seed.DefValue)
}

func TestIngestCommand_Flags(t *testing.T) {
	kind := ingestCmd.Flags().Lookup("kind")
	require.NotNil(t, kind)
	assert.Equal(t, "usage_logs", kind.DefValue)

	flag := ingestCmd.Flags().Lookup("path")
	require.NotNil(t, flag)
	assert.Equal(t, "", flag.DefValue)

	pages := ingestCmd.Flags().Lookup("max-pages")
	require.NotNil(t, pages)
	assert.Equal(t, "0", pages.DefValue)
}

func TestInitCommand_WritesResolvedConfig(t *testing.T) {
	out := filepath.Join(t.TempDir(), "config.yaml")

	cfg = &config.Config{}
	cfg.Metrics.PricePerACU = 0.05
	cfg.Metrics.Currency = "USD"

	initOut = out
	initForce = false
	require.NoError(t, initCmd.RunE(initCmd, nil))

	raw, err := os.ReadFile(out)
	require.NoError(t, err)

	var got config.Config
	require.NoError(t, yaml.Unmarshal(raw, &got))
	assert.InDelta(t, 0.05, got.Metrics.PricePerACU, 0.0001)
	assert.Equal(t, "USD", got.Metrics.Currency)
}

func TestInitCommand_RefusesOverwriteWithoutForce(t *testing.T) {
	out := filepath.Join(t.TempDir(), "config.yaml")
	require.NoError(t, os.WriteFile(out, []byte("enterprise: {}\n"), 0o644))

	cfg = &config.Config{}
	initOut = out
	initForce = false
	err := initCmd.RunE(initCmd, nil)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "already exists")

	initForce = true
	require.NoError(t, initCmd.RunE(initCmd, nil))
}
