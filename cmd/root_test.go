package main

import (
	"os"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/sells-group/hazard-cli/internal/monitoring"
)

func TestRootCommand_HasSubcommands(t *testing.T) {
	cmds := rootCmd.Commands()

	// Collect subcommand names.
	names := make(map[string]bool)
	for _, c := range cmds {
		names[c.Name()] = true
	}

	// Verify expected subcommands are registered.
	expected := []string{"filter", "curves", "check"}
	for _, name := range expected {
		assert.True(t, names[name], "expected subcommand %q not found", name)
	}
}

func TestRootCommand_Metadata(t *testing.T) {
	assert.Equal(t, "hazard-cli", rootCmd.Use)
	assert.NotEmpty(t, rootCmd.Short)
	assert.NotEmpty(t, rootCmd.Long)
}

func TestCommands_JobFlag(t *testing.T) {
	for _, c := range []string{"filter", "curves", "check"} {
		cmd, _, err := rootCmd.Find([]string{c})
		require.NoError(t, err)
		flag := cmd.Flags().Lookup("job")
		require.NotNil(t, flag, "%s command should have --job flag", c)
		assert.Equal(t, "job.yaml", flag.DefValue)
	}
}

func TestCurvesCommand_SaveFlag(t *testing.T) {
	flag := curvesCmd.Flags().Lookup("save")
	require.NotNil(t, flag, "curves command should have --save flag")
	assert.Equal(t, "false", flag.DefValue)
}

func TestRootCommand_PreRunBuildsMonitor(t *testing.T) {
	dir := t.TempDir()
	origDir, _ := os.Getwd()
	require.NoError(t, os.Chdir(dir))
	t.Cleanup(func() { os.Chdir(origDir) }) //nolint:errcheck

	t.Cleanup(func() { cfg, mon = nil, nil })

	require.NoError(t, rootCmd.PersistentPreRunE(checkCmd, nil))
	require.NotNil(t, cfg)
	assert.Equal(t, "index", cfg.Calculation.Prefilter)
	require.NotNil(t, mon)

	// A second run gets a fresh registry, so totals start at zero.
	mon.Add(monitoring.StageFilterSources, time.Millisecond, 3)
	require.NoError(t, rootCmd.PersistentPreRunE(filterCmd, nil))
	assert.Zero(t, mon.Snapshot().Get(monitoring.StageFilterSources).Count)
	logStages(mon)

	t.Setenv("HAZARD_METRICS_ENABLED", "false")
	require.NoError(t, rootCmd.PersistentPreRunE(filterCmd, nil))
	assert.Nil(t, mon)
	logStages(mon)
}
