package commands

import (
	"bytes"
	"context"
	"os"
	"path/filepath"
	"testing"

	"github.com/fatih/color"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// workspace writes a config with a file-backed database and the given bots.
func workspace(t *testing.T, bots map[string]string) string {
	t.Helper()
	dir := t.TempDir()
	botsDir := filepath.Join(dir, "bots")
	config := "database:\n  path: " + filepath.Join(dir, "bf.sqlite") + "\nbots_dir: " + botsDir + "\nlog:\n  level: error\n"
	require.NoError(t, os.WriteFile(filepath.Join(dir, "config.yaml"), []byte(config), 0o644))
	for name, content := range bots {
		require.NoError(t, os.MkdirAll(filepath.Join(botsDir, name), 0o755))
		require.NoError(t, os.WriteFile(filepath.Join(botsDir, name, "bot.yaml"), []byte(content), 0o644))
	}
	return filepath.Join(dir, "config.yaml")
}

// run executes the command line with args and returns stdout and stderr.
func run(t *testing.T, args ...string) (string, string, error) {
	t.Helper()
	color.NoColor = true
	configPath, botNames = "", nil
	postDryRun, backlogLimit, stressRounds = false, 20, 10

	var out, errOut bytes.Buffer
	rootCmd.SetOut(&out)
	rootCmd.SetErr(&errOut)
	if args == nil {
		args = []string{}
	}
	rootCmd.SetArgs(args)
	err := Execute(context.Background())
	return out.String(), errOut.String(), err
}

func TestRootShowsHelp(t *testing.T) {
	out, _, err := run(t)
	require.NoError(t, err)
	assert.Contains(t, out, "Usage:")
	assert.Contains(t, out, "botfriend")
}

func TestRootRejectsUnknownFlags(t *testing.T) {
	_, _, err := run(t, "--unknown-flag", "value")
	assert.Error(t, err)
}

func TestPostAndDashboard(t *testing.T) {
	cfg := workspace(t, map[string]string{
		"jokes": "generator: number-jokes\nschedule: 60\npublish:\n  echo:\n",
	})

	out, _, err := run(t, "--config", cfg, "post", "--dry-run")
	require.NoError(t, err)
	assert.Contains(t, out, "jokes would publish 1 posts")
	assert.Contains(t, out, "Why is ")

	out, _, err = run(t, "--config", cfg, "post")
	require.NoError(t, err)
	assert.Contains(t, out, "jokes: published 1 posts, 1 publications")

	out, _, err = run(t, "--config", cfg, "post")
	require.NoError(t, err)
	assert.Contains(t, out, "jokes: published 0 posts", "next post is an hour away")

	out, _, err = run(t, "--config", cfg, "dashboard")
	require.NoError(t, err)
	assert.Contains(t, out, "jokes")
}

func TestBacklogCommands(t *testing.T) {
	cfg := workspace(t, map[string]string{
		"quotes": "generator: dull\n",
		"other":  "generator: dull\n",
	})
	items := filepath.Join(t.TempDir(), "items.yaml")
	require.NoError(t, os.WriteFile(items, []byte("- first\n- content: second\n"), 0o644))

	_, errOut, err := run(t, "--config", cfg, "backlog", "load", items)
	require.Error(t, err)
	assert.Contains(t, errOut, "select it with --bot")

	out, _, err := run(t, "--config", cfg, "--bot", "quotes", "backlog", "load", items)
	require.NoError(t, err)
	assert.Contains(t, out, "quotes: added 2 items, backlog now holds 2")

	out, _, err = run(t, "--config", cfg, "--bot", "quotes", "backlog", "show", "--limit", "1")
	require.NoError(t, err)
	assert.Contains(t, out, `"first"`)
	assert.Contains(t, out, "...and 1 more")

	out, _, err = run(t, "--config", cfg, "--bot", "quotes", "backlog", "clear")
	require.NoError(t, err)
	assert.Contains(t, out, "quotes: backlog cleared")
}

func TestStateCommands(t *testing.T) {
	cfg := workspace(t, map[string]string{"dull": "generator: dull\n"})

	out, _, err := run(t, "--config", cfg, "state", "show")
	require.NoError(t, err)
	assert.Contains(t, out, "(no state)")

	_, _, err = run(t, "--config", cfg, "state", "set", `{"mood":"calm"}`)
	require.NoError(t, err)

	out, _, err = run(t, "--config", cfg, "state", "show")
	require.NoError(t, err)
	assert.Contains(t, out, `{"mood":"calm"}`)
}

func TestStressTestAndSelfTest(t *testing.T) {
	cfg := workspace(t, map[string]string{
		"dull":  "generator: dull\npublish:\n  file:\n    filename: out.txt\n",
		"jokes": "generator: number-jokes\npublish:\n  echo:\n",
	})

	out, _, err := run(t, "--config", cfg, "stress-test", "--rounds", "3")
	require.NoError(t, err)
	assert.Contains(t, out, "dull\n")
	assert.Contains(t, out, "jokes: generator cannot produce samples")

	out, _, err = run(t, "--config", cfg, "self-test")
	require.NoError(t, err)
	assert.Contains(t, out, "file: writing to")
	assert.Contains(t, out, "echo: no self-test")
}

func TestClearSchedule(t *testing.T) {
	cfg := workspace(t, map[string]string{"chorus": "generator: chorus\n"})

	out, _, err := run(t, "--config", cfg, "schedule")
	require.NoError(t, err)
	assert.Contains(t, out, "chorus: scheduled 6 posts")

	out, _, err = run(t, "--config", cfg, "clear-schedule")
	require.NoError(t, err)
	assert.Contains(t, out, "chorus: removed 6 scheduled posts")
}

func TestConfigurationErrorIsFriendly(t *testing.T) {
	cfg := workspace(t, map[string]string{"broken": "generator: nope\n"})

	_, errOut, err := run(t, "--config", cfg, "post")
	require.Error(t, err)
	assert.Contains(t, errOut, "Configuration problem")
	assert.Contains(t, errOut, `unknown generator "nope"`)
}
