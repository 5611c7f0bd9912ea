package app

import (
	"bytes"
	"context"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/edgard/botfriend/internal/bot/tasks"
	"github.com/edgard/botfriend/internal/config"
	"github.com/edgard/botfriend/internal/logger"
)

func writeFile(t *testing.T, path, content string) {
	t.Helper()
	require.NoError(t, os.MkdirAll(filepath.Dir(path), 0o755))
	require.NoError(t, os.WriteFile(path, []byte(content), 0o644))
}

// workspace writes a config.yaml pointing at an in-memory database and a
// bots directory holding the given bot.yaml files.
func workspace(t *testing.T, bots map[string]string) string {
	t.Helper()
	dir := t.TempDir()
	botsDir := filepath.Join(dir, "bots")
	writeFile(t, filepath.Join(dir, "config.yaml"), "database:\n  path: \":memory:\"\nbots_dir: "+botsDir+"\n")
	for name, content := range bots {
		writeFile(t, filepath.Join(botsDir, name, config.BotFile), content)
	}
	return filepath.Join(dir, "config.yaml")
}

func TestLoadAndRunPass(t *testing.T) {
	path := workspace(t, map[string]string{
		"jokes": "generator: number-jokes\nschedule: 60\npublish:\n  echo:\n",
		"dull":  "generator: dull\n",
	})

	var out bytes.Buffer
	a, err := Load(context.Background(), Options{ConfigPath: path, Stdout: &out, Logger: logger.Discard()})
	require.NoError(t, err)
	defer a.Close()

	require.Len(t, a.Runner.Bots(), 2)
	jokes, ok := a.Runner.Bot("jokes")
	require.True(t, ok)
	require.NotNil(t, jokes.Schedule())
	assert.Equal(t, "60m", jokes.Schedule().String())

	report, err := a.Runner.RunPass(context.Background(), "jokes")
	require.NoError(t, err)
	require.Len(t, report.Bots, 1)
	assert.Equal(t, 1, report.Bots[0].Posts)
	assert.Contains(t, out.String(), "Why is ")
}

func TestLoadSelectsBots(t *testing.T) {
	path := workspace(t, map[string]string{
		"jokes": "generator: number-jokes\n",
		"dull":  "generator: dull\n",
	})

	a, err := Load(context.Background(), Options{ConfigPath: path, Bots: []string{"dull"}, Logger: logger.Discard()})
	require.NoError(t, err)
	defer a.Close()

	require.Len(t, a.Runner.Bots(), 1)
	assert.Equal(t, "dull", a.Runner.Bots()[0].Name())
}

func TestLoadConfigurationErrors(t *testing.T) {
	tests := []struct {
		name string
		bot  string
	}{
		{"unknown generator", "generator: nope\n"},
		{"bad schedule", "generator: dull\nschedule: soon\n"},
		{"unknown publisher", "generator: dull\npublish:\n  myspace:\n"},
		{"gemini without key", "generator: gemini\nprompt: write a haiku\n"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			path := workspace(t, map[string]string{"broken": tt.bot})
			_, err := Load(context.Background(), Options{ConfigPath: path, Logger: logger.Discard()})
			require.Error(t, err)
			assert.ErrorIs(t, err, config.ErrConfiguration)
		})
	}
}

func TestSchedulePassTaskQueuesChorusPosts(t *testing.T) {
	ctx := context.Background()
	path := workspace(t, map[string]string{"chorus": "generator: chorus\n"})

	a, err := Load(ctx, Options{ConfigPath: path, Logger: logger.Discard()})
	require.NoError(t, err)
	defer a.Close()

	registry := tasks.RegisterAllTasks(tasks.TaskDeps{Logger: a.Logger, Store: a.Store, Runner: a.Runner})
	require.NoError(t, registry[tasks.SchedulePass](ctx))

	summaries, err := a.Runner.Summarize(ctx)
	require.NoError(t, err)
	require.Len(t, summaries, 1)
	assert.Equal(t, 6, summaries[0].Stats.Scheduled)
}
