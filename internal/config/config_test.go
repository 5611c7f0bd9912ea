package config

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func writeFile(t *testing.T, path, content string) {
	t.Helper()
	require.NoError(t, os.MkdirAll(filepath.Dir(path), 0o755))
	require.NoError(t, os.WriteFile(path, []byte(content), 0o644))
}

func TestLoadDefaultsWhenFileMissing(t *testing.T) {
	cfg, err := Load(filepath.Join(t.TempDir(), "missing.yaml"))
	require.NoError(t, err)

	assert.Equal(t, DefaultLogLevel, cfg.Log.Level)
	assert.Equal(t, DefaultDatabasePath, cfg.Database.Path)
	assert.Equal(t, DefaultBotsDir, cfg.BotsDir)
	assert.True(t, cfg.Scheduler.Tasks["post_pass"].Enabled)
	assert.Equal(t, DefaultPostPassSchedule, cfg.Scheduler.Tasks["post_pass"].Schedule)
	assert.True(t, cfg.Scheduler.Tasks["schedule_pass"].Enabled)
	assert.Equal(t, DefaultSchedulePassSchedule, cfg.Scheduler.Tasks["schedule_pass"].Schedule)
	assert.False(t, cfg.Scheduler.Tasks["sql_maintenance"].Enabled)
	assert.False(t, cfg.Telegram.Enabled)
	assert.Equal(t, DefaultGeminiTimeout, cfg.Gemini.Timeout)
}

func TestLoadFromFile(t *testing.T) {
	path := filepath.Join(t.TempDir(), "config.yaml")
	writeFile(t, path, `
log:
  level: debug
  json: true
database:
  path: /tmp/bots.sqlite
bots_dir: /srv/bots
scheduler:
  tasks:
    post_pass:
      enabled: true
      schedule: "*/30 * * * * *"
gemini:
  timeout: 30s
`)

	cfg, err := Load(path)
	require.NoError(t, err)
	assert.Equal(t, "debug", cfg.Log.Level)
	assert.True(t, cfg.Log.JSON)
	assert.Equal(t, "/tmp/bots.sqlite", cfg.Database.Path)
	assert.Equal(t, "/srv/bots", cfg.BotsDir)
	assert.Equal(t, "*/30 * * * * *", cfg.Scheduler.Tasks["post_pass"].Schedule)
	assert.True(t, cfg.Scheduler.Tasks["republish"].Enabled, "defaults survive for untouched tasks")
	assert.Equal(t, 30*time.Second, cfg.Gemini.Timeout)
}

func TestLoadEnvironmentOverrides(t *testing.T) {
	t.Setenv("BOTFRIEND_DATABASE_PATH", "env.sqlite")
	t.Setenv("BOTFRIEND_LOG_LEVEL", "warn")

	cfg, err := Load(filepath.Join(t.TempDir(), "none.yaml"))
	require.NoError(t, err)
	assert.Equal(t, "env.sqlite", cfg.Database.Path)
	assert.Equal(t, "warn", cfg.Log.Level)
}

func TestLoadValidationErrors(t *testing.T) {
	testCases := []struct {
		name    string
		content string
	}{
		{
			name:    "bad log level",
			content: "log:\n  level: loud\n",
		},
		{
			name:    "telegram enabled without token",
			content: "telegram:\n  enabled: true\n  admin_user_id: 5\n",
		},
		{
			name:    "enabled task without schedule",
			content: "scheduler:\n  tasks:\n    republish:\n      enabled: true\n      schedule: \"\"\n",
		},
		{
			name:    "broken yaml",
			content: "log: [",
		},
	}

	for _, tc := range testCases {
		t.Run(tc.name, func(t *testing.T) {
			path := filepath.Join(t.TempDir(), "config.yaml")
			writeFile(t, path, tc.content)

			_, err := Load(path)
			require.Error(t, err)
			assert.ErrorIs(t, err, ErrConfiguration)
		})
	}
}

func TestOptionsAccessors(t *testing.T) {
	t.Parallel()

	opts := Options{
		"s":     "text",
		"n":     3,
		"f":     2.5,
		"b":     true,
		"d":     "90s",
		"m":     10,
		"list":  []any{"a", 1},
		"empty": nil,
	}

	assert.Equal(t, "text", opts.String("s", "x"))
	assert.Equal(t, "x", opts.String("missing", "x"))
	assert.Equal(t, "3", opts.String("n", ""))
	assert.Equal(t, 3, opts.Int("n", 0))
	assert.Equal(t, 7, opts.Int("s", 7))
	assert.Equal(t, 2.5, opts.Float("f", 0))
	assert.True(t, opts.Bool("b", false))
	assert.Equal(t, 90*time.Second, opts.Duration("d", 0))
	assert.Equal(t, 10*time.Minute, opts.Duration("m", 0))
	assert.Equal(t, []string{"a", "1"}, opts.Strings("list"))
	assert.Equal(t, []string{"text"}, opts.Strings("s"))
	assert.False(t, opts.Has("empty"))

	_, err := opts.Require("empty")
	assert.ErrorIs(t, err, ErrConfiguration)
}
