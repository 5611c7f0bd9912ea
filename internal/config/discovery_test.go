package config

import (
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestDiscoverBots(t *testing.T) {
	dir := t.TempDir()
	writeFile(t, filepath.Join(dir, DefaultsFile), `
schedule: 60
publish:
  mastodon:
    api_base_url: https://botsin.space
  file:
    filename: shared.txt
`)
	writeFile(t, filepath.Join(dir, "jokes", BotFile), `
generator: number-jokes
publish:
  mastodon:
    access_token: secret
  echo:
`)
	writeFile(t, filepath.Join(dir, "dull", BotFile), `
name: a-dull-bot
generator: dull
schedule:
  - mean: 120
    stdev: 10
state_update_schedule: 5
`)
	writeFile(t, filepath.Join(dir, "notes", "README"), "not a bot")

	bots, err := DiscoverBots(dir, nil, nil)
	require.NoError(t, err)
	require.Len(t, bots, 2)

	// os.ReadDir sorts entries by name
	dull, jokes := bots[0], bots[1]

	assert.Equal(t, "a-dull-bot", dull.Name)
	assert.Equal(t, "dull", dull.Generator)
	assert.Equal(t, filepath.Join(dir, "dull"), dull.Directory)
	assert.IsType(t, []any{}, dull.Schedule)
	assert.Equal(t, 5, dull.StateUpdateSchedule)
	assert.Empty(t, dull.Publish, "defaults never add a publisher")

	assert.Equal(t, "jokes", jokes.Name, "name defaults to the directory name")
	assert.Equal(t, 60, jokes.Schedule, "top-level defaults apply")
	require.Contains(t, jokes.Publish, "mastodon")
	assert.Equal(t, "https://botsin.space", jokes.Publish["mastodon"].String("api_base_url", ""))
	assert.Equal(t, "secret", jokes.Publish["mastodon"].String("access_token", ""))
	require.Contains(t, jokes.Publish, "echo")
	assert.NotContains(t, jokes.Publish, "file")
}

func TestDiscoverBotsFilter(t *testing.T) {
	dir := t.TempDir()
	writeFile(t, filepath.Join(dir, "one", BotFile), "generator: dull\n")
	writeFile(t, filepath.Join(dir, "two", BotFile), "name: second\ngenerator: dull\n")

	bots, err := DiscoverBots(dir, []string{"second"}, nil)
	require.NoError(t, err)
	require.Len(t, bots, 1)
	assert.Equal(t, "second", bots[0].Name)

	bots, err = DiscoverBots(dir, []string{"two"}, nil)
	require.NoError(t, err)
	require.Len(t, bots, 1, "the directory name also selects a bot")

	_, err = DiscoverBots(dir, []string{"three"}, nil)
	assert.ErrorIs(t, err, ErrConfiguration)
}

func TestDiscoverBotsErrors(t *testing.T) {
	testCases := []struct {
		name  string
		files map[string]string
	}{
		{
			name: "duplicate names",
			files: map[string]string{
				"a/" + BotFile: "name: same\ngenerator: dull\n",
				"b/" + BotFile: "name: same\ngenerator: dull\n",
			},
		},
		{
			name:  "missing generator",
			files: map[string]string{"a/" + BotFile: "schedule: 5\n"},
		},
		{
			name:  "publish is not a mapping",
			files: map[string]string{"a/" + BotFile: "generator: dull\npublish: [echo]\n"},
		},
		{
			name:  "invalid yaml",
			files: map[string]string{"a/" + BotFile: "generator: [\n"},
		},
	}

	for _, tc := range testCases {
		t.Run(tc.name, func(t *testing.T) {
			dir := t.TempDir()
			for name, content := range tc.files {
				writeFile(t, filepath.Join(dir, name), content)
			}
			_, err := DiscoverBots(dir, nil, nil)
			assert.ErrorIs(t, err, ErrConfiguration)
		})
	}

	_, err := DiscoverBots(filepath.Join(t.TempDir(), "nope"), nil, nil)
	assert.ErrorIs(t, err, ErrConfiguration)
}
