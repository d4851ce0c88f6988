package cmd

import (
	"context"
	"os"
	"path/filepath"
	"testing"
	"time"

	"scrollfeed/config"
	"scrollfeed/moderation"
	"scrollfeed/store"

	"github.com/samber/lo"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/urfave/cli/v2"
)

func TestRootAppCommands(t *testing.T) {
	names := lo.Map(RootApp().Commands, func(c *cli.Command, _ int) string { return c.Name })
	assert.ElementsMatch(t, []string{"serve", "migrate", "rollback", "tidy", "seed", "post", "subscribe", "watch"}, names)
}

func TestSeedItems(t *testing.T) {
	now := time.Date(2024, 6, 1, 12, 0, 0, 0, time.UTC)
	items := seedItems(10, now)

	require.Len(t, items, 10)
	assert.Equal(t, now.Add(-10*time.Minute), items[0].CreatedAt)
	assert.Equal(t, now.Add(-time.Minute), items[9].CreatedAt)
	for _, item := range items {
		assert.NoError(t, moderation.Check(item.Title+" "+item.Body), item.Title)
	}
}

func TestSeedAndTidyCommands(t *testing.T) {
	path := filepath.Join(t.TempDir(), "feed.db")

	require.NoError(t, RootApp().Run([]string{"scrollfeed", "seed", "--database", path, "--count", "25"}))

	s, err := store.Open(path)
	require.NoError(t, err)
	defer s.Close()

	count, err := s.Count(context.Background())
	require.NoError(t, err)
	assert.Equal(t, int64(25), count)

	// Seeded items are at most 25 minutes old
	require.NoError(t, RootApp().Run([]string{"scrollfeed", "tidy", "--database", path, "--older-than", "10m30s"}))

	count, err = s.Count(context.Background())
	require.NoError(t, err)
	assert.Equal(t, int64(10), count)
}

func TestInvalidLogLevel(t *testing.T) {
	err := RootApp().Run([]string{"scrollfeed", "--log-level", "loud", "migrate", "--database", filepath.Join(t.TempDir(), "feed.db")})
	assert.ErrorContains(t, err, "invalid log level")
}

func TestWatchConfigThreshold(t *testing.T) {
	path := filepath.Join(t.TempDir(), "scrollfeed.toml")
	require.NoError(t, os.WriteFile(path, []byte("[feed]\nthreshold = 300\n"), 0o644))

	tests := []struct {
		name      string
		args      []string
		threshold int
	}{
		{name: "lines by default", args: []string{}, threshold: 5},
		{name: "explicit flag", args: []string{"--threshold", "12"}, threshold: 12},
		{name: "zero falls back to the file", args: []string{"--threshold", "0"}, threshold: 300},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			var cfg *config.TomlConfig
			app := &cli.App{
				Flags: watchCmd().Flags,
				Action: func(ctx *cli.Context) error {
					var err error
					cfg, err = watchConfig(ctx)
					return err
				},
			}

			args := append([]string{"watch", "--config", path}, tt.args...)
			require.NoError(t, app.Run(args))
			assert.Equal(t, tt.threshold, cfg.Feed.Threshold)
		})
	}
}
