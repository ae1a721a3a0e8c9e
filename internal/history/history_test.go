package history

import (
	"context"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/nvoronov/chanrelay/internal/models"
)

func openTemp(t *testing.T) *Log {
	t.Helper()
	l, err := Open(filepath.Join(t.TempDir(), "history.db"))
	require.NoError(t, err)
	t.Cleanup(func() { l.Close() })
	return l
}

func TestAppendAndRecent(t *testing.T) {
	l := openTemp(t)
	ctx := context.Background()

	require.NoError(t, l.Append(ctx, models.HistoryEntry{
		Action:   models.ActionAdd,
		Category: models.CategoryChannels,
		Items:    []string{"@news", "@tech"},
	}))
	require.NoError(t, l.Append(ctx, models.HistoryEntry{
		Action:   models.ActionUpdate,
		Category: models.CategoryTemplate,
		Before:   "",
		After:    "hi {channel_name}",
	}))

	entries, err := l.Recent(ctx, 10)
	require.NoError(t, err)
	require.Len(t, entries, 2)

	// newest first
	assert.Equal(t, models.ActionUpdate, entries[0].Action)
	assert.Equal(t, "hi {channel_name}", entries[0].After)
	assert.Equal(t, models.ActionAdd, entries[1].Action)
	assert.Equal(t, []string{"@news", "@tech"}, entries[1].Items)
	assert.False(t, entries[0].CreatedAt.IsZero())
}

func TestRecentHonorsLimit(t *testing.T) {
	l := openTemp(t)
	ctx := context.Background()

	for i := 0; i < 5; i++ {
		require.NoError(t, l.Append(ctx, models.HistoryEntry{
			Action:   models.ActionAdd,
			Category: models.CategorySubscribers,
			Items:    []string{"@someone"},
		}))
	}

	entries, err := l.Recent(ctx, 3)
	require.NoError(t, err)
	assert.Len(t, entries, 3)
}

func TestRecentOnEmptyLog(t *testing.T) {
	l := openTemp(t)

	entries, err := l.Recent(context.Background(), 10)
	require.NoError(t, err)
	assert.Empty(t, entries)
}

func TestLogSurvivesReopen(t *testing.T) {
	path := filepath.Join(t.TempDir(), "history.db")
	ctx := context.Background()

	l, err := Open(path)
	require.NoError(t, err)
	require.NoError(t, l.Append(ctx, models.HistoryEntry{
		Action:   models.ActionRemoveAll,
		Category: models.CategoryChannels,
		Items:    []string{"@old"},
	}))
	require.NoError(t, l.Close())

	reopened, err := Open(path)
	require.NoError(t, err)
	defer reopened.Close()

	entries, err := reopened.Recent(ctx, 10)
	require.NoError(t, err)
	require.Len(t, entries, 1)
	assert.Equal(t, []string{"@old"}, entries[0].Items)
}
