package store

import (
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/nvoronov/chanrelay/internal/models"
)

func openTemp(t *testing.T) *Store {
	t.Helper()
	st, err := Open(filepath.Join(t.TempDir(), "settings.json"))
	require.NoError(t, err)
	return st
}

func TestOpenDefaults(t *testing.T) {
	st := openTemp(t)
	s := st.Snapshot()
	assert.Empty(t, s.Channels)
	assert.Empty(t, s.Subscribers)
	assert.Equal(t, models.ModeLink, s.Mode)
}

func TestUpdatePersistsAndReloads(t *testing.T) {
	path := filepath.Join(t.TempDir(), "settings.json")
	st, err := Open(path)
	require.NoError(t, err)

	require.NoError(t, st.Update(func(s *Settings) error {
		require.NoError(t, s.AddChannel("@News"))
		require.NoError(t, s.AddSubscriber("@Alice"))
		s.Template = "hi {channel_name}"
		s.Mode = models.ModeForward
		return nil
	}))

	reloaded, err := Open(path)
	require.NoError(t, err)
	s := reloaded.Snapshot()
	assert.Equal(t, []string{"@news"}, s.Channels)
	assert.Equal(t, []string{"@alice"}, s.Subscribers)
	assert.Equal(t, "hi {channel_name}", s.Template)
	assert.Equal(t, models.ModeForward, s.Mode)
}

func TestAddChannelAlreadyPresent(t *testing.T) {
	st := openTemp(t)
	require.NoError(t, st.Update(func(s *Settings) error { return s.AddChannel("@news") }))

	err := st.Update(func(s *Settings) error { return s.AddChannel("@NEWS") })
	assert.ErrorIs(t, err, ErrAlreadyPresent)
	assert.Equal(t, []string{"@news"}, st.Snapshot().Channels)
}

func TestRemoveChannelsNotFoundIsNoop(t *testing.T) {
	st := openTemp(t)
	require.NoError(t, st.Update(func(s *Settings) error { return s.AddChannel("@news") }))

	var removed []string
	require.NoError(t, st.Update(func(s *Settings) error {
		removed = s.RemoveChannels([]string{"@absent"})
		return nil
	}))
	assert.Empty(t, removed)
	assert.Equal(t, []string{"@news"}, st.Snapshot().Channels)
}

func TestRemoveChannelsBatch(t *testing.T) {
	st := openTemp(t)
	require.NoError(t, st.Update(func(s *Settings) error {
		for _, c := range []string{"@a", "@b", "@c"} {
			require.NoError(t, s.AddChannel(c))
		}
		return nil
	}))

	var removed []string
	require.NoError(t, st.Update(func(s *Settings) error {
		removed = s.RemoveChannels([]string{"@a", "@c", "@missing"})
		return nil
	}))
	assert.Equal(t, []string{"@a", "@c"}, removed)
	assert.Equal(t, []string{"@b"}, st.Snapshot().Channels)
}

func TestAddSubscriberRequiresSigil(t *testing.T) {
	st := openTemp(t)
	err := st.Update(func(s *Settings) error { return s.AddSubscriber("alice") })
	assert.ErrorIs(t, err, ErrMissingSigil)
	assert.Empty(t, st.Snapshot().Subscribers)
}

func TestFailedPersistLeavesMemoryUntouched(t *testing.T) {
	// point the store into a directory that does not exist so the write fails
	st, err := Open(filepath.Join(t.TempDir(), "missing", "settings.json"))
	require.NoError(t, err)

	err = st.Update(func(s *Settings) error { return s.AddChannel("@news") })
	require.Error(t, err)
	assert.Empty(t, st.Snapshot().Channels)
}

func TestSnapshotIsACopy(t *testing.T) {
	st := openTemp(t)
	require.NoError(t, st.Update(func(s *Settings) error { return s.AddChannel("@news") }))

	snap := st.Snapshot()
	snap.Channels[0] = "@mutated"
	assert.Equal(t, []string{"@news"}, st.Snapshot().Channels)
}
