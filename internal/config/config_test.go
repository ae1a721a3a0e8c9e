package config

import (
	"log/slog"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func writeConfig(t *testing.T, content string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "chanrelay.yml")
	require.NoError(t, os.WriteFile(path, []byte(content), 0o600))
	return path
}

func TestLoad(t *testing.T) {
	path := writeConfig(t, `
token: "123:abc"
admin_ids: [100, 200]
log_level: debug
`)

	cfg, err := Load(path)
	require.NoError(t, err)
	assert.Equal(t, "123:abc", cfg.Token)
	assert.Equal(t, []int64{100, 200}, cfg.AdminIDs)
	assert.Equal(t, "debug", cfg.LogLevel)
	assert.Equal(t, ".", cfg.DataDir)
	assert.Equal(t, 30, cfg.PollTimeout)
}

func TestLoadRequiresToken(t *testing.T) {
	path := writeConfig(t, `
admin_ids: [100]
`)

	_, err := Load(path)
	assert.ErrorContains(t, err, "token")
}

func TestLoadRequiresAdmins(t *testing.T) {
	path := writeConfig(t, `
token: "123:abc"
`)

	_, err := Load(path)
	assert.ErrorContains(t, err, "admin")
}

func TestSlogLevel(t *testing.T) {
	tcs := []struct {
		level string
		want  slog.Level
	}{
		{"debug", slog.LevelDebug},
		{"info", slog.LevelInfo},
		{"warn", slog.LevelWarn},
		{"error", slog.LevelError},
		{"bogus", slog.LevelInfo},
	}
	for _, tc := range tcs {
		cfg := &Config{LogLevel: tc.level}
		assert.Equal(t, tc.want, cfg.SlogLevel(), tc.level)
	}
}
