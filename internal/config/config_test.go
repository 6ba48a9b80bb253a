package config_test

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/zjrosen/conductor/internal/config"
)

func TestLoad_MissingFileReturnsDefaults(t *testing.T) {
	path := filepath.Join(t.TempDir(), "settings.json")

	s, err := config.Load(path)
	require.NoError(t, err)

	assert.Equal(t, config.Defaults(), s)
}

func TestLoad_MergesOverDefaults(t *testing.T) {
	path := filepath.Join(t.TempDir(), "settings.json")
	body := `{"spawn":{"maxParallelPrompts":7},"prReview":{"detectionMarker":"REVIEWED"}}`
	require.NoError(t, os.WriteFile(path, []byte(body), 0o644))

	s, err := config.Load(path)
	require.NoError(t, err)

	assert.Equal(t, 7, s.Spawn.MaxParallelPrompts)
	assert.Equal(t, "REVIEWED", s.PRReview.DetectionMarker)
	assert.Equal(t, 5000, s.EventLoop.TickIntervalMs, "unspecified keys keep their default")
}

func TestLoad_RejectsNegativeCooldown(t *testing.T) {
	path := filepath.Join(t.TempDir(), "settings.json")
	body := `{"eventLoop":{"spawnCooldownMs":-1}}`
	require.NoError(t, os.WriteFile(path, []byte(body), 0o644))

	_, err := config.Load(path)
	require.Error(t, err)
}

func TestWriteDefault_DoesNotOverwriteExisting(t *testing.T) {
	path := filepath.Join(t.TempDir(), "settings.json")
	custom := `{"spawn":{"maxParallelPrompts":9}}`
	require.NoError(t, os.WriteFile(path, []byte(custom), 0o644))

	require.NoError(t, config.WriteDefault(path))

	s, err := config.Load(path)
	require.NoError(t, err)
	assert.Equal(t, 9, s.Spawn.MaxParallelPrompts)
}

func TestWriteDefault_CreatesFile(t *testing.T) {
	path := filepath.Join(t.TempDir(), "settings.json")

	require.NoError(t, config.WriteDefault(path))

	s, err := config.Load(path)
	require.NoError(t, err)
	assert.Equal(t, config.Defaults(), s)
}
