package procmux_test

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/zjrosen/conductor/internal/procmux"
	"github.com/zjrosen/conductor/internal/registry"
)

func testConfig() procmux.Config {
	return procmux.Config{
		WorkDir: ".",
		Commands: map[registry.AgentType]procmux.CommandTemplate{
			registry.AgentExecutor: {Path: "sleep", Args: []string{"5"}},
			registry.AgentPlanner:  {Path: "sleep", Args: []string{"5"}},
		},
	}
}

func TestSpawnAndListWindows(t *testing.T) {
	m := procmux.New(testConfig())

	require.NoError(t, m.Spawn(context.Background(), "executor-1", registry.AgentExecutor))

	live, err := m.LiveWindows(context.Background())
	require.NoError(t, err)
	assert.Contains(t, live, "executor-1")
}

func TestSpawnTwiceErrors(t *testing.T) {
	m := procmux.New(testConfig())
	require.NoError(t, m.Spawn(context.Background(), "executor-1", registry.AgentExecutor))
	err := m.Spawn(context.Background(), "executor-1", registry.AgentExecutor)
	assert.Error(t, err)
}

func TestKillRemovesFromLiveWindows(t *testing.T) {
	m := procmux.New(testConfig())
	require.NoError(t, m.Spawn(context.Background(), "executor-1", registry.AgentExecutor))
	require.NoError(t, m.Kill(context.Background(), "executor-1"))

	require.Eventually(t, func() bool {
		live, err := m.LiveWindows(context.Background())
		require.NoError(t, err)
		return len(live) == 0
	}, 2*time.Second, 10*time.Millisecond)
}

func TestSpawnUnknownAgentTypeErrors(t *testing.T) {
	m := procmux.New(procmux.Config{WorkDir: "."})
	err := m.Spawn(context.Background(), "executor-1", registry.AgentExecutor)
	assert.Error(t, err)
}
