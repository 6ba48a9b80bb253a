package hooks_test

import (
	"context"
	"fmt"
	"os"
	"path/filepath"
	"sync"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/zjrosen/conductor/internal/hooks"
	"github.com/zjrosen/conductor/internal/paths"
)

type fakeKiller struct {
	mu     sync.Mutex
	killed []string
}

func (k *fakeKiller) Kill(_ context.Context, windowName string) error {
	k.mu.Lock()
	defer k.mu.Unlock()
	k.killed = append(k.killed, windowName)
	return nil
}

type fakeAnalyzer struct {
	note string
	err  error
}

func (a *fakeAnalyzer) Summarize(_ context.Context, _ string) (string, error) {
	return a.note, a.err
}

func newTestWorkspace(t *testing.T) (*paths.Workspace, string) {
	t.Helper()
	dir := t.TempDir()
	promptsDir := filepath.Join(dir, "prompts")
	require.NoError(t, os.MkdirAll(promptsDir, 0o755))
	ws, err := paths.Resolve(dir)
	require.NoError(t, err)
	return ws, promptsDir
}

func TestAgentStop_PromptScopedKillsWindow(t *testing.T) {
	t.Setenv("AGENT_ID", "executor-7")
	t.Setenv("PROMPT_SCOPED", "true")

	d := hooks.NewDispatcher()
	killer := &fakeKiller{}
	hooks.RegisterLifecycle(d, nil, killer, nil)

	resp := runHook(t, d, hooks.CategoryLifecycle, "agent-stop", hooks.Request{})
	assert.Equal(t, hooks.Allow, resp)
	assert.Equal(t, []string{"executor-7"}, killer.killed)
}

func TestAgentStop_NotPromptScopedDoesNotKill(t *testing.T) {
	t.Setenv("AGENT_ID", "planner")
	t.Setenv("PROMPT_SCOPED", "false")

	d := hooks.NewDispatcher()
	killer := &fakeKiller{}
	hooks.RegisterLifecycle(d, nil, killer, nil)

	resp := runHook(t, d, hooks.CategoryLifecycle, "agent-stop", hooks.Request{})
	assert.Equal(t, hooks.Allow, resp)
	assert.Empty(t, killer.killed)
}

func TestAgentCompact_AppendsNoteWithoutTouchingStatus(t *testing.T) {
	ws, promptsDir := newTestWorkspace(t)
	path := filepath.Join(promptsDir, "7-x.md")
	require.NoError(t, os.WriteFile(path, []byte("---\nnumber: 7\ntitle: T\nstatus: in_progress\n---\nOriginal body.\n"), 0o644))

	t.Setenv("AGENT_ID", "executor-7")
	t.Setenv("AGENT_TYPE", "executor")
	t.Setenv("PROMPT_NUMBER", "7")
	t.Setenv("PROMPT_SCOPED", "true")

	d := hooks.NewDispatcher()
	killer := &fakeKiller{}
	analyzer := &fakeAnalyzer{note: "made progress on X"}
	hooks.RegisterLifecycle(d, ws, killer, analyzer)

	resp := runHook(t, d, hooks.CategoryLifecycle, "agent-compact", hooks.Request{})
	assert.Equal(t, hooks.Allow, resp)
	assert.Equal(t, []string{"executor-7"}, killer.killed)

	out, err := os.ReadFile(path)
	require.NoError(t, err)
	content := string(out)
	assert.Contains(t, content, "status: in_progress", "compaction must never change status")
	assert.Contains(t, content, "made progress on X")
}

func TestAgentCompact_AlwaysKillsEvenWithoutPromptScope(t *testing.T) {
	t.Setenv("AGENT_ID", "planner")
	t.Setenv("PROMPT_SCOPED", "false")

	d := hooks.NewDispatcher()
	killer := &fakeKiller{}
	hooks.RegisterLifecycle(d, nil, killer, nil)

	resp := runHook(t, d, hooks.CategoryLifecycle, "agent-compact", hooks.Request{})
	assert.Equal(t, hooks.Allow, resp)
	assert.Equal(t, []string{"planner"}, killer.killed)
}

func TestAgentCompact_AnalyzerErrorStillKillsAndAllows(t *testing.T) {
	ws, promptsDir := newTestWorkspace(t)
	path := filepath.Join(promptsDir, "3-x.md")
	require.NoError(t, os.WriteFile(path, []byte("---\nnumber: 3\ntitle: T\nstatus: in_progress\n---\nBody.\n"), 0o644))

	t.Setenv("AGENT_ID", "executor-3")
	t.Setenv("PROMPT_NUMBER", "3")
	t.Setenv("PROMPT_SCOPED", "true")

	d := hooks.NewDispatcher()
	killer := &fakeKiller{}
	analyzer := &fakeAnalyzer{err: fmt.Errorf("daemon unavailable")}
	hooks.RegisterLifecycle(d, ws, killer, analyzer)

	resp := runHook(t, d, hooks.CategoryLifecycle, "agent-compact", hooks.Request{})
	assert.Equal(t, hooks.Allow, resp)
	assert.Equal(t, []string{"executor-3"}, killer.killed)
}
