package hooks_test

import (
	"encoding/json"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/zjrosen/conductor/internal/hooks"
)

func TestObservability_AppendsOneLinePerEventAndAllows(t *testing.T) {
	tracePath := filepath.Join(t.TempDir(), "trace.jsonl")
	store := hooks.NewTraceStore(tracePath)

	fixedNow := time.Date(2026, 1, 2, 3, 4, 5, 0, time.UTC)
	d := hooks.NewDispatcher()
	hooks.RegisterObservability(d, store, func() time.Time { return fixedNow })

	resp := runHook(t, d, hooks.CategoryObservability, "trace", hooks.Request{
		SessionID: "sess-1",
		ToolName:  "Write",
		ToolInput: map[string]any{"file_path": "x.md"},
	})
	assert.Equal(t, hooks.Allow, resp)

	resp2 := runHook(t, d, hooks.CategoryObservability, "trace", hooks.Request{SessionID: "sess-1", ToolName: "Read"})
	assert.Equal(t, hooks.Allow, resp2)

	data, err := os.ReadFile(tracePath)
	require.NoError(t, err)

	lines := splitLines(string(data))
	require.Len(t, lines, 2)

	var ev hooks.TraceEvent
	require.NoError(t, json.Unmarshal([]byte(lines[0]), &ev))
	assert.Equal(t, "sess-1", ev.SessionID)
	assert.Equal(t, "Write", ev.ToolName)
	assert.True(t, fixedNow.Equal(ev.Timestamp))
	assert.NotEmpty(t, ev.ID)
}

func splitLines(s string) []string {
	var out []string
	start := 0
	for i, r := range s {
		if r == '\n' {
			if i > start {
				out = append(out, s[start:i])
			}
			start = i + 1
		}
	}
	return out
}
