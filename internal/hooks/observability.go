package hooks

import (
	"context"
	"encoding/json"
	"os"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/zjrosen/conductor/internal/log"
)

// TraceEvent is one line appended to the observability trace store: a
// structured, non-decisional record of a tool call the host asked the
// harness to observe.
type TraceEvent struct {
	ID        string    `json:"id"`
	Timestamp time.Time `json:"timestamp"`
	SessionID string    `json:"session_id"`
	ToolName  string    `json:"tool_name"`
	ToolInput any       `json:"tool_input,omitempty"`
}

// TraceStore appends TraceEvent records to a JSON-lines file. One store per
// process; writes are serialized with a mutex around a single shared
// append target.
type TraceStore struct {
	mu   sync.Mutex
	path string
}

// NewTraceStore returns a store that appends to the trace file at path.
// The file is not touched here; each Append opens it (creating it if
// absent) and closes it again.
func NewTraceStore(path string) *TraceStore {
	return &TraceStore{path: path}
}

// Append writes one JSON line for ev. Failures are logged, never returned
// as fatal — observability must never block the agent.
func (t *TraceStore) Append(ev TraceEvent) {
	t.mu.Lock()
	defer t.mu.Unlock()

	f, err := os.OpenFile(t.path, os.O_APPEND|os.O_CREATE|os.O_WRONLY, 0o644)
	if err != nil {
		log.ErrorErr(log.CatHooks, "trace store: failed to open trace file", err, "path", t.path)
		return
	}
	defer f.Close()

	line, err := json.Marshal(ev)
	if err != nil {
		log.ErrorErr(log.CatHooks, "trace store: failed to marshal event", err)
		return
	}

	if _, err := f.Write(append(line, '\n')); err != nil {
		log.ErrorErr(log.CatHooks, "trace store: failed to append event", err, "path", t.path)
	}
}

// RegisterObservability binds the observability category's "trace" hook
// name: it appends every call it sees to store and always allows.
func RegisterObservability(d *Dispatcher, store *TraceStore, now func() time.Time) {
	if now == nil {
		now = time.Now
	}
	d.Register(CategoryObservability, "trace", func(_ context.Context, req Request) (Response, error) {
		store.Append(TraceEvent{
			ID:        uuid.NewString(),
			Timestamp: now(),
			SessionID: req.SessionID,
			ToolName:  req.ToolName,
			ToolInput: req.ToolInput,
		})
		return Allow, nil
	})
}
