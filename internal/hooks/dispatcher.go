package hooks

import (
	"context"
	"encoding/json"
	"fmt"
	"io"

	"github.com/google/uuid"

	"github.com/zjrosen/conductor/internal/log"
)

// Handler implements one (category, name) hook. It receives the parsed
// request and returns the response to emit. Handlers may return an error;
// the dispatcher turns any error, and any panic, into Allow — nothing in
// the hook layer should deny by accident.
type Handler func(ctx context.Context, req Request) (Response, error)

// key identifies a registered handler.
type key struct {
	category Category
	name     string
}

// Dispatcher routes (category, name) to a registered Handler and enforces
// the allow-on-error contract around every invocation.
type Dispatcher struct {
	handlers map[key]Handler
}

// NewDispatcher constructs an empty Dispatcher. Call Register for every
// hook name before Run.
func NewDispatcher() *Dispatcher {
	return &Dispatcher{handlers: make(map[key]Handler)}
}

// Register binds a handler to (category, name). Registering the same key
// twice overwrites the previous binding.
func (d *Dispatcher) Register(category Category, name string, h Handler) {
	d.handlers[key{category, name}] = h
}

// Run reads one JSON Request from r, dispatches it to the (category, name)
// handler, and writes the resulting Response as one JSON object to w. It
// never returns an error the caller needs to act on: malformed input, an
// unregistered hook, a handler error, and a handler panic all produce
// Allow, logged through internal/log under log.CatHooks. These failures
// are not written to the observability trace store. The returned error is
// non-nil only if w itself failed, for a caller that wants to know stdout
// is broken.
func (d *Dispatcher) Run(ctx context.Context, category Category, name string, r io.Reader, w io.Writer) error {
	requestID := uuid.NewString()
	resp := d.dispatch(ctx, category, name, r, requestID)
	return writeResponse(w, resp)
}

func (d *Dispatcher) dispatch(ctx context.Context, category Category, name string, r io.Reader, requestID string) (resp Response) {
	defer func() {
		if rec := recover(); rec != nil {
			log.Error(log.CatHooks, "hook handler panicked, degrading to allow",
				"category", string(category), "name", name, "requestID", requestID, "panic", fmt.Sprintf("%v", rec))
			resp = Allow
		}
	}()

	var req Request
	if err := json.NewDecoder(r).Decode(&req); err != nil {
		log.Warn(log.CatHooks, "malformed hook input, allowing",
			"category", string(category), "name", name, "requestID", requestID, "error", err.Error())
		return Allow
	}

	h, ok := d.handlers[key{category, name}]
	if !ok {
		log.Warn(log.CatHooks, "no handler registered, allowing",
			"category", string(category), "name", name, "requestID", requestID)
		return Allow
	}

	out, err := h(ctx, req)
	if err != nil {
		log.ErrorErr(log.CatHooks, "hook handler returned error, allowing", err,
			"category", string(category), "name", name, "requestID", requestID, "toolName", req.ToolName)
		return Allow
	}

	log.Debug(log.CatHooks, "hook dispatched",
		"category", string(category), "name", name, "requestID", requestID, "toolName", req.ToolName, "decision", string(out.Decision))
	return out
}

func writeResponse(w io.Writer, resp Response) error {
	enc := json.NewEncoder(w)
	if err := enc.Encode(resp); err != nil {
		return fmt.Errorf("writing hook response: %w", err)
	}
	return nil
}
