// Package registry is the Worker Registry Adapter: a thin wrapper over the
// host process multiplexer (spawned windows, treated as an opaque
// capability) that adds exactly one thing the multiplexer doesn't know how
// to do itself — filtering its window list down to the windows this
// process actually spawned. An in-memory map guarded by a mutex, with
// state changes published as broker events.
package registry

import (
	"context"
	"fmt"
	"regexp"
	"sort"
	"strconv"
	"sync"

	"github.com/zjrosen/conductor/internal/log"
	"github.com/zjrosen/conductor/internal/pubsub"
)

// AgentType identifies the kind of worker a window is running.
type AgentType string

const (
	AgentExecutor AgentType = "executor"
	AgentPlanner  AgentType = "planner"
)

// Worker is a live process doing work on behalf of the harness, as seen
// through the spawned-by-us registry.
type Worker struct {
	WindowName   string
	AgentType    AgentType
	PromptNumber int  // 0 when AgentType != executor or unparseable
	HasPrompt    bool // true iff PromptNumber was parsed from the window name
}

// executorWindowPattern matches "executor-NN" window names, the suffix the
// scheduler encodes a prompt number into.
var executorWindowPattern = regexp.MustCompile(`^executor-(\d+)$`)

// ParsePromptNumber extracts the prompt number encoded in an executor
// window name, e.g. "executor-42" -> 42. The second return is false for
// any name that doesn't match the executor-NN convention.
func ParsePromptNumber(windowName string) (int, bool) {
	m := executorWindowPattern.FindStringSubmatch(windowName)
	if m == nil {
		return 0, false
	}
	n, err := strconv.Atoi(m[1])
	if err != nil {
		return 0, false
	}
	return n, true
}

// ErrWorkerNotFound names the condition of a window name this registry
// never spawned. No Registry method returns it: Unregister ignores unknown
// names, and Kill passes them on to the multiplexer.
var ErrWorkerNotFound = fmt.Errorf("registry: worker not found")

// Multiplexer is the opaque capability the registry wraps: whatever spawns
// and lists process windows (a terminal multiplexer, a process supervisor,
// a container runtime). Implementations live outside this package; this
// package only needs the ability to ask it to spawn a window and to list
// which windows are still alive.
type Multiplexer interface {
	// Spawn starts a new window named name running the given agent type,
	// returning an error if a window with that name already exists.
	Spawn(ctx context.Context, name string, agentType AgentType) error
	// LiveWindows returns the names of every window the multiplexer
	// currently knows about, spawned by us or not.
	LiveWindows(ctx context.Context) ([]string, error)
	// Kill terminates the named window. Killing a window that no longer
	// exists is not an error.
	Kill(ctx context.Context, name string) error
}

// Event is published whenever the spawned-by-us set changes.
type Event struct {
	Kind   EventKind
	Worker Worker
}

// EventKind distinguishes registry change events.
type EventKind string

const (
	EventSpawned      EventKind = "spawned"
	EventUnregistered EventKind = "unregistered"
)

// Registry maintains the scheduler-process-local "spawned-by-us" set and
// filters the Multiplexer's window list down to it. It is not the source
// of truth for liveness — that's the Multiplexer — only for provenance.
type Registry struct {
	mux Multiplexer

	mu      sync.RWMutex
	workers map[string]Worker

	broker *pubsub.Broker[Event]
}

// New creates a Registry wrapping mux. mux must not be nil.
func New(mux Multiplexer) *Registry {
	return &Registry{
		mux:     mux,
		workers: make(map[string]Worker),
		broker:  pubsub.NewBroker[Event](),
	}
}

// Broker returns the event broker for registry changes, for an operator
// console to subscribe to.
func (r *Registry) Broker() *pubsub.Broker[Event] { return r.broker }

// Spawn registers name in the spawned-by-us set and then asks the
// multiplexer to actually start the window. The registry entry is
// inserted before the multiplexer call so that a window which exits
// immediately is still observed as ours on the very next reconciliation.
func (r *Registry) Spawn(ctx context.Context, windowName string, agentType AgentType) (Worker, error) {
	w := Worker{WindowName: windowName, AgentType: agentType}
	if agentType == AgentExecutor {
		if n, ok := ParsePromptNumber(windowName); ok {
			w.PromptNumber = n
			w.HasPrompt = true
		}
	}

	r.mu.Lock()
	r.workers[windowName] = w
	r.mu.Unlock()

	if err := r.mux.Spawn(ctx, windowName, agentType); err != nil {
		r.mu.Lock()
		delete(r.workers, windowName)
		r.mu.Unlock()
		log.ErrorErr(log.CatRegistry, "spawn failed", err, "window", windowName, "agentType", string(agentType))
		return Worker{}, fmt.Errorf("spawning window %s: %w", windowName, err)
	}

	log.Info(log.CatRegistry, "spawned worker", "window", windowName, "agentType", string(agentType))
	r.broker.Publish(pubsub.CreatedEvent, Event{Kind: EventSpawned, Worker: w})
	return w, nil
}

// Unregister removes windowName from the spawned-by-us set without
// touching the multiplexer. Used during reconciliation once a window has
// been observed gone.
func (r *Registry) Unregister(windowName string) {
	r.mu.Lock()
	w, ok := r.workers[windowName]
	delete(r.workers, windowName)
	r.mu.Unlock()

	if !ok {
		return
	}
	log.Debug(log.CatRegistry, "unregistered worker", "window", windowName)
	r.broker.Publish(pubsub.DeletedEvent, Event{Kind: EventUnregistered, Worker: w})
}

// Kill unregisters windowName and asks the multiplexer to terminate it.
func (r *Registry) Kill(ctx context.Context, windowName string) error {
	r.Unregister(windowName)
	if err := r.mux.Kill(ctx, windowName); err != nil {
		return fmt.Errorf("killing window %s: %w", windowName, err)
	}
	return nil
}

// ListWorkers returns the intersection of multiplexer-live windows and the
// spawned-by-us set, ordered by window name for determinism. Windows the
// multiplexer knows about that we never spawned (ambient, operator-owned)
// are never returned.
func (r *Registry) ListWorkers(ctx context.Context) ([]Worker, error) {
	live, err := r.mux.LiveWindows(ctx)
	if err != nil {
		return nil, fmt.Errorf("listing multiplexer windows: %w", err)
	}
	liveSet := make(map[string]bool, len(live))
	for _, name := range live {
		liveSet[name] = true
	}

	r.mu.RLock()
	defer r.mu.RUnlock()

	var out []Worker
	for name, w := range r.workers {
		if liveSet[name] {
			out = append(out, w)
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].WindowName < out[j].WindowName })
	return out, nil
}

// Reconcile returns the spawned-by-us windows that are registered but no
// longer reported live by the multiplexer — i.e. workers that died since
// the last reconciliation. Callers (the scheduler) are responsible for
// calling Unregister on each.
func (r *Registry) Reconcile(ctx context.Context) ([]Worker, error) {
	live, err := r.mux.LiveWindows(ctx)
	if err != nil {
		return nil, fmt.Errorf("listing multiplexer windows: %w", err)
	}
	liveSet := make(map[string]bool, len(live))
	for _, name := range live {
		liveSet[name] = true
	}

	r.mu.RLock()
	var dead []Worker
	for name, w := range r.workers {
		if !liveSet[name] {
			dead = append(dead, w)
		}
	}
	r.mu.RUnlock()

	sort.Slice(dead, func(i, j int) bool { return dead[i].WindowName < dead[j].WindowName })
	return dead, nil
}

// Has reports whether windowName is currently in the spawned-by-us set,
// regardless of multiplexer liveness.
func (r *Registry) Has(windowName string) bool {
	r.mu.RLock()
	defer r.mu.RUnlock()
	_, ok := r.workers[windowName]
	return ok
}
