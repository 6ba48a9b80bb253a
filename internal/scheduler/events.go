package scheduler

import (
	"time"

	"github.com/zjrosen/conductor/internal/promptstore"
	"github.com/zjrosen/conductor/internal/registry"
)

// EventKind categorizes scheduler events.
type EventKind string

const (
	// EventSpawnExecutor fires when the scheduler spawned an executor for
	// a prompt this tick.
	EventSpawnExecutor EventKind = "spawn_executor"
	// EventSpawnPlanner fires when the scheduler spawned the singleton
	// planner this tick.
	EventSpawnPlanner EventKind = "spawn_planner"
	// EventLoopStatus carries a human-readable status line (backoff
	// messages, "no workspace" pauses, "planner already running", etc).
	EventLoopStatus EventKind = "loop_status"
	// EventPromptsChanged fires when the loaded prompt set's identity
	// hash changed since the previous tick.
	EventPromptsChanged EventKind = "prompts_changed"
	// EventWorkersChanged fires after reconciliation observed a change in
	// the live worker set.
	EventWorkersChanged EventKind = "workers_changed"
	// EventReviewFeedback fires when the PR-review sub-poll finds a new
	// comment.
	EventReviewFeedback EventKind = "review_feedback"
)

// Event is the envelope published on the scheduler's event channel. An
// explicit channel lets the consumer (the operator UI, out of scope here)
// drain events on its own schedule instead of running inside the tick.
type Event struct {
	Kind      EventKind
	Timestamp time.Time

	Prompt  *promptstore.Prompt // EventSpawnExecutor
	Message string              // EventLoopStatus

	Prompts []promptstore.Prompt // EventPromptsChanged
	Stats   promptstore.Stats    // EventPromptsChanged

	Workers []registry.Worker // EventWorkersChanged

	ReviewAvailable bool // EventReviewFeedback
}
