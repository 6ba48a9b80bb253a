package scheduler

import (
	"time"

	"github.com/zjrosen/conductor/internal/config"
)

// Config holds the scheduler's tunables, translated from milliseconds
// (the on-disk settings shape) into time.Duration for internal use.
type Config struct {
	MaxParallelPrompts          int
	TickInterval                time.Duration
	SpawnCooldown               time.Duration
	PlannerBaseCooldown         time.Duration
	PlannerMaxBackoffMultiplier int

	ReviewPollEveryTicks  int
	ReviewDetectionMarker string
}

// FromSettings builds a scheduler Config from resolved harness settings,
// converting the viper-bound config.Settings that cmd/root.go loads into
// the runtime parameters the scheduler actually uses.
func FromSettings(s config.Settings) Config {
	return Config{
		MaxParallelPrompts:          s.Spawn.MaxParallelPrompts,
		TickInterval:                time.Duration(s.EventLoop.TickIntervalMs) * time.Millisecond,
		SpawnCooldown:               time.Duration(s.EventLoop.SpawnCooldownMs) * time.Millisecond,
		PlannerBaseCooldown:         time.Duration(s.EventLoop.PlannerBaseCooldownMs) * time.Millisecond,
		PlannerMaxBackoffMultiplier: s.EventLoop.PlannerMaxBackoff,
		ReviewPollEveryTicks:        s.PRReview.PollEveryTicks,
		ReviewDetectionMarker:       s.PRReview.DetectionMarker,
	}
}
