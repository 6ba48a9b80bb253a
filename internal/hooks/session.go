package hooks

import (
	"context"
	"time"

	"github.com/zjrosen/conductor/internal/log"
)

// sessionWarmTimeout bounds each daemon-warming attempt at session start.
// Warming is best-effort: session hooks always succeed regardless of
// whether the daemon came up.
const sessionWarmTimeout = 2 * time.Second

// Warmer is an optional daemon that benefits from being started ahead of
// first use (a code-intelligence server, a formatter daemon). Warm may
// block until ready or until ctx is done; either way the session hook
// proceeds.
type Warmer interface {
	Warm(ctx context.Context) error
}

// RegisterSession binds the session category's "warm" hook name: it asks
// every warmer to start, logging failures, and always allows.
func RegisterSession(d *Dispatcher, warmers ...Warmer) {
	d.Register(CategorySession, "warm", func(ctx context.Context, _ Request) (Response, error) {
		callCtx, cancel := context.WithTimeout(ctx, sessionWarmTimeout)
		defer cancel()

		for _, w := range warmers {
			if w == nil {
				continue
			}
			if err := w.Warm(callCtx); err != nil {
				log.Warn(log.CatHooks, "session warm: daemon failed to warm, continuing", "error", err.Error())
			}
		}
		return Allow, nil
	})
}
