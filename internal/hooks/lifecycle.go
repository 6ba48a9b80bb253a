package hooks

import (
	"context"
	"fmt"
	"os"
	"strconv"

	"github.com/zjrosen/conductor/internal/log"
	"github.com/zjrosen/conductor/internal/paths"
	"github.com/zjrosen/conductor/internal/promptstore"
)

// WindowKiller is the subset of the worker registry the lifecycle hooks
// need: the ability to terminate a worker's window by name. Registry
// implements this directly.
type WindowKiller interface {
	Kill(ctx context.Context, windowName string) error
}

// CompactionAnalyzer produces the progress note appended to a prompt's body
// ahead of a worker's context-window compaction. It is an external AI
// collaborator; implementing a real one is out of scope here, and a real
// implementation plugs in here. Whatever it returns is appended to the
// body only — it must never be allowed to change status.
type CompactionAnalyzer interface {
	Summarize(ctx context.Context, promptBody string) (note string, err error)
}

// lifecycleEnv is the environment variables lifecycle hooks consume.
type lifecycleEnv struct {
	AgentID      string
	AgentType    string
	PromptNumber int
	HasPrompt    bool
	PromptScoped bool
}

func readLifecycleEnv() lifecycleEnv {
	env := lifecycleEnv{
		AgentID:      os.Getenv("AGENT_ID"),
		AgentType:    os.Getenv("AGENT_TYPE"),
		PromptScoped: os.Getenv("PROMPT_SCOPED") == "true",
	}
	if n, err := strconv.Atoi(os.Getenv("PROMPT_NUMBER")); err == nil {
		env.PromptNumber = n
		env.HasPrompt = true
	}
	return env
}

// RegisterLifecycle binds agent-stop and agent-compact. workspace locates
// the prompts directory agent-compact writes progress notes into; killer
// terminates the worker's window.
func RegisterLifecycle(d *Dispatcher, workspace *paths.Workspace, killer WindowKiller, analyzer CompactionAnalyzer) {
	d.Register(CategoryLifecycle, "agent-stop", agentStopHandler(killer))
	d.Register(CategoryLifecycle, "agent-compact", agentCompactHandler(workspace, killer, analyzer))
}

// agentStopHandler emits a notification and, if the worker was
// prompt-scoped, kills its window.
func agentStopHandler(killer WindowKiller) Handler {
	return func(ctx context.Context, _ Request) (Response, error) {
		env := readLifecycleEnv()
		log.Info(log.CatHooks, "agent stopped", "agentID", env.AgentID, "agentType", env.AgentType, "promptNumber", env.PromptNumber)

		if env.PromptScoped && env.AgentID != "" {
			if err := killer.Kill(ctx, env.AgentID); err != nil {
				log.ErrorErr(log.CatHooks, "agent-stop: failed to kill prompt-scoped window", err, "agentID", env.AgentID)
			}
		}
		return Allow, nil
	}
}

// agentCompactHandler runs ahead of a worker's context-window compaction:
// if the worker is bound to a prompt, it may append a progress note to the
// prompt body (never touching status), then always kills the window
// regardless of whether a note was appended.
func agentCompactHandler(workspace *paths.Workspace, killer WindowKiller, analyzer CompactionAnalyzer) Handler {
	return func(ctx context.Context, req Request) (Response, error) {
		env := readLifecycleEnv()

		if env.PromptScoped && env.HasPrompt && analyzer != nil {
			if err := appendCompactionNote(ctx, workspace, env.PromptNumber, analyzer); err != nil {
				log.ErrorErr(log.CatHooks, "agent-compact: failed to append progress note", err, "promptNumber", env.PromptNumber)
			}
		}

		if env.AgentID != "" {
			if err := killer.Kill(ctx, env.AgentID); err != nil {
				log.ErrorErr(log.CatHooks, "agent-compact: failed to kill window", err, "agentID", env.AgentID)
			}
		}

		return Allow, nil
	}
}

func appendCompactionNote(ctx context.Context, workspace *paths.Workspace, promptNumber int, analyzer CompactionAnalyzer) error {
	prompt, err := promptstore.FindByNumber(workspace.PromptsDir(), promptNumber)
	if err != nil {
		return fmt.Errorf("locating prompt #%d: %w", promptNumber, err)
	}

	note, err := analyzer.Summarize(ctx, prompt.Body)
	if err != nil {
		return fmt.Errorf("summarizing prompt #%d: %w", promptNumber, err)
	}
	if note == "" {
		return nil
	}

	return promptstore.AppendProgressNote(prompt.Path, note)
}
