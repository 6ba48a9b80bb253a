package hooks

import (
	"context"
	"fmt"
	"time"
)

// daemonTimeout bounds every external code-intelligence daemon call a
// context hook makes. Exceeding it degrades to allow rather than stalling
// the tool call.
const daemonTimeout = 2 * time.Second

// CodeIntelDaemon is the optional external collaborator context hooks
// consult for structural information about a file, routing hints for
// searches, or summaries of long reads. Implementing a real daemon client
// is out of scope here; this interface is the seam one plugs into.
type CodeIntelDaemon interface {
	// FileStructure returns a short structural summary of path (symbols,
	// imports, outline).
	FileStructure(ctx context.Context, path string) (string, error)
	// RouteSearch returns a hint for where a search query is best run
	// (e.g. a narrower directory, an index name).
	RouteSearch(ctx context.Context, query string) (string, error)
	// SummarizeRead returns a condensed summary of path for reads the host
	// judges "long" (line count over some host-side threshold).
	SummarizeRead(ctx context.Context, path string) (string, error)
}

// RegisterContext binds the context category's hook names. Every handler
// degrades to allow if daemon is nil or the call errors/times out — a
// missing or unreachable code-intelligence daemon must never block an
// agent.
func RegisterContext(d *Dispatcher, daemon CodeIntelDaemon) {
	d.Register(CategoryContext, "file-structure", fileStructureHandler(daemon))
	d.Register(CategoryContext, "route-search", routeSearchHandler(daemon))
	d.Register(CategoryContext, "summarize-read", summarizeReadHandler(daemon))
}

func fileStructureHandler(daemon CodeIntelDaemon) Handler {
	return func(ctx context.Context, req Request) (Response, error) {
		if daemon == nil {
			return Allow, nil
		}
		path, _ := req.ToolInput["file_path"].(string)
		if path == "" {
			return Allow, nil
		}

		callCtx, cancel := context.WithTimeout(ctx, daemonTimeout)
		defer cancel()

		summary, err := daemon.FileStructure(callCtx, path)
		if err != nil || summary == "" {
			return Allow, nil
		}
		return InjectContext("PreToolUse", summary), nil
	}
}

func routeSearchHandler(daemon CodeIntelDaemon) Handler {
	return func(ctx context.Context, req Request) (Response, error) {
		if daemon == nil {
			return Allow, nil
		}
		query, _ := req.ToolInput["pattern"].(string)
		if query == "" {
			query, _ = req.ToolInput["query"].(string)
		}
		if query == "" {
			return Allow, nil
		}

		callCtx, cancel := context.WithTimeout(ctx, daemonTimeout)
		defer cancel()

		hint, err := daemon.RouteSearch(callCtx, query)
		if err != nil || hint == "" {
			return Allow, nil
		}
		return InjectContext("PreToolUse", fmt.Sprintf("search routing hint: %s", hint)), nil
	}
}

func summarizeReadHandler(daemon CodeIntelDaemon) Handler {
	return func(ctx context.Context, req Request) (Response, error) {
		if daemon == nil {
			return Allow, nil
		}
		path, _ := req.ToolInput["file_path"].(string)
		if path == "" {
			return Allow, nil
		}

		callCtx, cancel := context.WithTimeout(ctx, daemonTimeout)
		defer cancel()

		summary, err := daemon.SummarizeRead(callCtx, path)
		if err != nil || summary == "" {
			return Allow, nil
		}
		return InjectContext("PostToolUse", summary), nil
	}
}
