package cmd

import (
	"context"
	"fmt"
	"os"

	"github.com/spf13/cobra"

	"github.com/zjrosen/conductor/internal/hooks"
	"github.com/zjrosen/conductor/internal/log"
)

var hooksCmd = &cobra.Command{
	Use:   "hooks <category> <name>",
	Short: "Dispatch a single hook invocation, reading its JSON request from stdin",
	Long: `hooks reads one JSON request object from stdin, runs the matching
handler, and writes one JSON response object to stdout. It always exits 0:
every failure inside the dispatcher degrades to an allow response rather
than a nonzero exit, per the hook pipeline's allow-on-error contract.`,
	Args: cobra.ExactArgs(2),
	RunE: runHooks,
}

func init() {
	rootCmd.AddCommand(hooksCmd)
}

// logOnlyKiller stands in for WindowKiller inside the hooks CLI. Each
// invocation of `harness hooks ...` is a fresh, short-lived process (the
// subprocess hook transport described alongside the daemon-transport
// alternative); it has no handle on the in-memory registry the running
// scheduler process holds, so it cannot actually terminate that process's
// windows. A daemon-transport deployment, where hooks call into the same
// long-lived process as the scheduler, would have a real WindowKiller to
// hand here instead.
type logOnlyKiller struct{}

func (logOnlyKiller) Kill(_ context.Context, windowName string) error {
	log.Warn(log.CatHooks, "lifecycle hook requested a window kill but the subprocess hook transport has no live registry handle", "window", windowName)
	return nil
}

func runHooks(_ *cobra.Command, args []string) error {
	category := hooks.Category(args[0])
	name := args[1]

	d := buildDispatcher()
	if err := d.Run(context.Background(), category, name, os.Stdin, os.Stdout); err != nil {
		fmt.Fprintln(os.Stderr, err)
	}
	return nil
}

func buildDispatcher() *hooks.Dispatcher {
	d := hooks.NewDispatcher()

	hooks.RegisterValidation(d, settings)
	hooks.RegisterEnforcement(d, hooks.DefaultDeniedFamilies)
	hooks.RegisterContext(d, nil) // no code-intelligence daemon wired by default

	tracePath, err := workspace.TraceFile()
	if err != nil {
		tracePath = "trace.jsonl"
	}
	hooks.RegisterObservability(d, hooks.NewTraceStore(tracePath), nil)

	hooks.RegisterLifecycle(d, workspace, logOnlyKiller{}, nil)
	hooks.RegisterSession(d)

	return d
}
