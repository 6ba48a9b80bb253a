package cmd

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"strings"
	"syscall"

	"github.com/spf13/cobra"

	"github.com/zjrosen/conductor/internal/procmux"
	"github.com/zjrosen/conductor/internal/registry"
	"github.com/zjrosen/conductor/internal/scheduler"
)

var parallelFlag bool

var schedulerCmd = &cobra.Command{
	Use:   "scheduler",
	Short: "Manage the event-loop scheduler",
}

var schedulerRunCmd = &cobra.Command{
	Use:   "run",
	Short: "Run the scheduler loop in the foreground until interrupted",
	RunE:  runScheduler,
}

func init() {
	rootCmd.AddCommand(schedulerCmd)
	schedulerCmd.AddCommand(schedulerRunCmd)

	schedulerRunCmd.Flags().BoolVar(&parallelFlag, "parallel", false,
		"allow more than one executor to run at once, up to spawn.maxParallelPrompts")
}

// defaultCommandTemplates builds the command used to launch each agent
// type's window. The real agent invocation is host-defined, so operators
// point HARNESS_EXECUTOR_CMD / HARNESS_PLANNER_CMD at the actual launch
// command; absent that, a long-sleeping placeholder keeps the window
// occupied without doing anything.
func defaultCommandTemplates() map[registry.AgentType]procmux.CommandTemplate {
	return map[registry.AgentType]procmux.CommandTemplate{
		registry.AgentExecutor: commandFromEnv("HARNESS_EXECUTOR_CMD"),
		registry.AgentPlanner:  commandFromEnv("HARNESS_PLANNER_CMD"),
	}
}

func commandFromEnv(key string) procmux.CommandTemplate {
	raw := os.Getenv(key)
	if raw == "" {
		return procmux.CommandTemplate{Path: "sleep", Args: []string{"infinity"}}
	}
	fields := strings.Fields(raw)
	if len(fields) == 0 {
		return procmux.CommandTemplate{Path: "sleep", Args: []string{"infinity"}}
	}
	return procmux.CommandTemplate{Path: fields[0], Args: fields[1:]}
}

func runScheduler(_ *cobra.Command, _ []string) error {
	mux := procmux.New(procmux.Config{WorkDir: workspace.Root(), Commands: defaultCommandTemplates()})
	reg := registry.New(mux)
	sched := scheduler.New(scheduler.FromSettings(settings), workspace, reg)

	sched.SetLoopEnabled(true)
	sched.SetParallelEnabled(parallelFlag)

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, syscall.SIGINT, syscall.SIGTERM)

	go func() {
		for ev := range sched.Events() {
			switch ev.Kind {
			case scheduler.EventLoopStatus:
				fmt.Println(ev.Message)
			case scheduler.EventSpawnExecutor:
				if ev.Prompt != nil {
					fmt.Printf("spawned executor for prompt #%d\n", ev.Prompt.Number)
				}
			case scheduler.EventSpawnPlanner:
				fmt.Println("spawned planner")
			case scheduler.EventReviewFeedback:
				fmt.Println("review feedback available")
			}
		}
	}()

	sched.Start(ctx)
	fmt.Fprintf(os.Stderr, "scheduler running against %s, press Ctrl+C to stop\n", workspace.Root())

	<-sigCh
	fmt.Fprintln(os.Stderr, "shutting down scheduler...")
	sched.Stop()
	return nil
}
