// Package procmux is a concrete, host-process-backed implementation of
// registry.Multiplexer: it spawns and tracks one OS process per window
// name via exec.Command and Start-then-track. A real
// production multiplexer (a terminal multiplexer, a container runtime) is
// out of scope here; this package exists so `harness scheduler run` has
// something concrete to drive.
package procmux

import (
	"context"
	"fmt"
	"os"
	"os/exec"
	"strconv"
	"sync"
	"sync/atomic"

	"github.com/zjrosen/conductor/internal/log"
	"github.com/zjrosen/conductor/internal/registry"
)

// trackedProcess pairs a running command with an atomic liveness flag,
// set once by the goroutine that reaps it via Wait. Reading cmd.ProcessState
// directly from another goroutine would race with Wait's write to it.
type trackedProcess struct {
	cmd  *exec.Cmd
	done atomic.Bool
}

// CommandTemplate names the executable and arguments used to launch a
// window for a given agent type. Any argument that is exactly "{window}" is
// replaced with the window name at spawn time; "{window}" inside a longer
// argument is left as is.
type CommandTemplate struct {
	Path string
	Args []string
}

// Config configures a Multiplexer.
type Config struct {
	// WorkDir is the working directory every spawned process runs in
	// (the workspace root).
	WorkDir string
	// Commands maps agent type to the command template used to launch
	// its window.
	Commands map[registry.AgentType]CommandTemplate
}

// Multiplexer spawns one process per window and tracks it until it exits
// or is killed.
type Multiplexer struct {
	cfg Config

	mu        sync.Mutex
	processes map[string]*trackedProcess
}

// New constructs a Multiplexer. cfg.Commands must have an entry for every
// registry.AgentType the caller will spawn.
func New(cfg Config) *Multiplexer {
	return &Multiplexer{cfg: cfg, processes: make(map[string]*trackedProcess)}
}

// Spawn starts the process for name per its agent type's command template,
// substituting "{window}" arguments, with AGENT_ID/AGENT_TYPE set in its
// environment for the lifecycle hooks to read.
func (m *Multiplexer) Spawn(_ context.Context, name string, agentType registry.AgentType) error {
	tmpl, ok := m.cfg.Commands[agentType]
	if !ok {
		return fmt.Errorf("procmux: no command template for agent type %q", agentType)
	}

	m.mu.Lock()
	if existing, ok := m.processes[name]; ok && !existing.done.Load() {
		m.mu.Unlock()
		return fmt.Errorf("procmux: window %s already running", name)
	}
	m.mu.Unlock()

	args := make([]string, len(tmpl.Args))
	for i, a := range tmpl.Args {
		if a == "{window}" {
			a = name
		}
		args[i] = a
	}

	cmd := exec.Command(tmpl.Path, args...)
	cmd.Dir = m.cfg.WorkDir
	cmd.Env = append(os.Environ(), "AGENT_ID="+name, "AGENT_TYPE="+string(agentType))

	if n, ok := registry.ParsePromptNumber(name); ok {
		cmd.Env = append(cmd.Env, "PROMPT_NUMBER="+strconv.Itoa(n), "PROMPT_SCOPED=true")
	}

	if err := cmd.Start(); err != nil {
		return fmt.Errorf("procmux: starting window %s: %w", name, err)
	}

	tp := &trackedProcess{cmd: cmd}
	m.mu.Lock()
	m.processes[name] = tp
	m.mu.Unlock()

	go func() {
		err := cmd.Wait()
		tp.done.Store(true)
		if err != nil {
			log.Debug(log.CatRegistry, "procmux: window exited", "window", name, "error", err.Error())
		}
	}()

	return nil
}

// LiveWindows returns the names of every window whose process is still
// running.
func (m *Multiplexer) LiveWindows(_ context.Context) ([]string, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	var live []string
	for name, tp := range m.processes {
		if !tp.done.Load() {
			live = append(live, name)
		}
	}
	return live, nil
}

// Kill terminates name's process. Killing an already-dead or unknown
// window is not an error.
func (m *Multiplexer) Kill(_ context.Context, name string) error {
	m.mu.Lock()
	tp, ok := m.processes[name]
	m.mu.Unlock()
	if !ok || tp.done.Load() || tp.cmd.Process == nil {
		return nil
	}
	_ = tp.cmd.Process.Kill()
	return nil
}
