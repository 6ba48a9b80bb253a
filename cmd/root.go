// Package cmd wires the harness's cobra commands together: a
// persistent-flag-driven workspace root, cobra.OnInitialize loading
// settings through viper before any subcommand runs, and a package-level
// version string set by main via ldflags.
package cmd

import (
	"fmt"
	"os"

	"github.com/spf13/cobra"
	"github.com/spf13/viper"

	"github.com/zjrosen/conductor/internal/config"
	"github.com/zjrosen/conductor/internal/log"
	"github.com/zjrosen/conductor/internal/paths"
)

var (
	version       = "dev"
	workspaceFlag string
	debugFlag     bool

	workspace *paths.Workspace
	settings  config.Settings
)

var rootCmd = &cobra.Command{
	Use:     "harness",
	Short:   "A local control plane for agentic coding workers",
	Long:    `harness schedules AI coding agents against a workspace's prompt files and mediates every tool call they make through a hook pipeline.`,
	Version: version,
}

func init() {
	cobra.OnInitialize(initHarness)

	rootCmd.PersistentFlags().StringVarP(&workspaceFlag, "workspace", "w", ".", "workspace root directory")
	rootCmd.PersistentFlags().BoolVarP(&debugFlag, "debug", "d", false, "enable debug logging (also: HARNESS_DEBUG=1)")

	_ = viper.BindPFlag("workspace", rootCmd.PersistentFlags().Lookup("workspace"))
}

func initHarness() {
	ws, err := paths.Resolve(workspaceFlag)
	if err != nil {
		fmt.Fprintf(os.Stderr, "resolving workspace %q: %v\n", workspaceFlag, err)
		os.Exit(1)
	}
	workspace = ws

	settings = config.Defaults()
	if settingsFile, err := workspace.SettingsFile(); err == nil {
		_ = config.WriteDefault(settingsFile)
		if s, loadErr := config.Load(settingsFile); loadErr == nil {
			settings = s
		} else {
			fmt.Fprintf(os.Stderr, "loading settings: %v\n", loadErr)
		}
	}

	debug := os.Getenv("HARNESS_DEBUG") != "" || debugFlag
	logCfg := log.Config{Console: debug}
	if debug {
		logCfg.Level = "debug"
		if dir, err := workspace.HarnessDir(); err == nil {
			logCfg.Dir = dir
		}
	}
	if _, err := log.Init(logCfg); err != nil {
		fmt.Fprintf(os.Stderr, "initializing logging: %v\n", err)
	}
}

// Execute runs the root command.
func Execute() error {
	return rootCmd.Execute()
}

// SetVersion sets the version string, called from main with values baked
// in at build time via ldflags.
func SetVersion(v string) {
	version = v
	rootCmd.Version = v
}
