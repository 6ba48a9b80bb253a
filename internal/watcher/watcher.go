// Package watcher provides debounced file system watching of the prompts
// directory and the settings file, delivering one notification per burst
// of changes on a channel. No other package in this module subscribes to
// it; the scheduler reloads the prompts directory on every tick.
package watcher

import (
	"fmt"
	"path/filepath"
	"strings"
	"time"

	"github.com/fsnotify/fsnotify"

	"github.com/zjrosen/conductor/internal/log"
)

// Watcher monitors a workspace's prompts directory and settings file for
// changes and sends a debounced notification when something relevant moves.
type Watcher struct {
	fsWatcher   *fsnotify.Watcher
	promptsDir  string
	settingsDir string
	debounce    time.Duration
	onChange    chan struct{}
	done        chan struct{}
}

// Config holds watcher configuration options.
type Config struct {
	// PromptsDir is the workspace's prompts directory (<workspace>/prompts).
	PromptsDir string
	// SettingsDir is the directory containing the settings file, watched
	// for reload triggers. Leave empty to disable settings watching.
	SettingsDir string
	DebounceDur time.Duration
}

// DefaultConfig returns sensible defaults for watching promptsDir.
func DefaultConfig(promptsDir string) Config {
	return Config{
		PromptsDir:  promptsDir,
		DebounceDur: 1 * time.Second,
	}
}

// New creates a new prompt/settings watcher.
func New(cfg Config) (*Watcher, error) {
	log.Debug(log.CatWatcher, "creating watcher", "promptsDir", cfg.PromptsDir, "debounce", cfg.DebounceDur)
	fsw, err := fsnotify.NewWatcher()
	if err != nil {
		log.ErrorErr(log.CatWatcher, "failed to create fsnotify watcher", err)
		return nil, fmt.Errorf("creating fsnotify watcher: %w", err)
	}

	return &Watcher{
		fsWatcher:   fsw,
		promptsDir:  cfg.PromptsDir,
		settingsDir: cfg.SettingsDir,
		debounce:    cfg.DebounceDur,
		onChange:    make(chan struct{}, 1),
		done:        make(chan struct{}),
	}, nil
}

// Start begins watching. Returns a channel that receives a signal whenever
// a relevant file changed, debounced to a single notification per burst.
func (w *Watcher) Start() (<-chan struct{}, error) {
	if err := w.fsWatcher.Add(w.promptsDir); err != nil {
		log.ErrorErr(log.CatWatcher, "failed to watch prompts directory", err, "dir", w.promptsDir)
		return nil, fmt.Errorf("watching prompts directory %s: %w", w.promptsDir, err)
	}

	if w.settingsDir != "" && w.settingsDir != w.promptsDir {
		if err := w.fsWatcher.Add(w.settingsDir); err != nil {
			log.ErrorErr(log.CatWatcher, "failed to watch settings directory", err, "dir", w.settingsDir)
			return nil, fmt.Errorf("watching settings directory %s: %w", w.settingsDir, err)
		}
	}

	log.Info(log.CatWatcher, "started watching", "promptsDir", w.promptsDir)
	go w.loop()

	return w.onChange, nil
}

// Stop terminates the watcher and releases resources.
func (w *Watcher) Stop() error {
	log.Debug(log.CatWatcher, "stopping watcher")
	close(w.done)
	return w.fsWatcher.Close()
}

func (w *Watcher) loop() {
	var (
		timer   *time.Timer
		pending bool
	)

	for {
		select {
		case event, ok := <-w.fsWatcher.Events:
			if !ok {
				return
			}

			if !w.isRelevantEvent(event) {
				continue
			}

			log.Debug(log.CatWatcher, "file event received", "file", event.Name, "op", event.Op.String())

			if timer == nil {
				timer = time.NewTimer(w.debounce)
			} else {
				if !timer.Stop() {
					select {
					case <-timer.C:
					default:
					}
				}
				timer.Reset(w.debounce)
			}
			pending = true

		case <-timerChan(timer):
			if pending {
				log.Debug(log.CatWatcher, "debounce complete, triggering refresh")
				select {
				case w.onChange <- struct{}{}:
				default:
				}
				pending = false
			}

		case err, ok := <-w.fsWatcher.Errors:
			if !ok {
				return
			}
			log.ErrorErr(log.CatWatcher, "file watcher error", err)

		case <-w.done:
			if timer != nil {
				timer.Stop()
			}
			return
		}
	}
}

// timerChan returns t.C, or a nil channel (which blocks forever in a
// select) when no timer is pending yet.
func timerChan(t *time.Timer) <-chan time.Time {
	if t != nil {
		return t.C
	}
	return nil
}

// isRelevantEvent reports whether event should trigger a refresh: writes,
// creates, removes or renames of prompt markdown files, or of the
// workspace settings file.
func (w *Watcher) isRelevantEvent(event fsnotify.Event) bool {
	if event.Op&(fsnotify.Write|fsnotify.Create|fsnotify.Remove|fsnotify.Rename) == 0 {
		return false
	}

	base := filepath.Base(event.Name)
	if strings.HasSuffix(base, ".md") {
		return true
	}
	return base == "settings.json" || base == "settings.yaml" || base == "settings.yml"
}
