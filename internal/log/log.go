// Package log provides structured, categorized logging for the harness.
// It wraps github.com/ternarybob/arbor with category-tagged helpers and
// publishes every entry on a pubsub broker so an operator console can
// stream log events live.
package log

import (
	"context"
	"fmt"
	"os"
	"path/filepath"
	"sync"

	"github.com/ternarybob/arbor"
	arborcommon "github.com/ternarybob/arbor/common"
	"github.com/ternarybob/arbor/models"

	"github.com/zjrosen/conductor/internal/pubsub"
)

// Level represents log severity.
type Level int

const (
	LevelDebug Level = iota
	LevelInfo
	LevelWarn
	LevelError
)

func (l Level) String() string {
	switch l {
	case LevelDebug:
		return "debug"
	case LevelInfo:
		return "info"
	case LevelWarn:
		return "warn"
	case LevelError:
		return "error"
	default:
		return "unknown"
	}
}

// Category groups related log messages by subsystem.
type Category string

const (
	CatScheduler   Category = "scheduler"   // event loop decisions and reconciliation
	CatHooks       Category = "hooks"       // hook dispatcher and protocol I/O
	CatValidator   Category = "validator"   // schema validation
	CatPromptStore Category = "promptstore" // prompt file load/save/pick
	CatRegistry    Category = "registry"    // worker registry adapter
	CatConfig      Category = "config"      // settings loading
	CatWatcher     Category = "watcher"     // file system watch events
)

// Logger wraps an arbor logger with category-aware helpers.
type Logger struct {
	mu      sync.Mutex
	arbor   arbor.ILogger
	enabled bool
	broker  *pubsub.Broker[string]
}

var (
	defaultLogger *Logger
	once          sync.Once
)

// Config controls where and how the logger writes.
type Config struct {
	// Dir is the directory log files are written under (e.g. "<cache>/logs").
	Dir string
	// Level is the minimum level to emit ("debug", "info", "warn", "error").
	Level string
	// Console additionally echoes entries to stdout.
	Console bool
}

// Init initializes the global logger. Returns a cleanup function.
// Safe to call once per process; subsequent calls are no-ops.
func Init(cfg Config) (func(), error) {
	var initErr error
	once.Do(func() {
		defaultLogger, initErr = newLogger(cfg)
	})
	if initErr != nil {
		return nil, initErr
	}
	if defaultLogger == nil {
		return nil, fmt.Errorf("logger initialization failed or already attempted")
	}
	return func() { arborcommon.Stop() }, nil
}

func newLogger(cfg Config) (*Logger, error) {
	l := arbor.NewLogger()

	if cfg.Dir != "" {
		if err := os.MkdirAll(cfg.Dir, 0o755); err != nil {
			return nil, fmt.Errorf("creating log directory: %w", err)
		}
		logFile := filepath.Join(cfg.Dir, "harness.log")
		l = l.WithFileWriter(models.WriterConfiguration{
			Type:       models.LogWriterTypeFile,
			FileName:   logFile,
			TimeFormat: "2006-01-02T15:04:05",
			OutputType: models.OutputFormatJSON,
			MaxSize:    50 * 1024 * 1024,
			MaxBackups: 5,
		})
	}

	if cfg.Console || cfg.Dir == "" {
		l = l.WithConsoleWriter(models.WriterConfiguration{
			Type:       models.LogWriterTypeConsole,
			TimeFormat: "15:04:05.000",
			OutputType: models.OutputFormatLogfmt,
		})
	}

	l = l.WithMemoryWriter(models.WriterConfiguration{Type: models.LogWriterTypeMemory})

	level := cfg.Level
	if level == "" {
		level = "info"
	}
	l = l.WithLevelFromString(level)

	return &Logger{
		arbor:   l,
		enabled: true,
		broker:  pubsub.NewBroker[string](),
	}, nil
}

// SetEnabled toggles logging on/off for the global logger.
func SetEnabled(enabled bool) {
	if defaultLogger != nil {
		defaultLogger.mu.Lock()
		defaultLogger.enabled = enabled
		defaultLogger.mu.Unlock()
	}
}

// Debug logs at debug level.
func Debug(cat Category, msg string, fields ...any) { emit(LevelDebug, cat, msg, fields...) }

// Info logs at info level.
func Info(cat Category, msg string, fields ...any) { emit(LevelInfo, cat, msg, fields...) }

// Warn logs at warning level.
func Warn(cat Category, msg string, fields ...any) { emit(LevelWarn, cat, msg, fields...) }

// Error logs at error level.
func Error(cat Category, msg string, fields ...any) { emit(LevelError, cat, msg, fields...) }

// ErrorErr logs an error with the error value attached.
func ErrorErr(cat Category, msg string, err error, fields ...any) {
	if err != nil {
		fields = append(fields, "error", err.Error())
	} else {
		fields = append(fields, "error", "<nil>")
	}
	emit(LevelError, cat, msg, fields...)
}

func emit(level Level, cat Category, msg string, fields ...any) {
	if defaultLogger == nil || !defaultLogger.enabled || defaultLogger.arbor == nil {
		return
	}

	entry := formatEntry(cat, msg, fields...)

	defaultLogger.mu.Lock()
	switch level {
	case LevelDebug:
		defaultLogger.arbor.Debug().Str("category", string(cat)).Msg(entry)
	case LevelInfo:
		defaultLogger.arbor.Info().Str("category", string(cat)).Msg(entry)
	case LevelWarn:
		defaultLogger.arbor.Warn().Str("category", string(cat)).Msg(entry)
	case LevelError:
		defaultLogger.arbor.Error().Str("category", string(cat)).Msg(entry)
	}
	defaultLogger.mu.Unlock()

	if defaultLogger.broker != nil {
		defaultLogger.broker.Publish(pubsub.CreatedEvent, entry)
	}
}

// formatEntry renders "[cat] message key=value key2=value2".
func formatEntry(cat Category, msg string, fields ...any) string {
	entry := fmt.Sprintf("[%s] %s", cat, msg)
	for i := 0; i+1 < len(fields); i += 2 {
		entry += fmt.Sprintf(" %v=%v", fields[i], fields[i+1])
	}
	if len(fields)%2 != 0 {
		entry += fmt.Sprintf(" %v=<missing>", fields[len(fields)-1])
	}
	return entry
}

// LogEvent is a pubsub event containing a rendered log entry.
type LogEvent = pubsub.Event[string]

// Subscribe streams rendered log entries to a new channel, for an operator
// console. The channel is closed when ctx is cancelled.
func Subscribe(ctx context.Context) <-chan LogEvent {
	if defaultLogger == nil || defaultLogger.broker == nil {
		ch := make(chan LogEvent)
		close(ch)
		return ch
	}
	return defaultLogger.broker.Subscribe(ctx)
}
