// Package logging provides categorized logging for voicecoach, backed by zap.
// Each subsystem logs under its own category so a single noisy component can
// be silenced without losing the rest. Before Initialize is called every
// logger is a no-op, which keeps unit tests quiet by default.
package logging

import (
	"fmt"
	"os"
	"sync"

	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
)

// Category represents a log category/subsystem.
type Category string

const (
	CategoryBoot     Category = "boot"     // Startup and wiring
	CategorySession  Category = "session"  // Session lifecycle and state transitions
	CategoryCache    Category = "cache"    // Context snapshot load/refresh
	CategoryQueue    Category = "queue"    // Persistence queue and worker
	CategoryRouter   Category = "router"   // Capability dispatch
	CategoryDelegate Category = "delegate" // Specialist delegation
	CategoryStore    Category = "store"    // SQLite storage
	CategoryAPI      Category = "api"      // Reasoning provider calls
)

// Config controls logger construction.
type Config struct {
	// Level is one of debug, info, warn, error. Defaults to info.
	Level string
	// JSONFormat emits structured JSON instead of console output.
	JSONFormat bool
	// Categories optionally disables specific categories. A category absent
	// from the map is enabled.
	Categories map[string]bool
	// Path, when set, appends to the given file instead of stderr.
	Path string
}

var (
	mu         sync.RWMutex
	base       *zap.Logger
	categories map[string]bool
	loggers    = make(map[Category]*Logger)
)

// Initialize builds the shared zap core. Safe to call once at startup;
// subsequent calls replace the core (used by tests to capture output).
func Initialize(cfg Config) error {
	level := zapcore.InfoLevel
	switch cfg.Level {
	case "", "info":
	case "debug":
		level = zapcore.DebugLevel
	case "warn", "warning":
		level = zapcore.WarnLevel
	case "error":
		level = zapcore.ErrorLevel
	default:
		return fmt.Errorf("unknown log level %q", cfg.Level)
	}

	encCfg := zap.NewProductionEncoderConfig()
	encCfg.TimeKey = "ts"
	encCfg.EncodeTime = zapcore.ISO8601TimeEncoder
	var enc zapcore.Encoder
	if cfg.JSONFormat {
		enc = zapcore.NewJSONEncoder(encCfg)
	} else {
		devCfg := zap.NewDevelopmentEncoderConfig()
		devCfg.EncodeLevel = zapcore.CapitalLevelEncoder
		enc = zapcore.NewConsoleEncoder(devCfg)
	}

	sink := zapcore.Lock(os.Stderr)
	if cfg.Path != "" {
		f, err := os.OpenFile(cfg.Path, os.O_CREATE|os.O_WRONLY|os.O_APPEND, 0644)
		if err != nil {
			return fmt.Errorf("open log file: %w", err)
		}
		sink = zapcore.Lock(f)
	}

	mu.Lock()
	defer mu.Unlock()
	base = zap.New(zapcore.NewCore(enc, sink, level))
	categories = cfg.Categories
	loggers = make(map[Category]*Logger)
	return nil
}

// SetBase replaces the underlying zap logger. Tests use this with zaptest or
// an observer core.
func SetBase(l *zap.Logger) {
	mu.Lock()
	defer mu.Unlock()
	base = l
	loggers = make(map[Category]*Logger)
}

// Logger wraps a category-scoped sugared zap logger.
type Logger struct {
	s *zap.SugaredLogger
}

// Get returns (or creates) the logger for the given category.
// Returns a no-op logger before Initialize or for disabled categories.
func Get(category Category) *Logger {
	mu.RLock()
	if l, ok := loggers[category]; ok {
		mu.RUnlock()
		return l
	}
	mu.RUnlock()

	mu.Lock()
	defer mu.Unlock()
	if l, ok := loggers[category]; ok {
		return l
	}

	core := base
	if core == nil || !enabledLocked(category) {
		core = zap.NewNop()
	}
	l := &Logger{s: core.Named(string(category)).Sugar()}
	loggers[category] = l
	return l
}

func enabledLocked(category Category) bool {
	if categories == nil {
		return true
	}
	enabled, ok := categories[string(category)]
	if !ok {
		return true
	}
	return enabled
}

// Debug logs a printf-style debug message.
func (l *Logger) Debug(format string, args ...any) { l.s.Debugf(format, args...) }

// Info logs a printf-style informational message.
func (l *Logger) Info(format string, args ...any) { l.s.Infof(format, args...) }

// Warn logs a printf-style warning.
func (l *Logger) Warn(format string, args ...any) { l.s.Warnf(format, args...) }

// Error logs a printf-style error.
func (l *Logger) Error(format string, args ...any) { l.s.Errorf(format, args...) }

// Convenience helpers, one pair per hot category.

func Session(format string, args ...any)       { Get(CategorySession).Info(format, args...) }
func SessionDebug(format string, args ...any)  { Get(CategorySession).Debug(format, args...) }
func Cache(format string, args ...any)         { Get(CategoryCache).Info(format, args...) }
func CacheDebug(format string, args ...any)    { Get(CategoryCache).Debug(format, args...) }
func Queue(format string, args ...any)         { Get(CategoryQueue).Info(format, args...) }
func QueueDebug(format string, args ...any)    { Get(CategoryQueue).Debug(format, args...) }
func Router(format string, args ...any)        { Get(CategoryRouter).Info(format, args...) }
func RouterDebug(format string, args ...any)   { Get(CategoryRouter).Debug(format, args...) }
func Delegate(format string, args ...any)      { Get(CategoryDelegate).Info(format, args...) }
func DelegateDebug(format string, args ...any) { Get(CategoryDelegate).Debug(format, args...) }
func Store(format string, args ...any)         { Get(CategoryStore).Info(format, args...) }
func StoreDebug(format string, args ...any)    { Get(CategoryStore).Debug(format, args...) }
func Boot(format string, args ...any)          { Get(CategoryBoot).Info(format, args...) }
