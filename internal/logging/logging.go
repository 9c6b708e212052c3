// Package logging provides categorized file-based logging for cortex.
// Each subsystem logs to its own file under <dir>/logs/, backed by zap.
// Until Initialize is called (or when debug mode is off) every logger is a
// no-op, so library code can log unconditionally.
package logging

import (
	"fmt"
	"os"
	"path/filepath"
	"sync"

	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
)

// Category represents a log category/subsystem.
type Category string

const (
	CategoryBoot      Category = "boot"      // Startup and wiring
	CategoryGate      Category = "gate"      // Constitutional gate verdicts
	CategoryLint      Category = "lint"      // Linter findings
	CategoryConsensus Category = "consensus" // Deliberations and strategy selection
	CategoryTrust     Category = "trust"     // Trust scoring and decay
	CategoryMemory    Category = "memory"    // Artifact store operations
	CategoryIntegrate Category = "integrate" // Integrator orchestration
	CategoryAudit     Category = "audit"     // Audit ledger appends
	CategoryEvents    Category = "events"    // Event publication
	CategoryConfig    Category = "config"    // Config loading and reloads
)

var (
	mu          sync.RWMutex
	loggers     = make(map[Category]*zap.SugaredLogger)
	logsDir     string
	level       zapcore.Level = zapcore.InfoLevel
	initialized bool
)

// Initialize sets up the logging directory. Should be called once at startup;
// calling it again repoints new loggers but leaves existing ones untouched.
func Initialize(dir string, levelName string) error {
	if dir == "" {
		return fmt.Errorf("logging directory required")
	}

	mu.Lock()
	defer mu.Unlock()

	logsDir = filepath.Join(dir, "logs")
	if err := os.MkdirAll(logsDir, 0o755); err != nil {
		return fmt.Errorf("failed to create logs directory: %w", err)
	}

	switch levelName {
	case "debug":
		level = zapcore.DebugLevel
	case "info", "":
		level = zapcore.InfoLevel
	case "warn", "warning":
		level = zapcore.WarnLevel
	case "error":
		level = zapcore.ErrorLevel
	default:
		level = zapcore.InfoLevel
	}

	initialized = true
	loggers = make(map[Category]*zap.SugaredLogger)

	// Build the boot logger directly: Get would re-enter mu.
	boot := buildLogger(CategoryBoot)
	loggers[CategoryBoot] = boot
	boot.Infof("cortex logging initialized: dir=%s level=%s", logsDir, level)
	return nil
}

// Get returns the logger for a category, creating it on first use.
// Returns a no-op logger when logging has not been initialized.
func Get(cat Category) *zap.SugaredLogger {
	mu.RLock()
	if lg, ok := loggers[cat]; ok {
		mu.RUnlock()
		return lg
	}
	ready := initialized
	mu.RUnlock()

	if !ready {
		return zap.NewNop().Sugar()
	}

	mu.Lock()
	defer mu.Unlock()
	if lg, ok := loggers[cat]; ok {
		return lg
	}

	lg := buildLogger(cat)
	loggers[cat] = lg
	return lg
}

// buildLogger opens the per-category file sink. Caller holds mu.
func buildLogger(cat Category) *zap.SugaredLogger {
	path := filepath.Join(logsDir, string(cat)+".log")
	f, err := os.OpenFile(path, os.O_CREATE|os.O_WRONLY|os.O_APPEND, 0o644)
	if err != nil {
		fmt.Fprintf(os.Stderr, "[logging] cannot open %s: %v\n", path, err)
		return zap.NewNop().Sugar()
	}

	encCfg := zap.NewProductionEncoderConfig()
	encCfg.TimeKey = "ts"
	encCfg.EncodeTime = zapcore.ISO8601TimeEncoder
	core := zapcore.NewCore(
		zapcore.NewJSONEncoder(encCfg),
		zapcore.Lock(f),
		level,
	)
	return zap.New(core).Sugar().With("cat", string(cat))
}

// Convenience helpers in the dominant call shapes.

// Memory logs an info-level message in the memory category.
func Memory(format string, args ...any) { Get(CategoryMemory).Infof(format, args...) }

// MemoryDebug logs a debug-level message in the memory category.
func MemoryDebug(format string, args ...any) { Get(CategoryMemory).Debugf(format, args...) }

// Gate logs an info-level message in the gate category.
func Gate(format string, args ...any) { Get(CategoryGate).Infof(format, args...) }

// Lint logs a debug-level message in the lint category.
func Lint(format string, args ...any) { Get(CategoryLint).Debugf(format, args...) }

// Consensus logs an info-level message in the consensus category.
func Consensus(format string, args ...any) { Get(CategoryConsensus).Infof(format, args...) }

// Integrate logs an info-level message in the integrate category.
func Integrate(format string, args ...any) { Get(CategoryIntegrate).Infof(format, args...) }

// Sync flushes all open loggers. Called on shutdown.
func Sync() {
	mu.RLock()
	defer mu.RUnlock()
	for _, lg := range loggers {
		_ = lg.Sync()
	}
}
