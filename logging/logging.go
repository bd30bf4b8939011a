// Package logging provides the structured logger used by the simulator and
// its command line tools.
package logging

import (
	"io"
	"log/slog"
	"os"
)

// Logger wraps slog.Logger with simulator-specific helpers.
type Logger struct {
	*slog.Logger
}

// New creates a Logger with the given handler. A nil handler logs text to
// stderr at info level.
func New(handler slog.Handler) *Logger {
	if handler == nil {
		handler = slog.NewTextHandler(os.Stderr, &slog.HandlerOptions{
			Level: slog.LevelInfo,
		})
	}

	return &Logger{Logger: slog.New(handler)}
}

// NewTextLogger creates a Logger that writes human-readable text to stderr.
func NewTextLogger(level slog.Level) *Logger {
	return NewTextLoggerTo(os.Stderr, level)
}

// NewTextLoggerTo creates a text Logger writing to w.
func NewTextLoggerTo(w io.Writer, level slog.Level) *Logger {
	return New(slog.NewTextHandler(w, &slog.HandlerOptions{Level: level}))
}

// NewJSONLogger creates a Logger that writes JSON lines to stderr.
func NewJSONLogger(level slog.Level) *Logger {
	return New(slog.NewJSONHandler(os.Stderr, &slog.HandlerOptions{
		Level: level,
	}))
}

// Noop creates a Logger that discards everything.
func Noop() *Logger {
	return New(slog.NewTextHandler(io.Discard, &slog.HandlerOptions{
		Level: slog.Level(1000),
	}))
}

// ParseLevel converts a verbosity count into a level. 0 is warnings only,
// 1 is info and 2 or more is debug.
func ParseLevel(verbose int) slog.Level {
	switch {
	case verbose <= 0:
		return slog.LevelWarn
	case verbose == 1:
		return slog.LevelInfo
	default:
		return slog.LevelDebug
	}
}

// WithDevice adds a device field.
func (l *Logger) WithDevice(name string) *Logger {
	return &Logger{Logger: l.Logger.With("device", name)}
}

// LogThreadScheduled logs the placement of a thread on a core.
func (l *Logger) LogThreadScheduled(tid int64, core, count int, viaCPU bool) {
	if viaCPU {
		l.Info("thread re-homed by cpu marker",
			"tid", tid,
			"core", core,
			"count", count,
		)

		return
	}

	l.Info("new thread",
		"tid", tid,
		"core", core,
		"count", count,
	)
}

// LogCPUScheduled logs the first mapping of a CPU to a core.
func (l *Logger) LogCPUScheduled(cpu uint64, core, count int) {
	l.Info("new cpu",
		"cpu", cpu,
		"core", core,
		"count", count,
	)
}

// LogThreadExit logs a thread leaving its core.
func (l *Logger) LogThreadExit(tid int64, core, count int) {
	l.Info("thread exited",
		"tid", tid,
		"core", core,
		"count", count,
	)
}

// LogWarmedUp logs the end of warm-up.
func (l *Logger) LogWarmedUp(refs uint64) {
	l.Info("cache simulation warmed up", "refs", refs)
}

// LogRecording logs a change of the recording flag.
func (l *Logger) LogRecording(on bool, pc uint64) {
	if on {
		l.Info("recording started", "pc", pc)
	} else {
		l.Info("recording stopped", "pc", pc)
	}
}

// LogProgress logs the number of references processed so far.
func (l *Logger) LogProgress(refs uint64, warmedUp bool) {
	l.Info("progress",
		"refs", refs,
		"warmed_up", warmedUp,
	)
}

// LogResources logs the CPU and memory used by the process.
func (l *Logger) LogResources(cpuPercent float64, rssBytes uint64) {
	l.Info("resource usage",
		"cpu_percent", cpuPercent,
		"rss_mib", rssBytes>>20,
	)
}
