package logger

import (
	"context"
	"fmt"
	"io"
	"log/slog"
	"os"
	"strings"
	"sync"
	"time"

	"fyne.io/fyne/v2/data/binding"
)

// maxUILines keeps the bound log list manageable
const maxUILines = 100

// Options configures the slog handler behind AppLogger
type Options struct {
	Debug  bool
	Format string // "text" (default) or "json"
	Output io.Writer
}

// AppLogger handles application logging to slog and, optionally, to a UI list
type AppLogger struct {
	slog   *slog.Logger
	module string

	// shared between children created via With
	ui *uiSink
}

type uiSink struct {
	mu          sync.Mutex
	dataBinding binding.StringList
}

// New creates a logger writing to the configured slog handler
func New(opts Options) *AppLogger {
	out := opts.Output
	if out == nil {
		out = os.Stdout
	}
	level := slog.LevelInfo
	if opts.Debug {
		level = slog.LevelDebug
	}
	handlerOpts := &slog.HandlerOptions{Level: level}

	var h slog.Handler
	if strings.EqualFold(opts.Format, "json") {
		h = slog.NewJSONHandler(out, handlerOpts)
	} else {
		h = slog.NewTextHandler(out, handlerOpts)
	}
	return &AppLogger{slog: slog.New(h), ui: &uiSink{}}
}

// NewAppLogger creates a logger that also appends Info/Error lines to a UI list
func NewAppLogger(data binding.StringList, opts Options) *AppLogger {
	l := New(opts)
	l.ui.dataBinding = data
	return l
}

// Discard returns a logger that drops everything (tests)
func Discard() *AppLogger {
	return New(Options{Output: io.Discard})
}

// With returns a child logger tagged with a module name
func (l *AppLogger) With(module string) *AppLogger {
	return &AppLogger{
		slog:   l.slog.With("module", module),
		module: module,
		ui:     l.ui,
	}
}

// WithAttrs returns a child logger carrying extra structured attributes
func (l *AppLogger) WithAttrs(args ...any) *AppLogger {
	return &AppLogger{
		slog:   l.slog.With(args...),
		module: l.module,
		ui:     l.ui,
	}
}

// Slog exposes the underlying structured logger
func (l *AppLogger) Slog() *slog.Logger {
	return l.slog
}

// Info logs an informational message
func (l *AppLogger) Info(format string, args ...interface{}) {
	l.log(slog.LevelInfo, "INFO", format, args...)
}

// Warn logs a recoverable problem the operator may want to fix
func (l *AppLogger) Warn(format string, args ...interface{}) {
	l.log(slog.LevelWarn, "WARN", format, args...)
}

// Error logs an error message
func (l *AppLogger) Error(format string, args ...interface{}) {
	l.log(slog.LevelError, "ERROR", format, args...)
}

// Debug logs a debug message to slog only (to keep UI clean)
func (l *AppLogger) Debug(format string, args ...interface{}) {
	l.slog.Log(context.Background(), slog.LevelDebug, fmt.Sprintf(format, args...))
}

// log handles the formatting and appending
func (l *AppLogger) log(level slog.Level, tag, format string, args ...interface{}) {
	msg := fmt.Sprintf(format, args...)
	l.slog.Log(context.Background(), level, msg)

	if l.ui == nil || l.ui.dataBinding == nil {
		return
	}
	timestamp := time.Now().Format("15:04:05")
	formattedMsg := fmt.Sprintf("[%s] %s: %s", timestamp, tag, msg)
	if l.module != "" {
		formattedMsg = fmt.Sprintf("[%s] %s: [%s] %s", timestamp, tag, l.module, msg)
	}

	l.ui.mu.Lock()
	defer l.ui.mu.Unlock()
	l.ui.dataBinding.Append(formattedMsg)

	list, _ := l.ui.dataBinding.Get()
	if len(list) > maxUILines {
		l.ui.dataBinding.Set(list[len(list)-maxUILines:])
	}
}
