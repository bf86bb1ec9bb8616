package main

import (
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strings"
	"sync/atomic"
	"time"

	charmLog "github.com/charmbracelet/log"
	"github.com/evanschultz/atlascope/internal/config"
)

// loggerOptions carries what the runtime logger needs from flags and config.
// storeDir anchors a relative dev log dir so logs sit next to the scope database.
type loggerOptions struct {
	appName  string
	devMode  bool
	logging  config.LoggingConfig
	storeDir string
	now      func() time.Time
}

// runtimeLogger writes runtime events to stderr and, in dev mode, to a daily logfmt file.
type runtimeLogger struct {
	console *charmLog.Logger
	file    *charmLog.Logger
	muted   atomic.Bool

	closeFile func() error
	devLog    string
}

// newRuntimeLogger builds the console sink and, when enabled, opens the dev log file.
func newRuntimeLogger(stderr io.Writer, opts loggerOptions) (*runtimeLogger, error) {
	level, err := charmLog.ParseLevel(opts.logging.Level)
	if err != nil {
		return nil, fmt.Errorf("parse logging level %q: %w", opts.logging.Level, err)
	}
	if stderr == nil {
		stderr = io.Discard
	}
	if opts.now == nil {
		opts.now = time.Now
	}

	l := &runtimeLogger{
		console: charmLog.NewWithOptions(stderr, charmLog.Options{
			Level:           level,
			Prefix:          opts.appName,
			ReportTimestamp: true,
			TimeFormat:      time.RFC3339,
			Formatter:       charmLog.TextFormatter,
		}),
	}
	if !opts.devMode || !opts.logging.DevFile.Enabled {
		return l, nil
	}

	path := devLogFilePath(opts.logging.DevFile.Dir, opts.storeDir, opts.appName, opts.now().UTC())
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return nil, fmt.Errorf("create dev log dir: %w", err)
	}
	f, err := os.OpenFile(path, os.O_CREATE|os.O_APPEND|os.O_WRONLY, 0o644)
	if err != nil {
		return nil, fmt.Errorf("open dev log file: %w", err)
	}
	l.file = charmLog.NewWithOptions(f, charmLog.Options{
		Level:           level,
		Prefix:          opts.appName,
		ReportTimestamp: true,
		TimeFormat:      time.RFC3339,
		Formatter:       charmLog.LogfmtFormatter,
	})
	l.closeFile = f.Close
	l.devLog = path
	return l, nil
}

// DevLogPath returns the dev log file path, or "" when file logging is off.
func (l *runtimeLogger) DevLogPath() string {
	if l == nil {
		return ""
	}
	return l.devLog
}

// Close closes the dev log file.
func (l *runtimeLogger) Close() error {
	if l == nil || l.closeFile == nil {
		return nil
	}
	return l.closeFile()
}

// SetConsoleEnabled mutes or unmutes stderr output. The dev file keeps receiving events.
func (l *runtimeLogger) SetConsoleEnabled(enabled bool) {
	if l != nil {
		l.muted.Store(!enabled)
	}
}

// Component returns a prefixed logger for adapters that take a *log.Logger.
// It writes to the dev file when present, else to the console unless muted.
func (l *runtimeLogger) Component(name string) *charmLog.Logger {
	switch {
	case l == nil:
		return charmLog.New(io.Discard)
	case l.file != nil:
		return l.file.WithPrefix(name)
	case !l.muted.Load():
		return l.console.WithPrefix(name)
	}
	return charmLog.New(io.Discard)
}

func (l *runtimeLogger) log(level charmLog.Level, msg string, keyvals ...any) {
	if l == nil {
		return
	}
	if !l.muted.Load() {
		l.console.Log(level, msg, keyvals...)
	}
	if l.file != nil {
		l.file.Log(level, msg, keyvals...)
	}
}

func (l *runtimeLogger) Debug(msg string, keyvals ...any) {
	l.log(charmLog.DebugLevel, msg, keyvals...)
}

func (l *runtimeLogger) Info(msg string, keyvals ...any) {
	l.log(charmLog.InfoLevel, msg, keyvals...)
}

func (l *runtimeLogger) Warn(msg string, keyvals ...any) {
	l.log(charmLog.WarnLevel, msg, keyvals...)
}

func (l *runtimeLogger) Error(msg string, keyvals ...any) {
	l.log(charmLog.ErrorLevel, msg, keyvals...)
}

// devLogFilePath names the log for one run day. A relative dir resolves under storeDir.
func devLogFilePath(dir, storeDir, appName string, day time.Time) string {
	dir = strings.TrimSpace(dir)
	if dir == "" {
		dir = ".atlascope/log"
	}
	if !filepath.IsAbs(dir) {
		dir = filepath.Join(storeDir, dir)
	}
	name := fmt.Sprintf("%s-%s.log", sanitizeLogFileStem(appName), day.Format("20060102"))
	return filepath.Join(filepath.Clean(dir), name)
}

// sanitizeLogFileStem turns an app name into a safe file-name segment.
func sanitizeLogFileStem(appName string) string {
	replacer := strings.NewReplacer("/", "-", "\\", "-", ":", "-", " ", "-")
	stem := strings.Trim(replacer.Replace(strings.TrimSpace(appName)), "-")
	if stem == "" {
		return "atlascope"
	}
	return stem
}
