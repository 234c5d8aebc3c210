// Package logger provides console logging for plan execution progress.
//
// Output is prefixed with [HH:MM:SS] timestamps, filtered by log level, and
// colorized when the writer is a terminal. The ConsoleLogger implements the
// engine's Logger interface and is safe for concurrent use.
package logger

import (
	"fmt"
	"io"
	"os"
	"strings"
	"sync"
	"time"

	"github.com/fatih/color"
	"github.com/mattn/go-isatty"

	"github.com/harrison/autopilot/internal/models"
)

// Log level constants for filtering
const (
	levelDebug int = 0
	levelInfo  int = 1
	levelWarn  int = 2
	levelError int = 3
)

// colorScheme defines consistent colors for execution events.
type colorScheme struct {
	success *color.Color
	fail    *color.Color
	warn    *color.Color
	label   *color.Color
}

func newColorScheme() *colorScheme {
	return &colorScheme{
		success: color.New(color.FgGreen),
		fail:    color.New(color.FgRed),
		warn:    color.New(color.FgYellow),
		label:   color.New(color.FgCyan),
	}
}

// ConsoleLogger logs execution progress to a writer with timestamps and
// thread safety. If the writer is nil, messages are silently discarded.
type ConsoleLogger struct {
	writer      io.Writer
	logLevel    string
	mutex       sync.Mutex
	colorOutput bool
	scheme      *colorScheme
}

// NewConsoleLogger creates a ConsoleLogger writing to w at the given level.
// Valid levels: debug, info, warn, error (case-insensitive); anything else
// defaults to info. Color output is enabled automatically when writing to a
// TTY and NO_COLOR is not set.
func NewConsoleLogger(w io.Writer, logLevel string) *ConsoleLogger {
	return &ConsoleLogger{
		writer:      w,
		logLevel:    normalizeLogLevel(logLevel),
		colorOutput: isTerminal(w),
		scheme:      newColorScheme(),
	}
}

// isTerminal checks if the writer is a terminal that supports colors.
func isTerminal(w io.Writer) bool {
	f, ok := w.(*os.File)
	if !ok {
		return false
	}
	if color.NoColor {
		return false
	}
	return isatty.IsTerminal(f.Fd()) || isatty.IsCygwinTerminal(f.Fd())
}

func normalizeLogLevel(level string) string {
	normalized := strings.ToLower(strings.TrimSpace(level))
	switch normalized {
	case "debug", "info", "warn", "error":
		return normalized
	}
	return "info"
}

func logLevelToInt(level string) int {
	switch level {
	case "debug":
		return levelDebug
	case "warn":
		return levelWarn
	case "error":
		return levelError
	default:
		return levelInfo
	}
}

func (cl *ConsoleLogger) shouldLog(messageLevel string) bool {
	return logLevelToInt(messageLevel) >= logLevelToInt(cl.logLevel)
}

func (cl *ConsoleLogger) logf(level, format string, args ...interface{}) {
	if cl.writer == nil || !cl.shouldLog(level) {
		return
	}

	cl.mutex.Lock()
	defer cl.mutex.Unlock()

	ts := time.Now().Format("15:04:05")
	fmt.Fprintf(cl.writer, "[%s] %s\n", ts, fmt.Sprintf(format, args...))
}

// LogTaskStart logs that a task began executing.
func (cl *ConsoleLogger) LogTaskStart(task models.Task) {
	cl.logf("info", "Starting task %s (day %d): %s", task.ID, task.DayIndex+1, task.Title)
}

// LogTaskComplete logs a completed task.
func (cl *ConsoleLogger) LogTaskComplete(task models.Task) {
	cl.logf("info", "%s task %s: %s", cl.paint(cl.scheme.success, "Completed"), task.ID, task.Title)
}

// LogTaskFail logs a failed task with its failure reason.
func (cl *ConsoleLogger) LogTaskFail(task models.Task, reason string) {
	cl.logf("error", "%s task %s: %s (%s)", cl.paint(cl.scheme.fail, "Failed"), task.ID, task.Title, reason)
}

// LogTaskBlocked logs a task denied by the guardrails.
func (cl *ConsoleLogger) LogTaskBlocked(task models.Task, reason string) {
	cl.logf("warn", "%s task %s: %s (%s)", cl.paint(cl.scheme.warn, "Blocked"), task.ID, task.Title, reason)
}

// LogDaySummary logs the end-of-day report.
func (cl *ConsoleLogger) LogDaySummary(report models.DailyReport) {
	cl.logf("info", "%s %s", cl.paint(cl.scheme.label, "Report:"), report.Summary)
	for _, note := range report.Adaptations {
		cl.logf("info", "  adaptation: %s", note)
	}
}

// paint applies a color when color output is enabled.
func (cl *ConsoleLogger) paint(c *color.Color, s string) string {
	if !cl.colorOutput {
		return s
	}
	return c.Sprint(s)
}
