// Package logging provides the leveled logger shared by the genekin commands.
package logging

import (
	"fmt"
	"io"
	"log"
	"os"
	"strings"
)

// Level orders log lines by severity.
type Level int

const (
	LevelDebug Level = iota
	LevelInfo
	LevelWarn
	LevelError
	LevelFatal
)

var levelNames = [...]string{"debug", "info", "warn", "error", "fatal"}

func (l Level) String() string {
	if l < 0 || int(l) >= len(levelNames) {
		return "unknown"
	}
	return levelNames[l]
}

// ParseLevel is case-insensitive and falls back to info.
func ParseLevel(level string) Level {
	level = strings.ToLower(strings.TrimSpace(level))
	if level == "warning" {
		return LevelWarn
	}
	for i, name := range levelNames[:LevelFatal] {
		if name == level {
			return Level(i)
		}
	}
	return LevelInfo
}

// Logger writes leveled lines such as "[WARN] run rejected: ...". It
// satisfies kinetics.Logger, so runs and notifiers log through it directly.
type Logger struct {
	min Level
	out *log.Logger
}

// New logs to stderr at the given minimum level.
func New(level string) *Logger {
	return NewTo(os.Stderr, level)
}

// NewTo logs to w at the given minimum level.
func NewTo(w io.Writer, level string) *Logger {
	return &Logger{min: ParseLevel(level), out: log.New(w, "", log.LstdFlags)}
}

// Level returns the minimum level written.
func (l *Logger) Level() Level { return l.min }

func (l *Logger) logf(level Level, format string, v []any) {
	if level < l.min {
		return
	}
	tag := "[" + strings.ToUpper(level.String()) + "] "
	_ = l.out.Output(3, tag+fmt.Sprintf(format, v...))
}

func (l *Logger) Debugf(format string, v ...any) { l.logf(LevelDebug, format, v) }
func (l *Logger) Infof(format string, v ...any)  { l.logf(LevelInfo, format, v) }
func (l *Logger) Warnf(format string, v ...any)  { l.logf(LevelWarn, format, v) }
func (l *Logger) Errorf(format string, v ...any) { l.logf(LevelError, format, v) }

// Fatalf logs regardless of level and exits with status 1.
func (l *Logger) Fatalf(format string, v ...any) {
	l.logf(LevelFatal, format, v)
	os.Exit(1)
}
