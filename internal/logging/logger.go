// Package logging wraps charmbracelet/log with a process-wide logger and a
// small ring of recent entries for the terminal monitor.
package logging

import (
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strings"
	"sync"
	"time"

	"github.com/charmbracelet/log"
)

// Entry is one buffered log line.
type Entry struct {
	Time    time.Time
	Level   string
	Message string
	KeyVals []interface{}
}

const maxEntries = 100

var (
	// Logger is the global logger. It writes to stderr until Init is called.
	Logger = log.NewWithOptions(os.Stderr, log.Options{ReportTimestamp: true})

	logFile *os.File

	recent   [maxEntries]Entry
	recentMu sync.RWMutex
	next     int
)

// Init points the global logger at w with the given level name
// ("debug", "info", "warn", "error").
func Init(w io.Writer, level string) error {
	lvl, err := log.ParseLevel(level)
	if err != nil {
		return fmt.Errorf("parse log level: %w", err)
	}
	Logger = log.NewWithOptions(w, log.Options{
		ReportTimestamp: true,
		TimeFormat:      time.RFC3339,
		Level:           lvl,
	})
	return nil
}

// InitFile logs to a dated file under dir. Used when the terminal is owned
// by the monitor.
func InitFile(dir, level string) error {
	if err := os.MkdirAll(dir, 0755); err != nil {
		return fmt.Errorf("failed to create log directory: %w", err)
	}
	name := fmt.Sprintf("handsynth-%s.log", time.Now().Format("2006-01-02"))
	f, err := os.OpenFile(filepath.Join(dir, name), os.O_CREATE|os.O_WRONLY|os.O_APPEND, 0644)
	if err != nil {
		return fmt.Errorf("failed to open log file: %w", err)
	}
	if err := Init(f, level); err != nil {
		f.Close()
		return err
	}
	logFile = f
	return nil
}

// Close closes the log file, if any.
func Close() {
	if logFile != nil {
		logFile.Close()
		logFile = nil
	}
}

func record(level, msg string, keyvals []interface{}) {
	recentMu.Lock()
	defer recentMu.Unlock()
	recent[next] = Entry{Time: time.Now(), Level: level, Message: msg, KeyVals: keyvals}
	next = (next + 1) % maxEntries
}

// Recent returns up to count entries, newest first.
func Recent(count int) []Entry {
	recentMu.RLock()
	defer recentMu.RUnlock()

	if count > maxEntries {
		count = maxEntries
	}
	out := make([]Entry, 0, count)
	idx := (next - 1 + maxEntries) % maxEntries
	for i := 0; i < count; i++ {
		e := recent[idx]
		if e.Time.IsZero() {
			break
		}
		out = append(out, e)
		idx = (idx - 1 + maxEntries) % maxEntries
	}
	return out
}

// Format renders an entry on one line.
func (e Entry) Format() string {
	if e.Time.IsZero() {
		return ""
	}
	var kv []string
	for i := 0; i+1 < len(e.KeyVals); i += 2 {
		val := fmt.Sprintf("%v", e.KeyVals[i+1])
		if len(val) > 40 {
			val = val[:37] + "..."
		}
		kv = append(kv, fmt.Sprintf("%v=%s", e.KeyVals[i], val))
	}
	line := fmt.Sprintf("%s [%s] %s", e.Time.Format("15:04:05"), e.Level, e.Message)
	if len(kv) > 0 {
		line += " " + strings.Join(kv, " ")
	}
	return line
}

func Info(msg string, keyvals ...interface{}) {
	record("INFO", msg, keyvals)
	Logger.Info(msg, keyvals...)
}

func Debug(msg string, keyvals ...interface{}) {
	record("DEBUG", msg, keyvals)
	Logger.Debug(msg, keyvals...)
}

func Warn(msg string, keyvals ...interface{}) {
	record("WARN", msg, keyvals)
	Logger.Warn(msg, keyvals...)
}

func Error(msg string, keyvals ...interface{}) {
	record("ERROR", msg, keyvals)
	Logger.Error(msg, keyvals...)
}

// WithPrefix returns a child logger tagged with prefix. Entries written
// through it skip the recent buffer.
func WithPrefix(prefix string) *log.Logger {
	return Logger.WithPrefix(prefix)
}
