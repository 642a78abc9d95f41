// Package logger holds the process-wide allocator logger.
//
// Nothing is logged until the embedding program calls Init: L starts on a
// discarding handler, so log calls on the allocation paths cost a level check.
// Per-block tracing is a separate switch (AllocTrace) because it fires on
// every allocate and free.
package logger

import (
	"fmt"
	"io"
	"log/slog"
	"os"
	"path/filepath"
	"strings"
	"sync"
	"time"
)

// L is the logger behind the package-level helpers.
var L = slog.New(slog.DiscardHandler)

// AllocTrace turns on per-block debug records. Set OMR_LOG_ALLOC to enable.
var AllocTrace = os.Getenv("OMR_LOG_ALLOC") != ""

// Daily log files are named omrport-YYYY-MM-DD.log.
const (
	logPrefix     = "omrport-"
	logSuffix     = ".log"
	dateLayout    = "2006-01-02"
	retentionDays = 30
)

// Options selects where records go.
type Options struct {
	Enabled bool
	Level   slog.Level

	// Writer receives text records. When nil, JSON records are appended to
	// a daily file in Dir (default ~/.omrport/logs).
	Writer io.Writer
	Dir    string
}

var (
	fileMu sync.Mutex
	file   *os.File // current daily file, closed on re-Init
)

// Init replaces L according to opts. It is meant to run once from main
// before allocators are created; calling it again closes the previous file.
func Init(opts Options) error {
	h, err := newHandler(opts)
	if err != nil {
		return err
	}
	L = slog.New(h)
	return nil
}

func newHandler(opts Options) (slog.Handler, error) {
	fileMu.Lock()
	defer fileMu.Unlock()

	if file != nil {
		_ = file.Close()
		file = nil
	}

	switch {
	case !opts.Enabled:
		return slog.DiscardHandler, nil
	case opts.Writer != nil:
		return slog.NewTextHandler(opts.Writer, &slog.HandlerOptions{Level: opts.Level}), nil
	}

	f, err := openDaily(opts.Dir, time.Now())
	if err != nil {
		return nil, err
	}
	file = f
	return slog.NewJSONHandler(f, &slog.HandlerOptions{Level: opts.Level}), nil
}

// openDaily opens today's file in dir for appending, pruning expired files
// on the way.
func openDaily(dir string, now time.Time) (*os.File, error) {
	if dir == "" {
		home, err := os.UserHomeDir()
		if err != nil {
			return nil, fmt.Errorf("logger: no log directory: %w", err)
		}
		dir = filepath.Join(home, ".omrport", "logs")
	}
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return nil, err
	}

	prune(dir, now.AddDate(0, 0, -retentionDays))

	name := filepath.Join(dir, logPrefix+now.Format(dateLayout)+logSuffix)
	return os.OpenFile(name, os.O_CREATE|os.O_APPEND|os.O_WRONLY, 0o644)
}

// prune removes daily files dated before cutoff. Other files are left alone.
func prune(dir string, cutoff time.Time) {
	entries, err := os.ReadDir(dir)
	if err != nil {
		return
	}
	for _, e := range entries {
		date, ok := strings.CutPrefix(e.Name(), logPrefix)
		if !ok {
			continue
		}
		date, ok = strings.CutSuffix(date, logSuffix)
		if !ok {
			continue
		}
		day, err := time.Parse(dateLayout, date)
		if err != nil || !day.Before(cutoff) {
			continue
		}
		_ = os.Remove(filepath.Join(dir, e.Name()))
	}
}

// ParseLevel maps a configuration string to a slog level.
func ParseLevel(s string) (slog.Level, error) {
	switch strings.ToLower(strings.TrimSpace(s)) {
	case "", "info":
		return slog.LevelInfo, nil
	case "debug":
		return slog.LevelDebug, nil
	case "warn", "warning":
		return slog.LevelWarn, nil
	case "error":
		return slog.LevelError, nil
	default:
		return 0, fmt.Errorf("logger: unknown level %q", s)
	}
}

func Debug(msg string, args ...any) { L.Debug(msg, args...) }
func Info(msg string, args ...any)  { L.Info(msg, args...) }
func Warn(msg string, args ...any)  { L.Warn(msg, args...) }
func Error(msg string, args ...any) { L.Error(msg, args...) }
