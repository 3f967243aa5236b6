// Package report writes the per-run report: an append-only text file named
// report-<UTC timestamp>.txt with one timestamped logrus line per event.
package report

import (
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/sirupsen/logrus"
)

// Report owns the report file and the logger writing to it.
type Report struct {
	Path string
	Log  *logrus.Logger
	file *os.File
}

// FileName returns the report file name for a run started at now.
func FileName(now time.Time) string {
	ts := now.UTC().Format("2006-01-02T15:04:05.000Z")
	ts = strings.NewReplacer(":", "-", ".", "-").Replace(ts)
	return "report-" + ts + ".txt"
}

// Open creates dir if needed and opens a new report file in it. When tee is
// set, every line is also written to stderr.
func Open(dir string, now time.Time, tee bool) (*Report, error) {
	if dir == "" {
		dir = "report"
	}
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return nil, fmt.Errorf("report: create dir %s: %w", dir, err)
	}
	path := filepath.Join(dir, FileName(now))
	f, err := os.OpenFile(path, os.O_CREATE|os.O_APPEND|os.O_WRONLY, 0o644)
	if err != nil {
		return nil, fmt.Errorf("report: open %s: %w", path, err)
	}

	var out io.Writer = f
	if tee {
		out = io.MultiWriter(f, os.Stderr)
	}
	return &Report{Path: path, Log: New(out), file: f}, nil
}

// Close flushes and closes the report file.
func (r *Report) Close() error {
	if r == nil || r.file == nil {
		return nil
	}
	if err := r.file.Sync(); err != nil {
		_ = r.file.Close()
		return fmt.Errorf("report: sync %s: %w", r.Path, err)
	}
	return r.file.Close()
}

// New returns a logger with the report line format: full UTC timestamps,
// no colors, key=value fields.
func New(out io.Writer) *logrus.Logger {
	l := logrus.New()
	l.SetOutput(out)
	l.SetLevel(logrus.InfoLevel)
	l.SetFormatter(&logrus.TextFormatter{
		DisableColors:    true,
		FullTimestamp:    true,
		TimestampFormat:  time.RFC3339Nano,
		QuoteEmptyFields: true,
	})
	return l
}

// Nop returns a logger that discards everything.
func Nop() *logrus.Logger {
	return New(io.Discard)
}

// Or returns l, or a discarding logger when l is nil.
func Or(l logrus.FieldLogger) logrus.FieldLogger {
	if l == nil {
		return Nop()
	}
	return l
}
