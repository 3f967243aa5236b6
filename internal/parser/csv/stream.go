// Package csv reads delimited input files line by line.
//
// ReadLines streams a file without whole-file buffering and hands each data
// line to a callback as trimmed fields. Per-line problems are soft: they are
// delivered on Line.Err and reading continues. Only I/O failure, context
// cancellation or a callback error end the stream.
package csv

import (
	"bufio"
	"context"
	"encoding/csv"
	"errors"
	"fmt"
	"io"
	"strings"

	"golang.org/x/text/unicode/norm"

	"studentetl/internal/config"
	"studentetl/internal/etlerr"
)

// Options configures line splitting.
type Options struct {
	// Comma is the field delimiter. Zero means ','.
	Comma rune
	// LazyQuotes allows a quote to appear in an unquoted field.
	LazyQuotes bool
	// Normalize applies Unicode NFC normalization to every field.
	Normalize bool
}

// DefaultOptions returns comma-separated, lazily quoted, NFC-normalized fields.
func DefaultOptions() Options {
	return Options{Comma: ',', LazyQuotes: true, Normalize: true}
}

// OptionsFrom reads parser options ("comma", "lazy_quotes", "normalize") from
// a job's parser section, falling back to DefaultOptions.
func OptionsFrom(o config.Options) Options {
	d := DefaultOptions()
	return Options{
		Comma:      o.Rune("comma", d.Comma),
		LazyQuotes: o.Bool("lazy_quotes", d.LazyQuotes),
		Normalize:  o.Bool("normalize", d.Normalize),
	}
}

// Line is one data line. Number is the 1-based physical line in the file.
// When Err is set the line could not be split and Fields is nil.
type Line struct {
	Number int
	Raw    string
	Fields []string
	Err    error
}

// Stats counts what ReadLines saw.
type Stats struct {
	Lines     int // data lines delivered to fn, malformed ones included
	Blank     int
	Malformed int
}

// ReadLines reads r, skips the header line and blank lines, and calls fn for
// every remaining line in order. A non-nil error from fn stops reading and is
// returned as is.
func ReadLines(ctx context.Context, r io.Reader, opts Options, fn func(Line) error) (Stats, error) {
	var st Stats
	if opts.Comma == 0 {
		opts.Comma = ','
	}

	br := bufio.NewReaderSize(r, 64*1024)
	n := 0
	for {
		select {
		case <-ctx.Done():
			return st, ctx.Err()
		default:
		}

		raw, err := br.ReadString('\n')
		if err != nil && !errors.Is(err, io.EOF) {
			return st, fmt.Errorf("read line %d: %w", n+1, err)
		}
		if raw == "" && errors.Is(err, io.EOF) {
			return st, nil
		}
		n++
		raw = strings.TrimRight(raw, "\r\n")

		switch {
		case n == 1:
			// header
		case strings.TrimSpace(raw) == "":
			st.Blank++
		default:
			ln := Line{Number: n, Raw: raw}
			ln.Fields, ln.Err = splitLine(raw, opts)
			st.Lines++
			if ln.Err != nil {
				st.Malformed++
			}
			if ferr := fn(ln); ferr != nil {
				return st, ferr
			}
		}

		if errors.Is(err, io.EOF) {
			return st, nil
		}
	}
}

// splitLine splits a single physical line. Quoted fields may contain the
// delimiter but not a line break.
func splitLine(raw string, opts Options) ([]string, error) {
	cr := csv.NewReader(strings.NewReader(stripBOM(raw)))
	cr.Comma = opts.Comma
	cr.LazyQuotes = opts.LazyQuotes
	cr.FieldsPerRecord = -1

	rec, err := cr.Read()
	if err != nil {
		return nil, &etlerr.ValidationError{Reason: fmt.Sprintf("malformed line: %v", err)}
	}

	out := make([]string, len(rec))
	for i, v := range rec {
		v = strings.TrimSpace(v)
		if opts.Normalize {
			v = norm.NFC.String(v)
		}
		out[i] = v
	}
	return out, nil
}
