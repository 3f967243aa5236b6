// Package sqldb implements the school and academics repositories once on top
// of database/sql (through sqlx). Backends supply a Dialect: identifier
// quoting, bind style, DDL, and the upsert and get-or-create statements their
// engine supports.
package sqldb

import (
	"fmt"
	"strings"
)

// KeyMode says how a get-or-create insert reports the row id.
type KeyMode int

const (
	// KeyReturning: the insert yields one row holding the new id, or no row
	// when the key already existed.
	KeyReturning KeyMode = iota
	// KeyLastInsertID: the insert is executed and LastInsertId holds the new
	// or existing id; RowsAffected is 1 only when a row was created.
	KeyLastInsertID
)

// Dialect describes one SQL engine.
type Dialect struct {
	Name string
	// Bind is an sqlx bind type (sqlx.QUESTION, sqlx.AT, ...). Statements are
	// written with '?' and rebound.
	Bind  int
	Keys  KeyMode
	Quote func(ident string) string

	// Upsert returns an insert-or-update of cols keyed by key; all other
	// columns are overwritten on conflict.
	Upsert func(table string, cols, key []string) string
	// InsertKey returns a get-or-create insert of cols that never modifies an
	// existing row with the same key column. See Keys.
	InsertKey func(table string, cols []string, key string) string
	// DateText renders a DATE column as YYYY-MM-DD text.
	DateText func(col string) string

	SchoolDDL    []string
	AcademicsDDL []string
}

func (d Dialect) validate() error {
	switch {
	case d.Quote == nil, d.Upsert == nil, d.InsertKey == nil, d.DateText == nil:
		return fmt.Errorf("sqldb: dialect %q is incomplete", d.Name)
	case len(d.SchoolDDL) == 0 || len(d.AcademicsDDL) == 0:
		return fmt.Errorf("sqldb: dialect %q has no DDL", d.Name)
	}
	return nil
}

// QuoteAll quotes every identifier in ids.
func QuoteAll(quote func(string) string, ids []string) []string {
	out := make([]string, len(ids))
	for i, id := range ids {
		out[i] = quote(id)
	}
	return out
}

// Placeholders returns n comma-separated '?' markers.
func Placeholders(n int) string {
	if n <= 0 {
		return ""
	}
	return strings.TrimSuffix(strings.Repeat("?, ", n), ", ")
}

// NonKey returns the columns of cols not in key, in order.
func NonKey(cols, key []string) []string {
	skip := make(map[string]struct{}, len(key))
	for _, k := range key {
		skip[k] = struct{}{}
	}
	out := make([]string, 0, len(cols))
	for _, c := range cols {
		if _, ok := skip[c]; !ok {
			out = append(out, c)
		}
	}
	return out
}
