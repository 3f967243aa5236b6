// Package sqlite implements both stores on SQLite through database/sql and
// the modernc.org/sqlite driver. It is the embedded backend used for local
// runs and tests.
package sqlite

import (
	"context"
	"fmt"
	"strings"

	"github.com/jmoiron/sqlx"
	_ "modernc.org/sqlite"

	"studentetl/internal/storage/sqldb"
)

// Config holds SQLite connection settings.
type Config struct {
	// DSN is a file path or URI, e.g. "school.db", ":memory:" or
	// "file:school.db?_pragma=busy_timeout(5000)".
	DSN string
}

// NewDB opens the database with foreign keys enforced. SQLite has a single
// writer; the pool is limited to one connection, which also keeps a
// ":memory:" database alive for the lifetime of the handle.
func NewDB(ctx context.Context, cfg Config) (*sqlx.DB, error) {
	db, err := sqldb.Open(ctx, "sqlite", cfg.DSN)
	if err != nil {
		return nil, err
	}
	db.SetMaxOpenConns(1)
	if _, err := db.ExecContext(ctx, "PRAGMA foreign_keys = ON"); err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("sqlite: enable foreign keys: %w", err)
	}
	return db, nil
}

func ident(id string) string { return `"` + strings.ReplaceAll(id, `"`, `""`) + `"` }

func upsert(table string, cols, key []string) string {
	sets := make([]string, 0, len(cols))
	for _, c := range sqldb.NonKey(cols, key) {
		sets = append(sets, fmt.Sprintf("%s = excluded.%s", ident(c), ident(c)))
	}
	return fmt.Sprintf("INSERT INTO %s (%s) VALUES (%s) ON CONFLICT (%s) DO UPDATE SET %s",
		ident(table),
		strings.Join(sqldb.QuoteAll(ident, cols), ", "),
		sqldb.Placeholders(len(cols)),
		strings.Join(sqldb.QuoteAll(ident, key), ", "),
		strings.Join(sets, ", "))
}

func insertKey(table string, cols []string, key string) string {
	return fmt.Sprintf("INSERT INTO %s (%s) VALUES (%s) ON CONFLICT (%s) DO NOTHING RETURNING %s",
		ident(table),
		strings.Join(sqldb.QuoteAll(ident, cols), ", "),
		sqldb.Placeholders(len(cols)),
		ident(key),
		ident("id"))
}

// Dialect is the SQLite dialect. Dates are stored as YYYY-MM-DD text and
// decimals with NUMERIC affinity.
var Dialect = sqldb.Dialect{
	Name:      "sqlite",
	Bind:      sqlx.QUESTION,
	Keys:      sqldb.KeyReturning,
	Quote:     ident,
	Upsert:    upsert,
	InsertKey: insertKey,
	DateText:  func(col string) string { return col },
	SchoolDDL: []string{
		`CREATE TABLE IF NOT EXISTS "departments" (
	"id"   INTEGER PRIMARY KEY AUTOINCREMENT,
	"name" TEXT NOT NULL UNIQUE
)`,
		`CREATE TABLE IF NOT EXISTS "students" (
	"id"           INTEGER PRIMARY KEY,
	"first_name"   TEXT NOT NULL,
	"last_name"    TEXT NOT NULL,
	"email"        TEXT NOT NULL,
	"dept_id"      INTEGER NOT NULL REFERENCES "departments" ("id"),
	"joining_date" TEXT NOT NULL CHECK ("joining_date" = date("joining_date"))
)`,
		`CREATE TABLE IF NOT EXISTS "subjects" (
	"id"      INTEGER PRIMARY KEY AUTOINCREMENT,
	"name"    TEXT NOT NULL UNIQUE,
	"dept_id" INTEGER NOT NULL REFERENCES "departments" ("id")
)`,
		`CREATE TABLE IF NOT EXISTS "marks" (
	"student_id" INTEGER NOT NULL REFERENCES "students" ("id"),
	"subject_id" INTEGER NOT NULL REFERENCES "subjects" ("id"),
	"score"      NUMERIC NOT NULL,
	PRIMARY KEY ("student_id", "subject_id")
)`,
		`CREATE TABLE IF NOT EXISTS "grade" (
	"id"               INTEGER PRIMARY KEY,
	"code"             TEXT NOT NULL UNIQUE,
	"label"            TEXT NOT NULL,
	"percentage_range" TEXT NOT NULL,
	"gpa_equivalent"   NUMERIC NOT NULL
)`,
	},
	AcademicsDDL: []string{
		`CREATE TABLE IF NOT EXISTS "student_academics" (
	"id"           INTEGER PRIMARY KEY AUTOINCREMENT,
	"first_name"   TEXT NOT NULL,
	"last_name"    TEXT NOT NULL,
	"email"        TEXT NOT NULL UNIQUE,
	"department"   TEXT NOT NULL,
	"joining_date" TEXT NOT NULL,
	"gpa"          NUMERIC NOT NULL CHECK ("gpa" BETWEEN 0 AND 4)
)`,
	},
}
