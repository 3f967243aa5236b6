// Package mysql implements both stores on MySQL through database/sql and
// go-sql-driver/mysql.
//
// Upserts use INSERT ... ON DUPLICATE KEY UPDATE. Get-or-create inserts set
// id = LAST_INSERT_ID(id) on conflict so that the existing id comes back in
// the same round trip.
package mysql

import (
	"context"
	"fmt"
	"strings"

	"github.com/go-sql-driver/mysql"
	"github.com/jmoiron/sqlx"

	"studentetl/internal/storage/sqldb"
)

// Config holds MySQL connection settings.
type Config struct {
	// DSN in go-sql-driver form, e.g. "user:pass@tcp(127.0.0.1:3306)/school".
	DSN string
}

// NewDB validates the DSN, opens a pool and pings the server.
func NewDB(ctx context.Context, cfg Config) (*sqlx.DB, error) {
	if _, err := mysql.ParseDSN(cfg.DSN); err != nil {
		return nil, fmt.Errorf("mysql dsn: %w", err)
	}
	return sqldb.Open(ctx, "mysql", cfg.DSN)
}

func myIdent(id string) string { return "`" + strings.ReplaceAll(id, "`", "``") + "`" }

func upsert(table string, cols, key []string) string {
	sets := make([]string, 0, len(cols))
	for _, c := range sqldb.NonKey(cols, key) {
		sets = append(sets, fmt.Sprintf("%s = VALUES(%s)", myIdent(c), myIdent(c)))
	}
	return fmt.Sprintf("INSERT INTO %s (%s) VALUES (%s) ON DUPLICATE KEY UPDATE %s",
		myIdent(table),
		strings.Join(sqldb.QuoteAll(myIdent, cols), ", "),
		sqldb.Placeholders(len(cols)),
		strings.Join(sets, ", "))
}

// insertKey relies on the unique index of the key column; MySQL has no
// conflict target.
func insertKey(table string, cols []string, _ string) string {
	return fmt.Sprintf("INSERT INTO %s (%s) VALUES (%s) ON DUPLICATE KEY UPDATE %s = LAST_INSERT_ID(%s)",
		myIdent(table),
		strings.Join(sqldb.QuoteAll(myIdent, cols), ", "),
		sqldb.Placeholders(len(cols)),
		myIdent("id"), myIdent("id"))
}

// Dialect is the MySQL dialect.
var Dialect = sqldb.Dialect{
	Name:      "mysql",
	Bind:      sqlx.QUESTION,
	Keys:      sqldb.KeyLastInsertID,
	Quote:     myIdent,
	Upsert:    upsert,
	InsertKey: insertKey,
	DateText:  func(col string) string { return "DATE_FORMAT(" + col + ", '%Y-%m-%d')" },
	SchoolDDL: []string{
		"CREATE TABLE IF NOT EXISTS `departments` (\n" +
			"  `id` BIGINT NOT NULL AUTO_INCREMENT PRIMARY KEY,\n" +
			"  `name` VARCHAR(100) NOT NULL UNIQUE\n" +
			")",
		"CREATE TABLE IF NOT EXISTS `students` (\n" +
			"  `id` BIGINT NOT NULL PRIMARY KEY,\n" +
			"  `first_name` VARCHAR(50) NOT NULL,\n" +
			"  `last_name` VARCHAR(50) NOT NULL,\n" +
			"  `email` VARCHAR(100) NOT NULL,\n" +
			"  `dept_id` BIGINT NOT NULL,\n" +
			"  `joining_date` DATE NOT NULL,\n" +
			"  FOREIGN KEY (`dept_id`) REFERENCES `departments` (`id`)\n" +
			")",
		"CREATE TABLE IF NOT EXISTS `subjects` (\n" +
			"  `id` BIGINT NOT NULL AUTO_INCREMENT PRIMARY KEY,\n" +
			"  `name` VARCHAR(100) NOT NULL UNIQUE,\n" +
			"  `dept_id` BIGINT NOT NULL,\n" +
			"  FOREIGN KEY (`dept_id`) REFERENCES `departments` (`id`)\n" +
			")",
		"CREATE TABLE IF NOT EXISTS `marks` (\n" +
			"  `student_id` BIGINT NOT NULL,\n" +
			"  `subject_id` BIGINT NOT NULL,\n" +
			"  `score` DECIMAL(5,2) NOT NULL,\n" +
			"  PRIMARY KEY (`student_id`, `subject_id`),\n" +
			"  FOREIGN KEY (`student_id`) REFERENCES `students` (`id`),\n" +
			"  FOREIGN KEY (`subject_id`) REFERENCES `subjects` (`id`)\n" +
			")",
		"CREATE TABLE IF NOT EXISTS `grade` (\n" +
			"  `id` BIGINT NOT NULL PRIMARY KEY,\n" +
			"  `code` VARCHAR(10) NOT NULL UNIQUE,\n" +
			"  `label` VARCHAR(50) NOT NULL,\n" +
			"  `percentage_range` VARCHAR(20) NOT NULL,\n" +
			"  `gpa_equivalent` DECIMAL(3,2) NOT NULL\n" +
			")",
	},
	AcademicsDDL: []string{
		"CREATE TABLE IF NOT EXISTS `student_academics` (\n" +
			"  `id` BIGINT NOT NULL AUTO_INCREMENT PRIMARY KEY,\n" +
			"  `first_name` VARCHAR(50) NOT NULL,\n" +
			"  `last_name` VARCHAR(50) NOT NULL,\n" +
			"  `email` VARCHAR(100) NOT NULL UNIQUE,\n" +
			"  `department` VARCHAR(100) NOT NULL,\n" +
			"  `joining_date` DATE NOT NULL,\n" +
			"  `gpa` DECIMAL(3,2) NOT NULL,\n" +
			"  CHECK (`gpa` BETWEEN 0 AND 4)\n" +
			")",
	},
}
