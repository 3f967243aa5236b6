// Package storage contains the store contracts used by the loaders and the
// migrator, plus a registry that maps a store kind ("mysql", "postgres",
// "sqlite", "mssql") to a backend constructor.
//
// Backends register themselves from init; import storage/all to enable every
// built-in kind.
package storage

import (
	"context"
	"fmt"
	"strings"

	"studentetl/internal/school"
)

// Role names which schema a store holds.
type Role string

const (
	// RoleSchool is the normalized store the loaders write to.
	RoleSchool Role = "school"
	// RoleAcademics is the denormalized store the migrator writes to.
	RoleAcademics Role = "academics"
)

// ParseRole accepts "school" or "academics", case-insensitively.
func ParseRole(s string) (Role, error) {
	switch r := Role(strings.ToLower(strings.TrimSpace(s))); r {
	case RoleSchool, RoleAcademics:
		return r, nil
	default:
		return "", fmt.Errorf("unknown store %q (want %s or %s)", s, RoleSchool, RoleAcademics)
	}
}

// KeyResult is the outcome of a get-or-create insert of a natural key.
//
// ID is zero when the store cannot report the id in the same round trip (the
// key already existed and the dialect does not return it). Callers then look
// the key up.
type KeyResult struct {
	ID      int64
	Created bool
}

// TableCount is a row count for one table.
type TableCount struct {
	Table string
	Rows  int64
}

// Schema creates or drops a store's tables.
type Schema interface {
	EnsureSchema(ctx context.Context) error
	DropSchema(ctx context.Context) error
}

// SchoolRepository is the normalized store: grade bands, departments,
// subjects, students and marks.
//
// Every write is an independent statement. Upserts overwrite all non-key
// columns. Write failures are returned as *etlerr.WriteError.
type SchoolRepository interface {
	Schema

	UpsertGrade(ctx context.Context, g school.GradeBand) error
	UpsertStudent(ctx context.Context, s school.Student) error
	UpsertMark(ctx context.Context, m school.Mark) error

	// InsertDepartment inserts name unless it exists. It never updates an
	// existing row.
	InsertDepartment(ctx context.Context, name string) (KeyResult, error)
	FindDepartment(ctx context.Context, name string) (id int64, found bool, err error)
	InsertSubject(ctx context.Context, name string, departmentID int64) (KeyResult, error)
	FindSubject(ctx context.Context, name string) (id int64, found bool, err error)

	// AcademicRows returns every student/department/mark join row ordered by
	// student id.
	AcademicRows(ctx context.Context) ([]school.AcademicRow, error)
	GradeBands(ctx context.Context) ([]school.GradeBand, error)

	// Clear deletes all rows in foreign-key order and reports per table.
	Clear(ctx context.Context) ([]TableCount, error)
	Counts(ctx context.Context) ([]TableCount, error)

	Close() error
}

// AcademicsRepository is the denormalized student_academics store.
type AcademicsRepository interface {
	Schema

	// UpsertAcademic inserts or updates the record keyed by email. The
	// store generates ids.
	UpsertAcademic(ctx context.Context, r school.AcademicRecord) error
	ListAcademics(ctx context.Context) ([]school.AcademicRecord, error)

	Clear(ctx context.Context) ([]TableCount, error)
	Counts(ctx context.Context) ([]TableCount, error)

	Close() error
}

// SchoolTables lists the normalized tables in delete order (children first).
var SchoolTables = []string{"marks", "subjects", "students", "grade", "departments"}

// AcademicsTables lists the academics tables.
var AcademicsTables = []string{"student_academics"}
