// Package school defines the records moved by the loaders and the migrator:
// the normalized school schema (departments, subjects, students, marks and
// grade bands) and the denormalized academic record written to the
// academics store.
package school

import (
	"time"

	"github.com/shopspring/decimal"
)

// DateLayout is the calendar-date form used in input files and stores.
const DateLayout = "2006-01-02"

// Department is a named academic department. Name is the natural key.
type Department struct {
	ID   int64
	Name string
}

// Subject belongs to the department of the first student it was seen with.
// Name is the natural key.
type Subject struct {
	ID           int64
	Name         string
	DepartmentID int64
}

// Student is keyed by the id given in the input file.
type Student struct {
	ID           int64
	FirstName    string
	LastName     string
	Email        string
	DepartmentID int64
	JoiningDate  time.Time
}

// Mark is one student's score in one subject.
type Mark struct {
	StudentID int64
	SubjectID int64
	Score     decimal.Decimal
}

// GradeBand maps an inclusive percentage range ("80-100") to a GPA equivalent.
type GradeBand struct {
	ID              int64
	Code            string
	Label           string
	PercentageRange string
	GPAEquivalent   decimal.Decimal
}

// AcademicRow is one student/department/mark join row read from the school
// store for aggregation.
type AcademicRow struct {
	StudentID   int64
	FirstName   string
	LastName    string
	Email       string
	Department  string
	JoiningDate time.Time
	Score       decimal.Decimal
}

// AcademicRecord is the per-student summary stored in student_academics.
// ID is generated by the academics store and is zero until read back.
type AcademicRecord struct {
	ID          int64
	StudentID   int64
	FirstName   string
	LastName    string
	Email       string
	Department  string
	JoiningDate time.Time
	GPA         decimal.Decimal
}

// ParseDate parses a YYYY-MM-DD calendar date and reports whether it is a real
// date whose canonical form is exactly s. "2021-02-30" and "2021-2-3" fail.
func ParseDate(s string) (time.Time, bool) {
	t, err := time.Parse(DateLayout, s)
	if err != nil {
		return time.Time{}, false
	}
	if t.Format(DateLayout) != s {
		return time.Time{}, false
	}
	return t, true
}

// FormatDate renders t in DateLayout.
func FormatDate(t time.Time) string { return t.Format(DateLayout) }

// MinGPA and MaxGPA bound a valid academic record GPA.
var (
	MinGPA = decimal.Zero
	MaxGPA = decimal.NewFromInt(4)
)

// ValidGPA reports whether g lies in [MinGPA, MaxGPA].
func ValidGPA(g decimal.Decimal) bool {
	return g.GreaterThanOrEqual(MinGPA) && g.LessThanOrEqual(MaxGPA)
}
