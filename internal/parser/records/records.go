// Package records turns split input lines into typed grade bands and student
// lines. Parse functions never touch a store; every failure is an
// *etlerr.ValidationError and the caller decides what to skip.
package records

import (
	"fmt"
	"strconv"
	"time"

	"github.com/shopspring/decimal"

	"studentetl/internal/etlerr"
	"studentetl/internal/school"
)

const (
	// GradeFields is the width of a grade line.
	GradeFields = 5
	// StudentFields is the width of a student line: six identity fields,
	// five subjects and five marks.
	StudentFields = 16
	// Slots is the number of (subject, mark) pairs on a student line.
	Slots = 5
)

var gradeColumns = [GradeFields]string{"id", "code", "label", "percentage_range", "gpa_equivalent"}

var studentColumns = [6]string{"id", "first_name", "last_name", "email", "department", "joining_date"}

// ParseGrade parses {id, code, label, percentage_range, gpa_equivalent}.
// The percentage range is kept verbatim; it is interpreted at aggregation time.
func ParseGrade(fields []string) (school.GradeBand, error) {
	if len(fields) > GradeFields {
		return school.GradeBand{}, &etlerr.ValidationError{
			Reason: fmt.Sprintf("malformed: expected %d fields, got %d", GradeFields, len(fields)),
		}
	}
	for i, name := range gradeColumns {
		if i >= len(fields) || fields[i] == "" {
			return school.GradeBand{}, etlerr.Invalid(name, "", "missing fields")
		}
	}

	id, err := strconv.ParseInt(fields[0], 10, 64)
	if err != nil {
		return school.GradeBand{}, etlerr.Invalid("id", fields[0], "not an integer")
	}
	gpa, err := decimal.NewFromString(fields[4])
	if err != nil {
		return school.GradeBand{}, etlerr.Invalid("gpa_equivalent", fields[4], "not a number")
	}

	return school.GradeBand{
		ID:              id,
		Code:            fields[1],
		Label:           fields[2],
		PercentageRange: fields[3],
		GPAEquivalent:   gpa,
	}, nil
}

// Slot is a usable (subject, mark) pair. Position is 1-based.
type Slot struct {
	Position int
	Subject  string
	Score    decimal.Decimal
}

// SlotSkip records a pair that was dropped and why.
type SlotSkip struct {
	Position int
	Reason   string
}

// StudentLine is a parsed student line. The department is still a name; the
// loader resolves it to an id.
type StudentLine struct {
	ID          int64
	FirstName   string
	LastName    string
	Email       string
	Department  string
	JoiningDate time.Time
	Slots       []Slot
	Skipped     []SlotSkip
}

// Student returns the student row for departmentID.
func (l StudentLine) Student(departmentID int64) school.Student {
	return school.Student{
		ID:           l.ID,
		FirstName:    l.FirstName,
		LastName:     l.LastName,
		Email:        l.Email,
		DepartmentID: departmentID,
		JoiningDate:  l.JoiningDate,
	}
}

// ParseStudent parses a 16-field student line. Identity problems reject the
// whole line; a bad (subject, mark) pair only lands in Skipped.
func ParseStudent(fields []string) (StudentLine, error) {
	if len(fields) != StudentFields {
		return StudentLine{}, &etlerr.ValidationError{
			Reason: fmt.Sprintf("malformed: expected %d fields, got %d", StudentFields, len(fields)),
		}
	}
	for i, name := range studentColumns {
		if fields[i] == "" {
			return StudentLine{}, etlerr.Invalid(name, "", "missing key field")
		}
	}

	id, err := strconv.ParseInt(fields[0], 10, 64)
	if err != nil {
		return StudentLine{}, etlerr.Invalid("id", fields[0], "not an integer")
	}
	joined, ok := school.ParseDate(fields[5])
	if !ok {
		return StudentLine{}, etlerr.Invalid("joining_date", fields[5], "not a YYYY-MM-DD calendar date")
	}

	out := StudentLine{
		ID:          id,
		FirstName:   fields[1],
		LastName:    fields[2],
		Email:       fields[3],
		Department:  fields[4],
		JoiningDate: joined,
	}

	for i := 0; i < Slots; i++ {
		pos := i + 1
		subject, mark := fields[6+i], fields[6+Slots+i]
		switch {
		case subject == "":
			out.Skipped = append(out.Skipped, SlotSkip{Position: pos, Reason: "missing subject"})
			continue
		case mark == "":
			out.Skipped = append(out.Skipped, SlotSkip{Position: pos, Reason: "missing mark"})
			continue
		}
		score, err := decimal.NewFromString(mark)
		if err != nil {
			out.Skipped = append(out.Skipped, SlotSkip{Position: pos, Reason: fmt.Sprintf("mark %q is not a number", mark)})
			continue
		}
		out.Slots = append(out.Slots, Slot{Position: pos, Subject: subject, Score: score})
	}
	return out, nil
}
