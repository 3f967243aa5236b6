// Package academics folds a student's marks into one GPA using the grade
// bands of the school store.
package academics

import (
	"fmt"
	"sort"
	"strings"

	"github.com/shopspring/decimal"

	"studentetl/internal/school"
)

// GPAPlaces is the precision of an aggregated GPA.
const GPAPlaces = 2

// Range is an inclusive percentage range.
type Range struct {
	Low, High decimal.Decimal
}

// Contains reports whether v lies in [Low, High].
func (r Range) Contains(v decimal.Decimal) bool {
	return v.GreaterThanOrEqual(r.Low) && v.LessThanOrEqual(r.High)
}

// Intersects reports whether r and o share at least one value.
func (r Range) Intersects(o Range) bool {
	return r.Low.LessThanOrEqual(o.High) && o.Low.LessThanOrEqual(r.High)
}

func (r Range) String() string { return r.Low.String() + "-" + r.High.String() }

// ParseRange reads "low-high". The first and last '-' separated tokens are
// the bounds; a single token is a one-value range.
func ParseRange(s string) (Range, error) {
	parts := strings.Split(s, "-")
	lo, hi := strings.TrimSpace(parts[0]), strings.TrimSpace(parts[len(parts)-1])
	low, err := decimal.NewFromString(lo)
	if err != nil {
		return Range{}, fmt.Errorf("range %q: low bound %q is not a number", s, lo)
	}
	high, err := decimal.NewFromString(hi)
	if err != nil {
		return Range{}, fmt.Errorf("range %q: high bound %q is not a number", s, hi)
	}
	if low.GreaterThan(high) {
		return Range{}, fmt.Errorf("range %q: low bound above high bound", s)
	}
	return Range{Low: low, High: high}, nil
}

// BadBand is a grade band whose range could not be parsed. It never matches.
type BadBand struct {
	Band school.GradeBand
	Err  error
}

// Result is the outcome of Aggregate.
type Result struct {
	// Records holds one record per student with at least one classified
	// mark, ordered by student id.
	Records []school.AcademicRecord
	// Unclassified counts marks that fell in no band.
	Unclassified int
	// MultiMatched counts marks that fell in more than one band. Each such
	// mark contributes once per band.
	MultiMatched int
	BadBands     []BadBand
}

type band struct {
	school.GradeBand
	r Range
}

type group struct {
	rec   school.AcademicRecord
	sum   decimal.Decimal
	count int64
}

// Aggregate joins rows to bands by range containment and averages the grade
// equivalents per student, rounding half away from zero.
func Aggregate(rows []school.AcademicRow, bands []school.GradeBand) Result {
	var res Result
	parsed := make([]band, 0, len(bands))
	for _, b := range bands {
		r, err := ParseRange(b.PercentageRange)
		if err != nil {
			res.BadBands = append(res.BadBands, BadBand{Band: b, Err: err})
			continue
		}
		parsed = append(parsed, band{GradeBand: b, r: r})
	}

	groups := make(map[int64]*group)
	for _, row := range rows {
		matches := 0
		for _, b := range parsed {
			if !b.r.Contains(row.Score) {
				continue
			}
			matches++
			g, ok := groups[row.StudentID]
			if !ok {
				g = &group{rec: school.AcademicRecord{
					StudentID:   row.StudentID,
					FirstName:   row.FirstName,
					LastName:    row.LastName,
					Email:       row.Email,
					Department:  row.Department,
					JoiningDate: row.JoiningDate,
				}}
				groups[row.StudentID] = g
			}
			g.sum = g.sum.Add(b.GPAEquivalent)
			g.count++
		}
		switch {
		case matches == 0:
			res.Unclassified++
		case matches > 1:
			res.MultiMatched++
		}
	}

	res.Records = make([]school.AcademicRecord, 0, len(groups))
	for _, g := range groups {
		g.rec.GPA = g.sum.Div(decimal.NewFromInt(g.count)).Round(GPAPlaces)
		res.Records = append(res.Records, g.rec)
	}
	sort.Slice(res.Records, func(i, j int) bool {
		return res.Records[i].StudentID < res.Records[j].StudentID
	})
	return res
}

// Overlap is a pair of bands whose ranges intersect.
type Overlap struct {
	A, B school.GradeBand
}

// Overlaps lists every intersecting pair of parseable bands, in band order.
func Overlaps(bands []school.GradeBand) []Overlap {
	parsed := make([]band, 0, len(bands))
	for _, b := range bands {
		if r, err := ParseRange(b.PercentageRange); err == nil {
			parsed = append(parsed, band{GradeBand: b, r: r})
		}
	}
	var out []Overlap
	for i := range parsed {
		for j := i + 1; j < len(parsed); j++ {
			if parsed[i].r.Intersects(parsed[j].r) {
				out = append(out, Overlap{A: parsed[i].GradeBand, B: parsed[j].GradeBand})
			}
		}
	}
	return out
}
