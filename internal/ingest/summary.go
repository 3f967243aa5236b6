package ingest

import (
	"github.com/sirupsen/logrus"
)

// Stages name where a line or slot was dropped.
const (
	StageParse      = "parse"
	StageGrade      = "grade"
	StageDepartment = "department"
	StageStudent    = "student"
	StageSlot       = "slot"
	StageSubject    = "subject"
	StageMark       = "mark"
)

// Failure is one dropped line or slot. Line is the 1-based line in the file.
type Failure struct {
	Line  int
	Key   string
	Stage string
	Err   error
}

// Summary is the fold of a load run: every data line ends up loaded,
// skipped (bad input) or failed (store rejected it or a reference could not
// be resolved). Marks are counted separately.
type Summary struct {
	Lines   int
	Blank   int
	Loaded  int
	Skipped int
	Failed  int

	MarksLoaded  int
	MarksSkipped int
	MarksFailed  int

	Failures []Failure
}

func (s *Summary) skip(f Failure) {
	s.Skipped++
	s.Failures = append(s.Failures, f)
}

func (s *Summary) fail(f Failure) {
	s.Failed++
	s.Failures = append(s.Failures, f)
}

func (s *Summary) skipMark(f Failure) {
	s.MarksSkipped++
	s.Failures = append(s.Failures, f)
}

func (s *Summary) failMark(f Failure) {
	s.MarksFailed++
	s.Failures = append(s.Failures, f)
}

// Fields returns the counters as log fields.
func (s Summary) Fields() logrus.Fields {
	return logrus.Fields{
		"lines":         s.Lines,
		"blank":         s.Blank,
		"loaded":        s.Loaded,
		"skipped":       s.Skipped,
		"failed":        s.Failed,
		"marks_loaded":  s.MarksLoaded,
		"marks_skipped": s.MarksSkipped,
		"marks_failed":  s.MarksFailed,
	}
}
