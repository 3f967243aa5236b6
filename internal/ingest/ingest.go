// Package ingest loads grade and student files into the school store.
//
// Lines are processed one at a time, in file order. Nothing is wrapped in a
// transaction: a student row stays written even when some of its marks fail.
package ingest

import (
	"context"
	"fmt"
	"io"
	"strconv"

	"github.com/sirupsen/logrus"

	"studentetl/internal/etlerr"
	"studentetl/internal/metrics"
	csvparse "studentetl/internal/parser/csv"
	"studentetl/internal/parser/records"
	"studentetl/internal/report"
	"studentetl/internal/resolve"
	"studentetl/internal/school"
)

// Store is the write side of the school store.
type Store interface {
	UpsertGrade(ctx context.Context, g school.GradeBand) error
	UpsertStudent(ctx context.Context, s school.Student) error
	UpsertMark(ctx context.Context, m school.Mark) error
}

// Resolver turns department and subject names into ids.
type Resolver interface {
	Department(ctx context.Context, name string) (resolve.Resolution, error)
	Subject(ctx context.Context, name string, departmentID int64) (resolve.Resolution, error)
}

// Loader runs grade and student loads.
type Loader struct {
	store    Store
	resolver Resolver
	log      logrus.FieldLogger
	opts     csvparse.Options
	job      string
}

// Option configures a Loader.
type Option func(*Loader)

// WithParseOptions overrides csvparse.DefaultOptions.
func WithParseOptions(o csvparse.Options) Option { return func(l *Loader) { l.opts = o } }

// WithJob sets the job label used for metrics.
func WithJob(job string) Option { return func(l *Loader) { l.job = job } }

// New returns a Loader. A nil log discards output.
func New(store Store, resolver Resolver, log logrus.FieldLogger, opts ...Option) *Loader {
	l := &Loader{
		store:    store,
		resolver: resolver,
		log:      report.Or(log),
		opts:     csvparse.DefaultOptions(),
	}
	for _, o := range opts {
		o(l)
	}
	return l
}

// LoadGrades upserts every valid line of a grade file. The returned error is
// non-nil only when r cannot be read or ctx ends; per-line problems are in
// the Summary.
func (l *Loader) LoadGrades(ctx context.Context, r io.Reader) (Summary, error) {
	var sum Summary
	st, err := csvparse.ReadLines(ctx, r, l.opts, func(ln csvparse.Line) error {
		l.loadGrade(ctx, ln, &sum)
		return nil
	})
	sum.Lines, sum.Blank = st.Lines, st.Blank

	metrics.RecordRecords(l.job, "grade", "loaded", sum.Loaded)
	metrics.RecordRecords(l.job, "grade", "skipped", sum.Skipped)
	metrics.RecordRecords(l.job, "grade", "failed", sum.Failed)
	if err != nil {
		return sum, fmt.Errorf("load grades: %w", err)
	}
	return sum, nil
}

func (l *Loader) loadGrade(ctx context.Context, ln csvparse.Line, sum *Summary) {
	log := l.log.WithField("line", ln.Number)
	if ln.Err != nil {
		sum.skip(Failure{Line: ln.Number, Stage: StageParse, Err: ln.Err})
		log.WithError(ln.Err).Warn("grade line skipped")
		return
	}
	g, err := records.ParseGrade(ln.Fields)
	if err != nil {
		sum.skip(Failure{Line: ln.Number, Stage: StageParse, Err: err})
		log.WithError(err).Warn("grade line skipped")
		return
	}

	key := strconv.FormatInt(g.ID, 10)
	if err := l.store.UpsertGrade(ctx, g); err != nil {
		sum.fail(Failure{Line: ln.Number, Key: key, Stage: StageGrade, Err: err})
		log.WithFields(logrus.Fields{"grade": key, "op": "upsert grade"}).WithError(err).Error("grade not written")
		return
	}
	sum.Loaded++
	log.WithFields(logrus.Fields{"grade": key, "code": g.Code}).Info("grade upserted")
}

// LoadStudents loads a student file. For each line the department is
// resolved, the student upserted, then each usable (subject, mark) slot is
// resolved and upserted. A failed department or student aborts that line's
// marks; a failed slot never affects its siblings.
func (l *Loader) LoadStudents(ctx context.Context, r io.Reader) (Summary, error) {
	var sum Summary
	st, err := csvparse.ReadLines(ctx, r, l.opts, func(ln csvparse.Line) error {
		l.loadStudent(ctx, ln, &sum)
		return nil
	})
	sum.Lines, sum.Blank = st.Lines, st.Blank

	metrics.RecordRecords(l.job, "student", "loaded", sum.Loaded)
	metrics.RecordRecords(l.job, "student", "skipped", sum.Skipped)
	metrics.RecordRecords(l.job, "student", "failed", sum.Failed)
	metrics.RecordRecords(l.job, "mark", "loaded", sum.MarksLoaded)
	metrics.RecordRecords(l.job, "mark", "skipped", sum.MarksSkipped)
	metrics.RecordRecords(l.job, "mark", "failed", sum.MarksFailed)
	if err != nil {
		return sum, fmt.Errorf("load students: %w", err)
	}
	return sum, nil
}

func (l *Loader) loadStudent(ctx context.Context, ln csvparse.Line, sum *Summary) {
	log := l.log.WithField("line", ln.Number)
	if ln.Err != nil {
		sum.skip(Failure{Line: ln.Number, Stage: StageParse, Err: ln.Err})
		log.WithError(ln.Err).Warn("student line skipped")
		return
	}
	sl, err := records.ParseStudent(ln.Fields)
	if err != nil {
		sum.skip(Failure{Line: ln.Number, Stage: StageParse, Err: err})
		log.WithError(err).Warn("student line skipped")
		return
	}

	key := strconv.FormatInt(sl.ID, 10)
	log = log.WithField("student", key)

	dept, err := l.resolver.Department(ctx, sl.Department)
	l.recordResolution("department", dept, err)
	if err != nil {
		sum.fail(Failure{Line: ln.Number, Key: key, Stage: StageDepartment, Err: err})
		log.WithField("department", sl.Department).WithError(err).Error("student not loaded")
		return
	}

	if err := l.store.UpsertStudent(ctx, sl.Student(dept.ID)); err != nil {
		sum.fail(Failure{Line: ln.Number, Key: key, Stage: StageStudent, Err: err})
		log.WithField("op", "upsert student").WithError(err).Error("student not loaded; marks skipped")
		return
	}
	sum.Loaded++
	log.WithFields(logrus.Fields{"email": sl.Email, "department": sl.Department}).Info("student upserted")

	for _, sk := range sl.Skipped {
		err := &etlerr.ValidationError{Field: fmt.Sprintf("slot %d", sk.Position), Reason: sk.Reason}
		sum.skipMark(Failure{Line: ln.Number, Key: key, Stage: StageSlot, Err: err})
		log.WithField("slot", sk.Position).Warn("mark skipped: " + sk.Reason)
	}
	for _, slot := range sl.Slots {
		l.loadMark(ctx, ln.Number, sl.ID, dept.ID, slot, sum, log)
	}
}

func (l *Loader) loadMark(ctx context.Context, line int, studentID, deptID int64, slot records.Slot, sum *Summary, log logrus.FieldLogger) {
	key := fmt.Sprintf("%d/%s", studentID, slot.Subject)
	log = log.WithFields(logrus.Fields{"slot": slot.Position, "subject": slot.Subject})

	sub, err := l.resolver.Subject(ctx, slot.Subject, deptID)
	l.recordResolution("subject", sub, err)
	if err != nil {
		sum.failMark(Failure{Line: line, Key: key, Stage: StageSubject, Err: err})
		log.WithError(err).Error("mark skipped")
		return
	}

	m := school.Mark{StudentID: studentID, SubjectID: sub.ID, Score: slot.Score}
	if err := l.store.UpsertMark(ctx, m); err != nil {
		sum.failMark(Failure{Line: line, Key: key, Stage: StageMark, Err: err})
		log.WithField("op", "upsert mark").WithError(err).Error("mark not written")
		return
	}
	sum.MarksLoaded++
	log.WithField("score", slot.Score.String()).Debug("mark upserted")
}

func (l *Loader) recordResolution(entity string, res resolve.Resolution, err error) {
	outcome := res.Outcome.String()
	if err != nil {
		outcome = "failed"
	}
	metrics.RecordResolution(l.job, entity, outcome)
}
