// Package migrate moves per-student GPA summaries from the school store into
// the academics store.
package migrate

import (
	"context"
	"fmt"

	"github.com/sirupsen/logrus"

	"studentetl/internal/academics"
	"studentetl/internal/etlerr"
	"studentetl/internal/metrics"
	"studentetl/internal/report"
	"studentetl/internal/school"
)

// Source is the read side of the school store.
type Source interface {
	AcademicRows(ctx context.Context) ([]school.AcademicRow, error)
	GradeBands(ctx context.Context) ([]school.GradeBand, error)
}

// Target is the write side of the academics store.
type Target interface {
	UpsertAcademic(ctx context.Context, r school.AcademicRecord) error
}

// Failure is a record that was not written.
type Failure struct {
	Email string
	Err   error
}

// Result counts a migration. Failed > 0 is a normal outcome.
type Result struct {
	Succeeded int
	Failed    int
	Failures  []Failure

	// Filled by Run from the aggregation step.
	Unclassified int
	MultiMatched int
}

// Migrator copies aggregated records from Source to Target.
type Migrator struct {
	Source Source
	Target Target
	Log    logrus.FieldLogger
	// Job labels metrics.
	Job string
}

// Migrate upserts each record by email. Records with a GPA outside [0, 4]
// fail without a write. One record's failure never stops the others.
func (m *Migrator) Migrate(ctx context.Context, records []school.AcademicRecord) Result {
	log := report.Or(m.Log)
	var res Result
	for _, r := range records {
		rlog := log.WithFields(logrus.Fields{"email": r.Email, "student": r.StudentID})

		if !school.ValidGPA(r.GPA) {
			err := etlerr.Invalid("gpa", r.GPA.String(), "outside 0-4")
			res.fail(r.Email, err)
			rlog.WithError(err).Error("academic record rejected")
			continue
		}
		if err := m.Target.UpsertAcademic(ctx, r); err != nil {
			res.fail(r.Email, err)
			rlog.WithField("op", "upsert academic record").WithError(err).Error("academic record not written")
			continue
		}
		res.Succeeded++
		rlog.WithField("gpa", r.GPA.StringFixed(2)).Info("academic record upserted")
	}
	metrics.RecordRecords(m.Job, "academic", "migrated", res.Succeeded)
	metrics.RecordRecords(m.Job, "academic", "failed", res.Failed)
	return res
}

func (r *Result) fail(email string, err error) {
	r.Failed++
	r.Failures = append(r.Failures, Failure{Email: email, Err: err})
}

// Run reads marks and grade bands from the source, aggregates them and
// migrates the result. Only a failed read is returned as an error.
func (m *Migrator) Run(ctx context.Context) (Result, error) {
	log := report.Or(m.Log)

	bands, err := m.Source.GradeBands(ctx)
	if err != nil {
		return Result{}, fmt.Errorf("read grade bands: %w", err)
	}
	rows, err := m.Source.AcademicRows(ctx)
	if err != nil {
		return Result{}, fmt.Errorf("read academic rows: %w", err)
	}
	log.WithFields(logrus.Fields{"bands": len(bands), "rows": len(rows)}).Info("source read")

	if len(bands) == 0 {
		log.Warn("no grade bands in the school store; every mark is unclassified")
	}
	for _, o := range academics.Overlaps(bands) {
		log.WithFields(logrus.Fields{
			"band_a": o.A.Code, "range_a": o.A.PercentageRange,
			"band_b": o.B.Code, "range_b": o.B.PercentageRange,
		}).Warn("grade bands overlap; marks in both count twice")
	}

	agg := academics.Aggregate(rows, bands)
	for _, b := range agg.BadBands {
		log.WithField("band", b.Band.Code).WithError(b.Err).Warn("grade band ignored")
	}
	if agg.Unclassified > 0 {
		log.WithField("marks", agg.Unclassified).Warn("marks outside every grade band were left out")
	}
	if agg.MultiMatched > 0 {
		log.WithField("marks", agg.MultiMatched).Warn("marks matched more than one grade band")
	}

	res := m.Migrate(ctx, agg.Records)
	res.Unclassified = agg.Unclassified
	res.MultiMatched = agg.MultiMatched

	log.WithFields(logrus.Fields{"succeeded": res.Succeeded, "failed": res.Failed}).Info("migration finished")
	return res, nil
}
