// Package etl wires the loaders, the migrator and the stores into the run
// operations the CLI exposes. Each operation opens the stores it needs,
// releases them on every exit path and records one metrics step.
package etl

import (
	"context"
	"fmt"
	"io"
	"time"

	"github.com/sirupsen/logrus"
	"golang.org/x/sync/errgroup"

	"studentetl/internal/config"
	"studentetl/internal/datasource"
	"studentetl/internal/datasource/file"
	"studentetl/internal/ingest"
	"studentetl/internal/metrics"
	"studentetl/internal/migrate"
	csvparse "studentetl/internal/parser/csv"
	"studentetl/internal/report"
	"studentetl/internal/resolve"
	"studentetl/internal/storage"
)

// Seams for tests.
var (
	openSchool    = storage.OpenSchool
	openAcademics = storage.OpenAcademics
)

// roleStore is what both store roles share.
type roleStore interface {
	storage.Schema
	Clear(ctx context.Context) ([]storage.TableCount, error)
	Counts(ctx context.Context) ([]storage.TableCount, error)
	Close() error
}

func storeConfig(s config.Store) storage.Config {
	return storage.Config{Kind: s.Kind, DSN: s.DSN}
}

func jobName(job config.Job) string {
	if job.Job == "" {
		return config.DefaultJob
	}
	return job.Job
}

// RunGradeLoad loads the grade-band file at path (or the job's grades_path)
// into the school store.
func RunGradeLoad(ctx context.Context, job config.Job, path string, log logrus.FieldLogger) (sum ingest.Summary, err error) {
	defer recordStep(job, "grades", time.Now(), &err)
	return runLoad(ctx, job, "grades", pick(path, job.Inputs.GradesPath), report.Or(log),
		func(l *ingest.Loader, r io.Reader) (ingest.Summary, error) { return l.LoadGrades(ctx, r) })
}

// RunStudentLoad loads the student file at path (or the job's
// students_path) into the school store and logs per-table counts
// afterwards.
func RunStudentLoad(ctx context.Context, job config.Job, path string, log logrus.FieldLogger) (sum ingest.Summary, err error) {
	defer recordStep(job, "students", time.Now(), &err)
	return runLoad(ctx, job, "students", pick(path, job.Inputs.StudentsPath), report.Or(log),
		func(l *ingest.Loader, r io.Reader) (ingest.Summary, error) { return l.LoadStudents(ctx, r) })
}

func pick(path, fallback string) string {
	if path != "" {
		return path
	}
	return fallback
}

func runLoad(
	ctx context.Context,
	job config.Job,
	kind, path string,
	log logrus.FieldLogger,
	load func(*ingest.Loader, io.Reader) (ingest.Summary, error),
) (ingest.Summary, error) {
	if path == "" {
		return ingest.Summary{}, fmt.Errorf("%s: no input file given", kind)
	}
	log = log.WithFields(logrus.Fields{"job": jobName(job), "input": path})

	school, err := openSchool(ctx, storeConfig(job.Stores.School))
	if err != nil {
		log.WithError(err).Error("connection failed")
		return ingest.Summary{}, err
	}
	defer closeStore(log, storage.RoleSchool, school)

	var src datasource.Source = file.NewLocal(path)
	rc, err := src.Open(ctx)
	if err != nil {
		log.WithError(err).Error("input unreadable")
		return ingest.Summary{}, err
	}
	defer rc.Close()

	resolver := resolve.New(school, resolve.NewCache())
	loader := ingest.New(school, resolver, log,
		ingest.WithParseOptions(csvparse.OptionsFrom(job.Parser.Options)),
		ingest.WithJob(jobName(job)),
	)

	fp := datasource.NewFingerprint(rc)
	log.Infof("%s load started", kind)
	sum, err := load(loader, fp)
	departments, subjects := resolver.Cache().Len()
	log.WithFields(logrus.Fields{
		"fingerprint": fp.Sum(),
		"bytes":       fp.Bytes(),
		"departments": departments,
		"subjects":    subjects,
	}).Infof("%s input read", kind)
	if err != nil {
		log.WithError(err).Errorf("%s load aborted", kind)
		return sum, err
	}

	if kind == "students" {
		logCounts(ctx, log, storage.RoleSchool, school)
	}
	return sum, nil
}

// RunMigration aggregates per-student GPAs from the school store and
// upserts them into the academics store. Both stores are opened
// concurrently; if either fails the other is closed.
func RunMigration(ctx context.Context, job config.Job, log logrus.FieldLogger) (res migrate.Result, err error) {
	defer recordStep(job, "migrate", time.Now(), &err)
	log = report.Or(log).WithField("job", jobName(job))

	source, target, err := openBoth(ctx, job)
	if err != nil {
		log.WithError(err).Error("connection failed")
		return migrate.Result{}, err
	}
	defer closeStore(log, storage.RoleAcademics, target)
	defer closeStore(log, storage.RoleSchool, source)

	m := &migrate.Migrator{Source: source, Target: target, Log: log, Job: jobName(job)}
	return m.Run(ctx)
}

func openBoth(ctx context.Context, job config.Job) (storage.SchoolRepository, storage.AcademicsRepository, error) {
	var (
		source storage.SchoolRepository
		target storage.AcademicsRepository
	)
	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		s, err := openSchool(gctx, storeConfig(job.Stores.School))
		if err != nil {
			return err
		}
		source = s
		return nil
	})
	g.Go(func() error {
		a, err := openAcademics(gctx, storeConfig(job.Stores.Academics))
		if err != nil {
			return err
		}
		target = a
		return nil
	})
	if err := g.Wait(); err != nil {
		if source != nil {
			_ = source.Close()
		}
		if target != nil {
			_ = target.Close()
		}
		return nil, nil, err
	}
	return source, target, nil
}

// RunCleanup deletes every row of the role's store and returns the
// deleted rows per table.
func RunCleanup(ctx context.Context, job config.Job, role storage.Role, log logrus.FieldLogger) (counts []storage.TableCount, err error) {
	defer recordStep(job, "cleanup_"+string(role), time.Now(), &err)
	err = withStore(ctx, job, role, log, func(log logrus.FieldLogger, s roleStore) error {
		var cerr error
		counts, cerr = s.Clear(ctx)
		for _, c := range counts {
			log.WithFields(logrus.Fields{"table": c.Table, "rows": c.Rows}).Info("rows deleted")
		}
		return cerr
	})
	return counts, err
}

// RunCreateSchema creates the role's tables when missing.
func RunCreateSchema(ctx context.Context, job config.Job, role storage.Role, log logrus.FieldLogger) (err error) {
	defer recordStep(job, "schema_create_"+string(role), time.Now(), &err)
	return withStore(ctx, job, role, log, func(log logrus.FieldLogger, s roleStore) error {
		if err := s.EnsureSchema(ctx); err != nil {
			return err
		}
		log.Info("schema created")
		return nil
	})
}

// RunDropSchema drops the role's tables.
func RunDropSchema(ctx context.Context, job config.Job, role storage.Role, log logrus.FieldLogger) (err error) {
	defer recordStep(job, "schema_drop_"+string(role), time.Now(), &err)
	return withStore(ctx, job, role, log, func(log logrus.FieldLogger, s roleStore) error {
		if err := s.DropSchema(ctx); err != nil {
			return err
		}
		log.Info("schema dropped")
		return nil
	})
}

// RunCounts returns the row count of every table in the role's store.
func RunCounts(ctx context.Context, job config.Job, role storage.Role, log logrus.FieldLogger) (counts []storage.TableCount, err error) {
	defer recordStep(job, "counts_"+string(role), time.Now(), &err)
	err = withStore(ctx, job, role, log, func(log logrus.FieldLogger, s roleStore) error {
		var cerr error
		counts, cerr = s.Counts(ctx)
		if cerr == nil {
			for _, c := range counts {
				log.WithFields(logrus.Fields{"table": c.Table, "rows": c.Rows}).Info("record count")
			}
		}
		return cerr
	})
	return counts, err
}

func withStore(
	ctx context.Context,
	job config.Job,
	role storage.Role,
	log logrus.FieldLogger,
	fn func(logrus.FieldLogger, roleStore) error,
) error {
	log = report.Or(log).WithFields(logrus.Fields{"job": jobName(job), "store": string(role)})
	s, err := openRole(ctx, job, role)
	if err != nil {
		log.WithError(err).Error("connection failed")
		return err
	}
	defer closeStore(log, role, s)

	if err := fn(log, s); err != nil {
		log.WithError(err).Error("operation failed")
		return err
	}
	return nil
}

func openRole(ctx context.Context, job config.Job, role storage.Role) (roleStore, error) {
	switch role {
	case storage.RoleSchool:
		s, err := openSchool(ctx, storeConfig(job.Stores.School))
		if err != nil {
			return nil, err
		}
		return s, nil
	case storage.RoleAcademics:
		a, err := openAcademics(ctx, storeConfig(job.Stores.Academics))
		if err != nil {
			return nil, err
		}
		return a, nil
	default:
		return nil, fmt.Errorf("unknown store %q", role)
	}
}

func logCounts(ctx context.Context, log logrus.FieldLogger, role storage.Role, s roleStore) {
	counts, err := s.Counts(ctx)
	if err != nil {
		log.WithError(err).WithField("store", string(role)).Warn("record counts unavailable")
		return
	}
	for _, c := range counts {
		log.WithFields(logrus.Fields{"store": string(role), "table": c.Table, "rows": c.Rows}).Info("record count")
	}
}

// closeStore closes c and logs the outcome. Close errors never fail a run.
func closeStore(log logrus.FieldLogger, role storage.Role, c io.Closer) {
	l := log.WithField("store", string(role))
	if err := c.Close(); err != nil {
		l.WithError(err).Error("failed to close")
		return
	}
	l.Info("connection closed")
}

func recordStep(job config.Job, step string, start time.Time, err *error) {
	metrics.RecordStep(jobName(job), step, *err, time.Since(start))
}

