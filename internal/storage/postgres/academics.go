package postgres

import (
	"context"
	"fmt"

	"github.com/jackc/pgx/v5"
	"github.com/shopspring/decimal"

	"studentetl/internal/etlerr"
	"studentetl/internal/school"
	"studentetl/internal/storage"
)

var academicCols = []string{"first_name", "last_name", "email", "department", "joining_date", "gpa"}

var upsertAcademicSQL = upsertSQL("student_academics", academicCols, []string{"email"})

const listAcademicsSQL = `SELECT "id", "first_name", "last_name", "email", "department",
       to_char("joining_date", 'YYYY-MM-DD') AS joining_date, "gpa"::text AS gpa
FROM "student_academics" ORDER BY "id"`

// Academics is a storage.AcademicsRepository on a pgx pool.
type Academics struct {
	db      querier
	closeFn func()
}

var _ storage.AcademicsRepository = (*Academics)(nil)

func (a *Academics) EnsureSchema(ctx context.Context) error { return execAll(ctx, a.db, academicsDDL) }

func (a *Academics) DropSchema(ctx context.Context) error {
	return dropAll(ctx, a.db, storage.AcademicsTables)
}

func (a *Academics) UpsertAcademic(ctx context.Context, r school.AcademicRecord) error {
	_, err := a.db.Exec(ctx, upsertAcademicSQL,
		r.FirstName, r.LastName, r.Email, r.Department, school.FormatDate(r.JoiningDate), r.GPA.String())
	if err != nil {
		return &etlerr.WriteError{Op: "upsert academic record", Key: r.Email, Err: withDetail(err)}
	}
	return nil
}

type academicText struct {
	ID          int64  `db:"id"`
	FirstName   string `db:"first_name"`
	LastName    string `db:"last_name"`
	Email       string `db:"email"`
	Department  string `db:"department"`
	JoiningDate string `db:"joining_date"`
	GPA         string `db:"gpa"`
}

func (a *Academics) ListAcademics(ctx context.Context) ([]school.AcademicRecord, error) {
	rows, err := a.db.Query(ctx, listAcademicsSQL)
	if err != nil {
		return nil, fmt.Errorf("postgres: select academic records: %w", err)
	}
	texts, err := pgx.CollectRows(rows, pgx.RowToStructByName[academicText])
	if err != nil {
		return nil, fmt.Errorf("postgres: scan academic records: %w", err)
	}
	out := make([]school.AcademicRecord, 0, len(texts))
	for _, r := range texts {
		joined, ok := school.ParseDate(r.JoiningDate)
		if !ok {
			return nil, fmt.Errorf("postgres: record %s has unreadable joining_date %q", r.Email, r.JoiningDate)
		}
		gpa, err := decimal.NewFromString(r.GPA)
		if err != nil {
			return nil, fmt.Errorf("postgres: record %s gpa %q: %w", r.Email, r.GPA, err)
		}
		out = append(out, school.AcademicRecord{
			ID:          r.ID,
			FirstName:   r.FirstName,
			LastName:    r.LastName,
			Email:       r.Email,
			Department:  r.Department,
			JoiningDate: joined,
			GPA:         gpa,
		})
	}
	return out, nil
}

func (a *Academics) Clear(ctx context.Context) ([]storage.TableCount, error) {
	return deleteAll(ctx, a.db, storage.AcademicsTables)
}

func (a *Academics) Counts(ctx context.Context) ([]storage.TableCount, error) {
	return countAll(ctx, a.db, storage.AcademicsTables)
}

// Close releases the pool.
func (a *Academics) Close() error {
	if a.closeFn != nil {
		a.closeFn()
	}
	return nil
}
