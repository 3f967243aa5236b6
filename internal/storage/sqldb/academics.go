package sqldb

import (
	"context"
	"fmt"
	"strings"

	"github.com/jmoiron/sqlx"
	"github.com/shopspring/decimal"

	"studentetl/internal/etlerr"
	"studentetl/internal/school"
	"studentetl/internal/storage"
)

var academicCols = []string{"first_name", "last_name", "email", "department", "joining_date", "gpa"}

// Academics is a storage.AcademicsRepository over database/sql.
type Academics struct {
	db     *sqlx.DB
	d      Dialect
	upsert string
	list   string
}

var _ storage.AcademicsRepository = (*Academics)(nil)

// NewAcademics builds the academics repository for d. It takes ownership of db.
func NewAcademics(db *sqlx.DB, d Dialect) (*Academics, error) {
	if err := d.validate(); err != nil {
		return nil, err
	}
	q := d.Quote
	return &Academics{
		db:     db,
		d:      d,
		upsert: sqlx.Rebind(d.Bind, d.Upsert("student_academics", academicCols, []string{"email"})),
		list: fmt.Sprintf("SELECT %s, %s, %s, %s, %s, %s AS joining_date, %s FROM %s ORDER BY %s",
			q("id"), q("first_name"), q("last_name"), q("email"), q("department"),
			d.DateText(q("joining_date")), q("gpa"), q("student_academics"), q("id")),
	}, nil
}

func (a *Academics) EnsureSchema(ctx context.Context) error {
	return execAll(ctx, a.db, a.d.AcademicsDDL)
}

func (a *Academics) DropSchema(ctx context.Context) error {
	return dropAll(ctx, a.db, a.d.Quote, storage.AcademicsTables)
}

func (a *Academics) UpsertAcademic(ctx context.Context, r school.AcademicRecord) error {
	_, err := a.db.ExecContext(ctx, a.upsert,
		r.FirstName, r.LastName, r.Email, r.Department, school.FormatDate(r.JoiningDate), r.GPA)
	if err != nil {
		return &etlerr.WriteError{Op: "upsert academic record", Key: r.Email, Err: err}
	}
	return nil
}

type academicDTO struct {
	ID          int64           `db:"id"`
	FirstName   string          `db:"first_name"`
	LastName    string          `db:"last_name"`
	Email       string          `db:"email"`
	Department  string          `db:"department"`
	JoiningDate string          `db:"joining_date"`
	GPA         decimal.Decimal `db:"gpa"`
}

func (a *Academics) ListAcademics(ctx context.Context) ([]school.AcademicRecord, error) {
	var dtos []academicDTO
	if err := a.db.SelectContext(ctx, &dtos, a.list); err != nil {
		return nil, fmt.Errorf("%s: select academic records: %w", a.d.Name, err)
	}
	out := make([]school.AcademicRecord, 0, len(dtos))
	for _, r := range dtos {
		joined, ok := school.ParseDate(strings.TrimSpace(r.JoiningDate))
		if !ok {
			return nil, fmt.Errorf("%s: record %s has unreadable joining_date %q", a.d.Name, r.Email, r.JoiningDate)
		}
		out = append(out, school.AcademicRecord{
			ID:          r.ID,
			FirstName:   r.FirstName,
			LastName:    r.LastName,
			Email:       r.Email,
			Department:  r.Department,
			JoiningDate: joined,
			GPA:         r.GPA,
		})
	}
	return out, nil
}

func (a *Academics) Clear(ctx context.Context) ([]storage.TableCount, error) {
	return deleteAll(ctx, a.db, a.d.Quote, storage.AcademicsTables)
}

func (a *Academics) Counts(ctx context.Context) ([]storage.TableCount, error) {
	return countAll(ctx, a.db, a.d.Quote, storage.AcademicsTables)
}

func (a *Academics) Close() error { return a.db.Close() }
