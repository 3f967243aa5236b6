package sqldb

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"strconv"
	"strings"

	"github.com/jmoiron/sqlx"
	"github.com/shopspring/decimal"

	"studentetl/internal/etlerr"
	"studentetl/internal/school"
	"studentetl/internal/storage"
)

var (
	gradeCols   = []string{"id", "code", "label", "percentage_range", "gpa_equivalent"}
	studentCols = []string{"id", "first_name", "last_name", "email", "dept_id", "joining_date"}
	markCols    = []string{"student_id", "subject_id", "score"}
)

type schoolQueries struct {
	upsertGrade, upsertStudent, upsertMark string
	insertDepartment, findDepartment       string
	insertSubject, findSubject             string
	academicRows, gradeBands               string
}

// School is a storage.SchoolRepository over database/sql.
type School struct {
	db *sqlx.DB
	d  Dialect
	q  schoolQueries
}

var _ storage.SchoolRepository = (*School)(nil)

// NewSchool builds the school repository for d. It takes ownership of db.
func NewSchool(db *sqlx.DB, d Dialect) (*School, error) {
	if err := d.validate(); err != nil {
		return nil, err
	}
	q := d.Quote
	rb := func(s string) string { return sqlx.Rebind(d.Bind, s) }

	return &School{db: db, d: d, q: schoolQueries{
		upsertGrade:      rb(d.Upsert("grade", gradeCols, []string{"id"})),
		upsertStudent:    rb(d.Upsert("students", studentCols, []string{"id"})),
		upsertMark:       rb(d.Upsert("marks", markCols, []string{"student_id", "subject_id"})),
		insertDepartment: rb(d.InsertKey("departments", []string{"name"}, "name")),
		findDepartment:   rb(fmt.Sprintf("SELECT %s FROM %s WHERE %s = ?", q("id"), q("departments"), q("name"))),
		insertSubject:    rb(d.InsertKey("subjects", []string{"name", "dept_id"}, "name")),
		findSubject:      rb(fmt.Sprintf("SELECT %s FROM %s WHERE %s = ?", q("id"), q("subjects"), q("name"))),
		academicRows: fmt.Sprintf(`SELECT s.%[1]s AS student_id, s.%[2]s AS first_name, s.%[3]s AS last_name,
       s.%[4]s AS email, d.%[5]s AS department, %[6]s AS joining_date, m.%[7]s AS score
FROM %[8]s s
JOIN %[9]s d ON d.%[1]s = s.%[10]s
JOIN %[11]s m ON m.%[12]s = s.%[1]s
ORDER BY s.%[1]s, m.%[13]s`,
			q("id"), q("first_name"), q("last_name"), q("email"), q("name"),
			d.DateText("s."+q("joining_date")), q("score"),
			q("students"), q("departments"), q("dept_id"), q("marks"),
			q("student_id"), q("subject_id")),
		gradeBands: fmt.Sprintf("SELECT %s FROM %s ORDER BY %s",
			strings.Join(QuoteAll(q, gradeCols), ", "), q("grade"), q("id")),
	}}, nil
}

// EnsureSchema creates the normalized tables if they do not exist.
func (s *School) EnsureSchema(ctx context.Context) error {
	return execAll(ctx, s.db, s.d.SchoolDDL)
}

// DropSchema drops the normalized tables, children first.
func (s *School) DropSchema(ctx context.Context) error {
	return dropAll(ctx, s.db, s.d.Quote, storage.SchoolTables)
}

func (s *School) UpsertGrade(ctx context.Context, g school.GradeBand) error {
	_, err := s.db.ExecContext(ctx, s.q.upsertGrade, g.ID, g.Code, g.Label, g.PercentageRange, g.GPAEquivalent)
	if err != nil {
		return &etlerr.WriteError{Op: "upsert grade", Key: strconv.FormatInt(g.ID, 10), Err: err}
	}
	return nil
}

func (s *School) UpsertStudent(ctx context.Context, st school.Student) error {
	_, err := s.db.ExecContext(ctx, s.q.upsertStudent,
		st.ID, st.FirstName, st.LastName, st.Email, st.DepartmentID, school.FormatDate(st.JoiningDate))
	if err != nil {
		return &etlerr.WriteError{Op: "upsert student", Key: strconv.FormatInt(st.ID, 10), Err: err}
	}
	return nil
}

func (s *School) UpsertMark(ctx context.Context, m school.Mark) error {
	_, err := s.db.ExecContext(ctx, s.q.upsertMark, m.StudentID, m.SubjectID, m.Score)
	if err != nil {
		return &etlerr.WriteError{Op: "upsert mark", Key: fmt.Sprintf("%d/%d", m.StudentID, m.SubjectID), Err: err}
	}
	return nil
}

func (s *School) InsertDepartment(ctx context.Context, name string) (storage.KeyResult, error) {
	kr, err := s.insertKey(ctx, s.q.insertDepartment, name)
	if err != nil {
		return storage.KeyResult{}, &etlerr.WriteError{Op: "insert department", Key: name, Err: err}
	}
	return kr, nil
}

func (s *School) FindDepartment(ctx context.Context, name string) (int64, bool, error) {
	return s.findKey(ctx, s.q.findDepartment, name)
}

func (s *School) InsertSubject(ctx context.Context, name string, departmentID int64) (storage.KeyResult, error) {
	kr, err := s.insertKey(ctx, s.q.insertSubject, name, departmentID)
	if err != nil {
		return storage.KeyResult{}, &etlerr.WriteError{Op: "insert subject", Key: name, Err: err}
	}
	return kr, nil
}

func (s *School) FindSubject(ctx context.Context, name string) (int64, bool, error) {
	return s.findKey(ctx, s.q.findSubject, name)
}

func (s *School) insertKey(ctx context.Context, q string, args ...any) (storage.KeyResult, error) {
	if s.d.Keys == KeyLastInsertID {
		res, err := s.db.ExecContext(ctx, q, args...)
		if err != nil {
			return storage.KeyResult{}, err
		}
		id, err := res.LastInsertId()
		if err != nil || id == 0 {
			return storage.KeyResult{}, nil
		}
		n, _ := res.RowsAffected()
		return storage.KeyResult{ID: id, Created: n == 1}, nil
	}

	var id int64
	err := s.db.QueryRowxContext(ctx, q, args...).Scan(&id)
	switch {
	case errors.Is(err, sql.ErrNoRows):
		return storage.KeyResult{}, nil
	case err != nil:
		return storage.KeyResult{}, err
	}
	return storage.KeyResult{ID: id, Created: true}, nil
}

func (s *School) findKey(ctx context.Context, q, name string) (int64, bool, error) {
	var id int64
	err := s.db.GetContext(ctx, &id, q, name)
	switch {
	case errors.Is(err, sql.ErrNoRows):
		return 0, false, nil
	case err != nil:
		return 0, false, err
	}
	return id, true, nil
}

type academicRowDTO struct {
	StudentID   int64           `db:"student_id"`
	FirstName   string          `db:"first_name"`
	LastName    string          `db:"last_name"`
	Email       string          `db:"email"`
	Department  string          `db:"department"`
	JoiningDate string          `db:"joining_date"`
	Score       decimal.Decimal `db:"score"`
}

func (s *School) AcademicRows(ctx context.Context) ([]school.AcademicRow, error) {
	var dtos []academicRowDTO
	if err := s.db.SelectContext(ctx, &dtos, s.q.academicRows); err != nil {
		return nil, fmt.Errorf("%s: select academic rows: %w", s.d.Name, err)
	}
	out := make([]school.AcademicRow, 0, len(dtos))
	for _, r := range dtos {
		joined, ok := school.ParseDate(strings.TrimSpace(r.JoiningDate))
		if !ok {
			return nil, fmt.Errorf("%s: student %d has unreadable joining_date %q", s.d.Name, r.StudentID, r.JoiningDate)
		}
		out = append(out, school.AcademicRow{
			StudentID:   r.StudentID,
			FirstName:   r.FirstName,
			LastName:    r.LastName,
			Email:       r.Email,
			Department:  r.Department,
			JoiningDate: joined,
			Score:       r.Score,
		})
	}
	return out, nil
}

type gradeDTO struct {
	ID              int64           `db:"id"`
	Code            string          `db:"code"`
	Label           string          `db:"label"`
	PercentageRange string          `db:"percentage_range"`
	GPAEquivalent   decimal.Decimal `db:"gpa_equivalent"`
}

func (s *School) GradeBands(ctx context.Context) ([]school.GradeBand, error) {
	var dtos []gradeDTO
	if err := s.db.SelectContext(ctx, &dtos, s.q.gradeBands); err != nil {
		return nil, fmt.Errorf("%s: select grade bands: %w", s.d.Name, err)
	}
	out := make([]school.GradeBand, len(dtos))
	for i, g := range dtos {
		out[i] = school.GradeBand(g)
	}
	return out, nil
}

func (s *School) Clear(ctx context.Context) ([]storage.TableCount, error) {
	return deleteAll(ctx, s.db, s.d.Quote, storage.SchoolTables)
}

func (s *School) Counts(ctx context.Context) ([]storage.TableCount, error) {
	return countAll(ctx, s.db, s.d.Quote, storage.SchoolTables)
}

func (s *School) Close() error { return s.db.Close() }
