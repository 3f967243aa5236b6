package postgres

import (
	"context"
	"errors"
	"fmt"
	"strconv"

	"github.com/jackc/pgx/v5"
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

var (
	upsertGradeSQL      = upsertSQL("grade", gradeCols, []string{"id"})
	upsertStudentSQL    = upsertSQL("students", studentCols, []string{"id"})
	upsertMarkSQL       = upsertSQL("marks", markCols, []string{"student_id", "subject_id"})
	insertDepartmentSQL = insertKeySQL("departments", []string{"name"}, "name")
	insertSubjectSQL    = insertKeySQL("subjects", []string{"name", "dept_id"}, "name")
)

const (
	findDepartmentSQL = `SELECT "id" FROM "departments" WHERE "name" = $1`
	findSubjectSQL    = `SELECT "id" FROM "subjects" WHERE "name" = $1`

	academicRowsSQL = `SELECT s."id" AS student_id, s."first_name" AS first_name, s."last_name" AS last_name,
       s."email" AS email, d."name" AS department,
       to_char(s."joining_date", 'YYYY-MM-DD') AS joining_date, m."score"::text AS score
FROM "students" s
JOIN "departments" d ON d."id" = s."dept_id"
JOIN "marks" m ON m."student_id" = s."id"
ORDER BY s."id", m."subject_id"`

	gradeBandsSQL = `SELECT "id", "code", "label", "percentage_range", "gpa_equivalent"::text AS gpa_equivalent
FROM "grade" ORDER BY "id"`
)

// School is a storage.SchoolRepository on a pgx pool.
type School struct {
	db      querier
	closeFn func()
}

var _ storage.SchoolRepository = (*School)(nil)

func (s *School) EnsureSchema(ctx context.Context) error { return execAll(ctx, s.db, schoolDDL) }

func (s *School) DropSchema(ctx context.Context) error {
	return dropAll(ctx, s.db, storage.SchoolTables)
}

func (s *School) UpsertGrade(ctx context.Context, g school.GradeBand) error {
	_, err := s.db.Exec(ctx, upsertGradeSQL, g.ID, g.Code, g.Label, g.PercentageRange, g.GPAEquivalent.String())
	if err != nil {
		return &etlerr.WriteError{Op: "upsert grade", Key: strconv.FormatInt(g.ID, 10), Err: withDetail(err)}
	}
	return nil
}

func (s *School) UpsertStudent(ctx context.Context, st school.Student) error {
	_, err := s.db.Exec(ctx, upsertStudentSQL,
		st.ID, st.FirstName, st.LastName, st.Email, st.DepartmentID, school.FormatDate(st.JoiningDate))
	if err != nil {
		return &etlerr.WriteError{Op: "upsert student", Key: strconv.FormatInt(st.ID, 10), Err: withDetail(err)}
	}
	return nil
}

func (s *School) UpsertMark(ctx context.Context, m school.Mark) error {
	_, err := s.db.Exec(ctx, upsertMarkSQL, m.StudentID, m.SubjectID, m.Score.String())
	if err != nil {
		return &etlerr.WriteError{Op: "upsert mark", Key: fmt.Sprintf("%d/%d", m.StudentID, m.SubjectID), Err: withDetail(err)}
	}
	return nil
}

func (s *School) InsertDepartment(ctx context.Context, name string) (storage.KeyResult, error) {
	kr, err := s.insertKey(ctx, insertDepartmentSQL, name)
	if err != nil {
		return storage.KeyResult{}, &etlerr.WriteError{Op: "insert department", Key: name, Err: withDetail(err)}
	}
	return kr, nil
}

func (s *School) FindDepartment(ctx context.Context, name string) (int64, bool, error) {
	return s.findKey(ctx, findDepartmentSQL, name)
}

func (s *School) InsertSubject(ctx context.Context, name string, departmentID int64) (storage.KeyResult, error) {
	kr, err := s.insertKey(ctx, insertSubjectSQL, name, departmentID)
	if err != nil {
		return storage.KeyResult{}, &etlerr.WriteError{Op: "insert subject", Key: name, Err: withDetail(err)}
	}
	return kr, nil
}

func (s *School) FindSubject(ctx context.Context, name string) (int64, bool, error) {
	return s.findKey(ctx, findSubjectSQL, name)
}

func (s *School) insertKey(ctx context.Context, q string, args ...any) (storage.KeyResult, error) {
	var kr storage.KeyResult
	if err := s.db.QueryRow(ctx, q, args...).Scan(&kr.ID, &kr.Created); err != nil {
		return storage.KeyResult{}, err
	}
	return kr, nil
}

func (s *School) findKey(ctx context.Context, q, name string) (int64, bool, error) {
	var id int64
	err := s.db.QueryRow(ctx, q, name).Scan(&id)
	switch {
	case errors.Is(err, pgx.ErrNoRows):
		return 0, false, nil
	case err != nil:
		return 0, false, err
	}
	return id, true, nil
}

type academicRowText struct {
	StudentID   int64  `db:"student_id"`
	FirstName   string `db:"first_name"`
	LastName    string `db:"last_name"`
	Email       string `db:"email"`
	Department  string `db:"department"`
	JoiningDate string `db:"joining_date"`
	Score       string `db:"score"`
}

func (s *School) AcademicRows(ctx context.Context) ([]school.AcademicRow, error) {
	rows, err := s.db.Query(ctx, academicRowsSQL)
	if err != nil {
		return nil, fmt.Errorf("postgres: select academic rows: %w", err)
	}
	texts, err := pgx.CollectRows(rows, pgx.RowToStructByName[academicRowText])
	if err != nil {
		return nil, fmt.Errorf("postgres: scan academic rows: %w", err)
	}
	out := make([]school.AcademicRow, 0, len(texts))
	for _, r := range texts {
		row, err := r.toRow()
		if err != nil {
			return nil, err
		}
		out = append(out, row)
	}
	return out, nil
}

func (r academicRowText) toRow() (school.AcademicRow, error) {
	joined, ok := school.ParseDate(r.JoiningDate)
	if !ok {
		return school.AcademicRow{}, fmt.Errorf("postgres: student %d has unreadable joining_date %q", r.StudentID, r.JoiningDate)
	}
	score, err := decimal.NewFromString(r.Score)
	if err != nil {
		return school.AcademicRow{}, fmt.Errorf("postgres: student %d score %q: %w", r.StudentID, r.Score, err)
	}
	return school.AcademicRow{
		StudentID:   r.StudentID,
		FirstName:   r.FirstName,
		LastName:    r.LastName,
		Email:       r.Email,
		Department:  r.Department,
		JoiningDate: joined,
		Score:       score,
	}, nil
}

type gradeText struct {
	ID              int64  `db:"id"`
	Code            string `db:"code"`
	Label           string `db:"label"`
	PercentageRange string `db:"percentage_range"`
	GPAEquivalent   string `db:"gpa_equivalent"`
}

func (s *School) GradeBands(ctx context.Context) ([]school.GradeBand, error) {
	rows, err := s.db.Query(ctx, gradeBandsSQL)
	if err != nil {
		return nil, fmt.Errorf("postgres: select grade bands: %w", err)
	}
	texts, err := pgx.CollectRows(rows, pgx.RowToStructByName[gradeText])
	if err != nil {
		return nil, fmt.Errorf("postgres: scan grade bands: %w", err)
	}
	out := make([]school.GradeBand, len(texts))
	for i, g := range texts {
		gpa, err := decimal.NewFromString(g.GPAEquivalent)
		if err != nil {
			return nil, fmt.Errorf("postgres: grade %d gpa_equivalent %q: %w", g.ID, g.GPAEquivalent, err)
		}
		out[i] = school.GradeBand{
			ID:              g.ID,
			Code:            g.Code,
			Label:           g.Label,
			PercentageRange: g.PercentageRange,
			GPAEquivalent:   gpa,
		}
	}
	return out, nil
}

func (s *School) Clear(ctx context.Context) ([]storage.TableCount, error) {
	return deleteAll(ctx, s.db, storage.SchoolTables)
}

func (s *School) Counts(ctx context.Context) ([]storage.TableCount, error) {
	return countAll(ctx, s.db, storage.SchoolTables)
}

// Close releases the pool.
func (s *School) Close() error {
	if s.closeFn != nil {
		s.closeFn()
	}
	return nil
}
