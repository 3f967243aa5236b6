package ingest

import (
	"context"
	"errors"
	"strings"
	"testing"

	"github.com/shopspring/decimal"
	"github.com/sirupsen/logrus"
	"github.com/sirupsen/logrus/hooks/test"

	"studentetl/internal/etlerr"
	"studentetl/internal/resolve"
	"studentetl/internal/school"
	"studentetl/internal/storage"
)

var errRejected = errors.New("rejected by store")

// fakeStore is an in-memory school store: the Store the loader writes to and
// the resolve.Repository behind the resolver.
type fakeStore struct {
	grades   map[int64]school.GradeBand
	students map[int64]school.Student
	marks    map[[2]int64]decimal.Decimal
	depts    map[string]int64
	subjects map[string]int64
	next     int64

	failGrade   map[int64]bool
	failStudent map[int64]bool
	failSubject map[int64]bool // mark writes for this subject id fail
	brokenDept  map[string]bool

	studentCalls, markCalls, deptInserts int
}

func newFakeStore() *fakeStore {
	return &fakeStore{
		grades:      map[int64]school.GradeBand{},
		students:    map[int64]school.Student{},
		marks:       map[[2]int64]decimal.Decimal{},
		depts:       map[string]int64{},
		subjects:    map[string]int64{},
		failGrade:   map[int64]bool{},
		failStudent: map[int64]bool{},
		failSubject: map[int64]bool{},
		brokenDept:  map[string]bool{},
	}
}

func (f *fakeStore) UpsertGrade(_ context.Context, g school.GradeBand) error {
	if f.failGrade[g.ID] {
		return &etlerr.WriteError{Op: "upsert grade", Err: errRejected}
	}
	f.grades[g.ID] = g
	return nil
}

func (f *fakeStore) UpsertStudent(_ context.Context, s school.Student) error {
	f.studentCalls++
	if f.failStudent[s.ID] {
		return &etlerr.WriteError{Op: "upsert student", Err: errRejected}
	}
	f.students[s.ID] = s
	return nil
}

func (f *fakeStore) UpsertMark(_ context.Context, m school.Mark) error {
	f.markCalls++
	if f.failSubject[m.SubjectID] {
		return &etlerr.WriteError{Op: "upsert mark", Err: errRejected}
	}
	f.marks[[2]int64{m.StudentID, m.SubjectID}] = m.Score
	return nil
}

func (f *fakeStore) getOrCreate(m map[string]int64, name string) storage.KeyResult {
	if id, ok := m[name]; ok {
		return storage.KeyResult{ID: id}
	}
	f.next++
	m[name] = f.next
	return storage.KeyResult{ID: f.next, Created: true}
}

func (f *fakeStore) InsertDepartment(_ context.Context, name string) (storage.KeyResult, error) {
	f.deptInserts++
	if f.brokenDept[name] {
		return storage.KeyResult{}, errRejected
	}
	return f.getOrCreate(f.depts, name), nil
}

func (f *fakeStore) FindDepartment(_ context.Context, name string) (int64, bool, error) {
	id, ok := f.depts[name]
	return id, ok, nil
}

func (f *fakeStore) InsertSubject(_ context.Context, name string, _ int64) (storage.KeyResult, error) {
	return f.getOrCreate(f.subjects, name), nil
}

func (f *fakeStore) FindSubject(_ context.Context, name string) (int64, bool, error) {
	id, ok := f.subjects[name]
	return id, ok, nil
}

func newLoader(store *fakeStore) (*Loader, *test.Hook) {
	log, hook := test.NewNullLogger()
	log.SetLevel(logrus.DebugLevel)
	return New(store, resolve.New(store, resolve.NewCache()), log, WithJob("test")), hook
}

const studentHeader = "id,first_name,last_name,email,department,joining_date,s1,s2,s3,s4,s5,m1,m2,m3,m4,m5\n"

func TestLoadGrades_FoldsOutcomes(t *testing.T) {
	t.Parallel()

	store := newFakeStore()
	store.failGrade[3] = true
	l, _ := newLoader(store)

	input := "id,code,label,percentage_range,gpa_equivalent\n" +
		"1,A,Excellent,80-100,4.0\n" +
		"\n" +
		"2,B,,60-79,3.0\n" + // missing label
		"3,C,Average,40-59,2.0\n" + // store rejects
		"4,D,Poor,0-39,1.0,extra\n" + // too many fields
		"1,A,Outstanding,80-100,4.0\n" // same id again: overwrite

	sum, err := l.LoadGrades(context.Background(), strings.NewReader(input))
	if err != nil {
		t.Fatalf("LoadGrades: %v", err)
	}
	if sum.Lines != 5 || sum.Blank != 1 || sum.Loaded != 2 || sum.Skipped != 2 || sum.Failed != 1 {
		t.Fatalf("summary = %+v", sum)
	}
	if len(sum.Failures) != 3 {
		t.Fatalf("failures = %+v", sum.Failures)
	}
	if f := sum.Failures[1]; f.Line != 5 || f.Key != "3" || f.Stage != StageGrade {
		t.Fatalf("write failure = %+v", f)
	}
	if len(store.grades) != 1 || store.grades[1].Label != "Outstanding" {
		t.Fatalf("grades = %+v", store.grades)
	}
}

func TestLoadStudents_SingleSubjectLine(t *testing.T) {
	t.Parallel()

	store := newFakeStore()
	l, _ := newLoader(store)

	input := studentHeader + "1,Jane,Doe,jane@x.com,CS,2020-01-01,Math,,,,,95,,,,\n"
	sum, err := l.LoadStudents(context.Background(), strings.NewReader(input))
	if err != nil {
		t.Fatalf("LoadStudents: %v", err)
	}
	if sum.Loaded != 1 || sum.MarksLoaded != 1 || sum.MarksSkipped != 4 || sum.Failed != 0 {
		t.Fatalf("summary = %+v", sum)
	}
	st := store.students[1]
	if st.Email != "jane@x.com" || st.DepartmentID != store.depts["CS"] || school.FormatDate(st.JoiningDate) != "2020-01-01" {
		t.Fatalf("student = %+v", st)
	}
	score := store.marks[[2]int64{1, store.subjects["Math"]}]
	if !score.Equal(decimal.NewFromInt(95)) {
		t.Fatalf("mark = %s, want 95", score)
	}
}

func TestLoadStudents_ReloadIsIdempotent(t *testing.T) {
	t.Parallel()

	store := newFakeStore()
	input := studentHeader +
		"1,Jane,Doe,jane@x.com,CS,2020-01-01,Math,Physics,,,,95,88,,,\n" +
		"2,John,Roe,john@x.com,CS,2021-09-01,Math,,,,,70,,,,\n"

	for i := 0; i < 2; i++ {
		l, _ := newLoader(store) // fresh cache per run
		if _, err := l.LoadStudents(context.Background(), strings.NewReader(input)); err != nil {
			t.Fatalf("run %d: %v", i, err)
		}
	}
	if len(store.students) != 2 || len(store.marks) != 3 || len(store.depts) != 1 || len(store.subjects) != 2 {
		t.Fatalf("rows: students=%d marks=%d depts=%d subjects=%d",
			len(store.students), len(store.marks), len(store.depts), len(store.subjects))
	}
	// One insert attempt per run; the second student hits the cache.
	if store.deptInserts != 2 {
		t.Fatalf("department inserts = %d, want 2", store.deptInserts)
	}
}

func TestLoadStudents_DepartmentFailureAbortsStudent(t *testing.T) {
	t.Parallel()

	store := newFakeStore()
	store.brokenDept["Ghost"] = true
	l, _ := newLoader(store)

	input := studentHeader +
		"1,Jane,Doe,jane@x.com,Ghost,2020-01-01,Math,,,,,95,,,,\n" +
		"2,John,Roe,john@x.com,CS,2021-09-01,Math,,,,,70,,,,\n"
	sum, err := l.LoadStudents(context.Background(), strings.NewReader(input))
	if err != nil {
		t.Fatalf("LoadStudents: %v", err)
	}
	if sum.Failed != 1 || sum.Loaded != 1 || sum.MarksLoaded != 1 {
		t.Fatalf("summary = %+v", sum)
	}
	if store.studentCalls != 1 {
		t.Fatalf("student upserts = %d, want 1", store.studentCalls)
	}
	f := sum.Failures[0]
	var le *etlerr.LookupError
	if f.Stage != StageDepartment || f.Key != "1" || !errors.As(f.Err, &le) {
		t.Fatalf("failure = %+v", f)
	}
}

func TestLoadStudents_StudentWriteFailureSkipsMarks(t *testing.T) {
	t.Parallel()

	store := newFakeStore()
	store.failStudent[1] = true
	l, _ := newLoader(store)

	input := studentHeader + "1,Jane,Doe,jane@x.com,CS,2020-01-01,Math,Physics,,,,95,88,,,\n"
	sum, err := l.LoadStudents(context.Background(), strings.NewReader(input))
	if err != nil {
		t.Fatalf("LoadStudents: %v", err)
	}
	if sum.Failed != 1 || sum.Loaded != 0 {
		t.Fatalf("summary = %+v", sum)
	}
	if store.markCalls != 0 {
		t.Fatalf("mark upserts = %d, want 0", store.markCalls)
	}
}

func TestLoadStudents_MarkFailureKeepsSiblings(t *testing.T) {
	t.Parallel()

	store := newFakeStore()
	store.subjects["Physics"] = 500
	store.failSubject[500] = true
	l, _ := newLoader(store)

	input := studentHeader + "1,Jane,Doe,jane@x.com,CS,2020-01-01,Math,Physics,Art,,,95,88,abc,,\n"
	sum, err := l.LoadStudents(context.Background(), strings.NewReader(input))
	if err != nil {
		t.Fatalf("LoadStudents: %v", err)
	}
	if sum.Loaded != 1 || sum.MarksLoaded != 1 || sum.MarksFailed != 1 || sum.MarksSkipped != 3 {
		t.Fatalf("summary = %+v", sum)
	}
	if _, ok := store.students[1]; !ok {
		t.Fatalf("student row rolled back")
	}
	var markFailure *Failure
	for i := range sum.Failures {
		if sum.Failures[i].Stage == StageMark {
			markFailure = &sum.Failures[i]
		}
	}
	if markFailure == nil || markFailure.Key != "1/Physics" {
		t.Fatalf("mark failure = %+v", sum.Failures)
	}
}

func TestLoadStudents_InvalidLinesAreSkippedAndLogged(t *testing.T) {
	t.Parallel()

	store := newFakeStore()
	l, hook := newLoader(store)

	input := studentHeader +
		"x,Jane,Doe,jane@x.com,CS,2020-01-01,Math,,,,,95,,,,\n" + // bad id
		"2,John,Roe,john@x.com,CS,2021-02-30,Math,,,,,70,,,,\n" + // bad date
		"3,Ann,Poe,,CS,2021-01-01,Math,,,,,70,,,,\n" + // missing email
		"4,too,few,fields\n"
	sum, err := l.LoadStudents(context.Background(), strings.NewReader(input))
	if err != nil {
		t.Fatalf("LoadStudents: %v", err)
	}
	if sum.Skipped != 4 || sum.Loaded != 0 || store.studentCalls != 0 {
		t.Fatalf("summary = %+v", sum)
	}
	for _, f := range sum.Failures {
		var ve *etlerr.ValidationError
		if f.Stage != StageParse || !errors.As(f.Err, &ve) {
			t.Fatalf("failure = %+v", f)
		}
	}

	warned := map[any]bool{}
	for _, e := range hook.AllEntries() {
		if e.Level == logrus.WarnLevel {
			warned[e.Data["line"]] = true
		}
	}
	for _, line := range []int{2, 3, 4, 5} {
		if !warned[line] {
			t.Fatalf("no warning logged for line %d", line)
		}
	}
}

func TestLoadStudents_CanceledContext(t *testing.T) {
	t.Parallel()

	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	l, _ := newLoader(newFakeStore())
	_, err := l.LoadStudents(ctx, strings.NewReader(studentHeader+"1,Jane,Doe,jane@x.com,CS,2020-01-01,Math,,,,,95,,,,\n"))
	if !errors.Is(err, context.Canceled) {
		t.Fatalf("err = %v, want context.Canceled", err)
	}
}

func TestSummaryFields(t *testing.T) {
	t.Parallel()

	f := Summary{Lines: 3, Loaded: 2, Skipped: 1, MarksLoaded: 4}.Fields()
	if f["lines"] != 3 || f["loaded"] != 2 || f["marks_loaded"] != 4 {
		t.Fatalf("fields = %v", f)
	}
}
