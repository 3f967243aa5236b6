package migrate

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/shopspring/decimal"
	"github.com/sirupsen/logrus"
	"github.com/sirupsen/logrus/hooks/test"

	"studentetl/internal/etlerr"
	"studentetl/internal/school"
)

type fakeSource struct {
	rows    []school.AcademicRow
	bands   []school.GradeBand
	rowsErr error
}

func (f *fakeSource) AcademicRows(context.Context) ([]school.AcademicRow, error) {
	return f.rows, f.rowsErr
}

func (f *fakeSource) GradeBands(context.Context) ([]school.GradeBand, error) {
	return f.bands, nil
}

// fakeTarget keeps records by email, like the academics store.
type fakeTarget struct {
	byEmail map[string]school.AcademicRecord
	failFor map[string]error
	calls   int
}

func newFakeTarget() *fakeTarget {
	return &fakeTarget{byEmail: map[string]school.AcademicRecord{}, failFor: map[string]error{}}
}

func (f *fakeTarget) UpsertAcademic(_ context.Context, r school.AcademicRecord) error {
	f.calls++
	if err := f.failFor[r.Email]; err != nil {
		return err
	}
	f.byEmail[r.Email] = r
	return nil
}

func rec(email, gpa string) school.AcademicRecord {
	return school.AcademicRecord{
		FirstName:   "F",
		LastName:    "L",
		Email:       email,
		Department:  "CS",
		JoiningDate: time.Date(2020, 1, 1, 0, 0, 0, 0, time.UTC),
		GPA:         decimal.RequireFromString(gpa),
	}
}

func TestMigrate_PartialFailureIsNotFatal(t *testing.T) {
	t.Parallel()

	target := newFakeTarget()
	target.failFor["b@x.com"] = &etlerr.WriteError{Op: "upsert academic record", Key: "b@x.com", Err: errors.New("boom")}
	m := &Migrator{Target: target}

	res := m.Migrate(context.Background(), []school.AcademicRecord{
		rec("a@x.com", "3.5"), rec("b@x.com", "3.0"), rec("c@x.com", "4.0"),
	})
	if res.Succeeded != 2 || res.Failed != 1 {
		t.Fatalf("result = %+v", res)
	}
	if len(res.Failures) != 1 || res.Failures[0].Email != "b@x.com" {
		t.Fatalf("failures = %+v", res.Failures)
	}
	if _, ok := target.byEmail["c@x.com"]; !ok {
		t.Fatalf("record after the failure was not written")
	}
}

func TestMigrate_GPAOutOfRangeFailsWithoutWrite(t *testing.T) {
	t.Parallel()

	target := newFakeTarget()
	m := &Migrator{Target: target}

	res := m.Migrate(context.Background(), []school.AcademicRecord{
		rec("hi@x.com", "4.01"), rec("lo@x.com", "-0.5"), rec("ok@x.com", "0"),
	})
	if res.Succeeded != 1 || res.Failed != 2 {
		t.Fatalf("result = %+v", res)
	}
	if target.calls != 1 {
		t.Fatalf("target calls = %d, want 1", target.calls)
	}
	var ve *etlerr.ValidationError
	if !errors.As(res.Failures[0].Err, &ve) || ve.Field != "gpa" {
		t.Fatalf("failure = %+v", res.Failures[0])
	}
}

func TestMigrate_SecondRunUpdatesInPlace(t *testing.T) {
	t.Parallel()

	target := newFakeTarget()
	m := &Migrator{Target: target}
	ctx := context.Background()

	m.Migrate(ctx, []school.AcademicRecord{rec("a@x.com", "3.0")})
	res := m.Migrate(ctx, []school.AcademicRecord{rec("a@x.com", "3.5")})
	if res.Succeeded != 1 || len(target.byEmail) != 1 {
		t.Fatalf("result = %+v, rows = %d", res, len(target.byEmail))
	}
	if got := target.byEmail["a@x.com"].GPA; !got.Equal(decimal.RequireFromString("3.5")) {
		t.Fatalf("gpa = %s, want 3.5", got)
	}
}

func TestRun_AggregatesAndMigrates(t *testing.T) {
	t.Parallel()

	joined := time.Date(2020, 1, 1, 0, 0, 0, 0, time.UTC)
	row := func(id int64, email, score string) school.AcademicRow {
		return school.AcademicRow{StudentID: id, FirstName: "F", LastName: "L", Email: email,
			Department: "CS", JoiningDate: joined, Score: decimal.RequireFromString(score)}
	}
	src := &fakeSource{
		bands: []school.GradeBand{
			{ID: 1, Code: "A", PercentageRange: "80-100", GPAEquivalent: decimal.RequireFromString("4.0")},
			{ID: 2, Code: "B", PercentageRange: "60-79", GPAEquivalent: decimal.RequireFromString("3.0")},
		},
		rows: []school.AcademicRow{
			row(1, "jane@x.com", "90"), row(1, "jane@x.com", "70"),
			row(2, "john@x.com", "10"),
		},
	}
	target := newFakeTarget()
	log, hook := test.NewNullLogger()
	m := &Migrator{Source: src, Target: target, Log: log, Job: "test"}

	res, err := m.Run(context.Background())
	if err != nil {
		t.Fatalf("Run: %v", err)
	}
	if res.Succeeded != 1 || res.Failed != 0 || res.Unclassified != 1 {
		t.Fatalf("result = %+v", res)
	}
	got := target.byEmail["jane@x.com"]
	if !got.GPA.Equal(decimal.RequireFromString("3.5")) || got.StudentID != 1 {
		t.Fatalf("record = %+v", got)
	}

	var warned bool
	for _, e := range hook.AllEntries() {
		if e.Level == logrus.WarnLevel && e.Data["marks"] == 1 {
			warned = true
		}
	}
	if !warned {
		t.Fatalf("unclassified marks were not logged")
	}
}

func TestRun_OverlappingBandsAreLogged(t *testing.T) {
	t.Parallel()

	src := &fakeSource{bands: []school.GradeBand{
		{ID: 1, Code: "A", PercentageRange: "70-80", GPAEquivalent: decimal.NewFromInt(3)},
		{ID: 2, Code: "B", PercentageRange: "80-90", GPAEquivalent: decimal.NewFromInt(4)},
	}}
	log, hook := test.NewNullLogger()
	m := &Migrator{Source: src, Target: newFakeTarget(), Log: log}

	if _, err := m.Run(context.Background()); err != nil {
		t.Fatalf("Run: %v", err)
	}
	var found bool
	for _, e := range hook.AllEntries() {
		if e.Data["band_a"] == "A" && e.Data["band_b"] == "B" {
			found = true
		}
	}
	if !found {
		t.Fatalf("overlap warning missing")
	}
}

func TestRun_SourceReadFailureIsFatal(t *testing.T) {
	t.Parallel()

	boom := errors.New("connection reset")
	target := newFakeTarget()
	m := &Migrator{Source: &fakeSource{rowsErr: boom}, Target: target}

	if _, err := m.Run(context.Background()); !errors.Is(err, boom) {
		t.Fatalf("err = %v, want %v", err, boom)
	}
	if target.calls != 0 {
		t.Fatalf("target written after a failed read")
	}
}
