package report

import (
	"os"
	"strings"
	"testing"
	"time"
)

func TestFileName(t *testing.T) {
	t.Parallel()

	now := time.Date(2024, 3, 5, 7, 8, 9, 123_000_000, time.FixedZone("X", 3600))
	if got, want := FileName(now), "report-2024-03-05T06-08-09-123Z.txt"; got != want {
		t.Fatalf("FileName = %q, want %q", got, want)
	}
}

func TestOpen_WritesTimestampedLines(t *testing.T) {
	t.Parallel()

	dir := t.TempDir() + "/nested"
	r, err := Open(dir, time.Now(), false)
	if err != nil {
		t.Fatalf("Open: %v", err)
	}
	r.Log.WithField("table", "grade").Info("loaded")
	r.Log.Debug("hidden")
	if err := r.Close(); err != nil {
		t.Fatalf("Close: %v", err)
	}

	b, err := os.ReadFile(r.Path)
	if err != nil {
		t.Fatalf("read report: %v", err)
	}
	got := string(b)
	for _, want := range []string{"time=", "level=info", `msg=loaded`, "table=grade"} {
		if !strings.Contains(got, want) {
			t.Fatalf("report %q missing %q", got, want)
		}
	}
	if strings.Contains(got, "hidden") {
		t.Fatalf("debug line written at info level: %q", got)
	}
}

func TestCloseNil(t *testing.T) {
	t.Parallel()

	var r *Report
	if err := r.Close(); err != nil {
		t.Fatalf("nil Close = %v", err)
	}
}
