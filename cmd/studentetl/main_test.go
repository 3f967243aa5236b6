package main

import (
	"bytes"
	"context"
	"encoding/json"
	"os"
	"path/filepath"
	"strings"
	"testing"
)

const gradesCSV = "id,code,label,percentage_range,gpa_equivalent\n1,A,Excellent,80-100,4.0\n2,B,Good,60-79,3.0\n"

func writeJob(t *testing.T, mutate func(map[string]any)) (cfgPath, dir string) {
	t.Helper()
	dir = t.TempDir()
	grades := filepath.Join(dir, "grades.csv")
	if err := os.WriteFile(grades, []byte(gradesCSV), 0o644); err != nil {
		t.Fatal(err)
	}
	job := map[string]any{
		"job":    "cli-test",
		"inputs": map[string]any{"grades_path": grades},
		"stores": map[string]any{
			"school":    map[string]any{"kind": "sqlite", "dsn": filepath.Join(dir, "school.db")},
			"academics": map[string]any{"kind": "sqlite", "dsn": filepath.Join(dir, "academics.db")},
		},
		"report":  map[string]any{"dir": filepath.Join(dir, "report")},
		"metrics": map[string]any{"backend": "none"},
	}
	if mutate != nil {
		mutate(job)
	}
	b, err := json.Marshal(job)
	if err != nil {
		t.Fatal(err)
	}
	cfgPath = filepath.Join(dir, "job.json")
	if err := os.WriteFile(cfgPath, b, 0o644); err != nil {
		t.Fatal(err)
	}
	return cfgPath, dir
}

func runCLI(t *testing.T, args ...string) (string, error) {
	t.Helper()
	cmd := newRootCmd()
	var buf bytes.Buffer
	cmd.SetOut(&buf)
	cmd.SetErr(&buf)
	cmd.SetArgs(args)
	err := cmd.ExecuteContext(context.Background())
	return buf.String(), err
}

func TestCLI_SchemaLoadCount(t *testing.T) {
	cfg, dir := writeJob(t, nil)

	steps := []struct {
		args []string
		want string
	}{
		{[]string{"--config", cfg, "schema", "create", "school"}, "school: schema created"},
		{[]string{"--config", cfg, "grades"}, "grades: 2 loaded, 0 skipped, 0 failed"},
		{[]string{"--config", cfg, "counts", "school"}, "school.grade: 2 rows"},
		{[]string{"--config", cfg, "cleanup", "school"}, "school.grade: 2 deleted"},
	}
	for _, st := range steps {
		out, err := runCLI(t, st.args...)
		if err != nil {
			t.Fatalf("%v: %v\n%s", st.args, err, out)
		}
		if !strings.Contains(out, st.want) {
			t.Fatalf("%v output = %q, want %q", st.args, out, st.want)
		}
	}

	reports, err := filepath.Glob(filepath.Join(dir, "report", "report-*.txt"))
	if err != nil || len(reports) == 0 {
		t.Fatalf("no report files written (err=%v)", err)
	}
}

func TestCLI_Validate(t *testing.T) {
	cfg, _ := writeJob(t, nil)
	out, err := runCLI(t, "--config", cfg, "validate")
	if err != nil {
		t.Fatalf("validate: %v", err)
	}
	if !strings.Contains(out, "configuration is valid") {
		t.Fatalf("output = %q", out)
	}

	bad, _ := writeJob(t, func(j map[string]any) {
		j["metrics"] = map[string]any{"backend": "statsd"}
	})
	out, err = runCLI(t, "--config", bad, "validate")
	if err == nil || !strings.Contains(err.Error(), "invalid") {
		t.Fatalf("err = %v, want invalid configuration", err)
	}
	if !strings.Contains(out, "metrics.backend") {
		t.Fatalf("issues not printed: %q", out)
	}
}

func TestCLI_RejectsUnknownRole(t *testing.T) {
	cfg, _ := writeJob(t, nil)
	if _, err := runCLI(t, "--config", cfg, "counts", "reports"); err == nil {
		t.Fatal("unknown role accepted")
	}
}

func TestRoleCommandsCompleteRoles(t *testing.T) {
	root := newRootCmd()
	for _, path := range [][]string{{"cleanup"}, {"counts"}, {"schema", "create"}, {"schema", "drop"}} {
		cmd, _, err := root.Find(path)
		if err != nil {
			t.Fatalf("Find(%v): %v", path, err)
		}
		if strings.Join(cmd.ValidArgs, ",") != "school,academics" {
			t.Errorf("%v ValidArgs = %v, want [school academics]", path, cmd.ValidArgs)
		}
	}
}
