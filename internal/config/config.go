// Package config defines the JSON job file that drives a run: input paths,
// parser options, the two stores, the run report and the metrics backend.
//
// A job is loaded in three layers:
//
//  1. The JSON file (optional; an empty path yields defaults).
//  2. Environment overrides (SCHOOL_DB_DSN, ACADEMICS_DB_DSN, ...), after
//     .env and .env.local have been loaded into the process environment.
//  3. ${VAR} expansion inside DSNs, so secrets can stay out of the file.
//
// Example:
//
//	{
//	  "job": "nightly",
//	  "inputs": { "grades_path": "data/grades.csv", "students_path": "data/students.csv" },
//	  "parser": { "options": { "comma": ",", "lazy_quotes": true } },
//	  "stores": {
//	    "school":    { "kind": "mysql",    "dsn": "etl:${MYSQL_PASSWORD}@tcp(db:3306)/school" },
//	    "academics": { "kind": "postgres", "dsn": "postgres://etl@pg:5432/academics" }
//	  },
//	  "report":  { "dir": "report" },
//	  "metrics": { "backend": "none" }
//	}
package config

import (
	"encoding/json"
	"fmt"
	"os"
	"strings"

	"github.com/caarlos0/env/v11"
	"github.com/joho/godotenv"
)

// Defaults applied by Parse when a field is left empty.
const (
	DefaultJob       = "studentetl"
	DefaultReportDir = "report"
	MetricsNone      = "none"
)

// Job is the top-level object decoded from a job file.
type Job struct {
	// Job names the run in logs and metrics.
	Job     string  `json:"job"`
	Inputs  Inputs  `json:"inputs"`
	Parser  Parser  `json:"parser"`
	Stores  Stores  `json:"stores"`
	Report  Report  `json:"report"`
	Metrics Metrics `json:"metrics"`
}

// Inputs are the default file paths; CLI arguments take precedence.
type Inputs struct {
	GradesPath   string `json:"grades_path"`
	StudentsPath string `json:"students_path"`
}

// Parser carries line-splitting options ("comma", "lazy_quotes", "normalize").
type Parser struct {
	Options Options `json:"options"`
}

// Stores configures the normalized school store and the academics store.
type Stores struct {
	School    Store `json:"school"`
	Academics Store `json:"academics"`
}

// Store selects a storage backend.
type Store struct {
	// Kind is one of mysql, postgres, sqlite, mssql.
	Kind string `json:"kind"`
	DSN  string `json:"dsn"`
}

// Report configures the timestamped run report.
type Report struct {
	Dir string `json:"dir"`
	// Stderr mirrors report lines to standard error.
	Stderr bool `json:"stderr"`
}

// Metrics selects the metrics backend.
type Metrics struct {
	// Backend is none, pushgateway or datadog.
	Backend        string `json:"backend"`
	PushgatewayURL string `json:"pushgateway_url"`
	DatadogAddr    string `json:"datadog_addr"`
}

// envOverrides are applied on top of the file when set.
type envOverrides struct {
	Job            string `env:"STUDENTETL_JOB"`
	GradesPath     string `env:"GRADES_PATH"`
	StudentsPath   string `env:"STUDENTS_PATH"`
	SchoolKind     string `env:"SCHOOL_DB_KIND"`
	SchoolDSN      string `env:"SCHOOL_DB_DSN"`
	AcademicsKind  string `env:"ACADEMICS_DB_KIND"`
	AcademicsDSN   string `env:"ACADEMICS_DB_DSN"`
	ReportDir      string `env:"REPORT_DIR"`
	MetricsBackend string `env:"METRICS_BACKEND"`
	PushgatewayURL string `env:"PUSHGATEWAY_URL"`
	DatadogAddr    string `env:"DATADOG_ADDR"`
}

// EnvFiles are loaded by LoadEnv when present. Variables already set in the
// process environment win, and .env.local wins over .env.
var EnvFiles = []string{".env.local", ".env"}

// LoadEnv loads the files that exist into the process environment and
// returns how many were loaded.
func LoadEnv(files []string) (int, error) {
	existing := make([]string, 0, len(files))
	for _, f := range files {
		if _, err := os.Stat(f); err == nil {
			existing = append(existing, f)
		}
	}
	if len(existing) == 0 {
		return 0, nil
	}
	if err := godotenv.Load(existing...); err != nil {
		return 0, fmt.Errorf("load env files: %w", err)
	}
	return len(existing), nil
}

// Load reads the job file at path (or starts from defaults when path is
// empty) and applies the process environment.
func Load(path string) (Job, error) {
	data := []byte("{}")
	if path != "" {
		b, err := os.ReadFile(path)
		if err != nil {
			return Job{}, fmt.Errorf("read job file: %w", err)
		}
		data = b
	}
	j, err := Parse(data, nil)
	if err != nil {
		return Job{}, fmt.Errorf("%s: %w", path, err)
	}
	return j, nil
}

// Parse decodes a job and applies environment overrides, DSN expansion and
// defaults. A nil environ means the process environment.
func Parse(data []byte, environ map[string]string) (Job, error) {
	var j Job
	if err := json.Unmarshal(data, &j); err != nil {
		return Job{}, fmt.Errorf("decode job: %w", err)
	}

	var ov envOverrides
	if err := env.ParseWithOptions(&ov, env.Options{Environment: environ}); err != nil {
		return Job{}, fmt.Errorf("environment overrides: %w", err)
	}
	ov.apply(&j)

	getenv := os.Getenv
	if environ != nil {
		getenv = func(k string) string { return environ[k] }
	}
	j.Stores.School.DSN = os.Expand(j.Stores.School.DSN, getenv)
	j.Stores.Academics.DSN = os.Expand(j.Stores.Academics.DSN, getenv)

	j.defaults()
	return j, nil
}

func (o envOverrides) apply(j *Job) {
	set := func(dst *string, v string) {
		if v != "" {
			*dst = v
		}
	}
	set(&j.Job, o.Job)
	set(&j.Inputs.GradesPath, o.GradesPath)
	set(&j.Inputs.StudentsPath, o.StudentsPath)
	set(&j.Stores.School.Kind, o.SchoolKind)
	set(&j.Stores.School.DSN, o.SchoolDSN)
	set(&j.Stores.Academics.Kind, o.AcademicsKind)
	set(&j.Stores.Academics.DSN, o.AcademicsDSN)
	set(&j.Report.Dir, o.ReportDir)
	set(&j.Metrics.Backend, o.MetricsBackend)
	set(&j.Metrics.PushgatewayURL, o.PushgatewayURL)
	set(&j.Metrics.DatadogAddr, o.DatadogAddr)
}

func (j *Job) defaults() {
	if strings.TrimSpace(j.Job) == "" {
		j.Job = DefaultJob
	}
	if j.Report.Dir == "" {
		j.Report.Dir = DefaultReportDir
	}
	if j.Metrics.Backend == "" {
		j.Metrics.Backend = MetricsNone
	}
	if j.Parser.Options == nil {
		j.Parser.Options = Options{}
	}
	j.Stores.School.Kind = strings.ToLower(strings.TrimSpace(j.Stores.School.Kind))
	j.Stores.Academics.Kind = strings.ToLower(strings.TrimSpace(j.Stores.Academics.Kind))
}

// Options fetches typed values from a free-form JSON object, returning the
// default when a key is absent or of an unexpected type.
type Options map[string]any

// String returns the string value for key or def.
func (o Options) String(key, def string) string {
	if v, ok := o[key]; ok {
		if s, ok := v.(string); ok {
			return s
		}
	}
	return def
}

// Bool returns the bool value for key or def.
func (o Options) Bool(key string, def bool) bool {
	if v, ok := o[key]; ok {
		if b, ok := v.(bool); ok {
			return b
		}
	}
	return def
}

// Int returns the int value for key or def. JSON numbers decode as float64.
func (o Options) Int(key string, def int) int {
	if v, ok := o[key]; ok {
		switch n := v.(type) {
		case float64:
			return int(n)
		case int:
			return n
		}
	}
	return def
}

// Rune returns the first rune of a string value for key, or def if the key
// is missing or empty.
func (o Options) Rune(key string, def rune) rune {
	if v, ok := o[key]; ok {
		if s, ok := v.(string); ok && len(s) > 0 {
			return []rune(s)[0]
		}
	}
	return def
}

// UnmarshalJSON decodes a null or missing object as an empty, non-nil map.
func (o *Options) UnmarshalJSON(b []byte) error {
	if len(b) == 0 || string(b) == "null" {
		*o = Options{}
		return nil
	}
	var tmp map[string]any
	if err := json.Unmarshal(b, &tmp); err != nil {
		return err
	}
	*o = Options(tmp)
	return nil
}
