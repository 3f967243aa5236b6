package config

import (
	"fmt"
	"strings"
	"unicode/utf8"
)

// IssueSeverity represents the severity of a configuration issue.
type IssueSeverity string

const (
	// SeverityError blocks execution.
	SeverityError IssueSeverity = "error"
	// SeverityWarning is reported but does not block execution.
	SeverityWarning IssueSeverity = "warning"
)

// Issue is a single finding. Path is a dotted path into the job
// (e.g. "stores.school.dsn").
type Issue struct {
	Severity IssueSeverity
	Path     string
	Message  string
}

func (i Issue) Error() string {
	return fmt.Sprintf("%s at %s: %s", i.Severity, i.Path, i.Message)
}

// HasErrors reports whether any issue is an error.
func HasErrors(issues []Issue) bool {
	for _, iss := range issues {
		if iss.Severity == SeverityError {
			return true
		}
	}
	return false
}

// KnownStoreKinds are the storage kinds built into the binary.
var KnownStoreKinds = []string{"mssql", "mysql", "postgres", "sqlite"}

// ValidateJob lints a parsed job without touching any store.
func ValidateJob(j Job) []Issue {
	var issues []Issue

	if strings.TrimSpace(j.Job) == "" {
		issues = append(issues, Issue{
			Severity: SeverityError,
			Path:     "job",
			Message:  "job must not be empty; it labels reports and metrics",
		})
	}
	issues = append(issues, validateInputs(j.Inputs)...)
	issues = append(issues, validateParser(j.Parser)...)
	issues = append(issues, validateStore("stores.school", j.Stores.School)...)
	issues = append(issues, validateStore("stores.academics", j.Stores.Academics)...)
	issues = append(issues, validateMetrics(j.Metrics)...)
	return issues
}

func validateInputs(in Inputs) []Issue {
	var issues []Issue
	if strings.TrimSpace(in.GradesPath) == "" {
		issues = append(issues, Issue{
			Severity: SeverityWarning,
			Path:     "inputs.grades_path",
			Message:  "no default grade file; pass one to the grades command",
		})
	}
	if strings.TrimSpace(in.StudentsPath) == "" {
		issues = append(issues, Issue{
			Severity: SeverityWarning,
			Path:     "inputs.students_path",
			Message:  "no default student file; pass one to the students command",
		})
	}
	return issues
}

func validateParser(p Parser) []Issue {
	var issues []Issue
	v, ok := p.Options["comma"]
	if !ok {
		return nil
	}
	s, isString := v.(string)
	switch {
	case !isString || s == "":
		issues = append(issues, Issue{
			Severity: SeverityError,
			Path:     "parser.options.comma",
			Message:  "comma must be a non-empty string",
		})
	case utf8.RuneCountInString(s) > 1:
		issues = append(issues, Issue{
			Severity: SeverityWarning,
			Path:     "parser.options.comma",
			Message:  fmt.Sprintf("comma %q has more than one character; only the first is used", s),
		})
	}
	if isString && s != "" {
		switch r, _ := utf8.DecodeRuneInString(s); r {
		case '"', '\r', '\n', utf8.RuneError:
			issues = append(issues, Issue{
				Severity: SeverityError,
				Path:     "parser.options.comma",
				Message:  fmt.Sprintf("comma %q cannot be a quote, line break or invalid rune", s),
			})
		}
	}
	return issues
}

func validateStore(path string, s Store) []Issue {
	var issues []Issue
	if s.Kind == "" {
		issues = append(issues, Issue{
			Severity: SeverityError,
			Path:     path + ".kind",
			Message:  "kind must not be empty (" + strings.Join(KnownStoreKinds, ", ") + ")",
		})
	} else if !known(s.Kind) {
		issues = append(issues, Issue{
			Severity: SeverityError,
			Path:     path + ".kind",
			Message:  fmt.Sprintf("unsupported kind %q (%s)", s.Kind, strings.Join(KnownStoreKinds, ", ")),
		})
	}
	if strings.TrimSpace(s.DSN) == "" {
		issues = append(issues, Issue{
			Severity: SeverityError,
			Path:     path + ".dsn",
			Message:  "dsn must not be empty",
		})
	}
	return issues
}

func known(kind string) bool {
	for _, k := range KnownStoreKinds {
		if k == kind {
			return true
		}
	}
	return false
}

func validateMetrics(m Metrics) []Issue {
	switch m.Backend {
	case MetricsNone, "":
		return nil
	case "pushgateway":
		if strings.TrimSpace(m.PushgatewayURL) == "" {
			return []Issue{{
				Severity: SeverityError,
				Path:     "metrics.pushgateway_url",
				Message:  "pushgateway backend requires pushgateway_url",
			}}
		}
	case "datadog":
		if strings.TrimSpace(m.DatadogAddr) == "" {
			return []Issue{{
				Severity: SeverityError,
				Path:     "metrics.datadog_addr",
				Message:  "datadog backend requires datadog_addr",
			}}
		}
	default:
		return []Issue{{
			Severity: SeverityError,
			Path:     "metrics.backend",
			Message:  fmt.Sprintf("unknown metrics backend %q (none, pushgateway, datadog)", m.Backend),
		}}
	}
	return nil
}
