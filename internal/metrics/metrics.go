// Package metrics records run-level counters and step timings behind a small
// pluggable Backend.
//
// The default backend is a no-op, so loaders and the migrator can record
// unconditionally. Concrete systems live in subpackages (prompush, datadog)
// and are installed once at startup with SetBackend.
package metrics

import "time"

// Metric names emitted by this package.
const (
	StepTotal       = "studentetl_step_total"
	StepDuration    = "studentetl_step_duration_seconds"
	RecordsTotal    = "studentetl_records_total"
	ResolutionTotal = "studentetl_resolutions_total"
)

// Labels are string key/value pairs attached to a metric.
type Labels map[string]string

// Backend is the minimal interface for metrics backends.
type Backend interface {
	// IncCounter increments a counter by delta.
	IncCounter(name string, delta float64, labels Labels)
	// ObserveHistogram records a duration-style value.
	ObserveHistogram(name string, value float64, labels Labels)
	// Flush pushes or flushes buffered metrics.
	Flush() error
}

type nopBackend struct{}

func (nopBackend) IncCounter(string, float64, Labels)       {}
func (nopBackend) ObserveHistogram(string, float64, Labels) {}
func (nopBackend) Flush() error                             { return nil }

var backend Backend = nopBackend{}

// SetBackend installs a concrete backend. Passing nil keeps the existing backend.
func SetBackend(b Backend) {
	if b == nil {
		return
	}
	backend = b
}

// Flush delegates to the current backend.
func Flush() error {
	return backend.Flush()
}

// RecordStep counts one run of an operation (grades, students, migrate,
// cleanup, ...) and observes its duration.
func RecordStep(job, step string, err error, d time.Duration) {
	status := "success"
	if err != nil {
		status = "failure"
	}
	lbls := Labels{"job": job, "step": step, "status": status}
	backend.IncCounter(StepTotal, 1, lbls)
	backend.ObserveHistogram(StepDuration, d.Seconds(), lbls)
}

// RecordRecords adds delta records of entity (grade, student, mark,
// academic) with the given outcome (loaded, skipped, failed, migrated).
// Non-positive deltas are ignored.
func RecordRecords(job, entity, outcome string, delta int) {
	if delta <= 0 {
		return
	}
	backend.IncCounter(RecordsTotal, float64(delta), Labels{
		"job":     job,
		"entity":  entity,
		"outcome": outcome,
	})
}

// RecordResolution counts one department or subject resolution by outcome
// (cached, created, existing, failed).
func RecordResolution(job, entity, outcome string) {
	backend.IncCounter(ResolutionTotal, 1, Labels{
		"job":     job,
		"entity":  entity,
		"outcome": outcome,
	})
}
