package metrics

import (
	"errors"
	"sync"
	"testing"
	"time"
)

// fakeBackend is an in-memory Backend for tests.
type fakeBackend struct {
	mu sync.Mutex

	counters   []counterCall
	histograms []histCall
	flushCount int
}

type counterCall struct {
	name   string
	delta  float64
	labels Labels
}

type histCall struct {
	name   string
	value  float64
	labels Labels
}

func (f *fakeBackend) IncCounter(name string, delta float64, labels Labels) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.counters = append(f.counters, counterCall{name, delta, labels})
}

func (f *fakeBackend) ObserveHistogram(name string, value float64, labels Labels) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.histograms = append(f.histograms, histCall{name, value, labels})
}

func (f *fakeBackend) Flush() error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.flushCount++
	return nil
}

func swapBackend(t *testing.T) *fakeBackend {
	t.Helper()
	orig := backend
	t.Cleanup(func() { backend = orig })
	fb := &fakeBackend{}
	backend = fb
	return fb
}

func TestRecordStep_SuccessAndFailure(t *testing.T) {
	fb := swapBackend(t)

	RecordStep("nightly", "grades", nil, 2*time.Second)
	RecordStep("nightly", "migrate", errors.New("boom"), 1500*time.Millisecond)

	if len(fb.counters) != 2 || len(fb.histograms) != 2 {
		t.Fatalf("calls = %d counters, %d histograms; want 2/2", len(fb.counters), len(fb.histograms))
	}

	c0 := fb.counters[0]
	if c0.name != StepTotal || c0.delta != 1 {
		t.Fatalf("counter[0] = %#v", c0)
	}
	if c0.labels["job"] != "nightly" || c0.labels["step"] != "grades" || c0.labels["status"] != "success" {
		t.Fatalf("counter[0].labels = %v", c0.labels)
	}
	if h0 := fb.histograms[0]; h0.name != StepDuration || h0.value < 1.999 || h0.value > 2.001 {
		t.Fatalf("hist[0] = %#v", h0)
	}

	if got := fb.counters[1].labels["status"]; got != "failure" {
		t.Fatalf("counter[1].labels[status] = %q, want failure", got)
	}
	if h1 := fb.histograms[1]; h1.value < 1.499 || h1.value > 1.501 {
		t.Fatalf("hist[1].value = %v, want ~1.5", h1.value)
	}
}

func TestRecordRecords_IgnoresNonPositive(t *testing.T) {
	fb := swapBackend(t)

	RecordRecords("nightly", "student", "loaded", 3)
	RecordRecords("nightly", "student", "failed", 0)
	RecordRecords("nightly", "mark", "skipped", -1)

	if len(fb.counters) != 1 {
		t.Fatalf("counter calls = %d, want 1", len(fb.counters))
	}
	c := fb.counters[0]
	if c.name != RecordsTotal || c.delta != 3 {
		t.Fatalf("counter = %#v", c)
	}
	if c.labels["entity"] != "student" || c.labels["outcome"] != "loaded" {
		t.Fatalf("labels = %v", c.labels)
	}
}

func TestRecordResolution(t *testing.T) {
	fb := swapBackend(t)

	RecordResolution("nightly", "subject", "cached")
	if len(fb.counters) != 1 || fb.counters[0].name != ResolutionTotal {
		t.Fatalf("counters = %#v", fb.counters)
	}
	if fb.counters[0].labels["outcome"] != "cached" {
		t.Fatalf("labels = %v", fb.counters[0].labels)
	}
}

func TestSetBackendAndFlush(t *testing.T) {
	orig := backend
	defer func() { backend = orig }()

	fb := &fakeBackend{}
	SetBackend(fb)
	if backend != fb {
		t.Fatal("SetBackend did not replace the backend")
	}
	if err := Flush(); err != nil {
		t.Fatalf("Flush: %v", err)
	}
	if fb.flushCount != 1 {
		t.Fatalf("flushCount = %d, want 1", fb.flushCount)
	}

	SetBackend(nil)
	if backend != fb {
		t.Fatal("SetBackend(nil) changed the backend")
	}
}
