// Package metrics records operational metrics from pipeline runs through a
// small, pluggable Backend. The default backend is a no-op, so callers may
// record unconditionally; concrete systems live in subpackages (prompush,
// datadog) and are installed once at startup with SetBackend.
package metrics

import (
	"sync/atomic"
	"time"
)

// Metric names emitted by the helpers below.
const (
	StepTotal           = "xform_step_total"
	StepDurationSeconds = "xform_step_duration_seconds"
	RowsTotal           = "xform_rows_total"
	BatchesTotal        = "xform_batches_total"
)

// Labels are string key/value pairs attached to a metric.
type Labels map[string]string

// Backend is the minimal interface for metrics backends. Implementations
// must be safe for concurrent use; fan-out runs record in parallel.
type Backend interface {
	// IncCounter increments a counter by delta.
	IncCounter(name string, delta float64, labels Labels)
	// ObserveHistogram records a value in a latency/duration style metric.
	ObserveHistogram(name string, value float64, labels Labels)
	// Flush pushes or flushes metrics, if the backend needs it (e.g. Pushgateway).
	Flush() error
}

type nopBackend struct{}

func (nopBackend) IncCounter(name string, delta float64, labels Labels)       {}
func (nopBackend) ObserveHistogram(name string, value float64, labels Labels) {}
func (nopBackend) Flush() error                                               { return nil }

type holder struct{ Backend }

var backend atomic.Pointer[holder]

func init() { backend.Store(&holder{nopBackend{}}) }

func current() Backend { return backend.Load().Backend }

// SetBackend installs a concrete backend. Passing nil keeps the existing backend.
func SetBackend(b Backend) {
	if b == nil {
		return
	}
	backend.Store(&holder{b})
}

// Flush delegates to the current backend.
func Flush() error {
	return current().Flush()
}

// RecordStep counts one execution of a pipeline step and observes its
// duration, labelled by outcome.
func RecordStep(job, step string, err error, d time.Duration) {
	status := "success"
	if err != nil {
		status = "failure"
	}
	lbls := Labels{
		"job":    job,
		"step":   step,
		"status": status,
	}
	b := current()
	b.IncCounter(StepTotal, 1, lbls)
	b.ObserveHistogram(StepDurationSeconds, d.Seconds(), lbls)
}

// RecordRow adds delta to the row counter of the given kind. Kinds in use:
// "consumed", "emitted", "groups", "written".
func RecordRow(job, kind string, delta int64) {
	if delta <= 0 {
		return
	}
	current().IncCounter(RowsTotal, float64(delta), Labels{
		"job":  job,
		"kind": kind,
	})
}

// RecordBatches increments the sink batch counter for the given job.
func RecordBatches(job string, delta int64) {
	if delta <= 0 {
		return
	}
	current().IncCounter(BatchesTotal, float64(delta), Labels{
		"job": job,
	})
}
