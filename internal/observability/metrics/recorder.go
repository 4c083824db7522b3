// Package metrics provides custom Prometheus metrics for drawmap.
package metrics

// Recorder defines a minimal interface for recording metrics.
// Components depend on it rather than on concrete collectors.
type Recorder interface {
	// RecordOperation records an operation with its status.
	RecordOperation(operation, status string)

	// RecordDuration records the duration of an operation in seconds.
	RecordDuration(operation string, seconds float64)

	// RecordError records an error occurrence with its type.
	RecordError(operation, errorType string)
}

// IngestRecorder adds the ingestion-specific observations.
type IngestRecorder interface {
	Recorder

	// ObservePoints records how many points a drawing produced.
	ObservePoints(points int)

	// RecordFallback records the outcome of a fallback attempt.
	RecordFallback(outcome string)

	// TaskStarted and TaskFinished track tasks currently executing.
	TaskStarted()
	TaskFinished()
}

// NopRecorder discards everything.
type NopRecorder struct{}

func (NopRecorder) RecordOperation(string, string) {}
func (NopRecorder) RecordDuration(string, float64) {}
func (NopRecorder) RecordError(string, string) {}
func (NopRecorder) ObservePoints(int) {}
func (NopRecorder) RecordFallback(string) {}
func (NopRecorder) TaskStarted() {}
func (NopRecorder) TaskFinished() {}

var _ IngestRecorder = NopRecorder{}
