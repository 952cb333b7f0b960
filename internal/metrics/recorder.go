package metrics

import "time"

// ResultLabel enumerates chapter result categories for counters.
type ResultLabel string

const (
	ResultSuccess  ResultLabel = "success"
	ResultFailed   ResultLabel = "failed"
	ResultCanceled ResultLabel = "canceled"
)

// Result maps a success flag to its label.
func Result(success bool) ResultLabel {
	if success {
		return ResultSuccess
	}
	return ResultFailed
}

// Recorder defines observability hooks for a book build. Implementations
// must be safe for concurrent use; chapters may convert in parallel.
type Recorder interface {
	ObserveStageDuration(stage string, d time.Duration)
	ObserveChapterDuration(chapter string, d time.Duration, result ResultLabel)
	IncChapterResult(result ResultLabel)
	ObserveBuildDuration(d time.Duration)
	IncBuildOutcome(outcome string) // outcome: success|warning|failed|canceled
	SetWorkers(n int)
}

// NoopRecorder is a Recorder that does nothing (default when metrics not configured).
type NoopRecorder struct{}

func (NoopRecorder) ObserveStageDuration(string, time.Duration)                {}
func (NoopRecorder) ObserveChapterDuration(string, time.Duration, ResultLabel) {}
func (NoopRecorder) IncChapterResult(ResultLabel)                              {}
func (NoopRecorder) ObserveBuildDuration(time.Duration)                        {}
func (NoopRecorder) IncBuildOutcome(string)                                    {}
func (NoopRecorder) SetWorkers(int)                                            {}
