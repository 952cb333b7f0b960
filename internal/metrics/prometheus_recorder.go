package metrics

import (
	"time"

	prom "github.com/prometheus/client_golang/prometheus"
)

const namespace = "bookbuilder"

// PrometheusRecorder implements Recorder using Prometheus metrics.
type PrometheusRecorder struct {
	reg             *prom.Registry
	stageDuration   *prom.HistogramVec
	chapterDuration *prom.HistogramVec
	chapterResults  *prom.CounterVec
	buildDuration   prom.Histogram
	buildOutcome    *prom.CounterVec
	workers         prom.Gauge
}

// chapterBuckets cover export without execution (sub-second) up to long
// kernel runs.
var chapterBuckets = []float64{0.1, 0.5, 1, 5, 15, 30, 60, 120, 300, 600}

// NewPrometheusRecorder constructs and registers the build metrics on reg,
// or on a fresh registry when reg is nil.
func NewPrometheusRecorder(reg *prom.Registry) *PrometheusRecorder {
	if reg == nil {
		reg = prom.NewRegistry()
	}
	pr := &PrometheusRecorder{
		reg: reg,
		stageDuration: prom.NewHistogramVec(prom.HistogramOpts{
			Namespace: namespace,
			Name:      "stage_duration_seconds",
			Help:      "Duration of build stages (prepare, convert)",
			Buckets:   prom.DefBuckets,
		}, []string{"stage"}),
		chapterDuration: prom.NewHistogramVec(prom.HistogramOpts{
			Namespace: namespace,
			Name:      "chapter_duration_seconds",
			Help:      "Duration of individual chapter conversions",
			Buckets:   chapterBuckets,
		}, []string{"chapter", "result"}),
		chapterResults: prom.NewCounterVec(prom.CounterOpts{
			Namespace: namespace,
			Name:      "chapter_results_total",
			Help:      "Chapter conversion results by outcome",
		}, []string{"result"}),
		buildDuration: prom.NewHistogram(prom.HistogramOpts{
			Namespace: namespace,
			Name:      "build_duration_seconds",
			Help:      "Total build duration",
			Buckets:   chapterBuckets,
		}),
		buildOutcome: prom.NewCounterVec(prom.CounterOpts{
			Namespace: namespace,
			Name:      "build_outcomes_total",
			Help:      "Build outcomes by final status",
		}, []string{"outcome"}),
		workers: prom.NewGauge(prom.GaugeOpts{
			Namespace: namespace,
			Name:      "workers",
			Help:      "Chapter conversion concurrency of the last build",
		}),
	}
	reg.MustRegister(pr.stageDuration, pr.chapterDuration, pr.chapterResults,
		pr.buildDuration, pr.buildOutcome, pr.workers)
	return pr
}

// Registry returns the registry the metrics are registered on.
func (p *PrometheusRecorder) Registry() *prom.Registry { return p.reg }

func (p *PrometheusRecorder) ObserveStageDuration(stage string, d time.Duration) {
	if p == nil {
		return
	}
	p.stageDuration.WithLabelValues(stage).Observe(d.Seconds())
}

func (p *PrometheusRecorder) ObserveChapterDuration(chapter string, d time.Duration, result ResultLabel) {
	if p == nil {
		return
	}
	p.chapterDuration.WithLabelValues(chapter, string(result)).Observe(d.Seconds())
}

func (p *PrometheusRecorder) IncChapterResult(result ResultLabel) {
	if p == nil {
		return
	}
	p.chapterResults.WithLabelValues(string(result)).Inc()
}

func (p *PrometheusRecorder) ObserveBuildDuration(d time.Duration) {
	if p == nil {
		return
	}
	p.buildDuration.Observe(d.Seconds())
}

func (p *PrometheusRecorder) IncBuildOutcome(outcome string) {
	if p == nil {
		return
	}
	p.buildOutcome.WithLabelValues(outcome).Inc()
}

func (p *PrometheusRecorder) SetWorkers(n int) {
	if p == nil {
		return
	}
	p.workers.Set(float64(n))
}

// WriteTextfile writes the gathered metrics to path in the text exposition
// format, atomically.
func (p *PrometheusRecorder) WriteTextfile(path string) error {
	return prom.WriteToTextfile(path, p.reg)
}
