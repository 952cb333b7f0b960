// Package metrics records book build metrics.
//
// Components receive a Recorder through options and default to NoopRecorder,
// so metric calls never need nil checks:
//
//	b := book.New(cfg, book.WithRecorder(metrics.NewPrometheusRecorder(nil)))
//
// A CLI run has no scrape endpoint. When output.metrics_file is set the
// PrometheusRecorder is flushed once at the end of the build with
// WriteTextfile, in the node_exporter textfile collector format.
package metrics
