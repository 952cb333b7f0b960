package book

import (
	"io"
	"log/slog"

	"github.com/Calebs97/riemann-book/internal/export"
	"github.com/Calebs97/riemann-book/internal/git"
	"github.com/Calebs97/riemann-book/internal/metrics"
	"github.com/Calebs97/riemann-book/internal/storage"
)

// Option configures a Builder.
type Option func(*Builder)

// WithFilesystem replaces the OS filesystem.
func WithFilesystem(fsys storage.Filesystem) Option {
	return func(b *Builder) { b.fs = fsys }
}

// WithExporter replaces the HTML exporter built from the configuration.
func WithExporter(e export.Exporter) Option {
	return func(b *Builder) { b.exporter = e }
}

// WithRecorder sets the metrics recorder.
func WithRecorder(r metrics.Recorder) Option {
	return func(b *Builder) {
		if r != nil {
			b.recorder = r
		}
	}
}

// WithOutput sets where progress lines are printed (stdout by default).
func WithOutput(w io.Writer) Option {
	return func(b *Builder) { b.out = w }
}

// WithLogger sets the structured logger.
func WithLogger(l *slog.Logger) Option {
	return func(b *Builder) {
		if l != nil {
			b.logger = l
		}
	}
}

// WithSourceReader sets how the provenance of the source checkout is read.
// Nil disables it.
func WithSourceReader(fn func(dir string) (git.Source, error)) Option {
	return func(b *Builder) { b.readSource = fn }
}
