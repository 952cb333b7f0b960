package book

import (
	"encoding/json"
	"fmt"
	"path/filepath"
	"time"

	"github.com/Calebs97/riemann-book/internal/foundation/errors"
	"github.com/Calebs97/riemann-book/internal/git"
	"github.com/Calebs97/riemann-book/internal/storage"
	"github.com/Calebs97/riemann-book/internal/version"
)

// Outcome is the final state of a build.
type Outcome string

const (
	OutcomeSuccess  Outcome = "success"
	OutcomeWarning  Outcome = "warning" // some chapters failed
	OutcomeFailed   Outcome = "failed"  // every chapter failed, or setup failed
	OutcomeCanceled Outcome = "canceled"
)

// ChapterResult is the outcome of converting one chapter.
type ChapterResult struct {
	Chapter  string
	Path     string // written page, set on success
	Err      error
	Duration time.Duration
}

// Success reports whether the chapter was converted.
func (r ChapterResult) Success() bool { return r.Err == nil }

func (r ChapterResult) MarshalJSON() ([]byte, error) {
	out := struct {
		Chapter    string `json:"chapter"`
		Path       string `json:"path,omitempty"`
		Error      string `json:"error,omitempty"`
		Category   string `json:"category,omitempty"`
		DurationMS int64  `json:"duration_ms"`
	}{Chapter: r.Chapter, Path: r.Path, DurationMS: r.Duration.Milliseconds()}
	if r.Err != nil {
		out.Error = r.Err.Error()
		out.Category = string(errors.GetCategory(r.Err))
	}
	return json.Marshal(out)
}

// Report summarises a build run.
type Report struct {
	SchemaVersion int             `json:"schema_version"`
	BuildID       string          `json:"build_id"`
	Version       string          `json:"version"`
	Start         time.Time       `json:"start"`
	End           time.Time       `json:"end"`
	Source        *git.Source     `json:"source,omitempty"`
	OutputDir     string          `json:"output_dir"`
	Chapters      []ChapterResult `json:"chapters"` // processing order
	Succeeded     int             `json:"succeeded"`
	Failed        int             `json:"failed"`
	Warnings      []string        `json:"warnings,omitempty"`
	Fatal         string          `json:"fatal,omitempty"`
	Outcome       Outcome         `json:"outcome"`
}

func newReport(buildID, outputDir string, start time.Time) *Report {
	return &Report{
		SchemaVersion: 1,
		BuildID:       buildID,
		Version:       version.Version,
		Start:         start,
		OutputDir:     outputDir,
		Chapters:      []ChapterResult{},
	}
}

// Failures returns the failed chapter results in processing order.
func (r *Report) Failures() []ChapterResult {
	var out []ChapterResult
	for _, c := range r.Chapters {
		if !c.Success() {
			out = append(out, c)
		}
	}
	return out
}

// finish counts results and derives the outcome.
func (r *Report) finish(end time.Time, canceled bool) {
	r.End = end
	r.Succeeded, r.Failed = 0, 0
	for _, c := range r.Chapters {
		if c.Success() {
			r.Succeeded++
		} else {
			r.Failed++
		}
	}
	switch {
	case canceled:
		r.Outcome = OutcomeCanceled
	case r.Fatal != "":
		r.Outcome = OutcomeFailed
	case r.Failed == 0:
		r.Outcome = OutcomeSuccess
	case r.Succeeded == 0:
		r.Outcome = OutcomeFailed
	default:
		r.Outcome = OutcomeWarning
	}
}

// Summary returns a human-readable single-line summary.
func (r *Report) Summary() string {
	return fmt.Sprintf("build=%s chapters=%d succeeded=%d failed=%d duration=%s outcome=%s",
		r.BuildID, len(r.Chapters), r.Succeeded, r.Failed,
		r.End.Sub(r.Start).Truncate(time.Millisecond), r.Outcome)
}

// Persist writes the report as indented JSON to path.
func (r *Report) Persist(fsys storage.Filesystem, path string) error {
	data, err := json.MarshalIndent(r, "", "  ")
	if err != nil {
		return errors.InternalError("marshal build report").WithCause(err).Build()
	}
	if err := fsys.MkdirAll(filepath.Dir(path), 0o750); err != nil {
		return errors.FileSystemError("create report directory").WithCause(err).
			WithContext("path", path).Build()
	}
	if err := fsys.WriteFile(path, append(data, '\n'), 0o600); err != nil {
		return errors.FileSystemError("write build report").WithCause(err).
			WithContext("path", path).Build()
	}
	return nil
}
