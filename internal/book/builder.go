package book

import (
	"context"
	stderrors "errors"
	"fmt"
	"io"
	"io/fs"
	"log/slog"
	"os"
	"path/filepath"
	"slices"
	"sync"
	"time"

	"github.com/google/uuid"
	"golang.org/x/sync/errgroup"

	"github.com/Calebs97/riemann-book/internal/config"
	"github.com/Calebs97/riemann-book/internal/execute"
	"github.com/Calebs97/riemann-book/internal/export"
	"github.com/Calebs97/riemann-book/internal/foundation/errors"
	"github.com/Calebs97/riemann-book/internal/git"
	"github.com/Calebs97/riemann-book/internal/logfields"
	"github.com/Calebs97/riemann-book/internal/metrics"
	"github.com/Calebs97/riemann-book/internal/notebook"
	"github.com/Calebs97/riemann-book/internal/storage"
)

// Stage names used for metrics and logs.
const (
	StagePrepareOutput = "prepare_output"
	StageConvert       = "convert_chapters"
)

const pagePerm fs.FileMode = 0o644

// textfileWriter is implemented by recorders that can persist themselves.
type textfileWriter interface {
	WriteTextfile(path string) error
}

// Builder converts the book described by a configuration.
type Builder struct {
	cfg        *config.Config
	fs         storage.Filesystem
	exporter   export.Exporter
	recorder   metrics.Recorder
	out        io.Writer
	outMu      sync.Mutex
	logger     *slog.Logger
	readSource func(dir string) (git.Source, error)
}

// New returns a Builder for cfg. Unless WithExporter is given, the HTML
// exporter is built from the exporter and execution settings.
func New(cfg *config.Config, opts ...Option) (*Builder, error) {
	b := &Builder{
		cfg:        cfg,
		fs:         storage.NewOSFilesystem(),
		recorder:   metrics.NoopRecorder{},
		out:        os.Stdout,
		logger:     slog.Default(),
		readSource: git.ReadSource,
	}
	for _, opt := range opts {
		opt(b)
	}
	if b.exporter == nil {
		e, err := export.NewHTMLExporter(ExporterOptions(cfg))
		if err != nil {
			return nil, err
		}
		b.exporter = e
	}
	return b, nil
}

// ExporterOptions maps the configuration onto exporter options.
func ExporterOptions(cfg *config.Config) export.Options {
	opts := export.Options{
		Template:   cfg.Exporter.Template,
		Spec:       cfg.Exporter.Spec,
		Chapters:   cfg.Book.Chapters,
		Index:      cfg.Book.Index,
		Stylesheet: cfg.Exporter.Stylesheet,
	}
	if cfg.Execution.Enabled {
		opts.Executor = &execute.JupyterExecutor{
			Binary:  cfg.Execution.Binary,
			Kernel:  cfg.Execution.Kernel,
			Timeout: cfg.Execution.Timeout,
			WorkDir: cfg.Source.Dir,
		}
	}
	return opts
}

// Config returns the configuration the builder was created with.
func (b *Builder) Config() *config.Config { return b.cfg }

func (b *Builder) printf(format string, args ...any) {
	b.outMu.Lock()
	defer b.outMu.Unlock()
	_, _ = fmt.Fprintf(b.out, format+"\n", args...)
}

// PrepareOutput checks that the source directory and every asset exist and
// that the notebook executor can run, then
// creates the output directory and copies the assets into it. Nothing is
// created when a check fails. Errors are fatal.
func (b *Builder) PrepareOutput(ctx context.Context) error {
	start := time.Now()
	defer func() { b.recorder.ObserveStageDuration(StagePrepareOutput, time.Since(start)) }()

	srcDir := b.cfg.Source.Dir
	info, err := b.fs.Stat(srcDir)
	if err != nil || !info.IsDir() {
		return errors.ConfigError("source directory not found").
			WithContext("path", srcDir).WithCause(err).Build()
	}

	modes := make([]config.AssetMode, len(b.cfg.Assets))
	for i, a := range b.cfg.Assets {
		src := b.cfg.AssetSource(a)
		info, err := b.fs.Stat(src)
		if err != nil {
			return errors.ConfigError(fmt.Sprintf("asset %s not found", a.Path)).
				WithContext("path", src).WithCause(err).Build()
		}
		mode := a.Mode
		if mode == "" {
			mode = config.AssetFile
			if info.IsDir() {
				mode = config.AssetDir
			}
		}
		if (mode == config.AssetDir) != info.IsDir() {
			return errors.ConfigError(fmt.Sprintf("asset %s is not a %s", a.Path, mode)).
				WithContext("path", src).Build()
		}
		modes[i] = mode
	}

	if c, ok := b.exporter.(execute.Checker); ok {
		if err := c.Check(); err != nil {
			return err
		}
	}

	out := b.cfg.Output.Directory
	if err := b.fs.MkdirAll(out, 0o750); err != nil {
		return errors.FileSystemError("create output directory").WithCause(err).Fatal().
			WithContext("path", out).Build()
	}

	for i, a := range b.cfg.Assets {
		if err := ctx.Err(); err != nil {
			return err
		}
		src := b.cfg.AssetSource(a)
		dst := filepath.Join(out, filepath.Base(a.Path))
		var cerr error
		if modes[i] == config.AssetDir {
			cerr = b.fs.CopyTree(src, dst)
		} else {
			cerr = b.fs.CopyFile(src, dst)
		}
		if cerr != nil {
			return errors.FileSystemError("stage asset").WithCause(cerr).Fatal().
				WithContext("path", src).WithContext("target", dst).Build()
		}
		b.logger.Debug("Staged asset", logfields.Path(dst), slog.String("mode", string(modes[i])))
	}
	return nil
}

// ProcessChapter announces a chapter on the console and converts it.
func (b *Builder) ProcessChapter(ctx context.Context, chapterID string) ChapterResult {
	b.printf("Processing %s%s", chapterID, config.NotebookExt)
	return b.ConvertChapter(ctx, chapterID)
}

// ConvertChapter converts one chapter notebook and writes its page. Failures
// are reported in the result, never returned.
func (b *Builder) ConvertChapter(ctx context.Context, chapterID string) ChapterResult {
	start := time.Now()
	res := ChapterResult{Chapter: chapterID}
	path, err := b.convert(ctx, chapterID)
	res.Duration = time.Since(start)

	log := b.logger.With(logfields.Chapter(chapterID))
	if err != nil {
		res.Err = err
		b.printf("Error converting %s%s: %s", chapterID, config.NotebookExt, err)
		log.Warn("Chapter conversion failed", logfields.Error(err),
			slog.String("category", string(errors.GetCategory(err))),
			logfields.DurationMS(float64(res.Duration.Milliseconds())))
		// A broken environment says nothing about the chapter; keep its page.
		if !errors.HasCategory(err, errors.CategoryConfig) {
			b.removeStale(chapterID)
		}
	} else {
		res.Path = path
		log.Info("Chapter converted", logfields.Path(path),
			logfields.DurationMS(float64(res.Duration.Milliseconds())))
	}

	result := metrics.Result(res.Success())
	if ctx.Err() != nil && !res.Success() {
		result = metrics.ResultCanceled
	}
	b.recorder.ObserveChapterDuration(chapterID, res.Duration, result)
	b.recorder.IncChapterResult(result)
	return res
}

func (b *Builder) pagePath(chapterID string) string {
	return filepath.Join(b.cfg.Output.Directory, chapterID+config.HTMLExt)
}

func (b *Builder) convert(ctx context.Context, chapterID string) (string, error) {
	if !slices.Contains(b.cfg.Book.Chapters, chapterID) {
		return "", errors.ValidationError("unknown chapter").WithContext("chapter", chapterID).
			WithSeverity(errors.SeverityError).Build()
	}
	src := b.cfg.NotebookPath(chapterID)
	data, err := b.fs.ReadFile(src)
	if err != nil {
		return "", errors.NotebookError("read notebook").WithCause(err).
			WithContext("path", src).Build()
	}
	nb, err := notebook.Parse(data)
	if err != nil {
		return "", err
	}
	page, res, err := b.exporter.Export(ctx, nb, chapterID)
	if err != nil {
		return "", err
	}
	b.logger.Debug("Exported notebook", logfields.Chapter(chapterID),
		slog.String("title", res.Title), slog.Bool("executed", res.Executed), slog.Int("rewritten", res.Rewritten))

	dst := b.pagePath(chapterID)
	if err := b.fs.WriteFile(dst, []byte(page), pagePerm); err != nil {
		return "", errors.FileSystemError("write page").WithCause(err).
			WithContext("path", dst).Build()
	}
	return dst, nil
}

// removeStale deletes a page left by an earlier run so the output matches
// this run's results.
func (b *Builder) removeStale(chapterID string) {
	if !b.cfg.Output.RemoveStale {
		return
	}
	dst := b.pagePath(chapterID)
	if err := b.fs.Remove(dst); err != nil {
		if !stderrors.Is(err, fs.ErrNotExist) {
			b.logger.Warn("Could not remove stale page", logfields.Path(dst), logfields.Error(err))
		}
		return
	}
	b.logger.Info("Removed stale page", logfields.Chapter(chapterID), logfields.Path(dst))
}

// Run stages the output directory and converts the processing list. The
// returned error is non-nil only for setup failures and cancellation; chapter
// failures are in the report.
func (b *Builder) Run(ctx context.Context) (*Report, error) {
	start := time.Now()
	report := newReport(uuid.NewString(), b.cfg.Output.Directory, start)
	prev := b.logger
	b.logger = prev.With(logfields.BuildID(report.BuildID))
	defer func() { b.logger = prev }()

	b.readProvenance(report)

	if err := b.PrepareOutput(ctx); err != nil {
		report.Fatal = err.Error()
		b.complete(report, stderrors.Is(err, context.Canceled))
		return report, err
	}

	chapters := b.cfg.ProcessList()
	workers := max(b.cfg.Build.Workers, 1)
	b.recorder.SetWorkers(workers)
	b.logger.Info("Converting chapters", slog.Int("chapters", len(chapters)), slog.Int("workers", workers))

	convertStart := time.Now()
	results := make([]ChapterResult, len(chapters))
	scheduled := make([]bool, len(chapters))
	var g errgroup.Group
	g.SetLimit(workers)
	for i, id := range chapters {
		if ctx.Err() != nil {
			break
		}
		scheduled[i] = true
		g.Go(func() error {
			results[i] = b.ProcessChapter(ctx, id)
			return nil
		})
	}
	_ = g.Wait()
	b.recorder.ObserveStageDuration(StageConvert, time.Since(convertStart))

	for i := range results {
		if scheduled[i] {
			report.Chapters = append(report.Chapters, results[i])
		}
	}

	if err := ctx.Err(); err != nil {
		b.complete(report, true)
		return report, err
	}

	b.printf("The html files can be found in %s", b.cfg.Output.Directory)
	if idx := b.cfg.Book.Index; idx != "" {
		b.printf("Open %s for the index", filepath.Join(b.cfg.Output.Directory, idx+config.HTMLExt))
	}
	b.complete(report, false)
	return report, nil
}

func (b *Builder) readProvenance(report *Report) {
	if b.readSource == nil {
		return
	}
	src, err := b.readSource(b.cfg.Source.Dir)
	if err != nil {
		b.logger.Debug("Source provenance unavailable", logfields.Error(err))
		return
	}
	report.Source = &src
	b.logger.Info("Building from source", logfields.Commit(src.ShortCommit()),
		logfields.Branch(src.Branch), slog.Bool("dirty", src.Dirty))
	if werr := git.CheckBranch(src, b.cfg.Source.Branch); werr != nil {
		report.Warnings = append(report.Warnings, werr.Error())
		b.logger.Warn("Unexpected source branch", logfields.Error(werr))
	}
}

// complete finalises the report, records build metrics and writes the
// optional report and metrics files.
func (b *Builder) complete(report *Report, canceled bool) {
	report.finish(time.Now(), canceled)
	b.recorder.ObserveBuildDuration(report.End.Sub(report.Start))
	b.recorder.IncBuildOutcome(string(report.Outcome))
	b.logger.Info("Build finished", logfields.Outcome(string(report.Outcome)),
		slog.Int("succeeded", report.Succeeded), slog.Int("failed", report.Failed),
		logfields.DurationMS(float64(report.End.Sub(report.Start).Milliseconds())))

	if path := b.cfg.Output.ReportFile; path != "" {
		if err := report.Persist(b.fs, path); err != nil {
			b.logger.Warn("Could not write build report", logfields.Path(path), logfields.Error(err))
		}
	}
	if path := b.cfg.Output.MetricsFile; path != "" {
		if w, ok := b.recorder.(textfileWriter); ok {
			if err := w.WriteTextfile(path); err != nil {
				b.logger.Warn("Could not write metrics file", logfields.Path(path), logfields.Error(err))
			}
		}
	}
}
