// Package watch re-converts chapters when their notebooks change.
package watch

import (
	"context"
	"fmt"
	"io/fs"
	"log/slog"
	"os"
	"path/filepath"
	"sync"
	"time"

	"github.com/fsnotify/fsnotify"

	"github.com/Calebs97/riemann-book/internal/book"
	"github.com/Calebs97/riemann-book/internal/config"
	"github.com/Calebs97/riemann-book/internal/logfields"
)

// DefaultDebounce collapses editor save bursts into one rebuild.
const DefaultDebounce = 300 * time.Millisecond

// Target is the part of the book builder the watcher drives.
type Target interface {
	Run(ctx context.Context) (*book.Report, error)
	PrepareOutput(ctx context.Context) error
	ProcessChapter(ctx context.Context, chapterID string) book.ChapterResult
}

// Watcher rebuilds changed chapters of one book.
type Watcher struct {
	cfg        *config.Config
	target     Target
	classifier *Classifier
	debounce   time.Duration
	logger     *slog.Logger

	// Ready, when set, is closed once the initial build is done and the
	// filesystem watches are in place.
	Ready chan struct{}

	mu       sync.Mutex
	pending  map[string]bool
	restage  bool
	timer    *time.Timer
	rebuilds chan struct{}
}

// New returns a Watcher for cfg driving target.
func New(cfg *config.Config, target Target, logger *slog.Logger) (*Watcher, error) {
	c, err := NewClassifier(cfg)
	if err != nil {
		return nil, err
	}
	if logger == nil {
		logger = slog.Default()
	}
	return &Watcher{
		cfg:        cfg,
		target:     target,
		classifier: c,
		debounce:   DefaultDebounce,
		logger:     logger,
		pending:    make(map[string]bool),
		rebuilds:   make(chan struct{}, 1),
	}, nil
}

// WithDebounce overrides the debounce interval.
func (w *Watcher) WithDebounce(d time.Duration) *Watcher {
	w.debounce = d
	return w
}

// Run builds the book once, then watches until ctx is done. The initial build
// error is returned only when it is fatal to the build.
func (w *Watcher) Run(ctx context.Context) error {
	if _, err := w.target.Run(ctx); err != nil {
		return err
	}

	watcher, err := fsnotify.NewWatcher()
	if err != nil {
		return fmt.Errorf("fsnotify: %w", err)
	}
	defer func() { _ = watcher.Close() }()
	if err := watcher.Add(w.classifier.sourceDir); err != nil {
		return fmt.Errorf("watch %s: %w", w.classifier.sourceDir, err)
	}
	for _, a := range w.classifier.assets {
		w.addDirsRecursive(watcher, a)
	}
	w.logger.Info("Watching notebooks for changes", logfields.Path(w.classifier.sourceDir))

	if w.Ready != nil {
		close(w.Ready)
	}
	return w.loop(ctx, watcher, watcher.Events, watcher.Errors)
}

// loop dispatches filesystem events until ctx is done or a channel closes.
// The rebuild worker and the debounce timer never outlive it.
func (w *Watcher) loop(ctx context.Context, watcher *fsnotify.Watcher, events <-chan fsnotify.Event, errs <-chan error) error {
	workerCtx, cancel := context.WithCancel(ctx)
	done := make(chan struct{})
	go func() {
		defer close(done)
		w.rebuildWorker(workerCtx)
	}()
	defer func() {
		cancel()
		w.stopTimer()
		<-done
	}()

	for {
		select {
		case <-ctx.Done():
			return nil
		case ev, ok := <-events:
			if !ok {
				return nil
			}
			w.handleEvent(watcher, ev)
		case err, ok := <-errs:
			if !ok {
				return nil
			}
			w.logger.Warn("watcher error", logfields.Error(err))
		}
	}
}

func (w *Watcher) handleEvent(watcher *fsnotify.Watcher, ev fsnotify.Event) {
	if ev.Op == fsnotify.Chmod {
		return
	}
	kind, chapter := w.classifier.Classify(ev.Name)
	if kind == ChangeAsset && ev.Op&fsnotify.Create == fsnotify.Create {
		if fi, err := os.Stat(ev.Name); err == nil && fi.IsDir() {
			w.addDirsRecursive(watcher, ev.Name)
		}
	}
	if kind == ChangeNone {
		return
	}
	w.logger.Debug("File change detected", logfields.Path(ev.Name), slog.String("op", ev.Op.String()))
	w.mark(kind, chapter)
}

// mark records a change and (re)starts the debounce timer.
func (w *Watcher) mark(kind ChangeKind, chapter string) {
	w.mu.Lock()
	defer w.mu.Unlock()
	switch kind {
	case ChangeChapter:
		w.pending[chapter] = true
	case ChangeAsset:
		w.restage = true
	}
	if w.timer != nil {
		w.timer.Stop()
	}
	w.timer = time.AfterFunc(w.debounce, func() {
		select {
		case w.rebuilds <- struct{}{}:
		default:
		}
	})
}

func (w *Watcher) stopTimer() {
	w.mu.Lock()
	defer w.mu.Unlock()
	if w.timer != nil {
		w.timer.Stop()
	}
}

// take drains the pending changes in processing order.
func (w *Watcher) take() (chapters []string, restage bool) {
	w.mu.Lock()
	defer w.mu.Unlock()
	for _, id := range w.classifier.chapters {
		if w.pending[id] {
			chapters = append(chapters, id)
		}
	}
	clear(w.pending)
	restage, w.restage = w.restage, false
	return chapters, restage
}

func (w *Watcher) rebuildWorker(ctx context.Context) {
	for {
		select {
		case <-ctx.Done():
			return
		case <-w.rebuilds:
			w.rebuild(ctx)
		}
	}
}

func (w *Watcher) rebuild(ctx context.Context) {
	chapters, restage := w.take()
	if restage {
		w.logger.Info("Assets changed; restaging output")
		if err := w.target.PrepareOutput(ctx); err != nil {
			w.logger.Warn("restage failed", logfields.Error(err))
			return
		}
	}
	for _, id := range chapters {
		if ctx.Err() != nil {
			return
		}
		res := w.target.ProcessChapter(ctx, id)
		if !res.Success() {
			continue
		}
		w.logger.Info("Chapter rebuilt", logfields.Chapter(id),
			logfields.DurationMS(float64(res.Duration.Milliseconds())))
	}
}

func (w *Watcher) addDirsRecursive(watcher *fsnotify.Watcher, root string) {
	_ = filepath.WalkDir(root, func(path string, d fs.DirEntry, err error) error {
		if err != nil {
			return nil
		}
		if d.IsDir() {
			if shouldIgnoreEvent(path) && path != root {
				return filepath.SkipDir
			}
			if err := watcher.Add(path); err != nil {
				w.logger.Warn("watch add failed", logfields.Path(path), logfields.Error(err))
			}
		}
		return nil
	})
}
