package watch

import (
	"context"
	"io"
	"log/slog"
	"os"
	"path/filepath"
	"sync"
	"testing"
	"time"

	"github.com/fsnotify/fsnotify"
	"github.com/stretchr/testify/require"

	"github.com/Calebs97/riemann-book/internal/book"
	"github.com/Calebs97/riemann-book/internal/config"
)

func testConfig(t *testing.T) *config.Config {
	t.Helper()
	dir := t.TempDir()
	cfg := config.Default()
	cfg.Book.Chapters = []string{"Index", "Advection", "Acoustics"}
	cfg.Book.Skip = []string{"Acoustics"}
	cfg.Book.Index = "Index"
	cfg.Source.Dir = dir
	cfg.Output.Directory = filepath.Join(dir, "build_html")
	cfg.Assets = []config.Asset{
		{Path: "utils", Mode: config.AssetDir},
		{Path: "custom.css", Mode: config.AssetFile},
	}
	return cfg
}

func TestClassify(t *testing.T) {
	cfg := testConfig(t)
	c, err := NewClassifier(cfg)
	require.NoError(t, err)
	src := cfg.Source.Dir

	tests := []struct {
		path    string
		kind    ChangeKind
		chapter string
	}{
		{filepath.Join(src, "Advection.ipynb"), ChangeChapter, "Advection"},
		{filepath.Join(src, "Index.ipynb"), ChangeChapter, "Index"},
		{filepath.Join(src, "Acoustics.ipynb"), ChangeNone, ""}, // skipped
		{filepath.Join(src, "Scratch.ipynb"), ChangeNone, ""},
		{filepath.Join(src, ".~Advection.ipynb"), ChangeNone, ""},
		{filepath.Join(src, ".ipynb_checkpoints", "Advection-checkpoint.ipynb"), ChangeNone, ""},
		{filepath.Join(src, "utils", "riemann_tools.py"), ChangeAsset, ""},
		{filepath.Join(src, "utils", "__pycache__"), ChangeNone, ""},
		{filepath.Join(src, "utils", "riemann_tools.pyc"), ChangeNone, ""},
		{filepath.Join(src, "custom.css"), ChangeAsset, ""},
		{filepath.Join(src, "custom.css.swp"), ChangeNone, ""},
		{filepath.Join(src, "build_html", "Advection.html"), ChangeNone, ""},
		{filepath.Join(src, "sub", "Advection.ipynb"), ChangeNone, ""},
		{filepath.Join(src, "utilsx", "a.py"), ChangeNone, ""},
	}
	for _, tt := range tests {
		t.Run(filepath.Base(tt.path), func(t *testing.T) {
			kind, chapter := c.Classify(tt.path)
			require.Equal(t, tt.kind, kind)
			require.Equal(t, tt.chapter, chapter)
		})
	}
}

type fakeTarget struct {
	mu        sync.Mutex
	runs      int
	prepares  int
	processed []string
}

func (f *fakeTarget) Run(context.Context) (*book.Report, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.runs++
	return &book.Report{}, nil
}

func (f *fakeTarget) PrepareOutput(context.Context) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.prepares++
	return nil
}

func (f *fakeTarget) ProcessChapter(_ context.Context, id string) book.ChapterResult {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.processed = append(f.processed, id)
	return book.ChapterResult{Chapter: id}
}

func (f *fakeTarget) snapshot() (int, int, []string) {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.runs, f.prepares, append([]string(nil), f.processed...)
}

func TestMarkDebouncesInProcessingOrder(t *testing.T) {
	cfg := testConfig(t)
	target := &fakeTarget{}
	w, err := New(cfg, target, slog.New(slog.NewTextHandler(io.Discard, nil)))
	require.NoError(t, err)
	w.WithDebounce(10 * time.Millisecond)

	w.mark(ChangeChapter, "Advection")
	w.mark(ChangeChapter, "Index")
	w.mark(ChangeChapter, "Advection")
	w.mark(ChangeAsset, "")

	select {
	case <-w.rebuilds:
	case <-time.After(2 * time.Second):
		t.Fatal("debounced rebuild never fired")
	}
	w.rebuild(context.Background())

	_, prepares, processed := target.snapshot()
	require.Equal(t, 1, prepares)
	require.Equal(t, []string{"Index", "Advection"}, processed)

	chapters, restage := w.take()
	require.Empty(t, chapters)
	require.False(t, restage)
}

func TestRunRebuildsChangedNotebook(t *testing.T) {
	cfg := testConfig(t)
	require.NoError(t, os.MkdirAll(filepath.Join(cfg.Source.Dir, "utils"), 0o750))
	target := &fakeTarget{}
	w, err := New(cfg, target, slog.New(slog.NewTextHandler(io.Discard, nil)))
	require.NoError(t, err)
	w.WithDebounce(20 * time.Millisecond)
	w.Ready = make(chan struct{})

	ctx, cancel := context.WithCancel(context.Background())
	errc := make(chan error, 1)
	go func() { errc <- w.Run(ctx) }()

	select {
	case <-w.Ready:
	case <-time.After(5 * time.Second):
		t.Fatal("watcher did not start")
	}

	require.NoError(t, os.WriteFile(filepath.Join(cfg.Source.Dir, "Advection.ipynb"), []byte("{}"), 0o600))
	require.NoError(t, os.WriteFile(filepath.Join(cfg.Source.Dir, "Scratch.ipynb"), []byte("{}"), 0o600))

	require.Eventually(t, func() bool {
		_, _, processed := target.snapshot()
		return len(processed) > 0
	}, 5*time.Second, 10*time.Millisecond)

	require.NoError(t, os.WriteFile(filepath.Join(cfg.Source.Dir, "utils", "riemann_tools.py"), []byte("x"), 0o600))
	require.Eventually(t, func() bool {
		_, prepares, _ := target.snapshot()
		return prepares > 0
	}, 5*time.Second, 10*time.Millisecond)

	cancel()
	require.NoError(t, <-errc)

	runs, _, processed := target.snapshot()
	require.Equal(t, 1, runs)
	for _, id := range processed {
		require.Equal(t, "Advection", id)
	}
}

func TestLoopStopsWorkerWhenEventsClose(t *testing.T) {
	cfg := testConfig(t)
	target := &fakeTarget{}
	w, err := New(cfg, target, slog.New(slog.NewTextHandler(io.Discard, nil)))
	require.NoError(t, err)
	w.WithDebounce(200 * time.Millisecond)

	events := make(chan fsnotify.Event)
	errs := make(chan error)
	w.mark(ChangeChapter, "Advection")
	close(events)

	errc := make(chan error, 1)
	go func() { errc <- w.loop(context.Background(), nil, events, errs) }()
	select {
	case err := <-errc:
		require.NoError(t, err)
	case <-time.After(2 * time.Second):
		t.Fatal("loop did not return after the event channel closed")
	}

	time.Sleep(400 * time.Millisecond)
	_, _, processed := target.snapshot()
	require.Empty(t, processed, "no rebuild may run after the loop returned")
}
