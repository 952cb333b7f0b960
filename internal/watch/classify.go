package watch

import (
	"path/filepath"
	"slices"
	"strings"

	"github.com/Calebs97/riemann-book/internal/config"
)

// ChangeKind says what a changed path affects.
type ChangeKind int

const (
	ChangeNone    ChangeKind = iota
	ChangeChapter            // a chapter notebook; re-convert that chapter
	ChangeAsset              // a staged asset; re-stage the output directory
)

// Classifier maps filesystem paths to book changes. All paths are absolute.
type Classifier struct {
	sourceDir string
	outputDir string
	chapters  []string
	assets    []string
}

// NewClassifier resolves the configured paths against the working directory.
func NewClassifier(cfg *config.Config) (*Classifier, error) {
	src, err := filepath.Abs(cfg.Source.Dir)
	if err != nil {
		return nil, err
	}
	out, err := filepath.Abs(cfg.Output.Directory)
	if err != nil {
		return nil, err
	}
	c := &Classifier{sourceDir: src, outputDir: out, chapters: cfg.ProcessList()}
	for _, a := range cfg.Assets {
		p, err := filepath.Abs(cfg.AssetSource(a))
		if err != nil {
			return nil, err
		}
		c.assets = append(c.assets, p)
	}
	return c, nil
}

// Classify returns the kind of change at path, and the chapter id for
// chapter changes.
func (c *Classifier) Classify(path string) (ChangeKind, string) {
	path = filepath.Clean(path)
	if shouldIgnoreEvent(path) || within(c.outputDir, path) {
		return ChangeNone, ""
	}
	for _, a := range c.assets {
		if within(a, path) {
			return ChangeAsset, ""
		}
	}
	if filepath.Dir(path) == c.sourceDir && strings.HasSuffix(path, config.NotebookExt) {
		id := strings.TrimSuffix(filepath.Base(path), config.NotebookExt)
		if slices.Contains(c.chapters, id) {
			return ChangeChapter, id
		}
	}
	return ChangeNone, ""
}

func within(root, p string) bool {
	if p == root {
		return true
	}
	rel, err := filepath.Rel(root, p)
	return err == nil && rel != ".." && !strings.HasPrefix(rel, ".."+string(filepath.Separator))
}

// shouldIgnoreEvent returns true for filesystem events that should not trigger rebuilds.
func shouldIgnoreEvent(path string) bool {
	base := filepath.Base(path)

	// Hidden files include execution inputs and .ipynb_checkpoints.
	if strings.HasPrefix(base, ".") || strings.Contains(path, string(filepath.Separator)+".ipynb_checkpoints") {
		return true
	}
	if strings.HasSuffix(base, "~") ||
		strings.HasSuffix(base, ".swp") ||
		strings.HasSuffix(base, ".swx") ||
		strings.HasPrefix(base, "#") && strings.HasSuffix(base, "#") {
		return true
	}
	return base == "Thumbs.db" || base == "__pycache__" || strings.HasSuffix(base, ".pyc")
}
