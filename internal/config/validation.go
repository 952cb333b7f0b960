package config

import (
	"fmt"
	"path/filepath"
	"slices"
	"strings"

	"github.com/Calebs97/riemann-book/internal/foundation/errors"
)

// ValidateConfig checks the configuration before any filesystem work happens.
func ValidateConfig(cfg *Config) error {
	v := &configurationValidator{config: cfg}
	for _, check := range []func() error{
		v.validateChapters,
		v.validateSelection,
		v.validatePaths,
		v.validateAssets,
		v.validateExecution,
		v.validateBuild,
	} {
		if err := check(); err != nil {
			return errors.WrapError(err, errors.CategoryValidation, "invalid configuration").Fatal().Build()
		}
	}
	return nil
}

type configurationValidator struct {
	config *Config
}

func (v *configurationValidator) validateChapters() error {
	chapters := v.config.Book.Chapters
	if len(chapters) == 0 {
		return fmt.Errorf("book.chapters must not be empty")
	}
	seen := make(map[string]struct{}, len(chapters))
	for _, ch := range chapters {
		if err := validateChapterID(ch); err != nil {
			return err
		}
		if _, dup := seen[ch]; dup {
			return fmt.Errorf("duplicate chapter %q", ch)
		}
		seen[ch] = struct{}{}
	}
	if idx := v.config.Book.Index; idx != "" && !slices.Contains(chapters, idx) {
		return fmt.Errorf("book.index %q is not a chapter", idx)
	}
	return nil
}

func validateChapterID(id string) error {
	switch {
	case strings.TrimSpace(id) == "":
		return fmt.Errorf("chapter id must not be empty")
	case strings.ContainsAny(id, `/\`):
		return fmt.Errorf("chapter id %q must not contain path separators", id)
	case strings.HasSuffix(id, NotebookExt):
		return fmt.Errorf("chapter id %q must not include the %s extension", id, NotebookExt)
	}
	return nil
}

func (v *configurationValidator) validateSelection() error {
	for field, ids := range map[string][]string{"book.only": v.config.Book.Only, "book.skip": v.config.Book.Skip} {
		for _, id := range ids {
			if !slices.Contains(v.config.Book.Chapters, id) {
				return fmt.Errorf("%s references unknown chapter %q", field, id)
			}
		}
	}
	return nil
}

func (v *configurationValidator) validatePaths() error {
	if v.config.Output.Directory == "" {
		return fmt.Errorf("output.directory must be set")
	}
	if v.config.Source.Dir == "" {
		return fmt.Errorf("source.dir must be set")
	}
	src, err := filepath.Abs(v.config.Source.Dir)
	if err != nil {
		return fmt.Errorf("resolve source.dir: %w", err)
	}
	out, err := filepath.Abs(v.config.Output.Directory)
	if err != nil {
		return fmt.Errorf("resolve output.directory: %w", err)
	}
	if src == out {
		return fmt.Errorf("output.directory must differ from source.dir")
	}
	return nil
}

func (v *configurationValidator) validateAssets() error {
	names := make(map[string]string, len(v.config.Assets))
	for _, a := range v.config.Assets {
		if strings.TrimSpace(a.Path) == "" {
			return fmt.Errorf("asset path must not be empty")
		}
		base := filepath.Base(filepath.Clean(a.Path))
		if prev, dup := names[base]; dup {
			return fmt.Errorf("assets %q and %q would both be staged as %q", prev, a.Path, base)
		}
		names[base] = a.Path
	}
	return nil
}

func (v *configurationValidator) validateExecution() error {
	exec := v.config.Execution
	if !exec.Enabled {
		return nil
	}
	if exec.Kernel == "" {
		return fmt.Errorf("execution.kernel must be set when execution is enabled")
	}
	if exec.Timeout <= 0 {
		return fmt.Errorf("execution.timeout must be positive")
	}
	if exec.Binary == "" {
		return fmt.Errorf("execution.binary must be set when execution is enabled")
	}
	return nil
}

func (v *configurationValidator) validateBuild() error {
	if v.config.Build.Workers < 1 {
		return fmt.Errorf("build.workers must be at least 1")
	}
	return nil
}
