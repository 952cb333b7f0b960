package commands

import (
	"context"
	"fmt"
	"io"
	"log/slog"
	"os"
	"os/signal"
	"strings"
	"syscall"

	"github.com/Calebs97/riemann-book/internal/book"
	"github.com/Calebs97/riemann-book/internal/config"
	"github.com/Calebs97/riemann-book/internal/foundation/errors"
	"github.com/Calebs97/riemann-book/internal/metrics"
)

// BuildCmd implements the 'build' command.
type BuildCmd struct {
	Output    string   `short:"o" help:"Output directory (overrides output.directory)"`
	Only      []string `help:"Convert only these chapters" placeholder:"ID"`
	Skip      []string `help:"Do not convert these chapters" placeholder:"ID"`
	NoExecute bool     `name:"no-execute" help:"Export stored outputs without running the notebooks"`
	Workers   int      `help:"Chapters converted concurrently (overrides build.workers)"`
}

func (b *BuildCmd) Run(g *Global, root *CLI) error {
	cfg, err := loadConfig(root)
	if err != nil {
		return err
	}
	if err := applyBuildOverrides(cfg, b); err != nil {
		return err
	}
	logger := configureLogging(cfg.Logging, root.Verbose, g.stderr())

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()
	return RunBuild(ctx, cfg, g.stdout(), logger)
}

// applyBuildOverrides folds command-line flags into cfg and revalidates it.
func applyBuildOverrides(cfg *config.Config, b *BuildCmd) error {
	if b.Output != "" {
		cfg.Output.Directory = b.Output
	}
	if len(b.Only) > 0 {
		cfg.Book.Only = b.Only
	}
	if len(b.Skip) > 0 {
		cfg.Book.Skip = append(cfg.Book.Skip, b.Skip...)
	}
	if b.NoExecute {
		cfg.Execution.Enabled = false
	}
	if b.Workers > 0 {
		cfg.Build.Workers = b.Workers
	}
	return config.ValidateConfig(cfg)
}

// RunBuild converts the book once. Chapter failures are reported on out and
// only become an error when build.fail_on_error is set.
func RunBuild(ctx context.Context, cfg *config.Config, out io.Writer, logger *slog.Logger) error {
	opts := []book.Option{book.WithOutput(out), book.WithLogger(logger)}
	if cfg.Output.MetricsFile != "" {
		opts = append(opts, book.WithRecorder(metrics.NewPrometheusRecorder(nil)))
	}
	builder, err := book.New(cfg, opts...)
	if err != nil {
		return err
	}

	report, err := builder.Run(ctx)
	if err != nil {
		return err
	}
	logger.Info(report.Summary())

	if cfg.Build.FailOnError && report.Failed > 0 {
		failed := make([]string, 0, report.Failed)
		for _, r := range report.Failures() {
			failed = append(failed, r.Chapter)
		}
		return errors.BuildError(fmt.Sprintf("%d of %d chapters failed", report.Failed, len(report.Chapters))).
			WithContext("chapters", strings.Join(failed, ",")).Build()
	}
	return nil
}
