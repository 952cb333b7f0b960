package commands

import (
	"context"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/Calebs97/riemann-book/internal/book"
	"github.com/Calebs97/riemann-book/internal/config"
	"github.com/Calebs97/riemann-book/internal/watch"
)

// WatchCmd implements the 'watch' command.
type WatchCmd struct {
	NoExecute bool          `name:"no-execute" help:"Export stored outputs without running the notebooks"`
	Debounce  time.Duration `help:"Quiet period before a rebuild" default:"300ms"`
}

func (w *WatchCmd) Run(g *Global, root *CLI) error {
	cfg, err := loadConfig(root)
	if err != nil {
		return err
	}
	if w.NoExecute {
		cfg.Execution.Enabled = false
	}
	if err := config.ValidateConfig(cfg); err != nil {
		return err
	}
	logger := configureLogging(cfg.Logging, root.Verbose, g.stderr())

	builder, err := book.New(cfg, book.WithOutput(g.stdout()), book.WithLogger(logger))
	if err != nil {
		return err
	}
	watcher, err := watch.New(cfg, builder, logger)
	if err != nil {
		return err
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()
	return watcher.WithDebounce(w.Debounce).Run(ctx)
}
