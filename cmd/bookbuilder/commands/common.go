package commands

import (
	"io"
	"log/slog"
	"os"

	"github.com/alecthomas/kong"

	"github.com/Calebs97/riemann-book/internal/config"
)

// Global context passed to subcommands.
type Global struct {
	Logger *slog.Logger
	Stdout io.Writer
	Stderr io.Writer
}

func (g *Global) stdout() io.Writer {
	if g == nil || g.Stdout == nil {
		return os.Stdout
	}
	return g.Stdout
}

func (g *Global) stderr() io.Writer {
	if g == nil || g.Stderr == nil {
		return os.Stderr
	}
	return g.Stderr
}

// CLI definition & global flags.
type CLI struct {
	Config  string           `short:"c" help:"Configuration file path (default bookbuilder.yaml, optional)"`
	Verbose bool             `short:"v" help:"Enable verbose logging"`
	Version kong.VersionFlag `name:"version" help:"Show version and exit"`

	Build    BuildCmd    `cmd:"" help:"Convert the chapter notebooks to HTML"`
	Watch    WatchCmd    `cmd:"" help:"Build once, then re-convert chapters whose notebooks change"`
	Init     InitCmd     `cmd:"" help:"Write the default configuration file"`
	Chapters ChaptersCmd `cmd:"" help:"List the chapters of the book"`
}

// AfterApply runs after flag parsing; setup logging once.
// nolint:unparam // AfterApply currently never returns an error.
func (c *CLI) AfterApply() error {
	level := slog.LevelInfo
	if c.Verbose {
		level = slog.LevelDebug
	}
	slog.SetDefault(slog.New(slog.NewTextHandler(os.Stderr, &slog.HandlerOptions{Level: level})))
	return nil
}

// ConfigPath returns the configuration file to read and whether it must exist.
func (c *CLI) ConfigPath() (string, bool) {
	if c.Config == "" {
		return config.DefaultConfigFile, false
	}
	return c.Config, true
}

func loadConfig(root *CLI) (*config.Config, error) {
	path, required := root.ConfigPath()
	return config.LoadOrDefault(path, required)
}

// configureLogging replaces the default logger with one honouring the
// logging section. --verbose always wins over the configured level.
func configureLogging(lc config.LoggingConfig, verbose bool, w io.Writer) *slog.Logger {
	level := lc.Level.SlogLevel()
	if verbose {
		level = slog.LevelDebug
	}
	opts := &slog.HandlerOptions{Level: level}
	var handler slog.Handler
	if lc.Format == config.LogFormatJSON {
		handler = slog.NewJSONHandler(w, opts)
	} else {
		handler = slog.NewTextHandler(w, opts)
	}
	logger := slog.New(handler)
	slog.SetDefault(logger)
	return logger
}
