package main

import (
	"io"
	"log/slog"
	"os"

	"github.com/alecthomas/kong"

	"github.com/Calebs97/riemann-book/cmd/bookbuilder/commands"
	"github.com/Calebs97/riemann-book/internal/foundation/errors"
	"github.com/Calebs97/riemann-book/internal/version"
)

func main() {
	os.Exit(run(os.Args[1:], os.Stdout, os.Stderr))
}

func run(args []string, stdout, stderr io.Writer) int {
	cli := &commands.CLI{}
	parser, err := kong.New(cli,
		kong.Name("bookbuilder"),
		kong.Description("Build the HTML edition of Riemann Problems and Jupyter Solutions from its chapter notebooks."),
		kong.UsageOnError(),
		kong.Writers(stdout, stderr),
		kong.Vars{"version": version.String()},
	)
	if err != nil {
		_, _ = io.WriteString(stderr, err.Error()+"\n")
		return 1
	}
	ctx, err := parser.Parse(args)
	if err != nil {
		parser.Errorf("%s", err)
		return 2
	}

	global := &commands.Global{Logger: slog.Default(), Stdout: stdout, Stderr: stderr}
	if err := ctx.Run(global, cli); err != nil {
		adapter := errors.NewCLIErrorAdapter(cli.Verbose, slog.Default())
		adapter.SetOutput(stderr)
		return adapter.Handle(err)
	}
	return 0
}
