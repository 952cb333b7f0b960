package commands

import (
	"fmt"
	"io"
	"slices"
	"text/tabwriter"

	"github.com/Calebs97/riemann-book/internal/config"
	"github.com/Calebs97/riemann-book/internal/export"
	"github.com/Calebs97/riemann-book/internal/storage"
)

// ChaptersCmd implements the 'chapters' command.
type ChaptersCmd struct{}

func (c *ChaptersCmd) Run(g *Global, root *CLI) error {
	cfg, err := loadConfig(root)
	if err != nil {
		return err
	}
	return ListChapters(g.stdout(), cfg)
}

// ListChapters prints the canonical chapters in order with the state of
// their notebooks and whether this configuration converts them.
func ListChapters(out io.Writer, cfg *config.Config) error {
	process := cfg.ProcessList()
	fsys := storage.NewOSFilesystem()
	tw := tabwriter.NewWriter(out, 0, 4, 2, ' ', 0)
	_, _ = fmt.Fprintln(tw, "#\tCHAPTER\tTITLE\tNOTEBOOK\tBUILD")
	for i, id := range cfg.Book.Chapters {
		notebook := "missing"
		if storage.Exists(fsys, cfg.NotebookPath(id)) {
			notebook = "present"
		}
		build := "skip"
		if slices.Contains(process, id) {
			build = "yes"
		}
		_, _ = fmt.Fprintf(tw, "%d\t%s\t%s\t%s\t%s\n", i+1, id, export.ChapterTitle(id), notebook, build)
	}
	return tw.Flush()
}
