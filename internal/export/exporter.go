// Package export converts chapter notebooks into standalone HTML pages.
package export

import (
	"bytes"
	"context"
	"html/template"
	"log/slog"

	"github.com/Calebs97/riemann-book/internal/execute"
	"github.com/Calebs97/riemann-book/internal/foundation/errors"
	"github.com/Calebs97/riemann-book/internal/links"
	"github.com/Calebs97/riemann-book/internal/logfields"
	"github.com/Calebs97/riemann-book/internal/markdown"
	"github.com/Calebs97/riemann-book/internal/notebook"
)

// Exporter turns a notebook into a page.
type Exporter interface {
	Export(ctx context.Context, nb *notebook.Notebook, chapterID string) (string, Resources, error)
}

// Options configures an HTMLExporter.
type Options struct {
	Template   string   // html/template file; empty uses the built-in page
	Spec       string   // widget runtime spec, emitted as data-nbinteract-spec
	Chapters   []string // canonical chapter list, the cross-reference targets
	Index      string
	Stylesheet string
	Executor   execute.Executor // nil exports stored outputs
}

// Resources describes an export, for logging.
type Resources struct {
	Title     string
	Cells     int
	Executed  bool
	Rewritten int // cross-references rewritten to .html
}

// HTMLExporter renders notebooks through a page template.
type HTMLExporter struct {
	opts     Options
	tmpl     *template.Template
	md       *markdown.Renderer
	rewriter *links.Rewriter
}

// NewHTMLExporter parses the page template and prepares the renderers.
func NewHTMLExporter(opts Options) (*HTMLExporter, error) {
	tmpl, err := loadTemplate(opts.Template)
	if err != nil {
		return nil, err
	}
	return &HTMLExporter{
		opts:     opts,
		tmpl:     tmpl,
		md:       markdown.NewRenderer(),
		rewriter: links.NewRewriter(opts.Chapters),
	}, nil
}

// Check reports whether the configured executor can run in this environment.
func (e *HTMLExporter) Check() error {
	if c, ok := e.opts.Executor.(execute.Checker); ok {
		return c.Check()
	}
	return nil
}

// Export executes nb when an executor is configured, renders it and rewrites
// chapter cross-references. Errors are per chapter.
func (e *HTMLExporter) Export(ctx context.Context, nb *notebook.Notebook, chapterID string) (string, Resources, error) {
	var res Resources
	if e.opts.Executor != nil {
		executed, err := e.opts.Executor.Execute(ctx, nb)
		if err != nil {
			if errors.IsClassified(err) {
				return "", res, err
			}
			return "", res, errors.ExecutionError("execute notebook").WithCause(err).Build()
		}
		nb = executed
		res.Executed = true
	}
	if err := ctx.Err(); err != nil {
		return "", res, err
	}

	r := &cellRenderer{doc: e.md.NewDocument(), language: nb.Language()}
	title := nb.Metadata.Title
	firstMarkdown := true
	for i, c := range nb.Cells {
		if err := r.render(i, c); err != nil {
			return "", res, err
		}
		if c.CellType == notebook.CellMarkdown && firstMarkdown {
			firstMarkdown = false
			if title == "" {
				title = r.doc.Title()
			}
		}
	}
	if title == "" {
		title = ChapterTitle(chapterID)
	}
	res.Title = title
	res.Cells = len(nb.Cells)

	chapters, idx, prev, next := navigation(e.opts.Chapters, e.opts.Index, chapterID, ".html")
	data := PageData{
		Title:      title,
		Chapter:    chapterID,
		Spec:       e.opts.Spec,
		Language:   nb.Language(),
		Stylesheet: e.opts.Stylesheet,
		Index:      idx,
		Prev:       prev,
		Next:       next,
		Chapters:   chapters,
		Body:       template.HTML(r.sb.String()), // #nosec G203 -- notebook HTML is trusted book content
	}
	var buf bytes.Buffer
	if err := e.tmpl.Execute(&buf, data); err != nil {
		return "", res, errors.ExportError("execute page template").WithCause(err).Build()
	}

	page, n, err := e.rewriter.RewriteHTML(buf.Bytes())
	if err != nil {
		return "", res, errors.ExportError("rewrite cross-references").WithCause(err).Build()
	}
	res.Rewritten = n
	slog.Debug("Exported chapter", logfields.Chapter(chapterID),
		slog.String("title", title), slog.Int("cells", res.Cells), slog.Int("rewritten", n))
	return string(page), res, nil
}
