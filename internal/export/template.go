package export

import (
	"embed"
	"html/template"
	"os"
	"path/filepath"
	"strings"

	"golang.org/x/text/cases"
	"golang.org/x/text/language"

	"github.com/Calebs97/riemann-book/internal/foundation/errors"
)

//go:embed templates/page.html.tmpl
var embeddedTemplates embed.FS

const defaultTemplateName = "templates/page.html.tmpl"

// PageData is the value the page template is executed with.
type PageData struct {
	Title      string
	Chapter    string
	Spec       string
	Language   string
	Stylesheet string
	Index      *ChapterLink // nil on the index page itself
	Prev       *ChapterLink
	Next       *ChapterLink
	Chapters   []ChapterLink
	Body       template.HTML
}

// ChapterLink is one entry of the chapter navigation.
type ChapterLink struct {
	ID      string
	Title   string
	Href    string
	Current bool
}

var templateFuncs = template.FuncMap{
	"chapterTitle": ChapterTitle,
}

// loadTemplate parses the page template at path, or the embedded page when
// path is empty.
func loadTemplate(path string) (*template.Template, error) {
	if path == "" {
		t, err := template.New("page.html.tmpl").Funcs(templateFuncs).ParseFS(embeddedTemplates, defaultTemplateName)
		if err != nil {
			return nil, errors.InternalError("parse embedded page template").WithCause(err).Build()
		}
		return t, nil
	}
	// #nosec G304 -- template path comes from the book configuration
	raw, err := os.ReadFile(path)
	if err != nil {
		return nil, errors.WrapError(err, errors.CategoryConfig, "read page template").Fatal().
			WithContext("path", path).Build()
	}
	t, err := template.New(filepath.Base(path)).Funcs(templateFuncs).Parse(string(raw))
	if err != nil {
		return nil, errors.WrapError(err, errors.CategoryConfig, "parse page template").Fatal().
			WithContext("path", path).Build()
	}
	return t, nil
}

// ChapterTitle derives a display title from a chapter id: underscores become
// spaces and each word is capitalised, keeping existing capitals.
func ChapterTitle(id string) string {
	caser := cases.Title(language.English, cases.NoLower)
	return caser.String(strings.ReplaceAll(id, "_", " "))
}

// navigation builds the chapter links around current.
func navigation(chapters []string, index, current, ext string) (links []ChapterLink, idx, prev, next *ChapterLink) {
	links = make([]ChapterLink, len(chapters))
	pos := -1
	for i, id := range chapters {
		links[i] = ChapterLink{ID: id, Title: ChapterTitle(id), Href: id + ext, Current: id == current}
		if id == current {
			pos = i
		}
	}
	for i := range links {
		if links[i].ID == index && index != current {
			idx = &links[i]
		}
	}
	if pos > 0 {
		prev = &links[pos-1]
	}
	if pos >= 0 && pos < len(links)-1 {
		next = &links[pos+1]
	}
	return links, idx, prev, next
}
