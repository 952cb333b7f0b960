// Package markdown renders notebook markdown cells to HTML with goldmark.
package markdown

import (
	"bytes"
	"strconv"
	"strings"

	"github.com/yuin/goldmark"
	gmast "github.com/yuin/goldmark/ast"
	"github.com/yuin/goldmark/extension"
	"github.com/yuin/goldmark/parser"
	"github.com/yuin/goldmark/renderer/html"
	"github.com/yuin/goldmark/text"
	"github.com/yuin/goldmark/util"

	"github.com/Calebs97/riemann-book/internal/foundation/errors"
	"github.com/Calebs97/riemann-book/internal/notebook"
)

const attachmentScheme = "attachment:"

var attachmentsKey = parser.NewContextKey()

// Renderer converts markdown cell sources to HTML. It is safe for concurrent use.
type Renderer struct {
	md goldmark.Markdown
}

// NewRenderer configures goldmark the way notebook markdown expects: GFM,
// raw HTML passed through and Jupyter-style heading anchors.
func NewRenderer() *Renderer {
	md := goldmark.New(
		goldmark.WithExtensions(extension.GFM),
		goldmark.WithParserOptions(
			parser.WithAutoHeadingID(),
			parser.WithASTTransformers(util.Prioritized(attachmentTransformer{}, 100)),
		),
		goldmark.WithRendererOptions(html.WithUnsafe()),
	)
	return &Renderer{md: md}
}

// Document renders the cells of one notebook. Heading anchors are unique
// across the document.
type Document struct {
	r     *Renderer
	ids   *headingIDs
	title string
}

// NewDocument starts a document.
func (r *Renderer) NewDocument() *Document {
	return &Document{r: r, ids: newHeadingIDs()}
}

// Title returns the text of the first level-1 heading rendered so far.
func (d *Document) Title() string { return d.title }

// Render converts one markdown cell. attachments resolves attachment: image
// references to inline data URIs.
func (d *Document) Render(src string, attachments map[string]notebook.MimeBundle) (string, error) {
	stash := &mathStash{}
	source := []byte(stash.protect(src))

	pc := parser.NewContext(parser.WithIDs(d.ids))
	pc.Set(attachmentsKey, attachments)
	root := d.r.md.Parser().Parse(text.NewReader(source), parser.WithContext(pc))

	if d.title == "" {
		if h := firstHeading(root, source); h != "" {
			d.title = stash.restoreText(h)
		}
	}

	var buf bytes.Buffer
	if err := d.r.md.Renderer().Render(&buf, source, root); err != nil {
		return "", errors.ExportError("render markdown").WithCause(err).Build()
	}
	return stash.restore(buf.String()), nil
}

func firstHeading(root gmast.Node, source []byte) string {
	var title string
	_ = gmast.Walk(root, func(n gmast.Node, entering bool) (gmast.WalkStatus, error) {
		if !entering {
			return gmast.WalkContinue, nil
		}
		if h, ok := n.(*gmast.Heading); ok && h.Level == 1 {
			title = strings.TrimSpace(plainText(h, source))
			return gmast.WalkStop, nil
		}
		return gmast.WalkContinue, nil
	})
	return title
}

func plainText(n gmast.Node, source []byte) string {
	var b strings.Builder
	_ = gmast.Walk(n, func(c gmast.Node, entering bool) (gmast.WalkStatus, error) {
		if !entering {
			return gmast.WalkContinue, nil
		}
		switch t := c.(type) {
		case *gmast.Text:
			b.Write(t.Segment.Value(source))
			if t.SoftLineBreak() {
				b.WriteByte(' ')
			}
		case *gmast.String:
			b.Write(t.Value)
		}
		return gmast.WalkContinue, nil
	})
	return b.String()
}

// attachmentTransformer inlines attachment:NAME image sources.
type attachmentTransformer struct{}

func (attachmentTransformer) Transform(doc *gmast.Document, _ text.Reader, pc parser.Context) {
	attachments, _ := pc.Get(attachmentsKey).(map[string]notebook.MimeBundle)
	if len(attachments) == 0 {
		return
	}
	_ = gmast.Walk(doc, func(n gmast.Node, entering bool) (gmast.WalkStatus, error) {
		if !entering {
			return gmast.WalkContinue, nil
		}
		img, ok := n.(*gmast.Image)
		if !ok {
			return gmast.WalkContinue, nil
		}
		name, ok := strings.CutPrefix(string(img.Destination), attachmentScheme)
		if !ok {
			return gmast.WalkContinue, nil
		}
		if uri, ok := dataURI(attachments[name]); ok {
			img.Destination = []byte(uri)
		}
		return gmast.WalkContinue, nil
	})
}

func dataURI(bundle notebook.MimeBundle) (string, bool) {
	for _, mime := range []string{"image/png", "image/jpeg", "image/gif", "image/svg+xml"} {
		payload, ok := bundle.Text(mime)
		if !ok {
			continue
		}
		if mime == "image/svg+xml" {
			return "data:image/svg+xml;utf8," + strings.ReplaceAll(payload, "#", "%23"), true
		}
		return "data:" + mime + ";base64," + strings.TrimSpace(payload), true
	}
	return "", false
}

// headingIDs produces anchors the way Jupyter does: heading text with spaces
// replaced by hyphens, case preserved, de-duplicated with a numeric suffix.
type headingIDs struct {
	used map[string]int
}

func newHeadingIDs() *headingIDs { return &headingIDs{used: make(map[string]int)} }

func (h *headingIDs) Generate(value []byte, _ gmast.NodeKind) []byte {
	base := strings.Join(strings.Fields(string(value)), "-")
	base = strings.Map(func(r rune) rune {
		switch r {
		case '"', '\'', '<', '>', '&', '?', '#', '`', '$', '*':
			return -1
		}
		return r
	}, base)
	if base == "" {
		base = "heading"
	}
	id := base
	for {
		if _, taken := h.used[id]; !taken {
			break
		}
		h.used[base]++
		id = base + "-" + strconv.Itoa(h.used[base])
	}
	h.used[id] = 0
	return []byte(id)
}

func (h *headingIDs) Put(value []byte) {
	h.used[string(value)] = 0
}
