// Package links rewrites cross-references between chapters from notebook
// targets (Chapter.ipynb) to page targets (Chapter.html).
package links

import (
	"bytes"
	"io"
	"strings"

	"golang.org/x/net/html"
)

const (
	notebookExt = ".ipynb"
	pageExt     = ".html"
)

// linkAttrs lists the element/attribute pairs treated as link contexts.
var linkAttrs = map[string]string{
	"a":    "href",
	"area": "href",
	"link": "href",
}

// Rewriter rewrites link targets that name a known chapter notebook.
type Rewriter struct {
	chapters map[string]struct{}
}

// NewRewriter builds a rewriter over the full canonical chapter list.
func NewRewriter(chapters []string) *Rewriter {
	set := make(map[string]struct{}, len(chapters))
	for _, ch := range chapters {
		set[ch] = struct{}{}
	}
	return &Rewriter{chapters: set}
}

// Destination rewrites a single link target. It reports whether the target
// was changed. Directory prefixes, queries and fragments are kept.
func (r *Rewriter) Destination(dest string) (string, bool) {
	pathPart, suffix := splitSuffix(dest)
	if strings.Contains(pathPart, "://") || strings.HasPrefix(pathPart, "//") {
		return dest, false
	}
	slash := strings.LastIndex(pathPart, "/")
	dir, file := pathPart[:slash+1], pathPart[slash+1:]
	name, ok := strings.CutSuffix(file, notebookExt)
	if !ok {
		return dest, false
	}
	if _, known := r.chapters[name]; !known {
		return dest, false
	}
	return dir + name + pageExt + suffix, true
}

// splitSuffix splits a URL reference at the first '?' or '#'.
func splitSuffix(dest string) (string, string) {
	if i := strings.IndexAny(dest, "?#"); i >= 0 {
		return dest[:i], dest[i:]
	}
	return dest, ""
}

// RewriteHTML rewrites chapter links in an HTML document or fragment.
// Tags without a rewritten attribute are copied through byte-for-byte.
func (r *Rewriter) RewriteHTML(src []byte) ([]byte, int, error) {
	var out bytes.Buffer
	out.Grow(len(src))
	z := html.NewTokenizer(bytes.NewReader(src))
	count := 0
	for {
		tt := z.Next()
		switch tt {
		case html.ErrorToken:
			if err := z.Err(); err != io.EOF {
				return nil, count, err
			}
			return out.Bytes(), count, nil
		case html.StartTagToken, html.SelfClosingTagToken:
			raw := append([]byte(nil), z.Raw()...)
			tok := z.Token()
			if r.rewriteToken(&tok) {
				count++
				out.WriteString(tok.String())
				continue
			}
			out.Write(raw)
		default:
			out.Write(z.Raw())
		}
	}
}

func (r *Rewriter) rewriteToken(tok *html.Token) bool {
	attrName, ok := linkAttrs[tok.Data]
	if !ok {
		return false
	}
	changed := false
	for i, a := range tok.Attr {
		if a.Namespace != "" || a.Key != attrName {
			continue
		}
		if next, ok := r.Destination(a.Val); ok {
			tok.Attr[i].Val = next
			changed = true
		}
	}
	return changed
}
