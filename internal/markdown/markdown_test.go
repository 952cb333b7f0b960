package markdown

import (
	"encoding/json"
	"strings"
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/Calebs97/riemann-book/internal/notebook"
)

func render(t *testing.T, doc *Document, src string) string {
	t.Helper()
	out, err := doc.Render(src, nil)
	require.NoError(t, err)
	return out
}

func TestRenderBasics(t *testing.T) {
	doc := NewRenderer().NewDocument()
	out := render(t, doc, "# Traffic flow\n\nSee [acoustics](Acoustics.ipynb) and ~~old~~ text.\n\n| a | b |\n|---|---|\n| 1 | 2 |\n")

	require.Contains(t, out, `<h1 id="Traffic-flow">Traffic flow</h1>`)
	require.Contains(t, out, `<a href="Acoustics.ipynb">acoustics</a>`, "links are rewritten later, not here")
	require.Contains(t, out, "<del>old</del>")
	require.Contains(t, out, "<table>")
	require.Equal(t, "Traffic flow", doc.Title())
}

func TestRenderKeepsRawHTML(t *testing.T) {
	doc := NewRenderer().NewDocument()
	out := render(t, doc, "<div class=\"note\">Careful</div>\n")
	require.Contains(t, out, `<div class="note">Careful</div>`)
}

func TestRenderProtectsMath(t *testing.T) {
	doc := NewRenderer().NewDocument()
	out := render(t, doc, "The flux $f(q_l) - f(q_r)$ and $a<b$.\n\n$$\nq_t + f(q)_x = 0\n$$\n")

	require.Contains(t, out, "$f(q_l) - f(q_r)$", "underscores must not become emphasis")
	require.Contains(t, out, "$a&lt;b$")
	require.Contains(t, out, "$$\nq_t + f(q)_x = 0\n$$")
	require.NotContains(t, out, "MATHPH")
}

func TestRenderMathEnvironments(t *testing.T) {
	doc := NewRenderer().NewDocument()
	out := render(t, doc, "\\begin{align}\nu_t &= 0 \\\\\nv_t &= 0\n\\end{align}\n")
	require.Contains(t, out, `\begin{align}`)
	require.Contains(t, out, `\\`, "line breaks inside environments survive")
}

func TestRenderLeavesCodeAlone(t *testing.T) {
	doc := NewRenderer().NewDocument()
	out := render(t, doc, "Use `cost = $5$` inline.\n\n```python\nprice = \"$x$\"\n```\n")
	require.Contains(t, out, "<code>cost = $5$</code>")
	require.Contains(t, out, "price = &quot;$x$&quot;")
	require.NotContains(t, out, "MATHPH")
}

func TestRenderEscapedDollar(t *testing.T) {
	doc := NewRenderer().NewDocument()
	out := render(t, doc, "costs \\$5 and \\$6\n")
	require.Contains(t, out, "costs $5 and $6")
}

func TestHeadingIDsUniqueAcrossCells(t *testing.T) {
	doc := NewRenderer().NewDocument()
	first := render(t, doc, "## Riemann problem\n")
	second := render(t, doc, "## Riemann problem\n")

	require.Contains(t, first, `id="Riemann-problem"`)
	require.Contains(t, second, `id="Riemann-problem-1"`)
	require.Equal(t, "", doc.Title(), "only level-1 headings become the title")
}

func TestTitleFromFirstHeadingOnly(t *testing.T) {
	doc := NewRenderer().NewDocument()
	render(t, doc, "# Shallow *water* $h$\n")
	render(t, doc, "# Later\n")
	require.Equal(t, "Shallow water $h$", doc.Title())
}

func TestRenderAttachments(t *testing.T) {
	doc := NewRenderer().NewDocument()
	attachments := map[string]notebook.MimeBundle{
		"fan.png": {"image/png": json.RawMessage(`"iVBORw0KGgo="`)},
	}
	out, err := doc.Render("![fan](attachment:fan.png) ![other](attachment:missing.png)", attachments)
	require.NoError(t, err)

	require.Contains(t, out, `src="data:image/png;base64,iVBORw0KGgo="`)
	require.True(t, strings.Contains(out, `src="attachment:missing.png"`), out)
}
