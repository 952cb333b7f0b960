package export

import (
	"encoding/json"
	"fmt"
	"regexp"
	"strings"

	"golang.org/x/net/html"

	"github.com/Calebs97/riemann-book/internal/foundation/errors"
	"github.com/Calebs97/riemann-book/internal/markdown"
	"github.com/Calebs97/riemann-book/internal/notebook"
)

// Cell tags honoured by the exporter.
const (
	TagRemoveCell   = "remove_cell"
	TagRemoveInput  = "remove_input"
	TagRemoveOutput = "remove_output"
)

const (
	mimeWidgetView = "application/vnd.jupyter.widget-view+json"
	mimeHTML       = "text/html"
	mimeSVG        = "image/svg+xml"
	mimePNG        = "image/png"
	mimeJPEG       = "image/jpeg"
	mimeMarkdown   = "text/markdown"
	mimeLatex      = "text/latex"
	mimePlain      = "text/plain"
)

// mimePriority is the display order for rich outputs; the first present wins.
var mimePriority = []string{
	mimeWidgetView, mimeHTML, mimeSVG, mimePNG, mimeJPEG, mimeMarkdown, mimeLatex, mimePlain,
}

var ansiEscape = regexp.MustCompile(`\x1b\[[0-9;?]*[ -/]*[@-~]`)

// StripANSI removes terminal colour sequences from kernel output.
func StripANSI(s string) string { return ansiEscape.ReplaceAllString(s, "") }

// cellRenderer renders the cells of one chapter.
type cellRenderer struct {
	doc      *markdown.Document
	language string
	sb       strings.Builder
}

func (r *cellRenderer) render(i int, c notebook.Cell) error {
	if c.HasTag(TagRemoveCell) {
		return nil
	}
	switch c.CellType {
	case notebook.CellMarkdown:
		out, err := r.doc.Render(c.Source.String(), c.Attachments)
		if err != nil {
			return errors.ExportError("render markdown cell").WithCause(err).
				WithContext("cell", i).Build()
		}
		r.sb.WriteString(`<div class="cell text_cell rendered"><div class="inner_cell"><div class="text_cell_render rendered_html">` + "\n")
		r.sb.WriteString(out)
		r.sb.WriteString("</div></div></div>\n")
	case notebook.CellCode:
		return r.code(i, c)
	case notebook.CellRaw:
		switch c.Metadata.RawFormat() {
		case mimeHTML, "html":
			r.sb.WriteString(c.Source.String())
			r.sb.WriteString("\n")
		}
	}
	return nil
}

func (r *cellRenderer) code(i int, c notebook.Cell) error {
	r.sb.WriteString(`<div class="cell code_cell rendered">` + "\n")
	if !c.HasTag(TagRemoveInput) {
		fmt.Fprintf(&r.sb, `<div class="input"><div class="prompt input_prompt">In&nbsp;[%s]:</div>`, prompt(c.ExecutionCount))
		fmt.Fprintf(&r.sb, `<div class="inner_cell"><div class="input_area"><pre><code class="language-%s">%s</code></pre></div></div></div>`+"\n",
			html.EscapeString(r.language), html.EscapeString(c.Source.String()))
	}
	if len(c.Outputs) > 0 && !c.HasTag(TagRemoveOutput) {
		r.sb.WriteString(`<div class="output_wrapper"><div class="output">` + "\n")
		for j, o := range c.Outputs {
			if err := r.output(o); err != nil {
				return errors.ExportError("render cell output").WithCause(err).
					WithContext("cell", i).WithContext("output", j).Build()
			}
		}
		r.sb.WriteString("</div></div>\n")
	}
	r.sb.WriteString("</div>\n")
	return nil
}

func prompt(count *int) string {
	if count == nil {
		return "&nbsp;"
	}
	return fmt.Sprintf("%d", *count)
}

func (r *cellRenderer) output(o notebook.Output) error {
	r.sb.WriteString(`<div class="output_area">`)
	defer r.sb.WriteString("</div>\n")

	switch o.OutputType {
	case notebook.OutputStream:
		name := o.Name
		if name == "" {
			name = "stdout"
		}
		fmt.Fprintf(&r.sb, `<pre class="output_stream output_%s">%s</pre>`,
			html.EscapeString(name), html.EscapeString(StripANSI(o.Text.String())))
	case notebook.OutputError:
		text := strings.Join(o.Traceback, "\n")
		if text == "" {
			text = o.EName + ": " + o.EValue
		}
		fmt.Fprintf(&r.sb, `<pre class="output_error">%s</pre>`, html.EscapeString(StripANSI(text)))
	case notebook.OutputExecuteResult, notebook.OutputDisplayData:
		if o.OutputType == notebook.OutputExecuteResult && o.ExecutionCount != nil {
			fmt.Fprintf(&r.sb, `<div class="prompt output_prompt">Out[%d]:</div>`, *o.ExecutionCount)
		}
		return r.rich(o.Data)
	}
	return nil
}

// rich renders the highest priority representation of a MIME bundle.
func (r *cellRenderer) rich(data notebook.MimeBundle) error {
	mime := ""
	for _, m := range mimePriority {
		if data.Has(m) {
			mime = m
			break
		}
	}
	switch mime {
	case "":
		return nil
	case mimeWidgetView:
		var view json.RawMessage
		if err := data.Decode(mime, &view); err != nil {
			return err
		}
		// The widget runtime finds views by their script type.
		payload := strings.ReplaceAll(string(view), "</", `<\/`)
		fmt.Fprintf(&r.sb, `<div class="output_subarea output_widget_view"><script type="%s">%s</script></div>`, mime, payload)
		return nil
	case mimePNG, mimeJPEG:
		b64, _ := data.Text(mime)
		b64 = strings.Join(strings.Fields(b64), "")
		fmt.Fprintf(&r.sb, `<div class="output_subarea output_image"><img src="data:%s;base64,%s"></div>`, mime, b64)
		return nil
	case mimeMarkdown:
		text, _ := data.Text(mime)
		out, err := r.doc.Render(text, nil)
		if err != nil {
			return err
		}
		r.sb.WriteString(`<div class="output_subarea output_markdown rendered_html">` + out + "</div>")
		return nil
	}

	text, ok := data.Text(mime)
	if !ok {
		return fmt.Errorf("output %s is not text", mime)
	}
	switch mime {
	case mimeHTML:
		r.sb.WriteString(`<div class="output_subarea output_html rendered_html">` + text + "</div>")
	case mimeSVG:
		r.sb.WriteString(`<div class="output_subarea output_svg">` + text + "</div>")
	case mimeLatex:
		r.sb.WriteString(`<div class="output_subarea output_latex">` + html.EscapeString(text) + "</div>")
	default:
		r.sb.WriteString(`<div class="output_subarea output_text"><pre>` + html.EscapeString(StripANSI(text)) + "</pre></div>")
	}
	return nil
}
