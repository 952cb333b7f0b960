// Package notebook models the subset of the Jupyter nbformat 4 document
// needed to render a chapter.
package notebook

import (
	"bytes"
	"encoding/json"
	"fmt"
	"strings"

	"github.com/Calebs97/riemann-book/internal/foundation/errors"
)

// SupportedMajor is the only nbformat major version accepted.
const SupportedMajor = 4

// CellType enumerates nbformat cell kinds.
type CellType string

const (
	CellMarkdown CellType = "markdown"
	CellCode     CellType = "code"
	CellRaw      CellType = "raw"
)

// OutputType enumerates code cell output kinds.
type OutputType string

const (
	OutputStream        OutputType = "stream"
	OutputExecuteResult OutputType = "execute_result"
	OutputDisplayData   OutputType = "display_data"
	OutputError         OutputType = "error"
)

// Notebook is a decoded nbformat 4 document.
type Notebook struct {
	NBFormat      int      `json:"nbformat"`
	NBFormatMinor int      `json:"nbformat_minor"`
	Metadata      Metadata `json:"metadata"`
	Cells         []Cell   `json:"cells"`

	raw []byte
}

// Metadata holds the notebook-level fields the exporter reads.
type Metadata struct {
	Kernelspec   *Kernelspec   `json:"kernelspec,omitempty"`
	LanguageInfo *LanguageInfo `json:"language_info,omitempty"`
	Title        string        `json:"title,omitempty"`
}

type Kernelspec struct {
	Name        string `json:"name"`
	DisplayName string `json:"display_name,omitempty"`
	Language    string `json:"language,omitempty"`
}

type LanguageInfo struct {
	Name    string `json:"name"`
	Version string `json:"version,omitempty"`
}

// Cell is one notebook cell.
type Cell struct {
	ID             string                `json:"id,omitempty"`
	CellType       CellType              `json:"cell_type"`
	Source         MultilineString       `json:"source"`
	Metadata       CellMetadata          `json:"metadata"`
	ExecutionCount *int                  `json:"execution_count,omitempty"`
	Outputs        []Output              `json:"outputs,omitempty"`
	Attachments    map[string]MimeBundle `json:"attachments,omitempty"`
}

// CellMetadata holds the per-cell fields the exporter honours.
type CellMetadata struct {
	Tags        []string `json:"tags,omitempty"`
	Format      string   `json:"format,omitempty"`       // raw cell target MIME type
	RawMimetype string   `json:"raw_mimetype,omitempty"` // pre-4.1 spelling of Format
}

// RawFormat returns the target MIME type of a raw cell.
func (m CellMetadata) RawFormat() string {
	if m.Format != "" {
		return m.Format
	}
	return m.RawMimetype
}

// HasTag reports whether the cell carries tag.
func (c Cell) HasTag(tag string) bool {
	for _, t := range c.Metadata.Tags {
		if t == tag {
			return true
		}
	}
	return false
}

// Output is one code cell output.
type Output struct {
	OutputType     OutputType      `json:"output_type"`
	Name           string          `json:"name,omitempty"`
	Text           MultilineString `json:"text,omitempty"`
	Data           MimeBundle      `json:"data,omitempty"`
	ExecutionCount *int            `json:"execution_count,omitempty"`
	EName          string          `json:"ename,omitempty"`
	EValue         string          `json:"evalue,omitempty"`
	Traceback      []string        `json:"traceback,omitempty"`
}

// MultilineString decodes nbformat text fields, which are either a string
// or a list of lines.
type MultilineString string

func (s *MultilineString) UnmarshalJSON(data []byte) error {
	data = bytes.TrimSpace(data)
	if len(data) == 0 || bytes.Equal(data, []byte("null")) {
		*s = ""
		return nil
	}
	if data[0] == '[' {
		var lines []string
		if err := json.Unmarshal(data, &lines); err != nil {
			return err
		}
		*s = MultilineString(strings.Join(lines, ""))
		return nil
	}
	var str string
	if err := json.Unmarshal(data, &str); err != nil {
		return err
	}
	*s = MultilineString(str)
	return nil
}

func (s MultilineString) String() string { return string(s) }

// MimeBundle maps MIME types to their JSON encoded payloads.
type MimeBundle map[string]json.RawMessage

// Text returns a textual payload (string or list of lines) for mime.
func (b MimeBundle) Text(mime string) (string, bool) {
	raw, ok := b[mime]
	if !ok {
		return "", false
	}
	var s MultilineString
	if err := json.Unmarshal(raw, &s); err != nil {
		return "", false
	}
	return string(s), true
}

// Has reports whether mime is present.
func (b MimeBundle) Has(mime string) bool {
	_, ok := b[mime]
	return ok
}

// Decode decodes a JSON payload for mime into v.
func (b MimeBundle) Decode(mime string, v any) error {
	raw, ok := b[mime]
	if !ok {
		return fmt.Errorf("mime type %s not present", mime)
	}
	return json.Unmarshal(raw, v)
}

// Parse decodes and validates a notebook document.
func Parse(data []byte) (*Notebook, error) {
	var probe struct {
		NBFormat *int             `json:"nbformat"`
		Cells    *json.RawMessage `json:"cells"`
	}
	if err := json.Unmarshal(data, &probe); err != nil {
		return nil, errors.NotebookError("decode notebook").WithCause(err).Build()
	}
	switch {
	case probe.NBFormat == nil:
		return nil, errors.NotebookError("missing nbformat version").Build()
	case *probe.NBFormat != SupportedMajor:
		return nil, errors.NotebookError(fmt.Sprintf("unsupported nbformat %d (want %d)", *probe.NBFormat, SupportedMajor)).
			WithContext("nbformat", *probe.NBFormat).Build()
	case probe.Cells == nil:
		return nil, errors.NotebookError("notebook has no cells array").Build()
	}

	var nb Notebook
	if err := json.Unmarshal(data, &nb); err != nil {
		return nil, errors.NotebookError("decode notebook").WithCause(err).Build()
	}
	for i, c := range nb.Cells {
		switch c.CellType {
		case CellMarkdown, CellCode, CellRaw:
		default:
			return nil, errors.NotebookError(fmt.Sprintf("cell %d has unknown type %q", i, c.CellType)).Build()
		}
	}
	nb.raw = append([]byte(nil), data...)
	return &nb, nil
}

// Raw returns the document bytes the notebook was parsed from.
func (nb *Notebook) Raw() []byte { return nb.raw }

// Language returns the kernel language, defaulting to python.
func (nb *Notebook) Language() string {
	if li := nb.Metadata.LanguageInfo; li != nil && li.Name != "" {
		return li.Name
	}
	if ks := nb.Metadata.Kernelspec; ks != nil && ks.Language != "" {
		return ks.Language
	}
	return "python"
}

// CodeCells counts code cells.
func (nb *Notebook) CodeCells() int {
	n := 0
	for _, c := range nb.Cells {
		if c.CellType == CellCode {
			n++
		}
	}
	return n
}
