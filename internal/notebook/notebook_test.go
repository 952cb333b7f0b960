package notebook

import (
	"os"
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/Calebs97/riemann-book/internal/foundation/errors"
)

func TestParseFixture(t *testing.T) {
	data, err := os.ReadFile("testdata/Advection.ipynb")
	require.NoError(t, err)

	nb, err := Parse(data)
	require.NoError(t, err)

	require.Equal(t, 4, nb.NBFormat)
	require.Equal(t, "python", nb.Language())
	require.Equal(t, "python2", nb.Metadata.Kernelspec.Name)
	require.Len(t, nb.Cells, 3)
	require.Equal(t, 1, nb.CodeCells())
	require.Equal(t, data, nb.Raw())

	md := nb.Cells[0]
	require.Equal(t, CellMarkdown, md.CellType)
	require.Equal(t, "# Advection\n\nSee [Acoustics](Acoustics.ipynb) for systems.", md.Source.String())

	code := nb.Cells[1]
	require.Equal(t, "print('q = 1')", code.Source.String())
	require.NotNil(t, code.ExecutionCount)
	require.Equal(t, 1, *code.ExecutionCount)
	require.True(t, code.HasTag("hide"))
	require.False(t, code.HasTag("remove_cell"))

	stream := code.Outputs[0]
	require.Equal(t, OutputStream, stream.OutputType)
	require.Equal(t, "stdout", stream.Name)
	require.Equal(t, "q = 1\nu = 2\n", stream.Text.String())

	result := code.Outputs[1]
	png, ok := result.Data.Text("image/png")
	require.True(t, ok)
	require.Equal(t, "iVBORw0KGgo=", png)
	plain, ok := result.Data.Text("text/plain")
	require.True(t, ok)
	require.Equal(t, "<Figure>", plain)
	require.False(t, result.Data.Has("text/html"))

	require.Equal(t, "text/html", nb.Cells[2].Metadata.RawFormat())
}

func TestParseRejectsMalformed(t *testing.T) {
	tests := []struct {
		name string
		doc  string
		want string
	}{
		{"not json", `{"cells": [`, "decode notebook"},
		{"missing version", `{"cells": []}`, "missing nbformat"},
		{"old version", `{"nbformat": 3, "worksheets": []}`, "unsupported nbformat 3"},
		{"missing cells", `{"nbformat": 4, "nbformat_minor": 2, "metadata": {}}`, "no cells"},
		{"unknown cell", `{"nbformat": 4, "cells": [{"cell_type": "heading", "source": ""}]}`, "unknown type"},
		{"bad source", `{"nbformat": 4, "cells": [{"cell_type": "code", "source": 12}]}`, "decode notebook"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := Parse([]byte(tt.doc))
			require.Error(t, err)
			require.Contains(t, err.Error(), tt.want)
			require.True(t, errors.HasCategory(err, errors.CategoryNotebook))
		})
	}
}

func TestLanguageFallback(t *testing.T) {
	doc := `{"nbformat": 4, "nbformat_minor": 4, "metadata": {"kernelspec": {"name": "julia-1.9", "language": "julia"}}, "cells": []}`
	nb, err := Parse([]byte(doc))
	require.NoError(t, err)
	require.Equal(t, "julia", nb.Language())

	nb, err = Parse([]byte(`{"nbformat": 4, "cells": []}`))
	require.NoError(t, err)
	require.Equal(t, "python", nb.Language())
}

func TestMimeBundleDecode(t *testing.T) {
	doc := `{"nbformat": 4, "cells": [{"cell_type": "code", "source": "", "outputs": [
		{"output_type": "display_data", "data": {"application/vnd.jupyter.widget-view+json": {"model_id": "abc", "version_major": 2}}}
	]}]}`
	nb, err := Parse([]byte(doc))
	require.NoError(t, err)

	var view struct {
		ModelID string `json:"model_id"`
	}
	bundle := nb.Cells[0].Outputs[0].Data
	require.NoError(t, bundle.Decode("application/vnd.jupyter.widget-view+json", &view))
	require.Equal(t, "abc", view.ModelID)
	require.Error(t, bundle.Decode("text/html", &view))

	_, ok := bundle.Text("application/vnd.jupyter.widget-view+json")
	require.False(t, ok, "objects are not text payloads")
}
