package execute

import (
	"context"
	"os"
	"path/filepath"
	"runtime"
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"github.com/Calebs97/riemann-book/internal/foundation/errors"
	"github.com/Calebs97/riemann-book/internal/notebook"
)

const minimalNotebook = `{"nbformat": 4, "nbformat_minor": 2, "metadata": {},
 "cells": [{"cell_type": "code", "source": "1+1", "metadata": {}, "outputs": []}]}`

func fakeJupyter(t *testing.T, body string) string {
	t.Helper()
	if runtime.GOOS == "windows" {
		t.Skip("shell script executor")
	}
	path := filepath.Join(t.TempDir(), "jupyter")
	require.NoError(t, os.WriteFile(path, []byte("#!/bin/sh\n"+body+"\n"), 0o755)) // #nosec G306 -- test executable
	return path
}

func TestArgs(t *testing.T) {
	j := &JupyterExecutor{Kernel: "python2", Timeout: 60 * time.Second}
	require.Equal(t, []string{
		"nbconvert", "--to", "notebook", "--execute", "--stdout",
		"--ExecutePreprocessor.kernel_name=python2",
		"--ExecutePreprocessor.timeout=60",
		"Advection.ipynb",
	}, j.Args("Advection.ipynb"))

	j = &JupyterExecutor{}
	require.Equal(t, []string{
		"nbconvert", "--to", "notebook", "--execute", "--stdout",
		"--ExecutePreprocessor.timeout=-1",
		"x.ipynb",
	}, j.Args("x.ipynb"))

	j = &JupyterExecutor{Timeout: 200 * time.Millisecond}
	require.Contains(t, j.Args("x.ipynb"), "--ExecutePreprocessor.timeout=1")
}

func TestExecuteParsesStdout(t *testing.T) {
	// Echo the input notebook back with an execution count filled in.
	bin := fakeJupyter(t, `for a in "$@"; do last="$a"; done
sed 's/"metadata": {}, "outputs"/"metadata": {}, "execution_count": 1, "outputs"/' "$last"`)
	work := t.TempDir()

	nb, err := notebook.Parse([]byte(minimalNotebook))
	require.NoError(t, err)

	j := &JupyterExecutor{Binary: bin, Kernel: "python3", Timeout: 5 * time.Second, WorkDir: work}
	out, err := j.Execute(context.Background(), nb)
	require.NoError(t, err)
	require.Len(t, out.Cells, 1)
	require.NotNil(t, out.Cells[0].ExecutionCount)
	require.Equal(t, 1, *out.Cells[0].ExecutionCount)

	entries, err := os.ReadDir(work)
	require.NoError(t, err)
	require.Empty(t, entries, "temporary input must be removed")
}

func TestExecuteRunsInWorkDir(t *testing.T) {
	bin := fakeJupyter(t, `test -f utils_marker || { echo "not in source dir" >&2; exit 3; }
for a in "$@"; do last="$a"; done
cat "$last"`)
	work := t.TempDir()
	require.NoError(t, os.WriteFile(filepath.Join(work, "utils_marker"), nil, 0o600))

	nb, err := notebook.Parse([]byte(minimalNotebook))
	require.NoError(t, err)
	_, err = (&JupyterExecutor{Binary: bin, WorkDir: work}).Execute(context.Background(), nb)
	require.NoError(t, err)
}

func TestExecuteFailureCarriesStderrTail(t *testing.T) {
	bin := fakeJupyter(t, `echo "Traceback (most recent call last):" >&2
echo "NameError: name 'riemann' is not defined" >&2
exit 1`)

	nb, err := notebook.Parse([]byte(minimalNotebook))
	require.NoError(t, err)
	_, err = (&JupyterExecutor{Binary: bin, WorkDir: t.TempDir()}).Execute(context.Background(), nb)
	require.Error(t, err)
	require.True(t, errors.HasCategory(err, errors.CategoryExecution))
	require.Contains(t, err.Error(), "NameError: name 'riemann' is not defined")
	require.False(t, errors.IsFatal(err))
}

func TestExecuteMalformedOutput(t *testing.T) {
	bin := fakeJupyter(t, `echo "not json"`)
	nb, err := notebook.Parse([]byte(minimalNotebook))
	require.NoError(t, err)
	_, err = (&JupyterExecutor{Binary: bin, WorkDir: t.TempDir()}).Execute(context.Background(), nb)
	require.Error(t, err)
	require.True(t, errors.HasCategory(err, errors.CategoryExecution))
}

func TestExecuteMissingBinary(t *testing.T) {
	nb, err := notebook.Parse([]byte(minimalNotebook))
	require.NoError(t, err)
	j := &JupyterExecutor{Binary: filepath.Join(t.TempDir(), "no-such-jupyter")}
	_, err = j.Execute(context.Background(), nb)
	require.Error(t, err)
	require.Contains(t, err.Error(), "notebook executor not found")
	require.True(t, errors.HasCategory(err, errors.CategoryConfig))
	require.True(t, errors.IsFatal(err))

	checkErr := j.Check()
	require.Error(t, checkErr)
	require.True(t, errors.IsFatal(checkErr))
}

func TestCheckResolvesBinary(t *testing.T) {
	bin := fakeJupyter(t, `exit 0`)
	require.NoError(t, (&JupyterExecutor{Binary: bin}).Check())
}

func TestTail(t *testing.T) {
	require.Equal(t, "", Tail("", 3))
	require.Equal(t, "c\nd", Tail("a\nb\n\nc\nd\n\n", 2))
	require.Equal(t, "a\nb", Tail("a\nb", 5))
}
