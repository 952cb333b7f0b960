// Package execute re-runs chapter notebooks before export so widget and
// plot outputs reflect the current code.
package execute

import (
	"bytes"
	"context"
	"encoding/json"
	"log/slog"
	"os"
	"os/exec"
	"strconv"
	"strings"
	"time"

	"github.com/Calebs97/riemann-book/internal/foundation/errors"
	"github.com/Calebs97/riemann-book/internal/logfields"
	"github.com/Calebs97/riemann-book/internal/notebook"
)

// stderrTailLines bounds how much kernel output ends up in an error message.
const stderrTailLines = 15

// Executor runs every code cell of a notebook and returns the executed copy.
type Executor interface {
	Execute(ctx context.Context, nb *notebook.Notebook) (*notebook.Notebook, error)
}

// JupyterExecutor shells out to `jupyter nbconvert --execute`.
type JupyterExecutor struct {
	Binary  string        // defaults to "jupyter"
	Kernel  string        // kernel_name passed to the ExecutePreprocessor
	Timeout time.Duration // per cell; zero or negative disables the limit
	WorkDir string        // kernel working directory, the book source dir
}

// Args returns the command line arguments used to execute path.
func (j *JupyterExecutor) Args(path string) []string {
	timeout := -1
	if j.Timeout > 0 {
		timeout = int(j.Timeout.Round(time.Second) / time.Second)
		if timeout == 0 {
			timeout = 1
		}
	}
	args := []string{"nbconvert", "--to", "notebook", "--execute", "--stdout"}
	if j.Kernel != "" {
		args = append(args, "--ExecutePreprocessor.kernel_name="+j.Kernel)
	}
	args = append(args, "--ExecutePreprocessor.timeout="+strconv.Itoa(timeout), path)
	return args
}

func (j *JupyterExecutor) binary() string {
	if j.Binary == "" {
		return "jupyter"
	}
	return j.Binary
}

// Checker is implemented by executors that depend on the build environment.
type Checker interface {
	Check() error
}

// Check resolves the jupyter binary. A missing binary is a fatal
// configuration error.
func (j *JupyterExecutor) Check() error {
	_, err := j.lookPath()
	return err
}

func (j *JupyterExecutor) lookPath() (string, error) {
	bin, err := exec.LookPath(j.binary())
	if err != nil {
		return "", errors.ConfigError("notebook executor not found").WithCause(err).
			WithContext("binary", j.binary()).Build()
	}
	return bin, nil
}

// Execute writes nb next to the book sources, runs nbconvert on it and parses
// the executed document from stdout.
func (j *JupyterExecutor) Execute(ctx context.Context, nb *notebook.Notebook) (*notebook.Notebook, error) {
	bin, err := j.lookPath()
	if err != nil {
		return nil, err
	}

	data := nb.Raw()
	if len(data) == 0 {
		if data, err = json.Marshal(nb); err != nil {
			return nil, errors.InternalError("encode notebook for execution").WithCause(err).Build()
		}
	}

	tmp, err := os.CreateTemp(j.WorkDir, ".bookbuilder-exec-*.ipynb")
	if err != nil {
		return nil, errors.FileSystemError("create execution input").WithCause(err).
			WithContext("dir", j.WorkDir).Build()
	}
	path := tmp.Name()
	defer func() { _ = os.Remove(path) }()
	if _, err := tmp.Write(data); err != nil {
		_ = tmp.Close()
		return nil, errors.FileSystemError("write execution input").WithCause(err).Build()
	}
	if err := tmp.Close(); err != nil {
		return nil, errors.FileSystemError("write execution input").WithCause(err).Build()
	}

	if j.Timeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, j.Timeout*time.Duration(nb.CodeCells()+1))
		defer cancel()
	}

	// #nosec G204 -- bin comes from exec.LookPath on the configured executor
	cmd := exec.CommandContext(ctx, bin, j.Args(path)...)
	cmd.Dir = j.WorkDir
	var stdout, stderr bytes.Buffer
	cmd.Stdout = &stdout
	cmd.Stderr = &stderr

	start := time.Now()
	slog.Debug("Executing notebook", logfields.Path(path), slog.String("kernel", j.Kernel))
	runErr := cmd.Run()
	slog.Debug("Notebook execution finished",
		logfields.Path(path), logfields.DurationMS(float64(time.Since(start).Milliseconds())))

	if runErr != nil {
		msg := "notebook execution failed"
		if ctx.Err() == context.DeadlineExceeded {
			msg = "notebook execution timed out"
		}
		if tail := Tail(stderr.String(), stderrTailLines); tail != "" {
			msg += ": " + tail
		}
		return nil, errors.ExecutionError(msg).WithCause(runErr).
			WithContext("kernel", j.Kernel).Build()
	}

	executed, err := notebook.Parse(stdout.Bytes())
	if err != nil {
		return nil, errors.ExecutionError("parse executed notebook").WithCause(err).Build()
	}
	return executed, nil
}

// Tail returns the last n non-empty lines of s joined by newlines.
func Tail(s string, n int) string {
	lines := strings.Split(strings.TrimRight(s, "\n"), "\n")
	kept := make([]string, 0, n)
	for i := len(lines) - 1; i >= 0 && len(kept) < n; i-- {
		if strings.TrimSpace(lines[i]) == "" {
			continue
		}
		kept = append(kept, lines[i])
	}
	for l, r := 0, len(kept)-1; l < r; l, r = l+1, r-1 {
		kept[l], kept[r] = kept[r], kept[l]
	}
	return strings.Join(kept, "\n")
}
