package storage

import (
	"errors"
	"io/fs"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/require"
)

// filesystemContract runs the same behavioural checks against any implementation.
func filesystemContract(t *testing.T, fsys Filesystem, root string, seed func(path string, data []byte)) {
	t.Helper()

	seed(filepath.Join(root, "src", "utils", "__init__.py"), []byte(""))
	seed(filepath.Join(root, "src", "utils", "widgets", "snapshot.py"), []byte("def interact(): pass\n"))
	seed(filepath.Join(root, "src", "custom.css"), []byte("body { margin: 0 }\n"))

	out := filepath.Join(root, "out")
	require.NoError(t, fsys.MkdirAll(out, 0o755))
	require.NoError(t, fsys.MkdirAll(out, 0o755), "MkdirAll must be idempotent")

	require.NoError(t, fsys.CopyTree(filepath.Join(root, "src", "utils"), filepath.Join(out, "utils")))
	data, err := fsys.ReadFile(filepath.Join(out, "utils", "widgets", "snapshot.py"))
	require.NoError(t, err)
	require.Equal(t, "def interact(): pass\n", string(data))

	require.NoError(t, fsys.CopyFile(filepath.Join(root, "src", "custom.css"), filepath.Join(out, "custom.css")))
	data, err = fsys.ReadFile(filepath.Join(out, "custom.css"))
	require.NoError(t, err)
	require.Equal(t, "body { margin: 0 }\n", string(data))

	page := filepath.Join(out, "Index.html")
	require.NoError(t, fsys.WriteFile(page, []byte("v1"), 0o644))
	require.NoError(t, fsys.WriteFile(page, []byte("v2"), 0o644))
	data, err = fsys.ReadFile(page)
	require.NoError(t, err)
	require.Equal(t, "v2", string(data))
	require.True(t, Exists(fsys, page))

	require.NoError(t, fsys.Remove(page))
	require.False(t, Exists(fsys, page))
	require.True(t, errors.Is(fsys.Remove(page), fs.ErrNotExist))

	_, err = fsys.Stat(filepath.Join(root, "missing"))
	require.True(t, errors.Is(err, fs.ErrNotExist))

	err = fsys.WriteFile(filepath.Join(root, "no-such-dir", "x.html"), []byte("x"), 0o644)
	require.Error(t, err)

	require.Error(t, fsys.CopyTree(filepath.Join(root, "src", "custom.css"), filepath.Join(out, "bad")))
	require.Error(t, fsys.CopyFile(filepath.Join(root, "src", "utils"), filepath.Join(out, "bad")))
}

func TestOSFilesystem(t *testing.T) {
	root := t.TempDir()
	filesystemContract(t, NewOSFilesystem(), root, func(path string, data []byte) {
		require.NoError(t, os.MkdirAll(filepath.Dir(path), 0o755))
		require.NoError(t, os.WriteFile(path, data, 0o644))
	})

	entries, err := os.ReadDir(filepath.Join(root, "out"))
	require.NoError(t, err)
	for _, e := range entries {
		require.NotContains(t, e.Name(), ".tmp-", "temp files must not be left behind")
	}
}

func TestMemFilesystem(t *testing.T) {
	mem := NewMemFilesystem()
	filesystemContract(t, mem, "/book", mem.AddFile)

	require.Equal(t, []string{
		"/book/out/custom.css",
		"/book/out/utils/__init__.py",
		"/book/out/utils/widgets/snapshot.py",
	}, mem.Files("/book/out"))
	calls := mem.Calls()
	require.Equal(t, 2, calls.CopyTree)
	require.Equal(t, 2, calls.CopyFile)
	require.Equal(t, 3, calls.WriteFile)
	require.Equal(t, 2, calls.Remove)
}

func TestMemFilesystemCopyPreservesMode(t *testing.T) {
	mem := NewMemFilesystem()
	mem.AddFile("src/run.sh", []byte("#!/bin/sh\n"))
	require.NoError(t, mem.MkdirAll("out", 0o755))
	require.NoError(t, mem.WriteFile("src/run.sh", []byte("#!/bin/sh\n"), 0o755))
	require.NoError(t, mem.CopyFile("src/run.sh", "out/run.sh"))

	info, err := mem.Stat("out/run.sh")
	require.NoError(t, err)
	require.Equal(t, fs.FileMode(0o755), info.Mode().Perm())
	require.False(t, info.IsDir())
}

func TestOSFilesystemCopyTreeFollowsSymlinks(t *testing.T) {
	root := t.TempDir()
	src := filepath.Join(root, "src")
	require.NoError(t, os.MkdirAll(filepath.Join(src, "figures"), 0o755))
	require.NoError(t, os.MkdirAll(filepath.Join(src, "shared", "plots"), 0o755))
	require.NoError(t, os.WriteFile(filepath.Join(src, "shared.png"), []byte("png"), 0o644))
	require.NoError(t, os.WriteFile(filepath.Join(src, "shared", "plots", "wave.svg"), []byte("<svg/>"), 0o644))
	require.NoError(t, os.Symlink(filepath.Join(src, "shared.png"), filepath.Join(src, "figures", "linked.png")))
	require.NoError(t, os.Symlink(filepath.Join(src, "shared", "plots"), filepath.Join(src, "figures", "plots")))

	out := filepath.Join(root, "out", "figures")
	require.NoError(t, NewOSFilesystem().CopyTree(filepath.Join(src, "figures"), out))

	info, err := os.Lstat(filepath.Join(out, "linked.png"))
	require.NoError(t, err)
	require.True(t, info.Mode().IsRegular())
	data, err := os.ReadFile(filepath.Join(out, "linked.png"))
	require.NoError(t, err)
	require.Equal(t, "png", string(data))

	data, err = os.ReadFile(filepath.Join(out, "plots", "wave.svg"))
	require.NoError(t, err)
	require.Equal(t, "<svg/>", string(data))
}

func TestOSFilesystemCopyTreeRejectsBrokenAndCyclicLinks(t *testing.T) {
	root := t.TempDir()
	src := filepath.Join(root, "figures")
	require.NoError(t, os.MkdirAll(src, 0o755))
	require.NoError(t, os.Symlink(filepath.Join(root, "gone.png"), filepath.Join(src, "broken.png")))
	require.Error(t, NewOSFilesystem().CopyTree(src, filepath.Join(root, "out1")))

	require.NoError(t, os.Remove(filepath.Join(src, "broken.png")))
	require.NoError(t, os.Symlink(src, filepath.Join(src, "loop")))
	err := NewOSFilesystem().CopyTree(src, filepath.Join(root, "out2"))
	require.Error(t, err)
	require.Contains(t, err.Error(), "symlink cycle")
}

func TestOSFilesystemCopyTreeSymlinkedRoot(t *testing.T) {
	root := t.TempDir()
	realDir := filepath.Join(root, "real_utils")
	require.NoError(t, os.MkdirAll(filepath.Join(realDir, "sub"), 0o755))
	require.NoError(t, os.WriteFile(filepath.Join(realDir, "riemann.py"), []byte("def solve(): pass\n"), 0o644))
	require.NoError(t, os.WriteFile(filepath.Join(realDir, "sub", "plot.py"), []byte("pass\n"), 0o644))
	require.NoError(t, os.Symlink(realDir, filepath.Join(root, "utils")))

	out := filepath.Join(root, "out", "utils")
	require.NoError(t, NewOSFilesystem().CopyTree(filepath.Join(root, "utils"), out))

	info, err := os.Lstat(out)
	require.NoError(t, err)
	require.True(t, info.IsDir())
	data, err := os.ReadFile(filepath.Join(out, "riemann.py"))
	require.NoError(t, err)
	require.Equal(t, "def solve(): pass\n", string(data))
	data, err = os.ReadFile(filepath.Join(out, "sub", "plot.py"))
	require.NoError(t, err)
	require.Equal(t, "pass\n", string(data))
}
