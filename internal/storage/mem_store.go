package storage

import (
	"fmt"
	"io/fs"
	"path/filepath"
	"sort"
	"strings"
	"sync"
	"time"
)

// MemFilesystem is an in-memory Filesystem for tests.
type MemFilesystem struct {
	mu    sync.RWMutex
	nodes map[string]*memNode
	calls MemCalls
}

// MemCalls tracks method invocations for test verification.
type MemCalls struct {
	WriteFile int
	Remove    int
	CopyFile  int
	CopyTree  int
}

type memNode struct {
	dir     bool
	data    []byte
	mode    fs.FileMode
	modTime time.Time
}

// NewMemFilesystem returns an empty tree containing only "." and "/".
func NewMemFilesystem() *MemFilesystem {
	m := &MemFilesystem{nodes: make(map[string]*memNode)}
	m.nodes["."] = &memNode{dir: true, mode: fs.ModeDir | 0o755}
	m.nodes["/"] = &memNode{dir: true, mode: fs.ModeDir | 0o755}
	return m
}

// AddFile creates a file and its parent directories.
func (m *MemFilesystem) AddFile(path string, data []byte) {
	m.mu.Lock()
	defer m.mu.Unlock()
	path = filepath.Clean(path)
	m.mkdirAllLocked(filepath.Dir(path), 0o755)
	m.nodes[path] = &memNode{data: append([]byte(nil), data...), mode: 0o644, modTime: time.Now()}
}

// Calls returns a snapshot of the invocation counters.
func (m *MemFilesystem) Calls() MemCalls {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return m.calls
}

// Files lists all regular files under root, sorted.
func (m *MemFilesystem) Files(root string) []string {
	m.mu.RLock()
	defer m.mu.RUnlock()
	root = filepath.Clean(root)
	var out []string
	for p, n := range m.nodes {
		if !n.dir && isWithin(root, p) {
			out = append(out, p)
		}
	}
	sort.Strings(out)
	return out
}

func (m *MemFilesystem) Stat(path string) (fs.FileInfo, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	path = filepath.Clean(path)
	n, ok := m.nodes[path]
	if !ok {
		return nil, &fs.PathError{Op: "stat", Path: path, Err: fs.ErrNotExist}
	}
	return memInfo{name: filepath.Base(path), node: n}, nil
}

func (m *MemFilesystem) MkdirAll(path string, perm fs.FileMode) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.mkdirAllLocked(filepath.Clean(path), perm)
}

func (m *MemFilesystem) mkdirAllLocked(path string, perm fs.FileMode) error {
	if n, ok := m.nodes[path]; ok {
		if !n.dir {
			return &fs.PathError{Op: "mkdir", Path: path, Err: fmt.Errorf("not a directory")}
		}
		return nil
	}
	if parent := filepath.Dir(path); parent != path {
		if err := m.mkdirAllLocked(parent, perm); err != nil {
			return err
		}
	}
	m.nodes[path] = &memNode{dir: true, mode: fs.ModeDir | perm, modTime: time.Now()}
	return nil
}

func (m *MemFilesystem) ReadFile(path string) ([]byte, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	path = filepath.Clean(path)
	n, ok := m.nodes[path]
	if !ok {
		return nil, &fs.PathError{Op: "open", Path: path, Err: fs.ErrNotExist}
	}
	if n.dir {
		return nil, &fs.PathError{Op: "read", Path: path, Err: fmt.Errorf("is a directory")}
	}
	return append([]byte(nil), n.data...), nil
}

func (m *MemFilesystem) WriteFile(path string, data []byte, perm fs.FileMode) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.calls.WriteFile++
	return m.writeLocked(filepath.Clean(path), data, perm)
}

func (m *MemFilesystem) writeLocked(path string, data []byte, perm fs.FileMode) error {
	parent, ok := m.nodes[filepath.Dir(path)]
	if !ok || !parent.dir {
		return &fs.PathError{Op: "open", Path: path, Err: fs.ErrNotExist}
	}
	if n, ok := m.nodes[path]; ok && n.dir {
		return &fs.PathError{Op: "open", Path: path, Err: fmt.Errorf("is a directory")}
	}
	m.nodes[path] = &memNode{data: append([]byte(nil), data...), mode: perm, modTime: time.Now()}
	return nil
}

func (m *MemFilesystem) Remove(path string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.calls.Remove++
	path = filepath.Clean(path)
	if _, ok := m.nodes[path]; !ok {
		return &fs.PathError{Op: "remove", Path: path, Err: fs.ErrNotExist}
	}
	delete(m.nodes, path)
	return nil
}

func (m *MemFilesystem) CopyFile(src, dst string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.calls.CopyFile++
	src = filepath.Clean(src)
	n, ok := m.nodes[src]
	if !ok {
		return &fs.PathError{Op: "open", Path: src, Err: fs.ErrNotExist}
	}
	if n.dir {
		return fmt.Errorf("copy %s: not a regular file", src)
	}
	return m.writeLocked(filepath.Clean(dst), n.data, n.mode.Perm())
}

func (m *MemFilesystem) CopyTree(src, dst string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.calls.CopyTree++
	src, dst = filepath.Clean(src), filepath.Clean(dst)
	root, ok := m.nodes[src]
	if !ok {
		return &fs.PathError{Op: "open", Path: src, Err: fs.ErrNotExist}
	}
	if !root.dir {
		return fmt.Errorf("copy %s: not a directory", src)
	}

	paths := make([]string, 0)
	for p := range m.nodes {
		if isWithin(src, p) {
			paths = append(paths, p)
		}
	}
	// Parents sort before children.
	sort.Strings(paths)
	for _, p := range paths {
		rel, err := filepath.Rel(src, p)
		if err != nil {
			return err
		}
		target := filepath.Join(dst, rel)
		n := m.nodes[p]
		if n.dir {
			if err := m.mkdirAllLocked(target, n.mode.Perm()); err != nil {
				return err
			}
			continue
		}
		if err := m.writeLocked(target, n.data, n.mode.Perm()); err != nil {
			return err
		}
	}
	return nil
}

func isWithin(root, p string) bool {
	if root == "." {
		return !filepath.IsAbs(p)
	}
	return p == root || strings.HasPrefix(p, root+string(filepath.Separator))
}

type memInfo struct {
	name string
	node *memNode
}

func (i memInfo) Name() string { return i.name }
func (i memInfo) Size() int64  { return int64(len(i.node.data)) }
func (i memInfo) Mode() fs.FileMode {
	if i.node.dir {
		return fs.ModeDir | i.node.mode.Perm()
	}
	return i.node.mode.Perm()
}
func (i memInfo) ModTime() time.Time { return i.node.modTime }
func (i memInfo) IsDir() bool        { return i.node.dir }
func (i memInfo) Sys() any           { return nil }
