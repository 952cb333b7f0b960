package storage

import (
	"fmt"
	"io"
	"io/fs"
	"os"
	"path/filepath"
)

// OSFilesystem implements Filesystem on the host filesystem.
type OSFilesystem struct{}

// NewOSFilesystem returns the host filesystem.
func NewOSFilesystem() *OSFilesystem { return &OSFilesystem{} }

func (OSFilesystem) Stat(path string) (fs.FileInfo, error) { return os.Stat(path) }

func (OSFilesystem) MkdirAll(path string, perm fs.FileMode) error { return os.MkdirAll(path, perm) }

func (OSFilesystem) ReadFile(path string) ([]byte, error) { return os.ReadFile(filepath.Clean(path)) }

func (OSFilesystem) Remove(path string) error { return os.Remove(path) }

// WriteFile writes through a temp file in the same directory and renames it
// into place, so readers never see a half-written page.
func (OSFilesystem) WriteFile(path string, data []byte, perm fs.FileMode) error {
	dir := filepath.Dir(path)
	tmp, err := os.CreateTemp(dir, "."+filepath.Base(path)+".tmp-*")
	if err != nil {
		return err
	}
	tmpName := tmp.Name()
	defer func() { _ = os.Remove(tmpName) }()

	if _, err := tmp.Write(data); err != nil {
		_ = tmp.Close()
		return err
	}
	if err := tmp.Close(); err != nil {
		return err
	}
	if err := os.Chmod(tmpName, perm); err != nil {
		return err
	}
	return os.Rename(tmpName, path)
}

// CopyFile copies a single file from src to dst.
func (OSFilesystem) CopyFile(src, dst string) error {
	srcInfo, err := os.Stat(src)
	if err != nil {
		return err
	}
	if !srcInfo.Mode().IsRegular() {
		return fmt.Errorf("copy %s: not a regular file", src)
	}
	return copyRegular(src, dst, srcInfo.Mode().Perm())
}

// CopyTree recursively copies a directory tree. Symlinks are followed and
// their targets copied; a link back into a directory already being copied
// is an error.
func (o OSFilesystem) CopyTree(src, dst string) error {
	return copyTree(src, dst, map[string]bool{})
}

func copyTree(src, dst string, active map[string]bool) error {
	srcInfo, err := os.Stat(src)
	if err != nil {
		return err
	}
	if !srcInfo.IsDir() {
		return fmt.Errorf("copy %s: not a directory", src)
	}
	resolved, err := filepath.EvalSymlinks(src)
	if err != nil {
		return err
	}
	if active[resolved] {
		return fmt.Errorf("copy %s: symlink cycle", src)
	}
	active[resolved] = true
	defer delete(active, resolved)

	// WalkDir does not descend into a symlinked root, so walk its target.
	return filepath.WalkDir(resolved, func(path string, d fs.DirEntry, walkErr error) error {
		if walkErr != nil {
			return walkErr
		}
		rel, err := filepath.Rel(resolved, path)
		if err != nil {
			return err
		}
		target := filepath.Join(dst, rel)
		info, err := d.Info()
		if err != nil {
			return err
		}
		if info.Mode()&fs.ModeSymlink != 0 {
			// Stat follows the link.
			if info, err = os.Stat(path); err != nil {
				return fmt.Errorf("copy %s: %w", path, err)
			}
			if info.IsDir() {
				return copyTree(path, target, active)
			}
		}
		switch {
		case info.IsDir():
			return os.MkdirAll(target, info.Mode().Perm()|0o700)
		case info.Mode().IsRegular():
			return copyRegular(path, target, info.Mode().Perm())
		default:
			return fmt.Errorf("copy %s: unsupported file type %s", path, info.Mode().Type())
		}
	})
}

func copyRegular(src, dst string, perm fs.FileMode) error {
	in, err := os.Open(filepath.Clean(src))
	if err != nil {
		return err
	}
	defer func() { _ = in.Close() }()

	out, err := os.OpenFile(filepath.Clean(dst), os.O_CREATE|os.O_WRONLY|os.O_TRUNC, perm)
	if err != nil {
		return err
	}
	if _, err := io.Copy(out, in); err != nil {
		_ = out.Close()
		return err
	}
	if err := out.Close(); err != nil {
		return err
	}
	return os.Chmod(dst, perm)
}
