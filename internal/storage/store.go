// Package storage abstracts the filesystem operations the book builder
// performs so tests can substitute an in-memory tree.
package storage

import (
	"io/fs"
)

// Filesystem is the set of operations used to stage assets and write pages.
type Filesystem interface {
	// Stat returns file info for path. Missing paths return an error
	// satisfying errors.Is(err, fs.ErrNotExist).
	Stat(path string) (fs.FileInfo, error)

	// MkdirAll creates path and any missing parents. Existing directories are not an error.
	MkdirAll(path string, perm fs.FileMode) error

	// ReadFile returns the contents of a regular file.
	ReadFile(path string) ([]byte, error)

	// WriteFile replaces the contents of path. The parent directory must exist.
	WriteFile(path string, data []byte, perm fs.FileMode) error

	// Remove deletes a single file. Missing files return fs.ErrNotExist.
	Remove(path string) error

	// CopyFile copies a regular file byte-for-byte, keeping its permission bits.
	CopyFile(src, dst string) error

	// CopyTree copies the directory src recursively to dst, merging into an
	// existing dst.
	CopyTree(src, dst string) error
}

// Exists reports whether path exists on fsys.
func Exists(fsys Filesystem, path string) bool {
	_, err := fsys.Stat(path)
	return err == nil
}
