// Package fsys provides the filesystem port used by the prober and executor.
//
// All paths passed to an FS are absolute paths that have already been
// confined to the pack root by the resolver. The OS implementation performs
// every content write as a scoped write: the data is staged in a temporary
// sibling file, synced, and renamed over the target, so a crash never leaves
// a half-written asset behind.
package fsys

import (
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"strings"
	"sync/atomic"
)

// FS is the set of filesystem operations the engine needs.
type FS interface {
	Stat(name string) (fs.FileInfo, error)
	// Lstat is Stat without following a final symbolic link.
	Lstat(name string) (fs.FileInfo, error)
	ReadFile(name string) ([]byte, error)
	ReadDir(name string) ([]fs.DirEntry, error)

	// WriteFileAtomic replaces name with data. Readers observe either the
	// old content or the new content, never a mix.
	WriteFileAtomic(name string, data []byte, perm fs.FileMode) error

	MkdirAll(name string, perm fs.FileMode) error
	Remove(name string) error
	RemoveAll(name string) error

	// Rename moves oldpath to newpath. It fails with an error matching
	// fs.ErrExist if newpath already exists.
	Rename(oldpath, newpath string) error
}

// tempPrefix marks staging files so they can be recognised and ignored.
const tempPrefix = ".packpatch-"

// IsTemp reports whether name is a staging file or directory left by a
// scoped write or a directory delete.
func IsTemp(name string) bool {
	return strings.HasPrefix(filepath.Base(name), tempPrefix)
}

var stagingSeq atomic.Int64

// StagingPath returns an unused hidden sibling path for target. The tag names
// the purpose, e.g. "del" for a directory staged for removal.
func StagingPath(target, tag string) string {
	n := stagingSeq.Add(1)
	name := fmt.Sprintf("%s%s.%s.%d.%d", tempPrefix, filepath.Base(target), tag, os.Getpid(), n)
	return filepath.Join(filepath.Dir(target), name)
}

// OS implements FS on the host filesystem.
type OS struct{}

// NewOS returns the host filesystem implementation.
func NewOS() *OS {
	return &OS{}
}

// Stat implements FS.
func (OS) Stat(name string) (fs.FileInfo, error) {
	return os.Stat(name)
}

// Lstat implements FS.
func (OS) Lstat(name string) (fs.FileInfo, error) {
	return os.Lstat(name)
}

// ReadFile implements FS.
func (OS) ReadFile(name string) ([]byte, error) {
	return os.ReadFile(name)
}

// ReadDir implements FS.
func (OS) ReadDir(name string) ([]fs.DirEntry, error) {
	return os.ReadDir(name)
}

// MkdirAll implements FS.
func (OS) MkdirAll(name string, perm fs.FileMode) error {
	return os.MkdirAll(name, perm)
}

// Remove implements FS.
func (OS) Remove(name string) error {
	return os.Remove(name)
}

// RemoveAll implements FS.
func (OS) RemoveAll(name string) error {
	return os.RemoveAll(name)
}

// Rename implements FS without replacing an existing destination.
func (OS) Rename(oldpath, newpath string) error {
	return renameNoReplace(oldpath, newpath)
}

// WriteFileAtomic implements FS using a temporary sibling and rename.
func (OS) WriteFileAtomic(name string, data []byte, perm fs.FileMode) error {
	dir := filepath.Dir(name)

	tmp, err := os.CreateTemp(dir, tempPrefix+filepath.Base(name)+".*.tmp")
	if err != nil {
		return fmt.Errorf("creating temp file: %w", err)
	}
	tmpPath := tmp.Name()

	// Cleanup temp file on any failure below
	committed := false
	defer func() {
		if !committed {
			_ = os.Remove(tmpPath)
		}
	}()

	if _, err := tmp.Write(data); err != nil {
		_ = tmp.Close()
		return fmt.Errorf("writing temp file: %w", err)
	}
	if err := tmp.Sync(); err != nil {
		_ = tmp.Close()
		return fmt.Errorf("syncing temp file: %w", err)
	}
	if err := tmp.Close(); err != nil {
		return fmt.Errorf("closing temp file: %w", err)
	}
	if err := os.Chmod(tmpPath, perm); err != nil {
		return fmt.Errorf("setting permissions: %w", err)
	}

	if err := os.Rename(tmpPath, name); err != nil {
		return fmt.Errorf("renaming temp file: %w", err)
	}
	committed = true

	syncDir(dir)
	return nil
}

// syncDir flushes directory metadata so a completed rename survives a crash.
// Errors are ignored; not every platform supports syncing directories.
func syncDir(dir string) {
	d, err := os.Open(dir)
	if err != nil {
		return
	}
	_ = d.Sync()
	_ = d.Close()
}

// Exists reports whether name exists. Errors other than "not exist" are returned.
func Exists(fsys FS, name string) (bool, error) {
	_, err := fsys.Stat(name)
	if err == nil {
		return true, nil
	}
	if errors.Is(err, fs.ErrNotExist) {
		return false, nil
	}
	return false, err
}

// Ensure OS implements FS.
var _ FS = (*OS)(nil)
