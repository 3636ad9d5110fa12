package fsys

import (
	"io/fs"
	"os"
	"path/filepath"
	"sort"
	"strings"
	"sync"
	"time"
)

// ChangeKind describes a recorded dry-run mutation.
type ChangeKind string

const (
	ChangeWrite  ChangeKind = "write"
	ChangeRemove ChangeKind = "remove"
	ChangeRename ChangeKind = "rename"
)

// Change is a mutation the dry-run overlay intercepted.
type Change struct {
	Kind ChangeKind
	Path string
	// To is the rename destination.
	To string
	// Before is the previous content of a rewritten file. Nil when the file
	// did not exist.
	Before []byte
	// After is the content that would have been written.
	After []byte
}

// DryRun layers an in-memory overlay over a base FS. Reads see earlier
// overlay writes, so later operations observe the state earlier operations
// would have produced, while the base filesystem is never modified.
//
// Directory renames are tracked shallowly: the source disappears and the
// destination appears empty. The executor only renames directories right
// before removing them, so nothing reads their contents afterwards.
type DryRun struct {
	base FS

	mu      sync.Mutex
	files   map[string][]byte
	dirs    map[string]bool
	removed map[string]bool
	changes []Change
}

// NewDryRun wraps base in a recording overlay.
func NewDryRun(base FS) *DryRun {
	return &DryRun{
		base:    base,
		files:   make(map[string][]byte),
		dirs:    make(map[string]bool),
		removed: make(map[string]bool),
	}
}

// Changes returns the recorded mutations in the order they happened.
func (d *DryRun) Changes() []Change {
	d.mu.Lock()
	defer d.mu.Unlock()

	out := make([]Change, len(d.changes))
	copy(out, d.changes)
	return out
}

// entry kinds returned by lookup.
const (
	entryNone = iota
	entryFile
	entryDir
	entryBase
)

// lookup reports where name currently lives. Must be called with d.mu held.
func (d *DryRun) lookup(name string) int {
	if _, ok := d.files[name]; ok {
		return entryFile
	}
	if d.dirs[name] {
		return entryDir
	}
	if d.hidden(name) {
		return entryNone
	}
	return entryBase
}

// hidden reports whether name or one of its ancestors was removed.
func (d *DryRun) hidden(name string) bool {
	for p := name; ; p = filepath.Dir(p) {
		if d.removed[p] {
			return true
		}
		if filepath.Dir(p) == p {
			return false
		}
	}
}

// Stat implements FS.
func (d *DryRun) Stat(name string) (fs.FileInfo, error) {
	d.mu.Lock()
	defer d.mu.Unlock()
	return d.stat(name)
}

func (d *DryRun) stat(name string) (fs.FileInfo, error) {
	switch d.lookup(name) {
	case entryFile:
		return &overlayInfo{name: filepath.Base(name), size: int64(len(d.files[name])), mode: 0o644}, nil
	case entryDir:
		return &overlayInfo{name: filepath.Base(name), mode: fs.ModeDir | 0o755}, nil
	case entryNone:
		return nil, &fs.PathError{Op: "stat", Path: name, Err: fs.ErrNotExist}
	default:
		return d.base.Stat(name)
	}
}

// Lstat implements FS. Overlay entries are never links.
func (d *DryRun) Lstat(name string) (fs.FileInfo, error) {
	d.mu.Lock()
	defer d.mu.Unlock()

	if d.lookup(name) == entryBase {
		return d.base.Lstat(name)
	}
	return d.stat(name)
}

// ReadFile implements FS.
func (d *DryRun) ReadFile(name string) ([]byte, error) {
	d.mu.Lock()
	defer d.mu.Unlock()
	return d.readFile(name)
}

func (d *DryRun) readFile(name string) ([]byte, error) {
	switch d.lookup(name) {
	case entryFile:
		data := d.files[name]
		out := make([]byte, len(data))
		copy(out, data)
		return out, nil
	case entryDir:
		return nil, &fs.PathError{Op: "read", Path: name, Err: fs.ErrInvalid}
	case entryNone:
		return nil, &fs.PathError{Op: "open", Path: name, Err: fs.ErrNotExist}
	default:
		return d.base.ReadFile(name)
	}
}

// ReadDir implements FS. Base entries are merged with overlay entries.
func (d *DryRun) ReadDir(name string) ([]fs.DirEntry, error) {
	d.mu.Lock()
	defer d.mu.Unlock()

	kind := d.lookup(name)
	if kind == entryNone || kind == entryFile {
		return nil, &fs.PathError{Op: "readdir", Path: name, Err: fs.ErrNotExist}
	}

	byName := make(map[string]fs.DirEntry)
	if !d.hidden(name) {
		baseEntries, err := d.base.ReadDir(name)
		if err != nil && kind == entryBase {
			return nil, err
		}
		for _, e := range baseEntries {
			if !d.removed[filepath.Join(name, e.Name())] {
				byName[e.Name()] = e
			}
		}
	}

	for p := range d.files {
		if filepath.Dir(p) == name {
			byName[filepath.Base(p)] = fs.FileInfoToDirEntry(&overlayInfo{name: filepath.Base(p), size: int64(len(d.files[p])), mode: 0o644})
		}
	}
	for p := range d.dirs {
		if filepath.Dir(p) == name && p != name {
			byName[filepath.Base(p)] = fs.FileInfoToDirEntry(&overlayInfo{name: filepath.Base(p), mode: fs.ModeDir | 0o755})
		}
	}

	entries := make([]fs.DirEntry, 0, len(byName))
	for _, e := range byName {
		entries = append(entries, e)
	}
	sort.Slice(entries, func(i, j int) bool { return entries[i].Name() < entries[j].Name() })
	return entries, nil
}

// WriteFileAtomic implements FS by recording the write.
func (d *DryRun) WriteFileAtomic(name string, data []byte, _ fs.FileMode) error {
	d.mu.Lock()
	defer d.mu.Unlock()

	var before []byte
	if prev, err := d.readFile(name); err == nil {
		before = prev
	}

	stored := make([]byte, len(data))
	copy(stored, data)
	d.files[name] = stored

	d.changes = append(d.changes, Change{Kind: ChangeWrite, Path: name, Before: before, After: stored})
	return nil
}

// MkdirAll implements FS by recording the missing directories.
func (d *DryRun) MkdirAll(name string, _ fs.FileMode) error {
	d.mu.Lock()
	defer d.mu.Unlock()

	for p := name; ; p = filepath.Dir(p) {
		if _, err := d.stat(p); err == nil {
			return nil
		}
		d.dirs[p] = true
		if filepath.Dir(p) == p {
			return nil
		}
	}
}

// Remove implements FS.
func (d *DryRun) Remove(name string) error {
	d.mu.Lock()
	defer d.mu.Unlock()

	if d.lookup(name) == entryNone {
		return &fs.PathError{Op: "remove", Path: name, Err: fs.ErrNotExist}
	}
	if _, err := d.stat(name); err != nil {
		return err
	}
	d.remove(name)
	return nil
}

// RemoveAll implements FS.
func (d *DryRun) RemoveAll(name string) error {
	d.mu.Lock()
	defer d.mu.Unlock()

	if _, err := d.stat(name); err != nil {
		return nil
	}
	d.remove(name)
	return nil
}

// remove hides name and drops overlay entries beneath it. Must be called
// with d.mu held.
func (d *DryRun) remove(name string) {
	prefix := name + string(filepath.Separator)
	for p := range d.files {
		if p == name || strings.HasPrefix(p, prefix) {
			delete(d.files, p)
		}
	}
	for p := range d.dirs {
		if p == name || strings.HasPrefix(p, prefix) {
			delete(d.dirs, p)
		}
	}
	d.removed[name] = true
	d.changes = append(d.changes, Change{Kind: ChangeRemove, Path: name})
}

// Rename implements FS with no-replace semantics.
func (d *DryRun) Rename(oldpath, newpath string) error {
	d.mu.Lock()
	defer d.mu.Unlock()

	if _, err := d.stat(newpath); err == nil {
		return &os.LinkError{Op: "rename", Old: oldpath, New: newpath, Err: fs.ErrExist}
	}
	info, err := d.stat(oldpath)
	if err != nil {
		return &os.LinkError{Op: "rename", Old: oldpath, New: newpath, Err: err}
	}

	if info.IsDir() {
		d.dirs[newpath] = true
	} else {
		data, err := d.readFile(oldpath)
		if err != nil {
			return err
		}
		d.files[newpath] = data
	}
	delete(d.removed, newpath)

	// Drop the source silently; the rename is recorded as a single change.
	prefix := oldpath + string(filepath.Separator)
	for p := range d.files {
		if p == oldpath || strings.HasPrefix(p, prefix) {
			delete(d.files, p)
		}
	}
	delete(d.dirs, oldpath)
	d.removed[oldpath] = true

	d.changes = append(d.changes, Change{Kind: ChangeRename, Path: oldpath, To: newpath})
	return nil
}

// overlayInfo is a synthetic fs.FileInfo for overlay entries.
type overlayInfo struct {
	name string
	size int64
	mode fs.FileMode
}

func (i *overlayInfo) Name() string       { return i.name }
func (i *overlayInfo) Size() int64        { return i.size }
func (i *overlayInfo) Mode() fs.FileMode  { return i.mode }
func (i *overlayInfo) ModTime() time.Time { return time.Time{} }
func (i *overlayInfo) IsDir() bool        { return i.mode.IsDir() }
func (i *overlayInfo) Sys() any           { return nil }

// Ensure DryRun implements FS.
var _ FS = (*DryRun)(nil)
