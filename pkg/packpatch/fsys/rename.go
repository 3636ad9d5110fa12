package fsys

import (
	"io/fs"
	"os"
)

// renameChecked refuses to overwrite newpath, then renames. The check and the
// rename are separate steps; callers must serialize access to the tree.
func renameChecked(oldpath, newpath string) error {
	if _, err := os.Lstat(newpath); err == nil {
		return &os.LinkError{Op: "rename", Old: oldpath, New: newpath, Err: fs.ErrExist}
	}
	return os.Rename(oldpath, newpath)
}
