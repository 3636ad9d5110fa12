//go:build !linux

package fsys

// renameNoReplace falls back to a check-then-rename on platforms without an
// atomic no-replace rename.
func renameNoReplace(oldpath, newpath string) error {
	return renameChecked(oldpath, newpath)
}
