// Package resolve maps logical asset paths onto the filesystem.
//
// Resolve is the single chokepoint every mutating operation passes through
// before touching disk. It performs no I/O: it only normalises the logical
// path and proves the result is a strict descendant of the pack root.
package resolve

import (
	"path"
	"path/filepath"
	"strings"

	"github.com/jamesainslie/packpatch/pkg/packpatch/types"
)

// reservedNames are device names Windows refuses as file names regardless of
// extension. Accepting them would make a manifest platform dependent.
var reservedNames = map[string]bool{
	"CON": true, "PRN": true, "AUX": true, "NUL": true,
	"COM1": true, "COM2": true, "COM3": true, "COM4": true, "COM5": true,
	"COM6": true, "COM7": true, "COM8": true, "COM9": true,
	"LPT1": true, "LPT2": true, "LPT3": true, "LPT4": true, "LPT5": true,
	"LPT6": true, "LPT7": true, "LPT8": true, "LPT9": true,
}

// Resolve returns the absolute filesystem path for logical under root.
// It fails with an error matching types.ErrPathEscape when the path is
// malformed or would not land strictly inside the root.
func Resolve(root *types.PackRoot, logical string) (string, error) {
	if err := Check(logical); err != nil {
		return "", err
	}

	clean := path.Clean(logical)
	abs := filepath.Join(root.Path, filepath.FromSlash(clean))

	rel, err := filepath.Rel(root.Path, abs)
	if err != nil {
		return "", escape(logical, "cannot be made relative to root")
	}
	if rel == "." || rel == ".." || strings.HasPrefix(rel, ".."+string(filepath.Separator)) {
		return "", escape(logical, "resolves outside the pack root")
	}

	return abs, nil
}

// Check validates the syntax of a logical path without a root.
func Check(logical string) error {
	switch {
	case logical == "":
		return escape(logical, "empty path")
	case strings.ContainsRune(logical, 0):
		return escape(logical, "contains NUL byte")
	case strings.Contains(logical, `\`):
		return escape(logical, "contains backslash")
	case strings.HasPrefix(logical, "/"):
		return escape(logical, "absolute path")
	case hasVolume(logical):
		return escape(logical, "drive or volume prefix")
	}

	for _, seg := range strings.Split(logical, "/") {
		switch seg {
		case "..":
			return escape(logical, "contains traversal segment")
		case "", ".":
			continue
		}
		base := strings.ToUpper(seg)
		if i := strings.IndexByte(base, '.'); i >= 0 {
			base = base[:i]
		}
		if reservedNames[base] {
			return escape(logical, "reserved device name "+seg)
		}
	}

	if path.Clean(logical) == "." {
		return escape(logical, "resolves to the pack root itself")
	}
	return nil
}

// hasVolume reports whether p starts with a drive letter such as "C:".
func hasVolume(p string) bool {
	if len(p) >= 2 && p[1] == ':' {
		c := p[0]
		return (c >= 'a' && c <= 'z') || (c >= 'A' && c <= 'Z')
	}
	return filepath.VolumeName(p) != ""
}

func escape(p, reason string) error {
	return &types.PathEscapeError{Path: p, Reason: reason}
}
