package types

import (
	"errors"
	"fmt"
)

// Sentinel errors for the engine's error taxonomy. Callers match them with
// errors.Is; the typed errors below wrap them with context.
var (
	// ErrManifestCorrupt is returned when the bundled patch data cannot be parsed.
	ErrManifestCorrupt = errors.New("patch manifest corrupt")

	// ErrNotAPack is returned when the target has no pack.mcmeta.
	ErrNotAPack = errors.New("not a resource pack")

	// ErrManifestUnreadable is returned when pack.mcmeta cannot be parsed.
	ErrManifestUnreadable = errors.New("pack.mcmeta unreadable")

	// ErrVersionMismatch is returned when pack_format differs from the manifest.
	ErrVersionMismatch = errors.New("pack format version mismatch")

	// ErrPathEscape is returned when a logical path would leave the pack root.
	ErrPathEscape = errors.New("path escapes pack root")

	// ErrTargetMissing is returned when an operation needs a file that is absent.
	ErrTargetMissing = errors.New("target missing")
)

// ManifestError describes a defect in the patch manifest data.
type ManifestError struct {
	// Index is the operation index, or -1 for manifest-level problems.
	Index  int
	Reason string
	Err    error
}

func (e *ManifestError) Error() string {
	msg := e.Reason
	if e.Index >= 0 {
		msg = fmt.Sprintf("operation %d: %s", e.Index, e.Reason)
	}
	if e.Err != nil {
		msg += ": " + e.Err.Error()
	}
	return fmt.Sprintf("%s: %s", ErrManifestCorrupt, msg)
}

// Unwrap returns the underlying cause, if any.
func (e *ManifestError) Unwrap() error { return e.Err }

// Is reports whether target is ErrManifestCorrupt.
func (e *ManifestError) Is(target error) bool { return target == ErrManifestCorrupt }

// VersionMismatchError carries the expected and found pack formats.
type VersionMismatchError struct {
	Want int
	Got  int
}

func (e *VersionMismatchError) Error() string {
	return fmt.Sprintf("%s: patch set targets pack_format %d, pack declares %d", ErrVersionMismatch, e.Want, e.Got)
}

// Is reports whether target is ErrVersionMismatch.
func (e *VersionMismatchError) Is(target error) bool { return target == ErrVersionMismatch }

// PathEscapeError names the rejected logical path.
type PathEscapeError struct {
	Path   string
	Reason string
}

func (e *PathEscapeError) Error() string {
	return fmt.Sprintf("%s: %q: %s", ErrPathEscape, e.Path, e.Reason)
}

// Is reports whether target is ErrPathEscape.
func (e *PathEscapeError) Is(target error) bool { return target == ErrPathEscape }
