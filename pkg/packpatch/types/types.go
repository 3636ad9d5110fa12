// Package types provides the core data types for the packpatch engine.
// It includes the patch operation model, the patch manifest, the validated
// pack root, and the per-operation outcomes collected into a run report.
package types

import (
	"fmt"
	"strings"
)

// Kind identifies what a patch operation does to its target.
type Kind int

// Operation kinds. The zero value is invalid so an unset kind is caught by
// the loader.
const (
	KindInvalid Kind = iota
	KindReplaceFile
	KindDeleteFile
	KindPatchJSONField
	KindRenameFile
	KindPruneDir
	KindAppendText
)

var kindNames = map[Kind]string{
	KindReplaceFile:    "REPLACE_FILE",
	KindDeleteFile:     "DELETE_FILE",
	KindPatchJSONField: "PATCH_JSON_FIELD",
	KindRenameFile:     "RENAME_FILE",
	KindPruneDir:       "PRUNE_DIR",
	KindAppendText:     "APPEND_TEXT",
}

// String returns the canonical upper-case name of the kind.
func (k Kind) String() string {
	if name, ok := kindNames[k]; ok {
		return name
	}
	return "INVALID"
}

// ParseKind parses a kind name. Matching is case-insensitive and accepts
// either underscores or dashes, so "replace_file" and "REPLACE-FILE" both work.
func ParseKind(s string) (Kind, error) {
	norm := strings.ToUpper(strings.ReplaceAll(strings.TrimSpace(s), "-", "_"))
	for k, name := range kindNames {
		if name == norm {
			return k, nil
		}
	}
	return KindInvalid, fmt.Errorf("unknown operation kind %q", s)
}

// MarshalText implements encoding.TextMarshaler.
func (k Kind) MarshalText() ([]byte, error) {
	return []byte(k.String()), nil
}

// FieldPatch is a single edit inside a JSON document. Without Prefix or
// Line, Value replaces the member outright. With either set, the member must
// be a string and is edited line by line.
type FieldPatch struct {
	// Pointer is an RFC 6901 JSON pointer, e.g. "/pack/description".
	Pointer string `json:"pointer" yaml:"pointer"`

	// Value is the replacement value, or the line text when Line is set.
	// It must be JSON-encodable.
	Value any `json:"value,omitempty" yaml:"value,omitempty"`

	// Prefix is prepended to the first line unless it already starts with it.
	Prefix string `json:"prefix,omitempty" yaml:"prefix,omitempty"`

	// Line is a 1-based line number set to Value. A shorter string gains
	// Value as a new last line.
	Line int `json:"line,omitempty" yaml:"line,omitempty"`
}

// Edits reports whether f edits a string member rather than replacing it.
func (f FieldPatch) Edits() bool {
	return f.Prefix != "" || f.Line > 0
}

// Operation is one unit of change applied to a pack.
// Operations are immutable value data owned by their Manifest.
type Operation struct {
	// Index is the zero-based position of the operation in its manifest.
	Index int `json:"index"`

	// Kind selects the operation semantics.
	Kind Kind `json:"kind"`

	// Path is the logical target path, relative to the pack root,
	// using forward slashes.
	Path string `json:"path"`

	// Source names the bundled file the payload was read from.
	// Set for REPLACE_FILE and APPEND_TEXT.
	Source string `json:"source,omitempty"`

	// Payload holds the bytes for REPLACE_FILE and APPEND_TEXT. The backing
	// array is shared with every operation naming the same Source and must
	// not be modified.
	Payload []byte `json:"-"`

	// Fields holds the ordered JSON replacements for PATCH_JSON_FIELD.
	Fields []FieldPatch `json:"fields,omitempty"`

	// To is the destination logical path for RENAME_FILE.
	To string `json:"to,omitempty"`

	// ExpectSHA256 optionally pins the content a RENAME_FILE destination must
	// hold for the rename to count as already applied.
	ExpectSHA256 string `json:"sha256,omitempty"`

	// Keep lists the child names PRUNE_DIR leaves in place.
	Keep []string `json:"keep,omitempty"`
}

// String returns a short human-readable description of the operation.
func (o *Operation) String() string {
	switch o.Kind {
	case KindRenameFile:
		return fmt.Sprintf("%s %s -> %s", o.Kind, o.Path, o.To)
	case KindPruneDir:
		return fmt.Sprintf("%s %s (keep %d)", o.Kind, o.Path, len(o.Keep))
	default:
		return fmt.Sprintf("%s %s", o.Kind, o.Path)
	}
}

// Manifest is the ordered list of operations that make up a patch set,
// plus the pack format version the operations were written against.
type Manifest struct {
	// Name is the display name of the patch set.
	Name string `json:"name"`

	// Profile is the bundled profile the manifest was loaded from, or the
	// directory path for a custom patch set.
	Profile string `json:"profile"`

	// FormatVersion is the pack_format the target pack must declare.
	FormatVersion int `json:"format"`

	// Operations are applied in order.
	Operations []*Operation `json:"operations"`
}

// CountByKind returns how many operations of each kind the manifest holds.
func (m *Manifest) CountByKind() map[Kind]int {
	counts := make(map[Kind]int)
	for _, op := range m.Operations {
		counts[op.Kind]++
	}
	return counts
}

// PackRoot is a validated reference to a target pack directory.
// Only the prober creates PackRoot values.
type PackRoot struct {
	// Path is the absolute, cleaned path of the pack root.
	Path string `json:"path"`

	// Format is the pack_format declared in pack.mcmeta.
	Format int `json:"format"`

	// Description is the pack description flattened to plain text.
	Description string `json:"description"`
}
