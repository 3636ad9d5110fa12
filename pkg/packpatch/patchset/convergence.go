package patchset

import (
	"fmt"
	"path"
	"sort"
	"strings"

	"github.com/jamesainslie/packpatch/pkg/packpatch/types"
)

// write is a path an operation leaves content at.
type write struct {
	index int
	kind  types.Kind
	path  string
	// rename is true when the path is a RENAME_FILE destination.
	rename bool
}

// removal is a path, or a directory's unkept children, an operation removes.
type removal struct {
	index int
	kind  types.Kind
	path  string
	// keep is set for PRUNE_DIR: children named here survive.
	keep  map[string]bool
	prune bool
}

// covers reports whether r removes p.
func (r removal) covers(p string) bool {
	if !r.prune {
		return p == r.path || strings.HasPrefix(p, r.path+"/")
	}
	if !strings.HasPrefix(p, r.path+"/") {
		return false
	}
	child := strings.TrimPrefix(p, r.path+"/")
	if i := strings.IndexByte(child, '/'); i >= 0 {
		child = child[:i]
	}
	return !r.keep[child]
}

// checkConvergence rejects manifests whose second run could not come back
// all SKIPPED_ALREADY_APPLIED. Every operation checks its own postcondition,
// so the run converges as long as no operation undoes another one's.
func checkConvergence(m *types.Manifest) error {
	var writes []write
	var removals []removal

	for _, op := range m.Operations {
		p := path.Clean(op.Path)
		switch op.Kind {
		case types.KindReplaceFile, types.KindPatchJSONField, types.KindAppendText:
			writes = append(writes, write{index: op.Index, kind: op.Kind, path: p})
		case types.KindDeleteFile:
			removals = append(removals, removal{index: op.Index, kind: op.Kind, path: p})
		case types.KindRenameFile:
			removals = append(removals, removal{index: op.Index, kind: op.Kind, path: p})
			writes = append(writes, write{index: op.Index, kind: op.Kind, path: path.Clean(op.To), rename: true})
		case types.KindPruneDir:
			keep := make(map[string]bool, len(op.Keep))
			for _, k := range op.Keep {
				keep[k] = true
			}
			removals = append(removals, removal{index: op.Index, kind: op.Kind, path: p, keep: keep, prune: true})
		}
	}

	// Nothing an operation writes may be removed by another, in any order.
	for _, w := range writes {
		for _, r := range removals {
			if r.index == w.index || !r.covers(w.path) {
				continue
			}
			return &types.ManifestError{
				Index:  w.index,
				Reason: fmt.Sprintf("%s writes %s which operation %d (%s) removes", w.kind, w.path, r.index, r.kind),
			}
		}
	}

	byPath := make(map[string][]write)
	for _, w := range writes {
		byPath[w.path] = append(byPath[w.path], w)
	}

	paths := make([]string, 0, len(byPath))
	for p := range byPath {
		paths = append(paths, p)
	}
	sort.Strings(paths)

	for _, p := range paths {
		ws := byPath[p]
		if len(ws) < 2 {
			continue
		}
		if err := checkWriters(p, ws, m); err != nil {
			return err
		}
	}
	return nil
}

// checkWriters validates several operations writing the same path. The only
// allowed combinations are a rename into place followed by writers, repeated
// APPEND_TEXT, and PATCH_JSON_FIELD operations on disjoint pointers.
func checkWriters(p string, ws []write, m *types.Manifest) error {
	renameAt := -1
	var content []write
	for _, w := range ws {
		if !w.rename {
			content = append(content, w)
			continue
		}
		if renameAt >= 0 {
			return &types.ManifestError{
				Index:  w.index,
				Reason: fmt.Sprintf("%s is the destination of operations %d and %d", p, renameAt, w.index),
			}
		}
		renameAt = w.index
	}

	for _, w := range content {
		if renameAt >= 0 && w.index < renameAt {
			return &types.ManifestError{
				Index:  w.index,
				Reason: fmt.Sprintf("%s writes %s before operation %d renames a file onto it", w.kind, p, renameAt),
			}
		}
	}
	if len(content) < 2 {
		return nil
	}

	first := content[0]
	for _, w := range content[1:] {
		if w.kind != first.kind || w.kind == types.KindReplaceFile {
			return &types.ManifestError{
				Index:  w.index,
				Reason: fmt.Sprintf("%s writes %s which operation %d (%s) also writes", w.kind, p, first.index, first.kind),
			}
		}
	}

	if first.kind != types.KindPatchJSONField {
		return nil
	}

	type owner struct {
		index   int
		pointer string
	}
	var seen []owner
	for _, w := range content {
		for _, f := range m.Operations[w.index].Fields {
			for _, o := range seen {
				if o.index != w.index && pointersOverlap(o.pointer, f.Pointer) {
					return &types.ManifestError{
						Index:  w.index,
						Reason: fmt.Sprintf("pointer %s overlaps %s patched by operation %d", f.Pointer, o.pointer, o.index),
					}
				}
			}
			seen = append(seen, owner{index: w.index, pointer: f.Pointer})
		}
	}
	return nil
}

// pointersOverlap reports whether one JSON pointer equals or contains the other.
func pointersOverlap(a, b string) bool {
	if a == b {
		return true
	}
	return strings.HasPrefix(a, b+"/") || strings.HasPrefix(b, a+"/")
}
