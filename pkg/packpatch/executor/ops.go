package executor

import (
	"bytes"
	"crypto/sha256"
	"encoding/hex"
	"encoding/json"
	"errors"
	"fmt"
	"io/fs"
	"path/filepath"
	"strconv"
	"strings"
	"unicode"

	"github.com/dustin/go-humanize"
	jsonpatch "github.com/evanphx/json-patch"
	"github.com/google/go-cmp/cmp"

	"github.com/jamesainslie/packpatch/pkg/packpatch/fsys"
	"github.com/jamesainslie/packpatch/pkg/packpatch/types"
)

var utf8BOM = []byte{0xEF, 0xBB, 0xBF}

func (e *Executor) replaceFile(op *types.Operation, target string) result {
	info, err := e.stat(target)
	if err != nil {
		return failed(err)
	}
	if info != nil && info.IsDir() {
		return failed(fmt.Errorf("%s is a directory", op.Path))
	}

	want := sha256.Sum256(op.Payload)
	if info != nil && info.Size() == int64(len(op.Payload)) {
		have, err := e.digest(target, info)
		if err != nil {
			return failed(fmt.Errorf("reading current content: %w", err))
		}
		if have == want {
			return skipped("content already matches")
		}
	}

	if info == nil {
		if err := e.fs.MkdirAll(filepath.Dir(target), 0o755); err != nil {
			return failed(fmt.Errorf("creating parent directory: %w", err))
		}
	}
	if err := e.fs.WriteFileAtomic(target, op.Payload, perm(info)); err != nil {
		return failed(err)
	}

	if written, err := e.fs.Stat(target); err == nil {
		e.remember(target, written, want)
	}

	verb := "replaced"
	if info == nil {
		verb = "created"
	}
	return applied(fmt.Sprintf("%s (%s)", verb, humanize.IBytes(uint64(len(op.Payload)))), int64(len(op.Payload)))
}

func (e *Executor) deleteFile(target string) result {
	info, err := e.stat(target)
	if err != nil {
		return failed(err)
	}
	if info == nil {
		return skipped("already absent")
	}

	if !info.IsDir() {
		if err := e.fs.Remove(target); err != nil {
			return failed(err)
		}
		return applied("removed file", 0)
	}

	if err := e.removeDir(target); err != nil {
		return failed(err)
	}
	return applied("removed directory", 0)
}

// removeDir moves dir to a hidden sibling in one rename, so the visible tree
// never shows a half-deleted directory, then deletes the staged copy.
func (e *Executor) removeDir(dir string) error {
	staged := fsys.StagingPath(dir, "del")
	if err := e.fs.Rename(dir, staged); err != nil {
		return fmt.Errorf("staging directory for removal: %w", err)
	}
	if err := e.fs.RemoveAll(staged); err != nil {
		// The directory is already gone from its logical path.
		e.logger.Warn("staged directory not fully removed", "path", staged, "error", err)
	}
	return nil
}

func (e *Executor) patchJSON(op *types.Operation, target string) result {
	info, err := e.stat(target)
	if err != nil {
		return failed(err)
	}
	if info == nil {
		return failed(fmt.Errorf("%w: %s", types.ErrTargetMissing, op.Path))
	}
	if info.IsDir() {
		return failed(fmt.Errorf("%s is a directory", op.Path))
	}

	raw, err := e.fs.ReadFile(target)
	if err != nil {
		return failed(err)
	}
	doc := bytes.TrimPrefix(raw, utf8BOM)

	var before any
	if err := json.Unmarshal(doc, &before); err != nil {
		return failed(fmt.Errorf("%s is not valid JSON: %w", op.Path, err))
	}

	patched := doc
	for _, f := range op.Fields {
		if patched, err = patchField(patched, f); err != nil {
			return failed(fmt.Errorf("field %s: %w", f.Pointer, err))
		}
	}

	var after any
	if err := json.Unmarshal(patched, &after); err != nil {
		return failed(fmt.Errorf("decoding patched document: %w", err))
	}
	if cmp.Equal(before, after) {
		return skipped("fields already set")
	}

	var out bytes.Buffer
	if err := json.Indent(&out, patched, "", "  "); err != nil {
		return failed(fmt.Errorf("formatting patched document: %w", err))
	}
	out.WriteByte('\n')

	if err := e.fs.WriteFileAtomic(target, out.Bytes(), perm(info)); err != nil {
		return failed(err)
	}
	return applied(fmt.Sprintf("set %d field(s)", len(op.Fields)), int64(out.Len()))
}

// patchField applies one field to doc as a single RFC 6902 operation. A
// pointer that already resolves is replaced, so an array index overwrites
// its element instead of inserting before it. Anything else is added.
func patchField(doc []byte, f types.FieldPatch) ([]byte, error) {
	var tree any
	if err := json.Unmarshal(doc, &tree); err != nil {
		return nil, fmt.Errorf("decoding document: %w", err)
	}
	current, found := lookup(tree, f.Pointer)

	value := f.Value
	if f.Edits() {
		if !found {
			return nil, fmt.Errorf("%w: no value at %s", types.ErrTargetMissing, f.Pointer)
		}
		s, ok := current.(string)
		if !ok {
			return nil, fmt.Errorf("value at %s is not a string", f.Pointer)
		}
		value = editLines(s, f)
	}

	verb := "add"
	if found {
		verb = "replace"
	}
	raw, err := json.Marshal([]map[string]any{{"op": verb, "path": f.Pointer, "value": value}})
	if err != nil {
		return nil, fmt.Errorf("encoding field value: %w", err)
	}
	patch, err := jsonpatch.DecodePatch(raw)
	if err != nil {
		return nil, fmt.Errorf("decoding patch: %w", err)
	}
	return patch.Apply(doc)
}

// lookup walks an RFC 6901 pointer through a decoded JSON tree.
func lookup(tree any, pointer string) (any, bool) {
	cur := tree
	for _, tok := range strings.Split(strings.TrimPrefix(pointer, "/"), "/") {
		tok = strings.ReplaceAll(strings.ReplaceAll(tok, "~1", "/"), "~0", "~")
		switch v := cur.(type) {
		case map[string]any:
			next, ok := v[tok]
			if !ok {
				return nil, false
			}
			cur = next
		case []any:
			i, err := strconv.Atoi(tok)
			if err != nil || i < 0 || i >= len(v) {
				return nil, false
			}
			cur = v[i]
		default:
			return nil, false
		}
	}
	return cur, true
}

// editLines applies the prefix and line rules of f to s.
func editLines(s string, f types.FieldPatch) string {
	lines := strings.Split(s, "\n")
	if f.Prefix != "" && !strings.HasPrefix(lines[0], f.Prefix) {
		lines[0] = f.Prefix + lines[0]
	}
	if f.Line > 0 {
		text, _ := f.Value.(string)
		if len(lines) >= f.Line {
			lines[f.Line-1] = text
		} else {
			lines = append(lines, text)
		}
	}
	return strings.Join(lines, "\n")
}

func (e *Executor) renameFile(op *types.Operation, src, dest string) result {
	srcInfo, err := e.stat(src)
	if err != nil {
		return failed(err)
	}
	destInfo, err := e.stat(dest)
	if err != nil {
		return failed(err)
	}

	switch {
	case srcInfo != nil && destInfo == nil:
		if err := e.fs.MkdirAll(filepath.Dir(dest), 0o755); err != nil {
			return failed(fmt.Errorf("creating parent directory: %w", err))
		}
		if err := e.fs.Rename(src, dest); err != nil {
			if errors.Is(err, fs.ErrExist) {
				return failed(fmt.Errorf("destination %s appeared during rename", op.To))
			}
			return failed(err)
		}
		return applied("renamed to "+op.To, 0)

	case srcInfo == nil && destInfo != nil:
		if op.ExpectSHA256 == "" {
			return skipped("already renamed")
		}
		if destInfo.IsDir() {
			return failed(fmt.Errorf("destination %s is a directory, expected file content", op.To))
		}
		sum, err := e.digest(dest, destInfo)
		if err != nil {
			return failed(err)
		}
		if got := hex.EncodeToString(sum[:]); got != op.ExpectSHA256 {
			return failed(fmt.Errorf("destination %s holds unexpected content (sha256 %s)", op.To, got[:12]))
		}
		return skipped("already renamed")

	case srcInfo == nil && destInfo == nil:
		return failed(fmt.Errorf("%w: neither %s nor %s exists", types.ErrTargetMissing, op.Path, op.To))

	default:
		return failed(fmt.Errorf("destination %s already exists", op.To))
	}
}

func (e *Executor) pruneDir(op *types.Operation, dir string) result {
	info, err := e.stat(dir)
	if err != nil {
		return failed(err)
	}
	if info == nil {
		return skipped("directory absent")
	}
	if !info.IsDir() {
		return failed(fmt.Errorf("%s is not a directory", op.Path))
	}

	entries, err := e.fs.ReadDir(dir)
	if err != nil {
		return failed(err)
	}

	keep := make(map[string]bool, len(op.Keep))
	for _, k := range op.Keep {
		keep[k] = true
	}

	var removed int
	var errs []error
	for _, entry := range entries {
		if keep[entry.Name()] {
			continue
		}
		p := filepath.Join(dir, entry.Name())
		var rmErr error
		if entry.IsDir() {
			rmErr = e.removeDir(p)
		} else {
			rmErr = e.fs.Remove(p)
		}
		if rmErr != nil {
			errs = append(errs, fmt.Errorf("%s: %w", entry.Name(), rmErr))
			continue
		}
		removed++
	}

	if len(errs) > 0 {
		return failed(fmt.Errorf("removed %d, failed %d: %w", removed, len(errs), errors.Join(errs...)))
	}
	if removed == 0 {
		return skipped("nothing outside keep list")
	}
	return applied(fmt.Sprintf("removed %d entr%s", removed, plural(removed, "y", "ies")), 0)
}

func (e *Executor) appendText(op *types.Operation, target string) result {
	block := strings.TrimSpace(string(op.Payload))
	if block == "" {
		return skipped("empty text block")
	}

	info, err := e.stat(target)
	if err != nil {
		return failed(err)
	}
	if info != nil && info.IsDir() {
		return failed(fmt.Errorf("%s is a directory", op.Path))
	}

	var content string
	if info != nil {
		data, err := e.fs.ReadFile(target)
		if err != nil {
			return failed(err)
		}
		content = string(data)
		if strings.Contains(content, block) {
			return skipped("text already present")
		}
	}

	var next string
	if trimmed := strings.TrimRightFunc(content, unicode.IsSpace); trimmed != "" {
		next = trimmed + "\n\n" + block + "\n"
	} else {
		next = block + "\n"
	}

	if info == nil {
		if err := e.fs.MkdirAll(filepath.Dir(target), 0o755); err != nil {
			return failed(fmt.Errorf("creating parent directory: %w", err))
		}
	}
	if err := e.fs.WriteFileAtomic(target, []byte(next), perm(info)); err != nil {
		return failed(err)
	}

	if info == nil {
		return applied("created with text block", int64(len(next)))
	}
	return applied("appended text block", int64(len(next)))
}

func plural(n int, one, many string) string {
	if n == 1 {
		return one
	}
	return many
}
