// Package probe validates that a directory is a resource pack before the
// engine mutates anything inside it.
package probe

import (
	"bytes"
	"encoding/json"
	"errors"
	"fmt"
	"io/fs"
	"path/filepath"
	"strings"

	"github.com/jamesainslie/packpatch/pkg/packpatch/fsys"
	"github.com/jamesainslie/packpatch/pkg/packpatch/logging"
	"github.com/jamesainslie/packpatch/pkg/packpatch/types"
)

// MetaFile is the pack descriptor every pack root contains.
const MetaFile = "pack.mcmeta"

// AssetsDir holds a pack's textures, models and sounds.
const AssetsDir = "assets"

var utf8BOM = []byte{0xEF, 0xBB, 0xBF}

// Prober checks candidate pack roots. It never writes.
type Prober struct {
	// FS is the filesystem to read from.
	FS fsys.FS

	// Format is the pack_format the loaded manifest requires.
	Format int

	// AllowVersionMismatch logs a format mismatch instead of failing.
	AllowVersionMismatch bool

	// Logger receives the mismatch warning. Nil means logging.Get("probe").
	Logger logging.Sink
}

// New returns a Prober that requires format.
func New(filesystem fsys.FS, format int) *Prober {
	return &Prober{FS: filesystem, Format: format}
}

// packMeta is the subset of pack.mcmeta the prober reads.
type packMeta struct {
	Pack *struct {
		PackFormat  json.RawMessage `json:"pack_format"`
		Description json.RawMessage `json:"description"`
	} `json:"pack"`
}

// Probe validates rootPath and returns the pack root it describes.
func (p *Prober) Probe(rootPath string) (*types.PackRoot, error) {
	abs, err := filepath.Abs(rootPath)
	if err != nil {
		return nil, fmt.Errorf("%w: %s: %w", types.ErrNotAPack, rootPath, err)
	}

	info, err := p.FS.Stat(abs)
	if err != nil {
		if errors.Is(err, fs.ErrNotExist) {
			return nil, fmt.Errorf("%w: %s does not exist", types.ErrNotAPack, abs)
		}
		return nil, fmt.Errorf("%w: %w", types.ErrNotAPack, err)
	}
	if !info.IsDir() {
		return nil, fmt.Errorf("%w: %s is not a directory", types.ErrNotAPack, abs)
	}

	metaPath := filepath.Join(abs, MetaFile)
	metaInfo, err := p.FS.Stat(metaPath)
	if err != nil {
		if errors.Is(err, fs.ErrNotExist) {
			return nil, fmt.Errorf("%w: no %s in %s", types.ErrNotAPack, MetaFile, abs)
		}
		return nil, fmt.Errorf("%w: %w", types.ErrManifestUnreadable, err)
	}
	if metaInfo.IsDir() {
		return nil, fmt.Errorf("%w: %s is a directory", types.ErrManifestUnreadable, metaPath)
	}

	data, err := p.FS.ReadFile(metaPath)
	if err != nil {
		return nil, fmt.Errorf("%w: %w", types.ErrManifestUnreadable, err)
	}

	format, desc, err := ParseMeta(data)
	if err != nil {
		return nil, err
	}

	root := &types.PackRoot{Path: abs, Format: format, Description: desc}

	if p.Format != 0 && format != p.Format {
		mismatch := &types.VersionMismatchError{Want: p.Format, Got: format}
		if !p.AllowVersionMismatch {
			return nil, mismatch
		}
		p.logger().Warn("pack format mismatch, continuing", "want", p.Format, "got", format, "root", abs)
	}

	// A pack without assets is valid but leaves most operations nothing to do.
	if ok, err := fsys.Exists(p.FS, filepath.Join(abs, AssetsDir)); err == nil && !ok {
		p.logger().Warn("pack has no assets directory", "root", abs)
	}

	return root, nil
}

func (p *Prober) logger() logging.Sink {
	if p.Logger != nil {
		return p.Logger
	}
	return logging.Get("probe")
}

// ParseMeta extracts pack_format and the flattened description from
// pack.mcmeta content.
func ParseMeta(data []byte) (int, string, error) {
	data = bytes.TrimPrefix(data, utf8BOM)

	var meta packMeta
	if err := json.Unmarshal(data, &meta); err != nil {
		return 0, "", fmt.Errorf("%w: %w", types.ErrManifestUnreadable, err)
	}
	if meta.Pack == nil {
		return 0, "", fmt.Errorf("%w: missing \"pack\" object", types.ErrManifestUnreadable)
	}
	if len(meta.Pack.PackFormat) == 0 {
		return 0, "", fmt.Errorf("%w: missing pack.pack_format", types.ErrManifestUnreadable)
	}

	if bytes.HasPrefix(bytes.TrimSpace(meta.Pack.PackFormat), []byte(`"`)) {
		return 0, "", fmt.Errorf("%w: pack.pack_format is a string", types.ErrManifestUnreadable)
	}

	var num json.Number
	dec := json.NewDecoder(bytes.NewReader(meta.Pack.PackFormat))
	dec.UseNumber()
	if err := dec.Decode(&num); err != nil {
		return 0, "", fmt.Errorf("%w: pack.pack_format is not a number", types.ErrManifestUnreadable)
	}
	format, err := num.Int64()
	if err != nil || format < 0 {
		return 0, "", fmt.Errorf("%w: pack.pack_format %s is not a non-negative integer", types.ErrManifestUnreadable, num)
	}

	return int(format), flattenText(meta.Pack.Description), nil
}

// flattenText renders a text component as plain text. A component is a
// string, an array of components, or an object with "text" and "extra".
// Unparseable descriptions flatten to "".
func flattenText(raw json.RawMessage) string {
	if len(raw) == 0 {
		return ""
	}
	var v any
	if err := json.Unmarshal(raw, &v); err != nil {
		return ""
	}
	var b strings.Builder
	writeText(&b, v)
	return b.String()
}

func writeText(b *strings.Builder, v any) {
	switch t := v.(type) {
	case string:
		b.WriteString(t)
	case []any:
		for _, item := range t {
			writeText(b, item)
		}
	case map[string]any:
		if s, ok := t["text"].(string); ok {
			b.WriteString(s)
		} else if s, ok := t["translate"].(string); ok {
			b.WriteString(s)
		}
		if extra, ok := t["extra"].([]any); ok {
			writeText(b, extra)
		}
	case float64:
		fmt.Fprint(b, t)
	case bool:
		fmt.Fprint(b, t)
	}
}
