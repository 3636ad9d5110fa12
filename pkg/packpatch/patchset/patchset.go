// Package patchset loads patch manifests from bundled or on-disk patch sets.
//
// A patch set is a directory holding a patch.yaml descriptor and the payload
// files its operations reference. The bundled profiles are compiled into the
// binary; custom sets are read through os.DirFS.
package patchset

import (
	"bytes"
	"embed"
	"encoding/hex"
	"errors"
	"fmt"
	"io"
	"io/fs"
	"path"
	"sort"
	"strings"

	"gopkg.in/yaml.v3"

	"github.com/jamesainslie/packpatch/pkg/packpatch/types"
)

// DescriptorName is the file every patch set directory must contain.
const DescriptorName = "patch.yaml"

// DefaultProfile is the bundled profile used when none is selected.
const DefaultProfile = "modern"

//go:embed bundled
var bundledFS embed.FS

// descriptor mirrors the patch.yaml document.
type descriptor struct {
	Name       string         `yaml:"name"`
	Format     int            `yaml:"format"`
	Operations []opDescriptor `yaml:"operations"`
}

type opDescriptor struct {
	Kind   string            `yaml:"kind"`
	Path   string            `yaml:"path"`
	Source string            `yaml:"source"`
	To     string            `yaml:"to"`
	SHA256 string            `yaml:"sha256"`
	Keep   []string          `yaml:"keep"`
	Fields []fieldDescriptor `yaml:"fields"`
}

type fieldDescriptor struct {
	Pointer string `yaml:"pointer"`
	Value   any    `yaml:"value"`
	Prefix  string `yaml:"prefix"`
	Line    int    `yaml:"line"`
}

// Bundled returns the filesystem holding the bundled profiles, one directory
// per profile.
func Bundled() fs.FS {
	sub, err := fs.Sub(bundledFS, "bundled")
	if err != nil {
		// The embed directive guarantees the directory exists.
		panic(err)
	}
	return sub
}

// Profiles returns the names of the bundled profiles in sorted order.
func Profiles() []string {
	entries, err := fs.ReadDir(Bundled(), ".")
	if err != nil {
		return nil
	}
	var names []string
	for _, e := range entries {
		if e.IsDir() {
			names = append(names, e.Name())
		}
	}
	sort.Strings(names)
	return names
}

// LoadBundled loads the named bundled profile.
func LoadBundled(profile string) (*types.Manifest, error) {
	if profile == "" {
		profile = DefaultProfile
	}
	for _, p := range Profiles() {
		if p == profile {
			m, err := Load(Bundled(), profile)
			if err != nil {
				return nil, err
			}
			m.Profile = profile
			return m, nil
		}
	}
	return nil, fmt.Errorf("unknown profile %q (available: %s)", profile, strings.Join(Profiles(), ", "))
}

// Load reads the patch set rooted at dir inside fsys. Payload sources are
// resolved relative to dir. Any defect is reported as a *types.ManifestError.
func Load(fsys fs.FS, dir string) (*types.Manifest, error) {
	raw, err := fs.ReadFile(fsys, path.Join(dir, DescriptorName))
	if err != nil {
		return nil, &types.ManifestError{Index: -1, Reason: "reading " + DescriptorName, Err: err}
	}

	var desc descriptor
	dec := yaml.NewDecoder(bytes.NewReader(raw))
	dec.KnownFields(true)
	if err := dec.Decode(&desc); err != nil {
		if errors.Is(err, io.EOF) {
			return nil, &types.ManifestError{Index: -1, Reason: "empty descriptor"}
		}
		return nil, &types.ManifestError{Index: -1, Reason: "malformed descriptor", Err: err}
	}

	if desc.Format <= 0 {
		return nil, &types.ManifestError{Index: -1, Reason: "format must be a positive pack_format"}
	}
	if len(desc.Operations) == 0 {
		return nil, &types.ManifestError{Index: -1, Reason: "no operations"}
	}

	name := desc.Name
	if name == "" {
		name = path.Base(dir)
		if name == "." {
			name = "custom"
		}
	}

	m := &types.Manifest{
		Name:          name,
		Profile:       dir,
		FormatVersion: desc.Format,
		Operations:    make([]*types.Operation, 0, len(desc.Operations)),
	}

	payloads := newPayloadStore(fsys, dir)
	for i, od := range desc.Operations {
		op, err := buildOperation(i, od, payloads)
		if err != nil {
			return nil, err
		}
		m.Operations = append(m.Operations, op)
	}

	if err := checkConvergence(m); err != nil {
		return nil, err
	}
	return m, nil
}

func buildOperation(i int, od opDescriptor, payloads *payloadStore) (*types.Operation, error) {
	fail := func(format string, args ...any) error {
		return &types.ManifestError{Index: i, Reason: fmt.Sprintf(format, args...)}
	}

	if od.Kind == "" {
		return nil, fail("missing kind")
	}
	kind, err := types.ParseKind(od.Kind)
	if err != nil {
		return nil, &types.ManifestError{Index: i, Reason: "invalid kind", Err: err}
	}
	if od.Path == "" {
		return nil, fail("%s: missing path", kind)
	}

	op := &types.Operation{Index: i, Kind: kind, Path: od.Path}

	// Each kind accepts only its own payload fields.
	allowed := map[string]bool{}
	switch kind {
	case types.KindReplaceFile, types.KindAppendText:
		allowed["source"] = true
		if od.Source == "" {
			return nil, fail("%s: missing source", kind)
		}
		data, err := payloads.get(od.Source)
		if err != nil {
			return nil, &types.ManifestError{Index: i, Reason: fmt.Sprintf("%s: payload %q", kind, od.Source), Err: err}
		}
		op.Source = od.Source
		op.Payload = data

	case types.KindDeleteFile:

	case types.KindPatchJSONField:
		allowed["fields"] = true
		if len(od.Fields) == 0 {
			return nil, fail("%s: missing fields", kind)
		}
		for j, f := range od.Fields {
			if !strings.HasPrefix(f.Pointer, "/") {
				return nil, fail("%s: field %d: pointer %q must start with /", kind, j, f.Pointer)
			}
			// "-" appends to an array, which would grow the array on every run.
			if strings.HasSuffix(f.Pointer, "/-") {
				return nil, fail("%s: field %d: pointer %q appends and cannot be re-applied", kind, j, f.Pointer)
			}
			if f.Line < 0 {
				return nil, fail("%s: field %d: line %d must be positive", kind, j, f.Line)
			}
			if _, ok := f.Value.(string); f.Line > 0 && !ok {
				return nil, fail("%s: field %d: line %d needs a string value", kind, j, f.Line)
			}
			if f.Prefix != "" && f.Line == 0 && f.Value != nil {
				return nil, fail("%s: field %d: value without line conflicts with prefix", kind, j)
			}
			op.Fields = append(op.Fields, types.FieldPatch{
				Pointer: f.Pointer,
				Value:   normalizeValue(f.Value),
				Prefix:  f.Prefix,
				Line:    f.Line,
			})
		}

	case types.KindRenameFile:
		allowed["to"] = true
		allowed["sha256"] = true
		if od.To == "" {
			return nil, fail("%s: missing to", kind)
		}
		if od.SHA256 != "" {
			sum, err := hex.DecodeString(od.SHA256)
			if err != nil || len(sum) != 32 {
				return nil, fail("%s: sha256 must be 64 hex characters", kind)
			}
		}
		op.To = od.To
		op.ExpectSHA256 = strings.ToLower(od.SHA256)

	case types.KindPruneDir:
		allowed["keep"] = true
		for _, k := range od.Keep {
			if k == "" || strings.Contains(k, "/") {
				return nil, fail("%s: keep entry %q must be a single name", kind, k)
			}
		}
		op.Keep = append([]string(nil), od.Keep...)
	}

	present := map[string]bool{
		"source": od.Source != "",
		"to":     od.To != "",
		"sha256": od.SHA256 != "",
		"keep":   len(od.Keep) > 0,
		"fields": len(od.Fields) > 0,
	}
	for _, field := range []string{"source", "to", "sha256", "keep", "fields"} {
		if present[field] && !allowed[field] {
			return nil, fail("%s: field %q not valid for this kind", kind, field)
		}
	}

	return op, nil
}

// normalizeValue converts YAML-decoded values into shapes encoding/json can
// marshal. yaml.v3 yields map[string]any for mappings already, but nested
// mappings with non-string keys come back as map[any]any.
func normalizeValue(v any) any {
	switch t := v.(type) {
	case map[string]any:
		out := make(map[string]any, len(t))
		for k, val := range t {
			out[k] = normalizeValue(val)
		}
		return out
	case map[any]any:
		out := make(map[string]any, len(t))
		for k, val := range t {
			out[fmt.Sprint(k)] = normalizeValue(val)
		}
		return out
	case []any:
		out := make([]any, len(t))
		for i, val := range t {
			out[i] = normalizeValue(val)
		}
		return out
	default:
		return v
	}
}

// payloadStore reads each payload source once so operations naming the same
// source share one backing array.
type payloadStore struct {
	fsys  fs.FS
	dir   string
	cache map[string][]byte
}

func newPayloadStore(fsys fs.FS, dir string) *payloadStore {
	return &payloadStore{fsys: fsys, dir: dir, cache: make(map[string][]byte)}
}

func (s *payloadStore) get(source string) ([]byte, error) {
	clean := path.Clean(source)
	if !fs.ValidPath(clean) || clean == "." {
		return nil, errors.New("invalid source path")
	}
	if data, ok := s.cache[clean]; ok {
		return data, nil
	}
	data, err := fs.ReadFile(s.fsys, path.Join(s.dir, clean))
	if err != nil {
		return nil, err
	}
	s.cache[clean] = data
	return data, nil
}
