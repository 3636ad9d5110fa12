package patchset

import (
	"errors"
	"testing"
	"testing/fstest"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/jamesainslie/packpatch/pkg/packpatch/types"
)

func setFS(descriptor string, files map[string]string) fstest.MapFS {
	m := fstest.MapFS{
		"set/patch.yaml": &fstest.MapFile{Data: []byte(descriptor)},
	}
	for name, data := range files {
		m["set/"+name] = &fstest.MapFile{Data: []byte(data)}
	}
	return m
}

func TestLoad_AllKinds(t *testing.T) {
	desc := `
name: test set
format: 15
operations:
  - kind: replace_file
    path: assets/minecraft/textures/block/stone.png
    source: overrides/stone.png
  - kind: DELETE_FILE
    path: assets/minecraft/sounds.json
  - kind: patch-json-field
    path: pack.mcmeta
    fields:
      - pointer: /pack/description
        value: "§dMINI"
      - pointer: /pack/extra
        value:
          nested: [1, two]
  - kind: rename_file
    path: assets/minecraft/textures/old.png
    to: assets/minecraft/textures/new.png
  - kind: prune_dir
    path: assets/minecraft/optifine/cit
    keep: [ui, weapons]
  - kind: append_text
    path: credits.txt
    source: overrides/credits.txt
`
	fsys := setFS(desc, map[string]string{
		"overrides/stone.png":   "PNGDATA",
		"overrides/credits.txt": "signature\n",
	})

	m, err := Load(fsys, "set")
	require.NoError(t, err)

	assert.Equal(t, "test set", m.Name)
	assert.Equal(t, 15, m.FormatVersion)
	require.Len(t, m.Operations, 6)

	wantKinds := []types.Kind{
		types.KindReplaceFile,
		types.KindDeleteFile,
		types.KindPatchJSONField,
		types.KindRenameFile,
		types.KindPruneDir,
		types.KindAppendText,
	}
	for i, op := range m.Operations {
		assert.Equal(t, i, op.Index)
		assert.Equal(t, wantKinds[i], op.Kind, "operation %d", i)
	}

	assert.Equal(t, []byte("PNGDATA"), m.Operations[0].Payload)
	assert.Equal(t, "overrides/stone.png", m.Operations[0].Source)

	fields := m.Operations[2].Fields
	require.Len(t, fields, 2)
	assert.Equal(t, "/pack/description", fields[0].Pointer)
	assert.Equal(t, "§dMINI", fields[0].Value)
	assert.Equal(t, map[string]any{"nested": []any{1, "two"}}, fields[1].Value)

	assert.Equal(t, "assets/minecraft/textures/new.png", m.Operations[3].To)
	assert.Equal(t, []string{"ui", "weapons"}, m.Operations[4].Keep)
	assert.Equal(t, []byte("signature\n"), m.Operations[5].Payload)
}

func TestLoad_SharedPayload(t *testing.T) {
	desc := `
format: 1
operations:
  - kind: replace_file
    path: a.png
    source: overrides/blank.png
  - kind: replace_file
    path: b.png
    source: ./overrides/blank.png
`
	fsys := setFS(desc, map[string]string{"overrides/blank.png": "blank"})

	m, err := Load(fsys, "set")
	require.NoError(t, err)
	require.Len(t, m.Operations, 2)

	a, b := m.Operations[0].Payload, m.Operations[1].Payload
	require.NotEmpty(t, a)
	assert.Same(t, &a[0], &b[0], "operations naming the same source share one backing array")
	assert.Equal(t, "set", m.Name, "name defaults to the directory")
}

func TestLoad_Deterministic(t *testing.T) {
	fsys := setFS(`
format: 3
operations:
  - {kind: delete_file, path: z}
  - {kind: delete_file, path: a}
  - {kind: delete_file, path: m}
`, nil)

	first, err := Load(fsys, "set")
	require.NoError(t, err)
	second, err := Load(fsys, "set")
	require.NoError(t, err)

	assert.Equal(t, first, second)
	assert.Equal(t, "z", first.Operations[0].Path)
	assert.Equal(t, "m", first.Operations[2].Path)
}

func TestLoad_Corrupt(t *testing.T) {
	tests := []struct {
		name      string
		desc      string
		files     map[string]string
		wantIndex int
	}{
		{
			name:      "malformed yaml",
			desc:      "format: [1\n",
			wantIndex: -1,
		},
		{
			name:      "empty descriptor",
			desc:      "",
			wantIndex: -1,
		},
		{
			name:      "unknown top-level field",
			desc:      "format: 1\nversion: 2\noperations:\n  - {kind: delete_file, path: a}\n",
			wantIndex: -1,
		},
		{
			name:      "missing format",
			desc:      "operations:\n  - {kind: delete_file, path: a}\n",
			wantIndex: -1,
		},
		{
			name:      "no operations",
			desc:      "format: 1\n",
			wantIndex: -1,
		},
		{
			name:      "unknown kind",
			desc:      "format: 1\noperations:\n  - {kind: delete_file, path: a}\n  - {kind: chmod, path: b}\n",
			wantIndex: 1,
		},
		{
			name:      "missing kind",
			desc:      "format: 1\noperations:\n  - {path: a}\n",
			wantIndex: 0,
		},
		{
			name:      "missing path",
			desc:      "format: 1\noperations:\n  - {kind: delete_file}\n",
			wantIndex: 0,
		},
		{
			name:      "missing source",
			desc:      "format: 1\noperations:\n  - {kind: replace_file, path: a.png}\n",
			wantIndex: 0,
		},
		{
			name:      "missing payload file",
			desc:      "format: 1\noperations:\n  - {kind: replace_file, path: a.png, source: overrides/gone.png}\n",
			wantIndex: 0,
		},
		{
			name:      "source escapes patch set",
			desc:      "format: 1\noperations:\n  - {kind: replace_file, path: a.png, source: ../secret}\n",
			wantIndex: 0,
		},
		{
			name:      "patch without fields",
			desc:      "format: 1\noperations:\n  - {kind: patch_json_field, path: pack.mcmeta}\n",
			wantIndex: 0,
		},
		{
			name:      "relative pointer",
			desc:      "format: 1\noperations:\n  - kind: patch_json_field\n    path: pack.mcmeta\n    fields: [{pointer: pack/description, value: x}]\n",
			wantIndex: 0,
		},
		{
			name:      "array append pointer",
			desc:      "format: 1\noperations:\n  - kind: patch_json_field\n    path: pack.mcmeta\n    fields: [{pointer: /pack/supported_formats/-, value: 4}]\n",
			wantIndex: 0,
		},
		{
			name:      "line without text",
			desc:      "format: 1\noperations:\n  - kind: patch_json_field\n    path: pack.mcmeta\n    fields: [{pointer: /pack/description, line: 2, value: 3}]\n",
			wantIndex: 0,
		},
		{
			name:      "negative line",
			desc:      "format: 1\noperations:\n  - kind: patch_json_field\n    path: pack.mcmeta\n    fields: [{pointer: /pack/description, line: -1, value: x}]\n",
			wantIndex: 0,
		},
		{
			name:      "prefix with replacement value",
			desc:      "format: 1\noperations:\n  - kind: patch_json_field\n    path: pack.mcmeta\n    fields: [{pointer: /pack/description, prefix: a, value: x}]\n",
			wantIndex: 0,
		},
		{
			name:      "rename without destination",
			desc:      "format: 1\noperations:\n  - {kind: rename_file, path: a}\n",
			wantIndex: 0,
		},
		{
			name:      "bad sha256",
			desc:      "format: 1\noperations:\n  - {kind: rename_file, path: a, to: b, sha256: abc}\n",
			wantIndex: 0,
		},
		{
			name:      "field for wrong kind",
			desc:      "format: 1\noperations:\n  - {kind: delete_file, path: a, to: b}\n",
			wantIndex: 0,
		},
		{
			name:      "nested keep entry",
			desc:      "format: 1\noperations:\n  - {kind: prune_dir, path: a, keep: [b/c]}\n",
			wantIndex: 0,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := Load(setFS(tt.desc, tt.files), "set")
			require.Error(t, err)
			assert.True(t, errors.Is(err, types.ErrManifestCorrupt), "error %v should match ErrManifestCorrupt", err)

			var me *types.ManifestError
			require.True(t, errors.As(err, &me))
			assert.Equal(t, tt.wantIndex, me.Index)
		})
	}
}

func TestLoad_MissingDescriptor(t *testing.T) {
	_, err := Load(fstest.MapFS{}, "nowhere")
	require.Error(t, err)
	assert.ErrorIs(t, err, types.ErrManifestCorrupt)
}

func TestLoad_LeavesPathSyntaxToResolver(t *testing.T) {
	fsys := setFS("format: 1\noperations:\n  - {kind: delete_file, path: ../../etc/passwd}\n", nil)

	m, err := Load(fsys, "set")
	require.NoError(t, err)
	assert.Equal(t, "../../etc/passwd", m.Operations[0].Path)
}

func TestProfiles(t *testing.T) {
	assert.Equal(t, []string{"legacy", "modern"}, Profiles())
}

func TestLoadBundled(t *testing.T) {
	for _, profile := range Profiles() {
		t.Run(profile, func(t *testing.T) {
			m, err := LoadBundled(profile)
			require.NoError(t, err)

			assert.Equal(t, profile, m.Profile)
			assert.NotEmpty(t, m.Name)
			assert.Positive(t, m.FormatVersion)
			assert.NotEmpty(t, m.Operations)

			counts := m.CountByKind()
			assert.Equal(t, 1, counts[types.KindPatchJSONField])
			assert.Equal(t, 1, counts[types.KindAppendText])

			for _, op := range m.Operations {
				if op.Kind == types.KindReplaceFile || op.Kind == types.KindAppendText {
					assert.NotEmpty(t, op.Payload, "operation %d has no payload", op.Index)
				}
			}
		})
	}
}

func TestLoadBundled_DescriptionIsEdited(t *testing.T) {
	want := map[string]types.FieldPatch{
		"legacy": {Pointer: "/pack/description", Prefix: "§dMINI §7"},
		"modern": {Pointer: "/pack/description", Prefix: "§dMINI §7", Line: 2, Value: "§8modified by §7TunaFish2K"},
	}
	for profile, field := range want {
		t.Run(profile, func(t *testing.T) {
			m, err := LoadBundled(profile)
			require.NoError(t, err)

			var got []types.FieldPatch
			for _, op := range m.Operations {
				if op.Kind == types.KindPatchJSONField && op.Path == "pack.mcmeta" {
					got = append(got, op.Fields...)
				}
			}
			assert.Equal(t, []types.FieldPatch{field}, got)
		})
	}
}

func TestLoadBundled_Defaults(t *testing.T) {
	m, err := LoadBundled("")
	require.NoError(t, err)
	assert.Equal(t, DefaultProfile, m.Profile)

	legacy, err := LoadBundled("legacy")
	require.NoError(t, err)
	assert.Equal(t, 1, legacy.FormatVersion)
}

func TestLoadBundled_Unknown(t *testing.T) {
	_, err := LoadBundled("bedrock")
	require.Error(t, err)
	assert.Contains(t, err.Error(), "legacy")
}
