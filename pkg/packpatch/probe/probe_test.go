package probe

import (
	"errors"
	"io/fs"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"

	"github.com/jamesainslie/packpatch/pkg/packpatch/fsys"
	"github.com/jamesainslie/packpatch/pkg/packpatch/fsys/fsystest"
	"github.com/jamesainslie/packpatch/pkg/packpatch/types"
)

func writeMeta(t *testing.T, dir, content string) {
	t.Helper()
	require.NoError(t, os.MkdirAll(dir, 0o755))
	require.NoError(t, os.WriteFile(filepath.Join(dir, MetaFile), []byte(content), 0o644))
}

type recordingLogger struct {
	warnings []string
}

func (r *recordingLogger) Debug(string, ...interface{}) {}
func (r *recordingLogger) Info(string, ...interface{})  {}
func (r *recordingLogger) Error(string, ...interface{}) {}
func (r *recordingLogger) Warn(msg string, _ ...interface{}) {
	r.warnings = append(r.warnings, msg)
}

func TestProbe_Valid(t *testing.T) {
	dir := t.TempDir()
	writeMeta(t, dir, `{"pack": {"pack_format": 15, "description": "Furfsky Reborn"}}`)

	root, err := New(fsys.NewOS(), 15).Probe(dir)
	require.NoError(t, err)

	assert.Equal(t, dir, root.Path)
	assert.Equal(t, 15, root.Format)
	assert.Equal(t, "Furfsky Reborn", root.Description)
}

func TestProbe_Errors(t *testing.T) {
	tests := []struct {
		name    string
		setup   func(t *testing.T, dir string) string
		wantErr error
	}{
		{
			name:    "missing directory",
			setup:   func(t *testing.T, dir string) string { return filepath.Join(dir, "nope") },
			wantErr: types.ErrNotAPack,
		},
		{
			name: "no pack.mcmeta",
			setup: func(t *testing.T, dir string) string {
				require.NoError(t, os.MkdirAll(filepath.Join(dir, "assets"), 0o755))
				return dir
			},
			wantErr: types.ErrNotAPack,
		},
		{
			name: "root is a file",
			setup: func(t *testing.T, dir string) string {
				p := filepath.Join(dir, "pack.zip")
				require.NoError(t, os.WriteFile(p, []byte("PK"), 0o644))
				return p
			},
			wantErr: types.ErrNotAPack,
		},
		{
			name: "pack.mcmeta is a directory",
			setup: func(t *testing.T, dir string) string {
				require.NoError(t, os.MkdirAll(filepath.Join(dir, MetaFile), 0o755))
				return dir
			},
			wantErr: types.ErrManifestUnreadable,
		},
		{
			name: "not json",
			setup: func(t *testing.T, dir string) string {
				writeMeta(t, dir, "pack_format=15")
				return dir
			},
			wantErr: types.ErrManifestUnreadable,
		},
		{
			name: "wrong format version",
			setup: func(t *testing.T, dir string) string {
				writeMeta(t, dir, `{"pack": {"pack_format": 1, "description": "old"}}`)
				return dir
			},
			wantErr: types.ErrVersionMismatch,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			target := tt.setup(t, t.TempDir())

			root, err := New(fsys.NewOS(), 15).Probe(target)
			require.Error(t, err)
			assert.Nil(t, root)
			assert.True(t, errors.Is(err, tt.wantErr), "error %v should match %v", err, tt.wantErr)
		})
	}
}

func TestProbe_VersionMismatchDetails(t *testing.T) {
	dir := t.TempDir()
	writeMeta(t, dir, `{"pack": {"pack_format": 34, "description": "new"}}`)

	_, err := New(fsys.NewOS(), 1).Probe(dir)

	var vm *types.VersionMismatchError
	require.True(t, errors.As(err, &vm))
	assert.Equal(t, 1, vm.Want)
	assert.Equal(t, 34, vm.Got)
}

func TestProbe_AllowVersionMismatch(t *testing.T) {
	dir := t.TempDir()
	writeMeta(t, dir, `{"pack": {"pack_format": 34, "description": "new"}}`)
	require.NoError(t, os.Mkdir(filepath.Join(dir, AssetsDir), 0o755))

	logger := &recordingLogger{}
	p := &Prober{FS: fsys.NewOS(), Format: 1, AllowVersionMismatch: true, Logger: logger}

	root, err := p.Probe(dir)
	require.NoError(t, err)
	assert.Equal(t, 34, root.Format)
	assert.Len(t, logger.warnings, 1)
}

func TestProbe_MissingAssetsWarns(t *testing.T) {
	tests := []struct {
		name   string
		assets bool
		want   []string
	}{
		{name: "no assets", want: []string{"pack has no assets directory"}},
		{name: "with assets", assets: true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			dir := t.TempDir()
			writeMeta(t, dir, `{"pack": {"pack_format": 15, "description": "Furfsky Reborn"}}`)
			if tt.assets {
				require.NoError(t, os.Mkdir(filepath.Join(dir, AssetsDir), 0o755))
			}

			logger := &recordingLogger{}
			p := &Prober{FS: fsys.NewOS(), Format: 15, Logger: logger}

			_, err := p.Probe(dir)
			require.NoError(t, err)
			assert.Equal(t, tt.want, logger.warnings)
		})
	}
}

// fileInfo is a minimal fs.FileInfo for the mock.
type fileInfo struct {
	name string
	dir  bool
}

func (f fileInfo) Name() string { return f.name }
func (f fileInfo) Size() int64  { return 0 }
func (f fileInfo) Mode() fs.FileMode {
	if f.dir {
		return fs.ModeDir | 0o755
	}
	return 0o644
}
func (f fileInfo) ModTime() time.Time { return time.Time{} }
func (f fileInfo) IsDir() bool        { return f.dir }
func (f fileInfo) Sys() any           { return nil }

func TestProbe_ReadOnly(t *testing.T) {
	root := filepath.Join(string(filepath.Separator), "packs", "furfsky")
	meta := filepath.Join(root, MetaFile)

	m := &fsystest.MockFS{}
	m.On("Stat", root).Return(fileInfo{name: "furfsky", dir: true}, nil)
	m.On("Stat", meta).Return(fileInfo{name: MetaFile}, nil)
	m.On("ReadFile", meta).Return([]byte(`{"pack":{"pack_format":15,"description":"x"}}`), nil)
	m.On("Stat", filepath.Join(root, AssetsDir)).Return(fileInfo{name: AssetsDir, dir: true}, nil)

	got, err := New(m, 15).Probe(root)
	require.NoError(t, err)
	assert.Equal(t, root, got.Path)

	m.AssertExpectations(t)
	for _, method := range []string{"WriteFileAtomic", "MkdirAll", "Remove", "RemoveAll", "Rename"} {
		m.AssertNotCalled(t, method, mock.Anything)
	}
}

func TestParseMeta(t *testing.T) {
	tests := []struct {
		name     string
		content  string
		format   int
		desc     string
		wantFail bool
	}{
		{name: "plain", content: `{"pack":{"pack_format":1,"description":"Legacy"}}`, format: 1, desc: "Legacy"},
		{name: "bom", content: "\xEF\xBB\xBF" + `{"pack":{"pack_format":8,"description":"x"}}`, format: 8, desc: "x"},
		{name: "text component", content: `{"pack":{"pack_format":34,"description":{"text":"Furf","extra":[{"text":"sky"}," Reborn"]}}}`, format: 34, desc: "Furfsky Reborn"},
		{name: "component array", content: `{"pack":{"pack_format":34,"description":["a",{"text":"b"}]}}`, format: 34, desc: "ab"},
		{name: "no description", content: `{"pack":{"pack_format":3}}`, format: 3, desc: ""},
		{name: "extra fields", content: `{"pack":{"pack_format":3,"supported_formats":[3,4]},"filter":{}}`, format: 3},
		{name: "missing pack", content: `{"meta":{}}`, wantFail: true},
		{name: "missing format", content: `{"pack":{"description":"x"}}`, wantFail: true},
		{name: "string format", content: `{"pack":{"pack_format":"15"}}`, wantFail: true},
		{name: "fractional format", content: `{"pack":{"pack_format":1.5}}`, wantFail: true},
		{name: "negative format", content: `{"pack":{"pack_format":-1}}`, wantFail: true},
		{name: "truncated", content: `{"pack":{"pack_format":1`, wantFail: true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			format, desc, err := ParseMeta([]byte(tt.content))
			if tt.wantFail {
				require.Error(t, err)
				assert.ErrorIs(t, err, types.ErrManifestUnreadable)
				return
			}
			require.NoError(t, err)
			assert.Equal(t, tt.format, format)
			assert.Equal(t, tt.desc, desc)
		})
	}
}
