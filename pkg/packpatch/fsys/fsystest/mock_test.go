package fsystest

import (
	"errors"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/jamesainslie/packpatch/pkg/packpatch/fsys"
)

func TestFaultyFS_BudgetsEveryMutation(t *testing.T) {
	root := t.TempDir()
	interrupted := errors.New("interrupted")
	f := &FaultyFS{FS: fsys.NewOS(), Allow: 2, Err: interrupted}

	require.NoError(t, f.MkdirAll(filepath.Join(root, "assets"), 0o755))
	require.NoError(t, f.WriteFileAtomic(filepath.Join(root, "assets", "a.png"), []byte("a"), 0o644))

	err := f.MkdirAll(filepath.Join(root, "assets", "minecraft"), 0o755)
	assert.ErrorIs(t, err, interrupted)
	_, statErr := os.Stat(filepath.Join(root, "assets", "minecraft"))
	assert.True(t, os.IsNotExist(statErr), "a spent budget creates nothing")

	assert.ErrorIs(t, f.Remove(filepath.Join(root, "assets", "a.png")), interrupted)
	assert.Equal(t, 4, f.Calls())
}

func TestFaultyFS_ReadsAreFree(t *testing.T) {
	root := t.TempDir()
	require.NoError(t, os.WriteFile(filepath.Join(root, "pack.mcmeta"), []byte("{}"), 0o644))
	f := &FaultyFS{FS: fsys.NewOS(), Err: errors.New("interrupted")}

	_, err := f.Lstat(filepath.Join(root, "pack.mcmeta"))
	require.NoError(t, err)
	_, err = f.ReadFile(filepath.Join(root, "pack.mcmeta"))
	require.NoError(t, err)
	assert.Zero(t, f.Calls())
}
