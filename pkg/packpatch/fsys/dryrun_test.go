package fsys

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// setupTree creates a small tree and returns its root.
func setupTree(t *testing.T) string {
	t.Helper()
	root := t.TempDir()
	require.NoError(t, os.MkdirAll(filepath.Join(root, "textures", "item"), 0o755))
	require.NoError(t, os.WriteFile(filepath.Join(root, "textures", "item", "apple.png"), []byte("apple"), 0o644))
	require.NoError(t, os.WriteFile(filepath.Join(root, "textures", "item", "bread.png"), []byte("bread"), 0o644))
	require.NoError(t, os.WriteFile(filepath.Join(root, "credits.txt"), []byte("credits"), 0o644))
	return root
}

func TestDryRun_WriteIsVisibleButNotPersisted(t *testing.T) {
	root := setupTree(t)
	d := NewDryRun(NewOS())
	target := filepath.Join(root, "credits.txt")

	require.NoError(t, d.WriteFileAtomic(target, []byte("changed"), 0o644))

	data, err := d.ReadFile(target)
	require.NoError(t, err)
	assert.Equal(t, "changed", string(data))

	onDisk, err := os.ReadFile(target)
	require.NoError(t, err)
	assert.Equal(t, "credits", string(onDisk))

	changes := d.Changes()
	require.Len(t, changes, 1)
	assert.Equal(t, ChangeWrite, changes[0].Kind)
	assert.Equal(t, "credits", string(changes[0].Before))
	assert.Equal(t, "changed", string(changes[0].After))
}

func TestDryRun_RemoveHidesBaseEntries(t *testing.T) {
	root := setupTree(t)
	d := NewDryRun(NewOS())
	dir := filepath.Join(root, "textures", "item")

	require.NoError(t, d.Remove(filepath.Join(dir, "apple.png")))

	_, err := d.Stat(filepath.Join(dir, "apple.png"))
	assert.True(t, os.IsNotExist(err))

	entries, err := d.ReadDir(dir)
	require.NoError(t, err)
	require.Len(t, entries, 1)
	assert.Equal(t, "bread.png", entries[0].Name())

	_, err = os.Stat(filepath.Join(dir, "apple.png"))
	assert.NoError(t, err, "base file must survive a dry run")
}

func TestDryRun_RemoveAllDirectory(t *testing.T) {
	root := setupTree(t)
	d := NewDryRun(NewOS())
	dir := filepath.Join(root, "textures")

	require.NoError(t, d.RemoveAll(dir))

	_, err := d.Stat(filepath.Join(dir, "item", "bread.png"))
	assert.True(t, os.IsNotExist(err))

	// Removing an absent path is not an error.
	assert.NoError(t, d.RemoveAll(filepath.Join(root, "nope")))
}

func TestDryRun_WriteIntoNewDirectory(t *testing.T) {
	root := setupTree(t)
	d := NewDryRun(NewOS())
	target := filepath.Join(root, "textures", "block", "stone.png")

	require.NoError(t, d.MkdirAll(filepath.Dir(target), 0o755))
	require.NoError(t, d.WriteFileAtomic(target, []byte("stone"), 0o644))

	entries, err := d.ReadDir(filepath.Join(root, "textures"))
	require.NoError(t, err)
	names := make([]string, 0, len(entries))
	for _, e := range entries {
		names = append(names, e.Name())
	}
	assert.Equal(t, []string{"block", "item"}, names)

	_, err = os.Stat(filepath.Dir(target))
	assert.True(t, os.IsNotExist(err))
}

func TestDryRun_Rename(t *testing.T) {
	root := setupTree(t)
	d := NewDryRun(NewOS())
	src := filepath.Join(root, "textures", "item", "apple.png")
	dst := filepath.Join(root, "textures", "item", "golden_apple.png")

	require.NoError(t, d.Rename(src, dst))

	data, err := d.ReadFile(dst)
	require.NoError(t, err)
	assert.Equal(t, "apple", string(data))

	_, err = d.Stat(src)
	assert.True(t, os.IsNotExist(err))

	// Renaming onto an existing file fails like the real implementation.
	err = d.Rename(filepath.Join(root, "textures", "item", "bread.png"), dst)
	assert.Error(t, err)
}

func TestDryRun_Lstat(t *testing.T) {
	root := setupTree(t)
	outside := t.TempDir()
	link := filepath.Join(root, "textures", "block")
	require.NoError(t, os.Symlink(outside, link))

	d := NewDryRun(NewOS())

	info, err := d.Lstat(link)
	require.NoError(t, err)
	assert.NotZero(t, info.Mode()&os.ModeSymlink, "base links are reported as links")

	written := filepath.Join(root, "textures", "new", "stone.png")
	require.NoError(t, d.MkdirAll(filepath.Dir(written), 0o755))
	require.NoError(t, d.WriteFileAtomic(written, []byte("stone"), 0o644))
	info, err = d.Lstat(written)
	require.NoError(t, err)
	assert.True(t, info.Mode().IsRegular())

	require.NoError(t, d.Remove(link))
	_, err = d.Lstat(link)
	assert.True(t, os.IsNotExist(err))
}
