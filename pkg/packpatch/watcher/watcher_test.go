package watcher

import (
	"context"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/jamesainslie/packpatch/pkg/packpatch/logging"
)

const testDebounce = 50 * time.Millisecond

func startWatcher(t *testing.T, root string) (*Watcher, <-chan []string) {
	t.Helper()
	return startWatcherWith(t, root, nil)
}

// startWatcherWith runs hook inside the callback before the batch is sent.
func startWatcherWith(t *testing.T, root string, hook func(changed []string)) (*Watcher, <-chan []string) {
	t.Helper()

	w, err := New(root, testDebounce)
	require.NoError(t, err)
	w.SetLogger(logging.Discard())

	ctx, cancel := context.WithCancel(context.Background())
	batches := make(chan []string, 16)
	done := make(chan struct{})
	go func() {
		defer close(done)
		w.Run(ctx, func(changed []string) {
			if hook != nil {
				hook(changed)
			}
			batches <- changed
		})
	}()

	t.Cleanup(func() {
		cancel()
		<-done
		_ = w.Close()
	})
	return w, batches
}

func waitBatch(t *testing.T, batches <-chan []string) []string {
	t.Helper()
	select {
	case b := <-batches:
		return b
	case <-time.After(3 * time.Second):
		t.Fatal("timed out waiting for change batch")
		return nil
	}
}

func TestNew_WatchesTree(t *testing.T) {
	root := t.TempDir()
	sub := filepath.Join(root, "assets", "minecraft")
	require.NoError(t, os.MkdirAll(sub, 0o755))
	require.NoError(t, os.MkdirAll(filepath.Join(root, ".packpatch-sounds.del.1.1"), 0o755))

	w, err := New(root, 0)
	require.NoError(t, err)
	defer w.Close()

	assert.Equal(t, DefaultDebounce, w.debounce)
	assert.True(t, w.paths[root])
	assert.True(t, w.paths[sub])
	assert.False(t, w.paths[filepath.Join(root, ".packpatch-sounds.del.1.1")], "staging directories are not watched")
}

func TestNew_MissingRoot(t *testing.T) {
	_, err := New(filepath.Join(t.TempDir(), "missing"), testDebounce)
	assert.Error(t, err)
}

func TestRun_BatchesChanges(t *testing.T) {
	root := t.TempDir()
	_, batches := startWatcher(t, root)

	require.NoError(t, os.WriteFile(filepath.Join(root, "pack.png"), []byte("a"), 0o644))
	require.NoError(t, os.WriteFile(filepath.Join(root, "credits.txt"), []byte("b"), 0o644))

	batch := waitBatch(t, batches)
	assert.Contains(t, batch, "pack.png")
	assert.Contains(t, batch, "credits.txt")
}

func TestRun_IgnoresStagingFiles(t *testing.T) {
	root := t.TempDir()
	_, batches := startWatcher(t, root)

	require.NoError(t, os.WriteFile(filepath.Join(root, ".packpatch-pack.png.123.tmp"), []byte("x"), 0o644))

	select {
	case b := <-batches:
		t.Fatalf("unexpected batch %v", b)
	case <-time.After(5 * testDebounce):
	}
}

func TestRun_DiscardsCallbackWrites(t *testing.T) {
	root := t.TempDir()
	credits := filepath.Join(root, "credits.txt")
	_, batches := startWatcherWith(t, root, func([]string) {
		assert.NoError(t, os.WriteFile(credits, []byte("Mini version by TunaFish2K\n"), 0o644))
	})

	require.NoError(t, os.WriteFile(filepath.Join(root, "pack.png"), []byte("a"), 0o644))
	assert.Equal(t, []string{"pack.png"}, waitBatch(t, batches))

	select {
	case b := <-batches:
		t.Fatalf("callback write produced batch %v", b)
	case <-time.After(5 * testDebounce):
	}

	require.NoError(t, os.WriteFile(filepath.Join(root, "pack.png"), []byte("b"), 0o644))
	assert.Contains(t, waitBatch(t, batches), "pack.png", "later edits still arrive")
}

func TestRun_WatchesNewDirectories(t *testing.T) {
	root := t.TempDir()
	w, batches := startWatcher(t, root)

	sub := filepath.Join(root, "assets")
	require.NoError(t, os.Mkdir(sub, 0o755))
	assert.Contains(t, waitBatch(t, batches), "assets")

	w.mu.Lock()
	watched := w.paths[sub]
	w.mu.Unlock()
	require.True(t, watched)

	require.NoError(t, os.WriteFile(filepath.Join(sub, "stone.png"), []byte("x"), 0o644))
	assert.Contains(t, waitBatch(t, batches), "assets/stone.png")
}

func TestIsSubPath(t *testing.T) {
	sep := string(filepath.Separator)
	assert.True(t, isSubPath("a"+sep+"b", "a"))
	assert.False(t, isSubPath("ab", "a"))
	assert.False(t, isSubPath("a", "a"))
}
