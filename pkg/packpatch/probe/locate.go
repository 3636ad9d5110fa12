package probe

import (
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"sort"
	"strings"
	"sync"

	"github.com/charlievieth/fastwalk"

	"github.com/jamesainslie/packpatch/pkg/packpatch/types"
)

// Locate finds the pack root at or below dir: dir itself when it holds
// pack.mcmeta, otherwise the shallowest descendant that does. Ties at the
// same depth go to the lexically smallest path.
func Locate(dir string) (string, error) {
	abs, err := filepath.Abs(dir)
	if err != nil {
		return "", err
	}

	info, err := os.Stat(abs)
	if err != nil {
		return "", fmt.Errorf("%w: %w", types.ErrNotAPack, err)
	}
	if !info.IsDir() {
		return "", fmt.Errorf("%w: %s is not a directory", types.ErrNotAPack, abs)
	}

	if meta, err := os.Stat(filepath.Join(abs, MetaFile)); err == nil && !meta.IsDir() {
		return abs, nil
	}

	var (
		mu    sync.Mutex
		found []string
	)

	conf := fastwalk.Config{Follow: false}
	err = fastwalk.Walk(&conf, abs, func(path string, d fs.DirEntry, err error) error {
		if err != nil {
			// Unreadable subtrees cannot hold a usable pack.
			return nil
		}
		if d.Name() != MetaFile || !d.Type().IsRegular() {
			return nil
		}
		mu.Lock()
		found = append(found, filepath.Dir(path))
		mu.Unlock()
		return nil
	})
	if err != nil {
		return "", fmt.Errorf("searching %s: %w", abs, err)
	}

	if len(found) == 0 {
		return "", fmt.Errorf("%w: no %s under %s", types.ErrNotAPack, MetaFile, abs)
	}

	sort.Slice(found, func(i, j int) bool {
		di, dj := depth(found[i]), depth(found[j])
		if di != dj {
			return di < dj
		}
		return found[i] < found[j]
	})
	return found[0], nil
}

func depth(p string) int {
	return strings.Count(p, string(filepath.Separator))
}
