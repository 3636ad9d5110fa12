package fsys

import (
	"errors"
	"fmt"
	"io"
	"io/fs"
	"os"
	"path/filepath"
	"strings"
	"sync/atomic"

	"github.com/charlievieth/fastwalk"
)

// ErrDestinationNotEmpty is returned by CopyTree when dst already has content.
var ErrDestinationNotEmpty = errors.New("destination is not empty")

// CopyStats summarises a CopyTree call.
type CopyStats struct {
	Files   int64
	Dirs    int64
	Bytes   int64
	Skipped int64 // symlinks and other non-regular files
}

// CopyTree copies the directory tree at src into dst, which must be absent
// or empty and must not lie inside src. Regular files and directories are
// copied with their permission bits; symlinks are skipped so the copy can
// never point outside itself.
func CopyTree(src, dst string) (*CopyStats, error) {
	absSrc, err := filepath.Abs(src)
	if err != nil {
		return nil, fmt.Errorf("resolving source: %w", err)
	}
	absDst, err := filepath.Abs(dst)
	if err != nil {
		return nil, fmt.Errorf("resolving destination: %w", err)
	}

	if absDst == absSrc || strings.HasPrefix(absDst, absSrc+string(filepath.Separator)) {
		return nil, fmt.Errorf("destination %s is inside source %s", absDst, absSrc)
	}

	if entries, err := os.ReadDir(absDst); err == nil && len(entries) > 0 {
		return nil, fmt.Errorf("%w: %s", ErrDestinationNotEmpty, absDst)
	}

	srcInfo, err := os.Stat(absSrc)
	if err != nil {
		return nil, fmt.Errorf("stat source: %w", err)
	}
	if !srcInfo.IsDir() {
		return nil, fmt.Errorf("source is not a directory: %s", absSrc)
	}
	if err := os.MkdirAll(absDst, srcInfo.Mode().Perm()); err != nil {
		return nil, fmt.Errorf("creating destination: %w", err)
	}

	var files, dirs, bytes, skipped atomic.Int64

	conf := fastwalk.Config{
		Follow: false, // Don't follow symlinks.
	}

	// The callback runs concurrently; every path it touches is distinct.
	walkErr := fastwalk.Walk(&conf, absSrc, func(path string, d fs.DirEntry, walkErr error) error {
		if walkErr != nil {
			return walkErr
		}

		rel, err := filepath.Rel(absSrc, path)
		if err != nil {
			return err
		}
		if rel == "." {
			return nil
		}
		target := filepath.Join(absDst, rel)

		switch {
		case d.IsDir():
			info, err := d.Info()
			if err != nil {
				return err
			}
			if err := os.MkdirAll(target, info.Mode().Perm()|0o700); err != nil {
				return fmt.Errorf("creating %s: %w", rel, err)
			}
			dirs.Add(1)
		case d.Type().IsRegular():
			n, err := copyFile(path, target)
			if err != nil {
				return fmt.Errorf("copying %s: %w", rel, err)
			}
			files.Add(1)
			bytes.Add(n)
		default:
			skipped.Add(1)
		}
		return nil
	})
	if walkErr != nil {
		return nil, walkErr
	}

	return &CopyStats{
		Files:   files.Load(),
		Dirs:    dirs.Load(),
		Bytes:   bytes.Load(),
		Skipped: skipped.Load(),
	}, nil
}

// copyFile copies a single regular file, preserving its permission bits.
func copyFile(src, dst string) (int64, error) {
	in, err := os.Open(src)
	if err != nil {
		return 0, err
	}
	defer in.Close()

	info, err := in.Stat()
	if err != nil {
		return 0, err
	}

	if err := os.MkdirAll(filepath.Dir(dst), 0o755); err != nil {
		return 0, err
	}

	out, err := os.OpenFile(dst, os.O_CREATE|os.O_WRONLY|os.O_TRUNC, info.Mode().Perm())
	if err != nil {
		return 0, err
	}

	n, err := io.Copy(out, in)
	if err != nil {
		_ = out.Close()
		return n, err
	}
	return n, out.Close()
}
