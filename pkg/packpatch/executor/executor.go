// Package executor applies single patch operations to a pack root.
//
// Apply never panics and never returns an error: every problem becomes a
// FAILED outcome whose Err carries the typed cause. The orchestrator
// inspects Err for types.ErrPathEscape to decide whether to abort.
package executor

import (
	"crypto/sha256"
	"encoding/hex"
	"errors"
	"fmt"
	"io/fs"
	"path/filepath"
	"strings"
	"time"

	"github.com/jamesainslie/packpatch/pkg/packpatch/fsys"
	"github.com/jamesainslie/packpatch/pkg/packpatch/logging"
	"github.com/jamesainslie/packpatch/pkg/packpatch/resolve"
	"github.com/jamesainslie/packpatch/pkg/packpatch/types"
)

const defaultFilePerm fs.FileMode = 0o644

// HashCache remembers file digests keyed by size and modification time.
// *cache.Store implements it.
type HashCache interface {
	Lookup(path string, size int64, mtime time.Time) ([32]byte, bool)
	Remember(path string, size int64, mtime time.Time, sum [32]byte) error
}

// Executor applies operations through an injected filesystem.
type Executor struct {
	fs     fsys.FS
	cache  HashCache
	logger logging.Sink
	now    func() time.Time
}

// Option configures an Executor.
type Option func(*Executor)

// WithHashCache enables digest caching for REPLACE_FILE comparisons.
func WithHashCache(c HashCache) Option {
	return func(e *Executor) { e.cache = c }
}

// WithLogger sets the logger. The default is logging.Get("executor").
func WithLogger(l logging.Sink) Option {
	return func(e *Executor) { e.logger = l }
}

// WithClock overrides the clock used to time operations.
func WithClock(now func() time.Time) Option {
	return func(e *Executor) { e.now = now }
}

// New returns an Executor writing through filesystem.
func New(filesystem fsys.FS, opts ...Option) *Executor {
	e := &Executor{fs: filesystem, now: time.Now}
	for _, opt := range opts {
		opt(e)
	}
	if e.logger == nil {
		e.logger = logging.Get("executor")
	}
	return e
}

// result is what a kind handler reports back to Apply.
type result struct {
	status types.Status
	detail string
	err    error
	bytes  int64
}

func applied(detail string, n int64) result {
	return result{status: types.StatusApplied, detail: detail, bytes: n}
}

func skipped(detail string) result {
	return result{status: types.StatusSkipped, detail: detail}
}

func failed(err error) result {
	return result{status: types.StatusFailed, detail: err.Error(), err: err}
}

// Apply executes op against root and reports the outcome.
func (e *Executor) Apply(op *types.Operation, root *types.PackRoot) types.Outcome {
	start := e.now()

	var res result
	target, err := e.locate(root, op.Path)
	if err != nil {
		res = failed(err)
	} else {
		res = e.dispatch(op, root, target)
	}

	out := types.Outcome{
		Operation: op,
		Status:    res.status,
		Detail:    res.detail,
		Err:       res.err,
		Bytes:     res.bytes,
		Duration:  e.now().Sub(start),
	}

	switch res.status {
	case types.StatusFailed:
		e.logger.Warn("operation failed", "index", op.Index, "op", op.String(), "error", res.err)
	default:
		e.logger.Debug("operation done", "index", op.Index, "op", op.String(), "status", res.status, "detail", res.detail)
	}
	return out
}

func (e *Executor) dispatch(op *types.Operation, root *types.PackRoot, target string) result {
	switch op.Kind {
	case types.KindReplaceFile:
		return e.replaceFile(op, target)
	case types.KindDeleteFile:
		return e.deleteFile(target)
	case types.KindPatchJSONField:
		return e.patchJSON(op, target)
	case types.KindRenameFile:
		dest, err := e.locate(root, op.To)
		if err != nil {
			return failed(err)
		}
		return e.renameFile(op, target, dest)
	case types.KindPruneDir:
		return e.pruneDir(op, target)
	case types.KindAppendText:
		return e.appendText(op, target)
	default:
		return failed(fmt.Errorf("unsupported operation kind %s", op.Kind))
	}
}

// locate resolves logical under root, then walks the existing part of the
// path with Lstat. A symbolic link anywhere below the root, the target
// included, counts as an escape.
func (e *Executor) locate(root *types.PackRoot, logical string) (string, error) {
	target, err := resolve.Resolve(root, logical)
	if err != nil {
		return "", err
	}
	rel, err := filepath.Rel(root.Path, target)
	if err != nil {
		return "", err
	}

	p := root.Path
	for _, part := range strings.Split(rel, string(filepath.Separator)) {
		p = filepath.Join(p, part)
		info, err := e.fs.Lstat(p)
		if errors.Is(err, fs.ErrNotExist) {
			return target, nil
		}
		if err != nil {
			return "", fmt.Errorf("inspecting %s: %w", logical, err)
		}
		if info.Mode()&fs.ModeSymlink != 0 {
			link, _ := filepath.Rel(root.Path, p)
			return "", &types.PathEscapeError{Path: logical, Reason: "passes through symbolic link " + filepath.ToSlash(link)}
		}
		if !info.IsDir() {
			break
		}
	}
	return target, nil
}

// stat is Stat that maps "not exist" to a nil info and nil error.
func (e *Executor) stat(path string) (fs.FileInfo, error) {
	info, err := e.fs.Stat(path)
	if errors.Is(err, fs.ErrNotExist) {
		return nil, nil
	}
	return info, err
}

// digest returns the sha256 of the file at path, consulting the cache first.
func (e *Executor) digest(path string, info fs.FileInfo) ([32]byte, error) {
	if e.cache != nil {
		if sum, ok := e.cache.Lookup(path, info.Size(), info.ModTime()); ok {
			return sum, nil
		}
	}

	data, err := e.fs.ReadFile(path)
	if err != nil {
		return [32]byte{}, err
	}
	sum := sha256.Sum256(data)
	e.remember(path, info, sum)
	return sum, nil
}

// remember records sum for path. Cache trouble never fails an operation.
func (e *Executor) remember(path string, info fs.FileInfo, sum [32]byte) {
	if e.cache == nil || info == nil || info.ModTime().IsZero() {
		return
	}
	if err := e.cache.Remember(path, info.Size(), info.ModTime(), sum); err != nil {
		e.logger.Debug("hash cache write failed", "path", path, "error", err)
	}
}

// perm returns the permission bits to write path with.
func perm(info fs.FileInfo) fs.FileMode {
	if info == nil {
		return defaultFilePerm
	}
	return info.Mode().Perm()
}

// Digest returns the lowercase hex sha256 of data.
func Digest(data []byte) string {
	sum := sha256.Sum256(data)
	return hex.EncodeToString(sum[:])
}
