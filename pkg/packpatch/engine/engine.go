// Package engine runs a loaded patch manifest against a pack directory.
//
// A run probes the target, then applies every operation in manifest order
// through the executor. Individual failures are recorded and the run carries
// on. A path escaping the pack root stops the run immediately, since it
// means the manifest itself is defective.
package engine

import (
	"errors"
	"time"

	"github.com/jamesainslie/packpatch/pkg/packpatch/executor"
	"github.com/jamesainslie/packpatch/pkg/packpatch/fsys"
	"github.com/jamesainslie/packpatch/pkg/packpatch/logging"
	"github.com/jamesainslie/packpatch/pkg/packpatch/probe"
	"github.com/jamesainslie/packpatch/pkg/packpatch/types"
)

// Engine applies one manifest. It holds no per-run state and may be reused
// for several runs, one at a time.
type Engine struct {
	manifest *types.Manifest

	fs            fsys.FS
	logger        logging.Sink
	cache         executor.HashCache
	allowMismatch bool
	dryRun        bool
	now           func() time.Time
}

// Option configures an Engine.
type Option func(*Engine)

// WithFS sets the filesystem. The default is the host filesystem.
func WithFS(filesystem fsys.FS) Option {
	return func(e *Engine) { e.fs = filesystem }
}

// WithLogger sets the logger. The default is logging.Get("engine").
func WithLogger(l logging.Sink) Option {
	return func(e *Engine) { e.logger = l }
}

// WithHashCache lets the executor skip re-reading unchanged targets.
func WithHashCache(c executor.HashCache) Option {
	return func(e *Engine) { e.cache = c }
}

// WithAllowVersionMismatch turns a pack_format mismatch into a warning.
func WithAllowVersionMismatch(allow bool) Option {
	return func(e *Engine) { e.allowMismatch = allow }
}

// WithClock overrides the clock used for report timestamps and durations.
func WithClock(now func() time.Time) Option {
	return func(e *Engine) { e.now = now }
}

// WithDryRun wraps the filesystem in a recording overlay for every run, so
// nothing is written. Use WithFS with an fsys.DryRun instead when the
// recorded changes are needed afterwards.
func WithDryRun(dryRun bool) Option {
	return func(e *Engine) { e.dryRun = dryRun }
}

// New returns an Engine for manifest.
func New(manifest *types.Manifest, opts ...Option) *Engine {
	e := &Engine{manifest: manifest, now: time.Now}
	for _, opt := range opts {
		opt(e)
	}
	if e.fs == nil {
		e.fs = fsys.NewOS()
	}
	if e.logger == nil {
		e.logger = logging.Get("engine")
	}
	return e
}

// Manifest returns the manifest the engine applies.
func (e *Engine) Manifest() *types.Manifest {
	return e.manifest
}

// Run applies the manifest to the pack at rootPath.
//
// A probe failure returns an ABORTED report with no outcomes together with
// the probe error; nothing has been touched at that point. Every other
// condition, including an abort on a path escape, is described by the
// returned report alone.
func (e *Engine) Run(rootPath string) (*types.Report, error) {
	filesystem := e.fs
	_, overlay := filesystem.(*fsys.DryRun)
	if e.dryRun && !overlay {
		filesystem = fsys.NewDryRun(filesystem)
		overlay = true
	}

	start := e.now()
	report := &types.Report{
		Root:      rootPath,
		Manifest:  e.manifest.Name,
		DryRun:    overlay,
		StartedAt: start,
		Outcomes:  make([]types.Outcome, 0, len(e.manifest.Operations)),
	}

	prober := &probe.Prober{
		FS:                   filesystem,
		Format:               e.manifest.FormatVersion,
		AllowVersionMismatch: e.allowMismatch,
		Logger:               e.logger,
	}
	root, err := prober.Probe(rootPath)
	if err != nil {
		e.logger.Error("probe failed", "root", rootPath, "error", err)
		report.Status = types.RunAborted
		report.Err = err
		report.Elapsed = e.now().Sub(start)
		return report, err
	}
	report.Root = root.Path

	e.logger.Info("patch run started",
		"root", root.Path,
		"manifest", e.manifest.Name,
		"operations", len(e.manifest.Operations),
		"dry_run", overlay,
	)

	execOpts := []executor.Option{executor.WithLogger(e.logger), executor.WithClock(e.now)}
	if e.cache != nil && !overlay {
		execOpts = append(execOpts, executor.WithHashCache(e.cache))
	}
	exec := executor.New(filesystem, execOpts...)

	for _, op := range e.manifest.Operations {
		outcome := exec.Apply(op, root)
		report.Outcomes = append(report.Outcomes, outcome)

		if errors.Is(outcome.Err, types.ErrPathEscape) {
			e.logger.Error("aborting run, operation escapes pack root", "index", op.Index, "op", op.String(), "error", outcome.Err)
			report.Status = types.RunAborted
			report.Err = outcome.Err
			break
		}
	}

	report.Finalize()
	report.Elapsed = e.now().Sub(start)

	counts := report.Counts()
	e.logger.Info("patch run finished",
		"root", root.Path,
		"status", report.Status,
		"applied", counts.Applied,
		"skipped", counts.Skipped,
		"failed", counts.Failed,
		"elapsed", report.Elapsed,
	)
	return report, nil
}
