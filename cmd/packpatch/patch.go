package main

import (
	"bytes"
	"errors"
	"fmt"
	"io"
	"os"
	"path/filepath"

	"github.com/dustin/go-humanize"
	"github.com/spf13/cobra"

	"github.com/jamesainslie/packpatch/pkg/packpatch/cache"
	"github.com/jamesainslie/packpatch/pkg/packpatch/config"
	"github.com/jamesainslie/packpatch/pkg/packpatch/engine"
	"github.com/jamesainslie/packpatch/pkg/packpatch/fsys"
	"github.com/jamesainslie/packpatch/pkg/packpatch/journal"
	"github.com/jamesainslie/packpatch/pkg/packpatch/logging"
	"github.com/jamesainslie/packpatch/pkg/packpatch/output"
	"github.com/jamesainslie/packpatch/pkg/packpatch/patchset"
	"github.com/jamesainslie/packpatch/pkg/packpatch/probe"
	"github.com/jamesainslie/packpatch/pkg/packpatch/types"
)

// runPatch is the root command handler.
func runPatch(_ *cobra.Command, args []string) error {
	if outputDir != "" && dryRunFlag {
		return errors.New("--output cannot be combined with --dry-run")
	}
	if diffFlag && !dryRunFlag {
		return errors.New("--diff requires --dry-run")
	}

	target, err := resolveTarget(args, searchFlag)
	if err != nil {
		return err
	}

	var source string
	if outputDir != "" {
		dst, err := config.ExpandPath(outputDir)
		if err != nil {
			return err
		}
		stats, err := fsys.CopyTree(target, dst)
		if err != nil {
			return fmt.Errorf("copying pack: %w", err)
		}
		printVerbose("copied %d files (%s) to %s", stats.Files, humanize.IBytes(uint64(stats.Bytes)), dst)
		source = target
		if target, err = filepath.Abs(dst); err != nil {
			return err
		}
	}

	p, err := newPatcher(cfg, patcherOptions{
		dryRun:    dryRunFlag,
		diff:      diffFlag,
		noCache:   noCacheFlag,
		noJournal: noJournalFlag,
		quiet:     quietFlag,
		out:       os.Stdout,
	})
	if err != nil {
		return err
	}
	defer p.Close()
	p.source = source

	report, err := p.apply(target)
	if err != nil {
		return err
	}
	if code := report.ExitCode(); code != types.ExitSuccess {
		return &exitStatus{code: code}
	}
	return nil
}

// resolveTarget returns the absolute pack directory named on the command
// line, searching below it when search is set.
func resolveTarget(args []string, search bool) (string, error) {
	dir := "."
	if len(args) > 0 {
		dir = args[0]
	}

	expanded, err := config.ExpandPath(dir)
	if err != nil {
		return "", fmt.Errorf("failed to expand path: %w", err)
	}
	abs, err := filepath.Abs(expanded)
	if err != nil {
		return "", fmt.Errorf("failed to resolve path: %w", err)
	}

	if !search {
		return abs, nil
	}
	root, err := probe.Locate(abs)
	if err != nil {
		return "", err
	}
	printVerbose("found pack at %s", root)
	return root, nil
}

// loadManifest loads the custom patch set when one is configured, otherwise
// the selected bundled profile.
func loadManifest(c *config.Config) (*types.Manifest, error) {
	if c.PatchSet == "" {
		return patchset.LoadBundled(c.Profile)
	}

	dir, err := filepath.Abs(c.PatchSet)
	if err != nil {
		return nil, err
	}
	m, err := patchset.Load(os.DirFS(dir), ".")
	if err != nil {
		return nil, fmt.Errorf("loading patch set %s: %w", dir, err)
	}
	m.Profile = dir
	return m, nil
}

type patcherOptions struct {
	dryRun    bool
	diff      bool
	noCache   bool
	noJournal bool
	quiet     bool
	out       io.Writer
}

// patcher holds everything one or more runs against the same settings
// share: the manifest, the hash cache, the journal and the formatter.
type patcher struct {
	cfg       *config.Config
	opts      patcherOptions
	manifest  *types.Manifest
	formatter output.Formatter
	store     *cache.Store
	journal   *journal.Journal
	logger    *logging.Logger

	// source is the pack a copy was made from, shown in the report header.
	source string
}

func newPatcher(c *config.Config, opts patcherOptions) (*patcher, error) {
	manifest, err := loadManifest(c)
	if err != nil {
		return nil, err
	}
	formatter, err := output.Get(c.Format)
	if err != nil {
		return nil, err
	}
	if opts.out == nil {
		opts.out = io.Discard
	}

	p := &patcher{
		cfg:       c,
		opts:      opts,
		manifest:  manifest,
		formatter: formatter,
		logger:    logging.Get("cli"),
	}

	// The cache only matters for real runs; dry runs bypass it.
	if c.Cache.Enabled && !opts.noCache && !opts.dryRun {
		path := c.Cache.Path
		if path == "" {
			path = cache.DefaultPath()
		}
		store, err := cache.Open(path)
		if err != nil {
			// Another packpatch process may hold the cache lock.
			p.logger.Warn("hash cache unavailable", "path", path, "error", err)
		} else {
			p.store = store
		}
	}

	if c.Journal.Enabled && !opts.noJournal {
		dir := c.Journal.Path
		if dir == "" {
			dir = journal.DefaultDir()
		}
		j, err := journal.New(dir)
		if err != nil {
			p.logger.Warn("run history unavailable", "error", err)
		} else {
			p.journal = j
		}
	}

	return p, nil
}

// Close releases the hash cache.
func (p *patcher) Close() {
	if p.store == nil {
		return
	}
	if err := p.store.Close(); err != nil {
		p.logger.Warn("closing hash cache", "error", err)
	}
	p.store = nil
}

// profile is the name recorded in history: the bundled profile, or empty
// for a custom patch set.
func (p *patcher) profile() string {
	if p.cfg.PatchSet != "" {
		return ""
	}
	return p.manifest.Profile
}

// apply runs the manifest against root, records the run and prints the
// report. The returned error is non-nil only when the target could not be
// validated as a pack.
func (p *patcher) apply(root string) (*types.Report, error) {
	opts := []engine.Option{
		engine.WithAllowVersionMismatch(p.cfg.AllowVersionMismatch),
		engine.WithLogger(logging.Get("engine")),
	}

	var overlay *fsys.DryRun
	if p.opts.dryRun {
		overlay = fsys.NewDryRun(fsys.NewOS())
		opts = append(opts, engine.WithFS(overlay))
	}
	if p.store != nil {
		opts = append(opts, engine.WithHashCache(p.store))
	}

	report, runErr := engine.New(p.manifest, opts...).Run(root)
	p.record(report)
	if runErr != nil {
		return report, runErr
	}

	result := &output.Result{Report: report, Profile: p.profile(), Source: p.source}
	if overlay != nil && p.opts.diff {
		result.Diffs = output.BuildDiffs(report.Root, overlay.Changes())
	}

	if !p.opts.quiet {
		var buf bytes.Buffer
		if err := p.formatter.Format(&buf, result); err != nil {
			return report, fmt.Errorf("formatting report: %w", err)
		}
		if _, err := p.opts.out.Write(buf.Bytes()); err != nil {
			return report, err
		}
	}
	return report, nil
}

// record stores report in the journal and prunes expired entries. Journal
// failures never fail the run.
func (p *patcher) record(report *types.Report) {
	if p.journal == nil {
		return
	}
	entry, err := p.journal.Record(report, p.profile())
	if err != nil {
		p.logger.Warn("recording run", "error", err)
		return
	}
	p.logger.Debug("run recorded", "id", entry.ID)

	if removed, err := p.journal.Cleanup(p.cfg.Journal.RetentionDays); err != nil {
		p.logger.Warn("cleaning run history", "error", err)
	} else if removed > 0 {
		p.logger.Info("expired history entries removed", "count", removed)
	}
}
