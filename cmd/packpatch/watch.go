package main

import (
	"context"
	"errors"
	"os"
	"os/signal"
	"syscall"

	"github.com/spf13/cobra"

	"github.com/jamesainslie/packpatch/pkg/packpatch/logging"
	"github.com/jamesainslie/packpatch/pkg/packpatch/watcher"
)

var watchCmd = &cobra.Command{
	Use:   "watch [pack-dir]",
	Short: "Re-apply the patch set whenever the pack changes",
	Long: `Apply the patch set once, then watch the pack directory and apply it again
each time the tree settles after a change.

Changes are debounced (watch.debounce in the config file, 500ms by default),
so extracting a new pack version over the old one triggers a single run.
Stop with Ctrl-C.`,
	Args: cobra.MaximumNArgs(1),
	RunE: runWatch,
}

func init() {
	rootCmd.AddCommand(watchCmd)
}

// runWatch applies once and then on every settled batch of changes until
// interrupted.
func runWatch(_ *cobra.Command, args []string) error {
	if outputDir != "" || dryRunFlag {
		return errors.New("watch patches in place; --output and --dry-run are not supported")
	}

	target, err := resolveTarget(args, searchFlag)
	if err != nil {
		return err
	}

	p, err := newPatcher(cfg, patcherOptions{
		noCache:   noCacheFlag,
		noJournal: noJournalFlag,
		quiet:     quietFlag,
		out:       os.Stdout,
	})
	if err != nil {
		return err
	}
	defer p.Close()

	// The first run must find a pack; later probe failures are transient
	// while the pack is being replaced.
	if _, err := p.apply(target); err != nil {
		return err
	}

	w, err := watcher.New(target, cfg.Watch.Debounce)
	if err != nil {
		return err
	}
	defer func() { _ = w.Close() }()

	log := logging.Get("watcher")
	w.SetLogger(log)

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	printInfo("Watching %s (Ctrl-C to stop)", w.Root())
	w.Run(ctx, func(changed []string) {
		log.Info("pack changed, re-applying", "root", w.Root(), "paths", len(changed))
		printVerbose("%d paths changed", len(changed))
		if _, err := p.apply(w.Root()); err != nil {
			log.Warn("run skipped", "error", err)
			printError("%v", err)
		}
	})
	return nil
}
