package main

import (
	"fmt"
	"io"
	"strings"

	"github.com/dustin/go-humanize"
	"github.com/spf13/cobra"

	"github.com/jamesainslie/packpatch/pkg/packpatch/config"
	"github.com/jamesainslie/packpatch/pkg/packpatch/journal"
)

var historyCmd = &cobra.Command{
	Use:   "history",
	Short: "View previous patch runs",
	Long: `View the history of patch runs.

Every run is recorded with its target pack, patch set, status and the
outcome of each operation, including dry runs.`,
	Args: cobra.NoArgs,
	RunE: runHistory,
}

var historyShowCmd = &cobra.Command{
	Use:   "show <id>",
	Short: "Show details of a specific run",
	Long:  `Display every operation outcome of a run. The ID may be shortened to any unique prefix.`,
	Args:  cobra.ExactArgs(1),
	RunE:  runHistoryShow,
}

var historyCleanCmd = &cobra.Command{
	Use:   "clean",
	Short: "Clean up old history entries",
	Long:  `Remove history entries older than the retention period (journal.retention_days).`,
	Args:  cobra.NoArgs,
	RunE:  runHistoryClean,
}

var historyLimit int

func init() {
	historyCmd.Flags().IntVarP(&historyLimit, "limit", "l", 20, "maximum number of entries to show")

	historyCmd.AddCommand(historyShowCmd)
	historyCmd.AddCommand(historyCleanCmd)
	rootCmd.AddCommand(historyCmd)
}

// getJournal returns the journal in the configured directory.
func getJournal() (*journal.Journal, error) {
	dir := cfg.Journal.Path
	if dir == "" {
		dir = journal.DefaultDir()
	}
	return journal.New(dir)
}

// runHistory lists recent runs.
func runHistory(cmd *cobra.Command, _ []string) error {
	j, err := getJournal()
	if err != nil {
		return fmt.Errorf("failed to open history: %w", err)
	}

	entries, err := j.List(historyLimit)
	if err != nil {
		return fmt.Errorf("failed to list history: %w", err)
	}

	out := cmd.OutOrStdout()
	if len(entries) == 0 {
		fmt.Fprintln(out, "No history entries found.")
		fmt.Fprintln(out, "Run 'packpatch [pack-dir]' to patch a pack.")
		return nil
	}

	writeHistoryTable(out, entries)
	fmt.Fprintln(out, "Use 'packpatch history show <id>' for details on a specific run.")
	return nil
}

func writeHistoryTable(out io.Writer, entries []journal.Entry) {
	fmt.Fprintf(out, "\n%-8s  %-15s  %-15s  %-17s  %-10s  %s\n", "ID", "WHEN", "STATUS", "APPLIED/SKIP/FAIL", "WRITTEN", "PACK")
	fmt.Fprintln(out, strings.Repeat("-", 96))

	for _, e := range entries {
		status := string(e.Status)
		if e.DryRun {
			status += " (dry)"
		}
		fmt.Fprintf(out, "%-8s  %-15s  %-15s  %-17s  %-10s  %s\n",
			e.ShortID(),
			humanize.Time(e.Timestamp),
			status,
			fmt.Sprintf("%d/%d/%d", e.Summary.Applied, e.Summary.Skipped, e.Summary.Failed),
			humanize.IBytes(uint64(e.Summary.BytesWritten)),
			truncateLeft(e.Root, 40),
		)
	}

	fmt.Fprintln(out, strings.Repeat("-", 96))
	fmt.Fprintf(out, "\nShowing %d entries. Use --limit to see more.\n", len(entries))
}

// runHistoryShow displays details of a specific run.
func runHistoryShow(cmd *cobra.Command, args []string) error {
	j, err := getJournal()
	if err != nil {
		return fmt.Errorf("failed to open history: %w", err)
	}

	entry, err := j.Get(args[0])
	if err != nil {
		return fmt.Errorf("failed to get entry: %w", err)
	}

	writeEntry(cmd.OutOrStdout(), entry)
	return nil
}

func writeEntry(out io.Writer, entry *journal.Entry) {
	fmt.Fprintln(out, "\nRun Details")
	fmt.Fprintln(out, strings.Repeat("=", 60))
	fmt.Fprintf(out, "ID:         %s\n", entry.ID)
	fmt.Fprintf(out, "Timestamp:  %s (%s)\n", entry.Timestamp.Local().Format("2006-01-02 15:04:05 MST"), humanize.Time(entry.Timestamp))
	fmt.Fprintf(out, "Pack:       %s\n", entry.Root)
	fmt.Fprintf(out, "Patch set:  %s\n", patchSetLabel(entry))
	fmt.Fprintf(out, "Status:     %s\n", entry.Status)
	if entry.DryRun {
		fmt.Fprintln(out, "Dry run:    yes")
	}
	if entry.Error != "" {
		fmt.Fprintf(out, "Error:      %s\n", entry.Error)
	}
	fmt.Fprintf(out, "Summary:    %d applied, %d skipped, %d failed\n",
		entry.Summary.Applied, entry.Summary.Skipped, entry.Summary.Failed)
	fmt.Fprintf(out, "Written:    %s\n", humanize.IBytes(uint64(entry.Summary.BytesWritten)))
	fmt.Fprintf(out, "Took:       %s\n", entry.Summary.Elapsed)

	if len(entry.Outcomes) == 0 {
		return
	}

	fmt.Fprintln(out, "\nOperations:")
	fmt.Fprintln(out, strings.Repeat("-", 60))
	fmt.Fprintf(out, "%-4s  %-24s  %-16s  %s\n", "#", "STATUS", "KIND", "PATH")
	fmt.Fprintln(out, strings.Repeat("-", 60))
	for _, o := range entry.Outcomes {
		path := o.Path
		if o.To != "" {
			path += " -> " + o.To
		}
		fmt.Fprintf(out, "%-4d  %-24s  %-16s  %s\n", o.Index, o.Status, o.Kind, path)
		if o.Detail != "" {
			fmt.Fprintf(out, "%-4s  %s\n", "", o.Detail)
		}
	}
}

func patchSetLabel(entry *journal.Entry) string {
	if entry.Profile == "" {
		return entry.Manifest
	}
	return fmt.Sprintf("%s (%s)", entry.Manifest, entry.Profile)
}

// runHistoryClean removes old history entries.
func runHistoryClean(cmd *cobra.Command, _ []string) error {
	j, err := getJournal()
	if err != nil {
		return fmt.Errorf("failed to open history: %w", err)
	}

	retentionDays := cfg.Journal.RetentionDays
	if retentionDays <= 0 {
		retentionDays = config.DefaultRetentionDays
	}

	printInfo("Cleaning history entries older than %d days...", retentionDays)

	removed, err := j.Cleanup(retentionDays)
	if err != nil {
		return fmt.Errorf("failed to clean history: %w", err)
	}

	printInfo("Removed %d %s.", removed, plural(removed, "entry", "entries"))
	return nil
}

// truncateLeft keeps the end of s, which for paths is the informative part.
func truncateLeft(s string, maxLen int) string {
	if len(s) <= maxLen {
		return s
	}
	if maxLen <= 3 {
		return s[len(s)-maxLen:]
	}
	return "..." + s[len(s)-maxLen+3:]
}

func plural(n int, one, many string) string {
	if n == 1 {
		return one
	}
	return many
}
