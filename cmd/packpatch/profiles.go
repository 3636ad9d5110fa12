package main

import (
	"fmt"
	"strings"

	"github.com/spf13/cobra"

	"github.com/jamesainslie/packpatch/pkg/packpatch/patchset"
	"github.com/jamesainslie/packpatch/pkg/packpatch/types"
)

var profilesCmd = &cobra.Command{
	Use:   "profiles",
	Short: "List bundled patch sets",
	Long:  `List the patch sets compiled into packpatch with their pack_format and operation counts.`,
	Args:  cobra.NoArgs,
	RunE:  runProfiles,
}

func init() {
	rootCmd.AddCommand(profilesCmd)
}

// kindColumns is the display order of operation kinds.
var kindColumns = []struct {
	kind  types.Kind
	title string
}{
	{types.KindReplaceFile, "REPLACE"},
	{types.KindDeleteFile, "DELETE"},
	{types.KindPatchJSONField, "PATCH"},
	{types.KindRenameFile, "RENAME"},
	{types.KindPruneDir, "PRUNE"},
	{types.KindAppendText, "APPEND"},
}

// runProfiles prints one row per bundled profile.
func runProfiles(cmd *cobra.Command, _ []string) error {
	out := cmd.OutOrStdout()

	header := fmt.Sprintf("%-8s  %-6s  %-4s", "PROFILE", "FORMAT", "OPS")
	for _, c := range kindColumns {
		header += fmt.Sprintf("  %-7s", c.title)
	}
	fmt.Fprintln(out, strings.TrimRight(header, " "))
	fmt.Fprintln(out, strings.Repeat("-", len(strings.TrimRight(header, " "))))

	for _, name := range patchset.Profiles() {
		m, err := patchset.LoadBundled(name)
		if err != nil {
			return fmt.Errorf("loading profile %s: %w", name, err)
		}

		marker := " "
		if name == cfg.Profile {
			marker = "*"
		}

		counts := m.CountByKind()
		row := fmt.Sprintf("%-8s  %-6d  %-4d", name+marker, m.FormatVersion, len(m.Operations))
		for _, c := range kindColumns {
			row += fmt.Sprintf("  %-7d", counts[c.kind])
		}
		fmt.Fprintln(out, strings.TrimRight(row, " "))
	}

	fmt.Fprintln(out)
	fmt.Fprintln(out, "* selected profile. Choose another with --profile or profile: in the config file.")
	return nil
}
