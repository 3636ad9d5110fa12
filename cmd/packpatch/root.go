package main

import (
	"fmt"
	"os"

	"github.com/spf13/cobra"
	"github.com/spf13/viper"

	"github.com/jamesainslie/packpatch/pkg/packpatch/config"
	"github.com/jamesainslie/packpatch/pkg/packpatch/logging"
)

var (
	cfgFile string

	// settings is the viper instance the config was decoded from.
	settings *viper.Viper
	// cfg is the decoded configuration, set before any command runs.
	cfg *config.Config

	rootCmd = &cobra.Command{
		Use:   "packpatch [pack-dir]",
		Short: "Apply a patch set to a Minecraft resource pack",
		Long: `Packpatch turns a full resource pack into its trimmed "mini" variant by
applying an ordered patch set: file replacements, deletions, JSON field
patches, renames, directory pruning and text appends.

Runs are idempotent. Applying the same patch set twice leaves the pack
unchanged the second time, and an interrupted run can simply be repeated.

Examples:
  packpatch ./Furfsky                 # Patch a pack in place (modern profile)
  packpatch -p legacy ./Furfsky       # Use the legacy (pack_format 1) profile
  packpatch -S ~/Downloads/furfsky    # Search below a directory for the pack
  packpatch -O ./FurfskyMini ./Furfsky  # Patch a copy, keep the original
  packpatch -d --diff ./Furfsky       # Preview changes without writing
  packpatch profiles                  # List bundled patch sets
  packpatch history                   # View previous runs`,
		Args:              cobra.MaximumNArgs(1),
		PersistentPreRunE: bootstrap,
		PersistentPostRun: func(*cobra.Command, []string) {
			_ = logging.Close()
		},
		RunE:          runPatch,
		SilenceErrors: true,
		SilenceUsage:  true,
	}
)

// Per-invocation flags that have no config file counterpart.
var (
	searchFlag    bool
	outputDir     string
	dryRunFlag    bool
	diffFlag      bool
	noCacheFlag   bool
	noJournalFlag bool
	quietFlag     bool
	verboseFlag   bool
)

// configFlags maps config keys to the persistent flags that override them.
var configFlags = map[string]string{
	"profile":                "profile",
	"patchset":               "patchset",
	"allow_version_mismatch": "force",
	"format":                 "format",
}

func init() {
	flags := rootCmd.PersistentFlags()
	flags.StringVar(&cfgFile, "config", "", "config file (default: ~/.config/packpatch/config.yaml)")
	flags.StringP("profile", "p", config.DefaultProfile, "bundled patch set to apply (legacy, modern)")
	flags.String("patchset", "", "directory of a custom patch set (overrides --profile)")
	flags.BoolP("force", "f", false, "apply even when pack_format does not match")
	flags.StringP("format", "o", config.DefaultFormat, "report format (pretty, plain, json, yaml)")
	flags.BoolVarP(&searchFlag, "search", "S", false, "search below pack-dir for the pack root")
	flags.StringVarP(&outputDir, "output", "O", "", "copy the pack to DIR and patch the copy")
	flags.BoolVarP(&dryRunFlag, "dry-run", "d", false, "report what would change without writing")
	flags.BoolVar(&diffFlag, "diff", false, "with --dry-run, show the content changes")
	flags.BoolVar(&noCacheFlag, "no-cache", false, "do not use the content-hash cache")
	flags.BoolVar(&noJournalFlag, "no-journal", false, "do not record the run in history")
	flags.BoolVarP(&quietFlag, "quiet", "q", false, "print nothing but errors")
	flags.BoolVarP(&verboseFlag, "verbose", "v", false, "debug output on stderr")
}

// bootstrap loads configuration, applies flag overrides and initializes
// logging. It runs before every command.
func bootstrap(cmd *cobra.Command, _ []string) error {
	v, err := config.New(cfgFile)
	if err != nil {
		return err
	}

	for key, name := range configFlags {
		if err := v.BindPFlag(key, cmd.Root().PersistentFlags().Lookup(name)); err != nil {
			return fmt.Errorf("binding flag --%s: %w", name, err)
		}
	}

	decoded, err := config.Decode(v)
	if err != nil {
		return err
	}
	settings, cfg = v, decoded

	if err := logging.Init(loggingConfig(cfg.Logging)); err != nil {
		// Logging is best effort; the run itself does not depend on it.
		printVerbose("logging disabled: %v", err)
	}
	logging.Get("cli").Debug("configuration loaded",
		"command", cmd.Name(), "file", v.ConfigFileUsed(), "profile", cfg.Profile)
	return nil
}

// Execute runs the root command.
func Execute() error {
	return rootCmd.Execute()
}

// printVerbose prints a message if verbose mode is enabled.
func printVerbose(format string, args ...interface{}) {
	if verboseFlag && !quietFlag {
		fmt.Fprintf(os.Stderr, "[DEBUG] "+format+"\n", args...)
	}
}

// printInfo prints a message if quiet mode is not enabled.
func printInfo(format string, args ...interface{}) {
	if !quietFlag {
		fmt.Printf(format+"\n", args...)
	}
}

// printError prints an error message to stderr.
func printError(format string, args ...interface{}) {
	fmt.Fprintf(os.Stderr, "Error: "+format+"\n", args...)
}
