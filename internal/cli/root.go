// Package cli contains the addonctl CLI commands and subcommands.
package cli

import (
	"github.com/spf13/cobra"
)

// Global flag values, bound by NewRootCmd.
var (
	ConfigPath   string
	Verbose      bool
	OutputFormat string
)

// NewRootCmd creates the addonctl command tree.
func NewRootCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "addonctl",
		Short: "Add-on manager for The Elder Scrolls Online",
		Long: `addonctl mirrors the ESOUI add-on catalog into a local database and manages
the add-ons installed in the game's AddOns folder:
- sync the catalog and upgrade what is out of date
- install, remove and search add-ons
- find and resolve missing library dependencies`,
		SilenceUsage: true,
	}

	cmd.PersistentFlags().StringVar(&ConfigPath, "config", "", "config file path (default: auto-detect)")
	cmd.PersistentFlags().BoolVarP(&Verbose, "verbose", "v", false, "verbose output")
	cmd.PersistentFlags().StringVarP(&OutputFormat, "output", "o", FormatTable, "output format (table, json, yaml)")

	cmd.AddCommand(
		NewSyncCmd(),
		NewPriceTableCmd(),
		NewInstallCmd(),
		NewRemoveCmd(),
		NewUpgradeCmd(),
		NewListCmd(),
		NewSearchCmd(),
		NewShowCmd(),
		NewCategoriesCmd(),
		NewDepsCmd(),
		NewBackupCmd(),
		NewRestoreCmd(),
		NewImportMinionCmd(),
		NewWatchCmd(),
		NewConfigCmd(),
		NewHookCmd(),
		NewVersionCmd(),
	)

	return cmd
}
