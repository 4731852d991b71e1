package cli

import (
	"fmt"

	"github.com/glorpus-work/addonctl/internal/logger"
	"github.com/spf13/cobra"
)

// NewBackupCmd creates the backup command.
func NewBackupCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "backup FILE",
		Short: "Back up installed add-ons and dependency decisions",
		Long: `Write the installed add-ons and the dependency decisions to a JSON file.
Versions are not stored; restored add-ons show as upgradable after the next sync.`,
		Args: cobra.ExactArgs(1),
		RunE: runBackup,
	}
}

func runBackup(cmd *cobra.Command, args []string) error {
	a, err := openApp(cmd, false)
	if err != nil {
		return err
	}
	defer a.Close()

	snap, err := a.orch.Backup(cmd.Context(), args[0])
	if err != nil {
		return fmt.Errorf("backup failed: %w", err)
	}
	logger.Success("Backup written", logger.Fields{
		"path":      args[0],
		"installed": len(snap.InstalledAddons),
		"decisions": len(snap.ManualDependencies),
	})
	return nil
}

// NewRestoreCmd creates the restore command.
func NewRestoreCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "restore FILE",
		Short: "Restore installed add-ons and dependency decisions",
		Long: `Replace the recorded installed add-ons and dependency decisions with a backup.
Files in the AddOns folder are not touched; run 'addonctl upgrade' to reinstall.`,
		Args: cobra.ExactArgs(1),
		RunE: runRestore,
	}
}

func runRestore(cmd *cobra.Command, args []string) error {
	a, err := openApp(cmd, false)
	if err != nil {
		return err
	}
	defer a.Close()

	snap, err := a.orch.Restore(cmd.Context(), args[0])
	if err != nil {
		return fmt.Errorf("restore failed: %w", err)
	}
	logger.Success("Backup restored", logger.Fields{
		"path":      args[0],
		"installed": len(snap.InstalledAddons),
		"decisions": len(snap.ManualDependencies),
	})
	return nil
}

// NewImportMinionCmd creates the import-minion command.
func NewImportMinionCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "import-minion FILE",
		Short: "Install the add-ons of a Minion backup",
		Long:  "Install every add-on listed in a Minion backup file (BU-addons.txt).",
		Args:  cobra.ExactArgs(1),
		RunE:  runImportMinion,
	}
}

func runImportMinion(cmd *cobra.Command, args []string) error {
	a, err := openApp(cmd, true)
	if err != nil {
		return err
	}
	defer a.Close()

	results, err := a.orch.ImportMinion(cmd.Context(), args[0])
	if err != nil {
		return fmt.Errorf("import failed: %w", err)
	}
	if err := printResults(cmd, results); err != nil {
		return err
	}
	warnMissing(cmd.Context(), a.orch)
	return nil
}
