package cli

import (
	"errors"
	"fmt"
	"text/tabwriter"

	"github.com/glorpus-work/addonctl/internal/logger"
	"github.com/glorpus-work/addonctl/pkg/config"
	"github.com/glorpus-work/addonctl/pkg/model"
	"github.com/spf13/cobra"
)

// NewInstallCmd creates the install command.
func NewInstallCmd() *cobra.Command {
	var force bool

	cmd := &cobra.Command{
		Use:   "install ID|URL...",
		Short: "Install add-ons",
		Long: `Install one or more add-ons by catalog id or ESOUI page URL.

Add-ons already installed at the catalog version are skipped unless --force is given.
Dependencies are not installed automatically; see 'addonctl deps missing'.`,
		Args: cobra.MinimumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return runInstall(cmd, args, force)
		},
	}

	cmd.Flags().BoolVarP(&force, "force", "f", false, "Reinstall even if the add-on is up to date")

	return cmd
}

func runInstall(cmd *cobra.Command, args []string, force bool) error {
	ids, err := parseAddonRefs(args)
	if err != nil {
		return err
	}

	a, err := openApp(cmd, true)
	if err != nil {
		return err
	}
	defer a.Close()

	results := a.orch.InstallAll(cmd.Context(), ids, force)
	if err := printResults(cmd, results); err != nil {
		return fmt.Errorf("failed to install addons: %w", err)
	}
	warnMissing(cmd.Context(), a.orch)
	return nil
}

// NewRemoveCmd creates the remove command.
func NewRemoveCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:     "remove ID|URL...",
		Aliases: []string{"uninstall"},
		Short:   "Remove installed add-ons",
		Long: `Remove one or more installed add-ons. The add-on's directories are deleted
from the AddOns folder and the post-remove hook runs.`,
		Args: cobra.MinimumNArgs(1),
		RunE: runRemove,
	}

	return cmd
}

type removeView struct {
	AddonID int64    `json:"addon_id"`
	Removed []string `json:"removed_dirs"`
	Error   string   `json:"error,omitempty"`
}

func runRemove(cmd *cobra.Command, args []string) error {
	ids, err := parseAddonRefs(args)
	if err != nil {
		return err
	}

	a, err := openApp(cmd, false)
	if err != nil {
		return err
	}
	defer a.Close()

	var (
		views []removeView
		errs  []error
	)
	for _, id := range ids {
		dirs, err := a.orch.Remove(cmd.Context(), id)
		v := removeView{AddonID: id, Removed: dirs}
		if err != nil {
			v.Error = err.Error()
			errs = append(errs, fmt.Errorf("addon %d: %w", id, err))
		}
		views = append(views, v)
	}

	err = render(cmd, views, func(w *tabwriter.Writer) {
		writeLine(w, "ID\tREMOVED")
		for _, v := range views {
			if v.Error != "" {
				writeLine(w, "%d\tfailed: %s", v.AddonID, v.Error)
				continue
			}
			writeLine(w, "%d\t%v", v.AddonID, v.Removed)
		}
	})
	if err != nil {
		return err
	}
	if len(errs) > 0 {
		return errors.Join(errs...)
	}
	logger.Success("Add-ons removed", logger.Fields{"count": len(ids)})
	warnMissing(cmd.Context(), a.orch)
	return nil
}

// NewUpgradeCmd creates the upgrade command.
func NewUpgradeCmd() *cobra.Command {
	var concurrency int

	cmd := &cobra.Command{
		Use:   "upgrade [ID|URL...]",
		Short: "Upgrade installed add-ons",
		Long: `Reinstall installed add-ons whose catalog entry is newer.
Without arguments every stale add-on is upgraded. Run 'addonctl sync' first.`,
		RunE: func(cmd *cobra.Command, args []string) error {
			return runUpgrade(cmd, args, concurrency)
		},
	}

	cmd.Flags().IntVar(&concurrency, "concurrency", 0, "Number of parallel upgrades (0=config)")

	return cmd
}

func runUpgrade(cmd *cobra.Command, args []string, concurrency int) error {
	var ids []int64
	if len(args) > 0 {
		var err error
		if ids, err = parseAddonRefs(args); err != nil {
			return err
		}
	}

	a, err := openApp(cmd, true, func(c *config.Config) {
		if concurrency > 0 {
			c.Settings.MaxConcurrent = concurrency
		}
	})
	if err != nil {
		return err
	}
	defer a.Close()

	results, err := a.orch.Upgrade(cmd.Context(), ids)
	if err != nil {
		return fmt.Errorf("failed to upgrade addons: %w", err)
	}
	if len(results) == 0 {
		_, _ = fmt.Fprintln(cmd.OutOrStdout(), "Nothing to upgrade")
		return nil
	}
	return printResults(cmd, results)
}

// upgradeStatus labels an installed listing for tables.
func upgradeStatus(l model.InstalledListing) string {
	if l.Upgradable() {
		return "upgradable"
	}
	return "up to date"
}
