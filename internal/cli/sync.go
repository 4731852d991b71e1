package cli

import (
	"fmt"
	"path/filepath"
	"text/tabwriter"

	"github.com/glorpus-work/addonctl/internal/logger"
	"github.com/glorpus-work/addonctl/pkg/orchestrator"
	"github.com/spf13/cobra"
)

// NewSyncCmd creates the sync command.
func NewSyncCmd() *cobra.Command {
	var (
		upgrade    bool
		details    bool
		priceTable bool
	)

	cmd := &cobra.Command{
		Use:   "sync",
		Short: "Synchronize the add-on catalog",
		Long: `Synchronize the local catalog mirror with the remote add-on catalog and report
installed add-ons that have a newer version.

Feed URLs are discovered from the configured endpoint on first use. The
price table is refreshed as well with --pricetable or when
settings.update_ttc_pricetable is set.`,
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			return runSync(cmd, upgrade, details, priceTable)
		},
	}

	cmd.Flags().BoolVar(&upgrade, "upgrade", false, "Upgrade stale add-ons after syncing")
	cmd.Flags().BoolVar(&details, "details", false, "Refresh outdated detail records of installed add-ons")
	cmd.Flags().BoolVar(&priceTable, "pricetable", false, "Refresh the Tamriel Trade Centre price table")

	return cmd
}

func runSync(cmd *cobra.Command, upgrade, details, priceTable bool) error {
	a, err := openApp(cmd, true)
	if err != nil {
		return err
	}
	defer a.Close()
	ctx := cmd.Context()

	logger.Debug("Synchronizing catalog...")
	report, err := a.orch.Sync(ctx, orchestrator.SyncOptions{
		RefreshDetails: details,
		PriceTable:     priceTable || a.cfg.Settings.UpdatePriceTable,
	})
	if err != nil {
		return fmt.Errorf("failed to sync catalog: %w", err)
	}

	err = render(cmd, report, func(w *tabwriter.Writer) {
		writeLine(w, "Synchronized %d add-ons (%d directories) in %d categories", report.Addons, report.Directories, report.Categories)
		if len(report.Stale) == 0 {
			writeLine(w, "All installed add-ons are up to date")
			return
		}
		writeLine(w, "\nID\tNAME\tINSTALLED\tAVAILABLE")
		for _, s := range report.Stale {
			writeLine(w, "%d\t%s\t%s\t%s", s.AddonID, truncate(s.Name, MaxNameLength), s.InstalledVersion, s.CatalogVersion)
		}
	})
	if err != nil {
		return err
	}

	if !upgrade && !a.cfg.Settings.UpdateOnLaunch {
		return nil
	}
	if len(report.Stale) == 0 {
		return nil
	}
	results, err := a.orch.Upgrade(ctx, nil)
	if err != nil {
		return fmt.Errorf("failed to upgrade addons: %w", err)
	}
	if err := printResults(cmd, results); err != nil {
		return err
	}
	logger.Success("Catalog synchronized and add-ons upgraded")
	return nil
}

// NewPriceTableCmd creates the pricetable command.
func NewPriceTableCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "pricetable",
		Short: "Update the Tamriel Trade Centre price table",
		Long: `Download the Tamriel Trade Centre price table from feeds.price_table and
unpack it into the TamrielTradeCentre add-on directory.`,
		Args: cobra.NoArgs,
		RunE: runPriceTable,
	}

	return cmd
}

func runPriceTable(cmd *cobra.Command, _ []string) error {
	a, err := openApp(cmd, false)
	if err != nil {
		return err
	}
	defer a.Close()

	res, err := a.orch.UpdatePriceTable(cmd.Context())
	if err != nil {
		return fmt.Errorf("failed to update price table: %w", err)
	}

	return render(cmd, res, func(w *tabwriter.Writer) {
		writeLine(w, "Price table updated (%d files) in %s", res.Files,
			filepath.Join(a.cfg.AddonDir, orchestrator.PriceTableDir))
	})
}
