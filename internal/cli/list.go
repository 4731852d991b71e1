package cli

import (
	"fmt"
	"text/tabwriter"

	"github.com/glorpus-work/addonctl/pkg/model"
	"github.com/spf13/cobra"
)

// NewListCmd creates the list command.
func NewListCmd() *cobra.Command {
	var upgradable bool

	cmd := &cobra.Command{
		Use:   "list",
		Short: "List installed add-ons",
		Long: `List the installed add-ons with their installed and catalog versions.

Use --upgradable to only show add-ons with a newer catalog entry.`,
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			return runList(cmd, upgradable)
		},
	}

	cmd.Flags().BoolVar(&upgradable, "upgradable", false, "Only show add-ons that can be upgraded")

	return cmd
}

type listView struct {
	model.InstalledListing
	Upgradable bool `json:"upgradable"`
}

func runList(cmd *cobra.Command, onlyUpgradable bool) error {
	a, err := openApp(cmd, false)
	if err != nil {
		return err
	}
	defer a.Close()

	listings, err := a.orch.ListInstalled(cmd.Context())
	if err != nil {
		return fmt.Errorf("failed to list installed addons: %w", err)
	}

	views := make([]listView, 0, len(listings))
	for _, l := range listings {
		if onlyUpgradable && !l.Upgradable() {
			continue
		}
		views = append(views, listView{InstalledListing: l, Upgradable: l.Upgradable()})
	}

	return render(cmd, views, func(w *tabwriter.Writer) {
		if len(views) == 0 {
			writeLine(w, "No add-ons installed")
			return
		}
		writeLine(w, "ID\tNAME\tINSTALLED\tAVAILABLE\tSTATUS")
		for _, v := range views {
			writeLine(w, "%d\t%s\t%s\t%s\t%s", v.AddonID, truncate(v.Name, MaxNameLength),
				v.InstalledVersion, v.CatalogVersion, upgradeStatus(v.InstalledListing))
		}
	})
}
