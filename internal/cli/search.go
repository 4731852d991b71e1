package cli

import (
	"fmt"
	"strconv"
	"strings"
	"text/tabwriter"

	"github.com/glorpus-work/addonctl/pkg/catalog"
	"github.com/spf13/cobra"
)

// NewSearchCmd creates the search command.
func NewSearchCmd() *cobra.Command {
	var limit int

	cmd := &cobra.Command{
		Use:   "search <term>",
		Short: "Search the catalog",
		Long: `Search the local catalog mirror for add-ons whose name contains the term.
Results are ordered newest first. Run 'addonctl sync' to refresh the mirror.`,
		Args: cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return runSearch(cmd, args[0], limit)
		},
	}

	cmd.Flags().IntVarP(&limit, "limit", "n", DefaultSearchLimit, "Maximum number of results")

	return cmd
}

func runSearch(cmd *cobra.Command, term string, limit int) error {
	a, err := openApp(cmd, false)
	if err != nil {
		return err
	}
	defer a.Close()

	addons, err := a.orch.Search(cmd.Context(), term, limit)
	if err != nil {
		return fmt.Errorf("search failed: %w", err)
	}

	return render(cmd, addons, func(w *tabwriter.Writer) {
		if len(addons) == 0 {
			writeLine(w, "No add-ons found matching '%s'", term)
			return
		}
		writeLine(w, "ID\tNAME\tVERSION\tUPDATED\tAUTHOR")
		for _, ad := range addons {
			writeLine(w, "%d\t%s\t%s\t%s\t%s", ad.ID, truncate(ad.Name, MaxNameLength),
				ad.Version, ad.Date.Format(dateLayout), ad.AuthorName)
		}
		writeLine(w, "\nFound %d add-on(s) matching '%s'", len(addons), term)
	})
}

// NewShowCmd creates the show command.
func NewShowCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "show ID|URL",
		Short: "Show add-on details",
		Long:  "Show catalog details, directories and install state of one add-on.",
		Args:  cobra.ExactArgs(1),
		RunE:  runShow,
	}

	return cmd
}

func runShow(cmd *cobra.Command, args []string) error {
	id, err := catalog.ParseAddonRef(args[0])
	if err != nil {
		return err
	}

	a, err := openApp(cmd, true)
	if err != nil {
		return err
	}
	defer a.Close()

	view, err := a.orch.GetAddon(cmd.Context(), id)
	if err != nil {
		return err
	}

	return render(cmd, view, func(w *tabwriter.Writer) {
		writeLine(w, "Name:\t%s", view.Name)
		writeLine(w, "ID:\t%d", view.ID)
		writeLine(w, "Author:\t%s", view.AuthorName)
		writeLine(w, "Version:\t%s (%s)", view.Version, view.Date.Format(dateLayout))
		writeLine(w, "Directories:\t%s", strings.Join(view.Dirs, ", "))
		if view.DownloadTotal != nil {
			writeLine(w, "Downloads:\t%d", *view.DownloadTotal)
		}
		for _, c := range view.Compatibility {
			writeLine(w, "Compatible:\t%s %s", c.Name, c.Version)
		}
		switch {
		case !view.Installed:
			writeLine(w, "Installed:\tno")
		case view.Upgradable:
			writeLine(w, "Installed:\t%s (upgradable)", view.InstalledVersion)
		default:
			writeLine(w, "Installed:\t%s", view.InstalledVersion)
		}
		writeLine(w, "Page:\t%s", view.FileInfoURL)
		if view.Detail != nil && view.Detail.Description != "" {
			writeLine(w, "\n%s", truncate(view.Detail.Description, MaxDescriptionLength))
		}
	})
}

// NewCategoriesCmd creates the categories command.
func NewCategoriesCmd() *cobra.Command {
	var limit int

	cmd := &cobra.Command{
		Use:   "categories [ID]",
		Short: "List catalog categories",
		Long: `List the catalog categories with their subcategories. With a category ID,
list the newest add-ons of that category instead.`,
		Args: cobra.MaximumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			if len(args) == 1 {
				id, err := strconv.ParseInt(args[0], 10, 64)
				if err != nil || id <= 0 {
					return fmt.Errorf("invalid category id %q", args[0])
				}
				return runBrowse(cmd, id, limit)
			}
			return runCategories(cmd)
		},
	}

	cmd.Flags().IntVarP(&limit, "limit", "n", DefaultSearchLimit, "Maximum number of add-ons listed for a category")

	return cmd
}

func runBrowse(cmd *cobra.Command, categoryID int64, limit int) error {
	a, err := openApp(cmd, false)
	if err != nil {
		return err
	}
	defer a.Close()

	addons, err := a.orch.Browse(cmd.Context(), categoryID, limit)
	if err != nil {
		return err
	}

	return render(cmd, addons, func(w *tabwriter.Writer) {
		if len(addons) == 0 {
			writeLine(w, "No add-ons in category %d", categoryID)
			return
		}
		writeLine(w, "ID\tNAME\tVERSION\tUPDATED\tAUTHOR")
		for _, ad := range addons {
			writeLine(w, "%d\t%s\t%s\t%s\t%s", ad.ID, truncate(ad.Name, MaxNameLength),
				ad.Version, ad.Date.Format(dateLayout), ad.AuthorName)
		}
	})
}

func runCategories(cmd *cobra.Command) error {
	a, err := openApp(cmd, false)
	if err != nil {
		return err
	}
	defer a.Close()

	tree, err := a.orch.CategoryTree(cmd.Context())
	if err != nil {
		return err
	}

	return render(cmd, tree, func(w *tabwriter.Writer) {
		if len(tree) == 0 {
			writeLine(w, "No categories, run 'addonctl sync' first")
			return
		}
		for _, node := range tree {
			writeLine(w, "%d\t%s", node.ID, node.Title)
			for _, child := range node.Children {
				writeLine(w, "%d\t  %s", child.ID, child.Title)
			}
		}
	})
}
