package cli

import (
	"fmt"
	"strings"
	"text/tabwriter"

	"github.com/glorpus-work/addonctl/internal/logger"
	"github.com/glorpus-work/addonctl/pkg/catalog"
	"github.com/glorpus-work/addonctl/pkg/errutils"
	"github.com/glorpus-work/addonctl/pkg/model"
	"github.com/spf13/cobra"
)

// NewDepsCmd creates the deps command with subcommands.
func NewDepsCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "deps",
		Short: "Inspect and resolve add-on dependencies",
		Long: `Add-ons declare the directories they depend on in their manifest. A directory
is missing when no installed add-on provides it and no decision resolves it.`,
	}

	cmd.AddCommand(
		newDepsMissingCmd(),
		newDepsResolveCmd(),
		newDepsRescanCmd(),
	)

	return cmd
}

func newDepsMissingCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "missing",
		Short: "List missing dependency directories",
		Args:  cobra.NoArgs,
		RunE:  runDepsMissing,
	}
}

func runDepsMissing(cmd *cobra.Command, _ []string) error {
	a, err := openApp(cmd, false)
	if err != nil {
		return err
	}
	defer a.Close()

	missing, err := a.orch.MissingDependencies(cmd.Context())
	if err != nil {
		return err
	}
	if missing == nil {
		missing = []model.MissingDependency{}
	}

	return render(cmd, missing, func(w *tabwriter.Writer) {
		if len(missing) == 0 {
			writeLine(w, "No missing dependencies")
			return
		}
		writeLine(w, "DIRECTORY\tREQUIRED BY\tCANDIDATES")
		for _, m := range missing {
			candidates := make([]string, 0, len(m.Candidates))
			for _, c := range m.Candidates {
				candidates = append(candidates, fmt.Sprintf("%d (%s)", c.AddonID, c.Name))
			}
			if len(candidates) == 0 {
				candidates = append(candidates, "none in catalog")
			}
			writeLine(w, "%s\t%s\t%s", m.Dir, strings.Join(m.RequiredBy, ", "), strings.Join(candidates, ", "))
		}
	})
}

func newDepsResolveCmd() *cobra.Command {
	var (
		ignore      bool
		satisfiedBy string
	)

	cmd := &cobra.Command{
		Use:   "resolve DIRECTORY",
		Short: "Record a decision for a missing directory",
		Long: `Record how a missing dependency directory is handled. Exactly one of
--ignore or --satisfied-by is required. --satisfied-by installs the chosen
add-on first when it is not installed.`,
		Args: cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return runDepsResolve(cmd, args[0], ignore, satisfiedBy)
		},
	}

	cmd.Flags().BoolVar(&ignore, "ignore", false, "Stop reporting the directory as missing")
	cmd.Flags().StringVar(&satisfiedBy, "satisfied-by", "", "Add-on id or URL that provides the directory")

	return cmd
}

func runDepsResolve(cmd *cobra.Command, dir string, ignore bool, satisfiedBy string) error {
	if ignore == (satisfiedBy != "") {
		return errutils.ErrResolutionChoice
	}

	decision := model.UserDecision{AddonDir: dir, Ignore: ignore}
	if satisfiedBy != "" {
		id, err := catalog.ParseAddonRef(satisfiedBy)
		if err != nil {
			return err
		}
		decision.SatisfiedBy = &id
	}

	a, err := openApp(cmd, satisfiedBy != "")
	if err != nil {
		return err
	}
	defer a.Close()

	if err := a.orch.Resolve(cmd.Context(), []model.UserDecision{decision}); err != nil {
		return fmt.Errorf("failed to resolve %s: %w", dir, err)
	}
	logger.Success("Dependency resolved", logger.Fields{"dir": dir})
	return nil
}

func newDepsRescanCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "rescan",
		Short: "Re-read the manifests of installed add-ons",
		Long:  "Re-read the manifests of installed add-ons on disk and replace their recorded dependencies.",
		Args:  cobra.NoArgs,
		RunE:  runDepsRescan,
	}
}

func runDepsRescan(cmd *cobra.Command, _ []string) error {
	a, err := openApp(cmd, false)
	if err != nil {
		return err
	}
	defer a.Close()

	n, err := a.orch.Rescan(cmd.Context())
	if err != nil {
		return fmt.Errorf("rescan failed: %w", err)
	}
	_, _ = fmt.Fprintf(cmd.OutOrStdout(), "Rescanned %d add-on(s)\n", n)
	warnMissing(cmd.Context(), a.orch)
	return nil
}
