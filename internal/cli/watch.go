package cli

import (
	"context"
	"fmt"
	"time"

	"github.com/glorpus-work/addonctl/internal/logger"
	"github.com/glorpus-work/addonctl/pkg/watcher"
	"github.com/spf13/cobra"
)

// NewWatchCmd creates the watch command.
func NewWatchCmd() *cobra.Command {
	var debounce time.Duration

	cmd := &cobra.Command{
		Use:   "watch",
		Short: "Rescan dependencies when the AddOns folder changes",
		Long: `Watch the AddOns folder and re-read add-on manifests whenever add-on
directories or manifests change. Runs until interrupted.`,
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			return runWatch(cmd, debounce)
		},
	}

	cmd.Flags().DurationVar(&debounce, "debounce", watcher.DefaultDebounce, "Quiet period before rescanning")

	return cmd
}

func runWatch(cmd *cobra.Command, debounce time.Duration) error {
	a, err := openApp(cmd, false)
	if err != nil {
		return err
	}
	defer a.Close()

	rescan := func(ctx context.Context) error {
		n, err := a.orch.Rescan(ctx)
		if err != nil {
			return err
		}
		logger.Info("Rescanned addons", logger.Fields{"count": n})
		warnMissing(ctx, a.orch)
		return nil
	}
	if err := rescan(cmd.Context()); err != nil {
		return fmt.Errorf("initial rescan failed: %w", err)
	}

	w, err := watcher.New(a.cfg.AddonDir, debounce, rescan)
	if err != nil {
		return err
	}
	logger.Info("Watching addon directory", logger.Fields{"dir": a.cfg.AddonDir})
	return w.Run(cmd.Context())
}
