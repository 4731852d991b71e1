package cli

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"os"
	"strings"
	"text/tabwriter"

	"github.com/glorpus-work/addonctl/internal/logger"
	"github.com/glorpus-work/addonctl/pkg/catalog"
	"github.com/glorpus-work/addonctl/pkg/config"
	"github.com/glorpus-work/addonctl/pkg/errutils"
	"github.com/glorpus-work/addonctl/pkg/fsutil"
	"github.com/glorpus-work/addonctl/pkg/hook"
	"github.com/glorpus-work/addonctl/pkg/model"
	"github.com/glorpus-work/addonctl/pkg/orchestrator"
	"github.com/glorpus-work/addonctl/pkg/store"
	"github.com/spf13/cobra"
	"gopkg.in/yaml.v3"
)

// getConfigPath returns the --config value or the default config path.
func getConfigPath() string {
	if ConfigPath != "" {
		return ConfigPath
	}

	defaultPath, err := config.GetDefaultConfigPath()
	if err != nil {
		logger.Warn("Failed to get default config path, using empty path", logger.Fields{"error": err.Error()})
		return ""
	}
	return defaultPath
}

// loadConfig loads the configuration and initializes the logger from it.
func loadConfig() (*config.Config, error) {
	cfg, err := config.LoadConfig(getConfigPath())
	if err != nil {
		return nil, fmt.Errorf("failed to load config: %w", err)
	}

	level := cfg.Settings.LogLevel
	if Verbose {
		level = "debug"
	}
	logger.InitLogger(level, logger.FormatText)
	return cfg, nil
}

// app is the wiring behind one command invocation.
type app struct {
	cfg    *config.Config
	store  *store.Store
	client *catalog.HTTPClient
	orch   *orchestrator.Orchestrator
}

// openApp loads the config, opens the store and builds the orchestrator.
// With discover set, missing feed URLs are discovered from the catalog
// endpoint and saved to the config file. overrides adjust the loaded
// config for this invocation only.
func openApp(cmd *cobra.Command, discover bool, overrides ...func(*config.Config)) (*app, error) {
	cfg, err := loadConfig()
	if err != nil {
		return nil, err
	}
	for _, o := range overrides {
		o(cfg)
	}
	ctx := cmd.Context()
	if ctx == nil {
		ctx = context.Background()
	}

	client := catalog.NewHTTPClient(cfg.CatalogFeeds(), cfg.CatalogOptions())
	if discover && !cfg.FeedsConfigured() {
		if err := discoverFeeds(ctx, cfg, client); err != nil {
			return nil, err
		}
	}

	scripts := hook.NewManager()
	if err := hook.LoadScripts(scripts, cfg.HookPaths()); err != nil {
		return nil, fmt.Errorf("failed to load hook scripts: %w", err)
	}

	if err := fsutil.EnsureDir(cfg.AddonDir); err != nil {
		return nil, fmt.Errorf("failed to create addon directory: %w", err)
	}

	st, err := store.Open(ctx, cfg.DBPath)
	if err != nil {
		return nil, err
	}

	orch := orchestrator.New(st, client, orchestrator.Options{
		AddonDir:      cfg.AddonDir,
		Concurrency:   cfg.Settings.MaxConcurrent,
		Scripts:       scripts,
		Hooks:         progressHooks(cmd),
		PriceTableURL: cfg.Feeds.PriceTable,
	})
	return &app{cfg: cfg, store: st, client: client, orch: orch}, nil
}

func (a *app) Close() {
	if err := a.store.Close(); err != nil {
		logger.Warn("Failed to close database", logger.Fields{"error": err.Error()})
	}
}

func discoverFeeds(ctx context.Context, cfg *config.Config, client *catalog.HTTPClient) error {
	logger.Info("Discovering catalog feeds", logger.Fields{"endpoint": cfg.Feeds.Endpoint, "game": cfg.Feeds.GameID})
	feeds, err := client.DiscoverFeeds(ctx, cfg.Feeds.Endpoint, cfg.Feeds.GameID)
	if err != nil {
		return fmt.Errorf("failed to discover catalog feeds: %w", err)
	}
	cfg.SetCatalogFeeds(feeds)
	client.SetFeeds(feeds)

	if err := persistFeeds(getConfigPath(), feeds); err != nil {
		logger.Warn("Could not save discovered feeds", logger.Fields{"error": err.Error()})
	}
	return nil
}

// persistFeeds stores feed URLs in the config file.
func persistFeeds(path string, feeds catalog.Feeds) error {
	cfg, err := loadConfigFile(path)
	if err != nil {
		return err
	}
	cfg.SetCatalogFeeds(feeds)
	return cfg.SaveConfig(path)
}

// loadConfigFile reads the config file without environment overrides, for
// commands that write it back. A missing file yields the defaults.
func loadConfigFile(path string) (*config.Config, error) {
	f, err := os.Open(path)
	if os.IsNotExist(err) {
		return config.DefaultConfig(), nil
	}
	if err != nil {
		return nil, fmt.Errorf("failed to open config file: %w", err)
	}
	defer func() { _ = f.Close() }()
	return config.LoadConfigFromReader(f)
}

// progressHooks prints orchestrator events when verbose table output is on.
func progressHooks(cmd *cobra.Command) orchestrator.Hooks {
	if !Verbose || OutputFormat != FormatTable {
		return orchestrator.Hooks{}
	}
	out := cmd.ErrOrStderr()
	return orchestrator.Hooks{OnEvent: func(e orchestrator.Event) {
		if e.AddonID != 0 {
			_, _ = fmt.Fprintf(out, "%s: %s (%d)\n", e.Phase, e.Msg, e.AddonID)
		} else {
			_, _ = fmt.Fprintf(out, "%s: %s\n", e.Phase, e.Msg)
		}
	}}
}

// render writes v as JSON or YAML, or calls table for the default format.
func render(cmd *cobra.Command, v interface{}, table func(w *tabwriter.Writer)) error {
	out := cmd.OutOrStdout()
	switch OutputFormat {
	case FormatJSON:
		enc := json.NewEncoder(out)
		enc.SetIndent("", "  ")
		return enc.Encode(v)
	case FormatYAML:
		// Round trip through JSON so YAML keys match the json tags.
		data, err := json.Marshal(v)
		if err != nil {
			return err
		}
		var generic interface{}
		if err := yaml.Unmarshal(data, &generic); err != nil {
			return err
		}
		enc := yaml.NewEncoder(out)
		enc.SetIndent(config.YAMLIndent)
		if err := enc.Encode(generic); err != nil {
			return err
		}
		return enc.Close()
	case FormatTable, "":
		tw := tabwriter.NewWriter(out, 0, 0, TabWidth, ' ', 0)
		table(tw)
		return tw.Flush()
	default:
		return fmt.Errorf("unsupported output format %q", OutputFormat)
	}
}

// parseAddonRefs converts command arguments to add-on ids.
func parseAddonRefs(args []string) ([]int64, error) {
	if len(args) == 0 {
		return nil, errutils.ErrNoAddonsSpecified
	}
	ids := make([]int64, 0, len(args))
	for _, arg := range args {
		id, err := catalog.ParseAddonRef(arg)
		if err != nil {
			return nil, err
		}
		ids = append(ids, id)
	}
	return ids, nil
}

// resultView is the printable form of a model.UpgradeResult.
type resultView struct {
	AddonID int64               `json:"addon_id"`
	Name    string              `json:"name,omitempty"`
	Version string              `json:"version,omitempty"`
	Status  model.InstallStatus `json:"status,omitempty"`
	Error   string              `json:"error,omitempty"`
}

// printResults lists per-add-on outcomes and joins the failures.
func printResults(cmd *cobra.Command, results []model.UpgradeResult) error {
	views := make([]resultView, 0, len(results))
	var errs []error
	for _, r := range results {
		v := resultView{AddonID: r.AddonID}
		if r.Err != nil {
			v.Error = r.Err.Error()
			errs = append(errs, fmt.Errorf("addon %d: %w", r.AddonID, r.Err))
		} else if r.Outcome != nil {
			v.Name, v.Version, v.Status = r.Outcome.Name, r.Outcome.Version, r.Outcome.Status
		}
		views = append(views, v)
	}

	err := render(cmd, views, func(w *tabwriter.Writer) {
		writeLine(w, "ID\tNAME\tVERSION\tRESULT")
		for _, v := range views {
			if v.Error != "" {
				writeLine(w, "%d\t\t\tfailed: %s", v.AddonID, v.Error)
				continue
			}
			writeLine(w, "%d\t%s\t%s\t%s", v.AddonID, truncate(v.Name, MaxNameLength), v.Version, v.Status)
		}
	})
	if err != nil {
		return err
	}
	return errors.Join(errs...)
}

// warnMissing logs a hint when installed add-ons lack dependencies.
func warnMissing(ctx context.Context, orch *orchestrator.Orchestrator) {
	missing, err := orch.MissingDependencies(ctx)
	if err != nil {
		logger.Warn("Could not check dependencies", logger.Fields{"error": err.Error()})
		return
	}
	if len(missing) > 0 {
		dirs := make([]string, 0, len(missing))
		for _, m := range missing {
			dirs = append(dirs, m.Dir)
		}
		logger.Warn("Missing dependencies, see 'addonctl deps missing'", logger.Fields{"dirs": strings.Join(dirs, ",")})
	}
}

func truncate(s string, n int) string {
	r := []rune(s)
	if len(r) <= n {
		return s
	}
	return string(r[:n-3]) + "..."
}

func writeLine(w io.Writer, format string, args ...interface{}) {
	_, _ = fmt.Fprintf(w, format+"\n", args...)
}
