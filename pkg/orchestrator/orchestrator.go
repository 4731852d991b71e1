// Package orchestrator owns the store-backed engines (sync, install, resolve,
// backup) and exposes the operations the command line drives.
package orchestrator

import (
	"context"
	"fmt"
	"path/filepath"
	"sort"
	"sync"

	"github.com/glorpus-work/addonctl/internal/logger"
	"github.com/glorpus-work/addonctl/pkg/archive"
	"github.com/glorpus-work/addonctl/pkg/backup"
	"github.com/glorpus-work/addonctl/pkg/catalog"
	"github.com/glorpus-work/addonctl/pkg/errutils"
	"github.com/glorpus-work/addonctl/pkg/installer"
	"github.com/glorpus-work/addonctl/pkg/model"
	"github.com/glorpus-work/addonctl/pkg/resolver"
	"github.com/glorpus-work/addonctl/pkg/store"
	"github.com/glorpus-work/addonctl/pkg/syncer"
	"golang.org/x/sync/errgroup"
)

// DefaultConcurrency is used when Options.Concurrency is not positive.
const DefaultConcurrency = 4

// Orchestrator ties the catalog, the store and the engines built on them together.
type Orchestrator struct {
	store       *store.Store
	client      catalog.Client
	extractor   *archive.Extractor
	installer   *installer.Installer
	syncer      *syncer.Syncer
	resolver    *resolver.Resolver
	backup      *backup.Manager
	hooks       Hooks
	concurrency int
	addonDir    string
	priceTable  string

	emitMu sync.Mutex
}

// New constructs an Orchestrator over an open store and a catalog client.
func New(st *store.Store, client catalog.Client, opts Options) *Orchestrator {
	concurrency := opts.Concurrency
	if concurrency < 1 {
		concurrency = DefaultConcurrency
	}
	inst := installer.New(st, client, opts.Scripts, opts.AddonDir)
	return &Orchestrator{
		store:       st,
		client:      client,
		extractor:   archive.NewExtractor(),
		installer:   inst,
		syncer:      syncer.New(st, client),
		resolver:    resolver.New(st, inst, opts.AddonDir),
		backup:      backup.New(st),
		hooks:       opts.Hooks,
		concurrency: concurrency,
		addonDir:    opts.AddonDir,
		priceTable:  opts.PriceTableURL,
	}
}

func (o *Orchestrator) emit(e Event) {
	if o.hooks.OnEvent == nil {
		return
	}
	o.emitMu.Lock()
	defer o.emitMu.Unlock()
	o.hooks.OnEvent(e)
}

// Sync mirrors the remote catalog into the store.
func (o *Orchestrator) Sync(ctx context.Context, opts SyncOptions) (*model.SyncReport, error) {
	o.emit(Event{Phase: PhaseSyncing, Msg: "fetching catalog"})
	report, err := o.syncer.Sync(ctx)
	if err != nil {
		o.emit(Event{Phase: PhaseError, Msg: err.Error()})
		return nil, err
	}

	if opts.RefreshDetails && len(report.OutdatedDetails) > 0 {
		o.emit(Event{Phase: PhaseDetails, Msg: fmt.Sprintf("refreshing %d detail records", len(report.OutdatedDetails))})
		n, err := o.syncer.RefreshDetails(ctx, report.OutdatedDetails)
		if err != nil {
			return report, errutils.Wrapf(err, "refresh details (%d stored)", n)
		}
		report.OutdatedDetails = nil
	}

	if opts.PriceTable {
		if _, err := o.UpdatePriceTable(ctx); err != nil {
			return report, errutils.Wrap(err, "update price table")
		}
	}

	o.emit(Event{Phase: PhaseDone, Msg: fmt.Sprintf("%d addons, %d stale", report.Addons, len(report.Stale))})
	return report, nil
}

// UpdatePriceTable downloads the Tamriel Trade Centre price table and
// unpacks it into PriceTableDir below the add-on root, overwriting the
// previous table. It is not recorded as an installed add-on.
func (o *Orchestrator) UpdatePriceTable(ctx context.Context) (*archive.Result, error) {
	if o.priceTable == "" {
		return nil, errutils.ErrPriceTableURLEmpty
	}
	o.emit(Event{Phase: PhasePriceTable, Msg: o.priceTable})
	data, err := o.client.DownloadArchive(ctx, o.priceTable)
	if err != nil {
		o.emit(Event{Phase: PhaseError, Msg: err.Error()})
		return nil, err
	}
	dest := filepath.Join(o.addonDir, PriceTableDir)
	res, err := o.extractor.Extract(ctx, data, dest)
	if err != nil {
		o.emit(Event{Phase: PhaseError, Msg: err.Error()})
		return nil, err
	}
	logger.Info("Updated price table", logger.Fields{"dir": dest, "files": res.Files})
	return res, nil
}

// Install installs one add-on.
func (o *Orchestrator) Install(ctx context.Context, id int64, force bool) (*model.InstallOutcome, error) {
	o.emit(Event{Phase: PhaseInstalling, AddonID: id})
	outcome, err := o.installer.Install(ctx, id, force)
	if err != nil {
		o.emit(Event{Phase: PhaseError, AddonID: id, Msg: err.Error()})
		return nil, err
	}
	o.emit(Event{Phase: PhaseDone, AddonID: id, Msg: string(outcome.Status)})
	return outcome, nil
}

// InstallAll installs ids in parallel. Failures are reported per add-on and
// never stop the other installs. Results follow the order of ids.
func (o *Orchestrator) InstallAll(ctx context.Context, ids []int64, force bool) []model.UpgradeResult {
	results := make([]model.UpgradeResult, len(ids))
	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(o.concurrency)
	for i, id := range ids {
		results[i].AddonID = id
		g.Go(func() error {
			outcome, err := o.Install(gctx, id, force)
			results[i].Outcome = outcome
			results[i].Err = err
			return nil
		})
	}
	_ = g.Wait()
	return results
}

// Upgrade reinstalls installed add-ons that have a newer catalog entry. With
// no ids every stale add-on is upgraded. Requested add-ons that are not
// installed fail with ErrNotInstalled; requested add-ons that are current are
// reported as already up to date without any download.
func (o *Orchestrator) Upgrade(ctx context.Context, ids []int64) ([]model.UpgradeResult, error) {
	listings, err := o.store.ListInstalledListings(ctx)
	if err != nil {
		return nil, err
	}
	byID := make(map[int64]model.InstalledListing, len(listings))
	for _, l := range listings {
		byID[l.AddonID] = l
	}

	if len(ids) == 0 {
		for _, l := range listings {
			if l.Upgradable() {
				ids = append(ids, l.AddonID)
			}
		}
		sort.Slice(ids, func(i, j int) bool { return ids[i] < ids[j] })
	}

	var (
		pending []int64
		skipped = make(map[int64]model.UpgradeResult)
	)
	for _, id := range ids {
		l, ok := byID[id]
		switch {
		case !ok:
			skipped[id] = model.UpgradeResult{AddonID: id, Err: errutils.ErrNotInstalledWithID(id)}
		case !l.Upgradable():
			skipped[id] = model.UpgradeResult{AddonID: id, Outcome: &model.InstallOutcome{
				AddonID: id,
				Name:    l.Name,
				Version: l.InstalledVersion,
				Status:  model.StatusAlreadyUpToDate,
			}}
		default:
			pending = append(pending, id)
		}
	}

	logger.Debug("Upgrading addons", logger.Fields{"count": len(pending)})
	installed := o.InstallAll(ctx, pending, true)
	done := make(map[int64]model.UpgradeResult, len(installed))
	for _, r := range installed {
		done[r.AddonID] = r
	}

	results := make([]model.UpgradeResult, 0, len(ids))
	for _, id := range ids {
		if r, ok := skipped[id]; ok {
			results = append(results, r)
			continue
		}
		results = append(results, done[id])
	}
	return results, nil
}

// Remove uninstalls id and deletes its directories.
func (o *Orchestrator) Remove(ctx context.Context, id int64) ([]string, error) {
	o.emit(Event{Phase: PhaseRemoving, AddonID: id})
	dirs, err := o.installer.Remove(ctx, id)
	if err != nil {
		o.emit(Event{Phase: PhaseError, AddonID: id, Msg: err.Error()})
		return dirs, err
	}
	o.emit(Event{Phase: PhaseDone, AddonID: id})
	return dirs, nil
}

// Search returns add-ons whose name contains term, newest first. A
// non-positive limit uses SearchLimit.
func (o *Orchestrator) Search(ctx context.Context, term string, limit int) ([]model.Addon, error) {
	if limit <= 0 {
		limit = SearchLimit
	}
	return o.store.SearchAddons(ctx, term, limit)
}

// Browse returns the newest add-ons of a category. A non-positive limit uses
// SearchLimit.
func (o *Orchestrator) Browse(ctx context.Context, categoryID int64, limit int) ([]model.Addon, error) {
	if limit <= 0 {
		limit = SearchLimit
	}
	return o.store.AddonsByCategory(ctx, categoryID, limit)
}

// ListInstalled returns the installed add-ons with their catalog versions.
func (o *Orchestrator) ListInstalled(ctx context.Context) ([]model.InstalledListing, error) {
	return o.store.ListInstalledListings(ctx)
}

// Stale returns the installed add-ons with a newer catalog entry.
func (o *Orchestrator) Stale(ctx context.Context) ([]model.StaleAddon, error) {
	return o.store.StaleAddons(ctx)
}

// GetAddon returns the full view of one add-on. The detail record is fetched
// first when it is missing or was fetched for another version; a failed fetch
// only costs the detail.
func (o *Orchestrator) GetAddon(ctx context.Context, id int64) (*model.AddonView, error) {
	addon, err := o.store.GetAddon(ctx, id)
	if err != nil {
		return nil, err
	}

	detail, err := o.store.GetAddonDetail(ctx, id)
	if err != nil {
		return nil, err
	}
	if detail == nil || detail.Version != addon.Version {
		if _, err := o.syncer.RefreshDetails(ctx, []int64{id}); err != nil {
			logger.Warn("Could not refresh addon detail", logger.Fields{"id": id, "error": err.Error()})
		} else {
			if addon, err = o.store.GetAddon(ctx, id); err != nil {
				return nil, err
			}
			if detail, err = o.store.GetAddonDetail(ctx, id); err != nil {
				return nil, err
			}
		}
	}

	view := &model.AddonView{Addon: *addon, Detail: detail}
	if view.Dirs, err = o.store.AddonDirs(ctx, id); err != nil {
		return nil, err
	}
	if view.Compatibility, err = o.store.GameCompatibility(ctx, id); err != nil {
		return nil, err
	}
	if view.Images, err = o.store.AddonImages(ctx, id); err != nil {
		return nil, err
	}

	installed, err := o.store.GetInstalled(ctx, id)
	if err != nil {
		return nil, err
	}
	if installed != nil {
		view.Installed = true
		view.InstalledVersion = installed.Version
		view.Upgradable = model.IsStale(installed.Version, installed.Date, addon.Version, addon.Date)
	}
	return view, nil
}

// CategoryTree returns the top-level categories with their children.
func (o *Orchestrator) CategoryTree(ctx context.Context) ([]model.CategoryNode, error) {
	return o.store.CategoryTree(ctx)
}

// MissingDependencies lists unresolved dependency directories with their candidates.
func (o *Orchestrator) MissingDependencies(ctx context.Context) ([]model.MissingDependency, error) {
	return o.resolver.FindMissingDependencies(ctx)
}

// Resolve records the user's decisions, installing chosen add-ons first.
func (o *Orchestrator) Resolve(ctx context.Context, decisions []model.UserDecision) error {
	o.emit(Event{Phase: PhaseResolving, Msg: fmt.Sprintf("%d decisions", len(decisions))})
	return o.resolver.ApplyResolutions(ctx, decisions)
}

// Rescan re-reads the manifests of installed add-ons on disk.
func (o *Orchestrator) Rescan(ctx context.Context) (int, error) {
	o.emit(Event{Phase: PhaseScanning, Msg: o.installer.AddonDir()})
	return o.resolver.Rescan(ctx)
}

// Backup writes a snapshot of the installed state and overrides to path.
func (o *Orchestrator) Backup(ctx context.Context, path string) (*backup.Snapshot, error) {
	snap, err := o.backup.Backup(ctx)
	if err != nil {
		return nil, err
	}
	if err := backup.WriteFile(path, snap); err != nil {
		return nil, err
	}
	return snap, nil
}

// Restore replaces the installed state and overrides with the snapshot at path.
// Files on disk are not touched.
func (o *Orchestrator) Restore(ctx context.Context, path string) (*backup.Snapshot, error) {
	snap, err := backup.ReadFile(path)
	if err != nil {
		return nil, err
	}
	if err := o.backup.Restore(ctx, snap); err != nil {
		return nil, err
	}
	return snap, nil
}

// ImportMinion installs every add-on listed in a Minion backup file.
func (o *Orchestrator) ImportMinion(ctx context.Context, path string) ([]model.UpgradeResult, error) {
	ids, err := backup.ReadMinion(path)
	if err != nil {
		return nil, err
	}
	if len(ids) == 0 {
		return nil, errutils.ErrNoAddonsSpecified
	}
	return o.InstallAll(ctx, ids, false), nil
}
