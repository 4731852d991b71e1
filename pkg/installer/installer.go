// Package installer downloads add-on archives, verifies and extracts them into
// the add-on root, and records what was installed.
package installer

import (
	"context"
	"crypto/md5"
	"encoding/hex"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"github.com/glorpus-work/addonctl/internal/logger"
	"github.com/glorpus-work/addonctl/pkg/archive"
	"github.com/glorpus-work/addonctl/pkg/catalog"
	"github.com/glorpus-work/addonctl/pkg/errutils"
	"github.com/glorpus-work/addonctl/pkg/fsutil"
	"github.com/glorpus-work/addonctl/pkg/hook"
	"github.com/glorpus-work/addonctl/pkg/manifest"
	"github.com/glorpus-work/addonctl/pkg/model"
	"github.com/glorpus-work/addonctl/pkg/store"
)

// Installer installs and removes add-ons.
type Installer struct {
	store     *store.Store
	client    catalog.Client
	extractor *archive.Extractor
	hooks     hook.Runner
	addonDir  string
}

// New creates an Installer writing below addonDir. hooks may be nil.
func New(st *store.Store, client catalog.Client, hooks hook.Runner, addonDir string) *Installer {
	return &Installer{
		store:     st,
		client:    client,
		extractor: archive.NewExtractor(),
		hooks:     hooks,
		addonDir:  addonDir,
	}
}

// AddonDir returns the add-on root.
func (i *Installer) AddonDir() string {
	return i.addonDir
}

// Install brings add-on id to its catalog version. Unless force is set an
// add-on already installed at that version is left alone and reported as
// model.StatusAlreadyUpToDate without any download.
//
// Download, hash and extraction failures never touch the installed record.
func (i *Installer) Install(ctx context.Context, id int64, force bool) (*model.InstallOutcome, error) {
	addon, err := i.store.GetAddon(ctx, id)
	if err != nil {
		return nil, err
	}

	if err := i.refreshDetail(ctx, addon); err != nil {
		return nil, err
	}

	installed, err := i.store.GetInstalled(ctx, id)
	if err != nil {
		return nil, err
	}

	outcome := &model.InstallOutcome{
		AddonID: addon.ID,
		Name:    addon.Name,
		Version: addon.Version,
	}
	if installed != nil && installed.Version == addon.Version && !force {
		logger.Debug("Addon already up to date", logger.Fields{"id": id, "version": addon.Version})
		outcome.Status = model.StatusAlreadyUpToDate
		return outcome, nil
	}

	hc := hook.HookContext{
		AddonID:      addon.ID,
		AddonName:    addon.Name,
		AddonVersion: addon.Version,
		RootDir:      i.addonDir,
	}
	if err := i.runHook(ctx, hook.PreInstall, hc); err != nil {
		return nil, errutils.Wrapf(err, "pre-install hook for %s", addon.Name)
	}

	logger.Info("Downloading addon", logger.Fields{"name": addon.Name, "version": addon.Version})
	data, err := i.client.DownloadArchive(ctx, addon.DownloadURL)
	if err != nil {
		return nil, err
	}
	if err := verifyMD5(data, addon.MD5); err != nil {
		return nil, err
	}

	res, err := i.extractor.Extract(ctx, data, i.addonDir)
	if err != nil {
		return nil, err
	}
	logger.Debug("Extracted archive", logger.Fields{
		"root":  res.RootDir,
		"files": res.Files,
		"dirs":  res.Dirs,
	})

	deps, err := i.parseDependencies(res.RootDir)
	if err != nil {
		return nil, err
	}

	if err := i.store.RecordInstall(ctx, model.InstalledAddon{
		AddonID: addon.ID,
		Version: addon.Version,
		Date:    addon.Date,
	}, deps); err != nil {
		return nil, err
	}

	outcome.Status = model.StatusInstalled
	if installed != nil {
		outcome.Status = model.StatusUpdated
	}
	outcome.RootDir = res.RootDir
	outcome.Dependencies = deps

	hc.AddonDir = res.RootDir
	if err := i.runHook(ctx, hook.PostInstall, hc); err != nil {
		logger.Warn("Post-install hook failed", logger.Fields{"name": addon.Name, "error": err.Error()})
	}
	return outcome, nil
}

// refreshDetail fetches the detail record when the stored one was fetched for
// another catalog version or the download location is unknown, and updates
// addon in place.
func (i *Installer) refreshDetail(ctx context.Context, addon *model.Addon) error {
	detail, err := i.store.GetAddonDetail(ctx, addon.ID)
	if err != nil {
		return err
	}
	if detail != nil && detail.Version == addon.Version && addon.DownloadURL != "" {
		return nil
	}

	logger.Debug("Refreshing addon detail", logger.Fields{"id": addon.ID})
	fetched, err := i.client.FetchAddonDetail(ctx, addon.ID)
	if err != nil {
		return err
	}
	info := fetched.DownloadInfo()
	if err := i.store.UpdateAddonDetail(ctx, info, fetched.AddonDetail(addon.ID, addon.Version)); err != nil {
		return err
	}
	addon.DownloadURL = info.DownloadURL
	addon.MD5 = info.MD5
	addon.FileName = info.FileName
	return nil
}

// parseDependencies reads the manifest of the extracted root directory.
// Add-ons without a manifest are recorded with no dependencies.
func (i *Installer) parseDependencies(rootDir string) ([]string, error) {
	deps, err := manifest.ParseDependencies(filepath.Join(i.addonDir, rootDir), rootDir)
	if errors.Is(err, errutils.ErrMetadataMissing) {
		logger.Warn("Addon has no metadata file, recording no dependencies", logger.Fields{"dir": rootDir})
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("parse dependencies of %s: %w", rootDir, err)
	}
	return deps, nil
}

// Remove deletes the installed record of id and the add-on's directories
// below the add-on root. It returns the directories that were deleted.
func (i *Installer) Remove(ctx context.Context, id int64) ([]string, error) {
	name := ""
	addon, err := i.store.GetAddon(ctx, id)
	switch {
	case err == nil:
		name = addon.Name
	case !errors.Is(err, errutils.ErrAddonNotFound):
		return nil, err
	}

	installed, err := i.store.GetInstalled(ctx, id)
	if err != nil {
		return nil, err
	}
	if installed == nil {
		return nil, errutils.ErrNotInstalledWithID(id)
	}

	dirs, err := i.store.AddonDirs(ctx, id)
	if err != nil {
		return nil, err
	}

	if _, err := i.store.RemoveInstalled(ctx, id); err != nil {
		return nil, err
	}

	root := filepath.Clean(i.addonDir)
	removed := make([]string, 0, len(dirs))
	for _, dir := range dirs {
		target, err := fsutil.ResolveWithin(root, dir)
		if err != nil || target == root {
			logger.Warn("Refusing to delete directory outside addon root", logger.Fields{"dir": dir})
			continue
		}
		if err := os.RemoveAll(target); err != nil {
			return removed, fmt.Errorf("delete %s: %w", dir, err)
		}
		removed = append(removed, dir)
	}

	if err := i.runHook(ctx, hook.PostRemove, hook.HookContext{
		AddonID:      id,
		AddonName:    name,
		AddonVersion: installed.Version,
		RootDir:      i.addonDir,
	}); err != nil {
		logger.Warn("Post-remove hook failed", logger.Fields{"id": id, "error": err.Error()})
	}
	return removed, nil
}

func (i *Installer) runHook(ctx context.Context, t hook.HookType, hc hook.HookContext) error {
	if i.hooks == nil || !i.hooks.HasHook(t) {
		return nil
	}
	return i.hooks.Run(ctx, t, hc)
}

// verifyMD5 compares data against a hex digest, ignoring case. An empty
// digest skips the check.
func verifyMD5(data []byte, expected string) error {
	expected = strings.TrimSpace(expected)
	if expected == "" {
		return nil
	}
	sum := md5.Sum(data)
	actual := hex.EncodeToString(sum[:])
	if !strings.EqualFold(actual, expected) {
		return &errutils.HashMismatchError{Expected: expected, Actual: actual}
	}
	return nil
}
