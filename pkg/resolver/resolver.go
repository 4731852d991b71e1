//go:generate mockgen -destination=./mocks/installer.go . Installer

// Package resolver finds dependency directories that installed add-ons need
// but nothing installed provides, and applies the user's decisions about them.
package resolver

import (
	"context"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"sort"

	"github.com/glorpus-work/addonctl/internal/logger"
	"github.com/glorpus-work/addonctl/pkg/errutils"
	"github.com/glorpus-work/addonctl/pkg/manifest"
	"github.com/glorpus-work/addonctl/pkg/model"
	"github.com/glorpus-work/addonctl/pkg/store"
)

// Installer installs the add-on chosen to satisfy a directory.
type Installer interface {
	Install(ctx context.Context, id int64, force bool) (*model.InstallOutcome, error)
}

// Resolver computes and resolves missing dependencies.
type Resolver struct {
	store     *store.Store
	installer Installer
	addonDir  string
}

// New creates a Resolver. addonDir is the add-on root scanned by Rescan.
func New(st *store.Store, installer Installer, addonDir string) *Resolver {
	return &Resolver{store: st, installer: installer, addonDir: addonDir}
}

// FindMissingDependencies returns every directory required by an installed
// add-on that no installed add-on provides and no decision hides, with the
// requiring add-on names and the catalog add-ons providing it. Results are
// ordered by directory; candidates are not ranked.
func (r *Resolver) FindMissingDependencies(ctx context.Context) ([]model.MissingDependency, error) {
	rows, err := r.store.MissingDependencies(ctx)
	if err != nil {
		return nil, err
	}
	if len(rows) == 0 {
		return nil, nil
	}

	var out []model.MissingDependency
	index := make(map[string]int)
	for _, row := range rows {
		i, ok := index[row.Dir]
		if !ok {
			i = len(out)
			index[row.Dir] = i
			out = append(out, model.MissingDependency{Dir: row.Dir})
		}
		out[i].RequiredBy = append(out[i].RequiredBy, row.AddonName)
	}

	dirs := make([]string, 0, len(out))
	for _, m := range out {
		dirs = append(dirs, m.Dir)
	}
	candidates, err := r.store.Candidates(ctx, dirs)
	if err != nil {
		return nil, err
	}
	for _, c := range candidates {
		i := index[c.Dir]
		out[i].Candidates = append(out[i].Candidates, model.Candidate{AddonID: c.AddonID, Name: c.Name})
	}
	return out, nil
}

// ApplyResolutions records each decision. A decision naming an add-on that is
// not installed installs it first; a failed install stops before the
// decision is recorded.
func (r *Resolver) ApplyResolutions(ctx context.Context, decisions []model.UserDecision) error {
	for _, d := range decisions {
		if d.AddonDir == "" {
			return fmt.Errorf("resolution without directory: %w", errutils.ErrResolutionChoice)
		}
		if d.SatisfiedBy != nil {
			installed, err := r.store.GetInstalled(ctx, *d.SatisfiedBy)
			if err != nil {
				return err
			}
			if installed == nil {
				logger.Info("Installing addon to satisfy dependency", logger.Fields{
					"dir": d.AddonDir,
					"id":  *d.SatisfiedBy,
				})
				if _, err := r.installer.Install(ctx, *d.SatisfiedBy, false); err != nil {
					return errutils.Wrapf(err, "install addon %d for %s", *d.SatisfiedBy, d.AddonDir)
				}
			}
		}
		if err := r.store.UpsertManualDependency(ctx, d); err != nil {
			return err
		}
	}
	return nil
}

// Rescan re-reads the manifests of every installed add-on directory present
// on disk and replaces each add-on's dependency set with their union.
// Add-ons with none of their directories on disk keep their recorded set.
// Constraints an installed provider does not satisfy are logged as warnings.
// It returns the number of add-ons whose set was replaced.
func (r *Resolver) Rescan(ctx context.Context) (int, error) {
	installed, err := r.store.InstalledDirs(ctx)
	if err != nil {
		return 0, err
	}

	scanned := make(map[string]*manifest.Manifest)
	updated := 0
	for addonID, dirs := range installed {
		deps, found, err := r.scanDirs(dirs, scanned)
		if err != nil {
			return updated, err
		}
		if !found {
			logger.Debug("No directories on disk, keeping dependencies", logger.Fields{"id": addonID})
			continue
		}
		if err := r.store.ReplaceDependencies(ctx, addonID, deps); err != nil {
			return updated, err
		}
		updated++
	}

	for _, c := range versionConflicts(scanned) {
		logger.Warn("Installed dependency does not satisfy version constraint", logger.Fields{
			"addon":      c.Dependent,
			"dependency": c.Provider,
			"constraint": c.Constraint,
			"installed":  c.Installed,
		})
	}
	return updated, nil
}

// versionConflict is a DependsOn constraint the installed provider fails.
type versionConflict struct {
	Dependent  string
	Provider   string
	Constraint string
	Installed  string
}

// versionConflicts checks every parsed constraint in scanned, keyed by
// directory, against the provider directory's manifest. Providers that are
// not scanned or carry no comparable version are skipped.
func versionConflicts(scanned map[string]*manifest.Manifest) []versionConflict {
	dirs := make([]string, 0, len(scanned))
	for dir := range scanned {
		dirs = append(dirs, dir)
	}
	sort.Strings(dirs)

	var out []versionConflict
	for _, dir := range dirs {
		for _, dep := range scanned[dir].Dependencies {
			if dep.Constraint == nil {
				continue
			}
			provider, ok := scanned[dep.Dir]
			if !ok {
				continue
			}
			v, ok := provider.ComparableVersion()
			if !ok || dep.Constraint.Check(v) {
				continue
			}
			name := scanned[dir].Title
			if name == "" {
				name = dir
			}
			out = append(out, versionConflict{
				Dependent:  name,
				Provider:   dep.Dir,
				Constraint: dep.Constraint.String(),
				Installed:  v.Original(),
			})
		}
	}
	return out
}

func (r *Resolver) scanDirs(dirs []string, scanned map[string]*manifest.Manifest) ([]string, bool, error) {
	var deps []string
	seen := make(map[string]bool)
	found := false
	for _, dir := range dirs {
		root := filepath.Join(r.addonDir, dir)
		if info, err := os.Stat(root); err != nil || !info.IsDir() {
			continue
		}
		found = true

		m, err := manifest.Parse(root, dir)
		if errors.Is(err, errutils.ErrMetadataMissing) {
			continue
		}
		if err != nil {
			return nil, found, err
		}
		scanned[dir] = m
		for _, d := range m.Dirs() {
			if !seen[d] {
				seen[d] = true
				deps = append(deps, d)
			}
		}
	}
	return deps, found, nil
}
