// Package syncer mirrors the remote catalog into the local store.
package syncer

import (
	"context"

	"github.com/glorpus-work/addonctl/internal/logger"
	"github.com/glorpus-work/addonctl/pkg/catalog"
	"github.com/glorpus-work/addonctl/pkg/errutils"
	"github.com/glorpus-work/addonctl/pkg/model"
	"github.com/glorpus-work/addonctl/pkg/store"
)

// Syncer pulls the category and add-on feeds into the store.
type Syncer struct {
	store  *store.Store
	client catalog.Client
}

// New creates a Syncer.
func New(st *store.Store, client catalog.Client) *Syncer {
	return &Syncer{store: st, client: client}
}

// Sync fetches one snapshot of the category and add-on feeds, then writes it:
// categories in one transaction, add-ons with their directory, compatibility
// and image sets in another. It never installs anything; add-ons with a newer
// catalog entry are reported as stale.
//
// A failed write leaves earlier transactions committed; running Sync again
// repairs the store.
func (s *Syncer) Sync(ctx context.Context) (*model.SyncReport, error) {
	feedCategories, err := s.client.FetchCategories(ctx)
	if err != nil {
		return nil, errutils.Wrap(err, "fetch categories")
	}
	items, err := s.client.FetchAddonList(ctx)
	if err != nil {
		return nil, errutils.Wrap(err, "fetch addon list")
	}

	categories := make([]model.Category, 0, len(feedCategories))
	for _, c := range feedCategories {
		if !c.ID.Valid {
			logger.Debug("Skipping category without id", logger.Fields{"title": c.Title})
			continue
		}
		categories = append(categories, c.Model())
	}

	listings := make([]model.AddonListing, 0, len(items))
	for _, item := range items {
		if !item.ID.Valid {
			logger.Debug("Skipping addon without id", logger.Fields{"name": item.Name})
			continue
		}
		listings = append(listings, item.Listing())
	}

	if err := s.store.SyncCategories(ctx, categories); err != nil {
		return nil, err
	}
	dirs, err := s.store.SyncAddons(ctx, listings)
	if err != nil {
		return nil, err
	}

	stale, err := s.store.StaleAddons(ctx)
	if err != nil {
		return nil, err
	}
	outdated, err := s.store.OutdatedDetails(ctx)
	if err != nil {
		return nil, err
	}

	logger.Debug("Catalog synced", logger.Fields{
		"categories": len(categories),
		"addons":     len(listings),
		"dirs":       dirs,
		"stale":      len(stale),
	})
	return &model.SyncReport{
		Categories:      len(categories),
		Addons:          len(listings),
		Directories:     dirs,
		Stale:           stale,
		OutdatedDetails: outdated,
	}, nil
}

// RefreshDetails fetches and stores the detail records of ids. Each record
// is stamped with the add-on's current catalog version. It stops at the
// first failure and returns how many records were stored.
func (s *Syncer) RefreshDetails(ctx context.Context, ids []int64) (int, error) {
	n := 0
	for _, id := range ids {
		addon, err := s.store.GetAddon(ctx, id)
		if err != nil {
			return n, err
		}
		detail, err := s.client.FetchAddonDetail(ctx, id)
		if err != nil {
			return n, err
		}
		if err := s.store.UpdateAddonDetail(ctx, detail.DownloadInfo(), detail.AddonDetail(id, addon.Version)); err != nil {
			return n, err
		}
		n++
	}
	return n, nil
}
