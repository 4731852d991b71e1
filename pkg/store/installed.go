package store

import (
	"context"
	"database/sql"
	"errors"

	"github.com/glorpus-work/addonctl/pkg/errutils"
	"github.com/glorpus-work/addonctl/pkg/model"
	"github.com/jmoiron/sqlx"
)

type installedRow struct {
	AddonID int64  `db:"addon_id"`
	Version string `db:"version"`
	Date    int64  `db:"date"`
}

func (r installedRow) toModel() model.InstalledAddon {
	return model.InstalledAddon{AddonID: r.AddonID, Version: r.Version, Date: fromMillis(r.Date)}
}

// GetInstalled returns the installed row for id, or nil when it is not installed.
func (s *Store) GetInstalled(ctx context.Context, id int64) (*model.InstalledAddon, error) {
	var row installedRow
	err := s.db.GetContext(ctx, &row,
		`SELECT addon_id, version, date FROM installed_addon WHERE addon_id = ?`, id)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		return nil, errutils.NewStoreReadError("get installed addon", err)
	}
	installed := row.toModel()
	return &installed, nil
}

// ListInstalled returns every installed row ordered by id.
func (s *Store) ListInstalled(ctx context.Context) ([]model.InstalledAddon, error) {
	var rows []installedRow
	if err := s.db.SelectContext(ctx, &rows,
		`SELECT addon_id, version, date FROM installed_addon ORDER BY addon_id`); err != nil {
		return nil, errutils.NewStoreReadError("list installed addons", err)
	}
	out := make([]model.InstalledAddon, 0, len(rows))
	for _, r := range rows {
		out = append(out, r.toModel())
	}
	return out, nil
}

// CountInstalled returns the number of installed add-ons.
func (s *Store) CountInstalled(ctx context.Context) (int, error) {
	var n int
	if err := s.db.GetContext(ctx, &n, `SELECT COUNT(*) FROM installed_addon`); err != nil {
		return 0, errutils.NewStoreReadError("count installed addons", err)
	}
	return n, nil
}

type installedListingRow struct {
	AddonID          int64  `db:"addon_id"`
	Name             string `db:"name"`
	InstalledVersion string `db:"installed_version"`
	InstalledDate    int64  `db:"installed_date"`
	CatalogVersion   string `db:"catalog_version"`
	CatalogDate      int64  `db:"catalog_date"`
}

// ListInstalledListings joins installed rows with their catalog entries,
// ordered by name. Installed ids missing from the catalog are skipped.
func (s *Store) ListInstalledListings(ctx context.Context) ([]model.InstalledListing, error) {
	var rows []installedListingRow
	if err := s.db.SelectContext(ctx, &rows, `
		SELECT i.addon_id, a.name, i.version AS installed_version, i.date AS installed_date,
			a.version AS catalog_version, a.date AS catalog_date
		FROM installed_addon i
		JOIN addon a ON a.id = i.addon_id
		ORDER BY a.name COLLATE NOCASE`); err != nil {
		return nil, errutils.NewStoreReadError("list installed listings", err)
	}
	out := make([]model.InstalledListing, 0, len(rows))
	for _, r := range rows {
		out = append(out, model.InstalledListing{
			AddonID:          r.AddonID,
			Name:             r.Name,
			InstalledVersion: r.InstalledVersion,
			InstalledDate:    fromMillis(r.InstalledDate),
			CatalogVersion:   r.CatalogVersion,
			CatalogDate:      fromMillis(r.CatalogDate),
		})
	}
	return out, nil
}

type staleRow struct {
	AddonID          int64  `db:"addon_id"`
	Name             string `db:"name"`
	InstalledVersion string `db:"installed_version"`
	CatalogVersion   string `db:"catalog_version"`
	CatalogDate      int64  `db:"catalog_date"`
}

// StaleAddons returns installed add-ons whose version differs from the
// catalog or whose installed date precedes the catalog date.
func (s *Store) StaleAddons(ctx context.Context) ([]model.StaleAddon, error) {
	var rows []staleRow
	if err := s.db.SelectContext(ctx, &rows, `
		SELECT i.addon_id, a.name, i.version AS installed_version,
			a.version AS catalog_version, a.date AS catalog_date
		FROM installed_addon i
		JOIN addon a ON a.id = i.addon_id
		WHERE i.version <> a.version OR i.date < a.date
		ORDER BY a.name COLLATE NOCASE`); err != nil {
		return nil, errutils.NewStoreReadError("list stale addons", err)
	}
	out := make([]model.StaleAddon, 0, len(rows))
	for _, r := range rows {
		out = append(out, model.StaleAddon{
			AddonID:          r.AddonID,
			Name:             r.Name,
			InstalledVersion: r.InstalledVersion,
			CatalogVersion:   r.CatalogVersion,
			CatalogDate:      fromMillis(r.CatalogDate),
		})
	}
	return out, nil
}

// OutdatedDetails returns installed ids whose stored detail is absent or was
// fetched for a different catalog version.
func (s *Store) OutdatedDetails(ctx context.Context) ([]int64, error) {
	var ids []int64
	if err := s.db.SelectContext(ctx, &ids, `
		SELECT a.id
		FROM installed_addon i
		JOIN addon a ON a.id = i.addon_id
		LEFT JOIN addon_detail d ON d.id = a.id
		WHERE d.id IS NULL OR d.version <> a.version
		ORDER BY a.id`); err != nil {
		return nil, errutils.NewStoreReadError("list outdated details", err)
	}
	return ids, nil
}

// RecordInstall replaces the dependency set of the add-on and upserts its
// installed row in one transaction.
func (s *Store) RecordInstall(ctx context.Context, installed model.InstalledAddon, deps []string) error {
	return s.withTx(ctx, "record install", func(tx *sqlx.Tx) error {
		if err := replaceDependencies(ctx, tx, installed.AddonID, deps); err != nil {
			return err
		}
		return upsert(ctx, tx, "upsert installed addon", `
			INSERT INTO installed_addon (addon_id, version, date) VALUES (?, ?, ?)
			ON CONFLICT(addon_id) DO UPDATE SET version = excluded.version, date = excluded.date`,
			installed.AddonID, installed.Version, toMillis(installed.Date))
	})
}

// ReplaceDependencies replaces the dependency set of one add-on.
func (s *Store) ReplaceDependencies(ctx context.Context, addonID int64, deps []string) error {
	return s.withTx(ctx, "replace dependencies", func(tx *sqlx.Tx) error {
		return replaceDependencies(ctx, tx, addonID, deps)
	})
}

func replaceDependencies(ctx context.Context, tx *sqlx.Tx, addonID int64, deps []string) error {
	if _, err := tx.ExecContext(ctx, `DELETE FROM addon_dependency WHERE addon_id = ?`, addonID); err != nil {
		return errutils.NewStoreWriteError("delete dependencies", err)
	}
	for _, dir := range deps {
		if err := upsert(ctx, tx, "insert dependency",
			`INSERT INTO addon_dependency (addon_id, dependency_dir) VALUES (?, ?) ON CONFLICT DO NOTHING`,
			addonID, dir); err != nil {
			return err
		}
	}
	return nil
}

// Dependencies returns the dependency directories recorded for one add-on.
func (s *Store) Dependencies(ctx context.Context, addonID int64) ([]string, error) {
	var deps []string
	if err := s.db.SelectContext(ctx, &deps,
		`SELECT dependency_dir FROM addon_dependency WHERE addon_id = ? ORDER BY dependency_dir`, addonID); err != nil {
		return nil, errutils.NewStoreReadError("list dependencies", err)
	}
	return deps, nil
}

// RemoveInstalled deletes the installed row and the dependency set of id.
// It returns false when the add-on was not installed.
func (s *Store) RemoveInstalled(ctx context.Context, id int64) (bool, error) {
	removed := false
	err := s.withTx(ctx, "remove installed", func(tx *sqlx.Tx) error {
		res, err := tx.ExecContext(ctx, `DELETE FROM installed_addon WHERE addon_id = ?`, id)
		if err != nil {
			return errutils.NewStoreWriteError("delete installed addon", err)
		}
		n, err := res.RowsAffected()
		if err != nil {
			return errutils.NewStoreWriteError("delete installed addon", err)
		}
		removed = n > 0
		if _, err := tx.ExecContext(ctx, `DELETE FROM addon_dependency WHERE addon_id = ?`, id); err != nil {
			return errutils.NewStoreWriteError("delete dependencies", err)
		}
		return nil
	})
	return removed, err
}
