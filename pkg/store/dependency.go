package store

import (
	"context"

	"github.com/glorpus-work/addonctl/pkg/errutils"
	"github.com/glorpus-work/addonctl/pkg/model"
	"github.com/jmoiron/sqlx"
)

// MissingDependencyRow is one (directory, requiring add-on) pair of the missing set.
type MissingDependencyRow struct {
	Dir       string `db:"dir"`
	AddonName string `db:"addon_name"`
}

// MissingDependencies returns dependency directories of installed add-ons that
// no installed add-on provides and no resolving decision covers, paired with
// the names of the add-ons requiring them, ordered by directory then name.
func (s *Store) MissingDependencies(ctx context.Context) ([]MissingDependencyRow, error) {
	var rows []MissingDependencyRow
	if err := s.db.SelectContext(ctx, &rows, `
		SELECT DISTINCT dep.dependency_dir AS dir, a.name AS addon_name
		FROM installed_addon i
		JOIN addon_dependency dep ON dep.addon_id = i.addon_id
		JOIN addon a ON a.id = i.addon_id
		WHERE dep.dependency_dir NOT IN (
			SELECT d.dir FROM installed_addon i2 JOIN addon_dir d ON d.addon_id = i2.addon_id
		)
		AND dep.dependency_dir NOT IN (
			SELECT m.addon_dir FROM manual_dependency m
			WHERE m."ignore" = 1 OR m.satisfied_by IS NOT NULL
		)
		ORDER BY dep.dependency_dir, a.name`); err != nil {
		return nil, errutils.NewStoreReadError("list missing dependencies", err)
	}
	return rows, nil
}

// CandidateRow is a catalog add-on providing a directory.
type CandidateRow struct {
	Dir     string `db:"dir"`
	AddonID int64  `db:"addon_id"`
	Name    string `db:"name"`
}

// Candidates returns, for each of dirs, the catalog add-ons whose directory
// set contains it, ordered by directory then add-on name.
func (s *Store) Candidates(ctx context.Context, dirs []string) ([]CandidateRow, error) {
	var out []CandidateRow
	for start := 0; start < len(dirs); start += maxInParams {
		end := min(start+maxInParams, len(dirs))
		query, args, err := sqlx.In(`
			SELECT d.dir, a.id AS addon_id, a.name
			FROM addon_dir d
			JOIN addon a ON a.id = d.addon_id
			WHERE d.dir IN (?)
			ORDER BY d.dir, a.name, a.id`, dirs[start:end])
		if err != nil {
			return nil, errutils.NewStoreReadError("list candidates", err)
		}
		var rows []CandidateRow
		if err := s.db.SelectContext(ctx, &rows, s.db.Rebind(query), args...); err != nil {
			return nil, errutils.NewStoreReadError("list candidates", err)
		}
		out = append(out, rows...)
	}
	return out, nil
}

// InstalledDirs returns every (add-on id, directory) pair of installed add-ons.
func (s *Store) InstalledDirs(ctx context.Context) (map[int64][]string, error) {
	var rows []struct {
		AddonID int64  `db:"addon_id"`
		Dir     string `db:"dir"`
	}
	if err := s.db.SelectContext(ctx, &rows, `
		SELECT d.addon_id, d.dir
		FROM installed_addon i
		JOIN addon_dir d ON d.addon_id = i.addon_id
		ORDER BY d.addon_id, d.dir`); err != nil {
		return nil, errutils.NewStoreReadError("list installed dirs", err)
	}
	out := make(map[int64][]string)
	for _, r := range rows {
		out[r.AddonID] = append(out[r.AddonID], r.Dir)
	}
	return out, nil
}

type manualDependencyRow struct {
	AddonDir    string `db:"addon_dir"`
	SatisfiedBy *int64 `db:"satisfied_by"`
	Ignore      bool   `db:"ignore"`
}

// ManualDependencies returns every user decision ordered by directory.
func (s *Store) ManualDependencies(ctx context.Context) ([]model.ManualDependency, error) {
	var rows []manualDependencyRow
	if err := s.db.SelectContext(ctx, &rows,
		`SELECT addon_dir, satisfied_by, "ignore" FROM manual_dependency ORDER BY addon_dir`); err != nil {
		return nil, errutils.NewStoreReadError("list manual dependencies", err)
	}
	out := make([]model.ManualDependency, 0, len(rows))
	for _, r := range rows {
		out = append(out, model.ManualDependency(r))
	}
	return out, nil
}

// UpsertManualDependency stores a user decision keyed by directory.
func (s *Store) UpsertManualDependency(ctx context.Context, m model.ManualDependency) error {
	return upsert(ctx, s.db, "upsert manual dependency", `
		INSERT INTO manual_dependency (addon_dir, satisfied_by, "ignore") VALUES (?, ?, ?)
		ON CONFLICT(addon_dir) DO UPDATE SET
			satisfied_by = excluded.satisfied_by, "ignore" = excluded."ignore"`,
		m.AddonDir, m.SatisfiedBy, m.Ignore)
}

// ReplaceState replaces installed_addon and manual_dependency in one
// transaction. A nil or empty slice leaves its table untouched.
func (s *Store) ReplaceState(ctx context.Context, installed []model.InstalledAddon, overrides []model.ManualDependency) error {
	return s.withTx(ctx, "replace state", func(tx *sqlx.Tx) error {
		if len(installed) > 0 {
			if _, err := tx.ExecContext(ctx, `DELETE FROM installed_addon`); err != nil {
				return errutils.NewStoreWriteError("clear installed addons", err)
			}
			for _, i := range installed {
				if err := upsert(ctx, tx, "insert installed addon", `
					INSERT INTO installed_addon (addon_id, version, date) VALUES (?, ?, ?)
					ON CONFLICT(addon_id) DO UPDATE SET version = excluded.version, date = excluded.date`,
					i.AddonID, i.Version, toMillis(i.Date)); err != nil {
					return err
				}
			}
		}
		if len(overrides) > 0 {
			if _, err := tx.ExecContext(ctx, `DELETE FROM manual_dependency`); err != nil {
				return errutils.NewStoreWriteError("clear manual dependencies", err)
			}
			for _, m := range overrides {
				if err := upsert(ctx, tx, "insert manual dependency", `
					INSERT INTO manual_dependency (addon_dir, satisfied_by, "ignore") VALUES (?, ?, ?)
					ON CONFLICT(addon_dir) DO UPDATE SET
						satisfied_by = excluded.satisfied_by, "ignore" = excluded."ignore"`,
					m.AddonDir, m.SatisfiedBy, m.Ignore); err != nil {
					return err
				}
			}
		}
		return nil
	})
}
