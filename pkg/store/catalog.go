package store

import (
	"context"
	"database/sql"
	"errors"
	"sort"
	"strings"

	"github.com/glorpus-work/addonctl/pkg/errutils"
	"github.com/glorpus-work/addonctl/pkg/model"
	"github.com/jmoiron/sqlx"
)

const addonColumns = `id, category_id, version, date, name, author_name, file_info_url,
	download_total, download_monthly, favorite_total, download_url, md5, file_name`

type addonRow struct {
	ID              int64  `db:"id"`
	CategoryID      int64  `db:"category_id"`
	Version         string `db:"version"`
	Date            int64  `db:"date"`
	Name            string `db:"name"`
	AuthorName      string `db:"author_name"`
	FileInfoURL     string `db:"file_info_url"`
	DownloadTotal   *int64 `db:"download_total"`
	DownloadMonthly *int64 `db:"download_monthly"`
	FavoriteTotal   *int64 `db:"favorite_total"`
	DownloadURL     string `db:"download_url"`
	MD5             string `db:"md5"`
	FileName        string `db:"file_name"`
}

func newAddonRow(a model.Addon) addonRow {
	return addonRow{
		ID:              a.ID,
		CategoryID:      a.CategoryID,
		Version:         a.Version,
		Date:            toMillis(a.Date),
		Name:            a.Name,
		AuthorName:      a.AuthorName,
		FileInfoURL:     a.FileInfoURL,
		DownloadTotal:   a.DownloadTotal,
		DownloadMonthly: a.DownloadMonthly,
		FavoriteTotal:   a.FavoriteTotal,
		DownloadURL:     a.DownloadURL,
		MD5:             a.MD5,
		FileName:        a.FileName,
	}
}

func (r addonRow) toModel() model.Addon {
	return model.Addon{
		ID:              r.ID,
		CategoryID:      r.CategoryID,
		Version:         r.Version,
		Date:            fromMillis(r.Date),
		Name:            r.Name,
		AuthorName:      r.AuthorName,
		FileInfoURL:     r.FileInfoURL,
		DownloadTotal:   r.DownloadTotal,
		DownloadMonthly: r.DownloadMonthly,
		FavoriteTotal:   r.FavoriteTotal,
		DownloadURL:     r.DownloadURL,
		MD5:             r.MD5,
		FileName:        r.FileName,
	}
}

// Listing fields only: download_url, md5 and file_name belong to the detail refresh.
const upsertAddonQuery = `
	INSERT INTO addon (id, category_id, version, date, name, author_name, file_info_url,
		download_total, download_monthly, favorite_total)
	VALUES (:id, :category_id, :version, :date, :name, :author_name, :file_info_url,
		:download_total, :download_monthly, :favorite_total)
	ON CONFLICT(id) DO UPDATE SET
		category_id = excluded.category_id,
		version = excluded.version,
		date = excluded.date,
		name = excluded.name,
		author_name = excluded.author_name,
		file_info_url = excluded.file_info_url,
		download_total = excluded.download_total,
		download_monthly = excluded.download_monthly,
		favorite_total = excluded.favorite_total`

// SyncCategories upserts categories and replaces the parent links of the
// synced ids, all in one transaction.
func (s *Store) SyncCategories(ctx context.Context, categories []model.Category) error {
	ids := make([]int64, 0, len(categories))
	for _, c := range categories {
		ids = append(ids, c.ID)
	}
	return s.withTx(ctx, "sync categories", func(tx *sqlx.Tx) error {
		if err := deleteByIDs(ctx, tx, "category_parent", "id", ids); err != nil {
			return err
		}
		for _, c := range categories {
			if err := upsert(ctx, tx, "upsert category", `
				INSERT INTO category (id, title, icon, file_count) VALUES (?, ?, ?, ?)
				ON CONFLICT(id) DO UPDATE SET
					title = excluded.title, icon = excluded.icon, file_count = excluded.file_count`,
				c.ID, c.Title, c.Icon, c.FileCount); err != nil {
				return err
			}
			for _, parent := range c.ParentIDs {
				if err := upsert(ctx, tx, "insert category parent",
					`INSERT INTO category_parent (id, parent_id) VALUES (?, ?) ON CONFLICT DO NOTHING`,
					c.ID, parent); err != nil {
					return err
				}
			}
		}
		return nil
	})
}

// SyncAddons upserts every listed add-on and replaces the directory,
// compatibility and image sets of exactly the listed ids, all in one
// transaction. It returns the number of directory rows written.
func (s *Store) SyncAddons(ctx context.Context, listings []model.AddonListing) (int, error) {
	ids := make([]int64, 0, len(listings))
	for _, l := range listings {
		ids = append(ids, l.ID)
	}

	dirCount := 0
	err := s.withTx(ctx, "sync addons", func(tx *sqlx.Tx) error {
		for _, l := range listings {
			if _, err := tx.NamedExecContext(ctx, upsertAddonQuery, newAddonRow(l.Addon)); err != nil {
				return errutils.NewStoreWriteError("upsert addon", err)
			}
		}

		for _, table := range []string{"addon_dir", "game_compatibility", "addon_image"} {
			if err := deleteByAddonIDs(ctx, tx, table, ids); err != nil {
				return err
			}
		}

		for _, l := range listings {
			for _, dir := range l.Dirs {
				if err := upsert(ctx, tx, "insert addon dir",
					`INSERT INTO addon_dir (addon_id, dir) VALUES (?, ?) ON CONFLICT DO NOTHING`,
					l.ID, dir); err != nil {
					return err
				}
				dirCount++
			}
			for seq, c := range l.Compatibility {
				if err := upsert(ctx, tx, "insert game compatibility",
					`INSERT INTO game_compatibility (addon_id, seq, version, name) VALUES (?, ?, ?, ?)`,
					l.ID, seq, c.Version, c.Name); err != nil {
					return err
				}
			}
			for seq, img := range l.Images {
				if err := upsert(ctx, tx, "insert addon image",
					`INSERT INTO addon_image (addon_id, seq, thumbnail, image) VALUES (?, ?, ?, ?)`,
					l.ID, seq, img.Thumbnail, img.Image); err != nil {
					return err
				}
			}
		}
		return nil
	})
	return dirCount, err
}

// GetAddon returns the catalog entry for id, or ErrAddonNotFound.
func (s *Store) GetAddon(ctx context.Context, id int64) (*model.Addon, error) {
	var row addonRow
	err := s.db.GetContext(ctx, &row, `SELECT `+addonColumns+` FROM addon WHERE id = ?`, id)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, errutils.ErrAddonNotFoundWithID(id)
	}
	if err != nil {
		return nil, errutils.NewStoreReadError("get addon", err)
	}
	a := row.toModel()
	return &a, nil
}

// GetAddonDetail returns the stored detail for id, or nil when none was fetched yet.
func (s *Store) GetAddonDetail(ctx context.Context, id int64) (*model.AddonDetail, error) {
	var d model.AddonDetail
	err := s.db.QueryRowxContext(ctx,
		`SELECT id, description, change_log, version FROM addon_detail WHERE id = ?`, id).
		Scan(&d.ID, &d.Description, &d.ChangeLog, &d.Version)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		return nil, errutils.NewStoreReadError("get addon detail", err)
	}
	return &d, nil
}

// UpdateAddonDetail records a freshly fetched detail: the download fields on
// the add-on row and the long-form fields in addon_detail.
func (s *Store) UpdateAddonDetail(ctx context.Context, info model.DownloadInfo, detail model.AddonDetail) error {
	return s.withTx(ctx, "update addon detail", func(tx *sqlx.Tx) error {
		if _, err := tx.ExecContext(ctx,
			`UPDATE addon SET download_url = ?, md5 = ?, file_name = ? WHERE id = ?`,
			info.DownloadURL, info.MD5, info.FileName, detail.ID); err != nil {
			return errutils.NewStoreWriteError("update addon download", err)
		}
		return upsert(ctx, tx, "upsert addon detail", `
			INSERT INTO addon_detail (id, description, change_log, version) VALUES (?, ?, ?, ?)
			ON CONFLICT(id) DO UPDATE SET
				description = excluded.description,
				change_log = excluded.change_log,
				version = excluded.version`,
			detail.ID, detail.Description, detail.ChangeLog, detail.Version)
	})
}

// AddonDirs returns the directory set of id in name order.
func (s *Store) AddonDirs(ctx context.Context, id int64) ([]string, error) {
	var dirs []string
	if err := s.db.SelectContext(ctx, &dirs,
		`SELECT dir FROM addon_dir WHERE addon_id = ? ORDER BY dir`, id); err != nil {
		return nil, errutils.NewStoreReadError("list addon dirs", err)
	}
	return dirs, nil
}

// GameCompatibility returns the compatibility entries of id in feed order.
func (s *Store) GameCompatibility(ctx context.Context, id int64) ([]model.GameCompatibility, error) {
	var out []model.GameCompatibility
	if err := s.db.SelectContext(ctx, &out,
		`SELECT version, name FROM game_compatibility WHERE addon_id = ? ORDER BY seq`, id); err != nil {
		return nil, errutils.NewStoreReadError("list game compatibility", err)
	}
	return out, nil
}

// AddonImages returns the image pairs of id in feed order.
func (s *Store) AddonImages(ctx context.Context, id int64) ([]model.AddonImage, error) {
	var out []model.AddonImage
	if err := s.db.SelectContext(ctx, &out,
		`SELECT thumbnail, image FROM addon_image WHERE addon_id = ? ORDER BY seq`, id); err != nil {
		return nil, errutils.NewStoreReadError("list addon images", err)
	}
	return out, nil
}

// SearchAddons returns add-ons whose name contains term, newest first.
func (s *Store) SearchAddons(ctx context.Context, term string, limit int) ([]model.Addon, error) {
	pattern := "%" + escapeLike(term) + "%"
	return s.selectAddons(ctx, "search addons",
		`SELECT `+addonColumns+` FROM addon WHERE name LIKE ? ESCAPE '\' ORDER BY date DESC LIMIT ?`,
		pattern, limit)
}

// AddonsByCategory returns the newest add-ons of a category and of its
// direct subcategories.
func (s *Store) AddonsByCategory(ctx context.Context, categoryID int64, limit int) ([]model.Addon, error) {
	return s.selectAddons(ctx, "list addons by category",
		`SELECT `+addonColumns+` FROM addon
		WHERE category_id = ? OR category_id IN (SELECT id FROM category_parent WHERE parent_id = ?)
		ORDER BY date DESC LIMIT ?`,
		categoryID, categoryID, limit)
}

func (s *Store) selectAddons(ctx context.Context, op, query string, args ...interface{}) ([]model.Addon, error) {
	var rows []addonRow
	if err := s.db.SelectContext(ctx, &rows, query, args...); err != nil {
		return nil, errutils.NewStoreReadError(op, err)
	}
	out := make([]model.Addon, 0, len(rows))
	for _, r := range rows {
		out = append(out, r.toModel())
	}
	return out, nil
}

type categoryRow struct {
	ID        int64  `db:"id"`
	Title     string `db:"title"`
	Icon      string `db:"icon"`
	FileCount int64  `db:"file_count"`
}

type categoryParentRow struct {
	ID       int64 `db:"id"`
	ParentID int64 `db:"parent_id"`
}

// Categories returns all categories with their parent ids, ordered by title.
func (s *Store) Categories(ctx context.Context) ([]model.Category, error) {
	var rows []categoryRow
	if err := s.db.SelectContext(ctx, &rows,
		`SELECT id, title, icon, file_count FROM category ORDER BY title`); err != nil {
		return nil, errutils.NewStoreReadError("list categories", err)
	}
	var links []categoryParentRow
	if err := s.db.SelectContext(ctx, &links,
		`SELECT id, parent_id FROM category_parent ORDER BY id, parent_id`); err != nil {
		return nil, errutils.NewStoreReadError("list category parents", err)
	}

	parents := make(map[int64][]int64)
	for _, l := range links {
		parents[l.ID] = append(parents[l.ID], l.ParentID)
	}

	out := make([]model.Category, 0, len(rows))
	for _, r := range rows {
		out = append(out, model.Category{
			ID:        r.ID,
			Title:     r.Title,
			Icon:      r.Icon,
			FileCount: r.FileCount,
			ParentIDs: parents[r.ID],
		})
	}
	return out, nil
}

// CategoryTree groups categories under their parents. Categories without a
// parent are the roots; the catalog nests at most one level.
func (s *Store) CategoryTree(ctx context.Context) ([]model.CategoryNode, error) {
	categories, err := s.Categories(ctx)
	if err != nil {
		return nil, err
	}

	children := make(map[int64][]model.Category)
	var roots []model.CategoryNode
	for _, c := range categories {
		if len(c.ParentIDs) == 0 {
			roots = append(roots, model.CategoryNode{Category: c})
			continue
		}
		for _, p := range c.ParentIDs {
			children[p] = append(children[p], c)
		}
	}
	for i := range roots {
		roots[i].Children = children[roots[i].ID]
	}
	sort.SliceStable(roots, func(i, j int) bool { return roots[i].Title < roots[j].Title })
	return roots, nil
}

func escapeLike(s string) string {
	return strings.NewReplacer(`\`, `\\`, `%`, `\%`, `_`, `\_`).Replace(s)
}
