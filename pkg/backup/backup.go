// Package backup exports and restores the user's installation state: which
// add-ons are installed and the decisions taken about missing dependencies.
package backup

import (
	"context"
	"encoding/json"
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/glorpus-work/addonctl/internal/logger"
	"github.com/glorpus-work/addonctl/pkg/catalog"
	"github.com/glorpus-work/addonctl/pkg/errutils"
	"github.com/glorpus-work/addonctl/pkg/fsutil"
	"github.com/glorpus-work/addonctl/pkg/model"
	"github.com/glorpus-work/addonctl/pkg/store"
)

// InstalledEntry is an installed add-on as kept in a backup. Versions are
// not kept.
type InstalledEntry struct {
	AddonID int64 `json:"addon_id"`
	Date    Date  `json:"date"`
}

// Date is the install date of a backup entry. It is written as a string of
// epoch milliseconds, the catalog's own date form. Reading also accepts a
// JSON number and RFC 3339 strings.
type Date struct {
	time.Time
}

var (
	_ json.Marshaler   = Date{}
	_ json.Unmarshaler = (*Date)(nil)
)

// MarshalJSON writes the date as a millisecond string.
func (d Date) MarshalJSON() ([]byte, error) {
	return json.Marshal(strconv.FormatInt(d.UnixMilli(), 10))
}

// UnmarshalJSON reads millisecond epochs and RFC 3339 dates.
func (d *Date) UnmarshalJSON(data []byte) error {
	var s string
	if err := json.Unmarshal(data, &s); err == nil {
		if t, err := time.Parse(time.RFC3339, s); err == nil {
			d.Time = t.UTC()
			return nil
		}
	}
	var ts catalog.Timestamp
	if err := ts.UnmarshalJSON(data); err != nil {
		return err
	}
	d.Time = ts.Time
	return nil
}

// Snapshot is the backup document.
type Snapshot struct {
	InstalledAddons    []InstalledEntry         `json:"installed_addons"`
	ManualDependencies []model.ManualDependency `json:"manual_dependencies"`
}

// Manager reads and writes snapshots of a store.
type Manager struct {
	store *store.Store
}

// New creates a Manager.
func New(st *store.Store) *Manager {
	return &Manager{store: st}
}

// Backup captures the installed add-ons and every dependency decision.
func (m *Manager) Backup(ctx context.Context) (*Snapshot, error) {
	installed, err := m.store.ListInstalled(ctx)
	if err != nil {
		return nil, err
	}
	decisions, err := m.store.ManualDependencies(ctx)
	if err != nil {
		return nil, err
	}

	snap := &Snapshot{
		InstalledAddons:    make([]InstalledEntry, 0, len(installed)),
		ManualDependencies: decisions,
	}
	for _, i := range installed {
		snap.InstalledAddons = append(snap.InstalledAddons, InstalledEntry{AddonID: i.AddonID, Date: Date{Time: i.Date}})
	}
	return snap, nil
}

// Restore replaces the installed add-ons and the dependency decisions with
// the snapshot's in one transaction. Restored add-ons get
// model.UnknownVersion, so the next sync reports them as stale. An empty
// section leaves the corresponding state untouched.
func (m *Manager) Restore(ctx context.Context, snap *Snapshot) error {
	if snap == nil {
		return nil
	}
	installed := make([]model.InstalledAddon, 0, len(snap.InstalledAddons))
	for _, e := range snap.InstalledAddons {
		installed = append(installed, model.InstalledAddon{
			AddonID: e.AddonID,
			Version: model.UnknownVersion,
			Date:    e.Date.Time,
		})
	}

	logger.Debug("Restoring backup", logger.Fields{
		"installed": len(installed),
		"decisions": len(snap.ManualDependencies),
	})
	return m.store.ReplaceState(ctx, installed, snap.ManualDependencies)
}

// WriteFile stores snap as indented JSON at path.
func WriteFile(path string, snap *Snapshot) error {
	data, err := json.MarshalIndent(snap, "", "  ")
	if err != nil {
		return fmt.Errorf("encode backup: %w", err)
	}
	data = append(data, '\n')
	if err := fsutil.WriteFileAtomic(path, data, fsutil.FileModeDefault); err != nil {
		return fmt.Errorf("write backup: %w", err)
	}
	return nil
}

// ReadFile loads a snapshot written by WriteFile.
func ReadFile(path string) (*Snapshot, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("read backup: %w", err)
	}
	var snap Snapshot
	if err := json.Unmarshal(data, &snap); err != nil {
		return nil, fmt.Errorf("decode backup %s: %w", path, err)
	}
	return &snap, nil
}

// ReadMinion reads the add-on ids of a Minion backup file, a single
// comma-separated list. Blank entries are skipped.
func ReadMinion(path string) ([]int64, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("read minion backup: %w", err)
	}
	return ParseMinion(string(data))
}

// ParseMinion parses the content of a Minion backup file.
func ParseMinion(content string) ([]int64, error) {
	var ids []int64
	seen := make(map[int64]bool)
	for _, field := range strings.Split(content, ",") {
		field = strings.TrimSpace(field)
		if field == "" {
			continue
		}
		id, err := strconv.ParseInt(field, 10, 64)
		if err != nil || id <= 0 {
			return nil, errutils.ErrInvalidAddonIDWithValue(field)
		}
		if !seen[id] {
			seen[id] = true
			ids = append(ids, id)
		}
	}
	return ids, nil
}
