package model

import "time"

// InstalledAddon records that an add-on is present on disk at a given version.
type InstalledAddon struct {
	AddonID int64     `json:"addon_id"`
	Version string    `json:"version"`
	Date    time.Time `json:"date"`
}

// InstalledListing joins an installed row with its catalog entry.
type InstalledListing struct {
	AddonID          int64     `json:"addon_id"`
	Name             string    `json:"name"`
	InstalledVersion string    `json:"installed_version"`
	InstalledDate    time.Time `json:"installed_date"`
	CatalogVersion   string    `json:"catalog_version"`
	CatalogDate      time.Time `json:"catalog_date"`
}

// Upgradable reports whether the catalog has something newer than what is installed.
func (l InstalledListing) Upgradable() bool {
	return IsStale(l.InstalledVersion, l.InstalledDate, l.CatalogVersion, l.CatalogDate)
}

// IsStale is the staleness rule: the version token differs or the installed
// copy predates the catalog entry.
func IsStale(installedVersion string, installedDate time.Time, catalogVersion string, catalogDate time.Time) bool {
	return installedVersion != catalogVersion || installedDate.Before(catalogDate)
}

// StaleAddon is an installed add-on with a newer catalog entry.
type StaleAddon struct {
	AddonID          int64     `json:"addon_id"`
	Name             string    `json:"name"`
	InstalledVersion string    `json:"installed_version"`
	CatalogVersion   string    `json:"catalog_version"`
	CatalogDate      time.Time `json:"catalog_date"`
}

// InstallStatus is the successful result of an install request.
type InstallStatus string

const (
	StatusInstalled       InstallStatus = "installed"
	StatusUpdated         InstallStatus = "updated"
	StatusAlreadyUpToDate InstallStatus = "already-up-to-date"
)

// InstallOutcome describes what an install did.
type InstallOutcome struct {
	AddonID      int64         `json:"addon_id"`
	Name         string        `json:"name"`
	Version      string        `json:"version"`
	Status       InstallStatus `json:"status"`
	RootDir      string        `json:"root_dir,omitempty"`
	Dependencies []string      `json:"dependencies,omitempty"`
}

// UpgradeResult attributes the outcome of one add-on in a bulk upgrade.
type UpgradeResult struct {
	AddonID int64
	Outcome *InstallOutcome
	Err     error
}

// SyncReport summarizes a catalog sync pass.
type SyncReport struct {
	Categories      int          `json:"categories"`
	Addons          int          `json:"addons"`
	Directories     int          `json:"directories"`
	Stale           []StaleAddon `json:"stale"`
	OutdatedDetails []int64      `json:"outdated_details"`
}
