// Package model holds the records shared between the store, the catalog sync
// engine, the installer and the resolver.
package model

import "time"

// UnknownVersion is recorded for installs restored from a backup, which does
// not carry versions. It never equals a catalog version, so restored add-ons
// show up as stale after the next sync.
const UnknownVersion = "unknown"

// Addon is the local mirror of one catalog entry.
type Addon struct {
	ID              int64     `json:"id"`
	CategoryID      int64     `json:"category_id"`
	Version         string    `json:"version"`
	Date            time.Time `json:"date"`
	Name            string    `json:"name"`
	AuthorName      string    `json:"author_name"`
	FileInfoURL     string    `json:"file_info_url"`
	DownloadURL     string    `json:"download_url,omitempty"`
	MD5             string    `json:"md5,omitempty"`
	FileName        string    `json:"file_name,omitempty"`
	DownloadTotal   *int64    `json:"download_total,omitempty"`
	DownloadMonthly *int64    `json:"download_monthly,omitempty"`
	FavoriteTotal   *int64    `json:"favorite_total,omitempty"`
}

// AddonListing is one add-on as delivered by the catalog list feed, together
// with the sets that are replaced wholesale on every sync.
type AddonListing struct {
	Addon
	Dirs          []string
	Compatibility []GameCompatibility
	Images        []AddonImage
}

// AddonDetail carries the long-form fields fetched per add-on on demand.
// Version is the catalog version the detail was fetched for.
type AddonDetail struct {
	ID          int64  `json:"id"`
	Description string `json:"description"`
	ChangeLog   string `json:"change_log"`
	Version     string `json:"version"`
}

// DownloadInfo is the part of a detail record that updates the Addon row.
type DownloadInfo struct {
	DownloadURL string
	MD5         string
	FileName    string
}

// GameCompatibility names a game version an add-on declares support for.
type GameCompatibility struct {
	Version string `json:"version"`
	Name    string `json:"name"`
}

// AddonImage pairs a screenshot with its thumbnail.
type AddonImage struct {
	Thumbnail string `json:"thumbnail"`
	Image     string `json:"image"`
}

// Category is a catalog category with its parent links.
type Category struct {
	ID        int64   `json:"id"`
	Title     string  `json:"title"`
	Icon      string  `json:"icon"`
	FileCount int64   `json:"file_count"`
	ParentIDs []int64 `json:"parent_ids,omitempty"`
}

// CategoryNode is a top-level category with its direct children.
type CategoryNode struct {
	Category
	Children []Category `json:"children"`
}

// AddonView is everything the presentation layer shows for one add-on.
type AddonView struct {
	Addon
	Detail           *AddonDetail        `json:"detail,omitempty"`
	Dirs             []string            `json:"dirs"`
	Compatibility    []GameCompatibility `json:"compatibility,omitempty"`
	Images           []AddonImage        `json:"images,omitempty"`
	Installed        bool                `json:"installed"`
	InstalledVersion string              `json:"installed_version,omitempty"`
	Upgradable       bool                `json:"upgradable"`
}
