package catalog

import (
	"bytes"
	"encoding/json"
	"fmt"
	"strconv"
	"strings"
	"time"

	"github.com/glorpus-work/addonctl/pkg/model"
)

// Timestamp decodes the feeds' millisecond epoch dates. Both JSON numbers and
// numeric strings are accepted.
type Timestamp struct {
	time.Time
}

var (
	_ json.Unmarshaler = (*Timestamp)(nil)
	_ json.Unmarshaler = (*FlexInt)(nil)
)

// UnmarshalJSON reads a millisecond epoch. Empty strings and null give the
// zero time.
func (t *Timestamp) UnmarshalJSON(data []byte) error {
	raw := strings.Trim(string(bytes.TrimSpace(data)), `"`)
	if raw == "" || raw == "null" {
		t.Time = time.Time{}
		return nil
	}
	ms, err := strconv.ParseInt(raw, 10, 64)
	if err != nil {
		f, ferr := strconv.ParseFloat(raw, 64)
		if ferr != nil {
			return fmt.Errorf("invalid timestamp %q: %w", raw, err)
		}
		ms = int64(f)
	}
	t.Time = time.UnixMilli(ms).UTC()
	return nil
}

// FlexInt decodes integers the feeds send as strings. Empty strings and null
// leave Valid false.
type FlexInt struct {
	Value int64
	Valid bool
}

// UnmarshalJSON reads an integer given as a JSON number or string.
func (f *FlexInt) UnmarshalJSON(data []byte) error {
	raw := strings.Trim(string(bytes.TrimSpace(data)), `"`)
	if raw == "" || raw == "null" {
		*f = FlexInt{}
		return nil
	}
	v, err := strconv.ParseInt(raw, 10, 64)
	if err != nil {
		return fmt.Errorf("invalid integer %q: %w", raw, err)
	}
	*f = FlexInt{Value: v, Valid: true}
	return nil
}

// Ptr returns the value as an optional int64.
func (f FlexInt) Ptr() *int64 {
	if !f.Valid {
		return nil
	}
	v := f.Value
	return &v
}

// Compatibility is one entry of an add-on's UICompatibility list.
type Compatibility struct {
	Version string `json:"version"`
	Name    string `json:"name"`
}

// Item is one entry of the add-on list feed.
type Item struct {
	ID              FlexInt         `json:"UID"`
	CategoryID      FlexInt         `json:"UICATID"`
	Version         string          `json:"UIVersion"`
	Date            Timestamp       `json:"UIDate"`
	Name            string          `json:"UIName"`
	AuthorName      string          `json:"UIAuthorName"`
	FileInfoURL     string          `json:"UIFileInfoURL"`
	DownloadTotal   FlexInt         `json:"UIDownloadTotal"`
	DownloadMonthly FlexInt         `json:"UIDownloadMonthly"`
	FavoriteTotal   FlexInt         `json:"UIFavoriteTotal"`
	Dirs            []string        `json:"UIDir"`
	Compatibility   []Compatibility `json:"UICompatibility"`
	Thumbnails      []string        `json:"UIIMG_Thumbs"`
	Images          []string        `json:"UIIMGs"`
}

// Listing converts the feed item into the form the store persists.
// Images are paired by position; unmatched entries are dropped.
func (i Item) Listing() model.AddonListing {
	l := model.AddonListing{
		Addon: model.Addon{
			ID:              i.ID.Value,
			CategoryID:      i.CategoryID.Value,
			Version:         i.Version,
			Date:            i.Date.Time,
			Name:            i.Name,
			AuthorName:      i.AuthorName,
			FileInfoURL:     i.FileInfoURL,
			DownloadTotal:   i.DownloadTotal.Ptr(),
			DownloadMonthly: i.DownloadMonthly.Ptr(),
			FavoriteTotal:   i.FavoriteTotal.Ptr(),
		},
		Dirs: i.Dirs,
	}
	for _, c := range i.Compatibility {
		l.Compatibility = append(l.Compatibility, model.GameCompatibility{Version: c.Version, Name: c.Name})
	}
	for n := 0; n < len(i.Thumbnails) && n < len(i.Images); n++ {
		l.Images = append(l.Images, model.AddonImage{Thumbnail: i.Thumbnails[n], Image: i.Images[n]})
	}
	return l
}

// Detail is the record returned by the per-add-on detail feed.
type Detail struct {
	ID          FlexInt   `json:"UID"`
	CategoryID  FlexInt   `json:"UICATID"`
	Version     string    `json:"UIVersion"`
	Date        Timestamp `json:"UIDate"`
	MD5         string    `json:"UIMD5"`
	FileName    string    `json:"UIFileName"`
	DownloadURL string    `json:"UIDownload"`
	Pending     string    `json:"UIPending"`
	Name        string    `json:"UIName"`
	AuthorName  string    `json:"UIAuthorName"`
	Description string    `json:"UIDescription"`
	ChangeLog   string    `json:"UIChangeLog"`
	HitCount    FlexInt   `json:"UIHitCount"`
}

// DownloadInfo returns the fields that update the add-on row.
func (d Detail) DownloadInfo() model.DownloadInfo {
	return model.DownloadInfo{
		DownloadURL: d.DownloadURL,
		MD5:         strings.TrimSpace(d.MD5),
		FileName:    d.FileName,
	}
}

// AddonDetail returns the long-form record, stamped with the catalog
// version it was fetched for.
func (d Detail) AddonDetail(id int64, catalogVersion string) model.AddonDetail {
	return model.AddonDetail{
		ID:          id,
		Description: d.Description,
		ChangeLog:   d.ChangeLog,
		Version:     catalogVersion,
	}
}

// Category is one entry of the category feed.
type Category struct {
	ID        FlexInt   `json:"UICATID"`
	Title     string    `json:"UICATTitle"`
	Icon      string    `json:"UICATICON"`
	FileCount FlexInt   `json:"UICATFileCount"`
	ParentIDs []FlexInt `json:"UICATParentIDs"`
}

// Model converts the feed category; parent id "0" means no parent.
func (c Category) Model() model.Category {
	m := model.Category{
		ID:        c.ID.Value,
		Title:     c.Title,
		Icon:      c.Icon,
		FileCount: c.FileCount.Value,
	}
	for _, p := range c.ParentIDs {
		if p.Valid && p.Value != 0 {
			m.ParentIDs = append(m.ParentIDs, p.Value)
		}
	}
	return m
}

// Feeds holds the catalog endpoint URLs for one game.
type Feeds struct {
	FileList     string `json:"FileList"`
	FileDetails  string `json:"FileDetails"`
	ListFiles    string `json:"ListFiles"`
	CategoryList string `json:"CategoryList"`
}

type globalConfig struct {
	Games []struct {
		GameID     string `json:"GameID"`
		GameConfig string `json:"GameConfig"`
	} `json:"GAMES"`
}

type gameConfig struct {
	APIFeeds Feeds `json:"APIFeeds"`
}
