package testutil

import (
	"encoding/json"
	"fmt"
	"net/http"
	"net/http/httptest"
	"strconv"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/glorpus-work/addonctl/pkg/catalog"
)

// FakeAddon is one add-on served by CatalogServer.
type FakeAddon struct {
	ID         int64
	CategoryID int64
	Name       string
	Version    string
	Date       time.Time
	Dirs       []string
	Archive    []byte
	// MD5 overrides the digest published in the detail feed; empty means
	// the real digest of Archive.
	MD5 string
}

// CatalogServer serves the list, detail, category and download endpoints of
// a fake catalog and counts archive downloads.
type CatalogServer struct {
	Server *httptest.Server
	URL    string

	mu         sync.Mutex
	addons     map[int64]FakeAddon
	categories []catalog.Category
	downloads  map[int64]int

	priceTable          []byte
	priceTableDownloads int
}

// NewCatalogServer starts a catalog server that is stopped when the test ends.
func NewCatalogServer(t *testing.T) *CatalogServer {
	t.Helper()
	cs := &CatalogServer{
		addons:    make(map[int64]FakeAddon),
		downloads: make(map[int64]int),
	}
	cs.Server = httptest.NewServer(http.HandlerFunc(cs.handle))
	cs.URL = cs.Server.URL
	t.Cleanup(cs.Server.Close)
	return cs
}

// Feeds returns the feed URLs of the server.
func (cs *CatalogServer) Feeds() catalog.Feeds {
	return catalog.Feeds{
		FileList:     cs.URL + "/filelist.json",
		FileDetails:  cs.URL + "/filedetails/",
		ListFiles:    cs.URL + "/listfiles.json",
		CategoryList: cs.URL + "/categories.json",
	}
}

// PutAddon adds or replaces an add-on.
func (cs *CatalogServer) PutAddon(a FakeAddon) {
	cs.mu.Lock()
	defer cs.mu.Unlock()
	if a.Date.IsZero() {
		a.Date = time.Date(2024, 1, 1, 0, 0, 0, 0, time.UTC)
	}
	cs.addons[a.ID] = a
}

// PutCategory adds a category to the category feed.
func (cs *CatalogServer) PutCategory(id int64, title string, parents ...int64) {
	cs.mu.Lock()
	defer cs.mu.Unlock()
	c := catalog.Category{
		ID:    catalog.FlexInt{Value: id, Valid: true},
		Title: title,
	}
	for _, p := range parents {
		c.ParentIDs = append(c.ParentIDs, catalog.FlexInt{Value: p, Valid: true})
	}
	cs.categories = append(cs.categories, c)
}

// PriceTableURL is where the server publishes the price table archive.
func (cs *CatalogServer) PriceTableURL() string {
	return cs.URL + "/download/PriceTable"
}

// PutPriceTable sets the price table archive. Until it is set the price
// table URL answers 404.
func (cs *CatalogServer) PutPriceTable(data []byte) {
	cs.mu.Lock()
	defer cs.mu.Unlock()
	cs.priceTable = data
}

// PriceTableDownloads returns how often the price table was downloaded.
func (cs *CatalogServer) PriceTableDownloads() int {
	cs.mu.Lock()
	defer cs.mu.Unlock()
	return cs.priceTableDownloads
}

// Downloads returns how often the archive of id was downloaded.
func (cs *CatalogServer) Downloads(id int64) int {
	cs.mu.Lock()
	defer cs.mu.Unlock()
	return cs.downloads[id]
}

func (cs *CatalogServer) handle(w http.ResponseWriter, r *http.Request) {
	cs.mu.Lock()
	defer cs.mu.Unlock()

	path := r.URL.Path
	switch {
	case path == "/filelist.json":
		items := make([]map[string]interface{}, 0, len(cs.addons))
		for _, a := range cs.addons {
			items = append(items, map[string]interface{}{
				"UID":           strconv.FormatInt(a.ID, 10),
				"UICATID":       strconv.FormatInt(a.CategoryID, 10),
				"UIVersion":     a.Version,
				"UIDate":        a.Date.UnixMilli(),
				"UIName":        a.Name,
				"UIAuthorName":  "tester",
				"UIFileInfoURL": fmt.Sprintf("%s/info%d", cs.URL, a.ID),
				"UIDir":         a.Dirs,
			})
		}
		writeJSON(w, items)
	case path == "/categories.json":
		out := make([]map[string]interface{}, 0, len(cs.categories))
		for _, c := range cs.categories {
			parents := make([]string, 0, len(c.ParentIDs))
			for _, p := range c.ParentIDs {
				parents = append(parents, strconv.FormatInt(p.Value, 10))
			}
			out = append(out, map[string]interface{}{
				"UICATID":        strconv.FormatInt(c.ID.Value, 10),
				"UICATTitle":     c.Title,
				"UICATICON":      "",
				"UICATFileCount": "0",
				"UICATParentIDs": parents,
			})
		}
		writeJSON(w, out)
	case strings.HasPrefix(path, "/filedetails/"):
		id, err := strconv.ParseInt(strings.TrimSuffix(strings.TrimPrefix(path, "/filedetails/"), ".json"), 10, 64)
		a, ok := cs.addons[id]
		if err != nil || !ok {
			writeJSON(w, []interface{}{})
			return
		}
		digest := a.MD5
		if digest == "" {
			digest = MD5Hex(a.Archive)
		}
		writeJSON(w, []map[string]interface{}{{
			"UID":           strconv.FormatInt(a.ID, 10),
			"UIVersion":     a.Version,
			"UIMD5":         digest,
			"UIFileName":    a.Name + ".zip",
			"UIDownload":    fmt.Sprintf("%s/download/%d.zip", cs.URL, a.ID),
			"UIDescription": "Description of " + a.Name,
			"UIChangeLog":   "Changes in " + a.Version,
		}})
	case path == "/download/PriceTable":
		if cs.priceTable == nil {
			http.NotFound(w, r)
			return
		}
		cs.priceTableDownloads++
		w.Header().Set("Content-Type", "application/zip")
		_, _ = w.Write(cs.priceTable)
	case strings.HasPrefix(path, "/download/"):
		id, err := strconv.ParseInt(strings.TrimSuffix(strings.TrimPrefix(path, "/download/"), ".zip"), 10, 64)
		a, ok := cs.addons[id]
		if err != nil || !ok {
			http.NotFound(w, r)
			return
		}
		cs.downloads[id]++
		w.Header().Set("Content-Type", "application/zip")
		_, _ = w.Write(a.Archive)
	default:
		http.NotFound(w, r)
	}
}

func writeJSON(w http.ResponseWriter, v interface{}) {
	w.Header().Set("Content-Type", "application/json")
	_ = json.NewEncoder(w).Encode(v)
}
