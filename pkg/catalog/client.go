//go:generate mockgen -destination=./mocks/catalog.go . Client

// Package catalog talks to the remote add-on catalog: the add-on list, the
// per-add-on detail records, the category list and the archive downloads.
// Every call is a single GET with no internal retries; failures surface as
// *errutils.CatalogFetchError.
package catalog

import (
	"context"
	"encoding/json"
	"fmt"
	"strconv"
	"strings"
	"time"

	"github.com/glorpus-work/addonctl/internal/logger"
	"github.com/glorpus-work/addonctl/pkg/errutils"
	"github.com/go-resty/resty/v2"
	"golang.org/x/time/rate"
)

const (
	// DefaultEndpoint serves globalconfig.json for feed discovery.
	DefaultEndpoint = "https://api.mmoui.com/v3"
	// DefaultGameID selects the game entry in globalconfig.json.
	DefaultGameID = "ESO"
	// DefaultUserAgent is sent when no user agent is configured.
	DefaultUserAgent = "addonctl/1.0"
	// DefaultPriceTableURL serves the Tamriel Trade Centre price table archive.
	DefaultPriceTableURL = "https://us.tamrieltradecentre.com/download/PriceTable"

	globalConfigFile = "globalconfig.json"
)

// Client is the subset of catalog operations used by the sync engine and the installer.
type Client interface {
	FetchAddonList(ctx context.Context) ([]Item, error)
	FetchAddonDetail(ctx context.Context, id int64) (*Detail, error)
	FetchCategories(ctx context.Context) ([]Category, error)
	DownloadArchive(ctx context.Context, url string) ([]byte, error)
}

// Options configure the HTTP client.
type Options struct {
	Timeout   time.Duration
	UserAgent string
	// RequestsPerSecond throttles outgoing requests; zero disables throttling.
	RequestsPerSecond float64
}

// HTTPClient implements Client over HTTP.
type HTTPClient struct {
	http    *resty.Client
	limiter *rate.Limiter
	feeds   Feeds
}

var _ Client = (*HTTPClient)(nil)

// NewHTTPClient creates a client for the given feeds.
func NewHTTPClient(feeds Feeds, opts Options) *HTTPClient {
	ua := opts.UserAgent
	if ua == "" {
		ua = DefaultUserAgent
	}

	limit := rate.Inf
	if opts.RequestsPerSecond > 0 {
		limit = rate.Limit(opts.RequestsPerSecond)
	}

	httpClient := resty.New().
		SetHeader("User-Agent", ua).
		SetRetryCount(0)
	if opts.Timeout > 0 {
		httpClient.SetTimeout(opts.Timeout)
	}

	return &HTTPClient{
		http:    httpClient,
		limiter: rate.NewLimiter(limit, 1),
		feeds:   feeds,
	}
}

// Feeds returns the feed URLs in use.
func (c *HTTPClient) Feeds() Feeds {
	return c.feeds
}

// SetFeeds replaces the feed URLs, typically after DiscoverFeeds.
func (c *HTTPClient) SetFeeds(feeds Feeds) {
	c.feeds = feeds
}

// FetchAddonList fetches the full add-on list.
func (c *HTTPClient) FetchAddonList(ctx context.Context) ([]Item, error) {
	var items []Item
	if err := c.getJSON(ctx, c.feeds.FileList, &items); err != nil {
		return nil, err
	}
	return items, nil
}

// FetchAddonDetail fetches the detail record of one add-on. The feed answers
// with an array whose first element is the record.
func (c *HTTPClient) FetchAddonDetail(ctx context.Context, id int64) (*Detail, error) {
	url := ""
	if c.feeds.FileDetails != "" {
		url = c.feeds.FileDetails + strconv.FormatInt(id, 10) + ".json"
	}
	var details []Detail
	if err := c.getJSON(ctx, url, &details); err != nil {
		return nil, err
	}
	if len(details) == 0 {
		return nil, errutils.NewCatalogFetchError(url, errutils.ErrCatalogEmpty)
	}
	return &details[0], nil
}

// FetchCategories fetches the category list.
func (c *HTTPClient) FetchCategories(ctx context.Context) ([]Category, error) {
	var categories []Category
	if err := c.getJSON(ctx, c.feeds.CategoryList, &categories); err != nil {
		return nil, err
	}
	return categories, nil
}

// DownloadArchive fetches an archive into memory.
func (c *HTTPClient) DownloadArchive(ctx context.Context, url string) ([]byte, error) {
	logger.Debug("Downloading archive", logger.Fields{"url": url})
	return c.get(ctx, url)
}

// DiscoverFeeds resolves the feed URLs of gameID from the endpoint's global config.
func (c *HTTPClient) DiscoverFeeds(ctx context.Context, endpoint, gameID string) (Feeds, error) {
	globalURL := strings.TrimRight(endpoint, "/") + "/" + globalConfigFile

	var global globalConfig
	if err := c.getJSON(ctx, globalURL, &global); err != nil {
		return Feeds{}, err
	}

	gameURL := ""
	for _, g := range global.Games {
		if g.GameID == gameID {
			gameURL = g.GameConfig
			break
		}
	}
	if gameURL == "" {
		return Feeds{}, errutils.NewCatalogFetchError(globalURL, fmt.Errorf("%w: %s", errutils.ErrUnknownGame, gameID))
	}

	var game gameConfig
	if err := c.getJSON(ctx, gameURL, &game); err != nil {
		return Feeds{}, err
	}
	return game.APIFeeds, nil
}

func (c *HTTPClient) getJSON(ctx context.Context, url string, out interface{}) error {
	body, err := c.get(ctx, url)
	if err != nil {
		return err
	}
	if err := json.Unmarshal(body, out); err != nil {
		return errutils.NewCatalogFetchError(url, fmt.Errorf("decode response: %w", err))
	}
	return nil
}

func (c *HTTPClient) get(ctx context.Context, url string) ([]byte, error) {
	if url == "" {
		return nil, errutils.NewCatalogFetchError(url, errutils.ErrFeedsNotConfigured)
	}
	if err := c.limiter.Wait(ctx); err != nil {
		return nil, errutils.NewCatalogFetchError(url, err)
	}

	logger.Debug("Requesting", logger.Fields{"url": url})
	resp, err := c.http.R().SetContext(ctx).Get(url)
	if err != nil {
		return nil, errutils.NewCatalogFetchError(url, err)
	}
	if !resp.IsSuccess() {
		return nil, errutils.NewCatalogFetchError(url, fmt.Errorf("unexpected status: %s", resp.Status()))
	}
	return resp.Body(), nil
}
