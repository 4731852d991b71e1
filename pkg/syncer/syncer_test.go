package syncer

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/glorpus-work/addonctl/pkg/catalog"
	"github.com/glorpus-work/addonctl/pkg/catalog/mocks"
	"github.com/glorpus-work/addonctl/pkg/errutils"
	"github.com/glorpus-work/addonctl/pkg/model"
	"github.com/glorpus-work/addonctl/pkg/store"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/mock/gomock"
)

var feedDate = time.Date(2024, 6, 1, 0, 0, 0, 0, time.UTC)

func id(v int64) catalog.FlexInt {
	return catalog.FlexInt{Value: v, Valid: true}
}

func item(uid int64, name, version string, dirs ...string) catalog.Item {
	return catalog.Item{
		ID:         id(uid),
		CategoryID: id(10),
		Version:    version,
		Date:       catalog.Timestamp{Time: feedDate},
		Name:       name,
		Dirs:       dirs,
		Compatibility: []catalog.Compatibility{
			{Version: "10.0.0", Name: "Update 42"},
		},
		Thumbnails: []string{"t1"},
		Images:     []string{"i1"},
	}
}

func setup(t *testing.T) (*Syncer, *store.Store, *mocks.MockClient) {
	t.Helper()
	st, err := store.Open(context.Background(), store.MemoryPath)
	require.NoError(t, err)
	t.Cleanup(func() { _ = st.Close() })

	client := mocks.NewMockClient(gomock.NewController(t))
	return New(st, client), st, client
}

func TestSync(t *testing.T) {
	s, st, client := setup(t)
	ctx := context.Background()

	client.EXPECT().FetchCategories(gomock.Any()).Return([]catalog.Category{
		{ID: id(10), Title: "Libraries", ParentIDs: []catalog.FlexInt{id(0)}},
		{ID: id(11), Title: "Combat", ParentIDs: []catalog.FlexInt{id(10)}},
		{Title: "broken"},
	}, nil)
	client.EXPECT().FetchAddonList(gomock.Any()).Return([]catalog.Item{
		item(1, "LibFoo", "2.0", "LibFoo"),
		item(2, "Bar", "1.0", "Bar", "BarData"),
		{Name: "no id"},
	}, nil)

	report, err := s.Sync(ctx)
	require.NoError(t, err)
	assert.Equal(t, 2, report.Categories)
	assert.Equal(t, 2, report.Addons)
	assert.Equal(t, 3, report.Directories)
	assert.Empty(t, report.Stale)
	assert.Empty(t, report.OutdatedDetails)

	dirs, err := st.AddonDirs(ctx, 2)
	require.NoError(t, err)
	assert.Equal(t, []string{"Bar", "BarData"}, dirs)

	compat, err := st.GameCompatibility(ctx, 1)
	require.NoError(t, err)
	assert.Equal(t, []model.GameCompatibility{{Version: "10.0.0", Name: "Update 42"}}, compat)

	tree, err := st.CategoryTree(ctx)
	require.NoError(t, err)
	require.Len(t, tree, 1)
	assert.Equal(t, "Libraries", tree[0].Title)
	require.Len(t, tree[0].Children, 1)
	assert.Equal(t, "Combat", tree[0].Children[0].Title)
}

func TestSync_DirectorySetShrinks(t *testing.T) {
	s, st, client := setup(t)
	ctx := context.Background()

	client.EXPECT().FetchCategories(gomock.Any()).Return(nil, nil).Times(2)
	gomock.InOrder(
		client.EXPECT().FetchAddonList(gomock.Any()).Return([]catalog.Item{item(2, "Bar", "1.0", "Bar", "BarData")}, nil),
		client.EXPECT().FetchAddonList(gomock.Any()).Return([]catalog.Item{item(2, "Bar", "1.1", "Bar")}, nil),
	)

	_, err := s.Sync(ctx)
	require.NoError(t, err)
	_, err = s.Sync(ctx)
	require.NoError(t, err)

	dirs, err := st.AddonDirs(ctx, 2)
	require.NoError(t, err)
	assert.Equal(t, []string{"Bar"}, dirs)
}

func TestSync_ReportsStaleAndOutdated(t *testing.T) {
	s, st, client := setup(t)
	ctx := context.Background()

	client.EXPECT().FetchCategories(gomock.Any()).Return(nil, nil).AnyTimes()
	client.EXPECT().FetchAddonList(gomock.Any()).Return([]catalog.Item{item(1, "LibFoo", "2.0", "LibFoo")}, nil).Times(1)
	_, err := s.Sync(ctx)
	require.NoError(t, err)

	require.NoError(t, st.RecordInstall(ctx, model.InstalledAddon{AddonID: 1, Version: "1.0", Date: feedDate}, nil))

	client.EXPECT().FetchAddonList(gomock.Any()).Return([]catalog.Item{item(1, "LibFoo", "2.0", "LibFoo")}, nil).Times(1)
	report, err := s.Sync(ctx)
	require.NoError(t, err)
	require.Len(t, report.Stale, 1)
	assert.Equal(t, int64(1), report.Stale[0].AddonID)
	assert.Equal(t, "1.0", report.Stale[0].InstalledVersion)
	assert.Equal(t, "2.0", report.Stale[0].CatalogVersion)
	assert.Equal(t, []int64{1}, report.OutdatedDetails)

	n, err := st.CountInstalled(ctx)
	require.NoError(t, err)
	assert.Equal(t, 1, n)
}

func TestSync_FetchFailureWritesNothing(t *testing.T) {
	s, st, client := setup(t)
	ctx := context.Background()

	client.EXPECT().FetchCategories(gomock.Any()).Return([]catalog.Category{{ID: id(10), Title: "Libraries"}}, nil)
	client.EXPECT().FetchAddonList(gomock.Any()).
		Return(nil, errutils.NewCatalogFetchError("https://example.com/list", errors.New("timeout")))

	_, err := s.Sync(ctx)
	require.Error(t, err)
	assert.ErrorIs(t, err, errutils.ErrCatalogFetch)

	categories, err := st.Categories(ctx)
	require.NoError(t, err)
	assert.Empty(t, categories)
}

func TestRefreshDetails(t *testing.T) {
	s, st, client := setup(t)
	ctx := context.Background()

	client.EXPECT().FetchCategories(gomock.Any()).Return(nil, nil)
	client.EXPECT().FetchAddonList(gomock.Any()).Return([]catalog.Item{item(1, "LibFoo", "2.0", "LibFoo")}, nil)
	_, err := s.Sync(ctx)
	require.NoError(t, err)

	client.EXPECT().FetchAddonDetail(gomock.Any(), int64(1)).Return(&catalog.Detail{
		Version:     "2.0",
		MD5:         "abc",
		DownloadURL: "https://cdn.example.com/1.zip",
		Description: "A library",
	}, nil)

	n, err := s.RefreshDetails(ctx, []int64{1})
	require.NoError(t, err)
	assert.Equal(t, 1, n)

	detail, err := st.GetAddonDetail(ctx, 1)
	require.NoError(t, err)
	require.NotNil(t, detail)
	assert.Equal(t, "2.0", detail.Version)
	assert.Equal(t, "A library", detail.Description)

	addon, err := st.GetAddon(ctx, 1)
	require.NoError(t, err)
	assert.Equal(t, "https://cdn.example.com/1.zip", addon.DownloadURL)
	assert.Equal(t, "abc", addon.MD5)
}

func TestRefreshDetails_UnknownAddon(t *testing.T) {
	s, _, _ := setup(t)
	_, err := s.RefreshDetails(context.Background(), []int64{5})
	assert.ErrorIs(t, err, errutils.ErrAddonNotFound)
}
