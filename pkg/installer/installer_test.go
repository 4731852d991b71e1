package installer

import (
	"context"
	"errors"
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/glorpus-work/addonctl/pkg/catalog"
	"github.com/glorpus-work/addonctl/pkg/catalog/mocks"
	"github.com/glorpus-work/addonctl/pkg/errutils"
	"github.com/glorpus-work/addonctl/pkg/hook"
	"github.com/glorpus-work/addonctl/pkg/model"
	"github.com/glorpus-work/addonctl/pkg/store"
	"github.com/glorpus-work/addonctl/test/testutil"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/mock/gomock"
)

const archiveURL = "https://cdn.example.com/myaddon.zip"

var addonDate = time.Date(2024, 5, 1, 12, 0, 0, 0, time.UTC)

type fixture struct {
	store    *store.Store
	client   *mocks.MockClient
	root     string
	inst     *Installer
	manager  *hook.Manager
	archive  []byte
	detailOf func(version string) *catalog.Detail
}

func newFixture(t *testing.T) *fixture {
	t.Helper()
	ctx := context.Background()

	st, err := store.Open(ctx, store.MemoryPath)
	require.NoError(t, err)
	t.Cleanup(func() { _ = st.Close() })

	ctrl := gomock.NewController(t)
	client := mocks.NewMockClient(ctrl)
	root := t.TempDir()
	manager := hook.NewManager()

	data := testutil.BuildZip(t,
		testutil.ZipEntry{Name: "MyAddon/"},
		testutil.ZipEntry{Name: "MyAddon/MyAddon.txt", Body: "## Title: My Addon\n## DependsOn: LibA>=2.0 LibB\n"},
		testutil.ZipEntry{Name: "MyAddon/MyAddon.lua", Body: "-- code"},
	)

	f := &fixture{
		store:   st,
		client:  client,
		root:    root,
		inst:    New(st, client, manager, root),
		manager: manager,
		archive: data,
	}
	f.detailOf = func(version string) *catalog.Detail {
		return &catalog.Detail{
			Version:     version,
			MD5:         testutil.MD5Hex(data),
			FileName:    "MyAddon.zip",
			DownloadURL: archiveURL,
			Description: "does things",
		}
	}
	f.putAddon(t, "1.0", "MyAddon")
	return f
}

func (f *fixture) putAddon(t *testing.T, version string, dirs ...string) {
	t.Helper()
	_, err := f.store.SyncAddons(context.Background(), []model.AddonListing{{
		Addon: model.Addon{
			ID:         1,
			CategoryID: 1,
			Version:    version,
			Date:       addonDate,
			Name:       "My Addon",
		},
		Dirs: dirs,
	}})
	require.NoError(t, err)
}

func TestInstall_FreshInstall(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()

	f.client.EXPECT().FetchAddonDetail(gomock.Any(), int64(1)).Return(f.detailOf("1.0"), nil)
	f.client.EXPECT().DownloadArchive(gomock.Any(), archiveURL).Return(f.archive, nil)

	out, err := f.inst.Install(ctx, 1, false)
	require.NoError(t, err)
	assert.Equal(t, model.StatusInstalled, out.Status)
	assert.Equal(t, "MyAddon", out.RootDir)
	assert.Equal(t, []string{"LibA", "LibB"}, out.Dependencies)
	assert.FileExists(t, filepath.Join(f.root, "MyAddon", "MyAddon.lua"))

	installed, err := f.store.GetInstalled(ctx, 1)
	require.NoError(t, err)
	require.NotNil(t, installed)
	assert.Equal(t, "1.0", installed.Version)
	assert.True(t, installed.Date.Equal(addonDate))

	deps, err := f.store.Dependencies(ctx, 1)
	require.NoError(t, err)
	assert.Equal(t, []string{"LibA", "LibB"}, deps)

	detail, err := f.store.GetAddonDetail(ctx, 1)
	require.NoError(t, err)
	require.NotNil(t, detail)
	assert.Equal(t, "1.0", detail.Version)
	assert.Equal(t, "does things", detail.Description)
}

func TestInstall_IdempotentDownloadsOnce(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()

	f.client.EXPECT().FetchAddonDetail(gomock.Any(), int64(1)).Return(f.detailOf("1.0"), nil).Times(1)
	f.client.EXPECT().DownloadArchive(gomock.Any(), archiveURL).Return(f.archive, nil).Times(1)

	first, err := f.inst.Install(ctx, 1, false)
	require.NoError(t, err)
	assert.Equal(t, model.StatusInstalled, first.Status)

	second, err := f.inst.Install(ctx, 1, false)
	require.NoError(t, err)
	assert.Equal(t, model.StatusAlreadyUpToDate, second.Status)

	n, err := f.store.CountInstalled(ctx)
	require.NoError(t, err)
	assert.Equal(t, 1, n)
}

func TestInstall_ForceReinstalls(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()

	f.client.EXPECT().FetchAddonDetail(gomock.Any(), int64(1)).Return(f.detailOf("1.0"), nil).Times(1)
	f.client.EXPECT().DownloadArchive(gomock.Any(), archiveURL).Return(f.archive, nil).Times(2)

	_, err := f.inst.Install(ctx, 1, false)
	require.NoError(t, err)

	out, err := f.inst.Install(ctx, 1, true)
	require.NoError(t, err)
	assert.Equal(t, model.StatusUpdated, out.Status)
}

func TestInstall_NewCatalogVersionRefreshesDetail(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()

	f.client.EXPECT().FetchAddonDetail(gomock.Any(), int64(1)).Return(f.detailOf("1.0"), nil)
	f.client.EXPECT().DownloadArchive(gomock.Any(), archiveURL).Return(f.archive, nil)
	_, err := f.inst.Install(ctx, 1, false)
	require.NoError(t, err)

	f.putAddon(t, "1.1", "MyAddon")
	f.client.EXPECT().FetchAddonDetail(gomock.Any(), int64(1)).Return(f.detailOf("1.1"), nil)
	f.client.EXPECT().DownloadArchive(gomock.Any(), archiveURL).Return(f.archive, nil)

	out, err := f.inst.Install(ctx, 1, false)
	require.NoError(t, err)
	assert.Equal(t, model.StatusUpdated, out.Status)
	assert.Equal(t, "1.1", out.Version)

	detail, err := f.store.GetAddonDetail(ctx, 1)
	require.NoError(t, err)
	assert.Equal(t, "1.1", detail.Version)
}

func TestInstall_HashMismatchLeavesInstalledUnchanged(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()

	bad := f.detailOf("1.0")
	bad.MD5 = "deadbeef"
	f.client.EXPECT().FetchAddonDetail(gomock.Any(), int64(1)).Return(bad, nil)
	f.client.EXPECT().DownloadArchive(gomock.Any(), archiveURL).Return(f.archive, nil)

	_, err := f.inst.Install(ctx, 1, false)
	require.Error(t, err)
	assert.ErrorIs(t, err, errutils.ErrHashMismatch)

	var mismatch *errutils.HashMismatchError
	require.ErrorAs(t, err, &mismatch)
	assert.Equal(t, "deadbeef", mismatch.Expected)
	assert.Equal(t, testutil.MD5Hex(f.archive), mismatch.Actual)

	installed, err := f.store.GetInstalled(ctx, 1)
	require.NoError(t, err)
	assert.Nil(t, installed)
	assert.NoDirExists(t, filepath.Join(f.root, "MyAddon"))
}

func TestInstall_UppercaseDigestAccepted(t *testing.T) {
	f := newFixture(t)
	detail := f.detailOf("1.0")
	detail.MD5 = " " + strings.ToUpper(detail.MD5) + "\n"

	f.client.EXPECT().FetchAddonDetail(gomock.Any(), int64(1)).Return(detail, nil)
	f.client.EXPECT().DownloadArchive(gomock.Any(), archiveURL).Return(f.archive, nil)

	_, err := f.inst.Install(context.Background(), 1, false)
	require.NoError(t, err)
}

func TestInstall_DownloadFailure(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()

	f.client.EXPECT().FetchAddonDetail(gomock.Any(), int64(1)).Return(f.detailOf("1.0"), nil)
	f.client.EXPECT().DownloadArchive(gomock.Any(), archiveURL).
		Return(nil, errutils.NewCatalogFetchError(archiveURL, errors.New("connection reset")))

	_, err := f.inst.Install(ctx, 1, false)
	assert.ErrorIs(t, err, errutils.ErrCatalogFetch)

	installed, err := f.store.GetInstalled(ctx, 1)
	require.NoError(t, err)
	assert.Nil(t, installed)
}

func TestInstall_TraversalRejected(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()

	evil := testutil.BuildZip(t, testutil.ZipEntry{Name: "../../evil", Body: "pwned"})
	detail := f.detailOf("1.0")
	detail.MD5 = testutil.MD5Hex(evil)
	f.client.EXPECT().FetchAddonDetail(gomock.Any(), int64(1)).Return(detail, nil)
	f.client.EXPECT().DownloadArchive(gomock.Any(), archiveURL).Return(evil, nil)

	_, err := f.inst.Install(ctx, 1, false)
	assert.ErrorIs(t, err, errutils.ErrExtraction)

	assert.NoFileExists(t, filepath.Join(filepath.Dir(filepath.Dir(f.root)), "evil"))
	installed, err := f.store.GetInstalled(ctx, 1)
	require.NoError(t, err)
	assert.Nil(t, installed)
}

func TestInstall_WithoutManifestRecordsNoDependencies(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()

	data := testutil.BuildZip(t, testutil.ZipEntry{Name: "MyAddonData/data.lua", Body: "-- data"})
	detail := f.detailOf("1.0")
	detail.MD5 = testutil.MD5Hex(data)
	f.client.EXPECT().FetchAddonDetail(gomock.Any(), int64(1)).Return(detail, nil)
	f.client.EXPECT().DownloadArchive(gomock.Any(), archiveURL).Return(data, nil)

	out, err := f.inst.Install(ctx, 1, false)
	require.NoError(t, err)
	assert.Equal(t, "MyAddonData", out.RootDir)
	assert.Empty(t, out.Dependencies)

	installed, err := f.store.GetInstalled(ctx, 1)
	require.NoError(t, err)
	assert.NotNil(t, installed)
}

func TestInstall_UnknownAddon(t *testing.T) {
	f := newFixture(t)
	_, err := f.inst.Install(context.Background(), 99, false)
	assert.ErrorIs(t, err, errutils.ErrAddonNotFound)
}

func TestInstall_PreInstallHookAborts(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	require.NoError(t, f.manager.AddHook(hook.Hook{Type: hook.PreInstall, Content: `err = "blocked " + addonName`}))

	f.client.EXPECT().FetchAddonDetail(gomock.Any(), int64(1)).Return(f.detailOf("1.0"), nil)

	_, err := f.inst.Install(ctx, 1, false)
	require.Error(t, err)
	assert.ErrorIs(t, err, errutils.ErrHookScript)

	installed, err := f.store.GetInstalled(ctx, 1)
	require.NoError(t, err)
	assert.Nil(t, installed)
}

func TestInstall_PostInstallHookFailureIsNotFatal(t *testing.T) {
	f := newFixture(t)
	require.NoError(t, f.manager.AddHook(hook.Hook{Type: hook.PostInstall, Content: `err = "ignored"`}))

	f.client.EXPECT().FetchAddonDetail(gomock.Any(), int64(1)).Return(f.detailOf("1.0"), nil)
	f.client.EXPECT().DownloadArchive(gomock.Any(), archiveURL).Return(f.archive, nil)

	out, err := f.inst.Install(context.Background(), 1, false)
	require.NoError(t, err)
	assert.Equal(t, model.StatusInstalled, out.Status)
}

func TestRemove(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	f.putAddon(t, "1.0", "MyAddon", "MyAddonData")

	f.client.EXPECT().FetchAddonDetail(gomock.Any(), int64(1)).Return(f.detailOf("1.0"), nil)
	f.client.EXPECT().DownloadArchive(gomock.Any(), archiveURL).Return(f.archive, nil)
	_, err := f.inst.Install(ctx, 1, false)
	require.NoError(t, err)
	require.NoError(t, os.MkdirAll(filepath.Join(f.root, "MyAddonData"), 0o755))
	require.NoError(t, os.MkdirAll(filepath.Join(f.root, "Unrelated"), 0o755))

	removed, err := f.inst.Remove(ctx, 1)
	require.NoError(t, err)
	assert.Equal(t, []string{"MyAddon", "MyAddonData"}, removed)
	assert.NoDirExists(t, filepath.Join(f.root, "MyAddon"))
	assert.NoDirExists(t, filepath.Join(f.root, "MyAddonData"))
	assert.DirExists(t, filepath.Join(f.root, "Unrelated"))

	installed, err := f.store.GetInstalled(ctx, 1)
	require.NoError(t, err)
	assert.Nil(t, installed)
	deps, err := f.store.Dependencies(ctx, 1)
	require.NoError(t, err)
	assert.Empty(t, deps)
}

func TestRemove_NotInstalled(t *testing.T) {
	f := newFixture(t)
	_, err := f.inst.Remove(context.Background(), 1)
	assert.ErrorIs(t, err, errutils.ErrNotInstalled)
}

func TestRemove_RefusesEscapingDirectories(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()

	outside := filepath.Join(filepath.Dir(f.root), "victim")
	require.NoError(t, os.MkdirAll(outside, 0o755))
	t.Cleanup(func() { _ = os.RemoveAll(outside) })

	f.putAddon(t, "1.0", "../victim", ".", "MyAddon")
	require.NoError(t, f.store.RecordInstall(ctx, model.InstalledAddon{AddonID: 1, Version: "1.0", Date: addonDate}, nil))
	require.NoError(t, os.MkdirAll(filepath.Join(f.root, "MyAddon"), 0o755))

	removed, err := f.inst.Remove(ctx, 1)
	require.NoError(t, err)
	assert.Equal(t, []string{"MyAddon"}, removed)
	assert.DirExists(t, outside)
	assert.DirExists(t, f.root)
}

func TestVerifyMD5(t *testing.T) {
	data := []byte("payload")
	assert.NoError(t, verifyMD5(data, ""))
	assert.NoError(t, verifyMD5(data, testutil.MD5Hex(data)))
	assert.ErrorIs(t, verifyMD5(data, "deadbeef"), errutils.ErrHashMismatch)
}
