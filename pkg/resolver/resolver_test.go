package resolver

import (
	"bytes"
	"context"
	"errors"
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/glorpus-work/addonctl/internal/logger"
	"github.com/glorpus-work/addonctl/pkg/errutils"
	"github.com/glorpus-work/addonctl/pkg/manifest"
	"github.com/glorpus-work/addonctl/pkg/model"
	"github.com/glorpus-work/addonctl/pkg/resolver/mocks"
	"github.com/glorpus-work/addonctl/pkg/store"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/mock/gomock"
)

var date = time.Date(2024, 2, 2, 0, 0, 0, 0, time.UTC)

func addon(id int64, name string, dirs ...string) model.AddonListing {
	return model.AddonListing{
		Addon: model.Addon{ID: id, CategoryID: 1, Version: "1", Date: date, Name: name},
		Dirs:  dirs,
	}
}

type env struct {
	store     *store.Store
	installer *mocks.MockInstaller
	resolver  *Resolver
	root      string
}

// newEnv seeds a catalog where MyAddon needs LibFoo and LibStub, LibStub is
// installed, and LibFoo is offered by two catalog add-ons.
func newEnv(t *testing.T) *env {
	t.Helper()
	ctx := context.Background()

	st, err := store.Open(ctx, store.MemoryPath)
	require.NoError(t, err)
	t.Cleanup(func() { _ = st.Close() })

	_, err = st.SyncAddons(ctx, []model.AddonListing{
		addon(1, "MyAddon", "MyAddon"),
		addon(2, "LibStub", "LibStub"),
		addon(3, "LibFoo", "LibFoo"),
		addon(4, "LibFoo Fork", "LibFoo", "LibFooExtras"),
	})
	require.NoError(t, err)
	require.NoError(t, st.RecordInstall(ctx, model.InstalledAddon{AddonID: 1, Version: "1", Date: date}, []string{"LibFoo", "LibStub"}))
	require.NoError(t, st.RecordInstall(ctx, model.InstalledAddon{AddonID: 2, Version: "1", Date: date}, nil))

	inst := mocks.NewMockInstaller(gomock.NewController(t))
	root := t.TempDir()
	return &env{store: st, installer: inst, resolver: New(st, inst, root), root: root}
}

func TestFindMissingDependencies(t *testing.T) {
	e := newEnv(t)

	missing, err := e.resolver.FindMissingDependencies(context.Background())
	require.NoError(t, err)
	require.Len(t, missing, 1)
	assert.Equal(t, "LibFoo", missing[0].Dir)
	assert.Equal(t, []string{"MyAddon"}, missing[0].RequiredBy)
	assert.Equal(t, []model.Candidate{
		{AddonID: 3, Name: "LibFoo"},
		{AddonID: 4, Name: "LibFoo Fork"},
	}, missing[0].Candidates)
}

func TestFindMissingDependencies_GroupsRequirers(t *testing.T) {
	e := newEnv(t)
	ctx := context.Background()

	_, err := e.store.SyncAddons(ctx, []model.AddonListing{addon(5, "Another", "Another")})
	require.NoError(t, err)
	require.NoError(t, e.store.RecordInstall(ctx, model.InstalledAddon{AddonID: 5, Version: "1", Date: date}, []string{"LibFoo", "LibNowhere"}))

	missing, err := e.resolver.FindMissingDependencies(ctx)
	require.NoError(t, err)
	require.Len(t, missing, 2)
	assert.Equal(t, "LibFoo", missing[0].Dir)
	assert.Equal(t, []string{"Another", "MyAddon"}, missing[0].RequiredBy)
	assert.Equal(t, "LibNowhere", missing[1].Dir)
	assert.Empty(t, missing[1].Candidates)
}

func TestApplyResolutions_Ignore(t *testing.T) {
	e := newEnv(t)
	ctx := context.Background()

	require.NoError(t, e.resolver.ApplyResolutions(ctx, []model.UserDecision{{AddonDir: "LibFoo", Ignore: true}}))

	missing, err := e.resolver.FindMissingDependencies(ctx)
	require.NoError(t, err)
	assert.Empty(t, missing)

	decisions, err := e.store.ManualDependencies(ctx)
	require.NoError(t, err)
	assert.Equal(t, []model.ManualDependency{{AddonDir: "LibFoo", Ignore: true}}, decisions)
}

func TestApplyResolutions_InstallsChosenAddon(t *testing.T) {
	e := newEnv(t)
	ctx := context.Background()
	choice := int64(4)

	e.installer.EXPECT().Install(gomock.Any(), int64(4), false).DoAndReturn(
		func(ctx context.Context, id int64, _ bool) (*model.InstallOutcome, error) {
			err := e.store.RecordInstall(ctx, model.InstalledAddon{AddonID: id, Version: "1", Date: date}, nil)
			return &model.InstallOutcome{AddonID: id, Status: model.StatusInstalled}, err
		})

	require.NoError(t, e.resolver.ApplyResolutions(ctx, []model.UserDecision{{AddonDir: "LibFoo", SatisfiedBy: &choice}}))

	missing, err := e.resolver.FindMissingDependencies(ctx)
	require.NoError(t, err)
	assert.Empty(t, missing)

	decisions, err := e.store.ManualDependencies(ctx)
	require.NoError(t, err)
	require.Len(t, decisions, 1)
	require.NotNil(t, decisions[0].SatisfiedBy)
	assert.Equal(t, int64(4), *decisions[0].SatisfiedBy)
}

func TestApplyResolutions_AlreadyInstalledSkipsInstall(t *testing.T) {
	e := newEnv(t)
	choice := int64(2)

	require.NoError(t, e.resolver.ApplyResolutions(context.Background(),
		[]model.UserDecision{{AddonDir: "LibFoo", SatisfiedBy: &choice}}))
}

func TestApplyResolutions_InstallFailureRecordsNothing(t *testing.T) {
	e := newEnv(t)
	ctx := context.Background()
	choice := int64(3)

	e.installer.EXPECT().Install(gomock.Any(), int64(3), false).Return(nil, errors.New("network down"))

	err := e.resolver.ApplyResolutions(ctx, []model.UserDecision{{AddonDir: "LibFoo", SatisfiedBy: &choice}})
	require.Error(t, err)

	decisions, err := e.store.ManualDependencies(ctx)
	require.NoError(t, err)
	assert.Empty(t, decisions)
}

func TestApplyResolutions_EmptyDirectory(t *testing.T) {
	e := newEnv(t)
	err := e.resolver.ApplyResolutions(context.Background(), []model.UserDecision{{Ignore: true}})
	assert.ErrorIs(t, err, errutils.ErrResolutionChoice)
}

func TestRescan(t *testing.T) {
	e := newEnv(t)
	ctx := context.Background()

	require.NoError(t, os.MkdirAll(filepath.Join(e.root, "MyAddon"), 0o755))
	require.NoError(t, os.WriteFile(filepath.Join(e.root, "MyAddon", "MyAddon.txt"),
		[]byte("## Title: MyAddon\n## DependsOn: LibStub LibNew>=3\n"), 0o644))

	n, err := e.resolver.Rescan(ctx)
	require.NoError(t, err)
	assert.Equal(t, 1, n)

	deps, err := e.store.Dependencies(ctx, 1)
	require.NoError(t, err)
	assert.Equal(t, []string{"LibNew", "LibStub"}, deps)

	missing, err := e.resolver.FindMissingDependencies(ctx)
	require.NoError(t, err)
	require.Len(t, missing, 1)
	assert.Equal(t, "LibNew", missing[0].Dir)
}

func TestRescan_DirectoryWithoutManifestClearsDependencies(t *testing.T) {
	e := newEnv(t)
	ctx := context.Background()

	require.NoError(t, os.MkdirAll(filepath.Join(e.root, "MyAddon"), 0o755))

	n, err := e.resolver.Rescan(ctx)
	require.NoError(t, err)
	assert.Equal(t, 1, n)

	deps, err := e.store.Dependencies(ctx, 1)
	require.NoError(t, err)
	assert.Empty(t, deps)
}

func writeAddon(t *testing.T, root, dir, content string) {
	t.Helper()
	require.NoError(t, os.MkdirAll(filepath.Join(root, dir), 0o755))
	require.NoError(t, os.WriteFile(filepath.Join(root, dir, dir+".txt"), []byte(content), 0o644))
}

func TestRescan_WarnsOnUnsatisfiedConstraint(t *testing.T) {
	e := newEnv(t)
	var buf bytes.Buffer
	logger.SetTestOutput(&buf)
	logger.InitLogger("warn", logger.FormatText)
	t.Cleanup(func() {
		logger.UnsetTestOutput()
		logger.InitLogger("info", logger.FormatText)
	})

	writeAddon(t, e.root, "MyAddon", "## Title: MyAddon\n## DependsOn: LibStub>=5\n")
	writeAddon(t, e.root, "LibStub", "## Title: LibStub\n## AddOnVersion: 3\n")

	n, err := e.resolver.Rescan(context.Background())
	require.NoError(t, err)
	assert.Equal(t, 2, n)

	out := buf.String()
	assert.Contains(t, out, "does not satisfy version constraint")
	assert.Contains(t, out, "dependency=LibStub")
	assert.Contains(t, out, "installed=3")
}

func TestVersionConflicts(t *testing.T) {
	parse := func(content string) *manifest.Manifest {
		m, err := manifest.Read(strings.NewReader(content))
		require.NoError(t, err)
		return m
	}

	scanned := map[string]*manifest.Manifest{
		"MyAddon": parse("## Title: My Addon\n## DependsOn: LibA>=2 LibB>=1.0 LibC<2 LibMissing>=1\n"),
		"Other":   parse("## DependsOn: LibA>=4\n"),
		"LibA":    parse("## Version: 9.9\n## AddOnVersion: 3\n"),
		"LibB":    parse("## Version: r12\n"),
		"LibC":    parse("## Version: 1.5\n"),
	}

	conflicts := versionConflicts(scanned)
	require.Len(t, conflicts, 1)
	assert.Equal(t, versionConflict{
		Dependent:  "Other",
		Provider:   "LibA",
		Constraint: ">=4",
		Installed:  "3",
	}, conflicts[0])
}
