package manifest

import (
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/glorpus-work/addonctl/pkg/errutils"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func writeManifest(t *testing.T, root, file, content string) {
	t.Helper()
	require.NoError(t, os.MkdirAll(root, 0o755))
	require.NoError(t, os.WriteFile(filepath.Join(root, file), []byte(content), 0o644))
}

func TestParseDependencies_StripsConstraints(t *testing.T) {
	root := filepath.Join(t.TempDir(), "MyAddon")
	writeManifest(t, root, "MyAddon.txt", "## Title: My Addon\n## DependsOn: LibA>=2.0 LibB\n")

	deps, err := ParseDependencies(root, "MyAddon")
	require.NoError(t, err)
	assert.Equal(t, []string{"LibA", "LibB"}, deps)
}

func TestParseDependencies_CaseInsensitiveFileName(t *testing.T) {
	root := filepath.Join(t.TempDir(), "MyAddon")
	writeManifest(t, root, "myaddon.TXT", "## DependsOn: LibStub\n")

	deps, err := ParseDependencies(root, "MyAddon")
	require.NoError(t, err)
	assert.Equal(t, []string{"LibStub"}, deps)
}

func TestParseDependencies_NoMarker(t *testing.T) {
	root := filepath.Join(t.TempDir(), "MyAddon")
	writeManifest(t, root, "MyAddon.txt", "## Title: My Addon\n## APIVersion: 101041\n")

	deps, err := ParseDependencies(root, "MyAddon")
	require.NoError(t, err)
	assert.Empty(t, deps)
}

func TestParseDependencies_MissingFile(t *testing.T) {
	root := filepath.Join(t.TempDir(), "MyAddon")
	require.NoError(t, os.MkdirAll(root, 0o755))

	_, err := ParseDependencies(root, "MyAddon")
	require.Error(t, err)
	assert.ErrorIs(t, err, errutils.ErrMetadataMissing)

	var missing *errutils.MetadataMissingError
	require.ErrorAs(t, err, &missing)
	assert.Equal(t, "MyAddon", missing.AddonName)
}

func TestParseDependencies_MissingRoot(t *testing.T) {
	_, err := ParseDependencies(filepath.Join(t.TempDir(), "nope"), "nope")
	assert.ErrorIs(t, err, errutils.ErrMetadataMissing)
}

func TestParseDependencies_DirectoryNamedLikeManifestIsIgnored(t *testing.T) {
	root := filepath.Join(t.TempDir(), "MyAddon")
	require.NoError(t, os.MkdirAll(filepath.Join(root, "MyAddon.txt"), 0o755))

	_, err := ParseDependencies(root, "MyAddon")
	assert.ErrorIs(t, err, errutils.ErrMetadataMissing)
}

func TestRead(t *testing.T) {
	tests := []struct {
		name     string
		content  string
		wantDeps []string
		title    string
		version  string
	}{
		{
			name:     "first depends line wins",
			content:  "## DependsOn: LibA\n## DependsOn: LibB\n",
			wantDeps: []string{"LibA"},
		},
		{
			name:     "crlf and bom",
			content:  "\ufeff## Title: Crlf\r\n## Version: 1.2\r\n## DependsOn: LibA<3 LibB=1\r\n",
			wantDeps: []string{"LibA", "LibB"},
			title:    "Crlf",
			version:  "1.2",
		},
		{
			name:     "extra whitespace",
			content:  "## DependsOn:    LibAddonMenu-2.0>=30\t LibChatMessage  \n",
			wantDeps: []string{"LibAddonMenu-2.0", "LibChatMessage"},
		},
		{
			name:     "empty marker",
			content:  "## DependsOn:\n",
			wantDeps: []string{},
		},
		{
			name:     "marker must start the line",
			content:  " ## DependsOn: LibA\n",
			wantDeps: []string{},
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			m, err := Read(strings.NewReader(tt.content))
			require.NoError(t, err)
			assert.Equal(t, tt.wantDeps, m.Dirs())
			assert.Equal(t, tt.title, m.Title)
			assert.Equal(t, tt.version, m.Version)
		})
	}
}

func TestRead_Constraints(t *testing.T) {
	m, err := Read(strings.NewReader("## DependsOn: LibA>=2.0 LibB LibC>=not-a-version\n"))
	require.NoError(t, err)
	require.Len(t, m.Dependencies, 3)

	libA := m.Dependencies[0]
	assert.Equal(t, "LibA>=2.0", libA.Raw)
	require.NotNil(t, libA.Constraint)
	assert.Equal(t, ">=2.0", libA.Constraint.String())

	assert.Nil(t, m.Dependencies[1].Constraint)
	assert.Equal(t, "LibC", m.Dependencies[2].Dir)
	assert.Nil(t, m.Dependencies[2].Constraint)
}

func TestComparableVersion(t *testing.T) {
	tests := []struct {
		name    string
		content string
		want    string
		ok      bool
	}{
		{"addon version wins", "## Version: 2.1\n## AddOnVersion: 32\n", "32.0.0", true},
		{"falls back to version", "## Version: 2.1\n", "2.1.0", true},
		{"unparsable addon version", "## Version: 2.1\n## AddOnVersion: beta\n", "2.1.0", true},
		{"nothing usable", "## Version: r34\n", "", false},
		{"none", "## Title: x\n", "", false},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			m, err := Read(strings.NewReader(tt.content))
			require.NoError(t, err)
			v, ok := m.ComparableVersion()
			assert.Equal(t, tt.ok, ok)
			if ok {
				assert.Equal(t, tt.want, v.String())
			}
		})
	}
}
