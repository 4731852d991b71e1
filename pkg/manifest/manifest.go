// Package manifest reads the metadata file shipped at the root of every add-on
// directory (<name>.txt) and extracts the directories it depends on.
package manifest

import (
	"bufio"
	"errors"
	"fmt"
	"io"
	"io/fs"
	"os"
	"path/filepath"
	"strings"

	"github.com/glorpus-work/addonctl/internal/logger"
	"github.com/glorpus-work/addonctl/pkg/errutils"
	"github.com/hashicorp/go-version"
)

const (
	dependsOnMarker = "## DependsOn:"
	titleMarker     = "## Title:"
	versionMarker   = "## Version:"
	addOnVerMarker  = "## AddOnVersion:"

	fileExt = ".txt"
	bom     = "\ufeff"
)

// Dependency is one token of the DependsOn line.
type Dependency struct {
	// Dir is the directory name the token refers to.
	Dir string
	// Raw is the token as written, including any version constraint.
	Raw string
	// Constraint is the parsed constraint following Dir, nil when the token
	// has none or it is not a valid constraint.
	Constraint version.Constraints
}

// Manifest holds the fields of an add-on metadata file.
type Manifest struct {
	Path         string
	Title        string
	Version      string
	// AddOnVersion is the integer release number libraries publish for
	// DependsOn constraints to compare against.
	AddOnVersion string
	Dependencies []Dependency
}

// ComparableVersion returns the version constraints are checked against:
// AddOnVersion when present, else Version. ok is false when neither parses.
func (m *Manifest) ComparableVersion() (v *version.Version, ok bool) {
	for _, raw := range []string{m.AddOnVersion, m.Version} {
		if raw == "" {
			continue
		}
		if v, err := version.NewVersion(raw); err == nil {
			return v, true
		}
	}
	return nil, false
}

// Dirs returns the dependency directory names in declaration order.
func (m *Manifest) Dirs() []string {
	dirs := make([]string, 0, len(m.Dependencies))
	for _, d := range m.Dependencies {
		dirs = append(dirs, d.Dir)
	}
	return dirs
}

// ParseDependencies returns the dependency directories declared by the
// manifest of the add-on named name inside root.
func ParseDependencies(root, name string) ([]string, error) {
	m, err := Parse(root, name)
	if err != nil {
		return nil, err
	}
	return m.Dirs(), nil
}

// Parse locates <name>.txt inside root, comparing file names
// case-insensitively, and parses it. A missing file yields
// *errutils.MetadataMissingError.
func Parse(root, name string) (*Manifest, error) {
	path, err := find(root, name)
	if err != nil {
		return nil, err
	}

	f, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("open manifest %s: %w", path, err)
	}
	defer func() { _ = f.Close() }()

	m, err := Read(f)
	if err != nil {
		return nil, fmt.Errorf("read manifest %s: %w", path, err)
	}
	m.Path = path
	return m, nil
}

// Read parses manifest content. Only the first DependsOn line is used.
func Read(r io.Reader) (*Manifest, error) {
	m := &Manifest{}
	seenDeps := false

	scanner := bufio.NewScanner(r)
	scanner.Buffer(make([]byte, 0, 64*1024), 1024*1024)
	first := true
	for scanner.Scan() {
		line := strings.TrimRight(scanner.Text(), "\r")
		if first {
			line = strings.TrimPrefix(line, bom)
			first = false
		}

		switch {
		case strings.HasPrefix(line, dependsOnMarker):
			if seenDeps {
				continue
			}
			seenDeps = true
			m.Dependencies = parseDependsOn(strings.TrimPrefix(line, dependsOnMarker))
		case m.Title == "" && strings.HasPrefix(line, titleMarker):
			m.Title = strings.TrimSpace(strings.TrimPrefix(line, titleMarker))
		case m.Version == "" && strings.HasPrefix(line, versionMarker):
			m.Version = strings.TrimSpace(strings.TrimPrefix(line, versionMarker))
		case m.AddOnVersion == "" && strings.HasPrefix(line, addOnVerMarker):
			m.AddOnVersion = strings.TrimSpace(strings.TrimPrefix(line, addOnVerMarker))
		}
	}
	if err := scanner.Err(); err != nil {
		return nil, err
	}
	return m, nil
}

func parseDependsOn(value string) []Dependency {
	fields := strings.Fields(value)
	deps := make([]Dependency, 0, len(fields))
	for _, token := range fields {
		dir, rest := token, ""
		if i := strings.IndexAny(token, "<=>"); i >= 0 {
			dir, rest = token[:i], token[i:]
		}
		if dir == "" {
			continue
		}

		dep := Dependency{Dir: dir, Raw: token}
		if rest != "" {
			c, err := version.NewConstraint(rest)
			if err != nil {
				logger.Debug("Ignoring unparsable dependency constraint", logger.Fields{
					"dependency": dir,
					"constraint": rest,
				})
			} else {
				dep.Constraint = c
			}
		}
		deps = append(deps, dep)
	}
	return deps
}

func find(root, name string) (string, error) {
	entries, err := os.ReadDir(root)
	if err != nil {
		if errors.Is(err, fs.ErrNotExist) {
			return "", &errutils.MetadataMissingError{AddonName: name}
		}
		return "", fmt.Errorf("list %s: %w", root, err)
	}

	want := name + fileExt
	for _, e := range entries {
		if !e.IsDir() && strings.EqualFold(e.Name(), want) {
			return filepath.Join(root, e.Name()), nil
		}
	}
	return "", &errutils.MetadataMissingError{AddonName: name}
}
