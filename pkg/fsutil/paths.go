package fsutil

import (
	"errors"
	"path/filepath"
	"strings"
)

// ErrOutsideRoot is returned by ResolveWithin for names that escape the root.
var ErrOutsideRoot = errors.New("path resolves outside root")

// ResolveWithin joins a slash-separated relative name onto root and returns
// the resulting path, or ErrOutsideRoot when the cleaned result is not root
// itself or a descendant of it. Absolute names are always rejected.
func ResolveWithin(root, name string) (string, error) {
	native := filepath.FromSlash(name)
	if name == "" || filepath.IsAbs(native) || strings.HasPrefix(name, "/") || filepath.VolumeName(native) != "" {
		return "", ErrOutsideRoot
	}

	cleanRoot := filepath.Clean(root)
	target := filepath.Join(cleanRoot, native)

	rel, err := filepath.Rel(cleanRoot, target)
	if err != nil {
		return "", ErrOutsideRoot
	}
	if rel == ".." || strings.HasPrefix(rel, ".."+string(filepath.Separator)) {
		return "", ErrOutsideRoot
	}
	return target, nil
}

// TopLevel returns the first path component of a slash-separated archive name,
// ignoring a leading "./".
func TopLevel(name string) string {
	name = strings.TrimPrefix(filepath.ToSlash(name), "./")
	name = strings.TrimLeft(name, "/")
	if i := strings.Index(name, "/"); i >= 0 {
		return name[:i]
	}
	return name
}
