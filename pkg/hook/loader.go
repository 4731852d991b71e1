package hook

import (
	"fmt"
	"os"
)

// LoadScripts registers the script files in paths, keyed by hook type.
// Empty paths are skipped.
func LoadScripts(m *Manager, paths map[HookType]string) error {
	for _, t := range Types {
		path := paths[t]
		if path == "" {
			continue
		}
		content, err := os.ReadFile(path)
		if err != nil {
			return fmt.Errorf("read %s hook %s: %w", t, path, err)
		}
		if err := m.AddHook(Hook{Type: t, Content: string(content)}); err != nil {
			return err
		}
	}
	return nil
}

// HookTemplate returns a commented starting point for a hook script.
func HookTemplate(hookType HookType) string {
	const vars = `// Available variables:
// - addonId: int - catalog id of the add-on
// - addonName: string - catalog name of the add-on
// - addonVersion: string - version being installed or removed
// - addonDir: string - top-level directory of the add-on (empty before extraction)
// - rootDir: string - add-on root directory
// Set err to a non-empty string to report a failure.
`
	switch hookType {
	case PreInstall:
		return `// Pre-install hook
// Runs before the archive is downloaded. A failure aborts the install.
` + vars + `
/*
if addonName == "Blocked" {
    err = "refusing to install " + addonName
}
*/`
	case PostInstall:
		return `// Post-install hook
// Runs after the add-on is extracted and recorded.
` + vars + `
/*
fmt := import("fmt")
fmt.println("installed ", addonName, " ", addonVersion)
*/`
	case PostRemove:
		return `// Post-remove hook
// Runs after the add-on's directories are deleted.
` + vars + `
/*
fmt := import("fmt")
fmt.println("removed ", addonName)
*/`
	default:
		return "// Unknown hook type: " + string(hookType)
	}
}
