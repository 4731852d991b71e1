// Package hook runs user-supplied Tengo scripts around add-on installation
// and removal.
package hook

import "context"

// HookType identifies the point in an add-on's lifecycle a script runs at.
type HookType string

// Supported hook types.
const (
	PreInstall  HookType = "pre-install"
	PostInstall HookType = "post-install"
	PostRemove  HookType = "post-remove"
)

// Types lists every supported hook type.
var Types = []HookType{PreInstall, PostInstall, PostRemove}

// Valid reports whether t is a supported hook type.
func (t HookType) Valid() bool {
	switch t {
	case PreInstall, PostInstall, PostRemove:
		return true
	}
	return false
}

// Hook is a script bound to a hook type.
type Hook struct {
	Type    HookType
	Content string
}

// HookContext is exposed to scripts as global variables.
type HookContext struct {
	AddonID      int64
	AddonName    string
	AddonVersion string
	// AddonDir is the add-on's top-level directory inside RootDir; empty
	// before extraction.
	AddonDir string
	RootDir  string
	Vars     map[string]interface{}
}

// Runner executes the script registered for a hook type, if any.
type Runner interface {
	Run(ctx context.Context, hookType HookType, hc HookContext) error
	HasHook(hookType HookType) bool
}
