package hook

import (
	"context"
	"fmt"

	"github.com/glorpus-work/addonctl/internal/logger"
)

// Manager is the Runner used by the installer.
type Manager struct {
	executor *TengoExecutor
}

var _ Runner = (*Manager)(nil)

// NewManager creates a manager with no hooks.
func NewManager() *Manager {
	return &Manager{executor: NewTengoExecutor()}
}

// AddHook registers a script, replacing any script of the same type.
func (m *Manager) AddHook(h Hook) error {
	if !h.Type.Valid() {
		return fmt.Errorf("unsupported hook type %q", h.Type)
	}
	m.executor.AddScript(h.Type, h.Content)
	return nil
}

// RemoveHook unregisters the script of hookType.
func (m *Manager) RemoveHook(hookType HookType) {
	m.executor.RemoveScript(hookType)
}

// HasHook reports whether a script is registered for hookType.
func (m *Manager) HasHook(hookType HookType) bool {
	return m.executor.HasScript(hookType)
}

// Run executes the script of hookType with hc.
func (m *Manager) Run(ctx context.Context, hookType HookType, hc HookContext) error {
	if !m.HasHook(hookType) {
		return nil
	}
	if hc.Vars == nil {
		hc.Vars = make(map[string]interface{})
	}

	logger.Debug("Running hook", logger.Fields{
		"hook":  string(hookType),
		"addon": hc.AddonName,
	})
	return m.executor.Execute(ctx, hookType, hc)
}
