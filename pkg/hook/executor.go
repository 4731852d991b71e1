package hook

import (
	"context"
	"sync"

	"github.com/d5/tengo/v2"
	"github.com/d5/tengo/v2/stdlib"
	"github.com/glorpus-work/addonctl/pkg/errutils"
)

// scriptModules are the Tengo standard modules importable from hook scripts.
var scriptModules = []string{"fmt", "json", "os", "text", "times"}

// TengoExecutor compiles and runs Tengo scripts.
type TengoExecutor struct {
	scripts map[HookType]string
	mutex   sync.RWMutex
}

// NewTengoExecutor creates an executor with no scripts.
func NewTengoExecutor() *TengoExecutor {
	return &TengoExecutor{
		scripts: make(map[HookType]string),
	}
}

// Execute runs the script registered for hookType. A missing script is a
// no-op. Scripts signal failure by assigning a non-empty string or an error
// value to the global err.
func (e *TengoExecutor) Execute(ctx context.Context, hookType HookType, hc HookContext) error {
	e.mutex.RLock()
	script, exists := e.scripts[hookType]
	e.mutex.RUnlock()
	if !exists {
		return nil
	}

	s := tengo.NewScript([]byte(script))
	s.SetImports(stdlib.GetModuleMap(scriptModules...))

	vars := map[string]interface{}{
		"addonId":      hc.AddonID,
		"addonName":    hc.AddonName,
		"addonVersion": hc.AddonVersion,
		"addonDir":     hc.AddonDir,
		"rootDir":      hc.RootDir,
		"hookType":     string(hookType),
		"err":          "",
	}
	for k, v := range hc.Vars {
		vars[k] = v
	}
	for k, v := range vars {
		if err := s.Add(k, v); err != nil {
			return errutils.Wrapf(errutils.ErrHookExecution, "%s: variable %s: %v", hookType, k, err)
		}
	}

	compiled, err := s.RunContext(ctx)
	if err != nil {
		return errutils.Wrapf(errutils.ErrHookExecution, "%s: %v", hookType, err)
	}

	switch v := compiled.Get("err").Value().(type) {
	case error:
		return errutils.Wrapf(errutils.ErrHookScript, "%s: %v", hookType, v)
	case string:
		if v != "" {
			return errutils.Wrapf(errutils.ErrHookScript, "%s: %s", hookType, v)
		}
	}
	return nil
}

// AddScript adds or replaces the script for hookType.
func (e *TengoExecutor) AddScript(hookType HookType, script string) {
	e.mutex.Lock()
	defer e.mutex.Unlock()
	e.scripts[hookType] = script
}

// RemoveScript removes the script for hookType.
func (e *TengoExecutor) RemoveScript(hookType HookType) {
	e.mutex.Lock()
	defer e.mutex.Unlock()
	delete(e.scripts, hookType)
}

// HasScript reports whether a script is registered for hookType.
func (e *TengoExecutor) HasScript(hookType HookType) bool {
	e.mutex.RLock()
	defer e.mutex.RUnlock()
	_, exists := e.scripts[hookType]
	return exists
}
