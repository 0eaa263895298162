//nolint:revive // exported
package expression

import (
	"maps"
)

// UnifiedEnv provides a unified interface for variable resolution, expression
// evaluation, and string interpolation. It operates on hierarchical
// (non-flattened) data.
type UnifiedEnv struct {
	data        map[string]any // Hierarchical data (not flattened)
	customFuncs map[string]any // Custom expr-lang functions
}

// NewUnifiedEnv creates a new UnifiedEnv with the given hierarchical data.
func NewUnifiedEnv(data map[string]any) *UnifiedEnv {
	if data == nil {
		data = make(map[string]any)
	}
	return &UnifiedEnv{
		data:        data,
		customFuncs: make(map[string]any),
	}
}

// WithFunc returns a copy of the UnifiedEnv with a custom function added.
// Custom functions are callable from expr-lang expressions.
func (e *UnifiedEnv) WithFunc(name string, fn any) *UnifiedEnv {
	clone := e.Clone()
	clone.customFuncs[name] = fn
	return clone
}

// Clone creates a shallow copy of the UnifiedEnv.
func (e *UnifiedEnv) Clone() *UnifiedEnv {
	if e == nil {
		return NewUnifiedEnv(nil)
	}

	newData := make(map[string]any, len(e.data))
	maps.Copy(newData, e.data)

	newFuncs := make(map[string]any, len(e.customFuncs))
	maps.Copy(newFuncs, e.customFuncs)

	return &UnifiedEnv{
		data:        newData,
		customFuncs: newFuncs,
	}
}

// GetData returns the underlying hierarchical data map.
func (e *UnifiedEnv) GetData() map[string]any {
	if e == nil {
		return make(map[string]any)
	}
	return e.data
}

// Get retrieves a value at the given path. The path can use dot notation
// (e.g. "node.response.body") and array indexing (e.g. "items[0].id").
func (e *UnifiedEnv) Get(path string) (any, bool) {
	if e == nil {
		return nil, false
	}
	return ResolvePath(e.data, path)
}

// Set stores a value at the given path, creating intermediate maps as needed.
func (e *UnifiedEnv) Set(path string, value any) error {
	if e == nil {
		return ErrNilEnv
	}
	return SetPath(e.data, path, value)
}

// Has reports whether a value exists at the given path.
func (e *UnifiedEnv) Has(path string) bool {
	_, ok := e.Get(path)
	return ok
}

// Merge combines another UnifiedEnv's data into this one.
// Values from other take precedence on conflicting keys.
func (e *UnifiedEnv) Merge(other *UnifiedEnv) *UnifiedEnv {
	if other == nil {
		return e.Clone()
	}

	clone := e.Clone()
	for k, v := range other.data {
		clone.data[k] = v
	}
	for k, v := range other.customFuncs {
		clone.customFuncs[k] = v
	}
	return clone
}
