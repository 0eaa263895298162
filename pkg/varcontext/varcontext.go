// Package varcontext holds the layered variable context a scenario run reads
// templates and expressions against. A context is an immutable stack of
// layers; extending it returns a new context and never mutates an existing
// snapshot, so node handlers can keep references without locking.
package varcontext

import (
	"maps"

	"testflow/engine/pkg/expression"
)

// Context is an immutable stack of variable layers. Lookup precedence is
// bottom-up construction order: environment variables first, dataset row
// second, then one layer per Extend call. Later layers shadow earlier ones
// on key collision.
type Context struct {
	layers []map[string]any
}

// New builds a context from environment variables and an optional dataset
// row. Either map may be nil. The inputs are copied; callers keep ownership
// of their maps.
func New(envVars map[string]any, datasetRow map[string]any) *Context {
	layers := make([]map[string]any, 0, 2)
	if len(envVars) > 0 {
		layers = append(layers, copyLayer(envVars))
	}
	if len(datasetRow) > 0 {
		layers = append(layers, copyLayer(datasetRow))
	}
	return &Context{layers: layers}
}

// Empty returns a context with no layers.
func Empty() *Context {
	return &Context{}
}

// Extend returns a new context with vars stacked on top. The receiver is
// unchanged. A nil or empty vars map returns the receiver itself.
func (c *Context) Extend(vars map[string]any) *Context {
	if len(vars) == 0 {
		return c
	}

	layers := make([]map[string]any, len(c.layers), len(c.layers)+1)
	copy(layers, c.layers)
	layers = append(layers, copyLayer(vars))
	return &Context{layers: layers}
}

// Lookup finds key in the topmost layer that defines it. Key matching is
// exact and case-sensitive. A missing key is not an error; the second
// return reports presence.
func (c *Context) Lookup(key string) (any, bool) {
	if c == nil {
		return nil, false
	}
	for i := len(c.layers) - 1; i >= 0; i-- {
		if v, ok := c.layers[i][key]; ok {
			return v, true
		}
	}
	return nil, false
}

// Has reports whether key is defined in any layer.
func (c *Context) Has(key string) bool {
	_, ok := c.Lookup(key)
	return ok
}

// Snapshot flattens the layers into a single fresh map, later layers
// winning. The returned map is owned by the caller.
func (c *Context) Snapshot() map[string]any {
	if c == nil {
		return map[string]any{}
	}
	size := 0
	for _, layer := range c.layers {
		size += len(layer)
	}
	out := make(map[string]any, size)
	for _, layer := range c.layers {
		maps.Copy(out, layer)
	}
	return out
}

// Env returns a UnifiedEnv over a snapshot of this context, ready for
// interpolation and expression evaluation. The env sees the context as of
// this call; later Extend calls are not reflected.
func (c *Context) Env() *expression.UnifiedEnv {
	return expression.NewUnifiedEnv(c.Snapshot())
}

// Depth returns the number of layers, mainly for logging.
func (c *Context) Depth() int {
	if c == nil {
		return 0
	}
	return len(c.layers)
}

func copyLayer(src map[string]any) map[string]any {
	dst := make(map[string]any, len(src))
	maps.Copy(dst, src)
	return dst
}
