//nolint:revive // exported
package menv

import (
	"testflow/engine/pkg/idwrap"
)

// Env is the target environment a scenario runs against: the base domain
// requests resolve relative URLs onto, the variable layer seeded into every
// run context, and default headers/params merged into every api request.
type Env struct {
	ID        idwrap.IDWrap
	Name      string
	Domain    string
	Variables map[string]any
	Headers   map[string]string
	Params    map[string]string
}

// VariablesOrEmpty returns the variable map, never nil.
func (e Env) VariablesOrEmpty() map[string]any {
	if e.Variables == nil {
		return map[string]any{}
	}
	return e.Variables
}
