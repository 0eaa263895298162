// Package expression evaluates expr-lang expressions and {{ }} template
// references over a hierarchical variable environment. Compiled programs are
// cached process-wide keyed by expression text and compile mode.
//
//nolint:revive // exported
package expression

import (
	"sync"
)

// compileMode selects the expected output type when compiling an expression.
type compileMode int8

const (
	compileModeAny compileMode = iota
	compileModeBool
)

type programCacheKey struct {
	expression string
	mode       compileMode
}

// programCache holds compiled expr-lang programs. Programs are compiled
// against a plain map env so they are safe to reuse across environments.
var programCache sync.Map // programCacheKey -> *vm.Program
