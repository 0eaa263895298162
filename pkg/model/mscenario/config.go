//nolint:revive // exported
package mscenario

import "testflow/engine/pkg/model/mcondition"

// BodyKind selects how an api node's body is materialized.
type BodyKind int8

const (
	BodyKindNone BodyKind = iota
	BodyKindJSON
	BodyKindFormData
	BodyKindRaw
)

var bodyKindNames = map[BodyKind]string{
	BodyKindNone:     "none",
	BodyKindJSON:     "json",
	BodyKindFormData: "form-data",
	BodyKindRaw:      "raw",
}

// BodyKindFromString maps persistence-shape strings to body kinds.
var BodyKindFromString = map[string]BodyKind{
	"":          BodyKindNone,
	"none":      BodyKindNone,
	"json":      BodyKindJSON,
	"form-data": BodyKindFormData,
	"raw":       BodyKindRaw,
}

func (k BodyKind) String() string {
	if s, ok := bodyKindNames[k]; ok {
		return s
	}
	return "none"
}

// FormField is one entry of a form-data body. File fields carry a path and
// are never interpolated; text fields are template-resolved at request
// resolution time.
type FormField struct {
	Name     string
	Value    string
	IsFile   bool
	FilePath string
}

// Body describes an api node's request body before template resolution.
// Text carries the json source or raw payload depending on Kind.
type Body struct {
	Kind BodyKind
	Text string
	Form []FormField
}

// ExtractRule pulls a value out of a response into the variable context
// under Name. Path uses dot/index notation over the response shape, e.g.
// "response.body.user.id".
type ExtractRule struct {
	Name string
	Path string
}

// APIConfig configures an api node. TimeoutMS, when positive, bounds the
// dispatch; zero means no per-node limit.
type APIConfig struct {
	Method     string
	URL        string
	Headers    map[string]string
	Params     map[string]string
	Body       Body
	Assertions []string
	Extract    []ExtractRule
	TimeoutMS  int64
}

// ConditionConfig configures a condition node.
type ConditionConfig struct {
	Condition mcondition.Condition
}

// WaitConfig configures a wait node. DurationMS below zero is a
// configuration error surfaced at execution time.
type WaitConfig struct {
	DurationMS int64
}

// SQLConfig configures a sql node. Args may contain {{ }} templates.
// TimeoutMS, when positive, bounds the query; zero means no per-node limit.
type SQLConfig struct {
	Query     string
	Args      []string
	Extract   []ExtractRule
	TimeoutMS int64
}

// LoopErrorPolicy controls how a loop reacts to a failing iteration.
type LoopErrorPolicy int8

const (
	LoopErrorFail LoopErrorPolicy = iota
	LoopErrorBreak
	LoopErrorIgnore
)

// LoopConfig configures a loop node. Loops == 0 means unbounded, bounded at
// run time by the run configuration's safety cap. BreakExpression, when
// non-empty, is evaluated before each iteration and exits the loop early on
// true.
type LoopConfig struct {
	Loops           int64
	BreakExpression string
	ErrorPolicy     LoopErrorPolicy
}

// ScriptConfig configures a script node. TimeoutMS, when positive, bounds
// the script run; zero means no per-node limit.
type ScriptConfig struct {
	Code      string
	TimeoutMS int64
}
