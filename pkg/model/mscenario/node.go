//nolint:revive // exported
package mscenario

import (
	"testflow/engine/pkg/idwrap"
)

type NodeKind int8

const (
	NodeKindUnspecified NodeKind = iota
	NodeKindStart
	NodeKindAPI
	NodeKindCondition
	NodeKindWait
	NodeKindSQL
	NodeKindLoop
	NodeKindScript
)

var nodeKindNames = map[NodeKind]string{
	NodeKindUnspecified: "unspecified",
	NodeKindStart:       "start",
	NodeKindAPI:         "api",
	NodeKindCondition:   "condition",
	NodeKindWait:        "wait",
	NodeKindSQL:         "sql",
	NodeKindLoop:        "loop",
	NodeKindScript:      "script",
}

// NodeKindFromString maps persistence-shape type strings to kinds.
var NodeKindFromString = map[string]NodeKind{
	"start":     NodeKindStart,
	"api":       NodeKindAPI,
	"condition": NodeKindCondition,
	"wait":      NodeKindWait,
	"sql":       NodeKindSQL,
	"loop":      NodeKindLoop,
	"script":    NodeKindScript,
}

func (k NodeKind) String() string {
	if s, ok := nodeKindNames[k]; ok {
		return s
	}
	return "unspecified"
}

// NodeState tracks a node's lifecycle inside a run.
type NodeState int8

const (
	NodeStateIdle NodeState = iota
	NodeStateRunning
	NodeStateSuccess
	NodeStateFailed
	NodeStateSkipped
)

var nodeStateNames = map[NodeState]string{
	NodeStateIdle:    "idle",
	NodeStateRunning: "running",
	NodeStateSuccess: "success",
	NodeStateFailed:  "failed",
	NodeStateSkipped: "skipped",
}

func (s NodeState) String() string {
	if name, ok := nodeStateNames[s]; ok {
		return name
	}
	return "idle"
}

// Node is one step of a scenario graph. Exactly one of the config fields
// matching Kind is set; the others stay nil. Description and ResourceID are
// canvas metadata carried through persistence; execution ignores them.
type Node struct {
	ID          idwrap.IDWrap
	ScenarioID  idwrap.IDWrap
	Name        string
	Description string
	ResourceID  string
	Kind        NodeKind
	PositionX   float64
	PositionY   float64

	API       *APIConfig
	Condition *ConditionConfig
	Wait      *WaitConfig
	SQL       *SQLConfig
	Loop      *LoopConfig
	Script    *ScriptConfig
}
