// Package flowbuilder turns a scenario graph into a runnable node map.
// Building validates first and refuses the whole graph on any violation;
// there is no partial build.
package flowbuilder

import (
	"fmt"
	"strings"

	"testflow/engine/pkg/errmap"
	"testflow/engine/pkg/flow/node"
	"testflow/engine/pkg/flow/node/napi"
	"testflow/engine/pkg/flow/node/ncondition"
	"testflow/engine/pkg/flow/node/nloop"
	"testflow/engine/pkg/flow/node/nscript"
	"testflow/engine/pkg/flow/node/nsql"
	"testflow/engine/pkg/flow/node/nstart"
	"testflow/engine/pkg/flow/node/nwait"
	"testflow/engine/pkg/flowgraph"
	"testflow/engine/pkg/idwrap"
	"testflow/engine/pkg/model/menv"
	"testflow/engine/pkg/model/mcondition"
	"testflow/engine/pkg/model/mscenario"
)

// Options carries the environment and the collaborators node handlers
// delegate to. Dispatcher defaults to the HTTP dispatcher; QueryExecutor
// and ScriptRunner stay nil-able and the respective node fails at run time
// if used without one.
type Options struct {
	Env           menv.Env
	Dispatcher    napi.Dispatcher
	QueryExecutor nsql.QueryExecutor
	ScriptRunner  nscript.ScriptRunner
}

// BuiltFlow is the runnable form of a scenario graph.
type BuiltFlow struct {
	StartNodeID idwrap.IDWrap
	Nodes       map[idwrap.IDWrap]node.FlowNode
	EdgesMap    mscenario.EdgesMap
}

// ValidationError carries the full violation list of a rejected graph.
type ValidationError struct {
	Result flowgraph.ValidationResult
}

func (e *ValidationError) Error() string {
	msgs := make([]string, 0, len(e.Result.Violations))
	for _, v := range e.Result.Violations {
		msgs = append(msgs, fmt.Sprintf("%s: %s", v.Kind, v.Message))
	}
	return fmt.Sprintf("scenario graph rejected with %d violation(s): %s", len(msgs), strings.Join(msgs, "; "))
}

// Build validates the graph and constructs one handler per node.
func Build(g *mscenario.ScenarioGraph, opts Options) (*BuiltFlow, error) {
	vr := flowgraph.Validate(g)
	if !vr.Valid() {
		return nil, errmap.New(errmap.CodeValidation, "", &ValidationError{Result: vr})
	}

	dispatcher := opts.Dispatcher
	if dispatcher == nil {
		dispatcher = napi.NewHTTPDispatcher(nil)
	}

	nodes := make(map[idwrap.IDWrap]node.FlowNode, len(g.Nodes))
	for i := range g.Nodes {
		n := &g.Nodes[i]
		built, err := buildNode(n, opts, dispatcher)
		if err != nil {
			return nil, err
		}
		nodes[n.ID] = built
	}

	return &BuiltFlow{
		StartNodeID: vr.StartNodeID(),
		Nodes:       nodes,
		EdgesMap:    g.EdgesMap(),
	}, nil
}

func buildNode(n *mscenario.Node, opts Options, dispatcher napi.Dispatcher) (node.FlowNode, error) {
	switch n.Kind {
	case mscenario.NodeKindStart:
		return nstart.New(n.ID, n.Name), nil

	case mscenario.NodeKindAPI:
		if n.API == nil {
			return nil, missingConfig(n)
		}
		return napi.New(n.ID, n.Name, n.API, opts.Env, dispatcher), nil

	case mscenario.NodeKindCondition:
		cond := mcondition.Condition{}
		if n.Condition != nil {
			cond = n.Condition.Condition
		}
		return ncondition.New(n.ID, n.Name, cond), nil

	case mscenario.NodeKindWait:
		if n.Wait == nil {
			return nil, missingConfig(n)
		}
		return nwait.New(n.ID, n.Name, n.Wait.DurationMS), nil

	case mscenario.NodeKindSQL:
		if n.SQL == nil {
			return nil, missingConfig(n)
		}
		return nsql.New(n.ID, n.Name, n.SQL, opts.QueryExecutor), nil

	case mscenario.NodeKindLoop:
		if n.Loop == nil {
			return nil, missingConfig(n)
		}
		return nloop.New(n.ID, n.Name, n.Loop), nil

	case mscenario.NodeKindScript:
		if n.Script == nil {
			return nil, missingConfig(n)
		}
		return nscript.New(n.ID, n.Name, n.Script, opts.ScriptRunner), nil

	default:
		return nil, errmap.New(errmap.CodeValidation,
			fmt.Sprintf("node %q has unknown kind %d", n.Name, n.Kind), nil)
	}
}

func missingConfig(n *mscenario.Node) error {
	return errmap.New(errmap.CodeValidation,
		fmt.Sprintf("node %q (%s) is missing its %s configuration", n.Name, n.ID, n.Kind), nil)
}
