// Package ncondition implements the condition node: one boolean expression
// evaluated exactly once per visit, routing to the then or else edge.
package ncondition

import (
	"context"
	"errors"

	"testflow/engine/pkg/errmap"
	"testflow/engine/pkg/expression"
	"testflow/engine/pkg/flow/node"
	"testflow/engine/pkg/idwrap"
	"testflow/engine/pkg/model/mcondition"
	"testflow/engine/pkg/model/mscenario"
)

type NodeCondition struct {
	FlowNodeID idwrap.IDWrap
	Name       string
	Condition  mcondition.Condition
}

func New(id idwrap.IDWrap, name string, condition mcondition.Condition) *NodeCondition {
	return &NodeCondition{
		FlowNodeID: id,
		Name:       name,
		Condition:  condition,
	}
}

func (n *NodeCondition) GetID() idwrap.IDWrap {
	return n.FlowNodeID
}

func (n *NodeCondition) GetName() string {
	return n.Name
}

func (n *NodeCondition) RunSync(ctx context.Context, req *node.FlowNodeRequest) node.FlowNodeResult {
	uenv := req.Vars.Env()

	ok, err := uenv.EvalInterpolatedBool(ctx, n.Condition.Comparisons.Expression)
	if err != nil {
		return node.FlowNodeResult{Err: mapExpressionError(err)}
	}

	handle := mscenario.HandleElse
	if ok {
		handle = mscenario.HandleThen
	}

	return node.FlowNodeResult{
		NextNodeID: node.NextNodeIDs(req, n.FlowNodeID, handle),
		Output:     map[string]any{"result": ok},
	}
}

func mapExpressionError(err error) error {
	var exprErr *expression.ExpressionError
	if errors.As(err, &exprErr) && exprErr.Phase == "compile" {
		return errmap.New(errmap.CodeExpressionSyntax, "", err)
	}
	return errmap.New(errmap.CodeExpressionRuntime, "", err)
}
