// Package nsql implements the sql node. The node owns templating and
// variable extraction; running the query is delegated to a QueryExecutor
// collaborator so the engine stays database-agnostic.
package nsql

import (
	"context"
	"errors"

	"testflow/engine/pkg/errmap"
	"testflow/engine/pkg/expression"
	"testflow/engine/pkg/flow/node"
	"testflow/engine/pkg/idwrap"
	"testflow/engine/pkg/model/mscenario"
)

// QueryResult is what an executor hands back: rows as column-name maps.
type QueryResult struct {
	Rows []map[string]any
}

// QueryExecutor runs one query with positional arguments.
type QueryExecutor interface {
	Query(ctx context.Context, query string, args ...any) (QueryResult, error)
}

type NodeSQL struct {
	FlowNodeID idwrap.IDWrap
	Name       string
	Config     *mscenario.SQLConfig
	Executor   QueryExecutor
}

func New(id idwrap.IDWrap, name string, config *mscenario.SQLConfig, executor QueryExecutor) *NodeSQL {
	return &NodeSQL{
		FlowNodeID: id,
		Name:       name,
		Config:     config,
		Executor:   executor,
	}
}

func (n *NodeSQL) GetID() idwrap.IDWrap {
	return n.FlowNodeID
}

func (n *NodeSQL) GetName() string {
	return n.Name
}

func (n *NodeSQL) RunSync(ctx context.Context, req *node.FlowNodeRequest) node.FlowNodeResult {
	if n.Executor == nil {
		return node.FlowNodeResult{
			Err: errmap.New(errmap.CodeSQL, "sql node has no query executor configured", nil),
		}
	}

	uenv := req.Vars.Env()

	query := uenv.Interpolate(n.Config.Query)
	args := make([]any, 0, len(n.Config.Args))
	for _, arg := range n.Config.Args {
		args = append(args, uenv.ResolveValue(arg))
	}

	req.LoggerOrDefault().InfoContext(ctx, "running query",
		"node", n.Name,
		"query", query,
	)

	queryCtx, cancel := node.WithNodeTimeout(ctx, n.Config.TimeoutMS)
	defer cancel()

	result, err := n.Executor.Query(queryCtx, query, args...)
	if err != nil {
		if errors.Is(err, context.DeadlineExceeded) {
			return node.FlowNodeResult{Err: errmap.Map(err)}
		}
		return node.FlowNodeResult{Err: errmap.New(errmap.CodeSQL, "", err)}
	}

	rows := make([]any, len(result.Rows))
	for i, row := range result.Rows {
		rows[i] = row
	}
	output := map[string]any{
		"rows":  rows,
		"count": len(result.Rows),
	}

	extracted := make(map[string]any, len(n.Config.Extract))
	for _, rule := range n.Config.Extract {
		if rule.Name == "" {
			continue
		}
		val, _ := expression.ResolvePath(output, rule.Path)
		extracted[rule.Name] = val
	}

	return node.FlowNodeResult{
		NextNodeID: node.NextNodeIDs(req, n.FlowNodeID, mscenario.HandleUnspecified),
		Output:     output,
		Extracted:  extracted,
	}
}
