// Package napi implements the api node: resolve the request against the
// environment and variable context, dispatch it, expose the response to
// downstream expressions, extract declared variables, and check assertions.
package napi

import (
	"context"
	"errors"
	"fmt"

	"testflow/engine/pkg/errmap"
	"testflow/engine/pkg/expression"
	"testflow/engine/pkg/flow/node"
	"testflow/engine/pkg/http/request"
	"testflow/engine/pkg/httpclient"
	"testflow/engine/pkg/idwrap"
	"testflow/engine/pkg/model/menv"
	"testflow/engine/pkg/model/mscenario"
)

// Dispatcher sends a resolved request and returns the normalized response.
// The default implementation talks HTTP; tests substitute their own.
type Dispatcher interface {
	Dispatch(ctx context.Context, req request.ResolvedRequest) (httpclient.Response, error)
}

type NodeAPI struct {
	FlowNodeID idwrap.IDWrap
	Name       string
	Config     *mscenario.APIConfig
	Env        menv.Env
	Dispatcher Dispatcher
}

func New(id idwrap.IDWrap, name string, config *mscenario.APIConfig, env menv.Env, dispatcher Dispatcher) *NodeAPI {
	return &NodeAPI{
		FlowNodeID: id,
		Name:       name,
		Config:     config,
		Env:        env,
		Dispatcher: dispatcher,
	}
}

func (n *NodeAPI) GetID() idwrap.IDWrap {
	return n.FlowNodeID
}

func (n *NodeAPI) GetName() string {
	return n.Name
}

func (n *NodeAPI) RunSync(ctx context.Context, req *node.FlowNodeRequest) node.FlowNodeResult {
	logger := req.LoggerOrDefault()

	resolved, err := request.Resolve(n.Config, n.Env, req.Vars)
	if err != nil {
		return node.FlowNodeResult{Err: errmap.New(errmap.CodeValidation, "", err)}
	}

	logger.InfoContext(ctx, "dispatching request",
		"node", n.Name,
		"method", resolved.Method,
		"url", resolved.URL,
		"headers", redactHeaders(resolved.Headers),
	)

	dispatchCtx, cancel := node.WithNodeTimeout(ctx, n.Config.TimeoutMS)
	defer cancel()

	resp, err := n.Dispatcher.Dispatch(dispatchCtx, resolved)
	if err != nil {
		mapped := errmap.MapRequestError(resolved.Method, resolved.URL, err)
		logger.ErrorContext(ctx, "request failed",
			"node", n.Name,
			"method", resolved.Method,
			"url", resolved.URL,
			"error", mapped,
		)
		return node.FlowNodeResult{Err: mapped}
	}

	respVar := httpclient.ConvertResponseToVar(resp)

	logger.InfoContext(ctx, "request completed",
		"node", n.Name,
		"method", resolved.Method,
		"url", resolved.URL,
		"status", respVar.StatusCode,
		"duration_ms", respVar.DurationMS,
	)

	output := map[string]any{
		"request": map[string]any{
			"method":  resolved.Method,
			"url":     resolved.URL,
			"headers": resolved.Headers,
			"params":  resolved.Params,
		},
		"response": map[string]any{
			"status":   respVar.StatusCode,
			"body":     respVar.Body,
			"headers":  respVar.Headers,
			"duration": respVar.DurationMS,
		},
	}

	// Every api node publishes its status and timing flat, so conditions
	// can say {{status_code}} == 200 without knowing node names.
	extracted := map[string]any{
		"status_code": respVar.StatusCode,
		"elapsed_ms":  respVar.DurationMS,
	}
	for _, rule := range n.Config.Extract {
		if rule.Name == "" {
			continue
		}
		val, _ := expression.ResolvePath(output, rule.Path)
		extracted[rule.Name] = val
	}

	if err := n.checkAssertions(ctx, req, extracted, output); err != nil {
		return node.FlowNodeResult{
			Output:    output,
			Extracted: extracted,
			Err:       err,
		}
	}

	return node.FlowNodeResult{
		NextNodeID: node.NextNodeIDs(req, n.FlowNodeID, mscenario.HandleUnspecified),
		Output:     output,
		Extracted:  extracted,
	}
}

// checkAssertions evaluates the node's assertion expressions against the
// post-request context: the run context plus this node's extracted vars and
// namespaced output.
func (n *NodeAPI) checkAssertions(ctx context.Context, req *node.FlowNodeRequest, extracted map[string]any, output map[string]any) error {
	if len(n.Config.Assertions) == 0 {
		return nil
	}

	vars := req.Vars.Extend(extracted).Extend(map[string]any{n.Name: output})
	uenv := vars.Env()

	for _, assertion := range n.Config.Assertions {
		ok, err := uenv.EvalInterpolatedBool(ctx, assertion)
		if err != nil {
			var exprErr *expression.ExpressionError
			if errors.As(err, &exprErr) && exprErr.Phase == "compile" {
				return errmap.New(errmap.CodeExpressionSyntax, "", err)
			}
			return errmap.New(errmap.CodeExpressionRuntime, "", err)
		}
		if !ok {
			return errmap.New(errmap.CodeAssertionFailed, fmt.Sprintf("assertion %q failed", assertion), nil)
		}
	}
	return nil
}

// redactHeaders masks credential-bearing header values before logging.
func redactHeaders(headers map[string]string) map[string]string {
	out := make(map[string]string, len(headers))
	for k, v := range headers {
		switch k {
		case "Authorization", "authorization", "Proxy-Authorization", "Cookie", "cookie":
			out[k] = "[redacted]"
		default:
			out[k] = v
		}
	}
	return out
}
