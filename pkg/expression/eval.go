//nolint:revive // exported
package expression

import (
	"context"
	"fmt"
	"strings"

	"github.com/expr-lang/expr"
	"github.com/expr-lang/expr/vm"
)

// Eval evaluates a pure expr-lang expression and returns the result.
// This is the fast path for condition fields - NO {{ }} interpolation.
// Use Interpolate() for text fields that need {{ }} support.
func (e *UnifiedEnv) Eval(_ context.Context, exprStr string) (any, error) {
	if e == nil {
		return nil, ErrNilEnv
	}

	env := e.buildExprEnv()

	program, err := e.compileExpr(exprStr, compileModeAny)
	if err != nil {
		return nil, err
	}

	output, err := expr.Run(program, env)
	if err != nil {
		return nil, NewRunError(exprStr, err)
	}

	return output, nil
}

// EvalInterpolated first interpolates {{ }} patterns, then evaluates the
// result. Use this when an expression's operands come from templates, e.g.
// "{{status_code}} == 200".
func (e *UnifiedEnv) EvalInterpolated(ctx context.Context, exprStr string) (any, error) {
	if e == nil {
		return nil, ErrNilEnv
	}

	interpolated := exprStr
	if HasVars(exprStr) {
		interpolated = e.Interpolate(exprStr)

		// If the entire string was just a variable reference that got
		// replaced and the result is not an expression, return it as-is.
		if !looksLikeExpression(interpolated) {
			return interpolated, nil
		}
	}

	return e.Eval(ctx, interpolated)
}

// EvalBool evaluates a pure expr-lang expression as a boolean.
func (e *UnifiedEnv) EvalBool(_ context.Context, exprStr string) (bool, error) {
	if e == nil {
		return false, ErrNilEnv
	}

	env := e.buildExprEnv()

	program, err := e.compileExpr(exprStr, compileModeBool)
	if err != nil {
		return false, err
	}

	output, err := expr.Run(program, env)
	if err != nil {
		return false, NewRunError(exprStr, err)
	}

	result, ok := output.(bool)
	if !ok {
		return false, fmt.Errorf("expression did not evaluate to bool, got %T", output)
	}

	return result, nil
}

// EvalInterpolatedBool interpolates {{ }} patterns and evaluates the result
// as a boolean. The decision path for condition nodes.
func (e *UnifiedEnv) EvalInterpolatedBool(ctx context.Context, exprStr string) (bool, error) {
	if e == nil {
		return false, ErrNilEnv
	}
	if strings.TrimSpace(exprStr) == "" {
		return false, ErrEmptyExpression
	}

	interpolated := exprStr
	if HasVars(exprStr) {
		interpolated = e.Interpolate(exprStr)
	}
	return e.EvalBool(ctx, interpolated)
}

// EvalString evaluates an expression and returns the result as a string.
func (e *UnifiedEnv) EvalString(ctx context.Context, exprStr string) (string, error) {
	if e == nil {
		return "", ErrNilEnv
	}

	result, err := e.Eval(ctx, exprStr)
	if err != nil {
		return "", err
	}

	return anyToString(result), nil
}

// buildExprEnv creates the environment map for expr-lang evaluation.
// Includes the data, custom functions, and built-in helper functions.
func (e *UnifiedEnv) buildExprEnv() map[string]any {
	env := make(map[string]any, len(e.data)+len(e.customFuncs)+4)

	for k, v := range e.data {
		env[k] = v
	}

	for k, v := range e.customFuncs {
		env[k] = v
	}

	env["get"] = e.helperGet
	env["has"] = e.helperHas
	env["uuid"] = helperUUID
	env["ulid"] = helperULID

	return env
}

// helperGet is available in expressions for dynamic path lookup.
// Usage: get("dynamic.path")
func (e *UnifiedEnv) helperGet(path string) any {
	value, ok := e.Get(path)
	if !ok {
		return nil
	}
	return value
}

// helperHas is available in expressions for checking path existence.
// Usage: has("path.to.check")
func (e *UnifiedEnv) helperHas(path string) bool {
	return e.Has(path)
}

// compileExpr compiles an expression with caching. Programs are compiled
// without a typed env (AllowUndefinedVariables) so a cached program is valid
// for any data map.
func (e *UnifiedEnv) compileExpr(exprStr string, mode compileMode) (*vm.Program, error) {
	key := programCacheKey{expression: exprStr, mode: mode}
	if cached, ok := programCache.Load(key); ok {
		return cached.(*vm.Program), nil
	}

	options := []expr.Option{expr.AllowUndefinedVariables()}
	switch mode {
	case compileModeBool:
		options = append(options, expr.AsBool())
	default:
		options = append(options, expr.AsAny())
	}

	program, err := expr.Compile(exprStr, options...)
	if err != nil {
		return nil, NewCompileError(exprStr, err)
	}

	programCache.Store(key, program)
	return program, nil
}

// looksLikeExpression checks if a string looks like an expr-lang expression.
// Used to decide whether an interpolation result should be evaluated or
// returned as-is.
func looksLikeExpression(s string) bool {
	s = strings.TrimSpace(s)
	if s == "" {
		return false
	}

	for _, op := range []string{"==", "!=", ">=", "<=", ">", "<", "&&", "||", "+", "-", "*", "/", "%", "!", "(", "["} {
		if strings.Contains(s, op) {
			return true
		}
	}

	keywords := []string{"true", "false", "nil", "null", "not ", "and ", "or "}
	lower := strings.ToLower(s)
	for _, kw := range keywords {
		if strings.HasPrefix(lower, kw) || lower == strings.TrimSpace(kw) {
			return true
		}
	}

	return false
}
