package expression

import (
	"context"
	"testing"

	"github.com/google/uuid"
	"github.com/oklog/ulid/v2"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestEvalBool(t *testing.T) {
	env := NewUnifiedEnv(map[string]any{
		"status": 200,
		"name":   "alice",
	})
	ctx := context.Background()

	tests := []struct {
		expr string
		want bool
	}{
		{"status == 200", true},
		{"status != 200", false},
		{"status >= 200 && status < 300", true},
		{`name == "alice"`, true},
		{`name in ["alice", "bob"]`, true},
	}

	for _, tt := range tests {
		t.Run(tt.expr, func(t *testing.T) {
			got, err := env.EvalBool(ctx, tt.expr)
			require.NoError(t, err)
			assert.Equal(t, tt.want, got)
		})
	}
}

func TestEvalBoolCompileError(t *testing.T) {
	env := NewUnifiedEnv(nil)

	_, err := env.EvalBool(context.Background(), "status ==")
	require.Error(t, err)

	var exprErr *ExpressionError
	require.ErrorAs(t, err, &exprErr)
	assert.Equal(t, "compile", exprErr.Phase)
}

func TestEvalInterpolatedBool(t *testing.T) {
	env := NewUnifiedEnv(map[string]any{"status_code": 200})
	ctx := context.Background()

	got, err := env.EvalInterpolatedBool(ctx, "{{status_code}} == 200")
	require.NoError(t, err)
	assert.True(t, got)

	got, err = env.EvalInterpolatedBool(ctx, "{{status_code}} == 404")
	require.NoError(t, err)
	assert.False(t, got)
}

func TestEvalInterpolatedBoolDeterministic(t *testing.T) {
	env := NewUnifiedEnv(map[string]any{"status_code": 200})
	ctx := context.Background()

	first, err := env.EvalInterpolatedBool(ctx, "{{status_code}} >= 200")
	require.NoError(t, err)
	for n := 0; n < 5; n++ {
		again, err := env.EvalInterpolatedBool(ctx, "{{status_code}} >= 200")
		require.NoError(t, err)
		assert.Equal(t, first, again)
	}
}

func TestEvalInterpolatedBoolUnresolvedToken(t *testing.T) {
	env := NewUnifiedEnv(nil)

	// The token survives verbatim and the leftover braces fail to compile.
	_, err := env.EvalInterpolatedBool(context.Background(), "{{missing}} == 200")
	assert.Error(t, err)
}

func TestEvalInterpolatedBoolEmpty(t *testing.T) {
	env := NewUnifiedEnv(nil)

	_, err := env.EvalInterpolatedBool(context.Background(), "  ")
	assert.ErrorIs(t, err, ErrEmptyExpression)
}

func TestEvalHelpers(t *testing.T) {
	env := NewUnifiedEnv(map[string]any{
		"node": map[string]any{"value": 5},
	})
	ctx := context.Background()

	got, err := env.Eval(ctx, `get("node.value")`)
	require.NoError(t, err)
	assert.Equal(t, 5, got)

	has, err := env.EvalBool(ctx, `has("node.value") && !has("node.other")`)
	require.NoError(t, err)
	assert.True(t, has)
}

func TestEvalBuiltins(t *testing.T) {
	env := NewUnifiedEnv(nil)
	ctx := context.Background()

	got, err := env.EvalString(ctx, "uuid()")
	require.NoError(t, err)
	_, err = uuid.Parse(got)
	assert.NoError(t, err)

	got, err = env.EvalString(ctx, "ulid()")
	require.NoError(t, err)
	_, err = ulid.Parse(got)
	assert.NoError(t, err)
}

func TestEvalInterpolatedNonExpression(t *testing.T) {
	env := NewUnifiedEnv(map[string]any{"greeting": "hello"})

	got, err := env.EvalInterpolated(context.Background(), "{{greeting}}")
	require.NoError(t, err)
	assert.Equal(t, "hello", got)
}

func TestEvalNilEnv(t *testing.T) {
	var env *UnifiedEnv

	_, err := env.Eval(context.Background(), "1 == 1")
	assert.ErrorIs(t, err, ErrNilEnv)
}
