//nolint:revive // exported
package expression

import (
	"errors"
	"fmt"
)

// Common errors
var (
	ErrNilEnv          = errors.New("cannot evaluate on nil UnifiedEnv")
	ErrEmptyPath       = errors.New("empty path")
	ErrEmptyExpression = errors.New("empty expression")
)

// ExpressionError represents a structured error from expression evaluation.
type ExpressionError struct {
	Expression string // The expression that failed
	Phase      string // "compile" or "run"
	Cause      error  // The underlying error
}

func (e *ExpressionError) Error() string {
	return fmt.Sprintf("expression %q failed during %s: %v", e.Expression, e.Phase, e.Cause)
}

func (e *ExpressionError) Unwrap() error {
	return e.Cause
}

// NewCompileError creates an error for compilation failures.
func NewCompileError(expr string, cause error) error {
	return &ExpressionError{
		Expression: expr,
		Phase:      "compile",
		Cause:      cause,
	}
}

// NewRunError creates an error for runtime evaluation failures.
func NewRunError(expr string, cause error) error {
	return &ExpressionError{
		Expression: expr,
		Phase:      "run",
		Cause:      cause,
	}
}

// FileReferenceError represents an error when reading a #file: reference.
type FileReferenceError struct {
	Path  string
	Cause error
}

func (e *FileReferenceError) Error() string {
	return fmt.Sprintf("failed to read file '%s': %v", e.Path, e.Cause)
}

func (e *FileReferenceError) Unwrap() error {
	return e.Cause
}

// EnvReferenceError represents an error when reading a #env: reference.
type EnvReferenceError struct {
	VarName string
	Cause   error
}

func (e *EnvReferenceError) Error() string {
	if e.Cause != nil {
		return fmt.Sprintf("environment variable '%s': %v", e.VarName, e.Cause)
	}
	return fmt.Sprintf("environment variable '%s' not found", e.VarName)
}

func (e *EnvReferenceError) Unwrap() error {
	return e.Cause
}
