//nolint:revive // exported
package expression

import (
	"os"
	"strings"
)

const (
	// FileRefPrefix is the prefix for file references in templates.
	FileRefPrefix = "#file:"
	// EnvRefPrefix is the prefix for process environment variable references.
	EnvRefPrefix = "#env:"
)

// IsFileReference checks if a string is a file reference (#file:/path).
func IsFileReference(s string) bool {
	return strings.HasPrefix(strings.TrimSpace(s), FileRefPrefix)
}

// GetFilePath extracts the file path from a file reference.
// Returns empty string if not a file reference.
func GetFilePath(s string) string {
	s = strings.TrimSpace(s)
	if !strings.HasPrefix(s, FileRefPrefix) {
		return ""
	}
	return strings.TrimSpace(strings.TrimPrefix(s, FileRefPrefix))
}

// ReadFileContent reads the content of a file reference.
func ReadFileContent(fileRef string) (string, error) {
	path := GetFilePath(fileRef)
	if path == "" {
		return "", &FileReferenceError{Path: fileRef, Cause: ErrEmptyPath}
	}

	data, err := os.ReadFile(path) //nolint:gosec // G304: intentional file inclusion for #file: references
	if err != nil {
		return "", &FileReferenceError{Path: path, Cause: err}
	}

	return string(data), nil
}

// IsEnvReference checks if a string is an environment variable reference (#env:VAR).
func IsEnvReference(s string) bool {
	return strings.HasPrefix(strings.TrimSpace(s), EnvRefPrefix)
}

// GetEnvVarName extracts the environment variable name from a reference.
// Returns empty string if not an env reference.
func GetEnvVarName(s string) string {
	s = strings.TrimSpace(s)
	if !strings.HasPrefix(s, EnvRefPrefix) {
		return ""
	}
	return strings.TrimSpace(strings.TrimPrefix(s, EnvRefPrefix))
}

// ReadEnvVar reads the value of an environment variable reference.
func ReadEnvVar(envRef string) (string, error) {
	name := GetEnvVarName(envRef)
	if name == "" {
		return "", &EnvReferenceError{VarName: envRef, Cause: ErrEmptyPath}
	}

	value, ok := os.LookupEnv(name)
	if !ok {
		return "", &EnvReferenceError{VarName: name}
	}

	return value, nil
}

// IsVarPattern checks if a string is exactly one {{ key }} pattern with no
// surrounding text.
func IsVarPattern(s string) bool {
	s = strings.TrimSpace(s)
	return strings.HasPrefix(s, TemplatePrefix) && strings.HasSuffix(s, TemplateSuffix) &&
		strings.Count(s, TemplatePrefix) == 1 && strings.Count(s, TemplateSuffix) == 1
}
