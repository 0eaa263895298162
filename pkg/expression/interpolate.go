//nolint:revive // exported
package expression

import (
	"fmt"
	"strings"
)

// Template token delimiters. Whitespace inside the braces is trimmed before
// lookup, so {{ host }} and {{host}} resolve the same key.
const (
	TemplatePrefix     = "{{"
	TemplateSuffix     = "}}"
	templatePrefixSize = len(TemplatePrefix)
	templateSuffixSize = len(TemplateSuffix)
)

// Interpolate replaces {{ varKey }} patterns with resolved values from the
// environment. Supports:
//   - {{ path.to.value }} - nested path resolution
//   - {{ items[0].id }} - array access
//   - {{ #env:VAR_NAME }} - process environment variables
//   - {{ #file:/path/to/file }} - file contents
//
// Tokens whose reference cannot be resolved are preserved verbatim, so the
// literal {{name}} surfaces later at dispatch or assertion time where it is
// diagnosable. Resolution is single-pass: a resolved value is inserted as-is
// and never re-scanned, so a value that itself contains {{ }} syntax comes
// through literally. Interpolating again therefore changes nothing unless a
// context value carries template syntax of its own; values without template
// syntax make the operation idempotent.
func (e *UnifiedEnv) Interpolate(raw string) string {
	if !HasVars(raw) {
		return raw
	}

	var result strings.Builder
	remaining := raw

	for {
		startIndex := strings.Index(remaining, TemplatePrefix)
		if startIndex == -1 {
			result.WriteString(remaining)
			break
		}

		endIndex := strings.Index(remaining[startIndex:], TemplateSuffix)
		if endIndex == -1 {
			// No closing suffix, append the rest untouched
			result.WriteString(remaining)
			break
		}

		result.WriteString(remaining[:startIndex])

		token := remaining[startIndex : startIndex+endIndex+templateSuffixSize]
		varRef := strings.TrimSpace(remaining[startIndex+templatePrefixSize : startIndex+endIndex])

		if strVal, ok := e.resolveVar(varRef); ok {
			result.WriteString(strVal)
		} else {
			result.WriteString(token)
		}

		remaining = remaining[startIndex+endIndex+templateSuffixSize:]
	}

	return result.String()
}

// InterpolateValue applies Interpolate recursively over strings, []any
// slices, and map[string]any structures of arbitrary depth. Non-string
// leaves (numbers, booleans, nil) pass through unchanged.
func (e *UnifiedEnv) InterpolateValue(value any) any {
	switch v := value.(type) {
	case string:
		return e.Interpolate(v)
	case []any:
		out := make([]any, len(v))
		for i, item := range v {
			out[i] = e.InterpolateValue(item)
		}
		return out
	case map[string]any:
		out := make(map[string]any, len(v))
		for k, item := range v {
			out[k] = e.InterpolateValue(item)
		}
		return out
	default:
		return value
	}
}

// InterpolateMap interpolates every value of a flat string map.
func (e *UnifiedEnv) InterpolateMap(m map[string]string) map[string]string {
	if m == nil {
		return nil
	}
	out := make(map[string]string, len(m))
	for k, v := range m {
		out[k] = e.Interpolate(v)
	}
	return out
}

// ResolveValue resolves an input that may contain {{ ref }} patterns.
//   - If input is exactly "{{ ref }}", returns the typed value (bool, number, ...)
//   - If input mixes text and {{ }}, returns the interpolated string
//   - If input has no template syntax, returns it as-is
//
// An unresolved lone reference comes back as the original raw string.
func (e *UnifiedEnv) ResolveValue(raw string) any {
	trimmed := strings.TrimSpace(raw)

	if strings.HasPrefix(trimmed, TemplatePrefix) && strings.HasSuffix(trimmed, TemplateSuffix) {
		inner := trimmed[templatePrefixSize : len(trimmed)-templateSuffixSize]
		if !strings.Contains(inner, TemplatePrefix) && !strings.Contains(inner, TemplateSuffix) {
			ref := strings.TrimSpace(inner)
			if IsEnvReference(ref) || IsFileReference(ref) {
				if strVal, ok := e.resolveVar(ref); ok {
					return strVal
				}
				return raw
			}
			if val, ok := e.Get(ref); ok {
				return val
			}
			return raw
		}
	}

	return e.Interpolate(raw)
}

// resolveVar resolves a single reference and reports whether it was found.
func (e *UnifiedEnv) resolveVar(varRef string) (string, bool) {
	switch {
	case IsEnvReference(varRef):
		value, err := ReadEnvVar(varRef)
		if err != nil {
			return "", false
		}
		return value, true
	case IsFileReference(varRef):
		content, err := ReadFileContent(varRef)
		if err != nil {
			return "", false
		}
		return content, true
	default:
		val, ok := e.Get(varRef)
		if !ok {
			return "", false
		}
		return anyToString(val), true
	}
}

// anyToString converts a value to its string representation.
// nil coerces to the empty string.
func anyToString(v any) string {
	if v == nil {
		return ""
	}

	switch val := v.(type) {
	case string:
		return val
	case bool:
		if val {
			return "true"
		}
		return "false"
	case int:
		return fmt.Sprintf("%d", val)
	case int64:
		return fmt.Sprintf("%d", val)
	case float64:
		// Handle integers stored as float64 (common with JSON)
		if val == float64(int64(val)) {
			return fmt.Sprintf("%d", int64(val))
		}
		return fmt.Sprintf("%g", val)
	case []byte:
		return string(val)
	default:
		return fmt.Sprintf("%v", val)
	}
}

// HasVars checks if a string contains any {{ }} variable references.
func HasVars(raw string) bool {
	return strings.Contains(raw, TemplatePrefix) && strings.Contains(raw, TemplateSuffix)
}

// ExtractVarRefs extracts all variable references from a string without
// resolving them. Returns a deduplicated list, including #env: and #file:
// refs.
func ExtractVarRefs(raw string) []string {
	if raw == "" {
		return nil
	}

	seen := make(map[string]struct{})
	var result []string
	remaining := raw

	for {
		startIndex := strings.Index(remaining, TemplatePrefix)
		if startIndex == -1 {
			break
		}

		endIndex := strings.Index(remaining[startIndex:], TemplateSuffix)
		if endIndex == -1 {
			break
		}

		varRef := strings.TrimSpace(remaining[startIndex+templatePrefixSize : startIndex+endIndex])
		if varRef != "" {
			if _, exists := seen[varRef]; !exists {
				seen[varRef] = struct{}{}
				result = append(result, varRef)
			}
		}

		remaining = remaining[startIndex+endIndex+templateSuffixSize:]
	}

	return result
}
