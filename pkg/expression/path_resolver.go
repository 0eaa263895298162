//nolint:revive // exported
package expression

import (
	"fmt"
	"strconv"
	"strings"
)

// pathSegment is one step of a parsed path: either a map key or an array
// index.
type pathSegment struct {
	key     string
	index   int
	isIndex bool
}

// ResolvePath looks up a value in nested maps using dot notation and array
// indexing. Supports paths like:
//   - "name" (simple key)
//   - "node.response.body" (nested path)
//   - "items[0].id" (array index with nested path)
//
// Flat keys take priority: if the full path exists as a direct key in the
// map (e.g. an extracted variable literally named "response.userId"), that
// value is returned without path traversal.
func ResolvePath(data map[string]any, path string) (any, bool) {
	if data == nil || path == "" {
		return nil, false
	}

	path = strings.TrimSpace(path)

	if val, exists := data[path]; exists {
		return val, true
	}

	segments := parsePath(path)
	if len(segments) == 0 {
		return nil, false
	}

	var current any = data
	for _, seg := range segments {
		if seg.isIndex {
			switch arr := current.(type) {
			case []any:
				if seg.index < 0 || seg.index >= len(arr) {
					return nil, false
				}
				current = arr[seg.index]
			case []map[string]any:
				if seg.index < 0 || seg.index >= len(arr) {
					return nil, false
				}
				current = arr[seg.index]
			default:
				return nil, false
			}
			continue
		}

		m, ok := current.(map[string]any)
		if !ok {
			return nil, false
		}
		val, exists := m[seg.key]
		if !exists {
			return nil, false
		}
		current = val
	}

	return current, true
}

// SetPath sets a value at a dotted path, creating intermediate maps as
// needed. Array indices must reference existing arrays; SetPath never
// creates or grows arrays.
func SetPath(data map[string]any, path string, value any) error {
	if data == nil {
		return fmt.Errorf("cannot set path on nil map")
	}
	path = strings.TrimSpace(path)
	if path == "" {
		return ErrEmptyPath
	}

	segments := parsePath(path)
	if len(segments) == 0 {
		return fmt.Errorf("invalid path: %s", path)
	}

	var current any = data
	for i, seg := range segments[:len(segments)-1] {
		if seg.isIndex {
			switch arr := current.(type) {
			case []any:
				if seg.index < 0 || seg.index >= len(arr) {
					return fmt.Errorf("index %d out of bounds at segment %d", seg.index, i)
				}
				current = arr[seg.index]
			case []map[string]any:
				if seg.index < 0 || seg.index >= len(arr) {
					return fmt.Errorf("index %d out of bounds at segment %d", seg.index, i)
				}
				current = arr[seg.index]
			default:
				return fmt.Errorf("expected array at segment %d, got %T", i, current)
			}
			continue
		}

		m, ok := current.(map[string]any)
		if !ok {
			return fmt.Errorf("expected map at segment %d, got %T", i, current)
		}
		val, exists := m[seg.key]
		if !exists {
			newMap := make(map[string]any)
			m[seg.key] = newMap
			current = newMap
		} else {
			current = val
		}
	}

	last := segments[len(segments)-1]
	if last.isIndex {
		arr, ok := current.([]any)
		if !ok {
			return fmt.Errorf("expected array at final segment, got %T", current)
		}
		if last.index < 0 || last.index >= len(arr) {
			return fmt.Errorf("index %d out of bounds", last.index)
		}
		arr[last.index] = value
		return nil
	}

	m, ok := current.(map[string]any)
	if !ok {
		return fmt.Errorf("expected map at final segment, got %T", current)
	}
	m[last.key] = value
	return nil
}

// parsePath splits a path string into key and index segments.
// Examples:
//
//	"name" -> [key("name")]
//	"node.response" -> [key("node"), key("response")]
//	"items[0].id" -> [key("items"), index(0), key("id")]
func parsePath(path string) []pathSegment {
	if path == "" {
		return nil
	}

	var segments []pathSegment
	current := strings.Builder{}

	flushKey := func() {
		if current.Len() > 0 {
			segments = append(segments, pathSegment{key: current.String()})
			current.Reset()
		}
	}

	i := 0
	for i < len(path) {
		switch ch := path[i]; ch {
		case '.':
			flushKey()
			i++

		case '[':
			flushKey()
			closeIdx := strings.Index(path[i:], "]")
			if closeIdx == -1 {
				// Unterminated bracket, treat rest as a key
				current.WriteString(path[i:])
				i = len(path)
				break
			}

			idx, err := strconv.Atoi(path[i+1 : i+closeIdx])
			if err != nil {
				// Non-numeric index, keep the bracket as key text
				current.WriteByte(ch)
				i++
				break
			}

			segments = append(segments, pathSegment{index: idx, isIndex: true})
			i += closeIdx + 1

		case ']':
			i++

		default:
			current.WriteByte(ch)
			i++
		}
	}

	flushKey()
	return segments
}
