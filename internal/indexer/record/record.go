// Package record resolves dot-path fields ("building.name") on the opaque
// records the search engine indexes. Records come from the application's
// CRUD layer, usually decoded JSON, so the package works on maps and slices
// of any and reports a missing path as an explicit absent value.
package record

import (
	"bytes"
	"encoding/json"
	"fmt"
	"strconv"
	"strings"
	"time"
)

// FieldAccessible is satisfied by anything the index builder can read
// fields from. Lookup returns false when the path does not resolve or
// resolves to nil.
type FieldAccessible interface {
	Lookup(path string) (any, bool)
}

// Map is a decoded JSON object.
type Map map[string]any

// Lookup implements FieldAccessible.
func (m Map) Lookup(path string) (any, bool) {
	return GetNestedValue(map[string]any(m), path)
}

// FromJSON decodes a JSON object into a Map. Numbers are kept as
// json.Number so identifiers survive without float rounding.
func FromJSON(data []byte) (Map, error) {
	dec := json.NewDecoder(bytes.NewReader(data))
	dec.UseNumber()
	var m Map
	if err := dec.Decode(&m); err != nil {
		return nil, fmt.Errorf("decoding record: %w", err)
	}
	return m, nil
}

// GetNestedValue walks obj along the dot-separated path. Map keys are
// matched exactly; a numeric segment indexes into a slice.
func GetNestedValue(obj any, path string) (any, bool) {
	if obj == nil || path == "" {
		return nil, false
	}
	cur := obj
	for _, key := range strings.Split(path, ".") {
		switch node := cur.(type) {
		case map[string]any:
			v, ok := node[key]
			if !ok {
				return nil, false
			}
			cur = v
		case Map:
			v, ok := node[key]
			if !ok {
				return nil, false
			}
			cur = v
		case []any:
			i, err := strconv.Atoi(key)
			if err != nil || i < 0 || i >= len(node) {
				return nil, false
			}
			cur = node[i]
		case FieldAccessible:
			v, ok := node.Lookup(key)
			if !ok {
				return nil, false
			}
			cur = v
		default:
			return nil, false
		}
		if cur == nil {
			return nil, false
		}
	}
	return cur, true
}

// Stringify renders a field value the way it is shown to users, which is
// also the text that gets tokenised. Slices are joined with spaces.
func Stringify(v any) string {
	switch val := v.(type) {
	case nil:
		return ""
	case string:
		return val
	case json.Number:
		return val.String()
	case float64:
		return strconv.FormatFloat(val, 'f', -1, 64)
	case float32:
		return strconv.FormatFloat(float64(val), 'f', -1, 32)
	case int:
		return strconv.Itoa(val)
	case int64:
		return strconv.FormatInt(val, 10)
	case bool:
		return strconv.FormatBool(val)
	case time.Time:
		return val.Format(time.RFC3339)
	case fmt.Stringer:
		return val.String()
	case []any:
		parts := make([]string, 0, len(val))
		for _, item := range val {
			if s := Stringify(item); s != "" {
				parts = append(parts, s)
			}
		}
		return strings.Join(parts, " ")
	case []string:
		return strings.Join(val, " ")
	case map[string]any, Map:
		data, err := json.Marshal(val)
		if err != nil {
			return ""
		}
		return string(data)
	default:
		return fmt.Sprint(val)
	}
}
