package vocabulary

import "fmt"

// ValueKind is the expected kind of an attribute value in an entity type's
// declared schema.
type ValueKind string

const (
	KindString ValueKind = "string"
	KindInt    ValueKind = "int"
	KindFloat  ValueKind = "float"
	KindBool   ValueKind = "bool"
	KindList   ValueKind = "list"
	KindMap    ValueKind = "map"
	// KindAny accepts any value. Used for open metadata slots.
	KindAny ValueKind = "any"
)

// IsValid reports whether k is a known value kind.
func (k ValueKind) IsValid() bool {
	switch k {
	case KindString, KindInt, KindFloat, KindBool, KindList, KindMap, KindAny:
		return true
	}
	return false
}

// String returns the string representation of the value kind.
func (k ValueKind) String() string {
	return string(k)
}

// CheckValue verifies that v conforms to kind k. Integral values arrive as
// int, int64, or float64 with no fraction depending on the decoding path
// (JSON decodes all numbers to float64), so KindInt accepts all three.
func (k ValueKind) CheckValue(v any) error {
	if v == nil {
		return nil
	}
	switch k {
	case KindAny:
		return nil
	case KindString:
		if _, ok := v.(string); ok {
			return nil
		}
	case KindInt:
		switch n := v.(type) {
		case int, int32, int64:
			return nil
		case float64:
			if n == float64(int64(n)) {
				return nil
			}
		}
	case KindFloat:
		switch v.(type) {
		case float32, float64, int, int64:
			return nil
		}
	case KindBool:
		if _, ok := v.(bool); ok {
			return nil
		}
	case KindList:
		if _, ok := v.([]any); ok {
			return nil
		}
		if _, ok := v.([]string); ok {
			return nil
		}
	case KindMap:
		if _, ok := v.(map[string]any); ok {
			return nil
		}
		if _, ok := v.(map[string]string); ok {
			return nil
		}
	}
	return fmt.Errorf("value %v (%T) is not %s", v, v, k)
}

// AsInt coerces an attribute value that passed a KindInt check to int.
func AsInt(v any) (int, bool) {
	switch n := v.(type) {
	case int:
		return n, true
	case int32:
		return int(n), true
	case int64:
		return int(n), true
	case float64:
		if n == float64(int64(n)) {
			return int(n), true
		}
	}
	return 0, false
}
