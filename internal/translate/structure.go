package translate

import (
	"bytes"
	"encoding/json"
	"fmt"
	"strings"
)

// protectedKeys hold identifiers that must come back from the model
// unchanged.
var protectedKeys = map[string]bool{
	"id":          true,
	"slug":        true,
	"image":       true,
	"url":         true,
	"href":        true,
	"publishedAt": true,
	"createdAt":   true,
	"updatedAt":   true,
}

// CompareStructure reports the first difference between src and out that a
// translation is not allowed to introduce: a different JSON kind, a changed
// key set, a changed array length, or a changed non-text leaf. Strings that
// are absolute URLs or sit under an identifier key count as non-text.
func CompareStructure(src, out []byte) error {
	srcValue, err := decodeJSON(src)
	if err != nil {
		return fmt.Errorf("decode source: %w", err)
	}
	outValue, err := decodeJSON(out)
	if err != nil {
		return fmt.Errorf("decode translation: %w", err)
	}
	return compareValues("$", "", srcValue, outValue)
}

func decodeJSON(data []byte) (any, error) {
	dec := json.NewDecoder(bytes.NewReader(data))
	dec.UseNumber()
	var v any
	if err := dec.Decode(&v); err != nil {
		return nil, err
	}
	return v, nil
}

func compareValues(path, key string, src, out any) error {
	switch s := src.(type) {
	case map[string]any:
		o, ok := out.(map[string]any)
		if !ok {
			return fmt.Errorf("%s: expected object, got %s", path, kindOf(out))
		}
		if len(s) != len(o) {
			return fmt.Errorf("%s: key count changed from %d to %d", path, len(s), len(o))
		}
		for k, sv := range s {
			ov, ok := o[k]
			if !ok {
				return fmt.Errorf("%s: key %q missing", path, k)
			}
			if err := compareValues(path+"."+k, k, sv, ov); err != nil {
				return err
			}
		}
	case []any:
		o, ok := out.([]any)
		if !ok {
			return fmt.Errorf("%s: expected array, got %s", path, kindOf(out))
		}
		if len(s) != len(o) {
			return fmt.Errorf("%s: length changed from %d to %d", path, len(s), len(o))
		}
		for i := range s {
			if err := compareValues(fmt.Sprintf("%s[%d]", path, i), key, s[i], o[i]); err != nil {
				return err
			}
		}
	case string:
		o, ok := out.(string)
		if !ok {
			return fmt.Errorf("%s: expected string, got %s", path, kindOf(out))
		}
		if (protectedKeys[key] || isAbsoluteURL(s)) && s != o {
			return fmt.Errorf("%s: protected value changed", path)
		}
	default:
		if kindOf(src) != kindOf(out) {
			return fmt.Errorf("%s: expected %s, got %s", path, kindOf(src), kindOf(out))
		}
		if fmt.Sprint(src) != fmt.Sprint(out) {
			return fmt.Errorf("%s: value changed", path)
		}
	}
	return nil
}

func kindOf(v any) string {
	switch v.(type) {
	case map[string]any:
		return "object"
	case []any:
		return "array"
	case string:
		return "string"
	case json.Number:
		return "number"
	case bool:
		return "boolean"
	case nil:
		return "null"
	default:
		return fmt.Sprintf("%T", v)
	}
}

func isAbsoluteURL(s string) bool {
	return strings.HasPrefix(s, "http://") || strings.HasPrefix(s, "https://")
}
