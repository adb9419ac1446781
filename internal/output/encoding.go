package output

import (
	"bytes"
	"encoding"
	"encoding/json"
	"fmt"
	"reflect"
	"strings"
)

// DeterministicEncode produces byte-identical JSON output
// - Stable key ordering (sorted alphabetically)
// - Float formatting: max 6 decimal places, no trailing zeros
// - Null/undefined fields omitted entirely
func DeterministicEncode(v interface{}) ([]byte, error) {
	normalized := normalizeValue(v)

	var buf bytes.Buffer
	encoder := json.NewEncoder(&buf)
	encoder.SetEscapeHTML(false)

	if err := encoder.Encode(normalized); err != nil {
		return nil, err
	}

	// Remove the trailing newline added by Encode
	result := buf.Bytes()
	if len(result) > 0 && result[len(result)-1] == '\n' {
		result = result[:len(result)-1]
	}

	return result, nil
}

// DeterministicEncodeIndented produces indented byte-identical JSON output
func DeterministicEncodeIndented(v interface{}, indent string) ([]byte, error) {
	compact, err := DeterministicEncode(v)
	if err != nil {
		return nil, err
	}

	var buf bytes.Buffer
	if err := json.Indent(&buf, compact, "", indent); err != nil {
		return nil, err
	}
	return buf.Bytes(), nil
}

var (
	jsonMarshalerType = reflect.TypeOf((*json.Marshaler)(nil)).Elem()
	textMarshalerType = reflect.TypeOf((*encoding.TextMarshaler)(nil)).Elem()
)

// normalizeValue recursively normalizes a value for deterministic encoding
func normalizeValue(v interface{}) interface{} {
	if v == nil {
		return nil
	}

	val := reflect.ValueOf(v)

	// Dereference pointers
	for val.Kind() == reflect.Ptr {
		if val.IsNil() {
			return nil
		}
		val = val.Elem()
	}

	// Types that encode themselves (enums, time.Time) are passed through as-is.
	if val.Type().Implements(jsonMarshalerType) || val.Type().Implements(textMarshalerType) {
		return val.Interface()
	}

	switch val.Kind() {
	case reflect.Map:
		return normalizeMap(val)
	case reflect.Slice, reflect.Array:
		return normalizeSlice(val)
	case reflect.Struct:
		return normalizeStruct(val)
	case reflect.Float32, reflect.Float64:
		return RoundFloat(val.Float())
	case reflect.Interface:
		if val.IsNil() {
			return nil
		}
		return normalizeValue(val.Interface())
	default:
		return val.Interface()
	}
}

// normalizeMap converts a map to a string-keyed map; encoding/json sorts its keys
func normalizeMap(val reflect.Value) map[string]interface{} {
	if val.IsNil() {
		return nil
	}

	result := make(map[string]interface{})
	iter := val.MapRange()
	for iter.Next() {
		key := mapKey(iter.Key())
		value := normalizeValue(iter.Value().Interface())
		if value != nil {
			result[key] = value
		}
	}

	if len(result) == 0 {
		return nil
	}

	return result
}

// mapKey renders a map key the way encoding/json would.
func mapKey(k reflect.Value) string {
	if k.Kind() == reflect.String {
		return k.String()
	}
	if tm, ok := k.Interface().(encoding.TextMarshaler); ok {
		if b, err := tm.MarshalText(); err == nil {
			return string(b)
		}
	}
	return fmt.Sprint(k.Interface())
}

// normalizeSlice normalizes a slice or array
func normalizeSlice(val reflect.Value) interface{} {
	if val.Kind() == reflect.Slice && val.IsNil() {
		return nil
	}

	length := val.Len()
	if length == 0 {
		return nil
	}

	result := make([]interface{}, length)
	for i := 0; i < length; i++ {
		result[i] = normalizeValue(val.Index(i).Interface())
	}

	return result
}

// normalizeStruct converts a struct to a map for deterministic JSON output.
// Anonymous struct fields without a json name are flattened into the parent.
func normalizeStruct(val reflect.Value) map[string]interface{} {
	result := make(map[string]interface{})
	collectStructFields(val, result)

	if len(result) == 0 {
		return nil
	}
	return result
}

func collectStructFields(val reflect.Value, result map[string]interface{}) {
	typ := val.Type()

	for i := 0; i < val.NumField(); i++ {
		field := typ.Field(i)
		fieldVal := val.Field(i)

		if !field.IsExported() {
			continue
		}

		jsonTag := field.Tag.Get("json")
		if jsonTag == "-" {
			continue
		}

		tagName, omitEmpty := parseJSONTag(jsonTag)

		if field.Anonymous && tagName == "" && fieldVal.Kind() == reflect.Struct {
			collectStructFields(fieldVal, result)
			continue
		}

		if tagName == "" {
			tagName = field.Name
		}

		normalized := normalizeValue(fieldVal.Interface())

		if omitEmpty && isZeroValue(normalized) {
			continue
		}

		if normalized != nil {
			result[tagName] = normalized
		}
	}
}

// parseJSONTag parses a JSON struct tag
func parseJSONTag(tag string) (name string, omitEmpty bool) {
	if tag == "" {
		return "", false
	}

	parts := strings.Split(tag, ",")
	name = parts[0]
	for _, opt := range parts[1:] {
		if opt == "omitempty" {
			omitEmpty = true
		}
	}

	return name, omitEmpty
}

// isZeroValue checks if a value is zero/empty
func isZeroValue(v interface{}) bool {
	if v == nil {
		return true
	}

	rv := reflect.ValueOf(v)
	switch rv.Kind() {
	case reflect.Bool:
		return !rv.Bool()
	case reflect.Int, reflect.Int8, reflect.Int16, reflect.Int32, reflect.Int64:
		return rv.Int() == 0
	case reflect.Uint, reflect.Uint8, reflect.Uint16, reflect.Uint32, reflect.Uint64:
		return rv.Uint() == 0
	case reflect.Float32, reflect.Float64:
		return rv.Float() == 0
	case reflect.String:
		return rv.Len() == 0
	case reflect.Slice, reflect.Map:
		return rv.Len() == 0
	default:
		return false
	}
}
