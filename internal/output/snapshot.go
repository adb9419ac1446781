package output

import (
	"bytes"
	"encoding/json"
	"sort"
	"strconv"
	"strings"
)

// SnapshotExcludeFields lists fields that differ between equivalent runs
var SnapshotExcludeFields = []string{
	"version",
	"run.id",
	"run.createdAt",
	"run.durationMs",
}

// NormalizeForSnapshot removes time-varying fields for comparison
func NormalizeForSnapshot(data []byte) ([]byte, error) {
	// Parse JSON into a map
	var parsed map[string]interface{}
	if err := json.Unmarshal(data, &parsed); err != nil {
		return nil, err
	}

	// Remove excluded fields
	for _, field := range SnapshotExcludeFields {
		removeNestedField(parsed, field)
	}

	// Re-encode deterministically
	return DeterministicEncode(parsed)
}

// CompareSnapshots returns true if two encoded results are identical
// (ignoring run-varying fields). The string names the first differing
// top-level key when they are not.
func CompareSnapshots(a, b []byte) (bool, string) {
	// Normalize both snapshots
	normalizedA, err := NormalizeForSnapshot(a)
	if err != nil {
		return false, "failed to normalize snapshot A: " + err.Error()
	}

	normalizedB, err := NormalizeForSnapshot(b)
	if err != nil {
		return false, "failed to normalize snapshot B: " + err.Error()
	}

	if !bytes.Equal(normalizedA, normalizedB) {
		return false, "snapshots differ" + firstDifference(normalizedA, normalizedB)
	}

	return true, ""
}

// removeNestedField removes a nested field from a map using dot notation
// e.g., "run.createdAt" removes the "createdAt" field from the "run" object
func removeNestedField(data map[string]interface{}, path string) {
	parts := splitPath(path)
	if len(parts) == 0 {
		return
	}

	// Navigate to the parent object
	current := data
	for i := 0; i < len(parts)-1; i++ {
		next, ok := current[parts[i]]
		if !ok {
			return
		}

		nextMap, ok := next.(map[string]interface{})
		if !ok {
			return
		}

		current = nextMap
	}

	// Remove the final field
	delete(current, parts[len(parts)-1])
}

// splitPath splits a dot-separated path into parts
func splitPath(path string) []string {
	if path == "" {
		return nil
	}

	var parts []string
	for _, p := range strings.Split(path, ".") {
		if p != "" {
			parts = append(parts, p)
		}
	}
	return parts
}

// SnapshotEqual compares two values for equality, ignoring time-varying fields
func SnapshotEqual(a, b interface{}) bool {
	// Convert both to JSON
	aJSON, err := DeterministicEncode(a)
	if err != nil {
		return false
	}

	bJSON, err := DeterministicEncode(b)
	if err != nil {
		return false
	}

	// Compare using CompareSnapshots
	equal, _ := CompareSnapshots(aJSON, bJSON)
	return equal
}

// firstDifference names the first top-level key whose encoding differs.
func firstDifference(a, b []byte) string {
	var ma, mb map[string]json.RawMessage
	if json.Unmarshal(a, &ma) != nil || json.Unmarshal(b, &mb) != nil {
		return ""
	}
	keys := make([]string, 0, len(ma)+len(mb))
	for k := range ma {
		keys = append(keys, k)
	}
	for k := range mb {
		if _, ok := ma[k]; !ok {
			keys = append(keys, k)
		}
	}
	sort.Strings(keys)
	for _, k := range keys {
		if !bytes.Equal(ma[k], mb[k]) {
			return " at " + strconv.Quote(k)
		}
	}
	return ""
}
