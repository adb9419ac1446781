// Package output provides deterministic JSON encoding for analysis results.
//
// Identical inputs must produce byte-identical output so that two runs over
// the same model, facts and mapping can be compared with bytes.Equal, and so
// that the snapshot store can key runs by content digest.
//
// # JSON Encoding Rules
//
// DeterministicEncode produces byte-identical output by:
//
//  1. Stable key ordering: object keys are sorted alphabetically
//  2. Float formatting: rounded to max 6 decimal places
//  3. Null handling: nil fields and empty collections are omitted
//  4. Self-encoding types (json.Marshaler, encoding.TextMarshaler) are kept as-is
//
// Callers are responsible for the order of slices; the engine sorts every
// exported list by (source, target, kind).
//
// # Snapshot Comparison
//
// CompareSnapshots ignores the fields in SnapshotExcludeFields, which change
// between runs that are otherwise equivalent (graph version, run timings).
package output
