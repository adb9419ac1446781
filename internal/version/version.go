// Package version holds build and schema version information.
package version

import "runtime"

// These variables can be overridden at build time using ldflags:
// go build -ldflags "-X reflexion/internal/version.Version=1.0.0 -X reflexion/internal/version.Commit=abc123"
var (
	// Version is the semantic version of the reflexion engine
	Version = "0.4.0"

	// Commit is the git commit hash (set at build time)
	Commit = "unknown"

	// BuildDate is the build timestamp (set at build time)
	BuildDate = "unknown"
)

// SnapshotSchema is bumped whenever the encoded analysis snapshot changes
// shape. Stored runs with a different schema are listed but not decoded.
const SnapshotSchema = 1

// Info returns a formatted version string
func Info() string {
	if Commit != "unknown" && len(Commit) > 7 {
		return Version + " (" + Commit[:7] + ")"
	}
	return Version
}

// Full returns complete version information
func Full() string {
	return "reflexion version " + Version + "\n" +
		"Commit: " + Commit + "\n" +
		"Built: " + BuildDate + "\n" +
		"Go: " + runtime.Version()
}

// Fields returns version information as a flat map for JSON output.
func Fields() map[string]interface{} {
	return map[string]interface{}{
		"version":        Version,
		"commit":         Commit,
		"buildDate":      BuildDate,
		"go":             runtime.Version(),
		"snapshotSchema": SnapshotSchema,
	}
}
