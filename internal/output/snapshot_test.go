package output

import (
	"strings"
	"testing"
)

func TestNormalizeForSnapshot(t *testing.T) {
	tests := []struct {
		name    string
		input   string
		want    string
		wantErr bool
	}{
		{
			name:  "remove graph version",
			input: `{"version": 7, "edges": [{"source": "A", "target": "B"}]}`,
			want:  `{"edges":[{"source":"A","target":"B"}]}`,
		},
		{
			name: "remove run metadata",
			input: `{
				"summary": {"divergent": 1},
				"run": {
					"id": "3f2c",
					"createdAt": "2026-01-01T00:00:00Z",
					"durationMs": 12,
					"digest": "abc"
				}
			}`,
			want: `{"run":{"digest":"abc"},"summary":{"divergent":1}}`,
		},
		{
			name:  "no volatile fields",
			input: `{"summary": {"convergent": 2}}`,
			want:  `{"summary":{"convergent":2}}`,
		},
		{
			name:    "invalid JSON",
			input:   `{invalid json}`,
			wantErr: true,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, err := NormalizeForSnapshot([]byte(tt.input))
			if (err != nil) != tt.wantErr {
				t.Fatalf("NormalizeForSnapshot() error = %v, wantErr %v", err, tt.wantErr)
			}
			if !tt.wantErr && string(got) != tt.want {
				t.Errorf("NormalizeForSnapshot() = %s, want %s", got, tt.want)
			}
		})
	}
}

func TestCompareSnapshots(t *testing.T) {
	tests := []struct {
		name      string
		a         string
		b         string
		wantEqual bool
		wantMsg   string
	}{
		{
			name:      "versions differ only",
			a:         `{"version": 1, "edges": [{"state": "convergent"}]}`,
			b:         `{"version": 4, "edges": [{"state": "convergent"}]}`,
			wantEqual: true,
		},
		{
			name:      "state differs",
			a:         `{"version": 1, "edges": [{"state": "convergent"}]}`,
			b:         `{"version": 1, "edges": [{"state": "divergent"}]}`,
			wantEqual: false,
			wantMsg:   `snapshots differ at "edges"`,
		},
		{
			name:      "key missing on one side",
			a:         `{"edges": [{"state": "absent"}]}`,
			b:         `{"edges": [{"state": "absent"}], "unmapped": {"nodes": ["x"]}}`,
			wantEqual: false,
			wantMsg:   `snapshots differ at "unmapped"`,
		},
		{
			name:      "invalid JSON in a",
			a:         `{invalid}`,
			b:         `{"edges": []}`,
			wantEqual: false,
		},
		{
			name:      "invalid JSON in b",
			a:         `{"edges": []}`,
			b:         `{invalid}`,
			wantEqual: false,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			gotEqual, gotMsg := CompareSnapshots([]byte(tt.a), []byte(tt.b))
			if gotEqual != tt.wantEqual {
				t.Errorf("CompareSnapshots() equal = %v, want %v (%s)", gotEqual, tt.wantEqual, gotMsg)
			}
			if tt.wantMsg != "" && gotMsg != tt.wantMsg {
				t.Errorf("CompareSnapshots() msg = %q, want %q", gotMsg, tt.wantMsg)
			}
		})
	}
}

func TestSnapshotEqual(t *testing.T) {
	type edge struct {
		Source string `json:"source"`
		Target string `json:"target"`
		State  string `json:"state"`
	}
	type result struct {
		Version uint64 `json:"version"`
		Edges   []edge `json:"edges"`
	}

	a := result{Version: 1, Edges: []edge{{"A", "B", "convergent"}}}
	b := result{Version: 9, Edges: []edge{{"A", "B", "convergent"}}}
	c := result{Version: 1, Edges: []edge{{"A", "B", "absent"}}}

	if !SnapshotEqual(a, b) {
		t.Error("results differing only in version should be equal")
	}
	if SnapshotEqual(a, c) {
		t.Error("results with different states should not be equal")
	}
}

func TestRemoveNestedField(t *testing.T) {
	data := map[string]interface{}{
		"run": map[string]interface{}{"id": "x", "digest": "d"},
		"top": "keep",
	}

	removeNestedField(data, "run.id")
	removeNestedField(data, "missing.path")
	removeNestedField(data, "top.child")

	run := data["run"].(map[string]interface{})
	if _, ok := run["id"]; ok {
		t.Error("run.id should be removed")
	}
	if run["digest"] != "d" {
		t.Error("run.digest should be kept")
	}
	if data["top"] != "keep" {
		t.Error("non-map parent should be left alone")
	}
}

func TestSplitPath(t *testing.T) {
	tests := []struct {
		path string
		want string
	}{
		{"", ""},
		{"version", "version"},
		{"run.createdAt", "run|createdAt"},
		{".a..b.", "a|b"},
	}

	for _, tt := range tests {
		if got := strings.Join(splitPath(tt.path), "|"); got != tt.want {
			t.Errorf("splitPath(%q) = %q, want %q", tt.path, got, tt.want)
		}
	}
}
