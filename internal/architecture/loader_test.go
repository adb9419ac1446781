package architecture

import (
	"os"
	"path/filepath"
	"strings"
	"testing"
)

const tomlModel = `
version = 1

[[component]]
name = "Application"

[[component]]
name = "Services"
parent = "Application"
doc = "use cases"

[[component]]
name = "Infrastructure"

[[contract]]
source = "Application"
target = "Infrastructure"
rule = "allow"

[[contract]]
source = "Infrastructure"
target = "Application"
kind = "calls"
rule = "must-exist"

[[contract]]
source = "Application.Services"
target = "Infrastructure"

[[style]]
name = "thin-adapter"
target = "Infrastructure"
max_edges = 5
`

const yamlModel = `
version: 1
components:
  - name: Application
  - name: Services
    parent: Application
  - name: Infrastructure
contracts:
  - source: Application
    target: Infrastructure
    rule: forbid
styles:
  - source: Application.Services
    max_edges: 0
`

func writeFile(t *testing.T, name, content string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), name)
	if err := os.WriteFile(path, []byte(content), 0644); err != nil {
		t.Fatalf("Failed to write %s: %v", name, err)
	}
	return path
}

func TestLoadFile_TOML(t *testing.T) {
	m, err := LoadFile(writeFile(t, ModelFile, tomlModel))
	if err != nil {
		t.Fatalf("LoadFile() error = %v", err)
	}

	if len(m.Components) != 3 {
		t.Fatalf("len(Components) = %d, want 3", len(m.Components))
	}
	if m.Components[1].QualifiedName() != "Application.Services" || m.Components[1].Doc != "use cases" {
		t.Errorf("Components[1] = %+v", m.Components[1])
	}

	want := []Contract{
		{Source: "Application", Target: "Infrastructure", Kind: DefaultKind, Rule: RuleAllow},
		{Source: "Infrastructure", Target: "Application", Kind: "calls", Rule: RuleMustExist},
		{Source: "Application.Services", Target: "Infrastructure", Kind: DefaultKind, Rule: RuleDeclared},
	}
	if len(m.Contracts) != len(want) {
		t.Fatalf("len(Contracts) = %d, want %d", len(m.Contracts), len(want))
	}
	for i := range want {
		if m.Contracts[i] != want[i] {
			t.Errorf("Contracts[%d] = %+v, want %+v", i, m.Contracts[i], want[i])
		}
	}

	if len(m.Styles) != 1 {
		t.Fatalf("len(Styles) = %d, want 1", len(m.Styles))
	}
	s := m.Styles[0]
	if s.Name != "thin-adapter" || s.Source != Wildcard || s.Kind != Wildcard || s.MaxEdges != 5 {
		t.Errorf("Styles[0] = %+v", s)
	}

	if _, err := NewIndex(m, DefaultLimits()); err != nil {
		t.Errorf("loaded model should validate: %v", err)
	}
}

func TestLoadFile_YAML(t *testing.T) {
	m, err := LoadFile(writeFile(t, "architecture.yaml", yamlModel))
	if err != nil {
		t.Fatalf("LoadFile() error = %v", err)
	}

	if len(m.Components) != 3 || len(m.Contracts) != 1 || len(m.Styles) != 1 {
		t.Fatalf("LoadFile() = %+v", m)
	}
	if m.Contracts[0].Rule != RuleForbid {
		t.Errorf("Rule = %s, want forbid", m.Contracts[0].Rule)
	}
	if m.Styles[0].Name != "style-1" || m.Styles[0].Target != Wildcard {
		t.Errorf("unnamed style rule should get a generated name and wildcards: %+v", m.Styles[0])
	}
}

func TestLoadFile_Errors(t *testing.T) {
	tests := []struct {
		name     string
		file     string
		content  string
		wantText string
	}{
		{"unknown extension", "model.ini", "", "unsupported architecture model format"},
		{"bad toml", "model.toml", "[[component]\nname=", "failed to parse"},
		{"bad rule", "model.toml", "[[contract]]\nsource='A'\ntarget='B'\nrule='sometimes'", "unknown contract rule"},
		{"future version", "model.yaml", "version: 2", "unsupported architecture model version"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := LoadFile(writeFile(t, tt.file, tt.content))
			if err == nil || !strings.Contains(err.Error(), tt.wantText) {
				t.Errorf("LoadFile() error = %v, want to contain %q", err, tt.wantText)
			}
		})
	}

	if _, err := LoadFile(filepath.Join(t.TempDir(), "missing.toml")); err == nil {
		t.Error("LoadFile() on a missing file should fail")
	}
}
