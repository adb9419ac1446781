package mapping

import (
	"errors"
	"os"
	"path/filepath"
	"testing"

	rerrors "reflexion/internal/errors"
)

func TestTable_Set(t *testing.T) {
	tbl := New()
	if err := tbl.Set("a.go", "UI", OriginRule); err != nil {
		t.Fatalf("Set() error = %v", err)
	}
	if err := tbl.Set("a.go", "UI", OriginManual); err != nil {
		t.Fatalf("Set() same component error = %v", err)
	}
	if e, _ := tbl.Entry("a.go"); e.Origin != OriginManual {
		t.Errorf("Origin = %q, want manual", e.Origin)
	}

	err := tbl.Set("a.go", "Core", OriginManual)
	if !errors.Is(err, ErrMappingExists) {
		t.Fatalf("Set() conflicting error = %v, want ErrMappingExists", err)
	}
	if rerrors.CodeOf(err) != rerrors.MappingConflict {
		t.Errorf("CodeOf() = %q", rerrors.CodeOf(err))
	}
	if c, _ := tbl.Lookup("a.go"); c != "UI" {
		t.Errorf("Lookup() after failed Set = %q, want UI", c)
	}
}

func TestTable_UnmappedEntries(t *testing.T) {
	tbl := New()
	if err := tbl.Set("b.go", "", OriginRule); err != nil {
		t.Fatal(err)
	}
	if _, ok := tbl.Lookup("b.go"); ok {
		t.Error("Lookup() should report explicit unmapped node as unmapped")
	}
	e, ok := tbl.Entry("b.go")
	if !ok || e.Origin != OriginUnmapped {
		t.Errorf("Entry() = %+v, %v", e, ok)
	}

	// an unmapped node may later be mapped with Set
	if err := tbl.Set("b.go", "Core", OriginManual); err != nil {
		t.Errorf("Set() on unmapped entry error = %v", err)
	}
}

func TestTable_SetOverwriteAndRemove(t *testing.T) {
	tbl := New()
	if prev, had := tbl.SetOverwrite("a.go", "UI", OriginManual); had || prev != "" {
		t.Errorf("SetOverwrite() on new node = %q, %v", prev, had)
	}
	if prev, had := tbl.SetOverwrite("a.go", "Core", OriginManual); !had || prev != "UI" {
		t.Errorf("SetOverwrite() = %q, %v, want UI, true", prev, had)
	}
	if prev, had := tbl.Remove("a.go"); !had || prev != "Core" {
		t.Errorf("Remove() = %q, %v", prev, had)
	}
	if tbl.Len() != 0 {
		t.Errorf("Len() = %d, want 0", tbl.Len())
	}
}

func TestTable_CloneIsIndependent(t *testing.T) {
	tbl, err := FromEntries([]Entry{{Node: "b.go", Component: "Core"}, {Node: "a.go", Component: "UI"}})
	if err != nil {
		t.Fatal(err)
	}
	c := tbl.Clone()
	c.SetOverwrite("a.go", "Data", OriginManual)

	if got, _ := tbl.Lookup("a.go"); got != "UI" {
		t.Errorf("original changed to %q", got)
	}
	entries := tbl.Entries()
	if len(entries) != 2 || entries[0].Node != "a.go" || entries[1].Node != "b.go" {
		t.Errorf("Entries() = %+v", entries)
	}
}

func TestParseOrigin(t *testing.T) {
	for in, want := range map[string]Origin{"": OriginManual, "rule": OriginRule, "unmapped": OriginUnmapped} {
		got, err := ParseOrigin(in)
		if err != nil || got != want {
			t.Errorf("ParseOrigin(%q) = %q, %v", in, got, err)
		}
	}
	if _, err := ParseOrigin("guess"); err == nil {
		t.Error("ParseOrigin(guess) should fail")
	}
}

func TestLoadFile(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, MappingFile)
	doc := `
version = 1

[[map]]
node = "ui/login.go"
component = "UI"
origin = "rule"

[[map]]
node = "vendor/lib.go"
origin = "unmapped"
`
	if err := os.WriteFile(path, []byte(doc), 0644); err != nil {
		t.Fatal(err)
	}
	tbl, err := LoadFile(path)
	if err != nil {
		t.Fatalf("LoadFile() error = %v", err)
	}
	if c, ok := tbl.Lookup("ui/login.go"); !ok || c != "UI" {
		t.Errorf("Lookup(ui/login.go) = %q, %v", c, ok)
	}
	if _, ok := tbl.Lookup("vendor/lib.go"); ok {
		t.Error("vendor/lib.go should be unmapped")
	}
}

func TestLoadFile_Errors(t *testing.T) {
	dir := t.TempDir()
	cases := map[string]string{
		"conflict.toml": "[[map]]\nnode = \"a\"\ncomponent = \"X\"\n[[map]]\nnode = \"a\"\ncomponent = \"Y\"\n",
		"nonode.toml":   "[[map]]\ncomponent = \"X\"\n",
		"origin.toml":   "[[map]]\nnode = \"a\"\ncomponent = \"X\"\norigin = \"guess\"\n",
		"unknown.toml":  "[[map]]\nnode = \"a\"\nlayer = \"X\"\n",
	}
	for name, content := range cases {
		path := filepath.Join(dir, name)
		if err := os.WriteFile(path, []byte(content), 0644); err != nil {
			t.Fatal(err)
		}
		if _, err := LoadFile(path); err == nil {
			t.Errorf("LoadFile(%s) should fail", name)
		}
	}
}
