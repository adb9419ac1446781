package mapping

import (
	"fmt"

	"github.com/BurntSushi/toml"
)

// MappingFile is the default filename for a resolved mapping
const MappingFile = "MAPPING.toml"

// mappingDocument is the root structure of MAPPING.toml:
//
//	[[map]]
//	node = "internal/ui/login.go"
//	component = "UI"
//	origin = "rule"
type mappingDocument struct {
	Version int            `toml:"version"`
	Entries []mappingEntry `toml:"map"`
}

type mappingEntry struct {
	Node      string `toml:"node"`
	Component string `toml:"component"`
	Origin    string `toml:"origin,omitempty"`
}

// LoadFile reads a MAPPING.toml file. Entries are applied with Set, so a node
// listed twice with different components is an error.
func LoadFile(path string) (*Table, error) {
	var doc mappingDocument
	md, err := toml.DecodeFile(path, &doc)
	if err != nil {
		return nil, fmt.Errorf("failed to parse mapping: %w", err)
	}
	if undecoded := md.Undecoded(); len(undecoded) > 0 {
		return nil, fmt.Errorf("unknown keys in mapping: %v", undecoded)
	}

	entries := make([]Entry, 0, len(doc.Entries))
	for i, e := range doc.Entries {
		if e.Node == "" {
			return nil, fmt.Errorf("mapping entry %d has no node", i+1)
		}
		origin, err := ParseOrigin(e.Origin)
		if err != nil {
			return nil, fmt.Errorf("mapping entry for %q: %w", e.Node, err)
		}
		entries = append(entries, Entry{Node: e.Node, Component: e.Component, Origin: origin})
	}

	return FromEntries(entries)
}
