package facts

import (
	"bytes"
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"gopkg.in/yaml.v3"
)

// LoadFile reads facts from a .json, .yaml or .yml file:
//
//	{"nodes": [{"id": "...", "kind": "...", "path": "..."}],
//	 "edges": [{"source": "...", "target": "...", "kind": "..."}]}
//
// Unknown fields are rejected so extractor drift is noticed early.
func LoadFile(path string) (*Facts, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("failed to read facts: %w", err)
	}

	var f Facts
	switch ext := strings.ToLower(filepath.Ext(path)); ext {
	case ".json":
		dec := json.NewDecoder(bytes.NewReader(data))
		dec.DisallowUnknownFields()
		err = dec.Decode(&f)
	case ".yaml", ".yml":
		dec := yaml.NewDecoder(bytes.NewReader(data))
		dec.KnownFields(true)
		err = dec.Decode(&f)
	default:
		return nil, fmt.Errorf("unsupported facts format %q", ext)
	}
	if err != nil {
		return nil, fmt.Errorf("failed to parse %s: %w", filepath.Base(path), err)
	}

	return &f, nil
}
