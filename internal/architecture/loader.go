package architecture

import (
	"fmt"
	"os"
	"path/filepath"
	"strings"

	toml "github.com/pelletier/go-toml/v2"
	"gopkg.in/yaml.v3"
)

// ModelFile is the default filename for an architecture model
const ModelFile = "ARCHITECTURE.toml"

// componentDeclaration is one [[component]] entry
type componentDeclaration struct {
	Name   string `toml:"name" yaml:"name"`
	Parent string `toml:"parent,omitempty" yaml:"parent,omitempty"`
	Doc    string `toml:"doc,omitempty" yaml:"doc,omitempty"`
}

// contractDeclaration is one [[contract]] entry. Rule defaults to "declared"
// and Kind to DefaultKind.
type contractDeclaration struct {
	Source string `toml:"source" yaml:"source"`
	Target string `toml:"target" yaml:"target"`
	Kind   string `toml:"kind,omitempty" yaml:"kind,omitempty"`
	Rule   string `toml:"rule,omitempty" yaml:"rule,omitempty"`
}

// styleDeclaration is one [[style]] entry
type styleDeclaration struct {
	Name     string `toml:"name" yaml:"name"`
	Source   string `toml:"source,omitempty" yaml:"source,omitempty"`
	Target   string `toml:"target,omitempty" yaml:"target,omitempty"`
	Kind     string `toml:"kind,omitempty" yaml:"kind,omitempty"`
	MaxEdges int    `toml:"max_edges" yaml:"max_edges"`
}

// modelDocument is the root structure of ARCHITECTURE.toml / .yaml
type modelDocument struct {
	Version    int                    `toml:"version" yaml:"version"`
	Components []componentDeclaration `toml:"component" yaml:"components"`
	Contracts  []contractDeclaration  `toml:"contract" yaml:"contracts"`
	Styles     []styleDeclaration     `toml:"style" yaml:"styles"`
}

// LoadFile reads a model from a .toml, .yaml or .yml file. The result is not
// validated; NewIndex does that.
func LoadFile(path string) (*Model, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("failed to read architecture model: %w", err)
	}

	var doc modelDocument
	switch ext := strings.ToLower(filepath.Ext(path)); ext {
	case ".toml":
		err = toml.Unmarshal(data, &doc)
	case ".yaml", ".yml":
		err = yaml.Unmarshal(data, &doc)
	default:
		return nil, fmt.Errorf("unsupported architecture model format %q", ext)
	}
	if err != nil {
		return nil, fmt.Errorf("failed to parse %s: %w", filepath.Base(path), err)
	}

	return doc.toModel()
}

func (d *modelDocument) toModel() (*Model, error) {
	if d.Version > 1 {
		return nil, fmt.Errorf("unsupported architecture model version %d", d.Version)
	}

	m := &Model{
		Components: make([]Component, 0, len(d.Components)),
		Contracts:  make([]Contract, 0, len(d.Contracts)),
		Styles:     make([]StyleRule, 0, len(d.Styles)),
	}

	for _, c := range d.Components {
		m.Components = append(m.Components, Component(c))
	}

	for _, c := range d.Contracts {
		rule, err := ParseRule(c.Rule)
		if err != nil {
			return nil, &InvalidContractError{Declaration: c.Source + " -> " + c.Target, Reason: err.Error()}
		}
		kind := c.Kind
		if kind == "" {
			kind = DefaultKind
		}
		m.Contracts = append(m.Contracts, Contract{Source: c.Source, Target: c.Target, Kind: kind, Rule: rule})
	}

	for i, s := range d.Styles {
		name := s.Name
		if name == "" {
			name = fmt.Sprintf("style-%d", i+1)
		}
		m.Styles = append(m.Styles, StyleRule{
			Name:     name,
			Source:   orWildcard(s.Source),
			Target:   orWildcard(s.Target),
			Kind:     orWildcard(s.Kind),
			MaxEdges: s.MaxEdges,
		})
	}

	return m, nil
}

func orWildcard(s string) string {
	if s == "" {
		return Wildcard
	}
	return s
}
