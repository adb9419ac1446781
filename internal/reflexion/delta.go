package reflexion

import (
	"bytes"
	"fmt"
	"os"

	"gopkg.in/yaml.v3"

	"reflexion/internal/architecture"
	rerrors "reflexion/internal/errors"
	"reflexion/internal/facts"
	"reflexion/internal/mapping"
)

// DeltaKind names one kind of input change.
type DeltaKind string

const (
	DeltaAddNode        DeltaKind = "add_node"
	DeltaRemoveNode     DeltaKind = "remove_node"
	DeltaAddEdge        DeltaKind = "add_edge"
	DeltaRemoveEdge     DeltaKind = "remove_edge"
	DeltaSetMapping     DeltaKind = "set_mapping"
	DeltaAddContract    DeltaKind = "add_contract"
	DeltaRemoveContract DeltaKind = "remove_contract"
	DeltaChangeContract DeltaKind = "change_contract"
)

// Delta is a single change to the analysis inputs. Which fields are used
// depends on Kind:
//
//	add_node        Node, optional Component and Origin
//	remove_node     Node (ID only); incident edges and the mapping entry go too
//	add_edge        Edge
//	remove_edge     Edge; removes one occurrence
//	set_mapping     Node (ID only), Component (empty unmaps), Origin
//	add_contract    Contract
//	remove_contract Contract (rule ignored)
//	change_contract Contract
type Delta struct {
	Kind      DeltaKind              `json:"kind" yaml:"kind"`
	Node      *facts.Node            `json:"node,omitempty" yaml:"node,omitempty"`
	Edge      *facts.Edge            `json:"edge,omitempty" yaml:"edge,omitempty"`
	Component string                 `json:"component,omitempty" yaml:"component,omitempty"`
	Origin    mapping.Origin         `json:"origin,omitempty" yaml:"origin,omitempty"`
	Contract  *architecture.Contract `json:"contract,omitempty" yaml:"contract,omitempty"`
}

// AddNode returns a delta ingesting n, mapped to component when non-empty.
func AddNode(n facts.Node, component string) Delta {
	return Delta{Kind: DeltaAddNode, Node: &n, Component: component, Origin: mapping.OriginManual}
}

// RemoveNode returns a delta removing node id.
func RemoveNode(id string) Delta {
	return Delta{Kind: DeltaRemoveNode, Node: &facts.Node{ID: id}}
}

// AddEdge returns a delta ingesting e.
func AddEdge(e facts.Edge) Delta {
	return Delta{Kind: DeltaAddEdge, Edge: &e}
}

// RemoveEdge returns a delta removing one occurrence of e.
func RemoveEdge(e facts.Edge) Delta {
	return Delta{Kind: DeltaRemoveEdge, Edge: &e}
}

// SetMapping returns a delta remapping node; an empty component unmaps it.
func SetMapping(node, component string, origin mapping.Origin) Delta {
	return Delta{Kind: DeltaSetMapping, Node: &facts.Node{ID: node}, Component: component, Origin: origin}
}

// AddContract returns a delta declaring c.
func AddContract(c architecture.Contract) Delta {
	return Delta{Kind: DeltaAddContract, Contract: &c}
}

// RemoveContract returns a delta removing the contract at t.
func RemoveContract(t Triple) Delta {
	return Delta{Kind: DeltaRemoveContract, Contract: &architecture.Contract{Source: t.Source, Target: t.Target, Kind: t.Kind}}
}

// ChangeContract returns a delta replacing the rule of an existing contract.
func ChangeContract(c architecture.Contract) Delta {
	return Delta{Kind: DeltaChangeContract, Contract: &c}
}

func (d Delta) String() string {
	switch {
	case d.Edge != nil:
		return fmt.Sprintf("%s %s", d.Kind, d.Edge)
	case d.Contract != nil:
		return fmt.Sprintf("%s %s", d.Kind, d.Contract)
	case d.Node != nil && d.Component != "":
		return fmt.Sprintf("%s %s => %s", d.Kind, d.Node.ID, d.Component)
	case d.Node != nil:
		return fmt.Sprintf("%s %s", d.Kind, d.Node.ID)
	}
	return string(d.Kind)
}

// checkShape verifies that the fields Kind needs are present.
func (d Delta) checkShape() error {
	var missing string
	switch d.Kind {
	case DeltaAddNode, DeltaRemoveNode, DeltaSetMapping:
		if d.Node == nil || d.Node.ID == "" {
			missing = "node"
		}
	case DeltaAddEdge, DeltaRemoveEdge:
		if d.Edge == nil {
			missing = "edge"
		}
	case DeltaAddContract, DeltaRemoveContract, DeltaChangeContract:
		if d.Contract == nil {
			missing = "contract"
		}
	default:
		return &InvalidDeltaError{Delta: d, Reason: fmt.Sprintf("unknown delta kind %q", d.Kind)}
	}
	if missing != "" {
		return &InvalidDeltaError{Delta: d, Reason: missing + " is required"}
	}
	return nil
}

// InvalidDeltaError reports a delta that cannot be applied to the graph.
type InvalidDeltaError struct {
	Delta  Delta
	Reason string
}

func (e *InvalidDeltaError) Error() string {
	return fmt.Sprintf("invalid delta %s: %s", e.Delta, e.Reason)
}

// ErrorCode implements errors.Coded
func (e *InvalidDeltaError) ErrorCode() rerrors.ErrorCode {
	return rerrors.InvalidDelta
}

var errNotPropagated = rerrors.New(rerrors.InternalError, "classification requires a propagated graph", nil)

var errNotAnalyzed = rerrors.New(rerrors.InternalError, "recompute requires an analyzed graph", nil)

// deltaFile is the YAML shape read by LoadDeltas:
//
//	deltas:
//	  - kind: remove_edge
//	    edge: {source: ui/login.go, target: app/users.go, kind: calls}
//	  - kind: set_mapping
//	    node: {id: app/users.go}
//	    component: Domain
type deltaFile struct {
	Deltas []Delta `yaml:"deltas"`
}

// LoadDeltas reads a YAML list of deltas. Contract rules are normalized with
// architecture.ParseRule; shapes are checked, applicability is not.
func LoadDeltas(path string) ([]Delta, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("failed to read deltas: %w", err)
	}
	var doc deltaFile
	dec := yaml.NewDecoder(bytes.NewReader(data))
	dec.KnownFields(true)
	if err := dec.Decode(&doc); err != nil {
		return nil, fmt.Errorf("failed to parse deltas: %w", err)
	}

	for i := range doc.Deltas {
		d := &doc.Deltas[i]
		if err := d.checkShape(); err != nil {
			return nil, fmt.Errorf("delta %d: %w", i+1, err)
		}
		if d.Contract != nil {
			if d.Contract.Kind == "" {
				d.Contract.Kind = architecture.DefaultKind
			}
			if d.Kind != DeltaRemoveContract {
				rule, err := architecture.ParseRule(string(d.Contract.Rule))
				if err != nil {
					return nil, fmt.Errorf("delta %d: %w", i+1, err)
				}
				d.Contract.Rule = rule
			}
		}
		if d.Edge != nil && d.Edge.Kind == "" {
			d.Edge.Kind = architecture.DefaultKind
		}
	}
	return doc.Deltas, nil
}
