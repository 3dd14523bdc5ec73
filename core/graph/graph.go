// Package graph holds the structural node/edge model behind a workflow
// configuration. It owns referential integrity: every edge endpoint must
// name a node in the same config, and removing a node cascades to every
// edge touching it.
package graph

import (
	"errors"
	"fmt"
	"sort"
	"strings"
)

// ErrIntegrity marks a referential violation inside a config.
var ErrIntegrity = errors.New("graph integrity violation")

// Position is an editor placement hint; the core never interprets it.
type Position struct {
	X float64 `json:"x"`
	Y float64 `json:"y"`
}

// Node is a single vertex in a workflow config. Data is opaque to the core.
type Node struct {
	ID       string         `json:"id"`
	Type     string         `json:"type"`
	Position Position       `json:"position"`
	Data     map[string]any `json:"data,omitempty"`
}

// Edge connects two nodes by id. Data is opaque and must never carry
// behavior; deletion intent travels as a bus command, not as a callback.
type Edge struct {
	ID     string         `json:"id"`
	Source string         `json:"source"`
	Target string         `json:"target"`
	Data   map[string]any `json:"data,omitempty"`
}

// Config is the persisted payload of one workflow version.
type Config struct {
	Nodes []Node `json:"nodes"`
	Edges []Edge `json:"edges"`
}

// Violation describes one integrity problem found by Validate.
type Violation struct {
	Kind   string `json:"kind"` // "dangling_edge", "duplicate_node_id", "duplicate_edge_id"
	ID     string `json:"id"`
	Detail string `json:"detail"`
}

func (v Violation) String() string {
	return fmt.Sprintf("%s %s: %s", v.Kind, v.ID, v.Detail)
}

// Model is a mutable graph a single editor session works against.
// It is not safe for concurrent use; the store serializes writers.
type Model struct {
	nodes []Node
	edges []Edge
}

// NewModel builds a model from an existing config snapshot.
func NewModel(cfg Config) *Model {
	m := &Model{}
	m.nodes = append(m.nodes, cfg.Nodes...)
	m.edges = append(m.edges, cfg.Edges...)
	return m
}

// Config returns a copy of the current state. Callers may hold the result
// across further mutations without observing them.
func (m *Model) Config() Config {
	cfg := Config{
		Nodes: make([]Node, len(m.nodes)),
		Edges: make([]Edge, len(m.edges)),
	}
	copy(cfg.Nodes, m.nodes)
	copy(cfg.Edges, m.edges)
	return cfg
}

// SetNodes replaces the node set. Edges referencing removed nodes are not
// touched here; SetEdges or Validate will surface them.
func (m *Model) SetNodes(nodes []Node) {
	m.nodes = make([]Node, len(nodes))
	copy(m.nodes, nodes)
}

// SetEdges replaces the edge set. Fails with ErrIntegrity if any edge
// references a node id absent from the current node set; state is left
// unchanged on failure.
func (m *Model) SetEdges(edges []Edge) error {
	known := nodeIDSet(m.nodes)
	for _, e := range edges {
		if _, ok := known[e.Source]; !ok {
			return fmt.Errorf("%w: edge %s source %s not found", ErrIntegrity, e.ID, e.Source)
		}
		if _, ok := known[e.Target]; !ok {
			return fmt.Errorf("%w: edge %s target %s not found", ErrIntegrity, e.ID, e.Target)
		}
	}
	m.edges = make([]Edge, len(edges))
	copy(m.edges, edges)
	return nil
}

// RemoveNode deletes the node and, atomically, every edge whose source or
// target equals nodeID. A config read after this call never sees a
// dangling edge.
func (m *Model) RemoveNode(nodeID string) {
	nodes := m.nodes[:0]
	for _, n := range m.nodes {
		if n.ID != nodeID {
			nodes = append(nodes, n)
		}
	}
	m.nodes = nodes

	edges := m.edges[:0]
	for _, e := range m.edges {
		if e.Source != nodeID && e.Target != nodeID {
			edges = append(edges, e)
		}
	}
	m.edges = edges
}

// RemoveEdge deletes exactly one edge; no cascade.
func (m *Model) RemoveEdge(edgeID string) {
	edges := m.edges[:0]
	for _, e := range m.edges {
		if e.ID != edgeID {
			edges = append(edges, e)
		}
	}
	m.edges = edges
}

// Validate reports every integrity violation without mutating state.
// An empty result means the config may be persisted as a version.
func (m *Model) Validate() []Violation {
	return Validate(Config{Nodes: m.nodes, Edges: m.edges})
}

// Validate checks a config snapshot for dangling edges and duplicate ids.
func Validate(cfg Config) []Violation {
	var out []Violation

	seenNodes := make(map[string]bool, len(cfg.Nodes))
	for _, n := range cfg.Nodes {
		if seenNodes[n.ID] {
			out = append(out, Violation{
				Kind:   "duplicate_node_id",
				ID:     n.ID,
				Detail: "node id declared more than once",
			})
			continue
		}
		seenNodes[n.ID] = true
	}

	seenEdges := make(map[string]bool, len(cfg.Edges))
	for _, e := range cfg.Edges {
		if seenEdges[e.ID] {
			out = append(out, Violation{
				Kind:   "duplicate_edge_id",
				ID:     e.ID,
				Detail: "edge id declared more than once",
			})
		}
		seenEdges[e.ID] = true
		var missing []string
		if !seenNodes[e.Source] {
			missing = append(missing, "source "+e.Source)
		}
		if !seenNodes[e.Target] {
			missing = append(missing, "target "+e.Target)
		}
		if len(missing) > 0 {
			out = append(out, Violation{
				Kind:   "dangling_edge",
				ID:     e.ID,
				Detail: strings.Join(missing, ", ") + " not found",
			})
		}
	}

	sort.SliceStable(out, func(i, j int) bool { return out[i].ID < out[j].ID })
	return out
}

// CheckConfig returns ErrIntegrity wrapping the first violation when the
// config is not persistable, nil otherwise.
func CheckConfig(cfg Config) error {
	if vs := Validate(cfg); len(vs) > 0 {
		return fmt.Errorf("%w: %s", ErrIntegrity, vs[0])
	}
	return nil
}

func nodeIDSet(nodes []Node) map[string]struct{} {
	set := make(map[string]struct{}, len(nodes))
	for _, n := range nodes {
		set[n.ID] = struct{}{}
	}
	return set
}
