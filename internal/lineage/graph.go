package lineage

import (
	"errors"
	"fmt"

	"mlmdq/internal/mlmd"
)

type NodeKind int

const (
	NodeArtifact NodeKind = iota
	NodeExecution
	NodeContext
)

func (k NodeKind) String() string {
	switch k {
	case NodeArtifact:
		return "artifact"
	case NodeExecution:
		return "execution"
	case NodeContext:
		return "context"
	default:
		return fmt.Sprintf("node(%d)", int(k))
	}
}

// NodeKey is a node's identity within a graph.
type NodeKey struct {
	Kind NodeKind
	ID   int64
}

func (k NodeKey) String() string { return fmt.Sprintf("%s_%d", k.Kind, k.ID) }

// Node is a snapshot of one entity as it should be displayed.
type Node struct {
	Key      NodeKey
	TypeName string
	Name     string
	URI      string
	// State is the artifact or execution state name; empty for contexts.
	State string
	Root  bool
}

func ArtifactNode(a mlmd.Artifact) Node {
	return Node{
		Key:      NodeKey{Kind: NodeArtifact, ID: a.ID},
		TypeName: a.TypeName,
		Name:     a.Name,
		URI:      a.URI,
		State:    a.State.String(),
	}
}

func ExecutionNode(e mlmd.Execution) Node {
	return Node{
		Key:      NodeKey{Kind: NodeExecution, ID: e.ID},
		TypeName: e.TypeName,
		Name:     e.Name,
		State:    e.State.String(),
	}
}

func ContextNode(c mlmd.Context) Node {
	return Node{
		Key:      NodeKey{Kind: NodeContext, ID: c.ID},
		TypeName: c.TypeName,
		Name:     c.Name,
	}
}

// EdgeKind is an event type name, or a context membership relation.
type EdgeKind string

const (
	EdgeAssociation EdgeKind = "ASSOCIATION"
	EdgeAttribution EdgeKind = "ATTRIBUTION"
)

func EventEdgeKind(t mlmd.EventType) EdgeKind { return EdgeKind(t.String()) }

type Edge struct {
	From NodeKey
	To   NodeKey
	Kind EdgeKind
}

// ErrDanglingEdge is returned when an edge names a node the graph lacks.
var ErrDanglingEdge = errors.New("edge endpoint is not in the graph")

// Graph keeps nodes and edges in first-insertion order with set semantics.
type Graph struct {
	Name string

	nodes   []Node
	index   map[NodeKey]int
	edges   []Edge
	edgeSet map[Edge]struct{}
}

func NewGraph(name string) *Graph {
	return &Graph{
		Name:    name,
		index:   map[NodeKey]int{},
		edgeSet: map[Edge]struct{}{},
	}
}

// AddNode inserts n unless a node with the same key exists. It reports
// whether n was inserted.
func (g *Graph) AddNode(n Node) bool {
	if _, ok := g.index[n.Key]; ok {
		return false
	}
	g.index[n.Key] = len(g.nodes)
	g.nodes = append(g.nodes, n)
	return true
}

func (g *Graph) HasNode(k NodeKey) bool {
	_, ok := g.index[k]
	return ok
}

func (g *Graph) Node(k NodeKey) (Node, bool) {
	i, ok := g.index[k]
	if !ok {
		return Node{}, false
	}
	return g.nodes[i], true
}

// AddEdge inserts e unless it already exists. Both endpoints must be present.
func (g *Graph) AddEdge(e Edge) (bool, error) {
	if !g.HasNode(e.From) || !g.HasNode(e.To) {
		return false, fmt.Errorf("%w: %s -> %s", ErrDanglingEdge, e.From, e.To)
	}
	if _, ok := g.edgeSet[e]; ok {
		return false, nil
	}
	g.edgeSet[e] = struct{}{}
	g.edges = append(g.edges, e)
	return true, nil
}

func (g *Graph) Nodes() []Node { return g.nodes }
func (g *Graph) Edges() []Edge { return g.edges }
