// Package render turns lineage graphs into text. It is the only code that
// knows DOT syntax.
package render

import (
	"encoding/json"
	"fmt"
	"io"
	"strings"

	"mlmdq/internal/lineage"
)

type Format string

const (
	FormatDOT  Format = "dot"
	FormatJSON Format = "json"
)

func ParseFormat(s string) (Format, error) {
	switch Format(strings.ToLower(strings.TrimSpace(s))) {
	case "", FormatDOT:
		return FormatDOT, nil
	case FormatJSON:
		return FormatJSON, nil
	default:
		return "", fmt.Errorf("unknown graph format %q (want dot or json)", s)
	}
}

// SerializationError reports a failure to produce or write output.
type SerializationError struct {
	Format Format
	Err    error
}

func (e *SerializationError) Error() string {
	return fmt.Sprintf("render %s: %v", e.Format, e.Err)
}

func (e *SerializationError) Unwrap() error { return e.Err }

// Render writes g to w in the given format.
func Render(w io.Writer, g *lineage.Graph, format Format) error {
	var (
		out string
		err error
	)
	switch format {
	case FormatDOT, "":
		out = DOT(g)
	case FormatJSON:
		out, err = JSON(g)
	default:
		err = fmt.Errorf("unsupported format %q", format)
	}
	if err != nil {
		return &SerializationError{Format: format, Err: err}
	}
	if _, err := io.WriteString(w, out); err != nil {
		return &SerializationError{Format: format, Err: err}
	}
	return nil
}

// DOT renders g as a Graphviz digraph. Nodes are declared before any edge,
// both in the graph's insertion order.
func DOT(g *lineage.Graph) string {
	var sb strings.Builder

	name := g.Name
	if name == "" {
		name = "mlmd"
	}
	fmt.Fprintf(&sb, "digraph %s {\n", quoteID(name))
	sb.WriteString("    rankdir=LR;\n")
	sb.WriteString("    node [style=filled, fontname=\"Helvetica\"];\n")
	sb.WriteString("    edge [fontname=\"Helvetica\", fontsize=10];\n")

	if len(g.Nodes()) > 0 {
		sb.WriteString("\n")
	}
	for _, n := range g.Nodes() {
		shape, fill := nodeStyle(n)
		fmt.Fprintf(&sb, "    %s [label=\"%s\", shape=%s, fillcolor=\"%s\"", quoteID(n.Key.String()), escapeDOTLabel(nodeLabel(n)), shape, fill)
		if n.Root {
			sb.WriteString(", penwidth=2")
		}
		sb.WriteString("];\n")
	}

	if len(g.Edges()) > 0 {
		sb.WriteString("\n")
	}
	for _, e := range g.Edges() {
		fmt.Fprintf(&sb, "    %s -> %s [label=\"%s\"];\n", quoteID(e.From.String()), quoteID(e.To.String()), escapeDOTLabel(string(e.Kind)))
	}

	sb.WriteString("}\n")
	return sb.String()
}

// nodeLabel is "<kind> <id>" followed by one line per known detail.
func nodeLabel(n lineage.Node) string {
	lines := []string{fmt.Sprintf("%s %d", n.Key.Kind, n.Key.ID)}
	if n.TypeName != "" {
		lines = append(lines, n.TypeName)
	}
	switch n.Key.Kind {
	case lineage.NodeArtifact:
		if n.URI != "" {
			lines = append(lines, n.URI)
		} else if n.Name != "" {
			lines = append(lines, n.Name)
		}
	default:
		if n.Name != "" {
			lines = append(lines, n.Name)
		}
	}
	if n.State != "" && n.State != "UNKNOWN" {
		lines = append(lines, n.State)
	}
	return strings.Join(lines, "\n")
}

func nodeStyle(n lineage.Node) (shape, fill string) {
	switch n.Key.Kind {
	case lineage.NodeArtifact:
		shape, fill = "ellipse", "#74b9ff"
		if n.State == "DELETED" || n.State == "MARKED_FOR_DELETION" {
			fill = "#dfe6e9"
		}
	case lineage.NodeExecution:
		shape, fill = "box", "#55efc4"
		switch n.State {
		case "FAILED":
			fill = "#ff7675"
		case "RUNNING", "NEW":
			fill = "#ffeaa7"
		case "CACHED":
			fill = "#81ecec"
		}
	default:
		shape, fill = "folder", "#d6a2e8"
	}
	return shape, fill
}

func quoteID(s string) string {
	return "\"" + escapeDOTLabel(s) + "\""
}

func escapeDOTLabel(s string) string {
	replacer := strings.NewReplacer(
		"\\", "\\\\",
		"\"", "\\\"",
		"\n", "\\n",
		"\r", "",
	)
	return replacer.Replace(s)
}

// GraphNode is one node of a GraphDocument.
type GraphNode struct {
	ID    string `json:"id"`
	Kind  string `json:"kind"`
	Key   int64  `json:"entity_id"`
	Type  string `json:"type,omitempty"`
	Name  string `json:"name,omitempty"`
	URI   string `json:"uri,omitempty"`
	State string `json:"state,omitempty"`
	Root  bool   `json:"root,omitempty"`
}

type GraphEdge struct {
	From string `json:"from"`
	To   string `json:"to"`
	Kind string `json:"kind"`
}

type GraphDocument struct {
	Name  string      `json:"name"`
	Nodes []GraphNode `json:"nodes"`
	Edges []GraphEdge `json:"edges"`
}

// JSON renders g as an indented node/edge document with a trailing newline.
func JSON(g *lineage.Graph) (string, error) {
	doc := Document(g)
	b, err := json.MarshalIndent(doc, "", "  ")
	if err != nil {
		return "", err
	}
	return string(b) + "\n", nil
}

// Document is the JSON shape of a graph, shared with the HTTP API.
func Document(g *lineage.Graph) GraphDocument {
	doc := GraphDocument{Name: g.Name, Nodes: []GraphNode{}, Edges: []GraphEdge{}}
	for _, n := range g.Nodes() {
		doc.Nodes = append(doc.Nodes, GraphNode{
			ID:    n.Key.String(),
			Kind:  n.Key.Kind.String(),
			Key:   n.Key.ID,
			Type:  n.TypeName,
			Name:  n.Name,
			URI:   n.URI,
			State: n.State,
			Root:  n.Root,
		})
	}
	for _, e := range g.Edges() {
		doc.Edges = append(doc.Edges, GraphEdge{From: e.From.String(), To: e.To.String(), Kind: string(e.Kind)})
	}
	return doc
}
