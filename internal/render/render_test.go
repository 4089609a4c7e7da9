package render_test

import (
	"bytes"
	"encoding/json"
	"errors"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"mlmdq/internal/lineage"
	"mlmdq/internal/mlmd"
	"mlmdq/internal/render"
)

func sampleGraph(t *testing.T) *lineage.Graph {
	t.Helper()
	g := lineage.NewGraph("lineage")
	root := lineage.ArtifactNode(mlmd.Artifact{ID: 1, TypeName: "Model", URI: "s3://models/\"v1\"", State: mlmd.ArtifactLive})
	root.Root = true
	g.AddNode(root)
	g.AddNode(lineage.ExecutionNode(mlmd.Execution{ID: 10, TypeName: "Trainer", Name: "train", State: mlmd.ExecutionFailed}))
	g.AddNode(lineage.ArtifactNode(mlmd.Artifact{ID: 2, TypeName: "Dataset", Name: "raw"}))
	for _, e := range []lineage.Edge{
		{From: lineage.NodeKey{Kind: lineage.NodeExecution, ID: 10}, To: root.Key, Kind: lineage.EventEdgeKind(mlmd.EventOutput)},
		{From: lineage.NodeKey{Kind: lineage.NodeArtifact, ID: 2}, To: lineage.NodeKey{Kind: lineage.NodeExecution, ID: 10}, Kind: lineage.EventEdgeKind(mlmd.EventInput)},
	} {
		_, err := g.AddEdge(e)
		require.NoError(t, err)
	}
	return g
}

func TestDOT(t *testing.T) {
	want := `digraph "lineage" {
    rankdir=LR;
    node [style=filled, fontname="Helvetica"];
    edge [fontname="Helvetica", fontsize=10];

    "artifact_1" [label="artifact 1\nModel\ns3://models/\"v1\"\nLIVE", shape=ellipse, fillcolor="#74b9ff", penwidth=2];
    "execution_10" [label="execution 10\nTrainer\ntrain\nFAILED", shape=box, fillcolor="#ff7675"];
    "artifact_2" [label="artifact 2\nDataset\nraw", shape=ellipse, fillcolor="#74b9ff"];

    "execution_10" -> "artifact_1" [label="OUTPUT"];
    "artifact_2" -> "execution_10" [label="INPUT"];
}
`
	assert.Equal(t, want, render.DOT(sampleGraph(t)))
}

func TestDOTDeclaresNodesBeforeEdges(t *testing.T) {
	out := render.DOT(sampleGraph(t))
	lastNode := strings.LastIndex(out, "shape=")
	firstEdge := strings.Index(out, " -> ")
	assert.Less(t, lastNode, firstEdge)
}

func TestDOTEmptyGraph(t *testing.T) {
	out := render.DOT(lineage.NewGraph(""))
	assert.True(t, strings.HasPrefix(out, `digraph "mlmd" {`))
	assert.True(t, strings.HasSuffix(out, "}\n"))
}

func TestJSON(t *testing.T) {
	out, err := render.JSON(sampleGraph(t))
	require.NoError(t, err)
	assert.True(t, strings.HasSuffix(out, "}\n"))

	var doc render.GraphDocument
	require.NoError(t, json.Unmarshal([]byte(out), &doc))
	assert.Equal(t, "lineage", doc.Name)
	require.Len(t, doc.Nodes, 3)
	assert.Equal(t, render.GraphNode{
		ID: "artifact_1", Kind: "artifact", Key: 1, Type: "Model",
		URI: `s3://models/"v1"`, State: "LIVE", Root: true,
	}, doc.Nodes[0])
	assert.Equal(t, []render.GraphEdge{
		{From: "execution_10", To: "artifact_1", Kind: "OUTPUT"},
		{From: "artifact_2", To: "execution_10", Kind: "INPUT"},
	}, doc.Edges)
}

func TestJSONEmptyGraphHasArrays(t *testing.T) {
	out, err := render.JSON(lineage.NewGraph("io"))
	require.NoError(t, err)
	assert.Contains(t, out, `"nodes": []`)
	assert.Contains(t, out, `"edges": []`)
}

type failingWriter struct{}

func (failingWriter) Write([]byte) (int, error) { return 0, errors.New("disk full") }

func TestRender(t *testing.T) {
	var buf bytes.Buffer
	require.NoError(t, render.Render(&buf, sampleGraph(t), render.FormatDOT))
	assert.Equal(t, render.DOT(sampleGraph(t)), buf.String())

	err := render.Render(failingWriter{}, sampleGraph(t), render.FormatJSON)
	var se *render.SerializationError
	require.ErrorAs(t, err, &se)
	assert.Equal(t, render.FormatJSON, se.Format)

	err = render.Render(&buf, sampleGraph(t), render.Format("svg"))
	assert.ErrorAs(t, err, &se)
}

func TestParseFormat(t *testing.T) {
	f, err := render.ParseFormat("")
	require.NoError(t, err)
	assert.Equal(t, render.FormatDOT, f)

	f, err = render.ParseFormat(" JSON ")
	require.NoError(t, err)
	assert.Equal(t, render.FormatJSON, f)

	_, err = render.ParseFormat("png")
	assert.Error(t, err)
}
