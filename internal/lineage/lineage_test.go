package lineage_test

import (
	"context"
	"errors"
	"sync"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"mlmdq/internal/lineage"
	"mlmdq/internal/mlmd"
	"mlmdq/internal/query"
	"mlmdq/internal/render"
	"mlmdq/internal/store"
	"mlmdq/internal/storetest"
)

type world struct {
	fx       *storetest.Fixture
	dataset  int64
	trainer  int64
	pipeline int64
}

func newWorld(t *testing.T) world {
	fx := storetest.New(t)
	return world{
		fx:       fx,
		dataset:  fx.ArtifactType("Dataset"),
		trainer:  fx.ExecutionType("Trainer"),
		pipeline: fx.ContextType("Pipeline"),
	}
}

func (w world) artifact(id int64) int64 {
	return w.fx.Artifact(mlmd.Artifact{ID: id, TypeID: w.dataset, URI: "s3://bucket/a", State: mlmd.ArtifactLive})
}

func (w world) execution(id int64) int64 {
	return w.fx.Execution(mlmd.Execution{ID: id, TypeID: w.trainer, State: mlmd.ExecutionComplete})
}

func (w world) builder() lineage.Builder {
	return lineage.Builder{Resolver: lineage.Resolver{Query: query.New(w.fx.Store(), 2)}, Concurrency: 2}
}

func art(id int64) lineage.NodeKey  { return lineage.NodeKey{Kind: lineage.NodeArtifact, ID: id} }
func exec(id int64) lineage.NodeKey { return lineage.NodeKey{Kind: lineage.NodeExecution, ID: id} }

func keys(g *lineage.Graph) []lineage.NodeKey {
	var out []lineage.NodeKey
	for _, n := range g.Nodes() {
		out = append(out, n.Key)
	}
	return out
}

func edge(from, to lineage.NodeKey, kind mlmd.EventType) lineage.Edge {
	return lineage.Edge{From: from, To: to, Kind: lineage.EventEdgeKind(kind)}
}

func TestLineageSingleHop(t *testing.T) {
	w := newWorld(t)
	w.artifact(1)
	w.artifact(2)
	w.execution(10)
	w.fx.Event(1, 10, mlmd.EventOutput)
	w.fx.Event(2, 10, mlmd.EventInput)

	g, err := w.builder().Lineage(context.Background(), 1, lineage.LineageOptions{})
	require.NoError(t, err)

	assert.Equal(t, []lineage.NodeKey{art(1), exec(10), art(2)}, keys(g))
	assert.Equal(t, []lineage.Edge{
		edge(exec(10), art(1), mlmd.EventOutput),
		edge(art(2), exec(10), mlmd.EventInput),
	}, g.Edges())
	root, ok := g.Node(art(1))
	require.True(t, ok)
	assert.True(t, root.Root)
	assert.Equal(t, "Dataset", root.TypeName)
}

// chain: 5 <- E20 <- {3, 4}; 3 <- E10 <- 1
func buildChain(t *testing.T) world {
	w := newWorld(t)
	for _, id := range []int64{1, 3, 4, 5} {
		w.artifact(id)
	}
	w.execution(10)
	w.execution(20)
	w.fx.Event(1, 10, mlmd.EventInput)
	w.fx.Event(3, 10, mlmd.EventOutput)
	w.fx.Event(3, 20, mlmd.EventInput)
	w.fx.Event(4, 20, mlmd.EventDeclaredInput)
	w.fx.Event(5, 20, mlmd.EventOutput)
	return w
}

func TestLineageDepthBound(t *testing.T) {
	w := buildChain(t)

	g, err := w.builder().Lineage(context.Background(), 5, lineage.LineageOptions{Depth: 1})
	require.NoError(t, err)
	assert.Equal(t, []lineage.NodeKey{art(5), exec(20), art(3), art(4)}, keys(g))
	assert.Len(t, g.Edges(), 3)

	g, err = w.builder().Lineage(context.Background(), 5, lineage.LineageOptions{})
	require.NoError(t, err)
	assert.Equal(t, []lineage.NodeKey{art(5), exec(20), art(3), art(4), exec(10), art(1)}, keys(g))
	assert.Len(t, g.Edges(), 5)
}

func TestLineageGraphProperties(t *testing.T) {
	w := buildChain(t)
	g, err := w.builder().Lineage(context.Background(), 5, lineage.LineageOptions{})
	require.NoError(t, err)

	seen := map[lineage.NodeKey]bool{}
	for _, n := range g.Nodes() {
		assert.False(t, seen[n.Key], "duplicate node %s", n.Key)
		seen[n.Key] = true
	}

	// Upstream edges point toward the root, so walk them backwards.
	reached := map[lineage.NodeKey]bool{art(5): true}
	for changed := true; changed; {
		changed = false
		for _, e := range g.Edges() {
			if reached[e.To] && !reached[e.From] {
				reached[e.From] = true
				changed = true
			}
		}
	}
	for _, n := range g.Nodes() {
		assert.True(t, reached[n.Key], "%s is not connected to the root", n.Key)
	}
}

func TestLineageIsDeterministic(t *testing.T) {
	w := buildChain(t)
	b := w.builder()

	first, err := b.Lineage(context.Background(), 5, lineage.LineageOptions{Direction: lineage.Both})
	require.NoError(t, err)
	second, err := b.Lineage(context.Background(), 5, lineage.LineageOptions{Direction: lineage.Both})
	require.NoError(t, err)
	assert.Equal(t, render.DOT(first), render.DOT(second))
}

func TestLineageSurvivesCycles(t *testing.T) {
	w := newWorld(t)
	w.artifact(1)
	w.artifact(2)
	w.execution(10)
	w.execution(20)
	w.fx.Event(1, 10, mlmd.EventOutput)
	w.fx.Event(2, 10, mlmd.EventInput)
	w.fx.Event(2, 20, mlmd.EventOutput)
	w.fx.Event(1, 20, mlmd.EventInput)

	g, err := w.builder().Lineage(context.Background(), 1, lineage.LineageOptions{})
	require.NoError(t, err)
	assert.Equal(t, []lineage.NodeKey{art(1), exec(10), art(2), exec(20)}, keys(g))
	assert.Len(t, g.Edges(), 4)
}

func TestLineageDownstreamAndBoth(t *testing.T) {
	w := buildChain(t)

	g, err := w.builder().Lineage(context.Background(), 3, lineage.LineageOptions{Direction: lineage.Downstream})
	require.NoError(t, err)
	assert.Equal(t, []lineage.NodeKey{art(3), exec(20), art(5)}, keys(g))
	assert.Equal(t, []lineage.Edge{
		edge(art(3), exec(20), mlmd.EventInput),
		edge(exec(20), art(5), mlmd.EventOutput),
	}, g.Edges())

	g, err = w.builder().Lineage(context.Background(), 3, lineage.LineageOptions{Direction: lineage.Both})
	require.NoError(t, err)
	assert.Equal(t, []lineage.NodeKey{art(3), exec(10), art(1), exec(20), art(5)}, keys(g))
}

func TestLineageNotFound(t *testing.T) {
	w := newWorld(t)
	_, err := w.builder().Lineage(context.Background(), 42, lineage.LineageOptions{})
	require.Error(t, err)
	assert.True(t, errors.Is(err, store.ErrNotFound))
}

func TestLineageSkipsDanglingEvents(t *testing.T) {
	w := newWorld(t)
	w.artifact(1)
	w.execution(10)
	w.fx.Event(1, 10, mlmd.EventOutput)
	w.fx.Event(77, 10, mlmd.EventInput)
	w.fx.Event(1, 99, mlmd.EventOutput)

	g, err := w.builder().Lineage(context.Background(), 1, lineage.LineageOptions{})
	require.NoError(t, err)
	assert.Equal(t, []lineage.NodeKey{art(1), exec(10)}, keys(g))
	assert.Len(t, g.Edges(), 1)
}

func TestLineageHonorsCancellation(t *testing.T) {
	w := buildChain(t)
	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	g, err := w.builder().Lineage(ctx, 5, lineage.LineageOptions{})
	assert.ErrorIs(t, err, context.Canceled)
	assert.Nil(t, g)
}

// stallingClient cancels the walk from inside its first fetch for one of
// the stalled artifacts, then holds every such fetch until the context is done.
type stallingClient struct {
	*store.Store
	stall  map[int64]bool
	cancel context.CancelFunc

	mu         sync.Mutex
	executions []int64
}

func (c *stallingClient) ListEvents(ctx context.Context, f store.Filter, page store.Page) ([]mlmd.Event, string, error) {
	for _, id := range f.ArtifactIDs {
		if c.stall[id] {
			c.cancel()
			<-ctx.Done()
			return nil, "", ctx.Err()
		}
	}
	c.mu.Lock()
	c.executions = append(c.executions, f.ExecutionIDs...)
	c.mu.Unlock()
	return c.Store.ListEvents(ctx, f, page)
}

func TestLineageCancelledMidWalk(t *testing.T) {
	w := buildChain(t)
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	client := &stallingClient{Store: w.fx.Store(), stall: map[int64]bool{3: true, 4: true}, cancel: cancel}
	b := lineage.Builder{Resolver: lineage.Resolver{Query: query.New(client, 2)}, Concurrency: 2}

	g, err := b.Lineage(ctx, 5, lineage.LineageOptions{})
	assert.ErrorIs(t, err, context.Canceled)
	assert.Nil(t, g)
	// the first level finished; the second never reached execution 10
	assert.Contains(t, client.executions, int64(20))
	assert.NotContains(t, client.executions, int64(10))
}

func TestIOGraphShape(t *testing.T) {
	w := newWorld(t)
	for _, id := range []int64{1, 2, 3} {
		w.artifact(id)
	}
	w.execution(10)
	w.fx.Event(2, 10, mlmd.EventInput)
	w.fx.Event(1, 10, mlmd.EventInput)
	w.fx.Event(3, 10, mlmd.EventOutput)

	g, err := w.builder().IO(context.Background(), 10)
	require.NoError(t, err)
	assert.Equal(t, []lineage.NodeKey{exec(10), art(1), art(2), art(3)}, keys(g))
	assert.Equal(t, []lineage.Edge{
		edge(art(1), exec(10), mlmd.EventInput),
		edge(art(2), exec(10), mlmd.EventInput),
		edge(exec(10), art(3), mlmd.EventOutput),
	}, g.Edges())
}

func TestIOGraphEventFamilies(t *testing.T) {
	w := newWorld(t)
	for _, id := range []int64{1, 2, 3} {
		w.artifact(id)
	}
	w.execution(10)
	w.fx.Event(1, 10, mlmd.EventInternalInput)
	w.fx.Event(2, 10, mlmd.EventPendingOutput)
	w.fx.Event(3, 10, mlmd.EventUnknown)

	g, err := w.builder().IO(context.Background(), 10)
	require.NoError(t, err)
	assert.Equal(t, []lineage.NodeKey{exec(10), art(1), art(2)}, keys(g))
	assert.Equal(t, []lineage.Edge{
		edge(art(1), exec(10), mlmd.EventInternalInput),
		edge(exec(10), art(2), mlmd.EventPendingOutput),
	}, g.Edges())
}

func TestIOGraphNotFound(t *testing.T) {
	w := newWorld(t)
	_, err := w.builder().IO(context.Background(), 99999)

	var nf *lineage.NotFoundError
	require.ErrorAs(t, err, &nf)
	assert.Equal(t, lineage.NodeExecution, nf.Kind)
	assert.Equal(t, int64(99999), nf.ID)
	assert.ErrorIs(t, err, store.ErrNotFound)
}

func TestContextGraph(t *testing.T) {
	w := newWorld(t)
	w.artifact(1)
	w.artifact(2)
	w.artifact(3)
	w.execution(10)
	c := w.fx.Context(mlmd.Context{ID: 7, TypeID: w.pipeline, Name: "run-7"})
	w.fx.Association(c, 10)
	w.fx.Attribution(c, 1)
	w.fx.Event(2, 10, mlmd.EventInput)
	w.fx.Event(1, 10, mlmd.EventOutput)

	g, err := w.builder().Context(context.Background(), c)
	require.NoError(t, err)

	ctxKey := lineage.NodeKey{Kind: lineage.NodeContext, ID: c}
	assert.Equal(t, []lineage.NodeKey{ctxKey, exec(10), art(1), art(2)}, keys(g))
	assert.ElementsMatch(t, []lineage.Edge{
		{From: ctxKey, To: exec(10), Kind: lineage.EdgeAssociation},
		{From: ctxKey, To: art(1), Kind: lineage.EdgeAttribution},
		edge(art(2), exec(10), mlmd.EventInput),
		edge(exec(10), art(1), mlmd.EventOutput),
	}, g.Edges())

	_, err = w.builder().Context(context.Background(), 404)
	assert.ErrorIs(t, err, store.ErrNotFound)
}

func TestParseDirection(t *testing.T) {
	for in, want := range map[string]lineage.Direction{
		"":           lineage.Upstream,
		"up":         lineage.Upstream,
		"Downstream": lineage.Downstream,
		"both":       lineage.Both,
	} {
		got, err := lineage.ParseDirection(in)
		require.NoError(t, err)
		assert.Equal(t, want, got)
	}
	_, err := lineage.ParseDirection("sideways")
	assert.Error(t, err)
}

func TestGraphRejectsDanglingEdges(t *testing.T) {
	g := lineage.NewGraph("t")
	assert.True(t, g.AddNode(lineage.Node{Key: art(1)}))
	assert.False(t, g.AddNode(lineage.Node{Key: art(1)}))

	_, err := g.AddEdge(lineage.Edge{From: art(1), To: exec(2)})
	assert.ErrorIs(t, err, lineage.ErrDanglingEdge)

	g.AddNode(lineage.Node{Key: exec(2)})
	added, err := g.AddEdge(lineage.Edge{From: art(1), To: exec(2)})
	require.NoError(t, err)
	assert.True(t, added)
	added, err = g.AddEdge(lineage.Edge{From: art(1), To: exec(2)})
	require.NoError(t, err)
	assert.False(t, added)
}
