// Package lineage builds provenance graphs by walking events between
// artifacts and executions.
package lineage

import (
	"context"
	"fmt"
	"log/slog"
	"sort"
	"strings"

	"golang.org/x/sync/errgroup"

	"mlmdq/internal/mlmd"
)

const DefaultConcurrency = 8

// Direction selects which way a lineage walk follows events.
type Direction int

const (
	// Upstream walks to producing executions and the artifacts they consumed.
	Upstream Direction = iota
	// Downstream walks to consuming executions and the artifacts they produced.
	Downstream
	Both
)

func (d Direction) String() string {
	switch d {
	case Downstream:
		return "downstream"
	case Both:
		return "both"
	default:
		return "upstream"
	}
}

func ParseDirection(s string) (Direction, error) {
	switch strings.ToLower(strings.TrimSpace(s)) {
	case "", "upstream", "up":
		return Upstream, nil
	case "downstream", "down":
		return Downstream, nil
	case "both":
		return Both, nil
	default:
		return Upstream, fmt.Errorf("unknown direction %q (want upstream, downstream or both)", s)
	}
}

type LineageOptions struct {
	// Depth bounds the number of artifact->execution->artifact hops; 0 is unbounded.
	Depth     int
	Direction Direction
}

// Builder constructs lineage, IO and context graphs.
type Builder struct {
	Resolver    Resolver
	Concurrency int
	Logger      *slog.Logger
}

func (b Builder) logger() *slog.Logger {
	if b.Logger != nil {
		return b.Logger
	}
	return slog.Default()
}

func (b Builder) concurrency() int {
	if b.Concurrency > 0 {
		return b.Concurrency
	}
	return DefaultConcurrency
}

// Lineage builds the provenance graph of an artifact. Within each level
// artifacts and executions are handled in ascending id order.
func (b Builder) Lineage(ctx context.Context, artifactID int64, opts LineageOptions) (*Graph, error) {
	roots, err := b.Resolver.ResolveArtifacts(ctx, []int64{artifactID})
	if err != nil {
		return nil, err
	}
	root, ok := roots[artifactID]
	if !ok {
		return nil, &NotFoundError{Kind: NodeArtifact, ID: artifactID}
	}
	g := NewGraph("lineage")
	rootNode := ArtifactNode(root)
	rootNode.Root = true
	g.AddNode(rootNode)

	if opts.Direction == Upstream || opts.Direction == Both {
		if err := b.walk(ctx, g, artifactID, upstreamWalk, opts.Depth); err != nil {
			return nil, err
		}
	}
	if opts.Direction == Downstream || opts.Direction == Both {
		if err := b.walk(ctx, g, artifactID, downstreamWalk, opts.Depth); err != nil {
			return nil, err
		}
	}
	return g, nil
}

// walkRules says which events to follow from each side and which way edges point.
type walkRules struct {
	name string
	// viaArtifact selects events linking a frontier artifact to the next executions.
	viaArtifact func(mlmd.EventType) bool
	// viaExecution selects events linking those executions to the next artifacts.
	viaExecution func(mlmd.EventType) bool
}

func isProducedBy(t mlmd.EventType) bool {
	return t == mlmd.EventOutput || t == mlmd.EventDeclaredOutput
}

func isConsumedBy(t mlmd.EventType) bool {
	return t == mlmd.EventInput || t == mlmd.EventDeclaredInput
}

var (
	upstreamWalk   = walkRules{name: "upstream", viaArtifact: isProducedBy, viaExecution: isConsumedBy}
	downstreamWalk = walkRules{name: "downstream", viaArtifact: isConsumedBy, viaExecution: isProducedBy}
)

// eventEdge points the edge the way the event flows: inputs into the
// execution, outputs out of it.
func eventEdge(ev mlmd.Event) Edge {
	art := NodeKey{Kind: NodeArtifact, ID: ev.ArtifactID}
	exe := NodeKey{Kind: NodeExecution, ID: ev.ExecutionID}
	if ev.Type.IsInput() {
		return Edge{From: art, To: exe, Kind: EventEdgeKind(ev.Type)}
	}
	return Edge{From: exe, To: art, Kind: EventEdgeKind(ev.Type)}
}

// walk is a leveled BFS from root. Each level's fetches complete before its
// results are merged, so the visited sets are only touched here.
func (b Builder) walk(ctx context.Context, g *Graph, root int64, rules walkRules, depth int) error {
	log := b.logger().With("walk", rules.name, "root", root)
	frontier := []int64{root}
	visitedArtifacts := map[int64]bool{root: true}
	visitedExecutions := map[int64]bool{}

	for level := 1; len(frontier) > 0 && (depth <= 0 || level <= depth); level++ {
		if err := ctx.Err(); err != nil {
			return err
		}
		artifactEvents, err := fanOut(ctx, b.concurrency(), frontier, b.Resolver.EventsForArtifact)
		if err != nil {
			return err
		}
		var toExecutions []mlmd.Event
		var newExecutions []int64
		for _, evs := range artifactEvents {
			evs = selectEvents(evs, rules.viaArtifact, func(ev mlmd.Event) int64 { return ev.ExecutionID })
			for _, ev := range evs {
				toExecutions = append(toExecutions, ev)
				if !visitedExecutions[ev.ExecutionID] {
					visitedExecutions[ev.ExecutionID] = true
					newExecutions = append(newExecutions, ev.ExecutionID)
				}
			}
		}
		executions, err := b.Resolver.ResolveExecutions(ctx, newExecutions)
		if err != nil {
			return err
		}
		for _, ev := range toExecutions {
			key := NodeKey{Kind: NodeExecution, ID: ev.ExecutionID}
			if !g.HasNode(key) {
				e, ok := executions[ev.ExecutionID]
				if !ok {
					log.Warn("event references missing execution", "execution_id", ev.ExecutionID, "artifact_id", ev.ArtifactID)
					continue
				}
				g.AddNode(ExecutionNode(e))
			}
			if _, err := g.AddEdge(eventEdge(ev)); err != nil {
				return err
			}
		}

		sort.Slice(newExecutions, func(i, j int) bool { return newExecutions[i] < newExecutions[j] })
		expandable := newExecutions[:0:0]
		for _, id := range newExecutions {
			if g.HasNode(NodeKey{Kind: NodeExecution, ID: id}) {
				expandable = append(expandable, id)
			}
		}
		executionEvents, err := fanOut(ctx, b.concurrency(), expandable, b.Resolver.EventsForExecution)
		if err != nil {
			return err
		}
		var toArtifacts []mlmd.Event
		var unresolved []int64
		for _, evs := range executionEvents {
			evs = selectEvents(evs, rules.viaExecution, func(ev mlmd.Event) int64 { return ev.ArtifactID })
			for _, ev := range evs {
				toArtifacts = append(toArtifacts, ev)
				if !g.HasNode(NodeKey{Kind: NodeArtifact, ID: ev.ArtifactID}) {
					unresolved = append(unresolved, ev.ArtifactID)
				}
			}
		}
		artifacts, err := b.Resolver.ResolveArtifacts(ctx, unresolved)
		if err != nil {
			return err
		}
		var next []int64
		for _, ev := range toArtifacts {
			key := NodeKey{Kind: NodeArtifact, ID: ev.ArtifactID}
			if !g.HasNode(key) {
				a, ok := artifacts[ev.ArtifactID]
				if !ok {
					log.Warn("event references missing artifact", "artifact_id", ev.ArtifactID, "execution_id", ev.ExecutionID)
					continue
				}
				g.AddNode(ArtifactNode(a))
			}
			if _, err := g.AddEdge(eventEdge(ev)); err != nil {
				return err
			}
			if !visitedArtifacts[ev.ArtifactID] {
				visitedArtifacts[ev.ArtifactID] = true
				next = append(next, ev.ArtifactID)
			}
		}
		sort.Slice(next, func(i, j int) bool { return next[i] < next[j] })
		log.Debug("lineage level", "level", level, "executions", len(expandable), "next_frontier", len(next))
		frontier = next
	}
	return nil
}

// selectEvents keeps events matching keep, ordered by the id on the far side
// and then by event type.
func selectEvents(evs []mlmd.Event, keep func(mlmd.EventType) bool, far func(mlmd.Event) int64) []mlmd.Event {
	out := make([]mlmd.Event, 0, len(evs))
	for _, ev := range evs {
		if keep(ev.Type) {
			out = append(out, ev)
		}
	}
	sort.SliceStable(out, func(i, j int) bool {
		if far(out[i]) != far(out[j]) {
			return far(out[i]) < far(out[j])
		}
		return out[i].Type < out[j].Type
	})
	return out
}

// fanOut calls fetch for every id concurrently and returns results in id order.
// The first error cancels the rest.
func fanOut[T any](ctx context.Context, limit int, ids []int64, fetch func(context.Context, int64) (T, error)) ([]T, error) {
	out := make([]T, len(ids))
	if len(ids) == 0 {
		return out, nil
	}
	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(limit)
	for i, id := range ids {
		g.Go(func() error {
			v, err := fetch(gctx, id)
			if err != nil {
				return err
			}
			out[i] = v
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		return nil, err
	}
	return out, nil
}

// IO builds the single-hop graph of an execution's inputs and outputs.
func (b Builder) IO(ctx context.Context, executionID int64) (*Graph, error) {
	executions, err := b.Resolver.ResolveExecutions(ctx, []int64{executionID})
	if err != nil {
		return nil, err
	}
	exe, ok := executions[executionID]
	if !ok {
		return nil, &NotFoundError{Kind: NodeExecution, ID: executionID}
	}
	events, err := b.Resolver.EventsForExecution(ctx, executionID)
	if err != nil {
		return nil, err
	}
	inputs := selectEvents(events, mlmd.EventType.IsInput, func(ev mlmd.Event) int64 { return ev.ArtifactID })
	outputs := selectEvents(events, mlmd.EventType.IsOutput, func(ev mlmd.Event) int64 { return ev.ArtifactID })
	ioEvents := append(inputs, outputs...)
	ids := make([]int64, 0, len(ioEvents))
	for _, ev := range ioEvents {
		ids = append(ids, ev.ArtifactID)
	}
	artifacts, err := b.Resolver.ResolveArtifacts(ctx, ids)
	if err != nil {
		return nil, err
	}

	g := NewGraph("io")
	root := ExecutionNode(exe)
	root.Root = true
	g.AddNode(root)
	for _, id := range uniqueSorted(ids) {
		if a, ok := artifacts[id]; ok {
			g.AddNode(ArtifactNode(a))
		}
	}
	for _, ev := range ioEvents {
		if !g.HasNode(NodeKey{Kind: NodeArtifact, ID: ev.ArtifactID}) {
			b.logger().Warn("event references missing artifact", "artifact_id", ev.ArtifactID, "execution_id", executionID)
			continue
		}
		if _, err := g.AddEdge(eventEdge(ev)); err != nil {
			return nil, err
		}
	}
	return g, nil
}

// Context builds the graph of a context's members and the events between them.
// Artifacts touched by member executions are included even when they are not
// attributed to the context.
func (b Builder) Context(ctx context.Context, contextID int64) (*Graph, error) {
	contexts, err := b.Resolver.ResolveContexts(ctx, []int64{contextID})
	if err != nil {
		return nil, err
	}
	c, ok := contexts[contextID]
	if !ok {
		return nil, &NotFoundError{Kind: NodeContext, ID: contextID}
	}
	var (
		executions []mlmd.Execution
		artifacts  []mlmd.Artifact
		events     []mlmd.Event
	)
	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() (err error) {
		executions, err = b.Resolver.ExecutionsInContext(gctx, contextID)
		return err
	})
	g.Go(func() (err error) {
		artifacts, err = b.Resolver.ArtifactsInContext(gctx, contextID)
		return err
	})
	g.Go(func() (err error) {
		events, err = b.Resolver.EventsInContext(gctx, contextID)
		return err
	})
	if err := g.Wait(); err != nil {
		return nil, err
	}

	graph := NewGraph("context")
	root := ContextNode(c)
	root.Root = true
	graph.AddNode(root)
	for _, e := range executions {
		graph.AddNode(ExecutionNode(e))
		if _, err := graph.AddEdge(Edge{From: root.Key, To: NodeKey{Kind: NodeExecution, ID: e.ID}, Kind: EdgeAssociation}); err != nil {
			return nil, err
		}
	}
	for _, a := range artifacts {
		graph.AddNode(ArtifactNode(a))
		if _, err := graph.AddEdge(Edge{From: root.Key, To: NodeKey{Kind: NodeArtifact, ID: a.ID}, Kind: EdgeAttribution}); err != nil {
			return nil, err
		}
	}

	var outside []int64
	for _, ev := range events {
		if !graph.HasNode(NodeKey{Kind: NodeArtifact, ID: ev.ArtifactID}) {
			outside = append(outside, ev.ArtifactID)
		}
	}
	extra, err := b.Resolver.ResolveArtifacts(ctx, outside)
	if err != nil {
		return nil, err
	}
	for _, id := range uniqueSorted(outside) {
		if a, ok := extra[id]; ok {
			graph.AddNode(ArtifactNode(a))
		}
	}
	for _, ev := range events {
		if !ev.Type.IsInput() && !ev.Type.IsOutput() {
			continue
		}
		e := eventEdge(ev)
		if !graph.HasNode(e.From) || !graph.HasNode(e.To) {
			continue
		}
		if _, err := graph.AddEdge(e); err != nil {
			return nil, err
		}
	}
	return graph, nil
}
