package lineage

import (
	"context"
	"fmt"
	"sort"

	"mlmdq/internal/mlmd"
	"mlmdq/internal/query"
	"mlmdq/internal/store"
)

// NotFoundError reports a root entity missing from the store.
type NotFoundError struct {
	Kind NodeKind
	ID   int64
}

func (e *NotFoundError) Error() string {
	return fmt.Sprintf("%s %d not found", e.Kind, e.ID)
}

func (e *NotFoundError) Is(target error) bool { return target == store.ErrNotFound }

// resolveChunk bounds the size of one IN (...) list.
const resolveChunk = 500

// Resolver performs the batched lookups shared by the graph builders.
type Resolver struct {
	Query query.Service
}

func ascending() store.Filter {
	return store.Filter{OrderBy: store.OrderByID, Asc: true}
}

func (r Resolver) EventsForArtifact(ctx context.Context, id int64) ([]mlmd.Event, error) {
	f := ascending()
	f.ArtifactIDs = []int64{id}
	return r.Query.Events.Get(ctx, f)
}

func (r Resolver) EventsForExecution(ctx context.Context, id int64) ([]mlmd.Event, error) {
	f := ascending()
	f.ExecutionIDs = []int64{id}
	return r.Query.Events.Get(ctx, f)
}

// EventsInContext returns events whose execution is associated with the context.
func (r Resolver) EventsInContext(ctx context.Context, contextID int64) ([]mlmd.Event, error) {
	f := ascending()
	f.ContextID = contextID
	return r.Query.Events.Get(ctx, f)
}

func (r Resolver) ArtifactsInContext(ctx context.Context, contextID int64) ([]mlmd.Artifact, error) {
	f := ascending()
	f.ContextID = contextID
	return r.Query.Artifacts.Get(ctx, f)
}

func (r Resolver) ExecutionsInContext(ctx context.Context, contextID int64) ([]mlmd.Execution, error) {
	f := ascending()
	f.ContextID = contextID
	return r.Query.Executions.Get(ctx, f)
}

func (r Resolver) ResolveArtifacts(ctx context.Context, ids []int64) (map[int64]mlmd.Artifact, error) {
	return resolve(ctx, ids, r.Query.Artifacts, func(a mlmd.Artifact) int64 { return a.ID })
}

func (r Resolver) ResolveExecutions(ctx context.Context, ids []int64) (map[int64]mlmd.Execution, error) {
	return resolve(ctx, ids, r.Query.Executions, func(e mlmd.Execution) int64 { return e.ID })
}

func (r Resolver) ResolveContexts(ctx context.Context, ids []int64) (map[int64]mlmd.Context, error) {
	return resolve(ctx, ids, r.Query.Contexts, func(c mlmd.Context) int64 { return c.ID })
}

func resolve[T any](ctx context.Context, ids []int64, q query.EntityQuery[T], idOf func(T) int64) (map[int64]T, error) {
	ids = uniqueSorted(ids)
	out := make(map[int64]T, len(ids))
	for start := 0; start < len(ids); start += resolveChunk {
		end := min(start+resolveChunk, len(ids))
		f := ascending()
		f.IDs = ids[start:end]
		items, err := q.Get(ctx, f)
		if err != nil {
			return nil, err
		}
		for _, it := range items {
			out[idOf(it)] = it
		}
	}
	return out, nil
}

func uniqueSorted(ids []int64) []int64 {
	if len(ids) == 0 {
		return nil
	}
	out := append([]int64(nil), ids...)
	sort.Slice(out, func(i, j int) bool { return out[i] < out[j] })
	n := 1
	for i := 1; i < len(out); i++ {
		if out[i] != out[n-1] {
			out[n] = out[i]
			n++
		}
	}
	return out[:n]
}
