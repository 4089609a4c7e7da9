// Package query implements count and get uniformly over every entity kind.
package query

import (
	"context"
	"fmt"

	"mlmdq/internal/mlmd"
	"mlmdq/internal/store"
)

// DefaultPageSize is how many rows are requested per store round trip.
const DefaultPageSize = 100

// ListFunc fetches one page from the store.
type ListFunc[T any] func(ctx context.Context, f store.Filter, page store.Page) ([]T, string, error)

// CountFunc counts matches in the store.
type CountFunc func(ctx context.Context, f store.Filter) (int, error)

// EntityQuery is count/get for one kind. Pagination is followed internally.
type EntityQuery[T any] struct {
	Kind     store.Kind
	PageSize int

	list  ListFunc[T]
	count CountFunc
}

func NewEntityQuery[T any](kind store.Kind, pageSize int, list ListFunc[T], count CountFunc) EntityQuery[T] {
	if pageSize <= 0 {
		pageSize = DefaultPageSize
	}
	return EntityQuery[T]{Kind: kind, PageSize: pageSize, list: list, count: count}
}

// Count returns the number of matches, ignoring Limit and Offset.
func (q EntityQuery[T]) Count(ctx context.Context, f store.Filter) (int, error) {
	f.Limit, f.Offset = 0, 0
	return q.count(ctx, f)
}

// Get returns matches in the filter's order, up to f.Limit (0 = all).
func (q EntityQuery[T]) Get(ctx context.Context, f store.Filter) ([]T, error) {
	res := []T{}
	token := ""
	for {
		size := q.PageSize
		if f.Limit > 0 && f.Limit-len(res) < size {
			size = f.Limit - len(res)
		}
		items, next, err := q.list(ctx, f, store.Page{Token: token, Size: size})
		if err != nil {
			return nil, err
		}
		res = append(res, items...)
		if f.Limit > 0 && len(res) >= f.Limit {
			return res[:f.Limit], nil
		}
		if next == "" {
			return res, nil
		}
		if next == token {
			return nil, fmt.Errorf("%s: store returned the same page token twice", q.Kind)
		}
		token = next
	}
}

// Service bundles one EntityQuery per kind over a single store client.
type Service struct {
	Artifacts      EntityQuery[mlmd.Artifact]
	ArtifactTypes  EntityQuery[mlmd.Type]
	Executions     EntityQuery[mlmd.Execution]
	ExecutionTypes EntityQuery[mlmd.Type]
	Contexts       EntityQuery[mlmd.Context]
	ContextTypes   EntityQuery[mlmd.Type]
	Events         EntityQuery[mlmd.Event]
}

func New(c store.Client, pageSize int) Service {
	return Service{
		Artifacts:      NewEntityQuery(store.KindArtifact, pageSize, c.ListArtifacts, c.CountArtifacts),
		ArtifactTypes:  typeQuery(c, mlmd.ArtifactType, pageSize),
		Executions:     NewEntityQuery(store.KindExecution, pageSize, c.ListExecutions, c.CountExecutions),
		ExecutionTypes: typeQuery(c, mlmd.ExecutionType, pageSize),
		Contexts:       NewEntityQuery(store.KindContext, pageSize, c.ListContexts, c.CountContexts),
		ContextTypes:   typeQuery(c, mlmd.ContextType, pageSize),
		Events:         NewEntityQuery(store.KindEvent, pageSize, c.ListEvents, c.CountEvents),
	}
}

func typeQuery(c store.Client, kind mlmd.TypeKind, pageSize int) EntityQuery[mlmd.Type] {
	kinds := map[mlmd.TypeKind]store.Kind{
		mlmd.ArtifactType:  store.KindArtifactType,
		mlmd.ExecutionType: store.KindExecutionType,
		mlmd.ContextType:   store.KindContextType,
	}
	return NewEntityQuery(kinds[kind], pageSize,
		func(ctx context.Context, f store.Filter, page store.Page) ([]mlmd.Type, string, error) {
			return c.ListTypes(ctx, kind, f, page)
		},
		func(ctx context.Context, f store.Filter) (int, error) {
			return c.CountTypes(ctx, kind, f)
		})
}

// Count dispatches on kind.
func (s Service) Count(ctx context.Context, kind store.Kind, f store.Filter) (int, error) {
	switch kind {
	case store.KindArtifact:
		return s.Artifacts.Count(ctx, f)
	case store.KindArtifactType:
		return s.ArtifactTypes.Count(ctx, f)
	case store.KindExecution:
		return s.Executions.Count(ctx, f)
	case store.KindExecutionType:
		return s.ExecutionTypes.Count(ctx, f)
	case store.KindContext:
		return s.Contexts.Count(ctx, f)
	case store.KindContextType:
		return s.ContextTypes.Count(ctx, f)
	case store.KindEvent:
		return s.Events.Count(ctx, f)
	default:
		return 0, fmt.Errorf("unknown kind %q", kind)
	}
}

// Get dispatches on kind. The result is a typed slice suitable for JSON encoding.
func (s Service) Get(ctx context.Context, kind store.Kind, f store.Filter) (any, error) {
	switch kind {
	case store.KindArtifact:
		return s.Artifacts.Get(ctx, f)
	case store.KindArtifactType:
		return s.ArtifactTypes.Get(ctx, f)
	case store.KindExecution:
		return s.Executions.Get(ctx, f)
	case store.KindExecutionType:
		return s.ExecutionTypes.Get(ctx, f)
	case store.KindContext:
		return s.Contexts.Get(ctx, f)
	case store.KindContextType:
		return s.ContextTypes.Get(ctx, f)
	case store.KindEvent:
		return s.Events.Get(ctx, f)
	default:
		return nil, fmt.Errorf("unknown kind %q", kind)
	}
}
