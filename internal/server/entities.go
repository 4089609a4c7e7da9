package server

import (
	"context"
	"net/http"
	"strings"

	"github.com/danielgtaylor/huma/v2"

	"mlmdq/internal/app"
	"mlmdq/internal/query"
	"mlmdq/internal/store"
)

// filterInput is the query string shared by list and count endpoints.
// Repeated values are comma separated.
type filterInput struct {
	IDs        []int64  `query:"id" doc:"Entity ids"`
	Types      []string `query:"type" doc:"Type names, e.g. Dataset,Model"`
	URI        string   `query:"uri" doc:"Artifact URI"`
	Name       string   `query:"name" doc:"Entity name"`
	Context    int64    `query:"context" doc:"Context id the entity belongs to"`
	Artifacts  []int64  `query:"artifact" doc:"Artifact ids (events, contexts)"`
	Executions []int64  `query:"execution" doc:"Execution ids (events, contexts)"`
	EventTypes []string `query:"event_type" doc:"Event types, e.g. INPUT,OUTPUT"`
	CTimeStart string   `query:"ctime_start" doc:"Created at or after (RFC 3339, date or epoch ms)"`
	CTimeEnd   string   `query:"ctime_end" doc:"Created before"`
	MTimeStart string   `query:"mtime_start" doc:"Updated at or after"`
	MTimeEnd   string   `query:"mtime_end" doc:"Updated before"`
	OrderBy    string   `query:"order_by" enum:"id,name,ctime,mtime" default:"id"`
	Asc        bool     `query:"asc"`
	Limit      int      `query:"limit" minimum:"0"`
	Offset     int      `query:"offset" minimum:"0"`
}

func (in *filterInput) params() query.Params {
	return query.Params{
		IDs:             in.IDs,
		Types:           in.Types,
		URI:             in.URI,
		Name:            in.Name,
		Context:         in.Context,
		Artifacts:       in.Artifacts,
		Executions:      in.Executions,
		EventTypes:      in.EventTypes,
		CreateTimeStart: in.CTimeStart,
		CreateTimeEnd:   in.CTimeEnd,
		UpdateTimeStart: in.MTimeStart,
		UpdateTimeEnd:   in.MTimeEnd,
		OrderBy:         in.OrderBy,
		Asc:             in.Asc,
		Limit:           in.Limit,
		Offset:          in.Offset,
	}
}

// CountResponse is the body of /{kind}/count.
type CountResponse struct {
	Kind  string `json:"kind"`
	Count int    `json:"count"`
}

func registerEntities(api huma.API, a *app.App) {
	registerKind(api, store.KindArtifact, a.Query.Artifacts)
	registerKind(api, store.KindArtifactType, a.Query.ArtifactTypes)
	registerKind(api, store.KindExecution, a.Query.Executions)
	registerKind(api, store.KindExecutionType, a.Query.ExecutionTypes)
	registerKind(api, store.KindContext, a.Query.Contexts)
	registerKind(api, store.KindContextType, a.Query.ContextTypes)
	registerKind(api, store.KindEvent, a.Query.Events)
}

func registerKind[T any](api huma.API, kind store.Kind, q query.EntityQuery[T]) {
	noun := strings.ReplaceAll(string(kind), "-", " ")
	huma.Register(api, huma.Operation{
		OperationID: "get-" + string(kind),
		Method:      http.MethodGet,
		Path:        "/" + string(kind),
		Summary:     "Get " + noun,
		Tags:        []string{"entities"},
		Errors:      []int{http.StatusBadRequest, http.StatusServiceUnavailable},
	}, func(ctx context.Context, input *filterInput) (*struct {
		Body []T `json:"body"`
	}, error) {
		f, err := input.params().Filter(kind)
		if err != nil {
			return nil, handleError(err)
		}
		items, err := q.Get(ctx, f)
		if err != nil {
			return nil, handleError(err)
		}
		return &struct {
			Body []T `json:"body"`
		}{Body: items}, nil
	})

	huma.Register(api, huma.Operation{
		OperationID: "count-" + string(kind),
		Method:      http.MethodGet,
		Path:        "/" + string(kind) + "/count",
		Summary:     "Count " + noun,
		Tags:        []string{"entities"},
		Errors:      []int{http.StatusBadRequest, http.StatusServiceUnavailable},
	}, func(ctx context.Context, input *filterInput) (*struct {
		Body CountResponse `json:"body"`
	}, error) {
		f, err := input.params().Filter(kind)
		if err != nil {
			return nil, handleError(err)
		}
		n, err := q.Count(ctx, f)
		if err != nil {
			return nil, handleError(err)
		}
		return &struct {
			Body CountResponse `json:"body"`
		}{Body: CountResponse{Kind: string(kind), Count: n}}, nil
	})
}
