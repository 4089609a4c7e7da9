package server

import (
	"bytes"
	"context"
	"net/http"

	"github.com/danielgtaylor/huma/v2"

	"mlmdq/internal/app"
	"mlmdq/internal/lineage"
	"mlmdq/internal/render"
)

type graphOutput struct {
	ContentType string `header:"Content-Type"`
	Body        []byte
}

func registerGraphs(api huma.API, a *app.App) {
	huma.Register(api, huma.Operation{
		OperationID: "graph-lineage",
		Method:      http.MethodGet,
		Path:        "/graph/lineage/{artifact_id}",
		Summary:     "Lineage graph of an artifact",
		Tags:        []string{"graphs"},
		Errors:      []int{http.StatusBadRequest, http.StatusNotFound, http.StatusServiceUnavailable},
	}, func(ctx context.Context, input *struct {
		ArtifactID int64  `path:"artifact_id"`
		Depth      int    `query:"depth" default:"-1" minimum:"-1" doc:"Hop bound; 0 is unbounded, -1 uses the server default"`
		Direction  string `query:"direction" enum:"upstream,downstream,both" default:"upstream"`
		Format     string `query:"format" enum:"dot,json" doc:"Output format; defaults to graph.format from the config"`
	}) (*graphOutput, error) {
		dir, err := lineage.ParseDirection(input.Direction)
		if err != nil {
			return nil, newAPIError(http.StatusBadRequest, "bad_request", err.Error(), nil)
		}
		return buildGraph(ctx, a, app.GraphRequest{Kind: app.GraphLineage, ID: input.ArtifactID, Depth: input.Depth, Direction: dir}, input.Format)
	})

	huma.Register(api, huma.Operation{
		OperationID: "graph-io",
		Method:      http.MethodGet,
		Path:        "/graph/io/{execution_id}",
		Summary:     "Input/output graph of an execution",
		Tags:        []string{"graphs"},
		Errors:      []int{http.StatusNotFound, http.StatusServiceUnavailable},
	}, func(ctx context.Context, input *struct {
		ExecutionID int64  `path:"execution_id"`
		Format      string `query:"format" enum:"dot,json" doc:"Output format; defaults to graph.format from the config"`
	}) (*graphOutput, error) {
		return buildGraph(ctx, a, app.GraphRequest{Kind: app.GraphIO, ID: input.ExecutionID}, input.Format)
	})

	huma.Register(api, huma.Operation{
		OperationID: "graph-context",
		Method:      http.MethodGet,
		Path:        "/graph/context/{context_id}",
		Summary:     "Members of a context and the events between them",
		Tags:        []string{"graphs"},
		Errors:      []int{http.StatusNotFound, http.StatusServiceUnavailable},
	}, func(ctx context.Context, input *struct {
		ContextID int64  `path:"context_id"`
		Format    string `query:"format" enum:"dot,json" doc:"Output format; defaults to graph.format from the config"`
	}) (*graphOutput, error) {
		return buildGraph(ctx, a, app.GraphRequest{Kind: app.GraphContext, ID: input.ContextID}, input.Format)
	})
}

func buildGraph(ctx context.Context, a *app.App, req app.GraphRequest, rawFormat string) (*graphOutput, error) {
	if rawFormat == "" && a.Config != nil {
		rawFormat = a.Config.Graph.Format
	}
	format, err := render.ParseFormat(rawFormat)
	if err != nil {
		return nil, newAPIError(http.StatusBadRequest, "bad_request", err.Error(), nil)
	}
	g, err := a.Graph(ctx, req)
	if err != nil {
		return nil, handleError(err)
	}
	var buf bytes.Buffer
	if err := render.Render(&buf, g, format); err != nil {
		return nil, handleError(err)
	}
	contentType := "text/vnd.graphviz; charset=utf-8"
	if format == render.FormatJSON {
		contentType = "application/json"
	}
	return &graphOutput{ContentType: contentType, Body: buf.Bytes()}, nil
}
