// Package app wires config, database, store, query service and graph
// builders together for the CLI and the HTTP server.
package app

import (
	"context"
	"fmt"
	"log/slog"

	"mlmdq/internal/config"
	"mlmdq/internal/db"
	"mlmdq/internal/lineage"
	"mlmdq/internal/query"
	"mlmdq/internal/store"
)

// App is one opened metadata store and everything built on it.
type App struct {
	Config *config.Config
	Logger *slog.Logger

	DB     *db.DB
	Store  *store.Store
	Query  query.Service
	Graphs lineage.Builder
}

// Open connects to cfg.Store.URL read-only and checks its schema.
func Open(ctx context.Context, cfg *config.Config, logger *slog.Logger) (*App, error) {
	if cfg == nil {
		cfg = config.Default()
	}
	if logger == nil {
		logger = slog.Default()
	}
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	if err := cfg.RequireStore(); err != nil {
		return nil, err
	}
	conn, err := db.Open(db.Config{URL: cfg.Store.URL})
	if err != nil {
		return nil, &store.RequestError{Op: "open store", Err: err, Unavailable: true}
	}
	s, err := store.Open(ctx, conn, logger)
	if err != nil {
		conn.Close()
		return nil, err
	}
	return New(cfg, conn, s, logger), nil
}

// New assembles an App over an already opened store.
func New(cfg *config.Config, conn *db.DB, s *store.Store, logger *slog.Logger) *App {
	if cfg == nil {
		cfg = config.Default()
	}
	if logger == nil {
		logger = slog.Default()
	}
	q := query.New(s, cfg.Query.PageSize)
	return &App{
		Config: cfg,
		Logger: logger,
		DB:     conn,
		Store:  s,
		Query:  q,
		Graphs: lineage.Builder{
			Resolver:    lineage.Resolver{Query: q},
			Concurrency: cfg.Graph.Concurrency,
			Logger:      logger,
		},
	}
}

func (a *App) Close() error {
	if a == nil || a.DB == nil {
		return nil
	}
	return a.DB.Close()
}

// GraphKind names the graphs the builders can produce.
type GraphKind string

const (
	GraphLineage GraphKind = "lineage"
	GraphIO      GraphKind = "io"
	GraphContext GraphKind = "context"
)

// GraphRequest selects one graph. Depth < 0 means the configured default.
type GraphRequest struct {
	Kind      GraphKind
	ID        int64
	Depth     int
	Direction lineage.Direction
}

// Graph builds the requested graph.
func (a *App) Graph(ctx context.Context, req GraphRequest) (*lineage.Graph, error) {
	switch req.Kind {
	case GraphLineage:
		depth := req.Depth
		if depth < 0 {
			depth = a.Config.Graph.MaxDepth
		}
		return a.Graphs.Lineage(ctx, req.ID, lineage.LineageOptions{Depth: depth, Direction: req.Direction})
	case GraphIO:
		return a.Graphs.IO(ctx, req.ID)
	case GraphContext:
		return a.Graphs.Context(ctx, req.ID)
	default:
		return nil, fmt.Errorf("unknown graph kind %q", req.Kind)
	}
}
