// Package store is the read-only facade over an ML Metadata database. It
// turns Filter values into SQL and scans rows into mlmd snapshots.
package store

import (
	"context"
	"fmt"
	"log/slog"

	lru "github.com/hashicorp/golang-lru/v2"

	"mlmdq/internal/db"
	"mlmdq/internal/mlmd"
	"mlmdq/internal/schema"
)

// Kind names the seven queryable collections.
type Kind string

const (
	KindArtifact      Kind = "artifacts"
	KindExecution     Kind = "executions"
	KindContext       Kind = "contexts"
	KindEvent         Kind = "events"
	KindArtifactType  Kind = "artifact-types"
	KindExecutionType Kind = "execution-types"
	KindContextType   Kind = "context-types"
)

// Kinds lists every collection in CLI order.
var Kinds = []Kind{
	KindArtifact, KindArtifactType,
	KindExecution, KindExecutionType,
	KindContext, KindContextType,
	KindEvent,
}

func typeKindOf(k mlmd.TypeKind) Kind {
	switch k {
	case mlmd.ArtifactType:
		return KindArtifactType
	case mlmd.ExecutionType:
		return KindExecutionType
	default:
		return KindContextType
	}
}

// Client is what the query layer needs from a metadata store. List returns
// one page and the token of the next one ("" when exhausted).
type Client interface {
	ListArtifacts(ctx context.Context, f Filter, page Page) ([]mlmd.Artifact, string, error)
	CountArtifacts(ctx context.Context, f Filter) (int, error)
	ListExecutions(ctx context.Context, f Filter, page Page) ([]mlmd.Execution, string, error)
	CountExecutions(ctx context.Context, f Filter) (int, error)
	ListContexts(ctx context.Context, f Filter, page Page) ([]mlmd.Context, string, error)
	CountContexts(ctx context.Context, f Filter) (int, error)
	ListEvents(ctx context.Context, f Filter, page Page) ([]mlmd.Event, string, error)
	CountEvents(ctx context.Context, f Filter) (int, error)
	ListTypes(ctx context.Context, kind mlmd.TypeKind, f Filter, page Page) ([]mlmd.Type, string, error)
	CountTypes(ctx context.Context, kind mlmd.TypeKind, f Filter) (int, error)
}

const typeCacheSize = 512

// Store implements Client over database/sql.
type Store struct {
	DB     *db.DB
	Logger *slog.Logger

	typeNames *lru.Cache[int64, string]
}

var _ Client = (*Store)(nil)

// New wraps an open connection without probing it.
func New(conn *db.DB, logger *slog.Logger) (*Store, error) {
	if logger == nil {
		logger = slog.Default()
	}
	cache, err := lru.New[int64, string](typeCacheSize)
	if err != nil {
		return nil, err
	}
	return &Store{DB: conn, Logger: logger, typeNames: cache}, nil
}

// Open wraps conn and checks that it holds a readable MLMD schema.
func Open(ctx context.Context, conn *db.DB, logger *slog.Logger) (*Store, error) {
	s, err := New(conn, logger)
	if err != nil {
		return nil, err
	}
	if err := conn.PingContext(ctx); err != nil {
		return nil, &RequestError{Op: "connect", Err: err, Unavailable: true}
	}
	v, err := schema.Version(ctx, conn.DB, conn.Dialect)
	if err != nil {
		return nil, &RequestError{Op: "read schema version", Err: err, Unavailable: true}
	}
	if v < schema.MinVersion {
		return nil, &RequestError{Op: "read schema version", Err: fmt.Errorf("schema version %d is older than %d", v, schema.MinVersion), Unavailable: true}
	}
	s.Logger.Debug("store opened", "dialect", conn.Dialect.String(), "schema_version", v)
	return s, nil
}

func (s *Store) count(ctx context.Context, spec entitySpec, f Filter) (int, error) {
	p, err := buildPredicate(s.DB.Dialect, spec, f)
	if err != nil {
		return 0, err
	}
	query := s.DB.Dialect.Rebind(`SELECT COUNT(*) FROM ` + s.DB.Dialect.Ident(spec.table) + p.where())
	var n int
	if err := s.DB.QueryRowContext(ctx, query, p.args...).Scan(&n); err != nil {
		return 0, requestError("count "+string(spec.kind), err)
	}
	return n, nil
}

// listQuery assembles the SELECT for one page. It returns the SQL, its args,
// and the page's offset past f.Offset.
func (s *Store) listQuery(spec entitySpec, cols string, f Filter, page Page) (string, []any, int, error) {
	p, err := buildPredicate(s.DB.Dialect, spec, f)
	if err != nil {
		return "", nil, 0, err
	}
	order, err := orderClause(spec, f)
	if err != nil {
		return "", nil, 0, err
	}
	limit, consumed, err := pageClause(spec, f, page)
	if err != nil {
		return "", nil, 0, err
	}
	query := `SELECT ` + cols + ` FROM ` + s.DB.Dialect.Ident(spec.table) + p.where() + order + limit
	return s.DB.Dialect.Rebind(query), p.args, consumed, nil
}

// trimPage drops the look-ahead row and computes the next token.
func trimPage[T any](items []T, page Page, consumed int) ([]T, string) {
	if page.Size <= 0 || len(items) <= page.Size {
		return items, ""
	}
	return items[:page.Size], encodePageToken(consumed + page.Size)
}

func (s *Store) resolveTypeNames(ctx context.Context, typeIDs []int64) (map[int64]string, error) {
	out := make(map[int64]string, len(typeIDs))
	var missing []int64
	seen := map[int64]bool{}
	for _, id := range typeIDs {
		if seen[id] {
			continue
		}
		seen[id] = true
		if name, ok := s.typeNames.Get(id); ok {
			out[id] = name
			continue
		}
		missing = append(missing, id)
	}
	if len(missing) == 0 {
		return out, nil
	}
	query := s.DB.Dialect.Rebind(`SELECT id, name FROM ` + s.DB.Dialect.Ident("Type") + ` WHERE id IN (` + placeholders(len(missing)) + `)`)
	rows, err := s.DB.QueryContext(ctx, query, int64Args(missing)...)
	if err != nil {
		return nil, requestError("resolve type names", err)
	}
	defer rows.Close()
	for rows.Next() {
		var id int64
		var name string
		if err := rows.Scan(&id, &name); err != nil {
			return nil, requestError("resolve type names", err)
		}
		s.typeNames.Add(id, name)
		out[id] = name
	}
	if err := rows.Err(); err != nil {
		return nil, requestError("resolve type names", err)
	}
	return out, nil
}
