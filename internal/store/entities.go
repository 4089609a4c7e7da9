package store

import (
	"context"
	"database/sql"

	"mlmdq/internal/mlmd"
)

const (
	artifactCols  = `id, type_id, uri, state, name, create_time_since_epoch, last_update_time_since_epoch`
	executionCols = `id, type_id, last_known_state, name, create_time_since_epoch, last_update_time_since_epoch`
	contextCols   = `id, type_id, name, create_time_since_epoch, last_update_time_since_epoch`
	eventCols     = `artifact_id, execution_id, type, milliseconds_since_epoch`
	typeCols      = `id, name, type_kind`
)

func (s *Store) CountArtifacts(ctx context.Context, f Filter) (int, error) {
	return s.count(ctx, artifactSpec, f)
}

func (s *Store) ListArtifacts(ctx context.Context, f Filter, page Page) ([]mlmd.Artifact, string, error) {
	query, args, consumed, err := s.listQuery(artifactSpec, artifactCols, f, page)
	if err != nil {
		return nil, "", err
	}
	rows, err := s.DB.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, "", requestError("list artifacts", err)
	}
	defer rows.Close()
	var res []mlmd.Artifact
	for rows.Next() {
		var a mlmd.Artifact
		var uri, name sql.NullString
		var state sql.NullInt64
		var ctime, mtime int64
		if err := rows.Scan(&a.ID, &a.TypeID, &uri, &state, &name, &ctime, &mtime); err != nil {
			return nil, "", requestError("list artifacts", err)
		}
		if uri.Valid {
			a.URI = uri.String
		}
		if name.Valid {
			a.Name = name.String
		}
		if state.Valid {
			a.State = mlmd.ArtifactState(state.Int64)
		}
		a.CreateTime = mlmd.FromMillis(ctime)
		a.UpdateTime = mlmd.FromMillis(mtime)
		res = append(res, a)
	}
	if err := rows.Err(); err != nil {
		return nil, "", requestError("list artifacts", err)
	}
	res, next := trimPage(res, page, consumed)

	ids := make([]int64, len(res))
	typeIDs := make([]int64, len(res))
	for i, a := range res {
		ids[i], typeIDs[i] = a.ID, a.TypeID
	}
	names, err := s.resolveTypeNames(ctx, typeIDs)
	if err != nil {
		return nil, "", err
	}
	props, custom, err := s.loadProperties(ctx, "ArtifactProperty", "artifact_id", ids)
	if err != nil {
		return nil, "", err
	}
	for i := range res {
		res[i].TypeName = names[res[i].TypeID]
		res[i].Properties = props[res[i].ID]
		res[i].CustomProperties = custom[res[i].ID]
	}
	return res, next, nil
}

func (s *Store) CountExecutions(ctx context.Context, f Filter) (int, error) {
	return s.count(ctx, executionSpec, f)
}

func (s *Store) ListExecutions(ctx context.Context, f Filter, page Page) ([]mlmd.Execution, string, error) {
	query, args, consumed, err := s.listQuery(executionSpec, executionCols, f, page)
	if err != nil {
		return nil, "", err
	}
	rows, err := s.DB.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, "", requestError("list executions", err)
	}
	defer rows.Close()
	var res []mlmd.Execution
	for rows.Next() {
		var e mlmd.Execution
		var name sql.NullString
		var state sql.NullInt64
		var ctime, mtime int64
		if err := rows.Scan(&e.ID, &e.TypeID, &state, &name, &ctime, &mtime); err != nil {
			return nil, "", requestError("list executions", err)
		}
		if name.Valid {
			e.Name = name.String
		}
		if state.Valid {
			e.State = mlmd.ExecutionState(state.Int64)
		}
		e.CreateTime = mlmd.FromMillis(ctime)
		e.UpdateTime = mlmd.FromMillis(mtime)
		res = append(res, e)
	}
	if err := rows.Err(); err != nil {
		return nil, "", requestError("list executions", err)
	}
	res, next := trimPage(res, page, consumed)

	ids := make([]int64, len(res))
	typeIDs := make([]int64, len(res))
	for i, e := range res {
		ids[i], typeIDs[i] = e.ID, e.TypeID
	}
	names, err := s.resolveTypeNames(ctx, typeIDs)
	if err != nil {
		return nil, "", err
	}
	props, custom, err := s.loadProperties(ctx, "ExecutionProperty", "execution_id", ids)
	if err != nil {
		return nil, "", err
	}
	for i := range res {
		res[i].TypeName = names[res[i].TypeID]
		res[i].Properties = props[res[i].ID]
		res[i].CustomProperties = custom[res[i].ID]
	}
	return res, next, nil
}

func (s *Store) CountContexts(ctx context.Context, f Filter) (int, error) {
	return s.count(ctx, contextSpec, f)
}

func (s *Store) ListContexts(ctx context.Context, f Filter, page Page) ([]mlmd.Context, string, error) {
	query, args, consumed, err := s.listQuery(contextSpec, contextCols, f, page)
	if err != nil {
		return nil, "", err
	}
	rows, err := s.DB.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, "", requestError("list contexts", err)
	}
	defer rows.Close()
	var res []mlmd.Context
	for rows.Next() {
		var c mlmd.Context
		var ctime, mtime int64
		if err := rows.Scan(&c.ID, &c.TypeID, &c.Name, &ctime, &mtime); err != nil {
			return nil, "", requestError("list contexts", err)
		}
		c.CreateTime = mlmd.FromMillis(ctime)
		c.UpdateTime = mlmd.FromMillis(mtime)
		res = append(res, c)
	}
	if err := rows.Err(); err != nil {
		return nil, "", requestError("list contexts", err)
	}
	res, next := trimPage(res, page, consumed)

	ids := make([]int64, len(res))
	typeIDs := make([]int64, len(res))
	for i, c := range res {
		ids[i], typeIDs[i] = c.ID, c.TypeID
	}
	names, err := s.resolveTypeNames(ctx, typeIDs)
	if err != nil {
		return nil, "", err
	}
	props, custom, err := s.loadProperties(ctx, "ContextProperty", "context_id", ids)
	if err != nil {
		return nil, "", err
	}
	for i := range res {
		res[i].TypeName = names[res[i].TypeID]
		res[i].Properties = props[res[i].ID]
		res[i].CustomProperties = custom[res[i].ID]
	}
	return res, next, nil
}

func (s *Store) CountEvents(ctx context.Context, f Filter) (int, error) {
	return s.count(ctx, eventSpec, f)
}

func (s *Store) ListEvents(ctx context.Context, f Filter, page Page) ([]mlmd.Event, string, error) {
	query, args, consumed, err := s.listQuery(eventSpec, eventCols, f, page)
	if err != nil {
		return nil, "", err
	}
	rows, err := s.DB.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, "", requestError("list events", err)
	}
	defer rows.Close()
	var res []mlmd.Event
	for rows.Next() {
		var e mlmd.Event
		var typ int
		var ts sql.NullInt64
		if err := rows.Scan(&e.ArtifactID, &e.ExecutionID, &typ, &ts); err != nil {
			return nil, "", requestError("list events", err)
		}
		e.Type = mlmd.EventType(typ)
		e.Timestamp = mlmd.FromMillis(ts.Int64)
		res = append(res, e)
	}
	if err := rows.Err(); err != nil {
		return nil, "", requestError("list events", err)
	}
	res, next := trimPage(res, page, consumed)
	return res, next, nil
}

func (s *Store) CountTypes(ctx context.Context, kind mlmd.TypeKind, f Filter) (int, error) {
	return s.count(ctx, typeSpec(kind), f)
}

func (s *Store) ListTypes(ctx context.Context, kind mlmd.TypeKind, f Filter, page Page) ([]mlmd.Type, string, error) {
	spec := typeSpec(kind)
	query, args, consumed, err := s.listQuery(spec, typeCols, f, page)
	if err != nil {
		return nil, "", err
	}
	rows, err := s.DB.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, "", requestError("list "+string(spec.kind), err)
	}
	defer rows.Close()
	var res []mlmd.Type
	for rows.Next() {
		var t mlmd.Type
		var k int
		if err := rows.Scan(&t.ID, &t.Name, &k); err != nil {
			return nil, "", requestError("list "+string(spec.kind), err)
		}
		t.Kind = mlmd.TypeKind(k)
		s.typeNames.Add(t.ID, t.Name)
		res = append(res, t)
	}
	if err := rows.Err(); err != nil {
		return nil, "", requestError("list "+string(spec.kind), err)
	}
	res, next := trimPage(res, page, consumed)

	ids := make([]int64, len(res))
	for i, t := range res {
		ids[i] = t.ID
	}
	props, err := s.loadTypeProperties(ctx, ids)
	if err != nil {
		return nil, "", err
	}
	for i := range res {
		res[i].Properties = props[res[i].ID]
	}
	return res, next, nil
}
