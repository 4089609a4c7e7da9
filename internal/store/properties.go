package store

import (
	"context"
	"database/sql"

	"mlmdq/internal/mlmd"
)

type propertySet map[int64]map[string]mlmd.Value

// loadProperties reads declared and custom properties for ids in one query.
func (s *Store) loadProperties(ctx context.Context, table, fk string, ids []int64) (propertySet, propertySet, error) {
	props, custom := propertySet{}, propertySet{}
	if len(ids) == 0 {
		return props, custom, nil
	}
	query := s.DB.Dialect.Rebind(`SELECT ` + fk + `, name, is_custom_property, int_value, double_value, string_value, bool_value FROM ` +
		s.DB.Dialect.Ident(table) + ` WHERE ` + fk + ` IN (` + placeholders(len(ids)) + `) ORDER BY ` + fk + `, name`)
	rows, err := s.DB.QueryContext(ctx, query, int64Args(ids)...)
	if err != nil {
		return nil, nil, requestError("load "+table, err)
	}
	defer rows.Close()
	for rows.Next() {
		var (
			id       int64
			name     string
			isCustom bool
			intVal   sql.NullInt64
			dblVal   sql.NullFloat64
			strVal   sql.NullString
			boolVal  sql.NullBool
		)
		if err := rows.Scan(&id, &name, &isCustom, &intVal, &dblVal, &strVal, &boolVal); err != nil {
			return nil, nil, requestError("load "+table, err)
		}
		var v mlmd.Value
		switch {
		case intVal.Valid:
			v = mlmd.IntValue(intVal.Int64)
		case dblVal.Valid:
			v = mlmd.DoubleValue(dblVal.Float64)
		case strVal.Valid:
			v = mlmd.StringValue(strVal.String)
		case boolVal.Valid:
			v = mlmd.BoolValue(boolVal.Bool)
		default:
			// byte and proto values are not rendered
			continue
		}
		target := props
		if isCustom {
			target = custom
		}
		if target[id] == nil {
			target[id] = map[string]mlmd.Value{}
		}
		target[id][name] = v
	}
	if err := rows.Err(); err != nil {
		return nil, nil, requestError("load "+table, err)
	}
	return props, custom, nil
}

var dataTypeNames = map[int]string{
	0: "UNKNOWN",
	1: "INT",
	2: "DOUBLE",
	3: "STRING",
	4: "STRUCT",
	5: "PROTO",
	6: "BOOLEAN",
}

func (s *Store) loadTypeProperties(ctx context.Context, ids []int64) (map[int64]map[string]string, error) {
	out := map[int64]map[string]string{}
	if len(ids) == 0 {
		return out, nil
	}
	query := s.DB.Dialect.Rebind(`SELECT type_id, name, data_type FROM ` + s.DB.Dialect.Ident("TypeProperty") + ` WHERE type_id IN (` + placeholders(len(ids)) + `)`)
	rows, err := s.DB.QueryContext(ctx, query, int64Args(ids)...)
	if err != nil {
		return nil, requestError("load TypeProperty", err)
	}
	defer rows.Close()
	for rows.Next() {
		var id int64
		var name string
		var dt sql.NullInt64
		if err := rows.Scan(&id, &name, &dt); err != nil {
			return nil, requestError("load TypeProperty", err)
		}
		if out[id] == nil {
			out[id] = map[string]string{}
		}
		dtName, ok := dataTypeNames[int(dt.Int64)]
		if !ok {
			dtName = "UNKNOWN"
		}
		out[id][name] = dtName
	}
	if err := rows.Err(); err != nil {
		return nil, requestError("load TypeProperty", err)
	}
	return out, nil
}
