package store

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"mlmdq/internal/db"
	"mlmdq/internal/mlmd"
)

func TestBuildPredicate(t *testing.T) {
	since := time.UnixMilli(1000).UTC()
	p, err := buildPredicate(db.SQLite, artifactSpec, Filter{
		IDs:             []int64{1, 2},
		TypeName:        "Dataset",
		URI:             "s3://x",
		CreateTimeSince: since,
	})
	require.NoError(t, err)
	assert.Equal(t,
		" WHERE id IN (?,?) AND type_id IN (SELECT id FROM Type WHERE type_kind = ? AND name = ?) AND uri = ? AND create_time_since_epoch >= ?",
		p.where())
	assert.Equal(t, []any{int64(1), int64(2), int(mlmd.ArtifactType), "Dataset", "s3://x", int64(1000)}, p.args)
}

func TestBuildPredicateQuotesPostgresTables(t *testing.T) {
	p, err := buildPredicate(db.Postgres, artifactSpec, Filter{TypeNames: []string{"Dataset", "Model"}, ContextID: 7})
	require.NoError(t, err)
	assert.Equal(t,
		` WHERE type_id IN (SELECT id FROM "Type" WHERE type_kind = ? AND name IN (?,?)) AND id IN (SELECT artifact_id FROM "Attribution" WHERE context_id = ?)`,
		p.where())
	assert.Equal(t, []any{int(mlmd.ArtifactType), "Dataset", "Model", int64(7)}, p.args)

	p, err = buildPredicate(db.Postgres, eventSpec, Filter{ContextID: 7})
	require.NoError(t, err)
	assert.Equal(t, ` WHERE execution_id IN (SELECT execution_id FROM "Association" WHERE context_id = ?)`, p.where())
}

func TestListQueryQuotesPostgresTables(t *testing.T) {
	s := &Store{DB: &db.DB{Dialect: db.Postgres}}
	query, args, _, err := s.listQuery(executionSpec, "id", Filter{Name: "train"}, Page{Size: 2})
	require.NoError(t, err)
	assert.Equal(t, `SELECT id FROM "Execution" WHERE name = $1 ORDER BY id DESC LIMIT 3 OFFSET 0`, query)
	assert.Equal(t, []any{"train"}, args)
}

func TestBuildPredicateForTypes(t *testing.T) {
	p, err := buildPredicate(db.SQLite, typeSpec(mlmd.ContextType), Filter{Name: "Experiment"})
	require.NoError(t, err)
	assert.Equal(t, " WHERE type_kind = ? AND name = ?", p.where())
	assert.Equal(t, []any{int(mlmd.ContextType), "Experiment"}, p.args)
}

func TestEmptyFilterHasNoWhere(t *testing.T) {
	p, err := buildPredicate(db.SQLite, eventSpec, Filter{})
	require.NoError(t, err)
	assert.Empty(t, p.where())
	assert.Empty(t, p.args)
}

func TestOrderClause(t *testing.T) {
	got, err := orderClause(executionSpec, Filter{})
	require.NoError(t, err)
	assert.Equal(t, " ORDER BY id DESC", got)

	got, err = orderClause(executionSpec, Filter{OrderBy: OrderByUpdateTime, Asc: true})
	require.NoError(t, err)
	assert.Equal(t, " ORDER BY last_update_time_since_epoch ASC, id ASC", got)

	_, err = orderClause(eventSpec, Filter{OrderBy: OrderByName})
	var fe *InvalidFilterError
	require.ErrorAs(t, err, &fe)
	assert.Equal(t, KindEvent, fe.Kind)
}

func TestPageClause(t *testing.T) {
	clause, consumed, err := pageClause(artifactSpec, Filter{}, Page{})
	require.NoError(t, err)
	assert.Empty(t, clause)
	assert.Zero(t, consumed)

	clause, consumed, err = pageClause(artifactSpec, Filter{Offset: 5}, Page{Token: encodePageToken(10), Size: 10})
	require.NoError(t, err)
	assert.Equal(t, " LIMIT 11 OFFSET 15", clause)
	assert.Equal(t, 10, consumed)

	clause, _, err = pageClause(artifactSpec, Filter{Offset: 3}, Page{})
	require.NoError(t, err)
	assert.Contains(t, clause, "OFFSET 3")

	_, _, err = pageClause(artifactSpec, Filter{Limit: -1}, Page{})
	assert.Error(t, err)
}

func TestPageTokens(t *testing.T) {
	n, err := decodePageToken(encodePageToken(42))
	require.NoError(t, err)
	assert.Equal(t, 42, n)

	for _, bad := range []string{"42", "o-1", "ox", "p3"} {
		_, err := decodePageToken(bad)
		assert.Error(t, err, bad)
	}
}

func TestParseOrderBy(t *testing.T) {
	for in, want := range map[string]OrderBy{
		"":            OrderByID,
		"ID":          OrderByID,
		"name":        OrderByName,
		"create_time": OrderByCreateTime,
		"mtime":       OrderByUpdateTime,
	} {
		got, err := ParseOrderBy(in)
		require.NoError(t, err, in)
		assert.Equal(t, want, got, in)
	}
	_, err := ParseOrderBy("size")
	assert.Error(t, err)
}
