package store

import (
	"fmt"
	"strconv"
	"strings"
	"time"

	"mlmdq/internal/db"
	"mlmdq/internal/mlmd"
)

type OrderBy int

const (
	OrderByID OrderBy = iota
	OrderByName
	OrderByCreateTime
	OrderByUpdateTime
)

func (o OrderBy) String() string {
	switch o {
	case OrderByName:
		return "name"
	case OrderByCreateTime:
		return "ctime"
	case OrderByUpdateTime:
		return "mtime"
	default:
		return "id"
	}
}

// ParseOrderBy accepts id, name, ctime (create_time) and mtime (update_time).
func ParseOrderBy(s string) (OrderBy, error) {
	switch strings.ToLower(strings.TrimSpace(s)) {
	case "", "id":
		return OrderByID, nil
	case "name":
		return OrderByName, nil
	case "ctime", "create_time", "create-time":
		return OrderByCreateTime, nil
	case "mtime", "update_time", "update-time":
		return OrderByUpdateTime, nil
	default:
		return OrderByID, fmt.Errorf("unknown order field %q (want id, name, ctime or mtime)", s)
	}
}

// Filter is the predicate grammar shared by every entity kind. Zero values
// impose no constraint; every set predicate must hold.
type Filter struct {
	IDs       []int64
	TypeName  string
	TypeNames []string
	URI       string
	Name      string
	ContextID int64

	// Event endpoints; on contexts they select contexts holding these members.
	ArtifactIDs  []int64
	ExecutionIDs []int64
	EventTypes   []mlmd.EventType

	CreateTimeSince time.Time
	CreateTimeUntil time.Time
	UpdateTimeSince time.Time
	UpdateTimeUntil time.Time

	Limit   int
	Offset  int
	OrderBy OrderBy
	Asc     bool
}

// Page asks for one page of a listing. Size <= 0 means everything left.
type Page struct {
	Token string
	Size  int
}

// entitySpec maps the shared grammar onto one table.
type entitySpec struct {
	kind      Kind
	table     string
	typeKind  mlmd.TypeKind
	typed     bool
	fixedKind bool
	nameCol   string
	uriCol    string
	createCol string
	updateCol string
}

var (
	artifactSpec = entitySpec{
		kind: KindArtifact, table: "Artifact", typeKind: mlmd.ArtifactType, typed: true,
		nameCol: "name", uriCol: "uri",
		createCol: "create_time_since_epoch", updateCol: "last_update_time_since_epoch",
	}
	executionSpec = entitySpec{
		kind: KindExecution, table: "Execution", typeKind: mlmd.ExecutionType, typed: true,
		nameCol:   "name",
		createCol: "create_time_since_epoch", updateCol: "last_update_time_since_epoch",
	}
	contextSpec = entitySpec{
		kind: KindContext, table: "Context", typeKind: mlmd.ContextType, typed: true,
		nameCol:   "name",
		createCol: "create_time_since_epoch", updateCol: "last_update_time_since_epoch",
	}
	eventSpec = entitySpec{
		kind: KindEvent, table: "Event",
		createCol: "milliseconds_since_epoch",
	}
)

func typeSpec(k mlmd.TypeKind) entitySpec {
	return entitySpec{kind: typeKindOf(k), table: "Type", typeKind: k, fixedKind: true, nameCol: "name"}
}

// predicate is a store-native filter expression: a WHERE clause and its arguments.
type predicate struct {
	clauses []string
	args    []any
}

func (p *predicate) add(clause string, args ...any) {
	p.clauses = append(p.clauses, clause)
	p.args = append(p.args, args...)
}

func (p predicate) where() string {
	if len(p.clauses) == 0 {
		return ""
	}
	return " WHERE " + strings.Join(p.clauses, " AND ")
}

func placeholders(n int) string {
	return strings.TrimSuffix(strings.Repeat("?,", n), ",")
}

func int64Args(ids []int64) []any {
	out := make([]any, len(ids))
	for i, id := range ids {
		out[i] = id
	}
	return out
}

// buildPredicate translates f into a WHERE clause for spec's table. Tables
// named in subqueries are quoted for d.
func buildPredicate(d db.Dialect, spec entitySpec, f Filter) (predicate, error) {
	var p predicate
	typeTable, attribution, association := d.Ident("Type"), d.Ident("Attribution"), d.Ident("Association")
	reject := func(field string) error {
		return &InvalidFilterError{Kind: spec.kind, Field: field, Reason: "is not supported"}
	}
	if spec.fixedKind {
		p.add("type_kind = ?", int(spec.typeKind))
	}
	if len(f.IDs) > 0 {
		p.add("id IN ("+placeholders(len(f.IDs))+")", int64Args(f.IDs)...)
	}
	if f.TypeName != "" || len(f.TypeNames) > 0 {
		if !spec.typed {
			return p, reject("type")
		}
		if f.TypeName != "" {
			p.add("type_id IN (SELECT id FROM "+typeTable+" WHERE type_kind = ? AND name = ?)", int(spec.typeKind), f.TypeName)
		}
		if len(f.TypeNames) > 0 {
			args := []any{int(spec.typeKind)}
			for _, n := range f.TypeNames {
				args = append(args, n)
			}
			p.add("type_id IN (SELECT id FROM "+typeTable+" WHERE type_kind = ? AND name IN ("+placeholders(len(f.TypeNames))+"))", args...)
		}
	}
	if f.URI != "" {
		if spec.uriCol == "" {
			return p, reject("uri")
		}
		p.add(spec.uriCol+" = ?", f.URI)
	}
	if f.Name != "" {
		if spec.nameCol == "" {
			return p, reject("name")
		}
		p.add(spec.nameCol+" = ?", f.Name)
	}
	if f.ContextID != 0 {
		switch spec.kind {
		case KindArtifact:
			p.add("id IN (SELECT artifact_id FROM "+attribution+" WHERE context_id = ?)", f.ContextID)
		case KindExecution:
			p.add("id IN (SELECT execution_id FROM "+association+" WHERE context_id = ?)", f.ContextID)
		case KindEvent:
			p.add("execution_id IN (SELECT execution_id FROM "+association+" WHERE context_id = ?)", f.ContextID)
		default:
			return p, reject("context")
		}
	}
	if len(f.ArtifactIDs) > 0 {
		switch spec.kind {
		case KindEvent:
			p.add("artifact_id IN ("+placeholders(len(f.ArtifactIDs))+")", int64Args(f.ArtifactIDs)...)
		case KindContext:
			p.add("id IN (SELECT context_id FROM "+attribution+" WHERE artifact_id IN ("+placeholders(len(f.ArtifactIDs))+"))", int64Args(f.ArtifactIDs)...)
		default:
			return p, reject("artifact")
		}
	}
	if len(f.ExecutionIDs) > 0 {
		switch spec.kind {
		case KindEvent:
			p.add("execution_id IN ("+placeholders(len(f.ExecutionIDs))+")", int64Args(f.ExecutionIDs)...)
		case KindContext:
			p.add("id IN (SELECT context_id FROM "+association+" WHERE execution_id IN ("+placeholders(len(f.ExecutionIDs))+"))", int64Args(f.ExecutionIDs)...)
		default:
			return p, reject("execution")
		}
	}
	if len(f.EventTypes) > 0 {
		if spec.kind != KindEvent {
			return p, reject("event_type")
		}
		args := make([]any, len(f.EventTypes))
		for i, t := range f.EventTypes {
			args[i] = int(t)
		}
		p.add("type IN ("+placeholders(len(args))+")", args...)
	}
	if err := addTimeRange(&p, spec.kind, spec.createCol, "create_time", f.CreateTimeSince, f.CreateTimeUntil, reject); err != nil {
		return p, err
	}
	if err := addTimeRange(&p, spec.kind, spec.updateCol, "update_time", f.UpdateTimeSince, f.UpdateTimeUntil, reject); err != nil {
		return p, err
	}
	return p, nil
}

// addTimeRange adds a half-open [since, until) range. A range whose start
// is after its end is malformed.
func addTimeRange(p *predicate, kind Kind, col, field string, since, until time.Time, reject func(string) error) error {
	if since.IsZero() && until.IsZero() {
		return nil
	}
	if col == "" {
		return reject(field)
	}
	if !since.IsZero() && !until.IsZero() && since.After(until) {
		return &InvalidFilterError{Kind: kind, Field: field, Reason: fmt.Sprintf("start %s is after end %s", since.Format(time.RFC3339), until.Format(time.RFC3339))}
	}
	if !since.IsZero() {
		p.add(col+" >= ?", mlmd.ToMillis(since))
	}
	if !until.IsZero() {
		p.add(col+" < ?", mlmd.ToMillis(until))
	}
	return nil
}

func orderClause(spec entitySpec, f Filter) (string, error) {
	col := "id"
	switch f.OrderBy {
	case OrderByName:
		col = spec.nameCol
	case OrderByCreateTime:
		col = spec.createCol
	case OrderByUpdateTime:
		col = spec.updateCol
	}
	if col == "" {
		return "", &InvalidFilterError{Kind: spec.kind, Field: "order_by", Reason: fmt.Sprintf("%s is not supported", f.OrderBy)}
	}
	dir := "DESC"
	if f.Asc {
		dir = "ASC"
	}
	if col == "id" {
		return " ORDER BY id " + dir, nil
	}
	return " ORDER BY " + col + " " + dir + ", id " + dir, nil
}

// maxRows stands in for "no limit" where the dialect needs LIMIT before OFFSET.
const maxRows = int64(1<<63 - 1)

// pageClause returns LIMIT/OFFSET for the page and the token's offset past
// f.Offset. One extra row is fetched to learn whether another page follows.
func pageClause(spec entitySpec, f Filter, page Page) (string, int, error) {
	if f.Limit < 0 || f.Offset < 0 {
		return "", 0, &InvalidFilterError{Kind: spec.kind, Field: "limit/offset", Reason: "must not be negative"}
	}
	consumed, err := decodePageToken(page.Token)
	if err != nil {
		return "", 0, &InvalidFilterError{Kind: spec.kind, Field: "page_token", Reason: err.Error()}
	}
	offset := consumed + f.Offset
	if page.Size <= 0 {
		if offset == 0 {
			return "", consumed, nil
		}
		return fmt.Sprintf(" LIMIT %d OFFSET %d", maxRows, offset), consumed, nil
	}
	return fmt.Sprintf(" LIMIT %d OFFSET %d", page.Size+1, offset), consumed, nil
}

func encodePageToken(offset int) string {
	return "o" + strconv.Itoa(offset)
}

func decodePageToken(token string) (int, error) {
	if token == "" {
		return 0, nil
	}
	n, err := strconv.Atoi(strings.TrimPrefix(token, "o"))
	if err != nil || !strings.HasPrefix(token, "o") || n < 0 {
		return 0, fmt.Errorf("malformed page token %q", token)
	}
	return n, nil
}
