// Package storetest builds small ML Metadata SQLite databases for tests.
package storetest

import (
	"context"
	"path/filepath"
	"testing"

	"mlmdq/internal/db"
	"mlmdq/internal/mlmd"
	"mlmdq/internal/schema"
	"mlmdq/internal/store"
)

// Fixture is a writable MLMD database in a temp directory. Entity times
// default to a counter so ordering by time is predictable.
type Fixture struct {
	t    testing.TB
	Path string
	DB   *db.DB

	clock int64
}

// New creates an empty MLMD database. It is closed when the test ends.
func New(t testing.TB) *Fixture {
	t.Helper()
	path := filepath.Join(t.TempDir(), "mlmd.sqlite")
	conn, err := db.Open(db.Config{URL: "sqlite://" + path, Writable: true})
	if err != nil {
		t.Fatalf("open fixture db: %v", err)
	}
	if err := schema.Apply(conn.DB); err != nil {
		conn.Close()
		t.Fatalf("apply schema: %v", err)
	}
	t.Cleanup(func() { conn.Close() })
	return &Fixture{t: t, Path: path, DB: conn, clock: 1_700_000_000_000}
}

// URL is the store URL for opening the fixture through app or db.
func (f *Fixture) URL() string { return "sqlite://" + f.Path }

// Store opens a store.Store over the fixture connection.
func (f *Fixture) Store() *store.Store {
	f.t.Helper()
	s, err := store.Open(context.Background(), f.DB, nil)
	if err != nil {
		f.t.Fatalf("open store: %v", err)
	}
	return s
}

func (f *Fixture) tick() int64 {
	f.clock += 1000
	return f.clock
}

func (f *Fixture) exec(query string, args ...any) int64 {
	f.t.Helper()
	res, err := f.DB.Exec(query, args...)
	if err != nil {
		f.t.Fatalf("fixture %q: %v", query, err)
	}
	id, err := res.LastInsertId()
	if err != nil {
		f.t.Fatalf("fixture last insert id: %v", err)
	}
	return id
}

func nullable(s string) any {
	if s == "" {
		return nil
	}
	return s
}

func (f *Fixture) Type(kind mlmd.TypeKind, name string) int64 {
	f.t.Helper()
	return f.exec(`INSERT INTO Type(name, type_kind) VALUES (?, ?)`, name, int(kind))
}

func (f *Fixture) ArtifactType(name string) int64  { return f.Type(mlmd.ArtifactType, name) }
func (f *Fixture) ExecutionType(name string) int64 { return f.Type(mlmd.ExecutionType, name) }
func (f *Fixture) ContextType(name string) int64   { return f.Type(mlmd.ContextType, name) }

// TypeProperty declares a property; dataType uses the MLMD codes (1 INT, 2 DOUBLE, 3 STRING).
func (f *Fixture) TypeProperty(typeID int64, name string, dataType int) {
	f.t.Helper()
	f.exec(`INSERT INTO TypeProperty(type_id, name, data_type) VALUES (?, ?, ?)`, typeID, name, dataType)
}

// times fills zero create/update times from the fixture clock.
func (f *Fixture) times(ctime, mtime int64) (int64, int64) {
	if ctime == 0 {
		ctime = f.tick()
	}
	if mtime == 0 {
		mtime = ctime
	}
	return ctime, mtime
}

// Artifact inserts a; a zero ID lets the database assign one.
func (f *Fixture) Artifact(a mlmd.Artifact) int64 {
	f.t.Helper()
	ctime, mtime := f.times(mlmd.ToMillisOrZero(a.CreateTime), mlmd.ToMillisOrZero(a.UpdateTime))
	id := f.exec(`INSERT INTO Artifact(id, type_id, uri, state, name, create_time_since_epoch, last_update_time_since_epoch) VALUES (?, ?, ?, ?, ?, ?, ?)`,
		idArg(a.ID), a.TypeID, nullable(a.URI), int(a.State), nullable(a.Name), ctime, mtime)
	for name, v := range a.Properties {
		f.property("ArtifactProperty", "artifact_id", id, name, false, v)
	}
	for name, v := range a.CustomProperties {
		f.property("ArtifactProperty", "artifact_id", id, name, true, v)
	}
	return id
}

func (f *Fixture) Execution(e mlmd.Execution) int64 {
	f.t.Helper()
	ctime, mtime := f.times(mlmd.ToMillisOrZero(e.CreateTime), mlmd.ToMillisOrZero(e.UpdateTime))
	id := f.exec(`INSERT INTO Execution(id, type_id, last_known_state, name, create_time_since_epoch, last_update_time_since_epoch) VALUES (?, ?, ?, ?, ?, ?)`,
		idArg(e.ID), e.TypeID, int(e.State), nullable(e.Name), ctime, mtime)
	for name, v := range e.Properties {
		f.property("ExecutionProperty", "execution_id", id, name, false, v)
	}
	for name, v := range e.CustomProperties {
		f.property("ExecutionProperty", "execution_id", id, name, true, v)
	}
	return id
}

func (f *Fixture) Context(c mlmd.Context) int64 {
	f.t.Helper()
	ctime, mtime := f.times(mlmd.ToMillisOrZero(c.CreateTime), mlmd.ToMillisOrZero(c.UpdateTime))
	id := f.exec(`INSERT INTO Context(id, type_id, name, create_time_since_epoch, last_update_time_since_epoch) VALUES (?, ?, ?, ?, ?)`,
		idArg(c.ID), c.TypeID, c.Name, ctime, mtime)
	for name, v := range c.Properties {
		f.property("ContextProperty", "context_id", id, name, false, v)
	}
	for name, v := range c.CustomProperties {
		f.property("ContextProperty", "context_id", id, name, true, v)
	}
	return id
}

func (f *Fixture) property(table, fk string, id int64, name string, custom bool, v mlmd.Value) {
	f.t.Helper()
	var intVal, dblVal, strVal, boolVal any
	switch {
	case v.Int != nil:
		intVal = *v.Int
	case v.Double != nil:
		dblVal = *v.Double
	case v.String != nil:
		strVal = *v.String
	case v.Bool != nil:
		boolVal = *v.Bool
	}
	f.exec(`INSERT INTO `+table+`(`+fk+`, name, is_custom_property, int_value, double_value, string_value, bool_value) VALUES (?, ?, ?, ?, ?, ?, ?)`,
		id, name, custom, intVal, dblVal, strVal, boolVal)
}

// Event links an artifact and an execution.
func (f *Fixture) Event(artifactID, executionID int64, t mlmd.EventType) int64 {
	f.t.Helper()
	return f.exec(`INSERT INTO Event(artifact_id, execution_id, type, milliseconds_since_epoch) VALUES (?, ?, ?, ?)`,
		artifactID, executionID, int(t), f.tick())
}

func (f *Fixture) Attribution(contextID, artifactID int64) {
	f.t.Helper()
	f.exec(`INSERT INTO Attribution(context_id, artifact_id) VALUES (?, ?)`, contextID, artifactID)
}

func (f *Fixture) Association(contextID, executionID int64) {
	f.t.Helper()
	f.exec(`INSERT INTO Association(context_id, execution_id) VALUES (?, ?)`, contextID, executionID)
}

func idArg(id int64) any {
	if id == 0 {
		return nil
	}
	return id
}
