package schema

import (
	"context"
	"database/sql"
	"errors"
	"path/filepath"
	"testing"

	_ "modernc.org/sqlite"

	"mlmdq/internal/db"
)

func openTemp(t *testing.T) *sql.DB {
	t.Helper()
	conn, err := sql.Open("sqlite", "file:"+filepath.Join(t.TempDir(), "mlmd.db")+"?mode=rwc")
	if err != nil {
		t.Fatalf("open: %v", err)
	}
	conn.SetMaxOpenConns(1)
	t.Cleanup(func() { conn.Close() })
	return conn
}

func TestApplyIsIdempotent(t *testing.T) {
	conn := openTemp(t)
	if err := Apply(conn); err != nil {
		t.Fatalf("apply: %v", err)
	}
	if err := Apply(conn); err != nil {
		t.Fatalf("apply again: %v", err)
	}
	v, err := Version(context.Background(), conn, db.SQLite)
	if err != nil {
		t.Fatalf("version: %v", err)
	}
	if v != CurrentVersion {
		t.Fatalf("version = %d, want %d", v, CurrentVersion)
	}
	var n int
	if err := conn.QueryRow(`SELECT COUNT(*) FROM MLMDEnv`).Scan(&n); err != nil {
		t.Fatalf("count MLMDEnv: %v", err)
	}
	if n != 1 {
		t.Fatalf("MLMDEnv rows = %d", n)
	}
}

func TestVersionWithoutSchema(t *testing.T) {
	conn := openTemp(t)
	if _, err := Version(context.Background(), conn, db.SQLite); !errors.Is(err, ErrNoSchema) {
		t.Fatalf("expected ErrNoSchema, got %v", err)
	}
}

func TestFilesAreOrdered(t *testing.T) {
	files, err := loadFiles()
	if err != nil {
		t.Fatalf("load: %v", err)
	}
	if len(files) == 0 {
		t.Fatalf("no schema files embedded")
	}
	for i := 1; i < len(files); i++ {
		if files[i-1].Order >= files[i].Order {
			t.Fatalf("files out of order: %s before %s", files[i-1].Name, files[i].Name)
		}
	}
}
