// Package schema knows the ML Metadata relational layout: it probes the
// version of an existing store and can lay down a fresh SQLite copy of the
// tables for fixtures.
package schema

import (
	"context"
	"database/sql"
	"embed"
	"errors"
	"fmt"
	"io/fs"
	"sort"

	"mlmdq/internal/db"
)

// CurrentVersion is the MLMDEnv.schema_version written by Apply.
const CurrentVersion = 10

// MinVersion is the oldest layout whose columns the store reads.
const MinVersion = 6

//go:embed sql/*.sql
var ddlFS embed.FS

type File struct {
	Order int
	Name  string
	SQL   string
}

// ErrNoSchema is returned when the database has no MLMDEnv table or row.
var ErrNoSchema = errors.New("no ML Metadata schema found")

func loadFiles() ([]File, error) {
	entries, err := fs.ReadDir(ddlFS, "sql")
	if err != nil {
		return nil, err
	}
	var files []File
	for _, e := range entries {
		if e.IsDir() {
			continue
		}
		data, err := ddlFS.ReadFile("sql/" + e.Name())
		if err != nil {
			return nil, err
		}
		var n int
		if _, err := fmt.Sscanf(e.Name(), "%d_", &n); err != nil {
			return nil, fmt.Errorf("invalid schema filename %s: %w", e.Name(), err)
		}
		files = append(files, File{Order: n, Name: e.Name(), SQL: string(data)})
	}
	sort.Slice(files, func(i, j int) bool { return files[i].Order < files[j].Order })
	return files, nil
}

// Apply creates the MLMD tables on a SQLite database and stamps
// CurrentVersion. It is idempotent.
func Apply(conn *sql.DB) error {
	files, err := loadFiles()
	if err != nil {
		return err
	}
	tx, err := conn.Begin()
	if err != nil {
		return err
	}
	defer tx.Rollback()
	for _, f := range files {
		if _, err := tx.Exec(f.SQL); err != nil {
			return fmt.Errorf("schema %s: %w", f.Name, err)
		}
	}
	var n int
	if err := tx.QueryRow(`SELECT COUNT(*) FROM MLMDEnv`).Scan(&n); err != nil {
		return fmt.Errorf("read MLMDEnv: %w", err)
	}
	if n == 0 {
		if _, err := tx.Exec(`INSERT INTO MLMDEnv(schema_version) VALUES (?)`, CurrentVersion); err != nil {
			return fmt.Errorf("stamp MLMDEnv: %w", err)
		}
	}
	return tx.Commit()
}

// Version reads the store's schema version.
func Version(ctx context.Context, conn *sql.DB, d db.Dialect) (int, error) {
	var v int
	err := conn.QueryRowContext(ctx, `SELECT schema_version FROM `+d.Ident("MLMDEnv")).Scan(&v)
	if errors.Is(err, sql.ErrNoRows) {
		return 0, ErrNoSchema
	}
	if err != nil {
		return 0, fmt.Errorf("%w: %v", ErrNoSchema, err)
	}
	return v, nil
}
