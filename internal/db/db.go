package db

import (
	"database/sql"
	"fmt"
	"net/url"
	"path/filepath"
	"strconv"
	"strings"

	"github.com/go-sql-driver/mysql"
	_ "github.com/jackc/pgx/v5/stdlib"
	_ "modernc.org/sqlite"
)

// Dialect selects placeholder syntax for the connected backend.
type Dialect int

const (
	SQLite Dialect = iota
	Postgres
	MySQL
)

func (d Dialect) String() string {
	switch d {
	case Postgres:
		return "postgres"
	case MySQL:
		return "mysql"
	default:
		return "sqlite"
	}
}

// Rebind rewrites '?' placeholders into the dialect's native form.
func (d Dialect) Rebind(query string) string {
	if d != Postgres {
		return query
	}
	var b strings.Builder
	b.Grow(len(query) + 8)
	n := 0
	for i := 0; i < len(query); i++ {
		if query[i] == '?' {
			n++
			b.WriteByte('$')
			b.WriteString(strconv.Itoa(n))
			continue
		}
		b.WriteByte(query[i])
	}
	return b.String()
}

// Ident quotes a table name for the backend. MLMD creates its Postgres
// tables with quoted mixed-case names, which unquoted references would fold
// to lower case.
func (d Dialect) Ident(name string) string {
	if d != Postgres {
		return name
	}
	return `"` + strings.ReplaceAll(name, `"`, `""`) + `"`
}

type Config struct {
	// URL is sqlite://<path>, postgres://..., mysql://... or a bare SQLite file path.
	URL string
	// Writable opens SQLite files read-write; the store itself never writes.
	Writable bool
}

// DB is a connection pool plus the dialect it speaks.
type DB struct {
	*sql.DB
	Dialect Dialect
}

// Open opens the metadata store database named by cfg.URL.
func Open(cfg Config) (*DB, error) {
	raw := strings.TrimSpace(cfg.URL)
	if raw == "" {
		return nil, fmt.Errorf("store url is required")
	}
	scheme, rest, ok := strings.Cut(raw, "://")
	if !ok {
		scheme, rest = "sqlite", raw
	}
	switch strings.ToLower(scheme) {
	case "sqlite", "sqlite3", "file":
		conn, err := sql.Open("sqlite", sqliteDSN(rest, cfg.Writable))
		if err != nil {
			return nil, err
		}
		// The sqlite driver serializes writers; one connection keeps ro readers simple too.
		conn.SetMaxOpenConns(1)
		return &DB{DB: conn, Dialect: SQLite}, nil
	case "postgres", "postgresql":
		conn, err := sql.Open("pgx", raw)
		if err != nil {
			return nil, err
		}
		return &DB{DB: conn, Dialect: Postgres}, nil
	case "mysql":
		dsn, err := mysqlDSN(raw)
		if err != nil {
			return nil, err
		}
		conn, err := sql.Open("mysql", dsn)
		if err != nil {
			return nil, err
		}
		return &DB{DB: conn, Dialect: MySQL}, nil
	default:
		return nil, fmt.Errorf("unsupported store url scheme %q", scheme)
	}
}

func sqliteDSN(path string, writable bool) string {
	if path != ":memory:" && !strings.HasPrefix(path, "/") {
		if abs, err := filepath.Abs(path); err == nil {
			path = abs
		}
	}
	mode := "ro"
	if writable {
		mode = "rwc"
	}
	return fmt.Sprintf("file:%s?mode=%s&_pragma=busy_timeout(5000)", path, mode)
}

func mysqlDSN(raw string) (string, error) {
	u, err := url.Parse(raw)
	if err != nil {
		return "", fmt.Errorf("invalid mysql url: %w", err)
	}
	c := mysql.NewConfig()
	c.Net = "tcp"
	c.Addr = u.Host
	if u.Port() == "" {
		c.Addr = u.Hostname() + ":3306"
	}
	if u.User != nil {
		c.User = u.User.Username()
		c.Passwd, _ = u.User.Password()
	}
	c.DBName = strings.TrimPrefix(u.Path, "/")
	if c.DBName == "" {
		return "", fmt.Errorf("mysql url %q has no database name", raw)
	}
	for k, v := range u.Query() {
		if len(v) > 0 {
			if c.Params == nil {
				c.Params = map[string]string{}
			}
			c.Params[k] = v[0]
		}
	}
	return c.FormatDSN(), nil
}
