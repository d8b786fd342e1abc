// Package db connects seedspec to test databases: reflecting table schemas
// into snapshots, rebuilding tables from snapshots, loading generated source
// data, and fetching transformed target data for verification.
package db

import (
	"context"
	"fmt"
	"strings"
)

// Engine identifies a supported database engine.
type Engine string

const (
	EnginePostgres Engine = "postgres"
	EngineMySQL    Engine = "mysql"
	EngineSQLite   Engine = "sqlite"
)

// Rows is the cursor shape shared by pgx and database/sql results.
type Rows interface {
	Columns() []string
	Next() bool
	Scan(dest ...any) error
	Err() error
	Close()
}

// Conn is a connection to one test database.
type Conn interface {
	Engine() Engine
	Exec(ctx context.Context, query string, args ...any) error
	Query(ctx context.Context, query string, args ...any) (Rows, error)
	Close(ctx context.Context) error
}

// Open connects to the database named by a URL. Supported schemes are
// postgres:// (or postgresql://), mysql://, and sqlite://.
func Open(ctx context.Context, databaseURL string) (Conn, error) {
	engine, connStr, err := parseDatabaseURL(databaseURL)
	if err != nil {
		return nil, err
	}

	switch engine {
	case EnginePostgres:
		return OpenPostgres(ctx, connStr)
	case EngineMySQL:
		return OpenMySQL(ctx, connStr)
	case EngineSQLite:
		return OpenSQLite(ctx, connStr)
	default:
		return nil, fmt.Errorf("unsupported database engine: %s", engine)
	}
}

// parseDatabaseURL detects the engine and returns the driver-level
// connection string.
func parseDatabaseURL(url string) (Engine, string, error) {
	if url == "" {
		return "", "", fmt.Errorf("database URL is required")
	}

	if strings.HasPrefix(url, "postgres://") || strings.HasPrefix(url, "postgresql://") {
		return EnginePostgres, url, nil
	}

	if strings.HasPrefix(url, "mysql://") {
		// The Go MySQL driver takes a bare DSN without the scheme
		return EngineMySQL, strings.TrimPrefix(url, "mysql://"), nil
	}

	if strings.HasPrefix(url, "sqlite://") {
		return EngineSQLite, strings.TrimPrefix(url, "sqlite://"), nil
	}

	return "", "", fmt.Errorf("invalid database URL scheme (must start with postgres://, mysql://, or sqlite://)")
}

// quoteIdent quotes an identifier for the given engine.
func quoteIdent(engine Engine, name string) string {
	if engine == EngineMySQL {
		return "`" + strings.ReplaceAll(name, "`", "``") + "`"
	}
	return `"` + strings.ReplaceAll(name, `"`, `""`) + `"`
}

// placeholders builds the parameter list for an INSERT: $1..$n for
// postgres, ? repeated for the others.
func placeholders(engine Engine, n int) string {
	parts := make([]string, n)
	for i := range parts {
		if engine == EnginePostgres {
			parts[i] = fmt.Sprintf("$%d", i+1)
		} else {
			parts[i] = "?"
		}
	}
	return strings.Join(parts, ", ")
}
