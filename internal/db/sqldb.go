package db

import (
	"context"
	"database/sql"
	"fmt"

	_ "github.com/go-sql-driver/mysql"
	_ "github.com/mattn/go-sqlite3"
)

// sqlConn is a Conn backed by database/sql, used for SQLite and MySQL.
type sqlConn struct {
	engine Engine
	db     *sql.DB
}

// OpenSQLite opens a SQLite database file and verifies the connection.
func OpenSQLite(ctx context.Context, path string) (Conn, error) {
	return openSQL(ctx, EngineSQLite, "sqlite3", path)
}

// OpenMySQL connects to MySQL and verifies the connection.
func OpenMySQL(ctx context.Context, dsn string) (Conn, error) {
	return openSQL(ctx, EngineMySQL, "mysql", dsn)
}

func openSQL(ctx context.Context, engine Engine, driver, dsn string) (Conn, error) {
	db, err := sql.Open(driver, dsn)
	if err != nil {
		return nil, fmt.Errorf("failed to open database: %w", err)
	}

	if err := db.PingContext(ctx); err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("failed to ping database: %w", err)
	}

	return &sqlConn{engine: engine, db: db}, nil
}

func (c *sqlConn) Engine() Engine { return c.engine }

func (c *sqlConn) Exec(ctx context.Context, query string, args ...any) error {
	_, err := c.db.ExecContext(ctx, query, args...)
	return err
}

func (c *sqlConn) Query(ctx context.Context, query string, args ...any) (Rows, error) {
	rows, err := c.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, err
	}
	return &sqlRows{rows: rows}, nil
}

func (c *sqlConn) Close(context.Context) error {
	return c.db.Close()
}

// sqlRows adapts *sql.Rows to the Rows interface.
type sqlRows struct {
	rows *sql.Rows
}

func (r *sqlRows) Columns() []string {
	cols, err := r.rows.Columns()
	if err != nil {
		return nil
	}
	return cols
}

func (r *sqlRows) Next() bool { return r.rows.Next() }
func (r *sqlRows) Scan(dest ...any) error { return r.rows.Scan(dest...) }
func (r *sqlRows) Err() error { return r.rows.Err() }
func (r *sqlRows) Close() { _ = r.rows.Close() }
