package db

import (
	"context"
	"fmt"

	"github.com/jackc/pgx/v5"
)

// PostgresConn is a Conn backed by a single pgx connection.
type PostgresConn struct {
	conn *pgx.Conn
}

// OpenPostgres connects to PostgreSQL and verifies the connection.
func OpenPostgres(ctx context.Context, connString string) (*PostgresConn, error) {
	conn, err := pgx.Connect(ctx, connString)
	if err != nil {
		return nil, fmt.Errorf("failed to connect to database: %w", err)
	}

	if err := conn.Ping(ctx); err != nil {
		_ = conn.Close(ctx)
		return nil, fmt.Errorf("failed to ping database: %w", err)
	}

	return &PostgresConn{conn: conn}, nil
}

func (c *PostgresConn) Engine() Engine { return EnginePostgres }

func (c *PostgresConn) Exec(ctx context.Context, query string, args ...any) error {
	_, err := c.conn.Exec(ctx, query, args...)
	return err
}

func (c *PostgresConn) Query(ctx context.Context, query string, args ...any) (Rows, error) {
	rows, err := c.conn.Query(ctx, query, args...)
	if err != nil {
		return nil, err
	}
	return &pgxRows{rows: rows}, nil
}

func (c *PostgresConn) Close(ctx context.Context) error {
	return c.conn.Close(ctx)
}

// pgxRows adapts pgx.Rows to the Rows interface.
type pgxRows struct {
	rows pgx.Rows
}

func (r *pgxRows) Columns() []string {
	fields := r.rows.FieldDescriptions()
	cols := make([]string, len(fields))
	for i, f := range fields {
		cols[i] = f.Name
	}
	return cols
}

func (r *pgxRows) Next() bool { return r.rows.Next() }
func (r *pgxRows) Scan(dest ...any) error { return r.rows.Scan(dest...) }
func (r *pgxRows) Err() error { return r.rows.Err() }
func (r *pgxRows) Close() { r.rows.Close() }
