package db

import (
	"context"
	"database/sql"
	"fmt"
	"sort"

	"github.com/seedspec/seedspec/internal/schema"
)

// Reflector reads table definitions out of a live database so they can be
// snapshotted and later rebuilt in a test database.
type Reflector struct {
	conn       Conn
	schemaName string
}

// NewReflector creates a reflector. schemaName applies to PostgreSQL and
// MySQL; SQLite ignores it. An empty name defaults to "public" on
// PostgreSQL.
func NewReflector(conn Conn, schemaName string) *Reflector {
	if schemaName == "" && conn.Engine() == EnginePostgres {
		schemaName = "public"
	}
	return &Reflector{conn: conn, schemaName: schemaName}
}

// Reflect extracts the definitions of the named tables. If tables is empty,
// every base table in the schema is reflected.
func (r *Reflector) Reflect(ctx context.Context, tables []string) (*schema.Snapshot, error) {
	tableNames, err := r.tableNames(ctx, tables)
	if err != nil {
		return nil, fmt.Errorf("failed to list tables: %w", err)
	}

	snap := &schema.Snapshot{}
	for _, name := range tableNames {
		table, err := r.reflectTable(ctx, name)
		if err != nil {
			return nil, fmt.Errorf("failed to reflect table %s: %w", name, err)
		}
		snap.Tables = append(snap.Tables, *table)
	}
	snap.Sort()
	return snap, nil
}

func (r *Reflector) tableNames(ctx context.Context, requested []string) ([]string, error) {
	if len(requested) > 0 {
		return requested, nil
	}

	var rows Rows
	var err error
	switch r.conn.Engine() {
	case EnginePostgres:
		rows, err = r.conn.Query(ctx, `
			SELECT table_name
			FROM information_schema.tables
			WHERE table_schema = $1 AND table_type = 'BASE TABLE'
			ORDER BY table_name
		`, r.schemaName)
	case EngineMySQL:
		rows, err = r.conn.Query(ctx, `
			SELECT table_name
			FROM information_schema.tables
			WHERE table_schema = ? AND table_type = 'BASE TABLE'
			ORDER BY table_name
		`, r.schemaName)
	case EngineSQLite:
		rows, err = r.conn.Query(ctx, `
			SELECT name
			FROM sqlite_master
			WHERE type = 'table' AND name NOT LIKE 'sqlite_%'
			ORDER BY name
		`)
	default:
		return nil, fmt.Errorf("unsupported engine: %s", r.conn.Engine())
	}
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var names []string
	for rows.Next() {
		var name string
		if err := rows.Scan(&name); err != nil {
			return nil, err
		}
		names = append(names, name)
	}
	return names, rows.Err()
}

func (r *Reflector) reflectTable(ctx context.Context, name string) (*schema.Table, error) {
	switch r.conn.Engine() {
	case EnginePostgres:
		return r.reflectInformationSchema(ctx, name, `
			SELECT column_name, data_type, is_nullable, column_default
			FROM information_schema.columns
			WHERE table_schema = $1 AND table_name = $2
			ORDER BY ordinal_position
		`, `
			SELECT kcu.column_name
			FROM information_schema.table_constraints tc
			JOIN information_schema.key_column_usage kcu
				ON tc.constraint_name = kcu.constraint_name
				AND tc.table_schema = kcu.table_schema
			WHERE tc.table_schema = $1
				AND tc.table_name = $2
				AND tc.constraint_type = 'PRIMARY KEY'
			ORDER BY kcu.ordinal_position
		`)
	case EngineMySQL:
		return r.reflectInformationSchema(ctx, name, `
			SELECT column_name, column_type, is_nullable, column_default
			FROM information_schema.columns
			WHERE table_schema = ? AND table_name = ?
			ORDER BY ordinal_position
		`, `
			SELECT column_name
			FROM information_schema.key_column_usage
			WHERE table_schema = ?
				AND table_name = ?
				AND constraint_name = 'PRIMARY'
			ORDER BY ordinal_position
		`)
	case EngineSQLite:
		return r.reflectSQLite(ctx, name)
	default:
		return nil, fmt.Errorf("unsupported engine: %s", r.conn.Engine())
	}
}

// reflectInformationSchema handles the engines that expose
// information_schema; only the query text and placeholder style differ.
func (r *Reflector) reflectInformationSchema(ctx context.Context, name, columnQuery, pkQuery string) (*schema.Table, error) {
	table := &schema.Table{Name: name}

	rows, err := r.conn.Query(ctx, columnQuery, r.schemaName, name)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	for rows.Next() {
		var col schema.Column
		var nullable string
		var defaultVal sql.NullString

		if err := rows.Scan(&col.Name, &col.Type, &nullable, &defaultVal); err != nil {
			return nil, err
		}
		col.Nullable = nullable == "YES"
		if defaultVal.Valid {
			col.Default = &defaultVal.String
		}
		table.Columns = append(table.Columns, col)
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}

	pkRows, err := r.conn.Query(ctx, pkQuery, r.schemaName, name)
	if err != nil {
		return nil, err
	}
	defer pkRows.Close()

	for pkRows.Next() {
		var colName string
		if err := pkRows.Scan(&colName); err != nil {
			return nil, err
		}
		table.PrimaryKey = append(table.PrimaryKey, colName)
	}
	return table, pkRows.Err()
}

func (r *Reflector) reflectSQLite(ctx context.Context, name string) (*schema.Table, error) {
	table := &schema.Table{Name: name}

	rows, err := r.conn.Query(ctx, fmt.Sprintf("PRAGMA table_info(%s)", quoteIdent(EngineSQLite, name)))
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	// The pk column carries the 1-based position within a composite key,
	// which can differ from column-declaration order.
	type pkColumn struct {
		order int
		name  string
	}
	var pkColumns []pkColumn

	for rows.Next() {
		var cid, notNull, pkOrder int
		var colName, colType string
		var defaultVal sql.NullString

		if err := rows.Scan(&cid, &colName, &colType, &notNull, &defaultVal, &pkOrder); err != nil {
			return nil, err
		}

		col := schema.Column{Name: colName, Type: colType, Nullable: notNull == 0}
		if defaultVal.Valid {
			col.Default = &defaultVal.String
		}
		table.Columns = append(table.Columns, col)

		if pkOrder > 0 {
			pkColumns = append(pkColumns, pkColumn{order: pkOrder, name: colName})
		}
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}

	sort.Slice(pkColumns, func(i, j int) bool { return pkColumns[i].order < pkColumns[j].order })
	for _, pk := range pkColumns {
		table.PrimaryKey = append(table.PrimaryKey, pk.name)
	}
	return table, nil
}
