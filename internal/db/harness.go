package db

import (
	"context"
	"fmt"
	"sort"
	"strconv"
	"strings"
	"time"

	"github.com/seedspec/seedspec/internal/data"
	"github.com/seedspec/seedspec/internal/schema"
)

// InitTestDB drops and recreates every table in the snapshot, leaving an
// empty database shaped like the one the snapshot was reflected from.
func InitTestDB(ctx context.Context, conn Conn, snap *schema.Snapshot) error {
	quote := func(name string) string { return quoteIdent(conn.Engine(), name) }

	for _, table := range snap.Tables {
		if err := conn.Exec(ctx, fmt.Sprintf("DROP TABLE IF EXISTS %s", quote(table.Name))); err != nil {
			return fmt.Errorf("failed to drop table %s: %w", table.Name, err)
		}
		if err := conn.Exec(ctx, table.CreateStatement(quote)); err != nil {
			return fmt.Errorf("failed to create table %s: %w", table.Name, err)
		}
	}
	return nil
}

// LoadSources truncates each source table and inserts its generated
// dataset. Table names are the dataset keys; tables are loaded in name
// order so reruns behave identically.
func LoadSources(ctx context.Context, conn Conn, datasets map[string]data.Dataset) error {
	names := make([]string, 0, len(datasets))
	for name := range datasets {
		names = append(names, name)
	}
	sort.Strings(names)

	for _, name := range names {
		if err := loadTable(ctx, conn, name, datasets[name]); err != nil {
			return fmt.Errorf("failed to load source %s: %w", name, err)
		}
	}
	return nil
}

func loadTable(ctx context.Context, conn Conn, name string, ds data.Dataset) error {
	quote := func(n string) string { return quoteIdent(conn.Engine(), n) }

	if err := conn.Exec(ctx, fmt.Sprintf("DELETE FROM %s", quote(name))); err != nil {
		return err
	}
	if len(ds.Records) == 0 {
		return nil
	}

	quoted := make([]string, len(ds.Columns))
	for i, col := range ds.Columns {
		quoted[i] = quote(col)
	}
	insert := fmt.Sprintf("INSERT INTO %s (%s) VALUES (%s)",
		quote(name), strings.Join(quoted, ", "), placeholders(conn.Engine(), len(ds.Columns)))

	for _, rec := range ds.Records {
		args := make([]any, len(ds.Columns))
		for i, col := range ds.Columns {
			args[i] = driverValue(rec[col])
		}
		if err := conn.Exec(ctx, insert, args...); err != nil {
			return err
		}
	}
	return nil
}

// FetchActuals reads the full contents of each named table, in the column
// order the database reports.
func FetchActuals(ctx context.Context, conn Conn, tables []string) (map[string]data.Dataset, error) {
	out := make(map[string]data.Dataset, len(tables))
	for _, name := range tables {
		ds, err := fetchTable(ctx, conn, name)
		if err != nil {
			return nil, fmt.Errorf("failed to fetch target %s: %w", name, err)
		}
		out[name] = ds
	}
	return out, nil
}

func fetchTable(ctx context.Context, conn Conn, name string) (data.Dataset, error) {
	rows, err := conn.Query(ctx, fmt.Sprintf("SELECT * FROM %s", quoteIdent(conn.Engine(), name)))
	if err != nil {
		return data.Dataset{}, err
	}
	defer rows.Close()

	columns := rows.Columns()
	ds := data.Dataset{Columns: columns}

	for rows.Next() {
		raw := make([]any, len(columns))
		ptrs := make([]any, len(columns))
		for i := range raw {
			ptrs[i] = &raw[i]
		}
		if err := rows.Scan(ptrs...); err != nil {
			return data.Dataset{}, err
		}

		rec := make(data.Record, len(columns))
		for i, col := range columns {
			rec[col] = cellValue(raw[i])
		}
		ds.Records = append(ds.Records, rec)
	}
	return ds, rows.Err()
}

// driverValue converts a cell to what the database driver expects.
func driverValue(v data.Value) any {
	switch v.Kind() {
	case data.KindNull:
		return nil
	case data.KindBool:
		return v.IsTrue()
	default:
		return v.Text()
	}
}

// cellValue normalizes a scanned database value into the comparison model:
// SQL NULL becomes the null value, booleans stay booleans, and everything
// else becomes its canonical string form.
func cellValue(v any) data.Value {
	switch val := v.(type) {
	case nil:
		return data.Null()
	case bool:
		return data.Bool(val)
	case string:
		return data.String(val)
	case []byte:
		return data.String(string(val))
	case int64:
		return data.String(strconv.FormatInt(val, 10))
	case int32:
		return data.String(strconv.FormatInt(int64(val), 10))
	case int:
		return data.String(strconv.Itoa(val))
	case float64:
		return data.String(strconv.FormatFloat(val, 'f', -1, 64))
	case float32:
		return data.String(strconv.FormatFloat(float64(val), 'f', -1, 32))
	case time.Time:
		if val.Hour() == 0 && val.Minute() == 0 && val.Second() == 0 && val.Nanosecond() == 0 {
			return data.String(val.Format("2006-01-02"))
		}
		return data.String(val.Format(time.RFC3339))
	default:
		return data.String(fmt.Sprintf("%v", val))
	}
}
