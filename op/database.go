package op

import (
	"context"
	"database/sql"
	"fmt"
	"log/slog"
	"sync"

	"github.com/panjf2000/ants/v2"

	"github.com/nickyhof/DuckDesk/core"
	"github.com/nickyhof/DuckDesk/db"
	"github.com/nickyhof/DuckDesk/stmt"
)

const (
	schemasQuery = `
		SELECT catalog_name, schema_name
		FROM information_schema.schemata
		WHERE catalog_name NOT IN ('system', 'temp')
		  AND schema_name NOT IN ('information_schema', 'pg_catalog')
		  AND schema_name NOT LIKE 'pg_%'
		ORDER BY catalog_name, schema_name`

	tablesQuery = `
		SELECT table_name
		FROM information_schema.tables
		WHERE table_catalog = ? AND table_schema = ? AND table_type = 'BASE TABLE'
		ORDER BY table_name`

	columnsQuery = `
		SELECT column_name, data_type, is_nullable, column_default
		FROM information_schema.columns
		WHERE table_catalog = ? AND table_schema = ? AND table_name = ?
		ORDER BY ordinal_position`
)

// SchemaOptions tunes DescribeSchema.
type SchemaOptions struct {
	// Workers bounds concurrent row counts; values below 1 mean one.
	Workers int
	Logger  *slog.Logger
}

type tableRef struct {
	key     string
	catalog string
	schema  string
	name    string
}

// DescribeSchema lists every schema visible in h with its tables, columns
// and row counts. Schemas of the handle's own database are keyed by schema
// name, schemas of attached databases by "<database>.<schema>".
func DescribeSchema(ctx context.Context, h *db.Handle, opts SchemaOptions) (core.SchemaDescription, error) {
	logger := opts.Logger
	if logger == nil {
		logger = slog.Default()
	}

	release, err := h.Acquire()
	if err != nil {
		return core.SchemaDescription{}, core.Execution(err)
	}
	defer release()
	conn := h.DB()

	var current string
	if err := conn.QueryRowContext(ctx, "SELECT current_database()").Scan(&current); err != nil {
		return core.SchemaDescription{}, core.Execution(err)
	}

	description := core.SchemaDescription{
		CurrentDatabase:   h.Name(),
		AttachedDatabases: h.Attachments().Names(),
		Schemas:           make(map[string]core.Schema),
	}

	type schemaRef struct{ catalog, schema string }
	var schemas []schemaRef
	rows, err := conn.QueryContext(ctx, schemasQuery)
	if err != nil {
		return core.SchemaDescription{}, core.Execution(err)
	}
	for rows.Next() {
		var ref schemaRef
		if err := rows.Scan(&ref.catalog, &ref.schema); err != nil {
			rows.Close()
			return core.SchemaDescription{}, core.Execution(err)
		}
		schemas = append(schemas, ref)
	}
	rows.Close()
	if err := rows.Err(); err != nil {
		return core.SchemaDescription{}, core.Execution(err)
	}

	var refs []tableRef
	for _, s := range schemas {
		key := s.schema
		if s.catalog != current {
			key = s.catalog + "." + s.schema
		}

		names, err := tableNames(ctx, conn, s.catalog, s.schema)
		if err != nil {
			return core.SchemaDescription{}, core.Execution(err)
		}
		description.Schemas[key] = core.Schema{Tables: make(map[string]core.Table, len(names))}
		for _, name := range names {
			refs = append(refs, tableRef{key: key, catalog: s.catalog, schema: s.schema, name: name})
		}
	}

	tables, err := describeTables(ctx, conn, refs, opts.Workers, logger)
	if err != nil {
		return core.SchemaDescription{}, err
	}
	for i, ref := range refs {
		if tables[i] == nil {
			continue
		}
		description.Schemas[ref.key].Tables[ref.name] = *tables[i]
	}

	return description, nil
}

func tableNames(ctx context.Context, conn *sql.DB, catalog, schema string) ([]string, error) {
	rows, err := conn.QueryContext(ctx, tablesQuery, catalog, schema)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	names := []string{}
	for rows.Next() {
		var name string
		if err := rows.Scan(&name); err != nil {
			return nil, err
		}
		names = append(names, name)
	}
	return names, rows.Err()
}

// describeTables fetches column metadata and row counts on a bounded pool.
// A nil entry marks a table whose metadata could not be read.
func describeTables(ctx context.Context, conn *sql.DB, refs []tableRef, workers int, logger *slog.Logger) ([]*core.Table, error) {
	tables := make([]*core.Table, len(refs))
	if len(refs) == 0 {
		return tables, nil
	}

	pool, err := ants.NewPool(max(workers, 1), ants.WithPanicHandler(func(v any) {
		logger.Error("schema worker panic", "panic", v)
	}))
	if err != nil {
		return nil, fmt.Errorf("failed to start schema workers: %w", err)
	}
	defer pool.Release()

	var wg sync.WaitGroup
	for i, ref := range refs {
		wg.Add(1)
		task := func() {
			defer wg.Done()
			table, err := describeTable(ctx, conn, ref)
			if err != nil {
				logger.Warn("could not describe table", "schema", ref.key, "table", ref.name, "error", err)
				return
			}
			tables[i] = &table
		}
		if err := pool.Submit(task); err != nil {
			wg.Done()
			logger.Warn("could not describe table", "schema", ref.key, "table", ref.name, "error", err)
		}
	}
	wg.Wait()

	return tables, nil
}

func describeTable(ctx context.Context, conn *sql.DB, ref tableRef) (core.Table, error) {
	columns, err := readColumns(ctx, conn, ref)
	if err != nil {
		return core.Table{}, err
	}

	count, err := countRows(ctx, conn, ref)
	if err != nil {
		count = 0
	}
	return core.Table{Columns: columns, RowCount: count}, nil
}

// readColumns lists ref's columns by ordinal position.
var readColumns = func(ctx context.Context, conn *sql.DB, ref tableRef) ([]core.Column, error) {
	rows, err := conn.QueryContext(ctx, columnsQuery, ref.catalog, ref.schema, ref.name)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	columns := []core.Column{}
	for rows.Next() {
		var (
			name, dataType, nullable string
			defaultValue             sql.NullString
		)
		if err := rows.Scan(&name, &dataType, &nullable, &defaultValue); err != nil {
			return nil, err
		}
		column := core.Column{
			Name:     name,
			Type:     dataType,
			Nullable: nullable == "YES",
		}
		if defaultValue.Valid {
			column.Default = &defaultValue.String
		}
		columns = append(columns, column)
	}
	return columns, rows.Err()
}

var countRows = func(ctx context.Context, conn *sql.DB, ref tableRef) (int64, error) {
	var count int64
	query := "SELECT count(*) FROM " + stmt.Qualified(ref.catalog, ref.schema, ref.name)
	err := conn.QueryRowContext(ctx, query).Scan(&count)
	return count, err
}
