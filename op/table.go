package op

import (
	"context"
	"database/sql"
	"fmt"
	"io"
	"path/filepath"
	"strings"
	"time"

	"github.com/nickyhof/DuckDesk/core"
	"github.com/nickyhof/DuckDesk/db"
	"github.com/nickyhof/DuckDesk/metrics"
	"github.com/nickyhof/DuckDesk/ps"
	"github.com/nickyhof/DuckDesk/stmt"
)

// DefaultSchema receives imports that name no schema.
const DefaultSchema = "main"

type ImportRequest struct {
	Schema   string
	Table    string
	Filename string
	Source   io.Reader
}

type ImportResult struct {
	Schema  string `json:"schema"`
	Table   string `json:"table"`
	Rows    int64  `json:"rows"`
	Message string `json:"message"`
}

// materialize creates target from the staging relation.
var materialize = func(ctx context.Context, tx *sql.Tx, target, staging string) error {
	_, err := tx.ExecContext(ctx, fmt.Sprintf("CREATE TABLE %s AS SELECT * FROM %s", target, staging))
	return err
}

var now = time.Now

// ImportTable loads a CSV source into a new table of h. The source is
// spooled to disk, exposed as a temporary staging view and copied into the
// target inside one transaction on one connection, so a failed import leaves
// no table behind. The spool file and the staging view are released on every
// path.
func ImportTable(ctx context.Context, h *db.Handle, spool *ps.Spool, req ImportRequest) (result ImportResult, err error) {
	defer func() {
		metrics.ImportsTotal.WithLabelValues(metrics.Status(err)).Inc()
	}()

	if req.Source == nil {
		return ImportResult{}, core.Validation("No file part")
	}
	if req.Filename == "" {
		return ImportResult{}, core.Validation("No selected file")
	}
	if !IsCSV(req.Filename) {
		return ImportResult{}, core.Validation("Only CSV files are supported")
	}

	schema := strings.TrimSpace(req.Schema)
	if schema == "" {
		schema = DefaultSchema
	}
	table := strings.TrimSpace(req.Table)
	if table == "" {
		table = fmt.Sprintf("table_%d", now().Unix())
	}

	release, err := h.Acquire()
	if err != nil {
		return ImportResult{}, core.Ingest(err)
	}
	defer release()

	file, err := spool.Create(".csv")
	if err != nil {
		return ImportResult{}, core.Ingest(fmt.Errorf("failed to spool upload: %w", err))
	}
	defer spool.Remove(file)

	_, err = io.Copy(file, utf8Reader(req.Source))
	if closeErr := file.Close(); err == nil {
		err = closeErr
	}
	if err != nil {
		return ImportResult{}, core.Ingest(fmt.Errorf("failed to spool upload: %w", err))
	}

	conn, err := h.DB().Conn(ctx)
	if err != nil {
		return ImportResult{}, core.Ingest(err)
	}
	defer conn.Close()

	staging := "staging_" + strings.ReplaceAll(strings.TrimSuffix(filepath.Base(file.Path), ".csv"), "-", "_")
	defer func() {
		_, _ = conn.ExecContext(context.WithoutCancel(ctx), "DROP VIEW IF EXISTS "+stmt.QuoteIdent(staging))
	}()

	tx, err := conn.BeginTx(ctx, nil)
	if err != nil {
		return ImportResult{}, core.Ingest(err)
	}
	defer func() {
		if err != nil {
			_ = tx.Rollback()
		}
	}()

	if schema != DefaultSchema {
		if _, err = tx.ExecContext(ctx, "CREATE SCHEMA IF NOT EXISTS "+stmt.QuoteIdent(schema)); err != nil {
			return ImportResult{}, core.Ingest(err)
		}
	}

	view := fmt.Sprintf("CREATE TEMP VIEW %s AS SELECT * FROM read_csv_auto(%s, header = true)",
		stmt.QuoteIdent(staging), stmt.QuoteLiteral(file.Path))
	if _, err = tx.ExecContext(ctx, view); err != nil {
		return ImportResult{}, core.Ingest(err)
	}

	target := stmt.Qualified(schema, table)
	if err = materialize(ctx, tx, target, stmt.QuoteIdent(staging)); err != nil {
		return ImportResult{}, core.Ingest(err)
	}

	var rows int64
	if err = tx.QueryRowContext(ctx, "SELECT count(*) FROM "+target).Scan(&rows); err != nil {
		return ImportResult{}, core.Ingest(err)
	}

	if err = tx.Commit(); err != nil {
		return ImportResult{}, core.Ingest(err)
	}

	return ImportResult{
		Schema:  schema,
		Table:   table,
		Rows:    rows,
		Message: fmt.Sprintf("Successfully imported %s as %s.%s", req.Filename, schema, table),
	}, nil
}
