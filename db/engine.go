package db

import (
	"context"
	"strings"
	"time"

	"github.com/nickyhof/DuckDesk/core"
	"github.com/nickyhof/DuckDesk/metrics"
	"github.com/nickyhof/DuckDesk/stmt"
)

// NoResultsMessage is reported for statements that return no rows.
const NoResultsMessage = "Query executed successfully (no results)"

// Execute runs query against the named database. ATTACH and DETACH
// statements are mirrored into the handle's attachment set once the engine
// has accepted them; a failed statement leaves the set untouched.
func (r *Registry) Execute(ctx context.Context, name, query string) (QueryResult, error) {
	if strings.TrimSpace(query) == "" {
		return QueryResult{}, core.Validation("No query provided")
	}

	h, err := r.Resolve(ctx, name)
	if err != nil {
		return QueryResult{}, err
	}

	statement := stmt.Classify(query)

	startTime := time.Now()
	result, err := Run(ctx, h, query)
	metrics.QueryDuration.Observe(time.Since(startTime).Seconds())
	metrics.QueriesTotal.WithLabelValues(metrics.Status(err)).Inc()
	if err != nil {
		r.logger.Debug("statement failed", "database", h.name, "error", err)
		return QueryResult{}, err
	}

	switch statement.Type() {
	case stmt.AttachStatementType:
		if h.attachments.Add(statement.Name) {
			r.logger.Info("attached database", "database", h.name, "attached", statement.Name)
		}
	case stmt.DetachStatementType:
		if h.attachments.Remove(statement.Name) {
			r.logger.Info("detached database", "database", h.name, "detached", statement.Name)
		}
	}

	return result, nil
}

// Run executes one statement on h and reads its whole result. A row error
// fails the statement; partial results are never returned.
func Run(ctx context.Context, h *Handle, query string) (QueryResult, error) {
	release, err := h.Acquire()
	if err != nil {
		return QueryResult{}, core.Execution(err)
	}
	defer release()

	startTime := time.Now()

	rows, err := h.db.QueryContext(ctx, query)
	if err != nil {
		return QueryResult{}, core.Execution(err)
	}
	defer rows.Close()

	columns, err := rows.Columns()
	if err != nil {
		return QueryResult{}, core.Execution(err)
	}

	var data []map[string]core.Value
	for rows.Next() {
		values := make([]any, len(columns))
		ptrs := make([]any, len(columns))
		for i := range values {
			ptrs[i] = &values[i]
		}
		if err := rows.Scan(ptrs...); err != nil {
			return QueryResult{}, core.Execution(err)
		}

		row := make(map[string]core.Value, len(columns))
		for i, column := range columns {
			row[column] = Normalize(values[i])
		}
		data = append(data, row)
	}
	if err := rows.Err(); err != nil {
		return QueryResult{}, core.Execution(err)
	}

	result := QueryResult{
		Columns:          columns,
		Rows:             data,
		ExecutionTimeSec: time.Since(startTime).Seconds(),
	}
	if len(data) == 0 {
		result.Columns = []string{}
		result.Rows = []map[string]core.Value{}
		result.Message = NoResultsMessage
	}
	return result, nil
}
