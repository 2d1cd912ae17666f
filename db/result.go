package db

import (
	"fmt"
	"io"

	"github.com/nickyhof/DuckDesk/core"
)

// QueryResult is the fully read result of one statement.
type QueryResult struct {
	Columns          []string                `json:"columns"`
	Rows             []map[string]core.Value `json:"data"`
	Message          string                  `json:"message,omitempty"`
	ExecutionTimeSec float64                 `json:"-"`
}

// Cells returns the rows in column order, rendered for display.
func (result QueryResult) Cells() [][]string {
	cells := make([][]string, 0, len(result.Rows))
	for _, row := range result.Rows {
		line := make([]string, len(result.Columns))
		for i, column := range result.Columns {
			line[i] = row[column].String()
		}
		cells = append(cells, line)
	}
	return cells
}

// formatDuration formats a duration in human-readable form
func formatDuration(secs float64) string {
	switch {
	case secs < 0.001:
		return "<1ms"
	case secs < 1:
		return fmt.Sprintf("%dms", int(secs*1000))
	case secs < 10:
		return fmt.Sprintf("%.1fs", secs)
	case secs < 60:
		return fmt.Sprintf("%ds", int(secs))
	}
	mins := int(secs / 60)
	remainSecs := int(secs) % 60
	if remainSecs == 0 {
		return fmt.Sprintf("%dm", mins)
	}
	return fmt.Sprintf("%dm%ds", mins, remainSecs)
}

func (result QueryResult) ExecutionTime() string {
	return formatDuration(result.ExecutionTimeSec)
}

// Display writes the result as a table followed by a stats line.
func (result QueryResult) Display(w io.Writer) {
	if len(result.Rows) == 0 {
		fmt.Fprintf(w, "%s (%s)\n", result.Message, result.ExecutionTime())
		return
	}

	data := NewTable(w)
	data.Header(result.Columns)
	data.Bulk(result.Cells())
	data.Render()

	noun := "rows"
	if len(result.Rows) == 1 {
		noun = "row"
	}
	fmt.Fprintf(w, "%d %s (%s)\n", len(result.Rows), noun, result.ExecutionTime())
}
