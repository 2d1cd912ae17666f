// Package main provides the DuckDesk HTTP and gRPC server.
package main

import (
	"github.com/nickyhof/DuckDesk/core"
)

// QueryRequest runs one statement against a database.
type QueryRequest struct {
	Database string `json:"database"`
	Query    string `json:"query"`
}

// QueryResponse carries the rows of a statement and the attachment set of
// the database afterwards.
type QueryResponse struct {
	Success           bool                    `json:"success"`
	Data              []map[string]core.Value `json:"data"`
	Columns           []string                `json:"columns"`
	AttachedDatabases []string                `json:"attached_databases"`
	Message           string                  `json:"message,omitempty"`
}

type SchemaRequest struct {
	Database string `json:"database"`
}

type SchemaResponse struct {
	Success bool                   `json:"success"`
	Data    core.SchemaDescription `json:"data"`
}

type DatabasesRequest struct{}

type DatabasesResponse struct {
	Success bool                `json:"success"`
	Data    []core.DatabaseInfo `json:"data"`
}

// ImportRequest imports a CSV file fetched from URL.
type ImportRequest struct {
	Database string `json:"database"`
	Schema   string `json:"schema"`
	Table    string `json:"table"`
	URL      string `json:"url"`
}

type ImportResponse struct {
	Success bool   `json:"success"`
	Message string `json:"message"`
	Schema  string `json:"schema,omitempty"`
	Table   string `json:"table,omitempty"`
	Rows    int64  `json:"rows"`
}

// ErrorResponse is returned by every endpoint on failure.
type ErrorResponse struct {
	Success bool   `json:"success"`
	Error   string `json:"error"`
}
