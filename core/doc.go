// Package core provides core types used throughout DuckDesk.
//
// The package defines the transport-neutral shapes handed back to callers:
// normalized values, schema descriptions, database listings and the error
// kinds every layer reports with.
//
// # Values
//
// Value is a tagged scalar produced by the normalization step of the query
// executor. It encodes to the natural JSON form:
//
//	core.Int(42)                 // 42
//	core.String("alice")         // "alice"
//	core.Timestamp(t)            // "2024-05-01T10:00:00Z"
//	core.Null()                  // null
//	core.Array(core.Int(1))      // [1]
//
// # Schema Description
//
//	desc := core.SchemaDescription{
//	    CurrentDatabase: "sales",
//	    Schemas: map[string]core.Schema{
//	        "main": {Tables: map[string]core.Table{
//	            "orders": {Columns: []core.Column{{Name: "id", Type: "BIGINT"}}, RowCount: 10},
//	        }},
//	    },
//	}
//
// # Errors
//
// Every failure surfaced to a caller is a *Error whose Kind is one of
// ErrValidation, ErrEngineOpen, ErrExecution or ErrIngest:
//
//	if errors.Is(err, core.ErrExecution) {
//	    // statement rejected by the engine
//	}
package core
