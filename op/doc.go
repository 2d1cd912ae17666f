// Package op implements the DuckDesk operations that run against a database
// handle: describing its schemas and importing CSV data.
//
// # Schema
//
//	description, err := op.DescribeSchema(ctx, handle, op.SchemaOptions{Workers: 4})
//	for _, name := range description.SchemaNames() {
//	    for _, table := range description.Schemas[name].TableNames() {
//	        ...
//	    }
//	}
//
// Row counts are collected on a bounded worker pool. A table whose count
// fails reports zero rows.
//
// # Import
//
//	result, err := op.ImportTable(ctx, handle, spool, op.ImportRequest{
//	    Schema:   "sales",
//	    Table:    "orders",
//	    Filename: "orders.csv",
//	    Source:   file,
//	})
//
// ImportURL does the same for http(s):// and s3:// locations, decompressing
// .gz, .bz2, .xz and .zst payloads on the way.
package op
