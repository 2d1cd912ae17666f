// Package db manages live DuckDB handles for DuckDesk.
//
// A Registry owns one Handle per logical database name. The first Resolve of
// a name opens its file and attaches every sibling database already on disk;
// later resolutions return the same handle.
//
//	registry := db.NewRegistry(storage, logger)
//	result, err := registry.Execute(ctx, "sales", "SELECT * FROM hr.main.staff")
//	if err != nil {
//	    return err
//	}
//	result.Display(os.Stdout)
//
// # Attachments
//
// Each handle tracks which siblings are attached in its session. Execute
// classifies ATTACH and DETACH statements and updates the set only after the
// engine accepted them.
//
// # Results
//
// QueryResult holds ordered column names and fully read rows of core.Value.
// Engine values are converted by Normalize.
package db
