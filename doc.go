// Package DuckDesk runs ad-hoc SQL against a directory of DuckDB database
// files.
//
// Every file <name>.db in the storage directory is a logical database. When a
// database is first used, all of its siblings on disk are attached to it, so
// one query can read across databases:
//
//	instance, err := DuckDesk.Open(DuckDesk.Options{
//	    StorageDir: "databases",
//	    UploadDir:  "uploads",
//	})
//	if err != nil {
//	    log.Fatal(err)
//	}
//	defer instance.Close()
//
//	outcome, err := instance.Query(ctx, "sales", "SELECT * FROM hr.main.staff")
//	outcome.Display(os.Stdout)
//
// The name "memory" is an ephemeral in-process database. An empty name
// selects the default database ("default" unless configured otherwise).
//
// # Attachments
//
// ATTACH and DETACH statements are tracked per database; Attachments returns
// the current set. Databases created after a handle was opened are not
// attached to it automatically.
//
// # Import
//
// Import loads an uploaded CSV file into a new table; ImportURL fetches one
// from http(s):// or s3://.
package DuckDesk
