// Package ps provides the on-disk side of DuckDesk.
//
// Storage is the database catalog: every logical database other than
// "memory" lives in one file named <name>.db inside the storage directory.
// Spool holds uploaded files while an import reads them. Both are backed by
// go-billy filesystems rooted at their directory.
//
// # Storage
//
//	storage, err := ps.NewFileStorage("databases", "default")
//	if err != nil {
//	    log.Fatal(err)
//	}
//	storage.Databases()   // [default memory sales]
//	storage.Path("sales") // /abs/databases/sales.db
//	storage.Size("sales") // bytes, 0 when missing
//
// # Spool
//
//	spool, _ := ps.NewSpool("uploads")
//	file, _ := spool.Create(".csv")
//	defer spool.Remove(file)
//
// Stale files are collected with Sweep.
package ps
