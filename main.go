package DuckDesk

import (
	"context"
	"io"
	"log/slog"
	"time"

	"github.com/nickyhof/DuckDesk/core"
	"github.com/nickyhof/DuckDesk/db"
	"github.com/nickyhof/DuckDesk/metrics"
	"github.com/nickyhof/DuckDesk/op"
	"github.com/nickyhof/DuckDesk/ps"
)

type Options struct {
	StorageDir      string
	UploadDir       string
	DefaultDatabase string
	RowCountWorkers int
	// AllowLocalImports lets ImportURL read plain paths and file:// URLs.
	AllowLocalImports bool
	// ImportHosts lists the hosts and S3 buckets ImportURL may fetch from;
	// "*" allows any. Empty disables remote imports.
	ImportHosts []string
	S3          op.S3Config
	Logger      *slog.Logger
}

type Instance struct {
	Storage  *ps.Storage
	Spool    *ps.Spool
	Registry *db.Registry

	options Options
	logger  *slog.Logger
}

// QueryOutcome is a statement result together with the attachment set of
// the database it ran on, read after the statement completed.
type QueryOutcome struct {
	db.QueryResult
	Attached []string `json:"attached_databases"`
}

func Open(options Options) (*Instance, error) {
	logger := options.Logger
	if logger == nil {
		logger = slog.Default()
	}

	storage, err := ps.NewFileStorage(options.StorageDir, options.DefaultDatabase)
	if err != nil {
		return nil, err
	}
	spool, err := ps.NewSpool(options.UploadDir)
	if err != nil {
		return nil, err
	}

	return &Instance{
		Storage:  storage,
		Spool:    spool,
		Registry: db.NewRegistry(storage, logger),
		options:  options,
		logger:   logger,
	}, nil
}

// database maps an empty name to the default database.
func (instance *Instance) database(name string) string {
	if name == "" {
		return instance.Storage.DefaultName()
	}
	return name
}

func (instance *Instance) Query(ctx context.Context, database, query string) (QueryOutcome, error) {
	database = instance.database(database)
	result, err := instance.Registry.Execute(ctx, database, query)
	if err != nil {
		return QueryOutcome{}, err
	}
	return QueryOutcome{
		QueryResult: result,
		Attached:    instance.Registry.Attachments(database),
	}, nil
}

func (instance *Instance) Schema(ctx context.Context, database string) (core.SchemaDescription, error) {
	h, err := instance.Registry.Resolve(ctx, instance.database(database))
	if err != nil {
		return core.SchemaDescription{}, err
	}
	return op.DescribeSchema(ctx, h, op.SchemaOptions{
		Workers: instance.options.RowCountWorkers,
		Logger:  instance.logger,
	})
}

// Import loads an uploaded CSV file into database.
func (instance *Instance) Import(ctx context.Context, database, schema, table, filename string, source io.Reader) (op.ImportResult, error) {
	h, err := instance.Registry.Resolve(ctx, instance.database(database))
	if err != nil {
		return op.ImportResult{}, err
	}
	result, err := op.ImportTable(ctx, h, instance.Spool, op.ImportRequest{
		Schema:   schema,
		Table:    table,
		Filename: filename,
		Source:   source,
	})
	if err != nil {
		instance.logger.Warn("import failed", "database", h.Name(), "file", filename, "error", err)
		return op.ImportResult{}, err
	}
	instance.logger.Info("imported table", "database", h.Name(), "schema", result.Schema, "table", result.Table, "rows", result.Rows)
	return result, nil
}

// ImportURL loads a CSV file fetched from location into database.
func (instance *Instance) ImportURL(ctx context.Context, database, schema, table, location string) (op.ImportResult, error) {
	h, err := instance.Registry.Resolve(ctx, instance.database(database))
	if err != nil {
		return op.ImportResult{}, err
	}
	return op.ImportURL(ctx, h, instance.Spool, location, schema, table, op.RemoteOptions{
		S3:           instance.options.S3,
		AllowLocal:   instance.options.AllowLocalImports,
		AllowedHosts: instance.options.ImportHosts,
	})
}

func (instance *Instance) Databases() []core.DatabaseInfo {
	return instance.Registry.List()
}

func (instance *Instance) Attachments(database string) []string {
	return instance.Registry.Attachments(instance.database(database))
}

// SweepUploads removes upload files older than maxAge.
func (instance *Instance) SweepUploads(maxAge time.Duration) (int, error) {
	removed, err := instance.Spool.Sweep(maxAge, time.Now())
	metrics.SpoolFilesSwept.Add(float64(removed))
	if removed > 0 {
		instance.logger.Info("swept stale uploads", "removed", removed)
	}
	return removed, err
}

func (instance *Instance) Close() error {
	return instance.Registry.Close()
}
