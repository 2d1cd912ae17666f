package db

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"log/slog"
	"sync"

	duckdb "github.com/duckdb/duckdb-go/v2"
	"golang.org/x/sync/singleflight"

	"github.com/nickyhof/DuckDesk/core"
	"github.com/nickyhof/DuckDesk/metrics"
	"github.com/nickyhof/DuckDesk/ps"
	"github.com/nickyhof/DuckDesk/stmt"
)

var (
	ErrRegistryClosed = errors.New("registry is closed")
	ErrHandleClosed   = errors.New("database handle is closed")
)

// Handle is the live engine session of one logical database.
type Handle struct {
	name        string
	path        string
	connector   *duckdb.Connector
	db          *sql.DB
	attachments *Attachments

	// inUse is read-held by every operation on db and write-held by close.
	inUse  sync.RWMutex
	closed bool
}

func (h *Handle) Name() string {
	return h.name
}

// DB returns the pooled engine connection. All connections share the same
// engine instance, so attachments are visible on every one of them.
func (h *Handle) DB() *sql.DB {
	return h.db
}

func (h *Handle) Attachments() *Attachments {
	return h.attachments
}

// Acquire marks h in use until release is called. close waits for every
// release, so an evicted handle is never torn down under a running statement.
func (h *Handle) Acquire() (release func(), err error) {
	h.inUse.RLock()
	if h.closed {
		h.inUse.RUnlock()
		return nil, ErrHandleClosed
	}
	return h.inUse.RUnlock, nil
}

func (h *Handle) close() error {
	h.inUse.Lock()
	defer h.inUse.Unlock()
	if h.closed {
		return nil
	}
	h.closed = true
	return errors.Join(h.db.Close(), h.connector.Close())
}

// Registry owns one handle per logical database name. Handles are created on
// first use and live until evicted or the registry is closed.
type Registry struct {
	storage  *ps.Storage
	logger   *slog.Logger
	mu       sync.RWMutex
	handles  map[string]*Handle
	creating singleflight.Group
	closed   bool
}

func NewRegistry(storage *ps.Storage, logger *slog.Logger) *Registry {
	if logger == nil {
		logger = slog.Default()
	}
	return &Registry{
		storage: storage,
		logger:  logger,
		handles: make(map[string]*Handle),
	}
}

func (r *Registry) Storage() *ps.Storage {
	return r.storage
}

// Resolve returns the handle for name, opening it on first use. Concurrent
// first resolutions of one name share a single creation.
//
// Siblings are attached only when the handle is created; databases that
// appear later are not attached automatically.
func (r *Registry) Resolve(ctx context.Context, name string) (*Handle, error) {
	normalized, err := ps.NormalizeName(name)
	if err != nil {
		return nil, core.Validation("%v", err)
	}

	if h, err := r.lookup(normalized); h != nil || err != nil {
		return h, err
	}

	v, err, _ := r.creating.Do(normalized, func() (any, error) {
		if h, err := r.lookup(normalized); h != nil || err != nil {
			return h, err
		}

		h, err := r.open(context.WithoutCancel(ctx), normalized)
		if err != nil {
			return nil, err
		}

		r.mu.Lock()
		defer r.mu.Unlock()
		if r.closed {
			_ = h.close()
			return nil, ErrRegistryClosed
		}
		r.handles[normalized] = h
		metrics.HandlesOpen.Inc()
		return h, nil
	})
	if err != nil {
		return nil, err
	}
	return v.(*Handle), nil
}

func (r *Registry) lookup(name string) (*Handle, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	if r.closed {
		return nil, ErrRegistryClosed
	}
	return r.handles[name], nil
}

func (r *Registry) open(ctx context.Context, name string) (*Handle, error) {
	path := r.storage.Path(name)
	dsn := path
	if name == ps.MemoryDatabase {
		dsn = ""
	}

	connector, err := duckdb.NewConnector(dsn, nil)
	if err != nil {
		return nil, core.EngineOpen(name, err)
	}
	conn := sql.OpenDB(connector)
	if err := conn.PingContext(ctx); err != nil {
		_ = conn.Close()
		_ = connector.Close()
		return nil, core.EngineOpen(name, err)
	}

	h := &Handle{
		name:        name,
		path:        path,
		connector:   connector,
		db:          conn,
		attachments: newAttachments(name),
	}
	r.attachSiblings(ctx, h)

	r.logger.Info("opened database", "database", name, "path", path, "attached", h.attachments.Names())
	return h, nil
}

// attachSiblings attaches every other database that exists on disk. A
// sibling that cannot be attached is logged and skipped.
func (r *Registry) attachSiblings(ctx context.Context, h *Handle) {
	for _, other := range r.storage.Databases() {
		if other == h.name || !r.storage.Exists(other) {
			continue
		}

		query := fmt.Sprintf("ATTACH %s AS %s", stmt.QuoteLiteral(r.storage.Path(other)), stmt.QuoteIdent(other))
		if _, err := h.db.ExecContext(ctx, query); err != nil {
			r.logger.Warn("could not attach database", "database", h.name, "sibling", other, "error", err)
			metrics.AttachFailuresTotal.Inc()
			continue
		}
		h.attachments.Add(other)
	}
}

// Active reports whether a handle exists for name.
func (r *Registry) Active(name string) bool {
	normalized, err := ps.NormalizeName(name)
	if err != nil {
		return false
	}
	h, _ := r.lookup(normalized)
	return h != nil
}

// List describes every database known to the storage catalog.
func (r *Registry) List() []core.DatabaseInfo {
	names := r.storage.Databases()

	r.mu.RLock()
	defer r.mu.RUnlock()

	infos := make([]core.DatabaseInfo, 0, len(names))
	for _, name := range names {
		_, active := r.handles[name]
		infos = append(infos, core.DatabaseInfo{
			Name:   name,
			Size:   r.storage.Size(name),
			Active: active,
		})
	}
	return infos
}

// Attachments returns the attachment set of name's handle, empty when no
// handle exists.
func (r *Registry) Attachments(name string) []string {
	normalized, err := ps.NormalizeName(name)
	if err != nil {
		return []string{}
	}
	h, _ := r.lookup(normalized)
	if h == nil {
		return []string{}
	}
	return h.attachments.Names()
}

// RecordAttach mirrors an engine-accepted ATTACH into owner's set.
func (r *Registry) RecordAttach(owner, attached string) {
	if h := r.handleFor(owner); h != nil {
		h.attachments.Add(attached)
	}
}

// RecordDetach mirrors an engine-accepted DETACH into owner's set.
func (r *Registry) RecordDetach(owner, detached string) {
	if h := r.handleFor(owner); h != nil {
		h.attachments.Remove(detached)
	}
}

func (r *Registry) handleFor(name string) *Handle {
	normalized, err := ps.NormalizeName(name)
	if err != nil {
		return nil
	}
	h, _ := r.lookup(normalized)
	return h
}

// Evict closes and forgets name's handle. The next Resolve opens a fresh one.
// Operations already holding the handle finish first; later ones on the old
// handle fail with ErrHandleClosed.
func (r *Registry) Evict(name string) error {
	normalized, err := ps.NormalizeName(name)
	if err != nil {
		return core.Validation("%v", err)
	}

	r.mu.Lock()
	h, ok := r.handles[normalized]
	delete(r.handles, normalized)
	r.mu.Unlock()

	if !ok {
		return nil
	}
	metrics.HandlesOpen.Dec()
	r.logger.Info("closed database", "database", normalized)
	return h.close()
}

// Close closes every handle. Resolve fails afterwards.
func (r *Registry) Close() error {
	r.mu.Lock()
	handles := r.handles
	r.handles = make(map[string]*Handle)
	r.closed = true
	r.mu.Unlock()

	var errs []error
	for name, h := range handles {
		metrics.HandlesOpen.Dec()
		if err := h.close(); err != nil {
			errs = append(errs, fmt.Errorf("%s: %w", name, err))
		}
	}
	return errors.Join(errs...)
}
