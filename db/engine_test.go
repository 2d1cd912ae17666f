package db

import (
	"context"
	"database/sql"
	"errors"
	"os"
	"path/filepath"
	"sync"
	"testing"
	"time"

	duckdb "github.com/duckdb/duckdb-go/v2"
	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/nickyhof/DuckDesk/core"
	"github.com/nickyhof/DuckDesk/metrics"
	"github.com/nickyhof/DuckDesk/ps"
)

func setupTestRegistry(t testing.TB) *Registry {
	t.Helper()
	storage, err := ps.NewFileStorage(t.TempDir(), "")
	require.NoError(t, err)

	registry := NewRegistry(storage, nil)
	t.Cleanup(func() { _ = registry.Close() })
	return registry
}

// seedDatabase creates a database file outside the registry.
func seedDatabase(t *testing.T, storage *ps.Storage, name string, statements ...string) {
	t.Helper()
	connector, err := duckdb.NewConnector(storage.Path(name), nil)
	require.NoError(t, err)
	conn := sql.OpenDB(connector)
	for _, statement := range statements {
		_, err := conn.Exec(statement)
		require.NoError(t, err)
	}
	require.NoError(t, conn.Close())
	require.NoError(t, connector.Close())
}

func TestResolveAttachesSiblings(t *testing.T) {
	registry := setupTestRegistry(t)
	seedDatabase(t, registry.Storage(), "b",
		"CREATE TABLE items (id INTEGER)",
		"INSERT INTO items VALUES (1), (2)")

	h, err := registry.Resolve(context.Background(), "a")
	require.NoError(t, err)
	assert.Equal(t, []string{"b"}, h.Attachments().Names())
	assert.Equal(t, []string{"b"}, registry.Attachments("A"))

	result, err := registry.Execute(context.Background(), "a", "SELECT count(*) AS n FROM b.main.items")
	require.NoError(t, err)
	require.Len(t, result.Rows, 1)
	assert.Equal(t, core.Int(2), result.Rows[0]["n"])
}

func TestResolveSkipsCorruptSibling(t *testing.T) {
	registry := setupTestRegistry(t)
	seedDatabase(t, registry.Storage(), "b", "CREATE TABLE items (id INTEGER)")
	require.NoError(t, os.WriteFile(registry.Storage().Path("junk"), []byte("this is not a database file"), 0644))

	failures := testutil.ToFloat64(metrics.AttachFailuresTotal)

	h, err := registry.Resolve(context.Background(), "a")
	require.NoError(t, err)
	assert.Equal(t, []string{"b"}, h.Attachments().Names())
	assert.Equal(t, failures+1, testutil.ToFloat64(metrics.AttachFailuresTotal))

	_, err = registry.Execute(context.Background(), "a", "SELECT * FROM b.main.items")
	assert.NoError(t, err)
}

func TestResolveReturnsSameHandle(t *testing.T) {
	registry := setupTestRegistry(t)

	first, err := registry.Resolve(context.Background(), "Sales")
	require.NoError(t, err)
	second, err := registry.Resolve(context.Background(), "sales")
	require.NoError(t, err)
	assert.Same(t, first, second)
	assert.Equal(t, "sales", first.Name())
}

func TestResolveConcurrent(t *testing.T) {
	registry := setupTestRegistry(t)

	const n = 16
	handles := make([]*Handle, n)
	errs := make([]error, n)
	var wg sync.WaitGroup
	for i := range n {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			handles[i], errs[i] = registry.Resolve(context.Background(), "shared")
		}(i)
	}
	wg.Wait()

	for i := range n {
		require.NoError(t, errs[i])
		assert.Same(t, handles[0], handles[i])
	}
}

func TestResolveInvalidName(t *testing.T) {
	registry := setupTestRegistry(t)

	_, err := registry.Resolve(context.Background(), "../etc")
	require.Error(t, err)
	assert.True(t, errors.Is(err, core.ErrValidation))
}

func TestResolveAfterClose(t *testing.T) {
	registry := setupTestRegistry(t)
	require.NoError(t, registry.Close())

	_, err := registry.Resolve(context.Background(), "a")
	assert.ErrorIs(t, err, ErrRegistryClosed)
}

func TestExecuteAttachAndDetach(t *testing.T) {
	registry := setupTestRegistry(t)
	ctx := context.Background()

	_, err := registry.Resolve(ctx, "a")
	require.NoError(t, err)

	target := filepath.Join(t.TempDir(), "extra.db")
	_, err = registry.Execute(ctx, "a", "ATTACH '"+target+"' AS Extra")
	require.NoError(t, err)
	assert.Equal(t, []string{"extra"}, registry.Attachments("a"))

	_, err = registry.Execute(ctx, "a", "DETACH extra")
	require.NoError(t, err)
	assert.Empty(t, registry.Attachments("a"))

	_, err = registry.Execute(ctx, "a", "DETACH DATABASE IF EXISTS extra")
	require.NoError(t, err)
	assert.Empty(t, registry.Attachments("a"))
}

func TestExecuteAttachFileStemAlias(t *testing.T) {
	registry := setupTestRegistry(t)
	ctx := context.Background()

	target := filepath.Join(t.TempDir(), "my-file.db")
	_, err := registry.Execute(ctx, "a", "ATTACH '"+target+"'")
	require.NoError(t, err)
	assert.Equal(t, []string{"my-file"}, registry.Attachments("a"))

	_, err = registry.Execute(ctx, "a", `CREATE TABLE "my-file".main.t (id INTEGER)`)
	require.NoError(t, err)

	_, err = registry.Execute(ctx, "a", `DETACH "my-file"`)
	require.NoError(t, err)
	assert.Empty(t, registry.Attachments("a"))
}

func TestExecuteFailedAttachLeavesSet(t *testing.T) {
	registry := setupTestRegistry(t)
	ctx := context.Background()
	seedDatabase(t, registry.Storage(), "b", "CREATE TABLE t (x INTEGER)")

	_, err := registry.Resolve(ctx, "a")
	require.NoError(t, err)
	before := registry.Attachments("a")

	_, err = registry.Execute(ctx, "a", "ATTACH '/nonexistent/dir/x.db' AS x")
	require.Error(t, err)
	assert.True(t, errors.Is(err, core.ErrExecution))
	assert.Equal(t, before, registry.Attachments("a"))

	_, err = registry.Execute(ctx, "a", "DETACH missing")
	require.Error(t, err)
	assert.Equal(t, before, registry.Attachments("a"))
}

func TestSelfAttachNeverRecorded(t *testing.T) {
	registry := setupTestRegistry(t)
	ctx := context.Background()

	_, err := registry.Resolve(ctx, "a")
	require.NoError(t, err)

	registry.RecordAttach("a", "a")
	registry.RecordAttach("a", "b")
	registry.RecordAttach("a", "B")
	assert.Equal(t, []string{"b"}, registry.Attachments("a"))

	registry.RecordDetach("a", "b")
	registry.RecordDetach("a", "b")
	assert.Empty(t, registry.Attachments("a"))
	assert.Empty(t, registry.Attachments("unknown"))
}

func TestExecuteEmptyQuery(t *testing.T) {
	registry := setupTestRegistry(t)

	_, err := registry.Execute(context.Background(), "a", "   ")
	require.Error(t, err)
	assert.True(t, errors.Is(err, core.ErrValidation))
	assert.Equal(t, "No query provided", err.Error())
	assert.False(t, registry.Active("a"))
}

func TestExecuteNoResults(t *testing.T) {
	registry := setupTestRegistry(t)
	ctx := context.Background()

	_, err := registry.Execute(ctx, "memory", "CREATE TABLE t (x INTEGER)")
	require.NoError(t, err)

	result, err := registry.Execute(ctx, "memory", "SELECT * FROM t")
	require.NoError(t, err)
	assert.Empty(t, result.Columns)
	assert.Empty(t, result.Rows)
	assert.Equal(t, NoResultsMessage, result.Message)
}

func TestExecuteTypes(t *testing.T) {
	registry := setupTestRegistry(t)

	result, err := registry.Execute(context.Background(), "memory", `
		SELECT 1 AS i,
		       'x' AS s,
		       1.5::DOUBLE AS f,
		       true AS b,
		       TIMESTAMP '2024-01-02 03:04:05' AS ts,
		       [1, 2] AS arr,
		       'NaN'::DOUBLE AS nan,
		       NULL AS z,
		       12.5::DECIMAL(10, 2) AS d,
		       170141183460469231731687303715884105727::HUGEINT AS big`)
	require.NoError(t, err)

	assert.Equal(t, []string{"i", "s", "f", "b", "ts", "arr", "nan", "z", "d", "big"}, result.Columns)
	require.Len(t, result.Rows, 1)
	row := result.Rows[0]

	assert.Equal(t, core.Int(1), row["i"])
	assert.Equal(t, core.String("x"), row["s"])
	assert.Equal(t, core.Float(1.5), row["f"])
	assert.Equal(t, core.Bool(true), row["b"])
	assert.Equal(t, core.TimestampKind, row["ts"].Kind)
	assert.Equal(t, "2024-01-02T03:04:05Z", row["ts"].String())
	assert.Equal(t, core.Array(core.Int(1), core.Int(2)), row["arr"])
	assert.True(t, row["nan"].IsNull())
	assert.True(t, row["z"].IsNull())
	assert.Equal(t, core.Float(12.5), row["d"])
	assert.Equal(t, core.String("170141183460469231731687303715884105727"), row["big"])
}

func TestExecuteEngineError(t *testing.T) {
	registry := setupTestRegistry(t)

	_, err := registry.Execute(context.Background(), "memory", "SELECT * FROM missing_table")
	require.Error(t, err)
	assert.True(t, errors.Is(err, core.ErrExecution))
	assert.Contains(t, err.Error(), "missing_table")
}

func TestListAndEvict(t *testing.T) {
	registry := setupTestRegistry(t)
	ctx := context.Background()

	first, err := registry.Resolve(ctx, "a")
	require.NoError(t, err)

	infos := registry.List()
	active := map[string]bool{}
	for _, info := range infos {
		active[info.Name] = info.Active
	}
	assert.Equal(t, map[string]bool{"a": true, "default": false, "memory": false}, active)

	require.NoError(t, registry.Evict("a"))
	assert.False(t, registry.Active("a"))
	require.NoError(t, registry.Evict("a"))

	second, err := registry.Resolve(ctx, "a")
	require.NoError(t, err)
	assert.NotSame(t, first, second)
}

func TestEvictWaitsForRunningOperations(t *testing.T) {
	registry := setupTestRegistry(t)
	ctx := context.Background()

	h, err := registry.Resolve(ctx, "a")
	require.NoError(t, err)

	release, err := h.Acquire()
	require.NoError(t, err)

	evicted := make(chan error, 1)
	go func() { evicted <- registry.Evict("a") }()

	select {
	case <-evicted:
		t.Fatal("Evict returned while the handle was in use")
	case <-time.After(100 * time.Millisecond):
	}

	_, err = h.DB().ExecContext(ctx, "CREATE TABLE still_open (id INTEGER)")
	require.NoError(t, err)
	release()

	select {
	case err := <-evicted:
		require.NoError(t, err)
	case <-time.After(5 * time.Second):
		t.Fatal("Evict did not finish after release")
	}

	_, err = Run(ctx, h, "SELECT 1")
	assert.ErrorIs(t, err, ErrHandleClosed)
	assert.ErrorIs(t, err, core.ErrExecution)

	result, err := registry.Execute(ctx, "a", "SELECT count(*) AS n FROM still_open")
	require.NoError(t, err)
	assert.Equal(t, core.Int(0), result.Rows[0]["n"])
}
