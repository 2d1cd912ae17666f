package ps

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/go-git/go-billy/v6/memfs"
	"github.com/go-git/go-billy/v6/util"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func setupTestStorage(t *testing.T) (*Storage, string) {
	dir := t.TempDir()
	storage, err := NewFileStorage(dir, "")
	require.NoError(t, err)
	return storage, dir
}

func TestStorageDatabasesAlwaysIncludesMemoryAndDefault(t *testing.T) {
	storage, _ := setupTestStorage(t)

	assert.Equal(t, []string{"default", "memory"}, storage.Databases())
}

func TestStorageDatabasesScansFiles(t *testing.T) {
	storage, dir := setupTestStorage(t)

	for _, name := range []string{"sales.db", "hr.db", "notes.txt", "Mixed.db", "bad-name.db"} {
		require.NoError(t, os.WriteFile(filepath.Join(dir, name), []byte("x"), 0644))
	}
	require.NoError(t, os.Mkdir(filepath.Join(dir, "dir.db"), 0755))

	assert.Equal(t, []string{"default", "hr", "memory", "sales"}, storage.Databases())
}

func TestStorageListsInMemoryFilesystem(t *testing.T) {
	fs := memfs.New()
	for _, name := range []string{"a.db", "b.db", "c.csv"} {
		require.NoError(t, util.WriteFile(fs, name, []byte("x"), 0644))
	}

	storage, err := NewStorage(fs, "a")
	require.NoError(t, err)

	assert.Equal(t, []string{"a", "b", "memory"}, storage.Databases())
	assert.True(t, storage.Exists("b"))
	assert.False(t, storage.Exists("c"))
	assert.Equal(t, int64(1), storage.Size("a"))
}

func TestStoragePath(t *testing.T) {
	storage, dir := setupTestStorage(t)
	abs, err := filepath.Abs(dir)
	require.NoError(t, err)

	assert.Equal(t, MemoryPath, storage.Path(MemoryDatabase))
	assert.Equal(t, filepath.Join(abs, "sales.db"), storage.Path("sales"))
	assert.NotEqual(t, storage.Path("sales"), storage.Path("sales2"))
}

func TestStorageSizeAndExists(t *testing.T) {
	storage, dir := setupTestStorage(t)

	assert.Equal(t, int64(0), storage.Size("sales"))
	assert.False(t, storage.Exists("sales"))

	require.NoError(t, os.WriteFile(filepath.Join(dir, "sales.db"), []byte("12345"), 0644))
	assert.Equal(t, int64(5), storage.Size("sales"))
	assert.True(t, storage.Exists("sales"))

	assert.Equal(t, int64(0), storage.Size(MemoryDatabase))
	assert.False(t, storage.Exists(MemoryDatabase))
}

func TestStorageCustomDefault(t *testing.T) {
	storage, err := NewFileStorage(t.TempDir(), "Warehouse")
	require.NoError(t, err)

	assert.Equal(t, "warehouse", storage.DefaultName())
	assert.Contains(t, storage.Databases(), "warehouse")

	_, err = NewFileStorage(t.TempDir(), "../escape")
	assert.ErrorIs(t, err, ErrInvalidName)
}

func TestNormalizeName(t *testing.T) {
	tests := []struct {
		in      string
		want    string
		wantErr bool
	}{
		{in: "Sales", want: "sales"},
		{in: "  hr_2024 ", want: "hr_2024"},
		{in: "_tmp", want: "_tmp"},
		{in: "", wantErr: true},
		{in: "2024", wantErr: true},
		{in: "../etc", wantErr: true},
		{in: "a.b", wantErr: true},
	}

	for _, tt := range tests {
		t.Run(tt.in, func(t *testing.T) {
			got, err := NormalizeName(tt.in)
			if tt.wantErr {
				assert.ErrorIs(t, err, ErrInvalidName)
				return
			}
			require.NoError(t, err)
			assert.Equal(t, tt.want, got)
		})
	}
}
