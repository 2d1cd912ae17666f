package ps

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"regexp"
	"sort"
	"strings"

	"github.com/go-git/go-billy/v6"
	"github.com/go-git/go-billy/v6/osfs"
)

const (
	// MemoryDatabase is the logical name of the ephemeral in-process database.
	MemoryDatabase = "memory"
	// MemoryPath is the engine path sentinel for MemoryDatabase.
	MemoryPath = ":memory:"
	// FileExtension is appended to a logical name to form its file name.
	FileExtension = ".db"
	// DefaultDatabase is used when a request names no database.
	DefaultDatabase = "default"
)

var (
	ErrInvalidName = errors.New("invalid database name")

	namePattern = regexp.MustCompile(`^[a-z_][a-z0-9_]*$`)
)

// NormalizeName lower-cases a logical database name and validates it.
func NormalizeName(name string) (string, error) {
	normalized := strings.ToLower(strings.TrimSpace(name))
	if !namePattern.MatchString(normalized) {
		return "", fmt.Errorf("%w: %q", ErrInvalidName, name)
	}
	return normalized, nil
}

// Storage is the catalog of database files kept in one storage directory.
type Storage struct {
	fs          billy.Filesystem
	defaultName string
}

// NewStorage wraps fs as a catalog. Paths handed to the engine are built
// from fs.Root(), so fs must be an on-disk filesystem for anything but
// listing.
func NewStorage(fs billy.Filesystem, defaultName string) (*Storage, error) {
	if defaultName == "" {
		defaultName = DefaultDatabase
	}
	defaultName, err := NormalizeName(defaultName)
	if err != nil {
		return nil, err
	}
	return &Storage{fs: fs, defaultName: defaultName}, nil
}

// NewFileStorage creates baseDir if needed and catalogs the files in it.
func NewFileStorage(baseDir string, defaultName string) (*Storage, error) {
	absDir, err := filepath.Abs(baseDir)
	if err != nil {
		return nil, err
	}
	if err := os.MkdirAll(absDir, 0755); err != nil {
		return nil, err
	}
	return NewStorage(osfs.New(absDir), defaultName)
}

// Root returns the absolute storage directory.
func (s *Storage) Root() string {
	return s.fs.Root()
}

func (s *Storage) DefaultName() string {
	return s.defaultName
}

// Databases lists every known logical name: one per valid *.db file plus
// MemoryDatabase and the default name, sorted.
func (s *Storage) Databases() []string {
	known := map[string]struct{}{
		MemoryDatabase: {},
		s.defaultName:  {},
	}

	entries, err := s.fs.ReadDir(".")
	if err == nil {
		for _, entry := range entries {
			if entry.IsDir() || !strings.HasSuffix(entry.Name(), FileExtension) {
				continue
			}
			stem := strings.TrimSuffix(entry.Name(), FileExtension)
			if !namePattern.MatchString(stem) {
				continue
			}
			known[stem] = struct{}{}
		}
	}

	names := make([]string, 0, len(known))
	for name := range known {
		names = append(names, name)
	}
	sort.Strings(names)
	return names
}

// Path returns the engine path for a logical name.
func (s *Storage) Path(name string) string {
	if name == MemoryDatabase {
		return MemoryPath
	}
	return filepath.Join(s.fs.Root(), fileName(name))
}

// Exists reports whether the database file is present on disk.
func (s *Storage) Exists(name string) bool {
	if name == MemoryDatabase {
		return false
	}
	info, err := s.fs.Stat(fileName(name))
	return err == nil && !info.IsDir()
}

// Size returns the file size in bytes, 0 if it does not exist yet.
func (s *Storage) Size(name string) int64 {
	if name == MemoryDatabase {
		return 0
	}
	info, err := s.fs.Stat(fileName(name))
	if err != nil || info.IsDir() {
		return 0
	}
	return info.Size()
}

func fileName(name string) string {
	return name + FileExtension
}
