package ps

import (
	"os"
	"path/filepath"
	"time"

	"github.com/go-git/go-billy/v6"
	"github.com/go-git/go-billy/v6/osfs"
	"github.com/google/uuid"
)

// Spool holds uploaded files while they are being imported.
type Spool struct {
	fs billy.Filesystem
}

// SpoolFile is one spooled upload. Path is absolute so the engine can read it.
type SpoolFile struct {
	billy.File
	Path string
}

func NewSpool(baseDir string) (*Spool, error) {
	absDir, err := filepath.Abs(baseDir)
	if err != nil {
		return nil, err
	}
	if err := os.MkdirAll(absDir, 0755); err != nil {
		return nil, err
	}
	return &Spool{fs: osfs.New(absDir)}, nil
}

func (s *Spool) Root() string {
	return s.fs.Root()
}

// Create opens a new uniquely named spool file with the given extension.
func (s *Spool) Create(ext string) (*SpoolFile, error) {
	name := uuid.NewString() + ext
	f, err := s.fs.Create(name)
	if err != nil {
		return nil, err
	}
	return &SpoolFile{
		File: f,
		Path: filepath.Join(s.fs.Root(), name),
	}, nil
}

// Remove deletes a spool file; a missing file is not an error.
func (s *Spool) Remove(file *SpoolFile) error {
	err := s.fs.Remove(filepath.Base(file.Path))
	if err != nil && !os.IsNotExist(err) {
		return err
	}
	return nil
}

// Files lists the names of all spooled files.
func (s *Spool) Files() ([]string, error) {
	entries, err := s.fs.ReadDir(".")
	if err != nil {
		return nil, err
	}
	var names []string
	for _, entry := range entries {
		if !entry.IsDir() {
			names = append(names, entry.Name())
		}
	}
	return names, nil
}

// Sweep removes spool files last modified before now-maxAge. Files left
// behind by a crashed import are the only expected victims.
func (s *Spool) Sweep(maxAge time.Duration, now time.Time) (int, error) {
	names, err := s.Files()
	if err != nil {
		return 0, err
	}

	removed := 0
	cutoff := now.Add(-maxAge)
	for _, name := range names {
		info, err := s.fs.Stat(name)
		if err != nil {
			continue
		}
		if info.ModTime().After(cutoff) {
			continue
		}
		if err := s.fs.Remove(name); err != nil && !os.IsNotExist(err) {
			return removed, err
		}
		removed++
	}
	return removed, nil
}
