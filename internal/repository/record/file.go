package record

import (
	"context"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"sync"
	"time"

	"gopkg.in/yaml.v3"

	"github.com/foolean/cumulus-dm/internal/sysinfo"
)

// Record describes an installed package: the metadata it was built with,
// every file placed on disk keyed by its final path, and who installed it.
type Record struct {
	// Name is the installed package name.
	Name string `yaml:"name"`
	// Version is the installed package version.
	Version string `yaml:"version"`
	// Description is the human-readable summary from the manifest.
	Description string `yaml:"description,omitempty"`
	// Author and AuthorEmail identify the maintainer.
	Author      string `yaml:"author,omitempty"`
	AuthorEmail string `yaml:"author_email,omitempty"`
	// URL is the project location.
	URL string `yaml:"url,omitempty"`
	// License is the license identifier.
	License string `yaml:"license,omitempty"`
	// Files maps installed paths to their base64-encoded checksums.
	Files map[string]string `yaml:"files"`
	// InstalledAt is the time the install completed.
	InstalledAt time.Time `yaml:"installed_at"`
	// InstalledBy identifies the host and user that performed the install.
	InstalledBy *sysinfo.Actor `yaml:"installed_by,omitempty"`
}

// Repository defines persistence operations for the installed-package record.
type Repository interface {
	Load(ctx context.Context) (*Record, error)
	Save(ctx context.Context, rec *Record) error
	Remove(ctx context.Context) error
}

// FileRepository persists the installed-package record to a YAML file
// under the install prefix.
type FileRepository struct {
	// path is the filesystem location of the record file.
	path string
	// mu protects concurrent access to the record file.
	mu sync.Mutex
}

// ErrNotFound is returned when no record exists under the prefix yet.
var ErrNotFound = errors.New("installed record not found")

const (
	// recordFilePermissions restricts the record to owner read/write plus world read.
	recordFilePermissions = 0o644
	// recordDirPermissions is used when creating the record directory.
	recordDirPermissions = 0o755
)

// DefaultPath returns the record location for an install prefix.
func DefaultPath(prefix string) string {
	return filepath.Join(prefix, "share", "cumulus-dm", "installed.yaml")
}

// NewFileRepository creates a repository that reads/writes YAML at the provided path.
func NewFileRepository(path string) *FileRepository {
	return &FileRepository{
		path: filepath.Clean(path),
	}
}

// Load reads the record from disk.
func (r *FileRepository) Load(_ context.Context) (*Record, error) {
	r.mu.Lock()
	defer r.mu.Unlock()

	contents, err := os.ReadFile(r.path)
	if err != nil {
		if errors.Is(err, os.ErrNotExist) {
			return nil, ErrNotFound
		}

		return nil, fmt.Errorf("read record file: %w", err)
	}

	var rec Record
	if err = yaml.Unmarshal(contents, &rec); err != nil {
		return nil, fmt.Errorf("decode record file: %w", err)
	}

	return &rec, nil
}

// Save writes the record to disk, creating the record directory if needed.
func (r *FileRepository) Save(_ context.Context, rec *Record) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	data, err := yaml.Marshal(rec)
	if err != nil {
		return fmt.Errorf("encode record: %w", err)
	}

	if err = os.MkdirAll(filepath.Dir(r.path), recordDirPermissions); err != nil {
		return fmt.Errorf("create record directory: %w", err)
	}

	if err = os.WriteFile(r.path, data, recordFilePermissions); err != nil {
		return fmt.Errorf("write record file: %w", err)
	}

	return nil
}

// Remove deletes the record from disk. Removing an absent record is not an error.
func (r *FileRepository) Remove(_ context.Context) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	if err := os.Remove(r.path); err != nil && !errors.Is(err, os.ErrNotExist) {
		return fmt.Errorf("remove record file: %w", err)
	}

	return nil
}
