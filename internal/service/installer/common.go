package installer

import (
	"crypto"
	"errors"
	"fmt"
	"os"
	"path/filepath"

	"github.com/foolean/cumulus-dm/internal/manifest"

	// Ensure SHA512 available for checksum calculation.
	_ "crypto/sha512"
)

var errHashUnavailable = errors.New("hash function unavailable")

const (
	// ReleaseFilename stores the release description bundled into every package archive.
	ReleaseFilename = "cumulus-release.yaml"

	// ScriptFileMode is applied to installed scripts so they stay executable.
	ScriptFileMode os.FileMode = 0o755

	// DataFileMode is applied to installed data files.
	DataFileMode os.FileMode = 0o644

	// DirectoryMode is used when creating staging, output and
	// destination directories.
	DirectoryMode os.FileMode = 0o755

	// DefaultChecksumFunction is used to calculate package file hashes.
	DefaultChecksumFunction crypto.Hash = crypto.SHA512

	// BinDirectoryName is the executable directory under the install prefix.
	BinDirectoryName = "bin"

	// defaultMapCapacity is the default initial capacity for maps and slices.
	defaultMapCapacity = 16
)

// Release describes a built package: the manifest metadata plus the
// checksum of every payload file. It travels inside the archive and is
// the installer's source of truth.
type Release struct {
	// Name is the package name.
	Name string `yaml:"name"`
	// Version is the semantic version of this release.
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
	// Files maps payload paths (relative to the package root) to their
	// base64-encoded checksums.
	Files map[string]string `yaml:"files"`
	// Scripts lists payload paths installed into the executable directory.
	Scripts []string `yaml:"scripts"`
	// DataFiles lists destination/sources pairs installed verbatim.
	DataFiles []manifest.DataFileGroup `yaml:"data_files"`
}

// NewRelease produces a Release initialized from manifest metadata.
// Checksums are filled in by the builder.
func NewRelease(m *manifest.Manifest) *Release {
	return &Release{
		Name:        m.Name,
		Version:     m.Version,
		Description: m.Description,
		Author:      m.Author,
		AuthorEmail: m.AuthorEmail,
		URL:         m.URL,
		License:     m.License,
		Files:       make(map[string]string, defaultMapCapacity),
		Scripts:     append([]string(nil), m.Scripts...),
		DataFiles:   append([]manifest.DataFileGroup(nil), m.DataFiles...),
	}
}

// PayloadDirectoryName returns the top-level directory name used inside
// the package archive, e.g. "cumulus-dm-1.0.0".
func (r *Release) PayloadDirectoryName() string {
	return fmt.Sprintf("%s-%s", r.Name, r.Version)
}

// ArchiveFilename returns the package archive name, e.g. "cumulus-dm_1.0.0.tar.gz".
func (r *Release) ArchiveFilename() string {
	return fmt.Sprintf("%s_%s.tar.gz", r.Name, r.Version)
}

// GetFileChecksum returns checksum bytes for a file using DefaultChecksumFunction.
func GetFileChecksum(path string) ([]byte, error) {
	contents, err := os.ReadFile(filepath.Clean(path))
	if err != nil {
		return nil, err
	}

	if !DefaultChecksumFunction.Available() {
		return nil, fmt.Errorf("checksum calculation not possible: %w", errHashUnavailable)
	}

	hasher := DefaultChecksumFunction.New()
	if _, err = hasher.Write(contents); err != nil {
		return nil, fmt.Errorf("calculate checksum: %w", err)
	}

	hash := hasher.Sum(nil)

	return hash, nil
}
