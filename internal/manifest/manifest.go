package manifest

import (
	"errors"
	"fmt"
	"net/url"
	"os"
	"path/filepath"
	"strings"

	"gopkg.in/yaml.v3"
)

// DataFileGroup describes a set of non-executable files copied verbatim
// into a single destination directory during install.
type DataFileGroup struct {
	// Destination is the directory the sources are copied into. Relative
	// destinations resolve against the install prefix, absolute ones are
	// used as-is.
	Destination string `yaml:"destination"`
	// Sources are paths to the files, relative to the package root.
	Sources []string `yaml:"sources"`
}

// Manifest is the declarative record describing a single distributable
// unit: its metadata, the scripts installed as executables, and the data
// files copied to specific install locations.
type Manifest struct {
	// Name identifies the distributable unit.
	Name string `yaml:"name"`
	// Version is the semantic-version-like identifier of the release.
	Version string `yaml:"version"`
	// Description is a human-readable summary.
	Description string `yaml:"description,omitempty"`
	// Author and AuthorEmail identify the maintainer.
	Author      string `yaml:"author,omitempty"`
	AuthorEmail string `yaml:"author_email,omitempty"`
	// URL is the project location.
	URL string `yaml:"url,omitempty"`
	// License is the license identifier.
	License string `yaml:"license,omitempty"`
	// Packages lists importable module paths bundled with the unit.
	// It may be empty, matching distributions that ship only scripts.
	Packages []string `yaml:"packages"`
	// Scripts lists files installed into the executable directory.
	Scripts []string `yaml:"scripts"`
	// DataFiles lists destination/sources pairs installed verbatim.
	DataFiles []DataFileGroup `yaml:"data_files"`
}

const (
	// DefaultManifestFilename is the default name of the package manifest
	// read from the package root.
	DefaultManifestFilename = "cumulus-dm.yaml"

	// DefaultFilePermissions is the default file permission for manifests.
	DefaultFilePermissions = 0o600
)

var (
	// errManifestIsNotSet is returned when a nil manifest is provided.
	errManifestIsNotSet = errors.New("manifest is not set")
	// errNameRequired is returned when the package name is missing.
	errNameRequired = errors.New("package name must be provided")
	// errVersionRequired is returned when the package version is missing.
	errVersionRequired = errors.New("package version must be provided")
	// errDestinationRequired is returned when a data_files entry has no destination.
	errDestinationRequired = errors.New("data_files destination must be provided")
	// errSourcesRequired is returned when a data_files entry lists no sources.
	errSourcesRequired = errors.New("data_files sources must be provided")
	// errSourcePathInvalid is returned for source paths that are absolute
	// or escape the package root.
	errSourcePathInvalid = errors.New("source path must be relative and stay inside the package root")
)

// Load reads a manifest from the provided path and validates essential fields.
func Load(path string) (*Manifest, error) {
	if path == "" {
		path = DefaultManifestFilename
	}

	contents, err := os.ReadFile(filepath.Clean(path))
	if err != nil {
		return nil, fmt.Errorf("read manifest: %w", err)
	}

	var m Manifest
	if err := yaml.Unmarshal(contents, &m); err != nil {
		return nil, fmt.Errorf("unmarshal manifest: %w", err)
	}

	if err := Validate(&m); err != nil {
		return nil, err
	}

	return &m, nil
}

// Save writes the manifest to the provided path.
func Save(path string, m *Manifest) error {
	if m == nil {
		return errManifestIsNotSet
	}

	if path == "" {
		path = DefaultManifestFilename
	}

	if err := Validate(m); err != nil {
		return err
	}

	data, err := yaml.Marshal(m)
	if err != nil {
		return fmt.Errorf("marshal manifest: %w", err)
	}

	if err := os.WriteFile(filepath.Clean(path), data, DefaultFilePermissions); err != nil {
		return fmt.Errorf("write manifest: %w", err)
	}

	return nil
}

// Validate checks the provided manifest for required fields and formatting,
// and rejects source paths that would resolve outside the package root.
// Source file existence is a packaging-time concern and is checked by the
// builder, not here.
func Validate(m *Manifest) error {
	if m == nil {
		return errManifestIsNotSet
	}

	if m.Name == "" {
		return errNameRequired
	}

	if m.Version == "" {
		return errVersionRequired
	}

	for _, script := range m.Scripts {
		if !IsValidSourcePath(script) {
			return fmt.Errorf("%s: %w", script, errSourcePathInvalid)
		}
	}

	for _, group := range m.DataFiles {
		if group.Destination == "" {
			return errDestinationRequired
		}

		if len(group.Sources) == 0 {
			return fmt.Errorf("destination %s: %w", group.Destination, errSourcesRequired)
		}

		for _, source := range group.Sources {
			if !IsValidSourcePath(source) {
				return fmt.Errorf("%s: %w", source, errSourcePathInvalid)
			}
		}
	}

	if m.URL == "" {
		return nil
	}

	if _, err := url.ParseRequestURI(m.URL); err != nil {
		return fmt.Errorf("invalid project URL: %w", err)
	}

	return nil
}

// IsValidSourcePath reports whether a declared path is relative and
// resolves inside the package root. Absolute paths and paths climbing
// out through ".." would let a package stage or place files outside
// the tree being built.
func IsValidSourcePath(path string) bool {
	if path == "" || filepath.IsAbs(path) {
		return false
	}

	clean := filepath.Clean(path)

	return clean != ".." && !strings.HasPrefix(clean, ".."+string(filepath.Separator))
}

// SourceFiles returns every file the manifest declares, scripts first,
// then data sources in declaration order. Duplicates are removed while
// preserving the first occurrence.
func (m *Manifest) SourceFiles() []string {
	seen := make(map[string]struct{}, len(m.Scripts))
	result := make([]string, 0, len(m.Scripts))

	appendUnique := func(path string) {
		if _, found := seen[path]; found {
			return
		}

		seen[path] = struct{}{}
		result = append(result, path)
	}

	for _, script := range m.Scripts {
		appendUnique(script)
	}

	for _, group := range m.DataFiles {
		for _, source := range group.Sources {
			appendUnique(source)
		}
	}

	return result
}
