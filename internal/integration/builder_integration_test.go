package integration

import (
	"context"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"github.com/foolean/cumulus-dm/internal/manifest"
	"github.com/foolean/cumulus-dm/internal/service/builder"
	"github.com/foolean/cumulus-dm/internal/service/installer"
)

// testManifest returns a manifest mirroring the cumulus-dm distribution:
// one script, a config file and two documentation files.
func testManifest() *manifest.Manifest {
	return &manifest.Manifest{
		Name:        "cumulus-dm",
		Version:     "1.0.0",
		Description: `Cumulus "download manager"`,
		Author:      "Bennett Samowich",
		AuthorEmail: "bennett@foolean.org",
		URL:         "https://github.com/foolean/cumulus-dm",
		License:     "GnuGPLv3",
		Scripts:     []string{"cumulus-dm"},
		DataFiles: []manifest.DataFileGroup{
			{Destination: "etc", Sources: []string{"cumulus-dm.conf"}},
			{Destination: "share/doc/cumulus-dm", Sources: []string{"README.md", "COPYING"}},
		},
	}
}

// writeSources creates the payload files the test manifest declares.
func writeSources(t *testing.T, dir string) {
	t.Helper()

	sources := map[string]string{
		"cumulus-dm":      "#!/bin/sh\necho cumulus-dm\n",
		"cumulus-dm.conf": "# cumulus-dm configuration\n",
		"README.md":       "# cumulus-dm\n",
		"COPYING":         "GNU GENERAL PUBLIC LICENSE\n",
	}
	for name, contents := range sources {
		require.NoError(t, os.WriteFile(filepath.Join(dir, name), []byte(contents), 0o644))
	}
}

// buildPackage writes the manifest and sources into dir, runs the builder
// and returns the path of the produced archive.
func buildPackage(t *testing.T, dir string, m *manifest.Manifest) string {
	t.Helper()

	manifestPath := filepath.Join(dir, manifest.DefaultManifestFilename)
	require.NoError(t, manifest.Save(manifestPath, m))

	ctx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()

	options := &builder.Options{
		ManifestPath: manifestPath,
		OutputDir:    dir,
	}

	require.NoError(t, builder.Run(ctx, options))

	return filepath.Join(dir, "cumulus-dm_1.0.0.tar.gz")
}

// TestBuilder_WritesArchive packages the declared files and verifies the archive exists.
func TestBuilder_WritesArchive(t *testing.T) {
	dir := t.TempDir()
	writeSources(t, dir)

	archivePath := buildPackage(t, dir, testManifest())

	info, err := os.Stat(archivePath)
	require.NoError(t, err)
	require.Positive(t, info.Size())
}

// TestBuilder_MissingSource ensures packaging fails deterministically when
// a declared file has been removed from the source tree.
func TestBuilder_MissingSource(t *testing.T) {
	dir := t.TempDir()
	writeSources(t, dir)
	require.NoError(t, os.Remove(filepath.Join(dir, "cumulus-dm.conf")))

	manifestPath := filepath.Join(dir, manifest.DefaultManifestFilename)
	require.NoError(t, manifest.Save(manifestPath, testManifest()))

	ctx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()

	options := &builder.Options{
		ManifestPath: manifestPath,
		OutputDir:    dir,
	}

	err := builder.Run(ctx, options)
	require.ErrorIs(t, err, installer.ErrMissingFile)
}

// TestBuilder_Rebuild verifies a second build overwrites the previous archive.
func TestBuilder_Rebuild(t *testing.T) {
	dir := t.TempDir()
	writeSources(t, dir)

	first := buildPackage(t, dir, testManifest())
	second := buildPackage(t, dir, testManifest())
	require.Equal(t, first, second)

	_, err := os.Stat(second)
	require.NoError(t, err)
}
