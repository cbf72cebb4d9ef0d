package integration

import (
	"context"
	"os"
	"path/filepath"
	"runtime"
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"github.com/foolean/cumulus-dm/internal/repository/record"
	"github.com/foolean/cumulus-dm/internal/service/checker"
	"github.com/foolean/cumulus-dm/internal/service/installer"
)

// install runs the installer against the provided prefix.
func install(t *testing.T, archivePath, prefix string) {
	t.Helper()

	ctx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()

	options := &installer.Options{
		PackagePath: archivePath,
		Prefix:      prefix,
	}

	require.NoError(t, installer.Run(ctx, options))
}

// readTree returns the contents of every regular file under root keyed by relative path.
func readTree(t *testing.T, root string) map[string]string {
	t.Helper()

	tree := make(map[string]string)
	err := filepath.Walk(root, func(path string, info os.FileInfo, err error) error {
		if err != nil || info.IsDir() {
			return err
		}

		data, err := os.ReadFile(path)
		if err != nil {
			return err
		}

		rel, err := filepath.Rel(root, path)
		if err != nil {
			return err
		}

		tree[rel] = string(data)

		return nil
	})
	require.NoError(t, err)

	return tree
}

// TestInstaller_PlacesFiles installs a built package and verifies the
// resulting file layout, permissions and installed record.
func TestInstaller_PlacesFiles(t *testing.T) {
	dir := t.TempDir()
	writeSources(t, dir)

	archivePath := buildPackage(t, dir, testManifest())
	prefix := filepath.Join(t.TempDir(), "opt", "test")

	install(t, archivePath, prefix)

	// Script lands in bin with the execute bit set.
	script := filepath.Join(prefix, "bin", "cumulus-dm")
	info, err := os.Stat(script)
	require.NoError(t, err)

	if runtime.GOOS != "windows" {
		require.NotZero(t, info.Mode().Perm()&0o111)
	}

	// Created directories are traversable.
	for _, path := range []string{
		filepath.Join(prefix, "bin"),
		filepath.Join(prefix, "etc"),
		filepath.Join(prefix, "share", "doc", "cumulus-dm"),
	} {
		info, err = os.Stat(path)
		require.NoError(t, err)
		require.True(t, info.IsDir())

		if runtime.GOOS != "windows" {
			require.Equal(t, os.FileMode(0o700), info.Mode().Perm()&0o700)
		}
	}

	// Data files land at their resolved destinations.
	for _, path := range []string{
		filepath.Join(prefix, "etc", "cumulus-dm.conf"),
		filepath.Join(prefix, "share", "doc", "cumulus-dm", "README.md"),
		filepath.Join(prefix, "share", "doc", "cumulus-dm", "COPYING"),
	} {
		_, err = os.Stat(path)
		require.NoError(t, err)
	}

	// Contents are preserved verbatim.
	data, err := os.ReadFile(filepath.Join(prefix, "etc", "cumulus-dm.conf"))
	require.NoError(t, err)
	require.Equal(t, "# cumulus-dm configuration\n", string(data))
}

// TestInstaller_AbsoluteDestination verifies absolute data_files
// destinations are honored as-is instead of joining the prefix.
func TestInstaller_AbsoluteDestination(t *testing.T) {
	dir := t.TempDir()
	writeSources(t, dir)

	docRoot := filepath.Join(t.TempDir(), "usr", "share", "doc", "cumulus-dm")

	m := testManifest()
	m.DataFiles[1].Destination = docRoot

	archivePath := buildPackage(t, dir, m)
	prefix := filepath.Join(t.TempDir(), "opt", "test")

	install(t, archivePath, prefix)

	for _, name := range []string{"README.md", "COPYING"} {
		_, err := os.Stat(filepath.Join(docRoot, name))
		require.NoError(t, err)
	}

	// Nothing leaked under the prefix for the absolute group.
	_, err := os.Stat(filepath.Join(prefix, docRoot))
	require.ErrorIs(t, err, os.ErrNotExist)
}

// TestInstaller_MetadataRoundtrip ensures metadata declared in the
// manifest is reported unchanged by the installed record.
func TestInstaller_MetadataRoundtrip(t *testing.T) {
	dir := t.TempDir()
	writeSources(t, dir)

	m := testManifest()
	archivePath := buildPackage(t, dir, m)
	prefix := filepath.Join(t.TempDir(), "opt", "test")

	install(t, archivePath, prefix)

	repo := record.NewFileRepository(record.DefaultPath(prefix))
	rec, err := repo.Load(context.Background())
	require.NoError(t, err)

	require.Equal(t, m.Name, rec.Name)
	require.Equal(t, m.Version, rec.Version)
	require.Equal(t, m.Description, rec.Description)
	require.Equal(t, m.Author, rec.Author)
	require.Equal(t, m.AuthorEmail, rec.AuthorEmail)
	require.Equal(t, m.URL, rec.URL)
	require.Equal(t, m.License, rec.License)
	require.NotNil(t, rec.InstalledBy)
	require.False(t, rec.InstalledAt.IsZero())
}

// TestInstaller_Idempotent verifies installing the same package twice
// converges to identical filesystem state.
func TestInstaller_Idempotent(t *testing.T) {
	dir := t.TempDir()
	writeSources(t, dir)

	archivePath := buildPackage(t, dir, testManifest())
	prefix := filepath.Join(t.TempDir(), "opt", "test")

	install(t, archivePath, prefix)
	first := readTree(t, prefix)

	install(t, archivePath, prefix)
	second := readTree(t, prefix)

	// The record carries the install timestamp, so compare everything else.
	delete(first, filepath.Join("share", "cumulus-dm", "installed.yaml"))
	delete(second, filepath.Join("share", "cumulus-dm", "installed.yaml"))
	require.Equal(t, first, second)
}

// TestChecker_DetectsDrift verifies a pristine install passes and a
// modified file is reported.
func TestChecker_DetectsDrift(t *testing.T) {
	dir := t.TempDir()
	writeSources(t, dir)

	archivePath := buildPackage(t, dir, testManifest())
	prefix := filepath.Join(t.TempDir(), "opt", "test")

	install(t, archivePath, prefix)

	ctx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()

	options := &checker.Options{Prefix: prefix}
	require.NoError(t, checker.Run(ctx, options))

	// Modify an installed file and expect drift.
	conf := filepath.Join(prefix, "etc", "cumulus-dm.conf")
	require.NoError(t, os.WriteFile(conf, []byte("tampered\n"), 0o644))

	err := checker.Run(ctx, options)
	require.Error(t, err)
	require.Contains(t, err.Error(), conf)
}

// TestInstaller_InvalidDestination verifies that a destination blocked by
// a regular file surfaces the invalid-destination error.
func TestInstaller_InvalidDestination(t *testing.T) {
	dir := t.TempDir()
	writeSources(t, dir)

	archivePath := buildPackage(t, dir, testManifest())
	prefix := filepath.Join(t.TempDir(), "opt", "test")

	// Occupy the etc destination with a regular file.
	require.NoError(t, os.MkdirAll(prefix, 0o755))
	require.NoError(t, os.WriteFile(filepath.Join(prefix, "etc"), []byte("not a directory"), 0o644))

	ctx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()

	err := installer.Run(ctx, &installer.Options{PackagePath: archivePath, Prefix: prefix})
	require.ErrorIs(t, err, installer.ErrInvalidDestination)
}

// TestUninstall_RemovesFiles verifies uninstall removes every installed
// file along with the record.
func TestUninstall_RemovesFiles(t *testing.T) {
	dir := t.TempDir()
	writeSources(t, dir)

	archivePath := buildPackage(t, dir, testManifest())
	prefix := filepath.Join(t.TempDir(), "opt", "test")

	install(t, archivePath, prefix)

	ctx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()

	require.NoError(t, installer.Uninstall(ctx, &installer.UninstallOptions{Prefix: prefix}))

	for _, path := range []string{
		filepath.Join(prefix, "bin", "cumulus-dm"),
		filepath.Join(prefix, "etc", "cumulus-dm.conf"),
		filepath.Join(prefix, "share", "doc", "cumulus-dm", "README.md"),
		filepath.Join(prefix, "share", "doc", "cumulus-dm", "COPYING"),
		record.DefaultPath(prefix),
	} {
		_, err := os.Stat(path)
		require.ErrorIs(t, err, os.ErrNotExist)
	}

	// Uninstalling again reports the record as missing.
	err := installer.Uninstall(ctx, &installer.UninstallOptions{Prefix: prefix})
	require.ErrorIs(t, err, record.ErrNotFound)
}
