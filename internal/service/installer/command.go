package installer

import (
	"bytes"
	"context"
	"encoding/base64"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"sort"
	"time"

	goupdate "github.com/doitdistributed/go-update"
	"github.com/mholt/archiver"
	"gopkg.in/yaml.v3"

	"github.com/foolean/cumulus-dm/internal/logger"
	"github.com/foolean/cumulus-dm/internal/manifest"
	"github.com/foolean/cumulus-dm/internal/repository/record"
	"github.com/foolean/cumulus-dm/internal/sysinfo"
)

var (
	errInstallerAlreadyRunning = errors.New("another install is already running")
	errPackageRequired         = errors.New("package archive path must be provided")
	errReleaseNotFound         = errors.New("release description not found in package")
	errEmptyRelease            = errors.New("release description is empty")
	errNoChecksum              = errors.New("checksum missing for file")
	errUnsafePayloadPath       = errors.New("payload path escapes the package root")
)

// DefaultPrefix is the install prefix used when none is provided.
const DefaultPrefix = "/usr/local"

// Options are inputs accepted by the installer entry point.
type Options struct {
	// PackagePath is the path to the package archive produced by build.
	PackagePath string
	// Prefix is the install prefix relative destinations resolve against.
	Prefix string
}

// runner holds the mutable state and helpers for a single install execution.
// It is intentionally unexported—call Run(ctx, Options) from callers.
type runner struct {
	packagePath        string            // Package archive being installed.
	prefix             string            // Install prefix for relative destinations.
	release            *Release          // Release description read from the archive.
	temporaryDirectory string            // Where the archive is extracted before apply.
	stagingRoot        string            // Payload directory inside the extracted archive.
	installed          map[string]string // Final path -> base64 checksum, for the record.
}

// Run executes the installer lifecycle and is the public entry point for the CLI.
func Run(ctx context.Context, opts *Options) error {
	// Set context with logger name for tracking.
	ctx = logger.WithName(ctx, "install")

	r, err := newRunner(ctx, opts)
	if err != nil {
		return err
	}

	defer r.cleanup(ctx)

	if err = r.Run(ctx); err != nil {
		logger.ErrorKV(ctx, "Install failed", "error", err)
		return err
	}

	logger.InfoKV(ctx, "Install completed",
		"package", r.release.Name, "version", r.release.Version, "prefix", r.prefix)

	return nil
}

// newRunner prepares the run and writes a lock to avoid concurrent installs.
func newRunner(ctx context.Context, opts *Options) (*runner, error) {
	if opts.PackagePath == "" {
		return nil, errPackageRequired
	}

	prefix := opts.Prefix
	if prefix == "" {
		prefix = DefaultPrefix
	}

	r := &runner{
		packagePath: opts.PackagePath,
		prefix:      filepath.Clean(prefix),
		installed:   make(map[string]string, defaultMapCapacity),
	}

	if IsInstallerRunningNow(ctx) {
		return r, errInstallerAlreadyRunning
	}

	if err := acquireLock(); err != nil {
		return r, fmt.Errorf("acquire install lock: %w", err)
	}

	return r, nil
}

// Run executes the workflow for this runner instance:
// 1) Extract the package archive to a temporary directory.
// 2) Read the bundled release description.
// 3) Verify every payload checksum before touching the filesystem.
// 4) Place scripts into the executable directory.
// 5) Place data files into their destinations.
// 6) Write the installed-package record.
func (r *runner) Run(ctx context.Context) error {
	logger.InfoKV(ctx, "Extracting package", "package", r.packagePath)

	if err := r.extractPackage(); err != nil {
		return fmt.Errorf("extract package: %w", err)
	}

	if err := r.readRelease(); err != nil {
		return fmt.Errorf("read release description: %w", err)
	}

	logger.Info(ctx, "Verifying payload checksums")

	if err := r.verifyPayload(); err != nil {
		return fmt.Errorf("verify payload: %w", err)
	}

	logger.InfoKV(ctx, "Installing scripts", "prefix", r.prefix)

	if err := r.installScripts(ctx); err != nil {
		return fmt.Errorf("install scripts: %w", err)
	}

	logger.InfoKV(ctx, "Installing data files", "prefix", r.prefix)

	if err := r.installDataFiles(ctx); err != nil {
		return fmt.Errorf("install data files: %w", err)
	}

	if err := r.writeRecord(ctx); err != nil {
		return fmt.Errorf("write installed record: %w", err)
	}

	r.printSummary(ctx)

	return nil
}

// extractPackage unpacks the archive into a fresh temporary directory.
func (r *runner) extractPackage() error {
	temporaryDirectory, err := os.MkdirTemp("", "cumulus-dm-install-")
	if err != nil {
		return err
	}

	r.temporaryDirectory = temporaryDirectory

	tgz := archiver.NewTarGz()

	return tgz.Unarchive(r.packagePath, temporaryDirectory)
}

// readRelease locates the payload directory inside the extracted archive
// and parses the bundled release description.
func (r *runner) readRelease() error {
	entries, err := os.ReadDir(r.temporaryDirectory)
	if err != nil {
		return err
	}

	for _, entry := range entries {
		if !entry.IsDir() {
			continue
		}

		candidate := filepath.Join(r.temporaryDirectory, entry.Name(), ReleaseFilename)
		if _, err = os.Stat(candidate); err == nil {
			r.stagingRoot = filepath.Join(r.temporaryDirectory, entry.Name())
			break
		}
	}

	if r.stagingRoot == "" {
		return errReleaseNotFound
	}

	data, err := os.ReadFile(filepath.Join(r.stagingRoot, ReleaseFilename))
	if err != nil {
		return err
	}

	var release Release
	if err = yaml.Unmarshal(data, &release); err != nil {
		return err
	}

	if release.Name == "" || len(release.Files) == 0 {
		return errEmptyRelease
	}

	r.release = &release

	return nil
}

// verifyPayload compares every staged file against the release checksums
// so a corrupt or truncated archive never reaches the filesystem.
func (r *runner) verifyPayload() error {
	names := make([]string, 0, len(r.release.Files))
	for name := range r.release.Files {
		names = append(names, name)
	}

	sort.Strings(names)

	for _, name := range names {
		// A crafted archive must not reach past its own payload directory.
		if !manifest.IsValidSourcePath(name) {
			return fmt.Errorf("%s: %w", name, errUnsafePayloadPath)
		}

		expected, err := base64.StdEncoding.DecodeString(r.release.Files[name])
		if err != nil {
			return fmt.Errorf("checksum for %s: %w", name, err)
		}

		staged := filepath.Join(r.stagingRoot, name)
		if _, err = os.Stat(staged); errors.Is(err, os.ErrNotExist) {
			return fmt.Errorf("%s: %w", name, ErrMissingFile)
		} else if err != nil {
			return fmt.Errorf("stat %s: %w", name, err)
		}

		actual, err := GetFileChecksum(staged)
		if err != nil {
			return err
		}

		if !bytes.Equal(expected, actual) {
			return fmt.Errorf("%s: %w", name, ErrChecksumMismatch)
		}
	}

	return nil
}

// installScripts places every declared script into the executable
// directory under the prefix, preserving execute permissions.
func (r *runner) installScripts(ctx context.Context) error {
	if len(r.release.Scripts) == 0 {
		return nil
	}

	binDirectory := filepath.Join(r.prefix, BinDirectoryName)
	if err := os.MkdirAll(binDirectory, DirectoryMode); err != nil {
		return destinationError(binDirectory, err)
	}

	for _, script := range r.release.Scripts {
		target := filepath.Join(binDirectory, filepath.Base(script))
		if err := r.applyFile(ctx, script, target, ScriptFileMode); err != nil {
			return err
		}
	}

	return nil
}

// installDataFiles copies every data_files group into its destination
// directory, creating the directory if necessary.
func (r *runner) installDataFiles(ctx context.Context) error {
	for _, group := range r.release.DataFiles {
		destination := ResolveDestination(r.prefix, group.Destination)
		if err := os.MkdirAll(destination, DirectoryMode); err != nil {
			return destinationError(destination, err)
		}

		for _, source := range group.Sources {
			target := filepath.Join(destination, filepath.Base(source))
			if err := r.applyFile(ctx, source, target, DataFileMode); err != nil {
				return err
			}
		}
	}

	return nil
}

// applyFile writes one payload file to its final path using go-update,
// which validates the checksum and replaces the target atomically.
func (r *runner) applyFile(ctx context.Context, name, target string, mode os.FileMode) error {
	logger.DebugKV(ctx, "Installing file", "file", name, "target", target)

	checksumBase64, ok := r.release.Files[name]
	if !ok {
		return fmt.Errorf("checksum for %s: %w", name, errNoChecksum)
	}

	checksum, err := base64.StdEncoding.DecodeString(checksumBase64)
	if err != nil {
		return err
	}

	data, err := os.ReadFile(filepath.Join(r.stagingRoot, name))
	if err != nil {
		return err
	}

	if _, err = os.Stat(target); err != nil && errors.Is(err, os.ErrNotExist) {
		var placeholder *os.File

		if placeholder, err = os.Create(target); err != nil {
			return destinationError(target, err)
		}

		_ = placeholder.Close()
	}

	options := goupdate.Options{
		TargetPath: target,
		TargetMode: mode,
		Checksum:   checksum,
		Hash:       DefaultChecksumFunction,
	}

	if err = goupdate.Apply(bytes.NewReader(data), options); err != nil {
		if errors.Is(err, os.ErrPermission) {
			return fmt.Errorf("%s: %w", target, ErrPermissionDenied)
		}

		return fmt.Errorf("apply %s: %w", target, err)
	}

	oldTarget := target + ".old"
	if _, err = os.Stat(oldTarget); err == nil {
		_ = os.Remove(oldTarget)
	}

	r.installed[target] = checksumBase64

	return nil
}

// writeRecord persists the installed-package record under the prefix.
func (r *runner) writeRecord(ctx context.Context) error {
	actor, err := sysinfo.DetectActor()
	if err != nil {
		return err
	}

	repo := record.NewFileRepository(record.DefaultPath(r.prefix))

	return repo.Save(ctx, &record.Record{
		Name:        r.release.Name,
		Version:     r.release.Version,
		Description: r.release.Description,
		Author:      r.release.Author,
		AuthorEmail: r.release.AuthorEmail,
		URL:         r.release.URL,
		License:     r.release.License,
		Files:       r.installed,
		InstalledAt: time.Now().UTC(),
		InstalledBy: actor,
	})
}

// printSummary logs the final location of every installed file.
func (r *runner) printSummary(ctx context.Context) {
	files := make([]string, 0, len(r.installed))
	for target := range r.installed {
		files = append(files, target)
	}

	sort.Strings(files)

	for _, target := range files {
		logger.InfoKV(ctx, "Installed", "path", target)
	}
}

// cleanup removes temporary artifacts and the install lock.
func (r *runner) cleanup(ctx context.Context) {
	releaseLock()

	if r.temporaryDirectory == "" {
		return
	}

	if err := os.RemoveAll(r.temporaryDirectory); err != nil {
		logger.Warnf(ctx, "Unable to remove temporary directory: %v", err)
	}
}
