package builder

import (
	"context"
	"encoding/base64"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"sort"
	"strings"

	"github.com/mholt/archiver"
	"gopkg.in/yaml.v3"

	"github.com/foolean/cumulus-dm/internal/logger"
	"github.com/foolean/cumulus-dm/internal/manifest"
	"github.com/foolean/cumulus-dm/internal/service/installer"
)

// Options contains inputs for the builder entry point.
type Options struct {
	// ManifestPath is an optional path to the package manifest
	// (defaults to cumulus-dm.yaml in the working directory).
	ManifestPath string
	// OutputDir is where the package archive is written (defaults to ".").
	OutputDir string
}

// builder assembles a distributable package from the manifest.
// It is intentionally unexported—callers should use Run, which
// encapsulates setup and validation.
type builder struct {
	// m is the validated package manifest.
	m *manifest.Manifest
	// release is the release description being filled in.
	release *installer.Release
	// packageRoot is the directory declared sources resolve against.
	packageRoot string
	// outputDir is where the archive lands.
	outputDir string
	// stagingDir is the temporary directory the payload is assembled in.
	stagingDir string
}

// Run executes the packaging workflow.
func Run(ctx context.Context, opts *Options) error {
	// Set context with logger name for tracking.
	ctx = logger.WithName(ctx, "build")

	b, err := newBuilder(opts)
	if err != nil {
		return fmt.Errorf("initialize builder: %w", err)
	}

	defer b.cleanup(ctx)

	if err = b.Run(ctx); err != nil {
		return fmt.Errorf("build failed: %w", err)
	}

	logger.Info(ctx, "Build completed successfully")

	return nil
}

// newBuilder loads and validates the manifest and prepares the release description.
func newBuilder(opts *Options) (*builder, error) {
	manifestPath := opts.ManifestPath
	if manifestPath == "" {
		manifestPath = manifest.DefaultManifestFilename
	}

	m, err := manifest.Load(manifestPath)
	if err != nil {
		return nil, err
	}

	outputDir := opts.OutputDir
	if outputDir == "" {
		outputDir = "."
	}

	return &builder{
		m:           m,
		release:     installer.NewRelease(m),
		packageRoot: filepath.Dir(filepath.Clean(manifestPath)),
		outputDir:   outputDir,
	}, nil
}

// Run assembles the package:
// 1) Every declared source must exist.
// 2) Checksums are computed into the release description.
// 3) Payload and release description are staged.
// 4) The staged tree is archived.
func (b *builder) Run(ctx context.Context) error {
	logger.Info(ctx, "Checking declared sources")

	if err := b.checkSources(); err != nil {
		return err
	}

	logger.Info(ctx, "Computing payload checksums")

	if err := b.fillChecksums(); err != nil {
		return err
	}

	logger.Info(ctx, "Staging payload")

	if err := b.stagePayload(); err != nil {
		return err
	}

	logger.InfoKV(ctx, "Writing package archive", "path", b.archivePath())

	if err := b.archivePayload(); err != nil {
		return err
	}

	b.printNextSteps(ctx)

	return nil
}

// checkSources fails with a missing-file error on the first declared
// source that does not exist at packaging time.
func (b *builder) checkSources() error {
	for _, name := range b.m.SourceFiles() {
		if _, err := os.Stat(b.sourcePath(name)); errors.Is(err, os.ErrNotExist) {
			return fmt.Errorf("%s: %w", name, installer.ErrMissingFile)
		} else if err != nil {
			return fmt.Errorf("stat %s: %w", name, err)
		}
	}

	return nil
}

// fillChecksums records a checksum for every declared source.
func (b *builder) fillChecksums() error {
	for _, name := range b.m.SourceFiles() {
		checksum, err := installer.GetFileChecksum(b.sourcePath(name))
		if err != nil {
			return err
		}

		b.release.Files[name] = base64.StdEncoding.EncodeToString(checksum)
	}

	return nil
}

// stagePayload copies the payload into a versioned directory together
// with the release description, preserving relative source paths.
func (b *builder) stagePayload() error {
	stagingDir, err := os.MkdirTemp("", "cumulus-dm-build-")
	if err != nil {
		return err
	}

	b.stagingDir = stagingDir

	payloadDir := filepath.Join(stagingDir, b.release.PayloadDirectoryName())
	if err = os.MkdirAll(payloadDir, installer.DirectoryMode); err != nil {
		return fmt.Errorf("create payload directory: %w", err)
	}

	for _, name := range b.m.SourceFiles() {
		if err = b.stageFile(name, payloadDir); err != nil {
			return err
		}
	}

	contents, err := yaml.Marshal(b.release)
	if err != nil {
		return fmt.Errorf("marshal release description: %w", err)
	}

	target := filepath.Join(payloadDir, installer.ReleaseFilename)

	return os.WriteFile(target, contents, installer.DataFileMode)
}

// stageFile copies one source into the payload directory, keeping its
// relative path and permissions.
func (b *builder) stageFile(name, payloadDir string) error {
	source := b.sourcePath(name)

	info, err := os.Stat(source)
	if err != nil {
		return fmt.Errorf("stat %s: %w", name, err)
	}

	data, err := os.ReadFile(source)
	if err != nil {
		return fmt.Errorf("read %s: %w", name, err)
	}

	target := filepath.Join(payloadDir, name)
	if err = os.MkdirAll(filepath.Dir(target), installer.DirectoryMode); err != nil {
		return fmt.Errorf("stage %s: %w", name, err)
	}

	return os.WriteFile(target, data, info.Mode().Perm())
}

// archivePayload compresses the staged payload directory into the output archive.
func (b *builder) archivePayload() error {
	if err := os.MkdirAll(b.outputDir, installer.DirectoryMode); err != nil {
		return fmt.Errorf("create output directory: %w", err)
	}

	out := b.archivePath()

	// Archiver refuses to overwrite, so drop a previous build first.
	if _, err := os.Stat(out); err == nil {
		if err = os.Remove(out); err != nil {
			return fmt.Errorf("remove previous archive: %w", err)
		}
	}

	tgz := archiver.NewTarGz()

	return tgz.Archive([]string{filepath.Join(b.stagingDir, b.release.PayloadDirectoryName())}, out)
}

// archivePath returns the final archive location.
func (b *builder) archivePath() string {
	return filepath.Join(b.outputDir, b.release.ArchiveFilename())
}

// sourcePath resolves a declared source against the package root.
func (b *builder) sourcePath(name string) string {
	return filepath.Join(b.packageRoot, name)
}

// printNextSteps logs human-readable guidance for the created archive.
func (b *builder) printNextSteps(ctx context.Context) {
	files := b.m.SourceFiles()
	sort.Strings(files)

	var sb strings.Builder

	sb.WriteString("Packaged the following files into ")
	sb.WriteString(b.archivePath())
	sb.WriteString(":\n")

	for i, name := range files {
		if i > 0 {
			sb.WriteString(",\n")
		}

		sb.WriteString(name)
	}

	sb.WriteString("\n\nInstall with: cumulus-dm install ")
	sb.WriteString(b.archivePath())
	sb.WriteString(" --prefix ")
	sb.WriteString(installer.DefaultPrefix)

	logger.Info(ctx, sb.String())
}

// cleanup removes the staging directory.
func (b *builder) cleanup(ctx context.Context) {
	if b == nil || b.stagingDir == "" {
		return
	}

	if err := os.RemoveAll(b.stagingDir); err != nil {
		logger.Warnf(ctx, "Unable to remove staging directory: %v", err)
	}
}
