package checker

import (
	"bytes"
	"context"
	"encoding/base64"
	"errors"
	"fmt"
	"os"
	"sort"
	"strings"

	"github.com/foolean/cumulus-dm/internal/logger"
	"github.com/foolean/cumulus-dm/internal/repository/record"
	"github.com/foolean/cumulus-dm/internal/service/installer"
)

// Options controls which installed package the checker verifies.
type Options struct {
	// Prefix is the install prefix the package was installed under.
	Prefix string
}

// errFilesDrifted indicates at least one installed file is missing or modified.
var errFilesDrifted = errors.New("installed files drifted from the record")

// Run re-hashes every file named by the installed-package record and
// reports drift. It returns an error when any file is missing or its
// contents no longer match the recorded checksum.
func Run(ctx context.Context, opts *Options) error {
	// Set context with logger name for tracking.
	ctx = logger.WithName(ctx, "verify")

	prefix := opts.Prefix
	if prefix == "" {
		prefix = installer.DefaultPrefix
	}

	repo := record.NewFileRepository(record.DefaultPath(prefix))

	rec, err := repo.Load(ctx)
	if err != nil {
		return fmt.Errorf("load installed record: %w", err)
	}

	logger.InfoKV(ctx, "Verifying installed files",
		"package", rec.Name, "version", rec.Version, "prefix", prefix)

	drifted, err := findDriftedFiles(rec)
	if err != nil {
		return err
	}

	if len(drifted) > 0 {
		return fmt.Errorf("%s: %w", strings.Join(drifted, ", "), errFilesDrifted)
	}

	logger.InfoKV(ctx, "All installed files verified", "files", len(rec.Files))

	return nil
}

// findDriftedFiles returns the sorted list of files whose on-disk state
// no longer matches the record.
func findDriftedFiles(rec *record.Record) ([]string, error) {
	files := make([]string, 0, len(rec.Files))
	for path := range rec.Files {
		files = append(files, path)
	}

	sort.Strings(files)

	var drifted []string

	for _, path := range files {
		expected, err := base64.StdEncoding.DecodeString(rec.Files[path])
		if err != nil {
			return nil, fmt.Errorf("checksum for %s: %w", path, err)
		}

		if _, err = os.Stat(path); errors.Is(err, os.ErrNotExist) {
			drifted = append(drifted, path)
			continue
		} else if err != nil {
			return nil, fmt.Errorf("stat %s: %w", path, err)
		}

		actual, err := installer.GetFileChecksum(path)
		if err != nil {
			return nil, err
		}

		if !bytes.Equal(expected, actual) {
			drifted = append(drifted, path)
		}
	}

	return drifted, nil
}
