package installer

import (
	"context"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"sort"

	"github.com/foolean/cumulus-dm/internal/logger"
	"github.com/foolean/cumulus-dm/internal/repository/record"
)

// UninstallOptions are inputs accepted by the uninstaller entry point.
type UninstallOptions struct {
	// Prefix is the install prefix the package was installed under.
	Prefix string
}

// Uninstall removes every file named by the installed-package record and
// then prunes the record itself. Files already missing are logged and
// skipped so a partially removed install can still be cleaned up.
func Uninstall(ctx context.Context, opts *UninstallOptions) error {
	ctx = logger.WithName(ctx, "uninstall")

	prefix := opts.Prefix
	if prefix == "" {
		prefix = DefaultPrefix
	}

	repo := record.NewFileRepository(record.DefaultPath(prefix))

	rec, err := repo.Load(ctx)
	if err != nil {
		return fmt.Errorf("load installed record: %w", err)
	}

	files := make([]string, 0, len(rec.Files))
	for path := range rec.Files {
		files = append(files, path)
	}

	sort.Strings(files)

	for _, path := range files {
		if err = os.Remove(path); err != nil {
			if errors.Is(err, os.ErrNotExist) {
				logger.WarnKV(ctx, "Installed file already missing", "path", path)
				continue
			}

			if errors.Is(err, os.ErrPermission) {
				return fmt.Errorf("%s: %w", path, ErrPermissionDenied)
			}

			return fmt.Errorf("remove %s: %w", path, err)
		}

		logger.InfoKV(ctx, "Removed", "path", path)
	}

	if err = repo.Remove(ctx); err != nil {
		return err
	}

	// Prune the record directory when empty; other packages may share the prefix.
	_ = os.Remove(filepath.Dir(record.DefaultPath(prefix)))

	logger.InfoKV(ctx, "Uninstall completed", "package", rec.Name, "version", rec.Version)

	return nil
}
