package installer

import (
	"errors"
	"fmt"
	"os"
)

var (
	// ErrMissingFile indicates a declared source file does not exist.
	ErrMissingFile = errors.New("declared file is missing")

	// ErrInvalidDestination indicates a destination directory cannot be
	// created or written.
	ErrInvalidDestination = errors.New("invalid destination")

	// ErrPermissionDenied indicates insufficient privilege to write to
	// the target location.
	ErrPermissionDenied = errors.New("permission denied")

	// ErrChecksumMismatch indicates payload bytes do not match the
	// checksum recorded in the release description.
	ErrChecksumMismatch = errors.New("checksum mismatch")
)

// destinationError classifies a filesystem failure on a destination path
// into the error taxonomy surfaced to the operator.
func destinationError(path string, err error) error {
	if errors.Is(err, os.ErrPermission) {
		return fmt.Errorf("%s: %w", path, ErrPermissionDenied)
	}

	return fmt.Errorf("%s: %s: %w", path, err, ErrInvalidDestination)
}
