package installer

import "path/filepath"

// ResolveDestination resolves a data_files destination against the
// install prefix. Relative destinations join the prefix, absolute
// destinations are honored as-is.
func ResolveDestination(prefix, destination string) string {
	if filepath.IsAbs(destination) {
		return filepath.Clean(destination)
	}

	return filepath.Join(prefix, destination)
}
