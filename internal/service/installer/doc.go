// Package installer places a built package under an install prefix.
//
// It extracts the archive, validates every payload file against checksums
// from the bundled release description, atomically applies scripts and
// data files to their destinations, and records what was installed so the
// checker and uninstaller can operate on it later. A machine-wide lock
// prevents concurrent installs.
package installer
