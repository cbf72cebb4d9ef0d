// Package builder assembles a distributable package from the manifest.
//
// It verifies that every declared source exists, computes checksums,
// writes the release description, and archives the payload as
// <name>_<version>.tar.gz for the installer to consume.
package builder
