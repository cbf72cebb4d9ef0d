// Package manifest defines the package manifest read from the package
// root and provides helpers to load, validate and save it in YAML format.
//
// The Manifest type holds distribution metadata (name, version, author,
// license), the scripts installed as executables, and the data_files
// placement table consumed by the builder and installer.
package manifest
