// Package version carries the toolchain's build provenance.
//
// Version, Commit and BuildTime are baked in with ldflags on release
// builds; the defaults cover a plain `go build`. Short and Full render
// them for CLI output and logs.
package version
