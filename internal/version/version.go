package version

import "fmt"

var (
	// Version is the toolchain release, overridable through ldflags.
	// The default matches the cumulus-dm distribution it packages.
	Version = "1.0.0"
	// Commit is the git revision the binary was built from.
	Commit = "unknown"
	// BuildTime is when the binary was built, in UTC.
	BuildTime = "unknown"
)

// Short returns the bare release string.
func Short() string {
	return Version
}

// Full renders the release together with its build provenance.
func Full() string {
	return fmt.Sprintf("cumulus-dm %s (commit %s, built %s)", Version, Commit, BuildTime)
}
