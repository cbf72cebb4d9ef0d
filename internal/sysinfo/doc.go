// Package sysinfo detects the host and user running the tool so installs
// can be attributed in the installed-package record.
package sysinfo
