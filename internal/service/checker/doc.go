// Package checker verifies an installed package against its record.
//
// It re-hashes every installed file and reports the ones that are missing
// or whose contents drifted since install.
package checker
