// Package record implements persistence for the installed-package Record.
//
// The FileRepository stores and loads the record as YAML under the install
// prefix and exposes a Repository interface that the installer and checker
// services depend on.
package record
