// Package version provides build-time version information.
package version

import "strings"

// version is set at build time via -ldflags.
var version = "dev" //nolint:gochecknoglobals // ldflags requires package-level var

// String returns the current version.
func String() string {
	return version
}

// Dashed returns v in the revision form iTach controllers expect:
// a leading "v" is dropped and dots become dashes ("v1.4.2" -> "1-4-2").
func Dashed(v string) string {
	v = strings.TrimPrefix(v, "v")
	return strings.ReplaceAll(v, ".", "-")
}
