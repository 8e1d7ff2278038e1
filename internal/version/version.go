// Package version provides build-time version information.
package version

// Set via -ldflags at build time.
var (
	Version   = "dev"
	Commit    = "unknown"
	BuildDate = "unknown"
)

// String formats the build information for --version output.
func String() string {
	return Version + " (commit " + Commit + ", built " + BuildDate + ")"
}
