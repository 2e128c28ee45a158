// Package version exposes build information injected at link time.
package version

import (
	"fmt"
	"runtime"
)

//nolint:gochecknoglobals // These values are overridden with -ldflags during the build.
var (
	// Version is the semantic version of the build.
	Version = "0.1.0"
	// Commit is the VCS revision the binary was built from.
	Commit = "none"
	// BuildTime is the moment the binary was built.
	BuildTime = "unknown"
)

// Short returns the bare version string.
func Short() string {
	return Version
}

// Full returns the version with the commit, build time and Go runtime.
func Full() string {
	return format(Version, Commit, BuildTime, runtime.Version())
}

func format(version, commit, buildTime, goVersion string) string {
	return fmt.Sprintf("media-grabber %s (commit %s, built %s, %s)", version, commit, buildTime, goVersion)
}
