// Package version carries build metadata stamped in with -ldflags.
package version

import "fmt"

var (
	// Version is the benchctl release
	Version = "dev"
	// GitSHA is the git commit SHA
	GitSHA = "unknown"
	// BuildTime is the build timestamp
	BuildTime = "unknown"
)

// String formats the build metadata for a version banner.
func String() string {
	return fmt.Sprintf("benchctl %s (%s, built %s)", Version, GitSHA, BuildTime)
}
