// Package version carries build metadata injected with -ldflags, e.g.
//
//	go build -ldflags "-X github.com/MeKo-Tech/spreadmap/internal/version.Version=1.2.0" ./cmd/spreadmap
package version

import "fmt"

// Build-time variables set by ldflags
var (
	Version   = "dev"
	GitCommit = "unknown"
	BuildDate = "unknown"
)

// Info returns version information
func Info() (string, string, string) {
	return Version, GitCommit, BuildDate
}

// String formats the build metadata for --version and /health.
func String() string {
	if GitCommit == "unknown" && BuildDate == "unknown" {
		return Version
	}
	return fmt.Sprintf("%s (commit %s, built %s)", Version, GitCommit, BuildDate)
}
