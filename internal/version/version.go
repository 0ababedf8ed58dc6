// Package version carries build metadata for the planner binaries.
package version

import "fmt"

// Overridden with -ldflags "-X github.com/GoCodeAlone/planner/internal/version.Version=...".
var (
	Version   = "dev"
	Commit    = "unknown"
	BuildDate = "unknown"
)

// String formats the build metadata for banners and version commands.
func String() string {
	return fmt.Sprintf("%s (commit %s, built %s)", Version, Commit, BuildDate)
}
