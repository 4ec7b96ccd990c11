// Package version reports the build identity of the strata binary.
package version

import "fmt"

// Set at build time via -ldflags "-X .../internal/version.Version=...".
var (
	Version   = "0.1.0-dev"
	Commit    = "unknown"
	BuildTime = "unknown"
)

// String renders the full version line shown by "strata --version".
func String() string {
	return fmt.Sprintf("%s (commit: %s, built: %s)", Version, shortCommit(), BuildTime)
}

func shortCommit() string {
	if len(Commit) > 7 {
		return Commit[:7]
	}
	return Commit
}
