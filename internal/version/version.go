package version

import "fmt"

// Version is the bookbuilder release, set at build time:
// go build -ldflags "-X github.com/Calebs97/riemann-book/internal/version.Version=v1.0.0".
var Version = "unknown"

// BuildInfo contains additional build metadata.
var (
	BuildTime = "unknown"
	GitCommit = "unknown"
)

// String formats the version for --version output.
func String() string {
	return fmt.Sprintf("bookbuilder %s (commit %s, built %s)", Version, GitCommit, BuildTime)
}
