package common

import (
	"fmt"
	"runtime"
)

// Set with -ldflags "-X github.com/ternarybob/divtrack/internal/common.Version=..."
var (
	Version   = "dev"
	Build     = "unknown"
	GitCommit = "unknown"
)

func GetVersion() string {
	return Version
}

// GetFullVersion includes build, commit and the Go runtime, for -version and crash reports
func GetFullVersion() string {
	return fmt.Sprintf("%s (build %s, commit %s, %s)", Version, Build, GitCommit, runtime.Version())
}
