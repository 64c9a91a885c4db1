// Package version holds build metadata injected at link time via
// -ldflags "-X github.com/jackzampolin/quill/version.GitRelease=...".
package version

import "runtime"

var (
	GitRelease    = "dev"
	GitCommit     = "unknown"
	GitCommitDate = "unknown"
	GoInfo        = runtime.Version()
)
