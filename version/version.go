// Package version holds build metadata injected at link time.
package version

import "runtime"

// Set via -ldflags at build time, e.g.
//
//	go build -ldflags "-X github.com/papermill/papermill/version.GitRelease=v0.2.0"
var (
	GitRelease    = "dev"
	GitCommit     = "unknown"
	GitCommitDate = "unknown"
)

// GoInfo reports the Go toolchain and platform of the build.
var GoInfo = runtime.Version() + " " + runtime.GOOS + "/" + runtime.GOARCH
