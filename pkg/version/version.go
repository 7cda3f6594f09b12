// Package version carries the firmware version stamped into the binary at
// build time via -ldflags.
package version

import (
	"fmt"
	"runtime"

	goversion "github.com/hashicorp/go-version"
)

// Stamped by the build:
//
//	-X github.com/autopeer-io/bootguard/pkg/version.gitVersion=v1.4.0
var (
	gitVersion = "v0.0.0-dev"
	gitCommit  = "unknown"
	buildDate  = "unknown"
)

// Info holds the build-time version facts.
type Info struct {
	GitVersion string `json:"gitVersion"`
	GitCommit  string `json:"gitCommit"`
	BuildDate  string `json:"buildDate"`
	GoVersion  string `json:"goVersion"`
	Platform   string `json:"platform"`
}

// Get returns the version information for the running binary.
func Get() Info {
	return Info{
		GitVersion: gitVersion,
		GitCommit:  gitCommit,
		BuildDate:  buildDate,
		GoVersion:  runtime.Version(),
		Platform:   fmt.Sprintf("%s/%s", runtime.GOOS, runtime.GOARCH),
	}
}

// String returns the human-readable version.
func (i Info) String() string {
	return i.GitVersion
}

// Semver parses the stamped version. Dev builds may not parse; callers treat
// that as "unversioned" rather than an error worth failing on.
func (i Info) Semver() (*goversion.Version, error) {
	return goversion.NewVersion(i.GitVersion)
}
