// Package version exposes build-time version information.
//
// Variables are set at build time via ldflags:
//
//	go build -ldflags "-X github.com/leasescout/leasescout/internal/version.Version=1.0.0 ..."
package version

import (
	"fmt"
	"runtime"
)

// Build-time variables set via ldflags.
var (
	Version   = "dev"
	Commit    = "unknown"
	BuildDate = "unknown"
)

// Info contains structured version information.
type Info struct {
	Version   string `json:"version"`
	Commit    string `json:"commit"`
	BuildDate string `json:"build_date"`
	GoVersion string `json:"go_version"`
	Platform  string `json:"platform"`
}

// Get returns the current version information.
func Get() Info {
	return Info{
		Version:   Version,
		Commit:    Commit,
		BuildDate: BuildDate,
		GoVersion: runtime.Version(),
		Platform:  fmt.Sprintf("%s/%s", runtime.GOOS, runtime.GOARCH),
	}
}

// String returns a single-line version string.
func String() string {
	return fmt.Sprintf("leasescout %s (%s, built %s)", Version, Commit, BuildDate)
}
