// Package version reports build information for snipsearch binaries.
package version

import (
	"fmt"
	"runtime"
	"runtime/debug"
)

// Values injected with -ldflags "-X github.com/Aman-CERP/snipsearch/pkg/version.Version=v1.2.3".
// Commit and Date fall back to the VCS stamp recorded by the Go toolchain.
var (
	Version = "dev"
	Commit  = "unknown"
	Date    = "unknown"
)

// GoVersion is the toolchain that built the binary.
var GoVersion = runtime.Version()

func init() {
	bi, ok := debug.ReadBuildInfo()
	if !ok {
		return
	}
	applyBuildSettings(bi.Settings)
}

func applyBuildSettings(settings []debug.BuildSetting) {
	for _, s := range settings {
		switch s.Key {
		case "vcs.revision":
			if Commit == "unknown" && s.Value != "" {
				Commit = s.Value
				if len(Commit) > 7 {
					Commit = Commit[:7]
				}
			}
		case "vcs.time":
			if Date == "unknown" && s.Value != "" {
				Date = s.Value
			}
		}
	}
}

// BuildInfo is the JSON shape of `snipsearch version --json`.
type BuildInfo struct {
	Version   string `json:"version"`
	Commit    string `json:"commit"`
	Date      string `json:"date"`
	GoVersion string `json:"go_version"`
	Platform  string `json:"platform"`
}

// GetInfo returns the current build information.
func GetInfo() BuildInfo {
	return BuildInfo{
		Version:   Version,
		Commit:    Commit,
		Date:      Date,
		GoVersion: GoVersion,
		Platform:  runtime.GOOS + "/" + runtime.GOARCH,
	}
}

// String returns "snipsearch <version> (<commit>, <date>, <go>)".
func String() string {
	return fmt.Sprintf("snipsearch %s (%s, %s, %s)", Version, Commit, Date, GoVersion)
}

// Short returns just the version.
func Short() string {
	return Version
}

// UserAgent identifies snipsearch to the hosted index service.
func UserAgent() string {
	return fmt.Sprintf("snipsearch/%s (%s/%s)", Version, runtime.GOOS, runtime.GOARCH)
}
