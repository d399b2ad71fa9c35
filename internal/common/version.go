package common

import (
	"fmt"
	"runtime/debug"
)

// Version information, set with -ldflags "-X .../internal/common.Version=..."
var (
	Version   = "dev"
	Build     = "unknown"
	GitCommit = "unknown"
)

// VersionInfo is the build identity reported by the CLI and the API
type VersionInfo struct {
	Version   string `json:"version"`
	Build     string `json:"build"`
	GitCommit string `json:"git_commit"`
	GoVersion string `json:"go_version"`
}

// GetVersionInfo returns the linked version. Builds without ldflags fall back
// to the VCS stamp the Go toolchain embeds.
func GetVersionInfo() VersionInfo {
	info := VersionInfo{Version: Version, Build: Build, GitCommit: GitCommit}

	bi, ok := debug.ReadBuildInfo()
	if !ok {
		return info
	}
	info.GoVersion = bi.GoVersion
	if info.Version == "dev" && bi.Main.Version != "" && bi.Main.Version != "(devel)" {
		info.Version = bi.Main.Version
	}
	for _, setting := range bi.Settings {
		switch setting.Key {
		case "vcs.revision":
			if info.GitCommit == "unknown" {
				info.GitCommit = setting.Value
			}
		case "vcs.time":
			if info.Build == "unknown" {
				info.Build = setting.Value
			}
		}
	}
	return info
}

// GetVersion returns the current version string
func GetVersion() string {
	return GetVersionInfo().Version
}

// GetBuild returns the build timestamp
func GetBuild() string {
	return GetVersionInfo().Build
}

// GetFullVersion returns version with build info
func GetFullVersion() string {
	info := GetVersionInfo()
	return fmt.Sprintf("%s (build: %s, commit: %s, %s)", info.Version, info.Build, info.GitCommit, info.GoVersion)
}
