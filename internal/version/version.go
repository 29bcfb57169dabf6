// Package version reports how the respogen binary was built.
package version

import (
	"fmt"
	"runtime"
	"runtime/debug"
	"time"
)

// Set at build time with -ldflags "-X github.com/respogen/respogen/internal/version.Version=..."
var (
	Version   = "dev"
	GitCommit = "unknown"
	BuildTime = "unknown"
)

// Info contains version and build information
type Info struct {
	Version   string    `json:"version"`
	GitCommit string    `json:"git_commit"`
	Dirty     bool      `json:"dirty,omitempty"`
	BuildTime time.Time `json:"build_time,omitempty"`
	GoVersion string    `json:"go_version"`
	Platform  string    `json:"platform"`
}

// Get returns the build information, falling back to the VCS stamps the Go
// toolchain embeds when the ldflags were not set.
func Get() Info {
	info := Info{
		Version:   Version,
		GitCommit: GitCommit,
		GoVersion: runtime.Version(),
		Platform:  fmt.Sprintf("%s/%s", runtime.GOOS, runtime.GOARCH),
	}
	if t, err := time.Parse(time.RFC3339, BuildTime); err == nil {
		info.BuildTime = t
	}

	bi, ok := debug.ReadBuildInfo()
	if !ok {
		return info
	}
	if info.Version == "dev" && bi.Main.Version != "" && bi.Main.Version != "(devel)" {
		info.Version = bi.Main.Version
	}
	for _, s := range bi.Settings {
		switch s.Key {
		case "vcs.revision":
			if info.GitCommit == "unknown" {
				info.GitCommit = s.Value
			}
		case "vcs.modified":
			info.Dirty = s.Value == "true"
		case "vcs.time":
			if info.BuildTime.IsZero() {
				if t, err := time.Parse(time.RFC3339, s.Value); err == nil {
					info.BuildTime = t
				}
			}
		}
	}
	return info
}

// Short returns a short version string suitable for display
func Short() string {
	info := Get()
	if info.GitCommit == "unknown" || len(info.GitCommit) < 7 {
		return info.Version
	}
	if info.Version == "dev" {
		return "dev-" + info.GitCommit[:7]
	}
	return fmt.Sprintf("%s (%s)", info.Version, info.GitCommit[:7])
}
