// Package version reports what build is running.
//
// Release builds set the variables below with ldflags:
//
//	go build -ldflags "-X github.com/jmylchreest/wallet-engine/internal/version.Version=1.0.0 ..."
//
// Otherwise the VCS stamps embedded by the go tool are used where present.
package version

import (
	"fmt"
	"runtime"
	"runtime/debug"
)

var (
	Version = "0.0.0-dev"
	Commit  = "unknown"
	Date    = "unknown"
	Dirty   = "false"
)

// Info is the build description served by /api/v1/health and the CLI.
type Info struct {
	Version   string `json:"version"`
	Commit    string `json:"commit"`
	Date      string `json:"date"`
	Dirty     bool   `json:"dirty"`
	GoVersion string `json:"go_version"`
	Platform  string `json:"platform"`
}

// Get returns the running build's Info.
func Get() Info {
	info := Info{
		Version:   Version,
		Commit:    Commit,
		Date:      Date,
		Dirty:     Dirty == "true",
		GoVersion: runtime.Version(),
		Platform:  runtime.GOOS + "/" + runtime.GOARCH,
	}
	if bi, ok := debug.ReadBuildInfo(); ok {
		info = withVCS(info, bi.Settings)
	}
	return info
}

// withVCS fills fields the linker left at their defaults from vcs.* settings.
func withVCS(info Info, settings []debug.BuildSetting) Info {
	if info.Commit != "unknown" {
		return info
	}
	for _, s := range settings {
		switch s.Key {
		case "vcs.revision":
			info.Commit = s.Value
			if len(info.Commit) > 12 {
				info.Commit = info.Commit[:12]
			}
		case "vcs.time":
			if info.Date == "unknown" {
				info.Date = s.Value
			}
		case "vcs.modified":
			info.Dirty = info.Dirty || s.Value == "true"
		}
	}
	return info
}

func (i Info) String() string {
	return fmt.Sprintf("%s (%s) built %s", i.Version, i.commitLabel(), i.Date)
}

func (i Info) commitLabel() string {
	if i.Dirty {
		return i.Commit + "-dirty"
	}
	return i.Commit
}

// Short is the version alone, marked when built from a modified tree.
func (i Info) Short() string {
	if i.Dirty {
		return i.Version + "-dirty"
	}
	return i.Version
}

// AppID identifies this build to upstream services such as S3.
func (i Info) AppID() string {
	return "wallet-engine/" + i.Short()
}
