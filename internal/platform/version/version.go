// Package version exposes build information injected at link time.
package version

import (
	"fmt"
	"log/slog"
	"runtime"
)

// Build information, injected via ldflags:
//
//	-X github.com/pscheid92/streambus/internal/platform/version.Version=v1.2.0
var (
	Version   = "dev"
	Commit    = "unknown"
	BuildTime = "unknown"
)

// Info is served by GET /version.
type Info struct {
	Version   string `json:"version"`
	Commit    string `json:"commit"`
	BuildTime string `json:"build_time"`
	GoVersion string `json:"go_version"`
}

func Get() Info {
	return Info{
		Version:   Version,
		Commit:    Commit,
		BuildTime: BuildTime,
		GoVersion: runtime.Version(),
	}
}

func (i Info) String() string {
	return fmt.Sprintf("streambus %s (%s, built %s, %s)", i.Version, i.Commit, i.BuildTime, i.GoVersion)
}

// LogValue groups the build information under one log attribute.
func (i Info) LogValue() slog.Value {
	return slog.GroupValue(
		slog.String("version", i.Version),
		slog.String("commit", i.Commit),
		slog.String("build_time", i.BuildTime),
		slog.String("go_version", i.GoVersion),
	)
}
