package version

import (
	"fmt"
	"runtime"
	"runtime/debug"
)

// Set via ldflags at build time:
//
//	go build -ldflags "-X github.com/soyeahso/remdev/internal/version.Version=1.0.0
//	  -X github.com/soyeahso/remdev/internal/version.Commit=abc123
//	  -X github.com/soyeahso/remdev/internal/version.Date=2026-01-01"
var (
	Version = "dev"
	Commit  = "unknown"
	Date    = "unknown"
)

func init() {
	if bi, ok := debug.ReadBuildInfo(); ok {
		fromBuildInfo(bi)
	}
}

// fromBuildInfo fills whatever ldflags left at its default from the module
// and VCS stamps, so that go install builds still identify themselves.
func fromBuildInfo(bi *debug.BuildInfo) {
	if Version == "dev" && bi.Main.Version != "" && bi.Main.Version != "(devel)" {
		Version = bi.Main.Version
	}
	for _, s := range bi.Settings {
		switch s.Key {
		case "vcs.revision":
			if Commit == "unknown" {
				Commit = s.Value
			}
		case "vcs.time":
			if Date == "unknown" {
				Date = s.Value
			}
		}
	}
}

// Info returns a formatted version string.
func Info() string {
	return fmt.Sprintf("remdev %s (commit: %s, built: %s, %s/%s)",
		Version, short(Commit), Date, runtime.GOOS, runtime.GOARCH)
}

// UserAgent identifies agent connections to the gateway.
func UserAgent() string {
	return "remdev-agent/" + Version + " (" + runtime.GOOS + "/" + runtime.GOARCH + ")"
}

func short(s string) string {
	if len(s) > 7 {
		return s[:7]
	}
	return s
}
