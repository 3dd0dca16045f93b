// pantry/version/version.go
package version

import (
	"net/http"
	"runtime"
	"runtime/debug"

	"github.com/dalemusser/inquiry/httputil"
)

// Set at build time:
//
//	go build -ldflags "-X github.com/dalemusser/inquiry/pantry/version.Version=1.0.0"
var (
	Version   = "dev"
	Commit    = ""
	BuildTime = ""
)

// Info is the JSON body of the version endpoint.
type Info struct {
	Version   string `json:"version"`
	Commit    string `json:"commit"`
	BuildTime string `json:"build_time"`
	GoVersion string `json:"go_version"`
}

// Get returns the build info. Commit and BuildTime fall back to the VCS
// stamp the Go toolchain embeds, then to "unknown".
func Get() Info {
	info := Info{
		Version:   Version,
		Commit:    Commit,
		BuildTime: BuildTime,
		GoVersion: runtime.Version(),
	}
	if bi, ok := debug.ReadBuildInfo(); ok {
		for _, s := range bi.Settings {
			switch {
			case s.Key == "vcs.revision" && info.Commit == "":
				info.Commit = s.Value
			case s.Key == "vcs.time" && info.BuildTime == "":
				info.BuildTime = s.Value
			}
		}
	}
	if info.Commit == "" {
		info.Commit = "unknown"
	}
	if info.BuildTime == "" {
		info.BuildTime = "unknown"
	}
	return info
}

// Handler responds with Get() as JSON.
func Handler() http.Handler {
	info := Get()
	return http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		httputil.WriteJSON(w, http.StatusOK, info)
	})
}
