// Package version reports build information. Values set with -ldflags win;
// otherwise they are read from the module build info embedded by go build.
package version

import (
	"encoding/json"
	"fmt"
	"runtime"
	"runtime/debug"
	"sort"

	"github.com/gosuri/uitable"
)

var (
	gitVersion = ""
	gitCommit  = ""
	buildDate  = ""
)

// sdkModules are the provider SDKs whose versions are reported.
var sdkModules = map[string]string{
	"github.com/openai/openai-go":            "openai",
	"github.com/anthropics/anthropic-sdk-go": "anthropic",
}

type Info struct {
	GitVersion string `json:"gitVersion"`
	GitCommit  string `json:"gitCommit"`
	BuildDate  string `json:"buildDate"`
	GoVersion  string `json:"goVersion"`
	Platform   string `json:"platform"`

	// SDKs maps provider names to the SDK version linked into the binary.
	SDKs map[string]string `json:"sdks,omitempty"`
}

func (info Info) String() string { return info.GitVersion }

func (info Info) JSON() (string, error) {
	s, err := json.MarshalIndent(info, "", "  ")
	if err != nil {
		return "", fmt.Errorf("marshal version info: %w", err)
	}
	return string(s), nil
}

// Text renders the info as an aligned table.
func (info Info) Text() string {
	table := uitable.New()
	table.RightAlign(0)
	table.MaxColWidth = 80
	table.Separator = " "
	table.AddRow("version:", info.GitVersion)
	table.AddRow("commit:", info.GitCommit)
	table.AddRow("built:", info.BuildDate)
	table.AddRow("go:", info.GoVersion)
	table.AddRow("platform:", info.Platform)

	names := make([]string, 0, len(info.SDKs))
	for name := range info.SDKs {
		names = append(names, name)
	}
	sort.Strings(names)
	for _, name := range names {
		table.AddRow(name+" sdk:", info.SDKs[name])
	}
	return table.String()
}

func Get() Info {
	bi, _ := debug.ReadBuildInfo()
	return fromBuildInfo(bi)
}

func fromBuildInfo(bi *debug.BuildInfo) Info {
	info := Info{
		GitVersion: gitVersion,
		GitCommit:  gitCommit,
		BuildDate:  buildDate,
		GoVersion:  runtime.Version(),
		Platform:   runtime.GOOS + "/" + runtime.GOARCH,
	}
	if bi != nil {
		if info.GitVersion == "" && bi.Main.Version != "(devel)" {
			info.GitVersion = bi.Main.Version
		}
		for _, s := range bi.Settings {
			switch s.Key {
			case "vcs.revision":
				info.GitCommit = firstSet(info.GitCommit, s.Value)
			case "vcs.time":
				info.BuildDate = firstSet(info.BuildDate, s.Value)
			}
		}
		for _, dep := range bi.Deps {
			if name, ok := sdkModules[dep.Path]; ok {
				if info.SDKs == nil {
					info.SDKs = make(map[string]string)
				}
				info.SDKs[name] = dep.Version
			}
		}
	}
	info.GitVersion = firstSet(info.GitVersion, "v0.0.0-dev")
	info.GitCommit = firstSet(info.GitCommit, "unknown")
	info.BuildDate = firstSet(info.BuildDate, "unknown")
	return info
}

func firstSet(v, fallback string) string {
	if v != "" {
		return v
	}
	return fallback
}
