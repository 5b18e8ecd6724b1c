package version

import (
	"fmt"
	"runtime"
	"strings"
)

// Placeholders reported when the build did not stamp metadata.
const (
	Unknown            = "unknown"
	DevelopmentVersion = "dev"
)

// Build metadata, stamped with
//
//	go build -ldflags="-X github.com/nimburion/searchrepo/pkg/version.AppVersion=v1.2.3 \
//	  -X github.com/nimburion/searchrepo/pkg/version.GitCommit=$(git rev-parse --short HEAD)"
var (
	AppVersion = DevelopmentVersion
	GitCommit  = Unknown
	BuildTime  = Unknown
)

// Info is what the version command prints.
type Info struct {
	Service   string `json:"service" yaml:"service"`
	Version   string `json:"version" yaml:"version"`
	Commit    string `json:"commit" yaml:"commit"`
	BuildTime string `json:"build_time" yaml:"build_time"`
	GoVersion string `json:"go_version" yaml:"go_version"`
}

// Current collects the stamped metadata for serviceName, replacing blanks with placeholders.
func Current(serviceName string) Info {
	or := func(v, fallback string) string {
		if v = strings.TrimSpace(v); v != "" {
			return v
		}
		return fallback
	}
	return Info{
		Service:   or(serviceName, Unknown),
		Version:   or(AppVersion, DevelopmentVersion),
		Commit:    or(GitCommit, Unknown),
		BuildTime: or(BuildTime, Unknown),
		GoVersion: runtime.Version(),
	}
}

// Released reports whether the version is a semantic version rather than a dev build.
func (i Info) Released() bool {
	_, err := Parse(i.Version)
	return err == nil
}

func (i Info) String() string {
	return fmt.Sprintf("%s@%s (commit=%s, build_time=%s, go=%s)", i.Service, i.Version, i.Commit, i.BuildTime, i.GoVersion)
}
