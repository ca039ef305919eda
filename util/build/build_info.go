// Package build carries the version stamped into the binaries.
package build

import (
	"fmt"
	"runtime"
	"strings"
)

// Populated at build time with -ldflags "-X github.com/tiglabs/baudschema/util/build.AppVersion=...".
var (
	AppVersion  = "dev"
	GitRevision = "unknown"
	BuiltTime   = "unknown"
	Type        = "snapshot"
)

// Info build info
type Info struct {
	AppVersion  string
	GitRevision string
	BuiltTime   string
	Type        string // "release" or "snapshot"
	GoVersion   string
	Platform    string
}

func (b Info) String() string {
	var sb strings.Builder
	for _, kv := range [][2]string{
		{"Version", b.AppVersion},
		{"GitRevision", b.GitRevision},
		{"Type", b.Type},
		{"GoVersion", b.GoVersion},
		{"Platform", b.Platform},
		{"BuiltTime", b.BuiltTime},
	} {
		fmt.Fprintf(&sb, "%s: %s\n", kv[0], kv[1])
	}
	return sb.String()
}

// Short is the one line form used in server banners.
func (b Info) Short() string {
	rev := b.GitRevision
	if len(rev) > 8 {
		rev = rev[:8]
	}
	return fmt.Sprintf("%s (%s)", b.AppVersion, rev)
}

// GetInfo return build info
func GetInfo() Info {
	return Info{
		AppVersion:  AppVersion,
		GitRevision: GitRevision,
		BuiltTime:   BuiltTime,
		Type:        Type,
		GoVersion:   runtime.Version(),
		Platform:    runtime.GOOS + "/" + runtime.GOARCH,
	}
}

// IsRelease return build is release verison
func IsRelease() bool {
	return strings.HasPrefix(Type, "release")
}
