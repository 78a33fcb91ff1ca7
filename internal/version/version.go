// Package version reports how the buildlens binary was built. Values come
// from -ldflags when set and fall back to the VCS stamp Go embeds in the
// binary.
package version

import (
	"fmt"
	"runtime"
	"runtime/debug"
	"strings"
	"time"
)

// Set at build time with
//
//	-ldflags "-X github.com/conneroisu/buildlens/internal/version.Version=v1.2.0"
var (
	Version   = "dev"
	GitCommit = "unknown"
	BuildTime = "unknown"
)

// Info describes the running binary.
type Info struct {
	Version   string    `json:"version" yaml:"version"`
	GitCommit string    `json:"git_commit" yaml:"git_commit"`
	BuildTime time.Time `json:"build_time" yaml:"build_time"`
	GoVersion string    `json:"go_version" yaml:"go_version"`
	Platform  string    `json:"platform" yaml:"platform"`
	Release   bool      `json:"is_release" yaml:"is_release"`
	Dirty     bool      `json:"is_dirty" yaml:"is_dirty"`
}

// Get collects the build information of the running binary.
func Get() Info {
	return get(Version, GitCommit, BuildTime, readSettings())
}

func get(ver, commit, built string, vcs map[string]string) Info {
	if commit == "" || commit == "unknown" {
		if rev, ok := vcs["vcs.revision"]; ok {
			commit = rev
		} else {
			commit = "unknown"
		}
	}
	if ver == "" || ver == "dev" {
		ver = "dev"
		if mainVersion := vcs["main.version"]; mainVersion != "" && mainVersion != "(devel)" {
			ver = mainVersion
		} else if len(commit) >= 7 && commit != "unknown" {
			ver = "dev-" + commit[:7]
		}
	}

	return Info{
		Version:   ver,
		GitCommit: commit,
		BuildTime: parseBuildTime(built),
		GoVersion: runtime.Version(),
		Platform:  runtime.GOOS + "/" + runtime.GOARCH,
		Release:   ver != "dev" && !strings.HasPrefix(ver, "dev-"),
		Dirty:     vcs["vcs.modified"] == "true",
	}
}

// readSettings flattens the embedded build info into a key/value map.
func readSettings() map[string]string {
	settings := make(map[string]string)
	info, ok := debug.ReadBuildInfo()
	if !ok {
		return settings
	}
	settings["main.version"] = info.Main.Version
	for _, s := range info.Settings {
		settings[s.Key] = s.Value
	}
	return settings
}

// ShortCommit returns the first seven characters of the commit hash.
func (i Info) ShortCommit() string {
	if i.GitCommit == "unknown" || len(i.GitCommit) < 7 {
		return ""
	}
	return i.GitCommit[:7]
}

// String renders the one-line form, e.g. "buildlens v1.2.0 (abc1234)".
func (i Info) String() string {
	var b strings.Builder
	b.WriteString("buildlens ")
	b.WriteString(i.Version)
	if c := i.ShortCommit(); c != "" && !strings.HasSuffix(i.Version, c) {
		fmt.Fprintf(&b, " (%s)", c)
	}
	if i.Dirty {
		b.WriteString(" (dirty)")
	}
	return b.String()
}

// Detailed renders every known field, one per line.
func (i Info) Detailed() string {
	lines := []string{"Version: " + i.Version}
	if i.GitCommit != "unknown" {
		lines = append(lines, "Commit: "+i.GitCommit)
	}
	if !i.BuildTime.IsZero() {
		lines = append(lines, "Built: "+i.BuildTime.Format(time.RFC3339))
	}
	lines = append(lines, "Go: "+i.GoVersion, "Platform: "+i.Platform)
	if i.Release {
		lines = append(lines, "Build type: release")
	} else {
		lines = append(lines, "Build type: development")
	}
	return strings.Join(lines, "\n")
}

var buildTimeLayouts = []string{
	time.RFC3339,
	"2006-01-02T15:04:05",
	"2006-01-02 15:04:05",
}

// parseBuildTime returns the zero time for unknown or malformed values.
func parseBuildTime(s string) time.Time {
	if s == "" || s == "unknown" {
		return time.Time{}
	}
	for _, layout := range buildTimeLayouts {
		if t, err := time.Parse(layout, s); err == nil {
			return t
		}
	}
	return time.Time{}
}
