// Package version reports the moe build. Release builds stamp it with
// ldflags:
//
//	go build -ldflags "-X moe/internal/version.Version=1.0.0 -X moe/internal/version.Commit=abc123"
//
// Builds without ldflags fall back to the VCS stamp the go tool embeds.
package version

import "runtime/debug"

var (
	Version   = "0.3.0"
	Commit    = "unknown"
	BuildDate = "unknown"
)

const shortCommitLen = 7

var readBuildInfo = debug.ReadBuildInfo

// build returns the commit and date, preferring ldflags over the VCS stamp.
func build() (commit, date string) {
	commit, date = Commit, BuildDate
	if commit != "unknown" && date != "unknown" {
		return commit, date
	}
	info, ok := readBuildInfo()
	if !ok {
		return commit, date
	}
	for _, s := range info.Settings {
		switch {
		case s.Key == "vcs.revision" && commit == "unknown":
			commit = s.Value
		case s.Key == "vcs.time" && date == "unknown":
			date = s.Value
		}
	}
	return commit, date
}

// Info is the one-line version, with the short commit when known.
func Info() string {
	commit, _ := build()
	if commit == "unknown" || len(commit) <= shortCommitLen {
		return Version
	}
	return Version + " (" + commit[:shortCommitLen] + ")"
}

// Full is the multi-line output of moe version.
func Full() string {
	commit, date := build()
	return "moe version " + Version + "\nCommit: " + commit + "\nBuilt: " + date
}
