package version

import (
	"runtime/debug"
	"testing"

	"github.com/stretchr/testify/assert"
)

func withBuildInfo(t *testing.T, version, commit, date string, settings ...debug.BuildSetting) {
	t.Helper()
	v, c, d, r := Version, Commit, BuildDate, readBuildInfo
	t.Cleanup(func() { Version, Commit, BuildDate, readBuildInfo = v, c, d, r })
	Version, Commit, BuildDate = version, commit, date
	readBuildInfo = func() (*debug.BuildInfo, bool) {
		return &debug.BuildInfo{Settings: settings}, true
	}
}

func TestInfo(t *testing.T) {
	tests := []struct {
		commit string
		want   string
	}{
		{"unknown", "0.9.0"},
		{"abc", "0.9.0"},
		{"1234567", "0.9.0"},
		{"12345678", "0.9.0 (1234567)"},
		{"9f8e7d6c5b4a", "0.9.0 (9f8e7d6)"},
	}
	for _, tt := range tests {
		t.Run(tt.commit, func(t *testing.T) {
			withBuildInfo(t, "0.9.0", tt.commit, "unknown")
			assert.Equal(t, tt.want, Info())
		})
	}
}

func TestFull(t *testing.T) {
	withBuildInfo(t, "1.2.3", "abcdef123456", "2026-10-19")
	assert.Equal(t, "moe version 1.2.3\nCommit: abcdef123456\nBuilt: 2026-10-19", Full())
}

func TestVCSFallback(t *testing.T) {
	withBuildInfo(t, "1.2.3", "unknown", "unknown",
		debug.BuildSetting{Key: "vcs.revision", Value: "0123456789ab"},
		debug.BuildSetting{Key: "vcs.time", Value: "2026-10-01T00:00:00Z"},
	)
	assert.Equal(t, "1.2.3 (0123456)", Info())
	assert.Equal(t, "moe version 1.2.3\nCommit: 0123456789ab\nBuilt: 2026-10-01T00:00:00Z", Full())

	withBuildInfo(t, "1.2.3", "feedfacecafe", "unknown",
		debug.BuildSetting{Key: "vcs.revision", Value: "0123456789ab"},
	)
	assert.Equal(t, "1.2.3 (feedfac)", Info())
}

func TestDefaultVersionIsSemver(t *testing.T) {
	assert.Regexp(t, `^\d+\.\d+\.\d+$`, Version)
}
