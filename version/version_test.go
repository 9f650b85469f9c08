package version

import (
	"runtime/debug"
	"testing"
)

func TestFormat(t *testing.T) {
	tests := []struct {
		name    string
		version string
		commit  string
		built   string
		want    string
	}{
		{"version only", "1.0.0", "", "", "1.0.0"},
		{"with commit", "1.0.0", "abc1234", "", "1.0.0-abc1234"},
		{"with build time", "1.0.0", "", "2026-01-29T12:00:00Z", "1.0.0 (2026-01-29T12:00:00Z)"},
		{"complete", "1.0.0", "abc1234", "2026-01-29T12:00:00Z", "1.0.0-abc1234 (2026-01-29T12:00:00Z)"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := format(tt.version, tt.commit, tt.built); got != tt.want {
				t.Errorf("format() = %q, want %q", got, tt.want)
			}
		})
	}
}

func TestFullPrefersLinkedCommit(t *testing.T) {
	origVersion, origCommit, origBuildTime := Version, GitCommit, BuildTime
	defer func() {
		Version, GitCommit, BuildTime = origVersion, origCommit, origBuildTime
	}()

	Version = "1.0.0"
	GitCommit = "abc1234"
	BuildTime = ""

	if got := Full(); got != "1.0.0-abc1234" {
		t.Errorf("Full() = %q, want %q", got, "1.0.0-abc1234")
	}
}

func TestVCSRevision(t *testing.T) {
	tests := []struct {
		name     string
		settings []debug.BuildSetting
		want     string
	}{
		{"none", nil, ""},
		{"clean", []debug.BuildSetting{{Key: "vcs.revision", Value: "0123456789abcdef"}}, "0123456"},
		{"dirty", []debug.BuildSetting{
			{Key: "vcs.revision", Value: "0123456789abcdef"},
			{Key: "vcs.modified", Value: "true"},
		}, "0123456+dirty"},
		{"short", []debug.BuildSetting{{Key: "vcs.revision", Value: "abc"}}, "abc"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got := vcsRevision(&debug.BuildInfo{Settings: tt.settings})
			if got != tt.want {
				t.Errorf("vcsRevision() = %q, want %q", got, tt.want)
			}
		})
	}
}
