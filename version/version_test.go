package version

import (
	"runtime/debug"
	"testing"
)

func stubBuildInfo(t *testing.T, bi *debug.BuildInfo, ok bool) {
	t.Helper()
	origVersion, origCommit, origBuild, origRead := Version, Commit, BuildTime, readBuildInfo
	readBuildInfo = func() (*debug.BuildInfo, bool) { return bi, ok }
	t.Cleanup(func() {
		Version, Commit, BuildTime, readBuildInfo = origVersion, origCommit, origBuild, origRead
	})
}

func TestGetFromVCS(t *testing.T) {
	stubBuildInfo(t, &debug.BuildInfo{
		GoVersion: "go1.25.3",
		Settings: []debug.BuildSetting{
			{Key: "vcs.revision", Value: "0123456789abcdef"},
			{Key: "vcs.time", Value: "2026-01-02T03:04:05Z"},
			{Key: "vcs.modified", Value: "true"},
		},
	}, true)

	got := Get()
	if got.Version != "dev" {
		t.Errorf("expected version 'dev', got %q", got.Version)
	}
	if got.Commit != "0123456" {
		t.Errorf("expected short commit, got %q", got.Commit)
	}
	if got.BuildTime != "2026-01-02T03:04:05Z" {
		t.Errorf("unexpected build time %q", got.BuildTime)
	}
	if got.GoVersion != "go1.25.3" || !got.Dirty {
		t.Errorf("unexpected info %+v", got)
	}
	if got.String() != "dev-0123456-dirty" {
		t.Errorf("unexpected string %q", got.String())
	}
}

func TestGetLinkTimeValuesWin(t *testing.T) {
	stubBuildInfo(t, &debug.BuildInfo{
		Settings: []debug.BuildSetting{
			{Key: "vcs.revision", Value: "ffffffffffff"},
			{Key: "vcs.time", Value: "2020-01-01T00:00:00Z"},
		},
	}, true)
	Version, Commit, BuildTime = "1.2.0", "abc1234", "2026-10-01T00:00:00Z"

	got := Get()
	if got.Commit != "abc1234" || got.BuildTime != "2026-10-01T00:00:00Z" {
		t.Errorf("expected link-time values, got %+v", got)
	}
	if got.String() != "1.2.0-abc1234" {
		t.Errorf("unexpected string %q", got.String())
	}
}

func TestGetWithoutBuildInfo(t *testing.T) {
	stubBuildInfo(t, nil, false)

	got := Get()
	if got.String() != "dev" {
		t.Errorf("expected 'dev', got %q", got.String())
	}
	if got.GoVersion != "" {
		t.Errorf("expected empty go version, got %q", got.GoVersion)
	}
}
