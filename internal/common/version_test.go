package common

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestGetVersionInfo_LinkedValuesWin(t *testing.T) {
	oldVersion, oldBuild, oldCommit := Version, Build, GitCommit
	t.Cleanup(func() { Version, Build, GitCommit = oldVersion, oldBuild, oldCommit })

	Version, Build, GitCommit = "1.2.3", "2026-10-17T09:00:00Z", "abc123"

	info := GetVersionInfo()
	assert.Equal(t, "1.2.3", info.Version)
	assert.Equal(t, "2026-10-17T09:00:00Z", info.Build)
	assert.Equal(t, "abc123", info.GitCommit)
	assert.Contains(t, GetFullVersion(), "1.2.3 (build: 2026-10-17T09:00:00Z, commit: abc123")
}

func TestGetVersionInfo_DevBuildHasVersion(t *testing.T) {
	info := GetVersionInfo()
	assert.NotEmpty(t, info.Version)
	assert.Equal(t, info.Version, GetVersion())
}
