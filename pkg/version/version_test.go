package version

import (
	"encoding/json"
	"runtime"
	"runtime/debug"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func restore(t *testing.T) {
	t.Helper()
	commit, date := Commit, Date
	t.Cleanup(func() { Commit, Date = commit, date })
}

func TestApplyBuildSettings(t *testing.T) {
	t.Run("fills unknown fields from vcs stamp", func(t *testing.T) {
		restore(t)
		Commit, Date = "unknown", "unknown"

		applyBuildSettings([]debug.BuildSetting{
			{Key: "vcs.revision", Value: "0123456789abcdef"},
			{Key: "vcs.time", Value: "2026-03-01T10:00:00Z"},
		})

		assert.Equal(t, "0123456", Commit)
		assert.Equal(t, "2026-03-01T10:00:00Z", Date)
	})

	t.Run("ldflags win over vcs stamp", func(t *testing.T) {
		restore(t)
		Commit, Date = "abc1234", "2025-01-01"

		applyBuildSettings([]debug.BuildSetting{{Key: "vcs.revision", Value: "ffffffffff"}})

		assert.Equal(t, "abc1234", Commit)
		assert.Equal(t, "2025-01-01", Date)
	})
}

func TestString(t *testing.T) {
	str := String()
	assert.Contains(t, str, "snipsearch "+Version)
	assert.Contains(t, str, GoVersion)
	assert.Equal(t, Version, Short())
}

func TestUserAgent(t *testing.T) {
	assert.Equal(t, "snipsearch/"+Version+" ("+runtime.GOOS+"/"+runtime.GOARCH+")", UserAgent())
}

func TestGetInfo_JSON(t *testing.T) {
	data, err := json.Marshal(GetInfo())
	require.NoError(t, err)

	var parsed map[string]string
	require.NoError(t, json.Unmarshal(data, &parsed))
	assert.Equal(t, Version, parsed["version"])
	assert.Equal(t, runtime.GOOS+"/"+runtime.GOARCH, parsed["platform"])
	assert.Contains(t, parsed, "go_version")
}
