package cmd

import (
	"encoding/json"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/Aman-CERP/snipsearch/pkg/version"
)

func TestRootCmd_ShowsHelp(t *testing.T) {
	// Given: an isolated environment
	isolate(t)

	// When: executing with --help
	out, err := execute(t, "--help")

	// Then: it lists every subcommand
	require.NoError(t, err)
	for _, sub := range []string{"search", "refresh", "rate", "snippet", "serve", "stats", "config", "version"} {
		assert.Contains(t, out, sub)
	}
}

func TestRootCmd_UnknownCommand(t *testing.T) {
	isolate(t)

	_, err := execute(t, "reindex")

	assert.Error(t, err)
}

func TestVersionCmd(t *testing.T) {
	isolate(t)

	t.Run("default", func(t *testing.T) {
		out, err := execute(t, "version")
		require.NoError(t, err)
		assert.Contains(t, out, "snipsearch "+version.Version)
	})

	t.Run("short", func(t *testing.T) {
		out, err := execute(t, "version", "--short")
		require.NoError(t, err)
		assert.Equal(t, version.Version+"\n", out)
	})

	t.Run("json", func(t *testing.T) {
		out, err := execute(t, "version", "--json")
		require.NoError(t, err)

		var info version.BuildInfo
		require.NoError(t, json.Unmarshal([]byte(out), &info))
		assert.Equal(t, version.Version, info.Version)
	})
}
