package cmd

import (
	"encoding/json"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/Aman-CERP/snipsearch/internal/config"
)

func TestConfigInit(t *testing.T) {
	// Given: no user config
	isolate(t)
	require.False(t, config.UserConfigExists())

	// When: running config init
	out, err := execute(t, "config", "init")

	// Then: the file is written
	require.NoError(t, err)
	assert.Contains(t, out, "Created user configuration")
	assert.True(t, config.UserConfigExists())

	// And: a second init leaves it alone
	out, err = execute(t, "config", "init")
	require.NoError(t, err)
	assert.Contains(t, out, "already exists")

	// And: --force backs it up first
	out, err = execute(t, "config", "init", "--force")
	require.NoError(t, err)
	assert.Contains(t, out, "Backup:")

	backups, err := config.ListUserConfigBackups()
	require.NoError(t, err)
	assert.Len(t, backups, 1)
}

func TestConfigPath(t *testing.T) {
	isolate(t)

	out, err := execute(t, "config", "path")

	require.NoError(t, err)
	assert.Equal(t, config.GetUserConfigPath()+"\n", out)
}

func TestConfigShow_JSON(t *testing.T) {
	isolate(t)

	out, err := execute(t, "config", "show", "--json")
	require.NoError(t, err)

	var cfg config.Config
	require.NoError(t, json.Unmarshal([]byte(out), &cfg))
	assert.Equal(t, config.BackendLocal, cfg.Index.Backend)
	assert.Equal(t, 20, cfg.Search.MaxResults)
}

func TestConfigShow_MasksAPIKey(t *testing.T) {
	isolate(t)
	t.Setenv("SNIPSEARCH_INDEX_BACKEND", "hosted")
	t.Setenv("SNIPSEARCH_ENDPOINT", "https://example.search.windows.net")
	t.Setenv("SNIPSEARCH_API_KEY", "s3cret-key")

	out, err := execute(t, "config", "show")

	require.NoError(t, err)
	assert.Contains(t, out, "backend: hosted")
	assert.Contains(t, out, "********")
	assert.NotContains(t, out, "s3cret-key")
}

func TestConfigShow_InvalidConfig(t *testing.T) {
	isolate(t)
	t.Setenv("SNIPSEARCH_INDEX_BACKEND", "hosted")

	_, err := execute(t, "config", "show")

	assert.ErrorContains(t, err, "endpoint")
}
