package cmd

import (
	"encoding/json"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type jsonEntry struct {
	SnippetID   string              `json:"snippet_id"`
	DisplayName string              `json:"display_name"`
	Files       []string            `json:"files"`
	Highlights  map[string][]string `json:"highlights"`
	Rating      *float64            `json:"rating"`
	RatingCount int                 `json:"rating_count"`
}

func searchJSON(t *testing.T, args ...string) []jsonEntry {
	t.Helper()
	out, err := execute(t, append([]string{"search", "--format", "json"}, args...)...)
	require.NoError(t, err, out)

	var entries []jsonEntry
	require.NoError(t, json.Unmarshal([]byte(out), &entries), out)
	return entries
}

func findEntry(entries []jsonEntry, id string) *jsonEntry {
	for i := range entries {
		if entries[i].SnippetID == id {
			return &entries[i]
		}
	}
	return nil
}

func TestWorkflow_LocalBackend(t *testing.T) {
	isolate(t)

	src := filepath.Join(t.TempDir(), "backoff.go")
	require.NoError(t, os.WriteFile(src, []byte("func retryWithBackoff(attempts int) error { return nil }\n"), 0o644))

	// Given: two snippets, one with a file and a display name
	out, err := execute(t, "snippet", "add", "abc",
		"--name", "Backoff helper",
		"--description", "Exponential retry for flaky calls",
		"--file", src)
	require.NoError(t, err, out)
	assert.Contains(t, out, "Saved snippet abc (1 files)")

	out, err = execute(t, "snippet", "add", "def", "--description", "Token bucket rate limiter")
	require.NoError(t, err, out)

	// When: searching a metadata term
	entries := searchJSON(t, "limiter")

	// Then: the matching snippet comes back with highlights
	require.Len(t, entries, 1)
	assert.Equal(t, "def", entries[0].SnippetID)
	assert.NotEmpty(t, entries[0].Highlights)

	// When: searching a term that only occurs in file content
	entries = searchJSON(t, "retryWithBackoff")

	// Then: the file hit is attributed to its snippet and the name is backfilled
	require.Len(t, entries, 1)
	assert.Equal(t, "abc", entries[0].SnippetID)
	assert.Equal(t, "Backoff helper", entries[0].DisplayName)
	assert.Contains(t, entries[0].Files, "backoff.go")

	// When: rating and listing everything
	out, err = execute(t, "rate", "abc", "4", "--user", "alice")
	require.NoError(t, err, out)
	out, err = execute(t, "rate", "abc", "2", "--user", "bob")
	require.NoError(t, err, out)

	entries = searchJSON(t, "--all")

	// Then: both snippets appear once, with the average rating on abc
	require.Len(t, entries, 2)
	abc := findEntry(entries, "abc")
	require.NotNil(t, abc)
	require.NotNil(t, abc.Rating)
	assert.InDelta(t, 3.0, *abc.Rating, 0.001)
	assert.Equal(t, 2, abc.RatingCount)
	def := findEntry(entries, "def")
	require.NotNil(t, def)
	assert.Nil(t, def.Rating)

	// And: --skip-ratings leaves ratings out
	for _, e := range searchJSON(t, "--all", "--skip-ratings") {
		assert.Nil(t, e.Rating)
	}

	// When: deleting a snippet
	out, err = execute(t, "snippet", "rm", "def")
	require.NoError(t, err, out)

	// Then: it disappears from results
	entries = searchJSON(t, "--all")
	require.Len(t, entries, 1)
	assert.Equal(t, "abc", entries[0].SnippetID)

	// And: searches were recorded in telemetry
	out, err = execute(t, "stats", "--json")
	require.NoError(t, err, out)
	var stats StatsOutput
	require.NoError(t, json.Unmarshal([]byte(out), &stats))
	assert.GreaterOrEqual(t, stats.TotalSearches, int64(5))
	assert.Positive(t, stats.KindCounts["match_all"])
}

func TestWorkflow_TextOutput(t *testing.T) {
	isolate(t)

	out, err := execute(t, "snippet", "add", "abc", "--name", "JSON parser", "--description", "Streaming tokenizer")
	require.NoError(t, err, out)

	out, err = execute(t, "search", "tokenizer")
	require.NoError(t, err)
	assert.Contains(t, out, `Found 1 snippet for "tokenizer"`)
	assert.Contains(t, out, "1. JSON parser [abc]")

	out, err = execute(t, "search", "nothing-matches-this")
	require.NoError(t, err)
	assert.Contains(t, out, "No snippets found")
}

func TestSearchCmd_Errors(t *testing.T) {
	isolate(t)

	t.Run("empty term", func(t *testing.T) {
		_, err := execute(t, "search")
		assert.ErrorContains(t, err, "empty")
	})

	t.Run("bad format", func(t *testing.T) {
		_, err := execute(t, "search", "x", "--format", "yaml")
		assert.ErrorContains(t, err, "unknown output format")
	})
}

func TestRateCmd_Errors(t *testing.T) {
	isolate(t)

	t.Run("not a number", func(t *testing.T) {
		_, err := execute(t, "rate", "abc", "five")
		assert.ErrorContains(t, err, "invalid rating")
	})

	t.Run("out of range", func(t *testing.T) {
		out, err := execute(t, "snippet", "add", "abc")
		require.NoError(t, err, out)

		_, err = execute(t, "rate", "abc", "9")
		assert.ErrorContains(t, err, "rating out of range")
	})

	t.Run("unknown snippet", func(t *testing.T) {
		_, err := execute(t, "rate", "missing", "3")
		assert.Error(t, err)
	})
}

func TestRefreshCmd(t *testing.T) {
	isolate(t)

	out, err := execute(t, "refresh")
	require.NoError(t, err)
	assert.Contains(t, out, "Refreshed metadata index")
	assert.Contains(t, out, "Refreshed files index")

	out, err = execute(t, "refresh", "files")
	require.NoError(t, err)
	assert.NotContains(t, out, "metadata")

	_, err = execute(t, "refresh", "vectors")
	assert.ErrorContains(t, err, "unknown index kind")
}

func TestSnippetListCmd(t *testing.T) {
	isolate(t)

	out, err := execute(t, "snippet", "add", "abc", "--name", "JSON parser", "--owner", "alice")
	require.NoError(t, err, out)

	out, err = execute(t, "snippet", "list")
	require.NoError(t, err)
	assert.Contains(t, out, "ID")
	assert.Contains(t, out, "JSON parser")
	assert.Contains(t, out, "alice")
}
