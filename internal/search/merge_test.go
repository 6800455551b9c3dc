package search

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

type kv struct {
	Key   string
	Value int
	Tag   string
}

func kvKey(r kv) string { return r.Key }

func kvOverlay(dst *kv, src kv) {
	dst.Value = src.Value
	if src.Tag != "" {
		dst.Tag = src.Tag
	}
}

func TestMergeByKey_EmptySourceIsIdentity(t *testing.T) {
	a := []kv{{"a", 1, "x"}, {"b", 2, "y"}}

	got := MergeByKey(a, nil, kvKey, kvOverlay)

	assert.Equal(t, a, got)
}

func TestMergeByKey_EmptyTargetYieldsSource(t *testing.T) {
	b := []kv{{"a", 1, ""}, {"b", 2, ""}}

	got := MergeByKey(nil, b, kvKey, kvOverlay)

	assert.Equal(t, b, got)
}

func TestMergeByKey_AllKeysPresentOverlays(t *testing.T) {
	a := []kv{{"a", 1, "x"}, {"b", 2, "y"}, {"c", 3, "z"}}
	b := []kv{{"c", 30, ""}, {"a", 10, "new"}}

	got := MergeByKey(a, b, kvKey, kvOverlay)

	assert.Len(t, got, len(a))
	assert.Equal(t, []kv{{"a", 10, "new"}, {"b", 2, "y"}, {"c", 30, "z"}}, got)
	assert.Equal(t, 1, a[0].Value, "target is not modified")
}

func TestMergeByKey_UnmatchedAppendedInOrder(t *testing.T) {
	a := []kv{{"a", 1, ""}}
	b := []kv{{"z", 26, ""}, {"a", 2, ""}, {"y", 25, ""}, {"z", 52, ""}}

	got := MergeByKey(a, b, kvKey, kvOverlay)

	// Appended "z" is matched by the later "z" record.
	assert.Equal(t, []kv{{"a", 2, ""}, {"z", 52, ""}, {"y", 25, ""}}, got)
}

func TestMergeByKey_FirstMatchWins(t *testing.T) {
	a := []kv{{"a", 1, "first"}, {"a", 2, "second"}}
	b := []kv{{"a", 9, ""}}

	got := MergeByKey(a, b, kvKey, kvOverlay)

	assert.Equal(t, []kv{{"a", 9, "first"}, {"a", 2, "second"}}, got)
}
