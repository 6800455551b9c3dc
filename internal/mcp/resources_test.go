package mcp

import (
	"context"
	"encoding/json"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/Aman-CERP/snipsearch/internal/telemetry"
)

func recordedMetrics(t *testing.T) *telemetry.QueryMetrics {
	t.Helper()
	m := telemetry.NewQueryMetrics(nil)
	t.Cleanup(func() { _ = m.Close() })

	m.Record(telemetry.SearchEvent{Term: "json parser", Kind: telemetry.SearchKindTerm, ResultCount: 3, Latency: 10 * time.Millisecond})
	m.Record(telemetry.SearchEvent{Term: "json", Kind: telemetry.SearchKindTerm, ResultCount: 1, StaleDropped: 2, Latency: 10 * time.Millisecond})
	m.Record(telemetry.SearchEvent{Term: "nothing", Kind: telemetry.SearchKindTerm, ResultCount: 0, InvalidPaths: 1, Latency: 300 * time.Millisecond})
	m.Record(telemetry.SearchEvent{Term: "*", Kind: telemetry.SearchKindMatchAll, ResultCount: 9, Latency: 10 * time.Millisecond})
	return m
}

func TestToMetricsOutput(t *testing.T) {
	// Given four recorded searches
	m := recordedMetrics(t)

	// When converting the snapshot
	out := toMetricsOutput(m.Snapshot())

	// Then totals and counters carry over
	assert.Equal(t, int64(4), out.Summary.TotalSearches)
	assert.InDelta(t, 25.0, out.Summary.ZeroResultPct, 0.001)
	assert.Equal(t, int64(2), out.Summary.StaleDropped)
	assert.Equal(t, int64(1), out.Summary.InvalidPaths)
	assert.Equal(t, int64(3), out.KindCounts["term"])
	assert.Equal(t, int64(1), out.KindCounts["match_all"])
	assert.Equal(t, []string{"nothing"}, out.ZeroResultTerms)
	assert.Equal(t, int64(3), out.LatencyDistribution[string(telemetry.BucketFast)])

	// And the most searched term comes first
	require.NotEmpty(t, out.TopTerms)
	assert.Equal(t, TermCount{Term: "json", Count: 2}, out.TopTerms[0])
}

func TestHandleMetricsResource(t *testing.T) {
	s, err := NewServer(&mockSearcher{}, WithMetrics(recordedMetrics(t)))
	require.NoError(t, err)

	res, err := s.handleMetricsResource(context.Background(), nil)
	require.NoError(t, err)
	require.Len(t, res.Contents, 1)
	assert.Equal(t, MetricsResourceURI, res.Contents[0].URI)
	assert.Equal(t, "application/json", res.Contents[0].MIMEType)

	var out MetricsOutput
	require.NoError(t, json.Unmarshal([]byte(res.Contents[0].Text), &out))
	assert.Equal(t, int64(4), out.Summary.TotalSearches)
}

func TestHandleMetricsResource_NotConfigured(t *testing.T) {
	s, err := NewServer(&mockSearcher{})
	require.NoError(t, err)

	_, err = s.handleMetricsResource(context.Background(), nil)

	var mcpErr *MCPError
	require.ErrorAs(t, err, &mcpErr)
	assert.Equal(t, ErrCodeInvalidParams, mcpErr.Code)
}
