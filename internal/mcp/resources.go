package mcp

import (
	"context"
	"encoding/json"
	"sort"

	"github.com/modelcontextprotocol/go-sdk/mcp"

	"github.com/Aman-CERP/snipsearch/internal/telemetry"
)

// MetricsResourceURI addresses the search telemetry resource.
const MetricsResourceURI = "snipsearch://search_metrics"

// MetricsOutput is the JSON body of the search_metrics resource.
type MetricsOutput struct {
	Summary             MetricsSummary   `json:"summary"`
	KindCounts          map[string]int64 `json:"kind_counts"`
	TopTerms            []TermCount      `json:"top_terms"`
	ZeroResultTerms     []string         `json:"zero_result_terms"`
	LatencyDistribution map[string]int64 `json:"latency_distribution"`
}

// MetricsSummary provides overview statistics.
type MetricsSummary struct {
	TotalSearches int64   `json:"total_searches"`
	ZeroResultPct float64 `json:"zero_result_pct"`
	StaleDropped  int64   `json:"stale_dropped"`
	InvalidPaths  int64   `json:"invalid_paths"`
	Since         string  `json:"since"`
}

// TermCount is a search term and how often it was used.
type TermCount struct {
	Term  string `json:"term"`
	Count int64  `json:"count"`
}

func (s *Server) registerMetricsResource() {
	s.mcp.AddResource(
		&mcp.Resource{
			Name:        "search_metrics",
			URI:         MetricsResourceURI,
			Description: "Search telemetry: top terms, zero-result terms, latency buckets and dropped stale entries",
			MIMEType:    "application/json",
		},
		s.handleMetricsResource,
	)
}

func (s *Server) handleMetricsResource(_ context.Context, _ *mcp.ReadResourceRequest) (*mcp.ReadResourceResult, error) {
	if s.metrics == nil {
		return nil, NewInvalidParamsError("search metrics not available")
	}

	content, err := json.MarshalIndent(toMetricsOutput(s.metrics.Snapshot()), "", "  ")
	if err != nil {
		return nil, MapError(err)
	}
	return &mcp.ReadResourceResult{
		Contents: []*mcp.ResourceContents{
			{
				URI:      MetricsResourceURI,
				MIMEType: "application/json",
				Text:     string(content),
			},
		},
	}, nil
}

func toMetricsOutput(snap *telemetry.Snapshot) MetricsOutput {
	out := MetricsOutput{
		Summary: MetricsSummary{
			TotalSearches: snap.TotalSearches,
			ZeroResultPct: snap.ZeroResultPercentage(),
			StaleDropped:  snap.StaleDropped,
			InvalidPaths:  snap.InvalidPaths,
			Since:         snap.Since.UTC().Format("2006-01-02T15:04:05Z"),
		},
		KindCounts:          make(map[string]int64, len(snap.KindCounts)),
		TopTerms:            make([]TermCount, 0, len(snap.TopTerms)),
		ZeroResultTerms:     append([]string{}, snap.ZeroResultTerms...),
		LatencyDistribution: make(map[string]int64, len(snap.LatencyDistribution)),
	}
	for k, n := range snap.KindCounts {
		out.KindCounts[string(k)] = n
	}
	for _, tc := range snap.TopTerms {
		out.TopTerms = append(out.TopTerms, TermCount{Term: tc.Term, Count: tc.Count})
	}
	sort.SliceStable(out.TopTerms, func(i, j int) bool { return out.TopTerms[i].Count > out.TopTerms[j].Count })
	for b, n := range snap.LatencyDistribution {
		out.LatencyDistribution[string(b)] = n
	}
	return out
}
