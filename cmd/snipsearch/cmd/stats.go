package cmd

import (
	"context"
	"encoding/json"
	"fmt"
	"sort"
	"time"

	"github.com/spf13/cobra"

	"github.com/Aman-CERP/snipsearch/internal/output"
	"github.com/Aman-CERP/snipsearch/internal/telemetry"
)

// StatsOutput is the JSON output format for search stats.
type StatsOutput struct {
	Days                int              `json:"days"`
	TotalSearches       int64            `json:"total_searches"`
	KindCounts          map[string]int64 `json:"kind_counts"`
	LatencyDistribution map[string]int64 `json:"latency_distribution"`
	TopTerms            []StatsTermCount `json:"top_terms"`
	ZeroResultTerms     []string         `json:"zero_result_terms"`
}

// StatsTermCount represents a term and its frequency.
type StatsTermCount struct {
	Term  string `json:"term"`
	Count int64  `json:"count"`
}

func newStatsCmd() *cobra.Command {
	var jsonOutput bool
	var days int

	cmd := &cobra.Command{
		Use:   "stats",
		Short: "Show search telemetry",
		Long: `Display persisted search telemetry:
  - Term vs list-all search counts
  - Latency distribution
  - Top search terms
  - Recent searches that returned nothing`,
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			return withApp(cmd.Context(), func(_ context.Context, a *app) error {
				stats, err := collectStats(a.stats, days, time.Now())
				if err != nil {
					return err
				}
				if jsonOutput {
					enc := json.NewEncoder(cmd.OutOrStdout())
					enc.SetIndent("", "  ")
					return enc.Encode(stats)
				}
				printStats(output.New(cmd.OutOrStdout()), stats)
				return nil
			})
		},
	}

	cmd.Flags().BoolVar(&jsonOutput, "json", false, "Output as JSON")
	cmd.Flags().IntVar(&days, "days", 7, "Number of days to include")
	return cmd
}

func collectStats(st *telemetry.SQLiteStore, days int, now time.Time) (*StatsOutput, error) {
	if days <= 0 {
		days = 1
	}
	to := now.Format("2006-01-02")
	from := now.AddDate(0, 0, -(days - 1)).Format("2006-01-02")

	kinds, err := st.KindCounts(from, to)
	if err != nil {
		return nil, err
	}
	latencies, err := st.LatencyCounts(from, to)
	if err != nil {
		return nil, err
	}
	terms, err := st.TopTerms(10)
	if err != nil {
		return nil, err
	}
	zero, err := st.RecentZeroResultTerms(10)
	if err != nil {
		return nil, err
	}

	out := &StatsOutput{
		Days:                days,
		KindCounts:          make(map[string]int64, len(kinds)),
		LatencyDistribution: make(map[string]int64, len(latencies)),
		TopTerms:            make([]StatsTermCount, 0, len(terms)),
		ZeroResultTerms:     append([]string{}, zero...),
	}
	for k, n := range kinds {
		out.KindCounts[string(k)] = n
		out.TotalSearches += n
	}
	for b, n := range latencies {
		out.LatencyDistribution[string(b)] = n
	}
	for _, tc := range terms {
		out.TopTerms = append(out.TopTerms, StatsTermCount{Term: tc.Term, Count: tc.Count})
	}
	return out, nil
}

var latencyOrder = []telemetry.LatencyBucket{
	telemetry.BucketFast,
	telemetry.BucketOK,
	telemetry.BucketSlow,
	telemetry.BucketVSlow,
	telemetry.BucketStalled,
}

func printStats(out *output.Writer, s *StatsOutput) {
	out.Statusf("#", "Searches in the last %d days: %d", s.Days, s.TotalSearches)
	if s.TotalSearches == 0 {
		return
	}

	kinds := make([]string, 0, len(s.KindCounts))
	for k := range s.KindCounts {
		kinds = append(kinds, k)
	}
	sort.Strings(kinds)
	for _, k := range kinds {
		out.Status("", fmt.Sprintf("%-10s %d", k, s.KindCounts[k]))
	}

	out.Newline()
	out.Status("#", "Latency")
	for _, b := range latencyOrder {
		if n := s.LatencyDistribution[string(b)]; n > 0 {
			out.Status("", fmt.Sprintf("%-10s %d", b, n))
		}
	}

	if len(s.TopTerms) > 0 {
		out.Newline()
		out.Status("#", "Top terms")
		for _, tc := range s.TopTerms {
			out.Status("", fmt.Sprintf("%-20s %d", tc.Term, tc.Count))
		}
	}
	if len(s.ZeroResultTerms) > 0 {
		out.Newline()
		out.Status("#", "Recent searches with no results")
		for _, t := range s.ZeroResultTerms {
			out.Status("", t)
		}
	}
}
