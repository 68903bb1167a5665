package simfeed

import (
	"context"
	"encoding/json"
	"fmt"
	"log"
	"sort"
)

// trackedMetrics are the metrics a leaderboard can be ranked by.
var trackedMetrics = []string{"power", "kills_tier4", "kills_tier5", "losses"}

// fetchAttribution retrieves the full attribution report.
func fetchAttribution(ctx context.Context, client *HTTPClient, config *Config, stats *Stats) (*attributionReport, error) {
	log.Println("🧮 Fetching attribution report...")

	resp, err := client.Get(config.BaseURL + "/attribution")
	if err != nil {
		return nil, fmt.Errorf("attribution request failed: %w", err)
	}

	body, err := readResponseBody(resp)
	if err != nil {
		return nil, fmt.Errorf("failed to read attribution response: %w", err)
	}
	if resp.StatusCode != StatusOK {
		return nil, fmt.Errorf("HTTP %d: %s", resp.StatusCode, string(body))
	}

	var report attributionReport
	if err := json.Unmarshal(body, &report); err != nil {
		return nil, fmt.Errorf("failed to parse attribution report: %w", err)
	}

	stats.EntitiesAttributed = len(report.Entities)
	log.Printf("✅ Attribution covers %d entities", len(report.Entities))
	return &report, nil
}

// verifyConservation checks that in-window plus outside equals the total
// delta for every entity and metric. The tracker guarantees this exactly, so
// any mismatch is a hard failure.
func verifyConservation(ctx context.Context, config *Config, report *attributionReport, stats *Stats) error {
	log.Println("🔍 Verifying in-window + outside == total...")

	if len(report.Entities) == 0 {
		return fmt.Errorf("empty attribution report")
	}

	violations := 0
	for _, e := range report.Entities {
		checks := []struct {
			metric  string
			in, out int64
			total   int64
		}{
			{"power", e.InWindow.Power, e.Outside.Power, e.Total.Power},
			{"kills_tier4", e.InWindow.KillsTier4, e.Outside.KillsTier4, e.Total.KillsTier4},
			{"kills_tier5", e.InWindow.KillsTier5, e.Outside.KillsTier5, e.Total.KillsTier5},
			{"losses", e.InWindow.Losses, e.Outside.Losses, e.Total.Losses},
		}
		for _, c := range checks {
			stats.ConservationChecked++
			if c.in+c.out != c.total {
				violations++
				log.Printf("❌ %s/%s: in %d + out %d != total %d", e.EntityID, c.metric, c.in, c.out, c.total)
			}
		}
	}

	if violations > 0 {
		return fmt.Errorf("%d conservation violations across %d checks", violations, stats.ConservationChecked)
	}

	log.Printf("✅ Conservation holds for all %d checks", stats.ConservationChecked)
	return nil
}

// fetchLeaderboards retrieves and sanity-checks one leaderboard per metric.
func fetchLeaderboards(ctx context.Context, client *HTTPClient, config *Config, stats *Stats) error {
	for _, metric := range trackedMetrics {
		url := fmt.Sprintf("%s/leaderboard?metric=%s&limit=%d", config.BaseURL, metric, config.TopN)

		resp, err := client.Get(url)
		if err != nil {
			return fmt.Errorf("leaderboard request for %s failed: %w", metric, err)
		}
		body, err := readResponseBody(resp)
		if err != nil {
			return fmt.Errorf("failed to read leaderboard response for %s: %w", metric, err)
		}
		if resp.StatusCode != StatusOK {
			return fmt.Errorf("leaderboard for %s: HTTP %d: %s", metric, resp.StatusCode, string(body))
		}

		var lb leaderboardResponse
		if err := json.Unmarshal(body, &lb); err != nil {
			return fmt.Errorf("failed to parse leaderboard for %s: %w", metric, err)
		}

		if err := verifyLeaderboardOrder(lb.Entries); err != nil {
			return fmt.Errorf("leaderboard for %s is inconsistent: %w", metric, err)
		}

		stats.LeaderboardsFetched++
		displayTopEntries(metric, lb.Entries, config.Verbose)
	}
	return nil
}

// verifyLeaderboardOrder checks descending in-window order and that tied
// contributions share a rank.
func verifyLeaderboardOrder(entries []leaderboardEntry) error {
	if !sort.SliceIsSorted(entries, func(i, j int) bool {
		return entries[i].InWindow > entries[j].InWindow
	}) {
		// Equal neighbors are fine; only strict inversions are an error.
		for i := 1; i < len(entries); i++ {
			if entries[i].InWindow > entries[i-1].InWindow {
				return fmt.Errorf("entry %d outranks entry %d", i, i-1)
			}
		}
	}

	for i := 1; i < len(entries); i++ {
		sameRank := entries[i].Rank == entries[i-1].Rank
		tied := entries[i].InWindow == entries[i-1].InWindow
		if sameRank && !tied {
			return fmt.Errorf("entries %d and %d share rank %d without a tie", i-1, i, entries[i].Rank)
		}
		if tied && !sameRank && entries[i].Rank != entries[i-1].Rank+1 {
			return fmt.Errorf("rank gap between tied entries %d and %d", i-1, i)
		}
	}
	return nil
}

// displayTopEntries shows the top ranked rows for one metric.
func displayTopEntries(metric string, entries []leaderboardEntry, verbose bool) {
	topN := 5
	if verbose {
		topN = len(entries)
	}
	if len(entries) < topN {
		topN = len(entries)
	}

	log.Printf("🏆 Top %d by %s:", topN, metric)
	for i := 0; i < topN; i++ {
		e := entries[i]
		log.Printf("   %d. %s - in-window: %d (total: %d)", e.Rank, e.EntityID, e.InWindow, e.Total)
	}
}
