package simfeed

import (
	"context"
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"time"

	"github.com/okian/tally/pkg/logger"
)

// File permission constants.
const (
	directoryPermission = 0750
)

// Run executes the complete feed: baseline, window, snapshot series, drain,
// attribution verification and leaderboard checks.
func Run(ctx context.Context, config *Config) error {
	stats := &Stats{
		StartTime: time.Now(),
	}

	logger.Get().Info(ctx, "starting tally feed run",
		logger.String("baseURL", config.BaseURL),
		logger.Int("entities", config.Entities),
		logger.Int("snapshots", config.Snapshots),
		logger.String("step", config.Step.String()),
		logger.Int("workers", config.Workers),
		logger.String("timeout", config.Timeout.String()),
		logger.Int("topN", config.TopN),
		logger.String("logFile", config.LogFile),
		logger.Any("verbose", config.Verbose))

	client := newHTTPClient(config.Timeout)

	// Step 1: Check service health.
	if err := checkServiceHealth(ctx, client, config); err != nil {
		return fmt.Errorf("service health check failed: %w", err)
	}

	// Step 2: Build the synthetic roster.
	roster, err := buildRoster(ctx, config, stats)
	if err != nil {
		return fmt.Errorf("roster generation failed: %w", err)
	}

	// Step 3: Post the baseline.
	if err := postBaseline(ctx, client, config, roster); err != nil {
		return fmt.Errorf("baseline submission failed: %w", err)
	}

	// Step 4: Declare a window covering the middle half of the series. The
	// feed clock starts one step after the baseline, so the window brackets
	// snapshots rather than nothing.
	feedStart := time.Now().UTC().Truncate(time.Second)
	winStart := feedStart.Add(time.Duration(config.Snapshots/4) * config.Step)
	winEnd := feedStart.Add(time.Duration(3*config.Snapshots/4) * config.Step)
	if err := declareWindow(ctx, client, config, "feed-window", winStart, winEnd); err != nil {
		return fmt.Errorf("window declaration failed: %w", err)
	}

	// Step 5: Feed the ordered snapshot series.
	series, err := feedSnapshots(ctx, client, config, roster, feedStart, stats)
	if err != nil {
		return fmt.Errorf("snapshot feed failed: %w", err)
	}

	// Step 6: Wait for the ingestion queue to drain.
	if err := waitForDrain(ctx, client, config, stats.SnapshotsAccepted); err != nil {
		return fmt.Errorf("queue drain failed: %w", err)
	}

	// Step 7: Fetch and verify the attribution report.
	report, err := fetchAttribution(ctx, client, config, stats)
	if err != nil {
		return fmt.Errorf("attribution retrieval failed: %w", err)
	}
	if err := verifyConservation(ctx, config, report, stats); err != nil {
		return fmt.Errorf("attribution verification failed: %w", err)
	}

	// Step 8: Fetch one leaderboard per metric and sanity-check ordering.
	if err := fetchLeaderboards(ctx, client, config, stats); err != nil {
		return fmt.Errorf("leaderboard verification failed: %w", err)
	}

	// Step 9: Save the generated series to file.
	if err := saveSeriesToFile(ctx, config, series); err != nil {
		logger.Get().Warn(ctx, "failed to save snapshot series to file", logger.Error(err))
	}

	stats.EndTime = time.Now()
	stats.Duration = stats.EndTime.Sub(stats.StartTime)

	displayFinalStats(stats)

	logger.Get().Info(ctx, "feed run completed successfully")
	return nil
}

// checkServiceHealth verifies the service is running.
func checkServiceHealth(ctx context.Context, client *HTTPClient, config *Config) error {
	logger.Get().Info(ctx, "checking service health")

	resp, err := client.Get(config.BaseURL + "/healthz")
	if err != nil {
		return fmt.Errorf("failed to connect to service: %w", err)
	}
	defer func() {
		if err := resp.Body.Close(); err != nil {
			logger.Get().Error(context.Background(), "failed to close response body", logger.Error(err))
		}
	}()

	if resp.StatusCode != StatusOK {
		return fmt.Errorf("service health check failed with status: %d", resp.StatusCode)
	}

	logger.Get().Info(ctx, "service is healthy")
	return nil
}

// saveSeriesToFile saves the generated snapshot series to a JSON file.
func saveSeriesToFile(ctx context.Context, config *Config, series []snapshotPayload) error {
	if len(series) == 0 {
		return fmt.Errorf("no snapshots to save")
	}

	filename := config.OutputFile
	if filename == "" {
		timestamp := time.Now().Format("20060102_150405")
		filename = "feed_snapshots_" + timestamp + ".json"
	}

	dir := filepath.Dir(filename)
	if dir != "." {
		if err := os.MkdirAll(dir, directoryPermission); err != nil {
			return fmt.Errorf("failed to create directory: %w", err)
		}
	}

	file, err := os.Create(filename)
	if err != nil {
		return fmt.Errorf("failed to create file: %w", err)
	}
	defer func() {
		if err := file.Close(); err != nil {
			logger.Get().Error(context.Background(), "failed to close file", logger.Error(err))
		}
	}()

	if _, err := file.WriteString("[\n"); err != nil {
		return fmt.Errorf("failed to write opening bracket: %w", err)
	}

	for i, snap := range series {
		jsonData, err := marshalSnapshot(snap)
		if err != nil {
			return fmt.Errorf("failed to marshal snapshot %d: %w", i, err)
		}

		if _, err := file.Write(jsonData); err != nil {
			return fmt.Errorf("failed to write snapshot %d: %w", i, err)
		}

		if i < len(series)-1 {
			if _, err := file.WriteString(","); err != nil {
				return fmt.Errorf("failed to write comma: %w", err)
			}
		}
		_, _ = file.WriteString("\n")
	}

	if _, err := file.WriteString("]\n"); err != nil {
		return fmt.Errorf("failed to write closing bracket: %w", err)
	}

	logger.Get().Info(ctx, "snapshot series saved to file", logger.String("filename", filename))
	return nil
}

// displayFinalStats prints the final run statistics.
func displayFinalStats(stats *Stats) {
	var successRate, snapshotsPerSecond float64

	if stats.SnapshotsSubmitted > 0 {
		successRate = float64(stats.SnapshotsAccepted) / float64(stats.SnapshotsSubmitted) * PercentageMultiplier
	}
	if stats.Duration > 0 {
		snapshotsPerSecond = float64(stats.SnapshotsSubmitted) / stats.Duration.Seconds()
	}

	logger.Get().Info(context.Background(), "final statistics",
		logger.Int("rosterSize", stats.RosterSize),
		logger.Int("snapshotsSubmitted", stats.SnapshotsSubmitted),
		logger.Int("snapshotsAccepted", stats.SnapshotsAccepted),
		logger.Int("snapshotsDuplicate", stats.SnapshotsDuplicate),
		logger.Int("snapshotsFailed", stats.SnapshotsFailed),
		logger.Int("entitiesAttributed", stats.EntitiesAttributed),
		logger.Int("conservationChecked", stats.ConservationChecked),
		logger.Int("leaderboardsFetched", stats.LeaderboardsFetched),
		logger.String("duration", stats.Duration.String()),
		logger.Float64("successRate", successRate),
		logger.Float64("snapshotsPerSecond", snapshotsPerSecond))
}

// marshalSnapshot keeps the save path decoupled from the wire client.
func marshalSnapshot(snap snapshotPayload) ([]byte, error) {
	return json.Marshal(snap)
}
