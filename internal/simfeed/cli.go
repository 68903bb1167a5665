package simfeed

import (
	"context"
	"fmt"
	"io"
	"log"
	"os"
	"time"

	"github.com/okian/tally/pkg/logger"
)

// File permission constants.
const (
	logFilePermission = 0600
)

// SetupLogging configures logging to both console and file.
// If logFile is empty, a timestamped filename is generated.
func SetupLogging(logFile string) error {
	if err := logger.Init(); err != nil {
		return fmt.Errorf("failed to initialize logger: %w", err)
	}

	if logFile == "" {
		timestamp := time.Now().Format("20060102_150405")
		logFile = "feed_log_" + timestamp + ".log"
	}

	file, err := os.OpenFile(logFile, os.O_CREATE|os.O_WRONLY|os.O_APPEND, logFilePermission)
	if err != nil {
		return fmt.Errorf("failed to create log file: %w", err)
	}

	multiWriter := io.MultiWriter(os.Stdout, file)
	log.SetOutput(multiWriter)
	log.SetFlags(log.LstdFlags | log.Lmicroseconds)
	logger.Get().Info(context.Background(), "logging to file", logger.String("logFile", logFile))
	return nil
}

// ShowHelp prints usage information for the feed simulator.
func ShowHelp() {
	os.Stdout.WriteString(`Tally Feed Simulator
====================

Feeds a synthetic game-stats roster through the tracker: posts a baseline,
declares an active window, submits a timestamp-ordered snapshot series and
verifies that in-window plus outside deltas reconcile with totals.

Usage:
  go run cmd/sim-feed/main.go [options]

Options:
  -url string
        Base URL of the service (default "http://localhost:9080")
  -entities int
        Number of entities in the synthetic roster (default 500)
  -snapshots int
        Number of snapshots to feed after the baseline (default 24)
  -step duration
        Simulated time between consecutive snapshots (default 1h)
  -top int
        Number of leaderboard entries to fetch per metric (default 25)
  -workers int
        Number of concurrent workers for roster generation (default CPU cores * 2)
  -timeout duration
        HTTP request timeout (default 30s)
  -output string
        Output file for the snapshot series (default: feed_snapshots_TIMESTAMP.json)
  -log string
        Log file for run output (default: feed_log_TIMESTAMP.log)
  -verbose
        Enable verbose logging
  -help
        Show this help message

Examples:
  # Feed with default settings
  go run cmd/sim-feed/main.go

  # Larger roster, denser series
  go run cmd/sim-feed/main.go -entities 5000 -snapshots 96 -step 15m

  # Verbose run against a remote instance
  go run cmd/sim-feed/main.go -verbose -url http://tracker:9080
`)
}
