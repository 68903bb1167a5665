package main

import (
	"context"
	"flag"
	"os"
	"runtime"
	"time"

	"github.com/okian/tally/internal/simfeed"
)

// Default configuration constants.
const (
	defaultEntities   = 500
	defaultSnapshots  = 24
	defaultStep       = time.Hour
	defaultTopN       = 25
	defaultWorkers    = 2 // multiplier for runtime.NumCPU()
	defaultTimeout    = 30 * time.Second
	defaultRunTimeout = 10 * time.Minute
)

func main() {
	var (
		baseURL    = flag.String("url", "http://localhost:9080", "Base URL of the service")
		entities   = flag.Int("entities", defaultEntities, "Number of entities in the synthetic roster")
		snapshots  = flag.Int("snapshots", defaultSnapshots, "Number of snapshots to feed after the baseline")
		step       = flag.Duration("step", defaultStep, "Simulated time between consecutive snapshots")
		topN       = flag.Int("top", defaultTopN, "Number of leaderboard entries to fetch per metric")
		workers    = flag.Int("workers", runtime.NumCPU()*defaultWorkers, "Number of concurrent workers")
		timeout    = flag.Duration("timeout", defaultTimeout, "HTTP request timeout")
		outputFile = flag.String("output", "", "Output file for the snapshot series (default: feed_snapshots_TIMESTAMP.json)")
		logFile    = flag.String("log", "", "Log file for run output (default: feed_log_TIMESTAMP.log)")
		verbose    = flag.Bool("verbose", false, "Enable verbose logging")
		help       = flag.Bool("help", false, "Show help")
	)
	flag.Parse()

	if *help {
		simfeed.ShowHelp()
		return
	}

	if err := simfeed.SetupLogging(*logFile); err != nil {
		os.Stderr.WriteString("Failed to setup logging: " + err.Error() + "\n")
		return
	}

	ctx, cancel := context.WithTimeout(context.Background(), defaultRunTimeout)
	defer cancel()

	config := &simfeed.Config{
		BaseURL:    *baseURL,
		Entities:   *entities,
		Snapshots:  *snapshots,
		Step:       *step,
		Workers:    *workers,
		Timeout:    *timeout,
		TopN:       *topN,
		OutputFile: *outputFile,
		LogFile:    *logFile,
		Verbose:    *verbose,
	}

	if err := simfeed.Run(ctx, config); err != nil {
		os.Stderr.WriteString("Feed run failed: " + err.Error() + "\n")
		return
	}
}
