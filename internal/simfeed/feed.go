package simfeed

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"log"
	"net/http"
	"time"
)

// HTTPClient wraps http.Client with a shared timeout.
type HTTPClient struct {
	client  *http.Client
	timeout time.Duration
}

// newHTTPClient creates a new HTTP client with timeout.
func newHTTPClient(timeout time.Duration) *HTTPClient {
	return &HTTPClient{
		client: &http.Client{
			Timeout: timeout,
		},
		timeout: timeout,
	}
}

// Get performs a GET request.
func (c *HTTPClient) Get(url string) (*http.Response, error) {
	return c.client.Get(url)
}

// send performs a request with a JSON body.
func (c *HTTPClient) send(method, url string, body interface{}) (*http.Response, error) {
	jsonData, err := json.Marshal(body)
	if err != nil {
		return nil, fmt.Errorf("failed to marshal request body: %w", err)
	}

	req, err := http.NewRequest(method, url, bytes.NewBuffer(jsonData))
	if err != nil {
		return nil, fmt.Errorf("failed to create request: %w", err)
	}

	req.Header.Set("Content-Type", "application/json")
	return c.client.Do(req)
}

// readResponseBody reads and closes the response body.
func readResponseBody(resp *http.Response) ([]byte, error) {
	defer resp.Body.Close()
	return io.ReadAll(resp.Body)
}

// postBaseline submits the roster's starting vectors as the baseline.
func postBaseline(ctx context.Context, client *HTTPClient, config *Config, roster []*member) error {
	log.Printf("📋 Posting baseline for %d entities...", len(roster))

	payload := baselinePayload{Entities: make([]entityMetrics, 0, len(roster))}
	for _, m := range roster {
		payload.Entities = append(payload.Entities, m.row())
	}

	resp, err := client.send(http.MethodPost, config.BaseURL+"/baseline", payload)
	if err != nil {
		return fmt.Errorf("baseline request failed: %w", err)
	}
	body, err := readResponseBody(resp)
	if err != nil {
		return fmt.Errorf("failed to read baseline response: %w", err)
	}
	if resp.StatusCode != StatusCreated {
		return fmt.Errorf("baseline rejected with HTTP %d: %s", resp.StatusCode, string(body))
	}

	log.Println("✅ Baseline initialized")
	return nil
}

// declareWindow upserts one active window covering the middle of the series.
func declareWindow(ctx context.Context, client *HTTPClient, config *Config, name string, start, end time.Time) error {
	payload := windowPayload{
		Name:  name,
		Start: start.UTC().Format(time.RFC3339),
	}
	if !end.IsZero() {
		payload.End = end.UTC().Format(time.RFC3339)
	}

	resp, err := client.send(http.MethodPut, config.BaseURL+"/windows", payload)
	if err != nil {
		return fmt.Errorf("window request failed: %w", err)
	}
	body, err := readResponseBody(resp)
	if err != nil {
		return fmt.Errorf("failed to read window response: %w", err)
	}
	if resp.StatusCode != StatusOK {
		return fmt.Errorf("window rejected with HTTP %d: %s", resp.StatusCode, string(body))
	}

	log.Printf("🎯 Window %q declared: %s .. %s", name, payload.Start, payload.End)
	return nil
}

// feedSnapshots submits the ordered snapshot series. Submission is sequential
// on purpose: the tracker rejects snapshots older than its sequence tail, so
// each upload waits for acknowledgement before the clock advances.
func feedSnapshots(ctx context.Context, client *HTTPClient, config *Config, roster []*member, start time.Time, stats *Stats) ([]snapshotPayload, error) {
	log.Printf("📤 Feeding %d snapshots at %s steps...", config.Snapshots, config.Step)

	series := make([]snapshotPayload, 0, config.Snapshots)
	ts := start

	for i := 0; i < config.Snapshots; i++ {
		select {
		case <-ctx.Done():
			return series, fmt.Errorf("context cancelled during feed: %w", ctx.Err())
		default:
		}

		ts = ts.Add(config.Step)
		for _, m := range roster {
			m.advance()
		}

		snap := snapshotPayload{
			TS:       ts.UTC().Format(time.RFC3339),
			Entities: make([]entityMetrics, 0, len(roster)),
		}
		for _, m := range roster {
			snap.Entities = append(snap.Entities, m.row())
		}

		ack, err := submitSnapshot(ctx, client, config.BaseURL+"/snapshots", snap)
		stats.SnapshotsSubmitted++
		switch {
		case err != nil:
			stats.SnapshotsFailed++
			if config.Verbose {
				log.Printf("⚠️  Snapshot %d failed: %v", i, err)
			}
		case ack.Duplicate:
			stats.SnapshotsDuplicate++
		default:
			stats.SnapshotsAccepted++
			snap.UploadID = ack.UploadID
		}

		series = append(series, snap)

		if config.Verbose {
			log.Printf("📊 Snapshot %d/%d at %s submitted", i+1, config.Snapshots, snap.TS)
		}
	}

	log.Printf(`✅ Feed completed:
   Accepted: %d
   Duplicate: %d
   Failed: %d
`, stats.SnapshotsAccepted, stats.SnapshotsDuplicate, stats.SnapshotsFailed)

	return series, nil
}

// submitSnapshot posts one snapshot and interprets the acknowledgement.
func submitSnapshot(ctx context.Context, client *HTTPClient, url string, snap snapshotPayload) (AckResponse, error) {
	resp, err := client.send(http.MethodPost, url, snap)
	if err != nil {
		return AckResponse{}, err
	}

	body, err := readResponseBody(resp)
	if err != nil {
		return AckResponse{}, err
	}

	switch resp.StatusCode {
	case StatusAccepted, StatusOK:
		var ack AckResponse
		if err := json.Unmarshal(body, &ack); err != nil {
			return AckResponse{}, fmt.Errorf("failed to parse ack: %w", err)
		}
		return ack, nil
	default:
		return AckResponse{}, fmt.Errorf("HTTP %d: %s", resp.StatusCode, string(body))
	}
}

// waitForDrain polls /stats until the sequence holds the expected number of
// snapshots or the drain timeout elapses.
func waitForDrain(ctx context.Context, client *HTTPClient, config *Config, expected int) error {
	log.Printf("⏳ Waiting for %d snapshots to drain through the queue...", expected)

	deadline := time.Now().Add(drainTimeout)
	for {
		select {
		case <-ctx.Done():
			return fmt.Errorf("context cancelled while draining: %w", ctx.Err())
		default:
		}

		stats, err := fetchStats(client, config.BaseURL)
		if err == nil && stats.SequenceLength >= expected && stats.QueueLength == 0 {
			log.Printf("✅ Drained: sequence length %d", stats.SequenceLength)
			return nil
		}

		if time.Now().After(deadline) {
			if err != nil {
				return fmt.Errorf("drain timed out: %w", err)
			}
			return fmt.Errorf("drain timed out: sequence length %d of %d", stats.SequenceLength, expected)
		}

		time.Sleep(drainPollInterval)
	}
}

// fetchStats retrieves the service counters used for drain detection.
func fetchStats(client *HTTPClient, baseURL string) (statsResponse, error) {
	resp, err := client.Get(baseURL + "/stats")
	if err != nil {
		return statsResponse{}, fmt.Errorf("stats request failed: %w", err)
	}

	body, err := readResponseBody(resp)
	if err != nil {
		return statsResponse{}, fmt.Errorf("failed to read stats response: %w", err)
	}
	if resp.StatusCode != StatusOK {
		return statsResponse{}, fmt.Errorf("HTTP %d: %s", resp.StatusCode, string(body))
	}

	var stats statsResponse
	if err := json.Unmarshal(body, &stats); err != nil {
		return statsResponse{}, fmt.Errorf("failed to parse stats: %w", err)
	}
	return stats, nil
}
