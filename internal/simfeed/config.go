package simfeed

import "time"

// Config holds configuration for one simulated feed run.
type Config struct {
	BaseURL    string        // Base URL of the service
	Entities   int           // Number of entities in the synthetic roster
	Snapshots  int           // Number of snapshots to feed after the baseline
	Step       time.Duration // Simulated time between consecutive snapshots
	Workers    int           // Number of concurrent workers for roster generation
	Timeout    time.Duration // HTTP request timeout
	TopN       int           // Number of leaderboard entries to fetch per metric
	OutputFile string        // Output file for the generated snapshot series
	LogFile    string        // Log file for run output
	Verbose    bool          // Enable verbose logging
}

// metricVector mirrors the service's wire shape for one measured vector.
type metricVector struct {
	Power      int64 `json:"power"`
	KillsTier4 int64 `json:"kills_tier4"`
	KillsTier5 int64 `json:"kills_tier5"`
	Losses     int64 `json:"losses"`
}

// entityMetrics is one entity's row inside a snapshot or baseline payload.
type entityMetrics struct {
	EntityID string       `json:"entity_id"`
	Name     string       `json:"name,omitempty"`
	Metrics  metricVector `json:"metrics"`
}

// snapshotPayload is the POST /snapshots request body.
type snapshotPayload struct {
	UploadID string          `json:"upload_id,omitempty"`
	TS       string          `json:"ts"`
	Entities []entityMetrics `json:"entities"`
}

// baselinePayload is the POST /baseline request body.
type baselinePayload struct {
	Entities []entityMetrics `json:"entities"`
}

// windowPayload is the PUT /windows request body.
type windowPayload struct {
	Name  string `json:"name"`
	Start string `json:"start"`
	End   string `json:"end,omitempty"`
}

// AckResponse is the response from snapshot submission.
type AckResponse struct {
	Status    string `json:"status"`
	UploadID  string `json:"upload_id"`
	Duplicate bool   `json:"duplicate"`
}

// attributionEntity is one row of the GET /attribution report.
type attributionEntity struct {
	EntityID string       `json:"entity_id"`
	Name     string       `json:"name"`
	Total    metricVector `json:"total"`
	InWindow metricVector `json:"in_window"`
	Outside  metricVector `json:"outside"`
}

// attributionReport is the GET /attribution response body.
type attributionReport struct {
	Entities []attributionEntity `json:"entities"`
}

// leaderboardEntry is one ranked row of the GET /leaderboard response.
type leaderboardEntry struct {
	Rank     int    `json:"rank"`
	EntityID string `json:"entity_id"`
	Metric   string `json:"metric"`
	InWindow int64  `json:"in_window"`
	Outside  int64  `json:"outside"`
	Total    int64  `json:"total"`
}

// leaderboardResponse is the GET /leaderboard response body.
type leaderboardResponse struct {
	Metric  string             `json:"metric"`
	Entries []leaderboardEntry `json:"entries"`
}

// statsResponse carries the subset of GET /stats used to wait for drain.
type statsResponse struct {
	QueueLength    int `json:"queueLength"`
	SequenceLength int `json:"sequenceLength"`
	BaselineSize   int `json:"baselineSize"`
}

// Stats holds run statistics.
type Stats struct {
	RosterSize          int
	SnapshotsSubmitted  int
	SnapshotsAccepted   int
	SnapshotsDuplicate  int
	SnapshotsFailed     int
	EntitiesAttributed  int
	ConservationChecked int
	LeaderboardsFetched int
	StartTime           time.Time
	EndTime             time.Time
	Duration            time.Duration
}
