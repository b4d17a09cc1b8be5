package storage

import "time"

// Run is one invocation of the submission pipeline
type Run struct {
	RunID             string
	StartedAt         time.Time
	FinishedAt        time.Time
	InputFile         string
	TotalURLs         int
	Successes         int
	Failures          int
	TerminationReason string
}

// Submission records the outcome of one processed URL
type Submission struct {
	ID             int
	RunID          string
	URL            string
	Domain         string
	StatusCode     int
	Outcome        string
	NotifyTime     string
	ServiceAccount string
	CreatedAt      time.Time
}

// Metrics tracks run statistics for export on exit
type Metrics struct {
	RunID             string    `json:"run_id"`
	StartTime         time.Time `json:"start_time"`
	EndTime           time.Time `json:"end_time"`
	TotalURLs         int       `json:"total_urls"`
	Successes         int       `json:"successes"`
	Failures          int       `json:"failures"`
	Updated           int       `json:"url_updated"`
	Deleted           int       `json:"url_deleted"`
	Skipped           int       `json:"url_skipped"`
	Unreachable       int       `json:"unreachable"`
	APIErrors         int       `json:"api_errors"`
	Errors            int       `json:"errors"`
	TerminationReason string    `json:"termination_reason"`
}
