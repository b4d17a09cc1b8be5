package metrics

import (
	"encoding/json"
	"fmt"
	"os"
	"sync"
	"time"

	"github.com/alvmarrod/index-weaver/internal/audit"
	"github.com/alvmarrod/index-weaver/internal/storage"
)

// Tracker holds and manages run counters
type Tracker struct {
	mu   sync.Mutex
	data storage.Metrics
}

// NewTracker creates a new metrics tracker for a run
func NewTracker(runID string) *Tracker {
	return &Tracker{
		data: storage.Metrics{
			RunID:     runID,
			StartTime: time.Now(),
		},
	}
}

// SetTotalURLs records the size of the input list
func (t *Tracker) SetTotalURLs(n int) {
	t.mu.Lock()
	defer t.mu.Unlock()
	t.data.TotalURLs = n
}

// RecordOutcome counts one audit outcome. Successful submissions increment
// the success counter, everything else the failure counter.
func (t *Tracker) RecordOutcome(outcome string, success bool) {
	t.mu.Lock()
	defer t.mu.Unlock()

	if success {
		t.data.Successes++
	} else {
		t.data.Failures++
	}

	switch outcome {
	case audit.StatusUpdated:
		t.data.Updated++
	case audit.StatusDeleted:
		t.data.Deleted++
	case audit.StatusSkipped:
		t.data.Skipped++
	case audit.StatusUnreachable:
		t.data.Unreachable++
	case audit.StatusAPIError:
		t.data.APIErrors++
	case audit.StatusError:
		t.data.Errors++
	}
}

// IncrementFailures counts a URL that failed before classification, such as
// an audit file that could not be created
func (t *Tracker) IncrementFailures() {
	t.mu.Lock()
	defer t.mu.Unlock()
	t.data.Failures++
}

// GetSnapshot returns a copy of current metrics
func (t *Tracker) GetSnapshot() storage.Metrics {
	t.mu.Lock()
	defer t.mu.Unlock()
	return t.data
}

// WriteToFile exports metrics to a JSON file
func (t *Tracker) WriteToFile(path, reason string) error {
	t.mu.Lock()
	defer t.mu.Unlock()

	// Finalize metrics
	t.data.EndTime = time.Now()
	t.data.TerminationReason = reason

	// Marshal to JSON
	jsonData, err := json.MarshalIndent(t.data, "", "  ")
	if err != nil {
		return fmt.Errorf("failed to marshal metrics: %w", err)
	}

	// Write to file
	if err := os.WriteFile(path, jsonData, 0644); err != nil {
		return fmt.Errorf("failed to write metrics file: %w", err)
	}

	return nil
}

// LogProgress prints current counters to console (for periodic updates)
func (t *Tracker) LogProgress() string {
	t.mu.Lock()
	defer t.mu.Unlock()

	return fmt.Sprintf("URLs: %d total, %d succeeded, %d failed | Updated: %d | Deleted: %d | Skipped: %d | Unreachable: %d | API errors: %d",
		t.data.TotalURLs,
		t.data.Successes,
		t.data.Failures,
		t.data.Updated,
		t.data.Deleted,
		t.data.Skipped,
		t.data.Unreachable,
		t.data.APIErrors,
	)
}
