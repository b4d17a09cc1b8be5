package storage

import (
	"database/sql"
	"fmt"

	_ "github.com/mattn/go-sqlite3"
)

// Storage handles all run-history database operations
type Storage struct {
	db *sql.DB
}

// NewStorage creates a new Storage instance, opening/creating the DB and initializing schema
func NewStorage(dbPath string) (*Storage, error) {
	db, err := sql.Open("sqlite3", dbPath+"?_journal_mode=WAL&_synchronous=NORMAL")
	if err != nil {
		return nil, fmt.Errorf("failed to open database: %w", err)
	}

	// Test connection
	if err := db.Ping(); err != nil {
		return nil, fmt.Errorf("failed to connect to database: %w", err)
	}

	storage := &Storage{db: db}

	// Initialize schema
	if err := storage.initSchema(); err != nil {
		db.Close()
		return nil, fmt.Errorf("failed to initialize schema: %w", err)
	}

	return storage, nil
}

// initSchema creates tables and indices if they don't exist
func (s *Storage) initSchema() error {
	schema := `
	CREATE TABLE IF NOT EXISTS runs (
		run_id TEXT PRIMARY KEY,
		started_at TIMESTAMP NOT NULL,
		finished_at TIMESTAMP,
		input_file TEXT,
		total_urls INTEGER DEFAULT 0,
		successes INTEGER DEFAULT 0,
		failures INTEGER DEFAULT 0,
		termination_reason TEXT
	);

	CREATE TABLE IF NOT EXISTS submissions (
		id INTEGER PRIMARY KEY AUTOINCREMENT,
		run_id TEXT NOT NULL,
		url TEXT NOT NULL,
		domain TEXT NOT NULL,
		status_code INTEGER NOT NULL,
		outcome TEXT NOT NULL,
		notify_time TEXT,
		service_account TEXT,
		created_at TIMESTAMP DEFAULT CURRENT_TIMESTAMP,
		FOREIGN KEY (run_id) REFERENCES runs(run_id)
	);

	CREATE INDEX IF NOT EXISTS idx_submissions_run ON submissions(run_id);
	CREATE INDEX IF NOT EXISTS idx_submissions_domain ON submissions(domain);
	`

	_, err := s.db.Exec(schema)
	return err
}

// StartRun records the beginning of a pipeline run
func (s *Storage) StartRun(run *Run) error {
	_, err := s.db.Exec(`
		INSERT INTO runs (run_id, started_at, input_file, total_urls)
		VALUES (?, ?, ?, ?)
	`, run.RunID, run.StartedAt, run.InputFile, run.TotalURLs)

	if err != nil {
		return fmt.Errorf("failed to insert run: %w", err)
	}
	return nil
}

// RecordSubmission stores one outcome row, mirroring the CSV audit trail
func (s *Storage) RecordSubmission(sub *Submission) error {
	_, err := s.db.Exec(`
		INSERT INTO submissions (run_id, url, domain, status_code, outcome, notify_time, service_account)
		VALUES (?, ?, ?, ?, ?, ?, ?)
	`, sub.RunID, sub.URL, sub.Domain, sub.StatusCode, sub.Outcome, sub.NotifyTime, sub.ServiceAccount)

	if err != nil {
		return fmt.Errorf("failed to insert submission: %w", err)
	}
	return nil
}

// FinishRun records the final counters and termination reason for a run
func (s *Storage) FinishRun(run *Run) error {
	_, err := s.db.Exec(`
		UPDATE runs
		SET finished_at = ?, total_urls = ?, successes = ?, failures = ?, termination_reason = ?
		WHERE run_id = ?
	`, run.FinishedAt, run.TotalURLs, run.Successes, run.Failures, run.TerminationReason, run.RunID)

	if err != nil {
		return fmt.Errorf("failed to finish run: %w", err)
	}
	return nil
}

// GetRun retrieves a run by id, returns nil if not found
func (s *Storage) GetRun(runID string) (*Run, error) {
	var run Run
	var finishedAt sql.NullTime
	var reason sql.NullString

	err := s.db.QueryRow(`
		SELECT run_id, started_at, finished_at, input_file, total_urls, successes, failures, termination_reason
		FROM runs
		WHERE run_id = ?
	`, runID).Scan(&run.RunID, &run.StartedAt, &finishedAt, &run.InputFile,
		&run.TotalURLs, &run.Successes, &run.Failures, &reason)

	if err == sql.ErrNoRows {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("failed to get run: %w", err)
	}

	if finishedAt.Valid {
		run.FinishedAt = finishedAt.Time
	}
	if reason.Valid {
		run.TerminationReason = reason.String
	}

	return &run, nil
}

// CountOutcomes returns the number of submissions per outcome label for a run
func (s *Storage) CountOutcomes(runID string) (map[string]int, error) {
	rows, err := s.db.Query(`
		SELECT outcome, COUNT(*)
		FROM submissions
		WHERE run_id = ?
		GROUP BY outcome
	`, runID)

	if err != nil {
		return nil, fmt.Errorf("failed to count outcomes: %w", err)
	}
	defer rows.Close()

	counts := make(map[string]int)
	for rows.Next() {
		var outcome string
		var n int
		if err := rows.Scan(&outcome, &n); err != nil {
			return nil, fmt.Errorf("failed to scan outcome count: %w", err)
		}
		counts[outcome] = n
	}

	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("error iterating outcome counts: %w", err)
	}

	return counts, nil
}

// Close closes the database connection
func (s *Storage) Close() error {
	return s.db.Close()
}
