package audit

import (
	"encoding/csv"
	"fmt"
	"os"
	"path/filepath"
	"strconv"
	"time"

	"github.com/sirupsen/logrus"
)

// Outcome labels recorded in the audit trail
const (
	StatusUpdated     = "URL_UPDATED"
	StatusDeleted     = "URL_DELETED"
	StatusSkipped     = "URL_SKIPPED"
	StatusUnreachable = "UNREACHABLE"
	StatusAPIError    = "API_ERROR"
	StatusError       = "ERROR"
)

var header = []string{"URL", "Status Code", "Status", "Notify Date", "Date", "Service Account"}

// Row is one audit entry. The run date column is filled in at write time.
type Row struct {
	URL            string
	StatusCode     int
	Status         string
	NotifyDate     string
	ServiceAccount string
}

// domainFile tracks the active output file for one domain
type domainFile struct {
	file  *os.File
	w     *csv.Writer
	index int
}

// Set manages one append-only CSV file per domain. Files are created on
// first write and every row is flushed and fsynced immediately so a crash
// cannot lose already-classified outcomes.
type Set struct {
	dir     string
	dateStr string
	files   map[string]*domainFile
}

// NewSet pre-allocates an empty record per domain. No files are opened
// until the first row for a domain arrives.
func NewSet(dir string, domains []string) *Set {
	s := &Set{
		dir:     dir,
		dateStr: time.Now().Format("2006-01-02"),
		files:   make(map[string]*domainFile),
	}
	for _, domain := range domains {
		s.files[domain] = &domainFile{}
	}
	return s
}

// Ensure opens the domain's output file if it is not already open. Callers
// must treat a failure here as a failed URL, not a fatal error.
func (s *Set) Ensure(domain string) error {
	h, ok := s.files[domain]
	if !ok {
		return fmt.Errorf("no audit record for domain %s", domain)
	}

	if h.file != nil {
		return nil
	}

	// Advance the index past any file that already exists for this
	// domain and date. Collisions increment, never overwrite.
	h.index++
	name := s.fileName(domain, h.index)
	for fileExists(name) {
		h.index++
		name = s.fileName(domain, h.index)
	}

	file, err := os.OpenFile(name, os.O_CREATE|os.O_APPEND|os.O_WRONLY, 0644)
	if err != nil {
		return fmt.Errorf("failed to create audit file for %s: %w", domain, err)
	}

	h.file = file
	h.w = csv.NewWriter(file)

	if err := h.w.Write(header); err != nil {
		s.dropFile(domain, h)
		return fmt.Errorf("failed to write audit header for %s: %w", domain, err)
	}

	logrus.Infof("Created audit file: %s", name)
	return nil
}

// Append writes one outcome row for the domain, then flushes and fsyncs.
// An I/O failure closes the file so the next write reopens with an
// incremented index.
func (s *Set) Append(domain string, row Row) error {
	if err := s.Ensure(domain); err != nil {
		return err
	}

	h := s.files[domain]
	record := []string{
		row.URL,
		strconv.Itoa(row.StatusCode),
		row.Status,
		row.NotifyDate,
		time.Now().Format("2006-01-02"),
		row.ServiceAccount,
	}

	if err := h.w.Write(record); err != nil {
		s.dropFile(domain, h)
		return fmt.Errorf("failed to write audit row for %s: %w", domain, err)
	}

	h.w.Flush()
	if err := h.w.Error(); err != nil {
		s.dropFile(domain, h)
		return fmt.Errorf("failed to flush audit row for %s: %w", domain, err)
	}

	if err := h.file.Sync(); err != nil {
		s.dropFile(domain, h)
		return fmt.Errorf("failed to sync audit file for %s: %w", domain, err)
	}

	return nil
}

// CloseAll flushes and closes every open audit file. Safe to call more
// than once.
func (s *Set) CloseAll() {
	for domain, h := range s.files {
		if h.file == nil {
			continue
		}

		h.w.Flush()
		if err := h.file.Close(); err != nil {
			logrus.Errorf("Error closing audit file for domain %s: %v", domain, err)
		} else {
			logrus.Infof("Closed audit file for domain: %s", domain)
		}
		h.file = nil
		h.w = nil
	}
}

func (s *Set) fileName(domain string, index int) string {
	return filepath.Join(s.dir, fmt.Sprintf("%s_%s_%d.csv", domain, s.dateStr, index))
}

// dropFile abandons a broken file handle so the next write reopens a
// fresh file with an incremented index
func (s *Set) dropFile(domain string, h *domainFile) {
	if h.file != nil {
		if err := h.file.Close(); err != nil {
			logrus.Errorf("Error closing audit file for domain %s: %v", domain, err)
		}
	}
	h.file = nil
	h.w = nil
}

func fileExists(path string) bool {
	_, err := os.Stat(path)
	return err == nil
}
