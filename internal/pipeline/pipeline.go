package pipeline

import (
	"context"
	"errors"
	"time"

	"github.com/alvmarrod/index-weaver/internal/audit"
	"github.com/alvmarrod/index-weaver/internal/credentials"
	"github.com/alvmarrod/index-weaver/internal/metrics"
	"github.com/alvmarrod/index-weaver/internal/storage"
	"github.com/alvmarrod/index-weaver/internal/submit"
	"github.com/alvmarrod/index-weaver/internal/urllist"
	"github.com/sirupsen/logrus"
)

// Termination reasons reported in the run summary
const (
	ReasonCompleted   = "completed"
	ReasonInterrupted = "interrupted"
	ReasonExhausted   = "credentials_exhausted"
	ReasonFatalError  = "fatal_error"
)

// StatusChecker determines a URL's liveness status code
type StatusChecker interface {
	Status(rawURL string) int
}

// AuditLog receives one outcome row per processed URL
type AuditLog interface {
	Ensure(domain string) error
	Append(domain string, row audit.Row) error
}

// History persists outcome rows to the run-history store
type History interface {
	RecordSubmission(sub *storage.Submission) error
}

// Summary reports the final counters of a run
type Summary struct {
	TotalURLs int
	Successes int
	Failures  int
	Reason    string
}

// Pipeline is the linear per-URL processing loop: rotate credentials,
// check liveness, classify, submit, record. Single-threaded by design.
type Pipeline struct {
	rotator *credentials.Rotator
	checker StatusChecker
	audit   AuditLog
	history History
	tracker *metrics.Tracker
	runID   string
	delay   time.Duration
}

// New creates a pipeline. history may be nil to disable the run-history
// store.
func New(rotator *credentials.Rotator, checker StatusChecker, auditLog AuditLog,
	history History, tracker *metrics.Tracker, runID string, delay time.Duration) *Pipeline {
	return &Pipeline{
		rotator: rotator,
		checker: checker,
		audit:   auditLog,
		history: history,
		tracker: tracker,
		runID:   runID,
		delay:   delay,
	}
}

// Run processes every URL in order. Per-URL failures are recorded and the
// loop continues; only setup failures and credential exhaustion stop it.
// The summary is always returned, also alongside an error.
func (p *Pipeline) Run(ctx context.Context, urls []string) (*Summary, error) {
	sum := &Summary{TotalURLs: len(urls), Reason: ReasonCompleted}

	// An unusable first account is a setup failure
	acct, err := p.rotator.Current(ctx)
	if err != nil {
		sum.Reason = ReasonFatalError
		return sum, err
	}

	logrus.Infof("Processing %d URLs", len(urls))

	for idx, rawURL := range urls {
		select {
		case <-ctx.Done():
			logrus.Warn("Run interrupted, stopping")
			sum.Reason = ReasonInterrupted
			return sum, nil
		default:
		}

		// Rotate before processing once the quota is reached
		if p.rotator.NeedsRotation() {
			acct, err = p.rotator.Advance(ctx)
			if errors.Is(err, credentials.ErrExhausted) {
				logrus.Warn("All service accounts exhausted")
				sum.Reason = ReasonExhausted
				return sum, nil
			}
			if err != nil {
				logrus.Errorf("Failed to load next credentials, stopping: %v", err)
				sum.Reason = ReasonFatalError
				return sum, err
			}
		}

		domain, err := urllist.Authority(rawURL)
		if err != nil || domain == "" {
			logrus.Warnf("Invalid URL, skipping: %s", rawURL)
			continue
		}

		if err := p.audit.Ensure(domain); err != nil {
			logrus.Errorf("Could not open audit file for %s, skipping %s: %v", domain, rawURL, err)
			sum.Failures++
			p.tracker.IncrementFailures()
			continue
		}

		logrus.Infof("[%d/%d] Checking URL: %s", idx+1, len(urls), rawURL)
		status := p.checker.Status(rawURL)

		if p.process(ctx, sum, acct, rawURL, domain, status) {
			p.rotator.MarkProcessed()

			// Small delay to avoid rate limiting
			time.Sleep(p.delay)
		}
	}

	return sum, nil
}

// process classifies one URL and handles its outcome. Returns true when the
// URL counts against the active account's quota. A panic anywhere in the
// outcome handling is converted into an ERROR row so one bad URL cannot
// abort the run.
func (p *Pipeline) process(ctx context.Context, sum *Summary, acct *credentials.Account,
	rawURL, domain string, status int) (counted bool) {

	defer func() {
		if r := recover(); r != nil {
			logrus.Errorf("Unexpected error processing %s: %v", rawURL, r)
			p.writeOutcome(domain, rawURL, status, audit.StatusError, "N/A", acct.Name)
			sum.Failures++
			p.tracker.RecordOutcome(audit.StatusError, false)
			counted = false
		}
	}()

	switch Classify(status) {
	case ActionUnreachable:
		logrus.Warnf("Could not reach URL: %s", rawURL)
		p.writeOutcome(domain, rawURL, status, audit.StatusUnreachable, "N/A", acct.Name)
		sum.Failures++
		p.tracker.RecordOutcome(audit.StatusUnreachable, false)
		return false

	case ActionSkip:
		logrus.Infof("Skipping URL due to status %d: %s", status, rawURL)
		p.writeOutcome(domain, rawURL, status, audit.StatusSkipped, "N/A", acct.Name)
		sum.Failures++
		p.tracker.RecordOutcome(audit.StatusSkipped, false)
		return true

	case ActionSubmitUpdated:
		p.submitURL(ctx, sum, acct, rawURL, domain, status, submit.TypeUpdated)
		return true

	case ActionSubmitDeleted:
		p.submitURL(ctx, sum, acct, rawURL, domain, status, submit.TypeDeleted)
		return true
	}

	return false
}

// submitURL publishes one URL and records the callback's result. All
// per-call state is bound into the callback closure at submission time so
// later URLs cannot corrupt an earlier callback's context.
func (p *Pipeline) submitURL(ctx context.Context, sum *Summary, acct *credentials.Account,
	rawURL, domain string, status int, actionType string) {

	logrus.Infof("Status %d - Submitting %s for: %s", status, actionType, rawURL)

	callback := func(res *submit.Result, err error) {
		if err != nil {
			logrus.Errorf("API error for %s: %v", rawURL, err)
			p.writeOutcome(domain, rawURL, status, audit.StatusAPIError, "N/A", acct.Name)
			sum.Failures++
			p.tracker.RecordOutcome(audit.StatusAPIError, false)
			return
		}

		notifyDate := submit.FormatNotifyTime(res.NotifyTime)
		logrus.Infof("API success for %s (notify time: %s)", rawURL, notifyDate)

		// The row is labeled with the action type that was requested,
		// not reinterpreted from the response
		p.writeOutcome(domain, rawURL, status, actionType, notifyDate, acct.Name)
		sum.Successes++
		p.tracker.RecordOutcome(actionType, true)
	}

	submit.Submit(ctx, acct.Publisher, rawURL, actionType, callback)
}

// writeOutcome records one outcome in the CSV audit trail and the
// run-history store. Recording failures are logged, never fatal.
func (p *Pipeline) writeOutcome(domain, rawURL string, status int, outcome, notifyDate, account string) {
	row := audit.Row{
		URL:            rawURL,
		StatusCode:     status,
		Status:         outcome,
		NotifyDate:     notifyDate,
		ServiceAccount: account,
	}
	if err := p.audit.Append(domain, row); err != nil {
		logrus.Errorf("Failed to write audit row for %s: %v", rawURL, err)
	}

	if p.history == nil {
		return
	}
	sub := &storage.Submission{
		RunID:          p.runID,
		URL:            rawURL,
		Domain:         domain,
		StatusCode:     status,
		Outcome:        outcome,
		NotifyTime:     notifyDate,
		ServiceAccount: account,
	}
	if err := p.history.RecordSubmission(sub); err != nil {
		logrus.Errorf("Failed to record submission history for %s: %v", rawURL, err)
	}
}
