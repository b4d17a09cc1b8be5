package pipeline_test

import (
	"context"
	"errors"
	"fmt"
	"testing"

	"github.com/alvmarrod/index-weaver/internal/audit"
	"github.com/alvmarrod/index-weaver/internal/credentials"
	"github.com/alvmarrod/index-weaver/internal/metrics"
	"github.com/alvmarrod/index-weaver/internal/pipeline"
	"github.com/alvmarrod/index-weaver/internal/storage"
	"github.com/alvmarrod/index-weaver/internal/submit"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type fakeChecker struct {
	statuses map[string]int
}

func (f *fakeChecker) Status(rawURL string) int {
	return f.statuses[rawURL]
}

type auditedRow struct {
	domain string
	row    audit.Row
}

type fakeAudit struct {
	rows       []auditedRow
	failEnsure bool
}

func (f *fakeAudit) Ensure(domain string) error {
	if f.failEnsure {
		return errors.New("permission denied")
	}
	return nil
}

func (f *fakeAudit) Append(domain string, row audit.Row) error {
	f.rows = append(f.rows, auditedRow{domain: domain, row: row})
	return nil
}

type fakeHistory struct {
	subs []*storage.Submission
}

func (f *fakeHistory) RecordSubmission(sub *storage.Submission) error {
	f.subs = append(f.subs, sub)
	return nil
}

type publishCall struct {
	url        string
	actionType string
}

type fakePublisher struct {
	account string
	calls   []publishCall
	err     error
	notify  string
}

func (f *fakePublisher) Publish(ctx context.Context, rawURL, notificationType string) (*submit.Result, error) {
	f.calls = append(f.calls, publishCall{url: rawURL, actionType: notificationType})
	if f.err != nil {
		return nil, f.err
	}
	return &submit.Result{NotifyTime: f.notify}, nil
}

// harness bundles the pipeline with its fakes for scenario tests
type harness struct {
	pipeline   *pipeline.Pipeline
	audit      *fakeAudit
	history    *fakeHistory
	publishers map[string]*fakePublisher
	tracker    *metrics.Tracker
}

func newHarness(t *testing.T, keyFiles []string, quota int, statuses map[string]int, publishErr error) *harness {
	t.Helper()

	h := &harness{
		audit:      &fakeAudit{},
		history:    &fakeHistory{},
		publishers: make(map[string]*fakePublisher),
		tracker:    metrics.NewTracker("test-run"),
	}

	load := func(ctx context.Context, keyFile string) (submit.Publisher, error) {
		pub := &fakePublisher{
			account: credentials.AccountName(keyFile),
			err:     publishErr,
			notify:  "2024-03-01T12:34:56Z",
		}
		h.publishers[pub.account] = pub
		return pub, nil
	}

	rotator := credentials.NewRotator(keyFiles, quota, load)
	h.pipeline = pipeline.New(rotator, &fakeChecker{statuses: statuses}, h.audit,
		h.history, h.tracker, "test-run", 0)
	return h
}

func TestRunAllUpdated(t *testing.T) {
	t.Parallel()

	urls := []string{
		"https://example.com/a",
		"https://example.com/b",
		"https://example.com/c",
	}
	statuses := map[string]int{urls[0]: 200, urls[1]: 200, urls[2]: 200}
	h := newHarness(t, []string{"acct1.json"}, 200, statuses, nil)

	sum, err := h.pipeline.Run(context.Background(), urls)
	require.NoError(t, err)

	assert.Equal(t, 3, sum.TotalURLs)
	assert.Equal(t, 3, sum.Successes)
	assert.Equal(t, 0, sum.Failures)
	assert.Equal(t, pipeline.ReasonCompleted, sum.Reason)

	require.Len(t, h.audit.rows, 3)
	for i, entry := range h.audit.rows {
		assert.Equal(t, "example.com", entry.domain)
		assert.Equal(t, urls[i], entry.row.URL)
		assert.Equal(t, audit.StatusUpdated, entry.row.Status)
		assert.Equal(t, 200, entry.row.StatusCode)
		assert.Equal(t, "2024-03-01 12:34:56", entry.row.NotifyDate)
		assert.Equal(t, "acct1", entry.row.ServiceAccount)
	}

	require.Len(t, h.publishers["acct1"].calls, 3)
	assert.Equal(t, submit.TypeUpdated, h.publishers["acct1"].calls[0].actionType)

	assert.Len(t, h.history.subs, 3)
}

func TestRunUnreachable(t *testing.T) {
	t.Parallel()

	urls := []string{"https://example.com/down"}
	h := newHarness(t, []string{"acct1.json"}, 200, map[string]int{urls[0]: 0}, nil)

	sum, err := h.pipeline.Run(context.Background(), urls)
	require.NoError(t, err)

	assert.Equal(t, 0, sum.Successes)
	assert.Equal(t, 1, sum.Failures)

	require.Len(t, h.audit.rows, 1)
	assert.Equal(t, audit.StatusUnreachable, h.audit.rows[0].row.Status)
	assert.Equal(t, 0, h.audit.rows[0].row.StatusCode)
	assert.Equal(t, "N/A", h.audit.rows[0].row.NotifyDate)

	// Unreachable URLs are never submitted
	assert.Empty(t, h.publishers["acct1"].calls)
}

func TestRunGoneSubmitsDeleted(t *testing.T) {
	t.Parallel()

	urls := []string{"https://example.com/gone"}
	h := newHarness(t, []string{"acct1.json"}, 200, map[string]int{urls[0]: 404}, nil)

	sum, err := h.pipeline.Run(context.Background(), urls)
	require.NoError(t, err)

	assert.Equal(t, 1, sum.Successes)
	require.Len(t, h.audit.rows, 1)
	assert.Equal(t, audit.StatusDeleted, h.audit.rows[0].row.Status)

	require.Len(t, h.publishers["acct1"].calls, 1)
	assert.Equal(t, submit.TypeDeleted, h.publishers["acct1"].calls[0].actionType)
}

func TestRunRedirectSkipped(t *testing.T) {
	t.Parallel()

	urls := []string{"https://example.com/moved"}
	h := newHarness(t, []string{"acct1.json"}, 200, map[string]int{urls[0]: 301}, nil)

	sum, err := h.pipeline.Run(context.Background(), urls)
	require.NoError(t, err)

	assert.Equal(t, 0, sum.Successes)
	assert.Equal(t, 1, sum.Failures)

	require.Len(t, h.audit.rows, 1)
	assert.Equal(t, audit.StatusSkipped, h.audit.rows[0].row.Status)
	assert.Empty(t, h.publishers["acct1"].calls)
}

func TestRunAPIErrorRecorded(t *testing.T) {
	t.Parallel()

	urls := []string{"https://example.com/a"}
	h := newHarness(t, []string{"acct1.json"}, 200, map[string]int{urls[0]: 200},
		errors.New("quota exceeded"))

	sum, err := h.pipeline.Run(context.Background(), urls)
	require.NoError(t, err)

	// The submission failed, so it is not a success even though the URL
	// classified as URL_UPDATED
	assert.Equal(t, 0, sum.Successes)
	assert.Equal(t, 1, sum.Failures)

	require.Len(t, h.audit.rows, 1)
	assert.Equal(t, audit.StatusAPIError, h.audit.rows[0].row.Status)
	assert.Equal(t, 200, h.audit.rows[0].row.StatusCode)
	assert.Equal(t, "N/A", h.audit.rows[0].row.NotifyDate)
}

func TestRunRotatesAfterQuota(t *testing.T) {
	t.Parallel()

	var urls []string
	statuses := make(map[string]int)
	for i := 0; i < 201; i++ {
		u := fmt.Sprintf("https://example.com/p%d", i)
		urls = append(urls, u)
		statuses[u] = 200
	}

	h := newHarness(t, []string{"acct1.json", "acct2.json"}, 200, statuses, nil)

	sum, err := h.pipeline.Run(context.Background(), urls)
	require.NoError(t, err)

	assert.Equal(t, 201, sum.Successes)
	require.Len(t, h.audit.rows, 201)

	// First 200 under source 1, the 201st under source 2
	assert.Equal(t, "acct1", h.audit.rows[199].row.ServiceAccount)
	assert.Equal(t, "acct2", h.audit.rows[200].row.ServiceAccount)

	assert.Len(t, h.publishers["acct1"].calls, 200)
	assert.Len(t, h.publishers["acct2"].calls, 1)
}

func TestRunStopsWhenCredentialsExhausted(t *testing.T) {
	t.Parallel()

	urls := []string{
		"https://example.com/a",
		"https://example.com/b",
		"https://example.com/c",
	}
	statuses := map[string]int{urls[0]: 200, urls[1]: 200, urls[2]: 200}
	h := newHarness(t, []string{"acct1.json"}, 1, statuses, nil)

	sum, err := h.pipeline.Run(context.Background(), urls)
	require.NoError(t, err)

	assert.Equal(t, pipeline.ReasonExhausted, sum.Reason)
	assert.Equal(t, 1, sum.Successes)
	require.Len(t, h.audit.rows, 1)
}

func TestRunSkipsInvalidURLs(t *testing.T) {
	t.Parallel()

	urls := []string{"relative/path", "https://example.com/a"}
	h := newHarness(t, []string{"acct1.json"}, 200,
		map[string]int{"https://example.com/a": 200}, nil)

	sum, err := h.pipeline.Run(context.Background(), urls)
	require.NoError(t, err)

	// The malformed URL yields no audit row at all
	assert.Equal(t, 1, sum.Successes)
	assert.Equal(t, 0, sum.Failures)
	require.Len(t, h.audit.rows, 1)
	assert.Equal(t, "https://example.com/a", h.audit.rows[0].row.URL)
}

func TestRunCountsAuditFailureAsFailed(t *testing.T) {
	t.Parallel()

	urls := []string{"https://example.com/a"}
	h := newHarness(t, []string{"acct1.json"}, 200, map[string]int{urls[0]: 200}, nil)
	h.audit.failEnsure = true

	sum, err := h.pipeline.Run(context.Background(), urls)
	require.NoError(t, err)

	assert.Equal(t, 0, sum.Successes)
	assert.Equal(t, 1, sum.Failures)
	assert.Empty(t, h.audit.rows)
	assert.Empty(t, h.publishers["acct1"].calls)
}

func TestRunInterrupted(t *testing.T) {
	t.Parallel()

	urls := []string{"https://example.com/a"}
	h := newHarness(t, []string{"acct1.json"}, 200, map[string]int{urls[0]: 200}, nil)

	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	sum, err := h.pipeline.Run(ctx, urls)
	require.NoError(t, err)

	assert.Equal(t, pipeline.ReasonInterrupted, sum.Reason)
	assert.Empty(t, h.audit.rows)
}

func TestRunInitialCredentialFailureIsFatal(t *testing.T) {
	t.Parallel()

	boom := errors.New("bad key material")
	load := func(ctx context.Context, keyFile string) (submit.Publisher, error) {
		return nil, boom
	}

	rotator := credentials.NewRotator([]string{"acct1.json"}, 200, load)
	p := pipeline.New(rotator, &fakeChecker{}, &fakeAudit{}, nil,
		metrics.NewTracker("test-run"), "test-run", 0)

	sum, err := p.Run(context.Background(), []string{"https://example.com/a"})
	assert.ErrorIs(t, err, boom)
	assert.Equal(t, pipeline.ReasonFatalError, sum.Reason)
}
