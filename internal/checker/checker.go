package checker

import (
	"time"

	"github.com/gocolly/colly/v2"
	"github.com/sirupsen/logrus"
)

const browserUserAgent = "Mozilla/5.0 (Windows NT 10.0; Win64; x64) AppleWebKit/537.36"

// retryableStatuses are transient codes worth another attempt
var retryableStatuses = map[int]bool{
	429: true,
	500: true,
	502: true,
	503: true,
	504: true,
}

// Checker performs liveness probes against URLs. It is the single boundary
// that converts network failures into the 0 sentinel; Status never returns
// an error. Not safe for concurrent use - the pipeline is single-threaded.
type Checker struct {
	collector  *colly.Collector
	attempts   int
	retryDelay time.Duration
	lastStatus int
}

// New creates a checker with the given request timeout, number of retry
// attempts and base backoff delay.
func New(timeout time.Duration, attempts int, retryDelay time.Duration) *Checker {
	c := &Checker{
		attempts:   attempts,
		retryDelay: retryDelay,
	}

	c.setupColly(timeout)
	return c
}

// setupColly configures the Colly collector with callbacks
func (c *Checker) setupColly(timeout time.Duration) {
	c.collector = colly.NewCollector(
		colly.UserAgent(browserUserAgent),
		colly.AllowURLRevisit(), // Required for retries
		colly.IgnoreRobotsTxt(),
	)

	c.collector.SetRequestTimeout(timeout)

	// Successful (2xx) responses
	c.collector.OnResponse(func(r *colly.Response) {
		c.lastStatus = r.StatusCode
	})

	// Non-2xx responses and network failures. Colly reports a zero
	// StatusCode when the request never produced a response, which is
	// exactly the unreachable sentinel.
	c.collector.OnError(func(r *colly.Response, err error) {
		if r != nil {
			c.lastStatus = r.StatusCode
		} else {
			c.lastStatus = 0
		}
		logrus.Debugf("Liveness check error: %v (status: %d)", err, c.lastStatus)
	})
}

// Status issues an HTTP GET for the URL, following redirects, and returns
// the final status code, or 0 if the URL is unreachable after all retries.
func (c *Checker) Status(rawURL string) int {
	status := c.visit(rawURL)

	for attempt := 1; attempt <= c.attempts; attempt++ {
		if status != 0 && !retryableStatuses[status] {
			break
		}

		delay := c.retryDelay * time.Duration(1<<(attempt-1))
		logrus.Debugf("Retrying %s in %v (attempt %d/%d, status %d)",
			rawURL, delay, attempt, c.attempts, status)
		time.Sleep(delay)

		status = c.visit(rawURL)
	}

	return status
}

// visit performs a single GET and returns its status code or 0
func (c *Checker) visit(rawURL string) int {
	c.lastStatus = 0

	// Visit also returns an error for non-2xx statuses; those still carry
	// a usable status code captured by OnError, so only log hard failures.
	if err := c.collector.Visit(rawURL); err != nil && c.lastStatus == 0 {
		logrus.Errorf("Error checking URL %s: %v", rawURL, err)
	}

	return c.lastStatus
}
