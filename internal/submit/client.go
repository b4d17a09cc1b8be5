package submit

import (
	"context"

	"google.golang.org/api/indexing/v3"
)

// Notification types accepted by the Indexing API
const (
	TypeUpdated = "URL_UPDATED"
	TypeDeleted = "URL_DELETED"
)

// Result is the relevant part of a publish response
type Result struct {
	// NotifyTime is the raw RFC3339 timestamp reported by the API,
	// empty if the response carried none
	NotifyTime string
}

// Callback receives the outcome of a single submission. It is invoked
// exactly once per Submit call.
type Callback func(res *Result, err error)

// Publisher sends one classified URL to the remote indexing API
type Publisher interface {
	Publish(ctx context.Context, rawURL, notificationType string) (*Result, error)
}

// Client wraps the Google Indexing API service
type Client struct {
	svc *indexing.Service
}

// NewClient creates a submission client around an authorized indexing service
func NewClient(svc *indexing.Service) *Client {
	return &Client{svc: svc}
}

// Publish sends a single URL notification and returns the parsed result
func (c *Client) Publish(ctx context.Context, rawURL, notificationType string) (*Result, error) {
	resp, err := c.svc.UrlNotifications.Publish(&indexing.UrlNotification{
		Url:  rawURL,
		Type: notificationType,
	}).Context(ctx).Do()
	if err != nil {
		return nil, err
	}

	return resultFromResponse(resp), nil
}

// resultFromResponse extracts the notification timestamp from whichever
// metadata field the API populated (update vs. removal)
func resultFromResponse(resp *indexing.PublishUrlNotificationResponse) *Result {
	res := &Result{}

	meta := resp.UrlNotificationMetadata
	if meta == nil {
		return res
	}

	if meta.LatestUpdate != nil {
		res.NotifyTime = meta.LatestUpdate.NotifyTime
	} else if meta.LatestRemove != nil {
		res.NotifyTime = meta.LatestRemove.NotifyTime
	}

	return res
}

// Submit issues one publish request (a batch of size one) and invokes cb
// exactly once with the outcome. All per-call context must be captured in
// the callback closure by the caller.
func Submit(ctx context.Context, pub Publisher, rawURL, notificationType string, cb Callback) {
	res, err := pub.Publish(ctx, rawURL, notificationType)
	if err != nil {
		cb(nil, err)
		return
	}
	cb(res, nil)
}
