// Package trigger posts submission events to the automation endpoint.
// Intake and processing are decoupled so a slow or failing pipeline never
// blocks the submission write path.
package trigger

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"time"

	"github.com/cenkalti/backoff/v4"
	"go.uber.org/zap"

	"github.com/CamDog38/formrelay/internal/types"
)

// Event is the payload posted to the processing endpoint.
type Event struct {
	SubmissionID types.SubmissionID   `json:"submissionId"`
	FormID       types.FormID         `json:"formId"`
	Data         types.SubmissionData `json:"data"`
}

// Client fires submission events at the automation endpoint with retry.
type Client struct {
	endpoint string
	apiKey   string
	http     *http.Client
	logger   *zap.Logger
}

// NewClient creates a trigger client for the given endpoint. The apiKey is
// sent in the X-Api-Key header and may be empty for unauthenticated loopback
// deployments.
func NewClient(endpoint, apiKey string, logger *zap.Logger) *Client {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Client{
		endpoint: endpoint,
		apiKey:   apiKey,
		http:     &http.Client{Timeout: 10 * time.Second},
		logger:   logger,
	}
}

// Fire posts the event asynchronously. Delivery is best-effort: failures are
// logged, never returned, and never affect the caller.
func (c *Client) Fire(ctx context.Context, event Event) {
	ctx = context.WithoutCancel(ctx)
	go func() {
		if err := c.post(ctx, event); err != nil {
			c.logger.Warn("automation trigger failed",
				zap.String("submission_id", string(event.SubmissionID)),
				zap.Error(err))
		}
	}()
}

func (c *Client) post(ctx context.Context, event Event) error {
	body, err := json.Marshal(event)
	if err != nil {
		return fmt.Errorf("marshal event: %w", err)
	}

	operation := func() error {
		req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.endpoint, bytes.NewReader(body))
		if err != nil {
			return backoff.Permanent(err)
		}
		req.Header.Set("Content-Type", "application/json")
		if c.apiKey != "" {
			req.Header.Set("X-Api-Key", c.apiKey)
		}

		resp, err := c.http.Do(req)
		if err != nil {
			return err
		}
		defer resp.Body.Close()

		if resp.StatusCode >= 500 {
			return fmt.Errorf("endpoint returned %d", resp.StatusCode)
		}
		if resp.StatusCode >= 400 {
			// Client errors will not improve on retry.
			return backoff.Permanent(fmt.Errorf("endpoint returned %d", resp.StatusCode))
		}
		return nil
	}

	b := backoff.NewExponentialBackOff()
	b.InitialInterval = 500 * time.Millisecond
	b.MaxElapsedTime = 30 * time.Second

	return backoff.Retry(operation, backoff.WithContext(b, ctx))
}
