package alert

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"net/http"
	"time"

	"github.com/ppiankov/pmguard/internal/retry"
)

const requestTimeout = 5 * time.Second

// errServer marks a delivery failure worth retrying.
var errServer = errors.New("webhook server error")

// Sender posts payloads with retry on 5xx and transport errors.
type Sender struct {
	client  *http.Client
	policy  retry.Policy
	options []retry.Option
}

// NewSender returns a sender with a 5s request timeout and three attempts.
func NewSender(opts ...retry.Option) *Sender {
	return &Sender{
		client:  &http.Client{Timeout: requestTimeout},
		policy:  retry.Policy{MaxAttempts: 3, BaseDelay: time.Second, MaxDelay: 4 * time.Second},
		options: opts,
	}
}

// Send posts an alert event to a webhook endpoint.
func (s *Sender) Send(ctx context.Context, cfg AlertConfig, event AlertEvent) error {
	body, err := FormatPayload(cfg.Format, event)
	if err != nil {
		return fmt.Errorf("format payload: %w", err)
	}

	retryable := func(err error) bool { return errors.Is(err, errServer) }
	return retry.Do(ctx, s.policy, retryable, func(int) error {
		req, err := http.NewRequestWithContext(ctx, http.MethodPost, cfg.URL, bytes.NewReader(body))
		if err != nil {
			return fmt.Errorf("create request: %w", err)
		}
		req.Header.Set("Content-Type", "application/json")
		for k, v := range cfg.Headers {
			req.Header.Set(k, v)
		}

		resp, err := s.client.Do(req)
		if err != nil {
			return fmt.Errorf("%w: %v", errServer, err)
		}
		resp.Body.Close()

		switch {
		case resp.StatusCode >= 200 && resp.StatusCode < 300:
			return nil
		case resp.StatusCode >= 400 && resp.StatusCode < 500:
			return fmt.Errorf("webhook rejected: HTTP %d", resp.StatusCode)
		default:
			return fmt.Errorf("%w: HTTP %d", errServer, resp.StatusCode)
		}
	}, s.options...)
}
