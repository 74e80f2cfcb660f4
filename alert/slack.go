package alert

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"
)

const defaultSlackTimeout = 10 * time.Second

// SlackOption configures a SlackSink.
type SlackOption func(*SlackSink)

// WithHTTPClient sets the HTTP client used for webhook posts.
func WithHTTPClient(c *http.Client) SlackOption {
	return func(s *SlackSink) { s.client = c }
}

// WithTimeout bounds each webhook post (default 10s).
func WithTimeout(d time.Duration) SlackOption {
	return func(s *SlackSink) { s.timeout = d }
}

// SlackSink posts alerts to a Slack incoming webhook.
type SlackSink struct {
	webhookURL string
	client     *http.Client
	timeout    time.Duration
}

// NewSlackSink creates a sink for the given incoming-webhook URL.
func NewSlackSink(webhookURL string, opts ...SlackOption) *SlackSink {
	s := &SlackSink{
		webhookURL: webhookURL,
		client:     http.DefaultClient,
		timeout:    defaultSlackTimeout,
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// Send implements Sink.
func (s *SlackSink) Send(ctx context.Context, a Alert) error {
	ctx, cancel := context.WithTimeout(ctx, s.timeout)
	defer cancel()

	payload := map[string]any{"text": formatSlackText(a)}
	body, err := json.Marshal(payload)
	if err != nil {
		return fmt.Errorf("alert: marshal slack payload: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, s.webhookURL, bytes.NewReader(body))
	if err != nil {
		return fmt.Errorf("alert: build slack request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")

	resp, err := s.client.Do(req)
	if err != nil {
		return fmt.Errorf("alert: post slack webhook: %w", err)
	}
	defer resp.Body.Close()
	io.Copy(io.Discard, io.LimitReader(resp.Body, 4096)) //nolint:errcheck

	if resp.StatusCode != http.StatusOK {
		return fmt.Errorf("alert: slack webhook returned %d", resp.StatusCode)
	}
	return nil
}

func formatSlackText(a Alert) string {
	var b strings.Builder
	b.WriteString(a.Summary)
	if a.JobURN != "" {
		fmt.Fprintf(&b, "\njob: %s", a.JobURN)
	}
	if a.PipelineURN != "" {
		fmt.Fprintf(&b, "\npipeline: %s", a.PipelineURN)
	}
	if a.CorrelationID != "" {
		fmt.Fprintf(&b, "\ncorrelation: %s", a.CorrelationID)
	}
	return b.String()
}
