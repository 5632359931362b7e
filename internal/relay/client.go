// Package relay forwards finished usage snapshots to a team aggregation
// endpoint. Submission is strictly fire-and-forget: it never blocks a
// refresh cycle, never retries, and failures are logged and swallowed. The
// relay is off the critical path by construction; nothing here can flip a
// refresh machine into an error state.
package relay

import (
	"bytes"
	"context"
	"encoding/json"
	"io"
	"net/http"
	"time"

	"github.com/google/uuid"

	"github.com/quotabar/quotabar/internal/logger"
	"github.com/quotabar/quotabar/internal/models"
)

// defaultTimeout bounds one relay POST.
const defaultTimeout = 5 * time.Second

// Config holds the relay destination. An empty Endpoint disables the
// client entirely.
type Config struct {
	Endpoint string
	APIKey   string
	Timeout  time.Duration
}

// Report is the JSON payload posted to the relay endpoint. InstanceID is
// stable for the life of the process so the dashboard can group reports
// from one editor session; ReportID is unique per submission.
type Report struct {
	ReportID   string                `json:"reportId"`
	InstanceID string                `json:"instanceId"`
	SentAt     time.Time             `json:"sentAt"`
	Snapshot   *models.QuotaSnapshot `json:"snapshot"`
}

// Client posts snapshots to a relay endpoint.
type Client struct {
	httpClient *http.Client
	endpoint   string
	apiKey     string
	instanceID string
}

// New builds a relay client, or nil when cfg.Endpoint is empty. Submit on a
// nil client is a no-op, so callers never need an enabled check.
func New(cfg Config) *Client {
	if cfg.Endpoint == "" {
		return nil
	}
	timeout := cfg.Timeout
	if timeout <= 0 {
		timeout = defaultTimeout
	}
	return &Client{
		httpClient: &http.Client{Timeout: timeout},
		endpoint:   cfg.Endpoint,
		apiKey:     cfg.APIKey,
		instanceID: uuid.NewString(),
	}
}

// InstanceID identifies this process across reports.
func (c *Client) InstanceID() string {
	if c == nil {
		return ""
	}
	return c.instanceID
}

// Submit forwards one snapshot in the background and returns immediately.
// The outcome is only ever logged.
func (c *Client) Submit(snapshot *models.QuotaSnapshot) {
	if c == nil || snapshot == nil {
		return
	}
	report := Report{
		ReportID:   uuid.NewString(),
		InstanceID: c.instanceID,
		SentAt:     time.Now().UTC(),
		Snapshot:   snapshot.Clone(),
	}
	go c.post(report)
}

func (c *Client) post(report Report) {
	payload, err := json.Marshal(report)
	if err != nil {
		logger.Error("failed to encode relay report", "error", err)
		return
	}

	req, err := http.NewRequestWithContext(context.Background(), "POST", c.endpoint, bytes.NewReader(payload))
	if err != nil {
		logger.Error("failed to create relay request", "error", err)
		return
	}
	req.Header.Set("Content-Type", "application/json")
	if c.apiKey != "" {
		req.Header.Set("Authorization", "Bearer "+c.apiKey)
	}

	resp, err := c.httpClient.Do(req)
	if err != nil {
		logger.Warn("relay submission failed", "error", err)
		return
	}
	defer func() {
		if err := resp.Body.Close(); err != nil {
			logger.Error("failed to close response body", "error", err)
		}
	}()

	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		body, _ := io.ReadAll(io.LimitReader(resp.Body, 512))
		logger.Warn("relay rejected report", "status", resp.StatusCode, "body", string(body))
		return
	}

	logger.Debug("relay report accepted", "reportId", report.ReportID, "provider", report.Snapshot.Provider)
}
