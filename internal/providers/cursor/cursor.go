// Package cursor integrates the Cursor provider through the dashboard's
// session-cookie usage endpoint.
package cursor

import (
	"context"
	"fmt"
	"io"
	"net/http"
	"time"

	"github.com/tidwall/gjson"

	"github.com/quotabar/quotabar/internal/logger"
	"github.com/quotabar/quotabar/internal/models"
	"github.com/quotabar/quotabar/internal/providers"
)

const (
	defaultBaseURL = "https://cursor.com"
	usagePath      = "/api/usage"
	sessionCookie  = "WorkosCursorSessionToken"
	defaultTimeout = 15 * time.Second
)

// Config holds the provider's endpoint settings.
type Config struct {
	BaseURL string
	Timeout time.Duration
}

// Provider fetches Cursor usage from the dashboard API. The response maps
// model names to request counters plus a "startOfMonth" marker for the
// billing window.
type Provider struct {
	httpClient *http.Client
	creds      providers.CredentialSource
	baseURL    string
}

// New builds the provider.
func New(creds providers.CredentialSource, cfg Config) *Provider {
	if cfg.BaseURL == "" {
		cfg.BaseURL = defaultBaseURL
	}
	if cfg.Timeout <= 0 {
		cfg.Timeout = defaultTimeout
	}
	return &Provider{
		httpClient: &http.Client{Timeout: cfg.Timeout},
		creds:      creds,
		baseURL:    cfg.BaseURL,
	}
}

// ID returns the stable provider id.
func (p *Provider) ID() string {
	return models.ProviderCursor
}

// DisplayName returns the provider name shown in the UI.
func (p *Provider) DisplayName() string {
	return "Cursor"
}

// ClearCache is a no-op; the provider holds no cached state.
func (p *Provider) ClearCache() {}

// Fetch pulls the usage document and maps every metered model onto the
// snapshot. Models without a request cap are unmetered and skipped.
func (p *Provider) Fetch(ctx context.Context) (*models.QuotaSnapshot, error) {
	cred, ok := p.creds.Credential(models.ProviderCursor)
	if !ok || cred.SessionToken == "" {
		return nil, fmt.Errorf("cursor: %w", providers.ErrNoCredential)
	}

	req, err := http.NewRequestWithContext(ctx, "GET", p.baseURL+usagePath, nil)
	if err != nil {
		return nil, fmt.Errorf("failed to create usage request: %w", err)
	}
	req.Header.Set("Cookie", sessionCookie+"="+cred.SessionToken)

	resp, err := p.httpClient.Do(req)
	if err != nil {
		return nil, fmt.Errorf("usage request failed: %w", err)
	}
	defer func() {
		if err := resp.Body.Close(); err != nil {
			logger.Error("failed to close response body", "error", err)
		}
	}()

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, fmt.Errorf("failed to read usage response: %w", err)
	}
	if resp.StatusCode == http.StatusUnauthorized || resp.StatusCode == http.StatusForbidden {
		return nil, fmt.Errorf("usage request rejected (status %d): %w", resp.StatusCode, providers.ErrUnauthorized)
	}
	if resp.StatusCode != http.StatusOK {
		return nil, fmt.Errorf("usage request failed (status %d): %s", resp.StatusCode, string(body))
	}

	return parseUsage(body, time.Now()), nil
}

// parseUsage maps the usage document onto a snapshot. Top-level keys are
// model names except "startOfMonth", which anchors the monthly reset.
func parseUsage(body []byte, now time.Time) *models.QuotaSnapshot {
	snapshot := &models.QuotaSnapshot{
		Timestamp: now,
		Provider:  models.ProviderCursor,
		Models:    []models.ModelQuotaInfo{},
	}

	var reset *time.Time
	if start := gjson.GetBytes(body, "startOfMonth"); start.Exists() {
		if t, err := time.Parse(time.RFC3339, start.String()); err == nil {
			next := t.AddDate(0, 1, 0)
			reset = &next
		} else {
			logger.Debug("unparseable startOfMonth", "value", start.String())
		}
	}

	gjson.ParseBytes(body).ForEach(func(key, value gjson.Result) bool {
		if key.String() == "startOfMonth" || !value.IsObject() {
			return true
		}
		max := value.Get("maxRequestUsage")
		if max.Type == gjson.Null || max.Int() <= 0 {
			return true
		}
		used := value.Get("numRequests").Float()
		fraction := 1 - used/max.Float()
		if fraction < 0 {
			fraction = 0
		}
		if fraction > 1 {
			fraction = 1
		}

		info := models.ModelQuotaInfo{
			Label:             key.String(),
			ModelID:           key.String(),
			RemainingFraction: &fraction,
		}
		if reset != nil {
			t := *reset
			info.ResetTime = &t
		}
		snapshot.Models = append(snapshot.Models, info)
		return true
	})

	return snapshot
}
