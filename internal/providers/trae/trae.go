// Package trae integrates the Trae provider through the session-authenticated
// entitlement endpoint.
package trae

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
	defaultBaseURL  = "https://api-sg-central.trae.ai"
	entitlementPath = "/trae/api/v1/pay/user_entitlement"
	sessionHeader   = "X-Cloudide-Session"
	defaultTimeout  = 15 * time.Second
)

// Config holds the provider's endpoint settings.
type Config struct {
	BaseURL string
	Timeout time.Duration
}

// Provider fetches Trae usage from the entitlement API. Responses use the
// common envelope: a "code" of zero wraps the payload under "data".
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
	return models.ProviderTrae
}

// DisplayName returns the provider name shown in the UI.
func (p *Provider) DisplayName() string {
	return "Trae"
}

// ClearCache is a no-op; the provider holds no cached state.
func (p *Provider) ClearCache() {}

// Fetch pulls the entitlement document and maps each quota entry onto the
// snapshot.
func (p *Provider) Fetch(ctx context.Context) (*models.QuotaSnapshot, error) {
	cred, ok := p.creds.Credential(models.ProviderTrae)
	if !ok || cred.SessionToken == "" {
		return nil, fmt.Errorf("trae: %w", providers.ErrNoCredential)
	}

	req, err := http.NewRequestWithContext(ctx, "GET", p.baseURL+entitlementPath, nil)
	if err != nil {
		return nil, fmt.Errorf("failed to create entitlement request: %w", err)
	}
	req.Header.Set(sessionHeader, cred.SessionToken)

	resp, err := p.httpClient.Do(req)
	if err != nil {
		return nil, fmt.Errorf("entitlement request failed: %w", err)
	}
	defer func() {
		if err := resp.Body.Close(); err != nil {
			logger.Error("failed to close response body", "error", err)
		}
	}()

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, fmt.Errorf("failed to read entitlement response: %w", err)
	}
	if resp.StatusCode == http.StatusUnauthorized || resp.StatusCode == http.StatusForbidden {
		return nil, fmt.Errorf("entitlement request rejected (status %d): %w", resp.StatusCode, providers.ErrUnauthorized)
	}
	if resp.StatusCode != http.StatusOK {
		return nil, fmt.Errorf("entitlement request failed (status %d): %s", resp.StatusCode, string(body))
	}
	if code := gjson.GetBytes(body, "code"); code.Exists() && code.Int() != 0 {
		return nil, fmt.Errorf("entitlement request failed (code %d): %s",
			code.Int(), gjson.GetBytes(body, "msg").String())
	}

	return parseEntitlement(body, time.Now()), nil
}

// parseEntitlement maps the entitlement document onto a snapshot. Entries
// without a positive total are unmetered and skipped.
func parseEntitlement(body []byte, now time.Time) *models.QuotaSnapshot {
	snapshot := &models.QuotaSnapshot{
		Timestamp: now,
		Provider:  models.ProviderTrae,
		PlanName:  gjson.GetBytes(body, "data.user_entitlement.plan").String(),
		Models:    []models.ModelQuotaInfo{},
	}

	gjson.GetBytes(body, "data.user_entitlement.quotas").ForEach(func(_, entry gjson.Result) bool {
		name := entry.Get("model").String()
		if name == "" {
			return true
		}
		total := entry.Get("total").Float()
		if total <= 0 {
			return true
		}
		fraction := 1 - entry.Get("used").Float()/total
		if fraction < 0 {
			fraction = 0
		}
		if fraction > 1 {
			fraction = 1
		}

		info := models.ModelQuotaInfo{
			Label:             name,
			ModelID:           name,
			RemainingFraction: &fraction,
		}
		if resetAt := entry.Get("reset_at").Int(); resetAt > 0 {
			t := time.Unix(resetAt, 0)
			info.ResetTime = &t
		}
		snapshot.Models = append(snapshot.Models, info)
		return true
	})

	return snapshot
}
