// Package antigravity integrates the Antigravity provider: Google OAuth
// token refresh, the internal model-listing call that carries the quota
// blob, and the blob scan that turns it into a snapshot.
package antigravity

import (
	"context"
	"encoding/base64"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strings"
	"time"

	"github.com/tidwall/gjson"

	"github.com/quotabar/quotabar/internal/logger"
	"github.com/quotabar/quotabar/internal/models"
	"github.com/quotabar/quotabar/internal/protoscan"
	"github.com/quotabar/quotabar/internal/providers"
)

const (
	googleOAuthURL = "https://oauth2.googleapis.com/token"
	userInfoURL    = "https://www.googleapis.com/oauth2/v2/userinfo"
	modelsPath     = "/v1internal:fetchAvailableModels"
	defaultTimeout = 30 * time.Second
)

// defaultEndpoints are tried in order until one answers.
var defaultEndpoints = []string{
	"https://cloudcode-pa.googleapis.com",
	"https://daily-cloudcode-pa.sandbox.googleapis.com",
}

// requestHeaders mimic the editor client; the endpoint rejects unadorned
// requests.
var requestHeaders = map[string]string{
	"User-Agent":        "antigravity/1.11.5 windows/amd64",
	"X-Goog-Api-Client": "google-cloud-sdk vscode_cloudshelleditor/0.1",
	"Client-Metadata":   `{"ideType":"IDE_UNSPECIFIED","platform":"PLATFORM_UNSPECIFIED","pluginType":"GEMINI"}`,
}

// Config holds the provider's OAuth client and endpoint settings.
type Config struct {
	ClientID     string
	ClientSecret string
	Endpoints    []string
	Timeout      time.Duration
}

// tokenResponse is the OAuth token exchange response.
type tokenResponse struct {
	AccessToken string `json:"access_token"`
	ExpiresIn   int    `json:"expires_in"`
	TokenType   string `json:"token_type"`
}

// Provider fetches Antigravity usage through the Cloud Code internal API.
type Provider struct {
	httpClient *http.Client
	creds      providers.CredentialSource
	scanner    *protoscan.Scanner
	cfg        Config
	tokens     *tokenCache
	users      *userCache
}

// New builds the provider. A nil scanner selects the built-in rule table.
func New(creds providers.CredentialSource, scanner *protoscan.Scanner, cfg Config) *Provider {
	if len(cfg.Endpoints) == 0 {
		cfg.Endpoints = defaultEndpoints
	}
	if cfg.Timeout <= 0 {
		cfg.Timeout = defaultTimeout
	}
	if scanner == nil {
		scanner = protoscan.NewScanner(nil)
	}
	return &Provider{
		httpClient: &http.Client{Timeout: cfg.Timeout},
		creds:      creds,
		scanner:    scanner,
		cfg:        cfg,
		tokens:     newTokenCache(),
		users:      newUserCache(),
	}
}

// ID returns the stable provider id.
func (p *Provider) ID() string {
	return models.ProviderAntigravity
}

// DisplayName returns the provider name shown in the UI.
func (p *Provider) DisplayName() string {
	return "Antigravity"
}

// ClearCache drops cached tokens and user info.
func (p *Provider) ClearCache() {
	p.tokens.clear()
	p.users.clear()
}

// Email returns the account email, preferring the stored credential's value
// over the lazily fetched user info. Empty until either is known.
func (p *Provider) Email() string {
	cred, ok := p.creds.Credential(models.ProviderAntigravity)
	if !ok {
		return ""
	}
	if cred.Email != "" {
		return cred.Email
	}
	email, _ := p.users.get(cred.RefreshToken)
	return email
}

// Fetch resolves an access token, pulls the model listing, and scans its
// quota blob into a snapshot.
func (p *Provider) Fetch(ctx context.Context) (*models.QuotaSnapshot, error) {
	cred, ok := p.creds.Credential(models.ProviderAntigravity)
	if !ok || cred.RefreshToken == "" {
		return nil, fmt.Errorf("antigravity: %w", providers.ErrNoCredential)
	}
	if p.cfg.ClientID == "" {
		return nil, fmt.Errorf("antigravity: oauth client not configured: %w", providers.ErrNoCredential)
	}

	token, err := p.accessToken(ctx, cred.RefreshToken)
	if err != nil {
		return nil, err
	}

	if _, cached := p.users.get(cred.RefreshToken); !cached && cred.Email == "" {
		p.resolveUserInfo(ctx, cred.RefreshToken, token)
	}

	blob, err := p.fetchQuotaBlob(ctx, token)
	if err != nil {
		return nil, err
	}

	return p.scanner.Parse(blob, time.Now()), nil
}

// accessToken returns a valid access token for the refresh token, minting a
// new one through the OAuth endpoint when the cache misses or has expired.
func (p *Provider) accessToken(ctx context.Context, refreshToken string) (string, error) {
	if tok, ok := p.tokens.get(refreshToken); ok && tok.isValid() {
		return tok.accessToken, nil
	}

	data := url.Values{}
	data.Set("client_id", p.cfg.ClientID)
	data.Set("client_secret", p.cfg.ClientSecret)
	data.Set("refresh_token", refreshToken)
	data.Set("grant_type", "refresh_token")

	req, err := http.NewRequestWithContext(ctx, "POST", googleOAuthURL, strings.NewReader(data.Encode()))
	if err != nil {
		return "", fmt.Errorf("failed to create token request: %w", err)
	}
	req.Header.Set("Content-Type", "application/x-www-form-urlencoded")

	resp, err := p.httpClient.Do(req)
	if err != nil {
		return "", fmt.Errorf("token request failed: %w", err)
	}
	defer func() {
		if err := resp.Body.Close(); err != nil {
			logger.Error("failed to close response body", "error", err)
		}
	}()

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return "", fmt.Errorf("failed to read token response: %w", err)
	}
	if resp.StatusCode == http.StatusBadRequest || resp.StatusCode == http.StatusUnauthorized {
		return "", fmt.Errorf("token refresh rejected (status %d): %w", resp.StatusCode, providers.ErrUnauthorized)
	}
	if resp.StatusCode != http.StatusOK {
		return "", fmt.Errorf("token refresh failed (status %d): %s", resp.StatusCode, string(body))
	}

	var tok tokenResponse
	if err := json.Unmarshal(body, &tok); err != nil {
		return "", fmt.Errorf("failed to parse token response: %w", err)
	}
	if tok.AccessToken == "" {
		return "", fmt.Errorf("token response missing access_token")
	}

	p.tokens.put(refreshToken, cachedToken{
		accessToken: tok.AccessToken,
		expiresAt:   time.Now().Add(time.Duration(tok.ExpiresIn) * time.Second),
	})
	return tok.AccessToken, nil
}

// fetchQuotaBlob tries each endpoint in order. Endpoint failures fall
// through to the next candidate; a credential rejection aborts immediately
// since every endpoint shares the same auth.
func (p *Provider) fetchQuotaBlob(ctx context.Context, accessToken string) ([]byte, error) {
	var lastErr error
	for _, endpoint := range p.cfg.Endpoints {
		blob, err := p.fetchBlobFrom(ctx, endpoint, accessToken)
		if err != nil {
			if errors.Is(err, providers.ErrUnauthorized) {
				return nil, err
			}
			logger.Debug("quota endpoint failed", "endpoint", endpoint, "error", err)
			lastErr = err
			continue
		}
		return blob, nil
	}
	if lastErr != nil {
		return nil, lastErr
	}
	return nil, fmt.Errorf("no quota endpoints configured")
}

func (p *Provider) fetchBlobFrom(ctx context.Context, endpoint, accessToken string) ([]byte, error) {
	req, err := http.NewRequestWithContext(ctx, "POST", endpoint+modelsPath, strings.NewReader("{}"))
	if err != nil {
		return nil, fmt.Errorf("failed to create quota request: %w", err)
	}
	req.Header.Set("Authorization", "Bearer "+accessToken)
	req.Header.Set("Content-Type", "application/json")
	for k, v := range requestHeaders {
		req.Header.Set(k, v)
	}

	resp, err := p.httpClient.Do(req)
	if err != nil {
		return nil, fmt.Errorf("quota request failed: %w", err)
	}
	defer func() {
		if err := resp.Body.Close(); err != nil {
			logger.Error("failed to close response body", "error", err)
		}
	}()

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, fmt.Errorf("failed to read quota response: %w", err)
	}
	if resp.StatusCode == http.StatusUnauthorized || resp.StatusCode == http.StatusForbidden {
		// The token is stale server-side; drop it so the next attempt
		// re-authenticates instead of replaying the same rejection.
		p.tokens.clear()
		return nil, fmt.Errorf("quota request rejected (status %d): %w", resp.StatusCode, providers.ErrUnauthorized)
	}
	if resp.StatusCode != http.StatusOK {
		return nil, fmt.Errorf("quota request failed (status %d): %s", resp.StatusCode, string(body))
	}

	return decodeBlobPayload(body)
}

// decodeBlobPayload extracts the base64 quota payload from a listing
// response. The envelope is undocumented: current servers wrap the payload
// in JSON under "quotaBlob", older ones returned the bare base64 body.
func decodeBlobPayload(body []byte) ([]byte, error) {
	raw := strings.TrimSpace(string(body))
	if field := gjson.GetBytes(body, "quotaBlob"); field.Exists() {
		raw = field.String()
	}

	blob, err := base64.StdEncoding.DecodeString(raw)
	if err != nil {
		if unpadded, rawErr := base64.RawStdEncoding.DecodeString(raw); rawErr == nil {
			return unpadded, nil
		}
		return nil, fmt.Errorf("failed to decode quota payload: %w", err)
	}
	return blob, nil
}

// resolveUserInfo caches the account email for display. Failures are logged
// and ignored; user info never blocks a quota fetch.
func (p *Provider) resolveUserInfo(ctx context.Context, credKey, accessToken string) {
	req, err := http.NewRequestWithContext(ctx, "GET", userInfoURL, nil)
	if err != nil {
		return
	}
	req.Header.Set("Authorization", "Bearer "+accessToken)

	resp, err := p.httpClient.Do(req)
	if err != nil {
		logger.Debug("user info request failed", "error", err)
		return
	}
	defer func() {
		if err := resp.Body.Close(); err != nil {
			logger.Error("failed to close response body", "error", err)
		}
	}()

	if resp.StatusCode != http.StatusOK {
		logger.Debug("user info request rejected", "status", resp.StatusCode)
		return
	}

	var info struct {
		Email string `json:"email"`
	}
	if err := json.NewDecoder(resp.Body).Decode(&info); err != nil {
		logger.Debug("failed to parse user info", "error", err)
		return
	}
	if info.Email != "" {
		p.users.put(credKey, info.Email)
	}
}
