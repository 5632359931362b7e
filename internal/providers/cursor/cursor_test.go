package cursor

import (
	"context"
	"errors"
	"io"
	"net/http"
	"strings"
	"testing"
	"time"

	"github.com/quotabar/quotabar/internal/models"
	"github.com/quotabar/quotabar/internal/providers"
)

// MockRoundTripper implements http.RoundTripper for testing
type MockRoundTripper struct {
	RoundTripFunc func(req *http.Request) (*http.Response, error)
}

func (m *MockRoundTripper) RoundTrip(req *http.Request) (*http.Response, error) {
	return m.RoundTripFunc(req)
}

type fakeCreds map[string]models.Credential

func (f fakeCreds) Credential(provider string) (models.Credential, bool) {
	c, ok := f[provider]
	return c, ok
}

const usageBody = `{
	"gpt-4": {"numRequests": 375, "numRequestsTotal": 892, "maxRequestUsage": 500},
	"gpt-3.5-turbo": {"numRequests": 12, "maxRequestUsage": null},
	"claude-4-sonnet": {"numRequests": 600, "maxRequestUsage": 500},
	"startOfMonth": "2026-08-01T00:00:00.000Z"
}`

func newTestProvider(t *testing.T, status int, body string, gotReq **http.Request) *Provider {
	t.Helper()
	p := New(fakeCreds{
		models.ProviderCursor: {Provider: models.ProviderCursor, SessionToken: "sess-1"},
	}, Config{})
	p.httpClient = &http.Client{Transport: &MockRoundTripper{
		RoundTripFunc: func(req *http.Request) (*http.Response, error) {
			if gotReq != nil {
				*gotReq = req
			}
			return &http.Response{
				StatusCode: status,
				Body:       io.NopCloser(strings.NewReader(body)),
			}, nil
		},
	}}
	return p
}

func TestFetchWithoutCredential(t *testing.T) {
	p := New(fakeCreds{}, Config{})
	if _, err := p.Fetch(context.Background()); !errors.Is(err, providers.ErrNoCredential) {
		t.Errorf("Fetch() error = %v, want ErrNoCredential", err)
	}
}

func TestFetchSendsSessionCookie(t *testing.T) {
	var gotReq *http.Request
	p := newTestProvider(t, http.StatusOK, usageBody, &gotReq)

	if _, err := p.Fetch(context.Background()); err != nil {
		t.Fatalf("Fetch() error = %v", err)
	}
	if gotReq == nil {
		t.Fatal("no request captured")
	}
	if got := gotReq.Header.Get("Cookie"); got != "WorkosCursorSessionToken=sess-1" {
		t.Errorf("Cookie header = %q", got)
	}
	if gotReq.URL.Path != "/api/usage" {
		t.Errorf("request path = %q, want /api/usage", gotReq.URL.Path)
	}
}

func TestFetchMapsMeteredModels(t *testing.T) {
	p := newTestProvider(t, http.StatusOK, usageBody, nil)

	snap, err := p.Fetch(context.Background())
	if err != nil {
		t.Fatalf("Fetch() error = %v", err)
	}
	if snap.Provider != models.ProviderCursor {
		t.Errorf("provider = %q, want %q", snap.Provider, models.ProviderCursor)
	}
	if len(snap.Models) != 2 {
		t.Fatalf("models = %d, want 2 (unmetered gpt-3.5 skipped)", len(snap.Models))
	}

	gpt4, ok := snap.Model("gpt-4")
	if !ok {
		t.Fatal("gpt-4 missing from snapshot")
	}
	if gpt4.RemainingFraction == nil || *gpt4.RemainingFraction != 0.25 {
		t.Errorf("gpt-4 fraction = %v, want 0.25", gpt4.RemainingFraction)
	}
	wantReset := time.Date(2026, 9, 1, 0, 0, 0, 0, time.UTC)
	if gpt4.ResetTime == nil || !gpt4.ResetTime.Equal(wantReset) {
		t.Errorf("gpt-4 reset = %v, want %v", gpt4.ResetTime, wantReset)
	}

	over, ok := snap.Model("claude-4-sonnet")
	if !ok {
		t.Fatal("claude-4-sonnet missing from snapshot")
	}
	if over.RemainingFraction == nil || *over.RemainingFraction != 0 {
		t.Errorf("overused model fraction = %v, want clamped 0", over.RemainingFraction)
	}
	if !over.IsExhausted() {
		t.Error("overused model should report exhausted")
	}
}

func TestFetchWithoutStartOfMonth(t *testing.T) {
	body := `{"gpt-4": {"numRequests": 100, "maxRequestUsage": 400}}`
	p := newTestProvider(t, http.StatusOK, body, nil)

	snap, err := p.Fetch(context.Background())
	if err != nil {
		t.Fatalf("Fetch() error = %v", err)
	}
	if len(snap.Models) != 1 {
		t.Fatalf("models = %d, want 1", len(snap.Models))
	}
	if snap.Models[0].ResetTime != nil {
		t.Errorf("reset = %v, want nil without startOfMonth", snap.Models[0].ResetTime)
	}
	if snap.Models[0].RemainingFraction == nil || *snap.Models[0].RemainingFraction != 0.75 {
		t.Errorf("fraction = %v, want 0.75", snap.Models[0].RemainingFraction)
	}
}

func TestFetchUnauthorized(t *testing.T) {
	p := newTestProvider(t, http.StatusUnauthorized, `{"error":"expired"}`, nil)
	if _, err := p.Fetch(context.Background()); !errors.Is(err, providers.ErrUnauthorized) {
		t.Errorf("Fetch() error = %v, want ErrUnauthorized", err)
	}
}

func TestFetchServerError(t *testing.T) {
	p := newTestProvider(t, http.StatusBadGateway, "upstream down", nil)
	_, err := p.Fetch(context.Background())
	if err == nil {
		t.Fatal("Fetch() error = nil, want failure")
	}
	if errors.Is(err, providers.ErrUnauthorized) || errors.Is(err, providers.ErrNoCredential) {
		t.Errorf("Fetch() error = %v, want a plain fetch failure", err)
	}
}

func TestFetchEmptyUsageDocument(t *testing.T) {
	p := newTestProvider(t, http.StatusOK, `{"startOfMonth": "2026-08-01T00:00:00.000Z"}`, nil)

	snap, err := p.Fetch(context.Background())
	if err != nil {
		t.Fatalf("Fetch() error = %v", err)
	}
	if snap.Models == nil || len(snap.Models) != 0 {
		t.Errorf("models = %v, want empty non-nil slice", snap.Models)
	}
}
