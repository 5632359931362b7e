package antigravity

import (
	"context"
	"encoding/base64"
	"encoding/binary"
	"errors"
	"fmt"
	"io"
	"math"
	"net/http"
	"strings"
	"sync/atomic"
	"testing"

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

func jsonResponse(status int, body string) *http.Response {
	return &http.Response{
		StatusCode: status,
		Body:       io.NopCloser(strings.NewReader(body)),
		Header:     http.Header{"Content-Type": []string{"application/json"}},
	}
}

// buildQuotaBlob lays out a minimal listing blob: the label followed by a
// tagged quota sub-message holding one fraction field.
func buildQuotaBlob(label string, fraction float32) []byte {
	body := []byte{0x0D}
	body = binary.LittleEndian.AppendUint32(body, math.Float32bits(fraction))
	blob := []byte(label)
	blob = append(blob, 0x7A, byte(len(body)))
	return append(blob, body...)
}

func blobEnvelope(blob []byte) string {
	return fmt.Sprintf(`{"quotaBlob":%q}`, base64.StdEncoding.EncodeToString(blob))
}

// testTransport routes the provider's three request kinds and counts them.
type testTransport struct {
	tokenCalls  atomic.Int32
	modelCalls  atomic.Int32
	userCalls   atomic.Int32
	tokenStatus int
	modelBody   string
	modelStatus int
}

func (tr *testTransport) RoundTrip(req *http.Request) (*http.Response, error) {
	switch {
	case req.URL.Host == "oauth2.googleapis.com":
		tr.tokenCalls.Add(1)
		status := tr.tokenStatus
		if status == 0 {
			status = http.StatusOK
		}
		return jsonResponse(status, `{"access_token":"tok-1","expires_in":3600,"token_type":"Bearer"}`), nil
	case req.URL.Host == "www.googleapis.com":
		tr.userCalls.Add(1)
		return jsonResponse(http.StatusOK, `{"email":"dev@example.com"}`), nil
	default:
		tr.modelCalls.Add(1)
		status := tr.modelStatus
		if status == 0 {
			status = http.StatusOK
		}
		return jsonResponse(status, tr.modelBody), nil
	}
}

func newTestProvider(tr http.RoundTripper, creds providers.CredentialSource) *Provider {
	p := New(creds, nil, Config{ClientID: "cid", ClientSecret: "sec"})
	p.httpClient = &http.Client{Transport: tr}
	return p
}

func TestFetchWithoutCredential(t *testing.T) {
	tests := []struct {
		name  string
		creds fakeCreds
	}{
		{"no entry", fakeCreds{}},
		{"entry without refresh token", fakeCreds{
			models.ProviderAntigravity: {Provider: models.ProviderAntigravity, Email: "x@y.z"},
		}},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			p := newTestProvider(&MockRoundTripper{
				RoundTripFunc: func(req *http.Request) (*http.Response, error) {
					t.Errorf("unexpected request to %s", req.URL)
					return jsonResponse(http.StatusOK, "{}"), nil
				},
			}, tt.creds)

			_, err := p.Fetch(context.Background())
			if !errors.Is(err, providers.ErrNoCredential) {
				t.Errorf("Fetch() error = %v, want ErrNoCredential", err)
			}
		})
	}
}

func TestFetchWithoutOAuthClient(t *testing.T) {
	p := New(fakeCreds{
		models.ProviderAntigravity: {Provider: models.ProviderAntigravity, RefreshToken: "rt-1"},
	}, nil, Config{})
	p.httpClient = &http.Client{Transport: &MockRoundTripper{
		RoundTripFunc: func(req *http.Request) (*http.Response, error) {
			t.Errorf("unexpected request to %s", req.URL)
			return jsonResponse(http.StatusOK, "{}"), nil
		},
	}}

	_, err := p.Fetch(context.Background())
	if !errors.Is(err, providers.ErrNoCredential) {
		t.Errorf("Fetch() error = %v, want ErrNoCredential", err)
	}
}

func TestFetchParsesBlob(t *testing.T) {
	tr := &testTransport{modelBody: blobEnvelope(buildQuotaBlob("Gemini 3 Flash", 0.5))}
	p := newTestProvider(tr, fakeCreds{
		models.ProviderAntigravity: {Provider: models.ProviderAntigravity, RefreshToken: "rt-1"},
	})

	snap, err := p.Fetch(context.Background())
	if err != nil {
		t.Fatalf("Fetch() error = %v", err)
	}
	if snap.Provider != models.ProviderAntigravity {
		t.Errorf("snapshot provider = %q, want %q", snap.Provider, models.ProviderAntigravity)
	}
	if len(snap.Models) != 1 {
		t.Fatalf("snapshot models = %d, want 1", len(snap.Models))
	}
	m := snap.Models[0]
	if m.ModelID != "gemini-3-flash" || m.RemainingFraction == nil || *m.RemainingFraction != 0.5 {
		t.Errorf("model = %+v, want gemini-3-flash at 0.5", m)
	}
	if email := p.Email(); email != "dev@example.com" {
		t.Errorf("Email() = %q, want resolved user info", email)
	}
	if tr.userCalls.Load() != 1 {
		t.Errorf("user info calls = %d, want 1", tr.userCalls.Load())
	}
}

func TestFetchSkipsUserInfoWhenCredentialHasEmail(t *testing.T) {
	tr := &testTransport{modelBody: blobEnvelope(buildQuotaBlob("Gemini 3 Flash", 1))}
	p := newTestProvider(tr, fakeCreds{
		models.ProviderAntigravity: {Provider: models.ProviderAntigravity, RefreshToken: "rt-1", Email: "stored@example.com"},
	})

	if _, err := p.Fetch(context.Background()); err != nil {
		t.Fatalf("Fetch() error = %v", err)
	}
	if tr.userCalls.Load() != 0 {
		t.Errorf("user info calls = %d, want 0 when the credential carries an email", tr.userCalls.Load())
	}
	if email := p.Email(); email != "stored@example.com" {
		t.Errorf("Email() = %q, want stored credential email", email)
	}
}

func TestAccessTokenCachedAcrossFetches(t *testing.T) {
	tr := &testTransport{modelBody: blobEnvelope(buildQuotaBlob("Gemini 3 Flash", 0.25))}
	p := newTestProvider(tr, fakeCreds{
		models.ProviderAntigravity: {Provider: models.ProviderAntigravity, RefreshToken: "rt-1"},
	})

	for i := 0; i < 2; i++ {
		if _, err := p.Fetch(context.Background()); err != nil {
			t.Fatalf("Fetch() #%d error = %v", i+1, err)
		}
	}
	if got := tr.tokenCalls.Load(); got != 1 {
		t.Errorf("token endpoint calls = %d, want 1", got)
	}
	if got := tr.modelCalls.Load(); got != 2 {
		t.Errorf("model endpoint calls = %d, want 2", got)
	}
}

func TestClearCacheForcesReauth(t *testing.T) {
	tr := &testTransport{modelBody: blobEnvelope(buildQuotaBlob("Gemini 3 Flash", 0.25))}
	p := newTestProvider(tr, fakeCreds{
		models.ProviderAntigravity: {Provider: models.ProviderAntigravity, RefreshToken: "rt-1"},
	})

	if _, err := p.Fetch(context.Background()); err != nil {
		t.Fatalf("Fetch() error = %v", err)
	}
	p.ClearCache()
	if _, err := p.Fetch(context.Background()); err != nil {
		t.Fatalf("Fetch() after ClearCache error = %v", err)
	}
	if got := tr.tokenCalls.Load(); got != 2 {
		t.Errorf("token endpoint calls = %d, want 2 after cache clear", got)
	}
}

func TestFetchFallsBackAcrossEndpoints(t *testing.T) {
	blob := blobEnvelope(buildQuotaBlob("Claude Sonnet 4.5", 0.75))
	var firstCalls, secondCalls atomic.Int32
	mock := &MockRoundTripper{
		RoundTripFunc: func(req *http.Request) (*http.Response, error) {
			switch req.URL.Host {
			case "oauth2.googleapis.com":
				return jsonResponse(http.StatusOK, `{"access_token":"tok-1","expires_in":3600}`), nil
			case "www.googleapis.com":
				return jsonResponse(http.StatusOK, `{"email":"dev@example.com"}`), nil
			case "one.example":
				firstCalls.Add(1)
				return jsonResponse(http.StatusBadGateway, `{"error":"down"}`), nil
			case "two.example":
				secondCalls.Add(1)
				return jsonResponse(http.StatusOK, blob), nil
			}
			t.Errorf("unexpected host %s", req.URL.Host)
			return jsonResponse(http.StatusNotFound, "{}"), nil
		},
	}

	p := New(fakeCreds{
		models.ProviderAntigravity: {Provider: models.ProviderAntigravity, RefreshToken: "rt-1"},
	}, nil, Config{ClientID: "cid", Endpoints: []string{"https://one.example", "https://two.example"}})
	p.httpClient = &http.Client{Transport: mock}

	snap, err := p.Fetch(context.Background())
	if err != nil {
		t.Fatalf("Fetch() error = %v", err)
	}
	if firstCalls.Load() != 1 || secondCalls.Load() != 1 {
		t.Errorf("endpoint calls = %d, %d, want 1 each", firstCalls.Load(), secondCalls.Load())
	}
	if len(snap.Models) != 1 || snap.Models[0].ModelID != "claude-sonnet-4-5" {
		t.Errorf("snapshot models = %+v, want claude-sonnet-4-5", snap.Models)
	}
}

func TestUnauthorizedAbortsFallback(t *testing.T) {
	var secondCalls atomic.Int32
	mock := &MockRoundTripper{
		RoundTripFunc: func(req *http.Request) (*http.Response, error) {
			switch req.URL.Host {
			case "oauth2.googleapis.com":
				return jsonResponse(http.StatusOK, `{"access_token":"tok-1","expires_in":3600}`), nil
			case "www.googleapis.com":
				return jsonResponse(http.StatusOK, `{"email":"dev@example.com"}`), nil
			case "one.example":
				return jsonResponse(http.StatusUnauthorized, `{"error":"expired"}`), nil
			default:
				secondCalls.Add(1)
				return jsonResponse(http.StatusOK, "{}"), nil
			}
		},
	}

	p := New(fakeCreds{
		models.ProviderAntigravity: {Provider: models.ProviderAntigravity, RefreshToken: "rt-1"},
	}, nil, Config{ClientID: "cid", Endpoints: []string{"https://one.example", "https://two.example"}})
	p.httpClient = &http.Client{Transport: mock}

	_, err := p.Fetch(context.Background())
	if !errors.Is(err, providers.ErrUnauthorized) {
		t.Errorf("Fetch() error = %v, want ErrUnauthorized", err)
	}
	if secondCalls.Load() != 0 {
		t.Errorf("fallback endpoint called %d times after auth rejection, want 0", secondCalls.Load())
	}
	if _, ok := p.tokens.get("rt-1"); ok {
		t.Error("stale token kept in cache after auth rejection")
	}
}

func TestDecodeBlobPayload(t *testing.T) {
	blob := buildQuotaBlob("Gemini 3 Flash", 0.5)
	encoded := base64.StdEncoding.EncodeToString(blob)

	tests := []struct {
		name    string
		body    string
		want    []byte
		wantErr bool
	}{
		{"json envelope", fmt.Sprintf(`{"quotaBlob":%q}`, encoded), blob, false},
		{"bare base64 body", encoded, blob, false},
		{"bare unpadded base64", strings.TrimRight(encoded, "="), blob, false},
		{"garbage", "!!! not base64 !!!", nil, true},
		{"envelope with garbage payload", `{"quotaBlob":"@@@"}`, nil, true},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, err := decodeBlobPayload([]byte(tt.body))
			if (err != nil) != tt.wantErr {
				t.Fatalf("decodeBlobPayload() error = %v, wantErr %v", err, tt.wantErr)
			}
			if !tt.wantErr && string(got) != string(tt.want) {
				t.Errorf("decodeBlobPayload() = %q, want %q", got, tt.want)
			}
		})
	}
}
