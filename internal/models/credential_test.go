package models

import (
	"encoding/json"
	"testing"
	"time"
)

func TestCredentialSecret(t *testing.T) {
	tests := []struct {
		name string
		cred Credential
		want string
	}{
		{"session token preferred", Credential{SessionToken: "sess", RefreshToken: "ref"}, "sess"},
		{"refresh token fallback", Credential{RefreshToken: "ref"}, "ref"},
		{"empty", Credential{}, ""},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := tt.cred.Secret(); got != tt.want {
				t.Errorf("Secret() = %q, want %q", got, tt.want)
			}
		})
	}
}

func TestCredentialIsZero(t *testing.T) {
	tests := []struct {
		name string
		cred Credential
		want bool
	}{
		{"no secrets", Credential{Provider: ProviderCursor, Email: "a@b.c"}, true},
		{"session token", Credential{SessionToken: "x"}, false},
		{"refresh token", Credential{RefreshToken: "y"}, false},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := tt.cred.IsZero(); got != tt.want {
				t.Errorf("IsZero() = %v, want %v", got, tt.want)
			}
		})
	}
}

func TestRawCredentialDataToCredential(t *testing.T) {
	raw := RawCredentialData{
		Email:        "dev@example.com",
		RefreshToken: "1//refresh",
		UpdatedAt:    json.RawMessage(`"2025-05-01T10:00:00Z"`),
	}

	cred := raw.ToCredential(ProviderAntigravity)

	if cred.Provider != ProviderAntigravity {
		t.Errorf("Provider = %q, want %q", cred.Provider, ProviderAntigravity)
	}
	if cred.Source != CredentialSourceFile {
		t.Errorf("Source = %q, want %q", cred.Source, CredentialSourceFile)
	}
	if cred.RefreshToken != "1//refresh" {
		t.Errorf("RefreshToken = %q, want %q", cred.RefreshToken, "1//refresh")
	}
	want := time.Date(2025, 5, 1, 10, 0, 0, 0, time.UTC)
	if !cred.UpdatedAt.Equal(want) {
		t.Errorf("UpdatedAt = %v, want %v", cred.UpdatedAt, want)
	}
}

func TestParseTimeField(t *testing.T) {
	tests := []struct {
		name string
		data string
		want time.Time
	}{
		{"ISO string", `"2025-05-01T10:00:00Z"`, time.Date(2025, 5, 1, 10, 0, 0, 0, time.UTC)},
		{"unix seconds", `1746093600`, time.Unix(1746093600, 0)},
		{"unix milliseconds", `1746093600000`, time.UnixMilli(1746093600000)},
		{"garbage", `{"nested": true}`, time.Time{}},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got := parseTimeField(json.RawMessage(tt.data))
			if !got.Equal(tt.want) {
				t.Errorf("parseTimeField(%s) = %v, want %v", tt.data, got, tt.want)
			}
		})
	}
}
