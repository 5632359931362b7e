// Package models defines data structures and domain types.
package models

import (
	"encoding/json"
	"time"
)

// CredentialSource says where a provider's secret was resolved from.
type CredentialSource string

const (
	// CredentialSourceEnv means the secret came from an environment variable.
	CredentialSourceEnv CredentialSource = "env"
	// CredentialSourceFile means the secret came from the credentials file.
	CredentialSourceFile CredentialSource = "file"
	// CredentialSourceNone means no secret is available for the provider.
	CredentialSourceNone CredentialSource = "none"
)

// Credential holds one provider's secret material. Cursor and Trae carry a
// dashboard session token; Antigravity carries an OAuth refresh token.
// A missing credential is a legitimate unauthenticated state, not an error.
type Credential struct {
	UpdatedAt    time.Time        `json:"updatedAt,omitempty"`
	Provider     string           `json:"provider"`
	Email        string           `json:"email,omitempty"`
	SessionToken string           `json:"sessionToken,omitempty"`
	RefreshToken string           `json:"refreshToken,omitempty"`
	Source       CredentialSource `json:"-"`
}

// Secret returns whichever token the provider authenticates with.
func (c *Credential) Secret() string {
	if c.SessionToken != "" {
		return c.SessionToken
	}
	return c.RefreshToken
}

// IsZero reports whether no secret material is present.
func (c *Credential) IsZero() bool {
	return c.SessionToken == "" && c.RefreshToken == ""
}

// Clone returns a copy.
func (c *Credential) Clone() Credential {
	return *c
}

// RawCredentialData is the JSON shape of one provider entry in the
// credentials file.
type RawCredentialData struct {
	Email        string          `json:"email,omitempty"`
	SessionToken string          `json:"sessionToken,omitempty"`
	RefreshToken string          `json:"refreshToken,omitempty"`
	UpdatedAt    json.RawMessage `json:"updatedAt,omitempty"`
}

// RawCredentialsFile is the top-level structure of the credentials file.
type RawCredentialsFile struct {
	Providers map[string]RawCredentialData `json:"providers"`
	Version   int                          `json:"version"`
}

// ToCredential converts a raw file entry, parsing the timestamp field.
func (r *RawCredentialData) ToCredential(provider string) Credential {
	cred := Credential{
		Provider:     provider,
		Email:        r.Email,
		SessionToken: r.SessionToken,
		RefreshToken: r.RefreshToken,
		Source:       CredentialSourceFile,
	}
	if len(r.UpdatedAt) > 0 {
		cred.UpdatedAt = parseTimeField(r.UpdatedAt)
	}
	return cred
}

// parseTimeField parses a JSON time value as either an ISO string or a Unix
// timestamp (seconds or milliseconds).
func parseTimeField(data json.RawMessage) time.Time {
	var strVal string
	if err := json.Unmarshal(data, &strVal); err == nil {
		if t, err := time.Parse(time.RFC3339, strVal); err == nil {
			return t
		}
		if t, err := time.Parse(time.RFC3339Nano, strVal); err == nil {
			return t
		}
	}

	var numVal float64
	if err := json.Unmarshal(data, &numVal); err == nil {
		if numVal > 1e12 {
			return time.UnixMilli(int64(numVal))
		}
		return time.Unix(int64(numVal), 0)
	}

	return time.Time{}
}
