// Package providers defines the integration surface between refresh
// machines and vendor usage APIs. Each implementation resolves a stored
// credential, calls its vendor, and maps the response onto the shared
// snapshot type; everything else (scheduling, retries, timeouts) belongs to
// the refresh machine driving it.
package providers

import (
	"context"
	"errors"

	"github.com/quotabar/quotabar/internal/models"
)

// ErrNoCredential reports that a provider has no stored credential. This is
// a legitimate signed-out state, not a network failure, and the UI renders
// it distinctly.
var ErrNoCredential = errors.New("no credential available")

// ErrUnauthorized reports that the vendor rejected the stored credential.
var ErrUnauthorized = errors.New("credential rejected")

// CredentialSource yields the stored credential for a provider id. The
// second return is false when nothing is stored.
type CredentialSource interface {
	Credential(provider string) (models.Credential, bool)
}

// Provider is one vendor integration.
type Provider interface {
	// ID is the stable provider id, one of the models.Provider constants.
	ID() string
	// DisplayName is the human-readable provider name for the UI.
	DisplayName() string
	// Fetch retrieves a fresh snapshot. It runs on a refresh machine's
	// fetch goroutine and must honor ctx.
	Fetch(ctx context.Context) (*models.QuotaSnapshot, error)
	// ClearCache drops any credential-keyed caches so a manual refresh
	// re-resolves everything from scratch.
	ClearCache()
}
