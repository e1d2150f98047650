package models

import "time"

// ProviderCredential is the token pair obtained for one linked platform.
// It is only ever held in the token store and never returned to the app.
type ProviderCredential struct {
	Provider     Provider  `json:"provider"`
	AccessToken  string    `json:"access_token"`
	RefreshToken string    `json:"refresh_token,omitempty"`
	TokenType    string    `json:"token_type,omitempty"`
	Scope        string    `json:"scope,omitempty"`
	ExpiresAt    time.Time `json:"expires_at,omitempty"`
	UpdatedAt    time.Time `json:"updated_at"`
}

// Expired reports whether the access token is past its expiry. Credentials
// without an expiry never expire locally.
func (c ProviderCredential) Expired(now time.Time) bool {
	return !c.ExpiresAt.IsZero() && !now.Before(c.ExpiresAt)
}

// PendingState is the per-provider slot written before the authorization URL
// is handed out and consumed by the first callback.
type PendingState struct {
	AttemptID string    `json:"attempt_id"`
	Provider  Provider  `json:"provider"`
	State     string    `json:"state"`
	CreatedAt time.Time `json:"created_at"`
	ExpiresAt time.Time `json:"expires_at"`
}

func (p PendingState) Expired(now time.Time) bool {
	return !now.Before(p.ExpiresAt)
}
