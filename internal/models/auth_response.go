package models

import "time"

// AuthRequest is what the request builder hands back for one link attempt.
type AuthRequest struct {
	AttemptID string    `json:"attemptId"`
	Provider  Provider  `json:"provider"`
	AuthURL   string    `json:"authUrl"`
	State     string    `json:"state"`
	ExpiresAt time.Time `json:"expiresAt"`
}

type LinkResultResponse struct {
	Provider         Provider `json:"provider"`
	ConnectionStatus bool     `json:"connectionStatus"`
}

type CallbackRequest struct {
	URL string `json:"url"`
}

// RefreshResponse confirms a refresh without exposing the new token.
type RefreshResponse struct {
	Provider  Provider   `json:"provider"`
	ExpiresAt *time.Time `json:"expiresAt,omitempty"`
}
