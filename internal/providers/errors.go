package providers

import (
	"errors"
	"fmt"
)

var (
	ErrAttemptPending = errors.New("a link attempt is already pending for this provider")
	ErrNoRefreshToken = errors.New("no refresh token stored for provider")
)

type UnsupportedProviderError struct {
	Provider string
	Reason   string
}

func (e *UnsupportedProviderError) Error() string {
	if e.Reason != "" {
		return fmt.Sprintf("unsupported provider %q: %s", e.Provider, e.Reason)
	}
	return fmt.Sprintf("unsupported provider %q", e.Provider)
}

// TokenExchangeError is a non-2xx answer from a provider token endpoint.
type TokenExchangeError struct {
	Provider    string
	StatusCode  int
	ErrorCode   string
	Description string
	Body        string
}

func (e *TokenExchangeError) Error() string {
	msg := fmt.Sprintf("%s token endpoint returned %d", e.Provider, e.StatusCode)
	if e.ErrorCode != "" {
		msg += ": " + e.ErrorCode
	}
	if e.Description != "" {
		msg += " (" + e.Description + ")"
	}
	return msg
}

// InvalidTokenResponseError is a 2xx answer that carries no usable access token.
type InvalidTokenResponseError struct {
	Provider string
	Reason   string
}

func (e *InvalidTokenResponseError) Error() string {
	return fmt.Sprintf("invalid token response from %s: %s", e.Provider, e.Reason)
}

// NetworkError is a transport failure or timeout talking to a remote endpoint.
type NetworkError struct {
	Op  string
	URL string
	Err error
}

func (e *NetworkError) Error() string {
	return fmt.Sprintf("%s %s: %v", e.Op, e.URL, e.Err)
}

func (e *NetworkError) Unwrap() error {
	return e.Err
}
