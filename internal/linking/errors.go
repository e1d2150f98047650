package linking

import (
	"errors"
	"fmt"
)

var (
	// ErrNoPendingAttempt means a callback arrived that no link attempt is waiting for.
	ErrNoPendingAttempt = errors.New("no pending link attempt")
	ErrAttemptExpired   = errors.New("link attempt expired")
	ErrAttemptAborted   = errors.New("link attempt aborted")
	ErrMissingCode      = errors.New("callback carries no authorization code")
	ErrMalformedURL     = errors.New("malformed callback url")
)

// StateMismatchError aborts a callback whose state does not match the pending one.
type StateMismatchError struct {
	Provider string
	Reason   string
}

func (e *StateMismatchError) Error() string {
	return fmt.Sprintf("state mismatch for %s: %s", e.Provider, e.Reason)
}

// ProviderDeniedError carries the error a provider put into the redirect.
type ProviderDeniedError struct {
	Provider    string
	ErrorCode   string
	Description string
}

func (e *ProviderDeniedError) Error() string {
	if e.Description != "" {
		return fmt.Sprintf("%s denied authorization: %s (%s)", e.Provider, e.ErrorCode, e.Description)
	}
	return fmt.Sprintf("%s denied authorization: %s", e.Provider, e.ErrorCode)
}
