// Package backend talks to the earnings backend that owns account state.
package backend

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"

	"gigearn-link/internal/models"
	"gigearn-link/internal/providers"
)

// ErrSessionExpired is returned when the backend answers 401.
var ErrSessionExpired = errors.New("backend session expired")

const maxErrorBody = 4 << 10

type StatusError struct {
	Method     string
	Path       string
	StatusCode int
	Body       string
}

func (e *StatusError) Error() string {
	return fmt.Sprintf("backend %s %s returned %d", e.Method, e.Path, e.StatusCode)
}

type Client struct {
	baseURL    string
	httpClient *http.Client
}

func NewClient(baseURL string, timeout time.Duration) *Client {
	return &Client{
		baseURL:    strings.TrimRight(baseURL, "/"),
		httpClient: &http.Client{Timeout: timeout},
	}
}

// ListAccounts accepts either a bare JSON array or {"accounts": [...]}.
func (c *Client) ListAccounts(ctx context.Context, sessionToken string) ([]models.LinkedAccount, error) {
	body, err := c.do(ctx, http.MethodGet, "/accounts", sessionToken)
	if err != nil {
		return nil, err
	}

	trimmed := bytes.TrimSpace(body)
	if len(trimmed) == 0 {
		return nil, nil
	}

	var accounts []models.LinkedAccount
	if trimmed[0] == '[' {
		if err := json.Unmarshal(trimmed, &accounts); err != nil {
			return nil, fmt.Errorf("decode accounts: %w", err)
		}
		return accounts, nil
	}

	var wrapped models.AccountsResponse
	if err := json.Unmarshal(trimmed, &wrapped); err != nil {
		return nil, fmt.Errorf("decode accounts: %w", err)
	}
	return wrapped.Accounts, nil
}

func (c *Client) Disconnect(ctx context.Context, sessionToken string, provider models.Provider) error {
	_, err := c.do(ctx, http.MethodPost, "/accounts/"+provider.String()+"/disconnect", sessionToken)
	return err
}

func (c *Client) do(ctx context.Context, method, path, sessionToken string) ([]byte, error) {
	req, err := http.NewRequestWithContext(ctx, method, c.baseURL+path, nil)
	if err != nil {
		return nil, fmt.Errorf("failed to create request: %w", err)
	}
	req.Header.Set("Authorization", "Bearer "+sessionToken)
	req.Header.Set("Accept", "application/json")

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return nil, &providers.NetworkError{Op: "backend " + method, URL: c.baseURL + path, Err: err}
	}
	defer resp.Body.Close()

	if resp.StatusCode == http.StatusUnauthorized {
		return nil, ErrSessionExpired
	}

	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		body, _ := io.ReadAll(io.LimitReader(resp.Body, maxErrorBody))
		return nil, &StatusError{Method: method, Path: path, StatusCode: resp.StatusCode, Body: string(body)}
	}

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, &providers.NetworkError{Op: "backend " + method, URL: c.baseURL + path, Err: err}
	}
	return body, nil
}
