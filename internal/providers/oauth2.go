package providers

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"mime"
	"net/http"
	"net/url"
	"strconv"
	"strings"
	"time"

	"gigearn-link/internal/models"
)

const maxTokenBody = 1 << 20

type TokenResponse struct {
	AccessToken  string    `json:"access_token"`
	RefreshToken string    `json:"refresh_token"`
	ExpiresIn    expiresIn `json:"expires_in"`
	TokenType    string    `json:"token_type"`
	Scope        string    `json:"scope"`
}

// Credential converts the response into a stored credential.
func (t TokenResponse) Credential(provider models.Provider, now time.Time) models.ProviderCredential {
	cred := models.ProviderCredential{
		Provider:     provider,
		AccessToken:  t.AccessToken,
		RefreshToken: t.RefreshToken,
		TokenType:    t.TokenType,
		Scope:        t.Scope,
		UpdatedAt:    now,
	}
	if t.ExpiresIn > 0 {
		cred.ExpiresAt = now.Add(time.Duration(t.ExpiresIn) * time.Second)
	}
	return cred
}

// expiresIn accepts both numbers and numeric strings.
type expiresIn int64

func (e *expiresIn) UnmarshalJSON(b []byte) error {
	s := strings.Trim(string(b), `"`)
	if s == "" || s == "null" {
		*e = 0
		return nil
	}
	n, err := strconv.ParseInt(s, 10, 64)
	if err != nil {
		return fmt.Errorf("expires_in: %w", err)
	}
	*e = expiresIn(n)
	return nil
}

type tokenErrorBody struct {
	Error            string `json:"error"`
	ErrorDescription string `json:"error_description"`
}

// postToken performs one form POST to the provider token endpoint.
func postToken(ctx context.Context, client *http.Client, pc ProviderConfig, form url.Values) (*TokenResponse, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, pc.TokenURL, strings.NewReader(form.Encode()))
	if err != nil {
		return nil, fmt.Errorf("failed to create request: %w", err)
	}
	req.Header.Set("Content-Type", "application/x-www-form-urlencoded")
	req.Header.Set("Accept", "application/json")

	resp, err := client.Do(req)
	if err != nil {
		return nil, &NetworkError{Op: "token exchange", URL: pc.TokenURL, Err: err}
	}
	defer resp.Body.Close()

	body, err := io.ReadAll(io.LimitReader(resp.Body, maxTokenBody))
	if err != nil {
		return nil, &NetworkError{Op: "read token response", URL: pc.TokenURL, Err: err}
	}

	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		exErr := &TokenExchangeError{
			Provider:   pc.Provider.String(),
			StatusCode: resp.StatusCode,
			Body:       string(body),
		}
		var eb tokenErrorBody
		if json.Unmarshal(body, &eb) == nil {
			exErr.ErrorCode = eb.Error
			exErr.Description = eb.ErrorDescription
		} else if vals, perr := url.ParseQuery(string(body)); perr == nil {
			exErr.ErrorCode = vals.Get("error")
			exErr.Description = vals.Get("error_description")
		}
		return nil, exErr
	}

	var token TokenResponse
	mediaType, _, _ := mime.ParseMediaType(resp.Header.Get("Content-Type"))
	if mediaType == "application/x-www-form-urlencoded" || mediaType == "text/plain" {
		vals, err := url.ParseQuery(string(body))
		if err != nil {
			return nil, &InvalidTokenResponseError{Provider: pc.Provider.String(), Reason: err.Error()}
		}
		token.AccessToken = vals.Get("access_token")
		token.RefreshToken = vals.Get("refresh_token")
		token.TokenType = vals.Get("token_type")
		token.Scope = vals.Get("scope")
		if n, err := strconv.ParseInt(vals.Get("expires_in"), 10, 64); err == nil {
			token.ExpiresIn = expiresIn(n)
		}
	} else if err := json.Unmarshal(body, &token); err != nil {
		return nil, &InvalidTokenResponseError{Provider: pc.Provider.String(), Reason: "cannot decode body: " + err.Error()}
	}

	if token.AccessToken == "" {
		return nil, &InvalidTokenResponseError{Provider: pc.Provider.String(), Reason: "missing access_token"}
	}

	return &token, nil
}
