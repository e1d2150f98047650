package providers

import (
	"context"
	"errors"
	"net/http"
	"net/url"
	"time"

	"github.com/cenkalti/backoff/v5"

	"gigearn-link/internal/models"
	"gigearn-link/internal/tokenstore"
	"gigearn-link/internal/util"
)

// Exchanger trades authorization codes for provider credentials.
type Exchanger struct {
	registry    *Registry
	client      *http.Client
	maxAttempts uint
	// first retry delay; doubles per attempt
	retryInterval time.Duration
	clock         func() time.Time
}

func NewExchanger(registry *Registry, client *http.Client, maxAttempts uint) *Exchanger {
	if client == nil {
		client = http.DefaultClient
	}
	if maxAttempts == 0 {
		maxAttempts = 1
	}
	return &Exchanger{
		registry:      registry,
		client:        client,
		maxAttempts:   maxAttempts,
		retryInterval: 300 * time.Millisecond,
		clock:         time.Now,
	}
}

// Exchange redeems code at the provider token endpoint and stores the
// resulting credential, replacing any earlier one for the provider.
func (e *Exchanger) Exchange(ctx context.Context, store *tokenstore.Store, code string, provider models.Provider) (*models.ProviderCredential, error) {
	logs := make(map[string]map[string]any)
	logs["info"] = make(map[string]any)
	logs["error"] = make(map[string]any)
	logs["info"]["method"] = "Exchange"
	logs["info"]["provider"] = provider.String()
	logs["info"]["userID"] = store.UserID()
	defer func() {
		util.LogInfoMap(logs)
	}()

	pc, err := e.registry.Lookup(provider)
	if err != nil {
		logs["error"]["lookup"] = err.Error()
		return nil, err
	}

	form := url.Values{}
	form.Set("grant_type", "authorization_code")
	form.Set("code", code)
	form.Set("client_id", pc.ClientID)
	form.Set("client_secret", pc.ClientSecret)
	form.Set("redirect_uri", pc.RedirectURI)

	token, err := e.post(ctx, pc, form, logs)
	if err != nil {
		logs["error"]["exchange"] = err.Error()
		return nil, err
	}

	cred := token.Credential(provider, e.clock().UTC())
	if err := store.SaveCredential(ctx, cred); err != nil {
		logs["error"]["saveCredential"] = err.Error()
		return nil, err
	}
	logs["info"]["accessToken"] = util.Fingerprint(cred.AccessToken)

	return &cred, nil
}

// post sends form, retrying transport failures only.
func (e *Exchanger) post(ctx context.Context, pc ProviderConfig, form url.Values, logs map[string]map[string]any) (*TokenResponse, error) {
	attempts := 0
	operation := func() (*TokenResponse, error) {
		attempts++
		token, err := postToken(ctx, e.client, pc, form)
		if err == nil {
			return token, nil
		}
		var netErr *NetworkError
		if errors.As(err, &netErr) && ctx.Err() == nil {
			return nil, err
		}
		return nil, backoff.Permanent(err)
	}

	policy := backoff.NewExponentialBackOff()
	policy.InitialInterval = e.retryInterval
	policy.MaxInterval = 8 * e.retryInterval

	token, err := backoff.Retry(ctx, operation,
		backoff.WithBackOff(policy),
		backoff.WithMaxTries(e.maxAttempts),
	)
	logs["info"]["attempts"] = attempts
	var permanent *backoff.PermanentError
	if errors.As(err, &permanent) {
		err = permanent.Err
	}
	var netErr *NetworkError
	if err != nil && ctx.Err() != nil && !errors.As(err, &netErr) {
		err = &NetworkError{Op: "token exchange", URL: pc.TokenURL, Err: err}
	}
	return token, err
}
