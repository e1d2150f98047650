package providers

import (
	"context"
	"errors"
	"net/url"
	"time"

	"golang.org/x/sync/singleflight"

	"gigearn-link/internal/models"
	"gigearn-link/internal/tokenstore"
	"gigearn-link/internal/util"
)

const defaultRefreshTimeout = 30 * time.Second

// Refresher renews provider credentials with the refresh_token grant.
// Concurrent refreshes of the same user and provider share one request.
// The shared request outlives any single caller; each caller stops waiting
// when its own context ends.
type Refresher struct {
	exchanger *Exchanger
	group     singleflight.Group
	timeout   time.Duration
}

func NewRefresher(exchanger *Exchanger) *Refresher {
	return &Refresher{exchanger: exchanger, timeout: defaultRefreshTimeout}
}

func (r *Refresher) Refresh(ctx context.Context, store *tokenstore.Store, provider models.Provider) (*models.ProviderCredential, error) {
	key := store.UserID() + "/" + provider.String()
	ch := r.group.DoChan(key, func() (interface{}, error) {
		flightCtx, cancel := context.WithTimeout(context.WithoutCancel(ctx), r.timeout)
		defer cancel()
		return r.refresh(flightCtx, store, provider)
	})

	select {
	case <-ctx.Done():
		return nil, ctx.Err()
	case res := <-ch:
		if res.Err != nil {
			return nil, res.Err
		}
		if res.Shared {
			util.LogDebug("refresh shared", "provider", provider.String(), "userID", store.UserID())
		}
		cred := *res.Val.(*models.ProviderCredential)
		return &cred, nil
	}
}

func (r *Refresher) refresh(ctx context.Context, store *tokenstore.Store, provider models.Provider) (*models.ProviderCredential, error) {
	logs := make(map[string]map[string]any)
	logs["info"] = make(map[string]any)
	logs["error"] = make(map[string]any)
	logs["info"]["method"] = "Refresh"
	logs["info"]["provider"] = provider.String()
	logs["info"]["userID"] = store.UserID()
	defer func() {
		util.LogInfoMap(logs)
	}()

	pc, err := r.exchanger.registry.Lookup(provider)
	if err != nil {
		logs["error"]["lookup"] = err.Error()
		return nil, err
	}

	current, err := store.Credential(ctx, provider)
	if errors.Is(err, tokenstore.ErrNotFound) {
		logs["error"]["credential"] = ErrNoRefreshToken.Error()
		return nil, ErrNoRefreshToken
	}
	if err != nil {
		logs["error"]["credential"] = err.Error()
		return nil, err
	}
	if current.RefreshToken == "" {
		logs["error"]["credential"] = ErrNoRefreshToken.Error()
		return nil, ErrNoRefreshToken
	}

	form := url.Values{}
	form.Set("grant_type", "refresh_token")
	form.Set("refresh_token", current.RefreshToken)
	form.Set("client_id", pc.ClientID)
	form.Set("client_secret", pc.ClientSecret)

	token, err := r.exchanger.post(ctx, pc, form, logs)
	if err != nil {
		logs["error"]["refresh"] = err.Error()
		return nil, err
	}

	cred := token.Credential(provider, r.exchanger.clock().UTC())
	if cred.RefreshToken == "" {
		// provider did not rotate
		cred.RefreshToken = current.RefreshToken
	}
	if cred.Scope == "" {
		cred.Scope = current.Scope
	}
	if err := store.SaveCredential(ctx, cred); err != nil {
		logs["error"]["saveCredential"] = err.Error()
		return nil, err
	}
	logs["info"]["accessToken"] = util.Fingerprint(cred.AccessToken)

	return &cred, nil
}
