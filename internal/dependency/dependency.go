package dependency

import (
	"context"
	"net/http"
	"time"

	"gigearn-link/internal/models"
)

// KVStore is the durable key-value backend behind the token store.
// Get on a missing or expired key returns tokenstore.ErrNotFound.
// SetNX writes only when no live value is held under key and reports whether
// it did.
type KVStore interface {
	Get(ctx context.Context, key string) (string, error)
	Set(ctx context.Context, key, value string, ttl time.Duration) error
	SetNX(ctx context.Context, key, value string, ttl time.Duration) (bool, error)
	Delete(ctx context.Context, key string) error
}

// Purger is implemented by backends that need expired keys swept.
type Purger interface {
	PurgeExpired(ctx context.Context) (int64, error)
}

type BackendClient interface {
	ListAccounts(ctx context.Context, sessionToken string) ([]models.LinkedAccount, error)
	Disconnect(ctx context.Context, sessionToken string, provider models.Provider) error
}

type LinkHandler interface {
	StartLinkHandler(w http.ResponseWriter, r *http.Request)
	AbortLinkHandler(w http.ResponseWriter, r *http.Request)
	WaitLinkHandler(w http.ResponseWriter, r *http.Request)
	CallbackHandler(w http.ResponseWriter, r *http.Request)
}

type AccountHandler interface {
	ListAccountsHandler(w http.ResponseWriter, r *http.Request)
	DisconnectHandler(w http.ResponseWriter, r *http.Request)
	RefreshHandler(w http.ResponseWriter, r *http.Request)
	LogoutHandler(w http.ResponseWriter, r *http.Request)
}

type Handler interface {
	LinkHandler() LinkHandler
	AccountHandler() AccountHandler
}
