package linking

import (
	"context"
	"errors"
	"fmt"
	"time"

	"gigearn-link/internal/backend"
	"gigearn-link/internal/models"
	"gigearn-link/internal/providers"
	"gigearn-link/internal/tokenstore"
	"gigearn-link/internal/util"
)

const (
	cleanupTimeout = 5 * time.Second
	// used when a revoked session token carries no readable exp
	fallbackRevokeTTL = 24 * time.Hour
)

// Linker runs the linking operations of one user.
type Linker struct {
	m      *Manager
	userID string
	store  *tokenstore.Store
	book   *AccountBook
}

func (l *Linker) UserID() string {
	return l.userID
}

func (l *Linker) Store() *tokenstore.Store {
	return l.store
}

// StartAttempt persists a pending state for provider and subscribes the new
// attempt for its callback.
func (l *Linker) StartAttempt(ctx context.Context, provider models.Provider) (*Attempt, error) {
	req, err := l.m.builder.BuildAuthURL(ctx, l.store, provider)
	if err != nil {
		return nil, err
	}

	a := newAttempt(l.userID, req)
	l.m.trackAttempt(a)
	l.m.listener.Subscribe(a, req.ExpiresAt.Sub(l.m.clock()), l.expire)

	util.LogInfo("link attempt started", "provider", provider.String(), "userID", l.userID, "attemptID", a.ID)
	return a, nil
}

func (l *Linker) expire(a *Attempt) {
	ctx, cancel := context.WithTimeout(context.Background(), cleanupTimeout)
	defer cancel()

	pending, err := l.store.PendingState(ctx, a.Provider)
	if err == nil && pending.AttemptID == a.ID {
		if err := l.store.ClearPendingState(ctx, a.Provider); err != nil {
			util.LogError(err, "provider", a.Provider.String(), "userID", l.userID)
		}
	}
	a.resolve(nil, ErrAttemptExpired)
	l.m.forgetAttempt(a)
}

// HandleRedirect completes the attempt a callback URL belongs to: the state
// is checked, the code exchanged and the credential stored. A URL no attempt
// is waiting for yields ErrNoPendingAttempt.
func (l *Linker) HandleRedirect(ctx context.Context, rawURL string) (*models.ProviderCredential, error) {
	a, params, ok := l.m.listener.Dispatch(l.userID, rawURL)
	if !ok {
		return nil, ErrNoPendingAttempt
	}

	cred, err := l.complete(ctx, params)
	a.resolve(cred, err)
	return cred, err
}

func (l *Linker) complete(ctx context.Context, params CallbackParams) (*models.ProviderCredential, error) {
	if err := l.ValidateCallback(ctx, params); err != nil {
		return nil, err
	}

	cred, err := l.m.exchanger.Exchange(ctx, l.store, params.Code, params.Provider)
	if err != nil {
		return nil, err
	}

	l.book.SetConnection(params.Provider, true, l.m.clock().UTC())
	return cred, nil
}

// ValidateCallback consumes the pending state of the callback's provider and
// checks the callback against it. The pending state is cleared whatever the
// outcome.
func (l *Linker) ValidateCallback(ctx context.Context, params CallbackParams) error {
	pending, loadErr := l.store.PendingState(ctx, params.Provider)
	clearErr := l.store.ClearPendingState(ctx, params.Provider)

	if loadErr != nil && !errors.Is(loadErr, tokenstore.ErrNotFound) {
		return loadErr
	}

	var mismatch *StateMismatchError
	switch {
	case pending == nil:
		mismatch = &StateMismatchError{Provider: params.Provider.String(), Reason: "no pending state"}
	case !util.EqualTokens(pending.State, params.State):
		mismatch = &StateMismatchError{Provider: params.Provider.String(), Reason: "state does not match"}
	}
	if mismatch != nil {
		util.LogWarn("callback rejected",
			"provider", params.Provider.String(),
			"userID", l.userID,
			"reason", mismatch.Reason,
			"state", util.Fingerprint(params.State),
		)
		return mismatch
	}

	if clearErr != nil {
		return clearErr
	}

	if params.Error != "" {
		return &ProviderDeniedError{
			Provider:    params.Provider.String(),
			ErrorCode:   params.Error,
			Description: params.ErrorDescription,
		}
	}
	if params.Code == "" {
		return ErrMissingCode
	}
	return nil
}

// Wait blocks until the latest attempt for provider resolves.
func (l *Linker) Wait(ctx context.Context, provider models.Provider) (*models.ProviderCredential, error) {
	a, ok := l.m.attempts.Load(subKey(l.userID, provider))
	if !ok {
		return nil, ErrNoPendingAttempt
	}
	return a.Wait(ctx)
}

// AbortAttempt drops the pending attempt for provider, if any.
func (l *Linker) AbortAttempt(ctx context.Context, provider models.Provider) error {
	if !provider.IsSupported() {
		return &providers.UnsupportedProviderError{Provider: provider.String()}
	}
	if a, ok := l.m.listener.Cancel(l.userID, provider); ok {
		a.resolve(nil, ErrAttemptAborted)
		l.m.forgetAttempt(a)
		util.LogInfo("link attempt aborted", "provider", provider.String(), "userID", l.userID, "attemptID", a.ID)
	}
	return l.store.ClearPendingState(ctx, provider)
}

// Accounts fetches the backend account list and reconciles it with the
// stored credentials. The result becomes the displayed list.
func (l *Linker) Accounts(ctx context.Context) ([]models.LinkedAccount, error) {
	session, err := l.session(ctx)
	if err != nil {
		return nil, err
	}

	remote, err := l.m.backend.ListAccounts(ctx, session)
	if err != nil {
		return nil, l.backendError(ctx, err)
	}

	creds, err := l.store.Credentials(ctx)
	if err != nil {
		return nil, err
	}

	accounts := Reconcile(creds, remote, l.userID, l.m.clock().UTC())
	l.book.Set(accounts)
	return accounts, nil
}

// Displayed returns the last displayed list without calling the backend.
func (l *Linker) Displayed() []models.LinkedAccount {
	return l.book.Snapshot()
}

// Unlink disconnects provider at the backend. The displayed list and the
// stored credential change only when the backend accepted the disconnect.
func (l *Linker) Unlink(ctx context.Context, provider models.Provider) ([]models.LinkedAccount, error) {
	if !provider.IsSupported() {
		return nil, &providers.UnsupportedProviderError{Provider: provider.String()}
	}

	session, err := l.session(ctx)
	if err != nil {
		return nil, err
	}

	if err := l.m.backend.Disconnect(ctx, session, provider); err != nil {
		return nil, l.backendError(ctx, fmt.Errorf("disconnect %s: %w", provider, err))
	}

	accounts := l.book.SetConnection(provider, false, l.m.clock().UTC())
	if err := l.store.DeleteCredential(ctx, provider); err != nil {
		return accounts, err
	}
	return accounts, nil
}

func (l *Linker) Refresh(ctx context.Context, provider models.Provider) (*models.ProviderCredential, error) {
	return l.m.refresher.Refresh(ctx, l.store, provider)
}

// Logout revokes the session token and forgets the displayed list. The
// revoked token is refused until it expires.
func (l *Linker) Logout(ctx context.Context) error {
	l.book.Clear()
	l.m.dropUser(l.userID)
	return l.revokeSession(ctx)
}

func (l *Linker) revokeSession(ctx context.Context) error {
	session, err := l.store.Session(ctx)
	if errors.Is(err, tokenstore.ErrNotFound) {
		return nil
	}
	if err != nil {
		return err
	}

	ttl := fallbackRevokeTTL
	if exp, err := util.SessionExpiry(session); err == nil {
		ttl = exp.Sub(l.m.clock())
	}
	return l.store.RevokeSession(ctx, session, ttl)
}

func (l *Linker) session(ctx context.Context) (string, error) {
	session, err := l.store.Session(ctx)
	if errors.Is(err, tokenstore.ErrNotFound) {
		return "", backend.ErrSessionExpired
	}
	return session, err
}

func (l *Linker) backendError(ctx context.Context, err error) error {
	if errors.Is(err, backend.ErrSessionExpired) {
		if revokeErr := l.revokeSession(ctx); revokeErr != nil {
			util.LogError(revokeErr, "userID", l.userID)
		}
		l.book.Clear()
	}
	return err
}
