package linking

import (
	"context"
	"sync"
	"time"

	"gigearn-link/internal/models"
)

// Attempt is one user-initiated link of a provider, from the authorize URL
// to the token exchange. It resolves exactly once.
type Attempt struct {
	ID        string
	UserID    string
	Provider  models.Provider
	AuthURL   string
	State     string
	ExpiresAt time.Time

	once sync.Once
	done chan struct{}
	cred *models.ProviderCredential
	err  error
}

func newAttempt(userID string, req models.AuthRequest) *Attempt {
	return &Attempt{
		ID:        req.AttemptID,
		UserID:    userID,
		Provider:  req.Provider,
		AuthURL:   req.AuthURL,
		State:     req.State,
		ExpiresAt: req.ExpiresAt,
		done:      make(chan struct{}),
	}
}

func (a *Attempt) resolve(cred *models.ProviderCredential, err error) bool {
	resolved := false
	a.once.Do(func() {
		a.cred = cred
		a.err = err
		resolved = true
		close(a.done)
	})
	return resolved
}

func (a *Attempt) Done() <-chan struct{} {
	return a.done
}

// Result is only meaningful once Done is closed.
func (a *Attempt) Result() (*models.ProviderCredential, error) {
	select {
	case <-a.done:
		return a.cred, a.err
	default:
		return nil, nil
	}
}

func (a *Attempt) Wait(ctx context.Context) (*models.ProviderCredential, error) {
	select {
	case <-a.done:
		return a.cred, a.err
	case <-ctx.Done():
		return nil, ctx.Err()
	}
}

func (a *Attempt) AuthRequest() models.AuthRequest {
	return models.AuthRequest{
		AttemptID: a.ID,
		Provider:  a.Provider,
		AuthURL:   a.AuthURL,
		State:     a.State,
		ExpiresAt: a.ExpiresAt,
	}
}
