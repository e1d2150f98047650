package providers

import (
	"context"
	"fmt"
	"time"

	"github.com/google/uuid"

	"gigearn-link/internal/models"
	"gigearn-link/internal/tokenstore"
	"gigearn-link/internal/util"
)

// Builder produces authorization URLs and records the pending state for each.
type Builder struct {
	registry *Registry
	ttl      time.Duration
	clock    func() time.Time
}

func NewBuilder(registry *Registry, ttl time.Duration) *Builder {
	return &Builder{registry: registry, ttl: ttl, clock: time.Now}
}

func (b *Builder) WithClock(clock func() time.Time) *Builder {
	cp := *b
	cp.clock = clock
	return &cp
}

// BuildAuthURL persists a fresh pending state for provider and returns the
// authorize URL carrying it. An unexpired pending state for the same provider
// is never overwritten.
func (b *Builder) BuildAuthURL(ctx context.Context, store *tokenstore.Store, provider models.Provider) (models.AuthRequest, error) {
	pc, err := b.registry.Lookup(provider)
	if err != nil {
		return models.AuthRequest{}, err
	}

	state, err := util.NewStateToken()
	if err != nil {
		return models.AuthRequest{}, err
	}

	now := b.clock().UTC()
	pending := models.PendingState{
		AttemptID: uuid.NewString(),
		Provider:  provider,
		State:     state,
		CreatedAt: now,
		ExpiresAt: now.Add(b.ttl),
	}
	claimed, err := store.ClaimPendingState(ctx, pending)
	if err != nil {
		return models.AuthRequest{}, fmt.Errorf("persist pending state: %w", err)
	}
	if !claimed {
		return models.AuthRequest{}, ErrAttemptPending
	}

	return models.AuthRequest{
		AttemptID: pending.AttemptID,
		Provider:  provider,
		AuthURL:   pc.OAuth2().AuthCodeURL(state),
		State:     state,
		ExpiresAt: pending.ExpiresAt,
	}, nil
}
