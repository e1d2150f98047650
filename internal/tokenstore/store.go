// Package tokenstore is the typed view of the token store for one user:
// the session token, one credential per provider and one pending OAuth
// state slot per provider.
package tokenstore

import (
	"context"
	"crypto/sha256"
	"encoding/hex"
	"encoding/json"
	"errors"
	"time"

	"gigearn-link/internal/dependency"
	"gigearn-link/internal/models"
)

type Store struct {
	kv     dependency.KVStore
	userID string
	clock  func() time.Time
}

func New(kv dependency.KVStore, userID string) *Store {
	return &Store{kv: kv, userID: userID, clock: time.Now}
}

// WithClock returns a copy of the store that reads time from clock.
func (s *Store) WithClock(clock func() time.Time) *Store {
	cp := *s
	cp.clock = clock
	return &cp
}

func (s *Store) UserID() string {
	return s.userID
}

func SessionKey(userID string) string {
	return "user/" + userID + "/session"
}

func RevokedSessionKey(userID, token string) string {
	sum := sha256.Sum256([]byte(token))
	return "user/" + userID + "/revoked_session/" + hex.EncodeToString(sum[:])
}

func CredentialKey(userID string, provider models.Provider) string {
	return "user/" + userID + "/credential/" + provider.String()
}

func PendingStateKey(userID string, provider models.Provider) string {
	return "user/" + userID + "/oauth_state/" + provider.String()
}

func (s *Store) SaveSession(ctx context.Context, token string) error {
	key := SessionKey(s.userID)
	return wrap("set", key, s.kv.Set(ctx, key, token, 0))
}

func (s *Store) Session(ctx context.Context) (string, error) {
	key := SessionKey(s.userID)
	token, err := s.kv.Get(ctx, key)
	return token, wrap("get", key, err)
}

func (s *Store) ClearSession(ctx context.Context) error {
	key := SessionKey(s.userID)
	return wrap("delete", key, s.kv.Delete(ctx, key))
}

// RevokeSession marks token as no longer usable for ttl and forgets it as the
// current session.
func (s *Store) RevokeSession(ctx context.Context, token string, ttl time.Duration) error {
	if ttl > 0 {
		key := RevokedSessionKey(s.userID, token)
		if err := s.kv.Set(ctx, key, "1", ttl); err != nil {
			return wrap("set", key, err)
		}
	}
	return s.ClearSession(ctx)
}

// SessionRevoked reports whether token was revoked and has not yet expired.
func (s *Store) SessionRevoked(ctx context.Context, token string) (bool, error) {
	key := RevokedSessionKey(s.userID, token)
	_, err := s.kv.Get(ctx, key)
	switch {
	case err == nil:
		return true, nil
	case errors.Is(err, ErrNotFound):
		return false, nil
	default:
		return false, wrap("get", key, err)
	}
}

// SaveCredential overwrites any credential already stored for the provider.
func (s *Store) SaveCredential(ctx context.Context, cred models.ProviderCredential) error {
	key := CredentialKey(s.userID, cred.Provider)
	if cred.UpdatedAt.IsZero() {
		cred.UpdatedAt = s.clock().UTC()
	}
	return s.putJSON(ctx, key, cred, 0)
}

func (s *Store) Credential(ctx context.Context, provider models.Provider) (*models.ProviderCredential, error) {
	var cred models.ProviderCredential
	if err := s.getJSON(ctx, CredentialKey(s.userID, provider), &cred); err != nil {
		return nil, err
	}
	return &cred, nil
}

func (s *Store) DeleteCredential(ctx context.Context, provider models.Provider) error {
	key := CredentialKey(s.userID, provider)
	return wrap("delete", key, s.kv.Delete(ctx, key))
}

// Credentials returns the stored credentials in supported-provider order.
func (s *Store) Credentials(ctx context.Context) ([]models.ProviderCredential, error) {
	creds := make([]models.ProviderCredential, 0, len(models.SupportedProviders))
	for _, p := range models.SupportedProviders {
		cred, err := s.Credential(ctx, p)
		if errors.Is(err, ErrNotFound) {
			continue
		}
		if err != nil {
			return nil, err
		}
		creds = append(creds, *cred)
	}
	return creds, nil
}

// SavePendingState writes the provider's pending slot. The backend expires
// it together with the attempt.
func (s *Store) SavePendingState(ctx context.Context, pending models.PendingState) error {
	ttl := pending.ExpiresAt.Sub(s.clock())
	if ttl <= 0 {
		return &StorageError{Op: "set", Key: PendingStateKey(s.userID, pending.Provider), Err: errors.New("pending state already expired")}
	}
	return s.putJSON(ctx, PendingStateKey(s.userID, pending.Provider), pending, ttl)
}

// ClaimPendingState writes the provider's pending slot only if no unexpired
// state holds it. It reports false when the slot is taken.
func (s *Store) ClaimPendingState(ctx context.Context, pending models.PendingState) (bool, error) {
	key := PendingStateKey(s.userID, pending.Provider)
	ttl := pending.ExpiresAt.Sub(s.clock())
	if ttl <= 0 {
		return false, &StorageError{Op: "claim", Key: key, Err: errors.New("pending state already expired")}
	}
	raw, err := json.Marshal(pending)
	if err != nil {
		return false, &StorageError{Op: "encode", Key: key, Err: err}
	}
	ok, err := s.kv.SetNX(ctx, key, string(raw), ttl)
	return ok, wrap("claim", key, err)
}

// PendingState returns ErrNotFound for a missing or expired slot.
func (s *Store) PendingState(ctx context.Context, provider models.Provider) (*models.PendingState, error) {
	var pending models.PendingState
	if err := s.getJSON(ctx, PendingStateKey(s.userID, provider), &pending); err != nil {
		return nil, err
	}
	if pending.Expired(s.clock()) {
		return nil, ErrNotFound
	}
	return &pending, nil
}

func (s *Store) ClearPendingState(ctx context.Context, provider models.Provider) error {
	key := PendingStateKey(s.userID, provider)
	return wrap("delete", key, s.kv.Delete(ctx, key))
}

func (s *Store) putJSON(ctx context.Context, key string, v any, ttl time.Duration) error {
	raw, err := json.Marshal(v)
	if err != nil {
		return &StorageError{Op: "encode", Key: key, Err: err}
	}
	return wrap("set", key, s.kv.Set(ctx, key, string(raw), ttl))
}

func (s *Store) getJSON(ctx context.Context, key string, v any) error {
	raw, err := s.kv.Get(ctx, key)
	if err != nil {
		return wrap("get", key, err)
	}
	if err := json.Unmarshal([]byte(raw), v); err != nil {
		return &StorageError{Op: "decode", Key: key, Err: err}
	}
	return nil
}
