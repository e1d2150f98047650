package linking

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"net/url"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"gigearn-link/internal/backend"
	"gigearn-link/internal/memory"
	"gigearn-link/internal/models"
	"gigearn-link/internal/providers"
	"gigearn-link/internal/tokenstore"
)

const callbackBase = "gigearn://oauth/callback"

type mockBackend struct {
	ListAccountsFunc func(ctx context.Context, sessionToken string) ([]models.LinkedAccount, error)
	DisconnectFunc   func(ctx context.Context, sessionToken string, provider models.Provider) error
}

func (m *mockBackend) ListAccounts(ctx context.Context, sessionToken string) ([]models.LinkedAccount, error) {
	if m.ListAccountsFunc != nil {
		return m.ListAccountsFunc(ctx, sessionToken)
	}
	return nil, nil
}

func (m *mockBackend) Disconnect(ctx context.Context, sessionToken string, provider models.Provider) error {
	if m.DisconnectFunc != nil {
		return m.DisconnectFunc(ctx, sessionToken, provider)
	}
	return nil
}

type tokenServer struct {
	*httptest.Server
	mu    sync.Mutex
	codes []string
}

func newTokenServer(t *testing.T) *tokenServer {
	ts := &tokenServer{}
	ts.Server = httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		require.NoError(t, r.ParseForm())
		ts.mu.Lock()
		ts.codes = append(ts.codes, r.PostForm.Get("code"))
		ts.mu.Unlock()
		w.Header().Set("Content-Type", "application/json")
		_ = json.NewEncoder(w).Encode(map[string]any{
			"access_token":  "at-" + r.PostForm.Get("code"),
			"refresh_token": "rt-" + r.PostForm.Get("code"),
			"expires_in":    3600,
		})
	}))
	t.Cleanup(ts.Close)
	return ts
}

func (ts *tokenServer) Codes() []string {
	ts.mu.Lock()
	defer ts.mu.Unlock()
	return append([]string(nil), ts.codes...)
}

type fixture struct {
	manager *Manager
	kv      *memory.MemoryStore
	tokens  *tokenServer
	backend *mockBackend
}

func newFixture(t *testing.T, ttl time.Duration) *fixture {
	t.Helper()
	tokens := newTokenServer(t)

	var configs []providers.ProviderConfig
	for _, p := range models.SupportedProviders {
		configs = append(configs, providers.ProviderConfig{
			Provider:     p,
			ClientID:     p.String() + "-client",
			ClientSecret: p.String() + "-secret",
			AuthURL:      "https://auth.example.com/" + p.String() + "/authorize",
			TokenURL:     tokens.URL,
			Scopes:       []string{"earnings"},
			RedirectURI:  providers.RedirectURI(callbackBase, p),
		})
	}
	registry := providers.NewStaticRegistry(configs...)
	exchanger := providers.NewExchanger(registry, tokens.Client(), 1)
	kv := memory.NewMemoryStore()
	mb := &mockBackend{}

	m := NewManager(kv, providers.NewBuilder(registry, ttl), exchanger, providers.NewRefresher(exchanger), mb, NewListener(callbackBase))
	return &fixture{manager: m, kv: kv, tokens: tokens, backend: mb}
}

func callbackURL(provider models.Provider, query url.Values) string {
	return callbackBase + "/" + provider.String() + "?" + query.Encode()
}

func TestParseCallbackParams(t *testing.T) {
	cases := []struct {
		name string
		raw  string
		want CallbackParams
	}{
		{
			name: "query",
			raw:  "gigearn://oauth/callback/uber?code=XYZ&state=s1",
			want: CallbackParams{Provider: models.ProviderUber, Code: "XYZ", State: "s1"},
		},
		{
			name: "fragment only",
			raw:  "gigearn://oauth/callback/lyft#code=abc&state=s2",
			want: CallbackParams{Provider: models.ProviderLyft, Code: "abc", State: "s2"},
		},
		{
			name: "query before junk fragment",
			raw:  "gigearn://oauth/callback/doordash?code=c1&state=s3#_=_",
			want: CallbackParams{Provider: models.ProviderDoorDash, Code: "c1", State: "s3"},
		},
		{
			name: "split across query and fragment",
			raw:  "gigearn://oauth/callback/uber?state=s4#code=c4",
			want: CallbackParams{Provider: models.ProviderUber, Code: "c4", State: "s4"},
		},
		{
			name: "query wins",
			raw:  "gigearn://oauth/callback/uber?code=q&state=sq#code=f&state=sf",
			want: CallbackParams{Provider: models.ProviderUber, Code: "q", State: "sq"},
		},
		{
			name: "provider error",
			raw:  "gigearn://oauth/callback/uber/?error=access_denied&error_description=User+said+no&state=s5",
			want: CallbackParams{Provider: models.ProviderUber, State: "s5", Error: "access_denied", ErrorDescription: "User said no"},
		},
	}

	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			got, err := ParseCallbackParams(tc.raw)
			require.NoError(t, err)
			require.Equal(t, tc.want, got)
		})
	}

	_, err := ParseCallbackParams("?code=x")
	require.ErrorIs(t, err, ErrMalformedURL)
}

func TestParseCallbackParams_RoundTripFromAuthURL(t *testing.T) {
	f := newFixture(t, time.Minute)
	ctx := context.Background()

	for _, p := range models.SupportedProviders {
		linker := f.manager.For("round-trip")
		a, err := linker.StartAttempt(ctx, p)
		require.NoError(t, err)

		u, err := url.Parse(a.AuthURL)
		require.NoError(t, err)
		q := u.Query()
		q.Set("code", "abc123")
		u.RawQuery = q.Encode()

		params, err := ParseCallbackParams(u.String())
		require.NoError(t, err)
		require.Equal(t, "abc123", params.Code)
		require.Equal(t, a.State, params.State)

		require.NoError(t, linker.AbortAttempt(ctx, p))
	}
}

func TestAuthURLStateMatchesStoredState(t *testing.T) {
	f := newFixture(t, time.Minute)
	ctx := context.Background()
	linker := f.manager.For("u1")

	for _, p := range models.SupportedProviders {
		a, err := linker.StartAttempt(ctx, p)
		require.NoError(t, err)

		u, err := url.Parse(a.AuthURL)
		require.NoError(t, err)

		pending, err := linker.Store().PendingState(ctx, p)
		require.NoError(t, err)
		require.Equal(t, u.Query().Get("state"), pending.State)
	}
}

// Scenario A
func TestHandleRedirect_Success(t *testing.T) {
	f := newFixture(t, time.Minute)
	ctx := context.Background()
	linker := f.manager.For("u1")

	a, err := linker.StartAttempt(ctx, models.ProviderUber)
	require.NoError(t, err)

	cred, err := linker.HandleRedirect(ctx, callbackURL(models.ProviderUber, url.Values{"code": {"XYZ"}, "state": {a.State}}))
	require.NoError(t, err)
	require.Equal(t, "at-XYZ", cred.AccessToken)
	require.Equal(t, []string{"XYZ"}, f.tokens.Codes())

	stored, err := tokenstore.New(f.kv, "u1").Credential(ctx, models.ProviderUber)
	require.NoError(t, err)
	require.Equal(t, "at-XYZ", stored.AccessToken)
	require.Equal(t, "rt-XYZ", stored.RefreshToken)

	_, err = linker.Store().PendingState(ctx, models.ProviderUber)
	require.ErrorIs(t, err, tokenstore.ErrNotFound)

	waited, err := linker.Wait(ctx, models.ProviderUber)
	require.NoError(t, err)
	require.Equal(t, cred, waited)

	displayed := linker.Displayed()
	require.Len(t, displayed, 3)
	require.Equal(t, models.ProviderUber, displayed[0].Type)
	require.True(t, displayed[0].ConnectionStatus)
	require.False(t, displayed[1].ConnectionStatus)
}

// Scenario B
func TestHandleRedirect_StateMismatch(t *testing.T) {
	f := newFixture(t, time.Minute)
	ctx := context.Background()
	linker := f.manager.For("u1")

	a, err := linker.StartAttempt(ctx, models.ProviderUber)
	require.NoError(t, err)

	_, err = linker.HandleRedirect(ctx, callbackURL(models.ProviderUber, url.Values{"code": {"XYZ"}, "state": {"forged"}}))
	var mismatch *StateMismatchError
	require.ErrorAs(t, err, &mismatch)
	require.Empty(t, f.tokens.Codes())

	_, err = linker.Store().PendingState(ctx, models.ProviderUber)
	require.ErrorIs(t, err, tokenstore.ErrNotFound)

	_, err = linker.Store().Credential(ctx, models.ProviderUber)
	require.ErrorIs(t, err, tokenstore.ErrNotFound)

	_, err = a.Wait(ctx)
	require.ErrorAs(t, err, &mismatch)
}

func TestHandleRedirect_ProviderDenied(t *testing.T) {
	f := newFixture(t, time.Minute)
	ctx := context.Background()
	linker := f.manager.For("u1")

	a, err := linker.StartAttempt(ctx, models.ProviderLyft)
	require.NoError(t, err)

	_, err = linker.HandleRedirect(ctx, callbackURL(models.ProviderLyft, url.Values{
		"error":             {"access_denied"},
		"error_description": {"user cancelled"},
		"state":             {a.State},
	}))
	var denied *ProviderDeniedError
	require.ErrorAs(t, err, &denied)
	require.Equal(t, "access_denied", denied.ErrorCode)
	require.Empty(t, f.tokens.Codes())

	_, err = linker.Store().PendingState(ctx, models.ProviderLyft)
	require.ErrorIs(t, err, tokenstore.ErrNotFound)
}

func TestHandleRedirect_AtMostOnce(t *testing.T) {
	f := newFixture(t, time.Minute)
	ctx := context.Background()
	linker := f.manager.For("u1")

	a, err := linker.StartAttempt(ctx, models.ProviderUber)
	require.NoError(t, err)
	raw := callbackURL(models.ProviderUber, url.Values{"code": {"once"}, "state": {a.State}})

	_, err = linker.HandleRedirect(ctx, raw)
	require.NoError(t, err)

	_, err = linker.HandleRedirect(ctx, raw)
	require.ErrorIs(t, err, ErrNoPendingAttempt)
	require.Equal(t, []string{"once"}, f.tokens.Codes())
}

func TestHandleRedirect_IgnoredURLs(t *testing.T) {
	f := newFixture(t, time.Minute)
	ctx := context.Background()
	linker := f.manager.For("u1")

	_, err := linker.HandleRedirect(ctx, callbackURL(models.ProviderUber, url.Values{"code": {"x"}, "state": {"y"}}))
	require.ErrorIs(t, err, ErrNoPendingAttempt)

	a, err := linker.StartAttempt(ctx, models.ProviderUber)
	require.NoError(t, err)

	_, err = linker.HandleRedirect(ctx, "https://evil.example.com/callback/uber?code=x&state="+a.State)
	require.ErrorIs(t, err, ErrNoPendingAttempt)

	// another user's callback does not reach this attempt
	_, err = f.manager.For("u2").HandleRedirect(ctx, callbackURL(models.ProviderUber, url.Values{"code": {"x"}, "state": {a.State}}))
	require.ErrorIs(t, err, ErrNoPendingAttempt)

	require.True(t, f.manager.Listener().Pending("u1", models.ProviderUber))
	_, err = linker.Store().PendingState(ctx, models.ProviderUber)
	require.NoError(t, err)
	require.Empty(t, f.tokens.Codes())
}

func TestValidateCallback(t *testing.T) {
	f := newFixture(t, time.Minute)
	ctx := context.Background()
	linker := f.manager.For("u1")

	var mismatch *StateMismatchError
	err := linker.ValidateCallback(ctx, CallbackParams{Provider: models.ProviderUber, Code: "c", State: "anything"})
	require.ErrorAs(t, err, &mismatch)
	require.Equal(t, "no pending state", mismatch.Reason)

	a, err := linker.StartAttempt(ctx, models.ProviderUber)
	require.NoError(t, err)
	require.NoError(t, linker.ValidateCallback(ctx, CallbackParams{Provider: models.ProviderUber, Code: "c", State: a.State}))

	_, err = linker.Store().PendingState(ctx, models.ProviderUber)
	require.ErrorIs(t, err, tokenstore.ErrNotFound)

	// the slot is single use
	err = linker.ValidateCallback(ctx, CallbackParams{Provider: models.ProviderUber, Code: "c", State: a.State})
	require.ErrorAs(t, err, &mismatch)
}

func TestValidateCallback_MissingCode(t *testing.T) {
	f := newFixture(t, time.Minute)
	ctx := context.Background()
	linker := f.manager.For("u1")

	require.NoError(t, linker.Store().SavePendingState(ctx, models.PendingState{
		AttemptID: "a1",
		Provider:  models.ProviderDoorDash,
		State:     "st",
		ExpiresAt: time.Now().Add(time.Minute),
	}))
	err := linker.ValidateCallback(ctx, CallbackParams{Provider: models.ProviderDoorDash, State: "st"})
	require.ErrorIs(t, err, ErrMissingCode)
}

func TestStartAttempt_PerProviderSlots(t *testing.T) {
	f := newFixture(t, time.Minute)
	ctx := context.Background()
	linker := f.manager.For("u1")

	uber, err := linker.StartAttempt(ctx, models.ProviderUber)
	require.NoError(t, err)
	lyft, err := linker.StartAttempt(ctx, models.ProviderLyft)
	require.NoError(t, err)

	_, err = linker.StartAttempt(ctx, models.ProviderUber)
	require.ErrorIs(t, err, providers.ErrAttemptPending)

	// other users keep their own slots
	_, err = f.manager.For("u2").StartAttempt(ctx, models.ProviderUber)
	require.NoError(t, err)

	_, err = linker.HandleRedirect(ctx, callbackURL(models.ProviderLyft, url.Values{"code": {"L"}, "state": {lyft.State}}))
	require.NoError(t, err)
	_, err = linker.HandleRedirect(ctx, callbackURL(models.ProviderUber, url.Values{"code": {"U"}, "state": {uber.State}}))
	require.NoError(t, err)

	require.ElementsMatch(t, []string{"L", "U"}, f.tokens.Codes())
}

// slowKV adds latency to every store call so concurrent callers overlap.
type slowKV struct {
	*memory.MemoryStore
	delay time.Duration
}

func (s slowKV) Get(ctx context.Context, key string) (string, error) {
	time.Sleep(s.delay)
	return s.MemoryStore.Get(ctx, key)
}

func (s slowKV) SetNX(ctx context.Context, key, value string, ttl time.Duration) (bool, error) {
	time.Sleep(s.delay)
	return s.MemoryStore.SetNX(ctx, key, value, ttl)
}

func TestStartAttempt_ConcurrentStartsClaimOneSlot(t *testing.T) {
	f := newFixture(t, time.Minute)
	ctx := context.Background()
	m := NewManager(slowKV{MemoryStore: memory.NewMemoryStore(), delay: 2 * time.Millisecond},
		f.manager.builder, f.manager.exchanger, f.manager.refresher, f.backend, NewListener(callbackBase))
	linker := m.For("u1")

	const callers = 8
	var (
		wg       sync.WaitGroup
		mu       sync.Mutex
		started  []*Attempt
		rejected []error
	)
	start := make(chan struct{})
	for i := 0; i < callers; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			<-start
			a, err := linker.StartAttempt(ctx, models.ProviderUber)
			mu.Lock()
			defer mu.Unlock()
			if err != nil {
				rejected = append(rejected, err)
				return
			}
			started = append(started, a)
		}()
	}
	close(start)
	wg.Wait()

	require.Len(t, started, 1)
	require.Len(t, rejected, callers-1)
	for _, err := range rejected {
		require.ErrorIs(t, err, providers.ErrAttemptPending)
	}

	pending, err := linker.Store().PendingState(ctx, models.ProviderUber)
	require.NoError(t, err)
	require.Equal(t, started[0].State, pending.State)
	require.True(t, m.Listener().Pending("u1", models.ProviderUber))
}

func TestAttemptTimeout(t *testing.T) {
	f := newFixture(t, 50*time.Millisecond)
	ctx := context.Background()
	linker := f.manager.For("u1")

	a, err := linker.StartAttempt(ctx, models.ProviderUber)
	require.NoError(t, err)

	_, err = linker.Wait(ctx, models.ProviderUber)
	require.ErrorIs(t, err, ErrAttemptExpired)

	require.Eventually(t, func() bool { return f.manager.Listener().Len() == 0 }, time.Second, 5*time.Millisecond)
	require.Eventually(t, func() bool { return f.manager.attempts.Size() == 0 }, time.Second, 5*time.Millisecond)
	_, err = linker.Store().PendingState(ctx, models.ProviderUber)
	require.ErrorIs(t, err, tokenstore.ErrNotFound)

	_, err = linker.HandleRedirect(ctx, callbackURL(models.ProviderUber, url.Values{"code": {"late"}, "state": {a.State}}))
	require.ErrorIs(t, err, ErrNoPendingAttempt)
	require.Empty(t, f.tokens.Codes())

	_, err = linker.StartAttempt(ctx, models.ProviderUber)
	require.NoError(t, err)
}

func TestAbortAttempt(t *testing.T) {
	f := newFixture(t, time.Minute)
	ctx := context.Background()
	linker := f.manager.For("u1")

	a, err := linker.StartAttempt(ctx, models.ProviderUber)
	require.NoError(t, err)
	require.NoError(t, linker.AbortAttempt(ctx, models.ProviderUber))

	select {
	case <-a.Done():
	default:
		t.Fatal("attempt not resolved")
	}
	_, err = a.Result()
	require.ErrorIs(t, err, ErrAttemptAborted)
	require.False(t, f.manager.Listener().Pending("u1", models.ProviderUber))

	_, err = linker.Store().PendingState(ctx, models.ProviderUber)
	require.ErrorIs(t, err, tokenstore.ErrNotFound)

	require.NoError(t, linker.AbortAttempt(ctx, models.ProviderUber))

	var unsupported *providers.UnsupportedProviderError
	require.ErrorAs(t, linker.AbortAttempt(ctx, models.Provider("plaid")), &unsupported)
}

func TestAttemptsAreForgotten(t *testing.T) {
	f := newFixture(t, time.Minute)
	ctx := context.Background()
	linker := f.manager.For("u1")

	_, err := linker.StartAttempt(ctx, models.ProviderUber)
	require.NoError(t, err)
	_, err = linker.StartAttempt(ctx, models.ProviderLyft)
	require.NoError(t, err)
	require.Equal(t, 2, f.manager.attempts.Size())

	require.NoError(t, linker.AbortAttempt(ctx, models.ProviderLyft))
	require.Equal(t, 1, f.manager.attempts.Size())

	a, err := linker.StartAttempt(ctx, models.ProviderDoorDash)
	require.NoError(t, err)
	_, err = linker.HandleRedirect(ctx, callbackURL(models.ProviderDoorDash, url.Values{"code": {"D"}, "state": {a.State}}))
	require.NoError(t, err)
	// a completed attempt stays readable for a late poll
	cred, err := linker.Wait(ctx, models.ProviderDoorDash)
	require.NoError(t, err)
	require.Equal(t, "at-D", cred.AccessToken)

	require.Equal(t, 2, f.manager.attempts.Size())

	require.NoError(t, linker.Logout(ctx))
	require.Equal(t, 0, f.manager.attempts.Size())
}

func TestListener_StaleDropKeepsNewerSubscription(t *testing.T) {
	l := NewListener(callbackBase)
	first := newAttempt("u1", models.AuthRequest{AttemptID: "a1", Provider: models.ProviderUber, State: "s1"})
	second := newAttempt("u1", models.AuthRequest{AttemptID: "a2", Provider: models.ProviderUber, State: "s2"})
	key := subKey("u1", models.ProviderUber)

	l.Subscribe(first, time.Minute, nil)
	stale, ok := l.subs.Load(key)
	require.True(t, ok)

	l.Subscribe(second, time.Minute, nil)
	_, err := first.Result()
	require.ErrorIs(t, err, ErrAttemptExpired)

	l.drop(key, stale)
	require.True(t, l.Pending("u1", models.ProviderUber))

	got, params, ok := l.Dispatch("u1", callbackURL(models.ProviderUber, url.Values{"code": {"c"}, "state": {"s2"}}))
	require.True(t, ok)
	require.Same(t, second, got)
	require.Equal(t, "s2", params.State)
	require.Equal(t, 0, l.Len())
}

func TestWait_ContextAndUnknown(t *testing.T) {
	f := newFixture(t, time.Minute)
	linker := f.manager.For("u1")

	_, err := linker.Wait(context.Background(), models.ProviderLyft)
	require.ErrorIs(t, err, ErrNoPendingAttempt)

	_, err = linker.StartAttempt(context.Background(), models.ProviderLyft)
	require.NoError(t, err)

	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Millisecond)
	defer cancel()
	_, err = linker.Wait(ctx, models.ProviderLyft)
	require.ErrorIs(t, err, context.DeadlineExceeded)
}

func TestReconcile(t *testing.T) {
	now := time.Date(2026, 1, 2, 3, 4, 5, 0, time.UTC)
	backendAccounts := []models.LinkedAccount{
		{ID: "dd-1", Type: models.ProviderDoorDash, Balance: 40, IsActive: true, ConnectionStatus: true, UserID: "u1"},
		{ID: "ub-1", Type: models.ProviderUber, Balance: 120.5, IsActive: true, ConnectionStatus: true, UserID: "u1"},
		{ID: "bank-1", Type: models.Provider("plaid"), ConnectionStatus: true},
	}
	creds := []models.ProviderCredential{{Provider: models.ProviderLyft, AccessToken: "at"}}

	got := Reconcile(creds, backendAccounts, "u1", now)
	require.Len(t, got, len(models.SupportedProviders))
	for i, p := range models.SupportedProviders {
		require.Equal(t, p, got[i].Type)
	}

	require.Equal(t, backendAccounts[1], got[0])
	require.Equal(t, backendAccounts[0], got[2])

	// Scenario C
	require.Equal(t, models.LinkedAccount{
		ID:          "lyft-placeholder",
		Type:        models.ProviderLyft,
		UserID:      "u1",
		LastUpdated: now,
		Description: "Linked, waiting for sync",
	}, got[1])
	require.Zero(t, got[1].Balance)
	require.False(t, got[1].ConnectionStatus)

	require.Equal(t, got, Reconcile(creds, backendAccounts, "u1", now))

	empty := Reconcile(nil, nil, "u1", now)
	require.Len(t, empty, 3)
	for _, acc := range empty {
		require.False(t, acc.ConnectionStatus)
		require.False(t, acc.IsActive)
		require.Empty(t, acc.Description)
	}
}

func TestAccounts(t *testing.T) {
	f := newFixture(t, time.Minute)
	ctx := context.Background()
	linker := f.manager.For("u1")

	_, err := linker.Accounts(ctx)
	require.ErrorIs(t, err, backend.ErrSessionExpired)

	require.NoError(t, linker.Store().SaveSession(ctx, "sess-1"))
	f.backend.ListAccountsFunc = func(_ context.Context, token string) ([]models.LinkedAccount, error) {
		require.Equal(t, "sess-1", token)
		return []models.LinkedAccount{{ID: "ub", Type: models.ProviderUber, ConnectionStatus: true, Balance: 10}}, nil
	}

	accounts, err := linker.Accounts(ctx)
	require.NoError(t, err)
	require.Len(t, accounts, 3)
	require.True(t, accounts[0].ConnectionStatus)
	require.Equal(t, accounts, linker.Displayed())

	f.backend.ListAccountsFunc = func(context.Context, string) ([]models.LinkedAccount, error) {
		return nil, backend.ErrSessionExpired
	}
	_, err = linker.Accounts(ctx)
	require.ErrorIs(t, err, backend.ErrSessionExpired)

	_, err = linker.Store().Session(ctx)
	require.ErrorIs(t, err, tokenstore.ErrNotFound)
	require.Empty(t, linker.Displayed())

	revoked, err := linker.Store().SessionRevoked(ctx, "sess-1")
	require.NoError(t, err)
	require.True(t, revoked)
}

func TestUnlink(t *testing.T) {
	f := newFixture(t, time.Minute)
	ctx := context.Background()
	linker := f.manager.For("u1")

	require.NoError(t, linker.Store().SaveSession(ctx, "sess"))
	require.NoError(t, linker.Store().SaveCredential(ctx, models.ProviderCredential{Provider: models.ProviderUber, AccessToken: "at"}))
	f.backend.ListAccountsFunc = func(context.Context, string) ([]models.LinkedAccount, error) {
		return []models.LinkedAccount{{ID: "ub", Type: models.ProviderUber, ConnectionStatus: true, IsActive: true}}, nil
	}
	before, err := linker.Accounts(ctx)
	require.NoError(t, err)
	require.True(t, before[0].ConnectionStatus)

	t.Run("backend failure leaves state unchanged", func(t *testing.T) {
		// Scenario D
		f.backend.DisconnectFunc = func(context.Context, string, models.Provider) error {
			return &providers.NetworkError{Op: "backend POST", URL: "http://backend", Err: errors.New("connection reset")}
		}
		_, err := linker.Unlink(ctx, models.ProviderUber)
		var netErr *providers.NetworkError
		require.ErrorAs(t, err, &netErr)

		require.Equal(t, before, linker.Displayed())
		_, err = linker.Store().Credential(ctx, models.ProviderUber)
		require.NoError(t, err)
	})

	t.Run("success flips and forgets the credential", func(t *testing.T) {
		var disconnected models.Provider
		f.backend.DisconnectFunc = func(_ context.Context, _ string, p models.Provider) error {
			disconnected = p
			return nil
		}
		after, err := linker.Unlink(ctx, models.ProviderUber)
		require.NoError(t, err)
		require.Equal(t, models.ProviderUber, disconnected)
		require.False(t, after[0].ConnectionStatus)
		require.Equal(t, after, linker.Displayed())

		_, err = linker.Store().Credential(ctx, models.ProviderUber)
		require.ErrorIs(t, err, tokenstore.ErrNotFound)
	})

	var unsupported *providers.UnsupportedProviderError
	_, err = linker.Unlink(ctx, models.Provider("venmo"))
	require.ErrorAs(t, err, &unsupported)
}

func TestRefreshThroughLinker(t *testing.T) {
	f := newFixture(t, time.Minute)
	ctx := context.Background()
	linker := f.manager.For("u1")

	_, err := linker.Refresh(ctx, models.ProviderUber)
	require.ErrorIs(t, err, providers.ErrNoRefreshToken)

	a, err := linker.StartAttempt(ctx, models.ProviderUber)
	require.NoError(t, err)
	_, err = linker.HandleRedirect(ctx, callbackURL(models.ProviderUber, url.Values{"code": {"R"}, "state": {a.State}}))
	require.NoError(t, err)

	cred, err := linker.Refresh(ctx, models.ProviderUber)
	require.NoError(t, err)
	// the fake token endpoint echoes the code, which a refresh does not send
	require.Equal(t, "at-", cred.AccessToken)
	require.Equal(t, "rt-", cred.RefreshToken)
}

func TestLogout(t *testing.T) {
	f := newFixture(t, time.Minute)
	ctx := context.Background()
	linker := f.manager.For("u1")

	require.NoError(t, linker.Store().SaveSession(ctx, "sess"))
	_, err := linker.Accounts(ctx)
	require.NoError(t, err)
	require.NotEmpty(t, linker.Displayed())

	require.NoError(t, linker.Logout(ctx))
	require.Empty(t, f.manager.For("u1").Displayed())
	_, err = linker.Store().Session(ctx)
	require.ErrorIs(t, err, tokenstore.ErrNotFound)
}
