// Package linking runs provider link attempts end to end and keeps the
// displayed account list of each user.
package linking

import (
	"sync"
	"time"

	"github.com/puzpuzpuz/xsync"

	"gigearn-link/internal/dependency"
	"gigearn-link/internal/models"
	"gigearn-link/internal/providers"
	"gigearn-link/internal/tokenstore"
)

// Manager holds the process-wide linking state and hands out per-user Linkers.
type Manager struct {
	kv        dependency.KVStore
	builder   *providers.Builder
	exchanger *providers.Exchanger
	refresher *providers.Refresher
	backend   dependency.BackendClient
	listener  *Listener

	books    *xsync.MapOf[string, *AccountBook]
	attempts *xsync.MapOf[string, *Attempt]
	// guards compare-and-delete on attempts
	attemptsMu sync.Mutex
	clock      func() time.Time
}

func NewManager(
	kv dependency.KVStore,
	builder *providers.Builder,
	exchanger *providers.Exchanger,
	refresher *providers.Refresher,
	backend dependency.BackendClient,
	listener *Listener,
) *Manager {
	return &Manager{
		kv:        kv,
		builder:   builder,
		exchanger: exchanger,
		refresher: refresher,
		backend:   backend,
		listener:  listener,
		books:     xsync.NewMapOf[*AccountBook](),
		attempts:  xsync.NewMapOf[*Attempt](),
		clock:     time.Now,
	}
}

// WithClock sets the time source used for stores, placeholders and attempts.
func (m *Manager) WithClock(clock func() time.Time) *Manager {
	m.clock = clock
	m.builder = m.builder.WithClock(clock)
	return m
}

// For returns the Linker of userID.
func (m *Manager) For(userID string) *Linker {
	book, _ := m.books.LoadOrStore(userID, NewAccountBook(userID))
	return &Linker{
		m:      m,
		userID: userID,
		store:  tokenstore.New(m.kv, userID).WithClock(m.clock),
		book:   book,
	}
}

func (m *Manager) Listener() *Listener {
	return m.listener
}

func (m *Manager) trackAttempt(a *Attempt) {
	m.attemptsMu.Lock()
	defer m.attemptsMu.Unlock()
	m.attempts.Store(subKey(a.UserID, a.Provider), a)
}

// forgetAttempt removes a unless a newer attempt took its slot.
func (m *Manager) forgetAttempt(a *Attempt) {
	m.attemptsMu.Lock()
	defer m.attemptsMu.Unlock()
	key := subKey(a.UserID, a.Provider)
	if cur, ok := m.attempts.Load(key); ok && cur == a {
		m.attempts.Delete(key)
	}
}

func (m *Manager) dropUser(userID string) {
	m.books.Delete(userID)

	m.attemptsMu.Lock()
	defer m.attemptsMu.Unlock()
	for _, p := range models.SupportedProviders {
		m.attempts.Delete(subKey(userID, p))
	}
}
