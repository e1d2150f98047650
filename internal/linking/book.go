package linking

import (
	"sync"
	"time"

	"gigearn-link/internal/models"
)

// AccountBook is the displayed account list of one user.
type AccountBook struct {
	mu       sync.Mutex
	userID   string
	accounts []models.LinkedAccount
}

func NewAccountBook(userID string) *AccountBook {
	return &AccountBook{userID: userID}
}

func (b *AccountBook) Set(accounts []models.LinkedAccount) {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.accounts = append([]models.LinkedAccount(nil), accounts...)
}

func (b *AccountBook) Snapshot() []models.LinkedAccount {
	b.mu.Lock()
	defer b.mu.Unlock()
	return append([]models.LinkedAccount(nil), b.accounts...)
}

// SetConnection flips the connection flag of provider. An empty book is
// first filled with placeholders.
func (b *AccountBook) SetConnection(provider models.Provider, connected bool, now time.Time) []models.LinkedAccount {
	b.mu.Lock()
	defer b.mu.Unlock()

	if len(b.accounts) == 0 {
		b.accounts = Reconcile(nil, nil, b.userID, now)
	}
	for i := range b.accounts {
		if b.accounts[i].Type != provider {
			continue
		}
		b.accounts[i].ConnectionStatus = connected
		b.accounts[i].LastUpdated = now
		if connected && b.accounts[i].Description == "" {
			b.accounts[i].Description = waitingForSync
		}
		if !connected && b.accounts[i].Description == waitingForSync {
			b.accounts[i].Description = ""
		}
	}
	return append([]models.LinkedAccount(nil), b.accounts...)
}

func (b *AccountBook) Clear() {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.accounts = nil
}
