package linking

import (
	"time"

	"gigearn-link/internal/models"
)

const waitingForSync = "Linked, waiting for sync"

// Reconcile builds the displayed account list: exactly one entry per supported
// provider, in supported order. A backend account is used as is; a provider
// the backend does not report gets an unlinked placeholder.
func Reconcile(creds []models.ProviderCredential, backendAccounts []models.LinkedAccount, userID string, now time.Time) []models.LinkedAccount {
	linked := make(map[models.Provider]bool, len(creds))
	for _, c := range creds {
		linked[c.Provider] = true
	}

	out := make([]models.LinkedAccount, 0, len(models.SupportedProviders))
	for _, p := range models.SupportedProviders {
		if acc, ok := findAccount(backendAccounts, p); ok {
			out = append(out, acc)
			continue
		}
		out = append(out, placeholder(p, userID, now, linked[p]))
	}
	return out
}

func findAccount(accounts []models.LinkedAccount, p models.Provider) (models.LinkedAccount, bool) {
	for _, acc := range accounts {
		if models.ParseProvider(acc.Type.String()) == p {
			return acc, true
		}
	}
	return models.LinkedAccount{}, false
}

func placeholder(p models.Provider, userID string, now time.Time, hasCredential bool) models.LinkedAccount {
	acc := models.LinkedAccount{
		ID:          p.String() + "-placeholder",
		Type:        p,
		UserID:      userID,
		LastUpdated: now,
	}
	if hasCredential {
		acc.Description = waitingForSync
	}
	return acc
}
