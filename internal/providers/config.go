package providers

import (
	"strings"

	"golang.org/x/oauth2"

	"gigearn-link/internal/config"
	"gigearn-link/internal/models"
)

// ProviderConfig
type ProviderConfig struct {
	Provider     models.Provider
	ClientID     string
	ClientSecret string
	AuthURL      string
	TokenURL     string
	Scopes       []string
	RedirectURI  string
}

// OAuth2 returns the x/oauth2 view of the provider, used to build authorize URLs.
func (c ProviderConfig) OAuth2() *oauth2.Config {
	return &oauth2.Config{
		ClientID:     c.ClientID,
		ClientSecret: c.ClientSecret,
		Endpoint: oauth2.Endpoint{
			AuthURL:   c.AuthURL,
			TokenURL:  c.TokenURL,
			AuthStyle: oauth2.AuthStyleInParams,
		},
		RedirectURL: c.RedirectURI,
		Scopes:      c.Scopes,
	}
}

// RedirectURI is the deep link a provider sends the user back to.
func RedirectURI(base string, provider models.Provider) string {
	return strings.TrimRight(base, "/") + "/" + provider.String()
}

type Registry struct {
	providers map[models.Provider]ProviderConfig
}

// NewRegistry keeps the supported providers that have a client id configured.
func NewRegistry(auth config.Authorization, redirectBase string) *Registry {
	r := &Registry{providers: make(map[models.Provider]ProviderConfig)}
	for name, pc := range auth.Providers() {
		p := models.ParseProvider(name)
		if !p.IsSupported() || pc.ClientID == "" {
			continue
		}
		r.providers[p] = ProviderConfig{
			Provider:     p,
			ClientID:     pc.ClientID,
			ClientSecret: pc.ClientSecret,
			AuthURL:      pc.AuthURL,
			TokenURL:     pc.TokenURL,
			Scopes:       pc.Scopes,
			RedirectURI:  RedirectURI(redirectBase, p),
		}
	}
	return r
}

// NewStaticRegistry builds a registry from ready-made provider configs.
func NewStaticRegistry(configs ...ProviderConfig) *Registry {
	r := &Registry{providers: make(map[models.Provider]ProviderConfig, len(configs))}
	for _, c := range configs {
		r.providers[c.Provider] = c
	}
	return r
}

func (r *Registry) Lookup(provider models.Provider) (ProviderConfig, error) {
	if !provider.IsSupported() {
		return ProviderConfig{}, &UnsupportedProviderError{Provider: provider.String()}
	}
	pc, ok := r.providers[provider]
	if !ok {
		return ProviderConfig{}, &UnsupportedProviderError{Provider: provider.String(), Reason: "not configured"}
	}
	return pc, nil
}

// Configured lists configured providers in display order.
func (r *Registry) Configured() []models.Provider {
	out := make([]models.Provider, 0, len(r.providers))
	for _, p := range models.SupportedProviders {
		if _, ok := r.providers[p]; ok {
			out = append(out, p)
		}
	}
	return out
}
