package models

import "strings"

type Provider string

const (
	ProviderUber     Provider = "uber"
	ProviderLyft     Provider = "lyft"
	ProviderDoorDash Provider = "doordash"
)

// SupportedProviders is the fixed display order of linkable platforms.
var SupportedProviders = []Provider{ProviderUber, ProviderLyft, ProviderDoorDash}

func (p Provider) String() string {
	return string(p)
}

// IsSupported reports whether p is one of SupportedProviders.
func (p Provider) IsSupported() bool {
	for _, s := range SupportedProviders {
		if s == p {
			return true
		}
	}
	return false
}

// ParseProvider normalizes a provider name from a path or query value.
func ParseProvider(name string) Provider {
	return Provider(strings.ToLower(strings.TrimSpace(name)))
}
