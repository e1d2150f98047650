package linking

import (
	"fmt"
	"net/url"
	"path"
	"strings"

	"gigearn-link/internal/models"
)

type CallbackParams struct {
	Provider         models.Provider
	Code             string
	State            string
	Error            string
	ErrorDescription string
}

// ParseCallbackParams reads the OAuth parameters from a redirect URL. They
// may sit in the query, in the fragment, or be split across both; the query
// wins when a name appears twice. The provider is the last path segment.
func ParseCallbackParams(raw string) (CallbackParams, error) {
	base, fragment, _ := strings.Cut(strings.TrimSpace(raw), "#")
	base, query, _ := strings.Cut(base, "?")
	if base == "" {
		return CallbackParams{}, fmt.Errorf("%w: %q", ErrMalformedURL, raw)
	}

	values := parseLenient(fragment)
	for k, v := range parseLenient(query) {
		values[k] = v
	}

	u, err := url.Parse(base)
	if err != nil {
		return CallbackParams{}, fmt.Errorf("%w: %v", ErrMalformedURL, err)
	}
	p := u.Path
	if p == "" || p == "/" {
		// scheme://provider with no path
		p = u.Host
	}

	return CallbackParams{
		Provider:         models.ParseProvider(path.Base(strings.TrimRight(p, "/"))),
		Code:             values.Get("code"),
		State:            values.Get("state"),
		Error:            values.Get("error"),
		ErrorDescription: values.Get("error_description"),
	}, nil
}

// parseLenient keeps whatever pairs decode, like the query parsers of most
// mobile URL APIs.
func parseLenient(s string) url.Values {
	values, _ := url.ParseQuery(s)
	if values == nil {
		values = url.Values{}
	}
	return values
}

// matchesCallback reports whether raw points below the callback base.
func matchesCallback(base, raw string) bool {
	if base == "" {
		return true
	}
	stripped, _, _ := strings.Cut(raw, "#")
	stripped, _, _ = strings.Cut(stripped, "?")
	return strings.HasPrefix(strings.ToLower(stripped), strings.ToLower(strings.TrimRight(base, "/"))+"/")
}
