package domain

import "fmt"

// Provider identifies one of the supported trading venues.
type Provider string

const (
	// ProviderNone is returned by provider selection when the user has no
	// connected account on any venue.
	ProviderNone       Provider = ""
	ProviderPolymarket Provider = "polymarket"
	ProviderKalshi     Provider = "kalshi"
)

// ParseProvider converts a string (e.g. from config or an HTTP query
// parameter) into a Provider. "auto" and "" map to ProviderNone, which
// callers interpret as "no explicit preference".
func ParseProvider(s string) (Provider, error) {
	switch s {
	case "", "auto":
		return ProviderNone, nil
	case string(ProviderPolymarket):
		return ProviderPolymarket, nil
	case string(ProviderKalshi):
		return ProviderKalshi, nil
	default:
		return ProviderNone, fmt.Errorf("unknown provider %q", s)
	}
}
