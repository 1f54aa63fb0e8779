// Package identity maps third-party logins onto local users and hands them
// to the session issuance path.
package identity

import (
	"context"
	"errors"
	"fmt"
	"sort"
)

var ErrUnknownProvider = errors.New("unknown oauth provider")

// Profile is the normalized identity a provider vouches for.
type Profile struct {
	Provider          string
	ProviderSubjectID string
	Email             string
	DisplayName       string
}

// Provider defines the contract every external login provider must
// implement. Implementations return identity facts only and must not
// create users or sessions.
type Provider interface {
	// Name returns the provider identifier (e.g. "google").
	Name() string

	// AuthCodeURL returns the authorization URL. State and the PKCE
	// challenge are generated by the caller.
	AuthCodeURL(state, codeChallenge string) string

	// Exchange trades the authorization code for a verified profile.
	Exchange(ctx context.Context, code, codeVerifier string) (*Profile, error)
}

// Registry holds all configured providers and allows lookup by name.
type Registry struct {
	providers map[string]Provider
}

// NewRegistry registers the given providers by name. Names must be unique.
func NewRegistry(list ...Provider) (*Registry, error) {
	m := make(map[string]Provider, len(list))
	for _, p := range list {
		if _, dup := m[p.Name()]; dup {
			return nil, fmt.Errorf("oauth provider %q registered twice", p.Name())
		}
		m[p.Name()] = p
	}
	return &Registry{providers: m}, nil
}

// Get returns the provider by name or ErrUnknownProvider.
func (r *Registry) Get(name string) (Provider, error) {
	p, ok := r.providers[name]
	if !ok {
		return nil, fmt.Errorf("%w: %s", ErrUnknownProvider, name)
	}
	return p, nil
}

func (r *Registry) Names() []string {
	names := make([]string, 0, len(r.providers))
	for name := range r.providers {
		names = append(names, name)
	}
	sort.Strings(names)
	return names
}
