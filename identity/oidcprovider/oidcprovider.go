// Package oidcprovider implements identity.Provider for any OpenID Connect
// issuer using the authorization code flow with PKCE.
package oidcprovider

import (
	"context"
	"errors"
	"fmt"

	"github.com/coreos/go-oidc/v3/oidc"
	"github.com/jrsteele09/go-blog-server/identity"
	"github.com/jrsteele09/go-blog-server/internal/config"
	"github.com/rs/zerolog/log"
	"golang.org/x/oauth2"
)

type Provider struct {
	name        string
	oauthConfig *oauth2.Config
	verifier    *oidc.IDTokenVerifier
}

var _ identity.Provider = (*Provider)(nil)

// New discovers the issuer's endpoints and keys. redirectURL is the
// callback registered with the provider. ctx is kept for key refreshes and
// must outlive the provider.
func New(ctx context.Context, cfg config.ProviderConfig, redirectURL string) (*Provider, error) {
	if cfg.Name == "" || cfg.ClientID == "" || cfg.IssuerURL == "" || redirectURL == "" {
		return nil, errors.New("oidc provider config missing required fields")
	}

	oidcProvider, err := oidc.NewProvider(ctx, cfg.IssuerURL)
	if err != nil {
		return nil, fmt.Errorf("failed to init %s oidc provider: %w", cfg.Name, err)
	}

	scopes := cfg.Scopes
	if len(scopes) == 0 {
		scopes = []string{oidc.ScopeOpenID, "profile", "email"}
	}

	return &Provider{
		name: cfg.Name,
		oauthConfig: &oauth2.Config{
			ClientID:     cfg.ClientID,
			ClientSecret: cfg.ClientSecret,
			RedirectURL:  redirectURL,
			Endpoint:     oidcProvider.Endpoint(),
			Scopes:       scopes,
		},
		verifier: oidcProvider.Verifier(&oidc.Config{ClientID: cfg.ClientID}),
	}, nil
}

// Name returns the provider identifier used by the registry.
func (p *Provider) Name() string {
	return p.name
}

// AuthCodeURL builds the authorization URL with PKCE parameters.
func (p *Provider) AuthCodeURL(state, codeChallenge string) string {
	return p.oauthConfig.AuthCodeURL(
		state,
		oauth2.AccessTypeOnline,
		oauth2.SetAuthURLParam("code_challenge", codeChallenge),
		oauth2.SetAuthURLParam("code_challenge_method", "S256"),
	)
}

func (p *Provider) Exchange(ctx context.Context, code, codeVerifier string) (*identity.Profile, error) {
	token, err := p.oauthConfig.Exchange(ctx, code, oauth2.VerifierOption(codeVerifier))
	if err != nil {
		return nil, fmt.Errorf("%s token exchange failed: %w", p.name, err)
	}

	rawIDToken, ok := token.Extra("id_token").(string)
	if !ok || rawIDToken == "" {
		return nil, fmt.Errorf("%s did not return id_token", p.name)
	}

	idToken, err := p.verifier.Verify(ctx, rawIDToken)
	if err != nil {
		return nil, fmt.Errorf("%s id_token verification failed: %w", p.name, err)
	}

	var claims struct {
		Subject       string `json:"sub"`
		Email         string `json:"email"`
		EmailVerified bool   `json:"email_verified"`
		Name          string `json:"name"`
	}
	if err := idToken.Claims(&claims); err != nil {
		return nil, fmt.Errorf("%s id_token claims parse failed: %w", p.name, err)
	}
	if claims.Subject == "" {
		return nil, fmt.Errorf("%s id_token missing subject", p.name)
	}

	log.Debug().
		Str("provider", p.name).
		Str("issuer", idToken.Issuer).
		Bool("email_present", claims.Email != "").
		Bool("email_verified", claims.EmailVerified).
		Msg("oidc identity verified")

	profile := &identity.Profile{
		Provider:          p.name,
		ProviderSubjectID: claims.Subject,
		DisplayName:       claims.Name,
	}
	// Unverified addresses are not trusted for display or contact.
	if claims.EmailVerified {
		profile.Email = claims.Email
	}
	return profile, nil
}
