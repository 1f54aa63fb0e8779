package server

import (
	"crypto/subtle"
	"errors"
	"net/http"
	"net/url"
	"strings"
	"time"

	"github.com/jrsteele09/go-blog-server/auth"
	"github.com/jrsteele09/go-blog-server/identity"
	"github.com/rs/zerolog/log"
)

const (
	oauthStateCookie    = "oauth2_state"
	oauthVerifierCookie = "oauth2_code_verifier"
	// oauthCookieTTL is long enough for the round trip through the provider.
	oauthCookieTTL = 5 * time.Minute
)

// OAuth2AuthorizationHandler starts a third-party login: it stores state and
// the PKCE verifier in short-lived cookies and redirects to the provider.
func (s *Server) OAuth2AuthorizationHandler() http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		provider, err := s.providers.Get(r.PathValue("provider"))
		if err != nil {
			writeMessage(w, http.StatusBadRequest, "unknown provider")
			return
		}

		state, err := identity.NewState()
		if err != nil {
			log.Err(err).Msg("failed to generate oauth2 state")
			writeMessage(w, http.StatusInternalServerError, msgInternal)
			return
		}
		verifier, challenge, err := identity.NewPKCE()
		if err != nil {
			log.Err(err).Msg("failed to generate pkce verifier")
			writeMessage(w, http.StatusInternalServerError, msgInternal)
			return
		}

		s.cookies.Write(w, oauthStateCookie, state, oauthCookieTTL)
		s.cookies.Write(w, oauthVerifierCookie, verifier, oauthCookieTTL)
		http.Redirect(w, r, provider.AuthCodeURL(state, challenge), http.StatusFound)
	}
}

// OAuth2CallbackHandler completes a third-party login and sends the browser
// back to the SPA with the access token. The renewal token only travels in
// its cookie.
func (s *Server) OAuth2CallbackHandler() http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		provider, err := s.providers.Get(r.PathValue("provider"))
		if err != nil {
			writeMessage(w, http.StatusBadRequest, "unknown provider")
			return
		}

		query := r.URL.Query()
		expectedState, hasState := s.cookies.Read(r, oauthStateCookie)
		verifier, hasVerifier := s.cookies.Read(r, oauthVerifierCookie)
		s.cookies.Clear(r, w, oauthStateCookie)
		s.cookies.Clear(r, w, oauthVerifierCookie)

		if providerErr := query.Get("error"); providerErr != "" {
			log.Info().Str("provider", provider.Name()).Str("error", providerErr).Msg("provider denied authorization")
			writeMessage(w, http.StatusUnauthorized, "authorization denied")
			return
		}

		state := query.Get("state")
		if err := auth.ValidateState(state); err != nil || !hasState || !hasVerifier ||
			subtle.ConstantTimeCompare([]byte(state), []byte(expectedState)) != 1 {
			log.Warn().Str("provider", provider.Name()).Msg("oauth2 callback with invalid state")
			writeMessage(w, http.StatusBadRequest, "invalid state")
			return
		}

		code := query.Get("code")
		if code == "" {
			writeMessage(w, http.StatusBadRequest, "missing authorization code")
			return
		}

		profile, err := provider.Exchange(r.Context(), code, verifier)
		if err != nil {
			log.Err(err).Str("provider", provider.Name()).Msg("oauth2 code exchange failed")
			writeMessage(w, http.StatusUnauthorized, "third-party login failed")
			return
		}

		accessToken, err := s.bridge.Complete(r.Context(), w, profile)
		if err != nil {
			writeError(w, err)
			return
		}

		http.Redirect(w, r, redirectWithToken(s.oauth2Redirect, accessToken), http.StatusFound)
	}
}

// parseRedirectURI validates the SPA landing page. New calls it so the
// callback cannot fail after a session has been issued.
func parseRedirectURI(redirectURI string) (*url.URL, error) {
	if err := auth.ValidateRedirectURI(redirectURI); err != nil {
		return nil, err
	}
	u, err := url.Parse(strings.TrimSpace(redirectURI))
	if err != nil {
		return nil, err
	}
	if u.Scheme == "" || u.Host == "" {
		return nil, errors.New("redirect uri must be absolute")
	}
	return u, nil
}

func redirectWithToken(base *url.URL, accessToken string) string {
	u := *base
	q := u.Query()
	q.Set("token", accessToken)
	u.RawQuery = q.Encode()
	return u.String()
}
