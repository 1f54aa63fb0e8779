package oidcprovider_test

import (
	"context"
	"crypto/rand"
	"crypto/rsa"
	"encoding/base64"
	"encoding/json"
	"math/big"
	"net/http"
	"net/http/httptest"
	"net/url"
	"testing"
	"time"

	jwtlib "github.com/golang-jwt/jwt/v5"
	"github.com/jrsteele09/go-blog-server/identity"
	"github.com/jrsteele09/go-blog-server/identity/oidcprovider"
	"github.com/jrsteele09/go-blog-server/internal/config"
	"github.com/stretchr/testify/require"
)

const (
	testClientID = "blog-client"
	testKeyID    = "test-key"
	testCode     = "auth-code"
)

// fakeIssuer is a minimal OpenID Connect provider: discovery, JWKS and a
// token endpoint that checks the PKCE verifier.
type fakeIssuer struct {
	server    *httptest.Server
	key       *rsa.PrivateKey
	challenge string
	claims    jwtlib.MapClaims
}

func newFakeIssuer(t *testing.T) *fakeIssuer {
	t.Helper()
	key, err := rsa.GenerateKey(rand.Reader, 2048)
	require.NoError(t, err)
	f := &fakeIssuer{key: key}

	mux := http.NewServeMux()
	mux.HandleFunc("GET /.well-known/openid-configuration", func(w http.ResponseWriter, r *http.Request) {
		_ = json.NewEncoder(w).Encode(map[string]any{
			"issuer":                                f.server.URL,
			"authorization_endpoint":                f.server.URL + "/authorize",
			"token_endpoint":                        f.server.URL + "/token",
			"jwks_uri":                              f.server.URL + "/jwks",
			"id_token_signing_alg_values_supported": []string{"RS256"},
		})
	})
	mux.HandleFunc("GET /jwks", func(w http.ResponseWriter, r *http.Request) {
		_ = json.NewEncoder(w).Encode(map[string]any{
			"keys": []map[string]string{{
				"kty": "RSA",
				"use": "sig",
				"alg": "RS256",
				"kid": testKeyID,
				"n":   base64.RawURLEncoding.EncodeToString(key.N.Bytes()),
				"e":   base64.RawURLEncoding.EncodeToString(big.NewInt(int64(key.E)).Bytes()),
			}},
		})
	})
	mux.HandleFunc("POST /token", func(w http.ResponseWriter, r *http.Request) {
		if err := r.ParseForm(); err != nil {
			http.Error(w, err.Error(), http.StatusBadRequest)
			return
		}
		if r.Form.Get("code") != testCode || identity.Challenge(r.Form.Get("code_verifier")) != f.challenge {
			w.Header().Set("Content-Type", "application/json")
			w.WriteHeader(http.StatusBadRequest)
			_, _ = w.Write([]byte(`{"error":"invalid_grant"}`))
			return
		}
		token := jwtlib.NewWithClaims(jwtlib.SigningMethodRS256, f.claims)
		token.Header["kid"] = testKeyID
		idToken, err := token.SignedString(key)
		if err != nil {
			http.Error(w, err.Error(), http.StatusInternalServerError)
			return
		}
		w.Header().Set("Content-Type", "application/json")
		_ = json.NewEncoder(w).Encode(map[string]any{
			"access_token": "provider-access",
			"token_type":   "Bearer",
			"expires_in":   3600,
			"id_token":     idToken,
		})
	})

	f.server = httptest.NewServer(mux)
	t.Cleanup(f.server.Close)

	f.claims = jwtlib.MapClaims{
		"iss":            f.server.URL,
		"aud":            testClientID,
		"sub":            "google-user-1",
		"email":          "bob@example.com",
		"email_verified": true,
		"name":           "Bob",
		"iat":            time.Now().Unix(),
		"exp":            time.Now().Add(time.Hour).Unix(),
	}
	return f
}

func setupTestFixture(t *testing.T) (*fakeIssuer, *oidcprovider.Provider) {
	t.Helper()
	issuer := newFakeIssuer(t)
	provider, err := oidcprovider.New(context.Background(), config.ProviderConfig{
		Name:         "google",
		IssuerURL:    issuer.server.URL,
		ClientID:     testClientID,
		ClientSecret: "secret",
	}, "http://localhost:8080/login/oauth2/code/google")
	require.NoError(t, err)
	return issuer, provider
}

func TestAuthCodeURL(t *testing.T) {
	issuer, provider := setupTestFixture(t)
	require.Equal(t, "google", provider.Name())

	raw := provider.AuthCodeURL("state-123456", "challenge-abc")
	u, err := url.Parse(raw)
	require.NoError(t, err)
	require.Equal(t, issuer.server.URL+"/authorize", u.Scheme+"://"+u.Host+u.Path)

	q := u.Query()
	require.Equal(t, "state-123456", q.Get("state"))
	require.Equal(t, "challenge-abc", q.Get("code_challenge"))
	require.Equal(t, "S256", q.Get("code_challenge_method"))
	require.Equal(t, testClientID, q.Get("client_id"))
	require.Equal(t, "openid profile email", q.Get("scope"))
}

func TestExchange(t *testing.T) {
	issuer, provider := setupTestFixture(t)
	verifier, challenge, err := identity.NewPKCE()
	require.NoError(t, err)
	issuer.challenge = challenge

	profile, err := provider.Exchange(context.Background(), testCode, verifier)
	require.NoError(t, err)
	require.Equal(t, &identity.Profile{
		Provider:          "google",
		ProviderSubjectID: "google-user-1",
		Email:             "bob@example.com",
		DisplayName:       "Bob",
	}, profile)

	t.Run("wrong verifier", func(t *testing.T) {
		_, err := provider.Exchange(context.Background(), testCode, "not-the-verifier")
		require.Error(t, err)
	})

	t.Run("unverified email is dropped", func(t *testing.T) {
		issuer.claims["email_verified"] = false
		defer func() { issuer.claims["email_verified"] = true }()
		profile, err := provider.Exchange(context.Background(), testCode, verifier)
		require.NoError(t, err)
		require.Empty(t, profile.Email)
	})

	t.Run("wrong audience", func(t *testing.T) {
		issuer.claims["aud"] = "someone-else"
		defer func() { issuer.claims["aud"] = testClientID }()
		_, err := provider.Exchange(context.Background(), testCode, verifier)
		require.Error(t, err)
	})
}

func TestNewValidation(t *testing.T) {
	_, err := oidcprovider.New(context.Background(), config.ProviderConfig{Name: "google"}, "http://localhost/cb")
	require.Error(t, err)
}
