package server

import (
	"context"
	"net/http"
	"strings"

	"github.com/jrsteele09/go-blog-server/principal"
	"github.com/jrsteele09/go-blog-server/token/jwt"
	"github.com/rs/zerolog/log"
)

// expiredTokenKey marks a request whose bearer token had expired.
type expiredTokenKey struct{}

const (
	bearerChallenge        = `Bearer`
	expiredBearerChallenge = `Bearer error="invalid_token", error_description="token expired"`
)

// Authenticate resolves the bearer token into a principal in the request
// context. It never rejects: routes that need a principal use RequireAuth.
func (s *Server) Authenticate(next http.HandlerFunc) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		token, ok := bearerToken(r)
		if !ok {
			next(w, r)
			return
		}

		claims, err := s.codec.VerifyAccess(token)
		if err != nil {
			if jwt.IsExpired(err) {
				r = r.WithContext(context.WithValue(r.Context(), expiredTokenKey{}, true))
			} else {
				log.Debug().Err(err).Str("path", r.URL.Path).Msg("bearer token rejected")
			}
			next(w, r)
			return
		}

		p := principal.Principal{
			SubjectID:   claims.Subject,
			Role:        claims.Role,
			DisplayName: claims.Name,
		}
		next(w, r.WithContext(principal.NewContext(r.Context(), p)))
	}
}

// RequireAuth answers 401 unless Authenticate found a valid access token.
func (s *Server) RequireAuth(next http.HandlerFunc) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		if _, ok := principal.FromContext(r.Context()); !ok {
			unauthorized(w, r)
			return
		}
		next(w, r)
	}
}

// RequireRole answers 401 without a principal and 403 when the principal
// holds none of roles.
func (s *Server) RequireRole(roles ...string) func(http.HandlerFunc) http.HandlerFunc {
	return func(next http.HandlerFunc) http.HandlerFunc {
		return func(w http.ResponseWriter, r *http.Request) {
			p, ok := principal.FromContext(r.Context())
			if !ok {
				unauthorized(w, r)
				return
			}
			if !p.HasRole(roles...) {
				writeMessage(w, http.StatusForbidden, msgForbidden)
				return
			}
			next(w, r)
		}
	}
}

func unauthorized(w http.ResponseWriter, r *http.Request) {
	if expired, _ := r.Context().Value(expiredTokenKey{}).(bool); expired {
		w.Header().Set("WWW-Authenticate", expiredBearerChallenge)
	} else {
		w.Header().Set("WWW-Authenticate", bearerChallenge)
	}
	writeMessage(w, http.StatusUnauthorized, msgUnauthorized)
}

func bearerToken(r *http.Request) (string, bool) {
	authHeader := r.Header.Get("Authorization")
	if authHeader == "" {
		return "", false
	}
	parts := strings.SplitN(authHeader, " ", 2)
	if len(parts) != 2 || !strings.EqualFold(parts[0], "bearer") {
		return "", false
	}
	token := strings.TrimSpace(parts[1])
	return token, token != ""
}
