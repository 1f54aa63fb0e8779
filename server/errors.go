package server

import (
	"encoding/json"
	"errors"
	"net/http"

	"github.com/jrsteele09/go-blog-server/auth"
	apperrors "github.com/jrsteele09/go-blog-server/internal/errors"
	"github.com/jrsteele09/go-blog-server/users"
	"github.com/rs/zerolog/log"
)

const (
	msgInvalidSession     = "invalid session"
	msgInvalidCredentials = "invalid username or password"
	msgUnavailable        = "service temporarily unavailable"
	msgInternal           = "internal server error"
	msgUnauthorized       = "unauthorized"
	msgForbidden          = "forbidden"
	msgBadRequest         = "bad request"
)

type messageResponse struct {
	Message string `json:"message"`
}

type tokenResponse struct {
	AccessToken string `json:"accessToken"`
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.Header().Set("Cache-Control", "no-store")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(v); err != nil {
		log.Err(err).Msg("failed to encode response")
	}
}

func writeMessage(w http.ResponseWriter, status int, message string) {
	writeJSON(w, status, messageResponse{Message: message})
}

// isUnavailable reports whether err comes from a store or identity lookup
// that may succeed on retry.
func isUnavailable(err error) bool {
	return errors.Is(err, apperrors.ErrUnavailable)
}

// writeLoginError answers a failed password login. Unknown users and wrong
// passwords get the same response.
func writeLoginError(w http.ResponseWriter, err error) {
	if isUnavailable(err) {
		writeMessage(w, http.StatusServiceUnavailable, msgUnavailable)
		return
	}
	if errors.Is(err, apperrors.ErrInvalidCredentials) {
		writeMessage(w, http.StatusBadRequest, msgInvalidCredentials)
		return
	}
	log.Err(err).Msg("login failed")
	writeMessage(w, http.StatusInternalServerError, msgInternal)
}

// writeRefreshError answers a failed renewal. Every credential or session
// problem looks the same to the client.
func writeRefreshError(w http.ResponseWriter, err error) {
	if isUnavailable(err) {
		writeMessage(w, http.StatusServiceUnavailable, msgUnavailable)
		return
	}
	kind, ok := auth.KindOf(err)
	if !ok {
		log.Err(err).Msg("refresh failed")
		writeMessage(w, http.StatusInternalServerError, msgInternal)
		return
	}
	if errors.Is(err, apperrors.ErrRefreshTokenReused) {
		log.Warn().Str("kind", kind.String()).Msg("refresh rejected, session revoked")
	} else {
		log.Debug().Str("kind", kind.String()).Msg("refresh rejected")
	}
	writeMessage(w, http.StatusBadRequest, msgInvalidSession)
}

// writeError maps errors from the user and identity layers.
func writeError(w http.ResponseWriter, err error) {
	switch {
	case isUnavailable(err):
		writeMessage(w, http.StatusServiceUnavailable, msgUnavailable)
	case errors.Is(err, apperrors.ErrInvalidInput):
		writeMessage(w, http.StatusBadRequest, err.Error())
	case errors.Is(err, users.ErrNicknameTaken):
		writeMessage(w, http.StatusConflict, "nickname already in use")
	case errors.Is(err, apperrors.ErrUserExists):
		writeMessage(w, http.StatusConflict, "user already exists")
	case errors.Is(err, apperrors.ErrInvalidCredentials):
		writeMessage(w, http.StatusBadRequest, "password does not match")
	case errors.Is(err, apperrors.ErrUserNotFound):
		writeMessage(w, http.StatusNotFound, "user not found")
	default:
		log.Err(err).Msg("request failed")
		writeMessage(w, http.StatusInternalServerError, msgInternal)
	}
}
