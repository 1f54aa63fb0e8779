package server

import (
	"context"
	"encoding/json"
	"errors"
	"io"
	"net/http"
	"strings"

	"github.com/jrsteele09/go-blog-server/principal"
	"github.com/jrsteele09/go-blog-server/users"
	"github.com/rs/zerolog/log"
)

const maxBodyBytes = 1 << 20

type loginRequest struct {
	Username string `json:"username"`
	Password string `json:"password"`
}

type withdrawRequest struct {
	Password string `json:"password"`
}

type signupResponse struct {
	ID string `json:"id"`
}

type nicknameRequest struct {
	Nickname string `json:"nickname"`
}

type passwordRequest struct {
	CurrentPassword string `json:"currentPassword"`
	NewPassword     string `json:"newPassword"`
}

// decodeJSON reads a JSON body. An empty body is an error unless allowEmpty.
func decodeJSON(w http.ResponseWriter, r *http.Request, v any, allowEmpty bool) error {
	dec := json.NewDecoder(http.MaxBytesReader(w, r.Body, maxBodyBytes))
	if err := dec.Decode(v); err != nil {
		if allowEmpty && errors.Is(err, io.EOF) {
			return nil
		}
		return err
	}
	return nil
}

// LoginHandler verifies a username and password and starts a session.
func (s *Server) LoginHandler() http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		var req loginRequest
		if err := decodeJSON(w, r, &req, false); err != nil {
			writeMessage(w, http.StatusBadRequest, msgBadRequest)
			return
		}

		accessToken, err := s.sessions.Login(r.Context(), w, req.Username, req.Password)
		if err != nil {
			writeLoginError(w, err)
			return
		}
		writeJSON(w, http.StatusOK, tokenResponse{AccessToken: accessToken})
	}
}

// RefreshHandler rotates the renewal cookie and returns a new access token.
func (s *Server) RefreshHandler() http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		accessToken, err := s.sessions.Renew(r.Context(), r, w)
		if err != nil {
			writeRefreshError(w, err)
			return
		}
		writeJSON(w, http.StatusOK, tokenResponse{AccessToken: accessToken})
	}
}

// LogoutHandler always succeeds.
func (s *Server) LogoutHandler() http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		s.sessions.Logout(r.Context(), r, w)
		writeMessage(w, http.StatusOK, "logged out")
	}
}

func (s *Server) SignupHandler() http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		var req users.SignupRequest
		if err := decodeJSON(w, r, &req, false); err != nil {
			writeMessage(w, http.StatusBadRequest, msgBadRequest)
			return
		}
		user, err := s.users.Register(r.Context(), req)
		if err != nil {
			writeError(w, err)
			return
		}
		writeJSON(w, http.StatusCreated, signupResponse{ID: user.ID})
	}
}

// UserInfoHandler returns the principal carried by the access token.
func (s *Server) UserInfoHandler() http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		p, _ := principal.FromContext(r.Context())
		writeJSON(w, http.StatusOK, p)
	}
}

// WithdrawHandler deletes the caller's account and ends its session.
func (s *Server) WithdrawHandler() http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		p, _ := principal.FromContext(r.Context())

		var req withdrawRequest
		if err := decodeJSON(w, r, &req, true); err != nil {
			writeMessage(w, http.StatusBadRequest, msgBadRequest)
			return
		}

		if err := s.users.Withdraw(r.Context(), p.SubjectID, req.Password); err != nil {
			writeError(w, err)
			return
		}
		if err := s.sessions.Revoke(r.Context(), p.SubjectID); err != nil {
			log.Err(err).Str("event", "refresh_store_unavailable").Str("subject", p.SubjectID).Msg("failed to revoke session of withdrawn user")
		}
		s.cookies.Clear(r, w, s.sessions.CookieName())
		writeMessage(w, http.StatusOK, "account deleted")
	}
}

// UpdateNicknameHandler changes the caller's display name. The next renewal
// carries the new name in the access token.
func (s *Server) UpdateNicknameHandler() http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		p, _ := principal.FromContext(r.Context())

		var req nicknameRequest
		if err := decodeJSON(w, r, &req, false); err != nil {
			writeMessage(w, http.StatusBadRequest, msgBadRequest)
			return
		}
		if err := s.users.UpdateNickname(r.Context(), p.SubjectID, req.Nickname); err != nil {
			writeError(w, err)
			return
		}
		writeMessage(w, http.StatusOK, "nickname updated")
	}
}

func (s *Server) ChangePasswordHandler() http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		p, _ := principal.FromContext(r.Context())

		var req passwordRequest
		if err := decodeJSON(w, r, &req, false); err != nil {
			writeMessage(w, http.StatusBadRequest, msgBadRequest)
			return
		}
		if err := s.users.ChangePassword(r.Context(), p.SubjectID, req.CurrentPassword, req.NewPassword); err != nil {
			writeError(w, err)
			return
		}
		writeMessage(w, http.StatusOK, "password changed")
	}
}

// CheckUsernameHandler answers with a bare JSON boolean: true when the
// username is already taken.
func (s *Server) CheckUsernameHandler() http.HandlerFunc {
	return s.checkTakenHandler("username", s.users.UsernameTaken)
}

// CheckNicknameHandler answers like CheckUsernameHandler for nicknames.
func (s *Server) CheckNicknameHandler() http.HandlerFunc {
	return s.checkTakenHandler("nickname", s.users.NicknameTaken)
}

func (s *Server) checkTakenHandler(param string, taken func(context.Context, string) (bool, error)) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		value := strings.TrimSpace(r.URL.Query().Get(param))
		if value == "" {
			writeMessage(w, http.StatusBadRequest, param+" is required")
			return
		}
		exists, err := taken(r.Context(), value)
		if err != nil {
			writeError(w, err)
			return
		}
		writeJSON(w, http.StatusOK, exists)
	}
}

func (s *Server) AdminPingHandler() http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		p, _ := principal.FromContext(r.Context())
		writeMessage(w, http.StatusOK, "pong "+p.DisplayName)
	}
}
