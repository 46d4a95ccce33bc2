package handlers

import (
	"errors"
	"net/http"
	"time"

	"github.com/example/streamsite/internal/platform/api"
	"github.com/example/streamsite/internal/platform/logging"
	"github.com/example/streamsite/services/site/internal/accounts"
	"github.com/example/streamsite/services/site/internal/domain"
)

type registerRequest struct {
	Username string `json:"username"`
	Email    string `json:"email"`
	Password string `json:"password"`
}

type loginRequest struct {
	Email    string `json:"email"`
	Password string `json:"password"`
}

type sessionResponse struct {
	Success   bool        `json:"success"`
	User      domain.User `json:"user"`
	Token     string      `json:"token"`
	ExpiresAt time.Time   `json:"expiresAt"`
}

func writeSession(w http.ResponseWriter, status int, s accounts.Session) {
	api.WriteJSON(w, status, sessionResponse{Success: true, User: s.User, Token: s.Token, ExpiresAt: s.ExpiresAt})
}

// Register handles POST /api/auth/register.
func Register(svc *accounts.Service, env Env) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		var req registerRequest
		if err := decodeJSON(w, r, &req); err != nil {
			writeError(w, r, env, err, msgSaveFailed)
			return
		}
		s, err := svc.Register(r.Context(), req.Username, req.Email, req.Password)
		if err != nil {
			if errors.Is(err, domain.ErrConflict) {
				api.ErrConflict.WithCode("USER_ALREADY_EXISTS").WithMessage("user already exists").Write(w, logging.RequestIDFromContext(r.Context()))
				return
			}
			writeError(w, r, env, err, msgSaveFailed)
			return
		}
		writeSession(w, http.StatusCreated, s)
	}
}

// Login handles POST /api/auth/login.
func Login(svc *accounts.Service, env Env) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		var req loginRequest
		if err := decodeJSON(w, r, &req); err != nil {
			writeError(w, r, env, err, msgLoadFailed)
			return
		}
		s, err := svc.Login(r.Context(), req.Email, req.Password)
		if err != nil {
			if errors.Is(err, accounts.ErrInvalidCredentials) {
				api.ErrUnauthorized.WithCode("AUTH_INVALID_CREDENTIALS").WithMessage("invalid credentials").Write(w, logging.RequestIDFromContext(r.Context()))
				return
			}
			writeError(w, r, env, err, msgLoadFailed)
			return
		}
		writeSession(w, http.StatusOK, s)
	}
}
