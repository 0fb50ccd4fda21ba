package http

import (
	"fmt"
	"net/http"
	"unicode/utf8"

	"github.com/tuanvumaihuynh/storefront/internal/apperr"
	"github.com/tuanvumaihuynh/storefront/internal/auth"
	"github.com/tuanvumaihuynh/storefront/internal/service"
)

const (
	AuthTypeLogin  = "login"
	AuthTypeSignup = "signup"

	minPasswordLen = 8
)

type AuthRequest struct {
	Email    string `json:"email" validate:"required,email"`
	Password string `json:"password" validate:"required"`
	Type     string `json:"type" validate:"required,oneof=login signup"`
}

type AuthResponse struct {
	Success bool   `json:"success"`
	Token   string `json:"token"`
}

type authHandler struct {
	authSvc service.AuthService
}

func newAuthHandler(authSvc service.AuthService) *authHandler {
	return &authHandler{authSvc: authSvc}
}

func (h *authHandler) Authenticate(w http.ResponseWriter, r *http.Request, decode decoder) error {
	var req AuthRequest
	if err := decode(&req); err != nil {
		return err
	}

	creds := service.Credentials{Email: req.Email, Password: req.Password}

	var (
		token string
		err   error
	)
	switch req.Type {
	case AuthTypeSignup:
		if utf8.RuneCountInString(req.Password) < minPasswordLen {
			return apperr.ValidationErr.WithMsg(fmt.Sprintf("Password must be at least %d characters", minPasswordLen))
		}
		if len(req.Password) > auth.MaxPasswordBytes {
			return apperr.ValidationErr.WithMsg(fmt.Sprintf("Password must be at most %d bytes", auth.MaxPasswordBytes))
		}
		token, err = h.authSvc.Signup(r.Context(), creds)
	default:
		token, err = h.authSvc.Login(r.Context(), creds)
	}
	if err != nil {
		return fmt.Errorf("auth service %s: %w", req.Type, err)
	}

	writeJSON(w, http.StatusOK, AuthResponse{
		Success: true,
		Token:   token,
	})
	return nil
}
