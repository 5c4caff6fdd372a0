package handlers

import (
	"encoding/json"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"

	"github.com/wanderpeak/tours-api/internal/domain"
	"github.com/wanderpeak/tours-api/internal/http/middleware"
	"github.com/wanderpeak/tours-api/internal/http/response"
	"github.com/wanderpeak/tours-api/internal/service"
	"github.com/wanderpeak/tours-api/pkg/logger"
)

type AuthHandler struct {
	svc           *service.AuthService
	cookieTTLDays int
	secureCookies bool
	devMode       bool
}

func NewAuthHandler(svc *service.AuthService, cookieTTLDays int, secureCookies, devMode bool) *AuthHandler {
	return &AuthHandler{
		svc:           svc,
		cookieTTLDays: cookieTTLDays,
		secureCookies: secureCookies,
		devMode:       devMode,
	}
}

func (h *AuthHandler) Signup(w http.ResponseWriter, r *http.Request) {
	var req domain.SignupRequest
	if err := decodeJSON(r, &req); err != nil {
		response.Error(w, r, err, h.devMode)
		return
	}

	user, token, err := h.svc.Signup(r.Context(), &req)
	if err != nil {
		response.Error(w, r, err, h.devMode)
		return
	}
	h.writeAuthResponse(w, http.StatusCreated, user, token)
}

func (h *AuthHandler) Login(w http.ResponseWriter, r *http.Request) {
	var req domain.LoginRequest
	if err := decodeJSON(r, &req); err != nil {
		response.Error(w, r, err, h.devMode)
		return
	}

	user, token, err := h.svc.Login(r.Context(), &req)
	if err != nil {
		response.Error(w, r, err, h.devMode)
		return
	}
	h.writeAuthResponse(w, http.StatusOK, user, token)
}

// Logout overwrites the auth cookie with a short-lived dummy value. The
// JWT itself stays valid until expiry; only the browser forgets it.
func (h *AuthHandler) Logout(w http.ResponseWriter, r *http.Request) {
	http.SetCookie(w, &http.Cookie{
		Name:     middleware.AuthCookieName,
		Value:    "loggedout",
		Expires:  time.Now().Add(10 * time.Second),
		Path:     "/",
		HttpOnly: true,
		Secure:   h.secureCookies,
		SameSite: http.SameSiteLaxMode,
	})
	response.WriteJSON(w, http.StatusOK, nil)
}

func (h *AuthHandler) ForgotPassword(w http.ResponseWriter, r *http.Request) {
	var req domain.ForgotPasswordRequest
	if err := decodeJSON(r, &req); err != nil {
		response.Error(w, r, err, h.devMode)
		return
	}

	if err := h.svc.ForgotPassword(r.Context(), req.Email); err != nil {
		response.Error(w, r, err, h.devMode)
		return
	}
	response.WriteJSON(w, http.StatusOK, map[string]string{
		"message": "Token sent to email!",
	})
}

func (h *AuthHandler) ResetPassword(w http.ResponseWriter, r *http.Request) {
	token := chi.URLParam(r, "token")

	var req domain.ResetPasswordRequest
	if err := decodeJSON(r, &req); err != nil {
		response.Error(w, r, err, h.devMode)
		return
	}

	user, signed, err := h.svc.ResetPassword(r.Context(), token, &req)
	if err != nil {
		response.Error(w, r, err, h.devMode)
		return
	}
	logger.InfoContext(r.Context(), "Password reset completed", "user_id", user.ID)
	h.writeAuthResponse(w, http.StatusOK, user, signed)
}

func (h *AuthHandler) UpdateMyPassword(w http.ResponseWriter, r *http.Request) {
	user := middleware.CurrentUser(r)

	var req domain.UpdatePasswordRequest
	if err := decodeJSON(r, &req); err != nil {
		response.Error(w, r, err, h.devMode)
		return
	}

	updated, token, err := h.svc.UpdatePassword(r.Context(), user.ID, &req)
	if err != nil {
		response.Error(w, r, err, h.devMode)
		return
	}
	h.writeAuthResponse(w, http.StatusOK, updated, token)
}

// writeAuthResponse sets the auth cookie and echoes the token in the body
// for non-browser clients.
func (h *AuthHandler) writeAuthResponse(w http.ResponseWriter, status int, user *domain.User, token string) {
	http.SetCookie(w, &http.Cookie{
		Name:     middleware.AuthCookieName,
		Value:    token,
		Expires:  time.Now().Add(time.Duration(h.cookieTTLDays) * 24 * time.Hour),
		Path:     "/",
		HttpOnly: true,
		Secure:   h.secureCookies,
		SameSite: http.SameSiteLaxMode,
	})

	body := struct {
		Status string `json:"status"`
		Token  string `json:"token"`
		Data   any    `json:"data"`
	}{
		Status: "success",
		Token:  token,
		Data:   map[string]any{"user": user},
	}
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(body); err != nil {
		logger.Error("Failed to encode auth response", "error", err)
	}
}
