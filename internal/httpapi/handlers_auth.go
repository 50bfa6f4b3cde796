package httpapi

import (
	"net/http"
	"strings"
	"time"

	"thinkflow/internal/domain"
)

type registerRequest struct {
	Username string `json:"username"`
	Password string `json:"password"`
	Avatar   string `json:"avatar"`
}

func (a *api) handleAuthRegister(w http.ResponseWriter, r *http.Request) {
	var req registerRequest
	if err := decodeJSON(w, r, &req); err != nil {
		writeBadJSON(w)
		return
	}

	u, sessID, err := a.authSvc.Register(r.Context(), req.Username, req.Password, req.Avatar, clientIP(r), r.UserAgent())
	if err != nil {
		WriteDomainError(w, err)
		return
	}

	a.cookies.Set(w, sessID)
	writeUser(w, http.StatusCreated, u)
}

type loginRequest struct {
	Username string `json:"username"`
	Password string `json:"password"`
}

func (a *api) handleAuthLogin(w http.ResponseWriter, r *http.Request) {
	var req loginRequest
	if err := decodeJSON(w, r, &req); err != nil {
		writeBadJSON(w)
		return
	}

	req.Username = strings.TrimSpace(req.Username)
	if req.Username == "" || req.Password == "" {
		WriteDomainError(w, domain.NewValidationError(map[string]string{"username": "required", "password": "required"}))
		return
	}

	now := time.Now()
	ip := clientIP(r)
	if !a.loginLimiter.Allow("ip:"+ip, now) || !a.loginLimiter.Allow("user:"+strings.ToLower(req.Username), now) {
		WriteError(w, http.StatusTooManyRequests, "rate_limited", "too many attempts")
		return
	}

	u, sessID, err := a.authSvc.Login(r.Context(), req.Username, req.Password, ip, r.UserAgent())
	if err != nil {
		WriteDomainError(w, err)
		return
	}

	a.cookies.Set(w, sessID)
	writeUser(w, http.StatusOK, u)
}

type idTokenRequest struct {
	IDToken string `json:"id_token"`
}

func (a *api) handleAuthLoginGoogle(w http.ResponseWriter, r *http.Request) {
	var req idTokenRequest
	if err := decodeJSON(w, r, &req); err != nil {
		writeBadJSON(w)
		return
	}
	u, sessID, err := a.authSvc.LoginWithGoogle(r.Context(), req.IDToken, clientIP(r), r.UserAgent())
	if err != nil {
		a.logger.Info("google login rejected", "err", err)
		WriteDomainError(w, err)
		return
	}
	a.cookies.Set(w, sessID)
	writeUser(w, http.StatusOK, u)
}

func (a *api) handleAuthLoginApple(w http.ResponseWriter, r *http.Request) {
	var req idTokenRequest
	if err := decodeJSON(w, r, &req); err != nil {
		writeBadJSON(w)
		return
	}
	u, sessID, err := a.authSvc.LoginWithApple(r.Context(), req.IDToken, clientIP(r), r.UserAgent())
	if err != nil {
		a.logger.Info("apple login rejected", "err", err)
		WriteDomainError(w, err)
		return
	}
	a.cookies.Set(w, sessID)
	writeUser(w, http.StatusOK, u)
}

func (a *api) handleAuthLogout(w http.ResponseWriter, r *http.Request) {
	sessID, ok := CurrentSessionID(r.Context())
	if !ok || sessID == "" {
		WriteDomainError(w, domain.ErrUnauthorized)
		return
	}

	if err := a.authSvc.Logout(r.Context(), sessID); err != nil {
		a.logger.Warn("logout failed", "err", err)
	}
	a.cookies.Clear(w)
	w.WriteHeader(http.StatusNoContent)
}
