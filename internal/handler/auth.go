package handler

import (
	"log/slog"
	"net/http"
	"strings"
	"time"

	"github.com/dukerupert/lineage/internal/auth"
	"github.com/dukerupert/lineage/internal/middleware"
	"github.com/dukerupert/lineage/internal/model"
	"github.com/dukerupert/lineage/internal/store"
)

// AuthConfig controls sessions and lockout.
type AuthConfig struct {
	SessionTTL   time.Duration
	MaxAttempts  int
	SecureCookie bool
}

type AuthHandler struct {
	accounts *store.AccountStore
	sessions *store.SessionStore
	cfg      AuthConfig
	logger   *slog.Logger
}

func NewAuthHandler(as *store.AccountStore, ss *store.SessionStore, cfg AuthConfig, logger *slog.Logger) *AuthHandler {
	if cfg.SessionTTL <= 0 {
		cfg.SessionTTL = 30 * 24 * time.Hour
	}
	if cfg.MaxAttempts <= 0 {
		cfg.MaxAttempts = 3
	}
	return &AuthHandler{accounts: as, sessions: ss, cfg: cfg, logger: logger}
}

type loginRequest struct {
	Username string `json:"username" validate:"required,max=100"`
	Password string `json:"password" validate:"required"`
}

type loginResponse struct {
	Account           *model.Account `json:"account"`
	ChallengeRequired bool           `json:"challenge_required"`
	PasswordChange    bool           `json:"password_change_required"`
}

// Login handles POST /login. Wrong passwords count toward the same lockout
// as wrong challenge answers.
func (h *AuthHandler) Login(w http.ResponseWriter, r *http.Request) {
	var req loginRequest
	if err := decodeAndValidate(r, &req); err != nil {
		writeMessage(w, http.StatusBadRequest, err.Error())
		return
	}

	acct, err := h.accounts.GetByUsername(strings.TrimSpace(req.Username))
	if err != nil {
		h.logger.Error("login lookup", "error", err)
		writeMessage(w, http.StatusInternalServerError, "internal error")
		return
	}
	if acct == nil {
		writeMessage(w, http.StatusUnauthorized, "invalid username or password")
		return
	}
	if acct.IsBlocked {
		writeMessage(w, http.StatusForbidden, "account blocked, contact an administrator")
		return
	}
	if !acct.IsActive {
		writeMessage(w, http.StatusForbidden, "account disabled")
		return
	}

	if !h.accounts.VerifyPassword(acct, req.Password) {
		blocked, err := h.accounts.RecordFailedAttempt(acct.ID, h.cfg.MaxAttempts)
		if err != nil {
			h.logger.Error("record failed login", "error", err)
		}
		if blocked {
			h.logger.Warn("account blocked after failed logins", "account_id", acct.ID)
			writeMessage(w, http.StatusForbidden, "account blocked, contact an administrator")
			return
		}
		writeMessage(w, http.StatusUnauthorized, "invalid username or password")
		return
	}

	if err := h.accounts.RecordSuccessfulLogin(acct.ID); err != nil {
		h.logger.Error("record login", "error", err)
	}

	sess, err := h.sessions.Create(acct.ID, h.cfg.SessionTTL)
	if err != nil {
		h.logger.Error("create session", "error", err)
		writeMessage(w, http.StatusInternalServerError, "internal error")
		return
	}

	http.SetCookie(w, &http.Cookie{
		Name:     middleware.SessionCookieName,
		Value:    sess.Token,
		Path:     "/",
		Expires:  sess.ExpiresAt,
		HttpOnly: true,
		Secure:   h.cfg.SecureCookie,
		SameSite: http.SameSiteLaxMode,
	})

	h.logger.Info("login", "account_id", acct.ID, "user_type", acct.UserType)
	writeJSON(w, http.StatusOK, loginResponse{
		Account:           acct,
		ChallengeRequired: !acct.IsAdmin(),
		PasswordChange:    acct.IsFirstLogin,
	})
}

// Logout handles POST /logout
func (h *AuthHandler) Logout(w http.ResponseWriter, r *http.Request) {
	ac, _ := auth.FromContext(r.Context())
	if err := h.sessions.Delete(ac.SessionID); err != nil {
		h.logger.Error("delete session", "error", err)
	}
	http.SetCookie(w, &http.Cookie{
		Name:     middleware.SessionCookieName,
		Value:    "",
		Path:     "/",
		MaxAge:   -1,
		HttpOnly: true,
	})
	w.WriteHeader(http.StatusNoContent)
}

type meResponse struct {
	Account   *model.Account `json:"account"`
	Confirmed bool           `json:"confirmed"`
}

// Me handles GET /api/me
func (h *AuthHandler) Me(w http.ResponseWriter, r *http.Request) {
	acct, err := h.accounts.GetByID(auth.AccountID(r.Context()))
	if err != nil || acct == nil {
		writeMessage(w, http.StatusInternalServerError, "failed to load account")
		return
	}
	writeJSON(w, http.StatusOK, meResponse{Account: acct, Confirmed: auth.IsConfirmed(r.Context())})
}

type passwordRequest struct {
	Current string `json:"current_password" validate:"required"`
	New     string `json:"new_password" validate:"required,min=8,max=72"`
}

// ChangePassword handles PUT /api/me/password
func (h *AuthHandler) ChangePassword(w http.ResponseWriter, r *http.Request) {
	var req passwordRequest
	if err := decodeAndValidate(r, &req); err != nil {
		writeMessage(w, http.StatusBadRequest, err.Error())
		return
	}

	acct, err := h.accounts.GetByID(auth.AccountID(r.Context()))
	if err != nil || acct == nil {
		writeMessage(w, http.StatusInternalServerError, "failed to load account")
		return
	}
	if !h.accounts.VerifyPassword(acct, req.Current) {
		writeMessage(w, http.StatusForbidden, "current password is incorrect")
		return
	}
	if err := h.accounts.UpdatePassword(acct.ID, req.New); err != nil {
		h.logger.Error("update password", "error", err)
		writeMessage(w, http.StatusInternalServerError, "failed to update password")
		return
	}
	w.WriteHeader(http.StatusNoContent)
}
