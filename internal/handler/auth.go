package handler

import (
	"log/slog"
	"net/http"
	"strings"
	"time"

	"github.com/dukerupert/pointkeeper/internal/auth"
	"github.com/dukerupert/pointkeeper/internal/ledger"
	"github.com/dukerupert/pointkeeper/internal/middleware"
	"github.com/dukerupert/pointkeeper/internal/model"
	"github.com/dukerupert/pointkeeper/internal/store"
)

type AuthHandler struct {
	ledger       *ledger.Ledger
	sessionStore *store.SessionStore
	sessionTTL   time.Duration
	logger       *slog.Logger
}

func NewAuthHandler(l *ledger.Ledger, ss *store.SessionStore, sessionTTL time.Duration, logger *slog.Logger) *AuthHandler {
	return &AuthHandler{ledger: l, sessionStore: ss, sessionTTL: sessionTTL, logger: logger}
}

type loginResponse struct {
	Token     string     `json:"token"`
	ExpiresAt time.Time  `json:"expiresAt"`
	User      model.User `json:"user"`
}

func (h *AuthHandler) Login(w http.ResponseWriter, r *http.Request) {
	var req struct {
		Username string `json:"username"`
		Password string `json:"password"`
	}
	if !decodeJSON(w, r, maxBodyBytes, &req) {
		return
	}
	if strings.TrimSpace(req.Username) == "" || req.Password == "" {
		writeJSON(w, http.StatusBadRequest, map[string]string{"error": "username and password are required"})
		return
	}

	user, err := h.ledger.Authenticate(req.Username, req.Password)
	if err != nil {
		h.logger.Warn("failed login", "username", strings.ToLower(strings.TrimSpace(req.Username)), "remote", middleware.ClientIP(r))
		writeLedgerError(w, h.logger, "log in", err)
		return
	}

	sess, err := h.sessionStore.Create(user.ID, h.sessionTTL)
	if err != nil {
		h.logger.Error("create session", "error", err)
		writeJSON(w, http.StatusInternalServerError, map[string]string{"error": "failed to create session"})
		return
	}

	http.SetCookie(w, &http.Cookie{
		Name:     middleware.SessionCookieName,
		Value:    sess.Token,
		Path:     "/",
		Expires:  sess.ExpiresAt,
		HttpOnly: true,
		Secure:   isSecure(r),
		SameSite: http.SameSiteLaxMode,
	})
	h.logger.Info("user logged in", "user_id", user.ID, "role", user.Role)
	writeJSON(w, http.StatusOK, loginResponse{Token: sess.Token, ExpiresAt: sess.ExpiresAt, User: user.Public()})
}

// Logout ends the caller's session if there is one. It always succeeds.
func (h *AuthHandler) Logout(w http.ResponseWriter, r *http.Request) {
	if token := middleware.SessionToken(r); token != "" {
		sess, err := h.sessionStore.GetByToken(token)
		if err != nil {
			h.logger.Error("logout lookup", "error", err)
		}
		if sess != nil {
			if err := h.sessionStore.Delete(sess.ID); err != nil {
				h.logger.Error("delete session", "error", err)
			}
		}
	}

	http.SetCookie(w, &http.Cookie{
		Name:     middleware.SessionCookieName,
		Value:    "",
		Path:     "/",
		MaxAge:   -1,
		HttpOnly: true,
		Secure:   isSecure(r),
		SameSite: http.SameSiteLaxMode,
	})
	w.WriteHeader(http.StatusNoContent)
}

// Me returns the authenticated user.
func (h *AuthHandler) Me(w http.ResponseWriter, r *http.Request) {
	user, ok := h.ledger.User(auth.UserID(r.Context()))
	if !ok {
		notFound(w, "user")
		return
	}
	writeJSON(w, http.StatusOK, user.Public())
}

func isSecure(r *http.Request) bool {
	return r.TLS != nil || strings.EqualFold(r.Header.Get("X-Forwarded-Proto"), "https")
}
