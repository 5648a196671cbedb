package handler

import (
	"log/slog"
	"net/http"

	"github.com/dukerupert/pointkeeper/internal/auth"
	"github.com/dukerupert/pointkeeper/internal/ledger"
	"github.com/dukerupert/pointkeeper/internal/model"
	"github.com/dukerupert/pointkeeper/internal/store"
)

// UserHandler manages the accounts of the caller's tenant. Admin accounts
// open new tenants and are created from the command line, so only
// contributors are created here.
type UserHandler struct {
	ledger       *ledger.Ledger
	sessionStore *store.SessionStore
	logger       *slog.Logger
}

func NewUserHandler(l *ledger.Ledger, ss *store.SessionStore, logger *slog.Logger) *UserHandler {
	return &UserHandler{ledger: l, sessionStore: ss, logger: logger}
}

func (h *UserHandler) user(r *http.Request) (model.User, bool) {
	u, ok := h.ledger.User(r.PathValue("id"))
	if !ok || u.AdminID != auth.AdminID(r.Context()) {
		return model.User{}, false
	}
	return u, true
}

func (h *UserHandler) List(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, h.ledger.Users(auth.AdminID(r.Context())))
}

func (h *UserHandler) Create(w http.ResponseWriter, r *http.Request) {
	var req ledger.UserInput
	if !decodeJSON(w, r, maxBodyBytes, &req) {
		return
	}
	if req.Role == "" {
		req.Role = model.RoleContributor
	}
	if req.Role != model.RoleContributor {
		writeJSON(w, http.StatusBadRequest, map[string]string{"error": "only contributors can be created here"})
		return
	}
	req.AdminID = auth.AdminID(r.Context())

	u, err := h.ledger.RegisterUser(req)
	if err != nil {
		writeLedgerError(w, h.logger, "create user", err)
		return
	}
	writeJSON(w, http.StatusCreated, u)
}

// Update edits an account. A password change ends the account's sessions.
func (h *UserHandler) Update(w http.ResponseWriter, r *http.Request) {
	existing, ok := h.user(r)
	if !ok {
		notFound(w, "user")
		return
	}
	var patch model.UserPatch
	if !decodeJSON(w, r, maxBodyBytes, &patch) {
		return
	}
	u, err := h.ledger.UpdateUser(existing.ID, patch)
	if err != nil {
		writeLedgerError(w, h.logger, "update user", err)
		return
	}
	if patch.Password != nil && u.ID != auth.UserID(r.Context()) {
		if err := h.sessionStore.DeleteByUserID(u.ID); err != nil {
			h.logger.Error("end sessions after password change", "user_id", u.ID, "error", err)
		}
	}
	writeJSON(w, http.StatusOK, u)
}

func (h *UserHandler) Delete(w http.ResponseWriter, r *http.Request) {
	u, ok := h.user(r)
	if !ok {
		notFound(w, "user")
		return
	}
	if u.ID == auth.UserID(r.Context()) {
		writeJSON(w, http.StatusBadRequest, map[string]string{"error": "cannot delete your own account"})
		return
	}
	if err := h.ledger.DeleteUser(u.ID); err != nil {
		writeLedgerError(w, h.logger, "delete user", err)
		return
	}
	if err := h.sessionStore.DeleteByUserID(u.ID); err != nil {
		h.logger.Error("end sessions of deleted user", "user_id", u.ID, "error", err)
	}
	w.WriteHeader(http.StatusNoContent)
}
