package handler

import (
	"log/slog"
	"net/http"
	"strings"

	"github.com/dukerupert/pointkeeper/internal/auth"
	"github.com/dukerupert/pointkeeper/internal/ledger"
	"github.com/dukerupert/pointkeeper/internal/model"
)

type AppealHandler struct {
	ledger *ledger.Ledger
	logger *slog.Logger
}

func NewAppealHandler(l *ledger.Ledger, logger *slog.Logger) *AppealHandler {
	return &AppealHandler{ledger: l, logger: logger}
}

// List returns the tenant's appeals. ?status=pending limits it to open ones.
func (h *AppealHandler) List(w http.ResponseWriter, r *http.Request) {
	adminID := auth.AdminID(r.Context())
	if strings.EqualFold(r.URL.Query().Get("status"), string(model.AppealPending)) {
		writeJSON(w, http.StatusOK, h.ledger.PendingAppeals(adminID))
		return
	}
	writeJSON(w, http.StatusOK, h.ledger.Appeals(adminID))
}

func (h *AppealHandler) Resolve(w http.ResponseWriter, r *http.Request) {
	a, ok := h.ledger.Appeal(r.PathValue("id"))
	if !ok || a.AdminID != auth.AdminID(r.Context()) {
		notFound(w, "appeal")
		return
	}

	var req struct {
		Decision model.AppealStatus `json:"decision"`
		Note     string             `json:"note"`
	}
	if !decodeJSON(w, r, maxBodyBytes, &req) {
		return
	}
	req.Decision = model.AppealStatus(strings.ToUpper(strings.TrimSpace(string(req.Decision))))

	changed, err := h.ledger.ResolveAppeal(a.ID, auth.UserID(r.Context()), req.Decision, req.Note)
	if err != nil {
		writeLedgerError(w, h.logger, "resolve appeal", err)
		return
	}
	if !changed {
		writeJSON(w, http.StatusConflict, map[string]string{"error": "appeal already resolved"})
		return
	}
	resolved, _ := h.ledger.Appeal(a.ID)
	writeJSON(w, http.StatusOK, resolved)
}
