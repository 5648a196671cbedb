package handler

import (
	"log/slog"
	"net/http"

	"github.com/dukerupert/pointkeeper/internal/auth"
	"github.com/dukerupert/pointkeeper/internal/ledger"
)

// RuleHandler serves the rule catalog, warning rules and live warnings.
type RuleHandler struct {
	ledger *ledger.Ledger
	logger *slog.Logger
}

func NewRuleHandler(l *ledger.Ledger, logger *slog.Logger) *RuleHandler {
	return &RuleHandler{ledger: l, logger: logger}
}

func (h *RuleHandler) owner(id string) (string, bool) {
	rule, ok := h.ledger.Rule(id)
	return rule.AdminID, ok
}

func (h *RuleHandler) List(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, h.ledger.Rules(auth.AdminID(r.Context())))
}

func (h *RuleHandler) Create(w http.ResponseWriter, r *http.Request) {
	var req ledger.RuleInput
	if !decodeJSON(w, r, maxBodyBytes, &req) {
		return
	}
	rule, err := h.ledger.AddRule(auth.AdminID(r.Context()), req)
	if err != nil {
		writeLedgerError(w, h.logger, "create rule", err)
		return
	}
	writeJSON(w, http.StatusCreated, rule)
}

func (h *RuleHandler) BulkCreate(w http.ResponseWriter, r *http.Request) {
	var req []ledger.RuleInput
	if !decodeJSON(w, r, maxImportBytes, &req) {
		return
	}
	added, err := h.ledger.AddRules(auth.AdminID(r.Context()), req)
	if err != nil {
		writeLedgerError(w, h.logger, "create rules", err)
		return
	}
	writeJSON(w, http.StatusCreated, added)
}

// Delete removes a rule from the catalog. Transactions that applied it keep
// their snapshot.
func (h *RuleHandler) Delete(w http.ResponseWriter, r *http.Request) {
	id := r.PathValue("id")
	if a, ok := h.owner(id); !ok || a != auth.AdminID(r.Context()) {
		notFound(w, "rule")
		return
	}
	h.ledger.DeleteRule(id)
	w.WriteHeader(http.StatusNoContent)
}

func (h *RuleHandler) BulkDelete(w http.ResponseWriter, r *http.Request) {
	var req idsRequest
	if !decodeJSON(w, r, maxBodyBytes, &req) {
		return
	}
	n := h.ledger.DeleteRules(owned(req.IDs, auth.AdminID(r.Context()), h.owner))
	writeJSON(w, http.StatusOK, map[string]int{"deleted": n})
}

func (h *RuleHandler) ListWarningRules(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, h.ledger.WarningRules(auth.AdminID(r.Context())))
}

func (h *RuleHandler) CreateWarningRule(w http.ResponseWriter, r *http.Request) {
	var req ledger.WarningRuleInput
	if !decodeJSON(w, r, maxBodyBytes, &req) {
		return
	}
	wr, err := h.ledger.AddWarningRule(auth.AdminID(r.Context()), req)
	if err != nil {
		writeLedgerError(w, h.logger, "create warning rule", err)
		return
	}
	writeJSON(w, http.StatusCreated, wr)
}

func (h *RuleHandler) DeleteWarningRule(w http.ResponseWriter, r *http.Request) {
	id := r.PathValue("id")
	wr, ok := h.ledger.WarningRule(id)
	if !ok || wr.AdminID != auth.AdminID(r.Context()) {
		notFound(w, "warning rule")
		return
	}
	h.ledger.DeleteWarningRule(id)
	w.WriteHeader(http.StatusNoContent)
}

// Warnings lists members currently at or below a warning threshold.
func (h *RuleHandler) Warnings(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, h.ledger.Warnings(auth.AdminID(r.Context())))
}

func (h *RuleHandler) ConfirmWarning(w http.ResponseWriter, r *http.Request) {
	var req struct {
		MemberID      string `json:"memberId"`
		WarningRuleID string `json:"warningRuleId"`
		Note          string `json:"note"`
	}
	if !decodeJSON(w, r, maxBodyBytes, &req) {
		return
	}
	adminID := auth.AdminID(r.Context())
	if m, ok := h.ledger.Member(req.MemberID); !ok || m.AdminID != adminID {
		notFound(w, "member")
		return
	}
	if wr, ok := h.ledger.WarningRule(req.WarningRuleID); !ok || wr.AdminID != adminID {
		notFound(w, "warning rule")
		return
	}
	entry, err := h.ledger.ConfirmWarning(req.MemberID, req.WarningRuleID, auth.UserID(r.Context()), req.Note)
	if err != nil {
		writeLedgerError(w, h.logger, "confirm warning", err)
		return
	}
	writeJSON(w, http.StatusCreated, entry)
}
