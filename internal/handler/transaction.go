package handler

import (
	"log/slog"
	"net/http"

	"github.com/dukerupert/pointkeeper/internal/auth"
	"github.com/dukerupert/pointkeeper/internal/ledger"
	"github.com/dukerupert/pointkeeper/internal/model"
)

type TransactionHandler struct {
	ledger *ledger.Ledger
	logger *slog.Logger
}

func NewTransactionHandler(l *ledger.Ledger, logger *slog.Logger) *TransactionHandler {
	return &TransactionHandler{ledger: l, logger: logger}
}

func (h *TransactionHandler) List(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, h.ledger.Transactions(auth.AdminID(r.Context())))
}

// Record applies a catalog rule to a member on behalf of the caller. Over
// HTTP the rule must exist in the caller's tenant and its current value is used.
func (h *TransactionHandler) Record(w http.ResponseWriter, r *http.Request) {
	var req struct {
		MemberID string `json:"memberId"`
		RuleID   string `json:"ruleId"`
		Evidence string `json:"evidence"`
	}
	if !decodeJSON(w, r, maxBodyBytes, &req) {
		return
	}
	adminID := auth.AdminID(r.Context())
	if m, ok := h.ledger.Member(req.MemberID); !ok || m.AdminID != adminID {
		notFound(w, "member")
		return
	}
	if rule, ok := h.ledger.Rule(req.RuleID); !ok || rule.AdminID != adminID {
		notFound(w, "rule")
		return
	}

	tx, err := h.ledger.RecordTransaction(ledger.TransactionInput{
		MemberID:      req.MemberID,
		ContributorID: auth.UserID(r.Context()),
		RuleID:        req.RuleID,
		Evidence:      req.Evidence,
	})
	if err != nil {
		writeLedgerError(w, h.logger, "record transaction", err)
		return
	}
	writeJSON(w, http.StatusCreated, tx)
}

// Revert undoes an active transaction. An optional JSON body may carry the
// audit details.
func (h *TransactionHandler) Revert(w http.ResponseWriter, r *http.Request) {
	id := r.PathValue("id")
	tx, ok := h.ledger.Transaction(id)
	if !ok || tx.AdminID != auth.AdminID(r.Context()) {
		notFound(w, "transaction")
		return
	}

	var req struct {
		Details string `json:"details"`
	}
	if r.ContentLength > 0 && !decodeJSON(w, r, maxBodyBytes, &req) {
		return
	}

	if !h.ledger.RevertTransaction(tx.ID, auth.UserID(r.Context()), req.Details) {
		notFound(w, "transaction")
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

// AuditLogs lists the tenant's audit trail, optionally for one member.
func (h *TransactionHandler) AuditLogs(w http.ResponseWriter, r *http.Request) {
	logs := h.ledger.AuditLogs(auth.AdminID(r.Context()))
	if memberID := r.URL.Query().Get("memberId"); memberID != "" {
		filtered := []model.AuditLog{}
		for _, entry := range logs {
			if entry.MemberID == memberID {
				filtered = append(filtered, entry)
			}
		}
		logs = filtered
	}
	writeJSON(w, http.StatusOK, logs)
}
