package handler

import (
	"log/slog"
	"net/http"
	"strings"

	"github.com/dukerupert/pointkeeper/internal/ledger"
	"github.com/dukerupert/pointkeeper/internal/model"
)

// PublicHandler serves the unauthenticated lookup. Callers prove knowledge
// of a member by sending both its id and its division.
type PublicHandler struct {
	ledger *ledger.Ledger
	logger *slog.Logger
}

func NewPublicHandler(l *ledger.Ledger, logger *slog.Logger) *PublicHandler {
	return &PublicHandler{ledger: l, logger: logger}
}

type lookupResponse struct {
	Member  model.Member     `json:"member"`
	Logs    []model.AuditLog `json:"logs"`
	Appeals []model.Appeal   `json:"appeals"`
	Rules   []model.Rule     `json:"rules"`
}

func (h *PublicHandler) Lookup(w http.ResponseWriter, r *http.Request) {
	var req struct {
		MemberID string `json:"memberId"`
		Division string `json:"division"`
	}
	if !decodeJSON(w, r, maxBodyBytes, &req) {
		return
	}
	if strings.TrimSpace(req.MemberID) == "" || strings.TrimSpace(req.Division) == "" {
		writeJSON(w, http.StatusBadRequest, map[string]string{"error": "memberId and division are required"})
		return
	}

	m, ok := h.ledger.LookupMemberPublic(req.MemberID, req.Division)
	if !ok {
		notFound(w, "member")
		return
	}
	writeJSON(w, http.StatusOK, lookupResponse{
		Member:  m,
		Logs:    h.ledger.LookupLogsPublic(m.ID),
		Appeals: h.ledger.LookupAppealsPublic(m.ID),
		Rules:   h.ledger.LookupRulesPublic(m.AdminID),
	})
}

// FileAppeal lets a member contest one of their own active transactions.
func (h *PublicHandler) FileAppeal(w http.ResponseWriter, r *http.Request) {
	var req struct {
		MemberID      string `json:"memberId"`
		Division      string `json:"division"`
		TransactionID string `json:"transactionId"`
		Reason        string `json:"reason"`
		Evidence      string `json:"evidence"`
	}
	if !decodeJSON(w, r, maxBodyBytes, &req) {
		return
	}

	m, ok := h.ledger.LookupMemberPublic(req.MemberID, req.Division)
	if !ok {
		notFound(w, "member")
		return
	}
	tx, ok := h.ledger.Transaction(strings.TrimSpace(req.TransactionID))
	if !ok || tx.MemberID != m.ID {
		notFound(w, "transaction")
		return
	}

	a, err := h.ledger.FileAppeal(ledger.AppealInput{
		TransactionID: tx.ID,
		MemberID:      m.ID,
		Reason:        req.Reason,
		Evidence:      req.Evidence,
	})
	if err != nil {
		writeLedgerError(w, h.logger, "file appeal", err)
		return
	}
	writeJSON(w, http.StatusCreated, a)
}
