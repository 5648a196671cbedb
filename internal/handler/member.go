package handler

import (
	"log/slog"
	"net/http"

	"github.com/dukerupert/pointkeeper/internal/auth"
	"github.com/dukerupert/pointkeeper/internal/ledger"
	"github.com/dukerupert/pointkeeper/internal/model"
)

type MemberHandler struct {
	ledger *ledger.Ledger
	logger *slog.Logger
}

func NewMemberHandler(l *ledger.Ledger, logger *slog.Logger) *MemberHandler {
	return &MemberHandler{ledger: l, logger: logger}
}

// member returns the path member if it belongs to the caller's tenant.
func (h *MemberHandler) member(r *http.Request) (model.Member, bool) {
	m, ok := h.ledger.Member(r.PathValue("id"))
	if !ok || m.AdminID != auth.AdminID(r.Context()) {
		return model.Member{}, false
	}
	return m, true
}

func (h *MemberHandler) owner(id string) (string, bool) {
	m, ok := h.ledger.Member(id)
	return m.AdminID, ok
}

func (h *MemberHandler) List(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, h.ledger.Members(auth.AdminID(r.Context())))
}

func (h *MemberHandler) Leaderboard(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, h.ledger.Leaderboard(auth.AdminID(r.Context())))
}

func (h *MemberHandler) Get(w http.ResponseWriter, r *http.Request) {
	m, ok := h.member(r)
	if !ok {
		notFound(w, "member")
		return
	}
	writeJSON(w, http.StatusOK, m)
}

// Transactions lists the member's active transactions, newest first.
func (h *MemberHandler) Transactions(w http.ResponseWriter, r *http.Request) {
	m, ok := h.member(r)
	if !ok {
		notFound(w, "member")
		return
	}
	writeJSON(w, http.StatusOK, h.ledger.MemberTransactions(m.ID))
}

func (h *MemberHandler) Create(w http.ResponseWriter, r *http.Request) {
	var req model.MemberInput
	if !decodeJSON(w, r, maxBodyBytes, &req) {
		return
	}
	m, err := h.ledger.AddMember(auth.AdminID(r.Context()), req)
	if err != nil {
		writeLedgerError(w, h.logger, "create member", err)
		return
	}
	writeJSON(w, http.StatusCreated, m)
}

// BulkCreate adds a whole roster at once. One bad row rejects the batch.
func (h *MemberHandler) BulkCreate(w http.ResponseWriter, r *http.Request) {
	var req []model.MemberInput
	if !decodeJSON(w, r, maxImportBytes, &req) {
		return
	}
	added, err := h.ledger.AddMembers(auth.AdminID(r.Context()), req)
	if err != nil {
		writeLedgerError(w, h.logger, "create members", err)
		return
	}
	writeJSON(w, http.StatusCreated, added)
}

func (h *MemberHandler) Update(w http.ResponseWriter, r *http.Request) {
	m, ok := h.member(r)
	if !ok {
		notFound(w, "member")
		return
	}
	var patch model.MemberPatch
	if !decodeJSON(w, r, maxBodyBytes, &patch) {
		return
	}
	if _, err := h.ledger.UpdateMembers([]string{m.ID}, patch); err != nil {
		writeLedgerError(w, h.logger, "update member", err)
		return
	}
	updated, ok := h.ledger.Member(m.ID)
	if !ok {
		notFound(w, "member")
		return
	}
	writeJSON(w, http.StatusOK, updated)
}

// BulkUpdate applies one patch to many members. Ids outside the caller's
// tenant are ignored.
func (h *MemberHandler) BulkUpdate(w http.ResponseWriter, r *http.Request) {
	var req struct {
		IDs   []string          `json:"ids"`
		Patch model.MemberPatch `json:"patch"`
	}
	if !decodeJSON(w, r, maxBodyBytes, &req) {
		return
	}
	ids := owned(req.IDs, auth.AdminID(r.Context()), h.owner)
	n, err := h.ledger.UpdateMembers(ids, req.Patch)
	if err != nil {
		writeLedgerError(w, h.logger, "update members", err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]int{"updated": n})
}

func (h *MemberHandler) Delete(w http.ResponseWriter, r *http.Request) {
	m, ok := h.member(r)
	if !ok {
		notFound(w, "member")
		return
	}
	if !h.ledger.DeleteMember(m.ID) {
		notFound(w, "member")
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

func (h *MemberHandler) BulkDelete(w http.ResponseWriter, r *http.Request) {
	var req idsRequest
	if !decodeJSON(w, r, maxBodyBytes, &req) {
		return
	}
	n := h.ledger.DeleteMembers(owned(req.IDs, auth.AdminID(r.Context()), h.owner))
	writeJSON(w, http.StatusOK, map[string]int{"deleted": n})
}
