package handler

import (
	"log/slog"
	"net/http"

	"github.com/dukerupert/pointkeeper/internal/auth"
	"github.com/dukerupert/pointkeeper/internal/ledger"
	"github.com/dukerupert/pointkeeper/internal/model"
)

// DataHandler syncs whole collections with offline clients.
type DataHandler struct {
	ledger *ledger.Ledger
	logger *slog.Logger
}

func NewDataHandler(l *ledger.Ledger, logger *slog.Logger) *DataHandler {
	return &DataHandler{ledger: l, logger: logger}
}

func (h *DataHandler) Get(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, h.ledger.Snapshot(auth.AdminID(r.Context())))
}

// Import replaces the tenant's records in each submitted collection.
// Collections left out of the body are untouched.
func (h *DataHandler) Import(w http.ResponseWriter, r *http.Request) {
	var partial model.StoreData
	if !decodeJSON(w, r, maxImportBytes, &partial) {
		return
	}
	adminID := auth.AdminID(r.Context())
	if _, err := h.ledger.Import(adminID, partial); err != nil {
		writeLedgerError(w, h.logger, "import data", err)
		return
	}
	h.logger.Info("data imported", "admin_id", adminID)
	writeJSON(w, http.StatusOK, h.ledger.Snapshot(adminID))
}
