// Package handler implements the JSON HTTP API over the ledger.
package handler

import (
	"encoding/json"
	"errors"
	"log/slog"
	"net/http"

	"github.com/dukerupert/pointkeeper/internal/ledger"
	"github.com/dukerupert/pointkeeper/internal/validate"
)

const (
	maxBodyBytes   = 1 << 20
	maxImportBytes = 16 << 20
)

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	json.NewEncoder(w).Encode(v)
}

// decodeJSON reads a JSON body of at most limit bytes into v.
func decodeJSON(w http.ResponseWriter, r *http.Request, limit int64, v any) bool {
	r.Body = http.MaxBytesReader(w, r.Body, limit)
	if err := json.NewDecoder(r.Body).Decode(v); err != nil {
		var tooLarge *http.MaxBytesError
		if errors.As(err, &tooLarge) {
			writeJSON(w, http.StatusRequestEntityTooLarge, map[string]string{"error": "request body too large"})
			return false
		}
		writeJSON(w, http.StatusBadRequest, map[string]string{"error": "invalid JSON"})
		return false
	}
	return true
}

// writeLedgerError maps ledger errors to HTTP statuses. Unexpected errors are
// logged and reported as 500 without detail.
func writeLedgerError(w http.ResponseWriter, logger *slog.Logger, op string, err error) {
	var verr *validate.Error
	switch {
	case errors.As(err, &verr):
		writeJSON(w, http.StatusUnprocessableEntity, map[string]any{
			"error":      verr.Error(),
			"collection": verr.Collection,
			"index":      verr.Index,
			"field":      verr.Field,
		})
	case errors.Is(err, ledger.ErrNotFound):
		writeJSON(w, http.StatusNotFound, map[string]string{"error": err.Error()})
	case errors.Is(err, ledger.ErrInvalidArgument), errors.Is(err, ledger.ErrInvalidDecision):
		writeJSON(w, http.StatusBadRequest, map[string]string{"error": err.Error()})
	case errors.Is(err, ledger.ErrConflict):
		writeJSON(w, http.StatusConflict, map[string]string{"error": err.Error()})
	case errors.Is(err, ledger.ErrInvalidCredentials):
		writeJSON(w, http.StatusUnauthorized, map[string]string{"error": "invalid username or password"})
	default:
		logger.Error(op, "error", err)
		writeJSON(w, http.StatusInternalServerError, map[string]string{"error": "failed to " + op})
	}
}

func notFound(w http.ResponseWriter, what string) {
	writeJSON(w, http.StatusNotFound, map[string]string{"error": what + " not found"})
}

// idsRequest is the body of every bulk operation that targets existing records.
type idsRequest struct {
	IDs []string `json:"ids"`
}

// owned keeps the ids whose record exists and belongs to adminID.
func owned(ids []string, adminID string, owner func(id string) (string, bool)) []string {
	out := make([]string, 0, len(ids))
	for _, id := range ids {
		if a, ok := owner(id); ok && a == adminID {
			out = append(out, id)
		}
	}
	return out
}
