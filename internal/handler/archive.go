package handler

import (
	"errors"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"path"
	"strconv"

	"github.com/dukerupert/pointkeeper/internal/auth"
	"github.com/dukerupert/pointkeeper/internal/export"
	"github.com/dukerupert/pointkeeper/internal/ledger"
	"github.com/dukerupert/pointkeeper/internal/model"
)

type ArchiveHandler struct {
	ledger  *ledger.Ledger
	exports *export.Manager
	logger  *slog.Logger
}

func NewArchiveHandler(l *ledger.Ledger, exports *export.Manager, logger *slog.Logger) *ArchiveHandler {
	return &ArchiveHandler{ledger: l, exports: exports, logger: logger}
}

func (h *ArchiveHandler) archive(r *http.Request) (model.Archive, bool) {
	a, ok := h.ledger.Archive(r.PathValue("id"))
	if !ok || a.AdminID != auth.AdminID(r.Context()) {
		return model.Archive{}, false
	}
	return a, true
}

func (h *ArchiveHandler) List(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, h.ledger.Archives(auth.AdminID(r.Context())))
}

func (h *ArchiveHandler) Get(w http.ResponseWriter, r *http.Request) {
	a, ok := h.archive(r)
	if !ok {
		notFound(w, "archive")
		return
	}
	writeJSON(w, http.StatusOK, a)
}

func (h *ArchiveHandler) Create(w http.ResponseWriter, r *http.Request) {
	var req struct {
		Title          string `json:"title"`
		IncludeHistory bool   `json:"includeHistory"`
	}
	if !decodeJSON(w, r, maxBodyBytes, &req) {
		return
	}
	a, err := h.ledger.CreateArchive(auth.AdminID(r.Context()), req.Title, req.IncludeHistory)
	if err != nil {
		writeLedgerError(w, h.logger, "create archive", err)
		return
	}
	writeJSON(w, http.StatusCreated, a)
}

// Delete removes the archive together with its uploaded exports.
func (h *ArchiveHandler) Delete(w http.ResponseWriter, r *http.Request) {
	a, ok := h.archive(r)
	if !ok {
		notFound(w, "archive")
		return
	}
	if !h.ledger.DeleteArchive(a.ID) {
		notFound(w, "archive")
		return
	}
	if err := h.exports.Forget(r.Context(), a.ID); err != nil {
		h.logger.Error("forget archive exports", "archive_id", a.ID, "error", err)
	}
	w.WriteHeader(http.StatusNoContent)
}

// Export uploads the archive to object storage.
func (h *ArchiveHandler) Export(w http.ResponseWriter, r *http.Request) {
	a, ok := h.archive(r)
	if !ok {
		notFound(w, "archive")
		return
	}
	rec, err := h.exports.Export(r.Context(), a)
	if errors.Is(err, export.ErrDisabled) {
		writeJSON(w, http.StatusServiceUnavailable, map[string]string{"error": err.Error()})
		return
	}
	if err != nil {
		h.logger.Error("export archive", "archive_id", a.ID, "error", err)
		writeJSON(w, http.StatusBadGateway, map[string]string{"error": "failed to export archive"})
		return
	}
	writeJSON(w, http.StatusCreated, rec)
}

func (h *ArchiveHandler) ListExports(w http.ResponseWriter, r *http.Request) {
	limit := 50
	if s := r.URL.Query().Get("limit"); s != "" {
		n, err := strconv.Atoi(s)
		if err != nil || n <= 0 {
			writeJSON(w, http.StatusBadRequest, map[string]string{"error": "invalid limit"})
			return
		}
		limit = min(n, 500)
	}
	list, err := h.exports.List(auth.AdminID(r.Context()), limit)
	if err != nil {
		h.logger.Error("list exports", "error", err)
		writeJSON(w, http.StatusInternalServerError, map[string]string{"error": "failed to list exports"})
		return
	}
	if list == nil {
		list = []model.ArchiveExport{}
	}
	writeJSON(w, http.StatusOK, list)
}

// Download streams a completed export exactly as stored.
func (h *ArchiveHandler) Download(w http.ResponseWriter, r *http.Request) {
	id, err := strconv.ParseInt(r.PathValue("id"), 10, 64)
	if err != nil {
		writeJSON(w, http.StatusBadRequest, map[string]string{"error": "invalid id"})
		return
	}

	body, rec, err := h.exports.Download(r.Context(), id, auth.AdminID(r.Context()))
	switch {
	case errors.Is(err, export.ErrDisabled):
		writeJSON(w, http.StatusServiceUnavailable, map[string]string{"error": err.Error()})
		return
	case errors.Is(err, export.ErrNotFound):
		notFound(w, "export")
		return
	case err != nil:
		h.logger.Error("download export", "export_id", id, "error", err)
		writeJSON(w, http.StatusBadGateway, map[string]string{"error": "failed to download export"})
		return
	}
	defer body.Close()

	contentType := "application/json"
	if rec.Encrypted {
		contentType = "application/octet-stream"
	}
	w.Header().Set("Content-Type", contentType)
	w.Header().Set("Content-Disposition", fmt.Sprintf("attachment; filename=%q", path.Base(rec.S3Key)))
	if _, err := io.Copy(w, body); err != nil {
		h.logger.Warn("stream export", "export_id", id, "error", err)
	}
}
