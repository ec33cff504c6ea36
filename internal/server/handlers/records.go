package handlers

import (
	"encoding/json"
	"log/slog"
	"net/http"
	"strings"

	"github.com/iudanet/medsync/internal/models"
	"github.com/iudanet/medsync/internal/validation"
	"github.com/iudanet/medsync/pkg/api"
)

// RecordRepository is the local mutation surface of the authoritative node
type RecordRepository interface {
	Current() []models.Record
	Get(id string) (models.Record, bool)
	Add(record models.Record) models.Record
	UpdateStatus(id string, status models.RecordStatus) bool
}

// RecordsHandler exposes the authoritative repository to local UI clients.
// Every change made here goes through the local mutation path and is published.
type RecordsHandler struct {
	logger *slog.Logger
	repo   RecordRepository
}

// NewRecordsHandler creates a new records handler
func NewRecordsHandler(logger *slog.Logger, repo RecordRepository) *RecordsHandler {
	return &RecordsHandler{
		logger: logger,
		repo:   repo,
	}
}

// List обрабатывает GET /api/v1/records
func (h *RecordsHandler) List(w http.ResponseWriter, _ *http.Request) {
	sendJSON(w, h.logger, h.repo.Current(), http.StatusOK)
}

// Create обрабатывает POST /api/v1/records
// id и status из запроса игнорируются
func (h *RecordsHandler) Create(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()

	var rec models.Record
	if err := json.NewDecoder(r.Body).Decode(&rec); err != nil {
		h.logger.WarnContext(ctx, "failed to decode record", slog.Any("error", err))
		sendError(w, h.logger, "invalid request body", http.StatusBadRequest)
		return
	}

	if strings.TrimSpace(rec.Name) == "" {
		sendError(w, h.logger, "name is required", http.StatusBadRequest)
		return
	}

	if err := validation.ValidateRecord(rec); err != nil {
		sendError(w, h.logger, err.Error(), http.StatusBadRequest)
		return
	}

	created := h.repo.Add(rec)

	h.logger.InfoContext(ctx, "record added",
		slog.String("record_id", created.ID),
		slog.String("name", created.Name))

	sendJSON(w, h.logger, created, http.StatusCreated)
}

// UpdateStatus обрабатывает POST /api/v1/records/{id}/status
func (h *RecordsHandler) UpdateStatus(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	id := r.PathValue("id")

	var req api.UpdateStatusRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		sendError(w, h.logger, "invalid request body", http.StatusBadRequest)
		return
	}

	status, err := models.ParseStatus(req.Status)
	if err != nil {
		sendError(w, h.logger, err.Error(), http.StatusBadRequest)
		return
	}

	if !h.repo.UpdateStatus(id, status) {
		sendError(w, h.logger, "record not found", http.StatusNotFound)
		return
	}

	h.logger.InfoContext(ctx, "record status updated",
		slog.String("record_id", id),
		slog.String("status", status.String()))

	rec, ok := h.repo.Get(id)
	if !ok {
		sendError(w, h.logger, "record not found", http.StatusNotFound)
		return
	}

	sendJSON(w, h.logger, rec, http.StatusOK)
}
