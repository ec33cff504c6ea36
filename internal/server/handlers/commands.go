package handlers

import (
	"context"
	"errors"
	"io"
	"log/slog"
	"net/http"
	"strconv"
	"strings"
	"unicode/utf8"

	"github.com/iudanet/medsync/internal/models"
	"github.com/iudanet/medsync/internal/server/storage"
	"github.com/iudanet/medsync/internal/transport"
	"github.com/iudanet/medsync/pkg/api"
)

const (
	// maxCommandBody ограничивает размер id записи в теле команды
	maxCommandBody = 1024

	defaultJournalLimit = 50
	maxJournalLimit     = 500
)

// CommandDispatcher передает команду слушателю канала команд
type CommandDispatcher interface {
	DispatchCommand(ctx context.Context, cmd transport.Command) error
}

// CommandLog читает журнал принятых команд
type CommandLog interface {
	RecentCommands(ctx context.Context, limit int) ([]*storage.CommandRecord, error)
}

// CommandsHandler принимает команды реплики
type CommandsHandler struct {
	logger     *slog.Logger
	dispatcher CommandDispatcher
	journal    CommandLog
}

// NewCommandsHandler creates a new commands handler; journal may be nil
func NewCommandsHandler(logger *slog.Logger, dispatcher CommandDispatcher, journal CommandLog) *CommandsHandler {
	return &CommandsHandler{
		logger:     logger,
		dispatcher: dispatcher,
		journal:    journal,
	}
}

// Submit обрабатывает POST /api/v1/commands/{action}
// Тело запроса - id записи в виде UTF-8 текста
func (h *CommandsHandler) Submit(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()

	action, err := models.ParseAction(r.PathValue("action"))
	if err != nil {
		h.logger.WarnContext(ctx, "unknown command action", slog.String("action", r.PathValue("action")))
		sendError(w, h.logger, err.Error(), http.StatusNotFound)
		return
	}
	path, err := action.Path()
	if err != nil {
		sendError(w, h.logger, err.Error(), http.StatusNotFound)
		return
	}

	body, err := io.ReadAll(io.LimitReader(r.Body, maxCommandBody+1))
	if err != nil {
		h.logger.ErrorContext(ctx, "failed to read command body", slog.Any("error", err))
		sendError(w, h.logger, "invalid request body", http.StatusBadRequest)
		return
	}
	if len(body) > maxCommandBody {
		sendError(w, h.logger, "record id too long", http.StatusRequestEntityTooLarge)
		return
	}

	// Тело передается как есть, снимается только завершающий перевод строки
	recordID := string(body)
	if trimmed, ok := strings.CutSuffix(recordID, "\n"); ok {
		recordID = strings.TrimSuffix(trimmed, "\r")
	}
	switch {
	case recordID == "":
		sendError(w, h.logger, "record id is required", http.StatusBadRequest)
		return
	case !utf8.ValidString(recordID):
		sendError(w, h.logger, "record id must be valid UTF-8", http.StatusBadRequest)
		return
	case strings.TrimSpace(recordID) != recordID:
		sendError(w, h.logger, "record id must not have leading or trailing whitespace", http.StatusBadRequest)
		return
	}

	cmd := transport.Command{
		Path:    path,
		From:    r.Header.Get(api.HeaderNodeID),
		Payload: []byte(recordID),
	}

	if err := h.dispatcher.DispatchCommand(ctx, cmd); err != nil {
		if errors.Is(err, transport.ErrNoCommandListener) {
			h.logger.WarnContext(ctx, "command arrived with no listener", slog.String("path", path))
			sendError(w, h.logger, "node is not accepting commands", http.StatusServiceUnavailable)
			return
		}
		h.logger.ErrorContext(ctx, "failed to dispatch command", slog.Any("error", err))
		sendError(w, h.logger, "internal server error", http.StatusInternalServerError)
		return
	}

	h.logger.InfoContext(ctx, "command accepted",
		slog.String("action", action.String()),
		slog.String("record_id", recordID),
		slog.String("from", cmd.From))

	sendJSON(w, h.logger, api.CommandResponse{Action: action.String(), RecordID: recordID}, http.StatusAccepted)
}

// Recent обрабатывает GET /api/v1/commands?limit=N
func (h *CommandsHandler) Recent(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()

	if h.journal == nil {
		sendError(w, h.logger, "command journal disabled", http.StatusNotFound)
		return
	}

	limit := defaultJournalLimit
	if s := r.URL.Query().Get("limit"); s != "" {
		n, err := strconv.Atoi(s)
		if err != nil || n <= 0 {
			sendError(w, h.logger, "invalid limit parameter", http.StatusBadRequest)
			return
		}
		limit = min(n, maxJournalLimit)
	}

	records, err := h.journal.RecentCommands(ctx, limit)
	if err != nil {
		h.logger.ErrorContext(ctx, "failed to read command journal", slog.Any("error", err))
		sendError(w, h.logger, "internal server error", http.StatusInternalServerError)
		return
	}

	entries := make([]api.CommandLogEntry, 0, len(records))
	for _, rec := range records {
		entries = append(entries, api.CommandLogEntry{
			ID:         rec.ID,
			Path:       rec.Path,
			RecordID:   rec.RecordID,
			From:       rec.From,
			ReceivedAt: rec.ReceivedAt,
		})
	}

	sendJSON(w, h.logger, entries, http.StatusOK)
}
