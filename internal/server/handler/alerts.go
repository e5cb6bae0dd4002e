package handler

import (
	"context"
	"encoding/json"
	"log/slog"
	"net/http"

	"bookwatch/internal/domain"
)

// alertLogStream is the durable whale-alert history stream written by the
// engine's alert hook.
const alertLogStream = "bookwatch:alerts:log"

// StreamReader reads back the newest entries of a durable bus stream in
// oldest-first order. Implemented by the Redis signal bus.
type StreamReader interface {
	StreamRecent(ctx context.Context, stream string, count int) ([]domain.StreamMessage, error)
}

// AlertsHandler serves the recent whale-alert history.
type AlertsHandler struct {
	stream StreamReader
	logger *slog.Logger
}

// NewAlertsHandler creates an AlertsHandler backed by the given stream
// reader. A nil reader makes every request answer 503.
func NewAlertsHandler(stream StreamReader, logger *slog.Logger) *AlertsHandler {
	return &AlertsHandler{stream: stream, logger: logHandler(logger, "alerts")}
}

// ListRecent responds with the most recent retained whale alerts, oldest
// first.
// GET /api/alerts/recent
func (h *AlertsHandler) ListRecent(w http.ResponseWriter, r *http.Request) {
	if h.stream == nil {
		writeError(w, http.StatusServiceUnavailable, "alert history not configured")
		return
	}
	limit := parseLimit(r, 50, 500)

	msgs, err := h.stream.StreamRecent(r.Context(), alertLogStream, limit)
	if err != nil {
		h.logger.ErrorContext(r.Context(), "alert history read failed", slog.String("error", err.Error()))
		writeError(w, http.StatusInternalServerError, "alert history read failed")
		return
	}

	alerts := make([]domain.WhaleAlert, 0, len(msgs))
	for _, msg := range msgs {
		var a domain.WhaleAlert
		if err := json.Unmarshal(msg.Payload, &a); err != nil {
			continue
		}
		alerts = append(alerts, a)
	}

	writeJSON(w, http.StatusOK, map[string]any{
		"alerts": alerts,
		"count":  len(alerts),
	})
}
