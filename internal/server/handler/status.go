package handler

import (
	"net/http"
	"time"
)

// StatusHandler serves the watcher's runtime status for the dashboard.
type StatusHandler struct {
	Symbols   []string
	StartedAt time.Time
}

// NewStatusHandler creates a StatusHandler for the given watched symbols.
func NewStatusHandler(symbols []string, startedAt time.Time) *StatusHandler {
	return &StatusHandler{Symbols: symbols, StartedAt: startedAt}
}

// GetStatus responds with the watched symbols and process uptime.
// GET /api/status
func (h *StatusHandler) GetStatus(w http.ResponseWriter, r *http.Request) {
	uptime := int64(time.Since(h.StartedAt).Seconds())
	if uptime < 0 {
		uptime = 0
	}
	writeJSON(w, http.StatusOK, map[string]any{
		"symbols":        h.Symbols,
		"uptime_seconds": uptime,
	})
}
