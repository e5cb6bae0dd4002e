package handler

import (
	"errors"
	"log/slog"
	"net/http"
	"sort"
	"time"

	"bookwatch/internal/domain"
)

// BookHandler serves cached order book snapshots for dashboard reads that do
// not hold a feed subscription of their own.
type BookHandler struct {
	cache  domain.BookCache
	logger *slog.Logger
}

// NewBookHandler creates a BookHandler backed by the given cache. A nil
// cache makes every request answer 503.
func NewBookHandler(cache domain.BookCache, logger *slog.Logger) *BookHandler {
	return &BookHandler{cache: cache, logger: logHandler(logger, "book")}
}

// bookResponse is the wire shape of a snapshot: levels as [price, quantity]
// pairs, bids descending and asks ascending.
type bookResponse struct {
	Symbol    string       `json:"symbol"`
	Bids      [][2]float64 `json:"bids"`
	Asks      [][2]float64 `json:"asks"`
	BestBid   float64      `json:"best_bid"`
	BestAsk   float64      `json:"best_ask"`
	LastPrice float64      `json:"last_price"`
	Time      time.Time    `json:"time"`
}

// GetBook responds with the cached snapshot for a symbol.
// GET /api/book/{symbol}
func (h *BookHandler) GetBook(w http.ResponseWriter, r *http.Request) {
	if h.cache == nil {
		writeError(w, http.StatusServiceUnavailable, "snapshot cache not configured")
		return
	}
	symbol := pathParam(r, "symbol")

	snap, err := h.cache.GetSnapshot(r.Context(), symbol)
	if errors.Is(err, domain.ErrNotFound) {
		writeError(w, http.StatusNotFound, "no snapshot for "+symbol)
		return
	}
	if err != nil {
		h.logger.ErrorContext(r.Context(), "snapshot read failed", slog.String("error", err.Error()))
		writeError(w, http.StatusInternalServerError, "snapshot read failed")
		return
	}

	writeJSON(w, http.StatusOK, bookResponse{
		Symbol:    snap.Symbol,
		Bids:      sortedLevels(snap.Bids, true),
		Asks:      sortedLevels(snap.Asks, false),
		BestBid:   snap.BestBid,
		BestAsk:   snap.BestAsk,
		LastPrice: snap.LastPrice,
		Time:      snap.Time,
	})
}

// GetBBO responds with just the best bid and ask for a symbol.
// GET /api/book/{symbol}/bbo
func (h *BookHandler) GetBBO(w http.ResponseWriter, r *http.Request) {
	if h.cache == nil {
		writeError(w, http.StatusServiceUnavailable, "snapshot cache not configured")
		return
	}
	symbol := pathParam(r, "symbol")

	bid, ask, err := h.cache.GetBBO(r.Context(), symbol)
	if errors.Is(err, domain.ErrNotFound) {
		writeError(w, http.StatusNotFound, "no quotes for "+symbol)
		return
	}
	if err != nil {
		h.logger.ErrorContext(r.Context(), "bbo read failed", slog.String("error", err.Error()))
		writeError(w, http.StatusInternalServerError, "bbo read failed")
		return
	}

	writeJSON(w, http.StatusOK, map[string]any{
		"symbol":   symbol,
		"best_bid": bid,
		"best_ask": ask,
	})
}

// sortedLevels flattens a price-keyed map into ordered [price, quantity]
// pairs. JSON objects cannot carry float keys, so the wire format is pairs.
func sortedLevels(levels map[float64]float64, descending bool) [][2]float64 {
	out := make([][2]float64, 0, len(levels))
	for price, qty := range levels {
		out = append(out, [2]float64{price, qty})
	}
	sort.Slice(out, func(i, j int) bool {
		if descending {
			return out[i][0] > out[j][0]
		}
		return out[i][0] < out[j][0]
	})
	return out
}
