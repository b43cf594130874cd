package handler

import (
	"net/http"
	"strconv"
	"time"

	"github.com/go-chi/chi/v5"

	"github.com/efreitasn/exchangesim/internal/engine"
	"github.com/efreitasn/exchangesim/internal/session"
)

const (
	defaultDepth   = 5
	maxDepth       = 50
	defaultLogTail = 100
)

// SessionView is the read side of a running or finished session.
type SessionView interface {
	Snapshot() session.Snapshot
	Depth(symbol string, n int) (bids, asks []engine.PriceLevel, ok bool)
}

// LineSource returns recent event lines.
type LineSource interface {
	Tail(n int) []string
}

// SessionHandler handles HTTP requests for session status endpoints.
type SessionHandler struct {
	sess  SessionView
	lines LineSource
}

// NewSessionHandler creates a new SessionHandler.
func NewSessionHandler(sess SessionView, lines LineSource) *SessionHandler {
	return &SessionHandler{sess: sess, lines: lines}
}

// bookLevelResponse is a single price level in the book response.
type bookLevelResponse struct {
	Price         int64 `json:"price"`
	TotalQuantity int64 `json:"total_quantity"`
	OrderCount    int   `json:"order_count"`
}

// bookResponse is the JSON response for GET /books/{symbol}.
type bookResponse struct {
	Symbol     string              `json:"symbol"`
	Bids       []bookLevelResponse `json:"bids"`
	Asks       []bookLevelResponse `json:"asks"`
	Spread     *int64              `json:"spread"`
	SnapshotAt string              `json:"snapshot_at"`
}

// logResponse is the JSON response for GET /session/log.
type logResponse struct {
	Lines []string `json:"lines"`
}

// GetSnapshot handles GET /session.
func (h *SessionHandler) GetSnapshot(w http.ResponseWriter, r *http.Request) {
	WriteJSON(w, http.StatusOK, h.sess.Snapshot())
}

// GetBook handles GET /books/{symbol}?depth=N.
func (h *SessionHandler) GetBook(w http.ResponseWriter, r *http.Request) {
	symbol := chi.URLParam(r, "symbol")

	depth, ok := intQuery(w, r, "depth", defaultDepth, 1, maxDepth)
	if !ok {
		return
	}

	bids, asks, found := h.sess.Depth(symbol, depth)
	if !found {
		WriteError(w, http.StatusNotFound, "book_not_found", "No orders have been processed for "+symbol)
		return
	}

	resp := bookResponse{
		Symbol:     symbol,
		Bids:       toLevelResponses(bids),
		Asks:       toLevelResponses(asks),
		SnapshotAt: time.Now().UTC().Format(time.RFC3339),
	}
	if len(bids) > 0 && len(asks) > 0 {
		spread := asks[0].Price - bids[0].Price
		resp.Spread = &spread
	}
	WriteJSON(w, http.StatusOK, resp)
}

// GetLog handles GET /session/log?tail=N.
func (h *SessionHandler) GetLog(w http.ResponseWriter, r *http.Request) {
	n, ok := intQuery(w, r, "tail", defaultLogTail, 0, 10000)
	if !ok {
		return
	}
	lines := h.lines.Tail(n)
	if lines == nil {
		lines = []string{}
	}
	WriteJSON(w, http.StatusOK, logResponse{Lines: lines})
}

func toLevelResponses(levels []engine.PriceLevel) []bookLevelResponse {
	out := make([]bookLevelResponse, len(levels))
	for i, l := range levels {
		out[i] = bookLevelResponse{
			Price:         l.Price,
			TotalQuantity: l.TotalQuantity,
			OrderCount:    l.OrderCount,
		}
	}
	return out
}

// intQuery parses an optional integer query parameter within [min, max],
// writing a 400 response and returning false when it is invalid.
func intQuery(w http.ResponseWriter, r *http.Request, name string, def, min, max int) (int, bool) {
	raw := r.URL.Query().Get(name)
	if raw == "" {
		return def, true
	}
	v, err := strconv.Atoi(raw)
	if err != nil || v < min || v > max {
		WriteError(w, http.StatusBadRequest, "invalid_request",
			name+" must be an integer between "+strconv.Itoa(min)+" and "+strconv.Itoa(max))
		return 0, false
	}
	return v, true
}
