package api

import (
	"context"
	"encoding/json"
	"errors"
	"log/slog"
	"net/http"
	"strconv"
	"time"

	"github.com/gorilla/mux"
	"github.com/shopspring/decimal"
	"github.com/trogers1052/paper-trader/internal/ledger"
	"github.com/trogers1052/paper-trader/internal/models"
	"github.com/trogers1052/paper-trader/internal/trader"
)

// Trader is the set of user-facing operations served over HTTP
type Trader interface {
	ViewPortfolio(ctx context.Context) (*trader.PortfolioView, error)
	Buy(ctx context.Context, req trader.OrderRequest) (*trader.TradeResult, error)
	Sell(ctx context.Context, req trader.OrderRequest) (*trader.TradeResult, error)
	ListTransactions(ctx context.Context, limit int) (*trader.TransactionHistory, error)
	Reset(ctx context.Context, startingCash decimal.Decimal) (*trader.ResetResult, error)
	Quote(ctx context.Context, ticker, interval string) (*trader.QuoteView, error)
	Snapshots(ctx context.Context, from, to time.Time) ([]*models.PortfolioSnapshot, error)
}

// Pinger reports whether the record store is reachable
type Pinger interface {
	Ping(ctx context.Context) error
}

// Handler holds dependencies for HTTP handlers
type Handler struct {
	trader Trader
	db     Pinger
	log    *slog.Logger
}

// NewHandler creates a new Handler. db may be nil.
func NewHandler(t Trader, db Pinger, log *slog.Logger) *Handler {
	return &Handler{
		trader: t,
		db:     db,
		log:    log.With("component", "api"),
	}
}

// GetPortfolio handles GET /portfolio
func (h *Handler) GetPortfolio(w http.ResponseWriter, r *http.Request) {
	view, err := h.trader.ViewPortfolio(r.Context())
	if err != nil {
		h.respondError(w, err)
		return
	}

	respondJSON(w, http.StatusOK, view)
}

// ResetPortfolio handles POST /portfolio/reset
func (h *Handler) ResetPortfolio(w http.ResponseWriter, r *http.Request) {
	var req struct {
		StartingCash *decimal.Decimal `json:"starting_cash"`
	}

	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		respondJSON(w, http.StatusBadRequest, errorResponse{Error: "invalid request body"})
		return
	}

	if req.StartingCash == nil {
		respondJSON(w, http.StatusBadRequest, errorResponse{Error: "starting_cash is required"})
		return
	}

	res, err := h.trader.Reset(r.Context(), *req.StartingCash)
	if err != nil {
		h.respondError(w, err)
		return
	}

	respondJSON(w, http.StatusOK, res)
}

// Buy handles POST /orders/buy
func (h *Handler) Buy(w http.ResponseWriter, r *http.Request) {
	h.placeOrder(w, r, h.trader.Buy)
}

// Sell handles POST /orders/sell
func (h *Handler) Sell(w http.ResponseWriter, r *http.Request) {
	h.placeOrder(w, r, h.trader.Sell)
}

func (h *Handler) placeOrder(w http.ResponseWriter, r *http.Request,
	place func(context.Context, trader.OrderRequest) (*trader.TradeResult, error)) {
	var req trader.OrderRequest

	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		respondJSON(w, http.StatusBadRequest, errorResponse{Error: "invalid request body"})
		return
	}

	res, err := place(r.Context(), req)
	if err != nil {
		h.respondError(w, err)
		return
	}

	respondJSON(w, http.StatusCreated, res)
}

// GetTransactions handles GET /transactions
func (h *Handler) GetTransactions(w http.ResponseWriter, r *http.Request) {
	limit := 0
	if v := r.URL.Query().Get("limit"); v != "" {
		n, err := strconv.Atoi(v)
		if err != nil || n < 0 {
			respondJSON(w, http.StatusBadRequest, errorResponse{Error: "limit must be a non-negative integer"})
			return
		}
		limit = n
	}

	history, err := h.trader.ListTransactions(r.Context(), limit)
	if err != nil {
		h.respondError(w, err)
		return
	}

	respondJSON(w, http.StatusOK, history)
}

// GetQuote handles GET /quotes/{ticker}
func (h *Handler) GetQuote(w http.ResponseWriter, r *http.Request) {
	vars := mux.Vars(r)
	ticker := vars["ticker"]

	quote, err := h.trader.Quote(r.Context(), ticker, r.URL.Query().Get("interval"))
	if err != nil {
		h.respondError(w, err)
		return
	}

	respondJSON(w, http.StatusOK, quote)
}

// GetSnapshots handles GET /portfolio/snapshots?from=...&to=...
// Both bounds are RFC 3339; to defaults to now and from to 24 hours before to.
func (h *Handler) GetSnapshots(w http.ResponseWriter, r *http.Request) {
	to := time.Now()
	if v := r.URL.Query().Get("to"); v != "" {
		t, err := time.Parse(time.RFC3339, v)
		if err != nil {
			respondJSON(w, http.StatusBadRequest, errorResponse{Error: "to must be an RFC 3339 timestamp"})
			return
		}
		to = t
	}
	from := to.Add(-24 * time.Hour)
	if v := r.URL.Query().Get("from"); v != "" {
		t, err := time.Parse(time.RFC3339, v)
		if err != nil {
			respondJSON(w, http.StatusBadRequest, errorResponse{Error: "from must be an RFC 3339 timestamp"})
			return
		}
		from = t
	}

	snapshots, err := h.trader.Snapshots(r.Context(), from, to)
	if err != nil {
		h.respondError(w, err)
		return
	}

	respondJSON(w, http.StatusOK, snapshots)
}

// HealthCheck handles GET /health
func (h *Handler) HealthCheck(w http.ResponseWriter, r *http.Request) {
	if h.db != nil {
		if err := h.db.Ping(r.Context()); err != nil {
			respondJSON(w, http.StatusServiceUnavailable, map[string]string{"status": "unhealthy", "error": err.Error()})
			return
		}
	}
	respondJSON(w, http.StatusOK, map[string]string{"status": "healthy"})
}

type errorResponse struct {
	Error string `json:"error"`
}

// statusFor maps domain errors to HTTP status codes
func statusFor(err error) int {
	switch {
	case errors.Is(err, ledger.ErrInvalidAmount),
		errors.Is(err, ledger.ErrInvalidTicker),
		errors.Is(err, trader.ErrInvalidInterval),
		errors.Is(err, trader.ErrInvalidRange),
		errors.Is(err, trader.ErrInvalidSide):
		return http.StatusBadRequest
	case errors.Is(err, ledger.ErrUnknownTicker),
		errors.Is(err, models.ErrPortfolioNotFound):
		return http.StatusNotFound
	case errors.Is(err, models.ErrDuplicateOrder):
		return http.StatusConflict
	case errors.Is(err, ledger.ErrInsufficientFunds),
		errors.Is(err, ledger.ErrInsufficientShares):
		return http.StatusUnprocessableEntity
	}
	return http.StatusInternalServerError
}

func (h *Handler) respondError(w http.ResponseWriter, err error) {
	status := statusFor(err)
	if status == http.StatusInternalServerError {
		h.log.Error("request failed", "error", err)
		respondJSON(w, status, errorResponse{Error: "internal error"})
		return
	}
	respondJSON(w, status, errorResponse{Error: err.Error()})
}

func respondJSON(w http.ResponseWriter, status int, data interface{}) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	json.NewEncoder(w).Encode(data)
}
