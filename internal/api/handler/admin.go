package handler

import (
	"encoding/json"
	"net/http"

	"github.com/shopspring/decimal"

	"github.com/montero-exchange/ledger/internal/oracle"
	"github.com/montero-exchange/ledger/internal/service"
)

// AdminHandler groups account administration and price overrides.
type AdminHandler struct {
	portfolios *service.PortfolioService
	prices     *oracle.StaticOracle
	priceCache *oracle.CachedOracle
}

func NewAdminHandler(portfolios *service.PortfolioService, prices *oracle.StaticOracle, priceCache *oracle.CachedOracle) *AdminHandler {
	return &AdminHandler{portfolios: portfolios, prices: prices, priceCache: priceCache}
}

// Freeze blocks all balance movement on a portfolio.
func (h *AdminHandler) Freeze(w http.ResponseWriter, r *http.Request) {
	actorID, _, err := requestActor(r)
	if err != nil {
		RespondError(w, r, http.StatusUnauthorized, "auth/invalid-context", err.Error())
		return
	}
	userID, err := pathUUID(r, "id")
	if err != nil {
		RespondError(w, r, http.StatusBadRequest, "request/invalid-id", "invalid user id")
		return
	}

	var req struct {
		Reason string `json:"reason"`
	}
	if r.ContentLength > 0 {
		if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
			RespondError(w, r, http.StatusBadRequest, "request/invalid-body", "invalid request body")
			return
		}
	}

	if err := h.portfolios.Freeze(r.Context(), userID, actorID, req.Reason); err != nil {
		RespondServiceError(w, r, err)
		return
	}
	RespondJSON(w, http.StatusOK, map[string]string{"status": "frozen"})
}

// Unfreeze restores balance movement on a portfolio.
func (h *AdminHandler) Unfreeze(w http.ResponseWriter, r *http.Request) {
	actorID, _, err := requestActor(r)
	if err != nil {
		RespondError(w, r, http.StatusUnauthorized, "auth/invalid-context", err.Error())
		return
	}
	userID, err := pathUUID(r, "id")
	if err != nil {
		RespondError(w, r, http.StatusBadRequest, "request/invalid-id", "invalid user id")
		return
	}

	if err := h.portfolios.Unfreeze(r.Context(), userID, actorID); err != nil {
		RespondServiceError(w, r, err)
		return
	}
	RespondJSON(w, http.StatusOK, map[string]string{"status": "active"})
}

// SetMerchant grants or revokes merchant standing.
func (h *AdminHandler) SetMerchant(w http.ResponseWriter, r *http.Request) {
	userID, err := pathUUID(r, "id")
	if err != nil {
		RespondError(w, r, http.StatusBadRequest, "request/invalid-id", "invalid user id")
		return
	}

	var req struct {
		IsMerchant bool `json:"is_merchant"`
	}
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		RespondError(w, r, http.StatusBadRequest, "request/invalid-body", "invalid request body")
		return
	}

	if err := h.portfolios.SetMerchant(r.Context(), userID, req.IsMerchant); err != nil {
		RespondServiceError(w, r, err)
		return
	}
	RespondJSON(w, http.StatusOK, map[string]interface{}{"is_merchant": req.IsMerchant})
}

// SetPrice overrides a symbol's quote and drops only that symbol's cache
// entry, leaving other cached quotes untouched.
func (h *AdminHandler) SetPrice(w http.ResponseWriter, r *http.Request) {
	var req struct {
		Symbol string          `json:"symbol"`
		Price  decimal.Decimal `json:"price"`
	}
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		RespondError(w, r, http.StatusBadRequest, "request/invalid-body", "invalid request body")
		return
	}
	if req.Symbol == "" || !req.Price.IsPositive() {
		RespondError(w, r, http.StatusBadRequest, "request/invalid-price", "symbol and a positive price are required")
		return
	}

	h.prices.SetPrice(req.Symbol, req.Price)
	if h.priceCache != nil {
		h.priceCache.Invalidate(r.Context(), req.Symbol)
	}
	RespondJSON(w, http.StatusOK, map[string]string{
		"symbol": req.Symbol,
		"price":  req.Price.String(),
	})
}
