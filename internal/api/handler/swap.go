package handler

import (
	"encoding/json"
	"net/http"
	"time"

	"github.com/shopspring/decimal"

	"github.com/montero-exchange/ledger/internal/service"
)

type SwapHandler struct {
	svc *service.SwapService
}

func NewSwapHandler(svc *service.SwapService) *SwapHandler {
	return &SwapHandler{svc: svc}
}

// Create escrows funds into a time-delayed swap.
func (h *SwapHandler) Create(w http.ResponseWriter, r *http.Request) {
	actorID, _, err := requestActor(r)
	if err != nil {
		RespondError(w, r, http.StatusUnauthorized, "auth/invalid-context", err.Error())
		return
	}

	var req struct {
		ToAsset  string          `json:"to_asset"`
		Amount   decimal.Decimal `json:"amount"`
		SettleAt time.Time       `json:"settle_at"`
	}
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		RespondError(w, r, http.StatusBadRequest, "request/invalid-body", "invalid request body")
		return
	}
	if req.ToAsset == "" {
		RespondError(w, r, http.StatusBadRequest, "request/missing-to-asset", "to_asset is required")
		return
	}

	sw, err := h.svc.Create(r.Context(), actorID, req.ToAsset, req.Amount, req.SettleAt)
	if err != nil {
		RespondServiceError(w, r, err)
		return
	}
	RespondJSON(w, http.StatusCreated, sw)
}

// Cancel refunds a swap that has not started settling.
func (h *SwapHandler) Cancel(w http.ResponseWriter, r *http.Request) {
	actorID, isAdmin, err := requestActor(r)
	if err != nil {
		RespondError(w, r, http.StatusUnauthorized, "auth/invalid-context", err.Error())
		return
	}
	swapID, err := pathUUID(r, "id")
	if err != nil {
		RespondError(w, r, http.StatusBadRequest, "request/invalid-id", "invalid swap id")
		return
	}

	sw, err := h.svc.Cancel(r.Context(), swapID, actorID, isAdmin)
	if err != nil {
		RespondServiceError(w, r, err)
		return
	}
	RespondJSON(w, http.StatusOK, sw)
}

// Approve marks a pending swap reviewed. Admin only.
func (h *SwapHandler) Approve(w http.ResponseWriter, r *http.Request) {
	actorID, _, err := requestActor(r)
	if err != nil {
		RespondError(w, r, http.StatusUnauthorized, "auth/invalid-context", err.Error())
		return
	}
	swapID, err := pathUUID(r, "id")
	if err != nil {
		RespondError(w, r, http.StatusBadRequest, "request/invalid-id", "invalid swap id")
		return
	}

	sw, err := h.svc.Approve(r.Context(), swapID, actorID)
	if err != nil {
		RespondServiceError(w, r, err)
		return
	}
	RespondJSON(w, http.StatusOK, sw)
}

// Settle force-settles a swap ahead of schedule. Admin only.
func (h *SwapHandler) Settle(w http.ResponseWriter, r *http.Request) {
	actorID, _, err := requestActor(r)
	if err != nil {
		RespondError(w, r, http.StatusUnauthorized, "auth/invalid-context", err.Error())
		return
	}
	swapID, err := pathUUID(r, "id")
	if err != nil {
		RespondError(w, r, http.StatusBadRequest, "request/invalid-id", "invalid swap id")
		return
	}

	sw, err := h.svc.Settle(r.Context(), swapID, &actorID, true)
	if err != nil {
		RespondServiceError(w, r, err)
		return
	}
	RespondJSON(w, http.StatusOK, sw)
}

// Get returns a single swap visible to its owner or an admin.
func (h *SwapHandler) Get(w http.ResponseWriter, r *http.Request) {
	actorID, isAdmin, err := requestActor(r)
	if err != nil {
		RespondError(w, r, http.StatusUnauthorized, "auth/invalid-context", err.Error())
		return
	}
	swapID, err := pathUUID(r, "id")
	if err != nil {
		RespondError(w, r, http.StatusBadRequest, "request/invalid-id", "invalid swap id")
		return
	}

	sw, err := h.svc.Get(r.Context(), swapID)
	if err != nil {
		RespondServiceError(w, r, err)
		return
	}
	if !isAdmin && sw.UserID != actorID {
		RespondError(w, r, http.StatusNotFound, "resource/not-found", "resource not found")
		return
	}
	RespondJSON(w, http.StatusOK, sw)
}

// Trades returns the trade legs recorded when a swap settled.
func (h *SwapHandler) Trades(w http.ResponseWriter, r *http.Request) {
	actorID, isAdmin, err := requestActor(r)
	if err != nil {
		RespondError(w, r, http.StatusUnauthorized, "auth/invalid-context", err.Error())
		return
	}
	swapID, err := pathUUID(r, "id")
	if err != nil {
		RespondError(w, r, http.StatusBadRequest, "request/invalid-id", "invalid swap id")
		return
	}

	sw, err := h.svc.Get(r.Context(), swapID)
	if err != nil {
		RespondServiceError(w, r, err)
		return
	}
	if !isAdmin && sw.UserID != actorID {
		RespondError(w, r, http.StatusNotFound, "resource/not-found", "resource not found")
		return
	}

	legs, err := h.svc.TradeLegs(r.Context(), swapID)
	if err != nil {
		RespondServiceError(w, r, err)
		return
	}
	RespondJSON(w, http.StatusOK, map[string]interface{}{"trades": legs})
}

// List returns the authenticated user's swaps, newest first.
func (h *SwapHandler) List(w http.ResponseWriter, r *http.Request) {
	actorID, _, err := requestActor(r)
	if err != nil {
		RespondError(w, r, http.StatusUnauthorized, "auth/invalid-context", err.Error())
		return
	}
	limit, offset := pagination(r)

	swaps, err := h.svc.ListForUser(r.Context(), actorID, limit, offset)
	if err != nil {
		RespondServiceError(w, r, err)
		return
	}
	RespondJSON(w, http.StatusOK, map[string]interface{}{"swaps": swaps})
}
