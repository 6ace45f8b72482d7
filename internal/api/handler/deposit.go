package handler

import (
	"encoding/json"
	"net/http"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"

	"github.com/montero-exchange/ledger/internal/service"
)

type DepositHandler struct {
	svc *service.DepositService
}

func NewDepositHandler(svc *service.DepositService) *DepositHandler {
	return &DepositHandler{svc: svc}
}

type createDepositRequest struct {
	Amount     decimal.Decimal `json:"amount"`
	MerchantID string          `json:"merchant_id,omitempty"`
	Reference  string          `json:"reference,omitempty"`
}

// Create records a deposit request. With merchant_id set, the deposit is
// routed through that merchant and quoted an add-on fee; otherwise it awaits
// admin approval.
func (h *DepositHandler) Create(w http.ResponseWriter, r *http.Request) {
	actorID, _, err := requestActor(r)
	if err != nil {
		RespondError(w, r, http.StatusUnauthorized, "auth/invalid-context", err.Error())
		return
	}

	var req createDepositRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		RespondError(w, r, http.StatusBadRequest, "request/invalid-body", "invalid request body")
		return
	}

	if req.MerchantID != "" {
		merchantID, err := uuid.Parse(req.MerchantID)
		if err != nil {
			RespondError(w, r, http.StatusBadRequest, "request/invalid-merchant-id", "invalid merchant_id")
			return
		}
		d, err := h.svc.CreateMerchant(r.Context(), actorID, merchantID, req.Amount, req.Reference)
		if err != nil {
			RespondServiceError(w, r, err)
			return
		}
		RespondJSON(w, http.StatusCreated, d)
		return
	}

	d, err := h.svc.Create(r.Context(), actorID, req.Amount, req.Reference)
	if err != nil {
		RespondServiceError(w, r, err)
		return
	}
	RespondJSON(w, http.StatusCreated, d)
}

// Approve settles a pending deposit. Merchants approve their own deposits;
// admins approve direct ones.
func (h *DepositHandler) Approve(w http.ResponseWriter, r *http.Request) {
	actorID, isAdmin, err := requestActor(r)
	if err != nil {
		RespondError(w, r, http.StatusUnauthorized, "auth/invalid-context", err.Error())
		return
	}
	depositID, err := pathUUID(r, "id")
	if err != nil {
		RespondError(w, r, http.StatusBadRequest, "request/invalid-id", "invalid deposit id")
		return
	}

	d, err := h.svc.Approve(r.Context(), depositID, actorID, isAdmin)
	if err != nil {
		RespondServiceError(w, r, err)
		return
	}
	RespondJSON(w, http.StatusOK, d)
}

// Reject declines a pending deposit.
func (h *DepositHandler) Reject(w http.ResponseWriter, r *http.Request) {
	actorID, isAdmin, err := requestActor(r)
	if err != nil {
		RespondError(w, r, http.StatusUnauthorized, "auth/invalid-context", err.Error())
		return
	}
	depositID, err := pathUUID(r, "id")
	if err != nil {
		RespondError(w, r, http.StatusBadRequest, "request/invalid-id", "invalid deposit id")
		return
	}

	d, err := h.svc.Reject(r.Context(), depositID, actorID, isAdmin)
	if err != nil {
		RespondServiceError(w, r, err)
		return
	}
	RespondJSON(w, http.StatusOK, d)
}

// Get returns a single deposit visible to its owner, its merchant, or an admin.
func (h *DepositHandler) Get(w http.ResponseWriter, r *http.Request) {
	actorID, isAdmin, err := requestActor(r)
	if err != nil {
		RespondError(w, r, http.StatusUnauthorized, "auth/invalid-context", err.Error())
		return
	}
	depositID, err := pathUUID(r, "id")
	if err != nil {
		RespondError(w, r, http.StatusBadRequest, "request/invalid-id", "invalid deposit id")
		return
	}

	d, err := h.svc.Get(r.Context(), depositID)
	if err != nil {
		RespondServiceError(w, r, err)
		return
	}
	if !isAdmin && d.UserID != actorID && (d.MerchantID == nil || *d.MerchantID != actorID) {
		RespondError(w, r, http.StatusNotFound, "resource/not-found", "resource not found")
		return
	}
	RespondJSON(w, http.StatusOK, d)
}

// List returns the authenticated user's deposits, newest first.
func (h *DepositHandler) List(w http.ResponseWriter, r *http.Request) {
	actorID, _, err := requestActor(r)
	if err != nil {
		RespondError(w, r, http.StatusUnauthorized, "auth/invalid-context", err.Error())
		return
	}
	limit, offset := pagination(r)

	deposits, err := h.svc.ListForUser(r.Context(), actorID, limit, offset)
	if err != nil {
		RespondServiceError(w, r, err)
		return
	}
	RespondJSON(w, http.StatusOK, map[string]interface{}{"deposits": deposits})
}
