package handler

import (
	"context"
	"encoding/json"
	"net/http"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"

	"github.com/montero-exchange/ledger/internal/models"
	"github.com/montero-exchange/ledger/internal/service"
)

type WithdrawalHandler struct {
	svc *service.WithdrawalService
}

func NewWithdrawalHandler(svc *service.WithdrawalService) *WithdrawalHandler {
	return &WithdrawalHandler{svc: svc}
}

// Transfer sends funds to another user's account number, settling
// immediately.
func (h *WithdrawalHandler) Transfer(w http.ResponseWriter, r *http.Request) {
	actorID, _, err := requestActor(r)
	if err != nil {
		RespondError(w, r, http.StatusUnauthorized, "auth/invalid-context", err.Error())
		return
	}

	var req struct {
		AccountNumber string          `json:"account_number"`
		Amount        decimal.Decimal `json:"amount"`
	}
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		RespondError(w, r, http.StatusBadRequest, "request/invalid-body", "invalid request body")
		return
	}
	if req.AccountNumber == "" {
		RespondError(w, r, http.StatusBadRequest, "request/missing-account-number", "account_number is required")
		return
	}

	wd, err := h.svc.Transfer(r.Context(), actorID, req.AccountNumber, req.Amount)
	if err != nil {
		RespondServiceError(w, r, err)
		return
	}
	RespondJSON(w, http.StatusCreated, wd)
}

// Create opens a withdrawal. With merchant_id set, the withdrawal is a
// merchant-paid cash payout with a deducted fee; otherwise the escrowed
// amount awaits admin approval to leave the platform.
func (h *WithdrawalHandler) Create(w http.ResponseWriter, r *http.Request) {
	actorID, _, err := requestActor(r)
	if err != nil {
		RespondError(w, r, http.StatusUnauthorized, "auth/invalid-context", err.Error())
		return
	}

	var req struct {
		Amount      decimal.Decimal `json:"amount"`
		Destination string          `json:"destination,omitempty"`
		MerchantID  string          `json:"merchant_id,omitempty"`
	}
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
		wd, err := h.svc.CreateMerchant(r.Context(), actorID, merchantID, req.Amount)
		if err != nil {
			RespondServiceError(w, r, err)
			return
		}
		RespondJSON(w, http.StatusCreated, wd)
		return
	}

	if req.Destination == "" {
		RespondError(w, r, http.StatusBadRequest, "request/missing-destination", "destination is required")
		return
	}
	wd, err := h.svc.CreateExternal(r.Context(), actorID, req.Amount, req.Destination)
	if err != nil {
		RespondServiceError(w, r, err)
		return
	}
	RespondJSON(w, http.StatusCreated, wd)
}

// Confirm acknowledges cash receipt on a merchant withdrawal, crediting the
// merchant from escrow.
func (h *WithdrawalHandler) Confirm(w http.ResponseWriter, r *http.Request) {
	h.userAction(w, r, h.svc.Confirm)
}

// Decline reports the merchant never paid; the escrow is refunded.
func (h *WithdrawalHandler) Decline(w http.ResponseWriter, r *http.Request) {
	h.userAction(w, r, h.svc.Decline)
}

// Approve completes a pending external withdrawal. Admin only.
func (h *WithdrawalHandler) Approve(w http.ResponseWriter, r *http.Request) {
	h.userAction(w, r, h.svc.Approve)
}

// Reject declines a pending withdrawal and refunds the escrow. Admin only.
func (h *WithdrawalHandler) Reject(w http.ResponseWriter, r *http.Request) {
	h.userAction(w, r, h.svc.Reject)
}

// ForceComplete settles a stuck merchant withdrawal without user
// confirmation. Admin only.
func (h *WithdrawalHandler) ForceComplete(w http.ResponseWriter, r *http.Request) {
	h.userAction(w, r, h.svc.ForceComplete)
}

func (h *WithdrawalHandler) userAction(w http.ResponseWriter, r *http.Request, fn func(ctx context.Context, withdrawalID, actorID uuid.UUID) (*models.Withdrawal, error)) {
	actorID, _, err := requestActor(r)
	if err != nil {
		RespondError(w, r, http.StatusUnauthorized, "auth/invalid-context", err.Error())
		return
	}
	withdrawalID, err := pathUUID(r, "id")
	if err != nil {
		RespondError(w, r, http.StatusBadRequest, "request/invalid-id", "invalid withdrawal id")
		return
	}

	wd, err := fn(r.Context(), withdrawalID, actorID)
	if err != nil {
		RespondServiceError(w, r, err)
		return
	}
	RespondJSON(w, http.StatusOK, wd)
}

// Get returns a single withdrawal visible to its owner, its merchant, or an
// admin.
func (h *WithdrawalHandler) Get(w http.ResponseWriter, r *http.Request) {
	actorID, isAdmin, err := requestActor(r)
	if err != nil {
		RespondError(w, r, http.StatusUnauthorized, "auth/invalid-context", err.Error())
		return
	}
	withdrawalID, err := pathUUID(r, "id")
	if err != nil {
		RespondError(w, r, http.StatusBadRequest, "request/invalid-id", "invalid withdrawal id")
		return
	}

	wd, err := h.svc.Get(r.Context(), withdrawalID)
	if err != nil {
		RespondServiceError(w, r, err)
		return
	}
	if !isAdmin && wd.UserID != actorID && (wd.MerchantID == nil || *wd.MerchantID != actorID) {
		RespondError(w, r, http.StatusNotFound, "resource/not-found", "resource not found")
		return
	}
	RespondJSON(w, http.StatusOK, wd)
}

// List returns the authenticated user's withdrawals, newest first.
func (h *WithdrawalHandler) List(w http.ResponseWriter, r *http.Request) {
	actorID, _, err := requestActor(r)
	if err != nil {
		RespondError(w, r, http.StatusUnauthorized, "auth/invalid-context", err.Error())
		return
	}
	limit, offset := pagination(r)

	withdrawals, err := h.svc.ListForUser(r.Context(), actorID, limit, offset)
	if err != nil {
		RespondServiceError(w, r, err)
		return
	}
	RespondJSON(w, http.StatusOK, map[string]interface{}{"withdrawals": withdrawals})
}
