package models

import (
	"encoding/json"
	"errors"
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"

	"github.com/montero-exchange/ledger/internal/domain"
)

var (
	ErrInsufficientFunds = errors.New("insufficient funds")
	ErrAccountFrozen     = errors.New("account is frozen")
	ErrNotFound          = errors.New("record not found")
)

// Portfolio is the per-user balance record: the single source of truth for
// spendable funds. Mutated only through the settlement services, under a
// per-user lock.
type Portfolio struct {
	UserID        uuid.UUID       `json:"user_id"`
	BalanceUSD    decimal.Decimal `json:"balance_usd"`
	IsMerchant    bool            `json:"is_merchant"`
	IsFrozen      bool            `json:"is_frozen"`
	FrozenReason  string          `json:"frozen_reason,omitempty"`
	FrozenAt      *time.Time      `json:"frozen_at,omitempty"`
	FrozenBy      *uuid.UUID      `json:"frozen_by,omitempty"`
	ReferralCode  string          `json:"referral_code"`
	AccountNumber string          `json:"account_number"`
	ReferredBy    *uuid.UUID      `json:"referred_by,omitempty"`
	CreatedAt     time.Time       `json:"created_at"`
}

// Deposit moves PENDING -> APPROVED | REJECTED. Merchant-mediated deposits
// carry a counterparty and a fee quote in Notes; Amount is always the base
// amount credited to the depositor on approval.
type Deposit struct {
	ID                     uuid.UUID       `json:"id"`
	UserID                 uuid.UUID       `json:"user_id"`
	Amount                 decimal.Decimal `json:"amount"`
	Method                 string          `json:"method"`
	Status                 string          `json:"status"`
	MerchantID             *uuid.UUID      `json:"merchant_id,omitempty"`
	MerchantActionRequired bool            `json:"merchant_action_required"`
	Notes                  []byte          `json:"-"`
	Reference              string          `json:"reference,omitempty"`
	CreatedAt              time.Time       `json:"created_at"`
	CompletedAt            *time.Time      `json:"completed_at,omitempty"`
}

// Withdrawal moves PENDING -> COMPLETED | REJECTED. Amount is the gross
// amount escrowed from the sender; P2P flows keep the fee quote in Notes and
// gate completion behind user confirmation.
type Withdrawal struct {
	ID                   uuid.UUID       `json:"id"`
	UserID               uuid.UUID       `json:"user_id"`
	Amount               decimal.Decimal `json:"amount"`
	Method               string          `json:"method"`
	Status               string          `json:"status"`
	Destination          string          `json:"destination,omitempty"`
	MerchantID           *uuid.UUID      `json:"merchant_id,omitempty"`
	ConfirmationRequired bool            `json:"user_confirmation_required"`
	Notes                []byte          `json:"-"`
	CreatedAt            time.Time       `json:"created_at"`
	ConfirmedAt          *time.Time      `json:"confirmed_at,omitempty"`
}

// SwapRequest is a time-delayed conversion through a destination asset and
// back to the settlement asset. OriginalToPrice is captured at creation and
// never rewritten; it is the anchor profit/loss is measured against.
type SwapRequest struct {
	ID              uuid.UUID       `json:"id"`
	UserID          uuid.UUID       `json:"user_id"`
	FromAsset       string          `json:"from_asset"`
	ToAsset         string          `json:"to_asset"`
	BackAsset       string          `json:"back_asset"`
	Amount          decimal.Decimal `json:"amount"`
	BackAmount      decimal.Decimal `json:"back_amount"`
	OriginalToPrice decimal.Decimal `json:"original_to_asset_price"`
	Status          string          `json:"status"`
	SettleAt        time.Time       `json:"settle_at"`
	CreatedAt       time.Time       `json:"created_at"`
	CompletedAt     *time.Time      `json:"completed_at,omitempty"`
}

// ReferralEdge links a referred user to their referrer. HasFundedWallet
// flips false->true exactly once, when the first deposit is approved, and is
// never reset.
type ReferralEdge struct {
	ReferrerID      uuid.UUID `json:"referrer_id"`
	ReferredUserID  uuid.UUID `json:"referred_user_id"`
	HasFundedWallet bool      `json:"has_funded_wallet"`
	CreatedAt       time.Time `json:"created_at"`
}

// TradeLeg is an audit row written at swap settlement; four legs per swap.
type TradeLeg struct {
	ID        uuid.UUID       `json:"id"`
	UserID    uuid.UUID       `json:"user_id"`
	SwapID    uuid.UUID       `json:"swap_id"`
	Asset     string          `json:"asset"`
	Side      string          `json:"side"`
	Quantity  decimal.Decimal `json:"quantity"`
	Price     decimal.Decimal `json:"price"`
	CreatedAt time.Time       `json:"created_at"`
}

// Notification is a stored inbox row. Delivery is best-effort and never
// part of a settlement transaction.
type Notification struct {
	ID        uuid.UUID  `json:"id"`
	UserID    uuid.UUID  `json:"user_id"`
	Title     string     `json:"title"`
	Message   string     `json:"message"`
	IsRead    bool       `json:"is_read"`
	TxKind    string     `json:"tx_kind,omitempty"`
	TxID      *uuid.UUID `json:"tx_id,omitempty"`
	CreatedAt time.Time  `json:"created_at"`
}

// AdminLog records administrative actions against transactions and accounts.
type AdminLog struct {
	ID         uuid.UUID `json:"id"`
	ActorID    uuid.UUID `json:"actor_id"`
	Action     string    `json:"action"`
	TxKind     string    `json:"transaction_type"`
	TxID       uuid.UUID `json:"transaction_id"`
	AffectedID uuid.UUID `json:"affected_user_id"`
	CreatedAt  time.Time `json:"created_at"`
}

// EncodeFeeQuote serializes a fee quote into a transaction's Notes field.
func EncodeFeeQuote(q domain.FeeQuote) ([]byte, error) {
	return json.Marshal(q)
}

// DecodeFeeQuote reads the quote attached at creation. A record without a
// quote (direct deposits, internal transfers) returns ok=false.
func DecodeFeeQuote(notes []byte) (domain.FeeQuote, bool, error) {
	if len(notes) == 0 {
		return domain.FeeQuote{}, false, nil
	}
	var q domain.FeeQuote
	if err := json.Unmarshal(notes, &q); err != nil {
		return domain.FeeQuote{}, false, err
	}
	return q, true, nil
}
