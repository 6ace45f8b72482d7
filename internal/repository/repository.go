package repository

import (
	"context"
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"

	"github.com/montero-exchange/ledger/internal/models"
)

// Queries is the flat query set shared by the Postgres and in-memory
// implementations. Methods named *ForUpdate acquire a row lock and are only
// valid inside RunInTx; LockPortfolios locks balance rows in ascending
// user-ID order so that two settlements touching the same pair of accounts
// can never deadlock.
type Queries interface {
	// Portfolios.
	CreatePortfolio(ctx context.Context, p *models.Portfolio) error
	GetPortfolio(ctx context.Context, userID uuid.UUID) (*models.Portfolio, error)
	GetPortfolioByAccountNumber(ctx context.Context, accountNumber string) (*models.Portfolio, error)
	GetPortfolioByReferralCode(ctx context.Context, code string) (*models.Portfolio, error)
	LockPortfolios(ctx context.Context, userIDs ...uuid.UUID) (map[uuid.UUID]*models.Portfolio, error)
	CreditPortfolio(ctx context.Context, userID uuid.UUID, amount decimal.Decimal) error
	DebitPortfolio(ctx context.Context, userID uuid.UUID, amount decimal.Decimal) error
	SetPortfolioFrozen(ctx context.Context, userID uuid.UUID, frozen bool, reason string, actorID *uuid.UUID) (int64, error)
	SetPortfolioMerchant(ctx context.Context, userID uuid.UUID, isMerchant bool) (int64, error)

	// Deposits.
	CreateDeposit(ctx context.Context, d *models.Deposit) error
	GetDeposit(ctx context.Context, id uuid.UUID) (*models.Deposit, error)
	GetDepositForUpdate(ctx context.Context, id uuid.UUID) (*models.Deposit, error)
	UpdateDepositStatus(ctx context.Context, id uuid.UUID, status string, merchantActionRequired bool, completedAt *time.Time) (int64, error)
	ListUserDeposits(ctx context.Context, userID uuid.UUID, limit, offset int32) ([]models.Deposit, error)

	// Withdrawals.
	CreateWithdrawal(ctx context.Context, w *models.Withdrawal) error
	GetWithdrawal(ctx context.Context, id uuid.UUID) (*models.Withdrawal, error)
	GetWithdrawalForUpdate(ctx context.Context, id uuid.UUID) (*models.Withdrawal, error)
	UpdateWithdrawalStatus(ctx context.Context, id uuid.UUID, status string, confirmationRequired bool, confirmedAt *time.Time) (int64, error)
	ListUserWithdrawals(ctx context.Context, userID uuid.UUID, limit, offset int32) ([]models.Withdrawal, error)

	// Swaps.
	CreateSwap(ctx context.Context, s *models.SwapRequest) error
	GetSwap(ctx context.Context, id uuid.UUID) (*models.SwapRequest, error)
	GetSwapForUpdate(ctx context.Context, id uuid.UUID) (*models.SwapRequest, error)
	UpdateSwapStatus(ctx context.Context, id uuid.UUID, status string) (int64, error)
	CompleteSwap(ctx context.Context, id uuid.UUID, backAmount decimal.Decimal, completedAt time.Time) (int64, error)
	ListDueSwaps(ctx context.Context, cutoff time.Time) ([]models.SwapRequest, error)
	ListUserSwaps(ctx context.Context, userID uuid.UUID, limit, offset int32) ([]models.SwapRequest, error)

	// Referral edges.
	CreateReferralEdge(ctx context.Context, e *models.ReferralEdge) error
	GetReferralEdgeForUpdate(ctx context.Context, referredUserID uuid.UUID) (*models.ReferralEdge, error)
	MarkReferralFunded(ctx context.Context, referredUserID uuid.UUID) (int64, error)

	// Swap trade legs.
	InsertTradeLegs(ctx context.Context, legs []models.TradeLeg) error
	ListSwapTradeLegs(ctx context.Context, swapID uuid.UUID) ([]models.TradeLeg, error)

	// Notifications.
	InsertNotification(ctx context.Context, n *models.Notification) error
	ListNotifications(ctx context.Context, userID uuid.UUID, limit, offset int32) ([]models.Notification, error)
	CountUnreadNotifications(ctx context.Context, userID uuid.UUID) (int64, error)
	MarkNotificationRead(ctx context.Context, id, userID uuid.UUID) (int64, error)

	// Admin log.
	InsertAdminLog(ctx context.Context, l *models.AdminLog) error
}

// Store provides access to queries and transaction scoping. Every
// settlement runs inside RunInTx so balance mutation and status transition
// commit or roll back as one unit.
type Store interface {
	Queries() Queries
	RunInTx(ctx context.Context, fn func(q Queries) error) error
}
