package repository

import (
	"context"
	"fmt"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/montero-exchange/ledger/internal/domain"
	"github.com/montero-exchange/ledger/internal/models"
)

var seq int

func newPortfolio(balance int64) *models.Portfolio {
	seq++
	return &models.Portfolio{
		UserID:        uuid.New(),
		BalanceUSD:    decimal.NewFromInt(balance),
		ReferralCode:  fmt.Sprintf("CODE%04d", seq),
		AccountNumber: fmt.Sprintf("90000000%04d", seq),
	}
}

func TestMemoryStoreTxRollback(t *testing.T) {
	store := NewMemoryStore()
	ctx := context.Background()

	p := newPortfolio(100)
	require.NoError(t, store.Queries().CreatePortfolio(ctx, p))

	err := store.RunInTx(ctx, func(q Queries) error {
		if err := q.DebitPortfolio(ctx, p.UserID, decimal.NewFromInt(40)); err != nil {
			return err
		}
		return fmt.Errorf("boom")
	})
	require.Error(t, err)

	got, err := store.Queries().GetPortfolio(ctx, p.UserID)
	require.NoError(t, err)
	assert.Equal(t, "100", got.BalanceUSD.String(), "failed transaction must not move funds")
}

func TestMemoryStoreDebitGuards(t *testing.T) {
	store := NewMemoryStore()
	ctx := context.Background()

	p := newPortfolio(50)
	require.NoError(t, store.Queries().CreatePortfolio(ctx, p))

	err := store.Queries().DebitPortfolio(ctx, uuid.New(), decimal.NewFromInt(1))
	assert.ErrorIs(t, err, models.ErrNotFound)

	err = store.Queries().DebitPortfolio(ctx, p.UserID, decimal.NewFromInt(51))
	assert.ErrorIs(t, err, models.ErrInsufficientFunds)

	_, err = store.Queries().SetPortfolioFrozen(ctx, p.UserID, true, "compliance hold", nil)
	require.NoError(t, err)

	err = store.Queries().DebitPortfolio(ctx, p.UserID, decimal.NewFromInt(1))
	assert.ErrorIs(t, err, models.ErrAccountFrozen)
	err = store.Queries().CreditPortfolio(ctx, p.UserID, decimal.NewFromInt(1))
	assert.ErrorIs(t, err, models.ErrAccountFrozen)
}

func TestMemoryStoreUniqueAccountAndCode(t *testing.T) {
	store := NewMemoryStore()
	ctx := context.Background()

	p := newPortfolio(0)
	require.NoError(t, store.Queries().CreatePortfolio(ctx, p))

	dup := newPortfolio(0)
	dup.AccountNumber = p.AccountNumber
	assert.Error(t, store.Queries().CreatePortfolio(ctx, dup))

	dup = newPortfolio(0)
	dup.ReferralCode = p.ReferralCode
	assert.Error(t, store.Queries().CreatePortfolio(ctx, dup))
}

func TestMemoryStoreMarkReferralFundedOnce(t *testing.T) {
	store := NewMemoryStore()
	ctx := context.Background()

	referrer, referred := uuid.New(), uuid.New()
	require.NoError(t, store.Queries().CreateReferralEdge(ctx, &models.ReferralEdge{
		ReferrerID:     referrer,
		ReferredUserID: referred,
	}))

	rows, err := store.Queries().MarkReferralFunded(ctx, referred)
	require.NoError(t, err)
	assert.Equal(t, int64(1), rows)

	rows, err = store.Queries().MarkReferralFunded(ctx, referred)
	require.NoError(t, err)
	assert.Equal(t, int64(0), rows, "funding flag flips exactly once")

	rows, err = store.Queries().MarkReferralFunded(ctx, uuid.New())
	require.NoError(t, err)
	assert.Equal(t, int64(0), rows)
}

func TestMemoryStoreListDueSwaps(t *testing.T) {
	store := NewMemoryStore()
	ctx := context.Background()
	now := time.Now()
	userID := uuid.New()

	mkSwap := func(status string, settleAt time.Time) *models.SwapRequest {
		sw := &models.SwapRequest{
			ID:              uuid.New(),
			UserID:          userID,
			FromAsset:       "USDT",
			ToAsset:         "BTC",
			BackAsset:       "USDT",
			Amount:          decimal.NewFromInt(10),
			OriginalToPrice: decimal.NewFromInt(50),
			Status:          status,
			SettleAt:        settleAt,
		}
		require.NoError(t, store.Queries().CreateSwap(ctx, sw))
		return sw
	}

	duePending := mkSwap(domain.SwapStatusPending, now.Add(-2*time.Hour))
	dueApproved := mkSwap(domain.SwapStatusApproved, now.Add(-time.Hour))
	mkSwap(domain.SwapStatusPending, now.Add(time.Hour))
	mkSwap(domain.SwapStatusCompleted, now.Add(-time.Hour))
	mkSwap(domain.SwapStatusCancelled, now.Add(-time.Hour))

	due, err := store.Queries().ListDueSwaps(ctx, now)
	require.NoError(t, err)
	require.Len(t, due, 2)

	// Oldest due first.
	assert.Equal(t, duePending.ID, due[0].ID)
	assert.Equal(t, dueApproved.ID, due[1].ID)
}

func TestMemoryStoreMarkNotificationRead(t *testing.T) {
	store := NewMemoryStore()
	ctx := context.Background()
	userID := uuid.New()

	n := &models.Notification{UserID: userID, Title: "hello", Message: "world"}
	require.NoError(t, store.Queries().InsertNotification(ctx, n))

	rows, err := store.Queries().MarkNotificationRead(ctx, n.ID, uuid.New())
	require.NoError(t, err)
	assert.Equal(t, int64(0), rows, "another user's inbox row must not be touched")

	rows, err = store.Queries().MarkNotificationRead(ctx, n.ID, userID)
	require.NoError(t, err)
	assert.Equal(t, int64(1), rows)

	unread, err := store.Queries().CountUnreadNotifications(ctx, userID)
	require.NoError(t, err)
	assert.Equal(t, int64(0), unread)
}
