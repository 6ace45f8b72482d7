package worker

import (
	"context"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/montero-exchange/ledger/internal/domain"
	"github.com/montero-exchange/ledger/internal/models"
	"github.com/montero-exchange/ledger/internal/notify"
	"github.com/montero-exchange/ledger/internal/oracle"
	"github.com/montero-exchange/ledger/internal/repository"
	"github.com/montero-exchange/ledger/internal/service"
)

func newSweepFixture(t *testing.T) (*repository.MemoryStore, *service.SwapService, uuid.UUID, uuid.UUID) {
	t.Helper()
	ctx := context.Background()

	store := repository.NewMemoryStore()
	prices := oracle.NewStaticOracle()
	prices.SetPrice("USDT", decimal.NewFromInt(1))
	prices.SetPrice("BTC", decimal.NewFromInt(50))

	svc := service.NewSwapService(store, service.NewAuditService(store), notify.NoopNotifier{}, prices, "USDT", time.Minute, 24*time.Hour)

	userID := uuid.New()
	require.NoError(t, store.Queries().CreatePortfolio(ctx, &models.Portfolio{
		UserID:        userID,
		BalanceUSD:    decimal.Zero,
		ReferralCode:  "WORKER01",
		AccountNumber: "700000000001",
	}))

	sw := &models.SwapRequest{
		ID:              uuid.New(),
		UserID:          userID,
		FromAsset:       "USDT",
		ToAsset:         "BTC",
		BackAsset:       "USDT",
		Amount:          decimal.NewFromInt(100),
		OriginalToPrice: decimal.NewFromInt(50),
		Status:          domain.SwapStatusPending,
		SettleAt:        time.Now().Add(-time.Second),
	}
	require.NoError(t, store.Queries().CreateSwap(ctx, sw))

	return store, svc, userID, sw.ID
}

func TestSwapWorkerProcessOnce(t *testing.T) {
	store, svc, userID, swapID := newSweepFixture(t)
	ctx := context.Background()

	w := NewSwapWorker(svc)
	w.ProcessOnce(ctx)

	sw, err := store.Queries().GetSwap(ctx, swapID)
	require.NoError(t, err)
	assert.Equal(t, domain.SwapStatusCompleted, sw.Status)

	p, err := store.Queries().GetPortfolio(ctx, userID)
	require.NoError(t, err)
	assert.Equal(t, "100", p.BalanceUSD.String())
}

func TestSwapWorkerRunAndStop(t *testing.T) {
	store, svc, _, swapID := newSweepFixture(t)
	ctx := context.Background()

	w := NewSwapWorker(svc).WithInterval(10 * time.Millisecond)
	stop := w.Run(ctx)

	// The initial catch-up sweep settles the planted swap.
	require.Eventually(t, func() bool {
		sw, err := store.Queries().GetSwap(ctx, swapID)
		return err == nil && sw.Status == domain.SwapStatusCompleted
	}, time.Second, 5*time.Millisecond)

	stop()
	stop() // stopping twice is safe
}
