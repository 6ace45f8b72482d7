package service

import (
	"context"
	"fmt"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/require"

	"github.com/montero-exchange/ledger/internal/models"
	"github.com/montero-exchange/ledger/internal/notify"
	"github.com/montero-exchange/ledger/internal/oracle"
	"github.com/montero-exchange/ledger/internal/repository"
)

// testEnv wires the full service stack onto the in-memory store with a
// static price table: USDT is the settlement asset at 1, BTC quotes at 50.
type testEnv struct {
	store       *repository.MemoryStore
	prices      *oracle.StaticOracle
	portfolios  *PortfolioService
	deposits    *DepositService
	withdrawals *WithdrawalService
	swaps       *SwapService
}

func newTestEnv(t *testing.T) *testEnv {
	t.Helper()

	store := repository.NewMemoryStore()
	audit := NewAuditService(store)
	notifier := notify.NewStoreNotifier(store)
	referral := NewReferralService(decimal.NewFromFloat(0.15))

	prices := oracle.NewStaticOracle()
	prices.SetPrice("USDT", decimal.NewFromInt(1))
	prices.SetPrice("BTC", decimal.NewFromInt(50))

	return &testEnv{
		store:       store,
		prices:      prices,
		portfolios:  NewPortfolioService(store, audit),
		deposits:    NewDepositService(store, audit, notifier, referral, decimal.NewFromFloat(0.035)),
		withdrawals: NewWithdrawalService(store, audit, notifier, decimal.NewFromFloat(0.05)),
		swaps:       NewSwapService(store, audit, notifier, prices, "USDT", time.Minute, 24*time.Hour),
	}
}

var portfolioSeq int

// seedPortfolio creates a funded portfolio directly in the store, bypassing
// signup, so tests control the starting balance.
func (e *testEnv) seedPortfolio(t *testing.T, balance int64, isMerchant bool) *models.Portfolio {
	t.Helper()
	portfolioSeq++
	p := &models.Portfolio{
		UserID:        uuid.New(),
		BalanceUSD:    decimal.NewFromInt(balance),
		IsMerchant:    isMerchant,
		ReferralCode:  fmt.Sprintf("SEED%04d", portfolioSeq),
		AccountNumber: fmt.Sprintf("80000000%04d", portfolioSeq),
	}
	require.NoError(t, e.store.Queries().CreatePortfolio(context.Background(), p))
	return p
}

func (e *testEnv) balance(t *testing.T, userID uuid.UUID) decimal.Decimal {
	t.Helper()
	p, err := e.store.Queries().GetPortfolio(context.Background(), userID)
	require.NoError(t, err)
	return p.BalanceUSD
}

func (e *testEnv) notifications(t *testing.T, userID uuid.UUID) []models.Notification {
	t.Helper()
	ns, err := e.store.Queries().ListNotifications(context.Background(), userID, 50, 0)
	require.NoError(t, err)
	return ns
}
