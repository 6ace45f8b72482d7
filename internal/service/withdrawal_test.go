package service

import (
	"context"
	"sync"
	"testing"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/montero-exchange/ledger/internal/domain"
	"github.com/montero-exchange/ledger/internal/models"
)

func TestInternalTransferSettlesImmediately(t *testing.T) {
	env := newTestEnv(t)
	ctx := context.Background()
	sender := env.seedPortfolio(t, 100, false)
	recipient := env.seedPortfolio(t, 5, false)

	w, err := env.withdrawals.Transfer(ctx, sender.UserID, recipient.AccountNumber, decimal.NewFromInt(40))
	require.NoError(t, err)
	assert.Equal(t, domain.WithdrawalStatusCompleted, w.Status)
	require.NotNil(t, w.ConfirmedAt)

	assert.Equal(t, "60", env.balance(t, sender.UserID).String())
	assert.Equal(t, "45", env.balance(t, recipient.UserID).String())

	assert.NotEmpty(t, env.notifications(t, sender.UserID))
	assert.NotEmpty(t, env.notifications(t, recipient.UserID))
}

func TestInternalTransferAtomicOnFailure(t *testing.T) {
	env := newTestEnv(t)
	ctx := context.Background()
	sender := env.seedPortfolio(t, 10, false)
	recipient := env.seedPortfolio(t, 0, false)

	_, err := env.withdrawals.Transfer(ctx, sender.UserID, recipient.AccountNumber, decimal.NewFromInt(50))
	assert.ErrorIs(t, err, models.ErrInsufficientFunds)

	assert.Equal(t, "10", env.balance(t, sender.UserID).String())
	assert.Equal(t, "0", env.balance(t, recipient.UserID).String())

	rows, err := env.withdrawals.ListForUser(ctx, sender.UserID, 10, 0)
	require.NoError(t, err)
	assert.Empty(t, rows, "no withdrawal row survives a failed transfer")
}

func TestInternalTransferGuards(t *testing.T) {
	env := newTestEnv(t)
	ctx := context.Background()
	sender := env.seedPortfolio(t, 100, false)

	_, err := env.withdrawals.Transfer(ctx, sender.UserID, sender.AccountNumber, decimal.NewFromInt(10))
	assert.ErrorIs(t, err, ErrSelfTransfer)

	_, err = env.withdrawals.Transfer(ctx, sender.UserID, "000000000000", decimal.NewFromInt(10))
	assert.ErrorIs(t, err, models.ErrNotFound)

	_, err = env.withdrawals.Transfer(ctx, sender.UserID, sender.AccountNumber, decimal.Zero)
	assert.ErrorIs(t, err, ErrInvalidAmount)
}

func TestConcurrentWithdrawalsCannotOverdraw(t *testing.T) {
	env := newTestEnv(t)
	ctx := context.Background()
	user := env.seedPortfolio(t, 100, false)

	errs := make(chan error, 2)
	var wg sync.WaitGroup
	for i := 0; i < 2; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			_, err := env.withdrawals.CreateExternal(ctx, user.UserID, decimal.NewFromInt(80), "bank:xyz")
			errs <- err
		}()
	}
	wg.Wait()
	close(errs)

	var ok, insufficient int
	for err := range errs {
		switch {
		case err == nil:
			ok++
		default:
			assert.ErrorIs(t, err, models.ErrInsufficientFunds)
			insufficient++
		}
	}
	assert.Equal(t, 1, ok)
	assert.Equal(t, 1, insufficient)
	assert.Equal(t, "20", env.balance(t, user.UserID).String())
}

func TestExternalWithdrawalLifecycle(t *testing.T) {
	env := newTestEnv(t)
	ctx := context.Background()
	user := env.seedPortfolio(t, 300, false)
	admin := uuid.New()

	w, err := env.withdrawals.CreateExternal(ctx, user.UserID, decimal.NewFromInt(120), "bank:acct-9")
	require.NoError(t, err)
	assert.Equal(t, domain.WithdrawalStatusPending, w.Status)
	assert.Equal(t, "180", env.balance(t, user.UserID).String(), "escrowed at creation")

	settled, err := env.withdrawals.Approve(ctx, w.ID, admin)
	require.NoError(t, err)
	assert.Equal(t, domain.WithdrawalStatusCompleted, settled.Status)

	// Approved funds leave the platform; nobody is credited.
	assert.Equal(t, "180", env.balance(t, user.UserID).String())

	_, err = env.withdrawals.Reject(ctx, w.ID, admin)
	assert.ErrorIs(t, err, ErrStateConflict, "completed withdrawals cannot be refunded")
}

func TestExternalWithdrawalRejectRefunds(t *testing.T) {
	env := newTestEnv(t)
	ctx := context.Background()
	user := env.seedPortfolio(t, 300, false)
	admin := uuid.New()

	w, err := env.withdrawals.CreateExternal(ctx, user.UserID, decimal.NewFromInt(120), "bank:acct-9")
	require.NoError(t, err)

	settled, err := env.withdrawals.Reject(ctx, w.ID, admin)
	require.NoError(t, err)
	assert.Equal(t, domain.WithdrawalStatusRejected, settled.Status)
	assert.Equal(t, "300", env.balance(t, user.UserID).String(), "escrow returns in full")
}

func TestMerchantWithdrawalConfirm(t *testing.T) {
	env := newTestEnv(t)
	ctx := context.Background()
	user := env.seedPortfolio(t, 200, false)
	merchant := env.seedPortfolio(t, 0, true)

	w, err := env.withdrawals.CreateMerchant(ctx, user.UserID, merchant.UserID, decimal.NewFromInt(100))
	require.NoError(t, err)
	assert.Equal(t, "100", w.Amount.String(), "the gross is escrowed")
	assert.True(t, w.ConfirmationRequired)
	assert.Equal(t, "100", env.balance(t, user.UserID).String())

	// The deducted fee is frozen into the record: merchant hands 95 in cash
	// and keeps 5 of the credited gross.
	quote, ok, err := models.DecodeFeeQuote(w.Notes)
	require.NoError(t, err)
	require.True(t, ok)
	assert.Equal(t, "95", quote.NetAmount.String())
	assert.Equal(t, "5", quote.FeeAmount.String())

	settled, err := env.withdrawals.Confirm(ctx, w.ID, user.UserID)
	require.NoError(t, err)
	assert.Equal(t, domain.WithdrawalStatusCompleted, settled.Status)
	assert.False(t, settled.ConfirmationRequired)
	assert.Equal(t, "100", env.balance(t, merchant.UserID).String())
}

func TestMerchantWithdrawalOnlyOwnerConfirms(t *testing.T) {
	env := newTestEnv(t)
	ctx := context.Background()
	user := env.seedPortfolio(t, 200, false)
	merchant := env.seedPortfolio(t, 0, true)

	w, err := env.withdrawals.CreateMerchant(ctx, user.UserID, merchant.UserID, decimal.NewFromInt(100))
	require.NoError(t, err)

	_, err = env.withdrawals.Confirm(ctx, w.ID, merchant.UserID)
	assert.ErrorIs(t, err, ErrForbidden)
	assert.Equal(t, "0", env.balance(t, merchant.UserID).String())
}

func TestMerchantWithdrawalDeclineRefunds(t *testing.T) {
	env := newTestEnv(t)
	ctx := context.Background()
	user := env.seedPortfolio(t, 200, false)
	merchant := env.seedPortfolio(t, 0, true)

	w, err := env.withdrawals.CreateMerchant(ctx, user.UserID, merchant.UserID, decimal.NewFromInt(100))
	require.NoError(t, err)

	settled, err := env.withdrawals.Decline(ctx, w.ID, user.UserID)
	require.NoError(t, err)
	assert.Equal(t, domain.WithdrawalStatusRejected, settled.Status)
	assert.Equal(t, "200", env.balance(t, user.UserID).String())
	assert.Equal(t, "0", env.balance(t, merchant.UserID).String())
}

func TestMerchantWithdrawalNotAdminApprovable(t *testing.T) {
	env := newTestEnv(t)
	ctx := context.Background()
	user := env.seedPortfolio(t, 200, false)
	merchant := env.seedPortfolio(t, 0, true)
	admin := uuid.New()

	w, err := env.withdrawals.CreateMerchant(ctx, user.UserID, merchant.UserID, decimal.NewFromInt(100))
	require.NoError(t, err)

	_, err = env.withdrawals.Approve(ctx, w.ID, admin)
	assert.ErrorIs(t, err, ErrForbidden, "merchant flow settles by user confirmation")
}

func TestMerchantWithdrawalForceComplete(t *testing.T) {
	env := newTestEnv(t)
	ctx := context.Background()
	user := env.seedPortfolio(t, 200, false)
	merchant := env.seedPortfolio(t, 0, true)
	admin := uuid.New()

	w, err := env.withdrawals.CreateMerchant(ctx, user.UserID, merchant.UserID, decimal.NewFromInt(100))
	require.NoError(t, err)

	settled, err := env.withdrawals.ForceComplete(ctx, w.ID, admin)
	require.NoError(t, err)
	assert.Equal(t, domain.WithdrawalStatusCompleted, settled.Status)
	assert.Equal(t, "100", env.balance(t, merchant.UserID).String())

	logs := env.store.AdminLogs()
	require.NotEmpty(t, logs)
	last := logs[len(logs)-1]
	assert.Equal(t, domain.ActionForceCompleted, last.Action)
	assert.Equal(t, admin, last.ActorID)
	assert.Equal(t, w.ID, last.TxID)
}

func TestCreateMerchantWithdrawalRequiresStanding(t *testing.T) {
	env := newTestEnv(t)
	user := env.seedPortfolio(t, 200, false)
	plain := env.seedPortfolio(t, 0, false)

	_, err := env.withdrawals.CreateMerchant(context.Background(), user.UserID, plain.UserID, decimal.NewFromInt(50))
	assert.ErrorIs(t, err, ErrNotMerchant)
}
